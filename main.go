package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin"
	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/estafette/estafette-ci-notifier/clients/delivery"
	"github.com/estafette/estafette-ci-notifier/clients/envvar"
	"github.com/estafette/estafette-ci-notifier/clients/eventbus"
	"github.com/estafette/estafette-ci-notifier/clients/failurecause"
	"github.com/estafette/estafette-ci-notifier/clients/history"
	"github.com/estafette/estafette-ci-notifier/clients/obfuscation"
	"github.com/estafette/estafette-ci-notifier/config"
	"github.com/estafette/estafette-ci-notifier/services/evaluation"
	"github.com/estafette/estafette-ci-notifier/services/eventserver"
	"github.com/estafette/estafette-ci-notifier/services/notifier"
	"github.com/estafette/estafette-ci-notifier/services/rendering"
	"github.com/estafette/estafette-ci-notifier/services/retry"
	"github.com/estafette/estafette-ci-notifier/services/validation"
	crypt "github.com/estafette/estafette-ci-crypt"
	foundation "github.com/estafette/estafette-foundation"
	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	yaml "gopkg.in/yaml.v2"
)

var (
	app       string
	version   string
	branch    string
	revision  string
	buildDate string
)

var (
	configPath          = kingpin.Flag("config", "Path to the notifier configuration file.").Envar("NOTIFIER_CONFIG_PATH").Default("/configs/notifier.yaml").String()
	logLevel            = kingpin.Flag("log-level", "Minimum level of log messages.").Envar("LOG_LEVEL").Default("info").String()
	decryptionKey       = kingpin.Flag("secret-decryption-key", "AES-256 key used to decrypt secrets in the configuration.").Envar("SECRET_DECRYPTION_KEY").String()
	decryptionKeyBase64 = kingpin.Flag("secret-decryption-key-base64", "Whether the decryption key is base64 encoded.").Envar("SECRET_DECRYPTION_KEY_BASE64").Default("false").Bool()
	historyDSN          = kingpin.Flag("history-dsn", "Postgres connection string of the build history store; an in-memory store is used if empty.").Envar("HISTORY_DSN").String()
	historyMaxBuilds    = kingpin.Flag("history-max-builds", "Number of builds the in-memory history store retains.").Envar("HISTORY_MAX_BUILDS").Default("10000").Int()
	templateCacheSize   = kingpin.Flag("template-cache-size", "Number of parsed templates to cache.").Envar("TEMPLATE_CACHE_SIZE").Default("100").Int64()

	notifyCommand   = kingpin.Command("notify", "Notifies all configured targets about a finished build read from file.")
	notifyEventFile = notifyCommand.Flag("event-file", "Path to a json or yaml build-completion event.").Required().String()

	extensionCommand = kingpin.Command("extension", "Notifies all configured targets about the build this estafette extension runs in.")

	serveCommand       = kingpin.Command("serve", "Receives build-completion events over http.")
	serveListenAddress = serveCommand.Flag("listen-address", "Address to listen on for build-completion events.").Envar("LISTEN_ADDRESS").Default(":5000").String()

	consumeCommand = kingpin.Command("consume", "Receives build-completion events from nats.")
	consumeURL     = consumeCommand.Flag("nats-url", "Url of the nats server.").Envar("NATS_URL").Default("nats://127.0.0.1:4222").String()
	consumeSubject = consumeCommand.Flag("subject", "Subject build-completion events are published on.").Envar("NATS_SUBJECT").Default(eventbus.DefaultSubject).String()
	consumeQueue   = consumeCommand.Flag("queue", "Queue group to share events between replicas.").Envar("NATS_QUEUE").Default("notifier").String()

	publishCommand   = kingpin.Command("publish", "Publishes a build-completion event read from file to nats.")
	publishEventFile = publishCommand.Flag("event-file", "Path to a json or yaml build-completion event.").Required().String()
	publishURL       = publishCommand.Flag("nats-url", "Url of the nats server.").Envar("NATS_URL").Default("nats://127.0.0.1:4222").String()
	publishSubject   = publishCommand.Flag("subject", "Subject to publish the event on.").Envar("NATS_SUBJECT").Default(eventbus.DefaultSubject).String()
)

func main() {

	// parse command line parameters
	kingpin.Version(version)
	command := kingpin.Parse()

	applicationInfo := foundation.ApplicationInfo{
		App:       app,
		Version:   version,
		Branch:    branch,
		Revision:  revision,
		BuildDate: buildDate,
	}

	initLogging(applicationInfo)

	closer := initJaeger(applicationInfo.App)
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch command {
	case notifyCommand.FullCommand():
		event, err := readEventFromFile(*notifyEventFile)
		if err != nil {
			log.Fatal().Err(err).Msgf("Reading event from %v failed", *notifyEventFile)
		}

		cfg, configBytes := readConfig(*configPath)
		notifierService, cleanup := initServices(ctx, applicationInfo, cfg, configBytes)

		results := notifyBuild(ctx, notifierService, event)
		cleanup()
		closer.Close()
		api.HandleExit(results)

	case extensionCommand.FullCommand():
		envvarClient, err := envvar.NewClient("ESTAFETTE_")
		if err != nil {
			log.Fatal().Err(err).Msg("Creating envvar client failed")
		}

		event, err := envvarClient.GetBuildEvent()
		if err != nil {
			log.Fatal().Err(err).Msg("Reading build from ESTAFETTE_ envvars failed")
		}

		path := *configPath
		if extensionConfigPath := envvarClient.GetExtensionParameter("config"); extensionConfigPath != "" {
			path = extensionConfigPath
		}

		cfg, configBytes := readConfig(path)
		if cfg.Pipeline == "" {
			cfg.Pipeline = envvarClient.GetPipelineName()
		}
		notifierService, cleanup := initServices(ctx, applicationInfo, cfg, configBytes)

		results := notifyBuild(ctx, notifierService, event)
		cleanup()
		closer.Close()
		api.HandleExit(results)

	case serveCommand.FullCommand():
		cfg, configBytes := readConfig(*configPath)
		notifierService, cleanup := initServices(ctx, applicationInfo, cfg, configBytes)
		defer cleanup()

		eventServer, err := eventserver.NewService(ctx, notifierService)
		if err != nil {
			log.Fatal().Err(err).Msg("Creating event server failed")
		}

		if err = eventServer.ListenAndServe(ctx, *serveListenAddress); err != nil {
			log.Fatal().Err(err).Msg("Event server failed")
		}

	case consumeCommand.FullCommand():
		cfg, configBytes := readConfig(*configPath)
		notifierService, cleanup := initServices(ctx, applicationInfo, cfg, configBytes)
		defer cleanup()

		eventbusClient, err := eventbus.NewClient(*consumeURL, applicationInfo.App)
		if err != nil {
			log.Fatal().Err(err).Msg("Creating eventbus client failed")
		}
		defer eventbusClient.Close()

		unsubscribe, err := eventbusClient.Subscribe(ctx, *consumeSubject, *consumeQueue, func(ctx context.Context, event api.BuildEvent) error {
			results, err := notifierService.Notify(ctx, event)
			api.RenderStats(os.Stdout, results, false)
			return err
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Subscribing to build-completion events failed")
		}

		<-ctx.Done()
		log.Info().Msg("Stopping consumption of build-completion events...")
		if err = unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("Draining subscription failed")
		}

	case publishCommand.FullCommand():
		event, err := readEventFromFile(*publishEventFile)
		if err != nil {
			log.Fatal().Err(err).Msgf("Reading event from %v failed", *publishEventFile)
		}

		eventbusClient, err := eventbus.NewClient(*publishURL, applicationInfo.App)
		if err != nil {
			log.Fatal().Err(err).Msg("Creating eventbus client failed")
		}
		defer eventbusClient.Close()

		if err = eventbusClient.Publish(ctx, *publishSubject, event); err != nil {
			log.Fatal().Err(err).Msgf("Publishing event %v failed", event.ID)
		}

		log.Info().Msgf("Published event %v for build %v on %v", event.ID, event.Build.ID, *publishSubject)
	}
}

func notifyBuild(ctx context.Context, notifierService notifier.Service, event api.BuildEvent) []api.TargetResult {

	span, ctx := opentracing.StartSpanFromContext(ctx, "NotifyBuild")
	defer span.Finish()

	results, err := notifierService.Notify(ctx, event)
	if err != nil && results == nil {
		log.Fatal().Err(err).Msgf("Notifying about build %v failed", event.Build.ID)
	}

	api.RenderStats(os.Stdout, results, true)

	return results
}

func initServices(ctx context.Context, applicationInfo foundation.ApplicationInfo, cfg config.Config, configBytes []byte) (notifier.Service, func()) {

	var secretHelper crypt.SecretHelper
	if *decryptionKey != "" {
		secretHelper = crypt.NewSecretHelper(*decryptionKey, *decryptionKeyBase64)
	}

	cfg.ApplyEnvOverrides(os.LookupEnv)

	targets, err := cfg.GetNotifyTargets(secretHelper)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid notify target configuration")
	}

	log.Info().Msgf("Configured %v notify targets", len(targets))

	obfuscationClient, err := obfuscation.NewClient(secretHelper)
	if err != nil {
		log.Fatal().Err(err).Msg("Creating obfuscation client failed")
	}
	if err = obfuscationClient.CollectSecrets(targets, configBytes, cfg.Pipeline); err != nil {
		log.Fatal().Err(err).Msg("Collecting secrets to obfuscate failed")
	}

	var historyClient history.Client
	dsn := *historyDSN
	if dsn == "" {
		dsn = cfg.History.DSN
	}
	if dsn != "" {
		historyClient, err = history.NewPostgresClient(ctx, dsn)
	} else {
		maxBuilds := *historyMaxBuilds
		if cfg.History.MaxBuilds > 0 {
			maxBuilds = cfg.History.MaxBuilds
		}
		historyClient, err = history.NewMemoryClient(maxBuilds)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Creating history client failed")
	}

	failurecauseClient, err := failurecause.NewClient(failurecause.NewEventAnalyzer())
	if err != nil {
		log.Fatal().Err(err).Msg("Creating failure cause client failed")
	}

	deliveryClient, err := delivery.NewClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Creating delivery client failed")
	}

	evaluationService, err := evaluation.NewService(ctx, historyClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Creating evaluation service failed")
	}

	renderingService, err := rendering.NewService(ctx, *templateCacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Creating rendering service failed")
	}

	validationService, err := validation.NewService()
	if err != nil {
		log.Fatal().Err(err).Msg("Creating validation service failed")
	}

	retryService, err := retry.NewService(ctx, deliveryClient, obfuscationClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Creating retry service failed")
	}

	hostInfo := rendering.HostInfo{
		Name:    cfg.Host.Name,
		URL:     cfg.Host.URL,
		Version: cfg.Host.Version,
	}
	if hostInfo.Name == "" {
		hostInfo.Name = applicationInfo.App
	}
	if hostInfo.Version == "" {
		hostInfo.Version = applicationInfo.Version
	}

	notifierService, err := notifier.NewService(ctx, targets, hostInfo, cfg.Parallel, historyClient, failurecauseClient, obfuscationClient, evaluationService, renderingService, validationService, retryService)
	if err != nil {
		log.Fatal().Err(err).Msg("Creating notifier service failed")
	}
	for _, target := range notifierService.Targets() {
		log.Info().Msgf("Configured target %v of kind %v with threshold %v (enabled: %v)", target.Name, target.Kind, target.Threshold, target.IsEnabled())
	}

	return notifierService, func() {
		renderingService.Close()
		historyClient.Close()
	}
}

func readConfig(path string) (config.Config, []byte) {
	cfg, configBytes, err := config.ReadConfigFromFile(path)
	if err != nil {
		log.Fatal().Err(err).Msgf("Reading config from %v failed", path)
	}
	return cfg, configBytes
}

func readEventFromFile(path string) (event api.BuildEvent, err error) {

	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &event)
	} else {
		err = yaml.Unmarshal(data, &event)
	}
	if err != nil {
		return
	}

	if err = event.Build.Validate(); err != nil {
		return
	}
	event.EnsureID()

	return event, nil
}

func initLogging(applicationInfo foundation.ApplicationInfo) {

	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil || *logLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if os.Getenv("ESTAFETTE_LOG_FORMAT") == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(output).With().
		Timestamp().
		Str("app", applicationInfo.App).
		Str("version", applicationInfo.Version).
		Logger()

	log.Info().
		Str("branch", applicationInfo.Branch).
		Str("revision", applicationInfo.Revision).
		Str("buildDate", applicationInfo.BuildDate).
		Str("goVersion", applicationInfo.GoVersion()).
		Str("os", applicationInfo.OperatingSystem()).
		Msgf("Starting %v version %v...", applicationInfo.App, applicationInfo.Version)
}

func initJaeger(service string) io.Closer {

	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Generating Jaeger config from environment variables failed")
	}

	closer, err := cfg.InitGlobalTracer(service, jaegercfg.Logger(jaeger.StdLogger))
	if err != nil {
		log.Fatal().Err(err).Msg("Generating Jaeger tracer failed")
	}

	return closer
}
