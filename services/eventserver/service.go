package eventserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/estafette/estafette-ci-notifier/services/notifier"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog/log"
)

const maxEventBytes = 1 << 20

// Service receives build-completion callbacks over http
//go:generate mockgen -package=eventserver -destination ./mock.go -source=service.go
type Service interface {
	Handler() http.Handler
	ListenAndServe(ctx context.Context, addr string) error
}

// NewService returns a new eventserver.Service
func NewService(ctx context.Context, notifierService notifier.Service) (Service, error) {
	if notifierService == nil {
		return nil, errors.New("Notifier service is required")
	}

	return &service{
		notifierService: notifierService,
	}, nil
}

type service struct {
	notifierService notifier.Service
}

type targetResultResponse struct {
	Target               string `json:"target"`
	Status               string `json:"status"`
	SkipReason           string `json:"skipReason,omitempty"`
	Attempts             int    `json:"attempts"`
	StatusCode           int    `json:"statusCode,omitempty"`
	Error                string `json:"error,omitempty"`
	DurationMilliseconds int64  `json:"durationMilliseconds"`
}

type eventResponse struct {
	EventID string                 `json:"eventId"`
	BuildID string                 `json:"buildId"`
	Failed  bool                   `json:"failed"`
	Results []targetResultResponse `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *service) Handler() http.Handler {

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("I'm alive!"))
	})

	r.Post("/api/builds/completed", s.postBuildCompleted)

	return r
}

func (s *service) postBuildCompleted(w http.ResponseWriter, r *http.Request) {

	span, ctx := opentracing.StartSpanFromContext(r.Context(), "PostBuildCompleted")
	defer span.Finish()

	var event api.BuildEvent
	r.Body = http.MaxBytesReader(w, r.Body, maxEventBytes)
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		log.Warn().Err(err).Msg("Failed decoding build-completion event")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := event.Build.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	event.EnsureID()
	span.SetTag("event-id", event.ID)

	log.Info().Str("event", event.ID).Msgf("Received build-completion event for build %v with result %v", event.Build.ID, event.Build.Outcome)

	results, err := s.notifierService.Notify(ctx, event)
	if err != nil && results == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	response := eventResponse{
		EventID: event.ID,
		BuildID: event.Build.ID,
		Failed:  api.HasFailed(results),
		Results: make([]targetResultResponse, 0, len(results)),
	}
	for _, result := range results {
		response.Results = append(response.Results, newTargetResultResponse(result))
	}

	if response.Failed {
		writeJSON(w, http.StatusUnprocessableEntity, response)
		return
	}

	writeJSON(w, http.StatusAccepted, response)
}

func newTargetResultResponse(result api.TargetResult) targetResultResponse {
	response := targetResultResponse{
		Target:               result.Target,
		Status:               string(result.Status),
		SkipReason:           string(result.SkipReason),
		Attempts:             len(result.Attempts),
		DurationMilliseconds: result.Duration.Milliseconds(),
	}
	if len(result.Attempts) > 0 {
		response.StatusCode = result.Attempts[len(result.Attempts)-1].StatusCode
	}
	if result.Err != nil {
		response.Error = result.Err.Error()
	}
	return response
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed writing response")
	}
}

func (s *service) ListenAndServe(ctx context.Context, addr string) error {

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// a single event may take several retried deliveries per target
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Msgf("Listening for build-completion events on %v...", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down event server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
