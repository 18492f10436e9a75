package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/nats-io/nats.go"
	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog/log"
)

// DefaultSubject is the subject build-completion events are published on
const DefaultSubject = "builds.completed"

// Handler processes a single decoded build-completion event
type Handler func(ctx context.Context, event api.BuildEvent) error

// Client subscribes to and publishes build-completion events on nats
//go:generate mockgen -package=eventbus -destination ./mock.go -source=client.go
type Client interface {
	Subscribe(ctx context.Context, subject, queue string, handler Handler) (unsubscribe func() error, err error)
	Publish(ctx context.Context, subject string, event api.BuildEvent) error
	Close()
}

// NewClient connects to the nats server at url
func NewClient(url, name string) (Client, error) {

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("Disconnected from nats")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Msgf("Reconnected to nats at %v", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("Connecting to nats at %v failed: %w", url, err)
	}

	log.Info().Msgf("Connected to nats at %v", conn.ConnectedUrl())

	return &client{
		conn: conn,
	}, nil
}

type client struct {
	conn *nats.Conn
}

// Subscribe handles messages one at a time; a failed event is logged and not redelivered
func (c *client) Subscribe(ctx context.Context, subject, queue string, handler Handler) (unsubscribe func() error, err error) {

	if subject == "" {
		subject = DefaultSubject
	}

	var subscription *nats.Subscription
	if queue != "" {
		subscription, err = c.conn.QueueSubscribe(subject, queue, newMessageHandler(ctx, handler))
	} else {
		subscription, err = c.conn.Subscribe(subject, newMessageHandler(ctx, handler))
	}
	if err != nil {
		return nil, fmt.Errorf("Subscribing to %v failed: %w", subject, err)
	}

	log.Info().Msgf("Subscribed to build-completion events on %v", subject)

	return subscription.Drain, nil
}

func (c *client) Publish(ctx context.Context, subject string, event api.BuildEvent) error {

	span, _ := opentracing.StartSpanFromContext(ctx, "PublishEvent")
	defer span.Finish()

	if subject == "" {
		subject = DefaultSubject
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err = c.conn.Publish(subject, data); err != nil {
		return err
	}

	return c.conn.FlushTimeout(10 * time.Second)
}

func (c *client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}

// DecodeEvent unmarshals and validates a json build-completion event
func DecodeEvent(data []byte) (event api.BuildEvent, err error) {
	if len(data) == 0 {
		return event, errors.New("Event is empty")
	}
	if err = json.Unmarshal(data, &event); err != nil {
		return event, fmt.Errorf("Unmarshalling event failed: %w", err)
	}
	if err = event.Build.Validate(); err != nil {
		return event, err
	}
	event.EnsureID()
	return event, nil
}

func newMessageHandler(ctx context.Context, handler Handler) nats.MsgHandler {
	return func(msg *nats.Msg) {

		span, spanCtx := opentracing.StartSpanFromContext(ctx, "HandleEvent")
		defer span.Finish()
		span.SetTag("subject", msg.Subject)

		event, err := DecodeEvent(msg.Data)
		if err != nil {
			log.Warn().Err(err).Msgf("Dropping undecodable message on %v", msg.Subject)
			return
		}

		if err = handler(spanCtx, event); err != nil {
			log.Error().Err(err).Str("event", event.ID).Msgf("Handling event for build %v failed", event.Build.ID)
		}
	}
}
