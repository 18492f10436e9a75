package delivery

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/opentracing-contrib/go-stdlib/nethttp"
	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog/log"
	"github.com/sethgrid/pester"
)

// Client performs a single notify request for a target
//go:generate mockgen -package=delivery -destination ./mock.go -source=client.go
type Client interface {
	Deliver(ctx context.Context, target api.NotifyTarget, payload api.RenderedPayload) (statusCode int, err error)
}

// Timeout applies separately to connecting, the tls handshake and awaiting the response headers of an attempt
const Timeout = 10 * time.Second

// NewClient returns a new delivery.Client
func NewClient() (Client, error) {
	return &client{}, nil
}

type client struct{}

func (c *client) Deliver(ctx context.Context, target api.NotifyTarget, payload api.RenderedPayload) (statusCode int, err error) {

	span, ctx := opentracing.StartSpanFromContext(ctx, "Deliver")
	defer span.Finish()
	span.SetTag("target", target.Name)
	span.SetTag("method", target.Method)

	body, err := getRequestBody(payload)
	if err != nil {
		return 0, &api.DeliveryError{URL: target.URL, Err: err}
	}

	// a fresh transport per attempt, torn down when the attempt is done
	transport := newTransport()
	defer transport.CloseIdleConnections()

	// retries are owned by the caller, so pester performs exactly one attempt
	client := pester.NewExtendedClient(&http.Client{Transport: &nethttp.Transport{RoundTripper: transport}, Timeout: 3 * Timeout})
	client.MaxRetries = 1
	client.Backoff = func(_ int) time.Duration { return 0 }
	client.KeepLog = true

	request, err := http.NewRequest(target.Method, target.URL, strings.NewReader(body))
	if err != nil {
		return 0, &api.DeliveryError{URL: target.URL, Err: err}
	}

	// add tracing context
	request = request.WithContext(opentracing.ContextWithSpan(ctx, span))

	// collect additional information on setting up connections
	request, ht := nethttp.TraceRequest(span.Tracer(), request)
	defer ht.Finish()

	// add headers
	request.Header.Set("Content-Type", payload.Format.ContentType())
	if target.HasAuthorization() {
		request.Header.Set("Authorization", target.Authorization)
	}

	// perform actual request
	response, err := client.Do(request)
	if err != nil {
		log.Debug().Str("logs", client.LogString()).Msgf("Request to %v for target %v failed", target.URL, target.Name)
		if response != nil {
			statusCode = response.StatusCode
			drainAndClose(response)
		}
		return statusCode, &api.DeliveryError{URL: target.URL, StatusCode: statusCode, Err: err}
	}
	if response == nil {
		return 0, &api.DeliveryError{URL: target.URL, Err: fmt.Errorf("no response received")}
	}
	defer drainAndClose(response)

	statusCode = response.StatusCode
	span.SetTag("status-code", statusCode)

	if statusCode != http.StatusOK {
		return statusCode, &api.DeliveryError{URL: target.URL, StatusCode: statusCode}
	}

	return statusCode, nil
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: Timeout,
		}).DialContext,
		TLSHandshakeTimeout:   Timeout,
		ResponseHeaderTimeout: Timeout,
		DisableKeepAlives:     true,
	}
}

func getRequestBody(payload api.RenderedPayload) (string, error) {
	if payload.Format != api.BodyFormatForm {
		return payload.Raw, nil
	}

	parts := api.SplitFormPair(payload.Raw)
	if len(parts) != 2 {
		return "", fmt.Errorf("Payload is not a valid form parameter in syntax 'a=b', was %v", payload.Raw)
	}

	return url.Values{parts[0]: []string{parts[1]}}.Encode(), nil
}

func drainAndClose(response *http.Response) {
	if response.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, response.Body)
	_ = response.Body.Close()
}
