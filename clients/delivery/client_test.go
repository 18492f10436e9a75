package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/stretchr/testify/assert"
)

type recordedRequest struct {
	method        string
	contentType   string
	authorization string
	hasAuth       bool
	body          string
}

func getServer(statusCode int, requests *[]recordedRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, hasAuth := r.Header["Authorization"]
		*requests = append(*requests, recordedRequest{
			method:        r.Method,
			contentType:   r.Header.Get("Content-Type"),
			authorization: r.Header.Get("Authorization"),
			hasAuth:       hasAuth,
			body:          string(body),
		})
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
}

func TestNewTransport(t *testing.T) {

	t.Run("ReturnsTransportWithFixedTenSecondTimeouts", func(t *testing.T) {

		// act
		transport := newTransport()

		assert.Equal(t, 10*time.Second, Timeout)
		assert.Equal(t, Timeout, transport.TLSHandshakeTimeout)
		assert.Equal(t, Timeout, transport.ResponseHeaderTimeout)
		assert.True(t, transport.DisableKeepAlives)
	})
}

func TestDeliver(t *testing.T) {

	t.Run("ReturnsNoErrorForStatusOK", func(t *testing.T) {

		requests := []recordedRequest{}
		server := getServer(http.StatusOK, &requests)
		defer server.Close()

		client, _ := NewClient()
		target := api.NotifyTarget{Name: "victorops", URL: server.URL, Method: http.MethodPost, BodyFormat: api.BodyFormatJSON}

		// act
		statusCode, err := client.Deliver(context.Background(), target, api.RenderedPayload{Raw: `{"status":"FAILURE"}`, Format: api.BodyFormatJSON})

		assert.Nil(t, err)
		assert.Equal(t, http.StatusOK, statusCode)
		assert.Equal(t, 1, len(requests))
		assert.Equal(t, http.MethodPost, requests[0].method)
		assert.Equal(t, "application/json; charset=utf-8", requests[0].contentType)
		assert.Equal(t, `{"status":"FAILURE"}`, requests[0].body)
		assert.False(t, requests[0].hasAuth)
	})

	t.Run("ReturnsDeliveryErrorForOtherSuccessStatus", func(t *testing.T) {

		requests := []recordedRequest{}
		server := getServer(http.StatusAccepted, &requests)
		defer server.Close()

		client, _ := NewClient()
		target := api.NotifyTarget{Name: "webhook", URL: server.URL, Method: http.MethodPost, BodyFormat: api.BodyFormatJSON}

		// act
		statusCode, err := client.Deliver(context.Background(), target, api.RenderedPayload{Raw: `{}`, Format: api.BodyFormatJSON})

		var deliveryError *api.DeliveryError
		assert.True(t, errors.As(err, &deliveryError))
		assert.Equal(t, http.StatusAccepted, statusCode)
		assert.Equal(t, http.StatusAccepted, deliveryError.StatusCode)
	})

	t.Run("ReturnsDeliveryErrorForServerError", func(t *testing.T) {

		requests := []recordedRequest{}
		server := getServer(http.StatusInternalServerError, &requests)
		defer server.Close()

		client, _ := NewClient()
		target := api.NotifyTarget{Name: "webhook", URL: server.URL, Method: http.MethodPost, BodyFormat: api.BodyFormatJSON}

		// act
		_, err := client.Deliver(context.Background(), target, api.RenderedPayload{Raw: `{}`, Format: api.BodyFormatJSON})

		var deliveryError *api.DeliveryError
		assert.True(t, errors.As(err, &deliveryError))
		assert.Equal(t, 1, len(requests))
	})

	t.Run("ReturnsDeliveryErrorIfServerIsUnreachable", func(t *testing.T) {

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		client, _ := NewClient()
		target := api.NotifyTarget{Name: "webhook", URL: url, Method: http.MethodPost, BodyFormat: api.BodyFormatJSON}

		// act
		statusCode, err := client.Deliver(context.Background(), target, api.RenderedPayload{Raw: `{}`, Format: api.BodyFormatJSON})

		var deliveryError *api.DeliveryError
		assert.True(t, errors.As(err, &deliveryError))
		assert.Equal(t, 0, statusCode)
	})

	t.Run("SendsFormEncodedPairWithPatchAndAuthorization", func(t *testing.T) {

		requests := []recordedRequest{}
		server := getServer(http.StatusOK, &requests)
		defer server.Close()

		client, _ := NewClient()
		target := api.NotifyTarget{Name: "statuspage", URL: server.URL, Method: http.MethodPatch, BodyFormat: api.BodyFormatForm, Authorization: "OAuth 123456"}

		// act
		_, err := client.Deliver(context.Background(), target, api.RenderedPayload{Raw: "component[status]=major_outage", Format: api.BodyFormatForm})

		assert.Nil(t, err)
		assert.Equal(t, 1, len(requests))
		assert.Equal(t, http.MethodPatch, requests[0].method)
		assert.Equal(t, "application/x-www-form-urlencoded", requests[0].contentType)
		assert.Equal(t, "OAuth 123456", requests[0].authorization)
		assert.Equal(t, "component%5Bstatus%5D=major_outage", requests[0].body)
	})

	t.Run("ReturnsDeliveryErrorForInvalidFormPayloadWithoutSendingIt", func(t *testing.T) {

		requests := []recordedRequest{}
		server := getServer(http.StatusOK, &requests)
		defer server.Close()

		client, _ := NewClient()
		target := api.NotifyTarget{Name: "statuspage", URL: server.URL, Method: http.MethodPatch, BodyFormat: api.BodyFormatForm}

		// act
		_, err := client.Deliver(context.Background(), target, api.RenderedPayload{Raw: "a=b=c", Format: api.BodyFormatForm})

		assert.NotNil(t, err)
		assert.Equal(t, 0, len(requests))
	})
}
