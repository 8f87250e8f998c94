package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const adaPayload = `{"concertId":5,"name":"Ada","email":"ada@example.com","phone":"555-0100","quantity":2,"creditCard":"4111111111111111","expiration":"12/26","securityCode":"123","address":"1 Main St","city":"Springfield","province":"IL","postalCode":"62704","country":"US","purchaseDate":"2024-01-01T00:00:00Z"}`

// MockPublisher mocks the queue publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, body []byte) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	return e
}

func doPurchase(t *testing.T, h *PurchaseHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := setupEcho()
	req := httptest.NewRequest(http.MethodPost, "/purchase", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Purchase(e.NewContext(req, rec)))
	return rec
}

func TestPurchaseQueuesRawBody(t *testing.T) {
	pub := new(MockPublisher)
	// Odd spacing must reach the queue untouched.
	body := "{ \"concertId\": 5,\n  \"quantity\": 2 }"
	pub.On("Publish", mock.Anything, []byte(body)).Return(nil).Once()

	rec := doPurchase(t, NewPurchaseHandler(pub), body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, QueuedMessage, rec.Body.String())
	pub.AssertExpectations(t)
}

func TestPurchaseAdaScenario(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, []byte(adaPayload)).Return(nil).Once()

	rec := doPurchase(t, NewPurchaseHandler(pub), adaPayload)

	assert.Equal(t, http.StatusOK, rec.Code)
	pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestPurchaseMalformedJSONNeverPublishes(t *testing.T) {
	for _, body := range []string{``, `{"concertId":`, `not json`, `{"quantity":"two"}`, `[]`} {
		pub := new(MockPublisher)
		rec := doPurchase(t, NewPurchaseHandler(pub), body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.True(t, strings.HasPrefix(rec.Body.String(), "Error: "), rec.Body.String())
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	}
}

func TestPurchaseAcceptsBusinessRuleViolations(t *testing.T) {
	for _, body := range []string{`{"concertId":5,"quantity":0}`, `{"quantity":1}`} {
		pub := new(MockPublisher)
		pub.On("Publish", mock.Anything, []byte(body)).Return(nil).Once()

		rec := doPurchase(t, NewPurchaseHandler(pub), body)

		assert.Equal(t, http.StatusOK, rec.Code, body)
		pub.AssertExpectations(t)
	}
}

func TestPurchaseQueueFailureIsClientError(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("rabbitmq: dial failed")).Once()

	rec := doPurchase(t, NewPurchaseHandler(pub), adaPayload)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Error: rabbitmq: dial failed", rec.Body.String())
}

func TestPurchaseDuplicatesAreNotDeduplicated(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, []byte(adaPayload)).Return(nil).Twice()
	h := NewPurchaseHandler(pub)

	doPurchase(t, h, adaPayload)
	doPurchase(t, h, adaPayload)

	pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestNewPurchaseHandlerRequiresPublisher(t *testing.T) {
	assert.Panics(t, func() { NewPurchaseHandler(nil) })
}

func TestHealth(t *testing.T) {
	e := setupEcho()
	rec := httptest.NewRecorder()
	require.NoError(t, Health(e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
