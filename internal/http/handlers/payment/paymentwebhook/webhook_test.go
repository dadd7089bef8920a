package paymentwebhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/models"
	"github.com/magabrotheeeer/filesfy/internal/paymentprovider"
	"github.com/magabrotheeeer/filesfy/internal/services/payment"
)

type ParserMock struct {
	mock.Mock
}

func (m *ParserMock) ParseEvent(payload []byte, signature string) (*models.GatewayEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GatewayEvent), args.Error(1)
}

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) OnGatewayConfirmation(ctx context.Context, event models.GatewayEvent) (payment.Ack, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(payment.Ack), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestHandler_ServeHTTP(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	event := &models.GatewayEvent{ID: "evt_1", Type: "payment_intent.succeeded", GatewayRef: "pi_1"}

	tests := []struct {
		name      string
		parseErr  error
		event     *models.GatewayEvent
		ack       payment.Ack
		applyErr  error
		wantApply bool
		wantCode  int
		wantBody  string
	}{
		{
			name:      "first delivery",
			event:     event,
			ack:       payment.Ack{Matched: true, Applied: true},
			wantApply: true,
			wantCode:  http.StatusOK,
			wantBody:  `"received":true`,
		},
		{
			name:      "redelivery",
			event:     event,
			ack:       payment.Ack{Matched: true},
			wantApply: true,
			wantCode:  http.StatusOK,
			wantBody:  `"received":true`,
		},
		{
			name:     "bad signature",
			parseErr: fmt.Errorf("paymentprovider.ParseEvent: %w: no signatures found", paymentprovider.ErrSignature),
			wantCode: http.StatusBadRequest,
			wantBody: `"error":"invalid signature"`,
		},
		{
			name:     "malformed payload",
			parseErr: errors.New("unexpected end of JSON input"),
			wantCode: http.StatusBadRequest,
			wantBody: `"error":"invalid event payload"`,
		},
		{
			name:      "store unavailable",
			event:     event,
			applyErr:  fmt.Errorf("payment.OnGatewayConfirmation: %w", apperr.ErrStoreUnavailable),
			wantApply: true,
			wantCode:  http.StatusInternalServerError,
			wantBody:  `"kind":"StoreUnavailable"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := new(ParserMock)
			svc := new(ServiceMock)
			parser.On("ParseEvent", body, "t=1,v1=abc").Return(tt.event, tt.parseErr).Once()
			if tt.wantApply {
				svc.On("OnGatewayConfirmation", mock.Anything, *event).Return(tt.ack, tt.applyErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
			req.Header.Set(SignatureHeader, "t=1,v1=abc")
			rec := httptest.NewRecorder()
			New(newNoopLogger(), parser, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			parser.AssertExpectations(t)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_NotConfigured(t *testing.T) {
	svc := new(ServiceMock)
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	New(newNoopLogger(), nil, svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
	assert.Contains(t, rec.Body.String(), `"warning"`)
	svc.AssertNotCalled(t, "OnGatewayConfirmation", mock.Anything, mock.Anything)
}
