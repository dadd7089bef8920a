package subscribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/filesfy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/filesfy/internal/models"
	"github.com/magabrotheeeer/filesfy/internal/services/payment"
)

type LedgerMock struct {
	mock.Mock
}

func (m *LedgerMock) TransitionPlan(ctx context.Context, userUID string, plan models.Plan) (*models.Subscription, error) {
	args := m.Called(ctx, userUID, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *LedgerMock) Publish(ctx context.Context, event models.PlanChanged) {
	m.Called(ctx, event)
}

type PayerMock struct {
	mock.Mock
}

func (m *PayerMock) Pay(ctx context.Context, userUID string, plan models.Plan) (*payment.Settlement, error) {
	args := m.Called(ctx, userUID, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Settlement), args.Error(1)
}

type IssuerMock struct {
	mock.Mock
}

func (m *IssuerMock) Reissue(ctx context.Context, userUID string) (string, error) {
	args := m.Called(ctx, userUID)
	return args.String(0), args.Error(1)
}

func newRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/subscriptions/subscribe", bytes.NewBufferString(body))
	return req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, "u-1"))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Result {
	t.Helper()
	var got struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	return got.Data
}

func TestHandler_Free(t *testing.T) {
	ledger, payer, issuer := new(LedgerMock), new(PayerMock), new(IssuerMock)
	sub := &models.Subscription{ID: 1, UserUID: "u-1", Plan: models.PlanFree, Status: models.StatusActive}
	ledger.On("TransitionPlan", mock.Anything, "u-1", models.PlanFree).Return(sub, nil).Once()
	ledger.On("Publish", mock.Anything, mock.MatchedBy(func(e models.PlanChanged) bool {
		return e.Plan == models.PlanFree && e.Source == "subscribe"
	})).Once()
	issuer.On("Reissue", mock.Anything, "u-1").Return("free-jwt", nil).Once()

	rec := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), ledger, payer, issuer).ServeHTTP(rec, newRequest(`{"planId":"free"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.True(t, got.Success)
	assert.Equal(t, "free-jwt", got.Token)
	assert.Equal(t, models.PlanFree, got.Subscription.PlanType)
	ledger.AssertExpectations(t)
	issuer.AssertExpectations(t)
	payer.AssertNotCalled(t, "Pay", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_ProGoesThroughPayment(t *testing.T) {
	ledger, payer, issuer := new(LedgerMock), new(PayerMock), new(IssuerMock)
	payer.On("Pay", mock.Anything, "u-1", models.PlanPro).Return(&payment.Settlement{
		Payment:      &models.Payment{ID: 4, Status: models.PaymentPaid, Plan: models.PlanPro},
		ClientSecret: "sim_4",
		Simulated:    true,
		Subscription: &models.Subscription{ID: 1, UserUID: "u-1", Plan: models.PlanPro, Status: models.StatusActive},
		Token:        "pro-jwt",
	}, nil).Once()

	rec := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), ledger, payer, issuer).ServeHTTP(rec, newRequest(`{"planId":"pro"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.True(t, got.Success)
	assert.Equal(t, "pro-jwt", got.Token)
	assert.Equal(t, models.PlanPro, got.Subscription.PlanType)
	ledger.AssertNotCalled(t, "TransitionPlan", mock.Anything, mock.Anything, mock.Anything)
	issuer.AssertNotCalled(t, "Reissue", mock.Anything, mock.Anything)
}

func TestHandler_ProPendingGateway(t *testing.T) {
	ledger, payer, issuer := new(LedgerMock), new(PayerMock), new(IssuerMock)
	payer.On("Pay", mock.Anything, "u-1", models.PlanPro).Return(&payment.Settlement{
		Payment:      &models.Payment{ID: 5, Status: models.PaymentPending, Plan: models.PlanPro},
		ClientSecret: "pi_5_secret",
	}, nil).Once()

	rec := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), ledger, payer, issuer).ServeHTTP(rec, newRequest(`{"planId":"pro"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.False(t, got.Success)
	assert.Empty(t, got.Token)
	assert.Equal(t, "pi_5_secret", got.ClientSecret)
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		setup    func(*LedgerMock, *PayerMock)
		wantCode int
	}{
		{name: "unknown plan", body: `{"planId":"gold"}`, wantCode: http.StatusBadRequest},
		{name: "bad json", body: `{`, wantCode: http.StatusBadRequest},
		{
			name: "payment failure",
			body: `{"planId":"pro"}`,
			setup: func(_ *LedgerMock, p *PayerMock) {
				p.On("Pay", mock.Anything, "u-1", models.PlanPro).Return(nil, errors.New("card declined"))
			},
			wantCode: http.StatusInternalServerError,
		},
		{
			name: "ledger failure",
			body: `{"planId":"free"}`,
			setup: func(l *LedgerMock, _ *PayerMock) {
				l.On("TransitionPlan", mock.Anything, "u-1", models.PlanFree).Return(nil, errors.New("db down"))
			},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, payer, issuer := new(LedgerMock), new(PayerMock), new(IssuerMock)
			if tt.setup != nil {
				tt.setup(ledger, payer)
			}
			rec := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), ledger, payer, issuer).ServeHTTP(rec, newRequest(tt.body))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
