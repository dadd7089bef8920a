package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/models"
	"github.com/magabrotheeeer/filesfy/internal/paymentprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreatePayment(ctx context.Context, p models.Payment) (*models.Payment, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockRepository) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockRepository) GetPaymentByGatewayRef(ctx context.Context, ref string) (*models.Payment, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockRepository) SetGatewayRef(ctx context.Context, id int64, ref string) error {
	return m.Called(ctx, id, ref).Error(0)
}

func (m *MockRepository) SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (bool, error) {
	args := m.Called(ctx, id, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkPlanApplied(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListPayments(ctx context.Context, userUID string) ([]*models.Payment, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) CreateDefault(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockLedger) CurrentFor(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockLedger) TransitionPlan(ctx context.Context, userUID string, plan models.Plan) (*models.Subscription, error) {
	args := m.Called(ctx, userUID, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockLedger) PriceOf(plan models.Plan) (int64, bool) {
	switch plan {
	case models.PlanFree:
		return 0, true
	case models.PlanPro:
		return 1599, true
	}
	return 0, false
}

func (m *MockLedger) Publish(ctx context.Context, event models.PlanChanged) {
	m.Called(ctx, event)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, req paymentprovider.IntentRequest) (*paymentprovider.Intent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Intent), args.Error(1)
}

type MockIssuer struct {
	mock.Mock
}

func (m *MockIssuer) Reissue(ctx context.Context, userUID string) (string, error) {
	args := m.Called(ctx, userUID)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func sub(plan models.Plan) *models.Subscription {
	return &models.Subscription{ID: 7, UserUID: "u-1", Plan: plan, Status: models.StatusActive}
}

func pending(id int64) *models.Payment {
	return &models.Payment{
		ID:       id,
		UserUID:  "u-1",
		Plan:     models.PlanPro,
		Amount:   1599,
		Currency: "brl",
		Status:   models.PaymentPending,
	}
}

func paid(id int64) *models.Payment {
	p := pending(id)
	p.Status = models.PaymentPaid
	return p
}

func applied(id int64) *models.Payment {
	p := paid(id)
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	p.PlanAppliedAt = &at
	return p
}

func cancelled(id int64) *models.Payment {
	p := pending(id)
	p.Status = models.PaymentFailed
	return p
}

func TestService_CreateIntent(t *testing.T) {
	tests := []struct {
		name       string
		userUID    string
		plan       models.Plan
		setupMocks func(r *MockRepository, l *MockLedger)
		wantErr    error
	}{
		{
			name:    "pro plan creates pending payment",
			userUID: "u-1",
			plan:    models.PlanPro,
			setupMocks: func(r *MockRepository, l *MockLedger) {
				l.On("CurrentFor", mock.Anything, "u-1").Return(sub(models.PlanFree), nil).Once()
				r.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
					return p.Amount == 1599 && p.Currency == "brl" && p.Plan == models.PlanPro &&
						p.SubscriptionID != nil && *p.SubscriptionID == 7
				})).Return(pending(1), nil).Once()
			},
		},
		{
			name:       "free plan requires no payment",
			userUID:    "u-1",
			plan:       models.PlanFree,
			setupMocks: func(_ *MockRepository, _ *MockLedger) {},
			wantErr:    apperr.ErrValidation,
		},
		{
			name:       "unknown plan",
			userUID:    "u-1",
			plan:       models.Plan("GOLD"),
			setupMocks: func(_ *MockRepository, _ *MockLedger) {},
			wantErr:    apperr.ErrValidation,
		},
		{
			name:       "missing user",
			userUID:    "",
			plan:       models.PlanPro,
			setupMocks: func(_ *MockRepository, _ *MockLedger) {},
			wantErr:    apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := new(MockRepository)
			l := new(MockLedger)
			tt.setupMocks(r, l)
			s := New(r, l, nil, nil, nil, "brl", newNoopLogger())

			got, err := s.CreateIntent(context.Background(), tt.userUID, tt.plan)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, models.PaymentPending, got.Status)
			}
			r.AssertExpectations(t)
			l.AssertExpectations(t)
		})
	}
}

func TestService_SettleSimulated_Idempotent(t *testing.T) {
	r := new(MockRepository)
	l := new(MockLedger)
	is := new(MockIssuer)
	s := New(r, l, nil, is, nil, "brl", newNoopLogger())
	ctx := context.Background()

	r.On("GetPayment", mock.Anything, int64(5)).Return(pending(5), nil).Once()
	r.On("SetPaymentStatus", mock.Anything, int64(5), models.PaymentPaid).Return(true, nil).Once()
	l.On("TransitionPlan", mock.Anything, "u-1", models.PlanPro).Return(sub(models.PlanPro), nil).Once()
	r.On("MarkPlanApplied", mock.Anything, int64(5)).Return(true, nil).Once()
	l.On("Publish", mock.Anything, mock.MatchedBy(func(e models.PlanChanged) bool {
		return e.PaymentID == 5 && e.Plan == models.PlanPro && e.Source == "simulated"
	})).Once()
	l.On("CurrentFor", mock.Anything, "u-1").Return(sub(models.PlanPro), nil).Twice()
	is.On("Reissue", mock.Anything, "u-1").Return("token-pro", nil).Twice()

	first, err := s.Settle(ctx, 5)
	require.NoError(t, err)
	assert.True(t, first.Simulated)
	assert.Equal(t, "sim_5", first.ClientSecret)
	assert.Equal(t, models.PaymentPaid, first.Payment.Status)
	assert.Equal(t, models.PlanPro, first.Subscription.Plan)
	assert.Equal(t, "token-pro", first.Token)
	assert.True(t, first.Payment.PlanApplied())

	r.On("GetPayment", mock.Anything, int64(5)).Return(applied(5), nil).Once()

	second, err := s.Settle(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, first.ClientSecret, second.ClientSecret)
	assert.Equal(t, models.PaymentPaid, second.Payment.Status)

	r.AssertExpectations(t)
	l.AssertExpectations(t)
	is.AssertExpectations(t)
}

func TestService_SettleSimulated_LostRace(t *testing.T) {
	r := new(MockRepository)
	l := new(MockLedger)
	s := New(r, l, nil, nil, nil, "brl", newNoopLogger())

	r.On("GetPayment", mock.Anything, int64(5)).Return(pending(5), nil).Once()
	r.On("SetPaymentStatus", mock.Anything, int64(5), models.PaymentPaid).Return(false, nil).Once()
	r.On("GetPayment", mock.Anything, int64(5)).Return(paid(5), nil).Once()
	l.On("CurrentFor", mock.Anything, "u-1").Return(sub(models.PlanPro), nil).Once()

	res, err := s.Settle(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, res.Payment.Status)

	l.AssertNotCalled(t, "TransitionPlan", mock.Anything, mock.Anything, mock.Anything)
	r.AssertExpectations(t)
	l.AssertExpectations(t)
}

func TestService_SettleSimulated_RepairsMissingSubscription(t *testing.T) {
	r := new(MockRepository)
	l := new(MockLedger)
	s := New(r, l, nil, nil, nil, "brl", newNoopLogger())

	r.On("GetPayment", mock.Anything, int64(5)).Return(pending(5), nil).Once()
	r.On("SetPaymentStatus", mock.Anything, int64(5), models.PaymentPaid).Return(true, nil).Once()
	l.On("TransitionPlan", mock.Anything, "u-1", models.PlanPro).Return(nil, apperr.ErrPrecondition).Once()
	l.On("CreateDefault", mock.Anything, "u-1").Return(sub(models.PlanFree), nil).Once()
	l.On("TransitionPlan", mock.Anything, "u-1", models.PlanPro).Return(sub(models.PlanPro), nil).Once()
	r.On("MarkPlanApplied", mock.Anything, int64(5)).Return(true, nil).Once()
	l.On("Publish", mock.Anything, mock.Anything).Once()
	l.On("CurrentFor", mock.Anything, "u-1").Return(sub(models.PlanPro), nil).Once()

	res, err := s.Settle(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, res.Subscription.Plan)
	l.AssertExpectations(t)
}

func TestService_Settle_FailedPayment(t *testing.T) {
	r := new(MockRepository)
	failed := pending(5)
	failed.Status = models.PaymentFailed
	r.On("GetPayment", mock.Anything, int64(5)).Return(failed, nil).Once()
	r.On("GetPayment", mock.Anything, int64(6)).Return(nil, apperr.ErrNotFound).Once()
	s := New(r, new(MockLedger), nil, nil, nil, "brl", newNoopLogger())

	_, err := s.Settle(context.Background(), 5)
	require.ErrorIs(t, err, apperr.ErrPrecondition)

	_, err = s.Settle(context.Background(), 6)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_SettleGateway(t *testing.T) {
	r := new(MockRepository)
	l := new(MockLedger)
	g := new(MockGateway)
	s := New(r, l, g, nil, nil, "brl", newNoopLogger())

	r.On("GetPayment", mock.Anything, int64(5)).Return(pending(5), nil).Once()
	g.On("CreatePaymentIntent", mock.Anything, paymentprovider.IntentRequest{
		PaymentID: 5,
		UserUID:   "u-1",
		Plan:      models.PlanPro,
		Amount:    1599,
		Currency:  "brl",
	}).Return(&paymentprovider.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil).Once()
	r.On("SetGatewayRef", mock.Anything, int64(5), "pi_1").Return(nil).Once()

	res, err := s.Settle(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, res.Simulated)
	assert.Equal(t, "pi_1_secret", res.ClientSecret)
	assert.Equal(t, models.PaymentPending, res.Payment.Status, "gateway payments stay pending until confirmation")
	require.NotNil(t, res.Payment.GatewayRef)
	assert.Equal(t, "pi_1", *res.Payment.GatewayRef)

	l.AssertNotCalled(t, "TransitionPlan", mock.Anything, mock.Anything, mock.Anything)
	r.AssertExpectations(t)
	g.AssertExpectations(t)
}

func TestService_SettleGateway_Error(t *testing.T) {
	r := new(MockRepository)
	g := new(MockGateway)
	s := New(r, new(MockLedger), g, nil, nil, "brl", newNoopLogger())

	r.On("GetPayment", mock.Anything, int64(5)).Return(pending(5), nil).Once()
	g.On("CreatePaymentIntent", mock.Anything, mock.Anything).Return(nil, errors.New("card declined")).Once()

	_, err := s.Settle(context.Background(), 5)
	require.Error(t, err)
	r.AssertNotCalled(t, "SetGatewayRef", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_OnGatewayConfirmation(t *testing.T) {
	succeeded := models.GatewayEvent{ID: "evt_1", Type: paymentprovider.EventPaymentSucceeded, GatewayRef: "pi_1"}

	tests := []struct {
		name       string
		event      models.GatewayEvent
		setupMocks func(r *MockRepository, l *MockLedger)
		want       Ack
		wantErr    bool
	}{
		{
			name:  "first delivery applies transition",
			event: succeeded,
			setupMocks: func(r *MockRepository, l *MockLedger) {
				r.On("GetPaymentByGatewayRef", mock.Anything, "pi_1").Return(pending(5), nil).Once()
				r.On("SetPaymentStatus", mock.Anything, int64(5), models.PaymentPaid).Return(true, nil).Once()
				l.On("TransitionPlan", mock.Anything, "u-1", models.PlanPro).Return(sub(models.PlanPro), nil).Once()
				r.On("MarkPlanApplied", mock.Anything, int64(5)).Return(true, nil).Once()
				l.On("Publish", mock.Anything, mock.MatchedBy(func(e models.PlanChanged) bool {
					return e.Source == "gateway"
				})).Once()
			},
			want: Ack{Matched: true, Applied: true},
		},
		{
			name:  "redelivery is acknowledged without transition",
			event: succeeded,
			setupMocks: func(r *MockRepository, _ *MockLedger) {
				r.On("GetPaymentByGatewayRef", mock.Anything, "pi_1").Return(applied(5), nil).Once()
			},
			want: Ack{Matched: true},
		},
		{
			name:  "redelivery after interrupted settlement applies plan once",
			event: succeeded,
			setupMocks: func(r *MockRepository, l *MockLedger) {
				r.On("GetPaymentByGatewayRef", mock.Anything, "pi_1").Return(paid(5), nil).Once()
				l.On("TransitionPlan", mock.Anything, "u-1", models.PlanPro).Return(sub(models.PlanPro), nil).Once()
				r.On("MarkPlanApplied", mock.Anything, int64(5)).Return(true, nil).Once()
				l.On("Publish", mock.Anything, mock.Anything).Once()
			},
			want: Ack{Matched: true, Applied: true},
		},
		{
			name:  "concurrent delivery loses the race",
			event: succeeded,
			setupMocks: func(r *MockRepository, _ *MockLedger) {
				r.On("GetPaymentByGatewayRef", mock.Anything, "pi_1").Return(pending(5), nil).Once()
				r.On("SetPaymentStatus", mock.Anything, int64(5), models.PaymentPaid).Return(false, nil).Once()
				r.On("GetPayment", mock.Anything, int64(5)).Return(paid(5), nil).Once()
			},
			want: Ack{Matched: true},
		},
		{
			name:  "unknown reference is acknowledged",
			event: succeeded,
			setupMocks: func(r *MockRepository, _ *MockLedger) {
				r.On("GetPaymentByGatewayRef", mock.Anything, "pi_1").Return(nil, apperr.ErrNotFound).Once()
			},
			want: Ack{},
		},
		{
			name: "falls back to metadata payment id",
			event: models.GatewayEvent{
				ID:         "evt_2",
				Type:       paymentprovider.EventPaymentSucceeded,
				GatewayRef: "pi_9",
				Metadata: map[string]string{
					paymentprovider.MetadataPaymentID: "5",
					paymentprovider.MetadataUserUID:   "u-1",
				},
			},
			setupMocks: func(r *MockRepository, l *MockLedger) {
				r.On("GetPaymentByGatewayRef", mock.Anything, "pi_9").Return(nil, apperr.ErrNotFound).Once()
				r.On("GetPayment", mock.Anything, int64(5)).Return(pending(5), nil).Once()
				r.On("SetGatewayRef", mock.Anything, int64(5), "pi_9").Return(nil).Once()
				r.On("SetPaymentStatus", mock.Anything, int64(5), models.PaymentPaid).Return(true, nil).Once()
				l.On("TransitionPlan", mock.Anything, "u-1", models.PlanPro).Return(sub(models.PlanPro), nil).Once()
				r.On("MarkPlanApplied", mock.Anything, int64(5)).Return(true, nil).Once()
				l.On("Publish", mock.Anything, mock.Anything).Once()
			},
			want: Ack{Matched: true, Applied: true},
		},
		{
			name: "metadata of another user is ignored",
			event: models.GatewayEvent{
				ID:   "evt_3",
				Type: paymentprovider.EventPaymentSucceeded,
				Metadata: map[string]string{
					paymentprovider.MetadataPaymentID: "5",
					paymentprovider.MetadataUserUID:   "intruder",
				},
			},
			setupMocks: func(r *MockRepository, _ *MockLedger) {
				r.On("GetPayment", mock.Anything, int64(5)).Return(pending(5), nil).Once()
			},
			want: Ack{},
		},
		{
			name:  "failed attempt keeps payment pending",
			event: models.GatewayEvent{ID: "evt_4", Type: paymentprovider.EventPaymentFailed, GatewayRef: "pi_1"},
			setupMocks: func(r *MockRepository, _ *MockLedger) {
				r.On("GetPaymentByGatewayRef", mock.Anything, "pi_1").Return(pending(5), nil).Once()
			},
			want: Ack{Matched: true},
		},
		{
			name:  "cancelled intent fails payment",
			event: models.GatewayEvent{ID: "evt_6", Type: paymentprovider.EventPaymentCanceled, GatewayRef: "pi_1"},
			setupMocks: func(r *MockRepository, _ *MockLedger) {
				r.On("GetPaymentByGatewayRef", mock.Anything, "pi_1").Return(pending(5), nil).Once()
				r.On("SetPaymentStatus", mock.Anything, int64(5), models.PaymentFailed).Return(true, nil).Once()
			},
			want: Ack{Matched: true, Applied: true},
		},
		{
			name:  "success for cancelled payment is acknowledged",
			event: succeeded,
			setupMocks: func(r *MockRepository, _ *MockLedger) {
				r.On("GetPaymentByGatewayRef", mock.Anything, "pi_1").Return(cancelled(5), nil).Once()
			},
			want: Ack{Matched: true},
		},
		{
			name:       "other events are ignored",
			event:      models.GatewayEvent{ID: "evt_5", Type: "charge.refunded"},
			setupMocks: func(_ *MockRepository, _ *MockLedger) {},
			want:       Ack{},
		},
		{
			name:  "store outage is returned for retry",
			event: succeeded,
			setupMocks: func(r *MockRepository, _ *MockLedger) {
				r.On("GetPaymentByGatewayRef", mock.Anything, "pi_1").Return(nil, apperr.ErrStoreUnavailable).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := new(MockRepository)
			l := new(MockLedger)
			tt.setupMocks(r, l)
			s := New(r, l, new(MockGateway), nil, nil, "brl", newNoopLogger())

			got, err := s.OnGatewayConfirmation(context.Background(), tt.event)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			r.AssertExpectations(t)
			l.AssertExpectations(t)
		})
	}
}

func TestService_OnGatewayConfirmation_FailedThenSucceeded(t *testing.T) {
	r := new(MockRepository)
	l := new(MockLedger)
	s := New(r, l, new(MockGateway), nil, nil, "brl", newNoopLogger())
	ctx := context.Background()

	r.On("GetPaymentByGatewayRef", mock.Anything, "pi_1").Return(pending(5), nil).Twice()
	r.On("SetPaymentStatus", mock.Anything, int64(5), models.PaymentPaid).Return(true, nil).Once()
	l.On("TransitionPlan", mock.Anything, "u-1", models.PlanPro).Return(sub(models.PlanPro), nil).Once()
	r.On("MarkPlanApplied", mock.Anything, int64(5)).Return(true, nil).Once()
	l.On("Publish", mock.Anything, mock.Anything).Once()

	ack, err := s.OnGatewayConfirmation(ctx, models.GatewayEvent{
		ID: "evt_1", Type: paymentprovider.EventPaymentFailed, GatewayRef: "pi_1",
	})
	require.NoError(t, err)
	assert.Equal(t, Ack{Matched: true}, ack)

	ack, err = s.OnGatewayConfirmation(ctx, models.GatewayEvent{
		ID: "evt_2", Type: paymentprovider.EventPaymentSucceeded, GatewayRef: "pi_1",
	})
	require.NoError(t, err)
	assert.Equal(t, Ack{Matched: true, Applied: true}, ack)

	r.AssertNotCalled(t, "SetPaymentStatus", mock.Anything, int64(5), models.PaymentFailed)
	r.AssertExpectations(t)
	l.AssertExpectations(t)
}

func TestService_ReplayAfterDowngradeKeepsPlan(t *testing.T) {
	t.Run("gateway redelivery", func(t *testing.T) {
		r := new(MockRepository)
		l := new(MockLedger)
		s := New(r, l, new(MockGateway), nil, nil, "brl", newNoopLogger())

		r.On("GetPaymentByGatewayRef", mock.Anything, "pi_1").Return(applied(5), nil).Once()

		ack, err := s.OnGatewayConfirmation(context.Background(), models.GatewayEvent{
			ID: "evt_1", Type: paymentprovider.EventPaymentSucceeded, GatewayRef: "pi_1",
		})
		require.NoError(t, err)
		assert.Equal(t, Ack{Matched: true}, ack)
		l.AssertNotCalled(t, "TransitionPlan", mock.Anything, mock.Anything, mock.Anything)
		l.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("simulated settle twice", func(t *testing.T) {
		r := new(MockRepository)
		l := new(MockLedger)
		s := New(r, l, nil, nil, nil, "brl", newNoopLogger())

		r.On("GetPayment", mock.Anything, int64(8)).Return(applied(8), nil).Once()
		l.On("CurrentFor", mock.Anything, "u-1").Return(sub(models.PlanFree), nil).Once()

		res, err := s.Settle(context.Background(), 8)
		require.NoError(t, err)
		assert.Equal(t, models.PlanFree, res.Subscription.Plan)
		l.AssertNotCalled(t, "TransitionPlan", mock.Anything, mock.Anything, mock.Anything)
		l.AssertNotCalled(t, "CreateDefault", mock.Anything, mock.Anything)
	})

	t.Run("gateway settle on paid payment", func(t *testing.T) {
		r := new(MockRepository)
		l := new(MockLedger)
		g := new(MockGateway)
		s := New(r, l, g, nil, nil, "brl", newNoopLogger())

		r.On("GetPayment", mock.Anything, int64(8)).Return(applied(8), nil).Once()
		l.On("CurrentFor", mock.Anything, "u-1").Return(nil, nil).Once()

		res, err := s.Settle(context.Background(), 8)
		require.NoError(t, err)
		assert.Nil(t, res.Subscription)
		l.AssertNotCalled(t, "TransitionPlan", mock.Anything, mock.Anything, mock.Anything)
		g.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
	})
}

func TestService_Pay(t *testing.T) {
	r := new(MockRepository)
	l := new(MockLedger)
	s := New(r, l, nil, nil, nil, "brl", newNoopLogger())

	l.On("CurrentFor", mock.Anything, "u-1").Return(sub(models.PlanFree), nil).Once()
	r.On("CreatePayment", mock.Anything, mock.Anything).Return(pending(3), nil).Once()
	r.On("GetPayment", mock.Anything, int64(3)).Return(pending(3), nil).Once()
	r.On("SetPaymentStatus", mock.Anything, int64(3), models.PaymentPaid).Return(true, nil).Once()
	l.On("TransitionPlan", mock.Anything, "u-1", models.PlanPro).Return(sub(models.PlanPro), nil).Once()
	r.On("MarkPlanApplied", mock.Anything, int64(3)).Return(true, nil).Once()
	l.On("Publish", mock.Anything, mock.Anything).Once()
	l.On("CurrentFor", mock.Anything, "u-1").Return(sub(models.PlanPro), nil).Once()

	res, err := s.Pay(context.Background(), "u-1", models.PlanPro)
	require.NoError(t, err)
	assert.Equal(t, "sim_3", res.ClientSecret)
	assert.Equal(t, models.PlanPro, res.Subscription.Plan)
	r.AssertExpectations(t)
	l.AssertExpectations(t)
}

func TestService_History(t *testing.T) {
	r := new(MockRepository)
	r.On("ListPayments", mock.Anything, "u-1").Return([]*models.Payment{paid(1), pending(2)}, nil).Once()
	r.On("ListPayments", mock.Anything, "u-2").Return(nil, nil).Once()
	s := New(r, new(MockLedger), nil, nil, nil, "brl", newNoopLogger())

	list, err := s.History(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = s.History(context.Background(), "u-2")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
