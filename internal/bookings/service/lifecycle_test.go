package service

import (
	"context"
	"strings"
	"testing"
	"time"

	bookingserrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/errors"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"
	mongotx "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/db/mongo"
	apperrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/errors"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/logger"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Mock repositories for testing

type mockBookingRepository struct {
	createFunc                 func(ctx context.Context, b *model.Booking) error
	findByIDFunc               func(ctx context.Context, id string) (*model.Booking, error)
	findByRefFunc              func(ctx context.Context, ref string) (*model.Booking, error)
	findCandidatesFunc         func(ctx context.Context, createdAfter time.Time, limit int) ([]*model.Booking, error)
	findExpirableFunc          func(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Booking, error)
	findConflictCandidatesFunc func(ctx context.Context, propertyID string, from, to time.Time) ([]*model.Booking, error)
	findByStatusFunc           func(ctx context.Context, status string, limit int, offset int64) ([]*model.Booking, error)
	countByStatusFunc          func(ctx context.Context, status string) (int64, error)
	transitionFunc             func(ctx context.Context, id string, fromStatuses []string, set bson.M, unset bson.M) (*model.Booking, error)
}

func (m *mockBookingRepository) Create(ctx context.Context, b *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, b)
	}
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindByRef(ctx context.Context, ref string) (*model.Booking, error) {
	if m.findByRefFunc != nil {
		return m.findByRefFunc(ctx, ref)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindCandidates(ctx context.Context, createdAfter time.Time, limit int) ([]*model.Booking, error) {
	if m.findCandidatesFunc != nil {
		return m.findCandidatesFunc(ctx, createdAfter, limit)
	}
	return nil, nil
}

func (m *mockBookingRepository) FindExpirable(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Booking, error) {
	if m.findExpirableFunc != nil {
		return m.findExpirableFunc(ctx, createdBefore, limit)
	}
	return nil, nil
}

func (m *mockBookingRepository) FindConflictCandidates(ctx context.Context, propertyID string, from, to time.Time) ([]*model.Booking, error) {
	if m.findConflictCandidatesFunc != nil {
		return m.findConflictCandidatesFunc(ctx, propertyID, from, to)
	}
	return nil, nil
}

func (m *mockBookingRepository) FindByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Booking, error) {
	if m.findByStatusFunc != nil {
		return m.findByStatusFunc(ctx, status, limit, offset)
	}
	return nil, nil
}

func (m *mockBookingRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	if m.countByStatusFunc != nil {
		return m.countByStatusFunc(ctx, status)
	}
	return 0, nil
}

func (m *mockBookingRepository) Transition(ctx context.Context, id string, fromStatuses []string, set bson.M, unset bson.M) (*model.Booking, error) {
	if m.transitionFunc != nil {
		return m.transitionFunc(ctx, id, fromStatuses, set, unset)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) EnsureIndexes(ctx context.Context) error { return nil }

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockPaymentRepository struct {
	createFunc           func(ctx context.Context, p *model.Payment) error
	findByIDFunc         func(ctx context.Context, id string) (*model.Payment, error)
	findByProvenanceFunc func(ctx context.Context, provenanceID string) (*model.Payment, error)
	findByStatusFunc     func(ctx context.Context, status string, limit int, offset int64) ([]*model.Payment, error)
	countByStatusFunc    func(ctx context.Context, status string) (int64, error)
	setMatchResultFunc   func(ctx context.Context, id string, status string, confidence *int) error
	markVerifiedFunc     func(ctx context.Context, id string, bookingID string, verifiedBy string, at time.Time) error
	markRejectedFunc     func(ctx context.Context, id string, verifiedBy string, at time.Time) error
}

func (m *mockPaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, p)
	}
	return nil
}

func (m *mockPaymentRepository) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPaymentRepository) FindByProvenance(ctx context.Context, provenanceID string) (*model.Payment, error) {
	if m.findByProvenanceFunc != nil {
		return m.findByProvenanceFunc(ctx, provenanceID)
	}
	return nil, nil
}

func (m *mockPaymentRepository) FindByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Payment, error) {
	if m.findByStatusFunc != nil {
		return m.findByStatusFunc(ctx, status, limit, offset)
	}
	return nil, nil
}

func (m *mockPaymentRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	if m.countByStatusFunc != nil {
		return m.countByStatusFunc(ctx, status)
	}
	return 0, nil
}

func (m *mockPaymentRepository) SetMatchResult(ctx context.Context, id string, status string, confidence *int) error {
	if m.setMatchResultFunc != nil {
		return m.setMatchResultFunc(ctx, id, status, confidence)
	}
	return nil
}

func (m *mockPaymentRepository) MarkVerified(ctx context.Context, id string, bookingID string, verifiedBy string, at time.Time) error {
	if m.markVerifiedFunc != nil {
		return m.markVerifiedFunc(ctx, id, bookingID, verifiedBy, at)
	}
	return nil
}

func (m *mockPaymentRepository) MarkRejected(ctx context.Context, id string, verifiedBy string, at time.Time) error {
	if m.markRejectedFunc != nil {
		return m.markRejectedFunc(ctx, id, verifiedBy, at)
	}
	return nil
}

func (m *mockPaymentRepository) EnsureIndexes(ctx context.Context) error { return nil }

func (m *mockPaymentRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockDispatcher struct {
	events []model.BookingEvent
	result bool
}

func (m *mockDispatcher) Notify(ctx context.Context, event model.BookingEvent) bool {
	m.events = append(m.events, event)
	return m.result
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   logger.ERROR,
			Format:  logger.TEXT,
			Service: "test",
		}),
		BookingTTL:   15 * time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func newTestCoordinator(bookings *mockBookingRepository, payments *mockPaymentRepository, dispatcher *mockDispatcher, now time.Time) *lifecycleCoordinator {
	return &lifecycleCoordinator{
		bookings:   bookings,
		payments:   payments,
		dispatcher: dispatcher,
		cfg:        testConfig(),
		now:        func() time.Time { return now },
	}
}

func TestConfirm_Success(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	var verifiedPayment string
	confirmed := &model.Booking{
		ID:      "b1",
		Ref:     "HNF-20260831-AAAA",
		Status:  model.BookingConfirmed,
		Channel: model.ChannelWeb,
	}

	bookings := &mockBookingRepository{
		transitionFunc: func(ctx context.Context, id string, fromStatuses []string, set bson.M, unset bson.M) (*model.Booking, error) {
			if id != "b1" {
				t.Errorf("expected booking b1, got %s", id)
			}
			if len(fromStatuses) != 2 {
				t.Errorf("expected pending and waiting as source statuses, got %v", fromStatuses)
			}
			if set["status"] != model.BookingConfirmed {
				t.Errorf("expected status set to confirmed, got %v", set["status"])
			}
			if set["payment_id"] != "p1" {
				t.Errorf("expected payment_id p1, got %v", set["payment_id"])
			}
			if set["verification_method"] != model.VerifyAutoEmail {
				t.Errorf("expected method auto_email, got %v", set["verification_method"])
			}
			return confirmed, nil
		},
	}
	payments := &mockPaymentRepository{
		markVerifiedFunc: func(ctx context.Context, id string, bookingID string, verifiedBy string, at time.Time) error {
			verifiedPayment = id
			if bookingID != "b1" {
				t.Errorf("expected booking b1 on payment, got %s", bookingID)
			}
			return nil
		},
	}
	dispatcher := &mockDispatcher{result: true}

	c := newTestCoordinator(bookings, payments, dispatcher, now)
	result, err := c.Confirm(context.Background(), "b1", "p1", model.VerifyAutoEmail, "system")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Notified {
		t.Error("expected notified=true")
	}
	if result.AlreadyApplied {
		t.Error("expected already_applied=false")
	}
	if verifiedPayment != "p1" {
		t.Errorf("expected payment p1 verified, got %q", verifiedPayment)
	}
	if len(dispatcher.events) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(dispatcher.events))
	}
	if dispatcher.events[0].Type != model.EventBookingConfirmed {
		t.Errorf("expected confirmation event, got %s", dispatcher.events[0].Type)
	}
}

func TestConfirm_AlreadyConfirmedIsNoOp(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	bookings := &mockBookingRepository{
		transitionFunc: func(ctx context.Context, id string, fromStatuses []string, set bson.M, unset bson.M) (*model.Booking, error) {
			return nil, bookingserrors.ErrTransitionConflict
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: "b1", Status: model.BookingConfirmed}, nil
		},
	}
	dispatcher := &mockDispatcher{result: true}

	c := newTestCoordinator(bookings, &mockPaymentRepository{}, dispatcher, now)
	result, err := c.Confirm(context.Background(), "b1", "p1", model.VerifyManualAdmin, "admin-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.AlreadyApplied {
		t.Error("expected already_applied=true for concurrent confirm")
	}
	if len(dispatcher.events) != 0 {
		t.Errorf("expected no duplicate notification, got %d", len(dispatcher.events))
	}
}

func TestConfirm_TerminalStateRejected(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	bookings := &mockBookingRepository{
		transitionFunc: func(ctx context.Context, id string, fromStatuses []string, set bson.M, unset bson.M) (*model.Booking, error) {
			return nil, bookingserrors.ErrTransitionConflict
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: "b1", Status: model.BookingExpired}, nil
		},
	}

	c := newTestCoordinator(bookings, &mockPaymentRepository{}, &mockDispatcher{}, now)
	_, err := c.Confirm(context.Background(), "b1", "", model.VerifyManualAdmin, "admin-1")
	if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected invalid-state error, got %v", err)
	}
}

func TestConfirm_UnknownMethodRejected(t *testing.T) {
	c := newTestCoordinator(&mockBookingRepository{}, &mockPaymentRepository{}, &mockDispatcher{}, time.Now())
	_, err := c.Confirm(context.Background(), "b1", "p1", "telepathy", "admin-1")
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected invalid-input error, got %v", err)
	}
}

func TestReject_RequiresReason(t *testing.T) {
	c := newTestCoordinator(&mockBookingRepository{}, &mockPaymentRepository{}, &mockDispatcher{}, time.Now())
	_, err := c.Reject(context.Background(), "b1", "admin-1", "")
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for empty reason, got %v", err)
	}
}

func TestReject_DetachesPaymentAndNotifiesWithReason(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	var rejectedPayment, rejectedBy string
	cancelled := &model.Booking{
		ID:      "b1",
		Ref:     "HNF-20260831-BBBB",
		Status:  model.BookingCancelled,
		Channel: model.ChannelWhatsApp,
	}

	bookings := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: "b1", Status: model.BookingWaiting, PaymentID: "p1"}, nil
		},
		transitionFunc: func(ctx context.Context, id string, fromStatuses []string, set bson.M, unset bson.M) (*model.Booking, error) {
			if set["rejection_reason"] != "amount_mismatch" {
				t.Errorf("expected rejection_reason recorded, got %v", set["rejection_reason"])
			}
			if _, ok := unset["payment_id"]; !ok {
				t.Error("expected payment_id detached")
			}
			return cancelled, nil
		},
	}
	payments := &mockPaymentRepository{
		markRejectedFunc: func(ctx context.Context, id string, verifiedBy string, at time.Time) error {
			rejectedPayment = id
			rejectedBy = verifiedBy
			return nil
		},
	}
	dispatcher := &mockDispatcher{result: true}

	c := newTestCoordinator(bookings, payments, dispatcher, now)
	result, err := c.Reject(context.Background(), "b1", "admin-1", "amount_mismatch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rejectedPayment != "p1" {
		t.Errorf("expected payment p1 rejected, got %q", rejectedPayment)
	}
	if rejectedBy != "admin-1" {
		t.Errorf("expected verifier admin-1, got %q", rejectedBy)
	}
	if !result.Notified {
		t.Error("expected notified=true")
	}
	if len(dispatcher.events) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(dispatcher.events))
	}
	event := dispatcher.events[0]
	if event.Reason != "amount_mismatch" {
		t.Errorf("expected reason on event, got %q", event.Reason)
	}
	if !strings.Contains(event.Message, "amount_mismatch") {
		t.Errorf("expected literal reason in message, got %q", event.Message)
	}
}

func TestExpire_OnlyPendingPastTTL(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		booking  *model.Booking
		wantCode string
	}{
		{
			name:     "waiting booking is never swept",
			booking:  &model.Booking{ID: "b1", Status: model.BookingWaiting, CreatedAt: now.Add(-2 * time.Hour)},
			wantCode: apperrors.CodeInvalidState,
		},
		{
			name:     "young pending booking is not expired",
			booking:  &model.Booking{ID: "b1", Status: model.BookingPending, CreatedAt: now.Add(-5 * time.Minute)},
			wantCode: apperrors.CodeInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookings := &mockBookingRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
					return tt.booking, nil
				},
			}
			c := newTestCoordinator(bookings, &mockPaymentRepository{}, &mockDispatcher{}, now)
			_, err := c.Expire(context.Background(), "b1")
			if !apperrors.IsCode(err, tt.wantCode) {
				t.Fatalf("expected %s error, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestExpire_Success(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	expired := &model.Booking{
		ID:      "b1",
		Ref:     "HNF-20260831-CCCC",
		Status:  model.BookingExpired,
		Channel: model.ChannelWeb,
	}

	bookings := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: "b1", Status: model.BookingPending, CreatedAt: now.Add(-20 * time.Minute)}, nil
		},
		transitionFunc: func(ctx context.Context, id string, fromStatuses []string, set bson.M, unset bson.M) (*model.Booking, error) {
			if len(fromStatuses) != 1 || fromStatuses[0] != model.BookingPending {
				t.Errorf("expected transition from pending only, got %v", fromStatuses)
			}
			if _, ok := set["expiration_notified_at"]; !ok {
				t.Error("expected expiration_notified_at set")
			}
			return expired, nil
		},
	}
	dispatcher := &mockDispatcher{result: true}

	c := newTestCoordinator(bookings, &mockPaymentRepository{}, dispatcher, now)
	result, err := c.Expire(context.Background(), "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Notified {
		t.Error("expected notified=true")
	}
	if len(dispatcher.events) != 1 || dispatcher.events[0].Type != model.EventBookingExpired {
		t.Fatalf("expected one expiration event, got %+v", dispatcher.events)
	}
}

func TestExpire_AlreadyExpiredIsNoOp(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	bookings := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: "b1", Status: model.BookingExpired}, nil
		},
	}
	dispatcher := &mockDispatcher{result: true}

	c := newTestCoordinator(bookings, &mockPaymentRepository{}, dispatcher, now)
	result, err := c.Expire(context.Background(), "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.AlreadyApplied {
		t.Error("expected already_applied=true")
	}
	if len(dispatcher.events) != 0 {
		t.Errorf("expected no notification, got %d", len(dispatcher.events))
	}
}

func TestMarkWaiting_IsSilent(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	waiting := &model.Booking{ID: "b1", Status: model.BookingWaiting, PaymentID: "p1"}
	bookings := &mockBookingRepository{
		transitionFunc: func(ctx context.Context, id string, fromStatuses []string, set bson.M, unset bson.M) (*model.Booking, error) {
			if len(fromStatuses) != 1 || fromStatuses[0] != model.BookingPending {
				t.Errorf("expected transition from pending only, got %v", fromStatuses)
			}
			if set["payment_id"] != "p1" {
				t.Errorf("expected payment_id attached, got %v", set["payment_id"])
			}
			return waiting, nil
		},
	}
	dispatcher := &mockDispatcher{result: true}

	c := newTestCoordinator(bookings, &mockPaymentRepository{}, dispatcher, now)
	result, err := c.MarkWaiting(context.Background(), "b1", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Booking.Status != model.BookingWaiting {
		t.Errorf("expected waiting status, got %s", result.Booking.Status)
	}
	if len(dispatcher.events) != 0 {
		t.Errorf("expected no notification for escalation, got %d", len(dispatcher.events))
	}
}

func TestConfirm_NotificationFailureDoesNotFailTransition(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	bookings := &mockBookingRepository{
		transitionFunc: func(ctx context.Context, id string, fromStatuses []string, set bson.M, unset bson.M) (*model.Booking, error) {
			return &model.Booking{ID: "b1", Status: model.BookingConfirmed, Channel: model.ChannelWeb}, nil
		},
	}
	dispatcher := &mockDispatcher{result: false}

	c := newTestCoordinator(bookings, &mockPaymentRepository{}, dispatcher, now)
	result, err := c.Confirm(context.Background(), "b1", "", model.VerifyManualAdmin, "admin-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Notified {
		t.Error("expected notified=false when delivery fails")
	}
	if result.Booking.Status != model.BookingConfirmed {
		t.Errorf("expected confirmed status despite delivery failure, got %s", result.Booking.Status)
	}
}
