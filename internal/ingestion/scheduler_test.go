package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	bookingserrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/errors"
	bookingsvc "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/service"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/verification"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"
	mongotx "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/db/mongo"
	apperrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/errors"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/logger"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Mocks shared by the scheduler and pipeline tests.

type mockEmailSource struct {
	emails       []RawEmail
	fetchErr     error
	parseFunc    func(email RawEmail) (*PaymentFields, error)
	consumed     []string
	markErr      error
	fetchedLimit int
}

func (m *mockEmailSource) FetchUnconsumed(ctx context.Context, providerFilter string, maxResults int) ([]RawEmail, error) {
	m.fetchedLimit = maxResults
	return m.emails, m.fetchErr
}

func (m *mockEmailSource) Parse(email RawEmail) (*PaymentFields, error) {
	if m.parseFunc != nil {
		return m.parseFunc(email)
	}
	return &PaymentFields{ProvenanceID: email.ID, Amount: 5000}, nil
}

func (m *mockEmailSource) MarkConsumed(ctx context.Context, id string) error {
	m.consumed = append(m.consumed, id)
	return m.markErr
}

type mockPaymentService struct {
	recordFunc        func(ctx context.Context, p *model.Payment) error
	getByProvenance   func(ctx context.Context, provenanceID string) (*model.Payment, error)
	recordedPayments  []*model.Payment
	unmatchedPayments []*model.Payment
}

func (m *mockPaymentService) Record(ctx context.Context, p *model.Payment) error {
	if m.recordFunc != nil {
		if err := m.recordFunc(ctx, p); err != nil {
			return err
		}
	}
	if p.ID == "" {
		p.ID = "payment-" + p.ProvenanceID
	}
	m.recordedPayments = append(m.recordedPayments, p)
	return nil
}

func (m *mockPaymentService) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	return nil, apperrors.NotFound("Payment")
}

func (m *mockPaymentService) GetByProvenance(ctx context.Context, provenanceID string) (*model.Payment, error) {
	if m.getByProvenance != nil {
		return m.getByProvenance(ctx, provenanceID)
	}
	return nil, apperrors.NotFound("Payment")
}

func (m *mockPaymentService) ListUnmatched(ctx context.Context, limit int, offset int64) ([]*model.Payment, int64, error) {
	return m.unmatchedPayments, int64(len(m.unmatchedPayments)), nil
}

type mockLifecycle struct {
	confirmFunc     func(ctx context.Context, bookingID, paymentID, method, verifiedBy string) (*bookingsvc.TransitionResult, error)
	markWaitingFunc func(ctx context.Context, bookingID, paymentID string) (*bookingsvc.TransitionResult, error)
	confirms        []string
	escalations     []string
}

func (m *mockLifecycle) Confirm(ctx context.Context, bookingID, paymentID, method, verifiedBy string) (*bookingsvc.TransitionResult, error) {
	m.confirms = append(m.confirms, bookingID)
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, bookingID, paymentID, method, verifiedBy)
	}
	return &bookingsvc.TransitionResult{
		Booking:  &model.Booking{ID: bookingID, Status: model.BookingConfirmed, PaymentID: paymentID},
		Notified: true,
	}, nil
}

func (m *mockLifecycle) MarkWaiting(ctx context.Context, bookingID, paymentID string) (*bookingsvc.TransitionResult, error) {
	m.escalations = append(m.escalations, bookingID)
	if m.markWaitingFunc != nil {
		return m.markWaitingFunc(ctx, bookingID, paymentID)
	}
	return &bookingsvc.TransitionResult{
		Booking: &model.Booking{ID: bookingID, Status: model.BookingWaiting, PaymentID: paymentID},
	}, nil
}

func (m *mockLifecycle) Reject(ctx context.Context, bookingID, adminID, reason string) (*bookingsvc.TransitionResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockLifecycle) Expire(ctx context.Context, bookingID string) (*bookingsvc.TransitionResult, error) {
	return nil, errors.New("not implemented")
}

type mockCandidateRepo struct {
	candidates  []*model.Booking
	matchResult map[string]string // payment id -> recorded status
}

func (m *mockCandidateRepo) FindCandidates(ctx context.Context, createdAfter time.Time, limit int) ([]*model.Booking, error) {
	return m.candidates, nil
}

func (m *mockCandidateRepo) Create(ctx context.Context, b *model.Booking) error { return nil }
func (m *mockCandidateRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return nil, bookingserrors.ErrNotFound
}
func (m *mockCandidateRepo) FindByRef(ctx context.Context, ref string) (*model.Booking, error) {
	return nil, bookingserrors.ErrNotFound
}
func (m *mockCandidateRepo) FindExpirable(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Booking, error) {
	return nil, nil
}
func (m *mockCandidateRepo) FindConflictCandidates(ctx context.Context, propertyID string, from, to time.Time) ([]*model.Booking, error) {
	return nil, nil
}
func (m *mockCandidateRepo) FindByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}
func (m *mockCandidateRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	return 0, nil
}
func (m *mockCandidateRepo) Transition(ctx context.Context, id string, fromStatuses []string, set bson.M, unset bson.M) (*model.Booking, error) {
	return nil, bookingserrors.ErrNotFound
}
func (m *mockCandidateRepo) EnsureIndexes(ctx context.Context) error { return nil }
func (m *mockCandidateRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockMatchRecorder struct {
	statuses    map[string]string
	confidences map[string]*int
}

func newMockMatchRecorder() *mockMatchRecorder {
	return &mockMatchRecorder{
		statuses:    map[string]string{},
		confidences: map[string]*int{},
	}
}

func (m *mockMatchRecorder) SetMatchResult(ctx context.Context, id string, status string, confidence *int) error {
	m.statuses[id] = status
	m.confidences[id] = confidence
	return nil
}

func (m *mockMatchRecorder) Create(ctx context.Context, p *model.Payment) error { return nil }
func (m *mockMatchRecorder) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	return nil, nil
}
func (m *mockMatchRecorder) FindByProvenance(ctx context.Context, provenanceID string) (*model.Payment, error) {
	return nil, nil
}
func (m *mockMatchRecorder) FindByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Payment, error) {
	return nil, nil
}
func (m *mockMatchRecorder) CountByStatus(ctx context.Context, status string) (int64, error) {
	return 0, nil
}
func (m *mockMatchRecorder) MarkVerified(ctx context.Context, id string, bookingID string, verifiedBy string, at time.Time) error {
	return nil
}
func (m *mockMatchRecorder) MarkRejected(ctx context.Context, id string, verifiedBy string, at time.Time) error {
	return nil
}
func (m *mockMatchRecorder) EnsureIndexes(ctx context.Context) error { return nil }
func (m *mockMatchRecorder) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

func ingestionConfig(mode string) *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   logger.ERROR,
			Format:  logger.TEXT,
			Service: "test",
		}),
		DefaultMode:        mode,
		BookingTTL:         15 * time.Minute,
		IngestionInterval:  time.Minute,
		IngestionBatchSize: 25,
	}
}

func newTestPipeline(cfg *config.Config, bookings *mockCandidateRepo, payments *mockMatchRecorder, lifecycle *mockLifecycle, now time.Time) *Pipeline {
	p := NewPipeline(bookings, payments, lifecycle, verification.NewController(cfg.Log), cfg)
	p.now = func() time.Time { return now }
	return p
}

func TestRunCycle_DuplicateEvidenceIsSilentNoOp(t *testing.T) {
	cfg := ingestionConfig(config.ModeAutomated)
	source := &mockEmailSource{
		emails: []RawEmail{{ID: "msg-1", Provider: "easypaisa"}},
	}
	payments := &mockPaymentService{
		recordFunc: func(ctx context.Context, p *model.Payment) error {
			return apperrors.Duplicate("Payment evidence was already ingested")
		},
	}
	lifecycle := &mockLifecycle{}
	pipeline := newTestPipeline(cfg, &mockCandidateRepo{}, newMockMatchRecorder(), lifecycle, time.Now().UTC())

	s := NewScheduler(source, payments, pipeline, cfg)
	s.RunCycle(context.Background())

	if len(source.consumed) != 1 || source.consumed[0] != "msg-1" {
		t.Errorf("expected duplicate evidence consumed, got %v", source.consumed)
	}
	if len(lifecycle.confirms)+len(lifecycle.escalations) != 0 {
		t.Error("expected no lifecycle activity for duplicate evidence")
	}
}

func TestRunCycle_ParseErrorIsConsumedAndSkipped(t *testing.T) {
	cfg := ingestionConfig(config.ModeAutomated)
	source := &mockEmailSource{
		emails: []RawEmail{{ID: "msg-bad"}},
		parseFunc: func(email RawEmail) (*PaymentFields, error) {
			return nil, errors.New("garbled payload")
		},
	}
	payments := &mockPaymentService{}

	s := NewScheduler(source, payments, newTestPipeline(cfg, &mockCandidateRepo{}, newMockMatchRecorder(), &mockLifecycle{}, time.Now().UTC()), cfg)
	s.RunCycle(context.Background())

	if len(payments.recordedPayments) != 0 {
		t.Error("expected no payment recorded for unparseable evidence")
	}
	if len(source.consumed) != 1 {
		t.Errorf("expected bad evidence consumed, got %v", source.consumed)
	}
}

func TestRunCycle_OneFailureDoesNotAbortBatch(t *testing.T) {
	cfg := ingestionConfig(config.ModeAutomated)
	source := &mockEmailSource{
		emails: []RawEmail{{ID: "msg-1"}, {ID: "msg-2"}},
	}
	payments := &mockPaymentService{
		recordFunc: func(ctx context.Context, p *model.Payment) error {
			if p.ProvenanceID == "msg-1" {
				return apperrors.Internal("db down", errors.New("timeout"))
			}
			return nil
		},
	}

	s := NewScheduler(source, payments, newTestPipeline(cfg, &mockCandidateRepo{}, newMockMatchRecorder(), &mockLifecycle{}, time.Now().UTC()), cfg)
	s.RunCycle(context.Background())

	if len(source.consumed) != 1 || source.consumed[0] != "msg-2" {
		t.Errorf("expected only msg-2 consumed, got %v", source.consumed)
	}
	if len(payments.recordedPayments) != 1 {
		t.Fatalf("expected second item recorded despite first failing, got %d", len(payments.recordedPayments))
	}
}

func TestRunCycle_MatchedEvidenceConfirmsBooking(t *testing.T) {
	t.Setenv(config.EnvVerificationMode, "")
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cfg := ingestionConfig(config.ModeAutomated)

	source := &mockEmailSource{
		emails: []RawEmail{{ID: "msg-1"}},
		parseFunc: func(email RawEmail) (*PaymentFields, error) {
			return &PaymentFields{ProvenanceID: email.ID, Amount: 5000}, nil
		},
	}
	bookings := &mockCandidateRepo{
		candidates: []*model.Booking{{
			ID:        "b1",
			Amount:    5000,
			Status:    model.BookingPending,
			CreatedAt: now.Add(-3 * time.Minute),
		}},
	}
	lifecycle := &mockLifecycle{}

	s := NewScheduler(source, &mockPaymentService{}, newTestPipeline(cfg, bookings, newMockMatchRecorder(), lifecycle, now), cfg)
	s.RunCycle(context.Background())

	if len(lifecycle.confirms) != 1 || lifecycle.confirms[0] != "b1" {
		t.Errorf("expected booking b1 confirmed, got %v", lifecycle.confirms)
	}
	if len(source.consumed) != 1 {
		t.Errorf("expected evidence consumed after persistence, got %v", source.consumed)
	}
}
