package service

import (
	"context"
	"errors"
	"sync"

	paymentserrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/payments/errors"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/payments/repository"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"
	apperrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/errors"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/sanitizer"
)

type PaymentService interface {
	// Record persists newly detected payment evidence. Re-submitting evidence
	// with a provenance ID that was already ingested returns a Duplicate error
	// and leaves the original record untouched.
	Record(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id string) (*model.Payment, error)
	GetByProvenance(ctx context.Context, provenanceID string) (*model.Payment, error)
	// ListUnmatched lists payments no booking claimed, for the admin dashboard.
	ListUnmatched(ctx context.Context, limit int, offset int64) ([]*model.Payment, int64, error)
}

type paymentService struct {
	repo repository.PaymentRepository
	cfg  *config.Config
}

func NewPaymentService(repo repository.PaymentRepository, cfg *config.Config) PaymentService {
	return &paymentService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *paymentService) Record(ctx context.Context, payment *model.Payment) error {
	s.sanitize(payment)
	if payment.ProvenanceID == "" {
		return apperrors.InvalidInput("Payment provenance ID cannot be empty")
	}
	if payment.Amount <= 0 {
		return apperrors.InvalidInput("Payment amount must be positive")
	}
	if payment.Status == "" {
		payment.Status = model.PaymentPending
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		if errors.Is(err, paymentserrors.ErrDuplicateProvenance) {
			return apperrors.Duplicate("Payment evidence was already ingested")
		}
		return apperrors.Internal("Failed to record payment", err)
	}

	s.cfg.Log.Info("Payment recorded",
		"id", payment.ID,
		"source", payment.Source,
		"provenance_id", payment.ProvenanceID,
		"amount", payment.Amount,
	)
	return nil
}

func (s *paymentService) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Payment ID cannot be empty")
	}

	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, paymentserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Payment", id)
		}
		if errors.Is(err, paymentserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid payment ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve payment", err)
	}

	return payment, nil
}

func (s *paymentService) GetByProvenance(ctx context.Context, provenanceID string) (*model.Payment, error) {
	if provenanceID == "" {
		return nil, apperrors.InvalidInput("Provenance ID cannot be empty")
	}

	payment, err := s.repo.FindByProvenance(ctx, provenanceID)
	if err != nil {
		if errors.Is(err, paymentserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Payment", provenanceID)
		}
		return nil, apperrors.Internal("Failed to retrieve payment", err)
	}

	return payment, nil
}

func (s *paymentService) ListUnmatched(ctx context.Context, limit int, offset int64) ([]*model.Payment, int64, error) {
	var count int64
	var payments []*model.Payment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByStatus(ctx, model.PaymentUnmatched)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count unmatched payments", "error", errCount)
			errCount = apperrors.Internal("Failed to count payments", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		payments, errFind = s.repo.FindByStatus(ctx, model.PaymentUnmatched, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list unmatched payments", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve payments", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return payments, count, nil
}

func (s *paymentService) sanitize(p *model.Payment) {
	p.ProvenanceID = sanitizer.TrimAndNormalize(p.ProvenanceID)
	p.TransactionID = sanitizer.TrimAndNormalize(p.TransactionID)
	p.SenderName = sanitizer.NormalizeName(p.SenderName)
	if p.SenderPhone != "" {
		p.SenderPhone = sanitizer.NormalizePhone(p.SenderPhone)
	}
}
