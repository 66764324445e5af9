package ingestion

import (
	"context"
	"time"

	paymentsvc "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/payments/service"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"
	apperrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/errors"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"
)

// Scheduler polls the email provider on a fixed interval and feeds each
// evidence item through the pipeline. A single bad item is logged and skipped;
// it never aborts the batch.
type Scheduler struct {
	source   EmailSource
	payments paymentsvc.PaymentService
	pipeline *Pipeline
	cfg      *config.Config
}

func NewScheduler(source EmailSource, payments paymentsvc.PaymentService, pipeline *Pipeline, cfg *config.Config) *Scheduler {
	return &Scheduler{
		source:   source,
		payments: payments,
		pipeline: pipeline,
		cfg:      cfg,
	}
}

// Run blocks until ctx is cancelled, executing one ingestion cycle per tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.cfg.Log.Info("Ingestion scheduler started",
		"interval", s.cfg.IngestionInterval,
		"batch_size", s.cfg.IngestionBatchSize,
	)

	ticker := time.NewTicker(s.cfg.IngestionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.cfg.Log.Info("Ingestion scheduler stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle pulls one bounded batch and processes it item by item.
func (s *Scheduler) RunCycle(ctx context.Context) {
	emails, err := s.source.FetchUnconsumed(ctx, s.cfg.EmailProviderFilter, s.cfg.IngestionBatchSize)
	if err != nil {
		s.cfg.Log.Error("Failed to fetch evidence from email provider", "error", err)
		return
	}
	if len(emails) == 0 {
		return
	}

	s.cfg.Log.Debug("Ingestion cycle started", "items", len(emails))

	processed := 0
	for _, email := range emails {
		if ctx.Err() != nil {
			return
		}
		if err := s.processItem(ctx, email); err != nil {
			s.cfg.Log.Error("Failed to ingest evidence item, skipping",
				"email_id", email.ID,
				"provider", email.Provider,
				"error", err,
			)
			continue
		}
		processed++
	}

	s.cfg.Log.Info("Ingestion cycle completed", "items", len(emails), "processed", processed)
}

func (s *Scheduler) processItem(ctx context.Context, email RawEmail) error {
	fields, err := s.source.Parse(email)
	if err != nil {
		// Malformed evidence will not parse better on re-delivery. Consume it so
		// it cannot poison every subsequent cycle.
		s.cfg.Log.Warn("Failed to parse evidence item, consuming",
			"email_id", email.ID,
			"provider", email.Provider,
			"error", err,
		)
		return s.source.MarkConsumed(ctx, email.ID)
	}

	payment := &model.Payment{
		Source:        model.SourceEmailProvider,
		ProvenanceID:  fields.ProvenanceID,
		TransactionID: fields.TransactionID,
		Amount:        fields.Amount,
		SenderName:    fields.SenderName,
		SenderPhone:   fields.SenderPhone,
		Status:        model.PaymentPending,
	}

	if err := s.payments.Record(ctx, payment); err != nil {
		// Re-delivered evidence: the original record stands, just consume.
		if apperrors.IsCode(err, apperrors.CodeDuplicate) {
			s.cfg.Log.Debug("Evidence already ingested, skipping",
				"provenance_id", fields.ProvenanceID,
			)
			return s.source.MarkConsumed(ctx, email.ID)
		}
		return err
	}

	// The payment is durable from here on. Matching failures leave it pending
	// for admin linking rather than blocking consumption.
	if _, err := s.pipeline.Process(ctx, payment); err != nil {
		s.cfg.Log.Error("Failed to match ingested payment",
			"payment_id", payment.ID,
			"error", err,
		)
	}

	return s.source.MarkConsumed(ctx, email.ID)
}
