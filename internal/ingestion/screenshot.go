package ingestion

import (
	"context"
	"fmt"

	bookingsvc "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/service"
	paymentsvc "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/payments/service"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"
	apperrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/errors"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"
)

// SubmissionResult is returned to the customer-facing surface after a
// screenshot upload.
type SubmissionResult struct {
	Booking *model.Booking `json:"booking"`
	Payment *model.Payment `json:"payment"`
}

// ScreenshotService handles request-driven evidence: a customer uploads a
// payment screenshot for their booking. Whatever the matching outcome, the
// submitted booking leaves Pending so the expiration sweep cannot take it while
// evidence is on file.
type ScreenshotService struct {
	extractor ScreenshotExtractor
	bookings  bookingsvc.BookingService
	lifecycle bookingsvc.LifecycleCoordinator
	payments  paymentsvc.PaymentService
	pipeline  *Pipeline
	cfg       *config.Config
}

func NewScreenshotService(
	extractor ScreenshotExtractor,
	bookings bookingsvc.BookingService,
	lifecycle bookingsvc.LifecycleCoordinator,
	payments paymentsvc.PaymentService,
	pipeline *Pipeline,
	cfg *config.Config,
) *ScreenshotService {
	return &ScreenshotService{
		extractor: extractor,
		bookings:  bookings,
		lifecycle: lifecycle,
		payments:  payments,
		pipeline:  pipeline,
		cfg:       cfg,
	}
}

func (s *ScreenshotService) Submit(ctx context.Context, bookingID, imageRef string) (*SubmissionResult, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if imageRef == "" {
		return nil, apperrors.InvalidInput("Image reference cannot be empty")
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Terminal() {
		return nil, apperrors.InvalidState(
			fmt.Sprintf("Booking in status %q cannot accept payment evidence", booking.Status))
	}

	fields, err := s.extractor.Extract(ctx, imageRef)
	if err != nil {
		s.cfg.Log.Warn("Failed to extract payment fields from screenshot",
			"booking_id", bookingID,
			"image_ref", imageRef,
			"error", err,
		)
		return nil, apperrors.Validation("Could not read payment details from the screenshot",
			map[string]any{"image_ref": imageRef})
	}
	if fields.ProvenanceID == "" {
		fields.ProvenanceID = imageRef
	}

	payment := &model.Payment{
		Source:        model.SourceScreenshotAI,
		ProvenanceID:  fields.ProvenanceID,
		TransactionID: fields.TransactionID,
		Amount:        fields.Amount,
		SenderName:    fields.SenderName,
		SenderPhone:   fields.SenderPhone,
		Status:        model.PaymentPending,
	}

	if err := s.payments.Record(ctx, payment); err != nil {
		if !apperrors.IsCode(err, apperrors.CodeDuplicate) {
			return nil, err
		}
		// Re-submitted screenshot: reuse the original record and fall through so
		// the booking still gets parked.
		payment, err = s.payments.GetByProvenance(ctx, fields.ProvenanceID)
		if err != nil {
			return nil, err
		}
		// A settled payment is spent: re-scoring it could confirm a second
		// booking off the same evidence. Park the submission without it.
		if payment.Status == model.PaymentVerified || payment.Status == model.PaymentRejected {
			s.cfg.Log.Warn("Re-submitted evidence references a settled payment",
				"booking_id", booking.ID,
				"payment_id", payment.ID,
				"payment_status", payment.Status,
			)
			return s.park(ctx, booking, payment, "")
		}
	}

	outcome, err := s.pipeline.Process(ctx, payment)
	if err != nil {
		return nil, err
	}

	if confirmed := outcome.Booking; confirmed != nil && confirmed.ID == booking.ID {
		return &SubmissionResult{Booking: confirmed, Payment: payment}, nil
	}

	// The evidence resolved elsewhere or nowhere. Park the submitted booking for
	// admin review; attach the payment only if it is still unclaimed.
	attachID := payment.ID
	if outcome.Booking != nil {
		attachID = ""
	}
	return s.park(ctx, booking, payment, attachID)
}

// park moves the submitted booking to Waiting so the expiration sweep cannot
// take it while evidence is on file.
func (s *ScreenshotService) park(ctx context.Context, booking *model.Booking, payment *model.Payment, attachID string) (*SubmissionResult, error) {
	res, err := s.lifecycle.MarkWaiting(ctx, booking.ID, attachID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeInvalidState) {
			// Confirmed or cancelled under us; return the current snapshot.
			current, gerr := s.bookings.GetByID(ctx, booking.ID)
			if gerr != nil {
				return nil, gerr
			}
			return &SubmissionResult{Booking: current, Payment: payment}, nil
		}
		return nil, err
	}

	return &SubmissionResult{Booking: res.Booking, Payment: payment}, nil
}
