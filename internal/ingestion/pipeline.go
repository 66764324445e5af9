package ingestion

import (
	"context"
	"time"

	bookingrepo "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/repository"
	bookingsvc "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/service"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/matching"
	paymentrepo "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/payments/repository"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/verification"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"
	apperrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/errors"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"
)

// maxCandidateScan bounds the eligible-booking scan per payment. The eligibility
// window is minutes wide, so the true candidate set is small.
const maxCandidateScan = 200

// Outcome reports what one payment caused.
type Outcome struct {
	Payment  *model.Payment
	Booking  *model.Booking
	Decision verification.Decision
}

// Pipeline runs one payment through match, decide and transition. It is shared
// by the email scheduler and the screenshot submission path.
type Pipeline struct {
	bookings   bookingrepo.BookingRepository
	payments   paymentrepo.PaymentRepository
	lifecycle  bookingsvc.LifecycleCoordinator
	controller *verification.Controller
	cfg        *config.Config
	now        func() time.Time
}

func NewPipeline(
	bookings bookingrepo.BookingRepository,
	payments paymentrepo.PaymentRepository,
	lifecycle bookingsvc.LifecycleCoordinator,
	controller *verification.Controller,
	cfg *config.Config,
) *Pipeline {
	return &Pipeline{
		bookings:   bookings,
		payments:   payments,
		lifecycle:  lifecycle,
		controller: controller,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Process matches the already-persisted payment against current candidates and
// applies the mode-driven decision. The candidate scan is a snapshot read; a
// booking created after the scan simply waits for the next evidence item.
func (p *Pipeline) Process(ctx context.Context, payment *model.Payment) (*Outcome, error) {
	now := p.now()

	candidates, err := p.bookings.FindCandidates(ctx, now.Add(-p.cfg.BookingTTL), maxCandidateScan)
	if err != nil {
		return nil, apperrors.Internal("Failed to scan candidate bookings", err)
	}

	result := matching.Match(payment, candidates, now, p.cfg.BookingTTL)
	mode := p.cfg.VerificationMode()
	decision := p.controller.Decide(mode, result)

	outcome := &Outcome{Payment: payment, Decision: decision}

	switch decision {
	case verification.DecisionNoMatch:
		if err := p.payments.SetMatchResult(ctx, payment.ID, model.PaymentUnmatched, nil); err != nil {
			return nil, apperrors.Internal("Failed to record unmatched payment", err)
		}
		p.cfg.Log.Info("No booking matched payment, queued for admin review",
			"payment_id", payment.ID,
			"amount", payment.Amount,
		)
		return outcome, nil

	case verification.DecisionAutoConfirm:
		confidence := result.Confidence
		if err := p.payments.SetMatchResult(ctx, payment.ID, model.PaymentMatched, &confidence); err != nil {
			return nil, apperrors.Internal("Failed to record match result", err)
		}

		res, err := p.lifecycle.Confirm(ctx, result.Booking.ID, payment.ID,
			verificationMethod(payment.Source), "system")
		if err != nil {
			// The booking moved under us (expired, cancelled). The payment goes
			// back to the admin queue instead of failing the cycle.
			if apperrors.IsCode(err, apperrors.CodeInvalidState) {
				p.cfg.Log.Warn("Matched booking no longer confirmable, unmatching payment",
					"payment_id", payment.ID,
					"booking_id", result.Booking.ID,
					"error", err,
				)
				if uerr := p.payments.SetMatchResult(ctx, payment.ID, model.PaymentUnmatched, &confidence); uerr != nil {
					return nil, apperrors.Internal("Failed to unmatch payment", uerr)
				}
				return outcome, nil
			}
			return nil, err
		}
		if res.AlreadyApplied && res.Booking.PaymentID != payment.ID {
			// Another payment confirmed the booking first; this one goes back
			// to the admin queue.
			p.cfg.Log.Warn("Booking already confirmed by another payment, unmatching",
				"payment_id", payment.ID,
				"booking_id", res.Booking.ID,
			)
			if uerr := p.payments.SetMatchResult(ctx, payment.ID, model.PaymentUnmatched, &confidence); uerr != nil {
				return nil, apperrors.Internal("Failed to unmatch payment", uerr)
			}
			return outcome, nil
		}
		outcome.Booking = res.Booking
		p.cfg.Log.Info("Payment auto-confirmed booking",
			"payment_id", payment.ID,
			"booking_id", res.Booking.ID,
			"confidence", confidence,
			"mode", mode,
		)
		return outcome, nil

	default: // DecisionEscalate
		confidence := result.Confidence
		if err := p.payments.SetMatchResult(ctx, payment.ID, model.PaymentMatched, &confidence); err != nil {
			return nil, apperrors.Internal("Failed to record match result", err)
		}

		res, err := p.lifecycle.MarkWaiting(ctx, result.Booking.ID, payment.ID)
		if err != nil {
			if apperrors.IsCode(err, apperrors.CodeInvalidState) {
				p.cfg.Log.Warn("Matched booking no longer escalatable, unmatching payment",
					"payment_id", payment.ID,
					"booking_id", result.Booking.ID,
					"error", err,
				)
				if uerr := p.payments.SetMatchResult(ctx, payment.ID, model.PaymentUnmatched, &confidence); uerr != nil {
					return nil, apperrors.Internal("Failed to unmatch payment", uerr)
				}
				return outcome, nil
			}
			return nil, err
		}
		if res.AlreadyApplied && res.Booking.PaymentID != payment.ID {
			// The booking is already parked with different evidence attached;
			// leaving this payment "matched" would hide it from every queue.
			p.cfg.Log.Warn("Booking already awaiting verification with another payment, unmatching",
				"payment_id", payment.ID,
				"booking_id", res.Booking.ID,
			)
			if uerr := p.payments.SetMatchResult(ctx, payment.ID, model.PaymentUnmatched, &confidence); uerr != nil {
				return nil, apperrors.Internal("Failed to unmatch payment", uerr)
			}
			return outcome, nil
		}
		outcome.Booking = res.Booking
		p.cfg.Log.Info("Payment escalated for manual verification",
			"payment_id", payment.ID,
			"booking_id", res.Booking.ID,
			"confidence", confidence,
			"mode", mode,
		)
		return outcome, nil
	}
}

func verificationMethod(source string) string {
	switch source {
	case model.SourceScreenshotAI:
		return model.VerifyAutoScreenshot
	case model.SourceManualAdmin:
		return model.VerifyManualAdmin
	default:
		return model.VerifyAutoEmail
	}
}
