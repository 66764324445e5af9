package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/errors"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/repository"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/notifications"
	paymentrepo "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/payments/repository"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"
	apperrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/errors"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// TransitionResult is the snapshot returned by every lifecycle operation.
// AlreadyApplied means a concurrent writer got there first and this call was a
// no-op; Notified reports whether the customer notification was delivered.
type TransitionResult struct {
	Booking        *model.Booking `json:"booking"`
	Notified       bool           `json:"notified"`
	AlreadyApplied bool           `json:"already_applied"`
}

// LifecycleCoordinator owns every Booking status transition. Nothing else in
// the codebase mutates booking status. Each transition runs in one transaction
// guarded by a compare-and-set on the status column, so concurrent writers
// serialize at the storage layer and the loser observes the applied state.
type LifecycleCoordinator interface {
	// Confirm moves a Pending/Waiting booking to Confirmed, linking the payment
	// and recording the verification method. Confirming an already-Confirmed
	// booking is a no-op that does not re-send the notification.
	Confirm(ctx context.Context, bookingID, paymentID, method, verifiedBy string) (*TransitionResult, error)
	// MarkWaiting parks a Pending booking for admin review with its candidate
	// payment attached. Silent: no customer notification.
	MarkWaiting(ctx context.Context, bookingID, paymentID string) (*TransitionResult, error)
	// Reject cancels a Pending/Waiting booking. The reason is mandatory and is
	// carried verbatim in the rejection notification. Cancelled is terminal;
	// a retry is a new booking.
	Reject(ctx context.Context, bookingID, adminID, reason string) (*TransitionResult, error)
	// Expire sweeps a Pending booking past its TTL into Expired, freeing the
	// slot. Waiting bookings are never expired regardless of age.
	Expire(ctx context.Context, bookingID string) (*TransitionResult, error)
}

type lifecycleCoordinator struct {
	bookings   repository.BookingRepository
	payments   paymentrepo.PaymentRepository
	dispatcher notifications.Dispatcher
	cfg        *config.Config
	now        func() time.Time
}

func NewLifecycleCoordinator(
	bookings repository.BookingRepository,
	payments paymentrepo.PaymentRepository,
	dispatcher notifications.Dispatcher,
	cfg *config.Config,
) LifecycleCoordinator {
	return &lifecycleCoordinator{
		bookings:   bookings,
		payments:   payments,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (c *lifecycleCoordinator) Confirm(ctx context.Context, bookingID, paymentID, method, verifiedBy string) (*TransitionResult, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	switch method {
	case model.VerifyAutoEmail, model.VerifyAutoScreenshot, model.VerifyManualAdmin:
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("Unknown verification method: %s", method))
	}

	now := c.now()
	var updated *model.Booking
	var alreadyApplied bool

	err := c.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		set := bson.M{
			"status":              model.BookingConfirmed,
			"verification_method": method,
			"payment_verified_at": now,
		}
		if paymentID != "" {
			set["payment_id"] = paymentID
		}

		b, err := c.bookings.Transition(sessCtx, bookingID,
			[]string{model.BookingPending, model.BookingWaiting}, set, nil)
		if err != nil {
			b, alreadyApplied, err = c.resolveConflict(sessCtx, bookingID, err, model.BookingConfirmed, "confirm")
			if err != nil {
				return err
			}
			updated = b
			return nil
		}

		if paymentID != "" {
			if err := c.payments.MarkVerified(sessCtx, paymentID, b.ID, verifiedBy, now); err != nil {
				return apperrors.Internal("Failed to verify payment", err)
			}
		}

		updated = b
		return nil
	})
	if err != nil {
		c.cfg.Log.Error("Failed to confirm booking", "booking_id", bookingID, "error", err)
		return nil, err
	}

	if alreadyApplied {
		c.cfg.Log.Info("Booking already confirmed, skipping", "booking_id", bookingID)
		return &TransitionResult{Booking: updated, AlreadyApplied: true}, nil
	}

	notified := c.dispatcher.Notify(ctx, c.buildEvent(updated, model.EventBookingConfirmed,
		fmt.Sprintf("Your booking %s is confirmed. See you at the property!", updated.Ref), ""))

	c.cfg.Log.Info("Booking confirmed",
		"booking_id", updated.ID,
		"ref", updated.Ref,
		"method", method,
		"verified_by", verifiedBy,
		"notified", notified,
	)
	return &TransitionResult{Booking: updated, Notified: notified}, nil
}

func (c *lifecycleCoordinator) MarkWaiting(ctx context.Context, bookingID, paymentID string) (*TransitionResult, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	var updated *model.Booking
	var alreadyApplied bool

	err := c.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		set := bson.M{"status": model.BookingWaiting}
		if paymentID != "" {
			set["payment_id"] = paymentID
		}

		b, err := c.bookings.Transition(sessCtx, bookingID, []string{model.BookingPending}, set, nil)
		if err != nil {
			b, alreadyApplied, err = c.resolveConflict(sessCtx, bookingID, err, model.BookingWaiting, "escalate")
			if err != nil {
				return err
			}
			updated = b
			return nil
		}
		updated = b
		return nil
	})
	if err != nil {
		c.cfg.Log.Error("Failed to escalate booking", "booking_id", bookingID, "error", err)
		return nil, err
	}

	// Deliberately silent: Waiting is internal state for the admin dashboard.
	c.cfg.Log.Info("Booking escalated for manual verification",
		"booking_id", updated.ID,
		"ref", updated.Ref,
		"payment_id", paymentID,
		"already_applied", alreadyApplied,
	)
	return &TransitionResult{Booking: updated, AlreadyApplied: alreadyApplied}, nil
}

func (c *lifecycleCoordinator) Reject(ctx context.Context, bookingID, adminID, reason string) (*TransitionResult, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if reason == "" {
		return nil, apperrors.Validation("Rejection reason is required", nil)
	}

	now := c.now()
	var updated *model.Booking
	var alreadyApplied bool

	err := c.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// The payment link is detached by the transition; capture it first so
		// the payment record can be finalized in the same transaction.
		current, err := c.findForUpdate(sessCtx, bookingID)
		if err != nil {
			return err
		}
		linkedPayment := current.PaymentID

		set := bson.M{
			"status":           model.BookingCancelled,
			"rejection_reason": reason,
		}
		unset := bson.M{"payment_id": ""}

		b, err := c.bookings.Transition(sessCtx, bookingID,
			[]string{model.BookingPending, model.BookingWaiting}, set, unset)
		if err != nil {
			b, alreadyApplied, err = c.resolveConflict(sessCtx, bookingID, err, model.BookingCancelled, "reject")
			if err != nil {
				return err
			}
			updated = b
			return nil
		}

		if linkedPayment != "" {
			if err := c.payments.MarkRejected(sessCtx, linkedPayment, adminID, now); err != nil {
				return apperrors.Internal("Failed to reject payment", err)
			}
		}

		updated = b
		return nil
	})
	if err != nil {
		c.cfg.Log.Error("Failed to reject booking", "booking_id", bookingID, "error", err)
		return nil, err
	}

	if alreadyApplied {
		return &TransitionResult{Booking: updated, AlreadyApplied: true}, nil
	}

	notified := c.dispatcher.Notify(ctx, c.buildEvent(updated, model.EventBookingRejected,
		fmt.Sprintf("Your booking %s was rejected: %s", updated.Ref, reason), reason))

	c.cfg.Log.Info("Booking rejected",
		"booking_id", updated.ID,
		"ref", updated.Ref,
		"admin_id", adminID,
		"reason", reason,
		"notified", notified,
	)
	return &TransitionResult{Booking: updated, Notified: notified}, nil
}

func (c *lifecycleCoordinator) Expire(ctx context.Context, bookingID string) (*TransitionResult, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	now := c.now()

	current, err := c.findForUpdate(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.Status == model.BookingExpired {
		return &TransitionResult{Booking: current, AlreadyApplied: true}, nil
	}
	if current.Status != model.BookingPending {
		// A Waiting booking has evidence attached and is never swept.
		return nil, apperrors.InvalidState(fmt.Sprintf("Booking in status %q cannot expire", current.Status))
	}
	if current.Age(now) < c.cfg.BookingTTL {
		return nil, apperrors.InvalidState("Booking has not reached its expiration age")
	}

	var updated *model.Booking
	var alreadyApplied bool

	err = c.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		set := bson.M{
			"status":                 model.BookingExpired,
			"expiration_notified_at": now,
		}
		b, err := c.bookings.Transition(sessCtx, bookingID, []string{model.BookingPending}, set, nil)
		if err != nil {
			b, alreadyApplied, err = c.resolveConflict(sessCtx, bookingID, err, model.BookingExpired, "expire")
			if err != nil {
				return err
			}
			updated = b
			return nil
		}
		updated = b
		return nil
	})
	if err != nil {
		c.cfg.Log.Error("Failed to expire booking", "booking_id", bookingID, "error", err)
		return nil, err
	}

	if alreadyApplied {
		return &TransitionResult{Booking: updated, AlreadyApplied: true}, nil
	}

	notified := c.dispatcher.Notify(ctx, c.buildEvent(updated, model.EventBookingExpired,
		fmt.Sprintf("Your booking %s expired: no payment was received within %d minutes.",
			updated.Ref, int(c.cfg.BookingTTL.Minutes())), ""))

	c.cfg.Log.Info("Booking expired",
		"booking_id", updated.ID,
		"ref", updated.Ref,
		"notified", notified,
	)
	return &TransitionResult{Booking: updated, Notified: notified}, nil
}

// resolveConflict inspects the booking after a failed compare-and-set. If the
// booking already sits in the target status, the concurrent transition is
// reported as already applied; any other state is an invalid-transition error.
func (c *lifecycleCoordinator) resolveConflict(ctx context.Context, bookingID string, transitionErr error, target, action string) (*model.Booking, bool, error) {
	if !errors.Is(transitionErr, bookingserrors.ErrTransitionConflict) {
		if errors.Is(transitionErr, bookingserrors.ErrNotFound) {
			return nil, false, apperrors.NotFoundWithID("Booking", bookingID)
		}
		if errors.Is(transitionErr, bookingserrors.ErrInvalidID) {
			return nil, false, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, false, apperrors.Internal(fmt.Sprintf("Failed to %s booking", action), transitionErr)
	}

	current, err := c.findForUpdate(ctx, bookingID)
	if err != nil {
		return nil, false, err
	}
	if current.Status == target {
		return current, true, nil
	}
	return nil, false, apperrors.InvalidState(
		fmt.Sprintf("Cannot %s booking in status %q", action, current.Status))
}

func (c *lifecycleCoordinator) findForUpdate(ctx context.Context, bookingID string) (*model.Booking, error) {
	b, err := c.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", bookingID)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to load booking", err)
	}
	return b, nil
}

func (c *lifecycleCoordinator) buildEvent(b *model.Booking, eventType, message, reason string) model.BookingEvent {
	recipient := b.CustomerID
	if b.Channel == model.ChannelWhatsApp {
		recipient = b.CustomerPhone
	}
	return model.BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		BookingRef: b.Ref,
		Channel:    b.Channel,
		Recipient:  recipient,
		Message:    message,
		Reason:     reason,
		OccurredAt: c.now(),
	}
}
