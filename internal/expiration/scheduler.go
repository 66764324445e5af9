// Package expiration sweeps stale pending bookings. There is no per-booking
// timer; staleness is derived from created_at at each tick.
package expiration

import (
	"context"
	"time"

	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/repository"
	bookingsvc "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/service"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"
	apperrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/errors"
)

type Scheduler struct {
	bookings  repository.BookingRepository
	lifecycle bookingsvc.LifecycleCoordinator
	cfg       *config.Config
	now       func() time.Time
}

func NewScheduler(bookings repository.BookingRepository, lifecycle bookingsvc.LifecycleCoordinator, cfg *config.Config) *Scheduler {
	return &Scheduler{
		bookings:  bookings,
		lifecycle: lifecycle,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx is cancelled, executing one sweep per tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.cfg.Log.Info("Expiration scheduler started",
		"interval", s.cfg.ExpirationInterval,
		"batch_size", s.cfg.ExpirationBatchSize,
		"booking_ttl", s.cfg.BookingTTL,
	)

	ticker := time.NewTicker(s.cfg.ExpirationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.cfg.Log.Info("Expiration scheduler stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle expires one bounded batch of stale pending bookings. Only Pending
// bookings are scanned; a Waiting booking of any age is never swept. A failure
// on one booking is logged and the cycle continues.
func (s *Scheduler) RunCycle(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.BookingTTL)

	expirable, err := s.bookings.FindExpirable(ctx, cutoff, s.cfg.ExpirationBatchSize)
	if err != nil {
		s.cfg.Log.Error("Failed to scan expirable bookings", "error", err)
		return
	}
	if len(expirable) == 0 {
		return
	}

	expired := 0
	for _, b := range expirable {
		if ctx.Err() != nil {
			return
		}

		res, err := s.lifecycle.Expire(ctx, b.ID)
		if err != nil {
			// An InvalidState here means a writer confirmed or parked the booking
			// between scan and sweep. That is the race working as intended.
			if apperrors.IsCode(err, apperrors.CodeInvalidState) {
				s.cfg.Log.Debug("Booking left pending before sweep reached it",
					"booking_id", b.ID,
					"ref", b.Ref,
				)
				continue
			}
			s.cfg.Log.Error("Failed to expire booking, skipping",
				"booking_id", b.ID,
				"ref", b.Ref,
				"error", err,
			)
			continue
		}
		if !res.AlreadyApplied {
			expired++
		}
	}

	s.cfg.Log.Info("Expiration cycle completed",
		"scanned", len(expirable),
		"expired", expired,
	)
}
