package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	bookingserrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/errors"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/repository"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/validator"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"
	apperrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/errors"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/sanitizer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

type BookingService interface {
	// Create registers a new Pending booking after checking slot availability.
	// Two racing creations for the same (property, date, shift) serialize on an
	// advisory lock; the loser gets a Conflict error.
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetByRef(ctx context.Context, ref string) (*model.Booking, error)
	// PendingVerifications lists Waiting bookings for the admin dashboard.
	PendingVerifications(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
	ListByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Booking, int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.SlotLockRepository
	validator *validator.BookingValidator
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.SlotLockRepository,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, booking *model.Booking) error {
	s.applyDefaults(booking)
	s.sanitize(booking)
	if err := s.validate(booking); err != nil {
		return err
	}

	// Advisory lock keyed by the slot so racing creations serialize before the
	// availability scan.
	lockID, err := s.acquireSlotLock(ctx, booking.PropertyID, booking.Date, booking.Shift)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.releaseSlotLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyAvailability(sessCtx, booking); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking", "ref", booking.Ref, "error", err)
		return err
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"ref", booking.Ref,
		"property_id", booking.PropertyID,
		"date", booking.Date,
		"shift", booking.Shift,
		"channel", booking.Channel,
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) GetByRef(ctx context.Context, ref string) (*model.Booking, error) {
	if ref == "" {
		return nil, apperrors.InvalidInput("Booking ref cannot be empty")
	}

	booking, err := s.repo.FindByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", ref)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) PendingVerifications(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	return s.ListByStatus(ctx, model.BookingWaiting, limit, offset)
}

func (s *bookingService) ListByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByStatus(ctx, status)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "status", status, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByStatus(ctx, status, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "status", status, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// --- Helpers ---

func (s *bookingService) sanitize(b *model.Booking) {
	b.CustomerName = sanitizer.NormalizeName(b.CustomerName)
	b.CustomerID = sanitizer.TrimAndNormalize(b.CustomerID)
	b.PropertyID = sanitizer.TrimAndNormalize(b.PropertyID)
	if b.CustomerPhone != "" {
		b.CustomerPhone = sanitizer.NormalizePhone(b.CustomerPhone)
	}
	b.Date = model.DateOnly(b.Date)
}

func (s *bookingService) applyDefaults(b *model.Booking) {
	if b.Status == "" {
		b.Status = model.BookingPending
	}
	if b.Ref == "" {
		b.Ref = newBookingRef(b.Date)
	}
	// A reachable phone number means the customer came through WhatsApp and
	// gets notified there; everyone else falls back to web chat.
	if b.Channel == "" {
		if strings.TrimSpace(b.CustomerPhone) != "" {
			b.Channel = model.ChannelWhatsApp
		} else {
			b.Channel = model.ChannelWeb
		}
	}
}

// newBookingRef builds a human-quotable reference like HNF-20260831-3F7A.
func newBookingRef(date time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("HNF-%s-%s", model.DateOnly(date).Format("20060102"), suffix)
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// verifyAvailability scans non-terminal bookings around the requested date and
// rejects the creation if any of them occupies an overlapping half-day slot.
func (s *bookingService) verifyAvailability(ctx context.Context, booking *model.Booking) error {
	from, to := model.ConflictDateRange(booking.Date, booking.Shift)
	existing, err := s.repo.FindConflictCandidates(ctx, booking.PropertyID, from, to)
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}

	for _, b := range existing {
		if b.ID == booking.ID {
			continue
		}
		if model.ShiftsConflict(b.Date, b.Shift, booking.Date, booking.Shift) {
			return apperrors.Conflict(fmt.Sprintf(
				"Requested slot conflicts with booking %s (%s %s)",
				b.Ref,
				b.Date.Format("2006-01-02"),
				b.Shift,
			))
		}
	}
	return nil
}

func (s *bookingService) acquireSlotLock(ctx context.Context, propertyID string, date time.Time, shift string) (string, error) {
	lockID := fmt.Sprintf("slot_%s_%s_%s", propertyID, model.DateOnly(date).Format("20060102"), shift)

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(10 * time.Second),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This slot is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire slot lock", err)
	}

	return lockID, nil
}

func (s *bookingService) releaseSlotLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}
