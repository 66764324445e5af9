package model

import (
	"time"
)

// Booking statuses. Confirmed, Cancelled and Expired are terminal.
const (
	BookingPending   = "pending"
	BookingWaiting   = "waiting"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingExpired   = "expired"
)

// Verification methods recorded on a confirmed booking.
const (
	VerifyAutoEmail      = "auto_email"
	VerifyAutoScreenshot = "auto_screenshot"
	VerifyManualAdmin    = "manual_admin"
)

// Notification channels, resolved once at booking creation.
const (
	ChannelWeb      = "web"
	ChannelWhatsApp = "whatsapp"
)

type Booking struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Ref           string    `json:"ref" bson:"ref" validate:"omitempty,min=8,max=32"`
	CustomerID    string    `json:"customer_id" bson:"customer_id" validate:"required,min=1,max=64"`
	CustomerName  string    `json:"customer_name" bson:"customer_name" validate:"required,min=2,max=100"`
	CustomerPhone string    `json:"customer_phone,omitempty" bson:"customer_phone,omitempty" validate:"omitempty,e164"`
	PropertyID    string    `json:"property_id" bson:"property_id" validate:"required,min=1,max=64"`
	Date          time.Time `json:"date" bson:"date" validate:"required"`
	Shift         string    `json:"shift" bson:"shift" validate:"required,oneof=day night full_day full_night"`
	Amount        int64     `json:"amount" bson:"amount" validate:"required,min=1"`
	Status        string    `json:"status" bson:"status" validate:"required,oneof=pending waiting confirmed cancelled expired"`
	Channel       string    `json:"channel" bson:"channel" validate:"required,oneof=web whatsapp"`

	PaymentID          string `json:"payment_id,omitempty" bson:"payment_id,omitempty" validate:"omitempty,mongodb"`
	VerificationMethod string `json:"verification_method,omitempty" bson:"verification_method,omitempty" validate:"omitempty,oneof=auto_email auto_screenshot manual_admin"`
	RejectionReason    string `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`

	CreatedAt            time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
	PaymentVerifiedAt    *time.Time `json:"payment_verified_at,omitempty" bson:"payment_verified_at,omitempty"`
	ExpirationNotifiedAt *time.Time `json:"expiration_notified_at,omitempty" bson:"expiration_notified_at,omitempty"`
}

// Terminal reports whether the booking can never transition again.
func (b *Booking) Terminal() bool {
	switch b.Status {
	case BookingConfirmed, BookingCancelled, BookingExpired:
		return true
	}
	return false
}

// Age is the time elapsed since the booking was created.
func (b *Booking) Age(now time.Time) time.Duration {
	return now.Sub(b.CreatedAt)
}
