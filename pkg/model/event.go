package model

import "time"

// Booking lifecycle event types published to the notifications topic.
const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingRejected  = "booking.rejected"
	EventBookingExpired   = "booking.expired"
)

// BookingEvent is the payload handed to the notification dispatcher after a
// lifecycle transition has committed. Delivery is best-effort and never rolls
// the transition back.
type BookingEvent struct {
	Type       string    `json:"type"`
	BookingID  string    `json:"booking_id"`
	BookingRef string    `json:"booking_ref"`
	Channel    string    `json:"channel"`
	Recipient  string    `json:"recipient"`
	Message    string    `json:"message"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
