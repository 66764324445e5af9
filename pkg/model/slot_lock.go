package model

import "time"

// SlotLock is an advisory lock taken while a booking for a (property, date, shift)
// slot is being created. The unique _id insert loses cleanly when two requests race
// for the same slot.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
