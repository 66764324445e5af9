package model

import (
	"time"
)

// Payment evidence sources.
const (
	SourceEmailProvider = "email_provider"
	SourceScreenshotAI  = "screenshot_ai"
	SourceManualAdmin   = "manual_admin"
)

// Payment statuses. Verified and Rejected are terminal but retained for audit.
const (
	PaymentPending   = "pending"
	PaymentMatched   = "matched"
	PaymentUnmatched = "unmatched"
	PaymentVerified  = "verified"
	PaymentRejected  = "rejected"
)

// Payment is one detected payment event. ProvenanceID is the identifier of the
// originating evidence item (email message id, screenshot id) and is unique:
// re-ingesting the same evidence must not create a second record.
type Payment struct {
	ID            string `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	BookingID     string `json:"booking_id,omitempty" bson:"booking_id,omitempty" validate:"omitempty,mongodb"`
	Source        string `json:"source" bson:"source" validate:"required,oneof=email_provider screenshot_ai manual_admin"`
	ProvenanceID  string `json:"provenance_id" bson:"provenance_id" validate:"required,min=1,max=256"`
	TransactionID string `json:"transaction_id,omitempty" bson:"transaction_id,omitempty" validate:"omitempty,max=128"`
	Amount        int64  `json:"amount" bson:"amount" validate:"required,min=1"`
	SenderName    string `json:"sender_name,omitempty" bson:"sender_name,omitempty" validate:"omitempty,max=100"`
	SenderPhone   string `json:"sender_phone,omitempty" bson:"sender_phone,omitempty" validate:"omitempty,e164"`
	Status        string `json:"status" bson:"status" validate:"required,oneof=pending matched unmatched verified rejected"`

	// MatchConfidence is 0-100; nil until the matching engine has scored it.
	MatchConfidence *int   `json:"match_confidence,omitempty" bson:"match_confidence,omitempty" validate:"omitempty"`
	VerifiedBy      string `json:"verified_by,omitempty" bson:"verified_by,omitempty" validate:"omitempty,max=64"`

	CreatedAt  time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at" validate:"omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty" bson:"verified_at,omitempty"`
}
