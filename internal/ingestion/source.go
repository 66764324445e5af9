// Package ingestion pulls payment evidence from external collaborators (the
// email provider poller and the screenshot reader), persists it, and drives the
// matched bookings through the lifecycle.
package ingestion

import (
	"context"
	"time"
)

// RawEmail is one unconsumed evidence item from the email provider.
type RawEmail struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// PaymentFields is the structured payment evidence extracted from an email or
// a screenshot. ProvenanceID carries the originating evidence identity.
type PaymentFields struct {
	ProvenanceID  string `json:"provenance_id"`
	TransactionID string `json:"transaction_id,omitempty"`
	Amount        int64  `json:"amount"`
	SenderName    string `json:"sender_name,omitempty"`
	SenderPhone   string `json:"sender_phone,omitempty"`
}

// EmailSource is the external email collaborator. Fetch and consume are
// separate so evidence survives a crash between pull and local persistence.
type EmailSource interface {
	FetchUnconsumed(ctx context.Context, providerFilter string, maxResults int) ([]RawEmail, error)
	Parse(email RawEmail) (*PaymentFields, error)
	MarkConsumed(ctx context.Context, id string) error
}

// ScreenshotExtractor is the AI screenshot reader, consumed as a black box
// producing structured fields.
type ScreenshotExtractor interface {
	Extract(ctx context.Context, imageRef string) (*PaymentFields, error)
}
