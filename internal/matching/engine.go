// Package matching scores incoming payment evidence against candidate bookings.
// Match is a pure computation: no side effects, no persistence, so every scoring
// rule is unit-testable with fixed clocks.
package matching

import (
	"time"

	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/sanitizer"
)

const (
	// BaseScore is granted for passing the exact-amount gate.
	BaseScore = 50
	// NameBonus is granted when the sender name is similar enough to the
	// customer name on the booking.
	NameBonus = 20
	// PhoneBonus is granted when the sender phone matches the customer phone.
	PhoneBonus = 30

	// MaxConfidence caps the additive score.
	MaxConfidence = BaseScore + NameBonus + PhoneBonus

	// nameSimilarityThreshold is the minimum token-overlap ratio for NameBonus.
	nameSimilarityThreshold = 0.5

	// phoneSignificantDigits is how many trailing digits must agree for
	// PhoneBonus. Providers truncate country codes and reformat freely.
	phoneSignificantDigits = 10
)

// Result is the outcome of scoring one payment against a candidate set.
// Confidence is meaningful only when Matched is true; a payment that passes no
// amount gate has no score at all, not a zero score.
type Result struct {
	Booking    *model.Booking
	Confidence int
	Matched    bool
}

// Match scores the payment against the candidates and returns the best one.
//
// A candidate is eligible when it is Pending or Waiting, younger than the
// eligibility window at evaluation time, and its amount equals the payment
// amount exactly. Scoring is additive from BaseScore; ties on the top score go
// to the most recently created booking.
func Match(payment *model.Payment, candidates []*model.Booking, now time.Time, window time.Duration) Result {
	var best *model.Booking
	bestScore := -1

	for _, b := range candidates {
		if !eligible(b, payment, now, window) {
			continue
		}

		score := BaseScore
		if nameSimilar(payment.SenderName, b.CustomerName) {
			score += NameBonus
		}
		if phoneMatches(payment.SenderPhone, b.CustomerPhone) {
			score += PhoneBonus
		}

		if score > bestScore || (score == bestScore && b.CreatedAt.After(best.CreatedAt)) {
			best = b
			bestScore = score
		}
	}

	if best == nil {
		return Result{}
	}
	return Result{Booking: best, Confidence: bestScore, Matched: true}
}

func eligible(b *model.Booking, p *model.Payment, now time.Time, window time.Duration) bool {
	if b.Status != model.BookingPending && b.Status != model.BookingWaiting {
		return false
	}
	if b.Age(now) >= window {
		return false
	}
	// Exact amount is a mandatory gate, not a scoring component.
	return b.Amount == p.Amount
}

// nameSimilar compares case-insensitive, punctuation-normalized token sets and
// requires the overlap ratio to clear the similarity threshold.
func nameSimilar(senderName, customerName string) bool {
	a := sanitizer.NameTokens(senderName)
	b := sanitizer.NameTokens(customerName)
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	set := make(map[string]struct{}, len(a))
	for _, tok := range a {
		set[tok] = struct{}{}
	}

	common := 0
	for _, tok := range b {
		if _, ok := set[tok]; ok {
			common++
			delete(set, tok)
		}
	}

	longer := max(len(a), len(b))
	return float64(common)/float64(longer) >= nameSimilarityThreshold
}

func phoneMatches(senderPhone, customerPhone string) bool {
	a := sanitizer.LastDigits(sanitizer.NormalizePhone(senderPhone), phoneSignificantDigits)
	b := sanitizer.LastDigits(sanitizer.NormalizePhone(customerPhone), phoneSignificantDigits)
	if a == "" || b == "" {
		return false
	}
	return a == b
}
