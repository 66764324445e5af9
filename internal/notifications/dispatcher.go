// Package notifications delivers lifecycle events to customers. Delivery is
// best-effort: a failure is retried once, then recorded as a permanent delivery
// failure in the audit log. It never affects the committed state transition.
package notifications

import (
	"context"

	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/logger"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"
)

// Channel is one outbound delivery transport (web chat, WhatsApp gateway).
type Channel interface {
	Send(ctx context.Context, event model.BookingEvent) error
}

type Dispatcher interface {
	// Notify routes the event by its recorded channel and reports whether it
	// was delivered.
	Notify(ctx context.Context, event model.BookingEvent) bool
}

type dispatcher struct {
	channels map[string]Channel
	log      *logger.Logger
}

func NewDispatcher(log *logger.Logger, channels map[string]Channel) Dispatcher {
	return &dispatcher{
		channels: channels,
		log:      log,
	}
}

func (d *dispatcher) Notify(ctx context.Context, event model.BookingEvent) bool {
	ch, ok := d.channels[event.Channel]
	if !ok {
		d.log.Error("No notification channel registered",
			"audit", "delivery_failure",
			"channel", event.Channel,
			"booking_ref", event.BookingRef,
			"event_type", event.Type,
		)
		return false
	}

	err := ch.Send(ctx, event)
	if err == nil {
		return true
	}

	d.log.Warn("Notification delivery failed, retrying once",
		"channel", event.Channel,
		"booking_ref", event.BookingRef,
		"event_type", event.Type,
		"error", err,
	)

	if err = ch.Send(ctx, event); err == nil {
		return true
	}

	d.log.Error("Permanent notification delivery failure",
		"audit", "delivery_failure",
		"channel", event.Channel,
		"booking_ref", event.BookingRef,
		"event_type", event.Type,
		"error", err,
	)
	return false
}
