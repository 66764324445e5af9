package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/logger"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"
)

type mockChannel struct {
	calls   int
	results []error
}

func (m *mockChannel) Send(ctx context.Context, event model.BookingEvent) error {
	var err error
	if m.calls < len(m.results) {
		err = m.results[m.calls]
	}
	m.calls++
	return err
}

func testLog() *logger.Logger {
	return logger.New(logger.Config{
		Level:   logger.ERROR,
		Format:  logger.TEXT,
		Service: "test",
	})
}

func event(channel string) model.BookingEvent {
	return model.BookingEvent{
		Type:       model.EventBookingConfirmed,
		BookingRef: "HNF-20260831-AAAA",
		Channel:    channel,
	}
}

func TestNotify_FirstAttemptSucceeds(t *testing.T) {
	ch := &mockChannel{results: []error{nil}}
	d := NewDispatcher(testLog(), map[string]Channel{model.ChannelWeb: ch})

	if !d.Notify(context.Background(), event(model.ChannelWeb)) {
		t.Fatal("expected delivery success")
	}
	if ch.calls != 1 {
		t.Errorf("expected 1 send, got %d", ch.calls)
	}
}

func TestNotify_RetriesExactlyOnce(t *testing.T) {
	ch := &mockChannel{results: []error{errors.New("gateway down"), nil}}
	d := NewDispatcher(testLog(), map[string]Channel{model.ChannelWhatsApp: ch})

	if !d.Notify(context.Background(), event(model.ChannelWhatsApp)) {
		t.Fatal("expected retry to succeed")
	}
	if ch.calls != 2 {
		t.Errorf("expected 2 sends, got %d", ch.calls)
	}
}

func TestNotify_SecondFailureIsPermanent(t *testing.T) {
	ch := &mockChannel{results: []error{errors.New("down"), errors.New("still down"), nil}}
	d := NewDispatcher(testLog(), map[string]Channel{model.ChannelWeb: ch})

	if d.Notify(context.Background(), event(model.ChannelWeb)) {
		t.Fatal("expected permanent failure after second attempt")
	}
	if ch.calls != 2 {
		t.Errorf("expected exactly 2 sends, got %d", ch.calls)
	}
}

func TestNotify_UnknownChannel(t *testing.T) {
	d := NewDispatcher(testLog(), map[string]Channel{})
	if d.Notify(context.Background(), event("carrier_pigeon")) {
		t.Fatal("expected failure for unregistered channel")
	}
}
