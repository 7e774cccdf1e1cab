package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"maritime-onboarding/backend/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.SecurityEvent
	emitErr error
	delay   time.Duration
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.SecurityEvent) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	ctx := context.Background()
	event := &domain.SecurityEvent{
		UserID:    "user-1",
		EventType: "test",
	}

	// Should not panic
	EmitAsync(nil, ctx, event)
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	ctx := context.Background()

	// Should not panic
	EmitAsync(emitter, ctx, nil)

	// Give goroutine time to run (if it starts)
	time.Sleep(10 * time.Millisecond)

	// Should not have emitted anything
	events := emitter.getEvents()
	if len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	ctx := context.Background()
	event := &domain.SecurityEvent{
		UserID:    "user-1",
		SessionID: "sess-1",
		EventType: domain.EventLoginSuccess,
		Source:    "test",
	}

	EmitAsync(emitter, ctx, event)

	// Wait for goroutine to complete
	time.Sleep(100 * time.Millisecond)

	events := emitter.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].UserID != "user-1" {
		t.Errorf("event user_id = %q, want %q", events[0].UserID, "user-1")
	}
	if events[0].SessionID != "sess-1" {
		t.Errorf("event session_id = %q, want %q", events[0].SessionID, "sess-1")
	}
	if events[0].EventType != domain.EventLoginSuccess {
		t.Errorf("event type = %q, want %q", events[0].EventType, domain.EventLoginSuccess)
	}
}

func TestEmitAsync_UsesBackgroundContext(t *testing.T) {
	emitter := &mockEventEmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel the request context immediately

	event := &domain.SecurityEvent{
		UserID:    "user-1",
		EventType: "test",
	}

	// Should still emit even though request context is cancelled
	EmitAsync(emitter, ctx, event)

	// Wait for goroutine to complete
	time.Sleep(100 * time.Millisecond)

	events := emitter.getEvents()
	if len(events) != 1 {
		t.Errorf("expected 1 event (context.Background used), got %d", len(events))
	}
}

func TestEmitAsync_EmitterErrorDoesNotPanic(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: errors.New("collector down")}
	ctx := context.Background()

	EmitAsync(emitter, ctx, &domain.SecurityEvent{EventType: "test"})

	time.Sleep(100 * time.Millisecond)
}

func TestFanout(t *testing.T) {
	first := &mockEventEmitter{}
	second := &mockEventEmitter{emitErr: errors.New("kafka down")}
	ctx := context.Background()

	fan := Fanout{first, nil, second}
	err := fan.Emit(ctx, &domain.SecurityEvent{EventType: "test"})
	if err == nil {
		t.Error("Fanout.Emit() error = nil, want error from failing emitter")
	}
	if len(first.getEvents()) != 1 {
		t.Errorf("first emitter got %d events, want 1", len(first.getEvents()))
	}
	if len(second.getEvents()) != 1 {
		t.Errorf("second emitter got %d events, want 1", len(second.getEvents()))
	}
}
