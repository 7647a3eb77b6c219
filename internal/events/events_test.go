package events

import (
	"testing"
	"time"
)

func TestChannelSinkDelivers(t *testing.T) {
	s := NewChannelSink(4)
	s.Emit(Event{Type: TypeStatus, AgentID: "a1", Status: "running"})

	select {
	case ev := <-s.Events():
		if ev.Type != TypeStatus || ev.AgentID != "a1" {
			t.Errorf("got %+v", ev)
		}
		if ev.Timestamp.IsZero() {
			t.Error("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	s := NewChannelSink(2)
	s.timeout = time.Millisecond
	for i := 0; i < 5; i++ {
		s.Emit(Event{Type: TypeToken, Text: "x"})
	}
	if got := s.Dropped(); got != 3 {
		t.Errorf("dropped = %d, want 3", got)
	}

	// Buffered events still arrive.
	count := 0
	for {
		select {
		case <-s.Events():
			count++
			continue
		default:
		}
		break
	}
	if count != 2 {
		t.Errorf("delivered = %d, want 2", count)
	}
}

func TestChannelSinkWaitsForSlowConsumer(t *testing.T) {
	s := NewChannelSink(1)
	s.timeout = time.Second
	s.Emit(Event{Type: TypeToken})

	go func() {
		time.Sleep(20 * time.Millisecond)
		<-s.Events()
	}()

	s.Emit(Event{Type: TypeDone})
	if got := s.Dropped(); got != 0 {
		t.Errorf("dropped = %d, want 0 (consumer caught up within timeout)", got)
	}
}
