package events

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func drain(sub *Subscription) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestEmitter_IDsMonotonicFromOne(t *testing.T) {
	em := NewEmitter(10)
	for i := 0; i < 5; i++ {
		ev := em.Emit("tick", map[string]any{"n": i})
		if ev.ID != i+1 {
			t.Fatalf("event %d got id %d, want %d", i, ev.ID, i+1)
		}
	}
	if em.LastID() != 5 {
		t.Errorf("LastID() = %d, want 5", em.LastID())
	}
}

func TestEmitter_RingBufferEviction(t *testing.T) {
	const bufSize = 3

	tests := []struct {
		emissions int
		wantLen   int
		wantLast  int
	}{
		{emissions: 1, wantLen: 1, wantLast: 1},
		{emissions: 3, wantLen: 3, wantLast: 3},
		{emissions: 7, wantLen: 3, wantLast: 7},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("emit_%d", tc.emissions), func(t *testing.T) {
			em := NewEmitter(bufSize)
			for i := 0; i < tc.emissions; i++ {
				em.Emit("tick", nil)
			}

			buf := em.Snapshot()
			if len(buf) != tc.wantLen {
				t.Fatalf("buffer length = %d, want %d", len(buf), tc.wantLen)
			}
			if buf[len(buf)-1].ID != tc.wantLast {
				t.Errorf("last buffered id = %d, want %d", buf[len(buf)-1].ID, tc.wantLast)
			}
			for i := 1; i < len(buf); i++ {
				if buf[i].ID != buf[i-1].ID+1 {
					t.Errorf("buffer not contiguous at index %d: %d then %d", i, buf[i-1].ID, buf[i].ID)
				}
			}
		})
	}
}

func TestEmitter_SubscribeFromReplaysExactly(t *testing.T) {
	em := NewEmitter(200)
	for i := 0; i < 10; i++ {
		em.Emit("tick", map[string]any{"n": i})
	}

	sub := em.SubscribeFrom(5)
	defer em.Unsubscribe(sub)

	got := drain(sub)
	if len(got) != 5 {
		t.Fatalf("replayed %d events, want 5", len(got))
	}
	for i, ev := range got {
		if ev.ID != 6+i {
			t.Errorf("replayed event %d has id %d, want %d", i, ev.ID, 6+i)
		}
	}

	// Live events follow replay.
	em.Emit("tick", nil)
	select {
	case ev := <-sub.C:
		if ev.ID != 11 {
			t.Errorf("live event id = %d, want 11", ev.ID)
		}
	default:
		t.Error("no live event delivered after replay")
	}
}

func TestEmitter_ReplayRespectsEviction(t *testing.T) {
	em := NewEmitter(4)
	for i := 0; i < 10; i++ {
		em.Emit("tick", nil)
	}

	// Events 1..6 were evicted; asking from 0 replays only 7..10. The gap
	// between the requested ID and the first replayed ID is how clients
	// detect missed events.
	sub := em.SubscribeFrom(0)
	got := drain(sub)
	if len(got) != 4 {
		t.Fatalf("replayed %d events, want 4", len(got))
	}
	if got[0].ID != 7 {
		t.Fatalf("replay starts at %d, want 7", got[0].ID)
	}
}

func TestEmitter_CloseSignalsEndOfStream(t *testing.T) {
	em := NewEmitter(10)
	live := em.Subscribe()

	em.Emit("tick", nil)
	em.Close()

	// Existing subscriber: buffered event then channel close.
	if ev, ok := <-live.C; !ok || ev.ID != 1 {
		t.Fatalf("expected event 1 before close, got %v ok=%v", ev, ok)
	}
	if _, ok := <-live.C; ok {
		t.Error("channel not closed after Close")
	}

	// Emit after close is rejected.
	em.Emit("tick", nil)
	if em.LastID() != 1 {
		t.Errorf("LastID() = %d after post-close emit, want 1", em.LastID())
	}

	// Late subscriber: replay then immediate end-of-stream.
	late := em.SubscribeFrom(0)
	got := drain(late)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("late subscriber replay = %v, want single event 1", got)
	}
	if _, ok := <-late.C; ok {
		t.Error("late subscriber channel not closed")
	}

	// Idempotent.
	em.Close()
	if !em.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestEmitter_UnsubscribeIdempotent(t *testing.T) {
	em := NewEmitter(10)
	sub := em.Subscribe()

	em.Unsubscribe(sub)
	em.Unsubscribe(sub)

	em.Emit("tick", nil)
	if len(drain(sub)) != 0 {
		t.Error("unsubscribed sink still received events")
	}
}

func TestEmitter_FanOutDoesNotBlock(t *testing.T) {
	em := NewEmitter(10)
	sub := em.Subscribe()
	defer em.Unsubscribe(sub)

	// Overflow the subscriber channel; Emit must not stall and the newest
	// events must win.
	total := subscriberBuffer + 16
	for i := 0; i < total; i++ {
		em.Emit("tick", nil)
	}

	got := drain(sub)
	if len(got) != subscriberBuffer {
		t.Fatalf("pending events = %d, want %d", len(got), subscriberBuffer)
	}
	if got[len(got)-1].ID != total {
		t.Errorf("newest pending id = %d, want %d", got[len(got)-1].ID, total)
	}
}

func TestEmitter_ConcurrentEmit(t *testing.T) {
	em := NewEmitter(1000)

	var wg sync.WaitGroup
	const goroutines = 8
	const perG = 50

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				em.Emit("tick", nil)
			}
		}()
	}
	wg.Wait()

	buf := em.Snapshot()
	if len(buf) != goroutines*perG {
		t.Fatalf("buffered %d events, want %d", len(buf), goroutines*perG)
	}
	for i, ev := range buf {
		if ev.ID != i+1 {
			t.Fatalf("id at index %d = %d, want %d (gap or reorder)", i, ev.ID, i+1)
		}
	}
}

func TestEvent_Encode(t *testing.T) {
	ev := Event{ID: 7, Name: "page.completed", Data: map[string]any{"page": 3}}
	got := ev.Encode()

	want := "id: 7\nevent: page.completed\ndata: {\"page\":3}\n\n"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
	if !strings.HasSuffix(got, "\n\n") {
		t.Error("encoded event missing terminating blank line")
	}
}
