package events

import (
	"sync"
	"testing"
)

func TestRegistry_GetOrCreateIdempotent(t *testing.T) {
	r := NewRegistry(50)

	a := r.GetOrCreate("job-1")
	b := r.GetOrCreate("job-1")
	if a != b {
		t.Error("GetOrCreate returned different emitters for the same job")
	}

	c := r.GetOrCreate("job-2")
	if c == a {
		t.Error("distinct jobs share an emitter")
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(50)

	if r.Get("missing") != nil {
		t.Error("Get on unknown job should return nil")
	}

	em := r.GetOrCreate("job-1")
	if r.Get("job-1") != em {
		t.Error("Get did not return the created emitter")
	}
}

func TestRegistry_RemoveClosesEmitter(t *testing.T) {
	r := NewRegistry(50)
	em := r.GetOrCreate("job-1")
	sub := em.Subscribe()

	r.Remove("job-1")

	if !em.Closed() {
		t.Error("Remove did not close the emitter")
	}
	if _, ok := <-sub.C; ok {
		t.Error("subscriber channel not closed on Remove")
	}
	if r.Get("job-1") != nil {
		t.Error("emitter still registered after Remove")
	}

	// Removing again is harmless.
	r.Remove("job-1")
}

func TestRegistry_ConcurrentGetOrCreate(t *testing.T) {
	r := NewRegistry(50)

	var wg sync.WaitGroup
	emitters := make([]*Emitter, 16)
	for i := range emitters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			emitters[i] = r.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(emitters); i++ {
		if emitters[i] != emitters[0] {
			t.Fatal("concurrent GetOrCreate produced distinct emitters")
		}
	}
}
