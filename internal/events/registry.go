package events

import "sync"

// Registry is a process-wide mapping from job ID to event emitter.
type Registry struct {
	mu         sync.Mutex
	emitters   map[string]*Emitter
	bufferSize int
}

// NewRegistry creates a registry whose emitters use the given ring buffer
// capacity.
func NewRegistry(bufferSize int) *Registry {
	return &Registry{
		emitters:   make(map[string]*Emitter),
		bufferSize: bufferSize,
	}
}

// GetOrCreate returns the emitter for a job, creating it if needed.
// Repeated calls with the same job ID return the same emitter.
func (r *Registry) GetOrCreate(jobID string) *Emitter {
	r.mu.Lock()
	defer r.mu.Unlock()

	em, ok := r.emitters[jobID]
	if !ok {
		em = NewEmitter(r.bufferSize)
		r.emitters[jobID] = em
	}
	return em
}

// Get returns the emitter for a job, or nil if none exists.
func (r *Registry) Get(jobID string) *Emitter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emitters[jobID]
}

// Remove closes a job's emitter and drops it from the registry.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	em := r.emitters[jobID]
	delete(r.emitters, jobID)
	r.mu.Unlock()

	if em != nil {
		em.Close()
	}
}
