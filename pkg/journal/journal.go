// Package journal keeps a write-only audit trail of what the relay broadcast. It is fed off the mutation path
// through a bounded queue so a slow database or broker never holds up the store. Nothing is ever read back into
// the store: the order still starts empty after a restart.
package journal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	KindRequest = "request"
	KindDelete  = "delete"
	KindReset   = "reset"
)

type Entry struct {
	ID      string          `json:"id"`
	At      time.Time       `json:"at"`
	Kind    string          `json:"kind"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEntry(kind, name string, payload json.RawMessage) Entry {
	return Entry{
		ID:      uuid.NewString(),
		At:      time.Now().UTC(),
		Kind:    kind,
		Name:    name,
		Payload: payload,
	}
}

type Sink interface {
	Write(ctx context.Context, e Entry) error
	Close() error
}

// Recorder fans entries out to its sinks from a single goroutine.
type Recorder struct {
	log     zerolog.Logger
	sinks   []Sink
	queue   chan Entry
	dropped uint64
	mu      sync.Mutex
}

func NewRecorder(log zerolog.Logger, size int, sinks ...Sink) *Recorder {
	if size <= 0 {
		size = 256
	}
	return &Recorder{
		log:   log,
		sinks: sinks,
		queue: make(chan Entry, size),
	}
}

// Record enqueues without blocking. When the queue is full the entry is dropped.
func (r *Recorder) Record(e Entry) {
	if r == nil || len(r.sinks) == 0 {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()
		r.log.Warn().Str("kind", e.Kind).Str("name", e.Name).Uint64("dropped", dropped).Msg("journal queue full, dropping entry")
	}
}

func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Run drains the queue until ctx is done, then flushes what is left and closes the sinks.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case e := <-r.queue:
			r.write(ctx, e)
		case <-ctx.Done():
			r.flush()
			for _, s := range r.sinks {
				if err := s.Close(); err != nil {
					r.log.Err(err).Msg("failed to close journal sink")
				}
			}
			return
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case e := <-r.queue:
			r.write(ctx, e)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, e Entry) {
	for _, s := range r.sinks {
		if err := s.Write(ctx, e); err != nil {
			r.log.Err(err).Str("kind", e.Kind).Str("name", e.Name).Msg("failed to write journal entry")
		}
	}
}
