// Package relay is the hub every client connects to. It serializes connect, disconnect, upsert and delete events
// through one lock so that each one is validated, applied and fanned out before the next is looked at.
package relay

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"github.com/astromechza/pizza-relay/pkg/journal"
	"github.com/astromechza/pizza-relay/pkg/protocol"
	"github.com/astromechza/pizza-relay/pkg/store"
	"github.com/astromechza/pizza-relay/pkg/tracker"
)

const (
	DefaultSendBuffer = 64
	minSendBuffer     = 4
)

var ErrNotLive = errors.New("session is not live")

// Session is one connected client. Frames for it are queued on a bounded channel which the transport drains.
type Session struct {
	ID   string
	send chan []byte
}

// Send is closed once the session has been removed from the relay.
func (s *Session) Send() <-chan []byte {
	return s.send
}

type Options struct {
	SendBuffer     int
	AllowedOrigins []string
}

type Stats struct {
	Connections int
	Requests    int
}

type Relay struct {
	mu         sync.Mutex
	log        zerolog.Logger
	store      *store.Store
	tracker    *tracker.Tracker
	journal    *journal.Recorder
	sessions   map[string]*Session
	sendBuffer int
	upgrader   websocket.Upgrader
}

// New wires a relay around st. The journal recorder may be nil.
func New(log zerolog.Logger, st *store.Store, rec *journal.Recorder, opts Options) *Relay {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.SendBuffer < minSendBuffer {
		opts.SendBuffer = minSendBuffer
	}
	r := &Relay{
		log:        log,
		store:      st,
		journal:    rec,
		sessions:   make(map[string]*Session),
		sendBuffer: opts.SendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
		},
	}
	r.tracker = tracker.New(r.reset)
	return r
}

func (r *Relay) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Connections: r.tracker.Count(), Requests: r.store.Len()}
}

// Join registers a new session. Its queue starts with the snapshot, followed by the status broadcast that
// announces it to everyone.
func (r *Relay) Join() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot, err := protocol.Encode(protocol.EventRequests, r.store.Snapshot())
	if err != nil {
		return nil, err
	}

	sess := &Session{ID: xid.New().String(), send: make(chan []byte, r.sendBuffer)}
	r.sessions[sess.ID] = sess
	n := r.tracker.Connect(sess.ID)
	sess.send <- snapshot

	r.log.Info().Str("session", sess.ID).Int("connections", n).Msg("+ connected")
	r.broadcastStatus(n)
	return sess, nil
}

// Leave removes the session. It is safe to call more than once.
func (r *Relay) Leave(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(sess)
}

// Handle applies one inbound frame from sess. Rejected mutations are not errors: they are dropped without
// telling anyone, just like malformed frames, but the error lets the transport log what happened.
func (r *Relay) Handle(sess *Session, frame []byte) error {
	env, err := protocol.Decode(frame)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.tracker.Live(sess.ID) {
		return ErrNotLive
	}

	switch env.Event {
	case protocol.EventUpsert:
		raw, err := env.Upsert()
		if err != nil {
			return err
		}
		r.apply(sess, r.store.Upsert(raw))
	case protocol.EventDelete:
		del, err := env.Deletion()
		if err != nil {
			return err
		}
		r.apply(sess, r.store.Delete(del.Name))
	default:
		return xerrors.Errorf("%q: %w", env.Event, protocol.ErrUnknownEvent)
	}
	return nil
}

func (r *Relay) apply(sess *Session, out store.Outcome) {
	switch out.Kind {
	case store.Applied:
		r.log.Info().Str("session", sess.ID).Str("request", out.Request.String()).Msg("upserted request")
		payload, err := json.Marshal(out.Request)
		if err != nil {
			r.log.Err(err).Msg("failed to marshal request")
			return
		}
		r.broadcast(protocol.EventRequest, out.Request)
		r.journal.Record(journal.NewEntry(journal.KindRequest, out.Name, payload))
	case store.Deleted:
		r.log.Info().Str("session", sess.ID).Str("name", out.Name).Msg("deleted request")
		r.broadcast(protocol.EventDelete, protocol.Deletion{Name: out.Name})
		r.journal.Record(journal.NewEntry(journal.KindDelete, out.Name, nil))
	default:
		r.log.Debug().Str("session", sess.ID).Str("name", out.Name).Str("reason", string(out.Reason)).Msg("ignored request")
	}
}

// reset runs from the tracker when the last connection goes away, with r.mu already held.
func (r *Relay) reset() {
	n := r.store.Reset()
	r.log.Info().Int("dropped", n).Msg("no connections left, order reset")
	r.journal.Record(journal.NewEntry(journal.KindReset, "", nil))
}

func (r *Relay) drop(sess *Session) {
	if _, ok := r.sessions[sess.ID]; !ok {
		return
	}
	delete(r.sessions, sess.ID)
	close(sess.send)

	n := r.tracker.Disconnect(sess.ID)
	r.log.Info().Str("session", sess.ID).Int("connections", n).Msg("- disconnected")
	if n > 0 {
		r.broadcastStatus(n)
	}
}

func (r *Relay) broadcastStatus(n int) {
	r.broadcast(protocol.EventStatus, protocol.Status{Connections: n})
}

// broadcast queues the event for every session without waiting. Sessions that can't keep up are dropped; they
// catch up from the snapshot when they reconnect.
func (r *Relay) broadcast(event string, payload interface{}) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		r.log.Err(err).Str("event", event).Msg("failed to encode broadcast")
		return
	}

	var slow []*Session
	for _, sess := range r.sessions {
		select {
		case sess.send <- frame:
		default:
			slow = append(slow, sess)
		}
	}
	for _, sess := range slow {
		r.log.Warn().Str("session", sess.ID).Msg("send queue full, dropping session")
		r.drop(sess)
	}
}
