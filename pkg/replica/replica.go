// Package replica is a client's local copy of the order. The requests live in an automerge document under the
// "requests" map, one entry per name, so the replica can be saved, reloaded and its history inspected.
package replica

import (
	"sort"
	"sync"

	"github.com/automerge/automerge-go"
	"golang.org/x/xerrors"

	"github.com/astromechza/pizza-relay/pkg/pizza"
	"github.com/astromechza/pizza-relay/pkg/protocol"
)

const requestsKey = "requests"

type Replica struct {
	mu          sync.Mutex
	doc         *automerge.Doc
	connections int
}

// New creates an empty replica. The actor id must be hex, or empty for a random one.
func New(actorID string) (*Replica, error) {
	doc := automerge.New()
	if actorID != "" {
		if err := doc.SetActorID(actorID); err != nil {
			return nil, xerrors.Errorf("failed to set actor id: %w", err)
		}
	}
	if err := doc.Path(requestsKey).Set(map[string]interface{}{}); err != nil {
		return nil, xerrors.Errorf("failed to seed doc: %w", err)
	}
	if _, err := doc.Commit("seed", automerge.CommitOptions{AllowEmpty: true}); err != nil {
		return nil, xerrors.Errorf("failed to commit seed: %w", err)
	}
	return &Replica{doc: doc}, nil
}

func Load(raw []byte) (*Replica, error) {
	doc, err := automerge.Load(raw)
	if err != nil {
		return nil, xerrors.Errorf("failed to load doc: %w", err)
	}
	return &Replica{doc: doc}, nil
}

// Apply folds one relay event into the replica.
func (r *Replica) Apply(env protocol.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch env.Event {
	case protocol.EventRequests:
		reqs, err := env.Requests()
		if err != nil {
			return err
		}
		all := make(map[string]interface{}, len(reqs))
		for _, req := range reqs {
			if req.Name != "" {
				all[req.Name] = toValue(req)
			}
		}
		if err := r.doc.Path(requestsKey).Set(all); err != nil {
			return xerrors.Errorf("failed to replace requests: %w", err)
		}
		return r.commit("snapshot")
	case protocol.EventRequest:
		req, err := env.Request()
		if err != nil {
			return err
		}
		if req.Name == "" {
			return xerrors.Errorf("request without name: %w", protocol.ErrMalformed)
		}
		if err := r.doc.Path(requestsKey, req.Name).Set(toValue(req)); err != nil {
			return xerrors.Errorf("failed to set %s: %w", req.Name, err)
		}
		return r.commit("upsert " + req.Name)
	case protocol.EventDelete:
		del, err := env.Deletion()
		if err != nil {
			return err
		}
		v, err := r.doc.Path(requestsKey, del.Name).Get()
		if err != nil {
			return xerrors.Errorf("failed to get %s: %w", del.Name, err)
		}
		if v.Kind() == automerge.KindVoid {
			return nil
		}
		if err := r.doc.Path(requestsKey, del.Name).Delete(); err != nil {
			return xerrors.Errorf("failed to delete %s: %w", del.Name, err)
		}
		return r.commit("delete " + del.Name)
	case protocol.EventStatus:
		st, err := env.Status()
		if err != nil {
			return err
		}
		r.connections = st.Connections
		return nil
	default:
		return xerrors.Errorf("%q: %w", env.Event, protocol.ErrUnknownEvent)
	}
}

func (r *Replica) commit(msg string) error {
	if _, err := r.doc.Commit(msg, automerge.CommitOptions{AllowEmpty: true}); err != nil {
		return xerrors.Errorf("failed to commit %s: %w", msg, err)
	}
	return nil
}

func (r *Replica) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connections
}

func (r *Replica) Requests() ([]pizza.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RequestsOf(r.doc)
}

func (r *Replica) Composition() (pizza.Composition, error) {
	reqs, err := r.Requests()
	if err != nil {
		return pizza.Composition{}, err
	}
	return pizza.Compose(reqs), nil
}

func (r *Replica) Save() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.Save()
}

func (r *Replica) ActorID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.ActorID()
}

// Fork returns an independent copy of the underlying document.
func (r *Replica) Fork() (*automerge.Doc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.Fork()
}

func toValue(req pizza.Request) map[string]interface{} {
	toppings := make([]string, len(req.Toppings))
	copy(toppings, req.Toppings)
	return map[string]interface{}{
		"name":     req.Name,
		"slices":   int64(req.Slices),
		"approx":   req.Approx,
		"toppings": toppings,
	}
}

// RequestsOf reads the requests held in doc, ordered by name.
func RequestsOf(doc *automerge.Doc) ([]pizza.Request, error) {
	out := make([]pizza.Request, 0)
	v, err := doc.Path(requestsKey).Get()
	if err != nil {
		return nil, xerrors.Errorf("failed to get requests: %w", err)
	}
	if v.Kind() != automerge.KindMap {
		return out, nil
	}
	names, err := v.Map().Keys()
	if err != nil {
		return nil, xerrors.Errorf("failed to list requests: %w", err)
	}
	for _, name := range names {
		req, err := readRequest(doc, name)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func readRequest(doc *automerge.Doc, name string) (pizza.Request, error) {
	req := pizza.Request{Name: name, Toppings: []string{}}

	slices, err := doc.Path(requestsKey, name, "slices").Get()
	if err != nil {
		return req, xerrors.Errorf("failed to get slices of %s: %w", name, err)
	}
	switch slices.Kind() {
	case automerge.KindInt64:
		req.Slices = int(slices.Int64())
	case automerge.KindUint64:
		req.Slices = int(slices.Uint64())
	}

	approx, err := doc.Path(requestsKey, name, "approx").Get()
	if err != nil {
		return req, xerrors.Errorf("failed to get approx of %s: %w", name, err)
	}
	if approx.Kind() == automerge.KindBool {
		req.Approx = approx.Bool()
	}

	toppings, err := doc.Path(requestsKey, name, "toppings").Get()
	if err != nil {
		return req, xerrors.Errorf("failed to get toppings of %s: %w", name, err)
	}
	if toppings.Kind() == automerge.KindList {
		list := toppings.List()
		for i := 0; i < list.Len(); i++ {
			t, err := list.Get(i)
			if err != nil {
				return req, xerrors.Errorf("failed to get topping %d of %s: %w", i, name, err)
			}
			if t.Kind() == automerge.KindStr {
				req.Toppings = append(req.Toppings, t.Str())
			}
		}
	}
	return req, nil
}
