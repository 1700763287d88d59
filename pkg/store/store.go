// Package store holds the authoritative set of pizza requests.
//
// Every mutation goes through Upsert or Delete, which decide what happened and return an Outcome describing the
// delta to broadcast. A raw request with slices <= 0 is a deletion request for that name: this overload is part of
// the wire contract and is kept alongside the explicit Delete.
package store

import (
	"sort"
	"sync"

	"github.com/astromechza/pizza-relay/pkg/pizza"
)

type Kind int

const (
	Rejected Kind = iota
	Applied
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Applied:
		return "applied"
	case Deleted:
		return "deleted"
	default:
		return "rejected"
	}
}

type Reason string

const (
	ReasonEmptyName       Reason = "empty name"
	ReasonNameTooLong     Reason = "name too long"
	ReasonNothingToDelete Reason = "nothing to delete"
	ReasonCapacity        Reason = "capacity exceeded"
	ReasonNotFound        Reason = "not found"
)

// Outcome is the result of a mutation attempt. Request is set for Applied, Name for Applied and Deleted and
// Reason for Rejected.
type Outcome struct {
	Kind    Kind
	Name    string
	Request pizza.Request
	Reason  Reason
}

func rejected(name string, reason Reason) Outcome {
	return Outcome{Kind: Rejected, Name: name, Reason: reason}
}

type Store struct {
	sync.RWMutex
	limits   pizza.Limits
	requests map[string]pizza.Request
}

func New(limits pizza.Limits) *Store {
	return &Store{
		limits:   limits,
		requests: make(map[string]pizza.Request),
	}
}

func (s *Store) Limits() pizza.Limits {
	return s.limits
}

// Snapshot returns a copy of every request ordered by name.
func (s *Store) Snapshot() []pizza.Request {
	s.RLock()
	defer s.RUnlock()
	out := make([]pizza.Request, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *Store) Get(name string) (pizza.Request, bool) {
	s.RLock()
	defer s.RUnlock()
	r, ok := s.requests[name]
	if !ok {
		return pizza.Request{}, false
	}
	return r.Clone(), true
}

func (s *Store) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.requests)
}

// Upsert validates and applies a raw request.
func (s *Store) Upsert(raw pizza.RawRequest) Outcome {
	if raw.Name == "" {
		return rejected("", ReasonEmptyName)
	}
	if len(raw.Name) > pizza.MaxNameLength {
		return rejected(raw.Name[:pizza.MaxNameLength], ReasonNameTooLong)
	}

	s.Lock()
	defer s.Unlock()

	_, exists := s.requests[raw.Name]
	if raw.IsDeletion() {
		if !exists {
			return rejected(raw.Name, ReasonNothingToDelete)
		}
		delete(s.requests, raw.Name)
		return Outcome{Kind: Deleted, Name: raw.Name}
	}

	if !exists && s.limits.MaxRequests > 0 && len(s.requests) >= s.limits.MaxRequests {
		return rejected(raw.Name, ReasonCapacity)
	}

	req := raw.Normalize(s.limits)
	s.requests[req.Name] = req
	return Outcome{Kind: Applied, Name: req.Name, Request: req.Clone()}
}

// Delete removes a request by name.
func (s *Store) Delete(name string) Outcome {
	if name == "" {
		return rejected("", ReasonEmptyName)
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.requests[name]; !ok {
		return rejected(name, ReasonNotFound)
	}
	delete(s.requests, name)
	return Outcome{Kind: Deleted, Name: name}
}

// Reset drops every request. No outcome is produced: clients learn about it from the empty snapshot they get
// when they next connect.
func (s *Store) Reset() int {
	s.Lock()
	defer s.Unlock()
	n := len(s.requests)
	s.requests = make(map[string]pizza.Request)
	return n
}
