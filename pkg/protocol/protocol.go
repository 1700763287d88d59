// Package protocol is the wire format between the relay and its clients. Every websocket text frame carries one
// Envelope naming the event and holding its payload.
package protocol

import (
	"encoding/json"
	"errors"

	"golang.org/x/xerrors"

	"github.com/astromechza/pizza-relay/pkg/pizza"
)

const (
	// EventRequests carries the full snapshot, sent once to a newly connected client.
	EventRequests = "requests"
	// EventStatus carries the live connection count to everyone.
	EventStatus = "status"
	// EventUpsert is sent by clients to create, update or (with slices <= 0) delete their request.
	EventUpsert = "upsert"
	// EventRequest broadcasts an accepted upsert.
	EventRequest = "request"
	// EventDelete broadcasts a deletion. Clients may also send it to delete explicitly.
	EventDelete = "delete"
)

var (
	ErrMalformed    = errors.New("malformed frame")
	ErrUnknownEvent = errors.New("unknown event")
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Status struct {
	Connections int `json:"connections"`
}

type Deletion struct {
	Name string `json:"name"`
}

func Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode %s payload: %w", event, err)
	}
	out, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, xerrors.Errorf("failed to encode %s envelope: %w", event, err)
	}
	return out, nil
}

func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, xerrors.Errorf("%v: %w", err, ErrMalformed)
	}
	if env.Event == "" {
		return env, xerrors.Errorf("missing event: %w", ErrMalformed)
	}
	return env, nil
}

func (e Envelope) decodeData(into interface{}) error {
	if len(e.Data) == 0 {
		return xerrors.Errorf("%s without data: %w", e.Event, ErrMalformed)
	}
	if err := json.Unmarshal(e.Data, into); err != nil {
		return xerrors.Errorf("%s: %v: %w", e.Event, err, ErrMalformed)
	}
	return nil
}

func (e Envelope) Upsert() (pizza.RawRequest, error) {
	var out pizza.RawRequest
	err := e.decodeData(&out)
	return out, err
}

// Request decodes a broadcast request, filtering its toppings again since clients don't trust the wire either.
func (e Envelope) Request() (pizza.Request, error) {
	var out pizza.Request
	if err := e.decodeData(&out); err != nil {
		return out, err
	}
	out.Toppings = pizza.FilterToppings(out.Toppings)
	return out, nil
}

func (e Envelope) Requests() ([]pizza.Request, error) {
	var out []pizza.Request
	if err := e.decodeData(&out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Toppings = pizza.FilterToppings(out[i].Toppings)
	}
	return out, nil
}

func (e Envelope) Deletion() (Deletion, error) {
	var out Deletion
	err := e.decodeData(&out)
	return out, err
}

func (e Envelope) Status() (Status, error) {
	var out Status
	err := e.decodeData(&out)
	return out, err
}
