package pizza

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

const (
	DefaultMaxRequests = 16
	DefaultMaxSlices   = 16
	// DefaultSlices is what a fresh request starts with on the client.
	DefaultSlices = 2
	// MaxNameLength is in bytes. Longer names are refused rather than stored.
	MaxNameLength = 128
)

// Request is the canonical record held by the relay, keyed by Name.
type Request struct {
	Name     string   `json:"name"`
	Slices   int      `json:"slices"`
	Approx   bool     `json:"approx"`
	Toppings []string `json:"toppings"`
}

// RawRequest is what a client submits. Nothing in it is trusted: the name may be empty, the slice count may be
// zero or negative (which means delete), toppings may be unknown or repeated and presentation fields like Color
// may have leaked in from the client's view layer.
type RawRequest struct {
	Name     string   `json:"name"`
	Slices   int      `json:"slices"`
	Approx   bool     `json:"approx"`
	Toppings []string `json:"toppings"`
	Color    string   `json:"color,omitempty"`
}

// UnmarshalJSON accepts any JSON number for slices. Fractions are truncated toward zero, so 2.0 and 2.7 are both
// 2 and -0.5 is a deletion.
func (r *RawRequest) UnmarshalJSON(data []byte) error {
	type plain RawRequest
	aux := struct {
		*plain
		Slices json.Number `json:"slices"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Slices = 0
	if aux.Slices == "" {
		return nil
	}
	f, err := strconv.ParseFloat(string(aux.Slices), 64)
	if err != nil {
		return xerrors.Errorf("slices %q: %w", aux.Slices, err)
	}
	f = math.Trunc(f)
	switch {
	case f > math.MaxInt32:
		r.Slices = math.MaxInt32
	case f < math.MinInt32:
		r.Slices = math.MinInt32
	default:
		r.Slices = int(f)
	}
	return nil
}

// Limits bound what a single request and the whole order may contain.
type Limits struct {
	MaxRequests int
	MaxSlices   int
	ClampSlices bool
}

func DefaultLimits() Limits {
	return Limits{
		MaxRequests: DefaultMaxRequests,
		MaxSlices:   DefaultMaxSlices,
		ClampSlices: true,
	}
}

// Normalize turns a raw request with a positive slice count into a canonical Request. Color is dropped, slices are
// clamped when the limits ask for it and toppings are filtered to the vocabulary.
func (r RawRequest) Normalize(limits Limits) Request {
	slices := r.Slices
	if limits.ClampSlices && limits.MaxSlices > 0 && slices > limits.MaxSlices {
		slices = limits.MaxSlices
	}
	return Request{
		Name:     r.Name,
		Slices:   slices,
		Approx:   r.Approx,
		Toppings: FilterToppings(r.Toppings),
	}
}

// IsDeletion reports whether the raw request uses the slices <= 0 convention to ask for removal.
func (r RawRequest) IsDeletion() bool {
	return r.Slices <= 0
}

func (r Request) Clone() Request {
	out := r
	out.Toppings = make([]string, len(r.Toppings))
	copy(out.Toppings, r.Toppings)
	return out
}

func (r Request) HasTopping(name string) bool {
	for _, t := range r.Toppings {
		if t == name {
			return true
		}
	}
	return false
}

func (r Request) String() string {
	approx := ""
	if r.Approx {
		approx = "~"
	}
	return fmt.Sprintf("%s: %s%d [%s]", r.Name, approx, r.Slices, strings.Join(r.Toppings, ", "))
}
