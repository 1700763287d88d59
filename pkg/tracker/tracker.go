package tracker

import "sync"

// Tracker keeps the set of live connection ids. The populated -> empty transition invokes the on-empty callback,
// which is how the relay knows to reset its store.
type Tracker struct {
	sync.Mutex
	conns   map[string]struct{}
	onEmpty func()
}

func New(onEmpty func()) *Tracker {
	return &Tracker{
		conns:   make(map[string]struct{}),
		onEmpty: onEmpty,
	}
}

// Connect registers id and returns the resulting count. Registering an id twice does not count it twice.
func (t *Tracker) Connect(id string) int {
	t.Lock()
	defer t.Unlock()
	t.conns[id] = struct{}{}
	return len(t.conns)
}

// Disconnect deregisters id and returns the remaining count. Unknown ids are ignored and never fire the callback.
func (t *Tracker) Disconnect(id string) int {
	t.Lock()
	if _, ok := t.conns[id]; !ok {
		n := len(t.conns)
		t.Unlock()
		return n
	}
	delete(t.conns, id)
	n := len(t.conns)
	t.Unlock()

	if n == 0 && t.onEmpty != nil {
		t.onEmpty()
	}
	return n
}

func (t *Tracker) Live(id string) bool {
	t.Lock()
	defer t.Unlock()
	_, ok := t.conns[id]
	return ok
}

func (t *Tracker) Count() int {
	t.Lock()
	defer t.Unlock()
	return len(t.conns)
}
