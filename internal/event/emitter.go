package event

import (
	"sync"

	"github.com/dkeye/Signalling/internal/domain"
	"github.com/samber/lo"
)

// Listener reacts to a message emitted on a channel.
type Listener func(msg domain.Message)

// Subscription identifies one registered listener.
type Subscription struct {
	ch Channel
	id uint64
}

func (s Subscription) Channel() Channel { return s.ch }

// Valid reports whether s was returned by On.
func (s Subscription) Valid() bool { return s.id != 0 }

type entry struct {
	id uint64
	fn Listener
}

// Emitter is an ordered, channel-keyed listener table. The zero value is ready to use.
// Emit invokes a snapshot, so listeners may call On/Off while being dispatched.
type Emitter struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[Channel][]entry
}

func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[Channel][]entry)}
}

// On appends fn to the listeners of ch.
func (e *Emitter) On(ch Channel, fn Listener) Subscription {
	if fn == nil {
		return Subscription{}
	}
	return e.add(ch, func(Subscription) Listener { return fn })
}

// Once registers fn for a single delivery on ch.
func (e *Emitter) Once(ch Channel, fn Listener) Subscription {
	if fn == nil {
		return Subscription{}
	}
	return e.add(ch, func(sub Subscription) Listener {
		var once sync.Once
		return func(msg domain.Message) {
			once.Do(func() {
				e.Off(sub)
				fn(msg)
			})
		}
	})
}

// add registers the listener built by wrap. wrap gets the subscription
// before the listener becomes visible to Emit.
func (e *Emitter) add(ch Channel, wrap func(Subscription) Listener) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[Channel][]entry)
	}
	e.nextID++
	sub := Subscription{ch: ch, id: e.nextID}
	e.listeners[ch] = append(e.listeners[ch], entry{id: sub.id, fn: wrap(sub)})
	return sub
}

// Off removes the listener behind sub. It reports whether one was removed.
func (e *Emitter) Off(sub Subscription) bool {
	if !sub.Valid() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.listeners[sub.ch]
	kept := lo.Reject(list, func(en entry, _ int) bool { return en.id == sub.id })
	if len(kept) == len(list) {
		return false
	}
	if len(kept) == 0 {
		delete(e.listeners, sub.ch)
	} else {
		e.listeners[sub.ch] = kept
	}
	return true
}

// RemoveAll drops every listener on ch.
func (e *Emitter) RemoveAll(ch Channel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, ch)
}

func (e *Emitter) ListenerCount(ch Channel) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[ch])
}

// Emit calls the listeners of ch in subscription order and reports whether
// there was at least one.
func (e *Emitter) Emit(ch Channel, msg domain.Message) bool {
	e.mu.RLock()
	snapshot := append([]entry(nil), e.listeners[ch]...)
	e.mu.RUnlock()

	for _, en := range snapshot {
		en.fn(msg)
	}
	return len(snapshot) > 0
}
