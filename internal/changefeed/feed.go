// Package changefeed fans row changes out to in-process subscribers.
//
// Handlers publish a Change after every successful write. Subscribers pick
// the changes they care about with a Filter and get back a cancel function.
// Callbacks run on the publisher's goroutine and must not block.
package changefeed

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Change describes one row write.
type Change struct {
	ID      string    `json:"id"`
	Table   string    `json:"table"`
	Action  Action    `json:"action"`
	HouseID int64     `json:"house_id"`
	RowID   int64     `json:"row_id"`
	At      time.Time `json:"at"`
	Data    any       `json:"data,omitempty"`
}

// NewChange builds a Change with a fresh id and timestamp.
func NewChange(table string, action Action, houseID, rowID int64, data any) Change {
	return Change{
		ID:      uuid.NewString(),
		Table:   table,
		Action:  action,
		HouseID: houseID,
		RowID:   rowID,
		At:      time.Now().UTC(),
		Data:    data,
	}
}

// Filter selects changes. Zero fields match everything.
type Filter struct {
	Table   string
	HouseID int64
}

func (f Filter) Match(c Change) bool {
	if f.Table != "" && f.Table != c.Table {
		return false
	}
	if f.HouseID != 0 && f.HouseID != c.HouseID {
		return false
	}
	return true
}

type subscription struct {
	filter   Filter
	onChange func(Change)
}

type Feed struct {
	mu     sync.RWMutex
	subs   map[uint64]subscription
	next   uint64
	logger *slog.Logger
}

func New(logger *slog.Logger) *Feed {
	return &Feed{
		subs:   make(map[uint64]subscription),
		logger: logger,
	}
}

// Subscribe registers onChange for changes matching filter. The returned
// cancel function is safe to call more than once.
func (f *Feed) Subscribe(filter Filter, onChange func(Change)) (cancel func()) {
	f.mu.Lock()
	f.next++
	id := f.next
	f.subs[id] = subscription{filter: filter, onChange: onChange}
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Publish delivers c to every matching subscriber. A nil Feed drops the change.
func (f *Feed) Publish(c Change) {
	if f == nil {
		return
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	f.mu.RLock()
	targets := make([]func(Change), 0, len(f.subs))
	for _, s := range f.subs {
		if s.filter.Match(c) {
			targets = append(targets, s.onChange)
		}
	}
	f.mu.RUnlock()

	for _, fn := range targets {
		f.deliver(fn, c)
	}
}

func (f *Feed) deliver(fn func(Change), c Change) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("change subscriber panicked", "table", c.Table, "action", c.Action, "panic", r)
		}
	}()
	fn(c)
}

// SubscriberCount returns the number of live subscriptions.
func (f *Feed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
