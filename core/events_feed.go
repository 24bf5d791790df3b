package core

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"streamvault/core/types"
)

const eventHistoryLimit = 2048

// EventUpdate is one entry in the ledger event feed. The cursor is an opaque
// resume token; replaying with the last seen cursor returns only newer
// entries.
type EventUpdate struct {
	Sequence uint64
	Cursor   string
	Height   uint64
	Event    *types.Event
}

func cloneEventUpdate(update EventUpdate) EventUpdate {
	cloned := update
	if update.Event != nil {
		evt := &types.Event{Type: update.Event.Type}
		if update.Event.Attributes != nil {
			evt.Attributes = make(map[string]string, len(update.Event.Attributes))
			for k, v := range update.Event.Attributes {
				evt.Attributes[k] = v
			}
		}
		cloned.Event = evt
	}
	return cloned
}

type eventFeed struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan EventUpdate
	history []EventUpdate
}

func (f *eventFeed) publish(evt *types.Event, height uint64) {
	if f == nil || evt == nil {
		return
	}

	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[uint64]chan EventUpdate)
	}
	f.seq++
	update := EventUpdate{
		Sequence: f.seq,
		Cursor:   strconv.FormatUint(f.seq, 10),
		Height:   height,
		Event:    evt,
	}
	f.history = append(f.history, cloneEventUpdate(update))
	if len(f.history) > eventHistoryLimit {
		excess := len(f.history) - eventHistoryLimit
		trimmed := make([]EventUpdate, eventHistoryLimit)
		copy(trimmed, f.history[excess:])
		f.history = trimmed
	}
	subscribers := make([]chan EventUpdate, 0, len(f.subs))
	for _, ch := range f.subs {
		subscribers = append(subscribers, ch)
	}
	f.mu.Unlock()

	broadcast := cloneEventUpdate(update)
	for _, ch := range subscribers {
		select {
		case ch <- broadcast:
		default:
		}
	}
}

func parseCursor(cursor string) uint64 {
	trimmed := strings.TrimSpace(cursor)
	if trimmed == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func (f *eventFeed) since(cursor string) []EventUpdate {
	if f == nil {
		return nil
	}
	after := parseCursor(cursor)

	f.mu.Lock()
	history := make([]EventUpdate, len(f.history))
	copy(history, f.history)
	f.mu.Unlock()

	out := make([]EventUpdate, 0, len(history))
	for _, entry := range history {
		if entry.Sequence > after {
			out = append(out, cloneEventUpdate(entry))
		}
	}
	return out
}

func (f *eventFeed) subscribe(ctx context.Context, cursor string) (<-chan EventUpdate, func(), []EventUpdate) {
	updates := make(chan EventUpdate, 32)
	after := parseCursor(cursor)

	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[uint64]chan EventUpdate)
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = updates
	history := make([]EventUpdate, len(f.history))
	copy(history, f.history)
	f.mu.Unlock()

	backlog := make([]EventUpdate, 0, len(history))
	for _, entry := range history {
		if entry.Sequence > after {
			backlog = append(backlog, cloneEventUpdate(entry))
		}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			sub, ok := f.subs[id]
			if ok {
				delete(f.subs, id)
				close(sub)
			}
			f.mu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return updates, cancel, backlog
}
