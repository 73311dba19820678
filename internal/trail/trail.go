// Package trail keeps, per chat user, the IDs of recent bot messages and
// recent user commands so the bot can tidy the conversation before each reply.
//
// Both sequences are bounded deques: appending to a full sequence drops the
// oldest ID first. State lives in memory for the lifetime of the process;
// losing it on restart only leaves a few stale messages in a chat.
package trail

import (
	"sync"
)

// DefaultCapacity bounds each per-user sequence.
const DefaultCapacity = 10

type entry struct {
	mu       sync.Mutex
	bot      []int
	commands []int
}

// Trail is a concurrency-safe keyed store of per-user message IDs. Mutations
// for one user are serialized; different users never contend beyond a map
// lookup.
type Trail struct {
	capacity int

	mu      sync.RWMutex
	entries map[int64]*entry
}

// New returns a Trail whose sequences hold at most capacity IDs each.
// A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Trail {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Trail{capacity: capacity, entries: make(map[int64]*entry)}
}

func (t *Trail) get(userID int64) *entry {
	t.mu.RLock()
	e, ok := t.entries[userID]
	t.mu.RUnlock()
	if ok {
		return e
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[userID]; !ok {
		e = &entry{}
		t.entries[userID] = e
	}
	return e
}

func (t *Trail) push(seq []int, id int) []int {
	if len(seq) >= t.capacity {
		seq = append(seq[:0], seq[len(seq)-t.capacity+1:]...)
	}
	return append(seq, id)
}

// RecordBotMessage remembers a message the bot sent to userID.
func (t *Trail) RecordBotMessage(userID int64, messageID int) {
	e := t.get(userID)
	e.mu.Lock()
	e.bot = t.push(e.bot, messageID)
	e.mu.Unlock()
}

// RecordUserCommand remembers an inbound message (command, text, or contact)
// from userID.
func (t *Trail) RecordUserCommand(userID int64, messageID int) {
	e := t.get(userID)
	e.mu.Lock()
	e.commands = t.push(e.commands, messageID)
	e.mu.Unlock()
}

// DrainAndReset returns every stored bot message ID and every stored command
// ID except the newest, then clears the bot sequence and collapses the
// command sequence to that newest ID. Returned slices are owned by the caller.
func (t *Trail) DrainAndReset(userID int64) (botIDs, staleCommandIDs []int) {
	e := t.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.bot) > 0 {
		botIDs = append([]int(nil), e.bot...)
		e.bot = e.bot[:0]
	}
	if n := len(e.commands); n > 1 {
		staleCommandIDs = append([]int(nil), e.commands[:n-1]...)
		last := e.commands[n-1]
		e.commands = append(e.commands[:0], last)
	}
	return botIDs, staleCommandIDs
}

// Snapshot returns copies of the user's current sequences.
func (t *Trail) Snapshot(userID int64) (botIDs, commandIDs []int) {
	t.mu.RLock()
	e, ok := t.entries[userID]
	t.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.bot...), append([]int(nil), e.commands...)
}

// Users reports how many chat users have an entry.
func (t *Trail) Users() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
