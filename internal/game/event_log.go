package game

import (
	"bufio"
	"encoding/json"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	EventBufferSize    = 1024 // events waiting for the writer
	RecentEventsSize   = 64   // events kept for the API
	MaxEventsPerSec    = 2000
	MaxEventsPerEntity = 60 // per second, per enemy or player
	FlushInterval      = 250 * time.Millisecond
	EntityIdleTimeout  = 2 * time.Minute
)

// EventLog records gameplay events (swings, fractures, kills) and appends
// them to disk as JSON lines. Emit never blocks the frame loop: events over
// the rate limits or past a full queue are dropped and counted.
type EventLog struct {
	pending chan Event

	global *rate.Limiter

	entityMu sync.Mutex
	entities map[string]*entityBudget

	// ring of the latest events; seq is assigned under the same lock so
	// Recent always comes back in sequence order
	recentMu sync.Mutex
	recent   [RecentEventsSize]Event
	recentN  int
	seq      uint64

	file *os.File
	out  *bufio.Writer
	enc  *json.Encoder

	// lifecycle guards Start and Stop; a stopped log may be started again
	lifecycle sync.Mutex
	running   atomic.Bool
	stop      chan struct{}
	done      sync.WaitGroup

	total   atomic.Uint64
	dropped atomic.Uint64
}

type entityBudget struct {
	tokens   *rate.Limiter
	lastUsed time.Time
}

// NewEventLog creates a stopped log; Emit is a no-op until Start.
func NewEventLog() *EventLog {
	return &EventLog{
		pending:  make(chan Event, EventBufferSize),
		global:   rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		entities: make(map[string]*entityBudget),
	}
}

// Start launches the writer. An empty path keeps events in memory only.
func (el *EventLog) Start(filePath string) error {
	el.lifecycle.Lock()
	defer el.lifecycle.Unlock()

	if el.running.Load() {
		return nil
	}
	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return errors.Wrapf(err, "open event log %s", filePath)
		}
		el.file = f
		el.out = bufio.NewWriter(f)
		el.enc = json.NewEncoder(el.out)
	}

	el.stop = make(chan struct{})
	el.running.Store(true)
	el.done.Add(1)
	go el.writeLoop(el.stop)
	return nil
}

// Stop drains the queue, flushes and closes the file
func (el *EventLog) Stop() {
	el.lifecycle.Lock()
	defer el.lifecycle.Unlock()

	if !el.running.Swap(false) {
		return
	}
	close(el.stop)
	el.done.Wait()

	if el.file != nil {
		if err := el.out.Flush(); err != nil {
			log.Printf("⚠️ Event log flush: %v", err)
		}
		el.file.Close()
		el.file, el.out, el.enc = nil, nil, nil
	}
}

// Emit queues an event. It reports false when the log is stopped or the
// event was throttled.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}
	if !el.global.Allow() || !el.allowEntity(event.EntityID, time.Now()) {
		el.dropped.Add(1)
		return false
	}

	el.recentMu.Lock()
	el.seq++
	event.Sequence = el.seq
	el.recent[(el.seq-1)%RecentEventsSize] = event
	if el.recentN < RecentEventsSize {
		el.recentN++
	}
	el.recentMu.Unlock()

	el.total.Add(1)
	select {
	case el.pending <- event:
	default:
		// still visible in Recent, just never reaches disk
		el.dropped.Add(1)
	}
	return true
}

// EmitSimple builds and emits an event in one call
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, entityID string, payload interface{}) bool {
	return el.Emit(NewEvent(eventType, tickNum, entityID, payload))
}

// Recent returns up to n of the latest events, oldest first. n <= 0 means
// all that are kept.
func (el *EventLog) Recent(n int) []Event {
	el.recentMu.Lock()
	defer el.recentMu.Unlock()

	if n <= 0 || n > el.recentN {
		n = el.recentN
	}
	out := make([]Event, n)
	first := el.seq - uint64(n)
	for i := range out {
		out[i] = el.recent[(first+uint64(i))%RecentEventsSize]
	}
	return out
}

// allowEntity spends one token from the entity's own budget. Anonymous
// events only count against the global limit.
func (el *EventLog) allowEntity(id string, now time.Time) bool {
	if id == "" {
		return true
	}
	el.entityMu.Lock()
	defer el.entityMu.Unlock()

	b, ok := el.entities[id]
	if !ok {
		b = &entityBudget{tokens: rate.NewLimiter(MaxEventsPerEntity, MaxEventsPerEntity/4)}
		el.entities[id] = b
	}
	b.lastUsed = now
	return b.tokens.AllowN(now, 1)
}

// forgetIdle drops budgets of entities quiet since cutoff. Dead enemies
// stop emitting, so without this the map grows for the whole session.
func (el *EventLog) forgetIdle(cutoff time.Time) int {
	el.entityMu.Lock()
	defer el.entityMu.Unlock()
	for id, b := range el.entities {
		if b.lastUsed.Before(cutoff) {
			delete(el.entities, id)
		}
	}
	return len(el.entities)
}

func (el *EventLog) writeLoop(stop <-chan struct{}) {
	defer el.done.Done()

	flush := time.NewTicker(FlushInterval)
	defer flush.Stop()
	prune := time.NewTicker(EntityIdleTimeout)
	defer prune.Stop()

	for {
		select {
		case ev := <-el.pending:
			el.write(ev)
		case <-flush.C:
			if el.out != nil {
				if err := el.out.Flush(); err != nil {
					log.Printf("⚠️ Event log flush: %v", err)
				}
			}
		case now := <-prune.C:
			el.forgetIdle(now.Add(-EntityIdleTimeout))
		case <-stop:
			for {
				select {
				case ev := <-el.pending:
					el.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (el *EventLog) write(ev Event) {
	if el.enc == nil {
		return
	}
	// Encode appends the newline
	if err := el.enc.Encode(ev); err != nil {
		log.Printf("⚠️ Event log write: %v", err)
	}
}

// GetStats returns counters for the stats endpoint
func (el *EventLog) GetStats() map[string]interface{} {
	el.entityMu.Lock()
	entities := len(el.entities)
	el.entityMu.Unlock()

	return map[string]interface{}{
		"total":    el.total.Load(),
		"dropped":  el.dropped.Load(),
		"pending":  len(el.pending),
		"entities": entities,
		"running":  el.running.Load(),
	}
}

// GetDroppedCount returns the number of events that were throttled or
// never reached disk
func (el *EventLog) GetDroppedCount() uint64 {
	return el.dropped.Load()
}

// GetTotalCount returns the number of events accepted
func (el *EventLog) GetTotalCount() uint64 {
	return el.total.Load()
}
