package system

import (
	"context"
	"time"

	"github.com/planetilt/host/internal/core/event"
	coresys "github.com/planetilt/host/internal/core/system"
	"github.com/planetilt/host/internal/persist"
	"go.uber.org/zap"
)

// maxBufferedBatches bounds the backlog kept while the sink is failing.
const maxBufferedBatches = 16

// EventSink stores gameplay events. *persist.PlaneEventRepo implements it.
type EventSink interface {
	WriteEvents(ctx context.Context, events []persist.PlaneEvent) error
}

// PersistenceSystem buffers plane events from the bus and writes them in
// batches every interval ticks, or sooner once a batch fills.
// Phase 5 (Persist).
type PersistenceSystem struct {
	sink      EventSink
	log       *zap.Logger
	buf       []persist.PlaneEvent
	tickCount int
	interval  int // flush every N ticks
	batchSize int
	now       func() time.Time
}

// NewPersistenceSystem subscribes to plane events on bus. A nil sink drops
// events without buffering.
func NewPersistenceSystem(bus *event.Bus, sink EventSink, intervalTicks, batchSize int, log *zap.Logger) *PersistenceSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	s := &PersistenceSystem{
		sink:      sink,
		log:       log,
		interval:  intervalTicks,
		batchSize: batchSize,
		now:       time.Now,
	}
	event.Subscribe(bus, func(ev event.PlaneJoined) {
		s.record(persist.PlaneEvent{Kind: persist.KindJoin, PlayerID: ev.PlayerID, PlayerName: ev.Name})
	})
	event.Subscribe(bus, func(ev event.PlaneLeft) {
		s.record(persist.PlaneEvent{Kind: persist.KindLeave, PlayerID: ev.PlayerID, PlayerName: ev.Name})
	})
	event.Subscribe(bus, func(ev event.PlaneFired) {
		s.record(persist.PlaneEvent{Kind: persist.KindFire, PlayerID: ev.PlayerID, PlayerName: ev.Name, X: ev.X, Y: ev.Y})
	})
	return s
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval && len(s.buf) < s.batchSize {
		return
	}
	s.tickCount = 0
	s.flush()
}

// Buffered returns the number of events waiting for the next flush.
func (s *PersistenceSystem) Buffered() int { return len(s.buf) }

// FlushAll writes everything buffered. Called for graceful shutdown.
func (s *PersistenceSystem) FlushAll() {
	s.flush()
}

func (s *PersistenceSystem) record(ev persist.PlaneEvent) {
	if s.sink == nil {
		return
	}
	ev.OccurredAt = s.now()
	if limit := s.batchSize * maxBufferedBatches; len(s.buf) >= limit {
		s.log.Warn("plane event backlog full, dropping oldest", zap.Int("limit", limit))
		s.buf = s.buf[1:]
	}
	s.buf = append(s.buf, ev)
}

func (s *PersistenceSystem) flush() {
	if s.sink == nil || len(s.buf) == 0 {
		return
	}
	for len(s.buf) > 0 {
		n := min(len(s.buf), s.batchSize)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.sink.WriteEvents(ctx, s.buf[:n])
		cancel()
		if err != nil {
			// keep the batch for the next attempt
			s.log.Error("plane event flush failed", zap.Int("events", len(s.buf)), zap.Error(err))
			return
		}
		s.buf = s.buf[n:]
	}
	s.buf = nil
}
