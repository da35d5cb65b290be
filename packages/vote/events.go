package vote

import (
	"time"

	"github.com/iotaledger/hive.go/events"
	"go.uber.org/atomic"

	"github.com/iotaledger/fpc/packages/opinion"
)

// RoundStats carries the aggregate outcome of a single round, the payload
// of a RoundExecutedEvent.
type RoundStats struct {
	Round              uint64
	Duration           time.Duration
	ActiveContexts     int
	FinalizedContexts  int
	FailedContexts     int
	PeersQueried       int
	PeersErrored       int
}

// Event is the tagged union emitted on a voter's event sink: exactly one of
// RoundExecutedEvent, FinalizedEvent or FailedEvent.
type Event interface {
	isEvent()
}

// RoundExecutedEvent is emitted once per round, after every active context
// has been re-evaluated.
type RoundExecutedEvent struct {
	Stats RoundStats
}

func (RoundExecutedEvent) isEvent() {}

// FinalizedEvent is emitted exactly once per context, the moment it crosses
// the finalization threshold.
type FinalizedEvent struct {
	ID         opinion.ID
	ObjectType opinion.ObjectType
	Opinion    opinion.Opinion
}

func (FinalizedEvent) isEvent() {}

// FailedEvent is emitted exactly once per context that exceeds
// max_rounds_per_vote without finalizing. Disabled when that bound is 0.
type FailedEvent struct {
	ID          opinion.ID
	ObjectType  opinion.ObjectType
	LastOpinion opinion.Opinion
}

func (FailedEvent) isEvent() {}

// EventSink is a voter's external event surface: a bounded-or-unbounded
// channel handed in at construction. The voter writes, the client reads.
type EventSink interface {
	// Send delivers ev without blocking the round engine. A sink backed by
	// a full bounded channel must drop ev and track that itself (e.g. a
	// Dropped counter) rather than block.
	Send(ev Event)
}

// ChannelEventSink adapts a Go channel (buffered or unbuffered, the
// client's choice) into an EventSink. Send never blocks: if the channel is
// full the event is dropped and Dropped is bumped.
type ChannelEventSink struct {
	ch      chan Event
	dropped atomic.Uint64
}

// NewChannelEventSink wraps ch. Closing ch is the caller's responsibility,
// and must only happen after the voter that owns this sink is no longer in
// use.
func NewChannelEventSink(ch chan Event) *ChannelEventSink {
	return &ChannelEventSink{ch: ch}
}

// Send implements EventSink.
func (s *ChannelEventSink) Send(ev Event) {
	select {
	case s.ch <- ev:
	default:
		s.dropped.Inc()
	}
}

// Dropped returns the number of events dropped because the channel was
// full at the time of Send.
func (s *ChannelEventSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Channel returns the receive side of the wrapped channel, for callers
// that constructed the sink themselves and want to drain it directly.
func (s *ChannelEventSink) Channel() <-chan Event {
	return s.ch
}

// bus is the internal hive.go/events pub-sub used by in-process observers
// (metrics, dashboard, logging) that want to Attach a closure rather than
// read a channel. The round engine triggers both the bus and the caller's
// EventSink for every event, so both integration styles see the same
// stream.
type bus struct {
	RoundExecuted *events.Event
	Finalized     *events.Event
	Failed        *events.Event
}

func newBus() *bus {
	return &bus{
		RoundExecuted: events.NewEvent(roundStatsCaller),
		Finalized:     events.NewEvent(opinionEventCaller),
		Failed:        events.NewEvent(opinionEventCaller),
	}
}

func roundStatsCaller(handler interface{}, params ...interface{}) {
	handler.(func(*RoundStats))(params[0].(*RoundStats))
}

func opinionEventCaller(handler interface{}, params ...interface{}) {
	handler.(func(*OpinionEvent))(params[0].(*OpinionEvent))
}

// OpinionEvent is the payload handed to the internal bus's Finalized and
// Failed events.
type OpinionEvent struct {
	ID         opinion.ID
	ObjectType opinion.ObjectType
	Opinion    opinion.Opinion
}

// Bus exposes the internal hive.go/events handlers for in-process
// observers to Attach to.
type Bus struct {
	b *bus
}

// NewBus constructs an empty event bus with no observers attached.
func NewBus() Bus {
	return Bus{b: newBus()}
}

// Trigger fans ev out to both the hive.go/events bus and sink, so
// in-process observers (Attach) and external channel readers see the same
// stream. The round engine in package fpc calls this once per event.
func (e Bus) Trigger(sink EventSink, ev Event) {
	if sink != nil {
		sink.Send(ev)
	}
	switch t := ev.(type) {
	case RoundExecutedEvent:
		stats := t.Stats
		e.b.RoundExecuted.Trigger(&stats)
	case FinalizedEvent:
		e.b.Finalized.Trigger(&OpinionEvent{ID: t.ID, ObjectType: t.ObjectType, Opinion: t.Opinion})
	case FailedEvent:
		e.b.Failed.Trigger(&OpinionEvent{ID: t.ID, ObjectType: t.ObjectType, Opinion: t.LastOpinion})
	}
}

// RoundExecuted returns the event triggered after every round.
func (e Bus) RoundExecuted() *events.Event { return e.b.RoundExecuted }

// Finalized returns the event triggered once per finalized context.
func (e Bus) Finalized() *events.Event { return e.b.Finalized }

// Failed returns the event triggered once per context that exceeded
// max_rounds_per_vote.
func (e Bus) Failed() *events.Event { return e.b.Failed }
