// Package fpc implements the Fast Probabilistic Consensus voting kernel:
// the round engine and voter façade that turn a registry of opaque voting
// objects and a pool of opinion givers into finalized or failed opinions,
// with independent per-id threshold draws and bounded per-peer retries.
package fpc

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/atomic"

	"github.com/iotaledger/fpc/packages/clock"
	"github.com/iotaledger/fpc/packages/opinion"
	"github.com/iotaledger/fpc/packages/rng"
	"github.com/iotaledger/fpc/packages/vote"
)

// Voter is the external surface of the FPC core: queue new votes, drive a
// round, read intermediate opinions, observe events. There is no CLI
// surface at this layer — that lives in plugins/voter.
type Voter struct {
	cfg      *vote.Config
	registry *vote.Registry
	bus      vote.Bus
	pool     *ants.Pool

	roundMu sync.Mutex
	round   uint64

	closed atomic.Bool
}

// New constructs a Voter from the given options. It fails if either
// required option (opinion_giver_fn, event_sink) is missing.
func New(opts ...vote.Option) (*Voter, error) {
	cfg, err := vote.NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(cfg.PeerPoolSize)
	if err != nil {
		return nil, errors.Wrap(err, "fpc: creating peer query pool")
	}

	return &Voter{
		cfg:      cfg,
		registry: vote.NewRegistry(),
		bus:      vote.NewBus(),
		pool:     pool,
	}, nil
}

// Close releases the Voter's internal goroutine pool. A Voter must not be
// used after Close.
func (v *Voter) Close() {
	v.closed.Store(true)
	v.pool.Release()
}

// Bus returns the internal hive.go/events handlers in-process observers
// can Attach to, independently of whatever EventSink was configured.
func (v *Voter) Bus() vote.Bus {
	return v.bus
}

// Vote enqueues a new context for id/objectType with the given initial
// opinion. It is a thin wrapper over registry.Enqueue, safe to call
// concurrently with DoRound — the new context is picked up by the next
// round, never an in-flight one.
func (v *Voter) Vote(id opinion.ID, objectType opinion.ObjectType, initial opinion.Opinion) error {
	return v.registry.Enqueue(id, objectType, initial)
}

// IntermediateOpinion returns the current (tail) opinion held for
// id/objectType, or vote.ErrNotFound if no context is active.
func (v *Voter) IntermediateOpinion(id opinion.ID, objectType opinion.ObjectType) (opinion.Opinion, error) {
	return v.registry.IntermediateOpinion(id, objectType)
}

// Status returns a read-only snapshot of the context for id/objectType, or
// vote.ErrNotFound if no context is active.
func (v *Voter) Status(id opinion.ID, objectType opinion.ObjectType) (vote.View, error) {
	return v.registry.Status(id, objectType)
}

// DoRound executes exactly one round: snapshot the registry, partition by
// object type, sample peers with replacement, fan out queries
// concurrently, tally opinions, draw a fresh threshold per id, write back
// the new opinions, sweep for finalization and emit events. It returns
// only after every sampled peer's query has either returned or exhausted
// its retries.
//
// DoRound serializes with itself (a second call blocks until the first
// returns) but never blocks Vote.
func (v *Voter) DoRound(source rng.Source) error {
	v.roundMu.Lock()
	defer v.roundMu.Unlock()

	start := clock.SyncedTime()
	v.round++
	round := v.round

	snapshot := v.registry.Snapshot()
	totalIDs := len(snapshot.ConflictIDs) + len(snapshot.TimestampIDs)

	if totalIDs == 0 {
		v.emitRoundExecuted(round, start, nil)
		return nil
	}

	givers, err := v.cfg.OpinionGiverFunc()
	if err != nil {
		return errors.Wrap(err, "fpc: opinion_giver_fn")
	}
	if len(givers) == 0 {
		return opinion.ErrNoOpinionGivers
	}

	sample := sampleWithReplacement(givers, v.cfg.QuerySampleSize, source)

	tly := newTally(snapshot)
	peersQueried, peersErrored := v.queryPeers(sample, snapshot, tly)

	updates, aged := v.formOpinions(snapshot, tly, source)
	v.registry.Apply(updates)
	v.registry.AgeWithoutOpinion(aged)

	reaped := v.registry.Reap(v.cfg.FinalizationThreshold, v.cfg.CoolingOffPeriod, v.cfg.MaxRoundsPerVote)

	stats := vote.RoundStats{
		Round:             round,
		Duration:          clock.SyncedTime().Sub(start),
		ActiveContexts:    v.registry.Len(),
		FinalizedContexts: countEvents(reaped, finalizedKind),
		FailedContexts:    countEvents(reaped, failedKind),
		PeersQueried:      peersQueried,
		PeersErrored:      peersErrored,
	}
	v.bus.Trigger(v.cfg.EventSink, vote.RoundExecutedEvent{Stats: stats})

	// Emitted after RoundExecuted, even though the finalization sweep was
	// computed above to populate stats, so observers always see a round's
	// barrier event before any terminal events from that round.
	for _, ev := range reaped {
		v.bus.Trigger(v.cfg.EventSink, ev)
	}

	return nil
}

func (v *Voter) emitRoundExecuted(round uint64, start time.Time, reaped []vote.Event) {
	stats := vote.RoundStats{
		Round:          round,
		Duration:       clock.SyncedTime().Sub(start),
		ActiveContexts: v.registry.Len(),
	}
	v.bus.Trigger(v.cfg.EventSink, vote.RoundExecutedEvent{Stats: stats})
	for _, ev := range reaped {
		v.bus.Trigger(v.cfg.EventSink, ev)
	}
}

const (
	finalizedKind = iota
	failedKind
)

func countEvents(evs []vote.Event, kind int) int {
	n := 0
	for _, ev := range evs {
		switch ev.(type) {
		case vote.FinalizedEvent:
			if kind == finalizedKind {
				n++
			}
		case vote.FailedEvent:
			if kind == failedKind {
				n++
			}
		}
	}
	return n
}

// queryPeers fans out one Query call per (sampled peer, non-empty
// object-type batch) over the pool, retrying each up to MaxQueryAttempts
// times with a per-attempt timeout, and accumulates every response into
// tly weighted by how many times that peer was sampled.
func (v *Voter) queryPeers(sample map[opinion.OpinionGiver]int, snapshot vote.QueryContext, tly *tally) (peersQueried, peersErrored int) {
	var wg sync.WaitGroup
	var queried, errored atomic.Int64

	submit := func(giver opinion.OpinionGiver, ids []opinion.ID, objectType opinion.ObjectType, weight int, onSuccess func([]opinion.Opinion, int)) {
		wg.Add(1)
		err := v.pool.Submit(func() {
			defer wg.Done()
			opinions, err := v.queryWithRetry(giver, ids, objectType)
			if err != nil {
				errored.Inc()
				return
			}
			onSuccess(opinions, weight)
		})
		if err != nil {
			wg.Done()
			errored.Inc()
		}
	}

	for giver, weight := range sample {
		giver, weight := giver, weight
		queried.Inc()

		if len(snapshot.ConflictIDs) > 0 {
			submit(giver, snapshot.ConflictIDs, opinion.ConflictType, weight, tly.addConflict)
		}
		if len(snapshot.TimestampIDs) > 0 {
			submit(giver, snapshot.TimestampIDs, opinion.TimestampType, weight, tly.addTimestamp)
		}
	}

	wg.Wait()
	return int(queried.Load()), int(errored.Load())
}

// queryWithRetry issues Query against giver, retrying up to
// MaxQueryAttempts times on error, length mismatch, or per-attempt
// timeout. A single slow peer never blocks the round past its own timeout
// budget; failures exhaust silently and contribute nothing to the tally.
func (v *Voter) queryWithRetry(giver opinion.OpinionGiver, ids []opinion.ID, objectType opinion.ObjectType) ([]opinion.Opinion, error) {
	var lastErr error
	for attempt := 0; attempt < v.cfg.MaxQueryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), v.cfg.QueryTimeout)
		opinions, err := giver.Query(ctx, ids, objectType)
		cancel()

		if err == nil && len(opinions) == len(ids) {
			return opinions, nil
		}
		if err == nil {
			err = errors.Newf("fpc: opinion giver %s returned %d opinions for %d ids", giver.ID(), len(opinions), len(ids))
		}
		lastErr = &opinion.QueryError{Peer: giver.ID(), Err: err}
	}
	return nil, lastErr
}
