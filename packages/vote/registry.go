package vote

import (
	"sync"

	"github.com/iotaledger/fpc/packages/opinion"
)

// QueryContext is the immutable per-round snapshot handed to the round
// engine: the ids to query, partitioned by object type, and the opinion
// each currently holds. It is never mutated after construction.
type QueryContext struct {
	ConflictIDs       []opinion.ID
	ConflictOpinions  []opinion.Opinion
	ConflictIsNew     []bool
	TimestampIDs      []opinion.ID
	TimestampOpinions []opinion.Opinion
	TimestampIsNew    []bool
}

// Registry owns every active vote context exclusively. The round engine
// only ever sees a QueryContext snapshot or hands back opinion deltas
// through Apply.
type Registry struct {
	mu   sync.RWMutex
	ctxs map[Key]*Context
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctxs: make(map[Key]*Context)}
}

// Enqueue inserts a new context keyed by (id, objectType). It fails with
// ErrDuplicateID if an active context with the same key exists, and with
// opinion.ErrInvalidOpinion if initial is opinion.Unknown.
func (r *Registry) Enqueue(id opinion.ID, objectType opinion.ObjectType, initial opinion.Opinion) error {
	if initial == opinion.Unknown {
		return opinion.ErrInvalidOpinion
	}

	key := Key{ID: id, ObjectType: objectType}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctxs[key]; exists {
		return ErrDuplicateID
	}
	r.ctxs[key] = NewContext(id, objectType, initial)
	return nil
}

// Snapshot takes a shared read lock just long enough to copy out every
// active context's id, type and current opinion, then releases it. Queries
// are issued against this snapshot while the registry accepts new votes
// and write-backs from concurrent callers.
func (r *Registry) Snapshot() QueryContext {
	r.mu.RLock()
	defer r.mu.RUnlock()

	qc := QueryContext{}
	for key, ctx := range r.ctxs {
		switch key.ObjectType {
		case opinion.ConflictType:
			qc.ConflictIDs = append(qc.ConflictIDs, key.ID)
			qc.ConflictOpinions = append(qc.ConflictOpinions, ctx.LastOpinion())
			qc.ConflictIsNew = append(qc.ConflictIsNew, ctx.IsNew())
		case opinion.TimestampType:
			qc.TimestampIDs = append(qc.TimestampIDs, key.ID)
			qc.TimestampOpinions = append(qc.TimestampOpinions, ctx.LastOpinion())
			qc.TimestampIsNew = append(qc.TimestampIsNew, ctx.IsNew())
		}
	}
	return qc
}

// Update is a single id's opinion delta, applied to the registry by Apply.
type Update struct {
	Key        Key
	NewOpinion opinion.Opinion
}

// Apply writes back every update's new opinion, appending it to that
// context's history: rounds is incremented when the new opinion repeats
// the previous tail, reset to 1 otherwise. Keys absent from the registry
// (raced with a concurrent finalization sweep) are silently skipped.
func (r *Registry) Apply(updates []Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range updates {
		ctx, ok := r.ctxs[u.Key]
		if !ok {
			continue
		}
		ctx.AddOpinion(u.NewOpinion)
	}
}

// AgeWithoutOpinion increments the rounds counter of every context in keys
// without appending a new opinion. It is used for the "no peer answered"
// branch of the opinion update rule, where the context stays at its
// current opinion but still ages a round. A context whose current opinion
// is Unknown is not aged.
func (r *Registry) AgeWithoutOpinion(keys []Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		ctx, ok := r.ctxs[key]
		if !ok {
			continue
		}
		if ctx.LastOpinion() == opinion.Unknown {
			continue
		}
		ctx.Rounds++
	}
}

// Reap sweeps for contexts that have finalized or exceeded maxRounds,
// removing them and returning the events to emit for them. Callers must
// emit a RoundExecuted event themselves before these, so observers always
// see a round's barrier event before any terminal events from that round.
func (r *Registry) Reap(finalizationThreshold, coolingOffPeriod, maxRounds uint32) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evs []Event
	for key, ctx := range r.ctxs {
		switch {
		case ctx.IsFinalized(coolingOffPeriod, finalizationThreshold):
			evs = append(evs, FinalizedEvent{ID: key.ID, ObjectType: key.ObjectType, Opinion: ctx.LastOpinion()})
			delete(r.ctxs, key)
		case ctx.HasExceededMaxRounds(maxRounds):
			evs = append(evs, FailedEvent{ID: key.ID, ObjectType: key.ObjectType, LastOpinion: ctx.LastOpinion()})
			delete(r.ctxs, key)
		}
	}
	return evs
}

// Status returns a read-only view of the context for (id, objectType), or
// ErrNotFound if no such context is active.
func (r *Registry) Status(id opinion.ID, objectType opinion.ObjectType) (View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctx, ok := r.ctxs[Key{ID: id, ObjectType: objectType}]
	if !ok {
		return View{}, ErrNotFound
	}
	return ctx.view(), nil
}

// IntermediateOpinion returns the current (tail) opinion of the context for
// (id, objectType), or ErrNotFound if no such context is active.
func (r *Registry) IntermediateOpinion(id opinion.ID, objectType opinion.ObjectType) (opinion.Opinion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctx, ok := r.ctxs[Key{ID: id, ObjectType: objectType}]
	if !ok {
		return opinion.Unknown, ErrNotFound
	}
	return ctx.LastOpinion(), nil
}

// Len returns the number of active contexts. Used for RoundStats.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ctxs)
}
