package fpc

import (
	"sync"

	"github.com/iotaledger/fpc/packages/opinion"
	"github.com/iotaledger/fpc/packages/rng"
	"github.com/iotaledger/fpc/packages/vote"
)

// tally accumulates likes/total_valid per id across every responding peer
// in a round. One weighted response (a peer sampled w times) contributes w
// to both likes (if Like) and total_valid (if not Unknown).
type tally struct {
	mu sync.Mutex

	conflictIDs  []opinion.ID
	timestampIDs []opinion.ID

	conflictLikes  []int
	conflictValid  []int
	timestampLikes []int
	timestampValid []int
}

func newTally(snapshot vote.QueryContext) *tally {
	return &tally{
		conflictIDs:    snapshot.ConflictIDs,
		timestampIDs:   snapshot.TimestampIDs,
		conflictLikes:  make([]int, len(snapshot.ConflictIDs)),
		conflictValid:  make([]int, len(snapshot.ConflictIDs)),
		timestampLikes: make([]int, len(snapshot.TimestampIDs)),
		timestampValid: make([]int, len(snapshot.TimestampIDs)),
	}
}

func (t *tally) addConflict(opinions []opinion.Opinion, weight int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	add(opinions, weight, t.conflictLikes, t.conflictValid)
}

func (t *tally) addTimestamp(opinions []opinion.Opinion, weight int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	add(opinions, weight, t.timestampLikes, t.timestampValid)
}

func add(opinions []opinion.Opinion, weight int, likes, valid []int) {
	for i, o := range opinions {
		if o == opinion.Unknown {
			continue
		}
		valid[i] += weight
		if o == opinion.Like {
			likes[i] += weight
		}
	}
}

// eta returns likes/total_valid for index i, and false if total_valid == 0
// (undefined — no peer returned a usable opinion for that id this round).
func eta(likes, valid []int, i int) (float64, bool) {
	if valid[i] == 0 {
		return 0, false
	}
	return float64(likes[i]) / float64(valid[i]), true
}

// formOpinions applies the opinion update rule to every id in snapshot,
// drawing a fresh threshold per id. It returns the
// registry updates for ids that received at least one valid opinion, and
// the keys of ids that received none (aged without a new opinion).
func (v *Voter) formOpinions(snapshot vote.QueryContext, tly *tally, source rng.Source) (updates []vote.Update, aged []vote.Key) {
	apply := func(id opinion.ID, objectType opinion.ObjectType, isNew bool, likes, valid []int, i int) {
		key := vote.Key{ID: id, ObjectType: objectType}

		value, ok := eta(likes, valid, i)
		if !ok {
			aged = append(aged, key)
			return
		}

		bounds := v.cfg.SubsequentRoundBounds
		if isNew {
			bounds = v.cfg.FirstRoundBounds
		}
		tau := randUniformThreshold(source, bounds.Lower, bounds.Upper)

		newOpinion := opinion.Dislike
		if value > tau {
			newOpinion = opinion.Like
		}
		updates = append(updates, vote.Update{Key: key, NewOpinion: newOpinion})
	}

	for i, id := range snapshot.ConflictIDs {
		apply(id, opinion.ConflictType, snapshot.ConflictIsNew[i], tly.conflictLikes, tly.conflictValid, i)
	}
	for i, id := range snapshot.TimestampIDs {
		apply(id, opinion.TimestampType, snapshot.TimestampIsNew[i], tly.timestampLikes, tly.timestampValid, i)
	}

	return updates, aged
}
