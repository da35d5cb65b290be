package vote

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/fpc/packages/opinion"
)

func TestRegistry_Enqueue_DuplicateID(t *testing.T) {
	r := NewRegistry()
	id := opinion.NewID([]byte("x"))

	require.NoError(t, r.Enqueue(id, opinion.ConflictType, opinion.Like))
	err := r.Enqueue(id, opinion.ConflictType, opinion.Dislike)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Enqueue_InvalidOpinion(t *testing.T) {
	r := NewRegistry()
	err := r.Enqueue(opinion.NewID([]byte("y")), opinion.ConflictType, opinion.Unknown)
	assert.ErrorIs(t, err, opinion.ErrInvalidOpinion)
	assert.Equal(t, 0, r.Len())
}

// TestRegistry_CompositeKey_TypeIsolation covers type isolation: a
// Conflict vote and a Timestamp vote on the byte-identical id coexist
// independently.
func TestRegistry_CompositeKey_TypeIsolation(t *testing.T) {
	r := NewRegistry()
	id := opinion.NewID([]byte("shared"))

	require.NoError(t, r.Enqueue(id, opinion.ConflictType, opinion.Like))
	require.NoError(t, r.Enqueue(id, opinion.TimestampType, opinion.Dislike))
	assert.Equal(t, 2, r.Len())

	conflictOpinion, err := r.IntermediateOpinion(id, opinion.ConflictType)
	require.NoError(t, err)
	assert.Equal(t, opinion.Like, conflictOpinion)

	tsOpinion, err := r.IntermediateOpinion(id, opinion.TimestampType)
	require.NoError(t, err)
	assert.Equal(t, opinion.Dislike, tsOpinion)
}

func TestRegistry_Snapshot_PartitionsByType(t *testing.T) {
	r := NewRegistry()
	conflictID := opinion.NewID([]byte("c"))
	tsID := opinion.NewID([]byte("t"))
	require.NoError(t, r.Enqueue(conflictID, opinion.ConflictType, opinion.Like))
	require.NoError(t, r.Enqueue(tsID, opinion.TimestampType, opinion.Dislike))

	qc := r.Snapshot()
	if !assert.Len(t, qc.ConflictIDs, 1) {
		t.Logf("%# v", pretty.Formatter(qc))
	}
	assert.Len(t, qc.TimestampIDs, 1)
	assert.Equal(t, conflictID, qc.ConflictIDs[0])
	assert.True(t, qc.ConflictIsNew[0])
}

func TestRegistry_Apply_AppendsAndAdjustsRounds(t *testing.T) {
	r := NewRegistry()
	id := opinion.NewID([]byte("z"))
	require.NoError(t, r.Enqueue(id, opinion.ConflictType, opinion.Like))

	key := Key{ID: id, ObjectType: opinion.ConflictType}
	r.Apply([]Update{{Key: key, NewOpinion: opinion.Like}})

	view, err := r.Status(id, opinion.ConflictType)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), view.Rounds)
	assert.Equal(t, opinion.Opinions{opinion.Like, opinion.Like}, view.Opinions)

	r.Apply([]Update{{Key: key, NewOpinion: opinion.Dislike}})
	view, err = r.Status(id, opinion.ConflictType)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), view.Rounds)
}

func TestRegistry_AgeWithoutOpinion_IncrementsRoundsWithoutAppending(t *testing.T) {
	r := NewRegistry()
	id := opinion.NewID([]byte("w"))
	require.NoError(t, r.Enqueue(id, opinion.ConflictType, opinion.Like))
	key := Key{ID: id, ObjectType: opinion.ConflictType}

	r.AgeWithoutOpinion([]Key{key})
	view, err := r.Status(id, opinion.ConflictType)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), view.Rounds)
	assert.Len(t, view.Opinions, 1, "aging without an opinion must not append to history")
}

func TestRegistry_Reap_FinalizesAndRemoves(t *testing.T) {
	r := NewRegistry()
	id := opinion.NewID([]byte("v"))
	require.NoError(t, r.Enqueue(id, opinion.ConflictType, opinion.Like))
	key := Key{ID: id, ObjectType: opinion.ConflictType}

	for i := 0; i < 10; i++ {
		r.Apply([]Update{{Key: key, NewOpinion: opinion.Like}})
	}

	evs := r.Reap(10, 0, 0)
	require.Len(t, evs, 1)
	finalized, ok := evs[0].(FinalizedEvent)
	require.True(t, ok)
	assert.Equal(t, opinion.Like, finalized.Opinion)
	assert.Equal(t, 0, r.Len())

	_, err := r.Status(id, opinion.ConflictType)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Reap_FailsOnMaxRounds(t *testing.T) {
	r := NewRegistry()
	id := opinion.NewID([]byte("u"))
	require.NoError(t, r.Enqueue(id, opinion.ConflictType, opinion.Like))
	key := Key{ID: id, ObjectType: opinion.ConflictType}

	// Flip every round so finalization never triggers, and exceed a small
	// MaxRoundsPerVote instead.
	for i := 0; i < 4; i++ {
		next := opinion.Dislike
		if i%2 == 1 {
			next = opinion.Like
		}
		r.Apply([]Update{{Key: key, NewOpinion: next}})
	}

	evs := r.Reap(10, 0, 5)
	require.Len(t, evs, 1)
	_, ok := evs[0].(FailedEvent)
	assert.True(t, ok)
}
