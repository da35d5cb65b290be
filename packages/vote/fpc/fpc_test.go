package fpc

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/fpc/packages/opinion"
	"github.com/iotaledger/fpc/packages/rng"
	"github.com/iotaledger/fpc/packages/vote"
)

// stubGiver answers every query with a fixed opinion, regardless of which
// ids were asked for.
type stubGiver struct {
	id     opinion.PeerIdentifier
	answer opinion.Opinion
}

func (g *stubGiver) Query(_ context.Context, ids []opinion.ID, _ opinion.ObjectType) ([]opinion.Opinion, error) {
	out := make([]opinion.Opinion, len(ids))
	for i := range out {
		out[i] = g.answer
	}
	return out, nil
}

func (g *stubGiver) ID() opinion.PeerIdentifier { return g.id }

func uniformGivers(n int, answer opinion.Opinion) []opinion.OpinionGiver {
	givers := make([]opinion.OpinionGiver, n)
	for i := range givers {
		givers[i] = &stubGiver{id: opinion.PeerIdentifier(string(rune('a' + i))), answer: answer}
	}
	return givers
}

// sliceSink collects every event in order, for assertions; a real caller
// would use vote.NewChannelEventSink instead.
type sliceSink struct {
	mu  sync.Mutex
	evs []vote.Event
}

func (s *sliceSink) Send(ev vote.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evs = append(s.evs, ev)
}

func (s *sliceSink) events() []vote.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]vote.Event, len(s.evs))
	copy(out, s.evs)
	return out
}

func newTestVoter(t *testing.T, givers []opinion.OpinionGiver, opts ...vote.Option) (*Voter, *sliceSink) {
	t.Helper()
	sink := &sliceSink{}
	allOpts := append([]vote.Option{
		vote.WithOpinionGiverFunc(func() ([]opinion.OpinionGiver, error) { return givers, nil }),
		vote.WithEventSink(sink),
		vote.WithQuerySampleSize(21),
	}, opts...)

	v, err := New(allOpts...)
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return v, sink
}

func findFinalized(evs []vote.Event) (vote.FinalizedEvent, bool) {
	for _, ev := range evs {
		if f, ok := ev.(vote.FinalizedEvent); ok {
			return f, true
		}
	}
	return vote.FinalizedEvent{}, false
}

func findFailed(evs []vote.Event) (vote.FailedEvent, bool) {
	for _, ev := range evs {
		if f, ok := ev.(vote.FailedEvent); ok {
			return f, true
		}
	}
	return vote.FailedEvent{}, false
}

// TestDoRound_UnanimousLikeFinalizes exercises the common case: 21
// opinion-givers each return Like; after 10 rounds Finalized{Like} fires.
func TestDoRound_UnanimousLikeFinalizes(t *testing.T) {
	givers := uniformGivers(21, opinion.Like)
	v, sink := newTestVoter(t, givers)
	id := opinion.NewID([]byte("scenario-1"))
	require.NoError(t, v.Vote(id, opinion.ConflictType, opinion.Like))

	source := rng.NewMockSource(1)
	for i := 0; i < 10; i++ {
		require.NoError(t, v.DoRound(source))
	}

	finalized, ok := findFinalized(sink.events())
	require.True(t, ok, "expected a Finalized event within 10 rounds")
	assert.Equal(t, id, finalized.ID)
	assert.Equal(t, opinion.Like, finalized.Opinion)

	_, err := v.Status(id, opinion.ConflictType)
	assert.ErrorIs(t, err, vote.ErrNotFound)
}

// TestDoRound_FlipFromLikeToDislike covers a flip on the first round:
// initial opinion Like, all peers return Dislike. Round 1 uses the
// degenerate first-round bounds (0.67, 0.67), eta == 0 <= tau, so the
// opinion flips immediately.
func TestDoRound_FlipFromLikeToDislike(t *testing.T) {
	givers := uniformGivers(21, opinion.Dislike)
	v, _ := newTestVoter(t, givers)
	id := opinion.NewID([]byte("scenario-2"))
	require.NoError(t, v.Vote(id, opinion.ConflictType, opinion.Like))

	source := rng.NewMockSource(2)
	require.NoError(t, v.DoRound(source))

	view, err := v.Status(id, opinion.ConflictType)
	require.NoError(t, err)
	assert.Equal(t, opinion.Dislike, view.Opinions.Last())
	assert.Equal(t, uint32(1), view.Rounds)
}

// TestDoRound_FlippingPeersNeverFinalize covers non-convergence: peers
// alternate 100% Like / 100% Dislike every round, so after the first round
// the opinion flips every round, rounds is reset to 1 each time, and Failed
// fires once max_rounds_per_vote is hit.
func TestDoRound_FlippingPeersNeverFinalize(t *testing.T) {
	id := opinion.NewID([]byte("scenario-3"))
	v, sink := newTestVoter(t, nil, vote.WithMaxRoundsPerVote(6))
	require.NoError(t, v.Vote(id, opinion.ConflictType, opinion.Like))

	source := rng.NewMockSource(3)
	for i := 0; i < 6; i++ {
		answer := opinion.Like
		if i%2 == 1 {
			answer = opinion.Dislike
		}
		v.cfg.OpinionGiverFunc = func() ([]opinion.OpinionGiver, error) {
			return uniformGivers(21, answer), nil
		}
		require.NoError(t, v.DoRound(source))
	}

	failed, ok := findFailed(sink.events())
	require.True(t, ok, "expected a Failed event once max_rounds_per_vote is exceeded")
	assert.Equal(t, id, failed.ID)
}

// TestDoRound_NoAnswersCarriesOpinionForward covers an unresponsive peer
// pool: all peers return Unknown, so the current opinion carries forward
// and rounds still increments toward finalization.
func TestDoRound_NoAnswersCarriesOpinionForward(t *testing.T) {
	givers := uniformGivers(5, opinion.Unknown)
	v, _ := newTestVoter(t, givers)
	id := opinion.NewID([]byte("scenario-4"))
	require.NoError(t, v.Vote(id, opinion.ConflictType, opinion.Like))

	source := rng.NewMockSource(4)
	for i := 0; i < 9; i++ {
		require.NoError(t, v.DoRound(source))
	}

	view, err := v.Status(id, opinion.ConflictType)
	require.NoError(t, err)
	assert.Equal(t, opinion.Like, view.Opinions.Last())
	assert.Equal(t, uint32(10), view.Rounds)
	assert.Len(t, view.Opinions, 1, "an unanswered round must not append a new opinion")
}

// TestDoRound_NoOpinionGivers covers an empty candidate pool: a round
// entered with no peers returns ErrNoOpinionGivers without emitting events.
func TestDoRound_NoOpinionGivers(t *testing.T) {
	v, sink := newTestVoter(t, nil)
	id := opinion.NewID([]byte("scenario-5"))
	require.NoError(t, v.Vote(id, opinion.ConflictType, opinion.Like))

	err := v.DoRound(rng.NewMockSource(5))
	assert.ErrorIs(t, err, opinion.ErrNoOpinionGivers)
	assert.Empty(t, sink.events())
}

// TestDoRound_EmptyRegistry_StillEmitsRoundExecuted ensures a round with no
// active contexts still produces a RoundExecuted marker clients can use as
// a barrier clients can rely on for ordering.
func TestDoRound_EmptyRegistry_StillEmitsRoundExecuted(t *testing.T) {
	v, sink := newTestVoter(t, nil)
	require.NoError(t, v.DoRound(rng.NewMockSource(6)))

	evs := sink.events()
	require.Len(t, evs, 1)
	executed, ok := evs[0].(vote.RoundExecutedEvent)
	require.True(t, ok)
	assert.Equal(t, 0, executed.Stats.ActiveContexts)
}

// TestDoRound_PerIDTallyIsIsolated checks that ids are tallied separately
// within one round: a single peer answers pure Like for one id and pure
// Dislike for the other, so the two ids must resolve oppositely in the
// same round.
func TestDoRound_PerIDTallyIsIsolated(t *testing.T) {
	likeID := opinion.NewID([]byte("likely"))
	dislikeID := opinion.NewID([]byte("dislikely"))

	giver := &splitGiver{
		like:    likeID,
		dislike: dislikeID,
	}
	v, _ := newTestVoter(t, []opinion.OpinionGiver{giver})
	require.NoError(t, v.Vote(likeID, opinion.ConflictType, opinion.Like))
	require.NoError(t, v.Vote(dislikeID, opinion.ConflictType, opinion.Like))

	require.NoError(t, v.DoRound(rng.NewMockSource(7)))

	likeView, err := v.Status(likeID, opinion.ConflictType)
	require.NoError(t, err)
	dislikeView, err := v.Status(dislikeID, opinion.ConflictType)
	require.NoError(t, err)

	assert.Equal(t, opinion.Like, likeView.Opinions.Last())
	assert.Equal(t, opinion.Dislike, dislikeView.Opinions.Last())
}

// splitGiver answers Like for one specific id and Dislike for every other,
// used to prove per-id tally isolation within a single round.
type splitGiver struct {
	like, dislike opinion.ID
}

func (g *splitGiver) Query(_ context.Context, ids []opinion.ID, _ opinion.ObjectType) ([]opinion.Opinion, error) {
	out := make([]opinion.Opinion, len(ids))
	for i, id := range ids {
		if id == g.like {
			out[i] = opinion.Like
		} else {
			out[i] = opinion.Dislike
		}
	}
	return out, nil
}

func (g *splitGiver) ID() opinion.PeerIdentifier { return "split" }
