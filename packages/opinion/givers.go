package opinion

import (
	"context"

	"github.com/cockroachdb/errors"
)

// PeerIdentifier stably identifies an opinion giver across rounds. The
// round engine uses it to label query failures; sampling does not
// deduplicate by it.
type PeerIdentifier string

// OpinionGiver is the transport-agnostic contract a voter queries for
// opinions on a batch of ids. Implementations (HTTP, gRPC, libp2p, an
// in-process mock) live outside this module entirely.
type OpinionGiver interface {
	// Query returns opinions for ids, in the same order and of the same
	// length as ids. A position whose opinion is unavailable must be
	// Unknown rather than omitted.
	Query(ctx context.Context, ids []ID, objectType ObjectType) ([]Opinion, error)
	// ID returns the peer's stable identifier.
	ID() PeerIdentifier
}

// OpinionGiverFunc is a factory invoked once per round to obtain the
// current candidate pool of opinion givers. Returning a fresh slice each
// round lets peer-set churn be observed between rounds.
type OpinionGiverFunc func() ([]OpinionGiver, error)

// ErrNoOpinionGivers is returned by an OpinionGiverFunc (and surfaced by a
// round) when the candidate pool is empty.
var ErrNoOpinionGivers = errors.New("opinion: no opinion givers available")

// QueryError wraps a single opinion giver's query failure for the round
// engine's retry bookkeeping. It is never surfaced outside of a round; it
// is only aggregated into RoundStats.
type QueryError struct {
	Peer PeerIdentifier
	Err  error
}

func (e *QueryError) Error() string {
	return "opinion: query to " + string(e.Peer) + " failed: " + e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
