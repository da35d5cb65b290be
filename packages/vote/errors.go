package vote

import "github.com/cockroachdb/errors"

var (
	// ErrDuplicateID is returned by Vote when an active context already
	// exists for the given (id, object type).
	ErrDuplicateID = errors.New("vote: a context is already active for this id")
	// ErrNotFound is returned by Status and IntermediateOpinion when no
	// active context exists for the given (id, object type).
	ErrNotFound = errors.New("vote: no active context for this id")
	// ErrMissingOpinionGiverFunc is returned by New when no
	// OpinionGiverFunc was configured.
	ErrMissingOpinionGiverFunc = errors.New("vote: opinion_giver_fn is required")
	// ErrMissingEventSink is returned by New when no EventSink was
	// configured.
	ErrMissingEventSink = errors.New("vote: event_sink is required")
)
