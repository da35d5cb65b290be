// Package opinion defines the value types shared between a voter and the
// remote peers it queries: the tri-state Opinion, the ObjectType a query is
// scoped to and the OpinionGiver contract a transport implements.
package opinion

import "github.com/cockroachdb/errors"

// Opinion is a node's stance on a voting object.
type Opinion byte

const (
	// Unknown is returned by a peer that could not form or report an
	// opinion. It is never a final opinion.
	Unknown Opinion = iota
	// Like indicates a positive stance.
	Like
	// Dislike indicates a negative stance.
	Dislike
)

// String implements fmt.Stringer.
func (o Opinion) String() string {
	switch o {
	case Like:
		return "Like"
	case Dislike:
		return "Dislike"
	case Unknown:
		return "Unknown"
	default:
		return "Invalid"
	}
}

// Opinions is the append-only, round-ordered history of opinions held by a
// vote context. Element 0 is the initial opinion supplied to Vote; one
// element is appended for each round in which at least one peer returned a
// usable opinion for the context. A round with no usable answer appends
// nothing here, so element i is not necessarily the opinion of round i.
type Opinions []Opinion

// Last returns the current (tail) opinion of the sequence.
func (o Opinions) Last() Opinion {
	if len(o) == 0 {
		return Unknown
	}
	return o[len(o)-1]
}

// ErrInvalidOpinion is returned whenever Unknown is supplied where a
// concrete Like/Dislike opinion is required (e.g. as an initial opinion).
var ErrInvalidOpinion = errors.New("opinion: Unknown is not a valid initial or final opinion")
