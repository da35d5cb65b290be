package vote

import (
	"github.com/iotaledger/fpc/packages/opinion"
)

// Key is the registry's composite lookup key: (id, object type) rather
// than id alone, so a Conflict vote and a Timestamp vote on the
// byte-identical id coexist and finalize independently. See DESIGN.md.
type Key struct {
	ID         opinion.ID
	ObjectType opinion.ObjectType
}

// Context is the per-object voting state. It is exclusively owned by the
// registry; callers only ever see copies (View) or deltas.
type Context struct {
	ID         opinion.ID
	ObjectType opinion.ObjectType
	Opinions   opinion.Opinions
	// Rounds counts consecutive rounds for which the current opinion has
	// been held. It is always >= 1 once a context has an opinion.
	Rounds uint32
}

// NewContext creates the initial state for a freshly enqueued vote. initial
// must not be opinion.Unknown; callers validate this before calling.
func NewContext(id opinion.ID, objectType opinion.ObjectType, initial opinion.Opinion) *Context {
	return &Context{
		ID:         id,
		ObjectType: objectType,
		Opinions:   opinion.Opinions{initial},
		Rounds:     1,
	}
}

// LastOpinion returns the context's current (tail) opinion.
func (c *Context) LastOpinion() opinion.Opinion {
	return c.Opinions.Last()
}

// IsNew reports whether the context has never been voted on, i.e. it holds
// only the opinion it was enqueued with.
func (c *Context) IsNew() bool {
	return len(c.Opinions) == 1
}

// AddOpinion appends newOpinion to the history and updates the rounds
// counter: incremented when newOpinion repeats the previous tail, reset to
// 1 when it differs.
func (c *Context) AddOpinion(newOpinion opinion.Opinion) {
	if len(c.Opinions) > 0 && c.Opinions.Last() == newOpinion {
		c.Rounds++
	} else {
		c.Rounds = 1
	}
	c.Opinions = append(c.Opinions, newOpinion)
}

// IsFinalized reports whether the context has held its current opinion
// through more than finalizationThreshold+coolingOffPeriod rounds since it
// was enqueued or last flipped, and that opinion is not Unknown. Rounds
// starts at 1 on enqueue (the initial opinion, held for zero rounds so
// far), so the threshold-th round that keeps the opinion stable brings
// Rounds to finalizationThreshold+coolingOffPeriod+1 — finalization fires
// on exactly that round, not one round early.
func (c *Context) IsFinalized(coolingOffPeriod, finalizationThreshold uint32) bool {
	if c.LastOpinion() == opinion.Unknown {
		return false
	}
	return c.Rounds > finalizationThreshold+coolingOffPeriod
}

// HasExceededMaxRounds reports whether the context's opinion history (the
// initial opinion plus one entry per round that appended an opinion) has
// reached maxRounds entries. maxRounds == 0 means unbounded.
func (c *Context) HasExceededMaxRounds(maxRounds uint32) bool {
	if maxRounds == 0 {
		return false
	}
	return uint32(len(c.Opinions)) >= maxRounds
}

// View is the read-only snapshot handed out by Registry.Status; it never
// aliases the registry's own Context.
type View struct {
	ID         opinion.ID
	ObjectType opinion.ObjectType
	Opinions   opinion.Opinions
	Rounds     uint32
}

func (c *Context) view() View {
	opinionsCopy := make(opinion.Opinions, len(c.Opinions))
	copy(opinionsCopy, c.Opinions)
	return View{
		ID:         c.ID,
		ObjectType: c.ObjectType,
		Opinions:   opinionsCopy,
		Rounds:     c.Rounds,
	}
}
