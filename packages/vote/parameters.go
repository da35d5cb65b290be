package vote

import (
	"time"

	"github.com/iotaledger/fpc/packages/opinion"
)

// Bounds is a [Lower, Upper) range a round's random threshold tau is drawn
// from.
type Bounds struct {
	Lower, Upper float64
}

// Config collects every tunable exposed to a round engine. It is never
// constructed directly; use NewConfig(Option...). Fields are
// exported read-only to the rest of this module (the round engine lives in
// a sibling package) but Config itself is only ever built through options,
// so external callers can't skip validation of the two required ones.
type Config struct {
	FirstRoundBounds      Bounds
	SubsequentRoundBounds Bounds
	QuerySampleSize       int
	FinalizationThreshold uint32
	CoolingOffPeriod      uint32
	MaxRoundsPerVote      uint32
	QueryTimeout          time.Duration
	MaxQueryAttempts      int
	PeerPoolSize          int
	OpinionGiverFunc      opinion.OpinionGiverFunc
	EventSink             EventSink
}

// Option configures a Config. Every tunable below has a With* constructor;
// NewConfig fills in the defaults for any that are omitted.
type Option func(*Config)

// WithFirstRoundBounds sets the [lower, upper) range used only the first
// time a context is evaluated. Default (0.67, 0.67).
func WithFirstRoundBounds(lower, upper float64) Option {
	return func(c *Config) { c.FirstRoundBounds = Bounds{lower, upper} }
}

// WithSubsequentRoundBounds sets the [lower, upper) range used for every
// round after the first. Default (0.50, 0.67).
func WithSubsequentRoundBounds(lower, upper float64) Option {
	return func(c *Config) { c.SubsequentRoundBounds = Bounds{lower, upper} }
}

// WithQuerySampleSize sets the number of peer picks per round, sampled
// with replacement. Default 21.
func WithQuerySampleSize(n int) Option {
	return func(c *Config) { c.QuerySampleSize = n }
}

// WithFinalizationThreshold sets the number of consecutive equal-opinion
// rounds required to finalize. Default 10.
func WithFinalizationThreshold(n uint32) Option {
	return func(c *Config) { c.FinalizationThreshold = n }
}

// WithCoolingOffPeriod sets the number of additional rounds after reaching
// the finalization threshold before finalization may fire. Default 0.
func WithCoolingOffPeriod(n uint32) Option {
	return func(c *Config) { c.CoolingOffPeriod = n }
}

// WithMaxRoundsPerVote sets the opinion-history length (initial opinion
// included) at which an unfinalized context is emitted as Failed. 0
// disables (unbounded). Default 0.
func WithMaxRoundsPerVote(n uint32) Option {
	return func(c *Config) { c.MaxRoundsPerVote = n }
}

// WithQueryTimeout sets the per-attempt upper bound on a single
// OpinionGiver.Query call. Default 6.5s.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *Config) { c.QueryTimeout = d }
}

// WithMaxQueryAttempts sets the per-peer retry count within a single
// round. Default 3.
func WithMaxQueryAttempts(n int) Option {
	return func(c *Config) { c.MaxQueryAttempts = n }
}

// WithPeerPoolSize bounds the number of goroutines used to fan out peer
// queries within a round. Default 64.
func WithPeerPoolSize(n int) Option {
	return func(c *Config) { c.PeerPoolSize = n }
}

// WithOpinionGiverFunc sets the factory used to obtain the current
// candidate pool of peers each round. Required.
func WithOpinionGiverFunc(f opinion.OpinionGiverFunc) Option {
	return func(c *Config) { c.OpinionGiverFunc = f }
}

// WithEventSink sets the destination for RoundExecuted/Finalized/Failed
// events. Required.
func WithEventSink(sink EventSink) Option {
	return func(c *Config) { c.EventSink = sink }
}

// defaultConfig returns the canonical FPC parameter defaults.
func defaultConfig() *Config {
	return &Config{
		FirstRoundBounds:      Bounds{0.67, 0.67},
		SubsequentRoundBounds: Bounds{0.50, 0.67},
		QuerySampleSize:       21,
		FinalizationThreshold: 10,
		CoolingOffPeriod:      0,
		MaxRoundsPerVote:      0,
		QueryTimeout:          6500 * time.Millisecond,
		MaxQueryAttempts:      3,
		PeerPoolSize:          64,
	}
}

// NewConfig applies opts over the documented defaults and validates the two
// required options.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.OpinionGiverFunc == nil {
		return nil, ErrMissingOpinionGiverFunc
	}
	if cfg.EventSink == nil {
		return nil, ErrMissingEventSink
	}
	return cfg, nil
}
