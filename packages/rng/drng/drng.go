// Package drng adapts a drand public randomness beacon into rng.Source, so
// every round consumes fresh, verifiable, network-wide randomness instead
// of a locally seeded PRNG.
package drng

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/drand/drand/client"
	"github.com/drand/kyber"
	"golang.org/x/crypto/blake2b"
)

// ErrNoBeaconRounds is the value Float64 and Intn panic with when called
// before Refresh has observed a single randomness round.
var ErrNoBeaconRounds = errors.New("drng: no beacon round observed yet")

// Source turns the latest drand beacon signature into a stream of
// rng.Source draws. A single beacon round is stretched into many Float64()
// and Intn() calls by hashing a running BLAKE2b counter, so one round of
// network randomness suffices for an entire voter round (peer sampling and
// every id's threshold draw).
type Source struct {
	client client.Client
	// groupKey is the beacon group's distributed public key, kept for
	// verification by a caller that wants to check Client.Get results
	// independently before they reach this adapter.
	groupKey kyber.Point

	mu      sync.Mutex
	round   uint64
	digest  [32]byte
	counter uint64
}

// New wraps beaconClient, an already-configured drand client.Client,
// pointed at a running beacon network.
func New(beaconClient client.Client, groupKey kyber.Point) *Source {
	return &Source{client: beaconClient, groupKey: groupKey}
}

// Refresh fetches the latest beacon round and reseeds the internal digest.
// A caller drives this once per voter round, before handing the Source to
// DoRound, so every round's draws are keyed off fresh network randomness.
func (s *Source) Refresh(ctx context.Context) error {
	result, err := s.client.Get(ctx, 0)
	if err != nil {
		return errors.Wrap(err, "drng: fetching latest beacon round")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.round = result.Round()
	s.digest = blake2b.Sum256(result.Randomness())
	s.counter = 0
	return nil
}

// Float64 returns the next draw in [0,1), derived from the current beacon
// digest and an incrementing counter.
func (s *Source) Float64() float64 {
	const maxUint53 = 1 << 53
	v := s.nextUint64() % maxUint53
	return float64(v) / float64(maxUint53)
}

// Intn returns the next draw in [0,n).
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("drng: Intn called with n <= 0")
	}
	return int(s.nextUint64() % uint64(n))
}

func (s *Source) nextUint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.round == 0 {
		panic(ErrNoBeaconRounds)
	}

	var buf [40]byte
	copy(buf[:32], s.digest[:])
	binary.BigEndian.PutUint64(buf[32:], s.counter)
	s.counter++

	h := blake2b.Sum256(buf[:])
	return binary.BigEndian.Uint64(h[:8])
}

// Round returns the beacon round the current digest was seeded from, for
// logging and RoundStats provenance.
func (s *Source) Round() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}
