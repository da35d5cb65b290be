// Package mongosink adapts a MongoDB collection into a vote.EventSink,
// giving Finalized/Failed events a durable audit trail outside the voter's
// in-memory lifetime. It never feeds state back into a Voter: restarting a
// process still starts every context fresh.
package mongosink

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/logger"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iotaledger/fpc/packages/vote"
)

// defaultCollectionName is used when Option doesn't override it.
const defaultCollectionName = "fpc_events"

// defaultWriteTimeout bounds a single InsertOne call issued from the
// background writer goroutine.
const defaultWriteTimeout = 5 * time.Second

// inserter is the narrow slice of *mongo.Collection this package depends
// on, so tests can substitute a fake instead of dialing a real server.
type inserter interface {
	InsertOne(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error)
}

// collectionInserter adapts *mongo.Collection to inserter.
type collectionInserter struct {
	coll *mongo.Collection
}

func (c collectionInserter) InsertOne(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, document)
}

// eventDocument is the persisted shape of a single Finalized or Failed
// event.
type eventDocument struct {
	ID         string    `bson:"id"`
	ObjectType string    `bson:"objectType"`
	Kind       string    `bson:"kind"`
	Opinion    string    `bson:"opinion"`
	RecordedAt time.Time `bson:"recordedAt"`
}

// Option configures a Sink.
type Option func(*Sink)

// WithBufferSize sets the capacity of the internal write queue. Default 256.
func WithBufferSize(n int) Option {
	return func(s *Sink) { s.queue = make(chan eventDocument, n) }
}

// WithWriteTimeout bounds each InsertOne call. Default 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Sink) { s.writeTimeout = d }
}

// WithLogger attaches a logger for write failures and dropped events.
// Without one, failures are silently swallowed, matching EventSink's
// error-free Send contract.
func WithLogger(log *logger.Logger) Option {
	return func(s *Sink) { s.log = log }
}

// Sink is a vote.EventSink backed by a MongoDB collection. Send never
// blocks the round engine: it enqueues onto an internal channel drained by
// a single background goroutine, and drops the event (bumping Dropped) if
// that channel is full.
type Sink struct {
	coll         inserter
	queue        chan eventDocument
	writeTimeout time.Duration
	log          *logger.Logger

	dropped uint64
	done    chan struct{}
}

// NewSink constructs a Sink writing to coll and starts its background
// writer. Call Close to stop it once the owning Voter is no longer in use.
func NewSink(coll *mongo.Collection, opts ...Option) *Sink {
	return newSink(collectionInserter{coll: coll}, opts...)
}

func newSink(coll inserter, opts ...Option) *Sink {
	s := &Sink{
		coll:         coll,
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = make(chan eventDocument, 256)
	}

	go s.run()
	return s
}

// Send implements vote.EventSink. Only FinalizedEvent and FailedEvent are
// persisted; RoundExecutedEvent carries nothing worth auditing once it has
// driven its own round's metrics.
func (s *Sink) Send(ev vote.Event) {
	doc, ok := toDocument(ev)
	if !ok {
		return
	}

	select {
	case s.queue <- doc:
	default:
		s.dropped++
		if s.log != nil {
			s.log.Warnf("mongosink: dropping event for %s, write queue full", doc.ID)
		}
	}
}

// Dropped returns the number of events dropped because the write queue was
// full at the time of Send.
func (s *Sink) Dropped() uint64 {
	return s.dropped
}

// Close stops the background writer once every already-queued document has
// been written or has failed permanently.
func (s *Sink) Close() {
	close(s.queue)
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)
	for doc := range s.queue {
		if err := s.write(doc); err != nil && s.log != nil {
			s.log.Errorf("mongosink: failed to persist event for %s: %s", doc.ID, err)
		}
	}
}

func (s *Sink) write(doc eventDocument) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	_, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return errors.Wrap(err, "mongosink: insert")
	}
	return nil
}

func toDocument(ev vote.Event) (eventDocument, bool) {
	switch t := ev.(type) {
	case vote.FinalizedEvent:
		return eventDocument{
			ID:         t.ID.String(),
			ObjectType: t.ObjectType.String(),
			Kind:       "Finalized",
			Opinion:    t.Opinion.String(),
			RecordedAt: time.Now(),
		}, true
	case vote.FailedEvent:
		return eventDocument{
			ID:         t.ID.String(),
			ObjectType: t.ObjectType.String(),
			Kind:       "Failed",
			Opinion:    t.LastOpinion.String(),
			RecordedAt: time.Now(),
		}, true
	default:
		return eventDocument{}, false
	}
}

// CollectionName returns the conventional collection name a caller should
// pass to mongo.Database.Collection when none is already established.
func CollectionName() string {
	return defaultCollectionName
}
