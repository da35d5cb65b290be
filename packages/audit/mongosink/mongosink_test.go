package mongosink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iotaledger/fpc/packages/opinion"
	"github.com/iotaledger/fpc/packages/vote"
)

type fakeInserter struct {
	mu   sync.Mutex
	docs []eventDocument
	fail bool
}

func (f *fakeInserter) InsertOne(_ context.Context, document interface{}) (*mongo.InsertOneResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errFakeWrite
	}
	f.docs = append(f.docs, document.(eventDocument))
	return &mongo.InsertOneResult{}, nil
}

func (f *fakeInserter) all() []eventDocument {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]eventDocument, len(f.docs))
	copy(out, f.docs)
	return out
}

var errFakeWrite = assertError("mongosink: fake write failure")

type assertError string

func (e assertError) Error() string { return string(e) }

func TestSink_PersistsFinalizedAndFailed(t *testing.T) {
	fake := &fakeInserter{}
	s := newSink(fake, WithBufferSize(4))

	id := opinion.NewID([]byte("a"))
	s.Send(vote.FinalizedEvent{ID: id, ObjectType: opinion.ConflictType, Opinion: opinion.Like})
	s.Send(vote.FailedEvent{ID: id, ObjectType: opinion.TimestampType, LastOpinion: opinion.Dislike})
	s.Close()

	docs := fake.all()
	require.Len(t, docs, 2)
	assert.Equal(t, "Finalized", docs[0].Kind)
	assert.Equal(t, "Like", docs[0].Opinion)
	assert.Equal(t, "Failed", docs[1].Kind)
	assert.Equal(t, "Dislike", docs[1].Opinion)
}

func TestSink_IgnoresRoundExecuted(t *testing.T) {
	fake := &fakeInserter{}
	s := newSink(fake, WithBufferSize(4))

	s.Send(vote.RoundExecutedEvent{Stats: vote.RoundStats{Round: 1}})
	s.Close()

	assert.Empty(t, fake.all())
}

// TestSink_DropsWhenQueueFull constructs a Sink directly, bypassing
// newSink's background writer, so the queue fills deterministically and
// every Send past capacity must take the drop branch.
func TestSink_DropsWhenQueueFull(t *testing.T) {
	s := &Sink{
		coll:         &fakeInserter{},
		queue:        make(chan eventDocument, 2),
		writeTimeout: time.Second,
		done:         make(chan struct{}),
	}
	id := opinion.NewID([]byte("x"))
	ev := vote.FinalizedEvent{ID: id, ObjectType: opinion.ConflictType, Opinion: opinion.Like}

	for i := 0; i < 5; i++ {
		s.Send(ev)
	}

	assert.Equal(t, uint64(3), s.Dropped())
	assert.Len(t, s.queue, 2)
}

func TestSink_WriteFailureWithoutLoggerDoesNotPanic(t *testing.T) {
	fake := &fakeInserter{fail: true}
	s := newSink(fake, WithBufferSize(4), WithWriteTimeout(time.Second))

	s.Send(vote.FinalizedEvent{ID: opinion.NewID([]byte("y")), ObjectType: opinion.ConflictType, Opinion: opinion.Like})
	s.Close()

	assert.Empty(t, fake.all())
}
