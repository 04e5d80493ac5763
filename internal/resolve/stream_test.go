package resolve

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/reactive"
	"github.com/typedb/typedb-sub067/internal/testutil"
)

func TestAnswerStream_PullsOneAtATime(t *testing.T) {
	r, _ := newResolver(t, testutil.People())
	s := r.Stream(context.Background(), parse(t, `match $x isa person;`), ir.ConceptMap{})
	defer s.Close()

	var got []string
	for {
		a, ok, err := s.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.False(t, s.Pulling())
		x, _ := a.Map.Get(ir.Var("x"))
		got = append(got, x.IID)
	}
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, got)

	_, ok, err := s.Next()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestAnswerStream_Close(t *testing.T) {
	r, _ := newResolver(t, testutil.People())
	s := r.Stream(context.Background(), parse(t, `match $x isa person;`), ir.ConceptMap{})

	_, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)

	s.Close()
	_, ok, err = s.Next()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestAnswerStream_CloseDuringNext(t *testing.T) {
	r, _ := newResolver(t, chain())
	s := r.Stream(context.Background(), parse(t, `match (origin: $x, dest: $y) isa reach;`), ir.ConceptMap{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			if _, ok, err := s.Next(); !ok || err != nil {
				return
			}
		}
	}()
	s.Close()
	wg.Wait()

	_, ok, err := s.Next()
	assert.False(t, ok)
	assert.NoError(t, err)
	s.Close()
}

func TestAnswerStream_ReportsErrors(t *testing.T) {
	r, _ := newResolver(t, testutil.People())
	s := r.Stream(context.Background(), parse(t, `match $x isa person; not { $y has name "Bob"; };`), ir.ConceptMap{})
	defer s.Close()

	_, ok, err := s.Next()
	assert.False(t, ok)
	assert.True(t, IsUnboundedNegation(err))
}

func TestAnswerStream_DoublePullViolatesProtocol(t *testing.T) {
	r, _ := newResolver(t, testutil.People())
	s := r.Stream(context.Background(), parse(t, `match $x isa person;`), ir.ConceptMap{})
	defer s.Close()

	// Simulates a second Next while one is outstanding.
	s.recordPull()

	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		err, ok := rec.(error)
		require.True(t, ok)
		assert.True(t, reactive.IsProtocolError(err))
	}()
	s.Next()
	t.Fatal("expected a protocol violation")
}
