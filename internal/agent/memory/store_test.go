package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

func seeded(t *testing.T, counts map[string]int) *Store {
	t.Helper()
	s := NewStore(0)
	for topic, n := range counts {
		for i := 0; i < n; i++ {
			s.Accumulate([]string{topic}, nil)
		}
	}
	require.Equal(t, sum(counts), s.Snapshot().TopicTotalCount)
	return s
}

func TestAccumulateCountsTopicOncePerCall(t *testing.T) {
	s := NewStore(0)
	s.Accumulate([]string{"algebra", "algebra", " algebra ", "geometry", ""}, nil)

	snap := s.Snapshot()
	assert.Equal(t, map[string]int{"algebra": 1, "geometry": 1}, snap.TopicCounts)
	assert.Equal(t, 2, snap.TopicTotalCount)
}

func TestPruneKeepsExactThreshold(t *testing.T) {
	s := seeded(t, map[string]int{"A": 9, "B": 1})
	s.Prune()

	snap := s.Snapshot()
	assert.Equal(t, map[string]int{"A": 9, "B": 1}, snap.TopicCounts)
	assert.Equal(t, 10, snap.TopicTotalCount)
}

func TestPruneRemovesBelowThreshold(t *testing.T) {
	s := seeded(t, map[string]int{"A": 89, "B": 10, "C": 1})
	s.Prune()

	snap := s.Snapshot()
	assert.Equal(t, map[string]int{"A": 89, "B": 10}, snap.TopicCounts)
	assert.Equal(t, 99, snap.TopicTotalCount)
	assert.Equal(t, []string{"A", "B"}, s.ActiveTopics())
}

func TestPruneOnEmptyStoreIsNoop(t *testing.T) {
	s := NewStore(0)
	s.Prune()

	snap := s.Snapshot()
	assert.Empty(t, snap.TopicCounts)
	assert.Zero(t, snap.TopicTotalCount)
}

func TestPruneIsIdempotent(t *testing.T) {
	s := seeded(t, map[string]int{"A": 40, "B": 30, "C": 20, "D": 5, "E": 3, "F": 2})
	s.Prune()
	first := s.Snapshot()
	s.Prune()
	second := s.Snapshot()

	assert.Equal(t, first.TopicCounts, second.TopicCounts)
	assert.Equal(t, first.TopicTotalCount, second.TopicTotalCount)
}

func TestTotalMatchesSumAfterMixedUpdates(t *testing.T) {
	s := NewStore(0)
	batches := [][]string{
		{"limits", "derivatives"},
		{"limits"},
		{"integrals", "limits", "noise-1"},
		{"derivatives", "noise-2"},
		{"limits", "derivatives", "integrals"},
	}
	for _, b := range batches {
		s.Update(b, nil)
		snap := s.Snapshot()
		require.Equal(t, sum(snap.TopicCounts), snap.TopicTotalCount)
		for topic, c := range snap.TopicCounts {
			require.GreaterOrEqual(t, c, 1, topic)
		}
	}
	s.Accumulate([]string{"x"}, nil)
	s.Prune()
	snap := s.Snapshot()
	assert.Equal(t, sum(snap.TopicCounts), snap.TopicTotalCount)
}

func TestKnowledgeRoundTrip(t *testing.T) {
	s := NewStore(0)
	s.Accumulate(nil, []string{"old fact"})
	s.Accumulate(nil, []string{"pythagoras: a^2+b^2=c^2"})

	got := s.KnowledgeContext()
	require.NotEmpty(t, got)
	assert.Equal(t, "pythagoras: a^2+b^2=c^2", got[0])

	s.Accumulate(nil, []string{"pythagoras: a^2+b^2=c^2"})
	assert.Equal(t, []string{"pythagoras: a^2+b^2=c^2", "old fact"}, s.KnowledgeContext())
}

func TestKnowledgeDuplicateMovesToHead(t *testing.T) {
	s := NewStore(0)
	s.Accumulate(nil, []string{"a"})
	s.Accumulate(nil, []string{"b"})
	s.Accumulate(nil, []string{"a", "c", "a", "  "})

	assert.Equal(t, []string{"a", "c", "b"}, s.KnowledgeContext())
}

func TestSnapshotIsDetached(t *testing.T) {
	s := NewStore(0)
	s.Accumulate([]string{"t"}, []string{"k"})
	snap := s.Snapshot()
	snap.TopicCounts["t"] = 100
	snap.BackgroundKnowledge[0] = "mutated"

	again := s.Snapshot()
	assert.Equal(t, 1, again.TopicCounts["t"])
	assert.Equal(t, "k", again.BackgroundKnowledge[0])
}

func TestConcurrentUpdatesPreserveInvariant(t *testing.T) {
	s := NewStore(0)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Update([]string{"common", fmt.Sprintf("rare-%d", i)}, []string{fmt.Sprintf("fact-%d", i%4)})
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, sum(snap.TopicCounts), snap.TopicTotalCount)
	assert.Contains(t, snap.TopicCounts, "common")
	assert.Len(t, snap.BackgroundKnowledge, 4)
}

func TestCustomThreshold(t *testing.T) {
	s := NewStore(0.5)
	s.Update([]string{"a", "b"}, nil)
	s.Update([]string{"a"}, nil)

	assert.Equal(t, []string{"a"}, s.ActiveTopics())
}
