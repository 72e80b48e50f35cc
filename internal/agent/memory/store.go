package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

// Store holds background knowledge and topic frequencies across pipeline runs.
// Every exported method is safe for concurrent use; Update applies accumulate
// and prune under one lock so no reader observes an unpruned topic set.
type Store struct {
	mu        sync.RWMutex
	knowledge []string // most recent first
	counts    map[string]int
	total     int
	threshold float64
}

// NewStore returns an empty Store pruning below the given relative frequency.
// A non-positive threshold selects model.DefaultPruneThreshold.
func NewStore(threshold float64) *Store {
	if threshold <= 0 {
		threshold = model.DefaultPruneThreshold
	}
	return &Store{
		counts:    map[string]int{},
		threshold: threshold,
	}
}

// Accumulate counts each distinct topic once and prepends new knowledge.
// Knowledge already present is moved to the head instead of duplicated.
func (s *Store) Accumulate(topics []string, knowledge []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulate(topics, knowledge)
}

// Prune drops every topic whose share of the running total is strictly below
// the threshold and subtracts its count from the total.
func (s *Store) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
}

// Update is Accumulate followed by Prune as one atomic step.
func (s *Store) Update(topics []string, knowledge []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulate(topics, knowledge)
	s.prune()
}

// ActiveTopics returns the current topic names, sorted.
func (s *Store) ActiveTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.counts))
	for t := range s.counts {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// KnowledgeContext returns all knowledge entries, most recent first.
// Callers must treat it as advisory context.
func (s *Store) KnowledgeContext() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.knowledge))
	copy(out, s.knowledge)
	return out
}

// Snapshot returns a deep copy of the memory state.
func (s *Store) Snapshot() model.MemoryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	kn := make([]string, len(s.knowledge))
	copy(kn, s.knowledge)
	return model.MemoryState{
		BackgroundKnowledge: kn,
		TopicCounts:         counts,
		TopicTotalCount:     s.total,
	}
}

func (s *Store) accumulate(topics []string, knowledge []string) {
	seen := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		s.counts[t]++
		s.total++
	}

	fresh := make([]string, 0, len(knowledge))
	added := make(map[string]struct{}, len(knowledge))
	for _, k := range knowledge {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := added[k]; dup {
			continue
		}
		added[k] = struct{}{}
		fresh = append(fresh, k)
	}
	if len(fresh) == 0 {
		return
	}
	merged := make([]string, 0, len(fresh)+len(s.knowledge))
	merged = append(merged, fresh...)
	for _, k := range s.knowledge {
		if _, dup := added[k]; !dup {
			merged = append(merged, k)
		}
	}
	s.knowledge = merged
}

func (s *Store) prune() {
	if s.total == 0 {
		return
	}
	total := float64(s.total)
	removed := 0
	for t, c := range s.counts {
		if float64(c)/total < s.threshold {
			delete(s.counts, t)
			removed += c
			logx.Debug().Str("topic", t).Int("count", c).Int("total", s.total).Msg("pruned low-frequency topic")
		}
	}
	s.total -= removed
}
