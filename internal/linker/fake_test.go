package linker

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/starford/echolog/internal/models"
)

var errWrite = errors.New("write failed")

// memStore is an in-memory Store that keeps memos in insertion order.
type memStore struct {
	mu      sync.Mutex
	memos   []*models.Memo
	related map[string][]string

	failReplace  bool
	failAdd      map[string]bool
	replaceCalls int
}

func newMemStore() *memStore {
	return &memStore{related: make(map[string][]string), failAdd: make(map[string]bool)}
}

func (s *memStore) put(id, owner string, emb ...float32) models.Memo {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &models.Memo{ID: id, OwnerID: owner, Embedding: emb, CreatedAt: time.Now()}
	s.memos = append(s.memos, m)
	return *m
}

func (s *memStore) markDeleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, m := range s.memos {
		if m.ID == id {
			m.DeletedAt = &now
		}
	}
}

func (s *memStore) relatedOf(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.related[id])
}

func (s *memStore) setRelated(id string, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.related[id] = ids
}

func (s *memStore) FetchCandidates(_ context.Context, ownerID, excludeID string) ([]models.Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Memo
	for _, m := range s.memos {
		if m.OwnerID != ownerID || m.ID == excludeID || m.Deleted() || !m.HasEmbedding() {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *memStore) ReplaceRelated(_ context.Context, id string, related []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	if s.failReplace {
		return errWrite
	}
	s.related[id] = slices.Clone(related)
	return nil
}

func (s *memStore) AddRelatedIfAbsent(_ context.Context, id, relatedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdd[id] {
		return errWrite
	}
	if !slices.Contains(s.related[id], relatedID) {
		s.related[id] = append(s.related[id], relatedID)
	}
	return nil
}

func (s *memStore) RemoveRelatedEverywhere(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, list := range s.related {
		s.related[k] = slices.DeleteFunc(list, func(v string) bool { return v == id })
	}
	return nil
}

func (s *memStore) FetchByIDs(_ context.Context, ids []string) ([]models.Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Memo
	for _, id := range ids {
		for _, m := range s.memos {
			if m.ID == id && !m.Deleted() {
				c := *m
				c.RelatedIDs = slices.Clone(s.related[id])
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// recorder is an Observer that keeps every event.
type recorder struct {
	mu      sync.Mutex
	queued  int
	dropped []string
	done    []doneEvent
}

type doneEvent struct {
	task      Task
	neighbors []Neighbor
	err       error
}

func (r *recorder) TaskQueued(TaskKind) {
	r.mu.Lock()
	r.queued++
	r.mu.Unlock()
}

func (r *recorder) TaskDropped(_ TaskKind, id string) {
	r.mu.Lock()
	r.dropped = append(r.dropped, id)
	r.mu.Unlock()
}

func (r *recorder) TaskDone(t Task, n []Neighbor, _ time.Duration, err error) {
	r.mu.Lock()
	r.done = append(r.done, doneEvent{task: t, neighbors: n, err: err})
	r.mu.Unlock()
}

func (r *recorder) doneCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.done)
}
