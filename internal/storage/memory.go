package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dilemma/internal/model"
)

// MemoryStore keeps encoded payloads so callers never share slices or maps
// with the store.
type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	runs         map[string][]byte
	tournaments  map[string][]byte
	trajectories map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string][]byte)
	s.tournaments = make(map[string][]byte)
	s.trajectories = make(map[string][]byte)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, summary model.RunSummary) error {
	payload, err := EncodeRunSummary(summary)
	if err != nil {
		return err
	}
	return s.put(func() { s.runs[summary.RunID] = payload })
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (model.RunSummary, bool, error) {
	payload, ok, err := s.get(func() ([]byte, bool) { p, ok := s.runs[runID]; return p, ok })
	if err != nil || !ok {
		return model.RunSummary{}, false, err
	}
	summary, err := DecodeRunSummary(payload)
	if err != nil {
		return model.RunSummary{}, false, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return summary, true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	out := make([]model.RunSummary, 0, len(s.runs))
	for id, payload := range s.runs {
		summary, err := DecodeRunSummary(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		out = append(out, summary)
	}
	sortRuns(out)
	return out, nil
}

func (s *MemoryStore) SaveTournament(_ context.Context, record model.TournamentRecord) error {
	payload, err := EncodeTournament(record)
	if err != nil {
		return err
	}
	return s.put(func() { s.tournaments[record.RunID] = payload })
}

func (s *MemoryStore) GetTournament(_ context.Context, runID string) (model.TournamentRecord, bool, error) {
	payload, ok, err := s.get(func() ([]byte, bool) { p, ok := s.tournaments[runID]; return p, ok })
	if err != nil || !ok {
		return model.TournamentRecord{}, false, err
	}
	record, err := DecodeTournament(payload)
	if err != nil {
		return model.TournamentRecord{}, false, fmt.Errorf("decode tournament %s: %w", runID, err)
	}
	return record, true, nil
}

func (s *MemoryStore) SaveTrajectory(_ context.Context, record model.TrajectoryRecord) error {
	payload, err := EncodeTrajectory(record)
	if err != nil {
		return err
	}
	return s.put(func() { s.trajectories[record.RunID] = payload })
}

func (s *MemoryStore) GetTrajectory(_ context.Context, runID string) (model.TrajectoryRecord, bool, error) {
	payload, ok, err := s.get(func() ([]byte, bool) { p, ok := s.trajectories[runID]; return p, ok })
	if err != nil || !ok {
		return model.TrajectoryRecord{}, false, err
	}
	record, err := DecodeTrajectory(payload)
	if err != nil {
		return model.TrajectoryRecord{}, false, fmt.Errorf("decode trajectory %s: %w", runID, err)
	}
	return record, true, nil
}

func (s *MemoryStore) put(write func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	write()
	return nil
}

func (s *MemoryStore) get(read func() ([]byte, bool)) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, ErrNotInitialized
	}
	payload, ok := read()
	return payload, ok, nil
}

// sortRuns orders newest first, then by id.
func sortRuns(runs []model.RunSummary) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
		}
		return runs[i].RunID < runs[j].RunID
	})
}
