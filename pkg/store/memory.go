package store

import (
	"sort"
	"sync"

	"driftwatch/pkg/model"
)

// MemoryStore is a simple in-memory implementation, intended for dev/demo
// and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[uint]model.User
	hosts      map[uint]model.Host
	jobs       map[uint]model.ScanJob
	nextUserID uint
	nextHostID uint
	nextJobID  uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[uint]model.User),
		hosts: make(map[uint]model.Host),
		jobs:  make(map[uint]model.ScanJob),
	}
}

func (m *MemoryStore) CreateUser(u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUserID++
	u.ID = m.nextUserID
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) UserByUsername(username string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *MemoryStore) UserByID(id uint) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) CountUsers() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

func (m *MemoryStore) CreateHost(h *model.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextHostID++
	h.ID = m.nextHostID
	m.hosts[h.ID] = *h
	return nil
}

func (m *MemoryStore) ListHosts() ([]model.Host, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Host, 0, len(m.hosts))
	for _, h := range m.hosts {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Host(id uint) (model.Host, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hosts[id]
	if !ok {
		return model.Host{}, ErrNotFound
	}
	return h, nil
}

func (m *MemoryStore) DeleteHost(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hosts[id]; !ok {
		return ErrNotFound
	}
	delete(m.hosts, id)
	return nil
}

func (m *MemoryStore) CreateJob(j *model.ScanJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextJobID++
	j.ID = m.nextJobID
	m.jobs[j.ID] = *j
	return nil
}

func (m *MemoryStore) UpdateJob(j *model.ScanJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[j.ID]; !ok {
		return ErrNotFound
	}
	m.jobs[j.ID] = *j
	return nil
}

func (m *MemoryStore) Job(id uint) (model.ScanJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return model.ScanJob{}, ErrNotFound
	}
	return j, nil
}

func (m *MemoryStore) ListJobs(hostID uint, limit int) ([]model.ScanJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ScanJob, 0)
	for _, j := range m.jobs {
		if j.HostID == hostID {
			out = append(out, j)
		}
	}
	sortJobsNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) LatestSuccess(hostID uint) (model.ScanJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	succ := m.successesFor(hostID)
	if len(succ) == 0 {
		return model.ScanJob{}, ErrNotFound
	}
	return succ[0], nil
}

func (m *MemoryStore) SuccessBefore(j model.ScanJob) (model.ScanJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cand := range m.successesFor(j.HostID) {
		if jobBefore(cand, j) {
			return cand, nil
		}
	}
	return model.ScanJob{}, ErrNotFound
}

// successesFor returns successful jobs for a host, newest first. Caller holds
// the read lock.
func (m *MemoryStore) successesFor(hostID uint) []model.ScanJob {
	out := make([]model.ScanJob, 0)
	for _, j := range m.jobs {
		if j.HostID == hostID && j.Status == model.StatusSuccess {
			out = append(out, j)
		}
	}
	sortJobsNewestFirst(out)
	return out
}

// sortJobsNewestFirst orders non-terminal jobs first (latest started first),
// then terminal jobs by finished_at descending, ties broken by id descending.
func sortJobsNewestFirst(jobs []model.ScanJob) {
	sort.Slice(jobs, func(i, k int) bool {
		a, b := jobs[i], jobs[k]
		if (a.FinishedAt == nil) != (b.FinishedAt == nil) {
			return a.FinishedAt == nil
		}
		if a.FinishedAt == nil {
			if !a.StartedAt.Equal(b.StartedAt) {
				return a.StartedAt.After(b.StartedAt)
			}
			return a.ID > b.ID
		}
		if !a.FinishedAt.Equal(*b.FinishedAt) {
			return a.FinishedAt.After(*b.FinishedAt)
		}
		return a.ID > b.ID
	})
}

// jobBefore reports whether a is strictly older than b in (finished_at, id)
// order. Both jobs must be terminal.
func jobBefore(a, b model.ScanJob) bool {
	if a.FinishedAt == nil || b.FinishedAt == nil {
		return false
	}
	if !a.FinishedAt.Equal(*b.FinishedAt) {
		return a.FinishedAt.Before(*b.FinishedAt)
	}
	return a.ID < b.ID
}
