package store

import (
	"errors"

	"driftwatch/pkg/model"
)

// ErrNotFound is returned for lookups of unknown ids.
var ErrNotFound = errors.New("not found")

// Store defines the persistence layer for users, hosts and scan history.
// Backed by gorm in production; the in-memory implementation serves tests.
type Store interface {
	CreateUser(u *model.User) error
	UserByUsername(username string) (model.User, error)
	UserByID(id uint) (model.User, error)
	CountUsers() (int64, error)

	CreateHost(h *model.Host) error
	ListHosts() ([]model.Host, error)
	Host(id uint) (model.Host, error)
	DeleteHost(id uint) error

	// CreateJob assigns the job id. UpdateJob persists status transitions;
	// terminal jobs are never modified again.
	CreateJob(j *model.ScanJob) error
	UpdateJob(j *model.ScanJob) error
	Job(id uint) (model.ScanJob, error)
	// ListJobs returns jobs newest-first: non-terminal jobs lead (by
	// started_at), terminal ones follow by finished_at, ties broken by id.
	ListJobs(hostID uint, limit int) ([]model.ScanJob, error)
	// LatestSuccess returns the most recent successful job for a host.
	LatestSuccess(hostID uint) (model.ScanJob, error)
	// SuccessBefore returns the most recent successful job for the host
	// strictly older than the given job in (finished_at, id) order.
	SuccessBefore(j model.ScanJob) (model.ScanJob, error)
}

// NewMemory constructs the in-memory implementation.
func NewMemory() Store {
	return NewMemoryStore()
}
