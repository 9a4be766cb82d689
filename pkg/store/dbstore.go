package store

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"driftwatch/pkg/model"
)

// DBStore is the gorm-backed Store used in production.
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// jobPayload is the JSON document embedded in a scan record.
type jobPayload struct {
	Snapshot *model.Snapshot      `json:"snapshot,omitempty"`
	Failure  *model.FailureDetail `json:"failure,omitempty"`
}

func (s *DBStore) CreateUser(u *model.User) error {
	return s.db.Create(u).Error
}

func (s *DBStore) UserByUsername(username string) (model.User, error) {
	var u model.User
	if err := s.db.Where("username = ?", username).First(&u).Error; err != nil {
		return model.User{}, mapErr(err)
	}
	return u, nil
}

func (s *DBStore) UserByID(id uint) (model.User, error) {
	var u model.User
	if err := s.db.First(&u, id).Error; err != nil {
		return model.User{}, mapErr(err)
	}
	return u, nil
}

func (s *DBStore) CountUsers() (int64, error) {
	var count int64
	err := s.db.Model(&model.User{}).Count(&count).Error
	return count, err
}

func (s *DBStore) CreateHost(h *model.Host) error {
	return s.db.Create(h).Error
}

func (s *DBStore) ListHosts() ([]model.Host, error) {
	var hosts []model.Host
	err := s.db.Order("id").Find(&hosts).Error
	return hosts, err
}

func (s *DBStore) Host(id uint) (model.Host, error) {
	var h model.Host
	if err := s.db.First(&h, id).Error; err != nil {
		return model.Host{}, mapErr(err)
	}
	return h, nil
}

func (s *DBStore) DeleteHost(id uint) error {
	res := s.db.Delete(&model.Host{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	// Scan history is retained on purpose; jobs reference the host by id only.
	return nil
}

func (s *DBStore) CreateJob(j *model.ScanJob) error {
	rec, err := toRecord(j)
	if err != nil {
		return err
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return err
	}
	j.ID = rec.ID
	return nil
}

func (s *DBStore) UpdateJob(j *model.ScanJob) error {
	rec, err := toRecord(j)
	if err != nil {
		return err
	}
	return s.db.Save(&rec).Error
}

func (s *DBStore) Job(id uint) (model.ScanJob, error) {
	var rec model.ScanRecord
	if err := s.db.First(&rec, id).Error; err != nil {
		return model.ScanJob{}, mapErr(err)
	}
	return fromRecord(rec)
}

func (s *DBStore) ListJobs(hostID uint, limit int) ([]model.ScanJob, error) {
	var recs []model.ScanRecord
	q := s.db.Where("host_id = ?", hostID).
		Order("finished_at IS NULL DESC").
		Order("finished_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return fromRecords(recs)
}

func (s *DBStore) LatestSuccess(hostID uint) (model.ScanJob, error) {
	var rec model.ScanRecord
	err := s.db.Where("host_id = ? AND status = ?", hostID, model.StatusSuccess).
		Order("finished_at DESC").
		Order("id DESC").
		First(&rec).Error
	if err != nil {
		return model.ScanJob{}, mapErr(err)
	}
	return fromRecord(rec)
}

func (s *DBStore) SuccessBefore(j model.ScanJob) (model.ScanJob, error) {
	if j.FinishedAt == nil {
		return model.ScanJob{}, ErrNotFound
	}
	var rec model.ScanRecord
	err := s.db.Where("host_id = ? AND status = ?", j.HostID, model.StatusSuccess).
		Where("finished_at < ? OR (finished_at = ? AND id < ?)", *j.FinishedAt, *j.FinishedAt, j.ID).
		Order("finished_at DESC").
		Order("id DESC").
		First(&rec).Error
	if err != nil {
		return model.ScanJob{}, mapErr(err)
	}
	return fromRecord(rec)
}

func toRecord(j *model.ScanJob) (model.ScanRecord, error) {
	rec := model.ScanRecord{
		ID:         j.ID,
		HostID:     j.HostID,
		Status:     j.Status,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
	if j.Snapshot != nil || j.Failure != nil {
		raw, err := json.Marshal(jobPayload{Snapshot: j.Snapshot, Failure: j.Failure})
		if err != nil {
			return rec, errors.Wrap(err, "marshal scan payload")
		}
		rec.Data = datatypes.JSON(raw)
	}
	return rec, nil
}

func fromRecord(rec model.ScanRecord) (model.ScanJob, error) {
	j := model.ScanJob{
		ID:         rec.ID,
		HostID:     rec.HostID,
		Status:     rec.Status,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
	if len(rec.Data) > 0 {
		var p jobPayload
		if err := json.Unmarshal(rec.Data, &p); err != nil {
			return j, errors.Wrapf(err, "unmarshal scan payload for job %d", rec.ID)
		}
		j.Snapshot = p.Snapshot
		j.Failure = p.Failure
	}
	return j, nil
}

func fromRecords(recs []model.ScanRecord) ([]model.ScanJob, error) {
	out := make([]model.ScanJob, 0, len(recs))
	for _, rec := range recs {
		j, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
