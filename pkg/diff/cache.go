package diff

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"

	"driftwatch/pkg/model"
)

// Read-through cache for computed diffs, keyed by the (prev, curr) job id
// pair. Terminal jobs are immutable, so cached entries never go stale. The
// cache is best-effort: any sqlite problem disables it and diffs are simply
// recomputed.

var (
	cacheOnce sync.Once
	cacheDB   *sql.DB
)

func cachePath() string {
	if p := os.Getenv("DRIFTWATCH_CACHE_DB"); p != "" {
		return p
	}
	return "/var/lib/driftwatch/diffcache.db"
}

func initCache() {
	cacheOnce.Do(func() {
		path := cachePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Warn().Err(err).Msg("diff cache disabled: mkdir failed")
			return
		}
		dsn := "file:" + path + "?_pragma=busy_timeout=5000"
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			log.Warn().Err(err).Msg("diff cache disabled: open failed")
			return
		}
		db.SetMaxOpenConns(1)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Warn().Err(err).Msg("diff cache disabled: ping failed")
			_ = db.Close()
			return
		}
		if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS diff_cache(prev_id INTEGER, curr_id INTEGER, body TEXT, ts INTEGER, PRIMARY KEY (prev_id, curr_id));`); err != nil {
			log.Warn().Err(err).Msg("diff cache disabled: schema init failed")
			_ = db.Close()
			return
		}
		cacheDB = db
	})
}

func cachedDiff(prevID, currID uint) (map[string]model.CategoryDiff, bool) {
	initCache()
	if cacheDB == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var body string
	err := cacheDB.QueryRowContext(ctx, `SELECT body FROM diff_cache WHERE prev_id=? AND curr_id=?`, prevID, currID).Scan(&body)
	if err != nil {
		return nil, false
	}
	var d map[string]model.CategoryDiff
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return nil, false
	}
	return d, true
}

func storeDiff(prevID, currID uint, d map[string]model.CategoryDiff) {
	initCache()
	if cacheDB == nil {
		return
	}
	body, err := json.Marshal(d)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _ = cacheDB.ExecContext(ctx, `INSERT OR REPLACE INTO diff_cache(prev_id, curr_id, body, ts) VALUES(?,?,?,?)`,
		prevID, currID, string(body), time.Now().Unix())
}

// BuildResultCached is BuildResult with the read-through cache in front of
// Compute.
func BuildResultCached(prev *model.ScanJob, curr *model.ScanJob) model.DiffResult {
	if prev == nil || prev.Snapshot == nil || curr.Snapshot == nil {
		return model.DiffResult{Diff: map[string]model.CategoryDiff{}}
	}
	if d, ok := cachedDiff(prev.ID, curr.ID); ok {
		return model.DiffResult{HasPrevious: true, PreviousTimestamp: prev.FinishedAt, Diff: d}
	}
	d := Compute(prev.Snapshot, curr.Snapshot)
	storeDiff(prev.ID, curr.ID, d)
	return model.DiffResult{HasPrevious: true, PreviousTimestamp: prev.FinishedAt, Diff: d}
}
