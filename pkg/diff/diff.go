// Package diff computes the categorized change set between two snapshots of
// the same host. Compute is pure and deterministic; results are derived on
// read, never stored as authoritative state.
package diff

import (
	"sort"

	"driftwatch/pkg/model"
)

// Compute compares two snapshots and returns per-category changes.
// Unchanged categories are omitted. A category skipped on one side is
// treated as empty for that side only; skipped on both sides it contributes
// nothing.
func Compute(prev, curr *model.Snapshot) map[string]model.CategoryDiff {
	out := make(map[string]model.CategoryDiff)
	for _, name := range model.SetCategories {
		p := prev.SetCategory(name)
		c := curr.SetCategory(name)
		if p.Skipped && c.Skipped {
			continue
		}
		d := setDiff(categorySet(p), categorySet(c))
		if !d.Empty() {
			out[name] = d
		}
	}
	if d, ok := keyDiff(prev.SSHKeys, curr.SSHKeys); ok {
		out["ssh_keys"] = d
	}
	return out
}

// BuildResult assembles the client-facing DiffResult for a scan against its
// predecessor. prev is nil when no prior successful scan exists.
func BuildResult(prev *model.ScanJob, curr *model.ScanJob) model.DiffResult {
	if prev == nil || prev.Snapshot == nil || curr.Snapshot == nil {
		return model.DiffResult{Diff: map[string]model.CategoryDiff{}}
	}
	return model.DiffResult{
		HasPrevious:       true,
		PreviousTimestamp: prev.FinishedAt,
		Diff:              Compute(prev.Snapshot, curr.Snapshot),
	}
}

// categorySet flattens a category into a set; skipped coerces to empty.
func categorySet(c model.Category) map[string]struct{} {
	set := make(map[string]struct{}, len(c.Entries))
	if c.Skipped {
		return set
	}
	for _, e := range c.Entries {
		set[e] = struct{}{}
	}
	return set
}

func setDiff(prev, curr map[string]struct{}) model.CategoryDiff {
	added := make([]string, 0)
	for e := range curr {
		if _, ok := prev[e]; !ok {
			added = append(added, e)
		}
	}
	removed := make([]string, 0)
	for e := range prev {
		if _, ok := curr[e]; !ok {
			removed = append(removed, e)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return model.CategoryDiff{Added: added, Removed: removed}
}

// keyDiff diffs ssh_keys by user: added/removed track user presence,
// changed tracks users whose key text differs under exact comparison.
func keyDiff(prev, curr model.KeyedCategory) (model.CategoryDiff, bool) {
	if prev.Skipped && curr.Skipped {
		return model.CategoryDiff{}, false
	}
	prevKeys := keyMap(prev)
	currKeys := keyMap(curr)

	d := model.CategoryDiff{Added: []string{}, Removed: []string{}, Changed: []string{}}
	for user, key := range currKeys {
		old, ok := prevKeys[user]
		switch {
		case !ok:
			d.Added = append(d.Added, user)
		case old != key:
			d.Changed = append(d.Changed, user)
		}
	}
	for user := range prevKeys {
		if _, ok := currKeys[user]; !ok {
			d.Removed = append(d.Removed, user)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	if d.Empty() {
		return model.CategoryDiff{}, false
	}
	return d, true
}

func keyMap(c model.KeyedCategory) map[string]string {
	m := make(map[string]string, len(c.Entries))
	if c.Skipped {
		return m
	}
	for _, k := range c.Entries {
		m[k.User] = k.Key
	}
	return m
}
