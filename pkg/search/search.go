// Package search provides case-insensitive free-text lookup across host
// metadata and each host's most recent successful snapshot. Results are
// computed per query from committed job records, so a query sees either the
// pre- or post-scan state of a host, never a mix.
package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"driftwatch/pkg/model"
	"driftwatch/pkg/store"
)

// MinQueryLength: shorter queries return an empty result set, not an error.
const MinQueryLength = 2

const snippetRadius = 40

type Searcher struct {
	store store.Store
	log   zerolog.Logger
}

func NewSearcher(st store.Store, log zerolog.Logger) *Searcher {
	return &Searcher{store: st, log: log.With().Str("component", "search").Logger()}
}

// Search scans every host's metadata, then the flattened text of its latest
// successful snapshot. Host matches rank before content matches.
func (s *Searcher) Search(query string) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if len(query) < MinQueryLength {
		return []model.SearchResult{}, nil
	}
	needle := strings.ToLower(query)

	hosts, err := s.store.ListHosts()
	if err != nil {
		return nil, err
	}

	hostMatches := make([]model.SearchResult, 0)
	contentMatches := make([]model.SearchResult, 0)
	for _, h := range hosts {
		if snippet, ok := matchHostMeta(h, needle); ok {
			hostMatches = append(hostMatches, model.SearchResult{
				Host:      h,
				MatchType: model.MatchHost,
				Snippet:   snippet,
			})
		}

		job, err := s.store.LatestSuccess(h.ID)
		if err != nil {
			if err != store.ErrNotFound {
				s.log.Warn().Err(err).Uint("host", h.ID).Msg("failed to load latest snapshot")
			}
			continue
		}
		if job.Snapshot == nil {
			continue
		}
		if snippet, ok := matchText(flatten(job.Snapshot), needle); ok {
			id := job.ID
			contentMatches = append(contentMatches, model.SearchResult{
				Host:      h,
				MatchType: model.MatchContent,
				Snippet:   snippet,
				ScanID:    &id,
			})
		}
	}
	return append(hostMatches, contentMatches...), nil
}

func matchHostMeta(h model.Host, needle string) (string, bool) {
	meta := strings.Join([]string{h.Hostname, h.IPAddress, h.SSHUser}, " ")
	return matchText(meta, needle)
}

// matchText finds the first case-insensitive occurrence and cuts a snippet
// around it.
func matchText(haystack, needle string) (string, bool) {
	start, end, ok := foldIndex(haystack, needle)
	if !ok {
		return "", false
	}
	lo := start - snippetRadius
	if lo < 0 {
		lo = 0
	}
	for lo > 0 && !utf8.RuneStart(haystack[lo]) {
		lo--
	}
	hi := end + snippetRadius
	if hi >= len(haystack) {
		hi = len(haystack)
	} else {
		for hi < len(haystack) && !utf8.RuneStart(haystack[hi]) {
			hi++
		}
	}
	snippet := strings.TrimSpace(haystack[lo:hi])
	if lo > 0 {
		snippet = "…" + snippet
	}
	if hi < len(haystack) {
		snippet += "…"
	}
	return snippet, true
}

// foldIndex locates the first case-insensitive occurrence of needle and
// returns its byte bounds in haystack. Bounds refer to the original string,
// so folds that change byte length (Turkish İ and friends) cannot skew the
// snippet window.
func foldIndex(haystack, needle string) (int, int, bool) {
	want := []rune(needle)
	if len(want) == 0 {
		return 0, 0, false
	}
	for i := range haystack {
		j := i
		matched := 0
		for matched < len(want) {
			r, size := utf8.DecodeRuneInString(haystack[j:])
			if size == 0 || unicode.ToLower(r) != unicode.ToLower(want[matched]) {
				break
			}
			j += size
			matched++
		}
		if matched == len(want) {
			return i, j, true
		}
	}
	return 0, 0, false
}

// flatten renders a snapshot as one searchable text blob. Skipped categories
// contribute nothing.
func flatten(snap *model.Snapshot) string {
	var b strings.Builder
	for _, s := range []string{snap.Hostname, snap.IP, snap.OS, snap.BootTime, snap.Uptime} {
		if s != "" {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	for _, name := range model.SetCategories {
		c := snap.SetCategory(name)
		if c.Skipped {
			continue
		}
		for _, e := range c.Entries {
			b.WriteString(e)
			b.WriteByte('\n')
		}
	}
	if !snap.SSHKeys.Skipped {
		for _, k := range snap.SSHKeys.Entries {
			b.WriteString(k.User)
			b.WriteByte(' ')
			b.WriteString(k.Key)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
