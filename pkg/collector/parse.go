package collector

import (
	"strings"

	"driftwatch/pkg/model"
)

// parseLines splits output into trimmed, non-empty lines.
func parseLines(out string) []string {
	lines := strings.Split(out, "\n")
	res := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			res = append(res, l)
		}
	}
	return res
}

// parseTable drops the header line of tabular command output (df, ss).
func parseTable(out string) []string {
	lines := parseLines(out)
	if len(lines) > 0 {
		return lines[1:]
	}
	return lines
}

// parseFirstField keeps the first whitespace-separated field of each line,
// e.g. unit names from systemctl list-units.
func parseFirstField(out string) []string {
	lines := parseLines(out)
	res := make([]string, 0, len(lines))
	for _, l := range lines {
		fields := strings.Fields(l)
		if len(fields) > 0 {
			res = append(res, fields[0])
		}
	}
	return res
}

// parseTimers extracts the timer unit name from systemctl list-timers rows.
// The NEXT/LAST columns change every scan and would drown the diff in noise.
func parseTimers(out string) []string {
	lines := parseLines(out)
	res := make([]string, 0, len(lines))
	for _, l := range lines {
		for _, f := range strings.Fields(l) {
			if strings.HasSuffix(f, ".timer") {
				res = append(res, f)
				break
			}
		}
	}
	return res
}

// parseOSRelease pulls PRETTY_NAME out of /etc/os-release, falling back to
// NAME when absent.
func parseOSRelease(out string) string {
	var name string
	for _, l := range parseLines(out) {
		if v, ok := strings.CutPrefix(l, "PRETTY_NAME="); ok {
			return strings.Trim(v, `"`)
		}
		if v, ok := strings.CutPrefix(l, "NAME="); ok && name == "" {
			name = strings.Trim(v, `"`)
		}
	}
	return name
}

// parseSSHKeys parses "user key..." lines emitted by sshKeysCmd. The key is
// everything after the first field, kept verbatim for exact comparison.
func parseSSHKeys(out string) []model.SSHKey {
	lines := parseLines(out)
	res := make([]model.SSHKey, 0, len(lines))
	for _, l := range lines {
		user, key, ok := strings.Cut(l, " ")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		res = append(res, model.SSHKey{User: user, Key: strings.TrimSpace(key)})
	}
	return res
}
