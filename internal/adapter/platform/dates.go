package platform

import (
	"log/slog"
	"strings"
	"time"
)

// gitDateLayouts covers the timestamp shapes GitHub and GitLab emit,
// including the space-separated "UTC" form some GitLab instances use.
var gitDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseGitDate parses a platform timestamp. A value that cannot be parsed
// falls back to the current time so a malformed date never aborts a sync.
func parseGitDate(value string) time.Time {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Now().UTC()
	}
	if strings.HasSuffix(s, " UTC") {
		s = strings.TrimSuffix(s, " UTC")
	}
	for _, layout := range gitDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	slog.Warn("unparseable commit date, using current time", "value", value)
	return time.Now().UTC()
}
