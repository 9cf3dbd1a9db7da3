// Package match maps a new artifact to an existing catalog entry by
// filename similarity when identifiers are unavailable or ambiguous.
//
// This is the most failure-sensitive part of the system: a false positive
// silently overwrites the wrong catalog entry, a false negative creates a
// duplicate. The similarity threshold, the upload-token stripping, and the
// oldest-wins tie-break are load-bearing and configurable, not incidental.
package match

import (
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"

	"packmule/internal/artifact"
	"packmule/internal/catalog"
	"packmule/internal/logging"
	"packmule/internal/textutil"
)

const (
	// DefaultThreshold tolerates minor build-metadata noise in filenames
	// while rejecting genuine name or major-version differences.
	DefaultThreshold = 0.85
	// DefaultTokenLength is the length of the randomized suffix appended to
	// stored filenames at upload time.
	DefaultTokenLength = 8
	// DefaultExtension restricts matching to flat-package entries.
	DefaultExtension = ".pkg"
)

// Options tunes the matcher. Zero values fall back to the defaults.
type Options struct {
	Threshold   float64
	TokenLength int
	Extension   string
}

func (o Options) withDefaults() Options {
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.TokenLength == 0 {
		o.TokenLength = DefaultTokenLength
	}
	if o.Extension == "" {
		o.Extension = DefaultExtension
	}
	return o
}

// Matcher scores catalog entries against a target artifact name.
type Matcher struct {
	opts   Options
	token  *regexp.Regexp
	logger *slog.Logger
}

// New constructs a Matcher. The logger may be nil.
func New(opts Options, logger *slog.Logger) *Matcher {
	opts = opts.withDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Matcher{
		opts:   opts,
		token:  textutil.UploadTokenPattern(opts.TokenLength, opts.Extension),
		logger: logger,
	}
}

// Match finds the catalog entry most likely tracking the artifact named
// targetName. When hints are supplied (known records the caller wants
// validated), surviving candidates are further restricted to them. Fails
// with artifact.ErrNoMatch when nothing clears the threshold or the winning
// filename maps back to no entry.
func (m *Matcher) Match(targetName string, entries []catalog.Entry, hints []catalog.Entry) (catalog.Entry, error) {
	strippedTarget := textutil.StripUploadToken(targetName, m.token)

	// Only flat-package entries are matchable by this path.
	var names []string
	scores := make(map[string]float64)
	for _, entry := range entries {
		if !strings.HasSuffix(entry.FileKey, m.opts.Extension) {
			continue
		}
		name := path.Base(entry.FileKey)
		if _, seen := scores[name]; seen {
			continue
		}
		names = append(names, name)
		scores[name] = textutil.Ratio(textutil.StripUploadToken(name, m.token), strippedTarget)
	}

	var possible []string
	for _, name := range names {
		if scores[name] >= m.opts.Threshold {
			possible = append(possible, name)
		}
	}
	if len(possible) == 0 {
		return catalog.Entry{}, artifact.Wrap(artifact.ErrNoMatch, targetName, "match",
			"no catalog entry cleared the similarity threshold", nil)
	}

	providedAppName := ""
	if len(hints) > 0 {
		var restricted []string
		for _, hint := range hints {
			for _, name := range possible {
				if strings.Contains(hint.FileKey, name) {
					restricted = append(restricted, name)
				}
			}
		}
		if len(restricted) > 0 {
			possible = restricted
		}
		providedAppName = joinUniqueNames(hints)
	}

	winner := m.pickByVersion(possible, entries)
	m.logger.Debug("similarity match selected candidate", "target", targetName, "winner", winner)

	matching := entriesByFileKey(entries, winner)
	if len(matching) > 1 && providedAppName != "" {
		var filtered []catalog.Entry
		for _, entry := range matching {
			if strings.Contains(entry.Name, providedAppName) {
				filtered = append(filtered, entry)
			}
		}
		matching = filtered
	}
	if len(matching) == 0 {
		return catalog.Entry{}, artifact.Wrap(artifact.ErrNoMatch, targetName, "match",
			"winning filename "+winner+" maps back to no catalog entry", nil)
	}
	return matching[0], nil
}

// pickByVersion sorts surviving candidates descending by the semantic
// version parsed from their sanitized filenames and breaks ties among the
// top version by picking the oldest catalog entry: the first one created is
// the authoritative record to update.
func (m *Matcher) pickByVersion(possible []string, entries []catalog.Entry) string {
	versions := make(map[string]string, len(possible))
	parsed := make(map[string]*goversion.Version, len(possible))
	for _, name := range possible {
		sanitized := textutil.SanitizeVersion(name, m.token)
		versions[name] = sanitized
		if v, err := goversion.NewVersion(sanitized); err == nil {
			parsed[name] = v
		}
	}

	sort.SliceStable(possible, func(i, j int) bool {
		vi, vj := parsed[possible[i]], parsed[possible[j]]
		switch {
		case vi == nil && vj == nil:
			return false
		case vj == nil:
			return true
		case vi == nil:
			return false
		default:
			return vi.GreaterThan(vj)
		}
	})

	top := possible[0]
	var tied []string
	for _, name := range possible {
		if versions[name] == versions[top] {
			tied = append(tied, name)
		}
	}
	if len(tied) <= 1 {
		return top
	}
	return oldestEntryName(tied, entries)
}

// oldestEntryName compares tied candidates by the artifact's original
// upload timestamp, then the record's last-modified timestamp, both
// ascending. Candidates whose record cannot be found or parsed never win.
func oldestEntryName(tied []string, entries []catalog.Entry) string {
	best := tied[0]
	bestUploaded, bestModified, bestOK := timestampsFor(best, entries)
	for _, name := range tied[1:] {
		uploaded, modified, ok := timestampsFor(name, entries)
		if !ok {
			continue
		}
		if !bestOK ||
			uploaded.Before(bestUploaded) ||
			(uploaded.Equal(bestUploaded) && modified.Before(bestModified)) {
			best, bestUploaded, bestModified, bestOK = name, uploaded, modified, true
		}
	}
	return best
}

func timestampsFor(name string, entries []catalog.Entry) (uploaded, modified time.Time, ok bool) {
	for _, entry := range entries {
		if !strings.Contains(entry.FileKey, name) {
			continue
		}
		uploaded, err := parseTimestamp(entry.FileUpdated)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		modified, err := parseTimestamp(entry.UpdatedAt)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return uploaded, modified, true
	}
	return time.Time{}, time.Time{}, false
}

// parseTimestamp accepts catalog timestamps with or without fractional
// seconds.
func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05Z", value)
}

func entriesByFileKey(entries []catalog.Entry, name string) []catalog.Entry {
	var matching []catalog.Entry
	for _, entry := range entries {
		if strings.Contains(entry.FileKey, name) {
			matching = append(matching, entry)
		}
	}
	return matching
}

// joinUniqueNames concatenates the distinct display names of the hinted
// records; in practice there is exactly one.
func joinUniqueNames(hints []catalog.Entry) string {
	seen := make(map[string]bool, len(hints))
	var parts []string
	for _, hint := range hints {
		if !seen[hint.Name] {
			seen[hint.Name] = true
			parts = append(parts, hint.Name)
		}
	}
	return strings.Join(parts, "")
}
