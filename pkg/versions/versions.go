// Package versions orders entity version strings.
//
// Sources mix integer counters ("3"), dotted numeric versions ("1.2.0"),
// semantic versions with pre-release tags ("v2.0.0-rc.1") and opaque
// labels. A single scheme is detected across every version known for an
// entity id and then used for all comparisons of that id. String equality
// is always checked first; when no scheme fits, comparisons fail with an
// AmbiguousVersionOrderError instead of guessing.
package versions

import (
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/agentstation/catalogsync/pkg/errors"
)

// Scheme is the ordering rule applied to the versions of one id.
type Scheme int

// Ordering schemes, in detection order.
const (
	// SchemeNone means no ordering could be established.
	SchemeNone Scheme = iota
	// SchemeNumeric compares dot-separated non-negative integers ("3", "1.10.2").
	SchemeNumeric
	// SchemeSemver compares semantic versions including pre-release tags.
	SchemeSemver
	// SchemeSequence compares the source-declared sequence hints.
	SchemeSequence
)

// String returns the scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeNumeric:
		return "numeric"
	case SchemeSemver:
		return "semver"
	case SchemeSequence:
		return "sequence"
	default:
		return "none"
	}
}

// Candidate is a version together with its optional sequence hint.
type Candidate struct {
	Version  string
	Sequence *int64
}

// Detect returns the first scheme that every candidate satisfies.
func Detect(candidates []Candidate) Scheme {
	if len(candidates) == 0 {
		return SchemeNumeric
	}
	if all(candidates, func(c Candidate) bool { return isNumeric(c.Version) }) {
		return SchemeNumeric
	}
	if all(candidates, func(c Candidate) bool { return isSemver(c.Version) }) {
		return SchemeSemver
	}
	if all(candidates, func(c Candidate) bool { return c.Sequence != nil }) {
		return SchemeSequence
	}
	return SchemeNone
}

// Orderer compares versions of a single entity id under one scheme.
type Orderer struct {
	id       string
	scheme   Scheme
	sequence map[string]int64
}

// NewOrderer detects the scheme for the given candidates. Later sequence
// hints for a version override earlier ones.
func NewOrderer(id string, candidates []Candidate) *Orderer {
	o := &Orderer{
		id:       id,
		scheme:   Detect(candidates),
		sequence: make(map[string]int64, len(candidates)),
	}
	for _, c := range candidates {
		if c.Sequence != nil {
			o.sequence[c.Version] = *c.Sequence
		}
	}
	return o
}

// Scheme returns the detected scheme.
func (o *Orderer) Scheme() Scheme {
	return o.scheme
}

// Compare returns -1, 0 or 1 as a is older than, equal to or newer than b.
// Textually different versions that the scheme considers equal ("1.0" and
// "1.0.0") are reported as ambiguous, since either could be lost.
func (o *Orderer) Compare(a, b string) (int, error) {
	if a == b {
		return 0, nil
	}

	var c int
	switch o.scheme {
	case SchemeNumeric:
		c = compareNumeric(a, b)
	case SchemeSemver:
		c = semver.Compare(canonicalSemver(a), canonicalSemver(b))
	case SchemeSequence:
		sa, okA := o.sequence[a]
		sb, okB := o.sequence[b]
		if !okA || !okB {
			return 0, o.ambiguous(a, b, "missing sequence hint")
		}
		c = compareInt64(sa, sb)
	default:
		return 0, o.ambiguous(a, b, "no numeric, semver or sequence ordering applies")
	}

	if c == 0 {
		return 0, o.ambiguous(a, b, "distinct versions compare equal under "+o.scheme.String()+" ordering")
	}
	return c, nil
}

// Newest returns the newest of the given versions.
func (o *Orderer) Newest(versions []string) (string, error) {
	if len(versions) == 0 {
		return "", errors.NewValidationError("versions", nil, "no versions to choose from")
	}
	newest := versions[0]
	for _, v := range versions[1:] {
		c, err := o.Compare(v, newest)
		if err != nil {
			return "", err
		}
		if c > 0 {
			newest = v
		}
	}
	return newest, nil
}

// Sort orders versions oldest first. The slice is left untouched when any
// pair cannot be ordered.
func (o *Orderer) Sort(versions []string) error {
	sorted := append([]string(nil), versions...)
	var firstErr error
	sort.SliceStable(sorted, func(i, j int) bool {
		c, err := o.Compare(sorted[i], sorted[j])
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return c < 0
	})
	if firstErr != nil {
		return firstErr
	}
	copy(versions, sorted)
	return nil
}

func (o *Orderer) ambiguous(a, b, msg string) error {
	return errors.NewAmbiguousVersionOrderError(o.id, []string{a, b}, msg)
}

func all(cs []Candidate, pred func(Candidate) bool) bool {
	for _, c := range cs {
		if !pred(c) {
			return false
		}
	}
	return true
}

// isNumeric reports whether v is one or more dot-separated digit runs.
func isNumeric(v string) bool {
	if v == "" {
		return false
	}
	for _, part := range strings.Split(v, ".") {
		if part == "" {
			return false
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

func isSemver(v string) bool {
	return semver.IsValid(canonicalSemver(v))
}

// canonicalSemver adds the "v" prefix x/mod/semver requires.
func canonicalSemver(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	if strings.HasPrefix(v, "V") {
		return "v" + v[1:]
	}
	return "v" + v
}

// compareNumeric compares dotted integer strings component-wise, treating
// missing trailing components as zero. Components are compared as digit
// strings so arbitrarily large counters never overflow.
func compareNumeric(a, b string) int {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		x, y := "0", "0"
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if c := compareDigits(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
