package reconciler

import (
	"fmt"
	"sort"
	"time"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/provenance"
)

// Skip reasons reported on outcomes.
const (
	ReasonDuplicate = "duplicate" // version already stored
	ReasonUnchanged = "unchanged" // same-version update with no field changes
	ReasonExcluded  = "excluded"  // non-latest revision with IncludeAllVersions off
	ReasonRepaired  = "repaired"  // current revision restored from the archive
	ReasonLinked    = "linked"    // services added to a parent domain
)

// Outcome is what happened to a single revision.
type Outcome struct {
	Key             catalogs.Key `json:"key" yaml:"key"`
	Version         string       `json:"version" yaml:"version"`
	Source          string       `json:"source,omitempty" yaml:"source,omitempty"`
	Action          Action       `json:"action,omitempty" yaml:"action,omitempty"`
	Reason          string       `json:"reason,omitempty" yaml:"reason,omitempty"`
	PreviousVersion string       `json:"previousVersion,omitempty" yaml:"previousVersion,omitempty"`
	Changes         []string     `json:"changes,omitempty" yaml:"changes,omitempty"`
	ErrorKind       string       `json:"errorKind,omitempty" yaml:"errorKind,omitempty"`
	Error           string       `json:"error,omitempty" yaml:"error,omitempty"`

	Err error `json:"-" yaml:"-"`
}

// Failed reports whether the revision failed.
func (o Outcome) Failed() bool {
	return o.Err != nil || o.ErrorKind != ""
}

// Result represents the outcome of a reconciliation run.
type Result struct {
	Outcomes   []Outcome      `json:"outcomes" yaml:"outcomes"`
	Warnings   []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Provenance provenance.Map `json:"provenance,omitempty" yaml:"provenance,omitempty"`
	Metadata   ResultMetadata `json:"metadata" yaml:"metadata"`

	Errors []error `json:"-" yaml:"-"`
}

// ResultMetadata contains metadata about the reconciliation process.
type ResultMetadata struct {
	Generator string           `json:"generator,omitempty" yaml:"generator,omitempty"`
	StartTime time.Time        `json:"startTime" yaml:"startTime"`
	EndTime   time.Time        `json:"endTime" yaml:"endTime"`
	Duration  time.Duration    `json:"duration" yaml:"duration"`
	DryRun    bool             `json:"dryRun" yaml:"dryRun"`
	Stats     ResultStatistics `json:"stats" yaml:"stats"`
}

// ResultStatistics counts outcomes by action.
type ResultStatistics struct {
	Revisions    int `json:"revisions" yaml:"revisions"`
	Entities     int `json:"entities" yaml:"entities"`
	Created      int `json:"created" yaml:"created"`
	Updated      int `json:"updated" yaml:"updated"`
	Superseded   int `json:"superseded" yaml:"superseded"`
	ArchiveWrite int `json:"archiveWrite" yaml:"archiveWrite"`
	Skipped      int `json:"skipped" yaml:"skipped"`
	Repaired     int `json:"repaired" yaml:"repaired"`
	Linked       int `json:"linked" yaml:"linked"`
	Failed       int `json:"failed" yaml:"failed"`
}

// NewResult creates a new result with defaults.
func NewResult() *Result {
	return &Result{
		Outcomes:   []Outcome{},
		Warnings:   []string{},
		Provenance: make(provenance.Map),
		Errors:     []error{},
		Metadata: ResultMetadata{
			StartTime: time.Now(),
		},
	}
}

// add records an outcome and its error, if any.
func (r *Result) add(o Outcome) {
	if o.Err != nil {
		o.ErrorKind = errors.Reason(o.Err)
		o.Error = o.Err.Error()
		r.Errors = append(r.Errors, o.Err)
	}
	r.Outcomes = append(r.Outcomes, o)
}

// IsSuccess returns true if no revision failed.
func (r *Result) IsSuccess() bool {
	for _, o := range r.Outcomes {
		if o.Failed() {
			return false
		}
	}
	return len(r.Errors) == 0
}

// HasChanges returns true if any revision mutated the store.
func (r *Result) HasChanges() bool {
	for _, o := range r.Outcomes {
		if o.Failed() {
			continue
		}
		if o.Reason == ReasonRepaired || (o.Action != "" && o.Action != ActionSkip) {
			return true
		}
	}
	return false
}

// Failures returns the failed outcomes.
func (r *Result) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}

// ByKey returns the outcomes for key in processing order.
func (r *Result) ByKey(key catalogs.Key) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Key == key {
			out = append(out, o)
		}
	}
	return out
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	s := r.Metadata.Stats
	counts := fmt.Sprintf("%d created, %d updated, %d superseded, %d archived, %d skipped",
		s.Created, s.Updated, s.Superseded, s.ArchiveWrite, s.Skipped)
	if s.Repaired > 0 {
		counts += fmt.Sprintf(", %d repaired", s.Repaired)
	}
	if s.Linked > 0 {
		counts += fmt.Sprintf(", %d domains linked", s.Linked)
	}

	prefix := "Reconciliation"
	if r.Metadata.DryRun {
		prefix = "Dry run"
	}
	if !r.IsSuccess() {
		return fmt.Sprintf("%s failed for %d of %d revisions (%s)", prefix, s.Failed, s.Revisions, counts)
	}
	if !r.HasChanges() {
		return fmt.Sprintf("%s completed. No changes detected.", prefix)
	}
	return fmt.Sprintf("%s completed: %s", prefix, counts)
}

// Finalize sorts outcomes by key, computes statistics and marks completion.
// Outcomes of one key keep their processing order.
func (r *Result) Finalize() {
	sort.SliceStable(r.Outcomes, func(i, j int) bool {
		return r.Outcomes[i].Key.String() < r.Outcomes[j].Key.String()
	})

	stats := ResultStatistics{}
	entities := make(map[catalogs.Key]bool)
	for _, o := range r.Outcomes {
		entities[o.Key] = true
		if o.Reason == ReasonRepaired {
			stats.Repaired++
			continue
		}
		if o.Reason == ReasonLinked {
			if o.Failed() {
				stats.Failed++
			} else {
				stats.Linked++
			}
			continue
		}
		stats.Revisions++
		if o.Failed() {
			stats.Failed++
			continue
		}
		switch o.Action {
		case ActionCreate:
			stats.Created++
		case ActionUpdate:
			stats.Updated++
		case ActionSupersede:
			stats.Superseded++
		case ActionArchiveWrite:
			stats.ArchiveWrite++
		default:
			stats.Skipped++
		}
	}
	stats.Entities = len(entities)
	r.Metadata.Stats = stats

	r.Metadata.EndTime = time.Now()
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
}
