package output

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/catalogsync"
	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/provenance"
	"github.com/agentstation/catalogsync/pkg/reconciler"
)

// maxChanges is the number of changed fields listed per outcome row.
const maxChanges = 3

// ResultToTableData converts a reconciliation result to table format.
func ResultToTableData(result *reconciler.Result) Data {
	rows := make([][]string, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		action := string(o.Action)
		if action == "" {
			action = "-"
		}
		detail := o.Reason
		if o.PreviousVersion != "" {
			detail = strings.TrimSpace(detail + " from " + o.PreviousVersion)
		}
		if o.Failed() {
			detail = o.ErrorKind + ": " + o.Error
		}
		rows = append(rows, []string{
			kindLabel(o.Key),
			o.Key.ID,
			dash(o.Version),
			action,
			formatChanges(o.Changes),
			dash(detail),
		})
	}

	footer := result.Summary()
	for _, w := range result.Warnings {
		footer += "\nwarning: " + w
	}

	return Data{
		Headers: []string{"Kind", "ID", "Version", "Action", "Changes", "Detail"},
		Rows:    rows,
		ColumnAlignment: []Align{
			AlignLeft, // Kind
			AlignLeft, // ID
			AlignLeft, // Version
			AlignLeft, // Action
			AlignLeft, // Changes
			AlignLeft, // Detail
		},
		Footer: footer,
	}
}

// VersionsToTableData lists the versions of an entity, newest first.
func VersionsToTableData(list *catalogsync.VersionList) Data {
	var rows [][]string
	if list.Current != "" {
		rows = append(rows, []string{list.Current, "→", "current"})
	}
	for i := len(list.Archived) - 1; i >= 0; i-- {
		rows = append(rows, []string{list.Archived[i], "", "archived"})
	}
	return Data{
		Headers:         []string{"Version", "Curr", "State"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignCenter, AlignLeft},
		Footer:          fmt.Sprintf("%s %s: %d versions (%s order)", kindLabel(list.Key), list.Key.ID, len(rows), list.Scheme),
	}
}

// VerifyToTableData lists verification violations.
func VerifyToTableData(report *reconciler.VerifyReport) Data {
	rows := make([][]string, 0, len(report.Violations))
	for _, v := range report.Violations {
		rows = append(rows, []string{kindLabel(v.Key), v.Key.ID, dash(v.Version), v.Problem, dash(v.Detail)})
	}
	return Data{
		Headers: []string{"Kind", "ID", "Version", "Problem", "Detail"},
		Rows:    rows,
		Footer:  report.Summary(),
	}
}

// ProvenanceToTableData converts provenance history to table format.
// Fields matching none of the patterns are left out.
func ProvenanceToTableData(m provenance.Map, patterns []string) Data {
	keys := make([]string, 0, len(m))
	for key := range m {
		if MatchField(key, patterns) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var rows [][]string
	for _, key := range keys {
		history := append([]provenance.Provenance(nil), m[key]...)
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].Timestamp.After(history[j].Timestamp)
		})
		for i, entry := range history {
			field, current := "", ""
			if i == 0 {
				field, current = key, "→"
			}
			rows = append(rows, []string{
				field,
				current,
				formatValue(entry.Value),
				entry.Source,
				entry.Version,
				entry.Action,
				formatTimestamp(entry.Timestamp),
			})
		}
	}

	return Data{
		Headers: []string{"Field", "Curr", "Value", "Source", "Version", "Action", "When"},
		Rows:    rows,
		ColumnAlignment: []Align{
			AlignLeft,   // Field
			AlignCenter, // Curr
			AlignLeft,   // Value
			AlignLeft,   // Source
			AlignLeft,   // Version
			AlignLeft,   // Action
			AlignLeft,   // When
		},
	}
}

// MatchField checks if a field matches any of the provided patterns.
// Matching is case-insensitive; "fields.*" also matches nested keys.
func MatchField(field string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	fieldLower := strings.ToLower(field)
	for _, pattern := range patterns {
		patternLower := strings.ToLower(pattern)
		if matched, err := filepath.Match(patternLower, fieldLower); err == nil && matched {
			return true
		}
		if strings.HasSuffix(patternLower, ".*") {
			prefix := strings.TrimSuffix(patternLower, ".*")
			if strings.HasPrefix(fieldLower, prefix+".") || fieldLower == prefix {
				return true
			}
		}
		if strings.HasSuffix(fieldLower, ":"+patternLower) {
			return true
		}
	}
	return false
}

func kindLabel(key catalogs.Key) string {
	if key.MessageType != "" {
		return string(key.MessageType)
	}
	return string(key.Kind)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatChanges(changes []string) string {
	switch {
	case len(changes) == 0:
		return "-"
	case len(changes) <= maxChanges:
		return strings.Join(changes, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(changes[:maxChanges], ", "), len(changes)-maxChanges)
}

// formatValue formats a provenance value for display. Complex values are
// rendered as YAML.
func formatValue(val any) string {
	switch v := val.(type) {
	case nil:
		return "<nil>"
	case string:
		if v == "" {
			return "<empty>"
		}
		return v
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return fmt.Sprintf("%v", v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	}

	yamlBytes, err := yaml.Marshal(val)
	if err != nil {
		return fmt.Sprintf("%v", val)
	}
	return strings.TrimSuffix(string(yamlBytes), "\n")
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d min ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hr ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}
	return t.Format("2006-01-02 15:04")
}
