package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/catalogsync"
	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/provenance"
	"github.com/agentstation/catalogsync/pkg/reconciler"
)

var orderPlaced = catalogs.Key{Kind: catalogs.KindMessage, MessageType: catalogs.MessageEvent, ID: "OrderPlaced"}

func sampleResult() *reconciler.Result {
	result := reconciler.NewResult()
	result.Outcomes = []reconciler.Outcome{
		{Key: orderPlaced, Version: "1", Action: reconciler.ActionCreate, Changes: []string{"version", "fields.name"}},
		{Key: orderPlaced, Version: "2", Action: reconciler.ActionSupersede, PreviousVersion: "1",
			Changes: []string{"version", "fields.a", "fields.b", "fields.c", "fields.d"}},
		{Key: catalogs.Key{Kind: catalogs.KindService, ID: "Orders"}, Version: "1",
			ErrorKind: "conflict", Error: "refusing to overwrite"},
	}
	result.Finalize()
	return result
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "JSON", "yaml", ""} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestResultToTableData(t *testing.T) {
	data := ResultToTableData(sampleResult())
	require.Len(t, data.Rows, 3)
	assert.Len(t, data.ColumnAlignment, len(data.Headers))

	create := data.Rows[0]
	assert.Equal(t, []string{"event", "OrderPlaced", "1", "create", "version, fields.name", "-"}, create)

	supersede := data.Rows[1]
	assert.Equal(t, "version, fields.a, fields.b (+2 more)", supersede[4])
	assert.Equal(t, "from 1", supersede[5])

	failed := data.Rows[2]
	assert.Equal(t, "-", failed[3])
	assert.Equal(t, "conflict: refusing to overwrite", failed[5])
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, ResultToTableData(sampleResult())))
	out := buf.String()
	assert.Contains(t, out, "OrderPlaced")
	assert.Contains(t, out, "supersede")
}

func TestTableFormatterReflection(t *testing.T) {
	type row struct {
		Name    string `json:"entity_name"`
		Version string
		hidden  string
	}
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, []row{{Name: "Orders", Version: "1", hidden: "x"}}))
	assert.Contains(t, buf.String(), "Orders")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).Format(&buf, sampleResult()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded["outcomes"], 3)
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	list := &catalogsync.VersionList{Key: orderPlaced, Current: "3", Archived: []string{"1", "2"}, Scheme: "numeric"}
	require.NoError(t, NewFormatter(FormatYAML).Format(&buf, list))
	assert.Contains(t, buf.String(), "current:")
	assert.Contains(t, buf.String(), "OrderPlaced")
}

func TestVersionsToTableData(t *testing.T) {
	list := &catalogsync.VersionList{Key: orderPlaced, Current: "3", Archived: []string{"1", "2"}, Scheme: "numeric"}
	data := VersionsToTableData(list)
	require.Len(t, data.Rows, 3)
	assert.Equal(t, []string{"3", "→", "current"}, data.Rows[0])
	assert.Equal(t, "2", data.Rows[1][0])
	assert.Equal(t, "1", data.Rows[2][0])
	assert.Contains(t, data.Footer, "3 versions")
}

func TestVerifyToTableData(t *testing.T) {
	report := &reconciler.VerifyReport{
		Entities: 1,
		Violations: []reconciler.Violation{
			{Key: orderPlaced, Problem: reconciler.ProblemMissingCurrent},
		},
	}
	data := VerifyToTableData(report)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, reconciler.ProblemMissingCurrent, data.Rows[0][3])
	assert.Equal(t, report.Summary(), data.Footer)
}

func TestProvenanceToTableData(t *testing.T) {
	now := time.Now()
	m := provenance.Map{
		"message/event:OrderPlaced:name": {
			{Source: "manifest", Version: "1", Action: "create", Value: "Order", Timestamp: now.Add(-2 * time.Hour)},
			{Source: "manifest", Version: "2", Action: "supersede", Value: "Order placed", Timestamp: now},
		},
		"message/event:OrderPlaced:schemaPath": {
			{Source: "manifest", Version: "2", Value: "schema.json", Timestamp: now},
		},
	}

	data := ProvenanceToTableData(m, []string{"name"})
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "→", data.Rows[0][1])
	assert.Equal(t, "Order placed", data.Rows[0][2])
	assert.Equal(t, "just now", data.Rows[0][6])
	assert.Equal(t, "", data.Rows[1][0])

	all := ProvenanceToTableData(m, nil)
	assert.Len(t, all.Rows, 3)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "<nil>", formatValue(nil))
	assert.Equal(t, "<empty>", formatValue(""))
	assert.Equal(t, "3", formatValue(float64(3)))
	assert.Equal(t, "1.50", formatValue(1.5))
	assert.Equal(t, "- a\n- b", formatValue([]string{"a", "b"}))
}
