package store_test

import (
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/catalogsync/pkg/authority"
	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/store"
)

var orderPlaced = catalogs.Key{Kind: catalogs.KindMessage, MessageType: catalogs.MessageEvent, ID: "OrderPlaced"}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	created := utc.Time{Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	seq := int64(7)
	e := &catalogs.Entity{
		ID:          "OrderPlaced",
		Kind:        catalogs.KindMessage,
		MessageType: catalogs.MessageEvent,
		Version:     "1.10",
		Sequence:    &seq,
		UserFields: catalogs.Fields{
			"markdown": "## Architecture\n\n<NodeGraph />\n",
			"summary":  "Raised when an order is placed",
			"owners":   []any{"orders-team"},
		},
		SourceFields: catalogs.Fields{
			"name":           "Order placed",
			"schemaPath":     "schema.json",
			"specifications": map[string]any{"asyncapiPath": "asyncapi.yaml"},
		},
		Relationships: catalogs.Relationships{
			Channels: []catalogs.Ref{{ID: "orders", Version: "1"}},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}

	data, err := store.Encode(e)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<NodeGraph />")

	got, err := store.Decode(data, orderPlaced, authority.New(), "index.md")
	require.NoError(t, err)

	assert.Equal(t, "1.10", got.Version, "version text is preserved")
	require.NotNil(t, got.Sequence)
	assert.Equal(t, int64(7), *got.Sequence)
	assert.Equal(t, e.Markdown(), got.Markdown())
	assert.Equal(t, "Raised when an order is placed", got.UserFields.String("summary"))
	assert.Equal(t, []any{"orders-team"}, got.UserFields["owners"])
	assert.Equal(t, "Order placed", got.SourceFields.String("name"))
	assert.Contains(t, got.SourceFields, "specifications", "merged fields load as source fields")
	assert.Equal(t, []catalogs.Ref{{ID: "orders", Version: "1"}}, got.Relationships.Channels)
	assert.True(t, created.Time.Equal(got.CreatedAt.Time))
}

func TestUnclaimedFieldsKeepTheirOwner(t *testing.T) {
	e := &catalogs.Entity{
		ID:          "OrderPlaced",
		Kind:        catalogs.KindMessage,
		MessageType: catalogs.MessageEvent,
		Version:     "1",
		UserFields:  catalogs.Fields{"teamNotes": "keep me"},
		SourceFields: catalogs.Fields{
			"name":       "OrderPlaced",
			"deprecated": true,
		},
	}

	data, err := store.Encode(e)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sourceKeys:")

	got, err := store.Decode(data, orderPlaced, authority.New(), "index.md")
	require.NoError(t, err)
	assert.Equal(t, true, got.SourceFields["deprecated"])
	assert.NotContains(t, got.UserFields, "deprecated")
	assert.NotContains(t, got.UserFields, "sourceKeys")
	assert.NotContains(t, got.SourceFields, "sourceKeys")
	assert.Equal(t, "keep me", got.UserFields.String("teamNotes"))
}

func TestDecodeHandWrittenFrontmatter(t *testing.T) {
	doc := "---\n" +
		"id: Orders\n" +
		"name: Orders\n" +
		"version: 1.10\n" +
		"teamNotes: keep me\n" +
		"sends:\n" +
		"  - id: OrderPlaced\n" +
		"    version: 2\n" +
		"---\n" +
		"Hand written body\n"

	key := catalogs.Key{Kind: catalogs.KindService, ID: "Orders"}
	got, err := store.Decode([]byte(doc), key, authority.New(), "index.md")
	require.NoError(t, err)
	assert.Equal(t, "1.10", got.Version)
	assert.Equal(t, []catalogs.Ref{{ID: "OrderPlaced", Version: "2"}}, got.Relationships.Sends)
	assert.Equal(t, "keep me", got.UserFields.String("teamNotes"), "unclaimed keys are user content")
	assert.Equal(t, "Hand written body\n", got.Markdown())
	assert.NotContains(t, got.UserFields, "sends")
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no frontmatter", "just text"},
		{"unterminated", "---\nid: A\nversion: 1\n"},
		{"missing version", "---\nid: A\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Decode([]byte(tt.doc), orderPlaced, authority.New(), "index.md")
			var parseErr *errors.ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestNormalize(t *testing.T) {
	in := catalogs.Fields{
		"count":  3,
		"badges": []catalogs.Badge{{Content: "event"}},
	}
	out, err := store.Normalize(in)
	require.NoError(t, err)

	again, err := store.Normalize(out)
	require.NoError(t, err)
	assert.Equal(t, out, again, "normalization is idempotent")

	badges, ok := out["badges"].([]any)
	require.True(t, ok)
	assert.Equal(t, "event", badges[0].(map[string]any)["content"])
}
