package versions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/versions"
)

func cands(vs ...string) []versions.Candidate {
	out := make([]versions.Candidate, len(vs))
	for i, v := range vs {
		out[i] = versions.Candidate{Version: v}
	}
	return out
}

func seq(n int64) *int64 { return &n }

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		candidates []versions.Candidate
		want       versions.Scheme
	}{
		{"integers", cands("1", "2", "10"), versions.SchemeNumeric},
		{"dotted", cands("1.0.0", "1.10", "2"), versions.SchemeNumeric},
		{"prefixed", cands("v1", "v2"), versions.SchemeSemver},
		{"prerelease", cands("1.0.0-beta", "1.0.0"), versions.SchemeSemver},
		{"opaque", cands("alpha", "beta"), versions.SchemeNone},
		{"opaque with hints", []versions.Candidate{
			{Version: "alpha", Sequence: seq(1)},
			{Version: "beta", Sequence: seq(2)},
		}, versions.SchemeSequence},
		{"partial hints", []versions.Candidate{
			{Version: "alpha", Sequence: seq(1)},
			{Version: "beta"},
		}, versions.SchemeNone},
		{"empty", nil, versions.SchemeNumeric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, versions.Detect(tt.candidates))
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		all  []string
		a, b string
		want int
	}{
		{"integer not lexical", []string{"9", "10"}, "10", "9", 1},
		{"dotted", []string{"1.2.0", "1.10.0"}, "1.2.0", "1.10.0", -1},
		{"dotted shorter", []string{"1.2", "1.2.1"}, "1.2", "1.2.1", -1},
		{"huge counter", []string{"123456789012345678901234567890", "2"}, "123456789012345678901234567890", "2", 1},
		{"semver prerelease", []string{"1.0.0-rc.1", "1.0.0"}, "1.0.0-rc.1", "1.0.0", -1},
		{"prefixed", []string{"v1", "v2"}, "v2", "v1", 1},
		{"equal strings", []string{"x"}, "x", "x", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := versions.NewOrderer("E", cands(tt.all...))
			got, err := o.Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareAmbiguous(t *testing.T) {
	t.Run("opaque labels", func(t *testing.T) {
		o := versions.NewOrderer("E", cands("alpha", "beta"))
		_, err := o.Compare("alpha", "beta")
		assert.True(t, errors.IsAmbiguousVersionOrder(err))
	})

	t.Run("textually different but equal", func(t *testing.T) {
		o := versions.NewOrderer("E", cands("1.0", "1.0.0"))
		_, err := o.Compare("1.0", "1.0.0")
		assert.True(t, errors.IsAmbiguousVersionOrder(err))
	})

	t.Run("leading zeros", func(t *testing.T) {
		o := versions.NewOrderer("E", cands("01", "1"))
		_, err := o.Compare("01", "1")
		assert.True(t, errors.IsAmbiguousVersionOrder(err))
	})

	t.Run("equal sequence hints", func(t *testing.T) {
		o := versions.NewOrderer("E", []versions.Candidate{
			{Version: "a", Sequence: seq(1)},
			{Version: "b", Sequence: seq(1)},
		})
		_, err := o.Compare("a", "b")
		assert.True(t, errors.IsAmbiguousVersionOrder(err))
	})
}

func TestSequenceOrdering(t *testing.T) {
	o := versions.NewOrderer("E", []versions.Candidate{
		{Version: "zeta", Sequence: seq(1)},
		{Version: "alpha", Sequence: seq(2)},
	})
	require.Equal(t, versions.SchemeSequence, o.Scheme())
	c, err := o.Compare("alpha", "zeta")
	require.NoError(t, err)
	assert.Equal(t, 1, c)
}

func TestSortAndNewest(t *testing.T) {
	vs := []string{"2", "1", "3"}
	o := versions.NewOrderer("E", cands(vs...))
	require.NoError(t, o.Sort(vs))
	assert.Equal(t, []string{"1", "2", "3"}, vs)

	newest, err := o.Newest([]string{"2", "10", "3"})
	require.NoError(t, err)
	assert.Equal(t, "10", newest)

	_, err = o.Newest(nil)
	assert.Error(t, err)

	opaque := []string{"b", "a"}
	err = versions.NewOrderer("E", cands(opaque...)).Sort(opaque)
	assert.True(t, errors.IsAmbiguousVersionOrder(err))
	assert.Equal(t, []string{"b", "a"}, opaque, "unsortable input keeps source order")
}
