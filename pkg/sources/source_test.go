package sources_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/sources"
)

type stubSource struct {
	id      sources.ID
	revs    []catalogs.Revision
	err     error
	cleaned bool
}

func (s *stubSource) ID() sources.ID { return s.id }

func (s *stubSource) Fetch(context.Context) ([]catalogs.Revision, error) {
	return s.revs, s.err
}

func (s *stubSource) Cleanup() error {
	s.cleaned = true
	return nil
}

func TestCollect(t *testing.T) {
	a := &stubSource{id: "a", revs: []catalogs.Revision{
		{ID: "Sales", Kind: catalogs.KindDomain, Version: "1"},
		{ID: "Orders", Kind: catalogs.KindService, Version: "1", Source: "generator"},
	}}
	b := &stubSource{id: "b", revs: []catalogs.Revision{
		{ID: "orders", Kind: catalogs.KindChannel, Version: "1"},
	}}

	revs, err := sources.Collect(context.Background(), a, b)
	require.NoError(t, err)
	require.Len(t, revs, 3)
	assert.Equal(t, "a", revs[0].Source)
	assert.Equal(t, "generator", revs[1].Source)
	assert.Equal(t, "b", revs[2].Source)
	assert.True(t, a.cleaned)
	assert.True(t, b.cleaned)
}

func TestCollectError(t *testing.T) {
	ok := &stubSource{id: "ok"}
	bad := &stubSource{id: "bad", err: errors.New("registry unavailable")}

	_, err := sources.Collect(context.Background(), ok, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source bad")
	assert.True(t, ok.cleaned)
	assert.True(t, bad.cleaned)
}

func TestSources(t *testing.T) {
	s := sources.NewSources(&stubSource{id: "b"}, &stubSource{id: "a"})
	assert.Equal(t, 2, s.Len())

	s.Set(&stubSource{id: "c"})
	got, ok := s.Get("c")
	require.True(t, ok)
	assert.Equal(t, sources.ID("c"), got.ID())

	s.Delete("b")
	var ids []sources.ID
	for _, src := range s.List() {
		ids = append(ids, src.ID())
	}
	assert.Equal(t, []sources.ID{"a", "c"}, ids)
}
