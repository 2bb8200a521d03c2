package provenance_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/provenance"
)

var orders = catalogs.Key{Kind: catalogs.KindService, ID: "Orders"}

func TestTracker(t *testing.T) {
	tr := provenance.NewTracker(true)
	tr.TrackFields(orders, catalogs.Fields{"name": "Orders", "schemaPath": "openapi.yaml"},
		provenance.Provenance{Source: "manifest", Version: "1", Action: "create"})
	tr.Track(orders, "name", provenance.Provenance{Source: "manifest", Version: "2", Value: "Order Service", Action: "supersede"})

	name := tr.FindByField(orders, "name")
	require.Len(t, name, 2)
	assert.Equal(t, "Orders", name[0].Value)
	assert.False(t, name[0].Timestamp.IsZero())

	fields := tr.FindByEntity(orders)
	assert.Len(t, fields, 2)
	assert.Contains(t, fields, "schemaPath")

	m := tr.Map()
	assert.Len(t, m, 2)
	tr.Clear()
	assert.Empty(t, tr.Map())
	assert.Len(t, m, 2, "map is a copy")
}

func TestDisabledTracker(t *testing.T) {
	tr := provenance.NewTracker(false)
	tr.Track(orders, "name", provenance.Provenance{Source: "manifest"})
	assert.Nil(t, tr.FindByField(orders, "name"))
	assert.Nil(t, tr.Map())
}

func TestTrackerConcurrent(t *testing.T) {
	tr := provenance.NewTracker(true)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Track(orders, "name", provenance.Provenance{Source: "manifest"})
		}()
	}
	wg.Wait()
	assert.Len(t, tr.FindByField(orders, "name"), 20)
}

func TestReport(t *testing.T) {
	now := time.Now()
	m := provenance.Map{
		"service:Orders:name": {
			{Source: "manifest", Version: "1", Value: "Orders", Timestamp: now.Add(-time.Hour)},
			{Source: "manifest", Version: "2", Value: "Order Service", Timestamp: now},
		},
		"malformed": {{Source: "x"}},
	}
	r := provenance.GenerateReport(m)
	require.Len(t, r.Entities, 1)
	f := r.Entities["service:Orders"].Fields["name"]
	assert.Equal(t, "2", f.Current.Version)
	assert.Contains(t, r.String(), "name: Order Service (from manifest@2")
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "provenance.yaml")

	pf, err := provenance.Load(path)
	require.NoError(t, err)
	assert.Nil(t, pf)

	entry := provenance.Provenance{Source: "manifest", Version: "1", Action: "create", Timestamp: time.Now().UTC()}
	require.NoError(t, provenance.Save(path, provenance.Map{"service:Orders:name": {entry}}))
	require.NoError(t, provenance.Save(path, provenance.Map{"service:Orders:name": {entry}}))

	pf, err = provenance.Load(path)
	require.NoError(t, err)
	require.NotNil(t, pf)
	assert.Len(t, pf.Provenance["service:Orders:name"], 2)
}
