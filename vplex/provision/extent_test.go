// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

func TestExtentCreateRenamesApplianceChoice(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/clusters/cluster-1/extents", http.StatusOK,
		[]map[string]interface{}{{"name": "other_extent"}})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/storage_volumes/sv_1", http.StatusOK,
		map[string]interface{}{"name": "sv_1", "use": "claimed"})
	f.stub("POST", "/vplex/v2/clusters/cluster-1/extents", http.StatusCreated,
		map[string]interface{}{"name": "extent_sv_1_1"})
	f.stub("PATCH", "/vplex/v2/clusters/cluster-1/extents/extent_sv_1_1", http.StatusOK,
		map[string]interface{}{"name": "my_extent"})

	result, err := ReconcileExtent(f.api, ExtentSpec{
		Cluster:       "cluster-1",
		Name:          "my_extent",
		StorageVolume: "sv_1",
		State:         StatePresent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)

	mutations := f.mutations()
	require.Len(t, mutations, 2)

	var payload map[string]interface{}
	require.Nil(t, json.Unmarshal(mutations[0].Body, &payload))
	assert.Equal(t, "/vplex/v2/clusters/cluster-1/storage_volumes/sv_1", payload["storage_volume"])

	ops := patchOps(t, mutations[1].Body)
	require.Len(t, ops, 1)
	assert.Equal(t, "/name", ops[0]["path"])
	assert.Equal(t, "my_extent", ops[0]["value"])
}

func TestExtentCreateNeedsClaimedVolume(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/clusters/cluster-1/extents", http.StatusOK,
		[]map[string]interface{}{})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/storage_volumes/sv_1", http.StatusOK,
		map[string]interface{}{"name": "sv_1", "use": "unclaimed"})

	_, err := ReconcileExtent(f.api, ExtentSpec{
		Cluster:       "cluster-1",
		Name:          "my_extent",
		StorageVolume: "sv_1",
		State:         StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
	assert.Empty(t, f.mutations())
}

func TestExtentCreateAndRenameRefused(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/clusters/cluster-1/extents", http.StatusOK,
		[]map[string]interface{}{})

	_, err := ReconcileExtent(f.api, ExtentSpec{
		Cluster:       "cluster-1",
		Name:          "my_extent",
		NewName:       "my_extent_renamed",
		StorageVolume: "sv_1",
		State:         StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
}

func TestExtentDeleteRefusedWhileUsed(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/clusters/cluster-1/extents", http.StatusOK,
		[]map[string]interface{}{{"name": "my_extent"}})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/extents/my_extent", http.StatusOK,
		map[string]interface{}{"name": "my_extent", "use": "used", "used_by": []string{"device_1"}})

	_, err := ReconcileExtent(f.api, ExtentSpec{
		Cluster: "cluster-1",
		Name:    "my_extent",
		State:   StateAbsent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
	assert.Empty(t, f.mutations())
}

func TestExtentDeleteAbsentIsNoop(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/clusters/cluster-1/extents", http.StatusOK,
		[]map[string]interface{}{})

	result, err := ReconcileExtent(f.api, ExtentSpec{
		Cluster: "cluster-1",
		Name:    "my_extent",
		State:   StateAbsent,
	})
	require.Nil(t, err)
	assert.False(t, result.Changed)
}
