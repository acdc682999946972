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

func TestDistributedDeviceCreate(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices", http.StatusOK,
		[]map[string]interface{}{{"name": "dev_src"}})
	f.stub("GET", "/vplex/v2/clusters/cluster-2/devices", http.StatusOK,
		[]map[string]interface{}{{"name": "dev_tgt"}})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices/dev_src", http.StatusOK,
		map[string]interface{}{"name": "dev_src", "top_level": true, "capacity": 1000})
	f.stub("GET", "/vplex/v2/clusters/cluster-2/devices/dev_tgt", http.StatusOK,
		map[string]interface{}{"name": "dev_tgt", "top_level": true, "capacity": 2000})
	f.stub("POST", "/vplex/v2/distributed_storage/distributed_devices", http.StatusCreated,
		map[string]interface{}{"name": "dd_1"})

	result, err := ReconcileDistributedDevice(f.api, DistributedDeviceSpec{
		Name:          "dd_1",
		SourceCluster: "cluster-1",
		SourceDevice:  "dev_src",
		TargetCluster: "cluster-2",
		TargetDevice:  "dev_tgt",
		State:         StatePresent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)

	var payload map[string]interface{}
	f.mutationBody("POST", "/distributed_devices", &payload)
	assert.Equal(t, "dd_1", payload["name"])
	assert.Equal(t, "/vplex/v2/clusters/cluster-1/devices/dev_src", payload["primary_leg"])
	assert.Equal(t, "/vplex/v2/clusters/cluster-2/devices/dev_tgt", payload["secondary_leg"])
	_, hasRuleSet := payload["rule_set"]
	assert.False(t, hasRuleSet)
}

func TestDistributedDeviceCreateSourceLargerRefused(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices", http.StatusOK,
		[]map[string]interface{}{})
	f.stub("GET", "/vplex/v2/clusters/cluster-2/devices", http.StatusOK,
		[]map[string]interface{}{})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices/dev_src", http.StatusOK,
		map[string]interface{}{"name": "dev_src", "top_level": true, "capacity": 3000})
	f.stub("GET", "/vplex/v2/clusters/cluster-2/devices/dev_tgt", http.StatusOK,
		map[string]interface{}{"name": "dev_tgt", "top_level": true, "capacity": 2000})

	_, err := ReconcileDistributedDevice(f.api, DistributedDeviceSpec{
		Name:          "dd_1",
		SourceCluster: "cluster-1",
		SourceDevice:  "dev_src",
		TargetCluster: "cluster-2",
		TargetDevice:  "dev_tgt",
		State:         StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
	assert.Empty(t, f.mutations())
}

func TestDistributedDeviceCreateSameClusterRefused(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices", http.StatusOK,
		[]map[string]interface{}{})
	f.stub("GET", "/vplex/v2/clusters/cluster-2/devices", http.StatusOK,
		[]map[string]interface{}{})

	_, err := ReconcileDistributedDevice(f.api, DistributedDeviceSpec{
		Name:          "dd_1",
		SourceCluster: "cluster-1",
		SourceDevice:  "dev_src",
		TargetCluster: "cluster-1",
		TargetDevice:  "dev_tgt",
		State:         StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.InvalidArgument, verrors.CodeOf(err))
}

func TestDistributedDeviceCreateLegCarriesVolumeRefused(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices", http.StatusOK,
		[]map[string]interface{}{})
	f.stub("GET", "/vplex/v2/clusters/cluster-2/devices", http.StatusOK,
		[]map[string]interface{}{})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices/dev_src", http.StatusOK,
		map[string]interface{}{"name": "dev_src", "top_level": true, "capacity": 1000,
			"virtual_volume": "/vplex/v2/clusters/cluster-1/virtual_volumes/vv_1"})

	_, err := ReconcileDistributedDevice(f.api, DistributedDeviceSpec{
		Name:          "dd_1",
		SourceCluster: "cluster-1",
		SourceDevice:  "dev_src",
		TargetCluster: "cluster-2",
		TargetDevice:  "dev_tgt",
		State:         StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
	assert.Contains(t, err.Error(), "vv_1")
}

func TestDistributedDeviceNameUsedByLocalDevice(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices", http.StatusOK,
		[]map[string]interface{}{{"name": "dd_1"}})

	_, err := ReconcileDistributedDevice(f.api, DistributedDeviceSpec{
		Name:          "dd_1",
		SourceCluster: "cluster-1",
		SourceDevice:  "dev_src",
		TargetCluster: "cluster-2",
		TargetDevice:  "dev_tgt",
		State:         StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.AlreadyExists, verrors.CodeOf(err))
}

func TestDistributedDeviceExistingLegMismatch(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_devices/dd_1", http.StatusOK,
		map[string]interface{}{"name": "dd_1"})
	f.stubFunc("GET", "/vplex/v2/maps", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"uri": "/vplex/v2/distributed_storage/distributed_devices/dd_1",
			"children": []string{
				"/vplex/v2/clusters/cluster-1/devices/dev_src",
				"/vplex/v2/clusters/cluster-2/devices/dev_other",
			},
		})
	})

	_, err := ReconcileDistributedDevice(f.api, DistributedDeviceSpec{
		Name:          "dd_1",
		SourceCluster: "cluster-1",
		SourceDevice:  "dev_src",
		TargetCluster: "cluster-2",
		TargetDevice:  "dev_tgt",
		State:         StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.AlreadyExists, verrors.CodeOf(err))
}

func TestDistributedDeviceRuleSetPatch(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_devices/dd_1", http.StatusOK,
		map[string]interface{}{"name": "dd_1", "rule_set_name": "cluster-1-detaches"})
	f.stub("GET", "/vplex/v2/distributed_storage/rule_sets", http.StatusOK,
		[]map[string]interface{}{{"name": "cluster-1-detaches"}, {"name": "cluster-2-detaches"}})
	f.stub("PATCH", "/vplex/v2/distributed_storage/distributed_devices/dd_1", http.StatusOK,
		map[string]interface{}{"name": "dd_1"})

	result, err := ReconcileDistributedDevice(f.api, DistributedDeviceSpec{
		Name:    "dd_1",
		RuleSet: "cluster-2-detaches",
		State:   StatePresent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)

	ops := patchOps(t, f.mutations()[0].Body)
	require.Len(t, ops, 1)
	assert.Equal(t, "replace", ops[0]["op"])
	assert.Equal(t, "/rule_set_name", ops[0]["path"])
	assert.Equal(t, "cluster-2-detaches", ops[0]["value"])
}

func TestDistributedDeviceRuleSetChangeRefusedInsideCG(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_devices/dd_1", http.StatusOK,
		map[string]interface{}{"name": "dd_1", "rule_set_name": "cluster-1-detaches",
			"virtual_volume": "/vplex/v2/distributed_storage/distributed_virtual_volumes/dvv_1"})
	f.stub("GET", "/vplex/v2/distributed_storage/rule_sets", http.StatusOK,
		[]map[string]interface{}{{"name": "cluster-1-detaches"}, {"name": "cluster-2-detaches"}})
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_virtual_volumes/dvv_1", http.StatusOK,
		map[string]interface{}{"name": "dvv_1",
			"consistency_group": "/vplex/v2/distributed_storage/distributed_consistency_groups/dcg_1"})

	_, err := ReconcileDistributedDevice(f.api, DistributedDeviceSpec{
		Name:    "dd_1",
		RuleSet: "cluster-2-detaches",
		State:   StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
	assert.Contains(t, err.Error(), "dcg_1")
}

func TestDistributedDeviceUnknownRuleSet(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_devices/dd_1", http.StatusOK,
		map[string]interface{}{"name": "dd_1", "rule_set_name": "cluster-1-detaches"})
	f.stub("GET", "/vplex/v2/distributed_storage/rule_sets", http.StatusOK,
		[]map[string]interface{}{{"name": "cluster-1-detaches"}})

	_, err := ReconcileDistributedDevice(f.api, DistributedDeviceSpec{
		Name:    "dd_1",
		RuleSet: "no-such-rule-set",
		State:   StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.InvalidArgument, verrors.CodeOf(err))
}

func TestDistributedDeviceDeleteRefusedWithVolume(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_devices/dd_1", http.StatusOK,
		map[string]interface{}{"name": "dd_1",
			"virtual_volume": "/vplex/v2/distributed_storage/distributed_virtual_volumes/dvv_1"})

	_, err := ReconcileDistributedDevice(f.api, DistributedDeviceSpec{
		Name:  "dd_1",
		State: StateAbsent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
	assert.Contains(t, err.Error(), "dvv_1")
	assert.Empty(t, f.mutations())
}

func TestDistributedDeviceDeleteAbsentNoop(t *testing.T) {
	f := newFakeVplex(t)

	result, err := ReconcileDistributedDevice(f.api, DistributedDeviceSpec{
		Name:  "dd_1",
		State: StateAbsent,
	})
	require.Nil(t, err)
	assert.False(t, result.Changed)
	assert.Empty(t, f.mutations())
}

func TestDistributedDeviceCreateWithSync(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices", http.StatusOK,
		[]map[string]interface{}{})
	f.stub("GET", "/vplex/v2/clusters/cluster-2/devices", http.StatusOK,
		[]map[string]interface{}{})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices/dev_src", http.StatusOK,
		map[string]interface{}{"name": "dev_src", "top_level": true, "capacity": 1000})
	f.stub("GET", "/vplex/v2/clusters/cluster-2/devices/dev_tgt", http.StatusOK,
		map[string]interface{}{"name": "dev_tgt", "top_level": true, "capacity": 1000})
	f.stub("GET", "/vplex/v2/distributed_storage/rule_sets", http.StatusOK,
		[]map[string]interface{}{{"name": "cluster-1-detaches"}})
	f.stub("POST", "/vplex/v2/distributed_storage/distributed_devices", http.StatusCreated,
		map[string]interface{}{"name": "dd_1"})

	sync := true
	_, err := ReconcileDistributedDevice(f.api, DistributedDeviceSpec{
		Name:          "dd_1",
		SourceCluster: "cluster-1",
		SourceDevice:  "dev_src",
		TargetCluster: "cluster-2",
		TargetDevice:  "dev_tgt",
		RuleSet:       "cluster-1-detaches",
		Sync:          &sync,
		State:         StatePresent,
	})
	require.Nil(t, err)

	mutations := f.mutations()
	require.Len(t, mutations, 1)
	var payload map[string]interface{}
	require.Nil(t, json.Unmarshal(mutations[0].Body, &payload))
	assert.Equal(t, "/vplex/v2/distributed_storage/rule_sets/cluster-1-detaches", payload["rule_set"])
	assert.Equal(t, true, payload["sync"])
}
