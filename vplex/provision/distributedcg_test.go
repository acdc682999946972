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

func TestDistributedCGCreateWithDetachRule(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_consistency_groups", http.StatusOK,
		[]map[string]interface{}{})
	f.stub("POST", "/vplex/v2/distributed_storage/distributed_consistency_groups", http.StatusCreated,
		map[string]interface{}{"name": "dcg_1"})
	f.stub("PATCH", "/vplex/v2/distributed_storage/distributed_consistency_groups/dcg_1", http.StatusOK,
		map[string]interface{}{"name": "dcg_1"})

	result, err := ReconcileDistributedCG(f.api, DistributedCGSpec{
		Name:              "dcg_1",
		DetachRuleType:    DetachRuleWinner,
		DetachRuleCluster: "cluster-1",
		DetachRuleDelay:   5,
		State:             StatePresent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)

	mutations := f.mutations()
	require.Len(t, mutations, 2)

	var payload map[string]interface{}
	require.Nil(t, json.Unmarshal(mutations[0].Body, &payload))
	assert.Equal(t, "dcg_1", payload["name"])

	ops := patchOps(t, mutations[1].Body)
	require.Len(t, ops, 1)
	assert.Equal(t, "replace", ops[0]["op"])
	assert.Equal(t, "/detach_rule", ops[0]["path"])
	rule := ops[0]["value"].(map[string]interface{})
	assert.Equal(t, "winner", rule["type"])
	assert.Equal(t, "/vplex/v2/clusters/cluster-1", rule["cluster"])
	assert.Equal(t, float64(5), rule["delay"])
}

func TestDistributedCGMutationRefusedWhileDegraded(t *testing.T) {
	f := newFakeVplex(t)
	f.degradedClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_consistency_groups", http.StatusOK,
		[]map[string]interface{}{})

	_, err := ReconcileDistributedCG(f.api, DistributedCGSpec{
		Name:  "dcg_1",
		State: StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
	assert.Contains(t, err.Error(), "cluster-2")
	assert.Empty(t, f.mutations())
}

func TestDistributedCGReadSucceedsWhileDegraded(t *testing.T) {
	f := newFakeVplex(t)
	f.degradedClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_consistency_groups", http.StatusOK,
		[]map[string]interface{}{{"name": "dcg_1"}})
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_consistency_groups/dcg_1", http.StatusOK,
		map[string]interface{}{"name": "dcg_1"})

	// No mutation is requested, so the link health gate never fires.
	result, err := ReconcileDistributedCG(f.api, DistributedCGSpec{
		Name:  "dcg_1",
		State: StatePresent,
	})
	require.Nil(t, err)
	assert.False(t, result.Changed)
}

func TestDistributedCGDetachRuleIdempotent(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_consistency_groups", http.StatusOK,
		[]map[string]interface{}{{"name": "dcg_1"}})
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_consistency_groups/dcg_1", http.StatusOK,
		map[string]interface{}{
			"name": "dcg_1",
			"detach_rule": map[string]interface{}{
				"type":    "winner",
				"cluster": "/vplex/v2/clusters/cluster-1",
				"delay":   5,
			},
		})

	result, err := ReconcileDistributedCG(f.api, DistributedCGSpec{
		Name:              "dcg_1",
		DetachRuleType:    DetachRuleWinner,
		DetachRuleCluster: "cluster-1",
		DetachRuleDelay:   5,
		State:             StatePresent,
	})
	require.Nil(t, err)
	assert.False(t, result.Changed)
	assert.Empty(t, f.mutations())
}

func TestDistributedCGWinnerRuleRequiresCluster(t *testing.T) {
	f := newFakeVplex(t)

	_, err := ReconcileDistributedCG(f.api, DistributedCGSpec{
		Name:           "dcg_1",
		DetachRuleType: DetachRuleWinner,
		State:          StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.InvalidArgument, verrors.CodeOf(err))
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.calls)
}

func TestDistributedCGRenameCollidesWithLocalGroup(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_consistency_groups", http.StatusOK,
		[]map[string]interface{}{{"name": "dcg_1"}})
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_consistency_groups/dcg_1", http.StatusOK,
		map[string]interface{}{"name": "dcg_1"})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/consistency_groups", http.StatusOK,
		[]map[string]interface{}{{"name": "cg_taken"}})
	f.stub("GET", "/vplex/v2/clusters/cluster-2/consistency_groups", http.StatusOK,
		[]map[string]interface{}{})

	_, err := ReconcileDistributedCG(f.api, DistributedCGSpec{
		Name:    "dcg_1",
		NewName: "cg_taken",
		State:   StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.AlreadyExists, verrors.CodeOf(err))
	assert.Contains(t, err.Error(), "cluster-1")
}

func TestDistributedCGAddDistributedVolume(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_consistency_groups", http.StatusOK,
		[]map[string]interface{}{{"name": "dcg_1"}})
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_consistency_groups/dcg_1", http.StatusOK,
		map[string]interface{}{"name": "dcg_1"})
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_virtual_volumes/dvv_1", http.StatusOK,
		map[string]interface{}{"name": "dvv_1"})
	f.stub("PATCH", "/vplex/v2/distributed_storage/distributed_consistency_groups/dcg_1", http.StatusOK,
		map[string]interface{}{"name": "dcg_1"})

	result, err := ReconcileDistributedCG(f.api, DistributedCGSpec{
		Name:               "dcg_1",
		VirtualVolumes:     []string{"dvv_1"},
		VirtualVolumeState: VolumePresentInCG,
		State:              StatePresent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)

	ops := patchOps(t, f.mutations()[0].Body)
	require.Len(t, ops, 1)
	assert.Equal(t, "add", ops[0]["op"])
	assert.Equal(t, "/virtual_volumes", ops[0]["path"])
	assert.Equal(t, "/vplex/v2/distributed_storage/distributed_virtual_volumes/dvv_1", ops[0]["value"])
}

func TestDistributedCGDeleteRefusedWithMembers(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_consistency_groups", http.StatusOK,
		[]map[string]interface{}{{"name": "dcg_1"}})
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_consistency_groups/dcg_1", http.StatusOK,
		map[string]interface{}{
			"name": "dcg_1",
			"virtual_volumes": []string{
				"/vplex/v2/distributed_storage/distributed_virtual_volumes/dvv_1",
			},
		})

	_, err := ReconcileDistributedCG(f.api, DistributedCGSpec{
		Name:  "dcg_1",
		State: StateAbsent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
	assert.Empty(t, f.mutations())
}
