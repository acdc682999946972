// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

func TestBuildFiltersOperators(t *testing.T) {
	filters, err := BuildFilters([]Filter{
		{Key: "capacity", Operator: FilterGreater, Value: "1000"},
		{Key: "use", Operator: FilterEqual, Value: "claimed"},
		{Key: "thin_capable", Operator: FilterEqual, Value: "True"},
	})
	require.Nil(t, err)
	assert.Equal(t, "gt~1000", filters["capacity"])
	assert.Equal(t, "claimed", filters["use"])
	assert.Equal(t, "True", filters["thin_capable"])
}

func TestBuildFiltersSizeLiteral(t *testing.T) {
	filters, err := BuildFilters([]Filter{
		{Key: "capacity", Operator: FilterGreaterEqual, Value: "2GB"},
	})
	require.Nil(t, err)
	assert.Equal(t, "gte~2147483648", filters["capacity"])

	filters, err = BuildFilters([]Filter{
		{Key: "capacity", Operator: FilterLesserEqual, Value: "1TB"},
	})
	require.Nil(t, err)
	assert.Equal(t, "lte~1099511627776", filters["capacity"])
}

func TestBuildFiltersRepeatedKeyJoins(t *testing.T) {
	filters, err := BuildFilters([]Filter{
		{Key: "use", Operator: FilterEqual, Value: "claimed"},
		{Key: "use", Operator: FilterEqual, Value: "used"},
	})
	require.Nil(t, err)
	assert.Equal(t, "claimed,used", filters["use"])
}

func TestBuildFiltersNumericEqualityReplaces(t *testing.T) {
	filters, err := BuildFilters([]Filter{
		{Key: "limit", Operator: FilterEqual, Value: "10"},
		{Key: "limit", Operator: FilterEqual, Value: "20"},
		{Key: "offset", Operator: FilterEqual, Value: "0"},
	})
	require.Nil(t, err)
	assert.Equal(t, "20", filters["limit"])
	assert.Equal(t, "0", filters["offset"])
}

func TestBuildFiltersLimitWithoutOffset(t *testing.T) {
	_, err := BuildFilters([]Filter{
		{Key: "limit", Operator: FilterEqual, Value: "10"},
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.InvalidArgument, verrors.CodeOf(err))
}

func TestBuildFiltersUnknownOperator(t *testing.T) {
	_, err := BuildFilters([]Filter{
		{Key: "capacity", Operator: "between", Value: "10"},
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.InvalidArgument, verrors.CodeOf(err))
}

func TestBuildFiltersIncompleteTriple(t *testing.T) {
	_, err := BuildFilters([]Filter{
		{Key: "capacity", Operator: FilterEqual},
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.InvalidArgument, verrors.CodeOf(err))
}

func TestGatherFactsClusterScopedWithoutCluster(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1", "cluster-2")

	facts, err := GatherFacts(f.api, GatherFactsSpec{
		Subsets: []string{SubsetStorageVolume},
	})
	require.Nil(t, err)
	assert.Equal(t, []string{"cluster-1", "cluster-2"}, facts.Clusters)
	assert.Empty(t, facts.StorageVolumes)
}

func TestGatherFactsSubsets(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1")
	f.stub("GET", "/vplex/v2/clusters/cluster-1/storage_volumes", http.StatusOK,
		[]map[string]interface{}{{"name": "sv_1"}, {"name": "sv_2"}})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/exports/initiator_ports", http.StatusOK,
		[]map[string]interface{}{{"name": "host_1", "type": "default"}, {"name": "UNREGISTERED-0x01"}})
	f.stub("GET", "/vplex/v2/distributed_storage/distributed_devices", http.StatusOK,
		[]map[string]interface{}{{"name": "dd_1"}})

	facts, err := GatherFacts(f.api, GatherFactsSpec{
		Cluster: "cluster-1",
		Subsets: []string{SubsetStorageVolume, SubsetInitiator, SubsetDistributedDev},
	})
	require.Nil(t, err)
	assert.Equal(t, []string{"sv_1", "sv_2"}, facts.StorageVolumes)
	require.Len(t, facts.Initiators, 2)
	assert.Equal(t, InitiatorFact{Name: "host_1", Type: "default"}, facts.Initiators[0])
	assert.Equal(t, []string{"dd_1"}, facts.DistributedDevices)
	assert.Empty(t, f.mutations())
}

func TestGatherFactsAMPVersionGate(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1")
	f.stub("GET", "/vplex/v2", http.StatusOK,
		map[string]interface{}{"product_version": "7.0.1", "product_family": "VPLEX"})

	// Release 7 appliances do not serve providers, the subset is skipped
	// instead of failing the whole report.
	facts, err := GatherFacts(f.api, GatherFactsSpec{
		Cluster: "cluster-1",
		Subsets: []string{SubsetAMP},
	})
	require.Nil(t, err)
	assert.Empty(t, facts.ArrayManagementProviders)
}

func TestGatherFactsUnknownSubset(t *testing.T) {
	f := newFakeVplex(t)
	f.healthyClusters("cluster-1")

	_, err := GatherFacts(f.api, GatherFactsSpec{
		Cluster: "cluster-1",
		Subsets: []string{"everything"},
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.InvalidArgument, verrors.CodeOf(err))
}
