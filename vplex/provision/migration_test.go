// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

func TestMigrationCreateExtentJobDefaultsTransferSize(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/data_migrations/extent_migrations/mig_1", http.StatusNotFound, nil)
	f.stub("GET", "/vplex/v2/clusters/cluster-1/extents/ext_src", http.StatusOK,
		map[string]interface{}{"name": "ext_src", "use": "used", "capacity": 1024})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/extents/ext_tgt", http.StatusOK,
		map[string]interface{}{"name": "ext_tgt", "use": "claimed", "capacity": 2048})
	f.stub("POST", "/vplex/v2/data_migrations/extent_migrations", http.StatusCreated,
		map[string]interface{}{"name": "mig_1", "status": "queued"})

	result, err := ReconcileMigration(f.api, MigrationSpec{
		Name:    "mig_1",
		JobType: client.MigrationTypeExtent,
		Cluster: "cluster-1",
		Source:  "ext_src",
		Target:  "ext_tgt",
		State:   StatePresent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)

	var payload map[string]interface{}
	f.mutationBody("POST", "/extent_migrations", &payload)
	assert.Equal(t, "mig_1", payload["name"])
	assert.Equal(t, "/vplex/v2/clusters/cluster-1/extents/ext_src", payload["source"])
	assert.Equal(t, "/vplex/v2/clusters/cluster-1/extents/ext_tgt", payload["target"])
	assert.Equal(t, false, payload["paused"])
	assert.Equal(t, float64(131072), payload["transfer_size"])
}

func TestMigrationCreatePausedWhenStatusPause(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/data_migrations/device_migrations/mig_1", http.StatusNotFound, nil)
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices/dev_src", http.StatusOK,
		map[string]interface{}{"name": "dev_src", "capacity": 1024,
			"virtual_volume": "/vplex/v2/clusters/cluster-1/virtual_volumes/vv_1"})
	f.stub("GET", "/vplex/v2/clusters/cluster-2/devices/dev_tgt", http.StatusOK,
		map[string]interface{}{"name": "dev_tgt", "capacity": 2048})
	f.stub("POST", "/vplex/v2/data_migrations/device_migrations", http.StatusCreated,
		map[string]interface{}{"name": "mig_1", "status": "paused"})

	_, err := ReconcileMigration(f.api, MigrationSpec{
		Name:          "mig_1",
		JobType:       client.MigrationTypeDevice,
		Cluster:       "cluster-1",
		TargetCluster: "cluster-2",
		Source:        "dev_src",
		Target:        "dev_tgt",
		Status:        MigrationPause,
		State:         StatePresent,
	})
	require.Nil(t, err)

	var payload map[string]interface{}
	f.mutationBody("POST", "/device_migrations", &payload)
	assert.Equal(t, true, payload["paused"])
	_, hasTransferSize := payload["transfer_size"]
	assert.False(t, hasTransferSize)
}

func TestMigrationDeviceSourceMustCarryVolume(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/data_migrations/device_migrations/mig_1", http.StatusNotFound, nil)
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices/dev_src", http.StatusOK,
		map[string]interface{}{"name": "dev_src", "capacity": 1024})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/devices/dev_tgt", http.StatusOK,
		map[string]interface{}{"name": "dev_tgt", "capacity": 2048})

	_, err := ReconcileMigration(f.api, MigrationSpec{
		Name:    "mig_1",
		JobType: client.MigrationTypeDevice,
		Cluster: "cluster-1",
		Source:  "dev_src",
		Target:  "dev_tgt",
		State:   StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
	assert.Empty(t, f.mutations())
}

func TestMigrationCommitFromQueuedRefused(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/data_migrations/device_migrations/mig_1", http.StatusOK,
		map[string]interface{}{"name": "mig_1", "status": "queued"})

	_, err := ReconcileMigration(f.api, MigrationSpec{
		Name:    "mig_1",
		JobType: client.MigrationTypeDevice,
		Status:  MigrationCommit,
		State:   StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
}

func TestMigrationCancelFromPaused(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/data_migrations/device_migrations/mig_1", http.StatusOK,
		map[string]interface{}{"name": "mig_1", "status": "paused"})
	f.stub("PATCH", "/vplex/v2/data_migrations/device_migrations/mig_1", http.StatusOK,
		map[string]interface{}{"name": "mig_1", "status": "cancelled"})

	result, err := ReconcileMigration(f.api, MigrationSpec{
		Name:    "mig_1",
		JobType: client.MigrationTypeDevice,
		Status:  MigrationCancel,
		State:   StatePresent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)

	require.Len(t, f.mutations(), 1)
	ops := patchOps(t, f.mutations()[0].Body)
	require.Len(t, ops, 1)
	assert.Equal(t, "/status", ops[0]["path"])
	assert.Equal(t, "cancel", ops[0]["value"])
}

func TestMigrationStatusIdempotent(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/data_migrations/device_migrations/mig_1", http.StatusOK,
		map[string]interface{}{"name": "mig_1", "status": "committed"})

	result, err := ReconcileMigration(f.api, MigrationSpec{
		Name:    "mig_1",
		JobType: client.MigrationTypeDevice,
		Status:  MigrationCommit,
		State:   StatePresent,
	})
	require.Nil(t, err)
	assert.False(t, result.Changed)
	assert.Empty(t, f.mutations())
}

func TestMigrationDeleteOnlyFromTerminalStates(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/data_migrations/device_migrations/mig_1", http.StatusOK,
		map[string]interface{}{"name": "mig_1", "status": "in-progress"})

	_, err := ReconcileMigration(f.api, MigrationSpec{
		Name:    "mig_1",
		JobType: client.MigrationTypeDevice,
		State:   StateAbsent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
	assert.Contains(t, err.Error(), "cancelled or committed")
}

func TestMigrationDeleteCancelledJob(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/data_migrations/extent_migrations/mig_1", http.StatusOK,
		map[string]interface{}{"name": "mig_1", "status": "cancelled"})
	f.stub("DELETE", "/vplex/v2/data_migrations/extent_migrations/mig_1", http.StatusNoContent, nil)

	result, err := ReconcileMigration(f.api, MigrationSpec{
		Name:    "mig_1",
		JobType: client.MigrationTypeExtent,
		State:   StateAbsent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)
}

func TestMigrationExistingJobEndpointMismatch(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/data_migrations/device_migrations/mig_1", http.StatusOK,
		map[string]interface{}{
			"name":   "mig_1",
			"status": "queued",
			"source": "/vplex/v2/clusters/cluster-1/devices/dev_other",
			"target": "/vplex/v2/clusters/cluster-1/devices/dev_tgt",
		})

	_, err := ReconcileMigration(f.api, MigrationSpec{
		Name:    "mig_1",
		JobType: client.MigrationTypeDevice,
		Cluster: "cluster-1",
		Source:  "dev_src",
		Target:  "dev_tgt",
		State:   StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.AlreadyExists, verrors.CodeOf(err))
}

func TestMigrationTransferSizeBounds(t *testing.T) {
	f := newFakeVplex(t)
	for _, size := range []int64{40959, 40961, 134217729} {
		_, err := ReconcileMigration(f.api, MigrationSpec{
			Name:         "mig_1",
			JobType:      client.MigrationTypeDevice,
			TransferSize: size,
			State:        StatePresent,
		})
		require.NotNil(t, err, "size %d must be rejected", size)
		assert.Equal(t, verrors.OutOfRange, verrors.CodeOf(err))
	}
	assert.Empty(t, f.mutations())
}

func TestMigrationTransferSizePatch(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/data_migrations/device_migrations/mig_1", http.StatusOK,
		map[string]interface{}{"name": "mig_1", "status": "paused", "transfer_size": 131072})
	f.stub("PATCH", "/vplex/v2/data_migrations/device_migrations/mig_1", http.StatusOK,
		map[string]interface{}{"name": "mig_1", "status": "paused", "transfer_size": 262144})

	result, err := ReconcileMigration(f.api, MigrationSpec{
		Name:         "mig_1",
		JobType:      client.MigrationTypeDevice,
		TransferSize: 262144,
		State:        StatePresent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)

	ops := patchOps(t, f.mutations()[0].Body)
	require.Len(t, ops, 1)
	assert.Equal(t, "/transfer_size", ops[0]["path"])
	assert.Equal(t, float64(262144), ops[0]["value"])
}

func TestMigrationCreateRequiresEndpoints(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("GET", "/vplex/v2/data_migrations/device_migrations/mig_1", http.StatusNotFound, nil)

	_, err := ReconcileMigration(f.api, MigrationSpec{
		Name:    "mig_1",
		JobType: client.MigrationTypeDevice,
		State:   StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.NotFound, verrors.CodeOf(err))
}

// Guards against the allow-list drifting from the documented state machine.
func TestMigrationStateMachineTable(t *testing.T) {
	assert.True(t, migrationStateAllows("paused", MigrationResume))
	assert.True(t, migrationStateAllows("complete", MigrationCommit))
	assert.True(t, migrationStateAllows("error", MigrationCancel))
	assert.False(t, migrationStateAllows("committed", MigrationCancel))
	assert.False(t, migrationStateAllows("queued", MigrationCommit))
	assert.False(t, migrationStateAllows("partially-committed", MigrationCancel))
}
