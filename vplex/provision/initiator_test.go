// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

func TestInitiatorRegister(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("POST", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/rediscover", http.StatusOK,
		[]map[string]interface{}{
			{"name": "UNREGISTERED-0x10000000c9b94321", "port_wwn": "0x10000000c9b94321"},
		})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_1", http.StatusNotFound, nil)
	f.stub("GET", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/UNREGISTERED-0x10000000c9b94321",
		http.StatusOK, map[string]interface{}{
			"name":     "UNREGISTERED-0x10000000c9b94321",
			"port_wwn": "0x10000000c9b94321",
		})
	f.stub("POST", "/vplex/v2/clusters/cluster-1/exports/initiator_ports", http.StatusCreated,
		map[string]interface{}{"name": "host_1", "type": "default"})

	registered := true
	result, err := ReconcileInitiator(f.api, InitiatorSpec{
		Cluster:    "cluster-1",
		Name:       "host_1",
		PortWwn:    "0x10000000c9b94321",
		Registered: &registered,
		State:      StatePresent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)

	var payload map[string]interface{}
	f.mutationBody("POST", "/exports/initiator_ports", &payload)
	assert.Equal(t, "host_1", payload["port_name"])
	assert.Equal(t, "0x10000000c9b94321", payload["port_wwn"])
	assert.Equal(t, "default", payload["type"])
}

func TestInitiatorRegisterIdempotent(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("POST", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/rediscover", http.StatusOK,
		[]map[string]interface{}{
			{"name": "host_1", "port_wwn": "0x10000000c9b94321", "type": "default"},
		})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_1", http.StatusOK,
		map[string]interface{}{
			"name":     "host_1",
			"port_wwn": "0x10000000c9b94321",
			"type":     "default",
		})

	registered := true
	result, err := ReconcileInitiator(f.api, InitiatorSpec{
		Cluster:    "cluster-1",
		Name:       "host_1",
		PortWwn:    "0x10000000c9b94321",
		Registered: &registered,
		State:      StatePresent,
	})
	require.Nil(t, err)
	assert.False(t, result.Changed)
	f.assertOnlyRediscover()
}

// assertOnlyRediscover allows the forced discovery POST but nothing else.
func (f *fakeVplex) assertOnlyRediscover() {
	f.t.Helper()
	for _, call := range f.mutations() {
		if call.Path != "/vplex/v2/clusters/cluster-1/exports/initiator_ports/rediscover" {
			f.t.Fatalf("unexpected mutation %s %s", call.Method, call.Path)
		}
	}
}

func TestInitiatorRegisterAndRenameRefused(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("POST", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/rediscover", http.StatusOK,
		[]map[string]interface{}{})

	registered := true
	_, err := ReconcileInitiator(f.api, InitiatorSpec{
		Cluster:    "cluster-1",
		Name:       "host_1",
		NewName:    "host_renamed",
		PortWwn:    "0x10000000c9b94321",
		Registered: &registered,
		State:      StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.FailedPrecondition, verrors.CodeOf(err))
	f.assertOnlyRediscover()
}

func TestInitiatorRegisterAddressOwnedByOtherName(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("POST", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/rediscover", http.StatusOK,
		[]map[string]interface{}{
			{"name": "host_other", "port_wwn": "0x10000000c9b94321", "type": "default"},
		})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_1", http.StatusNotFound, nil)
	f.stub("GET", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_other", http.StatusOK,
		map[string]interface{}{
			"name":     "host_other",
			"port_wwn": "0x10000000c9b94321",
			"type":     "default",
		})

	registered := true
	_, err := ReconcileInitiator(f.api, InitiatorSpec{
		Cluster:    "cluster-1",
		Name:       "host_1",
		PortWwn:    "0x10000000c9b94321",
		Registered: &registered,
		State:      StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.AlreadyExists, verrors.CodeOf(err))
	assert.Contains(t, err.Error(), "host_other")
}

func TestInitiatorRegisterBothAddressesRefused(t *testing.T) {
	f := newFakeVplex(t)

	registered := true
	_, err := ReconcileInitiator(f.api, InitiatorSpec{
		Cluster:    "cluster-1",
		Name:       "host_1",
		PortWwn:    "0x10000000c9b94321",
		IscsiName:  "iqn.1998-01.com.example:host1",
		Registered: &registered,
		State:      StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.InvalidArgument, verrors.CodeOf(err))
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.calls)
}

func TestInitiatorUnregister(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("POST", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/rediscover", http.StatusOK,
		[]map[string]interface{}{
			{"name": "host_1", "port_wwn": "0x10000000c9b94321", "type": "default"},
		})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_1", http.StatusOK,
		map[string]interface{}{"name": "host_1", "type": "default"})
	f.stub("POST", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_1/unregister",
		http.StatusOK, nil)

	registered := false
	result, err := ReconcileInitiator(f.api, InitiatorSpec{
		Cluster:    "cluster-1",
		Name:       "host_1",
		Registered: &registered,
		State:      StatePresent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)

	var unregistered bool
	for _, call := range f.mutations() {
		if call.Path == "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_1/unregister" {
			unregistered = true
		}
	}
	assert.True(t, unregistered)
}

func TestInitiatorUnregisterIdempotent(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("POST", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/rediscover", http.StatusOK,
		[]map[string]interface{}{
			{"name": "host_1", "port_wwn": "0x10000000c9b94321"},
		})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_1", http.StatusOK,
		map[string]interface{}{"name": "host_1"})

	registered := false
	result, err := ReconcileInitiator(f.api, InitiatorSpec{
		Cluster:    "cluster-1",
		Name:       "host_1",
		Registered: &registered,
		State:      StatePresent,
	})
	require.Nil(t, err)
	assert.False(t, result.Changed)
	f.assertOnlyRediscover()
}

func TestInitiatorRenameByAddress(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("POST", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/rediscover", http.StatusOK,
		[]map[string]interface{}{
			{"name": "host_old", "port_wwn": "0x10000000c9b94321", "type": "default"},
		})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_old", http.StatusOK,
		map[string]interface{}{"name": "host_old", "type": "default",
			"port_wwn": "0x10000000c9b94321"})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_new", http.StatusNotFound, nil)
	f.stub("PATCH", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_old", http.StatusOK,
		map[string]interface{}{"name": "host_new"})

	result, err := ReconcileInitiator(f.api, InitiatorSpec{
		Cluster: "cluster-1",
		PortWwn: "0x10000000c9b94321",
		NewName: "host_new",
		State:   StatePresent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)

	var renamed []byte
	for _, call := range f.mutations() {
		if call.Method == "PATCH" {
			renamed = call.Body
		}
	}
	require.NotNil(t, renamed)
	ops := patchOps(t, renamed)
	require.Len(t, ops, 1)
	assert.Equal(t, "/name", ops[0]["path"])
	assert.Equal(t, "host_new", ops[0]["value"])
}

func TestInitiatorRenameCollision(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("POST", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/rediscover", http.StatusOK,
		[]map[string]interface{}{
			{"name": "host_old", "port_wwn": "0x10000000c9b94321", "type": "default"},
		})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_old", http.StatusOK,
		map[string]interface{}{"name": "host_old", "type": "default"})
	f.stub("GET", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/host_new", http.StatusOK,
		map[string]interface{}{"name": "host_new", "type": "default"})

	_, err := ReconcileInitiator(f.api, InitiatorSpec{
		Cluster: "cluster-1",
		Name:    "host_old",
		NewName: "host_new",
		State:   StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.AlreadyExists, verrors.CodeOf(err))
}

func TestInitiatorBareRediscover(t *testing.T) {
	f := newFakeVplex(t)
	f.stub("POST", "/vplex/v2/clusters/cluster-1/exports/initiator_ports/rediscover", http.StatusOK,
		[]map[string]interface{}{
			{"name": "UNREGISTERED-0x10000000c9b94321", "port_wwn": "0x10000000c9b94321"},
		})

	result, err := ReconcileInitiator(f.api, InitiatorSpec{
		Cluster: "cluster-1",
		State:   StatePresent,
	})
	require.Nil(t, err)
	assert.True(t, result.Changed)

	var payload map[string]interface{}
	f.mutationBody("POST", "/rediscover", &payload)
	assert.Equal(t, float64(1), payload["timeout"])
	assert.Equal(t, float64(5), payload["wait"])
}

func TestInitiatorTimeoutOutOfRange(t *testing.T) {
	f := newFakeVplex(t)

	_, err := ReconcileInitiator(f.api, InitiatorSpec{
		Cluster:           "cluster-1",
		RediscoverTimeout: 4000,
		State:             StatePresent,
	})
	require.NotNil(t, err)
	assert.Equal(t, verrors.InvalidArgument, verrors.CodeOf(err))
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.calls)
}
