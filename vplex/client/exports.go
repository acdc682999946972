// Copyright 2020 Dell Inc. or its subsidiaries.

package client

import (
	"fmt"

	log "github.com/dell-storage/vplex-host-libs/logger"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
)

///////////////////////////////////////////////////////////////////////////////////////////////////
// Storage View Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// GetStorageViews lists the storage views of a cluster.
func (c *Client) GetStorageViews(cluster string, filters map[string]string) ([]model.StorageView, error) {
	log.Trace(">>>>> GetStorageViews called, cluster: ", cluster)
	defer log.Trace("<<<<< GetStorageViews")

	var raw []map[string]interface{}
	if err := c.getJSON(fmt.Sprintf(storageViewsURI, cluster)+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var views []model.StorageView
	if err := decodeList(raw, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// GetStorageView fetches one storage view by name.
func (c *Client) GetStorageView(cluster, name string) (*model.StorageView, error) {
	log.Trace(">>>>> GetStorageView called, name: ", name)
	defer log.Trace("<<<<< GetStorageView")

	view := &model.StorageView{}
	if err := c.getJSON(fmt.Sprintf(storageViewURI, cluster, name), view); err != nil {
		return nil, err
	}
	return view, nil
}

// CreateStorageView creates an export view. At least one port is required
// by the appliance.
func (c *Client) CreateStorageView(cluster string, payload map[string]interface{}) (*model.StorageView, error) {
	log.Trace(">>>>> CreateStorageView called, cluster: ", cluster)
	defer log.Trace("<<<<< CreateStorageView")

	view := &model.StorageView{}
	if err := c.doJSON("POST", fmt.Sprintf(storageViewsURI, cluster), payload, view); err != nil {
		return nil, err
	}
	return view, nil
}

// PatchStorageView applies a batch of patch ops to a storage view.
func (c *Client) PatchStorageView(cluster, name string, ops []model.PatchOp) (*model.StorageView, error) {
	log.Trace(">>>>> PatchStorageView called, name: ", name)
	defer log.Trace("<<<<< PatchStorageView")

	view := &model.StorageView{}
	if err := c.doJSON("PATCH", fmt.Sprintf(storageViewURI, cluster, name), ops, view); err != nil {
		return nil, err
	}
	return view, nil
}

// DeleteStorageView removes a storage view.
func (c *Client) DeleteStorageView(cluster, name string) error {
	log.Trace(">>>>> DeleteStorageView called, name: ", name)
	defer log.Trace("<<<<< DeleteStorageView")

	return c.doJSON("DELETE", fmt.Sprintf(storageViewURI, cluster, name), nil, nil)
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Initiator Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// GetInitiators lists the initiator ports visible on a cluster's front end.
func (c *Client) GetInitiators(cluster string, filters map[string]string) ([]model.Initiator, error) {
	log.Trace(">>>>> GetInitiators called, cluster: ", cluster)
	defer log.Trace("<<<<< GetInitiators")

	var raw []map[string]interface{}
	if err := c.getJSON(fmt.Sprintf(initiatorsURI, cluster)+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var initiators []model.Initiator
	if err := decodeList(raw, &initiators); err != nil {
		return nil, err
	}
	return initiators, nil
}

// GetInitiator fetches one initiator port by name.
func (c *Client) GetInitiator(cluster, name string) (*model.Initiator, error) {
	log.Trace(">>>>> GetInitiator called, name: ", name)
	defer log.Trace("<<<<< GetInitiator")

	initiator := &model.Initiator{}
	if err := c.getJSON(fmt.Sprintf(initiatorURI, cluster, name), initiator); err != nil {
		return nil, err
	}
	return initiator, nil
}

// RegisterInitiator registers an initiator port under a name and host type.
func (c *Client) RegisterInitiator(cluster string, payload map[string]interface{}) (*model.Initiator, error) {
	log.Trace(">>>>> RegisterInitiator called, cluster: ", cluster)
	defer log.Trace("<<<<< RegisterInitiator")

	initiator := &model.Initiator{}
	if err := c.doJSON("POST", fmt.Sprintf(initiatorsURI, cluster), payload, initiator); err != nil {
		return nil, err
	}
	return initiator, nil
}

// UnregisterInitiator drops the registration of an initiator port. The port
// itself remains discovered.
func (c *Client) UnregisterInitiator(cluster, name string) error {
	log.Trace(">>>>> UnregisterInitiator called, name: ", name)
	defer log.Trace("<<<<< UnregisterInitiator")

	return c.doJSON("POST", fmt.Sprintf(initiatorURI, cluster, name)+"/unregister", nil, nil)
}

// PatchInitiator applies a batch of patch ops to an initiator port.
func (c *Client) PatchInitiator(cluster, name string, ops []model.PatchOp) (*model.Initiator, error) {
	log.Trace(">>>>> PatchInitiator called, name: ", name)
	defer log.Trace("<<<<< PatchInitiator")

	initiator := &model.Initiator{}
	if err := c.doJSON("PATCH", fmt.Sprintf(initiatorURI, cluster, name), ops, initiator); err != nil {
		return nil, err
	}
	return initiator, nil
}

// RediscoverInitiators forces a front-end rediscovery and returns the
// discovered initiator ports.
func (c *Client) RediscoverInitiators(cluster string, timeoutSeconds int) ([]model.Initiator, error) {
	log.Trace(">>>>> RediscoverInitiators called, cluster: ", cluster)
	defer log.Trace("<<<<< RediscoverInitiators")

	payload := map[string]interface{}{
		"timeout": timeoutSeconds,
		"wait":    timeoutSeconds * 5,
	}
	var raw []map[string]interface{}
	if err := c.doJSON("POST", fmt.Sprintf(initiatorsURI, cluster)+"/rediscover", payload, &raw); err != nil {
		return nil, err
	}
	var initiators []model.Initiator
	if err := decodeList(raw, &initiators); err != nil {
		return nil, err
	}
	return initiators, nil
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Port Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// GetPorts lists the front-end target ports of a cluster.
func (c *Client) GetPorts(cluster string, filters map[string]string) ([]model.Port, error) {
	log.Trace(">>>>> GetPorts called, cluster: ", cluster)
	defer log.Trace("<<<<< GetPorts")

	var raw []map[string]interface{}
	if err := c.getJSON(fmt.Sprintf(portsURI, cluster)+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var ports []model.Port
	if err := decodeList(raw, &ports); err != nil {
		return nil, err
	}
	return ports, nil
}

// GetPort fetches one front-end port by name.
func (c *Client) GetPort(cluster, name string) (*model.Port, error) {
	log.Trace(">>>>> GetPort called, name: ", name)
	defer log.Trace("<<<<< GetPort")

	port := &model.Port{}
	if err := c.getJSON(fmt.Sprintf(portURI, cluster, name), port); err != nil {
		return nil, err
	}
	return port, nil
}

// PatchPort applies a batch of patch ops to a front-end port.
func (c *Client) PatchPort(cluster, name string, ops []model.PatchOp) (*model.Port, error) {
	log.Trace(">>>>> PatchPort called, name: ", name)
	defer log.Trace("<<<<< PatchPort")

	port := &model.Port{}
	if err := c.doJSON("PATCH", fmt.Sprintf(portURI, cluster, name), ops, port); err != nil {
		return nil, err
	}
	return port, nil
}

// GetHardwarePorts lists appliance hardware ports, optionally filtered by
// role ("back-end" for the fact gathering subset).
func (c *Client) GetHardwarePorts(role string, filters map[string]string) ([]model.Port, error) {
	log.Trace(">>>>> GetHardwarePorts called, role: ", role)
	defer log.Trace("<<<<< GetHardwarePorts")

	merged := map[string]string{}
	for key, value := range filters {
		merged[key] = value
	}
	if role != "" {
		merged["role"] = role
	}
	var raw []map[string]interface{}
	if err := c.getJSON(hardwarePortsURI+encodeFilters(merged), &raw); err != nil {
		return nil, err
	}
	var ports []model.Port
	if err := decodeList(raw, &ports); err != nil {
		return nil, err
	}
	return ports, nil
}
