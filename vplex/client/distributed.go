// Copyright 2020 Dell Inc. or its subsidiaries.

package client

import (
	"fmt"

	log "github.com/dell-storage/vplex-host-libs/logger"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
)

///////////////////////////////////////////////////////////////////////////////////////////////////
// Distributed Device Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// GetDistributedDevices lists all distributed devices.
func (c *Client) GetDistributedDevices(filters map[string]string) ([]model.DistributedDevice, error) {
	log.Trace(">>>>> GetDistributedDevices called")
	defer log.Trace("<<<<< GetDistributedDevices")

	var raw []map[string]interface{}
	if err := c.getJSON(distDevicesURI+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var devices []model.DistributedDevice
	if err := decodeList(raw, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// GetDistributedDevice fetches one distributed device by name.
func (c *Client) GetDistributedDevice(name string) (*model.DistributedDevice, error) {
	log.Trace(">>>>> GetDistributedDevice called, name: ", name)
	defer log.Trace("<<<<< GetDistributedDevice")

	device := &model.DistributedDevice{}
	if err := c.getJSON(fmt.Sprintf(distDeviceURI, name), device); err != nil {
		return nil, err
	}
	return device, nil
}

// CreateDistributedDevice mirrors two cluster-local devices into a
// distributed RAID-1.
func (c *Client) CreateDistributedDevice(payload map[string]interface{}) (*model.DistributedDevice, error) {
	log.Trace(">>>>> CreateDistributedDevice called")
	defer log.Trace("<<<<< CreateDistributedDevice")

	device := &model.DistributedDevice{}
	if err := c.doJSON("POST", distDevicesURI, payload, device); err != nil {
		return nil, err
	}
	return device, nil
}

// PatchDistributedDevice applies a batch of patch ops to a distributed device.
func (c *Client) PatchDistributedDevice(name string, ops []model.PatchOp) (*model.DistributedDevice, error) {
	log.Trace(">>>>> PatchDistributedDevice called, name: ", name)
	defer log.Trace("<<<<< PatchDistributedDevice")

	device := &model.DistributedDevice{}
	if err := c.doJSON("PATCH", fmt.Sprintf(distDeviceURI, name), ops, device); err != nil {
		return nil, err
	}
	return device, nil
}

// DeleteDistributedDevice removes a distributed device.
func (c *Client) DeleteDistributedDevice(name string) error {
	log.Trace(">>>>> DeleteDistributedDevice called, name: ", name)
	defer log.Trace("<<<<< DeleteDistributedDevice")

	return c.doJSON("DELETE", fmt.Sprintf(distDeviceURI, name), nil, nil)
}

// RuleSet is a named detach policy applicable to distributed devices.
type RuleSet struct {
	Name string `json:"name"`
}

// GetRuleSets lists the detach rule sets defined on the appliance.
func (c *Client) GetRuleSets() ([]RuleSet, error) {
	log.Trace(">>>>> GetRuleSets called")
	defer log.Trace("<<<<< GetRuleSets")

	var raw []map[string]interface{}
	if err := c.getJSON(ruleSetsURI, &raw); err != nil {
		return nil, err
	}
	var ruleSets []RuleSet
	if err := decodeList(raw, &ruleSets); err != nil {
		return nil, err
	}
	return ruleSets, nil
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Distributed Consistency Group Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// GetDistributedConsistencyGroups lists all distributed consistency groups.
func (c *Client) GetDistributedConsistencyGroups(filters map[string]string) ([]model.ConsistencyGroup, error) {
	log.Trace(">>>>> GetDistributedConsistencyGroups called")
	defer log.Trace("<<<<< GetDistributedConsistencyGroups")

	var raw []map[string]interface{}
	if err := c.getJSON(distConsistencyGrpsURI+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var groups []model.ConsistencyGroup
	if err := decodeList(raw, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// GetDistributedConsistencyGroup fetches one distributed consistency group.
func (c *Client) GetDistributedConsistencyGroup(name string) (*model.ConsistencyGroup, error) {
	log.Trace(">>>>> GetDistributedConsistencyGroup called, name: ", name)
	defer log.Trace("<<<<< GetDistributedConsistencyGroup")

	group := &model.ConsistencyGroup{}
	if err := c.getJSON(fmt.Sprintf(distConsistencyGrpURI, name), group); err != nil {
		return nil, err
	}
	return group, nil
}

// CreateDistributedConsistencyGroup creates a distributed consistency group.
func (c *Client) CreateDistributedConsistencyGroup(payload map[string]interface{}) (*model.ConsistencyGroup, error) {
	log.Trace(">>>>> CreateDistributedConsistencyGroup called")
	defer log.Trace("<<<<< CreateDistributedConsistencyGroup")

	group := &model.ConsistencyGroup{}
	if err := c.doJSON("POST", distConsistencyGrpsURI, payload, group); err != nil {
		return nil, err
	}
	return group, nil
}

// PatchDistributedConsistencyGroup applies a batch of patch ops.
func (c *Client) PatchDistributedConsistencyGroup(name string, ops []model.PatchOp) (*model.ConsistencyGroup, error) {
	log.Trace(">>>>> PatchDistributedConsistencyGroup called, name: ", name)
	defer log.Trace("<<<<< PatchDistributedConsistencyGroup")

	group := &model.ConsistencyGroup{}
	if err := c.doJSON("PATCH", fmt.Sprintf(distConsistencyGrpURI, name), ops, group); err != nil {
		return nil, err
	}
	return group, nil
}

// DeleteDistributedConsistencyGroup removes a distributed consistency group.
func (c *Client) DeleteDistributedConsistencyGroup(name string) error {
	log.Trace(">>>>> DeleteDistributedConsistencyGroup called, name: ", name)
	defer log.Trace("<<<<< DeleteDistributedConsistencyGroup")

	return c.doJSON("DELETE", fmt.Sprintf(distConsistencyGrpURI, name), nil, nil)
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Distributed Virtual Volume Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// GetDistributedVirtualVolumes lists all distributed virtual volumes.
func (c *Client) GetDistributedVirtualVolumes(filters map[string]string) ([]model.VirtualVolume, error) {
	log.Trace(">>>>> GetDistributedVirtualVolumes called")
	defer log.Trace("<<<<< GetDistributedVirtualVolumes")

	var raw []map[string]interface{}
	if err := c.getJSON(distVirtualVolumesURI+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var volumes []model.VirtualVolume
	if err := decodeList(raw, &volumes); err != nil {
		return nil, err
	}
	return volumes, nil
}

// GetDistributedVirtualVolume fetches one distributed virtual volume.
func (c *Client) GetDistributedVirtualVolume(name string) (*model.VirtualVolume, error) {
	log.Trace(">>>>> GetDistributedVirtualVolume called, name: ", name)
	defer log.Trace("<<<<< GetDistributedVirtualVolume")

	volume := &model.VirtualVolume{}
	if err := c.getJSON(fmt.Sprintf(distVirtualVolumeURI, name), volume); err != nil {
		return nil, err
	}
	return volume, nil
}

// CreateDistributedVirtualVolume creates a virtual volume on a distributed
// device.
func (c *Client) CreateDistributedVirtualVolume(payload map[string]interface{}) (*model.VirtualVolume, error) {
	log.Trace(">>>>> CreateDistributedVirtualVolume called")
	defer log.Trace("<<<<< CreateDistributedVirtualVolume")

	volume := &model.VirtualVolume{}
	if err := c.doJSON("POST", distVirtualVolumesURI, payload, volume); err != nil {
		return nil, err
	}
	return volume, nil
}

// PatchDistributedVirtualVolume applies a batch of patch ops.
func (c *Client) PatchDistributedVirtualVolume(name string, ops []model.PatchOp) (*model.VirtualVolume, error) {
	log.Trace(">>>>> PatchDistributedVirtualVolume called, name: ", name)
	defer log.Trace("<<<<< PatchDistributedVirtualVolume")

	volume := &model.VirtualVolume{}
	if err := c.doJSON("PATCH", fmt.Sprintf(distVirtualVolumeURI, name), ops, volume); err != nil {
		return nil, err
	}
	return volume, nil
}

// ExpandDistributedVirtualVolume grows a distributed virtual volume into its
// expandable capacity.
func (c *Client) ExpandDistributedVirtualVolume(name string) (*model.VirtualVolume, error) {
	log.Trace(">>>>> ExpandDistributedVirtualVolume called, name: ", name)
	defer log.Trace("<<<<< ExpandDistributedVirtualVolume")

	volume := &model.VirtualVolume{}
	if err := c.doJSON("POST", fmt.Sprintf(distVirtualVolumeURI, name)+"/expand", nil, volume); err != nil {
		return nil, err
	}
	return volume, nil
}

// DeleteDistributedVirtualVolume removes a distributed virtual volume.
func (c *Client) DeleteDistributedVirtualVolume(name string) error {
	log.Trace(">>>>> DeleteDistributedVirtualVolume called, name: ", name)
	defer log.Trace("<<<<< DeleteDistributedVirtualVolume")

	return c.doJSON("DELETE", fmt.Sprintf(distVirtualVolumeURI, name), nil, nil)
}
