// Copyright 2020 Dell Inc. or its subsidiaries.

package client

import (
	"fmt"

	log "github.com/dell-storage/vplex-host-libs/logger"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
)

///////////////////////////////////////////////////////////////////////////////////////////////////
// Storage Volume Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// GetStorageVolumes lists the storage volumes of a cluster.
func (c *Client) GetStorageVolumes(cluster string, filters map[string]string) ([]model.StorageVolume, error) {
	log.Trace(">>>>> GetStorageVolumes called, cluster: ", cluster)
	defer log.Trace("<<<<< GetStorageVolumes")

	var raw []map[string]interface{}
	if err := c.getJSON(fmt.Sprintf(storageVolumesURI, cluster)+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var volumes []model.StorageVolume
	if err := decodeList(raw, &volumes); err != nil {
		return nil, err
	}
	return volumes, nil
}

// GetStorageVolume fetches one storage volume by name.
func (c *Client) GetStorageVolume(cluster, name string) (*model.StorageVolume, error) {
	log.Trace(">>>>> GetStorageVolume called, name: ", name)
	defer log.Trace("<<<<< GetStorageVolume")

	volume := &model.StorageVolume{}
	if err := c.getJSON(fmt.Sprintf(storageVolumeURI, cluster, name), volume); err != nil {
		return nil, err
	}
	return volume, nil
}

// PatchStorageVolume applies a batch of patch ops to a storage volume.
func (c *Client) PatchStorageVolume(cluster, name string, ops []model.PatchOp) (*model.StorageVolume, error) {
	log.Trace(">>>>> PatchStorageVolume called, name: ", name)
	defer log.Trace("<<<<< PatchStorageVolume")

	volume := &model.StorageVolume{}
	if err := c.doJSON("PATCH", fmt.Sprintf(storageVolumeURI, cluster, name), ops, volume); err != nil {
		return nil, err
	}
	return volume, nil
}

// ClaimStorageVolume claims an unclaimed storage volume for use.
func (c *Client) ClaimStorageVolume(cluster, name string, payload map[string]interface{}) (*model.StorageVolume, error) {
	log.Trace(">>>>> ClaimStorageVolume called, name: ", name)
	defer log.Trace("<<<<< ClaimStorageVolume")

	volume := &model.StorageVolume{}
	if err := c.doJSON("POST", fmt.Sprintf(storageVolumeURI, cluster, name)+"/claim", payload, volume); err != nil {
		return nil, err
	}
	return volume, nil
}

// UnclaimStorageVolume returns a claimed storage volume to the unclaimed pool.
func (c *Client) UnclaimStorageVolume(cluster, name string) (*model.StorageVolume, error) {
	log.Trace(">>>>> UnclaimStorageVolume called, name: ", name)
	defer log.Trace("<<<<< UnclaimStorageVolume")

	volume := &model.StorageVolume{}
	if err := c.doJSON("POST", fmt.Sprintf(storageVolumeURI, cluster, name)+"/unclaim", nil, volume); err != nil {
		return nil, err
	}
	return volume, nil
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Extent Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// GetExtents lists the extents of a cluster.
func (c *Client) GetExtents(cluster string, filters map[string]string) ([]model.Extent, error) {
	log.Trace(">>>>> GetExtents called, cluster: ", cluster)
	defer log.Trace("<<<<< GetExtents")

	var raw []map[string]interface{}
	if err := c.getJSON(fmt.Sprintf(extentsURI, cluster)+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var extents []model.Extent
	if err := decodeList(raw, &extents); err != nil {
		return nil, err
	}
	return extents, nil
}

// GetExtent fetches one extent by name.
func (c *Client) GetExtent(cluster, name string) (*model.Extent, error) {
	log.Trace(">>>>> GetExtent called, name: ", name)
	defer log.Trace("<<<<< GetExtent")

	extent := &model.Extent{}
	if err := c.getJSON(fmt.Sprintf(extentURI, cluster, name), extent); err != nil {
		return nil, err
	}
	return extent, nil
}

// CreateExtent carves an extent out of a claimed storage volume.
func (c *Client) CreateExtent(cluster string, payload map[string]interface{}) (*model.Extent, error) {
	log.Trace(">>>>> CreateExtent called, cluster: ", cluster)
	defer log.Trace("<<<<< CreateExtent")

	extent := &model.Extent{}
	if err := c.doJSON("POST", fmt.Sprintf(extentsURI, cluster), payload, extent); err != nil {
		return nil, err
	}
	return extent, nil
}

// PatchExtent applies a batch of patch ops to an extent.
func (c *Client) PatchExtent(cluster, name string, ops []model.PatchOp) (*model.Extent, error) {
	log.Trace(">>>>> PatchExtent called, name: ", name)
	defer log.Trace("<<<<< PatchExtent")

	extent := &model.Extent{}
	if err := c.doJSON("PATCH", fmt.Sprintf(extentURI, cluster, name), ops, extent); err != nil {
		return nil, err
	}
	return extent, nil
}

// DeleteExtent removes an extent.
func (c *Client) DeleteExtent(cluster, name string) error {
	log.Trace(">>>>> DeleteExtent called, name: ", name)
	defer log.Trace("<<<<< DeleteExtent")

	return c.doJSON("DELETE", fmt.Sprintf(extentURI, cluster, name), nil, nil)
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Device Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// GetDevices lists the local devices of a cluster.
func (c *Client) GetDevices(cluster string, filters map[string]string) ([]model.Device, error) {
	log.Trace(">>>>> GetDevices called, cluster: ", cluster)
	defer log.Trace("<<<<< GetDevices")

	var raw []map[string]interface{}
	if err := c.getJSON(fmt.Sprintf(devicesURI, cluster)+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var devices []model.Device
	if err := decodeList(raw, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// GetDevice fetches one local device by name.
func (c *Client) GetDevice(cluster, name string) (*model.Device, error) {
	log.Trace(">>>>> GetDevice called, name: ", name)
	defer log.Trace("<<<<< GetDevice")

	device := &model.Device{}
	if err := c.getJSON(fmt.Sprintf(deviceURI, cluster, name), device); err != nil {
		return nil, err
	}
	return device, nil
}

// CreateDevice assembles a local device from extents or child devices.
func (c *Client) CreateDevice(cluster string, payload map[string]interface{}) (*model.Device, error) {
	log.Trace(">>>>> CreateDevice called, cluster: ", cluster)
	defer log.Trace("<<<<< CreateDevice")

	device := &model.Device{}
	if err := c.doJSON("POST", fmt.Sprintf(devicesURI, cluster), payload, device); err != nil {
		return nil, err
	}
	return device, nil
}

// PatchDevice applies a batch of patch ops to a local device.
func (c *Client) PatchDevice(cluster, name string, ops []model.PatchOp) (*model.Device, error) {
	log.Trace(">>>>> PatchDevice called, name: ", name)
	defer log.Trace("<<<<< PatchDevice")

	device := &model.Device{}
	if err := c.doJSON("PATCH", fmt.Sprintf(deviceURI, cluster, name), ops, device); err != nil {
		return nil, err
	}
	return device, nil
}

// DeleteDevice removes a local device.
func (c *Client) DeleteDevice(cluster, name string) error {
	log.Trace(">>>>> DeleteDevice called, name: ", name)
	defer log.Trace("<<<<< DeleteDevice")

	return c.doJSON("DELETE", fmt.Sprintf(deviceURI, cluster, name), nil, nil)
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Virtual Volume Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// GetVirtualVolumes lists the virtual volumes of a cluster.
func (c *Client) GetVirtualVolumes(cluster string, filters map[string]string) ([]model.VirtualVolume, error) {
	log.Trace(">>>>> GetVirtualVolumes called, cluster: ", cluster)
	defer log.Trace("<<<<< GetVirtualVolumes")

	var raw []map[string]interface{}
	if err := c.getJSON(fmt.Sprintf(virtualVolumesURI, cluster)+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var volumes []model.VirtualVolume
	if err := decodeList(raw, &volumes); err != nil {
		return nil, err
	}
	return volumes, nil
}

// GetVirtualVolume fetches one virtual volume by name.
func (c *Client) GetVirtualVolume(cluster, name string) (*model.VirtualVolume, error) {
	log.Trace(">>>>> GetVirtualVolume called, name: ", name)
	defer log.Trace("<<<<< GetVirtualVolume")

	volume := &model.VirtualVolume{}
	if err := c.getJSON(fmt.Sprintf(virtualVolumeURI, cluster, name), volume); err != nil {
		return nil, err
	}
	return volume, nil
}

// CreateVirtualVolume creates a virtual volume on a top-level device.
func (c *Client) CreateVirtualVolume(cluster string, payload map[string]interface{}) (*model.VirtualVolume, error) {
	log.Trace(">>>>> CreateVirtualVolume called, cluster: ", cluster)
	defer log.Trace("<<<<< CreateVirtualVolume")

	volume := &model.VirtualVolume{}
	if err := c.doJSON("POST", fmt.Sprintf(virtualVolumesURI, cluster), payload, volume); err != nil {
		return nil, err
	}
	return volume, nil
}

// PatchVirtualVolume applies a batch of patch ops to a virtual volume.
func (c *Client) PatchVirtualVolume(cluster, name string, ops []model.PatchOp) (*model.VirtualVolume, error) {
	log.Trace(">>>>> PatchVirtualVolume called, name: ", name)
	defer log.Trace("<<<<< PatchVirtualVolume")

	volume := &model.VirtualVolume{}
	if err := c.doJSON("PATCH", fmt.Sprintf(virtualVolumeURI, cluster, name), ops, volume); err != nil {
		return nil, err
	}
	return volume, nil
}

// ExpandVirtualVolume grows a virtual volume, either onto an additional
// device or into its expandable capacity.
func (c *Client) ExpandVirtualVolume(cluster, name string, payload map[string]interface{}) (*model.VirtualVolume, error) {
	log.Trace(">>>>> ExpandVirtualVolume called, name: ", name)
	defer log.Trace("<<<<< ExpandVirtualVolume")

	volume := &model.VirtualVolume{}
	if err := c.doJSON("POST", fmt.Sprintf(virtualVolumeURI, cluster, name)+"/expand", payload, volume); err != nil {
		return nil, err
	}
	return volume, nil
}

// CacheInvalidateVirtualVolume flushes the read cache of an exported virtual
// volume. Served only by 6.2 appliances.
func (c *Client) CacheInvalidateVirtualVolume(cluster, name string) (*model.VirtualVolume, error) {
	log.Trace(">>>>> CacheInvalidateVirtualVolume called, name: ", name)
	defer log.Trace("<<<<< CacheInvalidateVirtualVolume")

	volume := &model.VirtualVolume{}
	if err := c.doJSON("POST", fmt.Sprintf(virtualVolumeURI, cluster, name)+"/cache-invalidate", nil, volume); err != nil {
		return nil, err
	}
	return volume, nil
}

// DeleteVirtualVolume removes a virtual volume.
func (c *Client) DeleteVirtualVolume(cluster, name string) error {
	log.Trace(">>>>> DeleteVirtualVolume called, name: ", name)
	defer log.Trace("<<<<< DeleteVirtualVolume")

	return c.doJSON("DELETE", fmt.Sprintf(virtualVolumeURI, cluster, name), nil, nil)
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Consistency Group Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// GetConsistencyGroups lists the consistency groups of a cluster.
func (c *Client) GetConsistencyGroups(cluster string, filters map[string]string) ([]model.ConsistencyGroup, error) {
	log.Trace(">>>>> GetConsistencyGroups called, cluster: ", cluster)
	defer log.Trace("<<<<< GetConsistencyGroups")

	var raw []map[string]interface{}
	if err := c.getJSON(fmt.Sprintf(consistencyGrpsURI, cluster)+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var groups []model.ConsistencyGroup
	if err := decodeList(raw, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// GetConsistencyGroup fetches one consistency group by name.
func (c *Client) GetConsistencyGroup(cluster, name string) (*model.ConsistencyGroup, error) {
	log.Trace(">>>>> GetConsistencyGroup called, name: ", name)
	defer log.Trace("<<<<< GetConsistencyGroup")

	group := &model.ConsistencyGroup{}
	if err := c.getJSON(fmt.Sprintf(consistencyGrpURI, cluster, name), group); err != nil {
		return nil, err
	}
	return group, nil
}

// CreateConsistencyGroup creates a cluster-local consistency group.
func (c *Client) CreateConsistencyGroup(cluster string, payload map[string]interface{}) (*model.ConsistencyGroup, error) {
	log.Trace(">>>>> CreateConsistencyGroup called, cluster: ", cluster)
	defer log.Trace("<<<<< CreateConsistencyGroup")

	group := &model.ConsistencyGroup{}
	if err := c.doJSON("POST", fmt.Sprintf(consistencyGrpsURI, cluster), payload, group); err != nil {
		return nil, err
	}
	return group, nil
}

// PatchConsistencyGroup applies a batch of patch ops to a consistency group.
func (c *Client) PatchConsistencyGroup(cluster, name string, ops []model.PatchOp) (*model.ConsistencyGroup, error) {
	log.Trace(">>>>> PatchConsistencyGroup called, name: ", name)
	defer log.Trace("<<<<< PatchConsistencyGroup")

	group := &model.ConsistencyGroup{}
	if err := c.doJSON("PATCH", fmt.Sprintf(consistencyGrpURI, cluster, name), ops, group); err != nil {
		return nil, err
	}
	return group, nil
}

// DeleteConsistencyGroup removes a consistency group.
func (c *Client) DeleteConsistencyGroup(cluster, name string) error {
	log.Trace(">>>>> DeleteConsistencyGroup called, name: ", name)
	defer log.Trace("<<<<< DeleteConsistencyGroup")

	return c.doJSON("DELETE", fmt.Sprintf(consistencyGrpURI, cluster, name), nil, nil)
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Storage Array Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// GetStorageArrays lists the back-end arrays of a cluster.
func (c *Client) GetStorageArrays(cluster string, filters map[string]string) ([]model.StorageArray, error) {
	log.Trace(">>>>> GetStorageArrays called, cluster: ", cluster)
	defer log.Trace("<<<<< GetStorageArrays")

	var raw []map[string]interface{}
	if err := c.getJSON(fmt.Sprintf(storageArraysURI, cluster)+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var arrays []model.StorageArray
	if err := decodeList(raw, &arrays); err != nil {
		return nil, err
	}
	return arrays, nil
}

// GetStorageArray fetches one back-end array by name.
func (c *Client) GetStorageArray(cluster, name string) (*model.StorageArray, error) {
	log.Trace(">>>>> GetStorageArray called, name: ", name)
	defer log.Trace("<<<<< GetStorageArray")

	array := &model.StorageArray{}
	if err := c.getJSON(fmt.Sprintf(storageArrayURI, cluster, name), array); err != nil {
		return nil, err
	}
	return array, nil
}

// RediscoverStorageArray triggers a rediscovery of the array's logical units.
func (c *Client) RediscoverStorageArray(cluster, name string) (*model.StorageArray, error) {
	log.Trace(">>>>> RediscoverStorageArray called, name: ", name)
	defer log.Trace("<<<<< RediscoverStorageArray")

	array := &model.StorageArray{}
	if err := c.doJSON("POST", fmt.Sprintf(storageArrayURI, cluster, name)+"/rediscover", nil, array); err != nil {
		return nil, err
	}
	return array, nil
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Array Management Provider Methods
///////////////////////////////////////////////////////////////////////////////////////////////////

// AMP is a registered array management provider.
type AMP struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// GetAMPs lists the registered array management providers of a cluster.
func (c *Client) GetAMPs(cluster string, filters map[string]string) ([]AMP, error) {
	log.Trace(">>>>> GetAMPs called, cluster: ", cluster)
	defer log.Trace("<<<<< GetAMPs")

	var raw []map[string]interface{}
	if err := c.getJSON(fmt.Sprintf(ampsURI, cluster)+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var amps []AMP
	if err := decodeList(raw, &amps); err != nil {
		return nil, err
	}
	return amps, nil
}
