// Copyright 2020 Dell Inc. or its subsidiaries.

// Package model holds the wire representations of VPLEX resources along with
// the small amount of pure domain data (naming rules, capacity units, RAID
// geometry tables) shared by the client and the reconcilers.
package model

import "strings"

// Patch op verbs understood by the appliance.
const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
)

// PatchOp is one atomic change to a resource. A slice of these is sent as a
// single JSON-patch body and applied atomically by the appliance.
type PatchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// Cluster is a top-level management scope.
type Cluster struct {
	Name              string `json:"name"`
	ClusterID         int    `json:"cluster_id,omitempty"`
	OperationalStatus string `json:"operational_status,omitempty"`
	HealthState       string `json:"health_state,omitempty"`
	TopLevelAssembly  string `json:"top_level_assembly,omitempty"`
}

// Degraded reports whether the cluster's inter-cluster link is down. While
// degraded, distributed topology mutations are refused.
func (c *Cluster) Degraded() bool {
	return c != nil && c.OperationalStatus == "degraded"
}

// StorageVolume is a LUN exposed by a back-end array.
type StorageVolume struct {
	Name              string   `json:"name"`
	Capacity          int64    `json:"capacity,omitempty"`
	Use               string   `json:"use,omitempty"`
	UsedBy            []string `json:"used_by,omitempty"`
	SystemID          string   `json:"system_id,omitempty"`
	StorageArrayName  string   `json:"storage_array_name,omitempty"`
	ThinRebuild       bool     `json:"thin_rebuild,omitempty"`
	ThinCapable       bool     `json:"thin_capable,omitempty"`
	IOStatus          string   `json:"io_status,omitempty"`
	HealthState       string   `json:"health_state,omitempty"`
	OperationalStatus string   `json:"operational_status,omitempty"`
}

// Storage volume use states.
const (
	VolumeUseUnclaimed = "unclaimed"
	VolumeUseClaimed   = "claimed"
	VolumeUseUsed      = "used"
	VolumeUseMetadata  = "meta-data"
)

// Extent is a slice of a claimed storage volume.
type Extent struct {
	Name              string   `json:"name"`
	Capacity          int64    `json:"capacity,omitempty"`
	Use               string   `json:"use,omitempty"`
	UsedBy            []string `json:"used_by,omitempty"`
	StorageVolume     string   `json:"storage_volume,omitempty"`
	HealthState       string   `json:"health_state,omitempty"`
	OperationalStatus string   `json:"operational_status,omitempty"`
}

// Device is a RAID assembly of extents or child devices.
type Device struct {
	Name               string   `json:"name"`
	Capacity           int64    `json:"capacity,omitempty"`
	Geometry           string   `json:"geometry,omitempty"`
	StripeDepth        int64    `json:"stripe_depth,omitempty"`
	TransferSize       int64    `json:"transfer_size,omitempty"`
	HealthState        string   `json:"health_state,omitempty"`
	HealthIndications  []string `json:"health_indications,omitempty"`
	RebuildStatus      string   `json:"rebuild_status,omitempty"`
	TopLevel           bool     `json:"top_level,omitempty"`
	Visibility         string   `json:"visibility,omitempty"`
	VirtualVolume      string   `json:"virtual_volume,omitempty"`
	StorageArrayFamily string   `json:"storage_array_family,omitempty"`
	SystemID           string   `json:"system_id,omitempty"`
}

// Rebuilding reports whether the device is mid-rebuild or queued for one.
func (d *Device) Rebuilding() bool {
	if d == nil {
		return false
	}
	if d.RebuildStatus == "rebuilding" || d.RebuildStatus == "queued" {
		return true
	}
	for _, h := range d.HealthIndications {
		if strings.Contains(h, "rebuilding") || strings.Contains(h, "queued") {
			return true
		}
	}
	return false
}

// DistributedDevice is a RAID-1 spanning both clusters.
type DistributedDevice struct {
	Name               string   `json:"name"`
	Capacity           int64    `json:"capacity,omitempty"`
	HealthState        string   `json:"health_state,omitempty"`
	HealthIndications  []string `json:"health_indications,omitempty"`
	RebuildStatus      string   `json:"rebuild_status,omitempty"`
	RuleSetName        string   `json:"rule_set_name,omitempty"`
	VirtualVolume      string   `json:"virtual_volume,omitempty"`
	StorageArrayFamily string   `json:"storage_array_family,omitempty"`
}

// Rebuilding reports whether the distributed device is mid-rebuild.
func (d *DistributedDevice) Rebuilding() bool {
	if d == nil {
		return false
	}
	if d.RebuildStatus == "rebuilding" || d.RebuildStatus == "queued" {
		return true
	}
	for _, h := range d.HealthIndications {
		if strings.Contains(h, "rebuilding") || strings.Contains(h, "queued") {
			return true
		}
	}
	return false
}

// VirtualVolume is the consumable unit built on a device.
type VirtualVolume struct {
	Name               string `json:"name"`
	Capacity           int64  `json:"capacity,omitempty"`
	ServiceStatus      string `json:"service_status,omitempty"`
	OperationalStatus  string `json:"operational_status,omitempty"`
	SupportingDevice   string `json:"supporting_device,omitempty"`
	ConsistencyGroup   string `json:"consistency_group,omitempty"`
	Locality           string `json:"locality,omitempty"`
	Visibility         string `json:"visibility,omitempty"`
	Thin               bool   `json:"thin_enabled,omitempty"`
	ExpansionMethod    string `json:"expansion_method,omitempty"`
	ExpansionStatus    string `json:"expansion_status,omitempty"`
	ExpandableCapacity int64  `json:"expandable_capacity,omitempty"`
	SystemID           string `json:"system_id,omitempty"`
	VPDID              string `json:"vpd_id,omitempty"`
}

// Virtual volume service states.
const (
	ServiceStatusUnexported = "unexported"
	ServiceStatusRunning    = "running"
)

// DetachRule describes distributed consistency group failure semantics.
type DetachRule struct {
	Type    string `json:"type"` // "winner" or "no_automatic_winner"
	Cluster string `json:"cluster,omitempty"`
	Delay   int    `json:"delay,omitempty"`
}

// ConsistencyGroup groups virtual volumes sharing detach semantics. The same
// record shape serves both cluster-local and distributed groups.
type ConsistencyGroup struct {
	Name              string        `json:"name"`
	VirtualVolumes    []string      `json:"virtual_volumes,omitempty"`
	StorageAtClusters []string      `json:"storage_at_clusters,omitempty"`
	Visibility        []string      `json:"visibility,omitempty"`
	DetachRule        *DetachRule   `json:"detach_rule,omitempty"`
	AutoResumeAtLoser *bool         `json:"auto_resume_at_loser,omitempty"`
	ReadOnly          bool          `json:"read_only,omitempty"`
	OperationalStatus []interface{} `json:"operational_status,omitempty"`
}

// ViewVolume is one virtual volume entry inside a storage view. The view
// endpoint wraps each exported volume with its LUN assignment.
type ViewVolume struct {
	URI string `json:"uri"`
	LUN int    `json:"lun,omitempty"`
}

// StorageView is an export mapping of ports, initiators and virtual volumes.
type StorageView struct {
	Name              string       `json:"name"`
	OperationalStatus string       `json:"operational_status,omitempty"`
	Ports             []string     `json:"ports,omitempty"`
	Initiators        []string     `json:"initiators,omitempty"`
	VirtualVolumes    []ViewVolume `json:"virtual_volumes,omitempty"`
}

// VolumeURIs returns the exported volume URIs of the view.
func (v *StorageView) VolumeURIs() []string {
	uris := make([]string, 0, len(v.VirtualVolumes))
	for _, vol := range v.VirtualVolumes {
		uris = append(uris, vol.URI)
	}
	return uris
}

// Initiator is a host port visible on the front end.
type Initiator struct {
	Name        string   `json:"name"`
	Type        string   `json:"type,omitempty"`
	PortWwn     string   `json:"port_wwn,omitempty"`
	NodeWwn     string   `json:"node_wwn,omitempty"`
	IscsiName   string   `json:"iscsi_name,omitempty"`
	TargetPorts []string `json:"target_ports,omitempty"`
}

// Registered reports whether the initiator has been registered with a name
// and host type, as opposed to merely discovered.
func (i *Initiator) Registered() bool {
	return i != nil && i.Type != ""
}

// Port is a front-end target port.
type Port struct {
	Name         string `json:"name"`
	Enabled      bool   `json:"enabled"`
	ExportStatus string `json:"export_status,omitempty"`
	PortWwn      string `json:"port_wwn,omitempty"`
	NodeWwn      string `json:"node_wwn,omitempty"`
	DirectorID   string `json:"director_id,omitempty"`
	Role         string `json:"role,omitempty"`
}

// MigrationJob is a device or extent data migration.
type MigrationJob struct {
	Name           string  `json:"name"`
	Status         string  `json:"status,omitempty"`
	Source         string  `json:"source,omitempty"`
	Target         string  `json:"target,omitempty"`
	TransferSize   int64   `json:"transfer_size,omitempty"`
	PercentageDone float64 `json:"percentage_done,omitempty"`
	FromCluster    string  `json:"from_cluster,omitempty"`
	ToCluster      string  `json:"to_cluster,omitempty"`
	StartTime      string  `json:"start_time,omitempty"`
	Type           string  `json:"type,omitempty"`
}

// StorageArray is a back-end array visible to a cluster.
type StorageArray struct {
	Name               string   `json:"name"`
	ConnectivityStatus string   `json:"connectivity_status,omitempty"`
	AutoSwitch         bool     `json:"auto_switch,omitempty"`
	Ports              []string `json:"ports,omitempty"`
	LogicalUnitCount   int      `json:"logical_unit_count,omitempty"`
	StorageGroups      string   `json:"storage_groups,omitempty"`
	StoragePools       string   `json:"storage_pools,omitempty"`
}

// MapNode is one entity in the use-hierarchy graph.
type MapNode struct {
	URI      string   `json:"uri"`
	Parents  []string `json:"parents,omitempty"`
	Children []string `json:"children,omitempty"`
}

// NameFromURI returns the trailing path element of a resource URI.
func NameFromURI(uri string) string {
	if idx := strings.LastIndex(uri, "/"); idx >= 0 {
		return uri[idx+1:]
	}
	return uri
}

// CollectionFromURI returns the second-to-last path element of a resource
// URI, which names the collection the resource belongs to.
func CollectionFromURI(uri string) string {
	parts := strings.Split(uri, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}
