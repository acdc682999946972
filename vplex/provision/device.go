// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// Requested membership direction for extents and mirrors in a device.
const (
	MemberPresentInDevice = "present-in-device"
	MemberAbsentInDevice  = "absent-in-device"
)

// DeviceSpec is the desired state of a cluster-local RAID device. MirrorName
// with MirrorState also covers distributed devices when Name resolves into
// the distributed namespace.
type DeviceSpec struct {
	Cluster       string
	Name          string
	NewName       string
	Geometry      string
	StripeDepth   string
	Extents       []string
	ExtentState   string
	MirrorName    string
	MirrorState   string
	TargetCluster string
	TransferSize  int64
	State         string
}

type deviceReconciler struct {
	api  *client.Client
	spec DeviceSpec

	// distributed is filled during Fetch when Name names a distributed
	// device rather than a cluster-local one.
	distributed *model.DistributedDevice
}

var _ reconcile.Reconciler = (*deviceReconciler)(nil)

// ReconcileDevice converges a RAID device to the requested state.
func ReconcileDevice(api *client.Client, spec DeviceSpec) (*reconcile.Result, error) {
	return reconcile.Run(&deviceReconciler{api: api, spec: spec})
}

func (r *deviceReconciler) Validate() error {
	if err := validateState(r.spec.State); err != nil {
		return err
	}
	if err := model.ValidateName(r.spec.Name, model.MaxNameLength, "device_name"); err != nil {
		return err
	}
	if r.spec.NewName != "" {
		if err := model.ValidateName(r.spec.NewName, model.MaxNameLength, "new_device_name"); err != nil {
			return err
		}
	}
	switch r.spec.Geometry {
	case "", model.GeometryRaid0, model.GeometryRaid1, model.GeometryRaidC:
	default:
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid geometry %q, expected %s, %s or %s",
			r.spec.Geometry, model.GeometryRaid0, model.GeometryRaid1, model.GeometryRaidC)
	}
	if len(r.spec.Extents) > 0 && r.spec.ExtentState != "" &&
		r.spec.ExtentState != MemberPresentInDevice && r.spec.ExtentState != MemberAbsentInDevice {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid extent_state %q, expected %q or %q",
			r.spec.ExtentState, MemberPresentInDevice, MemberAbsentInDevice)
	}
	if r.spec.MirrorName != "" && r.spec.MirrorState != MemberPresentInDevice &&
		r.spec.MirrorState != MemberAbsentInDevice {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid mirror_state %q, expected %q or %q",
			r.spec.MirrorState, MemberPresentInDevice, MemberAbsentInDevice)
	}
	if r.spec.TransferSize != 0 {
		if err := model.ValidateTransferSize(r.spec.TransferSize); err != nil {
			return err
		}
	}
	return nil
}

// Fetch resolves the name against the cluster's devices first, then against
// the distributed namespace so that mirror operations on distributed
// devices are served by the same task shape.
func (r *deviceReconciler) Fetch() (interface{}, error) {
	device, err := r.api.GetDevice(r.spec.Cluster, r.spec.Name)
	if err == nil {
		return device, nil
	}
	if !verrors.IsNotFound(err) {
		return nil, err
	}
	if r.spec.MirrorName != "" {
		dist, err := r.api.GetDistributedDevice(r.spec.Name)
		if err == nil {
			r.distributed = dist
			return nil, nil
		}
		if !verrors.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, nil
}

func (r *deviceReconciler) Check(current interface{}) error {
	device, _ := current.(*model.Device)

	if device == nil && r.distributed == nil && r.spec.State == StatePresent {
		creating := len(r.spec.Extents) > 0 && r.spec.ExtentState == MemberPresentInDevice
		if !creating {
			return verrors.NewVplexErrorf(verrors.NotFound,
				"could not find device %s in %s", r.spec.Name, r.spec.Cluster)
		}
		if r.spec.NewName != "" {
			return errCreateAndRename("device")
		}
		geometry := r.geometry()
		if r.spec.StripeDepth != "" && geometry != model.GeometryRaid0 {
			return verrors.NewVplexErrorf(verrors.InvalidArgument,
				"stripe_depth is not applicable to a %s device", geometry)
		}
		if geometry == model.GeometryRaid0 && r.spec.StripeDepth == "" {
			return verrors.NewVplexErrorf(verrors.InvalidArgument,
				"stripe_depth is required for a %s device", geometry)
		}
	}

	if device != nil && r.spec.State == StateAbsent {
		if device.Rebuilding() {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not delete device %s while it is rebuilding", device.Name)
		}
		if device.VirtualVolume != "" {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not delete device %s in %s, it is in use by virtual volume %s",
				device.Name, r.spec.Cluster, model.NameFromURI(device.VirtualVolume))
		}
	}

	if device != nil && r.spec.NewName != "" && r.spec.NewName != device.Name {
		if _, err := r.api.GetDevice(r.spec.Cluster, r.spec.NewName); err == nil {
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"device name %s is already present in %s", r.spec.NewName, r.spec.Cluster)
		} else if !verrors.IsNotFound(err) {
			return err
		}
	}

	if device != nil && r.spec.TransferSize != 0 && device.Geometry != model.GeometryRaid1 {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not set transfer_size, device %s in %s is not %s",
			device.Name, r.spec.Cluster, model.GeometryRaid1)
	}
	return nil
}

func (r *deviceReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	device, _ := current.(*model.Device)

	if r.spec.State == StateAbsent {
		if device == nil {
			log.Infof("device %s is already absent from %s", r.spec.Name, r.spec.Cluster)
			return nil, nil
		}
		return []reconcile.Action{{
			Summary: "delete device " + r.spec.Name,
			Apply: func() (interface{}, error) {
				if err := r.api.DeleteDevice(r.spec.Cluster, r.spec.Name); err != nil {
					return nil, err
				}
				return nil, nil
			},
		}}, nil
	}

	if device == nil && r.distributed == nil {
		return r.planCreate()
	}

	var ops []model.PatchOp
	if device != nil {
		if r.spec.NewName != "" {
			ops = append(ops, reconcile.ReplaceIfChanged("/name", device.Name, r.spec.NewName)...)
		}
		if r.spec.TransferSize != 0 && device.TransferSize != r.spec.TransferSize {
			ops = append(ops, model.PatchOp{
				Op: model.OpReplace, Path: "/transfer_size", Value: r.spec.TransferSize,
			})
		}
		extentOps, err := r.planExtents(device)
		if err != nil {
			return nil, err
		}
		ops = append(ops, extentOps...)
	}

	if r.spec.MirrorName != "" {
		mirrorOps, err := r.planMirror(device)
		if err != nil {
			return nil, err
		}
		ops = append(ops, mirrorOps...)
	}
	if len(ops) == 0 {
		return nil, nil
	}

	allOps := ops
	if r.distributed != nil {
		return []reconcile.Action{{
			Summary: "patch distributed device " + r.spec.Name,
			Apply: func() (interface{}, error) {
				return r.api.PatchDistributedDevice(r.spec.Name, allOps)
			},
		}}, nil
	}
	return []reconcile.Action{{
		Summary: "patch device " + r.spec.Name,
		Apply: func() (interface{}, error) {
			return r.api.PatchDevice(r.spec.Cluster, r.spec.Name, allOps)
		},
	}}, nil
}

func (r *deviceReconciler) geometry() string {
	if r.spec.Geometry == "" {
		return model.GeometryRaid1
	}
	return r.spec.Geometry
}

func (r *deviceReconciler) planCreate() ([]reconcile.Action, error) {
	geometry := r.geometry()
	payload := map[string]interface{}{
		"name":        r.spec.Name,
		"geometry":    geometry,
		"primary_leg": client.ExtentURI(r.spec.Cluster, r.spec.Extents[0]),
	}
	if geometry == model.GeometryRaid0 {
		code, err := model.StripeDepthCode(r.spec.StripeDepth)
		if err != nil {
			return nil, err
		}
		payload["stripe_depth"] = code
	}
	if len(r.spec.Extents) > 1 {
		secondary := make([]string, 0, len(r.spec.Extents)-1)
		for _, extent := range r.spec.Extents[1:] {
			secondary = append(secondary, client.ExtentURI(r.spec.Cluster, extent))
		}
		payload["secondary_legs"] = secondary
	}
	return []reconcile.Action{{
		Summary: "create device " + r.spec.Name,
		Apply: func() (interface{}, error) {
			return r.api.CreateDevice(r.spec.Cluster, payload)
		},
	}}, nil
}

// planExtents emits leg add/remove ops for raid-1 devices. The pre-checks
// walk each extent's use so that an extent already serving this device is a
// no-op and one serving another device is a hard failure.
func (r *deviceReconciler) planExtents(device *model.Device) ([]model.PatchOp, error) {
	if len(r.spec.Extents) == 0 || r.spec.ExtentState == "" {
		return nil, nil
	}
	if device.Geometry != model.GeometryRaid1 {
		return r.checkNonMirroredExtents(device)
	}

	var ops []model.PatchOp
	for _, extentName := range r.spec.Extents {
		extent, err := r.api.GetExtent(r.spec.Cluster, extentName)
		if err != nil {
			if verrors.IsNotFound(err) {
				return nil, verrors.NewVplexErrorf(verrors.NotFound,
					"could not find extent %s in %s", extentName, r.spec.Cluster)
			}
			return nil, err
		}
		usedByDevice := ""
		if extent.Use == model.VolumeUseUsed && len(extent.UsedBy) > 0 {
			usedByDevice = model.NameFromURI(extent.UsedBy[0])
		}
		extentURI := client.ExtentURI(r.spec.Cluster, extentName)

		if r.spec.ExtentState == MemberPresentInDevice {
			switch {
			case extent.Use == model.VolumeUseClaimed:
				if device.Capacity > extent.Capacity {
					return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
						"could not attach extent %s to device %s in %s, the device is larger than the extent",
						extentName, device.Name, r.spec.Cluster)
				}
				ops = append(ops, model.PatchOp{Op: model.OpAdd, Path: "/legs", Value: extentURI})
			case usedByDevice == device.Name:
				log.Infof("extent %s is already a leg of device %s in %s",
					extentName, device.Name, r.spec.Cluster)
			default:
				return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
					"extent %s is used by another device %s in %s",
					extentName, usedByDevice, r.spec.Cluster)
			}
		} else {
			switch {
			case usedByDevice == device.Name:
				if device.Rebuilding() {
					return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
						"could not remove extent %s while device %s is rebuilding",
						extentName, device.Name)
				}
				ops = append(ops, model.PatchOp{Op: model.OpRemove, Path: "/legs", Value: extentURI})
			default:
				log.Infof("extent %s is not a leg of device %s in %s",
					extentName, device.Name, r.spec.Cluster)
			}
		}
	}
	return ops, nil
}

// checkNonMirroredExtents walks the device map so that an extent request on
// a raid-0 or raid-c device fails only when it would actually change state.
func (r *deviceReconciler) checkNonMirroredExtents(device *model.Device) ([]model.PatchOp, error) {
	node, err := r.api.GetMap(client.DeviceURI(r.spec.Cluster, device.Name))
	if err != nil {
		return nil, err
	}
	members := make(map[string]bool, len(node.Children))
	for _, child := range node.Children {
		members[model.NameFromURI(child)] = true
	}
	for _, extentName := range r.spec.Extents {
		changes := (r.spec.ExtentState == MemberPresentInDevice && !members[extentName]) ||
			(r.spec.ExtentState == MemberAbsentInDevice && members[extentName])
		if changes {
			return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"add and remove of extents is supported only on a %s device", model.GeometryRaid1)
		}
		log.Infof("extent %s membership of device %s in %s is already as requested",
			extentName, device.Name, r.spec.Cluster)
	}
	return nil, nil
}

func (r *deviceReconciler) planMirror(device *model.Device) ([]model.PatchOp, error) {
	targetCluster := r.spec.TargetCluster
	if targetCluster == "" {
		targetCluster = r.spec.Cluster
	}
	mirrorURI := client.DeviceURI(targetCluster, r.spec.MirrorName)

	deviceURI := client.DeviceURI(r.spec.Cluster, r.spec.Name)
	capacity := int64(0)
	label := "device"
	if r.distributed != nil {
		deviceURI = client.DistributedDeviceURI(r.spec.Name)
		capacity = r.distributed.Capacity
		label = "distributed device"
	} else {
		capacity = device.Capacity
	}

	node, err := r.api.GetMap(deviceURI)
	if err != nil {
		return nil, err
	}
	attached := false
	for _, child := range node.Children {
		if model.CollectionFromURI(child) == "devices" && child == mirrorURI {
			attached = true
			break
		}
	}

	if r.spec.MirrorState == MemberPresentInDevice {
		if attached {
			log.Infof("mirror %s is already attached to %s %s", r.spec.MirrorName, label, r.spec.Name)
			return nil, nil
		}
		mirror, err := r.api.GetDevice(targetCluster, r.spec.MirrorName)
		if err != nil {
			if verrors.IsNotFound(err) {
				return nil, verrors.NewVplexErrorf(verrors.NotFound,
					"could not add mirror %s to %s %s, the mirror is not present",
					r.spec.MirrorName, label, r.spec.Name)
			}
			return nil, err
		}
		if capacity > mirror.Capacity {
			return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"the capacity of mirror %s must not be smaller than %s %s",
				r.spec.MirrorName, label, r.spec.Name)
		}
		return []model.PatchOp{{Op: model.OpAdd, Path: "/legs", Value: mirrorURI}}, nil
	}

	if !attached {
		log.Infof("mirror %s is not attached to %s %s", r.spec.MirrorName, label, r.spec.Name)
		return nil, nil
	}
	return []model.PatchOp{{Op: model.OpRemove, Path: "/legs", Value: mirrorURI}}, nil
}
