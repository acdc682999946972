// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"strings"
	"time"

	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// Remote access requests for a virtual volume's supporting device.
const (
	RemoteAccessEnable  = "enable"
	RemoteAccessDisable = "disable"
)

// Volume composition kinds derived from the supporting device's children.
const (
	volumeTypeMirrored = "mirrored"
	volumeTypeExpanded = "expanded"
)

// VirtualVolumeSpec is the desired state of a cluster-local virtual volume.
// Either Name or ID identifies the volume.
type VirtualVolumeSpec struct {
	Cluster           string
	Name              string
	ID                string
	NewName           string
	SupportingDevice  string
	Thin              *bool
	WaitForRebuild    bool
	Expand            bool
	RemoteAccess      string
	AdditionalDevices []string
	CacheInvalidate   bool
	State             string
}

type virtualVolumeReconciler struct {
	api  *client.Client
	spec VirtualVolumeSpec
}

var _ reconcile.Reconciler = (*virtualVolumeReconciler)(nil)

// ReconcileVirtualVolume converges a virtual volume to the requested state.
func ReconcileVirtualVolume(api *client.Client, spec VirtualVolumeSpec) (*reconcile.Result, error) {
	return reconcile.Run(&virtualVolumeReconciler{api: api, spec: spec})
}

func (r *virtualVolumeReconciler) Validate() error {
	if err := validateState(r.spec.State); err != nil {
		return err
	}
	if r.spec.Name == "" && r.spec.ID == "" {
		return verrors.NewVplexError(verrors.InvalidArgument,
			"either a virtual volume name or a virtual volume id is required")
	}
	if r.spec.Name != "" {
		if err := model.ValidateName(r.spec.Name, model.MaxNameLength, "virtual_volume_name"); err != nil {
			return err
		}
	}
	if r.spec.NewName != "" {
		if err := model.ValidateName(r.spec.NewName, model.MaxNameLength, "new_virtual_volume_name"); err != nil {
			return err
		}
	}
	if r.spec.RemoteAccess != "" && r.spec.RemoteAccess != RemoteAccessEnable &&
		r.spec.RemoteAccess != RemoteAccessDisable {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid remote_access %q, expected %q or %q",
			r.spec.RemoteAccess, RemoteAccessEnable, RemoteAccessDisable)
	}
	if len(r.spec.AdditionalDevices) > 0 && !r.spec.Expand {
		return verrors.NewVplexError(verrors.InvalidArgument,
			"additional devices were supplied but expand is not requested")
	}
	return nil
}

// Fetch resolves by name first, then by system id. Only local volumes are
// served here, the distributed namespace has its own task shape.
func (r *virtualVolumeReconciler) Fetch() (interface{}, error) {
	if r.spec.Name != "" {
		volume, err := r.api.GetVirtualVolume(r.spec.Cluster, r.spec.Name)
		if err == nil {
			if volume.Locality != "" && volume.Locality != "local" {
				return nil, nil
			}
			return volume, nil
		}
		if !verrors.IsNotFound(err) {
			return nil, err
		}
	}
	if r.spec.ID == "" {
		return nil, nil
	}
	volumes, err := r.api.GetVirtualVolumes(r.spec.Cluster, map[string]string{"fields": "name,system_id"})
	if err != nil {
		return nil, err
	}
	for i := range volumes {
		if volumes[i].SystemID == r.spec.ID {
			full, err := r.api.GetVirtualVolume(r.spec.Cluster, volumes[i].Name)
			if err != nil {
				return nil, err
			}
			if full.Locality != "" && full.Locality != "local" {
				return nil, nil
			}
			return full, nil
		}
	}
	return nil, nil
}

func (r *virtualVolumeReconciler) Check(current interface{}) error {
	volume, _ := current.(*model.VirtualVolume)

	if volume != nil && r.spec.State == StateAbsent {
		if volume.ConsistencyGroup != "" {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not delete virtual volume %s in %s, it is part of consistency group %s",
				volume.Name, r.spec.Cluster, model.NameFromURI(volume.ConsistencyGroup))
		}
		if volume.ServiceStatus != model.ServiceStatusUnexported {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not delete virtual volume %s in %s, it is still exported",
				volume.Name, r.spec.Cluster)
		}
		return nil
	}

	if volume == nil && r.spec.State == StatePresent {
		if r.spec.SupportingDevice == "" {
			return verrors.NewVplexErrorf(verrors.NotFound,
				"could not find virtual volume %s in %s", r.identity(), r.spec.Cluster)
		}
		if r.spec.Name == "" {
			return verrors.NewVplexError(verrors.InvalidArgument,
				"a virtual volume name is required to create from a supporting device")
		}
		if r.spec.NewName != "" {
			return errCreateAndRename("virtual volume")
		}
		if err := r.checkNameFree(r.spec.Name); err != nil {
			return err
		}
		return r.checkSupportingDevice()
	}

	if volume != nil && r.spec.NewName != "" && r.spec.NewName != volume.Name {
		if err := r.checkNameFree(r.spec.NewName); err != nil {
			return err
		}
	}
	return nil
}

func (r *virtualVolumeReconciler) identity() string {
	if r.spec.Name != "" {
		return r.spec.Name
	}
	return r.spec.ID
}

func (r *virtualVolumeReconciler) checkNameFree(name string) error {
	if volume, err := r.api.GetDistributedVirtualVolume(name); err == nil {
		if volume.Locality == "distributed" {
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"a distributed virtual volume named %s already exists", name)
		}
	} else if !verrors.IsNotFound(err) {
		return err
	}
	if _, err := r.api.GetVirtualVolume(r.spec.Cluster, name); err == nil {
		return verrors.NewVplexErrorf(verrors.AlreadyExists,
			"a virtual volume named %s already exists in %s", name, r.spec.Cluster)
	} else if !verrors.IsNotFound(err) {
		return err
	}
	return nil
}

func (r *virtualVolumeReconciler) checkSupportingDevice() error {
	device, err := r.api.GetDevice(r.spec.Cluster, r.spec.SupportingDevice)
	if err != nil {
		if verrors.IsNotFound(err) {
			return verrors.NewVplexErrorf(verrors.NotFound,
				"could not find supporting device %s in %s", r.spec.SupportingDevice, r.spec.Cluster)
		}
		return err
	}
	if !device.TopLevel {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"device %s is already in use in %s", device.Name, r.spec.Cluster)
	}
	if device.VirtualVolume != "" {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"device %s is already attached to virtual volume %s in %s",
			device.Name, model.NameFromURI(device.VirtualVolume), r.spec.Cluster)
	}
	if r.spec.WaitForRebuild && device.Rebuilding() {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"device %s is rebuilding in %s, try again later", device.Name, r.spec.Cluster)
	}
	return nil
}

func (r *virtualVolumeReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	volume, _ := current.(*model.VirtualVolume)

	if r.spec.State == StateAbsent {
		if volume == nil {
			log.Infof("virtual volume %s is already absent from %s", r.identity(), r.spec.Cluster)
			return nil, nil
		}
		name := volume.Name
		return []reconcile.Action{{
			Summary: "delete virtual volume " + name,
			Apply: func() (interface{}, error) {
				if err := r.api.DeleteVirtualVolume(r.spec.Cluster, name); err != nil {
					return nil, err
				}
				return nil, nil
			},
		}}, nil
	}

	if volume == nil {
		return r.planCreate(), nil
	}

	var actions []reconcile.Action
	if r.spec.NewName != "" && r.spec.NewName != volume.Name {
		name := volume.Name
		actions = append(actions, reconcile.Action{
			Summary: "rename virtual volume " + name + " to " + r.spec.NewName,
			Apply: func() (interface{}, error) {
				return r.api.PatchVirtualVolume(r.spec.Cluster, name, []model.PatchOp{
					{Op: model.OpReplace, Path: "/name", Value: r.spec.NewName},
				})
			},
		})
	}

	remoteAction, err := r.planRemoteAccess(volume)
	if err != nil {
		return nil, err
	}
	if remoteAction != nil {
		actions = append(actions, *remoteAction)
	}

	if r.spec.CacheInvalidate && volume.ServiceStatus != model.ServiceStatusUnexported {
		invalidate, err := r.planCacheInvalidate(volume)
		if err != nil {
			return nil, err
		}
		actions = append(actions, invalidate)
	}

	if r.spec.Expand {
		expandActions, err := r.planExpand(volume)
		if err != nil {
			return nil, err
		}
		actions = append(actions, expandActions...)
	}
	return actions, nil
}

func (r *virtualVolumeReconciler) planCreate() []reconcile.Action {
	thin := true
	if r.spec.Thin != nil {
		thin = *r.spec.Thin
	}
	return []reconcile.Action{{
		Summary: "create virtual volume " + r.spec.Name,
		Apply: func() (interface{}, error) {
			created, err := r.api.CreateVirtualVolume(r.spec.Cluster, map[string]interface{}{
				"thin":   thin,
				"device": client.DeviceURI(r.spec.Cluster, r.spec.SupportingDevice),
			})
			if err != nil {
				return nil, err
			}
			if created.Name == r.spec.Name {
				return created, nil
			}
			return r.api.PatchVirtualVolume(r.spec.Cluster, created.Name, []model.PatchOp{
				{Op: model.OpReplace, Path: "/name", Value: r.spec.Name},
			})
		},
	}}
}

// planRemoteAccess toggles the visibility of the supporting device. The
// toggle is refused when the volume or device name is also present on
// another cluster, global visibility would then collide.
func (r *virtualVolumeReconciler) planRemoteAccess(volume *model.VirtualVolume) (*reconcile.Action, error) {
	if r.spec.RemoteAccess == "" {
		return nil, nil
	}
	deviceName := model.NameFromURI(volume.SupportingDevice)

	desired := ""
	if volume.Visibility == "local" && r.spec.RemoteAccess == RemoteAccessEnable {
		desired = "global"
	} else if volume.Visibility == "global" && r.spec.RemoteAccess == RemoteAccessDisable {
		desired = "local"
	}
	if desired == "" {
		log.Infof("remote access of virtual volume %s is already %sd", volume.Name, r.spec.RemoteAccess)
		return nil, nil
	}

	if err := r.checkUniqueAcrossClusters(volume.Name, deviceName); err != nil {
		return nil, err
	}
	action := reconcile.Action{
		Summary: r.spec.RemoteAccess + " remote access of virtual volume " + volume.Name,
		Apply: func() (interface{}, error) {
			return r.api.PatchDevice(r.spec.Cluster, deviceName, []model.PatchOp{
				{Op: model.OpReplace, Path: "/visibility", Value: desired},
			})
		},
	}
	return &action, nil
}

func (r *virtualVolumeReconciler) checkUniqueAcrossClusters(volumeName, deviceName string) error {
	clusters, err := r.api.GetClusters(nil)
	if err != nil {
		return err
	}
	for _, cl := range clusters {
		if cl.Name == r.spec.Cluster {
			continue
		}
		if _, err := r.api.GetVirtualVolume(cl.Name, volumeName); err == nil {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not update remote access of virtual volume %s in %s, a volume with the same name exists in %s",
				volumeName, r.spec.Cluster, cl.Name)
		} else if !verrors.IsNotFound(err) {
			return err
		}
		if _, err := r.api.GetDevice(cl.Name, deviceName); err == nil {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not update remote access of virtual volume %s in %s, device %s also exists in %s",
				volumeName, r.spec.Cluster, deviceName, cl.Name)
		} else if !verrors.IsNotFound(err) {
			return err
		}
	}
	return nil
}

func (r *virtualVolumeReconciler) planCacheInvalidate(volume *model.VirtualVolume) (reconcile.Action, error) {
	setup, err := r.api.GetVplexSetup()
	if err != nil {
		return reconcile.Action{}, err
	}
	if !strings.Contains(setup.ProductVersion, "6.2") {
		return reconcile.Action{}, verrors.NewVplexError(verrors.FailedPrecondition,
			"cache invalidation requires appliance version 6.2 or lesser")
	}
	if err := r.api.CheckDirectorsReachable(); err != nil {
		return reconcile.Action{}, err
	}
	name := volume.Name
	return reconcile.Action{
		Summary: "invalidate cache of virtual volume " + name,
		Apply: func() (interface{}, error) {
			return r.api.CacheInvalidateVirtualVolume(r.spec.Cluster, name)
		},
	}, nil
}

// planExpand grows the volume either onto additional devices or into the
// back-end expandable capacity. The additional device list must repeat the
// devices already concatenated, in order; only the suffix is applied.
func (r *virtualVolumeReconciler) planExpand(volume *model.VirtualVolume) ([]reconcile.Action, error) {
	supportingDevice := model.NameFromURI(volume.SupportingDevice)

	if len(r.spec.AdditionalDevices) == 0 {
		if volume.ExpandableCapacity <= 0 {
			log.Infof("virtual volume %s has no expandable capacity", volume.Name)
			return nil, nil
		}
		name := volume.Name
		return []reconcile.Action{{
			Summary: "expand virtual volume " + name + " into back-end capacity",
			Apply: func() (interface{}, error) {
				return r.api.ExpandVirtualVolume(r.spec.Cluster, name, map[string]interface{}{
					"skip_init": "False",
				})
			},
		}}, nil
	}

	children, volumeType, err := r.deviceChildren(supportingDevice)
	if err != nil {
		return nil, err
	}
	if volumeType == volumeTypeMirrored {
		return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not expand virtual volume %s in %s, a mirrored volume cannot be expanded",
			volume.Name, r.spec.Cluster)
	}

	suffix, err := reconcile.OrderedPrefixSuffix(children, r.spec.AdditionalDevices)
	if err != nil {
		return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not expand virtual volume %s in %s, additional devices must list the attached devices in order, currently %v",
			volume.Name, r.spec.Cluster, children)
	}
	if len(suffix) == 0 {
		log.Infof("all additional devices are already attached to virtual volume %s", volume.Name)
		return nil, nil
	}

	var actions []reconcile.Action
	for _, deviceName := range suffix {
		device, err := r.api.GetDevice(r.spec.Cluster, deviceName)
		if err != nil {
			if verrors.IsNotFound(err) {
				return nil, verrors.NewVplexErrorf(verrors.NotFound,
					"could not find device %s in %s", deviceName, r.spec.Cluster)
			}
			return nil, err
		}
		if device.VirtualVolume != "" || !device.TopLevel {
			return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"device %s is already in use in %s", deviceName, r.spec.Cluster)
		}
		spare := client.DeviceURI(r.spec.Cluster, deviceName)
		volumeName := volume.Name
		actions = append(actions, reconcile.Action{
			Summary: "expand virtual volume " + volumeName + " onto device " + deviceName,
			Apply: func() (interface{}, error) {
				return r.api.ExpandVirtualVolume(r.spec.Cluster, volumeName, map[string]interface{}{
					"skip_init":     "False",
					"spare_storage": spare,
				})
			},
		})
	}
	return actions, nil
}

// deviceChildren returns the non-extent children of the supporting device in
// map order, with the appliance-generated expansion legs filtered out, and
// classifies the volume as mirrored or expanded.
func (r *virtualVolumeReconciler) deviceChildren(supportingDevice string) ([]string, string, error) {
	node, err := r.api.GetMap(client.DeviceURI(r.spec.Cluster, supportingDevice))
	if err != nil {
		return nil, "", err
	}

	var children []string
	expanded := false
	for _, child := range node.Children {
		if model.CollectionFromURI(child) == "extents" {
			continue
		}
		name := model.NameFromURI(child)
		if hasExpansionSuffix(name, supportingDevice) {
			expanded = true
			continue
		}
		children = append(children, name)
	}

	volumeType := ""
	if expanded {
		volumeType = volumeTypeExpanded
	} else if len(children) > 0 {
		volumeType = volumeTypeMirrored
	}
	return children, volumeType, nil
}

// hasExpansionSuffix detects the appliance naming scheme for expansion legs,
// which appends a creation stamp of the form 2020Jan to the device name.
func hasExpansionSuffix(childName, deviceName string) bool {
	parts := strings.Split(childName, deviceName)
	suffix := parts[len(parts)-1]
	if len(suffix) < 7 {
		return false
	}
	_, err := time.Parse("2006Jan", suffix[:7])
	return err == nil
}
