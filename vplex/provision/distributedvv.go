// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// DistributedVirtualVolumeSpec is the desired state of a virtual volume on
// top of a distributed device. Either Name or ID identifies the volume.
type DistributedVirtualVolumeSpec struct {
	Name              string
	ID                string
	NewName           string
	DistributedDevice string
	Thin              *bool
	Expand            bool
	State             string
}

type distributedVVReconciler struct {
	api  *client.Client
	spec DistributedVirtualVolumeSpec
}

var _ reconcile.Reconciler = (*distributedVVReconciler)(nil)

// ReconcileDistributedVirtualVolume converges a distributed virtual volume
// to the requested state.
func ReconcileDistributedVirtualVolume(api *client.Client, spec DistributedVirtualVolumeSpec) (*reconcile.Result, error) {
	return reconcile.Run(&distributedVVReconciler{api: api, spec: spec})
}

func (r *distributedVVReconciler) Validate() error {
	if err := validateState(r.spec.State); err != nil {
		return err
	}
	if r.spec.Name == "" && r.spec.ID == "" {
		return verrors.NewVplexError(verrors.InvalidArgument,
			"either a distributed virtual volume name or id is required")
	}
	if r.spec.Name != "" {
		if err := model.ValidateName(r.spec.Name, model.MaxNameLength, "distributed_virtual_volume_name"); err != nil {
			return err
		}
	}
	if r.spec.NewName != "" {
		if err := model.ValidateName(r.spec.NewName, model.MaxNameLength, "new_distributed_virtual_volume_name"); err != nil {
			return err
		}
	}
	return nil
}

func (r *distributedVVReconciler) Fetch() (interface{}, error) {
	if r.spec.Name != "" {
		volume, err := r.api.GetDistributedVirtualVolume(r.spec.Name)
		if err != nil {
			return nil, absentOnNotFound(err)
		}
		return volume, nil
	}
	volumes, err := r.api.GetDistributedVirtualVolumes(map[string]string{"fields": "name,system_id"})
	if err != nil {
		return nil, err
	}
	for i := range volumes {
		if volumes[i].SystemID == r.spec.ID {
			return r.api.GetDistributedVirtualVolume(volumes[i].Name)
		}
	}
	return nil, nil
}

func (r *distributedVVReconciler) Check(current interface{}) error {
	volume, _ := current.(*model.VirtualVolume)

	mutating := (volume == nil && r.spec.State == StatePresent) ||
		(volume != nil && r.spec.State == StateAbsent) ||
		r.spec.NewName != "" || r.spec.Expand
	if mutating {
		if err := checkDistributedHealthy(r.api); err != nil {
			return err
		}
	}

	if volume == nil && r.spec.State == StatePresent {
		if r.spec.DistributedDevice == "" {
			return verrors.NewVplexErrorf(verrors.NotFound,
				"could not find distributed virtual volume %s", r.identity())
		}
		if r.spec.Name == "" {
			return verrors.NewVplexError(verrors.InvalidArgument,
				"a name is required to create a distributed virtual volume")
		}
		if r.spec.NewName != "" {
			return errCreateAndRename("distributed virtual volume")
		}
		if err := r.checkNameFree(r.spec.Name); err != nil {
			return err
		}
		device, err := r.api.GetDistributedDevice(r.spec.DistributedDevice)
		if err != nil {
			if verrors.IsNotFound(err) {
				return verrors.NewVplexErrorf(verrors.NotFound,
					"could not find distributed device %s", r.spec.DistributedDevice)
			}
			return err
		}
		if device.VirtualVolume != "" {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"distributed device %s already carries virtual volume %s",
				device.Name, model.NameFromURI(device.VirtualVolume))
		}
		return nil
	}

	if volume != nil && r.spec.State == StateAbsent {
		if volume.ConsistencyGroup != "" {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not delete distributed virtual volume %s, it is part of consistency group %s",
				volume.Name, model.NameFromURI(volume.ConsistencyGroup))
		}
		if volume.ServiceStatus != model.ServiceStatusUnexported {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not delete distributed virtual volume %s, it is still exported", volume.Name)
		}
	}

	if volume != nil && r.spec.NewName != "" && r.spec.NewName != volume.Name {
		if err := r.checkNameFree(r.spec.NewName); err != nil {
			return err
		}
	}

	if volume != nil && r.spec.Expand && volume.ExpansionMethod == "not-supported" {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"distributed virtual volume %s does not support expansion", volume.Name)
	}
	return nil
}

func (r *distributedVVReconciler) identity() string {
	if r.spec.Name != "" {
		return r.spec.Name
	}
	return r.spec.ID
}

// checkNameFree scans the distributed namespace and the local virtual
// volumes of every cluster for the candidate name.
func (r *distributedVVReconciler) checkNameFree(name string) error {
	if _, err := r.api.GetDistributedVirtualVolume(name); err == nil {
		return verrors.NewVplexErrorf(verrors.AlreadyExists,
			"a distributed virtual volume named %s already exists", name)
	} else if !verrors.IsNotFound(err) {
		return err
	}
	clusters, err := r.api.GetClusters(nil)
	if err != nil {
		return err
	}
	for _, cl := range clusters {
		if _, err := r.api.GetVirtualVolume(cl.Name, name); err == nil {
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"a virtual volume named %s already exists in %s", name, cl.Name)
		} else if !verrors.IsNotFound(err) {
			return err
		}
	}
	return nil
}

func (r *distributedVVReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	volume, _ := current.(*model.VirtualVolume)

	if r.spec.State == StateAbsent {
		if volume == nil {
			log.Infof("distributed virtual volume %s is already absent", r.identity())
			return nil, nil
		}
		name := volume.Name
		return []reconcile.Action{{
			Summary: "delete distributed virtual volume " + name,
			Apply: func() (interface{}, error) {
				if err := r.api.DeleteDistributedVirtualVolume(name); err != nil {
					return nil, err
				}
				return nil, nil
			},
		}}, nil
	}

	if volume == nil {
		thin := true
		if r.spec.Thin != nil {
			thin = *r.spec.Thin
		}
		return []reconcile.Action{{
			Summary: "create distributed virtual volume " + r.spec.Name,
			Apply: func() (interface{}, error) {
				created, err := r.api.CreateDistributedVirtualVolume(map[string]interface{}{
					"device": client.DistributedDeviceURI(r.spec.DistributedDevice),
					"thin":   thin,
				})
				if err != nil {
					return nil, err
				}
				if created.Name == r.spec.Name {
					return created, nil
				}
				return r.api.PatchDistributedVirtualVolume(created.Name, []model.PatchOp{
					{Op: model.OpReplace, Path: "/name", Value: r.spec.Name},
				})
			},
		}}, nil
	}

	var actions []reconcile.Action
	if r.spec.NewName != "" && r.spec.NewName != volume.Name {
		name := volume.Name
		actions = append(actions, reconcile.Action{
			Summary: "rename distributed virtual volume " + name + " to " + r.spec.NewName,
			Apply: func() (interface{}, error) {
				return r.api.PatchDistributedVirtualVolume(name, []model.PatchOp{
					{Op: model.OpReplace, Path: "/name", Value: r.spec.NewName},
				})
			},
		})
	}

	if r.spec.Expand {
		if volume.ExpandableCapacity <= 0 {
			log.Infof("distributed virtual volume %s has no expandable capacity", volume.Name)
		} else {
			name := volume.Name
			actions = append(actions, reconcile.Action{
				Summary: "expand distributed virtual volume " + name,
				Apply: func() (interface{}, error) {
					return r.api.ExpandDistributedVirtualVolume(name)
				},
			})
		}
	}
	return actions, nil
}
