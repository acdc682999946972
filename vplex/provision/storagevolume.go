// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// Claim states accepted for a storage volume.
const (
	VolumeClaimed   = "claimed"
	VolumeUnclaimed = "unclaimed"
)

// StorageVolumeSpec is the desired state of a back-end storage volume.
// Either Name or ID identifies the volume; an ID is resolved against the
// system_id of the cluster's volume list.
type StorageVolumeSpec struct {
	Cluster      string
	Name         string
	ID           string
	NewName      string
	ClaimedState string
	ThinRebuild  *bool
}

type storageVolumeReconciler struct {
	api  *client.Client
	spec StorageVolumeSpec

	// resolvedName is filled during Fetch when the volume was identified
	// by ID.
	resolvedName string
}

var _ reconcile.Reconciler = (*storageVolumeReconciler)(nil)

// ReconcileStorageVolume converges a storage volume's claim state, thin
// rebuild setting and name.
func ReconcileStorageVolume(api *client.Client, spec StorageVolumeSpec) (*reconcile.Result, error) {
	return reconcile.Run(&storageVolumeReconciler{api: api, spec: spec})
}

func (r *storageVolumeReconciler) Validate() error {
	if r.spec.Name == "" && r.spec.ID == "" {
		return verrors.NewVplexError(verrors.InvalidArgument,
			"either a storage volume name or a storage volume id is required")
	}
	if r.spec.Name != "" && r.spec.ID != "" {
		return verrors.NewVplexError(verrors.InvalidArgument,
			"storage volume name and id are mutually exclusive")
	}
	if r.spec.Name != "" {
		if err := model.ValidateName(r.spec.Name, model.MaxNameLength, "storage_volume_name"); err != nil {
			return err
		}
	}
	if r.spec.NewName != "" {
		if err := model.ValidateName(r.spec.NewName, model.MaxNameLength, "new_storage_volume_name"); err != nil {
			return err
		}
	}
	if r.spec.ClaimedState != "" && r.spec.ClaimedState != VolumeClaimed &&
		r.spec.ClaimedState != VolumeUnclaimed {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid claimed_state %q, expected %q or %q",
			r.spec.ClaimedState, VolumeClaimed, VolumeUnclaimed)
	}
	return nil
}

func (r *storageVolumeReconciler) Fetch() (interface{}, error) {
	if r.spec.Name != "" {
		volume, err := r.api.GetStorageVolume(r.spec.Cluster, r.spec.Name)
		if err != nil {
			return nil, absentOnNotFound(err)
		}
		r.resolvedName = volume.Name
		return volume, nil
	}

	// ID lookup has no direct endpoint, so the list is scanned on system_id.
	volumes, err := r.api.GetStorageVolumes(r.spec.Cluster, map[string]string{"fields": "name,system_id"})
	if err != nil {
		return nil, err
	}
	for i := range volumes {
		if volumes[i].SystemID == r.spec.ID {
			full, err := r.api.GetStorageVolume(r.spec.Cluster, volumes[i].Name)
			if err != nil {
				return nil, err
			}
			r.resolvedName = full.Name
			return full, nil
		}
	}
	return nil, nil
}

func (r *storageVolumeReconciler) Check(current interface{}) error {
	volume, _ := current.(*model.StorageVolume)
	if volume == nil {
		return verrors.NewVplexErrorf(verrors.NotFound,
			"could not find storage volume %s in %s", r.identity(), r.spec.Cluster)
	}
	if volume.Use == model.VolumeUseMetadata {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"storage volume %s holds cluster meta-data and cannot be modified", volume.Name)
	}
	if r.spec.ClaimedState == VolumeUnclaimed && volume.Use == model.VolumeUseUsed {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not unclaim storage volume %s, it is in use by %d resource(s)",
			volume.Name, len(volume.UsedBy))
	}
	if r.spec.NewName != "" && volume.Use == model.VolumeUseUnclaimed &&
		r.spec.ClaimedState != VolumeClaimed {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not rename storage volume %s, unclaimed volumes cannot be renamed", volume.Name)
	}
	return nil
}

func (r *storageVolumeReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	volume := current.(*model.StorageVolume)
	name := volume.Name
	var actions []reconcile.Action

	switch r.spec.ClaimedState {
	case VolumeClaimed:
		if volume.Use == model.VolumeUseUnclaimed {
			payload := map[string]interface{}{}
			if r.spec.ThinRebuild != nil {
				payload["thin_rebuild"] = *r.spec.ThinRebuild
			}
			actions = append(actions, reconcile.Action{
				Summary: "claim storage volume " + name,
				Apply: func() (interface{}, error) {
					return r.api.ClaimStorageVolume(r.spec.Cluster, name, payload)
				},
			})
		} else {
			log.Debugf("storage volume %s is already claimed", name)
		}
	case VolumeUnclaimed:
		if volume.Use != model.VolumeUseUnclaimed {
			actions = append(actions, reconcile.Action{
				Summary: "unclaim storage volume " + name,
				Apply: func() (interface{}, error) {
					return r.api.UnclaimStorageVolume(r.spec.Cluster, name)
				},
			})
		} else {
			log.Debugf("storage volume %s is already unclaimed", name)
		}
	}

	var ops []model.PatchOp
	// Thin rebuild on an already claimed volume is patched rather than
	// folded into a claim call.
	if r.spec.ThinRebuild != nil && volume.Use != model.VolumeUseUnclaimed &&
		volume.ThinRebuild != *r.spec.ThinRebuild {
		ops = append(ops, model.PatchOp{
			Op: model.OpReplace, Path: "/thin_rebuild", Value: *r.spec.ThinRebuild,
		})
	}
	if r.spec.NewName != "" {
		ops = append(ops, reconcile.ReplaceIfChanged("/name", name, r.spec.NewName)...)
	}
	if len(ops) > 0 {
		allOps := ops
		actions = append(actions, reconcile.Action{
			Summary: "patch storage volume " + name,
			Apply: func() (interface{}, error) {
				return r.api.PatchStorageVolume(r.spec.Cluster, name, allOps)
			},
		})
	}
	return actions, nil
}

func (r *storageVolumeReconciler) identity() string {
	if r.spec.Name != "" {
		return r.spec.Name
	}
	return r.spec.ID
}
