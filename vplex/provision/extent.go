// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// ExtentSpec is the desired state of an extent carved from a claimed
// storage volume.
type ExtentSpec struct {
	Cluster       string
	Name          string
	NewName       string
	StorageVolume string
	State         string
}

type extentReconciler struct {
	api  *client.Client
	spec ExtentSpec
}

var _ reconcile.Reconciler = (*extentReconciler)(nil)

// ReconcileExtent converges an extent to the requested state.
func ReconcileExtent(api *client.Client, spec ExtentSpec) (*reconcile.Result, error) {
	return reconcile.Run(&extentReconciler{api: api, spec: spec})
}

func (r *extentReconciler) Validate() error {
	if err := validateState(r.spec.State); err != nil {
		return err
	}
	if err := model.ValidateName(r.spec.Name, model.MaxNameLength, "extent_name"); err != nil {
		return err
	}
	if r.spec.NewName != "" {
		if err := model.ValidateName(r.spec.NewName, model.MaxNameLength, "new_extent_name"); err != nil {
			return err
		}
	}
	return nil
}

func (r *extentReconciler) Fetch() (interface{}, error) {
	extents, err := r.api.GetExtents(r.spec.Cluster, map[string]string{"fields": "name"})
	if err != nil {
		return nil, err
	}
	for i := range extents {
		if extents[i].Name == r.spec.Name {
			return r.api.GetExtent(r.spec.Cluster, r.spec.Name)
		}
	}
	return nil, nil
}

func (r *extentReconciler) Check(current interface{}) error {
	extent, _ := current.(*model.Extent)

	if extent == nil && r.spec.State == StatePresent {
		if r.spec.NewName != "" {
			return errCreateAndRename("extent")
		}
		if r.spec.StorageVolume == "" {
			return verrors.NewVplexErrorf(verrors.InvalidArgument,
				"a storage volume is required to create extent %s", r.spec.Name)
		}
		volume, err := r.api.GetStorageVolume(r.spec.Cluster, r.spec.StorageVolume)
		if err != nil {
			if verrors.IsNotFound(err) {
				return verrors.NewVplexErrorf(verrors.NotFound,
					"could not find storage volume %s in %s", r.spec.StorageVolume, r.spec.Cluster)
			}
			return err
		}
		switch volume.Use {
		case model.VolumeUseClaimed:
		case model.VolumeUseUnclaimed:
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"storage volume %s must be claimed before an extent can be created on it", volume.Name)
		default:
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"storage volume %s is %s and cannot back a new extent", volume.Name, volume.Use)
		}
	}

	if extent != nil && r.spec.State == StateAbsent && extent.Use == model.VolumeUseUsed {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not delete extent %s, it is in use by %d resource(s)",
			extent.Name, len(extent.UsedBy))
	}
	return nil
}

func (r *extentReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	extent, _ := current.(*model.Extent)

	if r.spec.State == StateAbsent {
		if extent == nil {
			log.Infof("extent %s is already absent from %s", r.spec.Name, r.spec.Cluster)
			return nil, nil
		}
		return []reconcile.Action{{
			Summary: "delete extent " + r.spec.Name,
			Apply: func() (interface{}, error) {
				if err := r.api.DeleteExtent(r.spec.Cluster, r.spec.Name); err != nil {
					return nil, err
				}
				return nil, nil
			},
		}}, nil
	}

	if extent == nil {
		// The appliance names new extents itself, so a create is followed
		// by a rename patch when its choice differs from the request.
		return []reconcile.Action{{
			Summary: "create extent " + r.spec.Name,
			Apply: func() (interface{}, error) {
				created, err := r.api.CreateExtent(r.spec.Cluster, map[string]interface{}{
					"storage_volume": client.StorageVolumeURI(r.spec.Cluster, r.spec.StorageVolume),
				})
				if err != nil {
					return nil, err
				}
				if created.Name == r.spec.Name {
					return created, nil
				}
				return r.api.PatchExtent(r.spec.Cluster, created.Name, []model.PatchOp{
					{Op: model.OpReplace, Path: "/name", Value: r.spec.Name},
				})
			},
		}}, nil
	}

	ops := reconcile.ReplaceIfChanged("/name", extent.Name, r.spec.NewName)
	if r.spec.NewName == "" || len(ops) == 0 {
		return nil, nil
	}
	return []reconcile.Action{{
		Summary: "rename extent " + r.spec.Name + " to " + r.spec.NewName,
		Apply: func() (interface{}, error) {
			return r.api.PatchExtent(r.spec.Cluster, r.spec.Name, ops)
		},
	}}, nil
}
