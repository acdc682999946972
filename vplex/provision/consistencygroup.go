// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// Requested membership direction for virtual volumes in a consistency group.
const (
	VolumePresentInCG = "present-in-cg"
	VolumeAbsentInCG  = "absent-in-cg"
)

// ConsistencyGroupSpec is the desired state of a cluster-local consistency
// group.
type ConsistencyGroupSpec struct {
	Cluster            string
	Name               string
	NewName            string
	VirtualVolumes     []string
	VirtualVolumeState string
	State              string
}

type consistencyGroupReconciler struct {
	api  *client.Client
	spec ConsistencyGroupSpec
}

var _ reconcile.Reconciler = (*consistencyGroupReconciler)(nil)

// ReconcileConsistencyGroup converges a cluster-local consistency group to
// the requested state.
func ReconcileConsistencyGroup(api *client.Client, spec ConsistencyGroupSpec) (*reconcile.Result, error) {
	return reconcile.Run(&consistencyGroupReconciler{api: api, spec: spec})
}

func (r *consistencyGroupReconciler) Validate() error {
	if err := validateState(r.spec.State); err != nil {
		return err
	}
	if err := model.ValidateName(r.spec.Name, model.MaxNameLength, "cg_name"); err != nil {
		return err
	}
	if r.spec.NewName != "" {
		if err := model.ValidateName(r.spec.NewName, model.MaxNameLength, "new_cg_name"); err != nil {
			return err
		}
	}
	if len(r.spec.VirtualVolumes) > 0 && r.spec.VirtualVolumeState != VolumePresentInCG &&
		r.spec.VirtualVolumeState != VolumeAbsentInCG {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid virtual_volume_state %q, expected %q or %q",
			r.spec.VirtualVolumeState, VolumePresentInCG, VolumeAbsentInCG)
	}
	return nil
}

// Fetch locates the group through the list first: the list cannot raise on
// absence, so absence stays distinguishable from transport failures.
func (r *consistencyGroupReconciler) Fetch() (interface{}, error) {
	groups, err := r.api.GetConsistencyGroups(r.spec.Cluster, map[string]string{"fields": "name"})
	if err != nil {
		return nil, err
	}
	for i := range groups {
		if groups[i].Name == r.spec.Name {
			return r.api.GetConsistencyGroup(r.spec.Cluster, r.spec.Name)
		}
	}
	return nil, nil
}

func (r *consistencyGroupReconciler) Check(current interface{}) error {
	group, _ := current.(*model.ConsistencyGroup)

	if group == nil && r.spec.State == StatePresent {
		if r.spec.NewName != "" {
			return errCreateAndRename("consistency group")
		}
		// The local and distributed namespaces are checked against each
		// other before a create to prevent a cross-scope collision.
		if err := r.checkDistributedCollision(r.spec.Name); err != nil {
			return err
		}
	}

	if group != nil && r.spec.NewName != "" && r.spec.NewName != r.spec.Name {
		if err := r.checkRenameCollision(r.spec.NewName); err != nil {
			return err
		}
	}

	if group != nil && r.spec.State == StateAbsent && len(group.VirtualVolumes) > 0 {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not delete consistency group %s in %s, it still contains %d virtual volume(s)",
			r.spec.Name, r.spec.Cluster, len(group.VirtualVolumes))
	}
	return nil
}

func (r *consistencyGroupReconciler) checkDistributedCollision(name string) error {
	groups, err := r.api.GetDistributedConsistencyGroups(map[string]string{"fields": "name"})
	if err != nil {
		return err
	}
	for i := range groups {
		if groups[i].Name == name {
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"consistency group name %s is already used by a distributed consistency group", name)
		}
	}
	return nil
}

func (r *consistencyGroupReconciler) checkRenameCollision(newName string) error {
	groups, err := r.api.GetConsistencyGroups(r.spec.Cluster, map[string]string{"fields": "name"})
	if err != nil {
		return err
	}
	for i := range groups {
		if groups[i].Name == newName {
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"could not rename consistency group %s, name %s is already present in %s",
				r.spec.Name, newName, r.spec.Cluster)
		}
	}
	return r.checkDistributedCollision(newName)
}

func (r *consistencyGroupReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	group, _ := current.(*model.ConsistencyGroup)

	if r.spec.State == StateAbsent {
		if group == nil {
			log.Infof("consistency group %s is already absent from %s", r.spec.Name, r.spec.Cluster)
			return nil, nil
		}
		return []reconcile.Action{{
			Summary: "delete consistency group " + r.spec.Name,
			Apply: func() (interface{}, error) {
				if err := r.api.DeleteConsistencyGroup(r.spec.Cluster, r.spec.Name); err != nil {
					return nil, err
				}
				return nil, nil
			},
		}}, nil
	}

	var actions []reconcile.Action
	currentMembers := []string{}
	if group != nil {
		currentMembers = group.VirtualVolumes
	} else {
		actions = append(actions, reconcile.Action{
			Summary: "create consistency group " + r.spec.Name,
			Apply: func() (interface{}, error) {
				return r.api.CreateConsistencyGroup(r.spec.Cluster, map[string]interface{}{
					"name": r.spec.Name,
				})
			},
		})
	}

	var ops []model.PatchOp
	if group != nil && r.spec.NewName != "" {
		ops = append(ops, reconcile.ReplaceIfChanged("/name", group.Name, r.spec.NewName)...)
	}

	memberOps, err := r.planMembership(currentMembers)
	if err != nil {
		return nil, err
	}
	ops = append(ops, memberOps...)

	if len(ops) > 0 {
		patchName := r.spec.Name
		allOps := ops
		actions = append(actions, reconcile.Action{
			Summary: "patch consistency group " + patchName,
			Apply: func() (interface{}, error) {
				return r.api.PatchConsistencyGroup(r.spec.Cluster, patchName, allOps)
			},
		})
	}
	return actions, nil
}

// planMembership resolves each requested volume, enforces the ownership and
// visibility rules, and emits only the add/remove ops that change state.
func (r *consistencyGroupReconciler) planMembership(currentMembers []string) ([]model.PatchOp, error) {
	if len(r.spec.VirtualVolumes) == 0 {
		return nil, nil
	}
	wantPresent := r.spec.VirtualVolumeState == VolumePresentInCG
	groupURI := client.ConsistencyGroupURI(r.spec.Cluster, r.spec.Name)

	var requested []string
	for _, volName := range r.spec.VirtualVolumes {
		volume, err := r.api.GetVirtualVolume(r.spec.Cluster, volName)
		if err != nil {
			if verrors.IsNotFound(err) {
				return nil, verrors.NewVplexErrorf(verrors.NotFound,
					"could not find virtual volume %s in %s", volName, r.spec.Cluster)
			}
			return nil, err
		}
		if wantPresent {
			if volume.Locality != "" && volume.Locality != "local" {
				return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
					"virtual volume %s has %s locality, only local volumes can join a local consistency group",
					volName, volume.Locality)
			}
			if volume.ConsistencyGroup != "" && volume.ConsistencyGroup != groupURI {
				return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
					"virtual volume %s already belongs to consistency group %s",
					volName, model.NameFromURI(volume.ConsistencyGroup))
			}
		} else if volume.ConsistencyGroup != "" && volume.ConsistencyGroup != groupURI {
			// Removing from a group the volume never joined is a no-op.
			log.Infof("virtual volume %s belongs to %s, nothing to remove from %s",
				volName, model.NameFromURI(volume.ConsistencyGroup), r.spec.Name)
			continue
		}
		requested = append(requested, client.VirtualVolumeURI(r.spec.Cluster, volName))
	}
	return reconcile.SetMembership("/virtual_volumes", currentMembers, requested, wantPresent), nil
}
