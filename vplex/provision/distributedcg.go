// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// Detach rule types accepted by the appliance.
const (
	DetachRuleNoAutomaticWinner = "no_automatic_winner"
	DetachRuleWinner            = "winner"
)

// DistributedCGSpec is the desired state of a distributed consistency group.
type DistributedCGSpec struct {
	Name               string
	NewName            string
	VirtualVolumes     []string
	VirtualVolumeState string
	DetachRuleType     string
	DetachRuleCluster  string
	DetachRuleDelay    int
	AutoResumeAtLoser  *bool
	State              string
}

type distributedCGReconciler struct {
	api  *client.Client
	spec DistributedCGSpec
}

var _ reconcile.Reconciler = (*distributedCGReconciler)(nil)

// ReconcileDistributedCG converges a distributed consistency group to the
// requested state.
func ReconcileDistributedCG(api *client.Client, spec DistributedCGSpec) (*reconcile.Result, error) {
	return reconcile.Run(&distributedCGReconciler{api: api, spec: spec})
}

func (r *distributedCGReconciler) Validate() error {
	if err := validateState(r.spec.State); err != nil {
		return err
	}
	if err := model.ValidateName(r.spec.Name, model.MaxNameLength, "distributed_cg_name"); err != nil {
		return err
	}
	if r.spec.NewName != "" {
		if err := model.ValidateName(r.spec.NewName, model.MaxNameLength, "new_distributed_cg_name"); err != nil {
			return err
		}
	}
	if len(r.spec.VirtualVolumes) > 0 && r.spec.VirtualVolumeState != VolumePresentInCG &&
		r.spec.VirtualVolumeState != VolumeAbsentInCG {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid virtual_volume_state %q, expected %q or %q",
			r.spec.VirtualVolumeState, VolumePresentInCG, VolumeAbsentInCG)
	}
	switch r.spec.DetachRuleType {
	case "":
	case DetachRuleNoAutomaticWinner:
	case DetachRuleWinner:
		if r.spec.DetachRuleCluster == "" {
			return verrors.NewVplexErrorf(verrors.InvalidArgument,
				"detach rule %q requires a winning cluster", DetachRuleWinner)
		}
		if r.spec.DetachRuleDelay < 0 {
			return verrors.NewVplexErrorf(verrors.InvalidArgument,
				"detach rule delay must not be negative, got %d", r.spec.DetachRuleDelay)
		}
	default:
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid detach rule type %q, expected %q or %q",
			r.spec.DetachRuleType, DetachRuleNoAutomaticWinner, DetachRuleWinner)
	}
	return nil
}

func (r *distributedCGReconciler) Fetch() (interface{}, error) {
	groups, err := r.api.GetDistributedConsistencyGroups(map[string]string{"fields": "name"})
	if err != nil {
		return nil, err
	}
	for i := range groups {
		if groups[i].Name == r.spec.Name {
			return r.api.GetDistributedConsistencyGroup(r.spec.Name)
		}
	}
	return nil, nil
}

// Check refuses any mutation while either cluster is degraded. A distributed
// group spans both clusters, so a partial change could strand state.
func (r *distributedCGReconciler) Check(current interface{}) error {
	group, _ := current.(*model.ConsistencyGroup)

	mutating := (group == nil && r.spec.State == StatePresent) ||
		(group != nil && r.spec.State == StateAbsent) ||
		r.spec.NewName != "" || len(r.spec.VirtualVolumes) > 0 ||
		r.spec.DetachRuleType != "" || r.spec.AutoResumeAtLoser != nil
	if mutating {
		if err := checkDistributedHealthy(r.api); err != nil {
			return err
		}
	}

	if group == nil && r.spec.State == StatePresent && r.spec.NewName != "" {
		return errCreateAndRename("distributed consistency group")
	}
	if group != nil && r.spec.NewName != "" && r.spec.NewName != r.spec.Name {
		if err := r.checkNameCollision(r.spec.NewName); err != nil {
			return err
		}
	}
	if group != nil && r.spec.State == StateAbsent && len(group.VirtualVolumes) > 0 {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not delete distributed consistency group %s, it still contains %d virtual volume(s)",
			r.spec.Name, len(group.VirtualVolumes))
	}
	return nil
}

// checkNameCollision scans the distributed namespace and the local namespace
// of every cluster for the candidate name.
func (r *distributedCGReconciler) checkNameCollision(name string) error {
	groups, err := r.api.GetDistributedConsistencyGroups(map[string]string{"fields": "name"})
	if err != nil {
		return err
	}
	for i := range groups {
		if groups[i].Name == name {
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"distributed consistency group name %s is already in use", name)
		}
	}
	clusters, err := r.api.GetClusters(nil)
	if err != nil {
		return err
	}
	for _, cl := range clusters {
		local, err := r.api.GetConsistencyGroups(cl.Name, map[string]string{"fields": "name"})
		if err != nil {
			return err
		}
		for i := range local {
			if local[i].Name == name {
				return verrors.NewVplexErrorf(verrors.AlreadyExists,
					"name %s is already used by a consistency group in %s", name, cl.Name)
			}
		}
	}
	return nil
}

func (r *distributedCGReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	group, _ := current.(*model.ConsistencyGroup)

	if r.spec.State == StateAbsent {
		if group == nil {
			log.Infof("distributed consistency group %s is already absent", r.spec.Name)
			return nil, nil
		}
		return []reconcile.Action{{
			Summary: "delete distributed consistency group " + r.spec.Name,
			Apply: func() (interface{}, error) {
				if err := r.api.DeleteDistributedConsistencyGroup(r.spec.Name); err != nil {
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
			Summary: "create distributed consistency group " + r.spec.Name,
			Apply: func() (interface{}, error) {
				return r.api.CreateDistributedConsistencyGroup(map[string]interface{}{
					"name": r.spec.Name,
				})
			},
		})
	}

	var ops []model.PatchOp
	if group != nil && r.spec.NewName != "" {
		ops = append(ops, reconcile.ReplaceIfChanged("/name", group.Name, r.spec.NewName)...)
	}
	ops = append(ops, r.planDetachRule(group)...)
	if r.spec.AutoResumeAtLoser != nil {
		if group == nil || group.AutoResumeAtLoser == nil ||
			*group.AutoResumeAtLoser != *r.spec.AutoResumeAtLoser {
			ops = append(ops, model.PatchOp{
				Op: model.OpReplace, Path: "/auto_resume_at_loser", Value: *r.spec.AutoResumeAtLoser,
			})
		}
	}

	memberOps, err := r.planMembership(currentMembers)
	if err != nil {
		return nil, err
	}
	ops = append(ops, memberOps...)

	if len(ops) > 0 {
		allOps := ops
		actions = append(actions, reconcile.Action{
			Summary: "patch distributed consistency group " + r.spec.Name,
			Apply: func() (interface{}, error) {
				return r.api.PatchDistributedConsistencyGroup(r.spec.Name, allOps)
			},
		})
	}
	return actions, nil
}

func (r *distributedCGReconciler) planDetachRule(group *model.ConsistencyGroup) []model.PatchOp {
	if r.spec.DetachRuleType == "" {
		return nil
	}
	desired := map[string]interface{}{"type": r.spec.DetachRuleType}
	if r.spec.DetachRuleType == DetachRuleWinner {
		desired["cluster"] = client.ClusterURI(r.spec.DetachRuleCluster)
		desired["delay"] = r.spec.DetachRuleDelay
	}
	if group != nil && group.DetachRule != nil {
		have := group.DetachRule
		if have.Type == r.spec.DetachRuleType &&
			(r.spec.DetachRuleType != DetachRuleWinner ||
				(model.NameFromURI(have.Cluster) == r.spec.DetachRuleCluster &&
					have.Delay == r.spec.DetachRuleDelay)) {
			return nil
		}
	}
	return []model.PatchOp{{Op: model.OpReplace, Path: "/detach_rule", Value: desired}}
}

func (r *distributedCGReconciler) planMembership(currentMembers []string) ([]model.PatchOp, error) {
	if len(r.spec.VirtualVolumes) == 0 {
		return nil, nil
	}
	wantPresent := r.spec.VirtualVolumeState == VolumePresentInCG
	groupURI := client.DistributedConsistencyGroupURI(r.spec.Name)

	var requested []string
	for _, volName := range r.spec.VirtualVolumes {
		volume, err := r.api.GetDistributedVirtualVolume(volName)
		if err != nil {
			if verrors.IsNotFound(err) {
				return nil, verrors.NewVplexErrorf(verrors.NotFound,
					"could not find distributed virtual volume %s", volName)
			}
			return nil, err
		}
		if wantPresent {
			if volume.ConsistencyGroup != "" && volume.ConsistencyGroup != groupURI {
				return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
					"distributed virtual volume %s already belongs to consistency group %s",
					volName, model.NameFromURI(volume.ConsistencyGroup))
			}
		} else if volume.ConsistencyGroup != "" && volume.ConsistencyGroup != groupURI {
			log.Infof("distributed virtual volume %s belongs to %s, nothing to remove from %s",
				volName, model.NameFromURI(volume.ConsistencyGroup), r.spec.Name)
			continue
		}
		requested = append(requested, client.DistributedVirtualVolumeURI(volName))
	}
	return reconcile.SetMembership("/virtual_volumes", currentMembers, requested, wantPresent), nil
}
