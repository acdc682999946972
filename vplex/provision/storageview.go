// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// Requested membership direction for ports, initiators and volumes in a
// storage view.
const (
	MemberPresentInView = "present-in-view"
	MemberAbsentInView  = "absent-in-view"
)

// StorageViewSpec is the desired state of a storage view. View names are
// capped at the short name length.
type StorageViewSpec struct {
	Cluster            string
	Name               string
	NewName            string
	Ports              []string
	PortState          string
	Initiators         []string
	InitiatorState     string
	VirtualVolumes     []string
	VirtualVolumeState string
	State              string
}

type storageViewReconciler struct {
	api  *client.Client
	spec StorageViewSpec
}

var _ reconcile.Reconciler = (*storageViewReconciler)(nil)

// ReconcileStorageView converges a storage view to the requested state.
func ReconcileStorageView(api *client.Client, spec StorageViewSpec) (*reconcile.Result, error) {
	return reconcile.Run(&storageViewReconciler{api: api, spec: spec})
}

func validateViewMemberState(state, field string) error {
	if state != "" && state != MemberPresentInView && state != MemberAbsentInView {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid %s %q, expected %q or %q", field, state, MemberPresentInView, MemberAbsentInView)
	}
	return nil
}

func (r *storageViewReconciler) Validate() error {
	if err := validateState(r.spec.State); err != nil {
		return err
	}
	if err := model.ValidateName(r.spec.Name, model.MaxShortNameLength, "storage_view_name"); err != nil {
		return err
	}
	if r.spec.NewName != "" {
		if err := model.ValidateName(r.spec.NewName, model.MaxShortNameLength, "new_storage_view_name"); err != nil {
			return err
		}
	}
	if err := validateViewMemberState(r.spec.PortState, "port_state"); err != nil {
		return err
	}
	if err := validateViewMemberState(r.spec.InitiatorState, "initiator_state"); err != nil {
		return err
	}
	return validateViewMemberState(r.spec.VirtualVolumeState, "virtual_volume_state")
}

func (r *storageViewReconciler) Fetch() (interface{}, error) {
	views, err := r.api.GetStorageViews(r.spec.Cluster, map[string]string{"fields": "name"})
	if err != nil {
		return nil, err
	}
	for i := range views {
		if views[i].Name == r.spec.Name {
			return r.api.GetStorageView(r.spec.Cluster, r.spec.Name)
		}
	}
	return nil, nil
}

func (r *storageViewReconciler) Check(current interface{}) error {
	view, _ := current.(*model.StorageView)

	if view == nil && r.spec.State == StatePresent {
		if r.spec.NewName != "" {
			return errCreateAndRename("storage view")
		}
		if len(r.spec.Ports) == 0 || r.spec.PortState != MemberPresentInView {
			return verrors.NewVplexErrorf(verrors.InvalidArgument,
				"at least one port is required to create storage view %s", r.spec.Name)
		}
	}

	// Every named port must exist before any mutation is planned.
	for _, portName := range r.spec.Ports {
		if _, err := r.api.GetPort(r.spec.Cluster, portName); err != nil {
			if verrors.IsNotFound(err) {
				return verrors.NewVplexErrorf(verrors.NotFound,
					"could not find port %s in %s", portName, r.spec.Cluster)
			}
			return err
		}
	}
	for _, initiatorName := range r.spec.Initiators {
		initiator, err := r.api.GetInitiator(r.spec.Cluster, initiatorName)
		if err != nil {
			if verrors.IsNotFound(err) {
				return verrors.NewVplexErrorf(verrors.NotFound,
					"could not find initiator %s in %s", initiatorName, r.spec.Cluster)
			}
			return err
		}
		if !initiator.Registered() {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"initiator %s is unregistered in %s", initiatorName, r.spec.Cluster)
		}
	}
	return nil
}

func (r *storageViewReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	view, _ := current.(*model.StorageView)

	if r.spec.State == StateAbsent {
		if view == nil {
			log.Infof("storage view %s is already absent from %s", r.spec.Name, r.spec.Cluster)
			return nil, nil
		}
		return []reconcile.Action{{
			Summary: "delete storage view " + r.spec.Name,
			Apply: func() (interface{}, error) {
				if err := r.api.DeleteStorageView(r.spec.Cluster, r.spec.Name); err != nil {
					return nil, err
				}
				return nil, nil
			},
		}}, nil
	}

	if view == nil {
		ports := make([]string, 0, len(r.spec.Ports))
		for _, portName := range r.spec.Ports {
			ports = append(ports, client.PortURI(r.spec.Cluster, portName))
		}
		payload := map[string]interface{}{"name": r.spec.Name, "ports": ports}
		actions := []reconcile.Action{{
			Summary: "create storage view " + r.spec.Name,
			Apply: func() (interface{}, error) {
				return r.api.CreateStorageView(r.spec.Cluster, payload)
			},
		}}
		followUp, err := r.planMembership(&model.StorageView{Name: r.spec.Name, Ports: ports})
		if err != nil {
			return nil, err
		}
		return append(actions, followUp...), nil
	}

	var ops []model.PatchOp
	if r.spec.NewName != "" && r.spec.NewName != view.Name {
		if err := r.checkRenameCollision(r.spec.NewName); err != nil {
			return nil, err
		}
		ops = append(ops, model.PatchOp{Op: model.OpReplace, Path: "/name", Value: r.spec.NewName})
	}

	if len(r.spec.Ports) > 0 && r.spec.PortState != "" {
		requested := make([]string, 0, len(r.spec.Ports))
		for _, portName := range r.spec.Ports {
			requested = append(requested, client.PortURI(r.spec.Cluster, portName))
		}
		ops = append(ops, reconcile.SetMembership("/ports", view.Ports, requested,
			r.spec.PortState == MemberPresentInView)...)
	}

	if len(r.spec.Initiators) > 0 && r.spec.InitiatorState != "" {
		requested := make([]string, 0, len(r.spec.Initiators))
		for _, initiatorName := range r.spec.Initiators {
			requested = append(requested, client.InitiatorURI(r.spec.Cluster, initiatorName))
		}
		ops = append(ops, reconcile.SetMembership("/initiators", view.Initiators, requested,
			r.spec.InitiatorState == MemberPresentInView)...)
	}

	volumeOps, err := r.planVolumeMembership(view)
	if err != nil {
		return nil, err
	}
	ops = append(ops, volumeOps...)

	if len(ops) == 0 {
		return nil, nil
	}
	allOps := ops
	return []reconcile.Action{{
		Summary: "patch storage view " + r.spec.Name,
		Apply: func() (interface{}, error) {
			return r.api.PatchStorageView(r.spec.Cluster, r.spec.Name, allOps)
		},
	}}, nil
}

func (r *storageViewReconciler) checkRenameCollision(newName string) error {
	views, err := r.api.GetStorageViews(r.spec.Cluster, map[string]string{"fields": "name"})
	if err != nil {
		return err
	}
	for i := range views {
		if views[i].Name == newName {
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"storage view name %s is already present in %s", newName, r.spec.Cluster)
		}
	}
	return nil
}

// planMembership serves the create path, where initiators and volumes asked
// for in the same task are attached right after the view exists.
func (r *storageViewReconciler) planMembership(view *model.StorageView) ([]reconcile.Action, error) {
	var ops []model.PatchOp
	if len(r.spec.Initiators) > 0 && r.spec.InitiatorState == MemberPresentInView {
		for _, initiatorName := range r.spec.Initiators {
			ops = append(ops, model.PatchOp{
				Op: model.OpAdd, Path: "/initiators",
				Value: client.InitiatorURI(r.spec.Cluster, initiatorName),
			})
		}
	}
	volumeOps, err := r.planVolumeMembership(view)
	if err != nil {
		return nil, err
	}
	ops = append(ops, volumeOps...)
	if len(ops) == 0 {
		return nil, nil
	}
	allOps := ops
	return []reconcile.Action{{
		Summary: "attach members to storage view " + r.spec.Name,
		Apply: func() (interface{}, error) {
			return r.api.PatchStorageView(r.spec.Cluster, r.spec.Name, allOps)
		},
	}}, nil
}

// planVolumeMembership resolves each requested volume name against the local
// cluster, the other clusters, and the distributed namespace, then emits the
// membership ops. A cross-cluster volume must carry global visibility to be
// exported here.
func (r *storageViewReconciler) planVolumeMembership(view *model.StorageView) ([]model.PatchOp, error) {
	if len(r.spec.VirtualVolumes) == 0 || r.spec.VirtualVolumeState == "" {
		return nil, nil
	}
	wantPresent := r.spec.VirtualVolumeState == MemberPresentInView

	var requested []string
	for _, volName := range r.spec.VirtualVolumes {
		uri, err := r.resolveVolume(volName, wantPresent)
		if err != nil {
			return nil, err
		}
		if uri == "" {
			continue
		}
		requested = append(requested, uri)
	}

	current := view.VolumeURIs()
	if wantPresent {
		currentSet := make(map[string]bool, len(current))
		for _, uri := range current {
			currentSet[uri] = true
		}
		for _, uri := range requested {
			if !currentSet[uri] {
				r.warnIfExported(uri)
			}
		}
	}
	return reconcile.SetMembership("/virtual_volumes", current, requested, wantPresent), nil
}

func (r *storageViewReconciler) resolveVolume(volName string, wantPresent bool) (string, error) {
	if _, err := r.api.GetVirtualVolume(r.spec.Cluster, volName); err == nil {
		return client.VirtualVolumeURI(r.spec.Cluster, volName), nil
	} else if !verrors.IsNotFound(err) {
		return "", err
	}
	if _, err := r.api.GetDistributedVirtualVolume(volName); err == nil {
		return client.DistributedVirtualVolumeURI(volName), nil
	} else if !verrors.IsNotFound(err) {
		return "", err
	}

	clusters, err := r.api.GetClusters(nil)
	if err != nil {
		return "", err
	}
	for _, cl := range clusters {
		if cl.Name == r.spec.Cluster {
			continue
		}
		volume, err := r.api.GetVirtualVolume(cl.Name, volName)
		if err != nil {
			if verrors.IsNotFound(err) {
				continue
			}
			return "", err
		}
		if wantPresent && volume.Visibility == "local" {
			return "", verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not add virtual volume %s from %s to storage view %s in %s, its visibility is local",
				volName, cl.Name, r.spec.Name, r.spec.Cluster)
		}
		return client.VirtualVolumeURI(cl.Name, volName), nil
	}

	if wantPresent {
		return "", verrors.NewVplexErrorf(verrors.NotFound,
			"could not find virtual volume %s anywhere on the appliance", volName)
	}
	log.Infof("virtual volume %s is already absent from storage view %s", volName, r.spec.Name)
	return "", nil
}

// warnIfExported flags a volume already exported through another view in
// this cluster. The add still proceeds.
func (r *storageViewReconciler) warnIfExported(volumeURI string) {
	views, err := r.api.GetStorageViews(r.spec.Cluster, nil)
	if err != nil {
		log.Debugf("could not scan storage views for exports of %s: %v", volumeURI, err)
		return
	}
	for i := range views {
		if views[i].Name == r.spec.Name {
			continue
		}
		for _, uri := range views[i].VolumeURIs() {
			if uri == volumeURI {
				log.Warnf("virtual volume %s is already exported through storage view %s, "+
					"adding it to %s exposes data in use", model.NameFromURI(volumeURI),
					views[i].Name, r.spec.Name)
				return
			}
		}
	}
}
