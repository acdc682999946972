// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// DistributedDeviceSpec is the desired state of a distributed RAID-1 built
// from one top-level device on each cluster.
type DistributedDeviceSpec struct {
	Name          string
	NewName       string
	SourceCluster string
	SourceDevice  string
	TargetCluster string
	TargetDevice  string
	RuleSet       string
	Sync          *bool
	State         string
}

type distributedDeviceReconciler struct {
	api  *client.Client
	spec DistributedDeviceSpec
}

var _ reconcile.Reconciler = (*distributedDeviceReconciler)(nil)

// ReconcileDistributedDevice converges a distributed device to the requested
// state.
func ReconcileDistributedDevice(api *client.Client, spec DistributedDeviceSpec) (*reconcile.Result, error) {
	return reconcile.Run(&distributedDeviceReconciler{api: api, spec: spec})
}

func (r *distributedDeviceReconciler) Validate() error {
	if err := validateState(r.spec.State); err != nil {
		return err
	}
	if err := model.ValidateName(r.spec.Name, model.MaxNameLength, "distributed_device_name"); err != nil {
		return err
	}
	if r.spec.NewName != "" {
		if err := model.ValidateName(r.spec.NewName, model.MaxNameLength, "new_distributed_device_name"); err != nil {
			return err
		}
	}
	return nil
}

func (r *distributedDeviceReconciler) Fetch() (interface{}, error) {
	device, err := r.api.GetDistributedDevice(r.spec.Name)
	if err != nil {
		return nil, absentOnNotFound(err)
	}
	return device, nil
}

func (r *distributedDeviceReconciler) Check(current interface{}) error {
	device, _ := current.(*model.DistributedDevice)

	mutating := (device == nil && r.spec.State == StatePresent) ||
		(device != nil && r.spec.State == StateAbsent) ||
		r.spec.NewName != "" || r.spec.RuleSet != ""
	if mutating {
		if err := checkDistributedHealthy(r.api); err != nil {
			return err
		}
	}

	if device == nil && r.spec.State == StatePresent {
		if r.spec.SourceDevice == "" || r.spec.TargetDevice == "" ||
			r.spec.SourceCluster == "" || r.spec.TargetCluster == "" {
			return verrors.NewVplexErrorf(verrors.NotFound,
				"could not find distributed device %s", r.spec.Name)
		}
		if r.spec.NewName != "" {
			return errCreateAndRename("distributed device")
		}
		return r.checkCreate()
	}

	if device != nil && r.spec.State == StateAbsent {
		if device.VirtualVolume != "" {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not delete distributed device %s, virtual volume %s sits on top of it",
				device.Name, model.NameFromURI(device.VirtualVolume))
		}
		if device.Rebuilding() {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not delete distributed device %s while it is rebuilding", device.Name)
		}
	}

	if device != nil && r.spec.RuleSet != "" {
		if err := r.checkRuleSetChange(device); err != nil {
			return err
		}
	}

	if device != nil && r.spec.NewName != "" && r.spec.NewName != device.Name {
		if err := r.checkNameFree(r.spec.NewName, "rename"); err != nil {
			return err
		}
	}

	// An existing device with a source and target request must already be
	// built from exactly that pair.
	if device != nil && r.spec.SourceDevice != "" && r.spec.TargetDevice != "" {
		return r.checkLegs(device)
	}
	return nil
}

// checkCreate runs the create gate: name free in every namespace, clusters
// distinct, both legs top-level, target at least as large as the source,
// neither leg carrying a virtual volume.
func (r *distributedDeviceReconciler) checkCreate() error {
	if err := r.checkNameFree(r.spec.Name, "create"); err != nil {
		return err
	}
	if r.spec.SourceCluster == r.spec.TargetCluster {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"could not create distributed device %s, the source and target cluster must differ", r.spec.Name)
	}
	if err := r.api.VerifyClusterName(r.spec.SourceCluster); err != nil {
		return err
	}
	if err := r.api.VerifyClusterName(r.spec.TargetCluster); err != nil {
		return err
	}
	if r.spec.SourceDevice == r.spec.TargetDevice {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"could not create distributed device %s, the source and target device must differ", r.spec.Name)
	}

	source, err := r.leg(r.spec.SourceCluster, r.spec.SourceDevice, "source")
	if err != nil {
		return err
	}
	target, err := r.leg(r.spec.TargetCluster, r.spec.TargetDevice, "target")
	if err != nil {
		return err
	}
	if source.Capacity > target.Capacity {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not create distributed device %s, the source device is larger than the target device",
			r.spec.Name)
	}

	if r.spec.RuleSet != "" {
		return r.verifyRuleSet()
	}
	return nil
}

func (r *distributedDeviceReconciler) leg(cluster, name, role string) (*model.Device, error) {
	device, err := r.api.GetDevice(cluster, name)
	if err != nil {
		if verrors.IsNotFound(err) {
			return nil, verrors.NewVplexErrorf(verrors.NotFound,
				"could not create distributed device %s, the %s device %s is not found in %s",
				r.spec.Name, role, name, cluster)
		}
		return nil, err
	}
	if !device.TopLevel {
		return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not create distributed device %s, the %s device %s is not a top level device",
			r.spec.Name, role, name)
	}
	if device.VirtualVolume != "" {
		return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not create distributed device %s, the %s device %s carries virtual volume %s",
			r.spec.Name, role, name, model.NameFromURI(device.VirtualVolume))
	}
	return device, nil
}

// checkNameFree scans local devices of every cluster and the distributed
// namespace for the candidate name.
func (r *distributedDeviceReconciler) checkNameFree(name, verb string) error {
	clusters, err := r.api.GetClusters(nil)
	if err != nil {
		return err
	}
	for _, cl := range clusters {
		devices, err := r.api.GetDevices(cl.Name, map[string]string{"fields": "name"})
		if err != nil {
			return err
		}
		for i := range devices {
			if devices[i].Name == name {
				return verrors.NewVplexErrorf(verrors.AlreadyExists,
					"could not %s distributed device %s, a device named %s already exists in %s",
					verb, r.spec.Name, name, cl.Name)
			}
		}
	}
	if verb == "rename" {
		if _, err := r.api.GetDistributedDevice(name); err == nil {
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"could not rename distributed device %s, the name %s is already in use",
				r.spec.Name, name)
		} else if !verrors.IsNotFound(err) {
			return err
		}
	}
	return nil
}

func (r *distributedDeviceReconciler) verifyRuleSet() error {
	ruleSets, err := r.api.GetRuleSets()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(ruleSets))
	for _, rs := range ruleSets {
		if rs.Name == r.spec.RuleSet {
			return nil
		}
		names = append(names, rs.Name)
	}
	return verrors.NewVplexErrorf(verrors.InvalidArgument,
		"invalid rule_set %s for distributed device %s, defined rule sets are %v",
		r.spec.RuleSet, r.spec.Name, names)
}

// checkRuleSetChange refuses a rule set swap while the device's virtual
// volume sits inside a distributed consistency group, which owns the detach
// semantics at that point.
func (r *distributedDeviceReconciler) checkRuleSetChange(device *model.DistributedDevice) error {
	if device.RuleSetName == r.spec.RuleSet {
		return nil
	}
	if err := r.verifyRuleSet(); err != nil {
		return err
	}
	if device.VirtualVolume == "" {
		return nil
	}
	volume, err := r.api.GetDistributedVirtualVolume(model.NameFromURI(device.VirtualVolume))
	if err != nil {
		return absentOnNotFound(err)
	}
	if volume != nil && volume.ConsistencyGroup != "" {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not update rule_set of distributed device %s, its virtual volume belongs to consistency group %s",
			device.Name, model.NameFromURI(volume.ConsistencyGroup))
	}
	return nil
}

// checkLegs verifies that an existing distributed device is assembled from
// the requested source and target pair.
func (r *distributedDeviceReconciler) checkLegs(device *model.DistributedDevice) error {
	node, err := r.api.GetMap(client.DistributedDeviceURI(device.Name))
	if err != nil {
		return err
	}
	members := make(map[string]bool, len(node.Children))
	for _, child := range node.Children {
		members[model.NameFromURI(child)] = true
	}
	if !members[r.spec.SourceDevice] || !members[r.spec.TargetDevice] {
		return verrors.NewVplexErrorf(verrors.AlreadyExists,
			"distributed device %s already exists with a different source and target combination",
			device.Name)
	}
	log.Infof("distributed device %s is already built from %s and %s",
		device.Name, r.spec.SourceDevice, r.spec.TargetDevice)
	return nil
}

func (r *distributedDeviceReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	device, _ := current.(*model.DistributedDevice)

	if r.spec.State == StateAbsent {
		if device == nil {
			log.Infof("distributed device %s is already absent", r.spec.Name)
			return nil, nil
		}
		return []reconcile.Action{{
			Summary: "delete distributed device " + r.spec.Name,
			Apply: func() (interface{}, error) {
				if err := r.api.DeleteDistributedDevice(r.spec.Name); err != nil {
					return nil, err
				}
				return nil, nil
			},
		}}, nil
	}

	if device == nil {
		payload := map[string]interface{}{
			"name":          r.spec.Name,
			"primary_leg":   client.DeviceURI(r.spec.SourceCluster, r.spec.SourceDevice),
			"secondary_leg": client.DeviceURI(r.spec.TargetCluster, r.spec.TargetDevice),
		}
		if r.spec.RuleSet != "" {
			payload["rule_set"] = client.RuleSetURI(r.spec.RuleSet)
		}
		if r.spec.Sync != nil {
			payload["sync"] = *r.spec.Sync
		}
		return []reconcile.Action{{
			Summary: "create distributed device " + r.spec.Name,
			Apply: func() (interface{}, error) {
				return r.api.CreateDistributedDevice(payload)
			},
		}}, nil
	}

	var ops []model.PatchOp
	if r.spec.RuleSet != "" && device.RuleSetName != r.spec.RuleSet {
		ops = append(ops, model.PatchOp{
			Op: model.OpReplace, Path: "/rule_set_name", Value: r.spec.RuleSet,
		})
	}
	if r.spec.NewName != "" {
		ops = append(ops, reconcile.ReplaceIfChanged("/name", device.Name, r.spec.NewName)...)
	}
	if len(ops) == 0 {
		return nil, nil
	}
	allOps := ops
	return []reconcile.Action{{
		Summary: "patch distributed device " + r.spec.Name,
		Apply: func() (interface{}, error) {
			return r.api.PatchDistributedDevice(r.spec.Name, allOps)
		},
	}}, nil
}
