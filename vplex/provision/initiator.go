// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// Host types an initiator can be registered as.
var initiatorHostTypes = map[string]bool{
	"default":      true,
	"hpux":         true,
	"sun-vcs":      true,
	"aix":          true,
	"recoverpoint": true,
}

// InitiatorSpec is the desired state of a front-end initiator port. The
// initiator is addressed by Name, PortWwn or IscsiName; Registered nil means
// a plain lookup, true a register, false an unregister. With no identifiers
// at all the task is a bare rediscovery.
type InitiatorSpec struct {
	Cluster           string
	Name              string
	NewName           string
	PortWwn           string
	IscsiName         string
	HostType          string
	Registered        *bool
	RediscoverTimeout int
	State             string
}

type initiatorReconciler struct {
	api  *client.Client
	spec InitiatorSpec

	// discovery state filled by Fetch
	discovered   []model.Initiator
	byName       *model.Initiator
	byAddress    *model.Initiator
	resolvedName string
}

var _ reconcile.Reconciler = (*initiatorReconciler)(nil)

// ReconcileInitiator converges an initiator to the requested state.
func ReconcileInitiator(api *client.Client, spec InitiatorSpec) (*reconcile.Result, error) {
	return reconcile.Run(&initiatorReconciler{api: api, spec: spec})
}

func (r *initiatorReconciler) rediscoverOnly() bool {
	return r.spec.Name == "" && r.spec.PortWwn == "" && r.spec.IscsiName == "" &&
		r.spec.NewName == "" && r.spec.Registered == nil
}

func (r *initiatorReconciler) registering() bool {
	return r.spec.Name != "" && (r.spec.PortWwn != "" || r.spec.IscsiName != "") &&
		r.spec.Registered != nil && *r.spec.Registered
}

func (r *initiatorReconciler) renaming() bool {
	return r.spec.NewName != "" &&
		(r.spec.Name != "" || r.spec.PortWwn != "" || r.spec.IscsiName != "")
}

func (r *initiatorReconciler) unregistering() bool {
	return r.spec.Registered != nil && !*r.spec.Registered &&
		(r.spec.Name != "" || r.spec.PortWwn != "" || r.spec.IscsiName != "")
}

func (r *initiatorReconciler) timeout() int {
	if r.spec.RediscoverTimeout == 0 {
		return 1
	}
	return r.spec.RediscoverTimeout
}

func (r *initiatorReconciler) Validate() error {
	if err := validateState(r.spec.State); err != nil {
		return err
	}
	if t := r.timeout(); t < client.MinTimeoutSeconds || t > client.MaxTimeoutSeconds {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"Invalid timeout value. The valid range is from %d to %d.",
			client.MinTimeoutSeconds, client.MaxTimeoutSeconds)
	}
	if r.spec.Name != "" {
		if err := model.ValidateName(r.spec.Name, model.MaxShortNameLength, "initiator_name"); err != nil {
			return err
		}
	}
	if r.spec.NewName != "" {
		if err := model.ValidateName(r.spec.NewName, model.MaxShortNameLength, "new_initiator_name"); err != nil {
			return err
		}
	}
	if r.spec.HostType != "" && !initiatorHostTypes[r.spec.HostType] {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid host_type %q", r.spec.HostType)
	}
	if r.registering() && r.spec.PortWwn != "" && r.spec.IscsiName != "" {
		return verrors.NewVplexError(verrors.InvalidArgument,
			"port_wwn and iscsi_name are mutually exclusive for registration")
	}
	return nil
}

// Fetch rediscovers the front end first, so the resolution below always
// works against fresh discovery data, then resolves the requested
// identifiers against it.
func (r *initiatorReconciler) Fetch() (interface{}, error) {
	if r.rediscoverOnly() {
		return nil, nil
	}

	discovered, err := r.api.RediscoverInitiators(r.spec.Cluster, r.timeout())
	if err != nil {
		return nil, err
	}
	r.discovered = discovered

	if r.spec.Name != "" {
		initiator, err := r.api.GetInitiator(r.spec.Cluster, r.spec.Name)
		if err != nil && !verrors.IsNotFound(err) {
			return nil, err
		}
		r.byName = initiator
	}

	if name := r.findByAddress(); name != "" {
		r.resolvedName = name
		initiator, err := r.api.GetInitiator(r.spec.Cluster, name)
		if err != nil && !verrors.IsNotFound(err) {
			return nil, err
		}
		r.byAddress = initiator
	}

	if r.byName != nil {
		return r.byName, nil
	}
	if r.byAddress != nil {
		return r.byAddress, nil
	}
	return nil, nil
}

// findByAddress matches the requested port_wwn or iscsi_name against the
// discovery table and returns the appliance-assigned initiator name.
func (r *initiatorReconciler) findByAddress() string {
	for i := range r.discovered {
		if r.spec.PortWwn != "" && r.discovered[i].PortWwn == r.spec.PortWwn {
			return r.discovered[i].Name
		}
		if r.spec.IscsiName != "" && r.discovered[i].IscsiName == r.spec.IscsiName {
			return r.discovered[i].Name
		}
	}
	return ""
}

func (r *initiatorReconciler) Check(current interface{}) error {
	if r.rediscoverOnly() {
		return nil
	}

	if r.registering() && r.renaming() {
		return verrors.NewVplexError(verrors.FailedPrecondition,
			"could not perform register and rename of the initiator in a single task, "+
				"specify each operation in an individual task")
	}

	// An address that did not discover is fatal only when converging
	// toward presence.
	if (r.spec.PortWwn != "" || r.spec.IscsiName != "") && !r.registering() &&
		r.resolvedName == "" && r.spec.State == StatePresent {
		return verrors.NewVplexErrorf(verrors.NotFound,
			"could not match port_wwn or iscsi_name in %s", r.spec.Cluster)
	}

	if r.spec.Name != "" && r.byName == nil && !r.registering() && r.spec.State == StatePresent {
		return verrors.NewVplexErrorf(verrors.NotFound,
			"could not find initiator %s in %s", r.spec.Name, r.spec.Cluster)
	}

	if r.registering() {
		return r.checkRegister()
	}
	return nil
}

// checkRegister enforces the registration collision rules against both the
// requested name and the discovered owner of the requested address.
func (r *initiatorReconciler) checkRegister() error {
	if r.byName != nil && r.byName.Registered() {
		if r.spec.PortWwn != "" && r.byName.PortWwn != r.spec.PortWwn {
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"could not register initiator %s, it is already registered with port_wwn %s in %s",
				r.spec.Name, r.byName.PortWwn, r.spec.Cluster)
		}
		if r.spec.IscsiName != "" && r.byName.IscsiName != r.spec.IscsiName {
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"could not register initiator %s, it is already registered with iscsi_name %s in %s",
				r.spec.Name, r.byName.IscsiName, r.spec.Cluster)
		}
	} else if r.byName != nil && !r.byName.Registered() {
		return verrors.NewVplexErrorf(verrors.AlreadyExists,
			"could not register with initiator_name %s in %s, the name is already in use",
			r.spec.Name, r.spec.Cluster)
	}

	owner := r.byAddress
	if owner != nil && owner.Registered() {
		hostType := r.hostType()
		switch {
		case owner.Type == hostType && owner.Name != r.spec.Name:
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"could not register initiator %s, the address is already registered under the name %s in %s",
				r.spec.Name, owner.Name, r.spec.Cluster)
		case owner.Type != hostType:
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"could not register initiator %s, the address is already registered with host_type %s in %s",
				r.spec.Name, owner.Type, r.spec.Cluster)
		}
	}
	return nil
}

func (r *initiatorReconciler) hostType() string {
	if r.spec.HostType == "" {
		return "default"
	}
	return r.spec.HostType
}

func (r *initiatorReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	if r.rediscoverOnly() {
		return []reconcile.Action{{
			Summary: "rediscover initiators in " + r.spec.Cluster,
			Apply: func() (interface{}, error) {
				discovered, err := r.api.RediscoverInitiators(r.spec.Cluster, r.timeout())
				if err != nil {
					return nil, err
				}
				return discovered, nil
			},
		}}, nil
	}

	var actions []reconcile.Action
	if r.registering() {
		if r.byAddress != nil && r.byAddress.Registered() {
			log.Infof("initiator %s is already registered in %s", r.spec.Name, r.spec.Cluster)
		} else {
			payload := map[string]interface{}{
				"iscsi_name": r.spec.IscsiName,
				"port_wwn":   r.spec.PortWwn,
				"port_name":  r.spec.Name,
				"type":       r.hostType(),
			}
			actions = append(actions, reconcile.Action{
				Summary: "register initiator " + r.spec.Name,
				Apply: func() (interface{}, error) {
					return r.api.RegisterInitiator(r.spec.Cluster, payload)
				},
			})
		}
	}

	if r.renaming() {
		action, err := r.planRename()
		if err != nil {
			return nil, err
		}
		if action != nil {
			actions = append(actions, *action)
		}
	}

	if r.unregistering() {
		target, details := r.target()
		if details == nil || !details.Registered() {
			log.Infof("initiator %s in %s is already unregistered", target, r.spec.Cluster)
		} else {
			name := target
			actions = append(actions, reconcile.Action{
				Summary: "unregister initiator " + name,
				Apply: func() (interface{}, error) {
					if err := r.api.UnregisterInitiator(r.spec.Cluster, name); err != nil {
						return nil, err
					}
					return nil, nil
				},
			})
		}
	}
	return actions, nil
}

// target picks the initiator addressed by the task, preferring the explicit
// name over the address resolution.
func (r *initiatorReconciler) target() (string, *model.Initiator) {
	if r.spec.Name != "" {
		return r.spec.Name, r.byName
	}
	return r.resolvedName, r.byAddress
}

func (r *initiatorReconciler) planRename() (*reconcile.Action, error) {
	target, _ := r.target()
	if target == "" || target == r.spec.NewName {
		log.Infof("initiator %s already carries the requested name", r.spec.NewName)
		return nil, nil
	}
	if _, err := r.api.GetInitiator(r.spec.Cluster, r.spec.NewName); err == nil {
		return nil, verrors.NewVplexErrorf(verrors.AlreadyExists,
			"could not rename initiator %s in %s, the name %s is already present",
			target, r.spec.Cluster, r.spec.NewName)
	} else if !verrors.IsNotFound(err) {
		return nil, err
	}
	action := reconcile.Action{
		Summary: "rename initiator " + target + " to " + r.spec.NewName,
		Apply: func() (interface{}, error) {
			return r.api.PatchInitiator(r.spec.Cluster, target, []model.PatchOp{
				{Op: model.OpReplace, Path: "/name", Value: r.spec.NewName},
			})
		},
	}
	return &action, nil
}
