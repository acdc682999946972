// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// PortSpec is the desired state of a front-end port. Enabled nil leaves the
// port untouched and makes the task a plain lookup.
type PortSpec struct {
	Cluster string
	Name    string
	Enabled *bool
	State   string
}

type portReconciler struct {
	api  *client.Client
	spec PortSpec
}

var _ reconcile.Reconciler = (*portReconciler)(nil)

// ReconcilePort converges a front-end port's enabled flag.
func ReconcilePort(api *client.Client, spec PortSpec) (*reconcile.Result, error) {
	return reconcile.Run(&portReconciler{api: api, spec: spec})
}

func (r *portReconciler) Validate() error {
	if err := validateState(r.spec.State); err != nil {
		return err
	}
	if r.spec.Name == "" {
		return verrors.NewVplexError(verrors.InvalidArgument, "a port name is required")
	}
	return nil
}

func (r *portReconciler) Fetch() (interface{}, error) {
	port, err := r.api.GetPort(r.spec.Cluster, r.spec.Name)
	if err != nil {
		return nil, absentOnNotFound(err)
	}
	return port, nil
}

// Check tolerates a missing port only when absence is the requested state.
func (r *portReconciler) Check(current interface{}) error {
	if current == nil && r.spec.State == StatePresent {
		return verrors.NewVplexErrorf(verrors.NotFound,
			"could not find port %s in %s", r.spec.Name, r.spec.Cluster)
	}
	return nil
}

func (r *portReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	port, _ := current.(*model.Port)
	if port == nil {
		log.Infof("port %s is already absent from %s", r.spec.Name, r.spec.Cluster)
		return nil, nil
	}
	if r.spec.Enabled == nil || port.Enabled == *r.spec.Enabled {
		return nil, nil
	}

	desired := *r.spec.Enabled
	verb := "disable"
	if desired {
		verb = "enable"
	}
	return []reconcile.Action{{
		Summary: verb + " port " + r.spec.Name,
		Apply: func() (interface{}, error) {
			return r.api.PatchPort(r.spec.Cluster, r.spec.Name, []model.PatchOp{
				{Op: model.OpReplace, Path: "/enabled", Value: desired},
			})
		},
	}}, nil
}
