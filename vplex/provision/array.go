// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// StorageArraySpec reads a back-end array and optionally triggers a
// rediscovery of its logical units. Rediscover always reports a change.
type StorageArraySpec struct {
	Cluster    string
	Name       string
	Rediscover bool
}

type storageArrayReconciler struct {
	api  *client.Client
	spec StorageArraySpec
}

var _ reconcile.Reconciler = (*storageArrayReconciler)(nil)

// ReconcileStorageArray fetches a back-end array and rediscovers it when
// requested.
func ReconcileStorageArray(api *client.Client, spec StorageArraySpec) (*reconcile.Result, error) {
	return reconcile.Run(&storageArrayReconciler{api: api, spec: spec})
}

func (r *storageArrayReconciler) Validate() error {
	if r.spec.Name == "" {
		return verrors.NewVplexError(verrors.InvalidArgument, "array_name is required")
	}
	return r.api.VerifyClusterName(r.spec.Cluster)
}

func (r *storageArrayReconciler) Fetch() (interface{}, error) {
	return r.api.GetStorageArray(r.spec.Cluster, r.spec.Name)
}

func (r *storageArrayReconciler) Check(current interface{}) error {
	return nil
}

func (r *storageArrayReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	if !r.spec.Rediscover {
		array := current.(*model.StorageArray)
		log.Debugf("storage array %s on %s is %s", array.Name, r.spec.Cluster, array.ConnectivityStatus)
		return nil, nil
	}
	return []reconcile.Action{{
		Summary: "rediscover storage array " + r.spec.Name,
		Apply: func() (interface{}, error) {
			return r.api.RediscoverStorageArray(r.spec.Cluster, r.spec.Name)
		},
	}}, nil
}
