// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/reconcile"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// Migration status verbs accepted in a task.
const (
	MigrationPause  = "pause"
	MigrationResume = "resume"
	MigrationCancel = "cancel"
	MigrationCommit = "commit"
)

const transferSizeOp = "transfer size"

// migrationOperations lists the verbs a job accepts in each reported state.
var migrationOperations = map[string][]string{
	"queued":              {MigrationCancel, MigrationPause, transferSizeOp},
	"in-progress":         {MigrationCancel, MigrationPause, transferSizeOp},
	"paused":              {MigrationResume, MigrationCancel, transferSizeOp},
	"commit pending":      {MigrationCommit, MigrationCancel, transferSizeOp},
	"complete":            {MigrationCommit, MigrationCancel, transferSizeOp},
	"committed":           {transferSizeOp},
	"partially-committed": {MigrationCommit},
	"error":               {MigrationCancel},
	"cancelled":           {transferSizeOp},
	"partially-cancelled": {MigrationCancel},
}

// migrationIdemTargets maps each verb to the state that makes reissuing it a
// no-op.
var migrationIdemTargets = map[string]string{
	MigrationCommit: "committed",
	MigrationPause:  "paused",
	MigrationResume: "in-progress",
	MigrationCancel: "cancelled",
}

// MigrationSpec is the desired state of a device or extent data migration
// job. JobType selects the collection, Status requests a transition.
type MigrationSpec struct {
	Name          string
	JobType       string
	Cluster       string
	TargetCluster string
	Source        string
	Target        string
	TransferSize  int64
	Status        string
	State         string
}

type migrationReconciler struct {
	api  *client.Client
	spec MigrationSpec
}

var _ reconcile.Reconciler = (*migrationReconciler)(nil)

// ReconcileMigration converges a data migration job to the requested state.
func ReconcileMigration(api *client.Client, spec MigrationSpec) (*reconcile.Result, error) {
	return reconcile.Run(&migrationReconciler{api: api, spec: spec})
}

func (r *migrationReconciler) Validate() error {
	if err := validateState(r.spec.State); err != nil {
		return err
	}
	if err := model.ValidateName(r.spec.Name, model.MaxNameLength, "migration_name"); err != nil {
		return err
	}
	if r.spec.JobType != client.MigrationTypeDevice && r.spec.JobType != client.MigrationTypeExtent {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid migration job type %q, expected %q or %q",
			r.spec.JobType, client.MigrationTypeDevice, client.MigrationTypeExtent)
	}
	switch r.spec.Status {
	case "", MigrationPause, MigrationResume, MigrationCancel, MigrationCommit:
	default:
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid migration status %q", r.spec.Status)
	}
	if r.spec.TransferSize != 0 {
		return model.ValidateTransferSize(r.spec.TransferSize)
	}
	return nil
}

func (r *migrationReconciler) Fetch() (interface{}, error) {
	job, err := r.api.GetMigration(r.spec.JobType, r.spec.Name)
	if err != nil {
		return nil, absentOnNotFound(err)
	}
	return job, nil
}

func (r *migrationReconciler) targetCluster() string {
	if r.spec.TargetCluster == "" {
		return r.spec.Cluster
	}
	return r.spec.TargetCluster
}

func (r *migrationReconciler) sourceURI() string {
	return r.endpointURI(r.spec.Cluster, r.spec.Source)
}

func (r *migrationReconciler) targetURI() string {
	cluster := r.targetCluster()
	if r.spec.JobType == client.MigrationTypeExtent {
		cluster = r.spec.Cluster
	}
	return r.endpointURI(cluster, r.spec.Target)
}

func (r *migrationReconciler) endpointURI(cluster, name string) string {
	if r.spec.JobType == client.MigrationTypeDevice {
		return client.DeviceURI(cluster, name)
	}
	return client.ExtentURI(cluster, name)
}

func (r *migrationReconciler) Check(current interface{}) error {
	job, _ := current.(*model.MigrationJob)

	if job == nil && r.spec.State == StatePresent {
		if r.spec.Source == "" || r.spec.Target == "" || r.spec.Cluster == "" {
			return verrors.NewVplexErrorf(verrors.NotFound,
				"could not find %s migration job %s", r.spec.JobType, r.spec.Name)
		}
		return r.checkCreate()
	}

	// The same name with a different endpoint pair is a conflict, not an
	// idempotent create.
	if job != nil && r.spec.State == StatePresent && r.spec.Source != "" && r.spec.Target != "" {
		if job.Source != r.sourceURI() || job.Target != r.targetURI() {
			return verrors.NewVplexErrorf(verrors.AlreadyExists,
				"%s migration job %s already exists with a different source and target",
				r.spec.JobType, r.spec.Name)
		}
		log.Infof("%s migration job %s is already present", r.spec.JobType, r.spec.Name)
	}

	if job != nil && r.spec.State == StateAbsent &&
		job.Status != "cancelled" && job.Status != "committed" {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not remove %s migration record for %s, the migration must first be cancelled or committed",
			r.spec.JobType, r.spec.Name)
	}
	return nil
}

// checkCreate validates the endpoint pair: a device migration moves a device
// that carries a virtual volume onto a bare device, an extent migration
// moves a used extent onto an unused one, and the target must be at least as
// large as the source.
func (r *migrationReconciler) checkCreate() error {
	if r.spec.JobType == client.MigrationTypeDevice {
		source, err := r.endpointDevice(r.spec.Cluster, r.spec.Source, "source")
		if err != nil {
			return err
		}
		target, err := r.endpointDevice(r.targetCluster(), r.spec.Target, "target")
		if err != nil {
			return err
		}
		if source.Capacity > target.Capacity {
			return r.capacityError()
		}
		if source.VirtualVolume == "" {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not create a device migration job, the source device %s does not carry a virtual volume",
				r.spec.Source)
		}
		if target.VirtualVolume != "" {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not create a device migration job, the target device %s carries a virtual volume",
				r.spec.Target)
		}
		return nil
	}

	source, err := r.endpointExtent(r.spec.Source, "source")
	if err != nil {
		return err
	}
	target, err := r.endpointExtent(r.spec.Target, "target")
	if err != nil {
		return err
	}
	if source.Capacity > target.Capacity {
		return r.capacityError()
	}
	if source.Use != model.VolumeUseUsed {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not create an extent migration job, the source extent %s does not carry a device",
			r.spec.Source)
	}
	if target.Use == model.VolumeUseUsed {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not create an extent migration job, the target extent %s is in used state",
			r.spec.Target)
	}
	return nil
}

func (r *migrationReconciler) capacityError() error {
	return verrors.NewVplexErrorf(verrors.FailedPrecondition,
		"could not create a %s migration job, the source %s is larger than the target %s",
		r.spec.JobType, r.spec.Source, r.spec.Target)
}

func (r *migrationReconciler) endpointDevice(cluster, name, role string) (*model.Device, error) {
	device, err := r.api.GetDevice(cluster, name)
	if err != nil {
		if verrors.IsNotFound(err) {
			return nil, verrors.NewVplexErrorf(verrors.NotFound,
				"could not create a device migration job, the %s %s is not present in %s",
				role, name, cluster)
		}
		return nil, err
	}
	return device, nil
}

func (r *migrationReconciler) endpointExtent(name, role string) (*model.Extent, error) {
	extent, err := r.api.GetExtent(r.spec.Cluster, name)
	if err != nil {
		if verrors.IsNotFound(err) {
			return nil, verrors.NewVplexErrorf(verrors.NotFound,
				"could not create an extent migration job, the %s %s is not present in %s",
				role, name, r.spec.Cluster)
		}
		return nil, err
	}
	return extent, nil
}

func (r *migrationReconciler) Plan(current interface{}) ([]reconcile.Action, error) {
	job, _ := current.(*model.MigrationJob)

	if r.spec.State == StateAbsent {
		if job == nil {
			log.Infof("%s migration job %s is already absent", r.spec.JobType, r.spec.Name)
			return nil, nil
		}
		return []reconcile.Action{{
			Summary: "delete " + r.spec.JobType + " migration job " + r.spec.Name,
			Apply: func() (interface{}, error) {
				if err := r.api.DeleteMigration(r.spec.JobType, r.spec.Name); err != nil {
					return nil, err
				}
				return nil, nil
			},
		}}, nil
	}

	if job == nil {
		return r.planCreate(), nil
	}

	var ops []model.PatchOp
	if r.spec.Status != "" {
		op, err := r.planTransition(job)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op...)
	}
	if r.spec.TransferSize != 0 && r.spec.TransferSize != job.TransferSize {
		if !migrationStateAllows(job.Status, transferSizeOp) {
			return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"could not update transfer size of %s migration job %s while it is %s",
				r.spec.JobType, r.spec.Name, job.Status)
		}
		ops = append(ops, model.PatchOp{
			Op: model.OpReplace, Path: "/transfer_size", Value: r.spec.TransferSize,
		})
	}
	if len(ops) == 0 {
		return nil, nil
	}
	allOps := ops
	return []reconcile.Action{{
		Summary: "patch " + r.spec.JobType + " migration job " + r.spec.Name,
		Apply: func() (interface{}, error) {
			return r.api.PatchMigration(r.spec.JobType, r.spec.Name, allOps)
		},
	}}, nil
}

func (r *migrationReconciler) planCreate() []reconcile.Action {
	payload := map[string]interface{}{
		"name":   r.spec.Name,
		"source": r.sourceURI(),
		"target": r.targetURI(),
		"paused": r.spec.Status == MigrationPause,
	}
	if r.spec.JobType == client.MigrationTypeExtent {
		size := r.spec.TransferSize
		if size == 0 {
			size = model.DefaultExtentTransferSize
		}
		payload["transfer_size"] = size
	}
	return []reconcile.Action{{
		Summary: "create " + r.spec.JobType + " migration job " + r.spec.Name,
		Apply: func() (interface{}, error) {
			return r.api.CreateMigration(r.spec.JobType, payload)
		},
	}}
}

// planTransition applies the status verb against the job's state machine. A
// verb whose end state the job already reports is a no-op.
func (r *migrationReconciler) planTransition(job *model.MigrationJob) ([]model.PatchOp, error) {
	if migrationIdemTargets[r.spec.Status] == job.Status {
		log.Infof("%s migration job %s is already %s", r.spec.JobType, job.Name, job.Status)
		return nil, nil
	}
	if !migrationStateAllows(job.Status, r.spec.Status) {
		return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"could not update status of %s migration job %s to %s from %s",
			r.spec.JobType, job.Name, r.spec.Status, job.Status)
	}
	return []model.PatchOp{{Op: model.OpReplace, Path: "/status", Value: r.spec.Status}}, nil
}

func migrationStateAllows(state, verb string) bool {
	for _, allowed := range migrationOperations[state] {
		if allowed == verb {
			return true
		}
	}
	return false
}
