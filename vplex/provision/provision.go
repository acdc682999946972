// Copyright 2020 Dell Inc. or its subsidiaries.

// Package provision contains one reconciler per VPLEX resource family. Each
// reconciler is a rule table over the generic engine in vplex/reconcile: it
// validates its inputs locally, fetches current state, enforces the family's
// preconditions, and plans the minimal ordered set of mutating calls.
package provision

import (
	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

// Desired state of a resource.
const (
	StatePresent = "present"
	StateAbsent  = "absent"
)

func validateState(state string) error {
	if state != StatePresent && state != StateAbsent {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid state %q, expected %q or %q", state, StatePresent, StateAbsent)
	}
	return nil
}

// absentOnNotFound absorbs the typed NotFound so callers can treat absence
// as an answer instead of a failure.
func absentOnNotFound(err error) error {
	if err == nil || verrors.IsNotFound(err) {
		return nil
	}
	return err
}

// errCreateAndRename is the rule shared by every family: a create and a
// rename cannot be combined in a single request.
func errCreateAndRename(kind string) error {
	return verrors.NewVplexErrorf(verrors.FailedPrecondition,
		"could not perform create and rename of the %s in a single task, specify each operation in an individual task", kind)
}

// checkDistributedHealthy gates distributed topology mutations on every
// cluster's inter-cluster link being up.
func checkDistributedHealthy(api *client.Client) error {
	return api.CheckClustersHealthy()
}
