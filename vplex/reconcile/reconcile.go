// Copyright 2020 Dell Inc. or its subsidiaries.

// Package reconcile holds the generic desired-state engine. A resource
// family implements the Reconciler interface with its own validation,
// fetch, precondition and planning rules; the engine owns the control flow
// and the changed/unchanged accounting.
//
// Idempotence comes from re-deriving everything from the appliance on each
// run: a plan is only non-empty when the current state differs from the
// desired state, so running the same request twice reports a change at most
// once.
package reconcile

import (
	log "github.com/dell-storage/vplex-host-libs/logger"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

// Result is the single terminal outcome of one reconciliation run.
// Changed is true iff at least one mutating call actually executed.
type Result struct {
	Changed bool
	Details interface{}
}

// Action is one planned mutating step. Apply issues exactly one remote call
// and returns the resulting resource representation.
type Action struct {
	Summary string
	Apply   func() (interface{}, error)
}

// Reconciler describes one resource family to the engine.
//
// Fetch returns the current representation or nil when the resource is
// absent; absence is an answer, not an error. Check runs the family's
// precondition rules against the fetched state. Plan emits the ordered list
// of actions that converge current state to desired state; an empty plan
// means the desired state already holds.
type Reconciler interface {
	Validate() error
	Fetch() (interface{}, error)
	Check(current interface{}) error
	Plan(current interface{}) ([]Action, error)
}

// Run drives one reconciliation: validate, fetch, check, plan, apply.
// Each action issues its own remote call; the details of the last applied
// action (or the fetched state when nothing changed) are reported back.
func Run(r Reconciler) (*Result, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	current, err := r.Fetch()
	if err != nil {
		return nil, err
	}

	if err := r.Check(current); err != nil {
		return nil, err
	}

	actions, err := r.Plan(current)
	if err != nil {
		return nil, err
	}

	if len(actions) == 0 {
		log.Debug("nothing to do, current state already matches the request")
		return &Result{Changed: false, Details: current}, nil
	}

	details := current
	for _, action := range actions {
		log.Infof("applying: %s", action.Summary)
		details, err = action.Apply()
		if err != nil {
			return nil, err
		}
	}
	return &Result{Changed: true, Details: details}, nil
}

// IsNil treats a typed nil pointer fetched state the same as absence.
func IsNil(current interface{}) bool {
	return current == nil
}

// SetMembership computes the patch ops that converge the membership list at
// path toward the request. When present is true an add op is emitted for
// each requested URI not already a member; when false a remove op for each
// requested URI that is a member. Members never mentioned in the request are
// left untouched.
func SetMembership(path string, currentURIs, requestedURIs []string, present bool) []model.PatchOp {
	currentSet := make(map[string]bool, len(currentURIs))
	for _, uri := range currentURIs {
		currentSet[uri] = true
	}

	var ops []model.PatchOp
	for _, uri := range requestedURIs {
		switch {
		case present && !currentSet[uri]:
			ops = append(ops, model.PatchOp{Op: model.OpAdd, Path: path, Value: uri})
		case !present && currentSet[uri]:
			ops = append(ops, model.PatchOp{Op: model.OpRemove, Path: path, Value: uri})
		default:
			log.Debugf("member %s already in the requested state", uri)
		}
	}
	return ops
}

// OrderedPrefixSuffix validates that existing is an exact ordered prefix of
// requested and returns the suffix still to be applied. A shorter request
// that matches the existing prefix yields an empty suffix. Any mismatch in
// the shared prefix fails the whole operation before anything is mutated.
func OrderedPrefixSuffix(existing, requested []string) ([]string, error) {
	shared := len(existing)
	if len(requested) < shared {
		shared = len(requested)
	}
	for i := 0; i < shared; i++ {
		if existing[i] != requested[i] {
			return nil, verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"the supplied list must match the existing order: position %d has %s, expected %s",
				i+1, requested[i], existing[i])
		}
	}
	if len(requested) <= len(existing) {
		return nil, nil
	}
	return requested[len(existing):], nil
}

// ReplaceIfChanged emits a single replace op when the current value differs
// from the desired one.
func ReplaceIfChanged(path string, current, desired interface{}) []model.PatchOp {
	if current == desired {
		return nil
	}
	return []model.PatchOp{{Op: model.OpReplace, Path: path, Value: desired}}
}
