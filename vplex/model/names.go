// Copyright 2020 Dell Inc. or its subsidiaries.

package model

import (
	"regexp"

	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

// Name length ceilings. Storage views and initiators use the shorter limit.
const (
	MaxNameLength      = 63
	MaxShortNameLength = 36
)

var namePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_\-]*$`)

// ValidateName checks a candidate resource name against the appliance naming
// rules: at most maxLen characters, starting with a letter or underscore,
// built from letters, digits, underscores and hyphens. The field label is
// used in the failure message. Violations are rejected, never truncated.
func ValidateName(name string, maxLen int, field string) error {
	if name == "" {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"%s is empty", field)
	}
	if maxLen <= 0 {
		maxLen = MaxNameLength
	}
	if len(name) > maxLen {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"%s %q exceeds %d characters", field, name, maxLen)
	}
	if !namePattern.MatchString(name) {
		return verrors.NewVplexErrorf(verrors.InvalidArgument,
			"%s %q must start with a letter or underscore and contain only letters, digits, underscores and hyphens", field, name)
	}
	return nil
}
