// Copyright 2020 Dell Inc. or its subsidiaries.

package model

import (
	"sort"
	"strings"

	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

// Device geometries.
const (
	GeometryRaid0 = "raid-0"
	GeometryRaid1 = "raid-1"
	GeometryRaidC = "raid-c"
)

// Migration transfer size bounds. Values must be 4 KiB aligned.
const (
	TransferSizeMin   int64 = 40960
	TransferSizeMax   int64 = 134217728
	TransferSizeAlign int64 = 4096

	// DefaultExtentTransferSize is applied to extent migrations created
	// without an explicit transfer size.
	DefaultExtentTransferSize int64 = 131072
)

// stripeDepthCodes maps the human stripe depth units accepted on raid-0
// device creation to the appliance-native depth codes.
var stripeDepthCodes = map[string]int64{
	"4KB":   1,
	"8KB":   2,
	"16KB":  4,
	"32KB":  8,
	"64KB":  16,
	"128KB": 32,
	"256KB": 64,
	"512KB": 128,
	"1MB":   256,
}

// StripeDepthCode translates a human stripe depth unit into the appliance
// code. Only the fixed enumerated set is accepted.
func StripeDepthCode(unit string) (int64, error) {
	if code, ok := stripeDepthCodes[strings.ToUpper(unit)]; ok {
		return code, nil
	}
	return 0, verrors.NewVplexErrorf(verrors.InvalidArgument,
		"invalid stripe_depth %q, supported values are %s", unit, strings.Join(stripeDepthUnits(), ", "))
}

func stripeDepthUnits() []string {
	units := make([]string, 0, len(stripeDepthCodes))
	for unit := range stripeDepthCodes {
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool { return stripeDepthCodes[units[i]] < stripeDepthCodes[units[j]] })
	return units
}

// ValidateTransferSize enforces the migration transfer size window and its
// 4 KiB alignment before the value is ever placed in a patch.
func ValidateTransferSize(size int64) error {
	if size < TransferSizeMin || size > TransferSizeMax {
		return verrors.NewVplexErrorf(verrors.OutOfRange,
			"transfer_size %d out of range, valid range is %d to %d", size, TransferSizeMin, TransferSizeMax)
	}
	if size%TransferSizeAlign != 0 {
		return verrors.NewVplexErrorf(verrors.OutOfRange,
			"transfer_size %d must be a multiple of %d", size, TransferSizeAlign)
	}
	return nil
}
