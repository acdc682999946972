// Copyright 2020 Dell Inc. or its subsidiaries.

package model

import (
	"regexp"
	"strconv"

	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

const (
	B  int64 = 1
	KB int64 = 1024
	MB int64 = 1024 * KB
	GB int64 = 1024 * MB
	TB int64 = 1024 * GB
)

var capacityPattern = regexp.MustCompile(`^([0-9]+)(B|KB|MB|GB|TB)?$`)

// ParseCapacity converts a size string with an optional unit suffix
// ("512000", "100MB", "2GB", "1TB") into a byte count. A bare number is
// already bytes.
func ParseCapacity(s string) (int64, error) {
	m := capacityPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid capacity %q, expected a number with optional B/KB/MB/GB/TB suffix", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, verrors.NewVplexErrorf(verrors.InvalidArgument, "invalid capacity %q: %v", s, err)
	}
	switch m[2] {
	case "", "B":
		return n * B, nil
	case "KB":
		return n * KB, nil
	case "MB":
		return n * MB, nil
	case "GB":
		return n * GB, nil
	case "TB":
		return n * TB, nil
	}
	return n, nil
}
