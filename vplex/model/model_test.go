// Copyright 2020 Dell Inc. or its subsidiaries.

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxLen  int
		wantErr bool
	}{
		{"simple", "dev_vol_1", MaxNameLength, false},
		{"leading underscore", "_ansible_cg", MaxNameLength, false},
		{"hyphens allowed", "cluster-1-view", MaxShortNameLength, false},
		{"empty", "", MaxNameLength, true},
		{"leading digit", "1volume", MaxNameLength, true},
		{"special characters", "vol$1", MaxNameLength, true},
		{"space", "my volume", MaxNameLength, true},
		{"too long", "abcdefghijklmnopqrstuvwxyz_abcdefghij", MaxShortNameLength, true},
		{"at short limit", "abcdefghijklmnopqrstuvwxyz_abcdefghi", MaxShortNameLength, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input, tt.maxLen, "resource_name")
			if tt.wantErr {
				assert.NotNil(t, err)
				assert.Equal(t, verrors.InvalidArgument, verrors.CodeOf(err))
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestParseCapacity(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"512000", 512000, false},
		{"100B", 100, false},
		{"4KB", 4096, false},
		{"100MB", 104857600, false},
		{"2GB", 2147483648, false},
		{"1TB", 1099511627776, false},
		{"1.5GB", 0, true},
		{"GB", 0, true},
		{"-1GB", 0, true},
		{"100PB", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCapacity(tt.input)
		if tt.wantErr {
			assert.NotNil(t, err, tt.input)
		} else {
			assert.Nil(t, err, tt.input)
			assert.Equal(t, tt.want, got, tt.input)
		}
	}
}

func TestValidateTransferSize(t *testing.T) {
	// one below the minimum
	assert.NotNil(t, ValidateTransferSize(40959))
	// both bounds are valid 4 KiB multiples
	assert.Nil(t, ValidateTransferSize(40960))
	assert.Nil(t, ValidateTransferSize(134217728))
	// in range but misaligned
	assert.NotNil(t, ValidateTransferSize(40961))
	// one above the maximum
	assert.NotNil(t, ValidateTransferSize(134217729))
	assert.Equal(t, verrors.OutOfRange, verrors.CodeOf(ValidateTransferSize(0)))
}

func TestStripeDepthCode(t *testing.T) {
	tests := []struct {
		unit string
		want int64
	}{
		{"4KB", 1}, {"8KB", 2}, {"16KB", 4}, {"32KB", 8}, {"64KB", 16},
		{"128KB", 32}, {"256KB", 64}, {"512KB", 128}, {"1MB", 256},
	}
	for _, tt := range tests {
		got, err := StripeDepthCode(tt.unit)
		assert.Nil(t, err, tt.unit)
		assert.Equal(t, tt.want, got, tt.unit)
	}

	// lower case accepted
	got, err := StripeDepthCode("64kb")
	assert.Nil(t, err)
	assert.Equal(t, int64(16), got)

	_, err = StripeDepthCode("2MB")
	assert.NotNil(t, err)
}

func TestNameFromURI(t *testing.T) {
	assert.Equal(t, "dd_src_tgt", NameFromURI("/vplex/v2/distributed_storage/distributed_devices/dd_src_tgt"))
	assert.Equal(t, "vol_1", NameFromURI("vol_1"))
	assert.Equal(t, "devices", CollectionFromURI("/vplex/v2/clusters/cluster-1/devices/dev_1"))
}

func TestClusterDegraded(t *testing.T) {
	assert.False(t, (&Cluster{Name: "cluster-1", OperationalStatus: "ok"}).Degraded())
	assert.True(t, (&Cluster{Name: "cluster-2", OperationalStatus: "degraded"}).Degraded())
	var nilCluster *Cluster
	assert.False(t, nilCluster.Degraded())
}

func TestDeviceRebuilding(t *testing.T) {
	assert.True(t, (&Device{RebuildStatus: "rebuilding"}).Rebuilding())
	assert.True(t, (&Device{HealthIndications: []string{"rebuilding (4%)"}}).Rebuilding())
	assert.False(t, (&Device{RebuildStatus: "done"}).Rebuilding())
}
