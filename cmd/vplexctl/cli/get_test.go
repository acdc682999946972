// Copyright 2020 Dell Inc. or its subsidiaries.

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dell-storage/vplex-host-libs/vplex/model"
)

func TestMigrationFieldsFormatting(t *testing.T) {
	job := &model.MigrationJob{
		Name:           "mig_1",
		Status:         "in-progress",
		Source:         "/vplex/v2/clusters/cluster-1/devices/dev_src",
		Target:         "/vplex/v2/clusters/cluster-2/devices/dev_tgt",
		TransferSize:   131072,
		PercentageDone: 42.25,
	}
	fields := migrationFields(job)
	assert.Equal(t, [][2]string{
		{"Name", "mig_1"},
		{"Status", "in-progress"},
		{"Source", "dev_src"},
		{"Target", "dev_tgt"},
		{"Transfer size", "131072"},
		{"Done", "42%"},
	}, fields)
}
