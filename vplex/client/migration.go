// Copyright 2020 Dell Inc. or its subsidiaries.

package client

import (
	"fmt"

	log "github.com/dell-storage/vplex-host-libs/logger"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

// Migration job types.
const (
	MigrationTypeDevice = "device"
	MigrationTypeExtent = "extent"
)

func migrationURIs(jobType string) (collection, item string, err error) {
	switch jobType {
	case MigrationTypeDevice:
		return deviceMigrationsURI, deviceMigrationURI, nil
	case MigrationTypeExtent:
		return extentMigrationsURI, extentMigrationURI, nil
	default:
		return "", "", verrors.NewVplexErrorf(verrors.InvalidArgument,
			"invalid migration type %q, expected %q or %q", jobType, MigrationTypeDevice, MigrationTypeExtent)
	}
}

// GetMigrations lists the migration jobs of the given type.
func (c *Client) GetMigrations(jobType string, filters map[string]string) ([]model.MigrationJob, error) {
	log.Trace(">>>>> GetMigrations called, type: ", jobType)
	defer log.Trace("<<<<< GetMigrations")

	collection, _, err := migrationURIs(jobType)
	if err != nil {
		return nil, err
	}
	var raw []map[string]interface{}
	if err := c.getJSON(collection+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var jobs []model.MigrationJob
	if err := decodeList(raw, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetMigration fetches one migration job by name.
func (c *Client) GetMigration(jobType, name string) (*model.MigrationJob, error) {
	log.Trace(">>>>> GetMigration called, name: ", name)
	defer log.Trace("<<<<< GetMigration")

	_, item, err := migrationURIs(jobType)
	if err != nil {
		return nil, err
	}
	job := &model.MigrationJob{}
	if err := c.getJSON(fmt.Sprintf(item, name), job); err != nil {
		return nil, err
	}
	return job, nil
}

// CreateMigration starts a migration job between a source and a target.
func (c *Client) CreateMigration(jobType string, payload map[string]interface{}) (*model.MigrationJob, error) {
	log.Trace(">>>>> CreateMigration called, type: ", jobType)
	defer log.Trace("<<<<< CreateMigration")

	collection, _, err := migrationURIs(jobType)
	if err != nil {
		return nil, err
	}
	job := &model.MigrationJob{}
	if err := c.doJSON("POST", collection, payload, job); err != nil {
		return nil, err
	}
	return job, nil
}

// PatchMigration applies a batch of patch ops to a migration job.
func (c *Client) PatchMigration(jobType, name string, ops []model.PatchOp) (*model.MigrationJob, error) {
	log.Trace(">>>>> PatchMigration called, name: ", name)
	defer log.Trace("<<<<< PatchMigration")

	_, item, err := migrationURIs(jobType)
	if err != nil {
		return nil, err
	}
	job := &model.MigrationJob{}
	if err := c.doJSON("PATCH", fmt.Sprintf(item, name), ops, job); err != nil {
		return nil, err
	}
	return job, nil
}

// DeleteMigration removes a migration job record.
func (c *Client) DeleteMigration(jobType, name string) error {
	log.Trace(">>>>> DeleteMigration called, name: ", name)
	defer log.Trace("<<<<< DeleteMigration")

	_, item, err := migrationURIs(jobType)
	if err != nil {
		return err
	}
	return c.doJSON("DELETE", fmt.Sprintf(item, name), nil, nil)
}
