// Copyright 2020 Dell Inc. or its subsidiaries.

// Package client is the REST facade over the VPLEX management API. Each
// method issues one call against the /vplex/v2 URI space and translates the
// outcome into typed errors, leaving every reconciliation decision to the
// layers above.
package client

import (
	"fmt"
	"io/ioutil"
	"time"

	uuid "github.com/satori/go.uuid"

	log "github.com/dell-storage/vplex-host-libs/logger"
	"github.com/dell-storage/vplex-host-libs/vplex/connectivity"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

const (
	// REST endpoint API version
	apiVersion = "/vplex/v2"

	// Cluster-scoped endpoints
	clustersURI        = apiVersion + "/clusters"           // /vplex/v2/clusters
	clusterURI         = clustersURI + "/%s"                // /vplex/v2/clusters/{cluster}
	storageArraysURI   = clusterURI + "/storage_arrays"     // .../storage_arrays
	storageArrayURI    = storageArraysURI + "/%s"           // .../storage_arrays/{name}
	storageVolumesURI  = clusterURI + "/storage_volumes"    // .../storage_volumes
	storageVolumeURI   = storageVolumesURI + "/%s"          // .../storage_volumes/{name}
	extentsURI         = clusterURI + "/extents"            // .../extents
	extentURI          = extentsURI + "/%s"                 // .../extents/{name}
	devicesURI         = clusterURI + "/devices"            // .../devices
	deviceURI          = devicesURI + "/%s"                 // .../devices/{name}
	virtualVolumesURI  = clusterURI + "/virtual_volumes"    // .../virtual_volumes
	virtualVolumeURI   = virtualVolumesURI + "/%s"          // .../virtual_volumes/{name}
	consistencyGrpsURI = clusterURI + "/consistency_groups" // .../consistency_groups
	consistencyGrpURI  = consistencyGrpsURI + "/%s"         // .../consistency_groups/{name}
	ampsURI            = clusterURI + "/array_management_providers"
	ampURI             = ampsURI + "/%s"

	// Export endpoints
	exportsURI       = clusterURI + "/exports"
	storageViewsURI  = exportsURI + "/storage_views"   // .../exports/storage_views
	storageViewURI   = storageViewsURI + "/%s"         // .../exports/storage_views/{name}
	initiatorsURI    = exportsURI + "/initiator_ports" // .../exports/initiator_ports
	initiatorURI     = initiatorsURI + "/%s"           // .../exports/initiator_ports/{name}
	portsURI         = exportsURI + "/ports"           // .../exports/ports
	portURI          = portsURI + "/%s"                // .../exports/ports/{name}
	hardwarePortsURI = apiVersion + "/hardware_ports"  // /vplex/v2/hardware_ports

	// Distributed storage endpoints
	distributedStorageURI  = apiVersion + "/distributed_storage"
	distDevicesURI         = distributedStorageURI + "/distributed_devices"
	distDeviceURI          = distDevicesURI + "/%s"
	distConsistencyGrpsURI = distributedStorageURI + "/distributed_consistency_groups"
	distConsistencyGrpURI  = distConsistencyGrpsURI + "/%s"
	distVirtualVolumesURI  = distributedStorageURI + "/distributed_virtual_volumes"
	distVirtualVolumeURI   = distVirtualVolumesURI + "/%s"
	ruleSetsURI            = distributedStorageURI + "/rule_sets"
	ruleSetURI             = ruleSetsURI + "/%s"

	// Data migration endpoints
	dataMigrationsURI   = apiVersion + "/data_migrations"
	deviceMigrationsURI = dataMigrationsURI + "/device_migrations"
	deviceMigrationURI  = deviceMigrationsURI + "/%s"
	extentMigrationsURI = dataMigrationsURI + "/extent_migrations"
	extentMigrationURI  = extentMigrationsURI + "/%s"

	// Director endpoint
	directorsURI = apiVersion + "/directors"

	// Maps endpoint
	mapsURI = apiVersion + "/maps"
)

// Session timeout bounds in seconds.
const (
	DefaultTimeoutSeconds = 30
	MinTimeoutSeconds     = 1
	MaxTimeoutSeconds     = 3600
)

// Config describes one management session. Credentials are mandatory,
// certificate verification requires a CA bundle path.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	VerifyCert     bool
	SSLCACertPath  string
	TimeoutSeconds int
}

// Client talks to one VPLEX management endpoint.
type Client struct {
	http      *connectivity.Client
	sessionID string
}

// apiError is the error body shape returned by the appliance.
type apiError struct {
	ErrorCode int    `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// New validates the session configuration and returns a client. Validation
// failures never touch the network:
//   - empty credentials
//   - certificate verification requested without a CA bundle
//   - timeout outside [1, 3600] seconds
func New(cfg *Config) (*Client, error) {
	log.Trace(">>>>> New client called")
	defer log.Trace("<<<<< New client")

	if cfg == nil || cfg.Host == "" {
		return nil, verrors.NewVplexError(verrors.InvalidArgument, "vplexhost is required")
	}
	if cfg.User == "" || cfg.Password == "" {
		return nil, verrors.NewVplexError(verrors.Unauthenticated,
			"Incorrect username or password")
	}
	if cfg.VerifyCert && cfg.SSLCACertPath == "" {
		return nil, verrors.NewVplexError(verrors.InvalidArgument,
			"SSL certificate path is required when certificate verification is enabled")
	}

	timeout := cfg.TimeoutSeconds
	if timeout == 0 {
		timeout = DefaultTimeoutSeconds
	}
	if timeout < MinTimeoutSeconds || timeout > MaxTimeoutSeconds {
		return nil, verrors.NewVplexErrorf(verrors.InvalidArgument,
			"Invalid timeout value %d. The valid range is from %d to %d", cfg.TimeoutSeconds, MinTimeoutSeconds, MaxTimeoutSeconds)
	}

	port := cfg.Port
	if port == 0 {
		port = 443
	}

	tlsOpts := connectivity.TLSOptions{SkipVerify: !cfg.VerifyCert}
	if cfg.VerifyCert {
		pem, err := ioutil.ReadFile(cfg.SSLCACertPath)
		if err != nil {
			return nil, verrors.NewVplexErrorf(verrors.InvalidArgument,
				"could not read SSL certificate %s: %v", cfg.SSLCACertPath, err)
		}
		tlsOpts.CACertPEM = pem
	}

	baseURL := fmt.Sprintf("https://%s:%d", cfg.Host, port)
	httpClient := connectivity.NewHTTPClientWithTimeoutAndTLS(baseURL, time.Duration(timeout)*time.Second, tlsOpts)
	httpClient.SetBasicAuth(cfg.User, cfg.Password)

	return &Client{
		http:      httpClient,
		sessionID: uuid.NewV4().String(),
	}, nil
}

// header returns per-request headers. The session id ties every appliance
// call in one invocation together in the logs on both ends.
func (c *Client) header() map[string]string {
	return map[string]string{"X-Request-Id": c.sessionID}
}

// doJSON performs one call and folds the appliance error body, when present,
// into the returned typed error.
func (c *Client) doJSON(action, path string, payload, out interface{}) error {
	respErr := &apiError{}
	_, err := c.http.DoJSON(&connectivity.Request{
		Action:        action,
		Path:          path,
		Header:        c.header(),
		Payload:       payload,
		Response:      out,
		ResponseError: respErr,
	})
	if err != nil {
		if respErr.Message != "" {
			return verrors.NewVplexError(verrors.CodeOf(err), respErr.Message)
		}
		return err
	}
	return nil
}

// getJSON is doJSON for reads.
func (c *Client) getJSON(path string, out interface{}) error {
	return c.doJSON("GET", path, nil, out)
}
