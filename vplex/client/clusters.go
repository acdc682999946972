// Copyright 2020 Dell Inc. or its subsidiaries.

package client

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	log "github.com/dell-storage/vplex-host-libs/logger"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

// VersionInfo is the appliance identification banner.
type VersionInfo struct {
	ProductVersion string `json:"product_version"`
	ProductFamily  string `json:"product_family"`
}

// decodeList converts a generic list payload into a typed slice. List
// endpoints return partial records when field filters are applied, so the
// decode must tolerate missing keys.
func decodeList(in []map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return verrors.NewVplexError(verrors.Internal, err)
	}
	if err := decoder.Decode(in); err != nil {
		return verrors.NewVplexError(verrors.Internal, err)
	}
	return nil
}

// GetVplexSetup fetches the appliance identification banner. It doubles as
// the session probe: a non-VPLEX endpoint answers with something this cannot
// decode or with a 404, both reported as Unavailable.
func (c *Client) GetVplexSetup() (*VersionInfo, error) {
	log.Trace(">>>>> GetVplexSetup called")
	defer log.Trace("<<<<< GetVplexSetup")

	info := &VersionInfo{}
	if err := c.getJSON(apiVersion, info); err != nil {
		if verrors.CodeOf(err) == verrors.NotFound || verrors.CodeOf(err) == verrors.Internal {
			return nil, verrors.NewVplexError(verrors.Unavailable,
				"the configured host does not appear to be a VPLEX management endpoint")
		}
		return nil, err
	}
	log.Infof("VPLEX setup: %s %s", info.ProductFamily, info.ProductVersion)
	return info, nil
}

// GetClusters lists all clusters.
func (c *Client) GetClusters(filters map[string]string) ([]model.Cluster, error) {
	log.Trace(">>>>> GetClusters called")
	defer log.Trace("<<<<< GetClusters")

	var raw []map[string]interface{}
	if err := c.getJSON(clustersURI+encodeFilters(filters), &raw); err != nil {
		return nil, err
	}
	var clusters []model.Cluster
	if err := decodeList(raw, &clusters); err != nil {
		return nil, err
	}
	return clusters, nil
}

// GetCluster fetches one cluster by name.
func (c *Client) GetCluster(name string) (*model.Cluster, error) {
	log.Trace(">>>>> GetCluster called")
	defer log.Trace("<<<<< GetCluster")

	cluster := &model.Cluster{}
	if err := c.getJSON(fmt.Sprintf(clusterURI, name), cluster); err != nil {
		return nil, err
	}
	return cluster, nil
}

// VerifyClusterName confirms the named cluster exists and is reachable.
func (c *Client) VerifyClusterName(name string) error {
	log.Trace(">>>>> VerifyClusterName called")
	defer log.Trace("<<<<< VerifyClusterName")

	if _, err := c.GetCluster(name); err != nil {
		if verrors.IsNotFound(err) {
			return verrors.NewVplexErrorf(verrors.NotFound, "Could not find resource %s", name)
		}
		return err
	}
	return nil
}

// CheckClustersHealthy fails when any cluster reports a degraded
// inter-cluster link. Distributed topology mutations call this first;
// reads never do.
func (c *Client) CheckClustersHealthy() error {
	log.Trace(">>>>> CheckClustersHealthy called")
	defer log.Trace("<<<<< CheckClustersHealthy")

	clusters, err := c.GetClusters(nil)
	if err != nil {
		return err
	}
	var degraded []string
	for i := range clusters {
		if clusters[i].Degraded() {
			degraded = append(degraded, clusters[i].Name)
		}
	}
	if len(degraded) > 0 {
		return verrors.NewVplexErrorf(verrors.FailedPrecondition,
			"cluster %s is degraded, distributed operations are not allowed until the inter-cluster link recovers",
			strings.Join(degraded, ", "))
	}
	return nil
}

// Director is one processing module of the appliance.
type Director struct {
	Name                string `json:"name"`
	CommunicationStatus string `json:"communication_status,omitempty"`
}

// GetDirectors lists the appliance directors.
func (c *Client) GetDirectors() ([]Director, error) {
	log.Trace(">>>>> GetDirectors called")
	defer log.Trace("<<<<< GetDirectors")

	var raw []map[string]interface{}
	if err := c.getJSON(directorsURI, &raw); err != nil {
		return nil, err
	}
	var directors []Director
	if err := decodeList(raw, &directors); err != nil {
		return nil, err
	}
	return directors, nil
}

// CheckDirectorsReachable fails when any director reports a communication
// status other than ok. Cache invalidation requires every director.
func (c *Client) CheckDirectorsReachable() error {
	log.Trace(">>>>> CheckDirectorsReachable called")
	defer log.Trace("<<<<< CheckDirectorsReachable")

	directors, err := c.GetDirectors()
	if err != nil {
		return err
	}
	for i := range directors {
		if directors[i].CommunicationStatus != "ok" {
			return verrors.NewVplexErrorf(verrors.FailedPrecondition,
				"director %s communication status is %s, expected ok",
				directors[i].Name, directors[i].CommunicationStatus)
		}
	}
	return nil
}

// encodeFilters renders the query string for a filtered list call. Values
// are assumed already encoded by the filter builder.
func encodeFilters(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(filters))
	for key, value := range filters {
		pairs = append(pairs, key+"="+value)
	}
	// Stable order keeps the request logs reproducible.
	sort.Strings(pairs)
	return "?" + strings.Join(pairs, "&")
}
