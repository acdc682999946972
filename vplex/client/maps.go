// Copyright 2020 Dell Inc. or its subsidiaries.

package client

import (
	"net/url"

	log "github.com/dell-storage/vplex-host-libs/logger"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
)

// GetMap fetches the use-hierarchy node for the resource at the given URI:
// its direct parents and children as resource URIs.
func (c *Client) GetMap(resourceURI string) (*model.MapNode, error) {
	log.Trace(">>>>> GetMap called, uri: ", resourceURI)
	defer log.Trace("<<<<< GetMap")

	node := &model.MapNode{}
	if err := c.getJSON(mapsURI+"?uri="+url.QueryEscape(resourceURI), node); err != nil {
		return nil, err
	}
	if node.URI == "" {
		node.URI = resourceURI
	}
	return node, nil
}
