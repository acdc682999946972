// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"strings"

	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// Entity collections accepted by the use-hierarchy query.
const (
	EntityVirtualVolumes = "virtual_volumes"
	EntityDevices        = "devices"
	EntityExtents        = "extents"
	EntityStorageVolumes = "storage_volumes"
)

// The hierarchy walk stops at these collections. They still appear in the
// rendering when reached as an ancestor or as a leaf annotation.
var unsupportedMapEntities = []string{
	"distributed_consistency_groups",
	"storage_views",
	"consistency_groups",
	"storage_arrays",
}

// MapSpec selects the storage entity whose use hierarchy is rendered. With
// no cluster, devices and virtual volumes resolve in the distributed
// namespace.
type MapSpec struct {
	Cluster    string
	EntityType string
	EntityName string
}

type hierarchyNode struct {
	uri      string
	children []string
	expanded bool
}

// ShowUseHierarchy renders the use hierarchy of a storage entity down to
// the storage array level as indented text lines. The queried entity's own
// line is starred.
func ShowUseHierarchy(api *client.Client, spec MapSpec) ([]string, error) {
	log.Trace(">>>>> ShowUseHierarchy called")
	defer log.Trace("<<<<< ShowUseHierarchy")

	entityType := spec.EntityType
	var uri string
	switch {
	case spec.Cluster != "":
		uri = client.EntityURI(spec.Cluster, entityType, spec.EntityName)
	case entityType == EntityDevices || entityType == EntityVirtualVolumes:
		entityType = "distributed_" + entityType
		uri = client.DistributedEntityURI(entityType, spec.EntityName)
	default:
		return nil, verrors.NewVplexErrorf(verrors.InvalidArgument,
			"could not get map for %s, the entity type is not supported without a cluster",
			spec.EntityType)
	}
	log.Debugf("use hierarchy root: %s", uri)

	ancestors, err := collectAncestors(api, uri, nil)
	if err != nil {
		return nil, err
	}

	// The topmost supported ancestor anchors the child walk, anything above
	// it is rendered without expansion.
	var nodes []hierarchyNode
	topLevel := uri
	for _, ancestor := range ancestors {
		if !isUnsupportedMapEntity(ancestor) {
			topLevel = ancestor
			break
		}
		nodes = append(nodes, hierarchyNode{uri: ancestor})
	}

	nodes, err = collectDescendants(api, topLevel, nodes)
	if err != nil {
		return nil, err
	}
	return renderHierarchy(nodes, entityType), nil
}

// collectAncestors walks parents recursively and returns them topmost
// first, ending with the starting entity.
func collectAncestors(api *client.Client, uri string, queue []string) ([]string, error) {
	if isUnsupportedMapEntity(uri) {
		return queue, nil
	}
	node, err := api.GetMap(uri)
	if err != nil {
		return nil, err
	}
	for _, parent := range node.Parents {
		queue = append([]string{parent}, queue...)
		queue, err = collectAncestors(api, parent, queue)
		if err != nil {
			return nil, err
		}
	}
	for _, queued := range queue {
		if queued == uri {
			return queue, nil
		}
	}
	return append(queue, uri), nil
}

// collectDescendants walks children depth first, recording each supported
// node with its direct children.
func collectDescendants(api *client.Client, uri string, nodes []hierarchyNode) ([]hierarchyNode, error) {
	if isUnsupportedMapEntity(uri) {
		return nodes, nil
	}
	// Storage volume URIs may carry an escaped colon in the VPD name.
	if strings.Contains(uri, "storage_volumes") {
		uri = strings.ReplaceAll(uri, "%3A", ":")
	}
	node, err := api.GetMap(uri)
	if err != nil {
		return nil, err
	}
	nodes = append(nodes, hierarchyNode{uri: uri, children: node.Children, expanded: true})
	for _, child := range node.Children {
		nodes, err = collectDescendants(api, child, nodes)
		if err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

func isUnsupportedMapEntity(uri string) bool {
	for _, entity := range unsupportedMapEntities {
		if strings.Contains(uri, entity) {
			return true
		}
	}
	return false
}

func uriTypeAndName(uri string) (string, string) {
	parts := strings.Split(uri, "/")
	if len(parts) < 2 {
		return uri, uri
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

// renderHierarchy formats the collected nodes as indented lines. Each
// collection gets one indent level deeper than the collection above it, in
// first appearance order, and a storage array backing a storage volume is
// annotated as a leaf.
func renderHierarchy(nodes []hierarchyNode, entityType string) []string {
	var lines []string
	for _, n := range nodes {
		collection, name := uriTypeAndName(n.uri)
		marker := " "
		if collection == entityType {
			marker = "* "
		}
		lines = append(lines, "("+marker+collection+" ): "+name)

		if n.expanded && len(n.children) > 0 && strings.Contains(n.children[0], "storage_arrays") {
			parts := strings.Split(n.children[0], "/")
			if len(parts) >= 4 {
				arrayType := parts[len(parts)-4]
				arrayName := parts[len(parts)-3]
				lines = append(lines, "( "+arrayType+" ): "+arrayName)
			}
		}
	}

	indentByLabel := map[string]int{}
	indent := 0
	for _, line := range lines {
		label := strings.SplitN(line, "):", 2)[0] + ")"
		if _, ok := indentByLabel[label]; !ok {
			indentByLabel[label] = indent
			indent += 3
		}
	}
	for i, line := range lines {
		label := strings.SplitN(line, "):", 2)[0] + ")"
		lines[i] = strings.Repeat(" ", indentByLabel[label]) + line
	}
	return lines
}
