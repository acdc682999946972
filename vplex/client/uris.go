// Copyright 2020 Dell Inc. or its subsidiaries.

package client

import "fmt"

// Resource URI builders. Patch values that reference another resource carry
// these URIs, so the reconcilers need them as well as the client.

func ClusterURI(cluster string) string {
	return fmt.Sprintf(clusterURI, cluster)
}

func StorageVolumeURI(cluster, name string) string {
	return fmt.Sprintf(storageVolumeURI, cluster, name)
}

func ExtentURI(cluster, name string) string {
	return fmt.Sprintf(extentURI, cluster, name)
}

func DeviceURI(cluster, name string) string {
	return fmt.Sprintf(deviceURI, cluster, name)
}

func VirtualVolumeURI(cluster, name string) string {
	return fmt.Sprintf(virtualVolumeURI, cluster, name)
}

func ConsistencyGroupURI(cluster, name string) string {
	return fmt.Sprintf(consistencyGrpURI, cluster, name)
}

func StorageViewURI(cluster, name string) string {
	return fmt.Sprintf(storageViewURI, cluster, name)
}

func InitiatorURI(cluster, name string) string {
	return fmt.Sprintf(initiatorURI, cluster, name)
}

func PortURI(cluster, name string) string {
	return fmt.Sprintf(portURI, cluster, name)
}

func DistributedDeviceURI(name string) string {
	return fmt.Sprintf(distDeviceURI, name)
}

func DistributedConsistencyGroupURI(name string) string {
	return fmt.Sprintf(distConsistencyGrpURI, name)
}

func DistributedVirtualVolumeURI(name string) string {
	return fmt.Sprintf(distVirtualVolumeURI, name)
}

func RuleSetURI(name string) string {
	return fmt.Sprintf(ruleSetURI, name)
}

// EntityURI builds a cluster-scoped resource URI from its collection name.
func EntityURI(cluster, collection, name string) string {
	return fmt.Sprintf(clusterURI, cluster) + "/" + collection + "/" + name
}

// DistributedEntityURI builds a distributed resource URI from its collection
// name.
func DistributedEntityURI(collection, name string) string {
	return distributedStorageURI + "/" + collection + "/" + name
}
