// Copyright 2020 Dell Inc. or its subsidiaries.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dell-storage/vplex-host-libs/vplex/provision"
)

var (
	factsCluster string
	factsSubsets []string
	factsFilters []string
)

var factsCmd = &cobra.Command{
	Use:     "facts",
	Short:   "List clusters and the requested inventory subsets",
	Example: "vplexctl facts --cluster cluster-1 --subset stor_vol --subset device",
	RunE:    factsRunE,
}

func init() {
	factsCmd.Flags().StringVar(&factsCluster, "cluster", "", "cluster name for cluster scoped subsets")
	factsCmd.Flags().StringArrayVar(&factsSubsets, "subset", nil, "inventory subset, repeatable")
	factsCmd.Flags().StringArrayVar(&factsFilters, "filter", nil, "filter as key:operator:value, repeatable")
	rootCmd.AddCommand(factsCmd)
}

func factsRunE(_ *cobra.Command, _ []string) error {
	filters, err := parseFilterArgs(factsFilters)
	if err != nil {
		return err
	}
	api, err := session()
	if err != nil {
		return err
	}
	facts, err := provision.GatherFacts(api, provision.GatherFactsSpec{
		Cluster: factsCluster,
		Subsets: factsSubsets,
		Filters: filters,
	})
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Subset", "Name"})
	appendFactRows(t, "cluster", facts.Clusters)
	appendFactRows(t, provision.SubsetStorageArray, facts.StorageArrays)
	appendFactRows(t, provision.SubsetStorageVolume, facts.StorageVolumes)
	appendFactRows(t, provision.SubsetPort, facts.Ports)
	appendFactRows(t, provision.SubsetBackendPort, facts.BackendPorts)
	for _, initiator := range facts.Initiators {
		name := initiator.Name
		if initiator.Type != "" {
			name += " (" + initiator.Type + ")"
		}
		t.AppendRow(table.Row{provision.SubsetInitiator, name})
	}
	appendFactRows(t, provision.SubsetStorageView, facts.StorageViews)
	appendFactRows(t, provision.SubsetVirtualVolume, facts.VirtualVolumes)
	appendFactRows(t, provision.SubsetConsistencyGroup, facts.ConsistencyGroups)
	appendFactRows(t, provision.SubsetDevice, facts.Devices)
	appendFactRows(t, provision.SubsetExtent, facts.Extents)
	appendFactRows(t, provision.SubsetDistributedDev, facts.DistributedDevices)
	appendFactRows(t, provision.SubsetDistributedCG, facts.DistributedCGs)
	appendFactRows(t, provision.SubsetDistributedVV, facts.DistributedVirtVolumes)
	appendFactRows(t, provision.SubsetDeviceMigration, facts.DeviceMigrationJobs)
	appendFactRows(t, provision.SubsetExtentMigration, facts.ExtentMigrationJobs)
	appendFactRows(t, provision.SubsetAMP, facts.ArrayManagementProviders)
	t.Render()
	return nil
}

func appendFactRows(t table.Writer, subset string, names []string) {
	for _, name := range names {
		t.AppendRow(table.Row{subset, name})
	}
}

func parseFilterArgs(args []string) ([]provision.Filter, error) {
	var filters []provision.Filter
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid filter %q, expected key:operator:value", arg)
		}
		filters = append(filters, provision.Filter{
			Key:      parts[0],
			Operator: parts[1],
			Value:    parts[2],
		})
	}
	return filters, nil
}
