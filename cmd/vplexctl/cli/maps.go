// Copyright 2020 Dell Inc. or its subsidiaries.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dell-storage/vplex-host-libs/vplex/provision"
)

var mapsCluster string

var mapsCmd = &cobra.Command{
	Use:   "maps <entity_type> <entity_name>",
	Short: "Render the use hierarchy of a storage entity",
	Long: "Entity types: virtual_volumes, devices, extents, storage_volumes. " +
		"Without --cluster, devices and virtual_volumes resolve in the distributed namespace.",
	Example: "vplexctl maps --cluster cluster-1 virtual_volumes ansible_vv",
	Args:    cobra.ExactArgs(2),
	RunE:    mapsRunE,
}

func init() {
	mapsCmd.Flags().StringVar(&mapsCluster, "cluster", "", "cluster owning the entity")
	rootCmd.AddCommand(mapsCmd)
}

func mapsRunE(_ *cobra.Command, args []string) error {
	api, err := session()
	if err != nil {
		return err
	}
	lines, err := provision.ShowUseHierarchy(api, provision.MapSpec{
		Cluster:    mapsCluster,
		EntityType: args[0],
		EntityName: args[1],
	})
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}
