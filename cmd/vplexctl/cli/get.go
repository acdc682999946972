// Copyright 2020 Dell Inc. or its subsidiaries.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/model"
)

var getCluster string

var getCmd = &cobra.Command{
	Use:   "get <family> <name>",
	Short: "Show one storage resource",
	Long: "Families: cluster, storage-volume, extent, device, virtual-volume, " +
		"consistency-group, distributed-device, distributed-consistency-group, " +
		"distributed-virtual-volume, storage-view, initiator, port, storage-array, " +
		"device-migration, extent-migration.",
	Example: "vplexctl get --cluster cluster-1 virtual-volume ansible_vv",
	Args:    cobra.ExactArgs(2),
	RunE:    getRunE,
}

func init() {
	getCmd.Flags().StringVar(&getCluster, "cluster", "", "cluster owning the resource")
	rootCmd.AddCommand(getCmd)
}

func getRunE(_ *cobra.Command, args []string) error {
	family, name := args[0], args[1]
	api, err := session()
	if err != nil {
		return err
	}

	switch family {
	case "cluster":
		cluster, err := api.GetCluster(name)
		if err != nil {
			return err
		}
		printFields([][2]string{
			{"Name", cluster.Name},
			{"Operational status", cluster.OperationalStatus},
		})
	case "storage-volume":
		volume, err := api.GetStorageVolume(getCluster, name)
		if err != nil {
			return err
		}
		printFields([][2]string{
			{"Name", volume.Name},
			{"System ID", volume.SystemID},
			{"Capacity", fmt.Sprintf("%d", volume.Capacity)},
			{"Use", volume.Use},
			{"Thin rebuild", fmt.Sprintf("%t", volume.ThinRebuild)},
		})
	case "extent":
		extent, err := api.GetExtent(getCluster, name)
		if err != nil {
			return err
		}
		printFields([][2]string{
			{"Name", extent.Name},
			{"Storage volume", model.NameFromURI(extent.StorageVolume)},
			{"Capacity", fmt.Sprintf("%d", extent.Capacity)},
			{"Use", extent.Use},
		})
	case "device":
		device, err := api.GetDevice(getCluster, name)
		if err != nil {
			return err
		}
		printFields([][2]string{
			{"Name", device.Name},
			{"Geometry", device.Geometry},
			{"Capacity", fmt.Sprintf("%d", device.Capacity)},
			{"Virtual volume", model.NameFromURI(device.VirtualVolume)},
			{"Health", strings.Join(device.HealthIndications, ",")},
		})
	case "virtual-volume":
		volume, err := api.GetVirtualVolume(getCluster, name)
		if err != nil {
			return err
		}
		printVirtualVolume(volume)
	case "consistency-group":
		group, err := api.GetConsistencyGroup(getCluster, name)
		if err != nil {
			return err
		}
		printConsistencyGroup(group)
	case "distributed-device":
		device, err := api.GetDistributedDevice(name)
		if err != nil {
			return err
		}
		printFields([][2]string{
			{"Name", device.Name},
			{"Capacity", fmt.Sprintf("%d", device.Capacity)},
			{"Rule set", device.RuleSetName},
			{"Virtual volume", model.NameFromURI(device.VirtualVolume)},
			{"Health", strings.Join(device.HealthIndications, ",")},
		})
	case "distributed-consistency-group":
		group, err := api.GetDistributedConsistencyGroup(name)
		if err != nil {
			return err
		}
		printConsistencyGroup(group)
	case "distributed-virtual-volume":
		volume, err := api.GetDistributedVirtualVolume(name)
		if err != nil {
			return err
		}
		printVirtualVolume(volume)
	case "storage-view":
		view, err := api.GetStorageView(getCluster, name)
		if err != nil {
			return err
		}
		printFields([][2]string{
			{"Name", view.Name},
			{"Ports", joinNames(view.Ports)},
			{"Initiators", joinNames(view.Initiators)},
			{"Virtual volumes", joinNames(view.VolumeURIs())},
		})
	case "initiator":
		initiator, err := api.GetInitiator(getCluster, name)
		if err != nil {
			return err
		}
		printFields([][2]string{
			{"Name", initiator.Name},
			{"Type", initiator.Type},
			{"Port WWN", initiator.PortWwn},
			{"iSCSI name", initiator.IscsiName},
			{"Registered", fmt.Sprintf("%t", initiator.Registered())},
		})
	case "port":
		port, err := api.GetPort(getCluster, name)
		if err != nil {
			return err
		}
		printFields([][2]string{
			{"Name", port.Name},
			{"Enabled", fmt.Sprintf("%t", port.Enabled)},
			{"Export status", port.ExportStatus},
		})
	case "storage-array":
		array, err := api.GetStorageArray(getCluster, name)
		if err != nil {
			return err
		}
		printFields([][2]string{
			{"Name", array.Name},
			{"Connectivity", array.ConnectivityStatus},
			{"Logical units", fmt.Sprintf("%d", array.LogicalUnitCount)},
		})
	case "device-migration", "extent-migration":
		jobType := client.MigrationTypeDevice
		if family == "extent-migration" {
			jobType = client.MigrationTypeExtent
		}
		job, err := api.GetMigration(jobType, name)
		if err != nil {
			return err
		}
		printFields(migrationFields(job))
	default:
		return fmt.Errorf("unknown resource family %q", family)
	}
	return nil
}

func printVirtualVolume(volume *model.VirtualVolume) {
	printFields([][2]string{
		{"Name", volume.Name},
		{"Capacity", fmt.Sprintf("%d", volume.Capacity)},
		{"Service status", volume.ServiceStatus},
		{"Locality", volume.Locality},
		{"Supporting device", model.NameFromURI(volume.SupportingDevice)},
		{"Consistency group", model.NameFromURI(volume.ConsistencyGroup)},
		{"Expandable capacity", fmt.Sprintf("%d", volume.ExpandableCapacity)},
	})
}

func printConsistencyGroup(group *model.ConsistencyGroup) {
	fields := [][2]string{
		{"Name", group.Name},
		{"Virtual volumes", joinNames(group.VirtualVolumes)},
	}
	if group.DetachRule != nil {
		fields = append(fields, [2]string{"Detach rule", group.DetachRule.Type})
	}
	printFields(fields)
}

func joinNames(uris []string) string {
	names := make([]string, 0, len(uris))
	for _, uri := range uris {
		names = append(names, model.NameFromURI(uri))
	}
	return strings.Join(names, ",")
}

func migrationFields(job *model.MigrationJob) [][2]string {
	return [][2]string{
		{"Name", job.Name},
		{"Status", job.Status},
		{"Source", model.NameFromURI(job.Source)},
		{"Target", model.NameFromURI(job.Target)},
		{"Transfer size", fmt.Sprintf("%d", job.TransferSize)},
		{"Done", fmt.Sprintf("%.0f%%", job.PercentageDone)},
	}
}

func printFields(fields [][2]string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, f := range fields {
		t.AppendRow(table.Row{f[0], f[1]})
	}
	t.Render()
}
