// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dell-storage/vplex-host-libs/vplex/client"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

// Gatherfacts subsets.
const (
	SubsetStorageArray     = "stor_array"
	SubsetStorageVolume    = "stor_vol"
	SubsetPort             = "port"
	SubsetBackendPort      = "be_port"
	SubsetInitiator        = "initiator"
	SubsetStorageView      = "stor_view"
	SubsetVirtualVolume    = "virt_vol"
	SubsetConsistencyGroup = "cg"
	SubsetDevice           = "device"
	SubsetExtent           = "extent"
	SubsetDistributedDev   = "dist_device"
	SubsetDistributedCG    = "dist_cg"
	SubsetDistributedVV    = "dist_virt_vol"
	SubsetDeviceMigration  = "device_mig_job"
	SubsetExtentMigration  = "extent_mig_job"
	SubsetAMP              = "amp"
)

// Filter operators.
const (
	FilterEqual        = "equal"
	FilterGreater      = "greater"
	FilterLesser       = "lesser"
	FilterGreaterEqual = "greater-equal"
	FilterLesserEqual  = "lesser-equal"
)

// Filter is one list-filter triple. Filters on the same key are combined
// into a comma separated value.
type Filter struct {
	Key      string
	Operator string
	Value    string
}

// GatherFactsSpec selects which subsets to collect. The cluster list is
// always returned. Subsets scoped to a cluster are skipped when Cluster is
// empty.
type GatherFactsSpec struct {
	Cluster string
	Subsets []string
	Filters []Filter
}

// InitiatorFact is the initiator entry of a facts report, registered
// initiators carry their host type.
type InitiatorFact struct {
	Name string
	Type string
}

// Facts is the collected inventory. Every field except Clusters is filled
// only when its subset was requested.
type Facts struct {
	Clusters                 []string
	StorageArrays            []string
	StorageVolumes           []string
	Ports                    []string
	BackendPorts             []string
	Initiators               []InitiatorFact
	StorageViews             []string
	VirtualVolumes           []string
	ConsistencyGroups        []string
	Devices                  []string
	Extents                  []string
	DistributedDevices       []string
	DistributedCGs           []string
	DistributedVirtVolumes   []string
	DeviceMigrationJobs      []string
	ExtentMigrationJobs      []string
	ArrayManagementProviders []string
}

var (
	digitsRE = regexp.MustCompile(`^[0-9]+$`)
	sizeRE   = regexp.MustCompile(`^([0-9]+)(TB|GB|MB|B)$`)
)

var sizeMultipliers = map[string]int64{
	"B":  1,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

// BuildFilters translates filter triples into the appliance query
// vocabulary. Comparison operators become gt~/lt~/gte~/lte~ prefixes and
// size literals with a B/MB/GB/TB suffix expand to bytes. The limit and
// offset keys must be supplied together.
func BuildFilters(filters []Filter) (map[string]string, error) {
	out := map[string]string{}
	numeric := map[string]bool{}
	for _, f := range filters {
		if f.Key == "" || f.Operator == "" || f.Value == "" {
			return nil, verrors.NewVplexError(verrors.InvalidArgument,
				"each filter requires filter_key, filter_operator and filter_value")
		}
		var prefix string
		switch f.Operator {
		case FilterEqual:
			prefix = ""
		case FilterGreater:
			prefix = "gt~"
		case FilterLesser:
			prefix = "lt~"
		case FilterGreaterEqual:
			prefix = "gte~"
		case FilterLesserEqual:
			prefix = "lte~"
		default:
			return nil, verrors.NewVplexErrorf(verrors.InvalidArgument,
				"the filter operator %q is not supported, use equal, greater, lesser, greater-equal or lesser-equal",
				f.Operator)
		}

		var value string
		isNumeric := false
		switch {
		case f.Value == "True" || f.Value == "False":
			value = f.Value
		case digitsRE.MatchString(f.Value):
			value = prefix + f.Value
			isNumeric = prefix == ""
		default:
			raw := f.Value
			if m := sizeRE.FindStringSubmatch(raw); m != nil {
				n, err := strconv.ParseInt(m[1], 10, 64)
				if err != nil {
					return nil, verrors.NewVplexError(verrors.InvalidArgument, err)
				}
				raw = strconv.FormatInt(n*sizeMultipliers[m[2]], 10)
			}
			value = prefix + raw
		}

		// A plain numeric equality replaces instead of joining, any
		// other existing value for the key gets comma joined.
		if existing, ok := out[f.Key]; ok && !numeric[f.Key] {
			out[f.Key] = existing + "," + value
		} else {
			out[f.Key] = value
		}
		numeric[f.Key] = isNumeric
	}

	_, hasLimit := out["limit"]
	_, hasOffset := out["offset"]
	if hasLimit != hasOffset {
		return nil, verrors.NewVplexError(verrors.InvalidArgument,
			"the limit and offset filter keys must be specified together")
	}
	return out, nil
}

var clusterScopedSubsets = map[string]bool{
	SubsetStorageArray:     true,
	SubsetStorageVolume:    true,
	SubsetPort:             true,
	SubsetInitiator:        true,
	SubsetStorageView:      true,
	SubsetVirtualVolume:    true,
	SubsetConsistencyGroup: true,
	SubsetDevice:           true,
	SubsetExtent:           true,
	SubsetAMP:              true,
}

// GatherFacts collects the requested inventory subsets. The cluster list is
// always collected; when a cluster scoped subset is requested without a
// cluster name only the cluster list is returned.
func GatherFacts(api *client.Client, spec GatherFactsSpec) (*Facts, error) {
	log.Trace(">>>>> GatherFacts called")
	defer log.Trace("<<<<< GatherFacts")

	filters, err := BuildFilters(spec.Filters)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		filters = nil
	}

	facts := &Facts{}
	clusters, err := api.GetClusters(nil)
	if err != nil {
		return nil, err
	}
	for _, c := range clusters {
		facts.Clusters = append(facts.Clusters, c.Name)
	}

	if spec.Cluster == "" {
		for _, subset := range spec.Subsets {
			if clusterScopedSubsets[subset] {
				log.Warnf("subset %s requires a cluster name, returning the cluster list only", subset)
				return facts, nil
			}
		}
	}

	for _, subset := range spec.Subsets {
		if err := gatherSubset(api, spec.Cluster, subset, filters, facts); err != nil {
			return nil, err
		}
	}
	return facts, nil
}

func gatherSubset(api *client.Client, cluster, subset string, filters map[string]string, facts *Facts) error {
	switch subset {
	case SubsetStorageArray:
		arrays, err := api.GetStorageArrays(cluster, filters)
		if err != nil {
			return err
		}
		for _, a := range arrays {
			facts.StorageArrays = append(facts.StorageArrays, a.Name)
		}
	case SubsetStorageVolume:
		volumes, err := api.GetStorageVolumes(cluster, filters)
		if err != nil {
			return err
		}
		for _, v := range volumes {
			facts.StorageVolumes = append(facts.StorageVolumes, v.Name)
		}
	case SubsetPort:
		ports, err := api.GetPorts(cluster, filters)
		if err != nil {
			return err
		}
		for _, p := range ports {
			facts.Ports = append(facts.Ports, p.Name)
		}
	case SubsetBackendPort:
		ports, err := api.GetHardwarePorts("back-end", filters)
		if err != nil {
			return err
		}
		for _, p := range ports {
			facts.BackendPorts = append(facts.BackendPorts, p.Name)
		}
	case SubsetInitiator:
		initiators, err := api.GetInitiators(cluster, filters)
		if err != nil {
			return err
		}
		for _, i := range initiators {
			facts.Initiators = append(facts.Initiators, InitiatorFact{Name: i.Name, Type: i.Type})
		}
	case SubsetStorageView:
		views, err := api.GetStorageViews(cluster, filters)
		if err != nil {
			return err
		}
		for _, v := range views {
			facts.StorageViews = append(facts.StorageViews, v.Name)
		}
	case SubsetVirtualVolume:
		volumes, err := api.GetVirtualVolumes(cluster, filters)
		if err != nil {
			return err
		}
		for _, v := range volumes {
			facts.VirtualVolumes = append(facts.VirtualVolumes, v.Name)
		}
	case SubsetConsistencyGroup:
		groups, err := api.GetConsistencyGroups(cluster, filters)
		if err != nil {
			return err
		}
		for _, g := range groups {
			facts.ConsistencyGroups = append(facts.ConsistencyGroups, g.Name)
		}
	case SubsetDevice:
		devices, err := api.GetDevices(cluster, filters)
		if err != nil {
			return err
		}
		for _, d := range devices {
			facts.Devices = append(facts.Devices, d.Name)
		}
	case SubsetExtent:
		extents, err := api.GetExtents(cluster, filters)
		if err != nil {
			return err
		}
		for _, e := range extents {
			facts.Extents = append(facts.Extents, e.Name)
		}
	case SubsetDistributedDev:
		devices, err := api.GetDistributedDevices(filters)
		if err != nil {
			return err
		}
		for _, d := range devices {
			facts.DistributedDevices = append(facts.DistributedDevices, d.Name)
		}
	case SubsetDistributedCG:
		groups, err := api.GetDistributedConsistencyGroups(filters)
		if err != nil {
			return err
		}
		for _, g := range groups {
			facts.DistributedCGs = append(facts.DistributedCGs, g.Name)
		}
	case SubsetDistributedVV:
		volumes, err := api.GetDistributedVirtualVolumes(filters)
		if err != nil {
			return err
		}
		for _, v := range volumes {
			facts.DistributedVirtVolumes = append(facts.DistributedVirtVolumes, v.Name)
		}
	case SubsetDeviceMigration:
		jobs, err := api.GetMigrations(client.MigrationTypeDevice, filters)
		if err != nil {
			return err
		}
		for _, j := range jobs {
			facts.DeviceMigrationJobs = append(facts.DeviceMigrationJobs, j.Name)
		}
	case SubsetExtentMigration:
		jobs, err := api.GetMigrations(client.MigrationTypeExtent, filters)
		if err != nil {
			return err
		}
		for _, j := range jobs {
			facts.ExtentMigrationJobs = append(facts.ExtentMigrationJobs, j.Name)
		}
	case SubsetAMP:
		setup, err := api.GetVplexSetup()
		if err != nil {
			return err
		}
		if !strings.Contains(setup.ProductVersion, "6.2") {
			log.Infof("array management providers are not served by release %s", setup.ProductVersion)
			return nil
		}
		amps, err := api.GetAMPs(cluster, filters)
		if err != nil {
			return err
		}
		for _, a := range amps {
			facts.ArrayManagementProviders = append(facts.ArrayManagementProviders, a.Name)
		}
	default:
		return verrors.NewVplexErrorf(verrors.InvalidArgument, "unknown gather subset %q", subset)
	}
	return nil
}
