// Package cluster implements the EMR cluster lifecycle: building a job flow
// request from a declarative spec, locating clusters by name, driving the
// create/poll/terminate state machine, and reading cluster metadata.
package cluster

import (
	"fmt"
)

// Role of an instance group or fleet within the cluster.
type Role string

const (
	RoleMaster Role = "MASTER"
	RoleCore   Role = "CORE"
	RoleTask   Role = "TASK"
)

// Market is the pricing model of an instance group.
type Market string

const (
	MarketOnDemand Market = "ON_DEMAND"
	MarketSpot     Market = "SPOT"
)

// Spec is the fully-resolved set of parameters needed to create a cluster.
// It is built once per invocation from the cluster file and never persisted.
type Spec struct {
	Name   string `yaml:"name"`
	LogURI string `yaml:"log_uri"`

	// Software selector; release_label wins when both are set.
	ReleaseLabel string `yaml:"release_label"`
	AmiVersion   string `yaml:"ami_version"`

	Applications   []Application   `yaml:"applications"`
	Configurations []Configuration `yaml:"configurations"`

	// Network placement; exactly one of availability_zone or subnet_ids.
	AvailabilityZone string   `yaml:"availability_zone"`
	SubnetIDs        []string `yaml:"subnet_ids"`

	KeyName        string         `yaml:"key_name"`
	SecurityGroups SecurityGroups `yaml:"security_groups"`

	JobFlowRole string `yaml:"job_flow_role"`
	ServiceRole string `yaml:"service_role"`

	// Topology; exactly one of instance_groups or instance_fleets.
	Groups map[Role]GroupSpec `yaml:"instance_groups"`
	Fleets map[Role]FleetSpec `yaml:"instance_fleets"`

	BootstrapActions []BootstrapAction `yaml:"bootstrap_actions"`
	Steps            []Step            `yaml:"steps"`

	Tags map[string]string `yaml:"tags"`

	TerminationProtected bool `yaml:"termination_protected"`
}

type Application struct {
	Name string   `yaml:"name"`
	Args []string `yaml:"args"`
}

type Configuration struct {
	Classification string            `yaml:"classification"`
	Properties     map[string]string `yaml:"properties"`
	Configurations []Configuration   `yaml:"configurations"`
}

type SecurityGroups struct {
	Master           string   `yaml:"master"`
	Slave            string   `yaml:"slave"`
	ServiceAccess    string   `yaml:"service_access"`
	AdditionalMaster []string `yaml:"additional_master"`
	AdditionalSlave  []string `yaml:"additional_slave"`
}

// GroupSpec describes one fixed-size instance group.
type GroupSpec struct {
	InstanceType string      `yaml:"type"`
	Count        int32       `yaml:"num_instances"`
	Market       Market      `yaml:"market"`
	BidPrice     string      `yaml:"bid_price"`
	Volume       *VolumeSpec `yaml:"volume"`
}

// FleetSpec describes one elastic instance fleet.
type FleetSpec struct {
	OnDemand    int32               `yaml:"on_demand"`
	Spot        int32               `yaml:"spot"`
	SpotTimeout *SpotTimeout        `yaml:"spot_timeout"`
	Types       []FleetInstanceType `yaml:"types"`
	Volume      *VolumeSpec         `yaml:"volume"`
}

// SpotTimeout controls what happens when spot capacity cannot be obtained
// within the given number of minutes.
type SpotTimeout struct {
	// Action is either "switch-to-on-demand" or "terminate-cluster".
	Action  string `yaml:"action"`
	Minutes int32  `yaml:"minutes"`
}

// FleetInstanceType is one weighted instance-type alternative of a fleet.
type FleetInstanceType struct {
	InstanceType  string  `yaml:"type"`
	Weight        int32   `yaml:"weight"`
	BidPercentage float64 `yaml:"bid_percentage"`
}

// VolumeSpec configures the EBS volume attached to each instance of a group
// or fleet. Zero values fall back to 32 GB of gp2.
type VolumeSpec struct {
	SizeGB int32  `yaml:"size_gb"`
	Type   string `yaml:"type"`
}

type BootstrapAction struct {
	Name string   `yaml:"name"`
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
}

type Step struct {
	Name            string   `yaml:"name"`
	Type            string   `yaml:"type"`
	Jar             string   `yaml:"jar"`
	MainClass       string   `yaml:"main_class"`
	Args            []string `yaml:"args"`
	ActionOnFailure string   `yaml:"action_on_failure"`
}

// ConfigError reports an invalid cluster spec. It is always raised before
// any provider call and is never worth retrying.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the mutual-exclusion groups and required fields of the
// spec. All violations are ConfigErrors.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return configErrorf("name is required")
	}

	if s.AvailabilityZone != "" && len(s.SubnetIDs) > 0 {
		return configErrorf("availability_zone and subnet_ids are mutually exclusive")
	}

	if s.KeyName == "" {
		return configErrorf("key_name is required (set it in the cluster file or via EMRCTL_KEY_NAME)")
	}

	if len(s.Groups) > 0 && len(s.Fleets) > 0 {
		return configErrorf("instance_groups and instance_fleets are mutually exclusive")
	}
	if len(s.Groups) == 0 && len(s.Fleets) == 0 {
		return configErrorf("one of instance_groups or instance_fleets is required")
	}

	for role, group := range s.Groups {
		if err := validateRole(role); err != nil {
			return err
		}
		if group.InstanceType == "" {
			return configErrorf("instance_groups[%s].type is required", role)
		}
		if group.Count < 1 {
			return configErrorf("instance_groups[%s].num_instances must be at least 1", role)
		}
		switch group.Market {
		case "", MarketOnDemand, MarketSpot:
		default:
			return configErrorf("instance_groups[%s].market must be ON_DEMAND or SPOT", role)
		}
	}

	for role, fleet := range s.Fleets {
		if err := validateRole(role); err != nil {
			return err
		}
		if role == RoleTask {
			return configErrorf("instance_fleets do not support the TASK role")
		}
		if fleet.OnDemand < 0 || fleet.Spot < 0 {
			return configErrorf("instance_fleets[%s] capacities must not be negative", role)
		}
		if role == RoleMaster {
			// The master fleet is a single machine, either spot or on-demand.
			if fleet.OnDemand+fleet.Spot != 1 {
				return configErrorf("instance_fleets[MASTER] must target exactly 1 unit of capacity, spot or on-demand")
			}
		}
		if fleet.OnDemand+fleet.Spot > 0 && len(fleet.Types) == 0 {
			return configErrorf("instance_fleets[%s].types is required", role)
		}
		if fleet.SpotTimeout != nil {
			switch fleet.SpotTimeout.Action {
			case spotTimeoutSwitch, spotTimeoutTerminate:
			default:
				return configErrorf("instance_fleets[%s].spot_timeout.action must be %q or %q", role, spotTimeoutSwitch, spotTimeoutTerminate)
			}
			if fleet.SpotTimeout.Minutes < 5 {
				return configErrorf("instance_fleets[%s].spot_timeout.minutes must be at least 5", role)
			}
		}
	}

	return nil
}

const (
	spotTimeoutSwitch    = "switch-to-on-demand"
	spotTimeoutTerminate = "terminate-cluster"
)

func validateRole(role Role) error {
	switch role {
	case RoleMaster, RoleCore, RoleTask:
		return nil
	default:
		return configErrorf("unknown instance role '%s'", role)
	}
}
