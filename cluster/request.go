package cluster

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsemr "github.com/aws/aws-sdk-go-v2/service/emr"
	"github.com/aws/aws-sdk-go-v2/service/emr/types"
	"github.com/samber/lo"
)

// Topology distinguishes the two cluster shapes EMR supports. Readiness
// checks differ between them, so the builder's choice is carried through
// the whole lifecycle instead of being re-derived later.
type Topology string

const (
	TopologyGroups Topology = "groups"
	TopologyFleets Topology = "fleets"
)

// Request is a validated, ready-to-submit job flow request.
type Request struct {
	Topology Topology
	Input    *awsemr.RunJobFlowInput
}

const (
	defaultVolumeSizeGB = 32
	defaultVolumeType   = "gp2"

	defaultJobFlowRole = "EMR_EC2_DefaultRole"
	defaultServiceRole = "EMR_DefaultRole"

	scriptRunnerJar = "s3://elasticmapreduce/libs/script-runner/script-runner.jar"
	streamingJar    = "/home/hadoop/contrib/streaming/hadoop-streaming.jar"
)

var roleOrder = []Role{RoleMaster, RoleCore, RoleTask}

// BuildRequest turns a spec into a RunJobFlow request. It is a pure
// transformation: no network calls, deterministic except for the subnet
// shuffle.
func BuildRequest(spec *Spec) (*Request, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	instances := &types.JobFlowInstancesConfig{
		Ec2KeyName: aws.String(spec.KeyName),
		// The cluster must idle in WAITING rather than shut down after its
		// initial steps, otherwise it never reaches the ready state.
		KeepJobFlowAliveWhenNoSteps: aws.Bool(true),
		TerminationProtected:        aws.Bool(spec.TerminationProtected),
	}

	switch {
	case spec.AvailabilityZone != "":
		instances.Placement = &types.PlacementType{AvailabilityZone: aws.String(spec.AvailabilityZone)}
	case len(spec.SubnetIDs) == 1:
		instances.Ec2SubnetId = aws.String(spec.SubnetIDs[0])
	case len(spec.SubnetIDs) > 1:
		// EMR's own "best subnet" selection was observed to concentrate
		// allocations, so spread the load by randomizing the preference.
		instances.Ec2SubnetIds = lo.Shuffle(append([]string(nil), spec.SubnetIDs...))
	}

	if spec.SecurityGroups.Master != "" {
		instances.EmrManagedMasterSecurityGroup = aws.String(spec.SecurityGroups.Master)
	}
	if spec.SecurityGroups.Slave != "" {
		instances.EmrManagedSlaveSecurityGroup = aws.String(spec.SecurityGroups.Slave)
	}
	if spec.SecurityGroups.ServiceAccess != "" {
		instances.ServiceAccessSecurityGroup = aws.String(spec.SecurityGroups.ServiceAccess)
	}
	instances.AdditionalMasterSecurityGroups = spec.SecurityGroups.AdditionalMaster
	instances.AdditionalSlaveSecurityGroups = spec.SecurityGroups.AdditionalSlave

	topology := TopologyGroups
	if len(spec.Fleets) > 0 {
		topology = TopologyFleets
		instances.InstanceFleets = buildFleets(spec.Fleets)
	} else {
		instances.InstanceGroups = buildGroups(spec.Groups)
	}

	input := &awsemr.RunJobFlowInput{
		Name:              aws.String(spec.Name),
		Instances:         instances,
		JobFlowRole:       aws.String(lo.Must(lo.Coalesce(spec.JobFlowRole, defaultJobFlowRole))),
		ServiceRole:       aws.String(lo.Must(lo.Coalesce(spec.ServiceRole, defaultServiceRole))),
		VisibleToAllUsers: aws.Bool(true),
		Tags:              buildTags(spec),
	}

	if spec.LogURI != "" {
		input.LogUri = aws.String(spec.LogURI)
	}

	// A release label supersedes the legacy AMI version entirely. The two
	// paths also carry applications differently: structured Application
	// entries on the release-label path, plain supported-product names on
	// the legacy path.
	if spec.ReleaseLabel != "" {
		input.ReleaseLabel = aws.String(spec.ReleaseLabel)
		input.Applications = lo.Map(spec.Applications, func(app Application, _ int) types.Application {
			return types.Application{Name: aws.String(app.Name), Args: app.Args}
		})
		input.Configurations = buildConfigurations(spec.Configurations)
	} else if spec.AmiVersion != "" {
		input.AmiVersion = aws.String(spec.AmiVersion)
		input.SupportedProducts = lo.Map(spec.Applications, func(app Application, _ int) string {
			return app.Name
		})
	}

	if len(spec.BootstrapActions) > 0 {
		input.BootstrapActions = lo.Map(spec.BootstrapActions, func(action BootstrapAction, _ int) types.BootstrapActionConfig {
			return types.BootstrapActionConfig{
				Name: aws.String(action.Name),
				ScriptBootstrapAction: &types.ScriptBootstrapActionConfig{
					Path: aws.String(action.Path),
					Args: action.Args,
				},
			}
		})
	}

	input.Steps = lo.Map(spec.Steps, func(step Step, _ int) types.StepConfig {
		return buildStep(step)
	})

	return &Request{Topology: topology, Input: input}, nil
}

func buildGroups(groups map[Role]GroupSpec) []types.InstanceGroupConfig {
	var configs []types.InstanceGroupConfig

	for _, role := range roleOrder {
		group, ok := groups[role]
		if !ok {
			continue
		}

		config := types.InstanceGroupConfig{
			Name:             aws.String(string(role)),
			InstanceRole:     types.InstanceRoleType(role),
			InstanceType:     aws.String(group.InstanceType),
			InstanceCount:    aws.Int32(group.Count),
			Market:           types.MarketTypeOnDemand,
			EbsConfiguration: buildEbsConfiguration(group.Volume),
		}
		if group.Market == MarketSpot {
			config.Market = types.MarketTypeSpot
			if group.BidPrice != "" {
				config.BidPrice = aws.String(group.BidPrice)
			}
		}

		configs = append(configs, config)
	}

	return configs
}

func buildFleets(fleets map[Role]FleetSpec) []types.InstanceFleetConfig {
	var configs []types.InstanceFleetConfig

	for _, role := range roleOrder {
		fleet, ok := fleets[role]
		if !ok {
			continue
		}
		// An empty allocation is not a valid fleet member.
		if fleet.OnDemand == 0 && fleet.Spot == 0 {
			continue
		}

		config := types.InstanceFleetConfig{
			Name:                   aws.String(string(role)),
			InstanceFleetType:      types.InstanceFleetType(role),
			TargetOnDemandCapacity: aws.Int32(fleet.OnDemand),
			TargetSpotCapacity:     aws.Int32(fleet.Spot),
			InstanceTypeConfigs: lo.Map(fleet.Types, func(alt FleetInstanceType, _ int) types.InstanceTypeConfig {
				return buildFleetInstanceType(alt, fleet.Volume)
			}),
		}

		if fleet.Spot > 0 {
			timeout := fleet.SpotTimeout
			if timeout == nil {
				timeout = &SpotTimeout{Action: spotTimeoutSwitch, Minutes: 60}
			}
			action := types.SpotProvisioningTimeoutActionSwitchToOnDemand
			if timeout.Action == spotTimeoutTerminate {
				action = types.SpotProvisioningTimeoutActionTerminateCluster
			}
			config.LaunchSpecifications = &types.InstanceFleetProvisioningSpecifications{
				SpotSpecification: &types.SpotProvisioningSpecification{
					TimeoutAction:          action,
					TimeoutDurationMinutes: aws.Int32(timeout.Minutes),
				},
			}
		}

		configs = append(configs, config)
	}

	return configs
}

func buildFleetInstanceType(alt FleetInstanceType, volume *VolumeSpec) types.InstanceTypeConfig {
	config := types.InstanceTypeConfig{
		InstanceType:     aws.String(alt.InstanceType),
		WeightedCapacity: aws.Int32(max(alt.Weight, 1)),
		EbsConfiguration: buildEbsConfiguration(volume),
	}
	if alt.BidPercentage > 0 {
		config.BidPriceAsPercentageOfOnDemandPrice = aws.Float64(alt.BidPercentage)
	}
	return config
}

// buildEbsConfiguration returns nil when no volume is configured; EMR then
// falls back to instance storage. Whenever a volume is attached the
// instances are EBS-optimized.
func buildEbsConfiguration(volume *VolumeSpec) *types.EbsConfiguration {
	if volume == nil {
		return nil
	}

	size := volume.SizeGB
	if size == 0 {
		size = defaultVolumeSizeGB
	}
	volumeType := volume.Type
	if volumeType == "" {
		volumeType = defaultVolumeType
	}

	return &types.EbsConfiguration{
		EbsOptimized: aws.Bool(true),
		EbsBlockDeviceConfigs: []types.EbsBlockDeviceConfig{
			{
				VolumeSpecification: &types.VolumeSpecification{
					SizeInGB:   aws.Int32(size),
					VolumeType: aws.String(volumeType),
				},
				VolumesPerInstance: aws.Int32(1),
			},
		},
	}
}

func buildConfigurations(configurations []Configuration) []types.Configuration {
	return lo.Map(configurations, func(config Configuration, _ int) types.Configuration {
		return types.Configuration{
			Classification: aws.String(config.Classification),
			Properties:     config.Properties,
			Configurations: buildConfigurations(config.Configurations),
		}
	})
}

func buildStep(step Step) types.StepConfig {
	jar := step.Jar
	args := step.Args

	switch step.Type {
	case "streaming":
		if jar == "" {
			jar = streamingJar
		}
	case "install-hive":
		if jar == "" {
			jar = scriptRunnerJar
		}
		args = installerArgs("hive")
	case "install-pig":
		if jar == "" {
			jar = scriptRunnerJar
		}
		args = installerArgs("pig")
	default:
		if jar == "" {
			jar = scriptRunnerJar
		}
	}

	actionOnFailure := types.ActionOnFailureCancelAndWait
	if step.ActionOnFailure != "" {
		actionOnFailure = types.ActionOnFailure(step.ActionOnFailure)
	}

	config := types.StepConfig{
		Name:            aws.String(step.Name),
		ActionOnFailure: actionOnFailure,
		HadoopJarStep: &types.HadoopJarStepConfig{
			Jar:  aws.String(jar),
			Args: args,
		},
	}
	if step.MainClass != "" {
		config.HadoopJarStep.MainClass = aws.String(step.MainClass)
	}
	return config
}

func installerArgs(product string) []string {
	base := fmt.Sprintf("s3://elasticmapreduce/libs/%s", product)
	return []string{
		fmt.Sprintf("%s/%s-script", base, product),
		"--base-path", base,
		fmt.Sprintf("--install-%s", product),
		fmt.Sprintf("--%s-versions", product),
		"latest",
	}
}

func buildTags(spec *Spec) []types.Tag {
	keys := lo.Keys(spec.Tags)
	sort.Strings(keys)

	tags := lo.Map(keys, func(key string, _ int) types.Tag {
		return types.Tag{Key: aws.String(key), Value: aws.String(spec.Tags[key])}
	})

	// The name tag is what operators see in the console; it is always set,
	// even when the caller supplied no tags at all.
	return append(tags, types.Tag{Key: aws.String("Name"), Value: aws.String(spec.Name)})
}
