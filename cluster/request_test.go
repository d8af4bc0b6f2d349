package cluster

import (
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/emr/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalSpec() *Spec {
	return &Spec{
		Name:    "ETL",
		KeyName: "k1",
		Groups: map[Role]GroupSpec{
			RoleMaster: {InstanceType: "m1.medium", Count: 1, Market: MarketOnDemand},
		},
	}
}

func TestBuildRequestMinimalGroupTopology(t *testing.T) {
	request, err := BuildRequest(minimalSpec())
	require.NoError(t, err)

	assert.Equal(t, TopologyGroups, request.Topology)
	require.Len(t, request.Input.Instances.InstanceGroups, 1)

	group := request.Input.Instances.InstanceGroups[0]
	assert.Equal(t, types.InstanceRoleTypeMaster, group.InstanceRole)
	assert.Equal(t, "m1.medium", aws.ToString(group.InstanceType))
	assert.Equal(t, int32(1), aws.ToInt32(group.InstanceCount))
	assert.Equal(t, types.MarketTypeOnDemand, group.Market)
	assert.Nil(t, group.BidPrice)
	assert.Nil(t, group.EbsConfiguration)
}

func TestBuildRequestZoneAndSubnetsAreExclusive(t *testing.T) {
	spec := minimalSpec()
	spec.AvailabilityZone = "eu-west-1a"
	spec.SubnetIDs = []string{"subnet-1"}

	_, err := BuildRequest(spec)
	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Contains(t, configErr.Reason, "mutually exclusive")
}

func TestBuildRequestKeypairIsRequired(t *testing.T) {
	spec := minimalSpec()
	spec.KeyName = ""

	_, err := BuildRequest(spec)
	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Contains(t, configErr.Reason, "key_name")
}

func TestBuildRequestTopologyIsExclusive(t *testing.T) {
	spec := minimalSpec()
	spec.Fleets = map[Role]FleetSpec{
		RoleMaster: {OnDemand: 1, Types: []FleetInstanceType{{InstanceType: "m5.xlarge"}}},
	}

	_, err := BuildRequest(spec)
	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
}

func TestBuildRequestSingleSubnet(t *testing.T) {
	spec := minimalSpec()
	spec.SubnetIDs = []string{"subnet-1"}

	request, err := BuildRequest(spec)
	require.NoError(t, err)
	assert.Equal(t, "subnet-1", aws.ToString(request.Input.Instances.Ec2SubnetId))
	assert.Empty(t, request.Input.Instances.Ec2SubnetIds)
}

func TestBuildRequestSubnetListIsPermuted(t *testing.T) {
	subnets := []string{"subnet-1", "subnet-2", "subnet-3", "subnet-4"}
	spec := minimalSpec()
	spec.SubnetIDs = subnets

	request, err := BuildRequest(spec)
	require.NoError(t, err)

	// Order is randomized on purpose; the set must survive untouched.
	assert.ElementsMatch(t, subnets, request.Input.Instances.Ec2SubnetIds)
	assert.Equal(t, []string{"subnet-1", "subnet-2", "subnet-3", "subnet-4"}, subnets, "the spec's own list must not be shuffled in place")
}

func TestBuildRequestReleaseLabelOverridesAmiVersion(t *testing.T) {
	spec := minimalSpec()
	spec.ReleaseLabel = "emr-6.15.0"
	spec.AmiVersion = "3.11.0"
	spec.Applications = []Application{{Name: "Spark"}, {Name: "Hive"}}
	spec.Configurations = []Configuration{{Classification: "spark-defaults", Properties: map[string]string{"spark.eventLog.enabled": "true"}}}

	request, err := BuildRequest(spec)
	require.NoError(t, err)

	assert.Equal(t, "emr-6.15.0", aws.ToString(request.Input.ReleaseLabel))
	assert.Nil(t, request.Input.AmiVersion)
	assert.Empty(t, request.Input.SupportedProducts)
	require.Len(t, request.Input.Applications, 2)
	assert.Equal(t, "Spark", aws.ToString(request.Input.Applications[0].Name))
	require.Len(t, request.Input.Configurations, 1)
	assert.Equal(t, "spark-defaults", aws.ToString(request.Input.Configurations[0].Classification))
}

func TestBuildRequestAmiVersionUsesSupportedProducts(t *testing.T) {
	spec := minimalSpec()
	spec.AmiVersion = "3.11.0"
	spec.Applications = []Application{{Name: "mapr-m5"}}

	request, err := BuildRequest(spec)
	require.NoError(t, err)

	assert.Equal(t, "3.11.0", aws.ToString(request.Input.AmiVersion))
	assert.Nil(t, request.Input.ReleaseLabel)
	assert.Equal(t, []string{"mapr-m5"}, request.Input.SupportedProducts)
	assert.Empty(t, request.Input.Applications)
}

func TestBuildRequestSecurityGroupsAreIndependentlyOptional(t *testing.T) {
	spec := minimalSpec()
	spec.SecurityGroups = SecurityGroups{Master: "sg-master", AdditionalSlave: []string{"sg-extra"}}

	request, err := BuildRequest(spec)
	require.NoError(t, err)

	instances := request.Input.Instances
	assert.Equal(t, "sg-master", aws.ToString(instances.EmrManagedMasterSecurityGroup))
	assert.Nil(t, instances.EmrManagedSlaveSecurityGroup)
	assert.Nil(t, instances.ServiceAccessSecurityGroup)
	assert.Equal(t, []string{"sg-extra"}, instances.AdditionalSlaveSecurityGroups)
}

func TestBuildRequestVolumeDefaults(t *testing.T) {
	spec := minimalSpec()
	spec.Groups[RoleMaster] = GroupSpec{InstanceType: "m1.medium", Count: 1, Volume: &VolumeSpec{}}

	request, err := BuildRequest(spec)
	require.NoError(t, err)

	ebs := request.Input.Instances.InstanceGroups[0].EbsConfiguration
	require.NotNil(t, ebs)
	assert.True(t, aws.ToBool(ebs.EbsOptimized))
	require.Len(t, ebs.EbsBlockDeviceConfigs, 1)
	volume := ebs.EbsBlockDeviceConfigs[0].VolumeSpecification
	assert.Equal(t, int32(32), aws.ToInt32(volume.SizeInGB))
	assert.Equal(t, "gp2", aws.ToString(volume.VolumeType))
}

func TestBuildRequestSpotGroupCarriesBidPrice(t *testing.T) {
	spec := minimalSpec()
	spec.Groups[RoleCore] = GroupSpec{InstanceType: "m5.xlarge", Count: 4, Market: MarketSpot, BidPrice: "0.42"}

	request, err := BuildRequest(spec)
	require.NoError(t, err)

	require.Len(t, request.Input.Instances.InstanceGroups, 2)
	core := request.Input.Instances.InstanceGroups[1]
	assert.Equal(t, types.InstanceRoleTypeCore, core.InstanceRole)
	assert.Equal(t, types.MarketTypeSpot, core.Market)
	assert.Equal(t, "0.42", aws.ToString(core.BidPrice))
}

func TestBuildRequestNameTagIsAlwaysAppended(t *testing.T) {
	spec := minimalSpec()
	spec.Tags = map[string]string{"team": "data", "env": "prod"}

	request, err := BuildRequest(spec)
	require.NoError(t, err)

	require.Len(t, request.Input.Tags, 3)
	keys := make([]string, 0, 3)
	for _, tag := range request.Input.Tags {
		keys = append(keys, aws.ToString(tag.Key))
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"Name", "env", "team"}, keys)

	last := request.Input.Tags[len(request.Input.Tags)-1]
	assert.Equal(t, "Name", aws.ToString(last.Key))
	assert.Equal(t, "ETL", aws.ToString(last.Value))
}

func TestBuildRequestBootstrapActionsOmittedWhenEmpty(t *testing.T) {
	request, err := BuildRequest(minimalSpec())
	require.NoError(t, err)
	assert.Nil(t, request.Input.BootstrapActions)
}

func TestBuildRequestBootstrapActionsKeepOrder(t *testing.T) {
	spec := minimalSpec()
	spec.BootstrapActions = []BootstrapAction{
		{Name: "install-deps", Path: "s3://bucket/deps.sh", Args: []string{"--fast"}},
		{Name: "tune-kernel", Path: "s3://bucket/tune.sh"},
	}

	request, err := BuildRequest(spec)
	require.NoError(t, err)

	require.Len(t, request.Input.BootstrapActions, 2)
	assert.Equal(t, "install-deps", aws.ToString(request.Input.BootstrapActions[0].Name))
	assert.Equal(t, "s3://bucket/deps.sh", aws.ToString(request.Input.BootstrapActions[0].ScriptBootstrapAction.Path))
	assert.Equal(t, []string{"--fast"}, request.Input.BootstrapActions[0].ScriptBootstrapAction.Args)
	assert.Equal(t, "tune-kernel", aws.ToString(request.Input.BootstrapActions[1].Name))
}

func TestBuildStepJarDefaults(t *testing.T) {
	streaming := buildStep(Step{Name: "wordcount", Type: "streaming", Args: []string{"-input", "s3://in"}})
	assert.Equal(t, streamingJar, aws.ToString(streaming.HadoopJarStep.Jar))
	assert.Equal(t, []string{"-input", "s3://in"}, streaming.HadoopJarStep.Args)

	script := buildStep(Step{Name: "cleanup", Type: "script", Args: []string{"s3://bucket/cleanup.sh"}})
	assert.Equal(t, scriptRunnerJar, aws.ToString(script.HadoopJarStep.Jar))

	custom := buildStep(Step{Name: "job", Type: "custom", Jar: "s3://bucket/job.jar", MainClass: "com.example.Job"})
	assert.Equal(t, "s3://bucket/job.jar", aws.ToString(custom.HadoopJarStep.Jar))
	assert.Equal(t, "com.example.Job", aws.ToString(custom.HadoopJarStep.MainClass))
}

func TestBuildStepInstallerArgsAreSynthesized(t *testing.T) {
	hive := buildStep(Step{Name: "hive", Type: "install-hive", Args: []string{"ignored"}})
	assert.Equal(t, []string{
		"s3://elasticmapreduce/libs/hive/hive-script",
		"--base-path", "s3://elasticmapreduce/libs/hive",
		"--install-hive", "--hive-versions", "latest",
	}, hive.HadoopJarStep.Args)

	pig := buildStep(Step{Name: "pig", Type: "install-pig"})
	assert.Equal(t, []string{
		"s3://elasticmapreduce/libs/pig/pig-script",
		"--base-path", "s3://elasticmapreduce/libs/pig",
		"--install-pig", "--pig-versions", "latest",
	}, pig.HadoopJarStep.Args)
}

func TestBuildStepActionOnFailure(t *testing.T) {
	step := buildStep(Step{Name: "job", Type: "custom", Jar: "s3://bucket/job.jar"})
	assert.Equal(t, types.ActionOnFailureCancelAndWait, step.ActionOnFailure)

	step = buildStep(Step{Name: "job", Type: "custom", Jar: "s3://bucket/job.jar", ActionOnFailure: "TERMINATE_CLUSTER"})
	assert.Equal(t, types.ActionOnFailureTerminateCluster, step.ActionOnFailure)
}

func fleetSpec() *Spec {
	return &Spec{
		Name:    "ETL",
		KeyName: "k1",
		Fleets: map[Role]FleetSpec{
			RoleMaster: {
				OnDemand: 1,
				Types:    []FleetInstanceType{{InstanceType: "m5.xlarge"}},
			},
			RoleCore: {
				Spot:        8,
				SpotTimeout: &SpotTimeout{Action: "terminate-cluster", Minutes: 15},
				Types: []FleetInstanceType{
					{InstanceType: "m5.xlarge", Weight: 1, BidPercentage: 80},
					{InstanceType: "m5.2xlarge", Weight: 2, BidPercentage: 75},
				},
			},
		},
	}
}

func TestBuildRequestFleetTopology(t *testing.T) {
	request, err := BuildRequest(fleetSpec())
	require.NoError(t, err)

	assert.Equal(t, TopologyFleets, request.Topology)
	require.Len(t, request.Input.Instances.InstanceFleets, 2)

	master := request.Input.Instances.InstanceFleets[0]
	assert.Equal(t, types.InstanceFleetTypeMaster, master.InstanceFleetType)
	assert.Equal(t, int32(1), aws.ToInt32(master.TargetOnDemandCapacity))
	assert.Equal(t, int32(0), aws.ToInt32(master.TargetSpotCapacity))
	assert.Nil(t, master.LaunchSpecifications)

	core := request.Input.Instances.InstanceFleets[1]
	assert.Equal(t, int32(8), aws.ToInt32(core.TargetSpotCapacity))
	require.NotNil(t, core.LaunchSpecifications)
	spot := core.LaunchSpecifications.SpotSpecification
	assert.Equal(t, types.SpotProvisioningTimeoutActionTerminateCluster, spot.TimeoutAction)
	assert.Equal(t, int32(15), aws.ToInt32(spot.TimeoutDurationMinutes))

	require.Len(t, core.InstanceTypeConfigs, 2)
	assert.Equal(t, int32(2), aws.ToInt32(core.InstanceTypeConfigs[1].WeightedCapacity))
	assert.Equal(t, float64(75), aws.ToFloat64(core.InstanceTypeConfigs[1].BidPriceAsPercentageOfOnDemandPrice))
}

func TestBuildRequestEmptyCoreFleetIsOmitted(t *testing.T) {
	spec := fleetSpec()
	spec.Fleets[RoleCore] = FleetSpec{OnDemand: 0, Spot: 0}

	request, err := BuildRequest(spec)
	require.NoError(t, err)

	require.Len(t, request.Input.Instances.InstanceFleets, 1)
	assert.Equal(t, types.InstanceFleetTypeMaster, request.Input.Instances.InstanceFleets[0].InstanceFleetType)
}

func TestValidateMasterFleetTargetsExactlyOneUnit(t *testing.T) {
	for _, fleet := range []FleetSpec{
		{OnDemand: 1, Spot: 1, Types: []FleetInstanceType{{InstanceType: "m5.xlarge"}}},
		{OnDemand: 2, Types: []FleetInstanceType{{InstanceType: "m5.xlarge"}}},
		{OnDemand: 0, Spot: 0},
	} {
		spec := fleetSpec()
		spec.Fleets[RoleMaster] = fleet

		_, err := BuildRequest(spec)
		var configErr *ConfigError
		require.ErrorAs(t, err, &configErr)
		assert.Contains(t, configErr.Reason, "MASTER")
	}
}

func TestValidateMasterFleetMaySpotOrOnDemand(t *testing.T) {
	spec := fleetSpec()
	spec.Fleets[RoleMaster] = FleetSpec{Spot: 1, Types: []FleetInstanceType{{InstanceType: "m5.xlarge"}}}

	request, err := BuildRequest(spec)
	require.NoError(t, err)

	master := request.Input.Instances.InstanceFleets[0]
	assert.Equal(t, int32(0), aws.ToInt32(master.TargetOnDemandCapacity))
	assert.Equal(t, int32(1), aws.ToInt32(master.TargetSpotCapacity))
}
