// Package emr is the surface we consume from the Elastic MapReduce service.
// Everything downstream depends on the API interface, never on the concrete
// SDK client, so tests can substitute a fake.
package emr

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/emr"
)

type API interface {
	ListClusters(ctx context.Context, input *emr.ListClustersInput, optFns ...func(*emr.Options)) (*emr.ListClustersOutput, error)
	RunJobFlow(ctx context.Context, input *emr.RunJobFlowInput, optFns ...func(*emr.Options)) (*emr.RunJobFlowOutput, error)
	DescribeCluster(ctx context.Context, input *emr.DescribeClusterInput, optFns ...func(*emr.Options)) (*emr.DescribeClusterOutput, error)
	ListInstanceGroups(ctx context.Context, input *emr.ListInstanceGroupsInput, optFns ...func(*emr.Options)) (*emr.ListInstanceGroupsOutput, error)
	ListInstanceFleets(ctx context.Context, input *emr.ListInstanceFleetsInput, optFns ...func(*emr.Options)) (*emr.ListInstanceFleetsOutput, error)
	ListInstances(ctx context.Context, input *emr.ListInstancesInput, optFns ...func(*emr.Options)) (*emr.ListInstancesOutput, error)
	TerminateJobFlows(ctx context.Context, input *emr.TerminateJobFlowsInput, optFns ...func(*emr.Options)) (*emr.TerminateJobFlowsOutput, error)
}

// The real client satisfies the interface
var _ API = (*emr.Client)(nil)

// NewClient builds an EMR client from the ambient AWS configuration
// (environment, shared config files, instance profile). A non-empty region
// overrides whatever the configuration chain resolves.
func NewClient(ctx context.Context, region string) (*emr.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return emr.NewFromConfig(cfg), nil
}
