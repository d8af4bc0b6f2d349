package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsemr "github.com/aws/aws-sdk-go-v2/service/emr"
	"github.com/aws/aws-sdk-go-v2/service/emr/types"
)

// Metadata is the addressing information downstream consumers need once a
// cluster is ready.
type Metadata struct {
	ClusterID       string `json:"cluster_id" yaml:"cluster_id"`
	Name            string `json:"name" yaml:"name"`
	State           string `json:"state" yaml:"state"`
	MasterPublicDNS string `json:"master_public_dns" yaml:"master_public_dns"`
	MasterPrivateIP string `json:"master_private_ip" yaml:"master_private_ip"`
}

// Describe reads the cluster's master addressing information. The master
// instance list can contain earlier failed and replaced attempts; the most
// recently created one is the live master.
func (c *Controller) Describe(ctx context.Context, id string) (*Metadata, error) {
	out, err := c.api.DescribeCluster(ctx, &awsemr.DescribeClusterInput{ClusterId: aws.String(id)})
	if err != nil {
		return nil, fmt.Errorf("failed to describe cluster %s: %w", id, err)
	}
	if out.Cluster == nil {
		return nil, fmt.Errorf("describe cluster %s returned no cluster", id)
	}

	metadata := &Metadata{
		ClusterID:       id,
		Name:            aws.ToString(out.Cluster.Name),
		MasterPublicDNS: aws.ToString(out.Cluster.MasterPublicDnsName),
	}
	if out.Cluster.Status != nil {
		metadata.State = string(out.Cluster.Status.State)
	}

	instances, err := c.listMasterInstances(ctx, id, out.Cluster.InstanceCollectionType)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("cluster %s has no master instance", id)
	}

	master := instances[0]
	for _, instance := range instances[1:] {
		if instanceCreatedAt(instance).After(instanceCreatedAt(master)) {
			master = instance
		}
	}
	metadata.MasterPrivateIP = aws.ToString(master.PrivateIpAddress)

	return metadata, nil
}

func (c *Controller) listMasterInstances(ctx context.Context, id string, collection types.InstanceCollectionType) ([]types.Instance, error) {
	input := &awsemr.ListInstancesInput{ClusterId: aws.String(id)}
	if collection == types.InstanceCollectionTypeInstanceFleet {
		input.InstanceFleetType = types.InstanceFleetTypeMaster
	} else {
		input.InstanceGroupTypes = []types.InstanceGroupType{types.InstanceGroupTypeMaster}
	}

	out, err := c.api.ListInstances(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list master instances of cluster %s: %w", id, err)
	}
	return out.Instances, nil
}

func instanceCreatedAt(instance types.Instance) time.Time {
	if instance.Status == nil || instance.Status.Timeline == nil || instance.Status.Timeline.CreationDateTime == nil {
		return time.Time{}
	}
	return *instance.Status.Timeline.CreationDateTime
}
