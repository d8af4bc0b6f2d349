package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/emr/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribePicksMostRecentMasterInstance(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{
		states: []types.ClusterState{types.ClusterStateWaiting},
		instances: []types.Instance{
			// An earlier master attempt that failed and was replaced
			masterInstance("10.0.0.1", now.Add(-time.Hour)),
			masterInstance("10.0.0.3", now),
			masterInstance("10.0.0.2", now.Add(-10*time.Minute)),
		},
	}
	controller := newTestController(api)

	metadata, err := controller.Describe(context.Background(), "j-123")
	require.NoError(t, err)

	assert.Equal(t, "j-123", metadata.ClusterID)
	assert.Equal(t, "ETL", metadata.Name)
	assert.Equal(t, string(types.ClusterStateWaiting), metadata.State)
	assert.Equal(t, "ec2-1-2-3-4.compute.amazonaws.com", metadata.MasterPublicDNS)
	assert.Equal(t, "10.0.0.3", metadata.MasterPrivateIP)
}

func TestDescribeFailsWithoutMasterInstance(t *testing.T) {
	api := &fakeAPI{
		states: []types.ClusterState{types.ClusterStateWaiting},
	}
	controller := newTestController(api)

	_, err := controller.Describe(context.Background(), "j-123")
	require.ErrorContains(t, err, "no master instance")
}

func TestDescribeToleratesInstancesWithoutTimeline(t *testing.T) {
	api := &fakeAPI{
		states: []types.ClusterState{types.ClusterStateWaiting},
		instances: []types.Instance{
			{PrivateIpAddress: aws.String("10.0.0.1")},
			masterInstance("10.0.0.2", time.Now()),
		},
	}
	controller := newTestController(api)

	metadata, err := controller.Describe(context.Background(), "j-123")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", metadata.MasterPrivateIP)
}
