package emr

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/emr/types"
	"github.com/stretchr/testify/assert"
)

func TestAliveAndTerminalPartitionTheStateSet(t *testing.T) {
	for _, state := range []types.ClusterState{
		types.ClusterStateStarting,
		types.ClusterStateBootstrapping,
		types.ClusterStateRunning,
		types.ClusterStateWaiting,
		types.ClusterStateTerminating,
	} {
		assert.True(t, IsAlive(state), state)
		assert.False(t, IsTerminal(state), state)
	}

	for _, state := range []types.ClusterState{
		types.ClusterStateTerminated,
		types.ClusterStateTerminatedWithErrors,
	} {
		assert.False(t, IsAlive(state), state)
		assert.True(t, IsTerminal(state), state)
	}
}
