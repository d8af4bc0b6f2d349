package emr

import (
	"github.com/aws/aws-sdk-go-v2/service/emr/types"
)

// AliveStates are the cluster states a cluster can be found in by name.
// A terminated cluster keeps its name forever, so lookups must exclude
// terminal states or they would match long-gone clusters.
var AliveStates = []types.ClusterState{
	types.ClusterStateStarting,
	types.ClusterStateBootstrapping,
	types.ClusterStateRunning,
	types.ClusterStateWaiting,
	types.ClusterStateTerminating,
}

// IsAlive reports whether the cluster is in a non-terminal state.
func IsAlive(state types.ClusterState) bool {
	for _, s := range AliveStates {
		if state == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the cluster has reached an end state.
func IsTerminal(state types.ClusterState) bool {
	return state == types.ClusterStateTerminated || state == types.ClusterStateTerminatedWithErrors
}
