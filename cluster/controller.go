package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsemr "github.com/aws/aws-sdk-go-v2/service/emr"
	"github.com/aws/aws-sdk-go-v2/service/emr/types"

	"github.com/dataops-ch/emrctl/emr"
)

// PollInterval is how often cluster state is re-read while waiting. Cluster
// startup and shutdown run on a multi-minute timescale, so coarse polling
// is fine; only the overall timeout is caller-configurable.
const PollInterval = 30 * time.Second

// Controller drives one cluster lifecycle operation end to end: create if
// absent, wait for readiness, terminate if present, wait for termination.
// It is synchronous and single-threaded; the only suspension points are the
// poll sleep and the provider calls themselves.
//
// Two concurrent invocations with the same cluster name can race and both
// create a cluster; there is no distributed lock. Callers are expected to
// serialize invocations per cluster name.
type Controller struct {
	api emr.API
	log *slog.Logger

	pollInterval time.Duration
}

func NewController(api emr.API, logger *slog.Logger) *Controller {
	return &Controller{
		api:          api,
		log:          logger,
		pollInterval: PollInterval,
	}
}

// UpResult reports a provisioning outcome. Changed is true only when a
// create call was actually issued.
type UpResult struct {
	Changed bool
	Cluster *Metadata
}

// Up ensures a cluster with the spec's name exists and is ready, creating
// it when absent. The timeout bounds the whole wait; when it expires, any
// partially-built cluster is terminated best-effort before the error
// surfaces.
func (c *Controller) Up(ctx context.Context, spec *Spec, timeout time.Duration) (*UpResult, error) {
	// Building the request first means configuration errors surface before
	// any provider call is made.
	request, err := BuildRequest(spec)
	if err != nil {
		return nil, err
	}

	id, err := FindByName(ctx, c.api, spec.Name)
	if err != nil {
		return nil, err
	}

	changed := false
	if id == "" {
		out, err := c.api.RunJobFlow(ctx, request.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to create cluster '%s': %w", spec.Name, err)
		}
		id = aws.ToString(out.JobFlowId)
		changed = true
		c.log.Info("Created cluster", "name", spec.Name, "id", id)
	} else {
		c.log.Info("Cluster already exists", "name", spec.Name, "id", id)
	}

	if err := c.waitReady(ctx, id, request.Topology, timeout); err != nil {
		return nil, err
	}

	metadata, err := c.Describe(ctx, id)
	if err != nil {
		return nil, err
	}

	return &UpResult{Changed: changed, Cluster: metadata}, nil
}

// Down terminates the cluster with the given name, when one is alive, and
// waits for it to reach a terminal state. It reports whether a terminate
// call was issued; a missing cluster is a no-op, not an error.
func (c *Controller) Down(ctx context.Context, name string, timeout time.Duration) (bool, error) {
	id, err := FindByName(ctx, c.api, name)
	if err != nil {
		return false, err
	}
	if id == "" {
		c.log.Info("No alive cluster to terminate", "name", name)
		return false, nil
	}

	c.log.Info("Terminating cluster", "name", name, "id", id)
	if _, err := c.api.TerminateJobFlows(ctx, &awsemr.TerminateJobFlowsInput{JobFlowIds: []string{id}}); err != nil {
		return false, fmt.Errorf("failed to terminate cluster %s: %w", id, err)
	}

	if err := c.waitTerminated(ctx, id, timeout); err != nil {
		return true, err
	}
	return true, nil
}

// waitReady polls until the cluster is ready, fails fatally when it falls
// into a terminal state, and on timeout cleans up the partially-built
// cluster before surfacing the error.
func (c *Controller) waitReady(ctx context.Context, id string, topology Topology, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		ready, state, err := c.checkReady(ctx, id, topology)
		if err != nil {
			return err
		}
		if ready {
			c.log.Info("Cluster is ready", "id", id)
			return nil
		}

		if emr.IsTerminal(state) {
			// The cluster never came up. Terminating an already-terminal
			// cluster is a harmless no-op on the provider side, so fire the
			// cleanup once without waiting on it.
			c.terminateQuietly(ctx, id)
			return fmt.Errorf("cluster %s failed to start (state: %s)", id, state)
		}

		if time.Now().After(deadline) {
			c.log.Warn("Cluster did not initialize in time, cleaning up", "id", id, "timeout", timeout)
			c.terminateQuietly(ctx, id)
			return fmt.Errorf("timeout waiting for cluster %s to initialize after %s", id, timeout)
		}

		c.log.Debug("Cluster not ready yet", "id", id, "state", state)
		if err := c.sleep(ctx); err != nil {
			return err
		}
	}
}

func (c *Controller) waitTerminated(ctx context.Context, id string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		state, err := c.clusterState(ctx, id)
		if err != nil {
			return err
		}
		if emr.IsTerminal(state) {
			c.log.Info("Cluster is terminated", "id", id, "state", state)
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for cluster %s to terminate after %s", id, timeout)
		}

		c.log.Debug("Cluster still terminating", "id", id, "state", state)
		if err := c.sleep(ctx); err != nil {
			return err
		}
	}
}

// checkReady reports whether the cluster is fully usable. Cluster-level
// WAITING alone is not enough: every instance group or fleet must
// individually report RUNNING, otherwise nodes may still be joining.
func (c *Controller) checkReady(ctx context.Context, id string, topology Topology) (bool, types.ClusterState, error) {
	state, err := c.clusterState(ctx, id)
	if err != nil {
		return false, state, err
	}
	if state != types.ClusterStateWaiting {
		return false, state, nil
	}

	switch topology {
	case TopologyFleets:
		out, err := c.api.ListInstanceFleets(ctx, &awsemr.ListInstanceFleetsInput{ClusterId: aws.String(id)})
		if err != nil {
			return false, state, fmt.Errorf("failed to list instance fleets of cluster %s: %w", id, err)
		}
		// A cluster without any fleet cannot be ready; don't let an empty
		// listing pass the all-running check vacuously.
		if len(out.InstanceFleets) == 0 {
			return false, state, nil
		}
		for _, fleet := range out.InstanceFleets {
			if fleet.Status == nil || fleet.Status.State != types.InstanceFleetStateRunning {
				return false, state, nil
			}
		}

	default:
		out, err := c.api.ListInstanceGroups(ctx, &awsemr.ListInstanceGroupsInput{ClusterId: aws.String(id)})
		if err != nil {
			return false, state, fmt.Errorf("failed to list instance groups of cluster %s: %w", id, err)
		}
		if len(out.InstanceGroups) == 0 {
			return false, state, nil
		}
		for _, group := range out.InstanceGroups {
			if group.Status == nil || group.Status.State != types.InstanceGroupStateRunning {
				return false, state, nil
			}
		}
	}

	return true, state, nil
}

func (c *Controller) clusterState(ctx context.Context, id string) (types.ClusterState, error) {
	out, err := c.api.DescribeCluster(ctx, &awsemr.DescribeClusterInput{ClusterId: aws.String(id)})
	if err != nil {
		return "", fmt.Errorf("failed to describe cluster %s: %w", id, err)
	}
	if out.Cluster == nil || out.Cluster.Status == nil {
		return "", fmt.Errorf("describe cluster %s returned no status", id)
	}
	return out.Cluster.Status.State, nil
}

// terminateQuietly is the best-effort cleanup path; a failure here must not
// mask the error that triggered it.
func (c *Controller) terminateQuietly(ctx context.Context, id string) {
	if _, err := c.api.TerminateJobFlows(ctx, &awsemr.TerminateJobFlowsInput{JobFlowIds: []string{id}}); err != nil {
		if emr.IsInvalidRequest(err) {
			// The cluster is already gone; nothing left to clean up.
			c.log.Debug("Cleanup termination skipped", "id", id, "error", err)
			return
		}
		c.log.Error("Cleanup termination failed", "id", id, "error", err)
	}
}

func (c *Controller) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.pollInterval):
		return nil
	}
}
