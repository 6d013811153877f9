package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/devflowhq/devflow/internal/agentruntime"
	"github.com/devflowhq/devflow/internal/artifact"
)

// groupStages partitions pipeline into run groups: every run of consecutive
// agents marked Parallelizable in the registry is folded into one cluster
// group, everything else runs as its own single-element group. Grouping
// looks only at the Parallelizable flag; upstream artifacts are not checked
// here, so a cluster member whose upstream is missing fails in Invoke.
// This generalizes spec.md §4.7/§5's "validator cluster" rule beyond the
// fixed reviewer/security-auditor/doc-master trio.
func groupStages(reg *agentruntime.Registry, pipeline []string) (stages [][]string, clusterCount int) {
	i := 0
	for i < len(pipeline) {
		cfg, ok := reg.Get(pipeline[i])
		if ok && cfg.Parallelizable {
			cluster := []string{pipeline[i]}
			j := i + 1
			for j < len(pipeline) {
				next, ok := reg.Get(pipeline[j])
				if !ok || !next.Parallelizable {
					break
				}
				cluster = append(cluster, pipeline[j])
				j++
			}
			stages = append(stages, cluster)
			clusterCount++
			i = j
			continue
		}
		stages = append(stages, []string{pipeline[i]})
		i++
	}
	return stages, clusterCount
}

// clusterFailure records one worker's failure within a parallel cluster
// without cancelling its siblings, per spec.md §5: "one failure does NOT
// cancel siblings".
type clusterFailure struct {
	agent string
	err   error
}

// runCluster dispatches every not-yet-completed agent in cluster
// concurrently, with at most ParallelClusterSize workers running at once
// (one worker per pending agent when ParallelClusterSize is <= 0 or larger
// than the cluster). All workers run to completion; failures are collected
// and returned together after the last sibling finishes.
func (c *Coordinator) runCluster(ctx context.Context, inv *agentruntime.Invoker, workflowID, request string, cluster []string) error {
	toRun := make([]string, 0, len(cluster))
	for _, agent := range cluster {
		if c.Store.IsCompleted(workflowID, producedType(c.Registry, agent)) {
			continue
		}
		toRun = append(toRun, agent)
	}
	if len(toRun) == 0 {
		return nil
	}

	limit := c.ParallelClusterSize
	if limit <= 0 || limit > len(toRun) {
		limit = len(toRun)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, limit)
	failuresCh := make(chan clusterFailure, len(toRun))
	for _, agent := range toRun {
		wg.Add(1)
		sem <- struct{}{}
		go func(agent string) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := inv.Invoke(ctx, agent, workflowID, request); err != nil {
				failuresCh <- clusterFailure{agent: agent, err: err}
			}
		}(agent)
	}
	wg.Wait()
	close(failuresCh)

	var failures []clusterFailure
	for f := range failuresCh {
		failures = append(failures, f)
	}
	if len(failures) > 0 {
		return fmt.Errorf("coordinator: %d validator cluster worker(s) failed, first: %s: %w",
			len(failures), failures[0].agent, failures[0].err)
	}
	return nil
}

func producedType(reg *agentruntime.Registry, agent string) artifact.Type {
	cfg, ok := reg.Get(agent)
	if !ok {
		return ""
	}
	return cfg.ProducedArtifactType
}

// completedAgents walks pipeline in order, returning the longest prefix of
// agents whose produced artifact is completed and the artifact types those
// agents produced. Mirrors checkpoint's own artifact-backed reconciliation,
// scoped here to the workflow the coordinator is currently driving.
func completedAgents(store *artifact.Store, reg *agentruntime.Registry, workflowID string, pipeline []string) ([]string, []string, error) {
	completed := []string{}
	created := []string{}
	for _, agent := range pipeline {
		typ := producedType(reg, agent)
		if typ == "" || !store.IsCompleted(workflowID, typ) {
			break
		}
		completed = append(completed, agent)
		created = append(created, string(typ))
	}
	return completed, created, nil
}
