// Package result defines the execution result model (spec §4.9) and the
// Reporter contract that renders it for a human or a machine.
package result

import "time"

// NodeResult is the per-node execution record.
type NodeResult struct {
	Name          string
	Success       bool
	Err           error
	ExecutionTime time.Duration
	InputCount    int
	OutputCount   int
}

// PipelineResult aggregates per-node records in execution order.
type PipelineResult struct {
	PipelineName  string
	Success       bool
	Err           error
	ExecutionTime time.Duration
	Nodes         []NodeResult
}
