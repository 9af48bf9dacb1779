// Package scheduler executes a built pipeline: one layer at a time,
// ascending, nodes within a layer run sequentially in registration order
// (spec §4.6, §5 — concurrency is confined to a single mapped input's
// fan-out/join, never across nodes). The first node error halts the run;
// remaining layers are never attempted.
package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/riverglass/catalogflow/internal/catalogerr"
	"github.com/riverglass/catalogflow/internal/catalogmap"
	"github.com/riverglass/catalogflow/internal/logging"
	"github.com/riverglass/catalogflow/internal/pipeline"
	"github.com/riverglass/catalogflow/internal/ports"
	"github.com/riverglass/catalogflow/internal/result"
)

// Validator runs pre-execution checks (the inspector) before any node is
// invoked. Scheduler depends only on this seam so it never needs to import
// the inspector package directly.
type Validator interface {
	Validate(ctx context.Context, p *pipeline.Pipeline) error
}

// Runner executes a built pipeline.
type Runner struct {
	logger    ports.Logger
	validator Validator
}

// New constructs a Runner. validator may be nil to skip the inspection
// phase entirely.
func New(logger ports.Logger, validator Validator) *Runner {
	return &Runner{logger: logger, validator: validator}
}

// Run executes every node of p layer by layer. p must already be built
// (Pipeline.IsBuilt()); Run panics otherwise, since that is a programming
// error, not a runtime condition.
func (r *Runner) Run(ctx context.Context, p *pipeline.Pipeline) (*result.PipelineResult, error) {
	if !p.IsBuilt() {
		panic("scheduler: Run called on a pipeline that has not been built")
	}

	if ports.RunID(ctx) == "" {
		ctx = ports.WithRunID(ctx, ports.GenerateRunID())
	}

	start := time.Now()
	pr := &result.PipelineResult{PipelineName: p.Name}

	if r.validator != nil {
		if err := r.validator.Validate(ctx, p); err != nil {
			pr.Success = false
			pr.Err = err
			pr.ExecutionTime = time.Since(start)
			return pr, err
		}
	}

	for _, layer := range layersOf(p.Nodes()) {
		for _, pn := range layer {
			if err := ctx.Err(); err != nil {
				canceled := catalogerr.NewCanceled(pn.Name)
				pr.Nodes = append(pr.Nodes, result.NodeResult{Name: pn.Name, Success: false, Err: canceled})
				pr.Success = false
				pr.Err = canceled
				pr.ExecutionTime = time.Since(start)
				return pr, canceled
			}

			nr, err := r.runNode(ctx, pn)
			pr.Nodes = append(pr.Nodes, nr)
			if err != nil {
				pr.Success = false
				pr.Err = err
				pr.ExecutionTime = time.Since(start)
				return pr, err
			}
		}
	}

	pr.Success = true
	pr.ExecutionTime = time.Since(start)
	return pr, nil
}

// runNode executes one node. The node's own log calls (via SetLogger) are
// buffered rather than sent straight to r.logger: the outcome (success or
// failure) is only known once Transform and the output save both complete,
// and attaching that outcome to every line the node logged, rather than
// interleaving it with the scheduler's own "node starting"/"node finished"
// lines, is the whole point of buffering here (see logging.NodeLogBuffer).
func (r *Runner) runNode(ctx context.Context, pn *pipeline.PipelineNode) (result.NodeResult, error) {
	start := time.Now()
	name := pn.Name

	if r.logger != nil {
		r.logger.Info(ctx, "node starting", "node_id", name, "layer", pn.Layer)
	}

	nodeLogs := logging.NewNodeLogBuffer()
	pn.Node.SetLogger(nodeLogs)

	inputs, err := loadAll(ctx, pn.Inputs)
	if err != nil {
		wrapped := catalogerr.NewNodeError(name, err)
		nodeLogs.Flush(r.logger, name, false)
		return result.NodeResult{Name: name, Success: false, Err: wrapped, ExecutionTime: time.Since(start)}, wrapped
	}

	outputs, err := pn.Node.Transform(ctx, inputs)
	if err != nil {
		wrapped := wrapNodeErr(name, err)
		nodeLogs.Flush(r.logger, name, false)
		return result.NodeResult{
			Name: name, Success: false, Err: wrapped,
			ExecutionTime: time.Since(start), InputCount: len(inputs),
		}, wrapped
	}

	if err := saveAll(ctx, pn.Outputs, outputs); err != nil {
		wrapped := catalogerr.NewNodeError(name, err)
		nodeLogs.Flush(r.logger, name, false)
		return result.NodeResult{
			Name: name, Success: false, Err: wrapped,
			ExecutionTime: time.Since(start), InputCount: len(inputs),
		}, wrapped
	}

	nodeLogs.Flush(r.logger, name, true)

	nr := result.NodeResult{
		Name: name, Success: true,
		ExecutionTime: time.Since(start),
		InputCount:    len(inputs),
		OutputCount:   len(outputs),
	}
	if r.logger != nil {
		r.logger.Info(ctx, "node finished", "node_id", name, "duration_ms", nr.ExecutionTime.Milliseconds())
	}
	return nr, nil
}

// wrapNodeErr avoids double-wrapping: adapter.Transform already reports a
// NewNodeError for input type-assertion failures, so only wrap errors that
// are not already a catalogerr node error.
func wrapNodeErr(name string, err error) error {
	if code, ok := catalogerr.CodeOf(err); ok && code == catalogerr.CodeNodeError {
		return err
	}
	return catalogerr.NewNodeError(name, err)
}

func loadAll(ctx context.Context, inputs []catalogmap.Erased) ([]interface{}, error) {
	var out []interface{}
	for _, in := range inputs {
		vs, err := in.Load(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, vs...)
	}
	return out, nil
}

func saveAll(ctx context.Context, outputs []catalogmap.Erased, values []interface{}) error {
	if len(outputs) == 0 {
		return nil
	}
	if len(outputs) == 1 {
		return outputs[0].Save(ctx, values)
	}
	// Multiple output maps sharing one node's output sequence each receive
	// the full sequence (e.g. writing the same produced dataset through
	// two distinct sinks).
	for _, out := range outputs {
		if err := out.Save(ctx, values); err != nil {
			return err
		}
	}
	return nil
}

// layersOf groups nodes by Layer ascending, preserving registration order
// within each layer (stable sort on Layer alone achieves this since nodes
// arrives already in registration order).
func layersOf(nodes []*pipeline.PipelineNode) [][]*pipeline.PipelineNode {
	if len(nodes) == 0 {
		return nil
	}
	sorted := make([]*pipeline.PipelineNode, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Layer < sorted[j].Layer })

	var layers [][]*pipeline.PipelineNode
	cur := sorted[0].Layer
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].Layer != cur {
			layers = append(layers, sorted[start:i])
			if i < len(sorted) {
				cur = sorted[i].Layer
				start = i
			}
		}
	}
	return layers
}
