// Package pipeline implements the pipeline builder and the dependency
// analyzer (spec §4.4-4.5): registering nodes with their input/output
// catalog-maps, validating the wiring, and freezing the pipeline into a
// layered execution order the scheduler can run.
package pipeline

import (
	"github.com/riverglass/catalogflow/internal/catalogerr"
	"github.com/riverglass/catalogflow/internal/catalogmap"
	"github.com/riverglass/catalogflow/internal/node"
	"github.com/riverglass/catalogflow/internal/validate"
)

// PipelineNode is one registered node instance plus its wiring. Dependencies
// and Layer are populated by the analyzer when the owning Pipeline is
// built.
type PipelineNode struct {
	Name         string
	Node         node.Node
	Inputs       []catalogmap.Erased
	Outputs      []catalogmap.Erased
	Dependencies []string
	Layer        int
}

// Pipeline is a frozen collection of pipeline nodes plus descriptive
// metadata. Construct one via NewBuilder; Build() freezes it.
type Pipeline struct {
	Name        string
	Description string
	Tags        []string

	nodes     []*PipelineNode
	nodeIndex map[string]int
	built     bool
}

// Nodes returns the pipeline's nodes in registration order. Safe to call
// only after Build().
func (p *Pipeline) Nodes() []*PipelineNode {
	out := make([]*PipelineNode, len(p.nodes))
	copy(out, p.nodes)
	return out
}

// IsBuilt reports whether Build() has completed successfully.
func (p *Pipeline) IsBuilt() bool { return p.built }

// NodeByName returns the node registered under name, if any.
func (p *Pipeline) NodeByName(name string) (*PipelineNode, bool) {
	idx, ok := p.nodeIndex[name]
	if !ok {
		return nil, false
	}
	return p.nodes[idx], true
}

// Builder accumulates pipeline node registrations before Build() freezes
// them and runs the dependency analyzer.
type Builder struct {
	pipeline *Pipeline
}

// NewBuilder starts a new pipeline builder. name, description, and tags are
// optional descriptive metadata (spec §3).
func NewBuilder(name string) *Builder {
	return &Builder{
		pipeline: &Pipeline{
			Name:      name,
			nodeIndex: make(map[string]int),
		},
	}
}

// WithDescription sets the pipeline's description and returns the builder
// for chaining.
func (b *Builder) WithDescription(description string) *Builder {
	b.pipeline.Description = description
	return b
}

// WithTags sets the pipeline's tags and returns the builder for chaining.
func (b *Builder) WithTags(tags ...string) *Builder {
	b.pipeline.Tags = tags
	return b
}

// Register adds a node instance under name with the given input and output
// catalog-maps. It validates immediately (spec §4.4):
//   - name is a valid, catalog-style identifier and unique within the
//     pipeline;
//   - every input/output map's schema type matches the node's declared
//     input/output type;
//   - every entry behind an input can be read and every entry behind an
//     output can be written (codec.Capability);
//   - every mapped input/output has no unmapped required property.
//
// Register returns a BuildError on any violation and leaves the pipeline
// unchanged.
func (b *Builder) Register(name string, n node.Node, inputs, outputs []catalogmap.Erased) error {
	if b.pipeline.built {
		return catalogerr.NewBuildError("cannot register a node on an already-built pipeline", map[string]interface{}{
			"node": name,
		})
	}
	if !validate.IsValidKey(name) {
		return catalogerr.NewBuildError("invalid node name", map[string]interface{}{
			"node": name,
		})
	}
	if _, exists := b.pipeline.nodeIndex[name]; exists {
		return catalogerr.NewBuildError("duplicate node name", map[string]interface{}{
			"node": name,
		})
	}

	for i, in := range inputs {
		if in.SchemaType() != n.InputType() {
			return catalogerr.NewBuildError("input map type mismatch", map[string]interface{}{
				"node":     name,
				"index":    i,
				"expected": n.InputType().String(),
				"got":      in.SchemaType().String(),
			})
		}
		for _, e := range in.Entries() {
			if !e.Capability().CanRead() {
				return catalogerr.NewBuildError("input entry is not readable", map[string]interface{}{"node": name, "entry_key": e.Key()})
			}
		}
		if missing := in.RequiredUnmapped(); len(missing) > 0 {
			return catalogerr.NewBuildError("incomplete input mapping", map[string]interface{}{
				"node":    name,
				"missing": missing,
			})
		}
	}
	for i, out := range outputs {
		if out.SchemaType() != n.OutputType() {
			return catalogerr.NewBuildError("output map type mismatch", map[string]interface{}{
				"node":     name,
				"index":    i,
				"expected": n.OutputType().String(),
				"got":      out.SchemaType().String(),
			})
		}
		for _, e := range out.Entries() {
			if !e.Capability().CanWrite() {
				return catalogerr.NewBuildError("output entry is not writable", map[string]interface{}{"node": name, "entry_key": e.Key()})
			}
		}
		if missing := out.RequiredUnmapped(); len(missing) > 0 {
			return catalogerr.NewBuildError("incomplete output mapping", map[string]interface{}{
				"node":    name,
				"missing": missing,
			})
		}
	}

	pn := &PipelineNode{Name: name, Node: n, Inputs: inputs, Outputs: outputs}
	b.pipeline.nodeIndex[name] = len(b.pipeline.nodes)
	b.pipeline.nodes = append(b.pipeline.nodes, pn)
	return nil
}

// Build freezes the pipeline and runs the dependency analyzer, populating
// Dependencies and Layer on every node. Returns a BuildError for multiple
// producers or a circular dependency.
func (b *Builder) Build() (*Pipeline, error) {
	if err := analyze(b.pipeline); err != nil {
		return nil, err
	}
	b.pipeline.built = true
	return b.pipeline, nil
}
