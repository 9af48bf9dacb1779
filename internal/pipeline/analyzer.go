package pipeline

import (
	"sort"

	"github.com/riverglass/catalogflow/internal/catalog"
	"github.com/riverglass/catalogflow/internal/catalogerr"
)

// analyze implements spec §4.5: build the producer map, derive each node's
// dependencies from it, then assign layers by repeatedly peeling off nodes
// whose dependencies are all already assigned (Kahn's algorithm). The
// adjacency-set shape (node -> set of dependencies) is adapted from the
// teacher's plugin dependency graph, repurposed here from "plugin init
// order" to "catalog-entry producer/consumer layering". A cycle is reported
// by naming every node left unassigned, which includes any node downstream
// of the cycle, not only the cycle's members.
func analyze(p *Pipeline) error {
	producer, err := buildProducerMap(p)
	if err != nil {
		return err
	}

	outgoing := make(map[string]map[string]struct{}, len(p.nodes)) // node -> its dependencies
	for _, n := range p.nodes {
		outgoing[n.Name] = make(map[string]struct{})
	}

	for _, n := range p.nodes {
		for _, in := range n.Inputs {
			for _, entry := range in.Entries() {
				if catalog.IsReserved(entry.Key()) {
					continue
				}
				producerName, ok := producer[entry.Key()]
				if !ok {
					continue // external prerequisite: data present before execution
				}
				// A self-edge is recorded like any other dependency: the node
				// can then never become ready, so layerNodes reports it as a
				// circular dependency.
				outgoing[n.Name][producerName] = struct{}{}
			}
		}
	}

	for _, n := range p.nodes {
		deps := make([]string, 0, len(outgoing[n.Name]))
		for dep := range outgoing[n.Name] {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		n.Dependencies = deps
	}

	layers, err := layerNodes(p.nodes, outgoing)
	if err != nil {
		return err
	}
	for layerIndex, names := range layers {
		for _, name := range names {
			pn, _ := p.NodeByName(name)
			pn.Layer = layerIndex
		}
	}

	return nil
}

// buildProducerMap scans every output entry of every node, failing with
// MultipleProducers (as a BuildError) if an entry is claimed twice.
func buildProducerMap(p *Pipeline) (map[string]string, error) {
	producer := make(map[string]string)
	for _, n := range p.nodes {
		for _, out := range n.Outputs {
			for _, entry := range out.Entries() {
				if catalog.IsReserved(entry.Key()) {
					continue
				}
				if existing, claimed := producer[entry.Key()]; claimed && existing != n.Name {
					names := []string{existing, n.Name}
					sort.Strings(names)
					return nil, catalogerr.NewBuildError("multiple producers for catalog entry", map[string]interface{}{
						"entry_key": entry.Key(),
						"nodes":     names,
					})
				}
				producer[entry.Key()] = n.Name
			}
		}
	}
	return producer, nil
}

// layerNodes assigns each node the smallest layer index such that every
// dependency is in a strictly earlier layer (spec §4.5 step 4). Nodes
// within a layer are returned in a deterministic (sorted) order; the
// pipeline's own registration order is preserved separately on
// Pipeline.Nodes() / PipelineNode.Layer for the scheduler to sort by.
func layerNodes(nodes []*PipelineNode, dependsOn map[string]map[string]struct{}) ([][]string, error) {
	assigned := make(map[string]bool, len(nodes))
	var layers [][]string

	remaining := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		remaining[n.Name] = struct{}{}
	}

	for len(remaining) > 0 {
		var ready []string
		for name := range remaining {
			deps := dependsOn[name]
			allAssigned := true
			for dep := range deps {
				if !assigned[dep] {
					allAssigned = false
					break
				}
			}
			if allAssigned {
				ready = append(ready, name)
			}
		}

		if len(ready) == 0 {
			unassigned := make([]string, 0, len(remaining))
			for name := range remaining {
				unassigned = append(unassigned, name)
			}
			sort.Strings(unassigned)
			return nil, catalogerr.NewBuildError("circular dependency", map[string]interface{}{
				"nodes": unassigned,
			})
		}

		sort.Strings(ready)
		layers = append(layers, ready)
		for _, name := range ready {
			assigned[name] = true
			delete(remaining, name)
		}
	}

	return layers, nil
}
