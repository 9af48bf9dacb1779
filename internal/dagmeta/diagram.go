package dagmeta

import (
	"fmt"
	"sort"
	"strings"
)

// DiagramExtension is the file extension used for the rendered flowchart
// (spec.md §6: "<ext> is ... the diagram extension for the rendered
// diagram").
const DiagramExtension = "mmd"

// RenderDiagram produces a Mermaid flowchart: one subgraph per origin
// pipeline, entries drawn inside their producer's subgraph, external
// inputs drawn once outside connected by solid edges, and cross-pipeline
// reads of a produced entry drawn with dashed edges (spec.md §4.8).
func RenderDiagram(s *Snapshot) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	byOrigin := make(map[string][]NodeSnapshot)
	var origins []string
	for _, n := range s.Nodes {
		if _, ok := byOrigin[n.OriginPipeline]; !ok {
			origins = append(origins, n.OriginPipeline)
		}
		byOrigin[n.OriginPipeline] = append(byOrigin[n.OriginPipeline], n)
	}
	sort.Strings(origins)

	entryOrigin := make(map[string]string)
	entryByKey := make(map[string]EntrySnapshot)
	for _, e := range s.CatalogEntries {
		entryByKey[e.Key] = e
		if e.Producer != "" {
			for _, n := range s.Nodes {
				if n.ID == e.Producer {
					entryOrigin[e.Key] = n.OriginPipeline
					break
				}
			}
		}
	}

	externalKeys := make(map[string]bool)
	for _, e := range s.CatalogEntries {
		if e.Producer == "" {
			externalKeys[e.Key] = true
		}
	}
	var externals []string
	for k := range externalKeys {
		externals = append(externals, k)
	}
	sort.Strings(externals)
	for _, k := range externals {
		fmt.Fprintf(&b, "  %s[[%s]]\n", nodeID(k), entryByKey[k].Label)
	}

	for _, origin := range origins {
		fmt.Fprintf(&b, "  subgraph %s\n", safeSubgraphName(origin))
		nodes := byOrigin[origin]
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
		for _, n := range nodes {
			fmt.Fprintf(&b, "    %s(%s)\n", nodeID(n.ID), n.Label)
		}
		var producedHere []string
		for _, e := range s.CatalogEntries {
			if entryOrigin[e.Key] == origin {
				producedHere = append(producedHere, e.Key)
			}
		}
		sort.Strings(producedHere)
		for _, k := range producedHere {
			fmt.Fprintf(&b, "    %s[(%s)]\n", nodeID(k), entryByKey[k].Label)
		}
		b.WriteString("  end\n")
	}

	var edgeLines []string
	for _, e := range s.Edges {
		solid := "-->"
		if entryOrigin[e.Source] != "" && !sameOriginAsConsumer(e, s, entryOrigin) {
			solid = "-.->"
		}
		edgeLines = append(edgeLines, fmt.Sprintf("  %s %s %s", nodeID(e.Source), solid, nodeID(e.Target)))
	}
	sort.Strings(edgeLines)
	for _, l := range edgeLines {
		b.WriteString(l)
		b.WriteString("\n")
	}

	return b.String()
}

// sameOriginAsConsumer reports whether a node->entry or entry->node edge
// stays within a single origin pipeline (a solid edge) as opposed to a node
// in one pipeline reading another pipeline's produced entry (a dashed,
// cross-pipeline edge).
func sameOriginAsConsumer(e Edge, s *Snapshot, entryOrigin map[string]string) bool {
	var nodeName string
	if _, isEntry := entryOrigin[e.Source]; isEntry {
		nodeName = e.Target
	} else {
		nodeName = e.Source
	}
	for _, n := range s.Nodes {
		if n.ID == nodeName {
			srcOrigin := entryOrigin[e.Source]
			if srcOrigin == "" {
				return true // external input, always solid
			}
			return srcOrigin == n.OriginPipeline
		}
	}
	return true
}

func nodeID(key string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return replacer.Replace(key)
}

func safeSubgraphName(origin string) string {
	if origin == "" {
		return "pipeline"
	}
	return nodeID(origin)
}
