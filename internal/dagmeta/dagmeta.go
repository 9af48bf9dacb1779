// Package dagmeta extracts a graph snapshot from a built pipeline and
// serializes it to the camelCase JSON schema of spec.md §6, plus a
// plain-text flowchart rendering (diagram.go). Node names following the
// "OriginPipeline.NodeName" merged-pipeline convention (spec §4.8) have
// their origin pipeline recovered by splitting on the first dot.
package dagmeta

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/riverglass/catalogflow/internal/catalog"
	"github.com/riverglass/catalogflow/internal/codec"
	"github.com/riverglass/catalogflow/internal/node"
	"github.com/riverglass/catalogflow/internal/pipeline"
)

// Snapshot is the graph snapshot extracted from a built pipeline.
type Snapshot struct {
	RunID         string
	PipelineName  string
	GeneratedAt   time.Time
	Nodes         []NodeSnapshot
	CatalogEntries []EntrySnapshot
	Edges         []Edge
}

// NodeSnapshot describes one registered node.
type NodeSnapshot struct {
	ID             string
	Label          string
	NodeType       string
	Layer          int
	OriginPipeline string
	Inputs         []string
	Outputs        []string
}

// FieldDescriptor describes one inferred schema field (spec §4.8).
type FieldDescriptor struct {
	Name       string
	Type       string
	IsNullable bool
}

// CodecInfo describes the storage backing of a catalog entry.
type CodecInfo struct {
	CatalogType     string // "dataset" or "object"
	Filepath        string
	IsReadOnly      bool
	InspectionLevel string
}

// EntrySnapshot describes one catalog entry.
type EntrySnapshot struct {
	Key       string
	Label     string
	DataType  string
	Schema    []FieldDescriptor
	Fields    CodecInfo
	Producer  string
	Consumers []string
}

// Edge is a directed edge: entry -> node for a read, node -> entry for a
// write.
type Edge struct {
	Source   string
	Target   string
	DataType string
}

// pathFiler is implemented by every catalog.TypedEntry, returning a
// filepath and true only when the entry's codec is file-backed.
type pathFiler interface {
	Filepath() (string, bool)
}

// Extract builds a Snapshot from a built pipeline. p must already be built.
func Extract(ctx context.Context, p *pipeline.Pipeline) *Snapshot {
	if !p.IsBuilt() {
		panic("dagmeta: Extract called on a pipeline that has not been built")
	}

	nodes := p.Nodes()

	producer := make(map[string]string)
	consumers := make(map[string][]string)
	entryByKey := make(map[string]catalog.Entry)

	for _, n := range nodes {
		for _, in := range n.Inputs {
			for _, e := range in.Entries() {
				entryByKey[e.Key()] = e
				consumers[e.Key()] = append(consumers[e.Key()], n.Name)
			}
		}
		for _, out := range n.Outputs {
			for _, e := range out.Entries() {
				entryByKey[e.Key()] = e
				if _, claimed := producer[e.Key()]; !claimed {
					producer[e.Key()] = n.Name
				}
			}
		}
	}

	snap := &Snapshot{
		RunID:        uuid.New().String(),
		PipelineName: p.Name,
		GeneratedAt:  time.Now(),
	}

	var edges []Edge
	for _, n := range nodes {
		origin, label := splitOrigin(n.Name, p.Name)

		var inputKeys, outputKeys []string
		for _, in := range n.Inputs {
			for _, e := range in.Entries() {
				inputKeys = append(inputKeys, e.Key())
				edges = append(edges, Edge{Source: e.Key(), Target: n.Name, DataType: dataTypeName(e)})
			}
		}
		for _, out := range n.Outputs {
			for _, e := range out.Entries() {
				outputKeys = append(outputKeys, e.Key())
				edges = append(edges, Edge{Source: n.Name, Target: e.Key(), DataType: dataTypeName(e)})
			}
		}

		snap.Nodes = append(snap.Nodes, NodeSnapshot{
			ID:             n.Name,
			Label:          humanize(label),
			NodeType:       nodeTypeName(n.Node),
			Layer:          n.Layer,
			OriginPipeline: origin,
			Inputs:         inputKeys,
			Outputs:        outputKeys,
		})
	}
	snap.Edges = edges

	keys := sortedKeys(entryByKey)
	for _, key := range keys {
		e := entryByKey[key]
		snap.CatalogEntries = append(snap.CatalogEntries, EntrySnapshot{
			Key:       key,
			Label:     humanize(key),
			DataType:  dataTypeName(e),
			Schema:    inferSchema(e.DataType()),
			Fields:    codecInfo(e),
			Producer:  producer[key],
			Consumers: dedupeSorted(consumers[key]),
		})
	}

	return snap
}

func dataTypeName(e catalog.Entry) string {
	t := e.DataType()
	return t.String()
}

func nodeTypeName(n node.Node) string {
	t := n.ImplType()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// inferSchema walks a catalog entry's payload type T (or, for a dataset
// codec, []T) down to its underlying struct and reports one FieldDescriptor
// per exported field, so a struct-backed entry (the CSV and JSON-file
// reference codecs) exports its column/property layout alongside the
// entry's dataType (spec §4.8, §6: "schema?: { fields: [...] }"). A
// payload that does not resolve to a struct (e.g. the int dataset in
// scenario 1) has no schema and the field is omitted on serialization.
func inferSchema(t reflect.Type) []FieldDescriptor {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []FieldDescriptor
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fields = append(fields, FieldDescriptor{
			Name:       fieldTagName(f),
			Type:       f.Type.String(),
			IsNullable: f.Type.Kind() == reflect.Ptr,
		})
	}
	return fields
}

// fieldTagName prefers the csv tag (the reference CSV codec's column name),
// then the json tag (the reference JSON-file codec's property name),
// falling back to the Go field name.
func fieldTagName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("csv"); ok {
		if name := strings.Split(tag, ",")[0]; name != "" {
			return name
		}
	}
	if tag, ok := f.Tag.Lookup("json"); ok {
		if name := strings.Split(tag, ",")[0]; name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

func codecInfo(e catalog.Entry) CodecInfo {
	info := CodecInfo{
		CatalogType: e.Kind().String(),
		IsReadOnly:  e.Capability() == codec.ReadOnly,
	}
	if e.PreferredInspectionLevel() != codec.InspectNone {
		info.InspectionLevel = e.PreferredInspectionLevel().String()
	}
	if pf, ok := e.(pathFiler); ok {
		if path, has := pf.Filepath(); has {
			info.Filepath = path
		}
	}
	return info
}

// splitOrigin recovers a merged pipeline's origin from a node name of the
// form "OriginPipeline.NodeName"; names without a dot belong to p itself.
func splitOrigin(name, ownPipeline string) (origin, label string) {
	if idx := strings.Index(name, "."); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return ownPipeline, name
}

func humanize(name string) string {
	replaced := strings.ReplaceAll(name, "_", " ")
	if replaced == "" {
		return replaced
	}
	return strings.ToUpper(replaced[:1]) + replaced[1:]
}

func dedupeSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]catalog.Entry) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
