package dagmeta

import (
	"encoding/json"
	"regexp"
	"time"
)

// jsonDoc mirrors spec.md §6's camelCase DAG metadata schema exactly; it is
// the wire type, kept separate from Snapshot so Snapshot stays a plain Go
// model convenient for the diagram renderer and for direct field access by
// callers, while this type owns marshaling concerns (omitted empty fields,
// timestamp formatting).
type jsonDoc struct {
	PipelineName   string           `json:"pipelineName"`
	GeneratedAt    string           `json:"generatedAt"`
	Nodes          []jsonNode       `json:"nodes"`
	CatalogEntries []jsonEntry      `json:"catalogEntries"`
	Edges          []jsonEdge       `json:"edges"`
}

type jsonNode struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`
	NodeType     string   `json:"nodeType"`
	Layer        int      `json:"layer"`
	PipelineName string   `json:"pipelineName"`
	Inputs       []string `json:"inputs"`
	Outputs      []string `json:"outputs"`
}

type jsonSchema struct {
	Fields []jsonField `json:"fields"`
}

type jsonField struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	IsNullable bool   `json:"isNullable"`
}

type jsonFields struct {
	CatalogType     string `json:"catalogType"`
	Filepath        string `json:"filepath,omitempty"`
	IsReadOnly      bool   `json:"isReadOnly,omitempty"`
	InspectionLevel string `json:"inspectionLevel,omitempty"`
}

type jsonEntry struct {
	Key       string      `json:"key"`
	Label     string      `json:"label"`
	DataType  string      `json:"dataType"`
	Schema    *jsonSchema `json:"schema,omitempty"`
	Fields    jsonFields  `json:"fields"`
	Producer  string      `json:"producer,omitempty"`
	Consumers []string    `json:"consumers"`
}

type jsonEdge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	DataType string `json:"dataType"`
}

// timestampLayout is the engine's default run-output timestamp format
// (spec.md §6: "default is YYYYMMDD-HHMMSS").
const timestampLayout = "20060102-150405"

// MarshalJSON renders the snapshot as the camelCase wire schema spec.md §6
// defines. Empty Schema is omitted entirely (fields?  is optional); empty
// Producer is omitted; Consumers is always present, possibly empty.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	doc := jsonDoc{
		PipelineName: s.PipelineName,
		GeneratedAt:  s.GeneratedAt.UTC().Format(time.RFC3339),
	}
	for _, n := range s.Nodes {
		doc.Nodes = append(doc.Nodes, jsonNode{
			ID:           n.ID,
			Label:        n.Label,
			NodeType:     n.NodeType,
			Layer:        n.Layer,
			PipelineName: n.OriginPipeline,
			Inputs:       orEmpty(n.Inputs),
			Outputs:      orEmpty(n.Outputs),
		})
	}
	for _, e := range s.CatalogEntries {
		je := jsonEntry{
			Key:      e.Key,
			Label:    e.Label,
			DataType: e.DataType,
			Fields: jsonFields{
				CatalogType:     e.Fields.CatalogType,
				Filepath:        e.Fields.Filepath,
				IsReadOnly:      e.Fields.IsReadOnly,
				InspectionLevel: e.Fields.InspectionLevel,
			},
			Producer:  e.Producer,
			Consumers: orEmpty(e.Consumers),
		}
		if len(e.Schema) > 0 {
			schema := &jsonSchema{}
			for _, f := range e.Schema {
				schema.Fields = append(schema.Fields, jsonField{Name: f.Name, Type: f.Type, IsNullable: f.IsNullable})
			}
			je.Schema = schema
		}
		doc.CatalogEntries = append(doc.CatalogEntries, je)
	}
	for _, e := range s.Edges {
		doc.Edges = append(doc.Edges, jsonEdge{Source: e.Source, Target: e.Target, DataType: e.DataType})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// UnmarshalJSON restores a Snapshot from the camelCase wire schema. RunID is
// not part of the wire schema (it is a diagnostic/correlation field, not
// spec.md §6 contract) and is left empty on round-trip.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	generatedAt, err := time.Parse(time.RFC3339, doc.GeneratedAt)
	if err != nil {
		return err
	}

	out := Snapshot{
		PipelineName: doc.PipelineName,
		GeneratedAt:  generatedAt,
	}
	for _, n := range doc.Nodes {
		out.Nodes = append(out.Nodes, NodeSnapshot{
			ID:             n.ID,
			Label:          n.Label,
			NodeType:       n.NodeType,
			Layer:          n.Layer,
			OriginPipeline: n.PipelineName,
			Inputs:         orNilIfEmpty(n.Inputs),
			Outputs:        orNilIfEmpty(n.Outputs),
		})
	}
	for _, e := range doc.CatalogEntries {
		es := EntrySnapshot{
			Key:      e.Key,
			Label:    e.Label,
			DataType: e.DataType,
			Fields: CodecInfo{
				CatalogType:     e.Fields.CatalogType,
				Filepath:        e.Fields.Filepath,
				IsReadOnly:      e.Fields.IsReadOnly,
				InspectionLevel: e.Fields.InspectionLevel,
			},
			Producer:  e.Producer,
			Consumers: orNilIfEmpty(e.Consumers),
		}
		if e.Schema != nil {
			for _, f := range e.Schema.Fields {
				es.Schema = append(es.Schema, FieldDescriptor{Name: f.Name, Type: f.Type, IsNullable: f.IsNullable})
			}
		}
		out.CatalogEntries = append(out.CatalogEntries, es)
	}
	for _, e := range doc.Edges {
		out.Edges = append(out.Edges, Edge{Source: e.Source, Target: e.Target, DataType: e.DataType})
	}

	*s = out
	return nil
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// orNilIfEmpty undoes orEmpty on the way back in: Extract leaves an empty
// key list nil, so a restored snapshot does the same.
func orNilIfEmpty(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return in
}

var invalidFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileBaseName computes the "dag-<pipeline>-<timestamp>" prefix spec.md §6
// describes, replacing invalid filename characters in the pipeline name
// with "_".
func FileBaseName(pipelineName string, generatedAt time.Time) string {
	safe := invalidFilenameChars.ReplaceAllString(pipelineName, "_")
	return "dag-" + safe + "-" + generatedAt.Format(timestampLayout)
}
