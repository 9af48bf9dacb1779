// Package inspector implements the pre-execution inspector (spec §4.7): a
// validation pass over every externally-visible Layer-0 input before the
// scheduler invokes a single node. Modeled on the teacher's
// Executor.VerifySteps (internal/engine/executor.go), which separates a
// verification pass with its own summary from the apply pass; here the
// "steps" are catalog entries rather than config steps, and a single
// failing entry fails the whole run instead of being reported per-step.
package inspector

import (
	"context"
	"fmt"
	"sort"

	"github.com/riverglass/catalogflow/internal/catalog"
	"github.com/riverglass/catalogflow/internal/catalogerr"
	"github.com/riverglass/catalogflow/internal/codec"
	"github.com/riverglass/catalogflow/internal/pipeline"
)

// Summary counts verdicts by status across every inspected entry, mirroring
// the teacher's VerificationSummary counters.
type Summary struct {
	Total           int
	OK              int
	FileMissing     int
	FormatInvalid   int
	SchemaMismatch  int
	SampleRowFailed int
	NotApplicable   int
}

func (s *Summary) record(v codec.Verdict) {
	s.Total++
	switch v.Status {
	case codec.VerdictOK:
		s.OK++
	case codec.VerdictFileMissing:
		s.FileMissing++
	case codec.VerdictFormatInvalid:
		s.FormatInvalid++
	case codec.VerdictSchemaMismatch:
		s.SchemaMismatch++
	case codec.VerdictSampleRowFailed:
		s.SampleRowFailed++
	case codec.VerdictNotApplicable:
		s.NotApplicable++
	}
}

// Inspector validates a pipeline's externally-visible Layer-0 inputs before
// any node runs. It satisfies scheduler.Validator.
type Inspector struct {
	level codec.InspectionLevel
}

// New constructs an Inspector. level overrides every entry's preferred
// inspection level; pass codec.InspectNone to use each entry's own
// preference instead.
func New(level codec.InspectionLevel) *Inspector {
	return &Inspector{level: level}
}

// Validate inspects every Layer-0 entry that is not produced by any node in
// p (an external prerequisite) and that exposes a codec.Inspector. It
// collects every failing verdict — not just the first — into a single
// ValidationError (spec §4.7: "fails listing every failing entry").
func (i *Inspector) Validate(ctx context.Context, p *pipeline.Pipeline) error {
	_, summary, err := i.Inspect(ctx, p)
	_ = summary
	return err
}

// Inspect runs the same pass as Validate but also returns the per-entry
// verdicts and the Summary, for callers that want the counts regardless of
// whether the run would be allowed to proceed.
func (i *Inspector) Inspect(ctx context.Context, p *pipeline.Pipeline) (map[string]codec.Verdict, *Summary, error) {
	entries := externalLayerZeroEntries(p)

	verdicts := make(map[string]codec.Verdict, len(entries))
	summary := &Summary{}
	failures := make(map[string]string)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return verdicts, summary, catalogerr.NewCanceled("inspect")
		}

		insp, ok := entry.Inspector()
		if !ok {
			continue
		}
		level := i.level
		if level == codec.InspectNone {
			level = entry.PreferredInspectionLevel()
		}
		verdict, err := insp.Inspect(ctx, level)
		if err != nil {
			return verdicts, summary, catalogerr.NewCodecError(entry.Key(), "inspect", err)
		}
		verdicts[entry.Key()] = verdict
		summary.record(verdict)
		if verdict.Failed() {
			failures[entry.Key()] = failureMessage(verdict)
		}
	}

	if len(failures) > 0 {
		return verdicts, summary, catalogerr.NewValidationError("pre-execution inspection failed", failures)
	}
	return verdicts, summary, nil
}

// failureMessage renders a verdict's failure for the ValidationError
// payload, including the row index for a sample-row failure so a deep CSV
// inspection names both the row and the reason (spec §8 scenario 5).
func failureMessage(v codec.Verdict) string {
	if v.Status == codec.VerdictSampleRowFailed {
		return fmt.Sprintf("row %d: %s", v.RowIndex, v.Reason)
	}
	return v.Reason
}

// externalLayerZeroEntries collects, in deterministic key order, every
// entry referenced as an input by a Layer-0 node that no node in the
// pipeline produces — the externally-visible inputs a run depends on
// existing before the first node executes.
func externalLayerZeroEntries(p *pipeline.Pipeline) []catalog.Entry {
	produced := make(map[string]bool)
	for _, n := range p.Nodes() {
		for _, out := range n.Outputs {
			for _, e := range out.Entries() {
				produced[e.Key()] = true
			}
		}
	}

	seen := make(map[string]bool)
	var out []catalog.Entry
	for _, n := range p.Nodes() {
		if n.Layer != 0 {
			continue
		}
		for _, in := range n.Inputs {
			for _, e := range in.Entries() {
				if catalog.IsReserved(e.Key()) || produced[e.Key()] || seen[e.Key()] {
					continue
				}
				seen[e.Key()] = true
				out = append(out, e)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
