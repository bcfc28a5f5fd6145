/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package pipeline composes extraction, normalization, detection, parsing,
// validation and fuzzy matching over a batch of script files.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"scriptcast/internal/config"
	"scriptcast/internal/crash"
	"scriptcast/internal/detect"
	"scriptcast/internal/domain"
	"scriptcast/internal/extract"
	"scriptcast/internal/fuzzy"
	applog "scriptcast/internal/log"
	"scriptcast/internal/script"
	"scriptcast/internal/tabular"
	"scriptcast/internal/telemetry"
	"scriptcast/internal/textnorm"
	"scriptcast/internal/validate"
)

// File is one input of a batch.
type File struct {
	Name string
	Data []byte
	// Err marks a file that could not be loaded; it is reported as that
	// file's error status.
	Err error
}

// Pipeline holds the configured stages. It keeps no per-batch state and is
// safe for concurrent use.
type Pipeline struct {
	cfg        config.PipelineConfig
	registry   *extract.Registry
	normalizer *textnorm.Normalizer
	parser     *script.Parser
	thresholds detect.Thresholds
	log        *slog.Logger
}

func New(cfg config.PipelineConfig) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		registry: extract.DefaultRegistry(extract.Limits{MaxPDFPages: cfg.MaxPDFPages, MaxTabularRows: cfg.MaxTabularRows}),
		normalizer: textnorm.New(textnorm.Options{
			HeaderMinLines:    cfg.HeaderMinLines,
			HeaderRepeatRatio: cfg.HeaderRepeatRatio,
			HeaderRepeatMin:   cfg.HeaderRepeatMin,
			WrapMaxLength:     cfg.WrapMaxLength,
		}),
		parser: script.New(script.Options{RecentCharacters: cfg.RecentCharacters}),
		thresholds: detect.Thresholds{
			DocxMinTableRows:    cfg.DocxMinTableRows,
			PDFMinColumns:       cfg.PDFMinColumns,
			PDFMinRows:          cfg.PDFMinRows,
			TabularLineRatio:    cfg.TabularLineRatio,
			CenteredCapsRatio:   cfg.CenteredCapsRatio,
			StandaloneCapsRatio: cfg.StandaloneCapsRatio,
		},
		log: applog.WithComponent("pipeline"),
	}
}

// Registry exposes the extractor registry, e.g. to list supported extensions.
func (p *Pipeline) Registry() *extract.Registry { return p.registry }

// fileOutcome is the explicit per-file result; a failed file never aborts the batch.
type fileOutcome struct {
	status   domain.FileStatus
	result   domain.ScriptParseResult
	warnings []string
}

// ParseScriptFiles extracts and parses every file, merges the per-file
// results, runs the fuzzy matcher over the merged cast and returns the
// bundle. File statuses keep the input order.
func (p *Pipeline) ParseScriptFiles(ctx context.Context, files []File) domain.ParsedScriptBundle {
	l := applog.WithOperation(p.log, "parse_files")
	start := time.Now()
	batch := uuid.NewString()
	ctx = applog.ContextWithBatch(ctx, batch)

	outcomes := make([]fileOutcome, len(files))
	if p.cfg.Workers > 1 && len(files) > 1 {
		var g errgroup.Group
		g.SetLimit(p.cfg.Workers)
		for i, f := range files {
			i, f := i, f
			g.Go(func() error {
				outcomes[i] = p.parseFile(ctx, f)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, f := range files {
			outcomes[i] = p.parseFile(ctx, f)
		}
	}

	b := domain.ParsedScriptBundle{
		Groups:             []domain.CharacterGroup{},
		SimilarityMatches:  []domain.SimilarityMatch{},
		ExtractionWarnings: []string{},
		Files:              make([]domain.FileStatus, 0, len(files)),
		Diagnostics:        []domain.Diagnostic{},
		ParsedAt:           time.Now().UTC(),
		BatchID:            batch,
	}
	var results []domain.ScriptParseResult
	for _, o := range outcomes {
		b.Files = append(b.Files, o.status)
		b.ExtractionWarnings = append(b.ExtractionWarnings, o.warnings...)
		b.Diagnostics = append(b.Diagnostics, o.status.Diagnostics...)
		if o.status.Status == domain.StatusSuccess {
			results = append(results, o.result)
			continue
		}
		b.ExtractionWarnings = append(b.ExtractionWarnings, o.status.Name+": "+o.status.Error)
		b.Diagnostics = append(b.Diagnostics, domain.Diagnostic{
			Severity: domain.SeverityError,
			Message:  o.status.Error,
			Source:   "pipeline",
			Context:  o.status.Name,
		})
	}

	b.Result = script.MergeParseResults(results)
	b.SimilarityMatches = fuzzy.FindSimilarCharacters(b.Result.Characters, p.cfg.SimilarityThreshold)
	b.Result.Warnings = appendSimilarityWarnings(b.Result.Warnings, b.SimilarityMatches)
	b.Groups = fuzzy.GroupSimilarCharacters(b.Result.Characters, nil)
	domain.SortDiagnostics(b.Diagnostics)

	l.InfoContext(ctx, "batch parsed",
		slog.Int("files", len(files)),
		slog.Int("failed", len(files)-len(results)),
		slog.Int("characters", len(b.Result.Characters)),
		slog.Int("warnings", len(b.Result.Warnings)),
		slog.Duration("took", time.Since(start)))
	telemetry.BatchParsed(telemetry.BatchStats{
		Files:    len(files),
		Failed:   len(files) - len(results),
		Roles:    len(b.Result.Characters),
		Warnings: len(b.Result.Warnings),
	})
	return b
}

func (p *Pipeline) parseFile(ctx context.Context, f File) fileOutcome {
	out := fileOutcome{status: domain.FileStatus{Name: f.Name}}
	fctx := applog.ContextWithFile(ctx, f.Name)
	err := crash.Guard(f.Name, func() error {
		if f.Err != nil {
			return f.Err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := p.registry.Extract(fctx, f.Name, f.Data)
		if err != nil {
			return err
		}
		out.warnings = doc.Warnings
		res, ct, diags := p.parseDocument(doc)
		out.result = res
		out.status.ContentType = string(ct)
		out.status.Characters = len(res.Characters)
		out.status.Diagnostics = append(doc.Diagnostics, diags...)
		return nil
	})
	if err != nil {
		p.log.WarnContext(fctx, "file failed", slog.Any("err", err))
		out.status.Status = domain.StatusError
		out.status.Error = err.Error()
		out.result = domain.NewScriptParseResult()
		return out
	}
	out.status.Status = domain.StatusSuccess
	p.log.DebugContext(fctx, "file parsed",
		slog.String("type", out.status.ContentType),
		slog.Int("characters", out.status.Characters))
	return out
}

// parseDocument routes a document through the tabular or screenplay path.
// Spreadsheets without running text are tabular by construction.
func (p *Pipeline) parseDocument(doc *extract.Document) (domain.ScriptParseResult, detect.ContentType, []domain.Diagnostic) {
	if strings.TrimSpace(doc.Text) == "" && len(doc.Tables) > 0 {
		res, diags := p.parseTables(doc.Tables)
		return res, detect.Tabular, diags
	}

	prepared := p.normalizer.Prepare(doc.Text)
	ct, sig := detect.Analyze(detect.Input{
		Text:          prepared,
		DocxTableRows: doc.Layout.DocxTableRows,
		PDFColumns:    doc.Layout.PDFColumns,
		PDFRows:       doc.Layout.PDFRows,
	}, p.thresholds)
	diags := []domain.Diagnostic{{
		Severity: domain.SeverityInfo,
		Message: fmt.Sprintf("detected %s (%d lines, %d tabular, %d centered caps, %d standalone caps)",
			ct, sig.NonEmpty, sig.TabularLines, sig.CenteredCaps, sig.StandaloneCaps),
		Source:  "detect",
		Context: doc.Name,
	}}

	if ct == detect.Tabular {
		tables := doc.Tables
		if len(tables) == 0 {
			tbl, bd := p.textTable(prepared)
			diags = append(diags, bd...)
			tables = []domain.StructuredParseResult{tbl}
		}
		res, td := p.parseTables(tables)
		diags = append(diags, td...)
		if len(res.Characters) > 0 {
			return res, ct, diags
		}
	}

	text := p.normalizer.Normalize(doc.Text)
	_, tdiags := script.Tokenize(text)
	diags = append(diags, tdiags...)
	res := p.parser.ParseScript(text)
	if len(res.Characters) > 0 {
		return res, ct, diags
	}

	// A "script" that is really a transcript: Name: text lines, timecodes.
	if lines := tabular.ExtractDialogueLines(prepared); len(lines) > 0 {
		vr := validate.ValidateScriptLines(lines)
		diags = append(diags, vr.Diagnostics...)
		diags = append(diags, domain.Diagnostic{
			Severity: domain.SeverityInfo,
			Message:  fmt.Sprintf("no screenplay cues found, read %d transcript lines", len(vr.Data)),
			Source:   "pipeline",
			Context:  doc.Name,
		})
		if tr := p.parser.ParseLines(vr.Data); len(tr.Characters) > 0 {
			return tr, ct, diags
		}
	}
	if ct != detect.Tabular && len(doc.Tables) > 0 {
		tr, td := p.parseTables(doc.Tables)
		if len(tr.Characters) > 0 {
			return tr, ct, append(diags, td...)
		}
	}
	return res, ct, diags
}

func (p *Pipeline) textTable(prepared string) (domain.StructuredParseResult, []domain.Diagnostic) {
	return tabular.BuildResult(tabular.SplitTextTable(prepared), domain.SourceTextTabular, "", p.cfg.MaxTabularRows)
}

// parseTables maps, converts and validates every table that has a role
// column; rejected rows are quarantined as diagnostics.
func (p *Pipeline) parseTables(tables []domain.StructuredParseResult) (domain.ScriptParseResult, []domain.Diagnostic) {
	var (
		diags []domain.Diagnostic
		lines []domain.ScriptLineInput
	)
	for _, tbl := range tables {
		det := tabular.AutoDetectColumnsWithConfidence(tbl.Headers)
		md := validate.ValidateColumnMapping(det.Mapping, tbl.Headers)
		diags = append(diags, md...)
		if det.Mapping.Role == "" {
			continue
		}
		diags = append(diags, domain.Diagnostic{
			Severity: domain.SeverityInfo,
			Message:  fmt.Sprintf("column mapping confidence %d", det.Confidence),
			Source:   "column-mapping",
			Context:  string(tbl.Source) + " " + tbl.Sheet,
		})
		vr := validate.ValidateScriptLines(tabular.ParseScriptLinesFromStructuredData(tbl, det.Mapping))
		diags = append(diags, vr.Diagnostics...)
		lines = append(lines, vr.Data...)
	}
	return p.parser.ParseLines(lines), diags
}

// appendSimilarityWarnings turns matches into advisory warnings, skipping
// pairs that already carry a warning of the same type.
func appendSimilarityWarnings(ws []domain.ParserWarning, matches []domain.SimilarityMatch) []domain.ParserWarning {
	seen := make(map[string]bool, len(ws))
	for _, w := range ws {
		seen[warnKey(w.Type, w.Characters)] = true
	}
	for _, m := range matches {
		typ := domain.WarningPossibleDuplicate
		var msg string
		switch m.Reason {
		case domain.ReasonContains, domain.ReasonTitleVariant:
			typ = domain.WarningAmbiguousName
			msg = fmt.Sprintf("%s and %s may name the same role (%s)", m.CharacterA, m.CharacterB, m.Reason)
		case domain.ReasonCombinedRole:
			msg = fmt.Sprintf("%s and %s share a combined cue", m.CharacterA, m.CharacterB)
		default:
			msg = fmt.Sprintf("%s and %s look like the same role (%s, %.0f%%)", m.CharacterA, m.CharacterB, m.Reason, m.Similarity*100)
		}
		names := []string{m.CharacterA, m.CharacterB}
		k := warnKey(typ, names)
		if seen[k] {
			continue
		}
		seen[k] = true
		ws = append(ws, domain.ParserWarning{Type: typ, Message: msg, Characters: names})
	}
	return ws
}

func warnKey(t domain.WarningType, names []string) string {
	s := append([]string(nil), names...)
	sort.Strings(s)
	return string(t) + "\x00" + strings.Join(s, "\x00")
}
