/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package extract turns uploaded files into text and tables. It is the thin
// byte-level layer in front of the ingestion pipeline: each supported format
// has an Extractor, selected by file extension through a Registry.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"scriptcast/internal/domain"
	applog "scriptcast/internal/log"
)

// ErrUnsupported is returned for files whose extension has no extractor.
var ErrUnsupported = errors.New("unsupported file type")

// Format names a supported input format.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Layout carries the structural metrics the content detector needs.
type Layout struct {
	DocxTableRows int // data rows of the largest DOCX table
	PDFColumns    int // most common column count of aligned PDF rows
	PDFRows       int // PDF rows with that column count
	Pages         int
}

// Document is what an extractor hands to the pipeline.
type Document struct {
	Name   string
	Format Format
	// Text is the running text (screenplay or transcript). Spreadsheets leave it empty.
	Text   string
	Tables []domain.StructuredParseResult
	Layout Layout
	// Warnings are non-fatal extraction notes (truncation, decoding fallbacks).
	Warnings    []string
	Diagnostics []domain.Diagnostic
}

func (d *Document) warn(format string, args ...any) {
	d.Warnings = append(d.Warnings, d.Name+": "+fmt.Sprintf(format, args...))
}

// Extractor decodes one file format.
type Extractor interface {
	Format() Format
	Extensions() []string
	Extract(ctx context.Context, name string, data []byte) (*Document, error)
}

// Limits bounds the work an extractor does on adversarial input.
type Limits struct {
	MaxPDFPages    int
	MaxTabularRows int
}

// DefaultLimits matches the pipeline defaults.
func DefaultLimits() Limits { return Limits{MaxPDFPages: 50, MaxTabularRows: 1000} }

// Registry maps lower-case extensions (with dot) to extractors.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{byExt: map[string]Extractor{}} }

// DefaultRegistry registers every built-in extractor.
func DefaultRegistry(lim Limits) *Registry {
	r := NewRegistry()
	r.Register(TextExtractor{})
	r.Register(CSVExtractor{Comma: ',', MaxRows: lim.MaxTabularRows})
	r.Register(CSVExtractor{Comma: '\t', MaxRows: lim.MaxTabularRows})
	r.Register(XLSXExtractor{MaxRows: lim.MaxTabularRows})
	r.Register(PDFExtractor{MaxPages: lim.MaxPDFPages, MaxRows: lim.MaxTabularRows})
	r.Register(DOCXExtractor{MaxRows: lim.MaxTabularRows})
	return r
}

// Register adds e for each of its extensions, replacing earlier entries.
func (r *Registry) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// Supported lists the registered extensions, sorted.
func (r *Registry) Supported() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// For resolves the extractor for a file name.
func (r *Registry) For(name string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if e, ok := r.byExt[ext]; ok {
		return e, nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return nil, fmt.Errorf("%s: %w %s", name, ErrUnsupported, ext)
}

// Extract resolves the extractor for name and runs it.
func (r *Registry) Extract(ctx context.Context, name string, data []byte) (*Document, error) {
	e, err := r.For(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := applog.WithOperation(applog.WithComponent("extract"), "extract")
	l.DebugContext(ctx, "extracting", "format", e.Format(), "bytes", len(data))
	doc, err := e.Extract(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("extract %s (%s): %w", name, e.Format(), err)
	}
	l.DebugContext(ctx, "extracted", "format", e.Format(), "chars", len(doc.Text), "tables", len(doc.Tables), "warnings", len(doc.Warnings))
	return doc, nil
}
