/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package validate checks dialogue lines and column mappings. Validation is
// partial-success: bad rows are quarantined with their errors, good rows
// pass through.
package validate

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"scriptcast/internal/domain"
	"scriptcast/internal/tabular"
)

//go:embed script_line.schema.json
var scriptLineSchema []byte

// Rejected is one quarantined line with its field errors.
type Rejected struct {
	Index  int                    `json:"index"`
	Line   domain.ScriptLineInput `json:"line"`
	Errors []string               `json:"errors"`
}

// Result partitions a batch into accepted and rejected lines. Success is
// true only when nothing was rejected.
type Result struct {
	Success     bool                     `json:"success"`
	Data        []domain.ScriptLineInput `json:"data"`
	Rejected    []Rejected               `json:"rejected"`
	Diagnostics []domain.Diagnostic      `json:"diagnostics"`
}

type options struct {
	allowEmptyRole bool
}

// Option configures ValidateScriptLines.
type Option func(*options)

// AllowEmptyRole accepts lines whose role_name is empty.
func AllowEmptyRole() Option { return func(o *options) { o.allowEmptyRole = true } }

type schemas struct {
	strict, lenient *gojsonschema.Schema
}

var compiled = sync.OnceValue(func() schemas {
	strict, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(scriptLineSchema))
	if err != nil {
		panic(fmt.Sprintf("validate: script line schema: %v", err))
	}
	var doc map[string]any
	if err := json.Unmarshal(scriptLineSchema, &doc); err != nil {
		panic(fmt.Sprintf("validate: script line schema: %v", err))
	}
	props := doc["properties"].(map[string]any)
	props["role_name"] = map[string]any{"type": "string"}
	lenient, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("validate: lenient script line schema: %v", err))
	}
	return schemas{strict: strict, lenient: lenient}
})

// ValidateScriptLines checks every line against the script line schema.
// It never fails as a whole; each invalid line becomes a Rejected entry and
// an error diagnostic.
func ValidateScriptLines(lines []domain.ScriptLineInput, opts ...Option) Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	sc := compiled().strict
	if o.allowEmptyRole {
		sc = compiled().lenient
	}
	res := Result{Data: []domain.ScriptLineInput{}, Rejected: []Rejected{}, Diagnostics: []domain.Diagnostic{}}
	for i, l := range lines {
		errs := validateLine(sc, l)
		if len(errs) == 0 {
			res.Data = append(res.Data, l)
			continue
		}
		res.Rejected = append(res.Rejected, Rejected{Index: i, Line: l, Errors: errs})
		res.Diagnostics = append(res.Diagnostics, domain.Diagnostic{
			Severity: domain.SeverityError,
			Message:  fmt.Sprintf("row %d rejected: %s", i+1, strings.Join(errs, "; ")),
			Source:   "validation",
			Line:     l.LineNumber,
			Context:  l.RoleName,
		})
	}
	res.Success = len(res.Rejected) == 0
	return res
}

func validateLine(sc *gojsonschema.Schema, l domain.ScriptLineInput) []string {
	r, err := sc.Validate(gojsonschema.NewGoLoader(l))
	if err != nil {
		return []string{err.Error()}
	}
	if r.Valid() {
		return nil
	}
	errs := make([]string, 0, len(r.Errors()))
	for _, e := range r.Errors() {
		errs = append(errs, e.Field()+": "+e.Description())
	}
	return errs
}

// ValidateColumnMapping reports an error diagnostic for every mapped column
// missing from headers, and for a mapping without a role column.
func ValidateColumnMapping(m tabular.ColumnMapping, headers []string) []domain.Diagnostic {
	diags := []domain.Diagnostic{}
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[strings.TrimSpace(h)] = true
	}
	if strings.TrimSpace(m.Role) == "" {
		diags = append(diags, domain.Diagnostic{
			Severity: domain.SeverityError,
			Message:  "no role column detected",
			Source:   "column-mapping",
			Context:  strings.Join(headers, ", "),
		})
	}
	for _, fc := range m.Columns() {
		if present[strings.TrimSpace(fc.Header)] {
			continue
		}
		diags = append(diags, domain.Diagnostic{
			Severity: domain.SeverityError,
			Message:  fmt.Sprintf("%s column %q is not among the headers", fc.Field, fc.Header),
			Source:   "column-mapping",
			Context:  fc.Header,
		})
	}
	return diags
}
