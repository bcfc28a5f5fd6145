/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// TableSource names where a structured (tabular) result came from.
type TableSource string

const (
	SourceExcel       TableSource = "excel"
	SourcePDFTable    TableSource = "pdf-table"
	SourceDocxTable   TableSource = "docx-table"
	SourceTextTabular TableSource = "text-tabular"
)

// ValueKind tells the three cell shapes apart.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
)

// Value is a single cell: a string, a number or null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
}

func Null() Value { return Value{} }
func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }
func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// String renders the cell as text; null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = Null()
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*v = NumberValue(f)
	}
	return nil
}

// Cell is one header/value pair of a Row.
type Cell struct {
	Header string `json:"header"`
	Value  Value  `json:"value"`
}

// Row keeps cells in column order. Duplicate headers are allowed; lookups
// resolve to the first occurrence.
type Row struct {
	Cells []Cell `json:"cells"`
}

// NewRow pairs headers with values positionally; missing values are null.
func NewRow(headers []string, values []Value) Row {
	r := Row{Cells: make([]Cell, len(headers))}
	for i, h := range headers {
		r.Cells[i].Header = h
		if i < len(values) {
			r.Cells[i].Value = values[i]
		}
	}
	return r
}

// Get returns the value of the first cell whose header matches (trimmed,
// case-sensitive). ok is false when no such column exists.
func (r Row) Get(header string) (Value, bool) {
	h := strings.TrimSpace(header)
	for _, c := range r.Cells {
		if strings.TrimSpace(c.Header) == h {
			return c.Value, true
		}
	}
	return Null(), false
}

// StructuredParseResult is the tabular shape produced by extractors.
// TotalRows counts the non-empty data rows before any row limit.
type StructuredParseResult struct {
	Headers   []string    `json:"headers"`
	Rows      []Row       `json:"rows"`
	Source    TableSource `json:"source"`
	Sheet     string      `json:"sheetName,omitempty"`
	TotalRows int         `json:"totalRows"`
}
