/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"testing"
)

func TestRowGetUsesFirstDuplicateHeader(t *testing.T) {
	r := NewRow([]string{"Character", "Dialogue", "Dialogue"},
		[]Value{StringValue("JOHN"), StringValue("first"), StringValue("second")})
	v, ok := r.Get("Dialogue")
	if !ok || v.String() != "first" {
		t.Fatalf("Get(Dialogue) = %q, %v; want first", v.String(), ok)
	}
	if _, ok := r.Get("Notes"); ok {
		t.Fatalf("Get(Notes) should report a missing column")
	}
}

func TestNewRowPadsMissingValuesWithNull(t *testing.T) {
	r := NewRow([]string{"A", "B"}, []Value{NumberValue(2.5)})
	if v, _ := r.Get("A"); v.String() != "2.5" {
		t.Fatalf("A = %q", v.String())
	}
	if v, _ := r.Get("B"); !v.IsNull() {
		t.Fatalf("B should be null, got %v", v.Kind())
	}
}

func TestValueJSON(t *testing.T) {
	in := []Value{StringValue("x"), NumberValue(3), Null()}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `["x",3,null]` {
		t.Fatalf("marshal = %s", b)
	}
	var out []Value
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out[0].Kind() != KindString || out[1].Kind() != KindNumber || !out[2].IsNull() {
		t.Fatalf("round trip kinds mismatch: %+v", out)
	}
}

func TestSortDiagnosticsBySeverityStable(t *testing.T) {
	ds := []Diagnostic{
		{Severity: SeverityInfo, Message: "i1"},
		{Severity: SeverityError, Message: "e1"},
		{Severity: SeverityWarning, Message: "w1"},
		{Severity: SeverityError, Message: "e2"},
		{Severity: SeverityInfo, Message: "i2"},
	}
	SortDiagnostics(ds)
	want := []string{"e1", "e2", "w1", "i1", "i2"}
	for i, w := range want {
		if ds[i].Message != w {
			t.Fatalf("order[%d] = %s, want %s", i, ds[i].Message, w)
		}
	}
	if !HasErrors(ds) {
		t.Fatalf("HasErrors should be true")
	}
}

func TestScriptLineInputOmitsEmptyOptionals(t *testing.T) {
	b, err := json.Marshal(ScriptLineInput{LineNumber: 1, RoleName: "JOHN"})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"line_number":1,"role_name":"JOHN"}` {
		t.Fatalf("marshal = %s", b)
	}
}
