/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeCharacterName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"JOHN (V.O.)", "JOHN"},
		{"JOHN (CONT'D)", "JOHN"},
		{"John (cont'd):", "JOHN"},
		{"JOHN (O.S.)", "JOHN"},
		{"JOHN (SMILING)", "JOHN"},
		{"JOHN (YOUNG)", "JOHN (YOUNG)"},
		{"JOHN (YOUNG) (V.O.)", "JOHN (YOUNG)"},
		{"GUARD #2", "GUARD"},
		{"GUARD 1", "GUARD 1"},
		{"GUARD 2", "GUARD 2"},
		{"  mary   jane ", "MARY JANE"},
		{"שרה", "שרה"},
		{"", ""},
	}
	for _, c := range cases {
		got := NormalizeCharacterName(c.in)
		if got != c.want {
			t.Errorf("NormalizeCharacterName(%q) = %q, want %q", c.in, got, c.want)
		}
		if again := NormalizeCharacterName(got); again != got {
			t.Errorf("not idempotent for %q: %q -> %q", c.in, got, again)
		}
	}
}

func TestFindBaseCharacter(t *testing.T) {
	cases := map[string]string{
		"YOUNG JOHN":       "JOHN",
		"OLDER MARY ANN":   "MARY ANN",
		"JOHN (AGE 10)":    "JOHN",
		"JOHN (YOUNG)":     "JOHN",
		"JOHN'S VOICE":     "JOHN",
		"VOICE OF JOHN":    "JOHN",
		"JOHN (FLASHBACK)": "JOHN",
		"JOHN":             "",
		"YOUNGSTER":        "",
	}
	for in, want := range cases {
		if got := FindBaseCharacter(in); got != want {
			t.Errorf("FindBaseCharacter(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsGroupCharacter(t *testing.T) {
	for _, n := range []string{"CROWD", "ALL", "BOTH", "EVERYONE", "THREE GUARDS", "ANGRY MOB", "כולם"} {
		if !IsGroupCharacter(n) {
			t.Errorf("%q should be a group", n)
		}
	}
	for _, n := range []string{"JOHN", "ALLISON", "GUARD 1", "BOTHWELL"} {
		if IsGroupCharacter(n) {
			t.Errorf("%q should not be a group", n)
		}
	}
}

func TestDetectCombinedRole(t *testing.T) {
	if got := DetectCombinedRole("JOHN/MARY"); !reflect.DeepEqual(got, []string{"JOHN", "MARY"}) {
		t.Fatalf("JOHN/MARY -> %v", got)
	}
	if got := DetectCombinedRole("john / mary (V.O.)"); !reflect.DeepEqual(got, []string{"JOHN", "MARY"}) {
		t.Fatalf("lower case with extension -> %v", got)
	}
	for _, in := range []string{"JOHN", "JOHN (V.O./O.S.)", "A/B", "JOHN/JOHN"} {
		if got := DetectCombinedRole(in); got != nil {
			t.Errorf("DetectCombinedRole(%q) = %v, want nil", in, got)
		}
	}
}

func TestExtractCharacterFromLine(t *testing.T) {
	cases := []struct {
		name  string
		lines []string
		want  string
		ok    bool
	}{
		{"centered cue", []string{"          JOHN", "     Hi."}, "JOHN", true},
		{"cue with extension", []string{"          JOHN (V.O.)", "     Hi."}, "JOHN (V.O.)", true},
		{"particle prefix", []string{"          McDONALD", "     Hi."}, "McDONALD", true},
		{"ordinal", []string{"          2ND GUARD", "     Halt."}, "2ND GUARD", true},
		{"numbered", []string{"          GUARD 2", "     Halt."}, "GUARD 2", true},
		{"inline speaker", []string{"MR. BROWN: Welcome."}, "MR. BROWN", true},
		{"hebrew inline speaker", []string{"דני: שלום"}, "דני", true},
		{"transition", []string{"CUT TO:"}, "", false},
		{"the end", []string{"THE END"}, "", false},
		{"scene heading", []string{"INT. HOUSE - DAY"}, "", false},
		{"camera", []string{"CLOSE ON JOHN"}, "", false},
		{"parenthetical", []string{"     (beat)"}, "", false},
		{"action", []string{"He walks in."}, "", false},
		{"shouted sentence", []string{"GET OUT OF HERE NOW!"}, "", false},
		{"too many words", []string{"A B C D E F G"}, "", false},
		{"inline excluded", []string{"SUPER: Three years later"}, "", false},
		{"common word flush left", []string{"YES", "     (quietly)"}, "", false},
		{"common word without dialogue", []string{"          YES", "INT. HOUSE - DAY"}, "", false},
		{"common word centered with dialogue", []string{"          YES", "     (quietly)"}, "YES", true},
		{"too long", []string{strings.Repeat("A", 61)}, "", false},
	}
	for _, c := range cases {
		got, ok := ExtractCharacterFromLine(c.lines, 0)
		if ok != c.ok || got != c.want {
			t.Errorf("%s: got (%q, %v), want (%q, %v)", c.name, got, ok, c.want, c.ok)
		}
	}
}

func TestHasDialogueFollowing(t *testing.T) {
	cases := []struct {
		lines []string
		want  bool
	}{
		{[]string{"JOHN", "", "  (softly)"}, true},
		{[]string{"JOHN", "well, maybe"}, true},
		{[]string{"JOHN", "...and then"}, true},
		{[]string{"JOHN", "     I think so."}, true},
		{[]string{"JOHN", "INT. HOUSE - DAY", "hello"}, false},
		{[]string{"JOHN", "MARY"}, false},
		{[]string{"JOHN"}, false},
	}
	for i, c := range cases {
		if got := HasDialogueFollowing(c.lines, 0); got != c.want {
			t.Errorf("case %d (%q): got %v", i, c.lines, got)
		}
	}
}
