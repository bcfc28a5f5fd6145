/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"scriptcast/internal/textnorm"
)

// maxCueLength is the longest line considered as a character cue.
const maxCueLength = 60

// centeredIndent is the indent at which a short common word may still be a cue.
const centeredIndent = slugIndent

// NormalizeCharacterName upper-cases name and strips delivery extensions
// ("(V.O.)", "(CONT'D)", ...), other trailing parentheticals except
// age/time-frame variants, "#N" suffixes and trailing colons. Plain trailing
// numbers ("GUARD 1") are kept. The function is idempotent.
func NormalizeCharacterName(name string) string {
	return stripCue(strings.ToUpper(name))
}

// displayName applies the normalization steps but keeps the original casing.
func displayName(name string) string { return stripCue(name) }

func stripCue(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	for {
		prev := s
		s = strings.TrimSpace(strings.TrimSuffix(s, ":"))
		s = reExtension.ReplaceAllString(s, "")
		if m := reTrailingParenGroup.FindStringSubmatchIndex(s); m != nil {
			inner := strings.ToUpper(strings.TrimSpace(s[m[2]:m[3]]))
			if !rePreservedParen.MatchString(inner) {
				s = s[:m[0]]
			}
		}
		s = reHashSuffix.ReplaceAllString(s, "")
		s = strings.Join(strings.Fields(s), " ")
		if s == prev {
			return s
		}
	}
}

// FindBaseCharacter returns the parent of a variant cue ("YOUNG JOHN",
// "JOHN (AGE 10)", "JOHN'S VOICE", "VOICE OF JOHN", "JOHN (FLASHBACK)"), or
// "" when name is not a variant.
func FindBaseCharacter(name string) string {
	n := NormalizeCharacterName(name)
	for _, re := range variantPatterns {
		m := re.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		parent := NormalizeCharacterName(m[1])
		if parent == "" || parent == n {
			return ""
		}
		return parent
	}
	return ""
}

// IsGroupCharacter reports whether a normalized name denotes several speakers.
func IsGroupCharacter(name string) bool {
	n := NormalizeCharacterName(name)
	for _, re := range groupPatterns {
		if re.MatchString(n) {
			return true
		}
	}
	return false
}

// DetectCombinedRole splits a slash-joined cue ("JOHN/MARY") into its
// normalized parts. It returns nil unless there are at least two distinct
// parts of two or more characters each. Slashes inside parentheses
// ("(V.O./O.S.)") do not split.
func DetectCombinedRole(cue string) []string {
	parts := splitOutsideParens(cue)
	if len(parts) < 2 {
		return nil
	}
	out := make([]string, 0, len(parts))
	seen := map[string]bool{}
	for _, p := range parts {
		n := NormalizeCharacterName(p)
		if utf8.RuneCountInString(n) < 2 {
			return nil
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	if len(out) < 2 {
		return nil
	}
	return out
}

// HasDialogueFollowing reports whether the first non-blank line after
// lines[idx] reads like dialogue: it starts lowercase, is a parenthetical,
// starts with continuation punctuation or is an indented sentence.
// A scene heading ends the search.
func HasDialogueFollowing(lines []string, idx int) bool {
	for j := idx + 1; j < len(lines); j++ {
		t := strings.TrimSpace(lines[j])
		if t == "" {
			continue
		}
		if reSceneHeading.MatchString(t) {
			return false
		}
		first, _ := utf8.DecodeRuneInString(t)
		switch {
		case unicode.IsLower(first), first == '(':
			return true
		case strings.HasPrefix(t, "..."), strings.ContainsRune(`…-—–"'“`, first):
			return true
		}
		return textnorm.IndentWidth(lines[j]) >= dialogueIndent && strings.IndexFunc(t, unicode.IsLower) >= 0
	}
	return false
}

var reInlineSpeaker = reSpeakerColon

// ExtractCharacterFromLine returns the raw cue on lines[idx] when the line is
// a character cue. The checks run in order: length cap, scene heading,
// exclusion catalog, standalone parenthetical, lowercase ratio, sentence
// shape, accepted cue shapes and, for common short words, centering plus
// dialogue context.
func ExtractCharacterFromLine(lines []string, idx int) (string, bool) {
	line := lines[idx]
	t := strings.TrimSpace(line)
	if t == "" {
		return "", false
	}
	cue, inline := t, false
	if m := reInlineSpeaker.FindStringSubmatch(t); m != nil {
		cue, inline = strings.TrimSpace(m[1]), true
	}
	if !plausibleCue(cue) {
		return "", false
	}
	if inline {
		if _, ex := excluded(strings.ToUpper(cue) + ":"); ex {
			return "", false
		}
	}
	name := ""
	for _, sh := range cueShapes {
		in := cue
		if sh.raw {
			in = line
		}
		if m := sh.re.FindStringSubmatch(in); m != nil {
			name = strings.TrimSpace(m[1])
			break
		}
	}
	if name == "" && inline && textnorm.IsHebrew(firstRune(cue)) {
		name = cue
	}
	if name == "" {
		return "", false
	}
	if commonShortWords[NormalizeCharacterName(name)] {
		if textnorm.IndentWidth(line) < centeredIndent || !HasDialogueFollowing(lines, idx) {
			return "", false
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(name, ":")), true
}

// plausibleCue applies the context-free rejections shared by the line and
// token parsers.
func plausibleCue(cue string) bool {
	if utf8.RuneCountInString(cue) > maxCueLength {
		return false
	}
	if reSceneHeading.MatchString(cue) {
		return false
	}
	if _, ex := excluded(strings.ToUpper(cue)); ex {
		return false
	}
	if reParenLine.MatchString(cue) {
		return false
	}
	words := strings.Fields(reAnyParen.ReplaceAllString(cue, " "))
	if len(words) == 0 || len(words) > 6 {
		return false
	}
	if lowercaseHeavy(words) {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(cue)
	if len(words) >= 3 && strings.ContainsRune(".!?", last) {
		return false
	}
	return true
}

// lowercaseHeavy rejects cues with too many lowercase words: any for one- or
// two-word cues, more than 40% otherwise. Name particles are exempt.
func lowercaseHeavy(words []string) bool {
	lower := 0
	for _, w := range words {
		if strings.IndexFunc(w, unicode.IsLower) < 0 || isParticle(w) {
			continue
		}
		lower++
	}
	if lower == 0 {
		return false
	}
	if len(words) <= 2 {
		return true
	}
	return float64(lower)/float64(len(words)) > 0.4
}

func isParticle(w string) bool {
	if nameParticles[strings.ToLower(strings.TrimSuffix(w, "."))] {
		return true
	}
	return reParticlePrefix.MatchString(w) && strings.IndexFunc(w[2:], unicode.IsLower) < 1
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
