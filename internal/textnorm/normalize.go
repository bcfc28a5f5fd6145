/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textnorm cleans extracted script text before detection and parsing:
// Unicode compatibility folding, bidi control removal, running header/footer
// removal, whitespace collapse, line-wrap repair and speaker-colon expansion.
package textnorm

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Options tunes the heuristics. Zero fields fall back to DefaultOptions.
type Options struct {
	// HeaderMinLines is the minimum number of non-empty lines before
	// repeated-line header detection runs at all.
	HeaderMinLines int
	// A line whose exact trimmed text occurs at least
	// max(HeaderRepeatMin, ceil(HeaderRepeatRatio*nonEmpty)) times is a running header.
	HeaderRepeatRatio float64
	HeaderRepeatMin   int
	// Lines shorter than WrapMaxLength are candidates for wrap repair.
	WrapMaxLength int
}

func DefaultOptions() Options {
	return Options{HeaderMinLines: 30, HeaderRepeatRatio: 0.15, HeaderRepeatMin: 5, WrapMaxLength: 60}
}

// Normalizer applies the cleanup steps in a fixed order.
type Normalizer struct {
	opts Options
}

func New(opts Options) *Normalizer {
	def := DefaultOptions()
	if opts.HeaderMinLines <= 0 {
		opts.HeaderMinLines = def.HeaderMinLines
	}
	if opts.HeaderRepeatRatio <= 0 {
		opts.HeaderRepeatRatio = def.HeaderRepeatRatio
	}
	if opts.HeaderRepeatMin <= 0 {
		opts.HeaderRepeatMin = def.HeaderRepeatMin
	}
	if opts.WrapMaxLength <= 0 {
		opts.WrapMaxLength = def.WrapMaxLength
	}
	return &Normalizer{opts: opts}
}

// Normalize runs all steps with default options.
func Normalize(raw string) string { return New(DefaultOptions()).Normalize(raw) }

// Prepare runs the steps that keep column layout intact (Unicode folding,
// control stripping, header/footer removal). The content-type detector reads
// its output because whitespace collapse would erase column gaps.
func (n *Normalizer) Prepare(raw string) string {
	return strings.Join(n.prepare(raw), "\n")
}

// Normalize runs every step and returns the cleaned text.
func (n *Normalizer) Normalize(raw string) string {
	lines := n.prepare(raw)
	for i, l := range lines {
		lines[i] = CollapseWhitespace(l)
	}
	lines = RepairWraps(lines, n.opts.WrapMaxLength)
	lines = ExpandSpeakerColons(lines)
	return strings.Join(lines, "\n")
}

func (n *Normalizer) prepare(raw string) []string {
	s := StripControls(NormalizeUnicode(raw))
	return n.StripHeadersFooters(SplitLines(s))
}

// SplitLines splits on \n, \r\n, lone \r and form feeds (PDF page breaks).
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.NewReplacer("\r", "\n", "\f", "\n").Replace(s)
	return strings.Split(s, "\n")
}

// NormalizeUnicode applies NFKC compatibility folding.
func NormalizeUnicode(s string) string { return norm.NFKC.String(s) }

// StripControls removes bidi embedding/override/isolate marks and zero-width characters.
func StripControls(s string) string {
	return strings.Map(func(r rune) rune {
		if isInvisibleControl(r) {
			return -1
		}
		return r
	}, s)
}

func isInvisibleControl(r rune) bool {
	switch {
	case r >= 0x200B && r <= 0x200F: // ZWSP, ZWNJ, ZWJ, LRM, RLM
		return true
	case r >= 0x202A && r <= 0x202E: // LRE, RLE, PDF, LRO, RLO
		return true
	case r >= 0x2066 && r <= 0x2069: // LRI, RLI, FSI, PDI
		return true
	case r == 0x2060, r == 0xFEFF, r == 0x061C, r == 0x00AD:
		return true
	}
	return false
}

var rePageNumber = regexp.MustCompile(`(?i)^(?:page\s*)?\d{1,4}(?:\s*(?:/|of)\s*\d{1,4})?\.?$|^-\s*\d{1,4}\s*-$`)

// StripHeadersFooters drops page-number-only lines and, for documents with
// enough lines, running headers/footers. A repeated line that is mostly
// followed by an indented line is kept: that is a character cue, not a header.
func (n *Normalizer) StripHeadersFooters(lines []string) []string {
	counts := make(map[string]int)
	cueLike := make(map[string]int)
	nonEmpty := 0
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		nonEmpty++
		counts[t]++
		if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" && IndentWidth(lines[i+1]) >= 2 {
			cueLike[t]++
		}
	}
	threshold := 0
	if nonEmpty >= n.opts.HeaderMinLines {
		threshold = int(math.Ceil(n.opts.HeaderRepeatRatio * float64(nonEmpty)))
		if threshold < n.opts.HeaderRepeatMin {
			threshold = n.opts.HeaderRepeatMin
		}
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" {
			out = append(out, l)
			continue
		}
		if rePageNumber.MatchString(t) {
			continue
		}
		if threshold > 0 && counts[t] >= threshold && cueLike[t]*2 < counts[t] {
			continue
		}
		out = append(out, l)
	}
	return out
}

var reInteriorSpace = regexp.MustCompile(`[ \t]{2,}`)

// CollapseWhitespace keeps the leading indent verbatim, collapses interior
// runs of spaces/tabs to one space and trims trailing whitespace.
func CollapseWhitespace(line string) string {
	body := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(body)]
	body = strings.TrimRight(reInteriorSpace.ReplaceAllString(body, " "), " \t")
	if body == "" {
		return ""
	}
	return indent + body
}

var (
	reSpeakerLine = regexp.MustCompile(`^\S[^:]{0,40}:\s`)
	reTimecodeAt  = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}`)
	reSceneStart  = regexp.MustCompile(`(?i)^(?:\d+[A-Z]?\.?\s+)?(?:INT|EXT|I/E)[./\s]`)
)

// RepairWraps joins a short line that does not end a sentence with the next
// line when that line starts lowercase (or with a Hebrew letter). All-caps
// lines (cues, headings) never absorb the following line.
func RepairWraps(lines []string, maxLen int) []string {
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		cur := lines[i]
		for i+1 < len(lines) && shouldJoin(cur, lines[i+1], maxLen) {
			cur = cur + " " + strings.TrimSpace(lines[i+1])
			i++
		}
		out = append(out, cur)
	}
	return out
}

func shouldJoin(cur, next string, maxLen int) bool {
	t := strings.TrimSpace(cur)
	if t == "" || utf8.RuneCountInString(t) >= maxLen {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(t)
	if strings.ContainsRune(`.!?:;…"'”’)]`, last) || IsUpperLine(t) {
		return false
	}
	nt := strings.TrimSpace(next)
	if nt == "" || reSpeakerLine.MatchString(nt) || reTimecodeAt.MatchString(nt) || reSceneStart.MatchString(nt) {
		return false
	}
	first, _ := utf8.DecodeRuneInString(nt)
	return unicode.IsLower(first) || IsHebrew(first)
}

var reSpeakerColon = regexp.MustCompile(`^([A-Z][A-Z0-9 \-'.]{1,40}):\s+(\S.*)$`)

// continuationIndent is added to the speaker's indent for the expanded dialogue line.
const continuationIndent = "    "

// ExpandSpeakerColons rewrites "NAME: text" as a cue line and an indented
// dialogue line, preserving the original indent.
func ExpandSpeakerColons(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		body := strings.TrimLeft(l, " \t")
		indent := l[:len(l)-len(body)]
		m := reSpeakerColon.FindStringSubmatch(body)
		if m == nil {
			out = append(out, l)
			continue
		}
		out = append(out, indent+strings.TrimSpace(m[1]), indent+continuationIndent+strings.TrimSpace(m[2]))
	}
	return out
}

// IsUpperLine reports whether s has at least one cased letter and none in lowercase.
func IsUpperLine(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// IsHebrew reports whether r is a Hebrew letter.
func IsHebrew(r rune) bool { return r >= 0x05D0 && r <= 0x05EA }

// IndentWidth counts leading whitespace; a tab counts as four columns.
func IndentWidth(s string) int {
	w := 0
	for _, r := range s {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}
