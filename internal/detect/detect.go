/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package detect classifies prepared script text as screenplay, tabular or hybrid.
package detect

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"scriptcast/internal/textnorm"
)

type ContentType string

const (
	Screenplay ContentType = "screenplay"
	Tabular    ContentType = "tabular"
	Hybrid     ContentType = "hybrid"
)

// Thresholds are the structural and line-ratio cutoffs.
type Thresholds struct {
	DocxMinTableRows    int
	PDFMinColumns       int
	PDFMinRows          int
	TabularLineRatio    float64
	CenteredCapsRatio   float64
	StandaloneCapsRatio float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DocxMinTableRows:    5,
		PDFMinColumns:       3,
		PDFMinRows:          10,
		TabularLineRatio:    0.5,
		CenteredCapsRatio:   0.05,
		StandaloneCapsRatio: 0.10,
	}
}

// Input carries the prepared text plus layout metrics from the extractor.
// Zero metrics mean "not available".
type Input struct {
	Text          string
	DocxTableRows int // data rows of the largest DOCX table
	PDFColumns    int
	PDFRows       int
}

// Signals are the raw counts behind a decision, useful for diagnostics.
type Signals struct {
	NonEmpty          int
	TabularLines      int
	CenteredCaps      int
	StandaloneCaps    int
	StructuralTabular bool
}

// maxCapsLineLen bounds the length of a heading or cue line.
const maxCapsLineLen = 50

var (
	reColumnGap = regexp.MustCompile(`\S {3,}\S`)
	reTimecode  = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}`)
)

// Detect returns the content type of in.
func Detect(in Input, th Thresholds) ContentType {
	ct, _ := Analyze(in, th)
	return ct
}

// Analyze is Detect plus the signals that drove the decision.
func Analyze(in Input, th Thresholds) (ContentType, Signals) {
	var s Signals
	for _, line := range textnorm.SplitLines(in.Text) {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		s.NonEmpty++
		body := strings.TrimLeft(line, " \t")
		if strings.ContainsRune(body, '\t') || reColumnGap.MatchString(body) || reTimecode.MatchString(t) {
			s.TabularLines++
		}
		if utf8.RuneCountInString(t) > maxCapsLineLen || !textnorm.IsUpperLine(t) {
			continue
		}
		if textnorm.IndentWidth(line) >= 2 {
			s.CenteredCaps++
		}
		if first, _ := utf8.DecodeRuneInString(t); !unicode.IsDigit(first) {
			s.StandaloneCaps++
		}
	}

	s.StructuralTabular = (th.DocxMinTableRows > 0 && in.DocxTableRows >= th.DocxMinTableRows) ||
		(in.PDFColumns >= th.PDFMinColumns && in.PDFRows >= th.PDFMinRows && th.PDFMinColumns > 0)

	tabular := s.StructuralTabular
	screenplay := false
	if s.NonEmpty > 0 {
		n := float64(s.NonEmpty)
		if float64(s.TabularLines)/n >= th.TabularLineRatio {
			tabular = true
		}
		screenplay = float64(s.CenteredCaps)/n > th.CenteredCapsRatio ||
			float64(s.StandaloneCaps)/n > th.StandaloneCapsRatio
	}

	switch {
	case tabular && screenplay:
		return Hybrid, s
	case tabular:
		return Tabular, s
	default:
		return Screenplay, s
	}
}
