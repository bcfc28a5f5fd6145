/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tabular

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"scriptcast/internal/domain"
)

var (
	reTranscriptTimecode = regexp.MustCompile(`^\[?(\d{1,2}:\d{2}:\d{2}(?:[:;.,]\d{2,3})?)\]?(?:\s*[-–>]+\s*\[?\d{1,2}:\d{2}:\d{2}(?:[:;.,]\d{2,3})?\]?)?\s*[-–]?\s*`)
	reTranscriptSpeaker  = regexp.MustCompile(`^([\p{Lu}\x{05D0}-\x{05EA}][\p{L}\p{M}0-9 .'\-]{0,39}?)\s*:\s*(\S.*)$`)
	reTranscriptCue      = regexp.MustCompile(`^[\p{Lu}\x{05D0}-\x{05EA}][\p{Lu}\x{05D0}-\x{05EA}0-9 .'\-]{0,39}$`)
)

// nonSpeakers are colon-prefixed labels that are not characters.
var nonSpeakers = map[string]bool{
	"NOTE": true, "NOTES": true, "SUPER": true, "TITLE": true, "SFX": true, "MUSIC": true, "TEXT": true,
	"CAPTION": true, "SUBTITLE": true, "INSERT": true, "SOUND": true, "FX": true, "SCENE": true,
	"INT": true, "EXT": true, "TIME": true, "DATE": true, "הערה": true, "הערות": true, "כתובית": true,
}

// ExtractDialogueLines reads an unformatted dialogue transcript. It accepts
// "NAME: text" lines (optionally prefixed by a timecode), timecode-only
// lines that apply to the next speech, ALL-CAPS cue lines followed by
// indented speech, and unindented continuation lines directly below a
// speech. A blank line ends a speech.
func ExtractDialogueLines(text string) []domain.ScriptLineInput {
	lines := strings.Split(strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text), "\n")
	out := []domain.ScriptLineInput{}
	pendingTC := ""
	open := -1 // index in out of the speech still accepting continuation lines
	cueIndent := -1

	emit := func(role, tc, speech string) {
		out = append(out, domain.ScriptLineInput{
			LineNumber: len(out) + 1,
			Timecode:   tc,
			RoleName:   role,
			SourceText: speech,
		})
		open = len(out) - 1
	}

	for _, raw := range lines {
		t := strings.TrimSpace(raw)
		if t == "" {
			open, cueIndent = -1, -1
			continue
		}
		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))

		tc := ""
		if m := reTranscriptTimecode.FindStringSubmatch(t); m != nil {
			tc = NormalizeTimecode(m[1])
			t = strings.TrimSpace(t[len(m[0]):])
			if t == "" {
				pendingTC, open, cueIndent = tc, -1, -1
				continue
			}
		}
		if tc == "" {
			tc = pendingTC
		}

		if cueIndent >= 0 && indent > cueIndent && open >= 0 {
			appendSpeech(&out[open], t)
			continue
		}
		if m := reTranscriptSpeaker.FindStringSubmatch(t); m != nil && isSpeakerName(m[1]) {
			emit(strings.TrimSpace(m[1]), tc, strings.TrimSpace(m[2]))
			pendingTC, cueIndent = "", -1
			continue
		}
		if reTranscriptCue.MatchString(t) && hasLetter(t) && !nonSpeakers[strings.TrimSuffix(t, ".")] {
			emit(t, tc, "")
			pendingTC, cueIndent = "", indent
			continue
		}
		if open >= 0 {
			appendSpeech(&out[open], t)
		}
	}
	// cues that never received speech are dropped
	kept := out[:0]
	for _, l := range out {
		if l.SourceText == "" {
			continue
		}
		l.LineNumber = len(kept) + 1
		kept = append(kept, l)
	}
	return kept
}

func appendSpeech(l *domain.ScriptLineInput, s string) {
	if l.SourceText == "" {
		l.SourceText = s
		return
	}
	l.SourceText += " " + s
}

// isSpeakerName accepts at most four words, each capitalised (or Hebrew),
// that are not a known label.
func isSpeakerName(name string) bool {
	name = strings.TrimSpace(name)
	if nonSpeakers[strings.ToUpper(strings.TrimSuffix(name, "."))] {
		return false
	}
	words := strings.Fields(name)
	if len(words) == 0 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsUpper(r) && !unicode.Is(unicode.Hebrew, r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func hasLetter(s string) bool { return strings.IndexFunc(s, unicode.IsLetter) >= 0 }
