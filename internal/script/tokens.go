/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"regexp"
	"strings"

	"scriptcast/internal/domain"
	"scriptcast/internal/textnorm"
)

// TokenType classifies one line of screenplay text.
type TokenType string

const (
	TokenCharacter     TokenType = "CHARACTER"
	TokenDialogue      TokenType = "DIALOGUE"
	TokenParenthetical TokenType = "PARENTHETICAL"
	TokenSceneHeading  TokenType = "SCENE_HEADING"
	TokenTransition    TokenType = "TRANSITION"
	TokenSpeakerColon  TokenType = "SPEAKER_COLON"
	TokenTimecode      TokenType = "TIMECODE"
	TokenAction        TokenType = "ACTION"
	TokenBlank         TokenType = "BLANK"
)

// Token is one classified line.
type Token struct {
	Type   TokenType
	Line   int // 1-based
	Indent int
	Text   string // trimmed line content
	// Name is the speaker for CHARACTER and SPEAKER_COLON tokens.
	Name string
	// Inline is the dialogue carried on a SPEAKER_COLON line.
	Inline string
}

// Indentation thresholds, in columns (tab = 4).
const (
	slugIndent          = 5
	parentheticalIndent = 5
	dialogueIndent      = 3
	maxSlugLength       = 50
)

var (
	reSceneHeading = regexp.MustCompile(`(?i)^(?:\d+[A-Z]?\.?\s+)?(?:INT\.?\s?/\s?EXT|EXT\.?\s?/\s?INT|INT|EXT|I/E|EST)[.\s]`)
	reTransition   = regexp.MustCompile(`^(?:(?:CUT|FADE|DISSOLVE|SMASH CUT|MATCH CUT|JUMP CUT|WIPE|TIME CUT|FLASH CUT|HARD CUT) TO(?: BLACK| WHITE)?|FADE (?:IN|OUT)|CUT TO BLACK|IRIS (?:IN|OUT)|INTERCUT(?: WITH)?|BACK TO SCENE|THE END)[:.]?$|^[A-Z ]+ TO:$`)
	reTimecodeLine = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}(?:[:;.,]\d{2,3})?$`)
	reParenLine    = regexp.MustCompile(`^\(.*\)$`)
	reSpeakerColon = regexp.MustCompile(`^((?:\d{1,3}\s+)?[A-Z\x{05D0}-\x{05EA}][A-Z0-9\x{05D0}-\x{05EA} .'\-]{0,39}):\s*(\S.*)$`)
	reCueBody      = regexp.MustCompile(`^[A-Z0-9][A-Z0-9 .'\-/&#]*$`)
	reTrailingPar  = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	reHasLetter    = regexp.MustCompile(`[A-Z]`)
)

// Tokenize classifies every line of text. Diagnostics flag cues that are not
// followed by dialogue.
func Tokenize(text string) ([]Token, []domain.Diagnostic) {
	lines := textnorm.SplitLines(text)
	toks := make([]Token, 0, len(lines))
	var last TokenType
	for i, raw := range lines {
		t := strings.TrimSpace(raw)
		tok := Token{Line: i + 1, Indent: textnorm.IndentWidth(raw), Text: t}
		switch {
		case t == "":
			tok.Type = TokenBlank
		case reTimecodeLine.MatchString(t):
			tok.Type = TokenTimecode
		case reSceneHeading.MatchString(t):
			tok.Type = TokenSceneHeading
		case reTransition.MatchString(t):
			tok.Type = TokenTransition
		case tok.Indent >= parentheticalIndent && reParenLine.MatchString(t):
			tok.Type = TokenParenthetical
		default:
			if m := reSpeakerColon.FindStringSubmatch(t); m != nil {
				tok.Type = TokenSpeakerColon
				tok.Name = strings.TrimSpace(m[1])
				tok.Inline = strings.TrimSpace(m[2])
				break
			}
			if name, ok := cueName(t); ok && (tok.Indent >= slugIndent || nextIsIndented(lines, i, tok.Indent)) {
				tok.Type = TokenCharacter
				tok.Name = name
				break
			}
			if tok.Indent >= dialogueIndent && (last == TokenCharacter || last == TokenParenthetical || last == TokenDialogue) {
				tok.Type = TokenDialogue
				break
			}
			tok.Type = TokenAction
		}
		if tok.Type != TokenBlank {
			last = tok.Type
		}
		toks = append(toks, tok)
	}
	return toks, orphanCueDiagnostics(toks)
}

// cueName reports whether t is an all-caps cue of at most maxSlugLength
// characters, optionally followed by parentheticals and a colon.
func cueName(t string) (string, bool) {
	if len([]rune(t)) > maxSlugLength {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimSuffix(t, ":"))
	base := name
	for {
		stripped := reTrailingPar.ReplaceAllString(base, "")
		if stripped == base {
			break
		}
		base = stripped
	}
	base = strings.TrimSpace(base)
	if base == "" || !reCueBody.MatchString(base) || !reHasLetter.MatchString(base) {
		return "", false
	}
	return name, true
}

func nextIsIndented(lines []string, i, indent int) bool {
	for j := i + 1; j < len(lines); j++ {
		t := strings.TrimSpace(lines[j])
		if t == "" {
			continue
		}
		return strings.HasPrefix(t, "(") || textnorm.IndentWidth(lines[j]) > indent
	}
	return false
}

func orphanCueDiagnostics(toks []Token) []domain.Diagnostic {
	var diags []domain.Diagnostic
	for i, tok := range toks {
		if tok.Type != TokenCharacter {
			continue
		}
		ok := false
		for _, next := range toks[i+1:] {
			if next.Type == TokenBlank {
				continue
			}
			ok = next.Type == TokenDialogue || next.Type == TokenParenthetical
			break
		}
		if !ok {
			diags = append(diags, domain.Diagnostic{
				Severity: domain.SeverityWarning,
				Message:  fmt.Sprintf("character cue %q is not followed by dialogue", tok.Name),
				Source:   "tokenizer",
				Line:     tok.Line,
				Column:   tok.Indent + 1,
				Context:  tok.Text,
			})
		}
	}
	return diags
}

// DialogueBlock is one speech: the speaker and the dialogue lines that follow.
type DialogueBlock struct {
	Character      string
	Line           int
	Dialogue       []string
	Parentheticals []string
}

// Text joins the dialogue lines with single spaces.
func (b DialogueBlock) Text() string { return strings.Join(b.Dialogue, " ") }

// GroupDialogueBlocks starts a block at every CHARACTER or SPEAKER_COLON
// token and closes it at the first token that is not dialogue, blank or a
// parenthetical.
func GroupDialogueBlocks(toks []Token) []DialogueBlock {
	var blocks []DialogueBlock
	var cur *DialogueBlock
	flush := func() {
		if cur != nil {
			blocks = append(blocks, *cur)
			cur = nil
		}
	}
	for _, tok := range toks {
		switch tok.Type {
		case TokenCharacter:
			flush()
			cur = &DialogueBlock{Character: tok.Name, Line: tok.Line}
		case TokenSpeakerColon:
			flush()
			cur = &DialogueBlock{Character: tok.Name, Line: tok.Line}
			if tok.Inline != "" {
				cur.Dialogue = append(cur.Dialogue, tok.Inline)
			}
		case TokenDialogue:
			if cur != nil {
				cur.Dialogue = append(cur.Dialogue, tok.Text)
			}
		case TokenParenthetical:
			if cur != nil {
				cur.Parentheticals = append(cur.Parentheticals, tok.Text)
			}
		case TokenBlank:
		default:
			flush()
		}
	}
	flush()
	return blocks
}
