/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script turns screenplay text (or tabular dialogue lines) into a
// cast: characters with replica counts, scene interactions and advisory
// warnings.
package script

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"scriptcast/internal/domain"
	"scriptcast/internal/textnorm"
)

// Options tunes the parser.
type Options struct {
	// RecentCharacters bounds the window of speakers considered to interact
	// with the next speaker within a scene.
	RecentCharacters int
}

func DefaultOptions() Options { return Options{RecentCharacters: 15} }

// Parser is stateless between calls and safe for concurrent use.
type Parser struct {
	opts Options
}

func New(opts Options) *Parser {
	if opts.RecentCharacters <= 0 {
		opts.RecentCharacters = DefaultOptions().RecentCharacters
	}
	return &Parser{opts: opts}
}

// ParseScript parses cleaned screenplay text with default options.
func ParseScript(text string) domain.ScriptParseResult { return New(DefaultOptions()).ParseScript(text) }

// ParseScript runs the line-oriented pass: scene headings reset the
// interaction window, every accepted cue counts one replica.
func (p *Parser) ParseScript(text string) domain.ScriptParseResult {
	start := time.Now()
	lines := textnorm.SplitLines(text)
	c := newCollector(p.opts, true)
	for i, raw := range lines {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		if reSceneHeading.MatchString(t) {
			c.startScene(t)
			continue
		}
		if cue, ok := ExtractCharacterFromLine(lines, i); ok {
			c.register(cue, i+1)
		}
	}
	return c.result(len(lines), start)
}

// ParseTokens builds a result from a token stream: CHARACTER and
// SPEAKER_COLON tokens count replicas, SCENE_HEADING tokens reset the window.
func (p *Parser) ParseTokens(toks []Token) domain.ScriptParseResult {
	start := time.Now()
	c := newCollector(p.opts, true)
	total := 0
	for _, tok := range toks {
		if tok.Line > total {
			total = tok.Line
		}
		switch tok.Type {
		case TokenSceneHeading:
			c.startScene(tok.Text)
		case TokenCharacter, TokenSpeakerColon:
			if plausibleCue(tok.Name) || textnorm.IsHebrew(firstRune(tok.Name)) {
				c.register(tok.Name, tok.Line)
			}
		}
	}
	return c.result(total, start)
}

// ParseLines builds a result from tabular dialogue lines. Tabular scripts
// carry no scene structure, so no interactions are derived.
func (p *Parser) ParseLines(lines []domain.ScriptLineInput) domain.ScriptParseResult {
	start := time.Now()
	c := newCollector(p.opts, false)
	for _, l := range lines {
		if strings.TrimSpace(l.RoleName) != "" {
			c.register(l.RoleName, l.LineNumber)
		}
	}
	return c.result(len(lines), start)
}

// sceneRefLength caps the stored scene heading.
const sceneRefLength = 80

type collector struct {
	limit        int
	interactions bool

	chars []*domain.Character
	index map[string]*domain.Character

	warnings []domain.ParserWarning
	warned   map[string]bool

	pairs      []domain.Interaction
	pairSeen   map[string]bool
	pairScenes map[string]map[int]bool
	pairOrder  []string

	recent   []string
	scene    string
	sceneIdx int
}

func newCollector(opts Options, interactions bool) *collector {
	return &collector{
		limit:        opts.RecentCharacters,
		interactions: interactions,
		index:        map[string]*domain.Character{},
		warned:       map[string]bool{},
		pairSeen:     map[string]bool{},
		pairScenes:   map[string]map[int]bool{},
	}
}

func (c *collector) startScene(heading string) {
	c.recent = c.recent[:0]
	c.sceneIdx++
	if utf8.RuneCountInString(heading) > sceneRefLength {
		heading = string([]rune(heading)[:sceneRefLength])
	}
	c.scene = heading
}

func (c *collector) register(raw string, line int) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), ":"))
	if parts := DetectCombinedRole(raw); parts != nil {
		for _, seg := range splitOutsideParens(raw) {
			ch := c.upsert(seg, line)
			if ch == nil {
				continue
			}
			ch.CombinedRole = appendUnique(ch.CombinedRole, parts...)
			c.track(ch.NormalizedName, line)
		}
		c.warn("combined:"+strings.Join(parts, "/"), domain.ParserWarning{
			Type:          domain.WarningCombinedRole,
			Message:       fmt.Sprintf("combined role %q was split into %s", raw, strings.Join(parts, ", ")),
			Characters:    parts,
			LineReference: line,
		})
		return
	}
	if ch := c.upsert(raw, line); ch != nil {
		c.track(ch.NormalizedName, line)
	}
}

func (c *collector) upsert(raw string, line int) *domain.Character {
	raw = strings.TrimSpace(raw)
	norm := NormalizeCharacterName(raw)
	if norm == "" {
		return nil
	}
	if ch, ok := c.index[norm]; ok {
		ch.ReplicaCount++
		ch.Variants = appendUnique(ch.Variants, raw)
		return ch
	}
	ch := &domain.Character{
		Name:            displayName(raw),
		NormalizedName:  norm,
		ReplicaCount:    1,
		FirstAppearance: line,
		Variants:        []string{raw},
		PossibleGroup:   IsGroupCharacter(norm),
		ParentName:      FindBaseCharacter(norm),
	}
	c.index[norm] = ch
	c.chars = append(c.chars, ch)
	if ch.PossibleGroup {
		c.warn("group:"+norm, domain.ParserWarning{
			Type:          domain.WarningPossibleGroup,
			Message:       fmt.Sprintf("%s looks like several speakers", norm),
			Characters:    []string{norm},
			LineReference: line,
		})
	}
	return ch
}

func (c *collector) track(norm string, line int) {
	if !c.interactions {
		return
	}
	for _, other := range c.recent {
		if other == norm {
			continue
		}
		key := pairKey(other, norm)
		if c.pairScenes[key] == nil {
			c.pairScenes[key] = map[int]bool{}
		}
		c.pairScenes[key][c.sceneIdx] = true
		if !c.pairSeen[key] {
			c.pairSeen[key] = true
			c.pairOrder = append(c.pairOrder, key)
			c.pairs = append(c.pairs, domain.Interaction{CharacterA: other, CharacterB: norm, SceneReference: c.scene, LineNumber: line})
		}
	}
	for i, r := range c.recent {
		if r == norm {
			c.recent = append(c.recent[:i], c.recent[i+1:]...)
			break
		}
	}
	c.recent = append(c.recent, norm)
	if len(c.recent) > c.limit {
		c.recent = c.recent[len(c.recent)-c.limit:]
	}
}

func (c *collector) warn(key string, w domain.ParserWarning) {
	if c.warned[key] {
		return
	}
	c.warned[key] = true
	c.warnings = append(c.warnings, w)
}

func (c *collector) result(totalLines int, start time.Time) domain.ScriptParseResult {
	res := domain.NewScriptParseResult()
	for _, ch := range c.chars {
		res.Characters = append(res.Characters, *ch)
		res.Metadata.TotalReplicas += ch.ReplicaCount
	}
	sort.SliceStable(res.Characters, func(i, j int) bool {
		return res.Characters[i].ReplicaCount > res.Characters[j].ReplicaCount
	})

	res.Warnings = append(res.Warnings, c.warnings...)
	for _, ch := range res.Characters {
		if ch.ParentName == "" {
			continue
		}
		if _, ok := c.index[ch.ParentName]; !ok {
			continue
		}
		res.Warnings = append(res.Warnings, domain.ParserWarning{
			Type:       domain.WarningPossibleDuplicate,
			Message:    fmt.Sprintf("%s appears to be a variant of %s", ch.NormalizedName, ch.ParentName),
			Characters: []string{ch.NormalizedName, ch.ParentName},
		})
	}
	for i, key := range c.pairOrder {
		if n := len(c.pairScenes[key]); n >= 2 {
			in := c.pairs[i]
			res.Warnings = append(res.Warnings, domain.ParserWarning{
				Type:       domain.WarningInteraction,
				Message:    fmt.Sprintf("%s and %s speak together in %d scenes; cast them with different actors", in.CharacterA, in.CharacterB, n),
				Characters: []string{in.CharacterA, in.CharacterB},
			})
		}
	}
	res.Interactions = append(res.Interactions, c.pairs...)
	res.Metadata.TotalLines = totalLines
	res.Metadata.ParseTimeMs = float64(time.Since(start).Microseconds()) / 1000
	return res
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

func splitOutsideParens(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '/':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}
