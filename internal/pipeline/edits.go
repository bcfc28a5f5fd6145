/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pipeline

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"scriptcast/internal/domain"
	"scriptcast/internal/script"
)

// EditType names a corrective user edit.
type EditType string

const (
	EditMerge     EditType = "merge"
	EditRename    EditType = "rename"
	EditDelete    EditType = "delete"
	EditMarkGroup EditType = "mark_group"
)

// Edit is one user correction. Characters are matched by normalized name,
// so "John (V.O.)" addresses JOHN.
//
//	merge:      Characters collapse into NewName (or the first of them)
//	rename:     Characters[0] becomes NewName
//	delete:     Characters are removed
//	mark_group: Characters are flagged as ensembles
type Edit struct {
	Type       EditType `json:"type"`
	Characters []string `json:"characters"`
	NewName    string   `json:"newName,omitempty"`
}

// ApplyUserEdits applies edits in order to a copy of b. Edits naming
// unknown characters are skipped and reported as warning diagnostics.
// Characters are re-sorted by replicas and groups by total replicas.
func ApplyUserEdits(b domain.ParsedScriptBundle, edits []Edit) domain.ParsedScriptBundle {
	out := cloneBundle(b)
	for i, e := range edits {
		if err := applyEdit(&out, e); err != nil {
			out.Diagnostics = append(out.Diagnostics, domain.Diagnostic{
				Severity: domain.SeverityWarning,
				Message:  fmt.Sprintf("edit %d (%s) skipped: %v", i+1, e.Type, err),
				Source:   "edits",
			})
		}
	}
	finishEdits(&out)
	return out
}

func applyEdit(b *domain.ParsedScriptBundle, e Edit) error {
	if len(e.Characters) == 0 {
		return fmt.Errorf("no characters named")
	}
	switch e.Type {
	case EditMerge:
		name := e.NewName
		if strings.TrimSpace(name) == "" {
			name = e.Characters[0]
		}
		return mergeCharacters(b, e.Characters, name)
	case EditRename:
		if strings.TrimSpace(e.NewName) == "" {
			return fmt.Errorf("rename needs a new name")
		}
		return renameCharacter(b, e.Characters[0], e.NewName)
	case EditDelete:
		keys, err := resolve(b, e.Characters)
		if err != nil {
			return err
		}
		deleteCharacters(b, keys)
		return nil
	case EditMarkGroup:
		keys, err := resolve(b, e.Characters)
		if err != nil {
			return err
		}
		for i := range b.Result.Characters {
			if slices.Contains(keys, b.Result.Characters[i].NormalizedName) {
				b.Result.Characters[i].PossibleGroup = true
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown edit type %q", e.Type)
	}
}

func indexOf(b *domain.ParsedScriptBundle, key string) int {
	for i, c := range b.Result.Characters {
		if c.NormalizedName == key {
			return i
		}
	}
	return -1
}

// resolve maps user-supplied names to existing normalized names, in order
// and without duplicates. Every name must exist.
func resolve(b *domain.ParsedScriptBundle, names []string) ([]string, error) {
	var keys []string
	for _, n := range names {
		k := script.NormalizeCharacterName(n)
		if indexOf(b, k) < 0 {
			return nil, fmt.Errorf("unknown character %q", n)
		}
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// mergeCharacters collapses names into one entry keyed by newName. An
// existing character already called newName joins the merge.
func mergeCharacters(b *domain.ParsedScriptBundle, names []string, newName string) error {
	keys, err := resolve(b, names)
	if err != nil {
		return err
	}
	target := script.NormalizeCharacterName(newName)
	if target == "" {
		return fmt.Errorf("empty target name")
	}
	if indexOf(b, target) >= 0 && !slices.Contains(keys, target) {
		keys = append(keys, target)
	}

	merged := domain.Character{Name: strings.TrimSpace(newName), NormalizedName: target, Variants: []string{}}
	pos := -1
	var kept []domain.Character
	for _, c := range b.Result.Characters {
		if !slices.Contains(keys, c.NormalizedName) {
			kept = append(kept, c)
			continue
		}
		if pos < 0 {
			pos = len(kept)
			merged.FirstAppearance = c.FirstAppearance
		}
		merged.ReplicaCount += c.ReplicaCount
		if c.FirstAppearance < merged.FirstAppearance {
			merged.FirstAppearance = c.FirstAppearance
		}
		merged.Variants = appendUnique(merged.Variants, c.Name)
		merged.Variants = appendUnique(merged.Variants, c.Variants...)
		merged.PossibleGroup = merged.PossibleGroup || c.PossibleGroup
		if merged.ParentName == "" && !slices.Contains(keys, c.ParentName) {
			merged.ParentName = c.ParentName
		}
		merged.CombinedRole = appendUnique(merged.CombinedRole, c.CombinedRole...)
	}
	kept = slices.Insert(kept, pos, merged)
	b.Result.Characters = kept
	replaceNames(b, keys, target)
	return nil
}

// renameCharacter rewrites one character's names. Renaming onto an existing
// character merges the two.
func renameCharacter(b *domain.ParsedScriptBundle, from, to string) error {
	keys, err := resolve(b, []string{from})
	if err != nil {
		return err
	}
	target := script.NormalizeCharacterName(to)
	if target == "" {
		return fmt.Errorf("empty target name")
	}
	if target != keys[0] && indexOf(b, target) >= 0 {
		return mergeCharacters(b, []string{from, to}, to)
	}
	c := &b.Result.Characters[indexOf(b, keys[0])]
	c.Variants = appendUnique(c.Variants, c.Name)
	c.Name = strings.TrimSpace(to)
	c.NormalizedName = target
	replaceNames(b, keys, target)
	return nil
}

func deleteCharacters(b *domain.ParsedScriptBundle, keys []string) {
	b.Result.Characters = slices.DeleteFunc(b.Result.Characters, func(c domain.Character) bool {
		return slices.Contains(keys, c.NormalizedName)
	})
	for i := range b.Result.Characters {
		if slices.Contains(keys, b.Result.Characters[i].ParentName) {
			b.Result.Characters[i].ParentName = ""
		}
	}
	for i := range b.Groups {
		b.Groups[i].Members = slices.DeleteFunc(b.Groups[i].Members, func(m string) bool { return slices.Contains(keys, m) })
	}
	b.Result.Interactions = slices.DeleteFunc(b.Result.Interactions, func(in domain.Interaction) bool {
		return slices.Contains(keys, in.CharacterA) || slices.Contains(keys, in.CharacterB)
	})
	b.SimilarityMatches = slices.DeleteFunc(b.SimilarityMatches, func(m domain.SimilarityMatch) bool {
		return slices.Contains(keys, m.CharacterA) || slices.Contains(keys, m.CharacterB)
	})
	for i := range b.Result.Warnings {
		w := &b.Result.Warnings[i]
		w.Characters = slices.DeleteFunc(w.Characters, func(n string) bool { return slices.Contains(keys, n) })
	}
	b.Result.Warnings = pruneWarnings(b.Result.Warnings)
}

// pairWarnings describe a relation between characters and need two of them.
var pairWarnings = map[domain.WarningType]bool{
	domain.WarningPossibleDuplicate: true,
	domain.WarningAmbiguousName:     true,
	domain.WarningInteraction:       true,
}

// pruneWarnings drops warnings left without characters and pair warnings
// whose characters collapsed into one.
func pruneWarnings(ws []domain.ParserWarning) []domain.ParserWarning {
	return slices.DeleteFunc(ws, func(w domain.ParserWarning) bool {
		return len(w.Characters) == 0 || (pairWarnings[w.Type] && len(w.Characters) < 2)
	})
}

// replaceNames points every reference to one of keys at target.
func replaceNames(b *domain.ParsedScriptBundle, keys []string, target string) {
	sub := func(n string) string {
		if slices.Contains(keys, n) {
			return target
		}
		return n
	}
	for i := range b.Result.Characters {
		c := &b.Result.Characters[i]
		if c.NormalizedName != target {
			c.ParentName = sub(c.ParentName)
		}
		if c.ParentName == c.NormalizedName {
			c.ParentName = ""
		}
	}
	// target stays in the first group that references it
	placed := false
	for i := range b.Groups {
		g := &b.Groups[i]
		g.PrimaryName = sub(g.PrimaryName)
		var members []string
		for _, m := range g.Members {
			m = sub(m)
			if m == target && placed {
				continue
			}
			if !slices.Contains(members, m) {
				members = append(members, m)
			}
		}
		if slices.Contains(members, target) {
			placed = true
		}
		g.Members = members
	}

	ints := []domain.Interaction{}
	pairs := map[string]bool{}
	for _, in := range b.Result.Interactions {
		in.CharacterA, in.CharacterB = sub(in.CharacterA), sub(in.CharacterB)
		k := pairKey(in.CharacterA, in.CharacterB)
		if in.CharacterA == in.CharacterB || pairs[k] {
			continue
		}
		pairs[k] = true
		ints = append(ints, in)
	}
	b.Result.Interactions = ints

	b.SimilarityMatches = slices.DeleteFunc(b.SimilarityMatches, func(m domain.SimilarityMatch) bool {
		return sub(m.CharacterA) == sub(m.CharacterB)
	})
	for i := range b.SimilarityMatches {
		m := &b.SimilarityMatches[i]
		m.CharacterA, m.CharacterB = sub(m.CharacterA), sub(m.CharacterB)
	}
	for i := range b.Result.Warnings {
		w := &b.Result.Warnings[i]
		var names []string
		for _, n := range w.Characters {
			names = appendUnique(names, sub(n))
		}
		w.Characters = names
	}
	b.Result.Warnings = pruneWarnings(b.Result.Warnings)
}

// finishEdits drops empty groups, recomputes totals and restores ordering.
func finishEdits(b *domain.ParsedScriptBundle) {
	counts := make(map[string]int, len(b.Result.Characters))
	total := 0
	for _, c := range b.Result.Characters {
		counts[c.NormalizedName] = c.ReplicaCount
		total += c.ReplicaCount
	}
	grouped := map[string]bool{}
	groups := b.Groups[:0]
	for _, g := range b.Groups {
		g.TotalReplicas = 0
		var members []string
		for _, m := range g.Members {
			if n, ok := counts[m]; ok && !grouped[m] {
				grouped[m] = true
				members = append(members, m)
				g.TotalReplicas += n
			}
		}
		if len(members) == 0 {
			continue
		}
		if !slices.Contains(members, g.PrimaryName) {
			g.PrimaryName = members[0]
		}
		g.Members = members
		groups = append(groups, g)
	}
	for _, c := range b.Result.Characters {
		if !grouped[c.NormalizedName] {
			groups = append(groups, domain.CharacterGroup{PrimaryName: c.NormalizedName, Members: []string{c.NormalizedName}, TotalReplicas: c.ReplicaCount})
		}
	}
	b.Groups = groups
	b.Result.Metadata.TotalReplicas = total
	if b.Result.Characters == nil {
		b.Result.Characters = []domain.Character{}
	}
	if b.Result.Warnings == nil {
		b.Result.Warnings = []domain.ParserWarning{}
	}
	if b.Result.Interactions == nil {
		b.Result.Interactions = []domain.Interaction{}
	}
	sort.SliceStable(b.Result.Characters, func(i, j int) bool {
		return b.Result.Characters[i].ReplicaCount > b.Result.Characters[j].ReplicaCount
	})
	sort.SliceStable(b.Groups, func(i, j int) bool { return b.Groups[i].TotalReplicas > b.Groups[j].TotalReplicas })
}

func cloneBundle(b domain.ParsedScriptBundle) domain.ParsedScriptBundle {
	out := b
	out.Result.Characters = make([]domain.Character, len(b.Result.Characters))
	for i, c := range b.Result.Characters {
		c.Variants = slices.Clone(c.Variants)
		c.CombinedRole = slices.Clone(c.CombinedRole)
		out.Result.Characters[i] = c
	}
	out.Result.Warnings = make([]domain.ParserWarning, len(b.Result.Warnings))
	for i, w := range b.Result.Warnings {
		w.Characters = slices.Clone(w.Characters)
		out.Result.Warnings[i] = w
	}
	out.Result.Interactions = slices.Clone(b.Result.Interactions)
	out.Groups = make([]domain.CharacterGroup, len(b.Groups))
	for i, g := range b.Groups {
		g.Members = slices.Clone(g.Members)
		out.Groups[i] = g
	}
	out.SimilarityMatches = slices.Clone(b.SimilarityMatches)
	out.ExtractionWarnings = slices.Clone(b.ExtractionWarnings)
	out.Files = slices.Clone(b.Files)
	out.Diagnostics = slices.Clone(b.Diagnostics)
	return out
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		if v != "" && !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}
