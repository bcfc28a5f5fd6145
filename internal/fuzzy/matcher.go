/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package fuzzy finds probable duplicate characters and groups variant
// spellings under one canonical role.
package fuzzy

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"scriptcast/internal/domain"
)

// DefaultThreshold is the Levenshtein similarity at which two names are
// reported as duplicates.
const DefaultThreshold = 0.75

const (
	nicknameSimilarity = 0.85
	minContainsRatio   = 0.5
)

// SimilarityRatio is 1 - editDistance/maxLength over runes. Identical
// strings, including two empty strings, score exactly 1.
func SimilarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

var reTrailingNumber = regexp.MustCompile(`^(.*\S)\s+#?(\d+)$`)

// FindSimilarCharacters compares every unordered pair of characters that are
// not parent and variant of each other (nor numbered siblings such as
// "GUARD 1" / "GUARD 2") and reports the first rule that matches:
// combined-role overlap, Levenshtein similarity at or above threshold,
// nickname, containment, then title-stripped similarity. Matches are sorted
// by descending similarity.
func FindSimilarCharacters(chars []domain.Character, threshold float64) []domain.SimilarityMatch {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	out := []domain.SimilarityMatch{}
	for i := 0; i < len(chars); i++ {
		for j := i + 1; j < len(chars); j++ {
			a, b := chars[i], chars[j]
			if related(a, b) {
				continue
			}
			if m, ok := compare(a, b, threshold); ok {
				out = append(out, m)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}

func key(c domain.Character) string {
	if c.NormalizedName != "" {
		return c.NormalizedName
	}
	return strings.ToUpper(strings.TrimSpace(c.Name))
}

func related(a, b domain.Character) bool {
	ka, kb := key(a), key(b)
	if a.ParentName == kb || b.ParentName == ka {
		return true
	}
	ma, mb := reTrailingNumber.FindStringSubmatch(ka), reTrailingNumber.FindStringSubmatch(kb)
	return ma != nil && mb != nil && ma[1] == mb[1] && ma[2] != mb[2]
}

func compare(a, b domain.Character, threshold float64) (domain.SimilarityMatch, bool) {
	ka, kb := key(a), key(b)
	m := domain.SimilarityMatch{CharacterA: ka, CharacterB: kb}

	if overlaps(a.CombinedRole, b.CombinedRole) {
		m.Similarity, m.Reason = 1, domain.ReasonCombinedRole
		return m, true
	}
	if s := SimilarityRatio(ka, kb); s >= threshold {
		m.Similarity, m.Reason = s, domain.ReasonLevenshtein
		return m, true
	}
	wa, wb := strings.Fields(ka), strings.Fields(kb)
	if len(wa) > 0 && len(wb) > 0 && SameFirstName(wa[0], wb[0]) {
		if len(wa) == 1 || len(wb) == 1 || wa[len(wa)-1] == wb[len(wb)-1] {
			m.Similarity, m.Reason = nicknameSimilarity, domain.ReasonNickname
			return m, true
		}
	}
	if r, ok := contains(wa, wb, ka, kb); ok {
		m.Similarity, m.Reason = r, domain.ReasonContains
		return m, true
	}
	sa, sb := StripTitles(ka), StripTitles(kb)
	if (sa != ka || sb != kb) && sa != "" && sb != "" {
		if s := SimilarityRatio(sa, sb); s >= threshold {
			m.Similarity, m.Reason = s, domain.ReasonTitleVariant
			return m, true
		}
	}
	return m, false
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// contains reports whether every word of the shorter name occurs in the
// longer one, returning the length ratio as the similarity.
func contains(wa, wb []string, ka, kb string) (float64, bool) {
	short, long := wa, wb
	ls, ll := utf8.RuneCountInString(ka), utf8.RuneCountInString(kb)
	if ls > ll {
		short, long = wb, wa
		ls, ll = ll, ls
	}
	if len(short) == 0 || ll == 0 {
		return 0, false
	}
	set := make(map[string]bool, len(long))
	for _, w := range long {
		set[w] = true
	}
	for _, w := range short {
		if !set[w] {
			return 0, false
		}
	}
	r := float64(ls) / float64(ll)
	return r, r >= minContainsRatio
}

// GroupSimilarCharacters clusters characters into casting groups. Manual
// groups are applied first, then each variant joins its parent's group when
// the parent is present, and every remaining character becomes a singleton.
// Groups are sorted by descending total replicas.
func GroupSimilarCharacters(chars []domain.Character, manual []domain.CharacterGroup) []domain.CharacterGroup {
	byName := make(map[string]domain.Character, len(chars))
	for _, c := range chars {
		byName[key(c)] = c
	}
	assigned := map[string]bool{}
	var groups []domain.CharacterGroup

	for _, mg := range manual {
		g := domain.CharacterGroup{PrimaryName: mg.PrimaryName}
		for _, n := range append([]string{mg.PrimaryName}, mg.Members...) {
			c, ok := byName[n]
			if !ok || assigned[n] {
				continue
			}
			assigned[n] = true
			g.Members = append(g.Members, n)
			g.TotalReplicas += c.ReplicaCount
		}
		if len(g.Members) > 0 {
			g.PrimaryName = g.Members[0]
			groups = append(groups, g)
		}
	}

	parentIdx := map[string]int{}
	for _, c := range chars {
		k, p := key(c), c.ParentName
		if p == "" || assigned[k] {
			continue
		}
		if _, ok := byName[p]; !ok {
			continue
		}
		i, ok := parentIdx[p]
		if !ok {
			if assigned[p] {
				continue
			}
			assigned[p] = true
			groups = append(groups, domain.CharacterGroup{PrimaryName: p, Members: []string{p}, TotalReplicas: byName[p].ReplicaCount})
			i = len(groups) - 1
			parentIdx[p] = i
		}
		assigned[k] = true
		groups[i].Members = append(groups[i].Members, k)
		groups[i].TotalReplicas += c.ReplicaCount
	}

	for _, c := range chars {
		k := key(c)
		if assigned[k] {
			continue
		}
		assigned[k] = true
		groups = append(groups, domain.CharacterGroup{PrimaryName: k, Members: []string{k}, TotalReplicas: c.ReplicaCount})
	}
	if groups == nil {
		groups = []domain.CharacterGroup{}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].TotalReplicas > groups[j].TotalReplicas })
	return groups
}
