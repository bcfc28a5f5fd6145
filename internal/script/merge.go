/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"sort"
	"strings"

	"scriptcast/internal/domain"
)

// MergeParseResults folds several per-file results into one. Characters are
// keyed by normalized name (counts summed, variants and combined parts
// unioned, earliest first appearance kept), warnings are deduplicated by type
// and character set, interactions by unordered pair.
func MergeParseResults(results []domain.ScriptParseResult) domain.ScriptParseResult {
	out := domain.NewScriptParseResult()
	index := map[string]int{}
	warned := map[string]bool{}
	paired := map[string]bool{}

	for _, r := range results {
		for _, ch := range r.Characters {
			if i, ok := index[ch.NormalizedName]; ok {
				dst := &out.Characters[i]
				dst.ReplicaCount += ch.ReplicaCount
				dst.Variants = appendUnique(dst.Variants, ch.Variants...)
				if ch.FirstAppearance < dst.FirstAppearance {
					dst.FirstAppearance = ch.FirstAppearance
				}
				dst.PossibleGroup = dst.PossibleGroup || ch.PossibleGroup
				if dst.ParentName == "" {
					dst.ParentName = ch.ParentName
				}
				if len(ch.CombinedRole) > 0 {
					dst.CombinedRole = appendUnique(dst.CombinedRole, ch.CombinedRole...)
				}
				continue
			}
			cp := ch
			cp.Variants = append([]string(nil), ch.Variants...)
			if ch.CombinedRole != nil {
				cp.CombinedRole = append([]string(nil), ch.CombinedRole...)
			}
			index[ch.NormalizedName] = len(out.Characters)
			out.Characters = append(out.Characters, cp)
		}
		for _, w := range r.Warnings {
			key := warningKey(w)
			if warned[key] {
				continue
			}
			warned[key] = true
			w.Characters = append([]string(nil), w.Characters...)
			out.Warnings = append(out.Warnings, w)
		}
		for _, in := range r.Interactions {
			key := pairKey(in.CharacterA, in.CharacterB)
			if paired[key] {
				continue
			}
			paired[key] = true
			out.Interactions = append(out.Interactions, in)
		}
		out.Metadata.TotalLines += r.Metadata.TotalLines
		out.Metadata.TotalReplicas += r.Metadata.TotalReplicas
		out.Metadata.ParseTimeMs += r.Metadata.ParseTimeMs
	}
	sort.SliceStable(out.Characters, func(i, j int) bool {
		return out.Characters[i].ReplicaCount > out.Characters[j].ReplicaCount
	})
	return out
}

func warningKey(w domain.ParserWarning) string {
	names := append([]string(nil), w.Characters...)
	sort.Strings(names)
	return string(w.Type) + "\x00" + strings.Join(names, "\x00")
}
