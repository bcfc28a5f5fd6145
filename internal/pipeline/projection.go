/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pipeline

import (
	"scriptcast/internal/domain"
)

// DefaultMaxConflicts bounds the conflict projection.
const DefaultMaxConflicts = 100

const (
	roleSourceScript  = "script"
	conflictSameScene = "same_scene"
)

// ConvertToDbFormat projects the bundle into persistence records. Each group
// yields its primary role followed by child roles whose ParentRoleID is the
// primary's normalized name. Interactions become same_scene conflicts, at
// most maxConflicts of them (DefaultMaxConflicts when maxConflicts <= 0).
func ConvertToDbFormat(b domain.ParsedScriptBundle, maxConflicts int) domain.DbProjection {
	if maxConflicts <= 0 {
		maxConflicts = DefaultMaxConflicts
	}
	chars := make(map[string]domain.Character, len(b.Result.Characters))
	for _, c := range b.Result.Characters {
		chars[c.NormalizedName] = c
	}
	out := domain.DbProjection{Roles: []domain.RoleForDatabase{}, Conflicts: []domain.ConflictForDatabase{}}
	emitted := map[string]bool{}
	role := func(c domain.Character, parent string) {
		emitted[c.NormalizedName] = true
		out.Roles = append(out.Roles, domain.RoleForDatabase{
			RoleName:           c.Name,
			RoleNameNormalized: c.NormalizedName,
			ReplicasNeeded:     c.ReplicaCount,
			Source:             roleSourceScript,
			ParentRoleID:       parent,
		})
	}

	for _, g := range b.Groups {
		primary, ok := chars[g.PrimaryName]
		if !ok || emitted[g.PrimaryName] {
			continue
		}
		role(primary, "")
		for _, m := range g.Members {
			if c, ok := chars[m]; ok && !emitted[m] {
				role(c, primary.NormalizedName)
			}
		}
	}
	for _, c := range b.Result.Characters {
		if !emitted[c.NormalizedName] {
			role(c, "")
		}
	}

	for _, in := range b.Result.Interactions {
		if len(out.Conflicts) >= maxConflicts {
			break
		}
		if !emitted[in.CharacterA] || !emitted[in.CharacterB] {
			continue
		}
		out.Conflicts = append(out.Conflicts, domain.ConflictForDatabase{
			RoleNameA:      in.CharacterA,
			RoleNameB:      in.CharacterB,
			WarningType:    conflictSameScene,
			SceneReference: in.SceneReference,
		})
	}
	return out
}

// ConvertToDbFormat uses the configured conflict cap.
func (p *Pipeline) ConvertToDbFormat(b domain.ParsedScriptBundle) domain.DbProjection {
	return ConvertToDbFormat(b, p.cfg.MaxConflicts)
}
