/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the data model shared by every stage of the ingestion
// pipeline. JSON field names are the wire contract with the UI and the
// persistence adapter.

import "time"

// Character is a speaking role discovered in a script.
type Character struct {
	Name            string   `json:"name"`
	NormalizedName  string   `json:"normalizedName"`
	ReplicaCount    int      `json:"replicaCount"`
	FirstAppearance int      `json:"firstAppearance"`
	Variants        []string `json:"variants"`
	PossibleGroup   bool     `json:"possibleGroup"`
	ParentName      string   `json:"parentName,omitempty"`
	CombinedRole    []string `json:"combinedRole,omitempty"`
}

// Interaction records two characters speaking within the same scene window.
type Interaction struct {
	CharacterA     string `json:"characterA"`
	CharacterB     string `json:"characterB"`
	SceneReference string `json:"sceneReference,omitempty"`
	LineNumber     int    `json:"lineNumber,omitempty"`
}

// WarningType classifies a ParserWarning.
type WarningType string

const (
	WarningPossibleDuplicate WarningType = "possible_duplicate"
	WarningPossibleGroup     WarningType = "possible_group"
	WarningAmbiguousName     WarningType = "ambiguous_name"
	WarningInteraction       WarningType = "interaction"
	WarningCombinedRole      WarningType = "combined_role"
)

// ParserWarning is an advisory observation about the cast; it never blocks ingestion.
type ParserWarning struct {
	Type       WarningType `json:"type"`
	Message    string      `json:"message"`
	Characters []string    `json:"characters"`
	// LineReference is the 1-based source line the warning refers to, if any.
	LineReference int `json:"lineReference,omitempty"`
}

// RecStatus is the recording state of a tabular line. Empty means pending (null).
type RecStatus string

const (
	RecRecorded    RecStatus = "הוקלט"
	RecOptional    RecStatus = "Optional"
	RecNotRecorded RecStatus = "לא הוקלט"
)

// ScriptLineInput is one dialogue line of a tabular script. Empty optional
// fields are absent on the wire.
type ScriptLineInput struct {
	LineNumber  int       `json:"line_number"`
	Timecode    string    `json:"timecode,omitempty"`
	RoleName    string    `json:"role_name"`
	SourceText  string    `json:"source_text,omitempty"`
	Translation string    `json:"translation,omitempty"`
	RecStatus   RecStatus `json:"rec_status,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// CharacterGroup clusters characters that should be cast as one role.
type CharacterGroup struct {
	PrimaryName   string   `json:"primaryName"`
	Members       []string `json:"members"`
	TotalReplicas int      `json:"totalReplicas"`
}

// MatchReason names the rule that paired two similar characters.
type MatchReason string

const (
	ReasonCombinedRole MatchReason = "combined_role"
	ReasonLevenshtein  MatchReason = "levenshtein"
	ReasonNickname     MatchReason = "nickname"
	ReasonContains     MatchReason = "contains"
	ReasonTitleVariant MatchReason = "title_variant"
)

// SimilarityMatch is a probable duplicate pair reported by the fuzzy matcher.
type SimilarityMatch struct {
	CharacterA string      `json:"characterA"`
	CharacterB string      `json:"characterB"`
	Similarity float64     `json:"similarity"`
	Reason     MatchReason `json:"reason"`
}

// ParseMetadata describes one parse run.
type ParseMetadata struct {
	TotalLines    int     `json:"totalLines"`
	TotalReplicas int     `json:"totalReplicas"`
	ParseTimeMs   float64 `json:"parseTime"`
}

// ScriptParseResult is the outcome of parsing one (or several merged) scripts.
type ScriptParseResult struct {
	Characters   []Character     `json:"characters"`
	Warnings     []ParserWarning `json:"warnings"`
	Interactions []Interaction   `json:"interactions"`
	Metadata     ParseMetadata   `json:"metadata"`
}

// NewScriptParseResult returns a result with non-nil empty collections.
func NewScriptParseResult() ScriptParseResult {
	return ScriptParseResult{Characters: []Character{}, Warnings: []ParserWarning{}, Interactions: []Interaction{}}
}

// FileStatus reports how one input file fared.
type FileStatus struct {
	Name        string       `json:"name"`
	Status      string       `json:"status"` // "success" | "error"
	Error       string       `json:"error,omitempty"`
	ContentType string       `json:"contentType,omitempty"`
	Characters  int          `json:"characters"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ParsedScriptBundle is the multi-file ingestion result handed to the UI.
type ParsedScriptBundle struct {
	Result             ScriptParseResult `json:"result"`
	Groups             []CharacterGroup  `json:"characterGroups"`
	SimilarityMatches  []SimilarityMatch `json:"similarityMatches"`
	ExtractionWarnings []string          `json:"extractionWarnings"`
	Files              []FileStatus      `json:"files"`
	Diagnostics        []Diagnostic      `json:"diagnostics"`
	ParsedAt           time.Time         `json:"parsedAt"`
	BatchID            string            `json:"batchId,omitempty"`
}

// RoleForDatabase is the persistence projection of a cast role.
type RoleForDatabase struct {
	RoleName           string `json:"role_name"`
	RoleNameNormalized string `json:"role_name_normalized"`
	ReplicasNeeded     int    `json:"replicas_needed"`
	Source             string `json:"source"`
	// ParentRoleID holds the parent's normalized name; the persistence
	// adapter resolves it to the stored id.
	ParentRoleID string `json:"parent_role_id,omitempty"`
}

// ConflictForDatabase marks two roles that must not be voiced by the same actor.
type ConflictForDatabase struct {
	RoleNameA      string `json:"role_name_a"`
	RoleNameB      string `json:"role_name_b"`
	WarningType    string `json:"warning_type"`
	SceneReference string `json:"scene_reference,omitempty"`
}

// DbProjection is the full persistence payload.
type DbProjection struct {
	Roles     []RoleForDatabase     `json:"roles"`
	Conflicts []ConflictForDatabase `json:"conflicts"`
}
