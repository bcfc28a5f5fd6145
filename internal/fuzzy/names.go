/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package fuzzy

import (
	"strings"
	"sync"
)

// nicknames maps formal first names to their common short forms.
var nicknames = map[string][]string{
	"WILLIAM":     {"BILL", "BILLY", "WILL", "WILLY", "LIAM"},
	"ROBERT":      {"BOB", "BOBBY", "ROB", "ROBBIE", "BERT"},
	"RICHARD":     {"RICK", "RICKY", "DICK", "RICH", "RICHIE"},
	"JAMES":       {"JIM", "JIMMY", "JAMIE"},
	"JOHN":        {"JOHNNY", "JACK", "JON"},
	"JONATHAN":    {"JON", "JONNY", "NATE"},
	"MICHAEL":     {"MIKE", "MIKEY", "MICK", "MICKEY"},
	"THOMAS":      {"TOM", "TOMMY"},
	"CHARLES":     {"CHARLIE", "CHUCK", "CHAS"},
	"JOSEPH":      {"JOE", "JOEY"},
	"EDWARD":      {"ED", "EDDIE", "TED", "TEDDY", "NED"},
	"THEODORE":    {"TED", "TEDDY", "THEO"},
	"DANIEL":      {"DAN", "DANNY"},
	"DAVID":       {"DAVE", "DAVEY"},
	"STEVEN":      {"STEVE", "STEVIE"},
	"STEPHEN":     {"STEVE", "STEVIE"},
	"ANTHONY":     {"TONY"},
	"NICHOLAS":    {"NICK", "NICKY"},
	"ALEXANDER":   {"ALEX", "SASHA", "XANDER"},
	"BENJAMIN":    {"BEN", "BENNY", "BENJI"},
	"SAMUEL":      {"SAM", "SAMMY"},
	"MATTHEW":     {"MATT", "MATTY"},
	"ANDREW":      {"ANDY", "DREW"},
	"PATRICK":     {"PAT", "PADDY"},
	"PETER":       {"PETE"},
	"GREGORY":     {"GREG"},
	"TIMOTHY":     {"TIM", "TIMMY"},
	"KENNETH":     {"KEN", "KENNY"},
	"RONALD":      {"RON", "RONNIE"},
	"DONALD":      {"DON", "DONNIE"},
	"ALBERT":      {"AL", "BERT"},
	"ALFRED":      {"AL", "ALFIE", "FRED"},
	"FREDERICK":   {"FRED", "FREDDIE", "FREDDY"},
	"HENRY":       {"HANK", "HARRY"},
	"HAROLD":      {"HARRY", "HAL"},
	"LAWRENCE":    {"LARRY"},
	"GERALD":      {"GERRY", "JERRY"},
	"FRANCIS":     {"FRANK", "FRANKIE"},
	"FRANKLIN":    {"FRANK"},
	"RAYMOND":     {"RAY"},
	"LEONARD":     {"LEN", "LENNY", "LEO"},
	"PHILIP":      {"PHIL"},
	"VINCENT":     {"VINCE", "VINNY"},
	"ZACHARY":     {"ZACH", "ZACK"},
	"ELIZABETH":   {"LIZ", "LIZZIE", "BETH", "BETTY", "ELIZA", "LISA"},
	"MARGARET":    {"MAGGIE", "MEG", "PEGGY", "MARGE"},
	"CATHERINE":   {"CATHY", "KATE", "KATIE", "KAT"},
	"KATHERINE":   {"KATHY", "KATE", "KATIE", "KAT"},
	"JENNIFER":    {"JEN", "JENNY"},
	"REBECCA":     {"BECKY", "BECCA"},
	"SUSAN":       {"SUE", "SUSIE"},
	"PATRICIA":    {"PAT", "PATTY", "TRISH"},
	"DEBORAH":     {"DEB", "DEBBIE"},
	"BARBARA":     {"BARB", "BARBIE"},
	"CHRISTINE":   {"CHRIS", "CHRISSY", "TINA"},
	"CHRISTOPHER": {"CHRIS", "KIT"},
	"VICTORIA":    {"VICKY", "TORI"},
	"ABIGAIL":     {"ABBY"},
	"SAMANTHA":    {"SAM", "SAMMY"},
	"ALEXANDRA":   {"ALEX", "SASHA", "LEXI"},
	"JESSICA":     {"JESS", "JESSIE"},
	"DOROTHY":     {"DOT", "DOTTIE", "DOROTHEA"},
	"EMILY":       {"EM", "EMMY"},
	"ELEANOR":     {"ELLIE", "NELL", "NORA"},
	"JACQUELINE":  {"JACKIE"},
	"JOSEPHINE":   {"JO", "JOSIE"},
	"MARY":        {"MOLLY", "POLLY", "MAMIE"},
	"ANNE":        {"ANNIE", "NAN", "NANCY"},
	"YOSEF":       {"YOSSI"},
	"אברהם":       {"אבי", "אברמי"},
	"יוסף":        {"יוסי"},
	"משה":         {"מוישה", "מושיקו"},
	"יעקב":        {"יענקל", "קובי"},
	"אליהו":       {"אלי"},
	"שמואל":       {"שמוליק", "מולי"},
	"אלישבע":      {"אלי", "שבי"},
}

// nicknameIndex maps every known first name (formal or short) to the formal
// names it may stand for. It is built once and never mutated.
var nicknameIndex = sync.OnceValue(func() map[string][]string {
	idx := map[string][]string{}
	add := func(k, formal string) {
		for _, f := range idx[k] {
			if f == formal {
				return
			}
		}
		idx[k] = append(idx[k], formal)
	}
	for formal, shorts := range nicknames {
		add(formal, formal)
		for _, s := range shorts {
			add(s, formal)
		}
	}
	return idx
})

// SameFirstName reports whether two first names resolve to a common formal
// name through the nickname table. Identical names are not nickname matches.
func SameFirstName(a, b string) bool {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	if a == b {
		return false
	}
	idx := nicknameIndex()
	for _, fa := range idx[a] {
		for _, fb := range idx[b] {
			if fa == fb {
				return true
			}
		}
	}
	return false
}

// titles are honorifics, ranks and kinship words stripped before comparing.
var titles = map[string]bool{
	"MR":        true, "MRS": true, "MS": true, "MISS": true, "MISTER": true, "DR": true, "DOCTOR": true,
	"PROF":      true, "PROFESSOR": true, "SIR": true, "DAME": true, "LADY": true, "LORD": true,
	"CAPTAIN":   true, "CAPT": true, "CPT": true, "SERGEANT": true, "SGT": true, "LIEUTENANT": true,
	"LT":        true, "COLONEL": true, "COL": true, "GENERAL": true, "GEN": true, "MAJOR": true, "CORPORAL": true,
	"PRIVATE":   true, "ADMIRAL": true, "COMMANDER": true, "OFFICER": true, "DETECTIVE": true, "DET": true,
	"INSPECTOR": true, "AGENT": true, "SHERIFF": true, "DEPUTY": true, "JUDGE": true, "NURSE": true,
	"REV":       true, "REVEREND": true, "FATHER": true, "BROTHER": true, "SISTER": true, "MOTHER": true,
	"AUNT":      true, "AUNTIE": true, "UNCLE": true, "GRANDMA": true, "GRANDPA": true, "GRANNY": true,
	"MOM":       true, "MUM": true, "DAD": true, "KING": true, "QUEEN": true, "PRINCE": true, "PRINCESS": true,
	"MADAME":    true, "MADAM": true, "MONSIEUR": true, "SENOR": true, "SENORA": true, "HERR": true, "FRAU": true,
	"מר":        true, "גברת": true, "דוקטור": true, "ד\"ר": true, "פרופסור": true, "דוד": true, "דודה": true,
	"סבא":       true, "סבתא": true, "אבא": true, "אמא": true, "המפקד": true, "סמל": true,
}

// StripTitles removes leading title words ("DR.", "CAPTAIN", "AUNT") from a
// normalized name. The last word is never removed.
func StripTitles(name string) string {
	words := strings.Fields(name)
	for len(words) > 1 && titles[strings.TrimSuffix(strings.ToUpper(words[0]), ".")] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}
