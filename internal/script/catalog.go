/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "regexp"

// exclusion is a labelled pattern for screenplay furniture that looks like a cue.
type exclusion struct {
	label string
	re    *regexp.Regexp
}

// exclusions are matched against the upper-cased candidate cue.
var exclusions = []exclusion{
	{"transition", regexp.MustCompile(`^(?:CUT|FADE|DISSOLVE|SMASH CUT|MATCH CUT|JUMP CUT|WIPE|TIME CUT|FLASH CUT|HARD CUT)(?: TO)?(?: BLACK| WHITE)?[:.]?$`)},
	{"transition", regexp.MustCompile(`^FADE (?:IN|OUT|UP|DOWN)[:.]?$|^IRIS(?: IN| OUT)?[:.]?$|^[A-Z ]+ TO:$`)},
	{"transition", regexp.MustCompile(`^(?:THE )?END(?: OF [A-Z0-9 ]+)?\.?$|^(?:TO BE )?CONTINUED[:.]?$|^\(?(?:MORE|CONT[’']?D|CONTINUED)\)?$|^(?:END|OPENING) CREDITS$`)},
	{"camera", regexp.MustCompile(`^(?:CLOSE ON|CLOSE UP|CLOSE-UP|CLOSEUP|ECU|EXTREME CLOSE[- ]UP|ANGLE ON|NEW ANGLE|REVERSE ANGLE|WIDE SHOT|WIDE ON|MEDIUM SHOT|LONG SHOT|TWO SHOT|TRACKING SHOT|PAN TO|TILT UP|TILT DOWN|ZOOM IN|ZOOM OUT|DOLLY IN|DOLLY OUT|CRANE SHOT|AERIAL SHOT|AERIAL VIEW|ESTABLISHING SHOT|OVER THE SHOULDER|BACK TO SCENE|MOMENTS LATER|SLOW MOTION|SLO-MO|FREEZE FRAME|SPLIT SCREEN)\b`)},
	{"camera", regexp.MustCompile(`^(?:WIDE|INSERT|CLOSE|ANGLE|PAN|ZOOM|TRACKING|LATER|CONTINUOUS|SAME|OTS)[:.]?$|\bPOV\b|^(?:INSERT|CLOSE)\s*[-:]`)},
	{"montage", regexp.MustCompile(`^(?:BEGIN |START |END )?(?:MONTAGE|FLASHBACK|DREAM SEQUENCE|SERIES OF SHOTS|INTERCUT|QUICK CUTS|FLASH FORWARD)\b|^BACK TO (?:PRESENT|REALITY|NOW)\b`)},
	{"super", regexp.MustCompile(`^(?:SUPER|SUPERIMPOSE|TITLE|TITLE CARD|CARD|CHYRON|CAPTION|SUBTITLE|LOWER THIRD|TEXT|ON SCREEN TEXT|TEXT ON SCREEN|GRAPHIC|SIGN|NOTE|SFX|SOUND|MUSIC|FX)\s*:|^(?:SUPER|SUPERIMPOSE|TITLE CARD|CHYRON|SUBTITLES?)$`)},
	{"structure", regexp.MustCompile(`^(?:ACT|PART|CHAPTER|EPISODE|SCENE|SEQUENCE|REEL)\s+(?:\d+|[IVXLC]+|ONE|TWO|THREE|FOUR|FIVE|SIX|SEVEN|EIGHT|NINE|TEN)\b|^(?:END OF ACT|TEASER|COLD OPEN|PROLOGUE|EPILOGUE|TAG|INTERMISSION|FINALE)\b|^OMITTED$`)},
	{"time", regexp.MustCompile(`^(?:DAY|NIGHT|DAWN|DUSK|MORNING|EVENING|AFTERNOON|SUNRISE|SUNSET|MIDNIGHT|NOON|LATER THAT (?:DAY|NIGHT))[.:]?$`)},
	{"misc", regexp.MustCompile(`^(?:BLACK|BLACK SCREEN|WHITE|SILENCE|BEAT|PAUSE|BLACKOUT|TITLES|CREDITS)[.:]?$`)},
}

// excluded returns the label of the first exclusion matching cue.
func excluded(cue string) (string, bool) {
	for _, e := range exclusions {
		if e.re.MatchString(cue) {
			return e.label, true
		}
	}
	return "", false
}

// Delivery and device extensions removed during name normalization.
var reExtension = regexp.MustCompile(`(?i)\s*\((?:V\.?\s?O\.?|O\.?\s?S\.?|O\.?\s?C\.?|V\.O\./O\.S\.|O\.S\./V\.O\.|CONT[’']?D\.?|CONT\.|CONTINUED|CONTINUING|MORE|PRE-?LAP|FILTERED|SUBTITLED|ON (?:THE )?(?:PHONE|RADIO|TV|SCREEN|SPEAKER|INTERCOM|COMMS)|OVER (?:THE )?(?:PHONE|RADIO|INTERCOM)|INTO (?:THE )?(?:PHONE|RADIO)|THROUGH [A-Z ]+|OFF(?:[- ]?SCREEN)?|WHISPER(?:S|ING)?|SINGING|SINGS|SHOUTING|YELLING|LAUGHING|CRYING|SOBBING|QUIETLY|LOUDLY|ANGRY|ANGRILY|IN [A-Z]+)\)`)

// Parentheticals that mark an age or time-frame variant of a character.
// They survive normalization so the variant stays a distinct role.
var rePreservedParen = regexp.MustCompile(`^(?:YOUNG(?:ER)?|OLD(?:ER)?|AGE\s*\d+|\d{1,3}|ELDERLY|CHILD|KID|TEEN(?:AGER)?|ADULT|FLASHBACK|DREAM|FANTASY|MEMORY|NARRATING|NARRATOR|PAST|FUTURE)$`)

var (
	reTrailingParenGroup = regexp.MustCompile(`\s*\(([^()]*)\)\s*$`)
	reHashSuffix         = regexp.MustCompile(`\s*#\s*\d+$`)
	reAnyParen           = regexp.MustCompile(`\([^()]*\)`)
)

// variantPatterns derive a parent name from a variant cue, in order.
var variantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:YOUNG|YOUNGER|OLD|OLDER|LITTLE|ADULT|TEEN|TEENAGE|BABY|ELDERLY|KID)\s+(.+)$`),
	regexp.MustCompile(`^(.+?)\s*\((?:YOUNG(?:ER)?|OLD(?:ER)?|AGE\s*\d+|\d{1,3}|ELDERLY|CHILD|KID|TEEN(?:AGER)?|ADULT)\)$`),
	regexp.MustCompile(`^(.+?)'S VOICE$`),
	regexp.MustCompile(`^VOICE OF (.+)$`),
	regexp.MustCompile(`^(.+?)\s*\((?:FLASHBACK|DREAM|FANTASY|MEMORY|NARRATING|NARRATOR|PAST|FUTURE)\)$`),
}

// groupPatterns recognize cues spoken by several people at once.
var groupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:ALL|EVERYONE|EVERYBODY|BOTH|OTHERS|TOGETHER|CROWD|CHORUS|ENSEMBLE|VOICES|GROUP|AUDIENCE|MOB|KIDS|CHILDREN|PEOPLE|STUDENTS|SOLDIERS|GUARDS|VILLAGERS|PASSENGERS|REPORTERS|FANS|TEAM|CLASS|FAMILY|BAND|CHOIR|כולם|קהל|מקהלה|ילדים)$`),
	regexp.MustCompile(`^(?:ALL|BOTH|EVERYONE)\b`),
	regexp.MustCompile(`^(?:\d+|TWO|THREE|FOUR|FIVE|SIX|SEVERAL|MANY|SOME|VARIOUS|OTHER|MORE)\s+\S+S$`),
	regexp.MustCompile(`\b(?:CROWD|CHORUS|GROUP|MOB|GANG|ENSEMBLE|VOICES)\b`),
}

// cueShape is one accepted cue form; raw shapes match the untrimmed line.
type cueShape struct {
	name string
	re   *regexp.Regexp
	raw  bool
}

var cueShapes = []cueShape{
	{name: "plain", re: regexp.MustCompile(`^([A-Z][A-Za-z0-9 .'&/\-]*[A-Z0-9.'](?:\s*\([^()]*\))*)$`)},
	{name: "colon", re: regexp.MustCompile(`^([A-Z][A-Za-z0-9 .'&/\-]*[A-Z0-9.'](?:\s*\([^()]*\))*)\s*:$`)},
	{name: "tab", re: regexp.MustCompile(`^\t+([A-Z][A-Z0-9 .'\-]+)\s*$`), raw: true},
	{name: "numbered", re: regexp.MustCompile(`^([A-Z][A-Z .'\-]*\s#?\d{1,3})$`)},
	{name: "counted", re: regexp.MustCompile(`^(\d{1,3}\s+[A-Z][A-Z .'\-]*[A-Z.'](?:\s*\([^()]*\))*)$`)},
	{name: "ordinal", re: regexp.MustCompile(`^(\d{1,2}(?:ST|ND|RD|TH)\s+[A-Z][A-Z .'\-]*)$`)},
}

// commonShortWords are 2-3 letter words that only count as cues when centered
// and followed by dialogue.
var commonShortWords = map[string]bool{}

func init() {
	for _, w := range []string{
		"AN", "AT", "BE", "BY", "DO", "GO", "HE", "IF", "IN", "IS", "IT", "ME", "MY", "NO", "OF", "OH", "OK",
		"ON", "OR", "SO", "TO", "UP", "US", "WE", "YES", "THE", "AND", "BUT", "FOR", "NOT", "YOU", "ARE",
		"WAS", "HIS", "HER", "SHE", "HOW", "WHY", "WHO", "NOW", "OUT", "OFF", "HEY", "WOW", "OOH", "AAH", "UGH", "HMM",
	} {
		commonShortWords[w] = true
	}
}

// Lowercase name particles that do not disqualify a cue.
var nameParticles = map[string]bool{
	"von": true, "van": true, "de": true, "la": true, "da": true, "di": true, "del": true, "der": true,
	"den": true, "le": true, "du": true, "st": true, "bin": true, "al": true, "ibn": true, "dos": true,
}

var reParticlePrefix = regexp.MustCompile(`^(?:Mc|Mac|O'|D')\p{Lu}`)
