/*
 * This file is part of Hausvox (https://github.com/hausvox/hausvox).
 * Copyright (C) 2025 Hausvox
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package validate

import (
	"strings"
	"unicode"
)

// Heuristic thresholds for skipping the remote classifier. The
// heuristics only ever decide to SKIP the classifier, never to reject a
// transcript outright.
const (
	bypassConfidenceThreshold = 0.85
	bypassGermanScoreMin      = 0.5
	diacriticBonus            = 0.1
)

// coreVocabulary covers the articles, pronouns, prepositions and
// household nouns that dominate spoken German smart-home commands
var coreVocabulary = map[string]bool{
	"der": true, "die": true, "das": true, "den": true, "dem": true, "des": true,
	"ein": true, "eine": true, "einen": true, "einem": true, "einer": true,
	"und": true, "oder": true, "aber": true, "nicht": true, "kein": true,
	"ich": true, "du": true, "er": true, "sie": true, "es": true, "wir": true,
	"mir": true, "mich": true, "dir": true, "uns": true,
	"im": true, "in": true, "an": true, "auf": true, "aus": true, "zu": true,
	"am": true, "um": true, "von": true, "mit": true, "für": true, "bei": true,
	"bitte": true, "mal": true, "jetzt": true, "gleich": true, "wieder": true,
	"alle": true, "alles": true, "etwas": true, "noch": true, "auch": true,
	"wie": true, "was": true, "wann": true, "wo": true, "wer": true, "warum": true,
	"ist": true, "sind": true, "war": true, "wird": true, "kann": true,
	"hat": true, "habe": true, "haben": true, "soll": true, "möchte": true,
	"licht": true, "lichter": true, "lampe": true, "musik": true, "radio": true,
	"fernseher": true, "heizung": true, "temperatur": true, "rollladen": true,
	"fenster": true, "tür": true, "steckdose": true, "wecker": true, "timer": true,
	"wohnzimmer": true, "schlafzimmer": true, "küche": true, "bad": true,
	"flur": true, "keller": true, "garten": true, "garage": true, "büro": true,
	"uhr": true, "spät": true, "heute": true, "morgen": true, "abend": true,
	"hallo": true, "guten": true, "gute": true, "tag": true, "nacht": true,
	"heller": true, "dunkler": true, "lauter": true, "leiser": true,
	"warm": true, "kalt": true, "hell": true, "dunkel": true,
	"grad": true, "prozent": true, "minuten": true, "stunden": true,
}

// knownVerbs lists imperative and finite forms common in voice commands
var knownVerbs = map[string]bool{
	"schalte": true, "schalt": true, "mach": true, "mache": true,
	"öffne": true, "schließe": true, "schließ": true,
	"spiele": true, "spiel": true, "stoppe": true, "stopp": true,
	"starte": true, "start": true, "pausiere": true,
	"dimme": true, "dimm": true, "stelle": true, "stell": true,
	"zeige": true, "zeig": true, "suche": true, "such": true,
	"erhöhe": true, "verringere": true, "senke": true,
	"aktiviere": true, "deaktiviere": true, "setze": true, "setz": true,
	"drehe": true, "dreh": true, "bringe": true, "bring": true,
	"sage": true, "sag": true, "lies": true, "gehe": true, "geh": true,
	"fahre": true, "fahr": true, "schicke": true, "erinnere": true,
	"wecke": true, "weck": true, "navigiere": true,
}

// greetingVocabulary covers salutations recognized without the
// classifier
var greetingVocabulary = []string{
	"hallo", "hi", "hey", "moin", "servus", "grüß dich", "grüß gott",
	"guten morgen", "guten tag", "guten abend", "gute nacht",
	"wie geht es dir", "wie gehts",
}

// Report bundles the heuristic verdicts for one transcript
type Report struct {
	GermanScore  float64
	HasVerb      bool
	GreetingLike bool
	NoiseLike    bool
	Bypass       bool
}

// Tokenize lowercases the text and splits it into letter-only words
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// GermanScore estimates how strongly a word list resembles spoken
// German: the ratio of core-vocabulary matches plus a small bonus when
// the original text carries German diacritics. Used only to decide
// whether the remote classifier can be skipped.
func GermanScore(text string, words []string) float64 {
	if len(words) == 0 {
		return 0
	}

	matches := 0
	for _, word := range words {
		if coreVocabulary[word] || knownVerbs[word] {
			matches++
		}
	}
	score := float64(matches) / float64(len(words))

	if strings.ContainsAny(text, "äöüßÄÖÜ") {
		score += diacriticBonus
	}
	if score > 1 {
		score = 1
	}
	return score
}

// HasLikelyVerb reports whether any word is a known command verb or
// carries a verb-like suffix
func HasLikelyVerb(words []string) bool {
	for _, word := range words {
		if knownVerbs[word] {
			return true
		}
		if len([]rune(word)) >= 5 && strings.HasSuffix(word, "en") {
			return true
		}
		if strings.HasSuffix(word, "iere") || strings.HasSuffix(word, "ieren") {
			return true
		}
	}
	return false
}

// IsGreetingLike reports whether the text opens with or contains a
// known salutation
func IsGreetingLike(text string, words []string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, greeting := range greetingVocabulary {
		if strings.HasPrefix(lower, greeting) {
			return true
		}
	}
	if len(words) <= 4 {
		for _, greeting := range greetingVocabulary {
			if strings.Contains(lower, greeting) {
				return true
			}
		}
	}
	return false
}

// LooksLikeNoise flags transcripts that resemble mis-segmented audio
// rather than speech: words with no vowels at all, all-vowel fragments,
// or long runs of a repeated character. A transcript that already
// scores as plausible German is never flagged.
func LooksLikeNoise(text string, words []string, score float64) bool {
	if score > bypassGermanScoreMin {
		return false
	}
	if len(words) == 0 {
		return true
	}

	if longestRun(text) >= 3 {
		return true
	}

	noisy := 0
	for _, word := range words {
		runes := []rune(word)
		vowels := countVowels(runes)
		switch {
		case vowels == 0 && len(runes) >= 2:
			noisy++
		case vowels == len(runes) && len(runes) >= 3:
			noisy++
		}
	}
	return noisy*2 >= len(words)
}

// Score runs all heuristics over one transcript and applies the bypass
// rule: skip the classifier iff confidence is high, the text scores as
// German, and it carries either a likely verb or a greeting.
func Score(text string, confidence float64) Report {
	words := Tokenize(text)
	report := Report{
		GermanScore:  GermanScore(text, words),
		HasVerb:      HasLikelyVerb(words),
		GreetingLike: IsGreetingLike(text, words),
	}
	report.NoiseLike = LooksLikeNoise(text, words, report.GermanScore)
	report.Bypass = confidence >= bypassConfidenceThreshold &&
		report.GermanScore > bypassGermanScoreMin &&
		(report.HasVerb || report.GreetingLike)
	return report
}

func countVowels(runes []rune) int {
	count := 0
	for _, r := range runes {
		switch r {
		case 'a', 'e', 'i', 'o', 'u', 'ä', 'ö', 'ü', 'y':
			count++
		}
	}
	return count
}

func longestRun(text string) int {
	longest, current := 0, 0
	var prev rune
	for _, r := range strings.ToLower(text) {
		if !unicode.IsLetter(r) {
			current = 0
			prev = 0
			continue
		}
		if r == prev {
			current++
		} else {
			current = 1
			prev = r
		}
		if current > longest {
			longest = current
		}
	}
	return longest
}
