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
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"simple command", "Schalte das Licht ein", []string{"schalte", "das", "licht", "ein"}},
		{"punctuation stripped", "Wie spät ist es?", []string{"wie", "spät", "ist", "es"}},
		{"empty", "", nil},
		{"only punctuation", "?! ...", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := Tokenize(tt.text)
			if len(words) != len(tt.expected) {
				t.Fatalf("Expected %d words, got %d: %v", len(tt.expected), len(words), words)
			}
			for i, word := range words {
				if word != tt.expected[i] {
					t.Errorf("Word %d: expected %q, got %q", i, tt.expected[i], word)
				}
			}
		})
	}
}

func TestGermanScore(t *testing.T) {
	tests := []struct {
		name string
		text string
		min  float64
		max  float64
	}{
		{"full command", "Schalte das Licht im Wohnzimmer ein", 0.9, 1.0},
		{"english text", "turn on the living room lights please", 0.0, 0.2},
		{"empty", "", 0.0, 0.0},
		{"diacritics only", "äöü ßß", 0.05, 0.2},
		{"mixed", "mach the Licht on", 0.4, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := Tokenize(tt.text)
			score := GermanScore(tt.text, words)
			if score < tt.min || score > tt.max {
				t.Errorf("Expected score in [%f, %f], got %f", tt.min, tt.max, score)
			}
		})
	}
}

func TestHasLikelyVerb(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{"imperative", "schalte das Licht ein", true},
		{"short imperative", "mach die Musik lauter", true},
		{"infinitive suffix", "Musik abspielen bitte", true},
		{"ieren suffix", "das Licht aktivieren", true},
		{"no verb", "das Licht im Bad", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasLikelyVerb(Tokenize(tt.text)); got != tt.expected {
				t.Errorf("HasLikelyVerb(%q) = %t, expected %t", tt.text, got, tt.expected)
			}
		})
	}
}

func TestIsGreetingLike(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{"hallo prefix", "Hallo wie geht es dir", true},
		{"guten morgen", "Guten Morgen", true},
		{"embedded in short text", "na dann guten Abend", true},
		{"command", "Schalte das Licht ein", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsGreetingLike(tt.text, Tokenize(tt.text)); got != tt.expected {
				t.Errorf("IsGreetingLike(%q) = %t, expected %t", tt.text, got, tt.expected)
			}
		})
	}
}

func TestLooksLikeNoise(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{"diacritic fragments", "äöü ßß", true},
		{"repeated characters", "aaaa bbb", true},
		{"consonant cluster", "krz pfft", true},
		{"real command", "Schalte das Licht im Wohnzimmer ein", false},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := Tokenize(tt.text)
			score := GermanScore(tt.text, words)
			if got := LooksLikeNoise(tt.text, words, score); got != tt.expected {
				t.Errorf("LooksLikeNoise(%q) = %t, expected %t", tt.text, got, tt.expected)
			}
		})
	}
}

func TestScore_BypassRule(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		confidence float64
		bypass     bool
	}{
		{"clear command at high confidence", "Schalte das Licht im Wohnzimmer ein", 0.95, true},
		{"clear command at low confidence", "Schalte das Licht im Wohnzimmer ein", 0.7, false},
		{"greeting at high confidence", "Guten Morgen", 0.9, true},
		{"noise at high confidence", "äöü ßß", 0.9, false},
		{"german without verb or greeting", "das Licht im Bad", 0.95, false},
		{"at exact threshold", "Schalte das Licht ein", 0.85, true},
		{"just below threshold", "Schalte das Licht ein", 0.8499, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Score(tt.text, tt.confidence)
			if report.Bypass != tt.bypass {
				t.Errorf("Score(%q, %f).Bypass = %t, expected %t (report: %+v)",
					tt.text, tt.confidence, report.Bypass, tt.bypass, report)
			}
		})
	}
}
