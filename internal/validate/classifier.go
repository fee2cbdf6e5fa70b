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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hausvox/hausvox-hub/internal/intent"
	"github.com/hausvox/hausvox-hub/internal/logging"
)

// ErrClassifierUnavailable covers every classifier-side failure:
// network errors, bad status codes, and unparseable responses. The
// engine degrades gracefully on it instead of rejecting the transcript.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// Verdict is the structured answer the classifier must return
type Verdict struct {
	IsValid               bool           `json:"is_valid"`
	Confidence            *float64       `json:"confidence"`
	HasAmbiguity          bool           `json:"has_ambiguity"`
	ClarificationNeeded   bool           `json:"clarification_needed"`
	ClarificationQuestion string         `json:"clarification_question"`
	Issues                []string       `json:"issues"`
	Intent                *intent.Record `json:"intent"`
}

// Classifier asks a remote model to judge one transcript
type Classifier interface {
	Classify(ctx context.Context, transcript string) (*Verdict, error)
}

// OllamaClassifier talks to an Ollama-compatible generate endpoint
type OllamaClassifier struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaClassifier creates a classifier client. The timeout bounds
// the whole HTTP exchange; on expiry the engine takes the degrade path.
func NewOllamaClassifier(baseURL, model string, timeout time.Duration) *OllamaClassifier {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2:3b"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OllamaClassifier{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Classify sends the transcript with a fixed instruction prompt and
// parses the strict-JSON answer
func (c *OllamaClassifier) Classify(ctx context.Context, transcript string) (*Verdict, error) {
	reqBody := ollamaRequest{
		Model:  c.model,
		Prompt: c.buildPrompt(transcript),
		Stream: false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: error marshaling request: %v", ErrClassifierUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: error creating request: %v", ErrClassifierUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.LogWarn("Failed to close classifier response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrClassifierUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading response: %v", ErrClassifierUnavailable, err)
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return nil, fmt.Errorf("%w: error unmarshaling response: %v", ErrClassifierUnavailable, err)
	}

	verdict, err := parseVerdict(ollamaResp.Response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	return verdict, nil
}

// buildPrompt creates the fixed instruction prompt for transcript
// validation
func (c *OllamaClassifier) buildPrompt(transcript string) string {
	return fmt.Sprintf(`You validate German voice commands for a smart-home system. Analyze the following transcript and respond with a JSON object.

Transcript: "%s"

Respond with ONLY a JSON object in this exact format:
{
  "is_valid": true,
  "confidence": 0.95,
  "has_ambiguity": false,
  "clarification_needed": false,
  "clarification_question": "",
  "issues": [],
  "intent": {
    "kind": "one of: command, query, navigation, web_search, greeting, general_question, unknown",
    "confidence": 0.95,
    "original_text": "the transcript verbatim",
    "summary": "a short German summary of what the user wants",
    "keywords": ["important", "words"],
    "slots": {
      "device": "licht, musik, heizung, etc. or empty string if none",
      "location": "wohnzimmer, küche, etc. or empty string if none",
      "value": "numeric or textual target value, or empty string"
    }
  }
}

Rules:
- is_valid is false only when the transcript cannot be a German utterance at all
- clarification_needed is true when the request is ambiguous; then clarification_question must contain a short German question
- confidence is 0.0-1.0 based on how clear the request is
- issues lists problems found, in German, or stays empty
- Only respond with the JSON object, no other text`, transcript)
}

// parseVerdict extracts the first balanced JSON object from the model
// output and fills defaults for fields the model omitted
func parseVerdict(response string) (*Verdict, error) {
	jsonStr, ok := extractJSONObject(response)
	if !ok {
		return nil, errors.New("no valid JSON found in response")
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(jsonStr), &verdict); err != nil {
		return nil, fmt.Errorf("error unmarshaling verdict JSON: %w", err)
	}

	if verdict.Issues == nil {
		verdict.Issues = []string{}
	}
	if verdict.Confidence != nil && (*verdict.Confidence < 0 || *verdict.Confidence > 1) {
		verdict.Confidence = nil
	}
	if verdict.ClarificationNeeded && verdict.ClarificationQuestion == "" {
		verdict.ClarificationQuestion = DefaultClarificationQuestion
	}
	if verdict.Intent != nil {
		verdict.Intent.Normalize()
	}
	return &verdict, nil
}

// extractJSONObject scans for the first balanced {...} span, tracking
// brace depth and skipping string literals so braces inside values do
// not terminate the span early
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
