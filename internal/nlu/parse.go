package nlu

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfman30/autoparts-voice-agent/internal/slots"
)

type rawExtraction struct {
	Intent     string         `json:"intent"`
	Entities   map[string]any `json:"entities"`
	Confidence any            `json:"confidence"`
}

// decodeJSONObject accepts a bare JSON object or the first-to-last brace
// span of a response that wraps one in prose or code fences.
func decodeJSONObject(text string, v any) error {
	text = strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("nlu: decode embedded json: %w", err)
	}
	return nil
}

// ParseExtraction decodes a model response into a validated result.
func ParseExtraction(text string) (ExtractionResult, error) {
	var raw rawExtraction
	if err := decodeJSONObject(text, &raw); err != nil {
		return ExtractionResult{}, err
	}
	return ExtractionResult{
		Intent:     parseIntent(strings.ToLower(strings.TrimSpace(raw.Intent))),
		Entities:   sanitizeEntities(raw.Entities),
		Confidence: clampConfidence(raw.Confidence),
	}, nil
}

var entityKeys = map[string]slots.Key{
	"phone":         slots.Phone,
	"email":         slots.Email,
	"zip":           slots.Zip,
	"part":          slots.PartRequested,
	"partRequested": slots.PartRequested,
	"make":          slots.Make,
	"model":         slots.Model,
	"year":          slots.Year,
	"trim":          slots.Trim,
}

// sanitizeEntities drops anything that does not pass the slot's validator.
func sanitizeEntities(raw map[string]any) slots.Values {
	out := slots.Values{}
	for name, value := range raw {
		key, ok := entityKeys[name]
		if !ok {
			continue
		}
		text := entityText(value)
		if text == "" {
			continue
		}
		switch key {
		case slots.Phone:
			if phone := slots.NormalizePhone(text); slots.ValidPhone(phone) {
				out.Set(key, phone)
			}
		case slots.Email:
			if email := strings.ToLower(text); slots.ValidEmail(email) {
				out.Set(key, email)
			}
		case slots.Zip:
			if slots.ValidZip(text) {
				out.Set(key, text)
			}
		case slots.Year:
			if year := slots.MatchYear(text); year == text {
				out.Set(key, year)
			}
		default:
			out.Set(key, text)
		}
	}
	return out
}

func entityText(value any) string {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func clampConfidence(value any) float64 {
	var c float64
	switch v := value.(type) {
	case float64:
		c = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		c = parsed
	default:
		return 0
	}
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// MergeLocal fills entities the model left null with local pattern matches.
func MergeLocal(result ExtractionResult, utterance string) ExtractionResult {
	if result.Entities == nil {
		result.Entities = slots.Values{}
	}
	for key, value := range LocalEntities(utterance) {
		if !result.Entities.Filled(key) {
			result.Entities.Set(key, value)
		}
	}
	return result
}
