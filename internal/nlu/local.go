package nlu

import (
	"strings"

	"github.com/wolfman30/autoparts-voice-agent/internal/slots"
)

const (
	localConfidence         = 0.5
	localQuestionConfidence = 0.9
)

var (
	affirmativeWords = map[string]bool{
		"yes": true, "yeah": true, "yep": true, "yup": true, "ya": true, "haan": true,
		"ok": true, "okay": true, "sure": true, "correct": true, "right": true,
		"absolutely": true, "definitely": true, "confirm": true, "confirmed": true, "exactly": true,
	}
	negativeWords = map[string]bool{
		"no": true, "nope": true, "nah": true, "nahi": true, "not": true,
		"wrong": true, "incorrect": true, "isn't": true, "isnt": true,
	}
	negators = map[string]bool{"not": true, "isn't": true, "isnt": true, "never": true}

	priceWords    = map[string]bool{"price": true, "prices": true, "pricing": true, "cost": true, "costs": true, "rate": true, "rates": true}
	warrantyWords = map[string]bool{"warranty": true, "warranties": true, "guarantee": true, "guaranty": true}
)

func tokenize(text string) []string {
	text = strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
}

// LocalYesNo classifies a yes/no answer from keywords. A phrase such as
// "not correct" counts as a denial. ok is false when the utterance carries
// neither signal or both.
func LocalYesNo(utterance string) (intent Intent, ok bool) {
	var yes, no bool
	tokens := tokenize(utterance)
	for i, tok := range tokens {
		negated := i > 0 && negators[tokens[i-1]]
		switch {
		case affirmativeWords[tok] && negated:
			no = true
		case affirmativeWords[tok]:
			yes = true
		case negativeWords[tok]:
			next := i+1 < len(tokens) && affirmativeWords[tokens[i+1]]
			if negators[tok] && next {
				continue
			}
			no = true
		}
	}
	switch {
	case yes && !no:
		return IntentConfirm, true
	case no && !yes:
		return IntentDeny, true
	default:
		return IntentUnclear, false
	}
}

func localQuestion(tokens []string, utterance string) (Intent, bool) {
	for _, tok := range tokens {
		if priceWords[tok] {
			return IntentAskPrice, true
		}
		if warrantyWords[tok] {
			return IntentAskWarranty, true
		}
	}
	if strings.Contains(strings.ToLower(utterance), "how much") {
		return IntentAskPrice, true
	}
	return "", false
}

// LocalEntities extracts whatever the fixed patterns can find.
func LocalEntities(utterance string) slots.Values {
	entities := slots.Values{}
	entities.Set(slots.Phone, slots.NormalizePhone(utterance))
	entities.Set(slots.Email, slots.MatchEmail(utterance))
	entities.Set(slots.Zip, slots.MatchZip(utterance))
	entities.Set(slots.Year, slots.MatchYear(utterance))
	return entities
}

// LocalExtract interprets an utterance without a model.
func LocalExtract(utterance string) ExtractionResult {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return ExtractionResult{Intent: IntentUnclear, Entities: slots.Values{}}
	}
	result := ExtractionResult{
		Intent:     IntentProvideSlot,
		Entities:   LocalEntities(utterance),
		Confidence: localConfidence,
	}
	if intent, ok := localQuestion(tokenize(utterance), utterance); ok {
		result.Intent = intent
		result.Confidence = localQuestionConfidence
		return result
	}
	if intent, ok := LocalYesNo(utterance); ok {
		result.Intent = intent
	}
	return result
}
