// Package llmjson decodes JSON objects out of free-form LLM replies.
//
// Models asked for "JSON only" still wrap replies in markdown fences, add a
// sentence of preamble, or leave a trailing comma behind. [Parse] strips
// those artefacts before decoding.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoObject is returned when the reply contains no {...} block at all.
var ErrNoObject = errors.New("llmjson: no JSON object found")

var (
	fenceRe         = regexp.MustCompile("```(?:json|JSON)?")
	trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)
)

// Parse extracts the outermost JSON object from raw and decodes it into v.
//
// Cleanup happens in order: markdown fences are removed, the text between
// the first '{' and the last '}' is taken, and decoding is attempted. If that
// fails, commas directly before '}' or ']' are dropped and decoding is tried
// once more.
func Parse(raw string, v any) error {
	obj, err := Extract(raw)
	if err != nil {
		return err
	}
	firstErr := json.Unmarshal([]byte(obj), v)
	if firstErr == nil {
		return nil
	}
	cleaned := trailingCommaRe.ReplaceAllString(obj, "$1")
	if cleaned == obj {
		return fmt.Errorf("llmjson: decode: %w", firstErr)
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("llmjson: decode after cleanup: %w", err)
	}
	return nil
}

// Extract returns the first '{' through the last '}' of raw after removing
// markdown code fences.
func Extract(raw string) (string, error) {
	text := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", ErrNoObject
	}
	return text[start : end+1], nil
}
