// Package analysis coerces loosely-typed LLM output into the canonical
// article analysis shape. Everything downstream assumes that shape.
package analysis

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// BadLinkMarker is the TL;DR the analyzer emits when the page was not an
// article. Records carrying it are purged instead of kept.
const BadLinkMarker = "Unknown - Bad Link?"

// ListFields must always hold a list after normalization.
var ListFields = []string{
	"full_summary_bullets",
	"history_overview",
	"people_mentioned",
	"organizations_involved",
	"allegations",
	"current_situation",
	"next_steps",
	"prevention_strategies",
	"discovery_questions",
}

var textFields = []string{
	"article_title",
	"date",
	"date_verification",
	"tl_dr",
	"summary",
	"fraud_indicator",
}

// legacy key -> current key; copied only when the current key is absent.
var aliases = [][2]string{
	{"summary", "tl_dr"},
	{"prevention", "prevention_strategies"},
}

// Normalize returns a copy of raw in canonical shape. It never fails: on
// an unexpected internal error the input is returned unchanged.
func Normalize(raw map[string]any) (out map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			out = raw
		}
	}()

	out = make(map[string]any, len(raw)+len(ListFields))
	for k, v := range raw {
		out[k] = v
	}

	for _, alias := range aliases {
		from, to := alias[0], alias[1]
		if present(out, to) || !present(out, from) {
			continue
		}
		out[to] = out[from]
	}

	for _, key := range textFields {
		val, ok := out[key]
		if !ok {
			continue
		}
		text, keep := coerceText(val)
		if !keep {
			delete(out, key)
			continue
		}
		if key == "fraud_indicator" {
			text = canonicalFraud(text)
		}
		out[key] = text
	}

	for _, key := range ListFields {
		out[key] = coerceList(out[key])
	}

	return out
}

func present(m map[string]any, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

func coerceList(val any) []any {
	switch t := val.(type) {
	case nil:
		return []any{}
	case []any:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return []any{}
		}
		switch parsed := parseLoose(s).(type) {
		case []any:
			return parsed
		case map[string]any:
			return []any{parsed}
		}
		return []any{s}
	case map[string]any:
		return []any{t}
	}

	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items
	}
	return []any{val}
}

// parseLoose tries strict JSON first, then the Python-literal dialect
// some models emit ('single quotes', True/False/None).
func parseLoose(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	converted, ok := literalToJSON(s)
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(converted), &v); err != nil {
		return nil
	}
	return v
}

func coerceText(val any) (string, bool) {
	switch t := val.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := coerceText(item); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " "), true
	case map[string]any:
		raw, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(raw), true
	default:
		return fmt.Sprint(t), true
	}
}

func canonicalFraud(s string) string {
	for _, level := range []string{"High", "Medium", "Low"} {
		if strings.EqualFold(strings.TrimSpace(s), level) {
			return level
		}
	}
	return "Unknown"
}
