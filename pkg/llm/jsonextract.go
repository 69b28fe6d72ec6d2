package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencedBlock strips a leading ```json or ``` fence, mirroring
// gemini.py's _extract_json_from_response regex strip of code fences.
var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// trailingComma matches a comma immediately before a closing bracket, the
// one normalization gemini.py's _clean_json_text applies before every parse
// attempt.
var trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// greedyObject is the last-resort regex extraction gemini.py falls back to:
// the widest brace-delimited span in the text.
var greedyObject = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON recovers a JSON object from free-form model output, following
// the exact cascade gemini.py's _extract_json_from_response implements:
// strip fences, find the first balanced {...} span by counting braces with
// string/escape awareness, clean trailing commas, then fall back through
// progressively more lenient extractors.
func ExtractJSON(text string) (map[string]any, error) {
	cleaned := stripFence(text)

	if span, ok := balancedObject(cleaned); ok {
		if obj, err := parseObject(cleanTrailingCommas(span)); err == nil {
			return obj, nil
		}
	}

	// raw_decode equivalent: find the first '{' and let the decoder consume
	// as much valid JSON as it can from there, ignoring trailing garbage.
	if idx := strings.IndexByte(cleaned, '{'); idx >= 0 {
		if obj, consumed, err := rawDecode(cleaned[idx:]); err == nil && consumed > 0 {
			return obj, nil
		}
	}

	if m := greedyObject.FindString(cleaned); m != "" {
		if obj, err := parseObject(cleanTrailingCommas(m)); err == nil {
			return obj, nil
		}
	}

	if span, ok := lineByLineBalance(cleaned); ok {
		if obj, err := parseObject(cleanTrailingCommas(span)); err == nil {
			return obj, nil
		}
	}

	excerpt := cleaned
	if len(excerpt) > 200 {
		excerpt = excerpt[:200] + "..."
	}
	return nil, fmt.Errorf("llm: could not extract a JSON object from model response: %q", excerpt)
}

func stripFence(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

func cleanTrailingCommas(s string) string {
	return trailingComma.ReplaceAllString(s, "$1")
}

func parseObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// balancedObject walks forward from the first '{', counting brace depth
// while tracking whether the scanner is inside a string literal (and
// whether the next rune is escaped), matching gemini.py's in_string/
// escape_next state machine. It returns the shortest balanced span; if the
// braces never balance, it falls back to the last '}' in the text.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escapeNext := false

	for i := start; i < len(s); i++ {
		ch := s[i]

		if escapeNext {
			escapeNext = false
			continue
		}

		switch {
		case ch == '\\' && inString:
			escapeNext = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '{':
			depth++
		case !inString && ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	last := strings.LastIndexByte(s, '}')
	if last > start {
		return s[start : last+1], true
	}
	return "", false
}

// rawDecode mimics json.JSONDecoder().raw_decode: parse the first valid
// JSON value from the start of s and report how many bytes it consumed,
// ignoring anything after.
func rawDecode(s string) (map[string]any, int, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, 0, err
	}
	return obj, int(dec.InputOffset()), nil
}

// lineByLineBalance re-scans line by line, skipping // comment lines (the
// model occasionally emits explanatory comments inside the JSON block) and
// accumulating a brace-balance count, matching gemini.py's final aggressive
// fallback.
func lineByLineBalance(s string) (string, bool) {
	lines := strings.Split(s, "\n")
	var buf strings.Builder
	depth := 0
	started := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") {
			continue
		}
		if !started {
			if idx := strings.IndexByte(line, '{'); idx >= 0 {
				started = true
				line = line[idx:]
			} else {
				continue
			}
		}

		buf.WriteString(line)
		buf.WriteByte('\n')

		for _, ch := range line {
			switch ch {
			case '{':
				depth++
			case '}':
				depth--
			}
		}
		if started && depth <= 0 {
			return buf.String(), true
		}
	}
	return "", false
}
