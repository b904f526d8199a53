package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/studyplan/internal/domain"
)

var suggestionFields = [...]string{"start_time", "end_time", "content", "subject"}

// ParseSuggestions validates a plan reply and converts it into suggestions.
// The reply is decoded as an untyped document first and must be a JSON array
// of objects carrying exactly start_time, end_time, content and subject, all
// strings. Times are normalized to HH:MM and must satisfy start < end.
// One surrounding Markdown code fence is tolerated.
//
// Any violation rejects the whole batch with *domain.MalformedSuggestionsError.
func ParseSuggestions(raw string) ([]domain.TaskSuggestion, error) {
	fail := func(format string, args ...any) error {
		return &domain.MalformedSuggestionsError{Raw: raw, Reason: fmt.Sprintf(format, args...)}
	}

	dec := json.NewDecoder(strings.NewReader(stripCodeFence(raw)))
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fail("reply is not JSON: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fail("unexpected data after JSON document")
	}

	items, ok := doc.([]any)
	if !ok {
		return nil, fail("top-level value is %s, want array", jsonKind(doc))
	}

	out := make([]domain.TaskSuggestion, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fail("item %d is %s, want object", i, jsonKind(item))
		}
		if len(obj) != len(suggestionFields) {
			return nil, fail("item %d has %d fields, want %d", i, len(obj), len(suggestionFields))
		}

		var vals [len(suggestionFields)]string
		for k, name := range suggestionFields {
			v, present := obj[name]
			if !present {
				return nil, fail("item %d is missing %q", i, name)
			}
			s, isString := v.(string)
			if !isString {
				return nil, fail("item %d field %q is %s, want string", i, name, jsonKind(v))
			}
			vals[k] = s
		}

		s := domain.TaskSuggestion{
			StartTime: vals[0],
			EndTime:   vals[1],
			Content:   strings.TrimSpace(vals[2]),
			Subject:   strings.TrimSpace(vals[3]),
		}
		var err error
		if s.StartTime, err = domain.NormalizeClock(strings.TrimSpace(s.StartTime)); err != nil {
			return nil, fail("item %d start_time: %v", i, err)
		}
		if s.EndTime, err = domain.NormalizeClock(strings.TrimSpace(s.EndTime)); err != nil {
			return nil, fail("item %d end_time: %v", i, err)
		}
		if s.StartTime >= s.EndTime {
			return nil, fail("item %d ends at %s before it starts at %s", i, s.EndTime, s.StartTime)
		}
		if s.Content == "" {
			return nil, fail("item %d has empty content", i)
		}
		if s.Subject == "" {
			return nil, fail("item %d has empty subject", i)
		}
		out = append(out, s)
	}
	return out, nil
}

// stripCodeFence removes one ```-fence (with optional language tag) around s.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return s
	}
	body := strings.TrimSpace(s[nl+1:])
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// compactJSON is used for logging rejected replies on one line.
func compactJSON(raw string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(stripCodeFence(raw))); err != nil {
		return truncate(strings.ReplaceAll(raw, "\n", " "), maxErrorBodyLog)
	}
	return truncate(buf.String(), maxErrorBodyLog)
}
