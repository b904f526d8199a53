package agent

import (
	"testing"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSuggestions(t *testing.T) {
	want := []domain.TaskSuggestion{
		{StartTime: "08:00", EndTime: "10:00", Content: "高数第一章", Subject: "数学"},
		{StartTime: "10:15", EndTime: "11:45", Content: "阅读理解", Subject: "英语"},
	}
	plain := `[
		{"start_time": "08:00", "end_time": "10:00", "content": "高数第一章", "subject": "数学"},
		{"start_time": "10:15", "end_time": "11:45", "content": "阅读理解", "subject": "英语"}
	]`

	tests := []struct {
		name string
		raw  string
	}{
		{"plain", plain},
		{"fenced", "```json\n" + plain + "\n```"},
		{"bare fence", "```\n" + plain + "\n```"},
		{"unpadded clock", `[{"start_time":"8:00","end_time":"10:00","content":" 高数第一章 ","subject":"数学"},
			{"start_time":"10:15","end_time":"11:45","content":"阅读理解","subject":"英语"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSuggestions(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseSuggestionsEmptyArray(t *testing.T) {
	got, err := ParseSuggestions("[]")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseSuggestionsRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "明天先学数学"},
		{"object", `{"start_time":"08:00","end_time":"09:00","content":"x","subject":"y"}`},
		{"item not object", `["08:00"]`},
		{"missing field", `[{"start_time":"08:00","end_time":"09:00","content":"x"}]`},
		{"extra field", `[{"start_time":"08:00","end_time":"09:00","content":"x","subject":"y","note":"z"}]`},
		{"wrong key", `[{"start_time":"08:00","end_time":"09:00","content":"x","topic":"y"}]`},
		{"number field", `[{"start_time":8,"end_time":"09:00","content":"x","subject":"y"}]`},
		{"bad clock", `[{"start_time":"25:00","end_time":"26:00","content":"x","subject":"y"}]`},
		{"end before start", `[{"start_time":"10:00","end_time":"09:00","content":"x","subject":"y"}]`},
		{"zero length", `[{"start_time":"10:00","end_time":"10:00","content":"x","subject":"y"}]`},
		{"empty content", `[{"start_time":"08:00","end_time":"09:00","content":"  ","subject":"y"}]`},
		{"empty subject", `[{"start_time":"08:00","end_time":"09:00","content":"x","subject":""}]`},
		{"trailing data", `[] []`},
		{"one bad item rejects batch", `[{"start_time":"08:00","end_time":"09:00","content":"x","subject":"y"},
			{"start_time":"09:00","end_time":"08:00","content":"x","subject":"y"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSuggestions(tt.raw)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, domain.ErrMalformedSuggestion)

			var mal *domain.MalformedSuggestionsError
			require.ErrorAs(t, err, &mal)
			assert.Equal(t, tt.raw, mal.Raw)
			assert.NotEmpty(t, mal.Reason)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "[]", stripCodeFence("```json\n[]\n```"))
	assert.Equal(t, "[]", stripCodeFence("  []  "))
	assert.Equal(t, "```", stripCodeFence("```"))
}
