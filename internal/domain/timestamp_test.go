package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampAcceptsLegacyFormats(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Time{
		`"2024-05-01T12:34:56.123456"`: time.Date(2024, 5, 1, 12, 34, 56, 123456000, time.UTC),
		`"2024-05-01T12:34:56"`:        time.Date(2024, 5, 1, 12, 34, 56, 0, time.UTC),
		`"2024-05-01 08:00:00"`:        time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		`"2024-05-01T12:34:56+02:00"`:  time.Date(2024, 5, 1, 10, 34, 56, 0, time.UTC),
		`"2025-01-02T03:04:05.5Z"`:     time.Date(2025, 1, 2, 3, 4, 5, 500000000, time.UTC),
		`"2024-05-01"`:                 time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		`""`:                           {},
		`null`:                         {},
	}

	for in, want := range cases {
		var ts Timestamp
		if err := json.Unmarshal([]byte(in), &ts); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if !ts.Equal(want) {
			t.Fatalf("%s: got %v, want %v", in, ts.Time, want)
		}
	}
}

func TestTimestampRejectsGarbage(t *testing.T) {
	t.Parallel()

	var ts Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Fatalf("expected error")
	}
	if err := json.Unmarshal([]byte(`42`), &ts); err == nil {
		t.Fatalf("expected error for number")
	}
}

func TestArticleWithNaiveAddedAt(t *testing.T) {
	t.Parallel()

	var a Article
	raw := `{"id":"x","url":"https://a.com","status":"Not Started","added_at":"2024-05-01T12:34:56.123456"}`
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if a.AddedAt.Year() != 2024 || a.AddedAt.Nanosecond() != 123456000 {
		t.Fatalf("unexpected added_at: %v", a.AddedAt.Time)
	}

	out, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Article
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if !back.AddedAt.Equal(a.AddedAt.Time) {
		t.Fatalf("round trip changed time: %v -> %v", a.AddedAt.Time, back.AddedAt.Time)
	}
}

