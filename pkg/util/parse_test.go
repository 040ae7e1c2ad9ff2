package util

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	cases := map[string]time.Time{
		"2024-10-10T10:10:10Z":      want,
		"2024-10-10T12:10:10+02:00": want,
		"2024-10-10T10:10:10.250Z":  want.Add(250 * time.Millisecond),
		"1728555010":                want,
	}
	for in, exp := range cases {
		got, ok := ParseTime(in)
		if !ok {
			t.Fatalf("%q: not parsed", in)
		}
		if !got.Equal(exp) || got.Location() != time.UTC {
			t.Fatalf("%q: got %v, want %v", in, got, exp)
		}
	}
}

func TestParseTimeRejects(t *testing.T) {
	for _, s := range []string{"", "yesterday", "-5", "0", "2024-10-10"} {
		if _, ok := ParseTime(s); ok {
			t.Fatalf("%q should not parse", s)
		}
	}
}

func TestIntOr(t *testing.T) {
	if IntOr("12", 3) != 12 || IntOr(" 7 ", 3) != 7 || IntOr("x", 3) != 3 || IntOr("", 3) != 3 {
		t.Fatalf("unexpected parse results")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a:9092, ,b:9092,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("unexpected %v", got)
	}
	if SplitList("") != nil || SplitList(" , ") != nil {
		t.Fatalf("blank input should give nil")
	}
}
