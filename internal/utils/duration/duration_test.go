package duration

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"10m", 10 * time.Minute, true},
		{"2h", 2 * time.Hour, true},
		{"3d", 72 * time.Hour, true},
		{"30m reason", 30 * time.Minute, true},
		{"abc", 0, false},
		{"", 0, false},
		{"m10", 0, false},
		{"10w", 0, false},
	}
	for _, tc := range cases {
		got, ok := Parse(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("Parse(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDisplay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Second, "45 сек"},
		{90 * time.Second, "1 минута"},
		{2 * time.Minute, "2 минуты"},
		{5 * time.Minute, "5 минут"},
		{60 * time.Minute, "1 час"},
		{3 * time.Hour, "3 часа"},
		{12 * time.Hour, "12 часов"},
		{24 * time.Hour, "1 день"},
		{48 * time.Hour, "2 дня"},
		{7 * 24 * time.Hour, "7 дней"},
	}
	for _, tc := range cases {
		if got := Display(tc.in); got != tc.want {
			t.Errorf("Display(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPluralize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		n    int
		want string
	}{
		{1, "минута"},
		{2, "минуты"},
		{4, "минуты"},
		{5, "минут"},
		{11, "минут"},
		{12, "минут"},
		{14, "минут"},
		{21, "минута"},
		{22, "минуты"},
		{25, "минут"},
		{111, "минут"},
		{-3, "минуты"},
	}
	for _, tc := range cases {
		if got := Pluralize(tc.n, "минута", "минуты", "минут"); got != tc.want {
			t.Errorf("Pluralize(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}
