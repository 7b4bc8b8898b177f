package services

import "testing"

func TestAddMinutesClampsAtMidnight(t *testing.T) {
	cases := []struct {
		clock string
		n     int
		want  string
	}{
		{"07:30", 10, "07:40"},
		{"07:55", 10, "08:05"},
		{"23:55", 10, "23:59"},
		{"23:59", 1, "23:59"},
		{"bogus", 10, "bogus"},
	}
	for _, c := range cases {
		if got := addMinutes(c.clock, c.n); got != c.want {
			t.Errorf("addMinutes(%q, %d) = %q, want %q", c.clock, c.n, got, c.want)
		}
	}
}
