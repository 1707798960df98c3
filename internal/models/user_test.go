package models

import (
	"testing"
	"time"
)

func TestUserAge(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	dob := func(year int, month time.Month, day int) *time.Time {
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		return &d
	}

	cases := []struct {
		name string
		dob  *time.Time
		want int
	}{
		{"birthday passed this year", dob(2010, 3, 1), 16},
		{"birthday later this year", dob(2010, 9, 1), 15},
		{"birthday today", dob(2010, 6, 15), 16},
		{"birthday tomorrow", dob(2010, 6, 16), 15},
		{"no date of birth", nil, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user := &User{DateOfBirth: tc.dob}
			if got := user.Age(now); got != tc.want {
				t.Fatalf("Age = %d, want %d", got, tc.want)
			}
		})
	}
}
