package main

import (
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"3600", time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := parseInterval(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseInterval(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseInterval(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
