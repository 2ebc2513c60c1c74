package natsadapter

import "testing"

func TestSnapshotSubject(t *testing.T) {
	if got := SnapshotSubject("cells"); got != "soundlines.snapshot.cells" {
		t.Errorf("unexpected subject %s", got)
	}
}

func TestParseRefreshKind(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "all", false},
		{"  ", "all", false},
		{"all", "all", false},
		{"Entities", "entities", false},
		{"cells\n", "cells", false},
		{"vehicles", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRefreshKind([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRefreshKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRefreshKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
