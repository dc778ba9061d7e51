package version

import "testing"

func TestString(t *testing.T) {
	tests := []struct {
		info     Info
		expected string
	}{
		{Info{GitVersion: "v1.0.0"}, "v1.0.0"},
		{Info{GitVersion: "v1.0.0", GitCommit: "abc1234"}, "v1.0.0-abc1234"},
	}
	for _, tc := range tests {
		if got := tc.info.String(); got != tc.expected {
			t.Errorf("Expected %q, got %q", tc.expected, got)
		}
	}
	if Get().GoVersion == "" {
		t.Errorf("Expected a go version")
	}
}
