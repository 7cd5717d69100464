package main

import (
	"runtime/debug"
	"testing"
)

// TestResolveVersion covers the order in which version sources are consulted:
// ldflags first, then the module version recorded by go install, then "dev".
func TestResolveVersion(t *testing.T) {
	testCases := []struct {
		name    string
		ldflags string
		bi      *debug.BuildInfo
		want    string
	}{
		{
			name:    "ldflags win over build info",
			ldflags: "v1.2.3",
			bi:      &debug.BuildInfo{Main: debug.Module{Version: "v0.0.0"}},
			want:    "v1.2.3",
		},
		{
			// go install github.com/gauthierbraillon/feedex/cmd/feedex@v1.2.3
			name:    "build info used when ldflags is dev",
			ldflags: "dev",
			bi:      &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}},
			want:    "v1.2.3",
		},
		{
			name:    "empty ldflags treated as dev",
			ldflags: "",
			bi:      &debug.BuildInfo{Main: debug.Module{Version: "v2.0.0"}},
			want:    "v2.0.0",
		},
		{
			name:    "devel build info ignored",
			ldflags: "dev",
			bi:      &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			want:    "dev",
		},
		{
			name:    "nil build info",
			ldflags: "dev",
			want:    "dev",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := resolveVersion(tc.ldflags, tc.bi); got != tc.want {
				t.Errorf("resolveVersion(%q) = %q, want %q", tc.ldflags, got, tc.want)
			}
		})
	}
}
