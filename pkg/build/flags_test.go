// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"strings"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origInfo    Info
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	if buildInfo != nil {
		origInfo = *buildInfo
	}

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	if buildInfo != nil {
		*buildInfo = origInfo
	}

	os.Exit(exitCode)
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsg  string
	}{
		{"Missing BuildName", "", "2025-04-13", "abcdef123", "v1.0.0", "BuildName is required"},
		{"Missing BuildTime", "beatlamp", "", "abcdef123", "v1.0.0", "BuildTime is required"},
		{"Missing BuildCommit", "beatlamp", "2025-04-13", "", "v1.0.0", "BuildCommit is required"},
		{"Missing BuildVersion", "beatlamp", "2025-04-13", "abcdef123", "", "BuildVersion is required"},
		{"Success Case", "beatlamp", "2025-04-13", "abcdef123", "v1.0.0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildInfo = &Info{Name: "beatlamp", Time: "unknown", Commit: "unknown", Version: "dev"}

			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()

			if tt.wantErrMsg != "" {
				if err == nil {
					t.Fatalf("Initialize() expected error, got nil")
				}
				if err.Error() != tt.wantErrMsg {
					t.Errorf("Initialize() error = %v, want %v", err, tt.wantErrMsg)
				}
				if buildInfo.Version != "dev" {
					t.Errorf("failed Initialize() must keep defaults, got version %q", buildInfo.Version)
				}
				return
			}

			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}

			if buildInfo.Name != tt.buildName {
				t.Errorf("Name = %v, want %v", buildInfo.Name, tt.buildName)
			}
			if buildInfo.Time != tt.buildTime {
				t.Errorf("Time = %v, want %v", buildInfo.Time, tt.buildTime)
			}
			if buildInfo.Commit != tt.buildCommit {
				t.Errorf("Commit = %v, want %v", buildInfo.Commit, tt.buildCommit)
			}
			if buildInfo.Version != tt.buildVer {
				t.Errorf("Version = %v, want %v", buildInfo.Version, tt.buildVer)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "v1.2.3", Commit: "abc", Time: "2025-04-13"}
	got := info.String()
	for _, want := range []string{"v1.2.3", "abc", "2025-04-13"} {
		if !strings.Contains(got, want) {
			t.Errorf("Info.String() = %q, missing %q", got, want)
		}
	}
}
