// SPDX-License-Identifier: MIT
//
// Package build carries the metadata stamped into the beatlamp binary at
// link time: application name, build timestamp, Git commit and semantic
// version. Values are injected with -ldflags, for example:
//
//	go build -ldflags "-X beatlamp/pkg/build.buildName=beatlamp \
//	    -X beatlamp/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds run with the defaults below.
package build

import (
	"errors"
	"fmt"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the version line printed by --version.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:        "beatlamp",
		Description: "Audio-reactive LED strip driver",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize validates and copies build information from ldflags variables.
// It returns an error naming the first missing flag; callers may treat
// that as a development build and keep the defaults.
func Initialize() error {
	if buildName == "" {
		return errors.New("BuildName is required")
	}
	if buildTime == "" {
		return errors.New("BuildTime is required")
	}
	if buildCommit == "" {
		return errors.New("BuildCommit is required")
	}
	if buildVersion == "" {
		return errors.New("BuildVersion is required")
	}

	buildInfo.Name = buildName
	buildInfo.Time = buildTime
	buildInfo.Commit = buildCommit
	buildInfo.Version = buildVersion

	return nil
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() *Info {
	return buildInfo
}
