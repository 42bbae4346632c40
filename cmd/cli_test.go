// SPDX-License-Identifier: MIT
package cmd

import (
	"beatlamp/internal/config"
	"bytes"
	"strings"
	"testing"
)

func parse(t *testing.T, args ...string) *Options {
	t.Helper()
	opts, err := ParseArgs(args, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("ParseArgs(%v): %v", args, err)
	}
	return opts
}

func TestParseArgsCommands(t *testing.T) {
	tests := []struct {
		args        []string
		command     Command
		interactive bool
		replayFile  string
		realtime    bool
	}{
		{nil, CommandRun, false, "", false},
		{[]string{"list"}, CommandList, false, "", false},
		{[]string{"list", "--interactive"}, CommandList, true, "", false},
		{[]string{"replay", "take.wav"}, CommandReplay, false, "take.wav", false},
		{[]string{"replay", "--realtime", "take.wav"}, CommandReplay, false, "take.wav", true},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			opts := parse(t, tt.args...)
			if opts.Command != tt.command || opts.Interactive != tt.interactive ||
				opts.ReplayFile != tt.replayFile || opts.Realtime != tt.realtime {
				t.Errorf("got %+v", opts)
			}
		})
	}
}

func TestParseArgsVersion(t *testing.T) {
	var out bytes.Buffer
	opts, err := ParseArgs([]string{"--version"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Command != CommandNone {
		t.Errorf("Command = %q, want none", opts.Command)
	}
	if !strings.Contains(out.String(), "commit") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := [][]string{
		{"replay"},
		{"unknown"},
		{"--color", "1,2"},
		{"--color", "300,0,0"},
		{"--pixels", "many"},
	}
	for _, args := range tests {
		if _, err := ParseArgs(args, &bytes.Buffer{}); err == nil {
			t.Errorf("ParseArgs(%v) should fail", args)
		}
	}
}

func TestApplyOnlyChangedFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.SampleRate = 48000
	cfg.Lamp.Pixels = 30

	opts := parse(t, "--pixels", "8", "-e", "scroll", "--sensitivity", "0.7", "-r", "-v")
	if err := opts.Apply(&cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("unset flag overwrote sample rate: %v", cfg.Audio.SampleRate)
	}
	if cfg.Lamp.Pixels != 8 || cfg.Lamp.Effect != "scroll" || cfg.Detector.Sensitivity != 0.7 {
		t.Errorf("lamp %+v, sensitivity %v", cfg.Lamp, cfg.Detector.Sensitivity)
	}
	if !cfg.Recording.Enabled || !cfg.Debug {
		t.Error("record and verbose should be applied")
	}
}

func TestApplyValidates(t *testing.T) {
	cfg := config.Default()
	opts := parse(t, "--frames-per-buffer", "1000")
	if err := opts.Apply(&cfg); err == nil {
		t.Error("non power of two frames should fail validation")
	}

	cfg = config.Default()
	opts = parse(t, "--effect", "disco")
	if err := opts.Apply(&cfg); err == nil {
		t.Error("unknown effect should fail validation")
	}
}

func TestLampFlags(t *testing.T) {
	opts := parse(t)
	if opts.Color != nil || opts.BrightnessLevel != nil {
		t.Error("lamp settings should be nil when not given")
	}

	opts = parse(t, "--color", "10, 20,30", "--brightness-level", "0")
	if opts.Color == nil || *opts.Color != [3]int{10, 20, 30} {
		t.Errorf("Color = %v", opts.Color)
	}
	if opts.BrightnessLevel == nil || *opts.BrightnessLevel != 0 {
		t.Errorf("BrightnessLevel = %v", opts.BrightnessLevel)
	}
}
