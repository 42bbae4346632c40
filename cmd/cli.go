// SPDX-License-Identifier: MIT
package cmd

import (
	"beatlamp/internal/config"
	"beatlamp/internal/led"
	"beatlamp/pkg/build"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Command names the action selected on the command line.
type Command string

const (
	CommandRun    Command = "run"
	CommandList   Command = "list"
	CommandReplay Command = "replay"
	// CommandNone is returned when cobra handled the invocation itself,
	// e.g. --help or --version.
	CommandNone Command = ""
)

// Options is the parsed command line. Flags override the values loaded
// from the configuration file only when they were given explicitly.
type Options struct {
	Command     Command
	ConfigPath  string
	Verbose     bool
	Interactive bool
	ReplayFile  string
	Realtime    bool
	OutputFile  string

	// Lamp settings applied through the controller after startup.
	Color           *[3]int
	BrightnessLevel *int

	flags *pflag.FlagSet
	cfg   config.Config
	color string
}

// ParseArgs parses args (without the program name). Help and version
// output go to out.
func ParseArgs(args []string, out io.Writer) (*Options, error) {
	buildInfo := build.GetBuildInfo()
	opts := &Options{cfg: config.Default()}
	def := config.Default()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandRun
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandList
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false,
		"Pick a device in an interactive list")
	rootCmd.AddCommand(listCmd)

	replayCmd := &cobra.Command{
		Use:   "replay <file.wav>",
		Short: "Feed a WAV file through the beat pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandReplay
			opts.ReplayFile = args[0]
			return nil
		},
	}
	replayCmd.Flags().BoolVar(&opts.Realtime, "realtime", false,
		"Pace blocks at the file's sample rate")
	rootCmd.AddCommand(replayCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", "",
		"Path to a YAML configuration file")

	// Audio Device Configuration
	pf.IntVarP(&opts.cfg.Audio.InputDevice, "device", "d", def.Audio.InputDevice,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&opts.cfg.Audio.InputChannels, "channels", "c", def.Audio.InputChannels,
		"Number of channels to capture (down-mixed to mono)")
	pf.Float64VarP(&opts.cfg.Audio.SampleRate, "sample-rate", "s", def.Audio.SampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&opts.cfg.Audio.FramesPerBuffer, "frames-per-buffer", "b", def.Audio.FramesPerBuffer,
		"Frames per buffer; also the transform size (power of two)")
	pf.BoolVarP(&opts.cfg.Audio.LowLatency, "low-latency", "l", def.Audio.LowLatency,
		"Use low latency mode for real-time processing")

	// Recording Configuration
	pf.BoolVarP(&opts.cfg.Recording.Enabled, "record", "r", def.Recording.Enabled,
		"Record audio from the input device")
	pf.StringVarP(&opts.OutputFile, "output", "o", "",
		"Recording file name. Default is <output_dir>/beatlamp_YYYYMMDD_HHMMSS.wav")

	// Lamp Configuration
	pf.StringVarP(&opts.cfg.Lamp.Effect, "effect", "e", def.Lamp.Effect,
		fmt.Sprintf("Startup effect %v", led.EffectTypes()))
	pf.StringVar(&opts.color, "color", "",
		"Lamp colour as r,g,b (0-255 each)")
	pf.Int("brightness-level", 0, "Brightness level 0-8")
	pf.Float64Var(&opts.cfg.Detector.Sensitivity, "sensitivity", def.Detector.Sensitivity,
		"Beat detector sensitivity (0.5-2.0)")
	pf.IntVarP(&opts.cfg.Lamp.Pixels, "pixels", "p", def.Lamp.Pixels,
		"Number of pixels on the strip")
	pf.BoolVarP(&opts.cfg.Lamp.Terminal, "terminal", "t", def.Lamp.Terminal,
		"Mirror the strip in the terminal")

	// Debug Configuration
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false,
		"Show verbose output")

	opts.flags = pf
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	if opts.color != "" {
		r, g, b, err := config.ParseRGB(opts.color)
		if err != nil {
			return nil, fmt.Errorf("--color: %w", err)
		}
		opts.Color = &[3]int{r, g, b}
	}
	if pf.Changed("brightness-level") {
		level, _ := pf.GetInt("brightness-level")
		opts.BrightnessLevel = &level
	}
	return opts, nil
}

// flagFields maps each overriding flag to the config field it sets.
var flagFields = []struct {
	flag  string
	apply func(dst, src *config.Config)
}{
	{"device", func(d, s *config.Config) { d.Audio.InputDevice = s.Audio.InputDevice }},
	{"channels", func(d, s *config.Config) { d.Audio.InputChannels = s.Audio.InputChannels }},
	{"sample-rate", func(d, s *config.Config) { d.Audio.SampleRate = s.Audio.SampleRate }},
	{"frames-per-buffer", func(d, s *config.Config) { d.Audio.FramesPerBuffer = s.Audio.FramesPerBuffer }},
	{"low-latency", func(d, s *config.Config) { d.Audio.LowLatency = s.Audio.LowLatency }},
	{"record", func(d, s *config.Config) { d.Recording.Enabled = s.Recording.Enabled }},
	{"effect", func(d, s *config.Config) { d.Lamp.Effect = s.Lamp.Effect }},
	{"sensitivity", func(d, s *config.Config) { d.Detector.Sensitivity = s.Detector.Sensitivity }},
	{"pixels", func(d, s *config.Config) { d.Lamp.Pixels = s.Lamp.Pixels }},
	{"terminal", func(d, s *config.Config) { d.Lamp.Terminal = s.Lamp.Terminal }},
}

// Apply copies explicitly set flags into cfg and validates the result.
func (o *Options) Apply(cfg *config.Config) error {
	for _, f := range flagFields {
		if o.flags != nil && o.flags.Changed(f.flag) {
			f.apply(cfg, &o.cfg)
		}
	}
	if o.Verbose {
		cfg.Debug = true
	}
	return cfg.Validate()
}
