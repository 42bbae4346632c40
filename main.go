// SPDX-License-Identifier: MIT
package main

import (
	"beatlamp/cmd"
	"beatlamp/internal/audio"
	"beatlamp/internal/config"
	"beatlamp/internal/log"
	"beatlamp/internal/tui"
	"beatlamp/pkg/build"
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

// main is the entry point for the beatlamp application.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands (device listing) if requested
//   - Assemble detector, LED engine, controller and transports
//
// 2. Concurrent Phase (Hot Path):
//   - Start the capture stream (or replay a file)
//   - Start recording if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording and the capture stream
//   - Close the pipeline
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("Build: %v, using development build info", err)
	}

	// One thread for the capture callback, one for everything else.
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs(os.Args[1:], os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts.Command == cmd.CommandNone {
		return
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := opts.Apply(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Configure(cfg.LogLevel, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.Command {
	case cmd.CommandList:
		err = runList(opts)
	case cmd.CommandReplay:
		err = runReplay(ctx, cfg, opts)
	default:
		err = runLive(ctx, cfg, opts)
	}
	if err != nil {
		log.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

// runList prints the host devices, or lets the user pick one.
func runList(opts *cmd.Options) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if !opts.Interactive {
		return audio.ListDevices(os.Stdout)
	}

	sel, ok, err := tui.RunDevicePicker()
	if err != nil || !ok {
		return err
	}
	fmt.Printf("Selected [%d] %s at %.0f Hz\n", sel.DeviceID, sel.DeviceName, sel.SampleRate)
	fmt.Printf("Run with: %s --device %d --sample-rate %.0f\n",
		build.GetBuildInfo().Name, sel.DeviceID, sel.SampleRate)
	return nil
}

// runReplay feeds a WAV file through the pipeline instead of the microphone.
func runReplay(ctx context.Context, cfg *config.Config, opts *cmd.Options) error {
	pipeline, err := cmd.NewPipeline(cfg, opts, os.Stdout)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	stats, err := audio.Replay(ctx, opts.ReplayFile, pipeline.Controller, audio.ReplayOptions{
		BlockSize: cfg.Audio.FramesPerBuffer,
		Realtime:  opts.Realtime,
	})
	if err != nil {
		return err
	}
	if stats.SampleRate != int(cfg.Audio.SampleRate) {
		log.Warnf("Replay: file rate %d Hz differs from the configured %.0f Hz", stats.SampleRate, cfg.Audio.SampleRate)
	}
	fmt.Printf("\n%d beats in %s of audio\n", pipeline.Detector.Beats(), stats.Duration.Round(time.Millisecond))
	return nil
}

// runLive captures from the input device until interrupted.
func runLive(ctx context.Context, cfg *config.Config, opts *cmd.Options) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	pipeline, err := cmd.NewPipeline(cfg, opts, os.Stdout)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	engine, err := audio.NewEngine(cfg.Audio, pipeline.Controller)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Errorf("Error closing audio engine: %v", err)
		}
	}()

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// The first call to StartInputStream triggers PortAudio to begin
	// calling the callback function, marking the start of the hot path.
	if err := engine.StartInputStream(); err != nil {
		return err
	}

	var recordingFile string
	if cfg.Recording.Enabled {
		recordingFile = opts.OutputFile
		if recordingFile == "" {
			recordingFile = audio.RecordingPath(cfg.Recording.OutputDir, time.Now())
		}
		maxDuration := time.Duration(cfg.Recording.MaxDuration) * time.Second
		if err := engine.StartRecording(recordingFile, maxDuration); err != nil {
			return err
		}
	}

	if addr := pipeline.WebSocketAddr(); addr != "" {
		fmt.Printf("Events on ws://%s%s\n", addr, cfg.Transport.WebSocketPath)
	}
	fmt.Printf("Listening. Press Ctrl+C to stop.\n")

	<-ctx.Done()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if recordingFile != "" {
		if err := engine.StopRecording(); err != nil {
			log.Errorf("Error stopping recording: %v", err)
		} else {
			fmt.Printf("\nRecording saved to: %s\n", recordingFile)
		}
	}

	stats := engine.Stats()
	log.Infof("Audio: %d blocks, %d gated, %d processor errors, %d beats",
		stats.Blocks, stats.Gated, stats.ProcErrors, pipeline.Detector.Beats())
	return nil
}
