// SPDX-License-Identifier: MIT
package cmd

import (
	"beatlamp/internal/analysis"
	"beatlamp/internal/config"
	"beatlamp/internal/fft"
	"beatlamp/internal/lamp"
	"beatlamp/internal/led"
	"beatlamp/internal/log"
	"beatlamp/internal/transport"
	"beatlamp/internal/transport/udp"
	"beatlamp/internal/tui"
	"errors"
	"fmt"
	"io"
)

// Pipeline is everything between the sample source and the strip:
// detector, pixel buffer with its outputs, effect engine, controller and
// the telemetry transports.
type Pipeline struct {
	Detector   *analysis.SpectralBeatDetector
	Buffer     *led.Buffer
	Engine     *led.Engine
	Controller *lamp.Controller
	State      *config.StateStore

	transports transport.Multi
	websocket  *transport.WebSocketTransport
	sender     *udp.Sender
	publisher  *udp.Publisher
}

// NewPipeline assembles the pipeline described by cfg and applies the
// lamp settings from opts. The terminal strip, when enabled, writes to
// term. On error everything already started is closed again.
func NewPipeline(cfg *config.Config, opts *Options, term io.Writer) (p *Pipeline, err error) {
	window, err := fft.ParseWindow(cfg.Detector.Window)
	if err != nil {
		return nil, err
	}
	effect, err := led.ParseEffectType(cfg.Lamp.Effect)
	if err != nil {
		return nil, err
	}

	p = &Pipeline{}
	defer func() {
		if err != nil {
			p.Close()
			p = nil
		}
	}()

	p.Detector = analysis.NewSpectralBeatDetector(
		analysis.WithFFTSize(cfg.Audio.FramesPerBuffer),
		analysis.WithSensitivity(cfg.Detector.Sensitivity),
		analysis.WithBand(analysis.Band{Name: "bass", Start: cfg.Detector.BandStart, End: cfg.Detector.BandEnd}),
		analysis.WithWindow(window),
		analysis.WithSampleRate(cfg.Audio.SampleRate),
	)

	p.Buffer = led.NewBuffer(cfg.Lamp.Pixels)
	if cfg.Lamp.Terminal && term != nil {
		p.Buffer.AddOutput(tui.NewStrip(term))
	}

	if err := p.startTransports(cfg.Transport); err != nil {
		return p, err
	}

	var detector lamp.BeatDetector = p.Detector
	if len(p.transports) > 0 {
		p.Buffer.AddOutput(transport.FrameOutput{T: p.transports})
		detector = transport.TapBeats(p.Detector, p.transports)
	}

	p.Engine = led.NewEngine(p.Buffer)
	p.State = config.NewStateStore(cfg.Lamp.StateFile)
	settings, loadErr := p.State.LoadState()
	if loadErr != nil {
		log.Warnf("Lamp: %v; using defaults", loadErr)
	}
	p.Controller = lamp.NewController(p.Engine, detector, settings, p.State)

	if opts != nil {
		if opts.BrightnessLevel != nil {
			if err := p.Controller.SetBrightnessLevel(*opts.BrightnessLevel); err != nil {
				return p, fmt.Errorf("--brightness-level: %w", err)
			}
		}
		if c := opts.Color; c != nil {
			if err := p.Controller.SetColor(c[0], c[1], c[2]); err != nil {
				return p, fmt.Errorf("--color: %w", err)
			}
		}
	}

	if err := p.applyEffect(effect); err != nil {
		return p, err
	}
	if cfg.Lamp.PowerOn {
		p.Controller.TurnOn()
	}
	return p, nil
}

func (p *Pipeline) startTransports(cfg config.TransportConfig) error {
	if cfg.LogEvents {
		p.transports = append(p.transports, transport.NewLoggingTransport())
	}
	if cfg.WebSocketEnabled {
		p.websocket = transport.NewWebSocketTransport(cfg.WebSocketAddress, cfg.WebSocketPath)
		if err := p.websocket.Start(); err != nil {
			p.websocket = nil
			return err
		}
		p.transports = append(p.transports, p.websocket)
	}
	if cfg.UDPEnabled {
		sender, err := udp.NewSender(cfg.UDPTargetAddress)
		if err != nil {
			return err
		}
		p.sender = sender
		p.publisher, err = udp.NewPublisher(cfg.UDPSendInterval, sender, p.Buffer.Frame)
		if err != nil {
			return err
		}
		p.publisher.Start()
	}
	return nil
}

// applyEffect selects the startup effect. Music also starts the detector.
func (p *Pipeline) applyEffect(effect led.EffectType) error {
	switch effect {
	case led.Music:
		return p.Controller.SetMusicMode(true)
	case led.Static:
		return nil
	default:
		p.Engine.SetEffect(effect)
		return nil
	}
}

// WebSocketAddr returns the bound websocket address, or "" when disabled.
func (p *Pipeline) WebSocketAddr() string {
	if p.websocket == nil || p.websocket.Addr() == nil {
		return ""
	}
	return p.websocket.Addr().String()
}

// Close stops animations, the detector and every transport.
func (p *Pipeline) Close() error {
	var errs []error
	if p.publisher != nil {
		errs = append(errs, p.publisher.Close())
	}
	if p.Engine != nil {
		p.Engine.Close()
	}
	if p.Detector != nil {
		errs = append(errs, p.Detector.Close())
	}
	if p.sender != nil {
		errs = append(errs, p.sender.Close())
	}
	errs = append(errs, p.transports.Close())
	return errors.Join(errs...)
}
