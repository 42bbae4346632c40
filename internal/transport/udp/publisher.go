// SPDX-License-Identifier: MIT
package udp

import (
	"beatlamp/internal/led"
	"beatlamp/internal/log"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultInterval is used when the publisher is given a non-positive interval.
const DefaultInterval = 33 * time.Millisecond

// HeaderSize is the fixed prefix of every frame packet.
const HeaderSize = 4 + 8 + 2

// ErrShortPacket is returned by DecodeFrame for truncated packets.
var ErrShortPacket = errors.New("short frame packet")

// PacketSender transmits one datagram.
type PacketSender interface {
	Send(data []byte) error
}

// FrameSource returns the frame to publish. led.Buffer.Frame fits.
type FrameSource func() []led.Color

// Publisher periodically fetches the shown LED frame, packs it into the
// binary format below, and sends it with a PacketSender. It runs in a
// separate goroutine managed by Start and Stop.
type Publisher struct {
	sender   PacketSender
	source   FrameSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum  uint32
	packetBuffer *bytes.Buffer
}

// NewPublisher creates a publisher that sends source's frame every interval.
func NewPublisher(interval time.Duration, sender PacketSender, source FrameSource) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDP Publisher: sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDP Publisher: frame source cannot be nil")
	}
	if interval <= 0 {
		log.Warnf("UDP Publisher: invalid interval %s, defaulting to %s", interval, DefaultInterval)
		interval = DefaultInterval
	}

	return &Publisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. Calling it while running does
// nothing.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("UDP Publisher: Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Infof("UDP Publisher: started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publishing goroutine and waits for it to exit. It is
// safe to call more than once.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	log.Infof("UDP Publisher: stopped after %d packets", p.Sequence())
	return nil
}

// Sequence returns the number of the last packet built.
func (p *Publisher) Sequence() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sequenceNum
}

/*
Frame packet (BigEndian):

|<-- 4 Bytes -->|<-- 8 Bytes -->|<-- 2 Bytes -->|<---- N * 3 Bytes ---->|
+---------------+---------------+---------------+-----------------------+
|   Sequence    |   Timestamp   |  Pixel Count  |   R, G, B per pixel   |
|   (uint32)    |  (int64, ns)  |   (uint16)    |       (uint8 x3)      |
+---------------+---------------+---------------+-----------------------+
*/

// publish builds and sends one packet from the current frame.
func (p *Publisher) publish() {
	pixels := p.source()

	p.mu.Lock()
	p.sequenceNum++
	seq := p.sequenceNum
	p.mu.Unlock()

	packet, err := AppendFrame(p.packetBuffer, seq, time.Now(), pixels)
	if err != nil {
		log.Errorf("UDP Publisher: error packing frame: %v", err)
		return
	}

	// Sender logs its own failures.
	if err := p.sender.Send(packet); err == nil {
		log.Debugf("UDP Publisher: sent packet %d (%d bytes)", seq, len(packet))
	}
}

// AppendFrame resets buf and writes one frame packet into it. The
// returned slice aliases buf.
func AppendFrame(buf *bytes.Buffer, seq uint32, ts time.Time, pixels []led.Color) ([]byte, error) {
	if len(pixels) > math.MaxUint16 {
		return nil, fmt.Errorf("frame of %d pixels does not fit a packet", len(pixels))
	}

	buf.Reset()
	err := binary.Write(buf, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, ts.UnixNano())
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(pixels)))
	}
	if err != nil {
		return nil, err
	}
	for _, c := range pixels {
		buf.WriteByte(c.R)
		buf.WriteByte(c.G)
		buf.WriteByte(c.B)
	}
	return buf.Bytes(), nil
}

// Frame is a decoded frame packet.
type Frame struct {
	Sequence  uint32
	Timestamp time.Time
	Pixels    []led.Color
}

// DecodeFrame parses a packet written by AppendFrame.
func DecodeFrame(packet []byte) (Frame, error) {
	if len(packet) < HeaderSize {
		return Frame{}, ErrShortPacket
	}
	f := Frame{
		Sequence:  binary.BigEndian.Uint32(packet[0:4]),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(packet[4:12]))),
	}
	n := int(binary.BigEndian.Uint16(packet[12:14]))
	body := packet[HeaderSize:]
	if len(body) < 3*n {
		return Frame{}, fmt.Errorf("%w: %d pixels need %d bytes, have %d", ErrShortPacket, n, 3*n, len(body))
	}
	f.Pixels = make([]led.Color, n)
	for i := range f.Pixels {
		f.Pixels[i] = led.Color{R: body[3*i], G: body[3*i+1], B: body[3*i+2]}
	}
	return f, nil
}

// Close stops the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*Publisher)(nil)
