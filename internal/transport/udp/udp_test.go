// SPDX-License-Identifier: MIT
package udp

import (
	"beatlamp/internal/led"
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

func TestFrameRoundTrip(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)
	pixels := []led.Color{{R: 1, G: 2, B: 3}, led.Black, led.White}

	packet, err := AppendFrame(new(bytes.Buffer), 77, ts, pixels)
	if err != nil {
		t.Fatal(err)
	}
	if len(packet) != HeaderSize+3*len(pixels) {
		t.Fatalf("packet length = %d", len(packet))
	}

	f, err := DecodeFrame(packet)
	if err != nil {
		t.Fatal(err)
	}
	if f.Sequence != 77 || !f.Timestamp.Equal(ts) {
		t.Errorf("header = %d %v", f.Sequence, f.Timestamp)
	}
	for i := range pixels {
		if f.Pixels[i] != pixels[i] {
			t.Errorf("pixel %d = %v, want %v", i, f.Pixels[i], pixels[i])
		}
	}
}

func TestDecodeFrameShort(t *testing.T) {
	packet, _ := AppendFrame(new(bytes.Buffer), 1, time.Now(), make([]led.Color, 4))
	tests := [][]byte{
		nil,
		packet[:HeaderSize-1],
		packet[:len(packet)-1],
	}
	for _, p := range tests {
		if _, err := DecodeFrame(p); !errors.Is(err, ErrShortPacket) {
			t.Errorf("DecodeFrame(%d bytes) error = %v", len(p), err)
		}
	}
}

func TestAppendFrameTooLarge(t *testing.T) {
	if _, err := AppendFrame(new(bytes.Buffer), 1, time.Now(), make([]led.Color, 1<<16)); err == nil {
		t.Error("expected error for oversized frame")
	}
}

type packetRecorder struct {
	mu      sync.Mutex
	packets [][]byte
}

func (r *packetRecorder) Send(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packets = append(r.packets, append([]byte(nil), data...))
	return nil
}

func (r *packetRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.packets)
}

func TestNewPublisherValidation(t *testing.T) {
	src := func() []led.Color { return nil }
	if _, err := NewPublisher(time.Millisecond, nil, src); err == nil {
		t.Error("expected error for nil sender")
	}
	if _, err := NewPublisher(time.Millisecond, &packetRecorder{}, nil); err == nil {
		t.Error("expected error for nil source")
	}
	p, err := NewPublisher(0, &packetRecorder{}, src)
	if err != nil {
		t.Fatal(err)
	}
	if p.interval != DefaultInterval {
		t.Errorf("interval = %s, want %s", p.interval, DefaultInterval)
	}
}

func TestPublisherSequence(t *testing.T) {
	rec := &packetRecorder{}
	buf := led.NewBuffer(3)
	buf.SetPixel(2, led.RGB(10, 20, 30))
	buf.Show()

	p, err := NewPublisher(2*time.Millisecond, rec, buf.Frame)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	p.Start() // no-op

	deadline := time.Now().Add(2 * time.Second)
	for rec.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	n := rec.count()
	if n < 3 {
		t.Fatalf("got %d packets", n)
	}
	if p.Sequence() != uint32(n) {
		t.Errorf("Sequence() = %d, sent %d", p.Sequence(), n)
	}
	for i, packet := range rec.packets {
		f, err := DecodeFrame(packet)
		if err != nil {
			t.Fatal(err)
		}
		if f.Sequence != uint32(i+1) {
			t.Errorf("packet %d has sequence %d", i, f.Sequence)
		}
		if len(f.Pixels) != 3 || f.Pixels[2] != led.RGB(10, 20, 30) {
			t.Errorf("packet %d pixels = %v", i, f.Pixels)
		}
	}

	// Restart continues the sequence.
	p.Start()
	for rec.count() == n && time.Now().Before(deadline.Add(time.Second)) {
		time.Sleep(time.Millisecond)
	}
	p.Stop()
	if p.Sequence() <= uint32(n) {
		t.Error("restart should keep numbering packets")
	}
}

func TestSenderOverLoopback(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	sender, err := NewSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}

	packet, _ := AppendFrame(new(bytes.Buffer), 5, time.Now(), []led.Color{led.White})
	if err := sender.Send(packet); err != nil {
		t.Fatal(err)
	}

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := make([]byte, 1500)
	n, _, err := listener.ReadFromUDP(got)
	if err != nil {
		t.Fatal(err)
	}
	f, err := DecodeFrame(got[:n])
	if err != nil {
		t.Fatal(err)
	}
	if f.Sequence != 5 || f.Pixels[0] != led.White {
		t.Errorf("received %+v", f)
	}

	if err := sender.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := sender.Send(packet); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestNewSenderBadAddress(t *testing.T) {
	if _, err := NewSender("not an address"); err == nil {
		t.Error("expected resolve error")
	}
}
