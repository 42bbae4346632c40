// SPDX-License-Identifier: MIT
package transport

import (
	"beatlamp/internal/analysis"
	"beatlamp/internal/led"
	"beatlamp/pkg/utils"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestEventJSON(t *testing.T) {
	tests := []struct {
		name string
		ev   any
		want string
	}{
		{"Beat", NewBeatEvent(42), `{"type":"beat","intensity":42}`},
		{"Frame", NewFrameEvent([]led.Color{{R: 1, G: 2, B: 3}, led.White}), `{"type":"frame","pixels":[[1,2,3],[255,255,255]]}`},
		{"Empty frame", NewFrameEvent(nil), `{"type":"frame","pixels":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.ev)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("json = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFrameOutput(t *testing.T) {
	mock := &utils.MockTransport{}
	buf := led.NewBuffer(2, FrameOutput{T: mock})
	buf.SetPixel(1, led.RGB(9, 8, 7))
	if err := buf.Show(); err != nil {
		t.Fatal(err)
	}

	msgs := mock.Snapshot()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	ev, ok := msgs[0].(FrameEvent)
	if !ok {
		t.Fatalf("message is %T", msgs[0])
	}
	if ev.Pixels[0] != [3]uint8{} || ev.Pixels[1] != [3]uint8{9, 8, 7} {
		t.Errorf("pixels = %v", ev.Pixels)
	}
}

type stubDetector struct {
	cb      analysis.BeatFunc
	started bool
}

func (d *stubDetector) Start() error                     { d.started = true; return nil }
func (d *stubDetector) Stop()                            { d.started = false }
func (d *stubDetector) SetCallback(fn analysis.BeatFunc) { d.cb = fn }
func (d *stubDetector) Process(samples []int16) error {
	if d.cb != nil && len(samples) > 0 {
		d.cb(int(samples[0]))
	}
	return nil
}

func TestBeatTap(t *testing.T) {
	mock := &utils.MockTransport{}
	det := &stubDetector{}
	tap := TapBeats(det, mock)

	var got []int
	tap.SetCallback(func(i int) { got = append(got, i) })
	if err := tap.Start(); err != nil || !det.started {
		t.Fatal("Start not forwarded")
	}
	tap.Process([]int16{17})
	tap.Process([]int16{99})

	if len(got) != 2 || got[0] != 17 || got[1] != 99 {
		t.Errorf("callback got %v", got)
	}
	msgs := mock.Snapshot()
	if len(msgs) != 2 || msgs[1] != NewBeatEvent(99) {
		t.Errorf("messages = %v", msgs)
	}

	tap.SetCallback(nil)
	tap.Process([]int16{5})
	if n := len(mock.Snapshot()); n != 3 {
		t.Errorf("nil callback should still publish, got %d messages", n)
	}
}

type failingTransport struct{ closed bool }

func (f *failingTransport) Send(any) error { return errors.New("send failed") }
func (f *failingTransport) Close() error   { f.closed = true; return errors.New("close failed") }

func TestMulti(t *testing.T) {
	ok := &utils.MockTransport{}
	bad := &failingTransport{}
	m := Multi{bad, ok}

	if err := m.Send("x"); err == nil {
		t.Error("expected joined send error")
	}
	if len(ok.Snapshot()) != 1 {
		t.Error("healthy member should still receive the event")
	}
	if err := m.Close(); err == nil {
		t.Error("expected joined close error")
	}
	if !ok.Closed || !bad.closed {
		t.Error("every member should be closed")
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	for i := range 3 {
		if err := lt.Send(NewBeatEvent(i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := lt.Send(make(chan int)); err != nil {
		t.Errorf("unmarshalable event should not fail: %v", err)
	}
	if lt.Sent() != 4 {
		t.Errorf("Sent() = %d, want 4", lt.Sent())
	}
	if err := lt.Close(); err != nil {
		t.Error(err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", "/events")
	if err := wst.Start(); err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	url := "ws://" + wst.Addr().String() + wst.Path()
	var conns []*websocket.Conn
	for range 2 {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()
		conns = append(conns, conn)
	}
	waitFor(t, "clients", func() bool { return wst.Clients() == 2 })

	if err := wst.Send(NewBeatEvent(321)); err != nil {
		t.Fatal(err)
	}
	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got BeatEvent
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("client %d: %v", i, err)
		}
		if got != NewBeatEvent(321) {
			t.Errorf("client %d got %+v", i, got)
		}
	}

	conns[0].Close()
	waitFor(t, "disconnect", func() bool { return wst.Clients() == 1 })
}

func TestWebSocketClose(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", "")
	if wst.Path() != "/ws" {
		t.Errorf("default path = %q", wst.Path())
	}
	if err := wst.Start(); err != nil {
		t.Fatal(err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitFor(t, "client", func() bool { return wst.Clients() == 1 })

	if err := wst.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if wst.Clients() != 0 {
		t.Error("clients should be dropped on Close")
	}
	if err := wst.Send(NewBeatEvent(1)); err == nil {
		t.Error("Send after Close should fail")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("client connection should be closed")
	}
}

func TestWebSocketDropsWhenFull(t *testing.T) {
	// Not started, so nothing drains the queue.
	wst := NewWebSocketTransport("127.0.0.1:0", "/ws")
	for i := range broadcastQueue + 5 {
		if err := wst.Send(NewBeatEvent(i)); err != nil {
			t.Fatal(err)
		}
	}
	if wst.Dropped() != 5 {
		t.Errorf("Dropped() = %d, want 5", wst.Dropped())
	}
	if err := wst.Close(); err != nil {
		t.Error(err)
	}
}

func TestWebSocketListenError(t *testing.T) {
	a := NewWebSocketTransport("127.0.0.1:0", "/ws")
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	b := NewWebSocketTransport(a.Addr().String(), "/ws")
	if err := b.Start(); err == nil {
		b.Close()
		t.Fatal("expected address in use error")
	}
	if b.Addr() != nil {
		t.Error("Addr should be nil when Start fails")
	}
}
