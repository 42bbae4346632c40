// SPDX-License-Identifier: MIT
package transport

import (
	"beatlamp/internal/log"
	"encoding/json"
	"sync/atomic"
)

// LoggingTransport implements the Transport interface by logging each
// event at debug level.
type LoggingTransport struct {
	sent atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Infof("Transport: using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data as JSON, or raw if it cannot be marshalled.
func (lt *LoggingTransport) Send(data any) error {
	lt.sent.Add(1)
	if !log.Enabled(log.LevelDebug) {
		return nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Debugf("Transport: event (%T): %+v (JSON marshal error: %v)", data, data, err)
		return nil
	}
	log.Debugf("Transport: event %s", jsonData)
	return nil
}

// Sent returns how many events have been passed to Send.
func (lt *LoggingTransport) Sent() uint64 {
	return lt.sent.Load()
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	log.Debugf("Transport: LoggingTransport closed after %d events", lt.sent.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
