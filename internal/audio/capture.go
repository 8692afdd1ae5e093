package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	SampleRateHertz = 16000
	chunkBytes      = 640 // 20 ms of s16 mono at 16 kHz
)

// Capture delivers fixed-size PCM chunks from one Pulse source until stopped.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	partial []byte
	stopped bool

	writers sync.WaitGroup
	total   atomic.Int64
}

// StartCapture opens a record stream on device. The capture stops on its own
// when ctx ends.
func StartCapture(ctx context.Context, device Device) (*Capture, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	c := newCapture(device)
	c.client = client

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(c.write), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRateHertz),
		pulse.RecordBufferFragmentSize(chunkBytes),
		pulse.RecordMediaName("meddoc answer"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-c.stopCh:
		}
	}()
	return c, nil
}

func newCapture(device Device) *Capture {
	return &Capture{
		device: device,
		chunks: make(chan []byte, 128),
		stopCh: make(chan struct{}),
	}
}

func (c *Capture) Device() Device { return c.device }

// Chunks is closed after Stop.
func (c *Capture) Chunks() <-chan []byte { return c.chunks }

// BytesCaptured is the number of PCM bytes received from Pulse.
func (c *Capture) BytesCaptured() int64 { return c.total.Load() }

// Stop ends the stream, emits any partial chunk, and closes Chunks. It is
// safe to call more than once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.writers.Wait()

	c.mu.Lock()
	tail := c.partial
	c.partial = nil
	c.mu.Unlock()

	if len(tail) > 0 {
		select {
		case c.chunks <- tail:
		default:
		}
	}
	close(c.chunks)
	return nil
}

// write is the Pulse record callback. It slices incoming frames into
// chunkBytes pieces and keeps the remainder for the next call.
func (c *Capture) write(frames []byte) (int, error) {
	if len(frames) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under mu so Stop's Wait cannot race it.
	c.writers.Add(1)
	defer c.writers.Done()

	c.partial = append(c.partial, frames...)
	var ready [][]byte
	for len(c.partial) >= chunkBytes {
		ready = append(ready, append([]byte(nil), c.partial[:chunkBytes]...))
		c.partial = c.partial[chunkBytes:]
	}
	c.mu.Unlock()

	c.total.Add(int64(len(frames)))

	for _, chunk := range ready {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.chunks <- chunk:
		}
	}
	return len(frames), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }

// Microphone opens captures on the configured source, re-selecting the
// device each time so hot-plugged headsets are picked up.
type Microphone struct {
	Input    string
	Fallback string
	Logger   *slog.Logger
}

// Open selects a source and starts capturing from it.
func (m Microphone) Open(ctx context.Context) (*Capture, error) {
	sel, err := SelectDevice(ctx, m.Input, m.Fallback)
	if err != nil {
		return nil, err
	}
	if sel.Warning != "" && m.Logger != nil {
		m.Logger.Warn("audio source fallback", "warning", sel.Warning, "device", sel.Device.ID)
	}
	return StartCapture(ctx, sel.Device)
}
