package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rbright/meddoc/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ErrStreamClosed is returned by SendAudio after CloseAndCollect or Cancel.
var ErrStreamClosed = errors.New("recognition stream closed for sending")

// ClientConfig locates the recognizer service.
type ClientConfig struct {
	Endpoint    string
	DialTimeout time.Duration
	Stream      StreamConfig
	DialOptions []grpc.DialOption
}

// Client opens one recognition stream per utterance.
type Client struct {
	cfg ClientConfig
}

func NewClient(cfg ClientConfig) *Client {
	cfg.Stream = cfg.Stream.withDefaults()
	return &Client{cfg: cfg}
}

// Probe checks that the recognizer endpoint accepts connections.
func (c *Client) Probe(ctx context.Context) error {
	return rpc.Probe(ctx, c.cfg.Endpoint, c.cfg.DialTimeout, c.cfg.DialOptions...)
}

// Open dials the recognizer and starts a stream. The stream lives until
// CloseAndCollect or Cancel, or until ctx ends.
func (c *Client) Open(ctx context.Context) (*Stream, error) {
	conn, err := rpc.Dial(ctx, c.cfg.Endpoint, c.cfg.DialTimeout, c.cfg.DialOptions...)
	if err != nil {
		return nil, err
	}

	streamCtx := metadata.NewOutgoingContext(ctx, c.cfg.Stream.metadata())
	cs, err := conn.NewStream(streamCtx, &streamDesc, streamMethod)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open recognition stream: %w", err)
	}

	s := &Stream{
		conn:     conn,
		cs:       cs,
		recvDone: make(chan struct{}),
		final:    make(chan struct{}),
	}
	go s.receive()
	return s, nil
}

// Stream is one in-flight recognition.
type Stream struct {
	conn *grpc.ClientConn
	cs   grpc.ClientStream

	recvDone  chan struct{}
	final     chan struct{}
	finalOnce sync.Once

	mu       sync.Mutex
	log      transcriptLog
	recvErr  error
	sendDone bool
}

func (s *Stream) receive() {
	defer close(s.recvDone)

	for {
		msg := new(structpb.Struct)
		err := s.cs.RecvMsg(msg)
		if err == nil {
			h := hypothesisFromStruct(msg)
			s.mu.Lock()
			s.log.record(h)
			s.mu.Unlock()
			if h.Final && normalizeSpace(h.Transcript) != "" {
				s.finalOnce.Do(func() { close(s.final) })
			}
			continue
		}
		if !errors.Is(err, io.EOF) {
			s.mu.Lock()
			s.recvErr = err
			s.mu.Unlock()
		}
		return
	}
}

// Final is closed when the recognizer reports its first non-empty final
// hypothesis.
func (s *Stream) Final() <-chan struct{} {
	return s.final
}

// SendAudio forwards one PCM chunk.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.mu.Lock()
	closed, recvErr := s.sendDone, s.recvErr
	s.mu.Unlock()
	switch {
	case closed:
		return ErrStreamClosed
	case recvErr != nil:
		return fmt.Errorf("recognition stream failed: %w", recvErr)
	}

	return s.cs.SendMsg(wrapperspb.Bytes(chunk))
}

func (s *Stream) closeSend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sendDone {
		s.sendDone = true
		_ = s.cs.CloseSend()
	}
}

// CloseAndCollect ends the audio and waits for the recognizer to finish,
// returning the merged transcript and how long the tail took.
func (s *Stream) CloseAndCollect(ctx context.Context) (string, time.Duration, error) {
	closedAt := time.Now()
	s.closeSend()
	defer func() { _ = s.conn.Close() }()

	select {
	case <-s.recvDone:
	case <-ctx.Done():
		return "", 0, ctx.Err()
	}
	tail := time.Since(closedAt)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recvErr != nil {
		return "", tail, s.recvErr
	}
	return s.log.text(), tail, nil
}

// Cancel abandons the stream.
func (s *Stream) Cancel() error {
	s.closeSend()
	return s.conn.Close()
}
