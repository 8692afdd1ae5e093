// Package rpc holds the gRPC dialing conventions shared by the recognizer
// and document-store clients.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultDialTimeout bounds readiness when callers pass no timeout.
const DefaultDialTimeout = 3 * time.Second

// Dial creates a client for target and blocks until the connection is ready,
// the timeout elapses, or ctx ends. Connections default to plaintext; opts
// are applied after the defaults and may override them.
func Dial(ctx context.Context, target string, timeout time.Duration, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("grpc target is empty")
	}
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial grpc %q: %w", target, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn.Connect()
	if err := WaitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for grpc readiness of %q: %w", target, err)
	}
	return conn, nil
}

// WaitForReady blocks until conn reaches Ready, shuts down, or ctx ends.
func WaitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if conn.WaitForStateChange(ctx, state) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("still %s: %w", state, err)
		}
		return fmt.Errorf("grpc readiness wait ended in state %s", state)
	}
}

// Probe dials target and closes the connection once it is ready.
func Probe(ctx context.Context, target string, timeout time.Duration, opts ...grpc.DialOption) error {
	conn, err := Dial(ctx, target, timeout, opts...)
	if err != nil {
		return err
	}
	return conn.Close()
}
