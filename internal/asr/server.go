package asr

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Engine turns audio into hypotheses. audio is closed when the client stops
// sending; emit fails once the client is gone.
type Engine interface {
	Recognize(ctx context.Context, cfg StreamConfig, audio <-chan []byte, emit func(Hypothesis) error) error
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, cfg StreamConfig, audio <-chan []byte, emit func(Hypothesis) error) error

func (f EngineFunc) Recognize(ctx context.Context, cfg StreamConfig, audio <-chan []byte, emit func(Hypothesis) error) error {
	return f(ctx, cfg, audio, emit)
}

type recognizerService interface {
	streamingRecognize(grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*recognizerService)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    streamName,
		ServerStreams: true,
		ClientStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			return srv.(recognizerService).streamingRecognize(stream)
		},
	}},
	Metadata: "meddoc/speech/v1/recognizer",
}

// Register exposes engine as the recognizer service on s.
func Register(s grpc.ServiceRegistrar, engine Engine) {
	s.RegisterService(&serviceDesc, &recognizerServer{engine: engine})
}

type recognizerServer struct {
	engine Engine
}

func (r *recognizerServer) streamingRecognize(stream grpc.ServerStream) error {
	md, _ := metadata.FromIncomingContext(stream.Context())
	cfg := streamConfigFromMD(md)

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	audio := make(chan []byte, 32)
	recvErr := make(chan error, 1)
	go func() {
		defer close(audio)
		for {
			var chunk wrapperspb.BytesValue
			if err := stream.RecvMsg(&chunk); err != nil {
				if !errors.Is(err, io.EOF) {
					recvErr <- err
					cancel()
				}
				return
			}
			select {
			case audio <- chunk.GetValue():
			case <-ctx.Done():
				return
			}
		}
	}()

	err := r.engine.Recognize(ctx, cfg, audio, func(h Hypothesis) error {
		return stream.SendMsg(h.toStruct())
	})
	cancel()

	select {
	case rerr := <-recvErr:
		return rerr
	default:
	}
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}
