// Package docstore stores submitted intake forms. It defines a small gRPC
// document service, a client that satisfies the session's Submitter port,
// and the backends the service writes to.
//
// AddDocument takes a google.protobuf.Struct request
// {collection, session_id, submitted_by, submitted_at, fields} and answers
// with {id}. Callers authenticate with a bearer JWT in the "authorization"
// metadata.
package docstore

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName     = "meddoc.store.v1.DocumentStore"
	addDocument     = "AddDocument"
	addDocumentPath = "/" + serviceName + "/" + addDocument
)

// Document is one stored form.
type Document struct {
	ID          string
	Collection  string
	SessionID   string
	SubmittedBy string
	SubmittedAt time.Time
	Fields      map[string]any
	CreatedAt   time.Time
}

type storeService interface {
	addDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*storeService)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: addDocument,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return srv.(storeService).addDocument(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: addDocumentPath}
			handler := func(ctx context.Context, req any) (any, error) {
				return srv.(storeService).addDocument(ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}},
	Metadata: "meddoc/store/v1/store",
}
