package docstore

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/meddoc/internal/auth"
	"github.com/rbright/meddoc/internal/config"
)

// Server implements the document service over a Backend.
type Server struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

func NewServer(backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{backend: backend, logger: logger, now: time.Now}
}

// Register exposes s on r. Callers are responsible for authentication; see
// NewGRPCServer.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&serviceDesc, s)
}

// NewGRPCServer builds a gRPC server that authenticates every call with v
// and serves s. v must check signatures: the server stamps submitters from
// token claims, so it refuses to run on decoded-only tokens.
func NewGRPCServer(s *Server, v *auth.Verifier, opts ...grpc.ServerOption) (*grpc.Server, error) {
	if !v.Verifies() {
		return nil, auth.ErrNoSecret
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(auth.UnaryInterceptor(v))}, opts...)
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs, nil
}

func (s *Server) addDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := req.GetFields()

	collection := strings.TrimSpace(in["collection"].GetStringValue())
	if err := config.ValidateCollection(collection); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	form := in["fields"].GetStructValue()
	if form == nil {
		return nil, status.Error(codes.InvalidArgument, "fields must be an object")
	}

	submittedBy := in["submitted_by"].GetStringValue()
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		submittedBy = claims.Email
	}
	if submittedBy == "" {
		return nil, status.Error(codes.Unauthenticated, "submitter is unknown")
	}

	now := s.now().UTC()
	submittedAt, err := time.Parse(time.RFC3339Nano, in["submitted_at"].GetStringValue())
	if err != nil {
		submittedAt = now
	}

	doc := Document{
		ID:          uuid.NewString(),
		Collection:  collection,
		SessionID:   in["session_id"].GetStringValue(),
		SubmittedBy: submittedBy,
		SubmittedAt: submittedAt,
		Fields:      form.AsMap(),
		CreatedAt:   now,
	}
	if err := s.backend.Put(ctx, doc); err != nil {
		s.logger.Error("store document failed", "collection", collection, "error", err)
		return nil, status.Error(codes.Internal, "store document failed")
	}

	s.logger.Info("document stored",
		"collection", collection,
		"id", doc.ID,
		"session", doc.SessionID,
		"submitted_by", submittedBy,
		"fields", len(doc.Fields),
	)
	return structpb.NewStruct(map[string]any{"id": doc.ID, "collection": collection})
}
