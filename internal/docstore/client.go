package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/meddoc/internal/rpc"
	"github.com/rbright/meddoc/internal/session"
)

// ClientConfig locates the document service.
type ClientConfig struct {
	Endpoint    string
	Timeout     time.Duration
	DialOptions []grpc.DialOption
}

// Client submits forms to the document service. Each submission dials,
// sends once, and hangs up; failures are never retried.
type Client struct {
	cfg ClientConfig
}

var _ session.Submitter = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{cfg: cfg}
}

// Probe checks that the document service accepts connections.
func (c *Client) Probe(ctx context.Context) error {
	return rpc.Probe(ctx, c.cfg.Endpoint, c.cfg.Timeout, c.cfg.DialOptions...)
}

// Submit implements session.Submitter.
func (c *Client) Submit(ctx context.Context, sub session.Submission) (session.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := structpb.NewStruct(map[string]any{
		"collection":   sub.Collection,
		"session_id":   sub.SessionID,
		"submitted_by": sub.User.Email,
		"submitted_at": sub.SubmittedAt.UTC().Format(time.RFC3339Nano),
		"fields":       sub.Form.Fields(),
	})
	if err != nil {
		return session.Receipt{}, &session.SubmissionError{Message: "form could not be encoded", Err: err}
	}

	conn, err := rpc.Dial(ctx, c.cfg.Endpoint, c.cfg.Timeout, c.cfg.DialOptions...)
	if err != nil {
		return session.Receipt{}, &session.SubmissionError{Message: "document store unreachable", Err: err}
	}
	defer func() { _ = conn.Close() }()

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+sub.User.Token)
	resp := new(structpb.Struct)
	if err := conn.Invoke(ctx, addDocumentPath, req, resp); err != nil {
		return session.Receipt{}, submissionError(err)
	}

	id := resp.GetFields()["id"].GetStringValue()
	if id == "" {
		return session.Receipt{}, &session.SubmissionError{Message: "document store returned no id", Err: errors.New("empty document id")}
	}
	return session.Receipt{DocumentID: id, Collection: sub.Collection}, nil
}

func submissionError(err error) *session.SubmissionError {
	st, _ := status.FromError(err)
	var msg string
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		msg = "not authorized: " + st.Message()
	case codes.InvalidArgument:
		msg = "rejected: " + st.Message()
	case codes.Unavailable, codes.DeadlineExceeded:
		msg = "document store unreachable"
	default:
		msg = fmt.Sprintf("%s: %s", st.Code(), st.Message())
	}
	return &session.SubmissionError{Message: msg, Err: err}
}
