package docstore

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rbright/meddoc/internal/auth"
	"github.com/rbright/meddoc/internal/catalog"
	"github.com/rbright/meddoc/internal/form"
	"github.com/rbright/meddoc/internal/session"
)

const testSecret = "intake-secret"

type failingBackend struct{ *MemoryBackend }

func (failingBackend) Put(context.Context, Document) error { return errors.New("disk full") }

func startStore(t *testing.T, backend Backend) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gs, err := NewGRPCServer(NewServer(backend, nil), auth.NewVerifier(testSecret, "meddoc"))
	require.NoError(t, err)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	return NewClient(ClientConfig{
		Endpoint: "passthrough:///docstore",
		Timeout:  2 * time.Second,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
}

func signedInUser(t *testing.T, email string) session.User {
	t.Helper()
	issuer, err := auth.NewIssuer(testSecret, "meddoc")
	require.NoError(t, err)
	token, err := issuer.Mint(email, time.Hour)
	require.NoError(t, err)
	return session.User{Email: email, Token: token}
}

func filledForm(t *testing.T) form.Snapshot {
	t.Helper()
	cat := catalog.MustNew([]catalog.Spec{
		{Prompt: "Name?", Fields: []string{"firstName"}},
		{Prompt: "Insured?", Fields: []string{"insurance"}, Kind: catalog.KindSingleChoice, Choices: []string{"Yes", "No"}},
		{Prompt: "Email?", Fields: []string{"email"}},
	})
	store := form.NewStore(cat)
	_, err := store.Set("firstName", "Ada")
	require.NoError(t, err)
	snap, err := store.Set("insurance", "yes")
	require.NoError(t, err)
	return snap
}

func TestNewGRPCServerRequiresSigningSecret(t *testing.T) {
	gs, err := NewGRPCServer(NewServer(NewMemoryBackend(), nil), auth.NewVerifier("", "meddoc"))
	require.ErrorIs(t, err, auth.ErrNoSecret)
	require.Nil(t, gs)
}

func TestSubmitStoresDocument(t *testing.T) {
	backend := NewMemoryBackend()
	client := startStore(t, backend)

	submittedAt := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	receipt, err := client.Submit(context.Background(), session.Submission{
		SessionID:   "sess-1",
		Collection:  "Offices/traneyes/forms",
		User:        signedInUser(t, "nurse@clinic.example"),
		Form:        filledForm(t),
		SubmittedAt: submittedAt,
	})
	require.NoError(t, err)
	require.NotEmpty(t, receipt.DocumentID)
	require.Equal(t, "Offices/traneyes/forms", receipt.Collection)

	doc, err := backend.Get(context.Background(), "Offices/traneyes/forms", receipt.DocumentID)
	require.NoError(t, err)
	require.Equal(t, "sess-1", doc.SessionID)
	require.Equal(t, "nurse@clinic.example", doc.SubmittedBy)
	require.True(t, submittedAt.Equal(doc.SubmittedAt))
	require.Equal(t, map[string]any{"firstName": "Ada", "insurance": "Yes", "email": nil}, doc.Fields)
}

func TestSubmitWithBadTokenIsUnauthorized(t *testing.T) {
	client := startStore(t, NewMemoryBackend())

	_, err := client.Submit(context.Background(), session.Submission{
		Collection: "Offices/traneyes/forms",
		User:       session.User{Email: "x@y.example", Token: "forged"},
		Form:       filledForm(t),
	})
	var subErr *session.SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.Contains(t, subErr.Message, "not authorized")
}

func TestSubmitRejectsDocumentPath(t *testing.T) {
	client := startStore(t, NewMemoryBackend())

	_, err := client.Submit(context.Background(), session.Submission{
		Collection: "Offices/traneyes",
		User:       signedInUser(t, "nurse@clinic.example"),
		Form:       filledForm(t),
	})
	var subErr *session.SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.Contains(t, subErr.Message, "rejected")
}

func TestSubmitReportsBackendFailure(t *testing.T) {
	client := startStore(t, failingBackend{NewMemoryBackend()})

	_, err := client.Submit(context.Background(), session.Submission{
		Collection: "Offices/traneyes/forms",
		User:       signedInUser(t, "nurse@clinic.example"),
		Form:       filledForm(t),
	})
	var subErr *session.SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.Contains(t, subErr.Message, "Internal")
}

func TestSubmitUnreachableStore(t *testing.T) {
	lis := bufconn.Listen(1 << 10)
	require.NoError(t, lis.Close())
	client := NewClient(ClientConfig{
		Endpoint: "passthrough:///docstore",
		Timeout:  150 * time.Millisecond,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})

	_, err := client.Submit(context.Background(), session.Submission{
		Collection: "Offices/traneyes/forms",
		User:       signedInUser(t, "nurse@clinic.example"),
		Form:       filledForm(t),
	})
	var subErr *session.SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.Equal(t, "document store unreachable", subErr.Message)
	require.Error(t, client.Probe(context.Background()))
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	fields := map[string]any{"firstName": "Ada"}
	require.NoError(t, b.Put(ctx, Document{ID: "1", Collection: "c", Fields: fields}))
	require.NoError(t, b.Put(ctx, Document{ID: "2", Collection: "c"}))
	require.Error(t, b.Put(ctx, Document{ID: "1", Collection: "c"}))
	fields["firstName"] = "mutated"

	doc, err := b.Get(ctx, "c", "1")
	require.NoError(t, err)
	require.Equal(t, "Ada", doc.Fields["firstName"])

	_, err = b.Get(ctx, "c", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	docs, err := b.List(ctx, "c")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "1", docs[0].ID)
}
