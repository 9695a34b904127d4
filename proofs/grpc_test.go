package proofs_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/sagarc03/hubstore/proofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startProofServer(t *testing.T, source proofs.Source) *proofs.GRPCSource {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	proofs.RegisterProofServiceServer(srv, &proofs.GRPCServer{Source: source})

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	cc, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	return proofs.NewGRPCSource(cc)
}

func TestGRPCSource_RoundTrip(t *testing.T) {
	want := []proofs.Proof{
		{Service: "twitter", Identifier: "alice", Valid: true},
		{Service: "github", Identifier: "alice", Valid: false},
	}
	client := startProofServer(t, proofs.StaticSource{"abc123": want})

	got, err := client.Proofs(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGRPCSource_UnknownAddress(t *testing.T) {
	client := startProofServer(t, proofs.StaticSource{})

	got, err := client.Proofs(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGRPCSource_InvalidAddress(t *testing.T) {
	client := startProofServer(t, proofs.StaticSource{})

	_, err := client.Proofs(context.Background(), "not/valid")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
}

func TestGRPCSource_SourceFailure(t *testing.T) {
	source := new(SpySource)
	source.On("Proofs", mock.Anything, "abc123").Return(nil, errors.New("db down"))
	client := startProofServer(t, source)

	_, err := client.Proofs(context.Background(), "abc123")
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(errors.Unwrap(err)))
}

func TestGRPCSource_WithChecker(t *testing.T) {
	client := startProofServer(t, proofs.StaticSource{"abc123": {
		{Service: "twitter", Identifier: "alice", Valid: true},
	}})

	c, err := proofs.NewChecker(proofs.Policy{Enabled: true, MinProofs: 1}, client)
	require.NoError(t, err)
	assert.NoError(t, c.CheckProofs(context.Background(), "abc123"))
}
