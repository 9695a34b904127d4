package proofs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sagarc03/hubstore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	proofServiceName   = "hubstore.proofs.v1.ProofService"
	listProofsMethod   = "/" + proofServiceName + "/ListProofs"
	defaultGRPCTimeout = 5 * time.Second
)

// ProofServiceServer is the server API of the proof service.
//
// Requests and responses use protobuf well-known types: the address is a
// StringValue and the proofs are a ListValue of {service, identifier, valid}
// structs.
type ProofServiceServer interface {
	ListProofs(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
}

// RegisterProofServiceServer registers srv on a gRPC server.
func RegisterProofServiceServer(s grpc.ServiceRegistrar, srv ProofServiceServer) {
	s.RegisterService(&ProofService_ServiceDesc, srv)
}

func _ProofService_ListProofs_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProofServiceServer).ListProofs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listProofsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProofServiceServer).ListProofs(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ProofService_ServiceDesc is the grpc.ServiceDesc for the proof service.
var ProofService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: proofServiceName,
	HandlerType: (*ProofServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListProofs", Handler: _ProofService_ListProofs_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proofs.proto",
}

// GRPCServer exposes a Source as the proof service.
type GRPCServer struct {
	Source Source
}

// ListProofs implements ProofServiceServer.
func (s *GRPCServer) ListProofs(ctx context.Context, in *wrapperspb.StringValue) (*structpb.ListValue, error) {
	address := in.GetValue()
	if !hubstore.IsValidAddress(address) {
		return nil, status.Error(codes.InvalidArgument, "invalid address")
	}

	list, err := s.Source.Proofs(ctx, address)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err()
		}
		return nil, status.Error(codes.Internal, "list proofs failed")
	}

	return encodeProofs(list)
}

// GRPCSource reads proofs from a remote proof service.
type GRPCSource struct {
	cc      grpc.ClientConnInterface
	Timeout time.Duration
}

// NewGRPCSource creates a Source backed by a proof service connection.
func NewGRPCSource(cc grpc.ClientConnInterface) *GRPCSource {
	return &GRPCSource{cc: cc, Timeout: defaultGRPCTimeout}
}

// Proofs implements Source.
func (s *GRPCSource) Proofs(ctx context.Context, address string) ([]Proof, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	out := new(structpb.ListValue)
	if err := s.cc.Invoke(ctx, listProofsMethod, wrapperspb.String(address), out); err != nil {
		return nil, fmt.Errorf("grpc list proofs: %w", err)
	}

	list, err := decodeProofs(out)
	if err != nil {
		return nil, fmt.Errorf("grpc list proofs: %w", err)
	}

	return list, nil
}

func encodeProofs(list []Proof) (*structpb.ListValue, error) {
	values := make([]interface{}, 0, len(list))
	for _, p := range list {
		values = append(values, map[string]interface{}{
			"service":    p.Service,
			"identifier": p.Identifier,
			"valid":      p.Valid,
		})
	}

	out, err := structpb.NewList(values)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode proofs")
	}
	return out, nil
}

func decodeProofs(in *structpb.ListValue) ([]Proof, error) {
	list := make([]Proof, 0, len(in.GetValues()))
	for i, v := range in.GetValues() {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("decode proof %d: not a struct", i)
		}
		list = append(list, Proof{
			Service:    fields["service"].GetStringValue(),
			Identifier: fields["identifier"].GetStringValue(),
			Valid:      fields["valid"].GetBoolValue(),
		})
	}
	return list, nil
}
