// Package rpc defines the gRPC wire contract for the custody service. The
// service speaks JSON frames over gRPC through a registered codec, so the
// message types below are plain structs rather than protobuf-generated code.
package rpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype clients must request.
const CodecName = "json"

const buyMethod = "/custody.v1.Custody/Buy"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return CodecName }

type BuyRequest struct {
	RequestID string `json:"request_id"`
	Buyer     string `json:"buyer"`
	Mint      string `json:"mint"`
	Quantity  uint64 `json:"quantity"`
}

type BuyResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ReceiptID string `json:"receipt_id,omitempty"`
	TotalCost uint64 `json:"total_cost,omitempty"`
}

// CustodyServer is the server contract for the custody gRPC service.
type CustodyServer interface {
	Buy(ctx context.Context, req *BuyRequest) (*BuyResponse, error)
}

func RegisterCustodyServer(s grpc.ServiceRegistrar, srv CustodyServer) {
	s.RegisterService(&custodyServiceDesc, srv)
}

func buyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(BuyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CustodyServer).Buy(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: buyMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CustodyServer).Buy(ctx, req.(*BuyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var custodyServiceDesc = grpc.ServiceDesc{
	ServiceName: "custody.v1.Custody",
	HandlerType: (*CustodyServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Buy",
			Handler:    buyHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "custody/v1/custody.json",
}

// CustodyClient is the client side of the custody gRPC service.
type CustodyClient interface {
	Buy(ctx context.Context, in *BuyRequest, opts ...grpc.CallOption) (*BuyResponse, error)
}

type custodyClient struct {
	cc grpc.ClientConnInterface
}

func NewCustodyClient(cc grpc.ClientConnInterface) CustodyClient {
	return &custodyClient{cc: cc}
}

func (c *custodyClient) Buy(ctx context.Context, in *BuyRequest, opts ...grpc.CallOption) (*BuyResponse, error) {
	out := new(BuyResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, buyMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
