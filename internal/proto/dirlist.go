// Package proto declares the dirlist.v1.Dirlist gRPC service. Messages are
// protobuf well-known types, so the service descriptor and the client stub
// are written by hand instead of generated.
package proto

import (
	"context"
	"fmt"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "dirlist.v1.Dirlist"

const (
	Dirlist_Extract_FullMethodName               = "/dirlist.v1.Dirlist/Extract"
	Dirlist_GetExtractionProgress_FullMethodName = "/dirlist.v1.Dirlist/GetExtractionProgress"
	Dirlist_GetDirectoryZipURL_FullMethodName    = "/dirlist.v1.Dirlist/GetDirectoryZipURL"
	Dirlist_DownloadDirectoryZip_FullMethodName  = "/dirlist.v1.Dirlist/DownloadDirectoryZip"
)

// ZipSizeHeader carries the archive size in the DownloadDirectoryZip
// response header.
const ZipSizeHeader = "x-zip-size"

// ChunkSize is the payload size of each DownloadDirectoryZip message.
const ChunkSize = 64 << 10

// DirlistServer is the server API for the dirlist.v1.Dirlist service.
type DirlistServer interface {
	// Extract queues extraction of an archive and returns its initial progress.
	Extract(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetExtractionProgress reports on a queued or recently finished extraction.
	GetExtractionProgress(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetDirectoryZipURL returns a presigned object storage URL for a
	// directory zip.
	GetDirectoryZipURL(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	// DownloadDirectoryZip streams a directory as a zip archive.
	DownloadDirectoryZip(*wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
}

// UnimplementedDirlistServer can be embedded to have forward compatible
// implementations.
type UnimplementedDirlistServer struct{}

func (UnimplementedDirlistServer) Extract(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Extract not implemented")
}

func (UnimplementedDirlistServer) GetExtractionProgress(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetExtractionProgress not implemented")
}

func (UnimplementedDirlistServer) GetDirectoryZipURL(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method GetDirectoryZipURL not implemented")
}

func (UnimplementedDirlistServer) DownloadDirectoryZip(*wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	return status.Error(codes.Unimplemented, "method DownloadDirectoryZip not implemented")
}

func RegisterDirlistServer(s grpc.ServiceRegistrar, srv DirlistServer) {
	s.RegisterService(&Dirlist_ServiceDesc, srv)
}

func unaryHandler[Req, Res any](method string, call func(DirlistServer, context.Context, *Req) (Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DirlistServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DirlistServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func downloadDirectoryZipHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DirlistServer).DownloadDirectoryZip(in, &grpc.GenericServerStream[wrapperspb.StringValue, wrapperspb.BytesValue]{ServerStream: stream})
}

// Dirlist_ServiceDesc is the grpc.ServiceDesc for the dirlist.v1.Dirlist service.
var Dirlist_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DirlistServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Extract",
			Handler: unaryHandler(Dirlist_Extract_FullMethodName, func(s DirlistServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
				return s.Extract(ctx, in)
			}),
		},
		{
			MethodName: "GetExtractionProgress",
			Handler: unaryHandler(Dirlist_GetExtractionProgress_FullMethodName, func(s DirlistServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
				return s.GetExtractionProgress(ctx, in)
			}),
		},
		{
			MethodName: "GetDirectoryZipURL",
			Handler: unaryHandler(Dirlist_GetDirectoryZipURL_FullMethodName, func(s DirlistServer, ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
				return s.GetDirectoryZipURL(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "DownloadDirectoryZip",
			Handler:       downloadDirectoryZipHandler,
			ServerStreams: true,
		},
	},
	Metadata: "dirlist/v1/dirlist.proto",
}

// DirlistClient is the client API for the dirlist.v1.Dirlist service.
type DirlistClient interface {
	Extract(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetExtractionProgress(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetDirectoryZipURL(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	DownloadDirectoryZip(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error)
}

type dirlistClient struct {
	cc grpc.ClientConnInterface
}

func NewDirlistClient(cc grpc.ClientConnInterface) DirlistClient {
	return &dirlistClient{cc}
}

func (c *dirlistClient) Extract(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Dirlist_Extract_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dirlistClient) GetExtractionProgress(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Dirlist_GetExtractionProgress_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dirlistClient) GetDirectoryZipURL(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, Dirlist_GetDirectoryZipURL_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dirlistClient) DownloadDirectoryZip(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error) {
	stream, err := c.cc.NewStream(ctx, &Dirlist_ServiceDesc.Streams[0], Dirlist_DownloadDirectoryZip_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.StringValue, wrapperspb.BytesValue]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// Progress is the wire form of an extraction progress report.
type Progress struct {
	ID              string
	TotalSize       int64
	ExtractedSize   int64
	DestinationPath string
	State           string
	Error           string
}

// ToStruct encodes p as a google.protobuf.Struct. Sizes travel as decimal
// strings: Struct numbers are doubles and lose precision above 2^53.
func (p Progress) ToStruct() (*structpb.Struct, error) {
	fields := map[string]any{
		"id":              p.ID,
		"totalSize":       strconv.FormatInt(p.TotalSize, 10),
		"extractedSize":   strconv.FormatInt(p.ExtractedSize, 10),
		"destinationPath": p.DestinationPath,
		"state":           p.State,
	}
	if p.Error != "" {
		fields["error"] = p.Error
	}
	return structpb.NewStruct(fields)
}

// ProgressFromStruct decodes a Struct produced by Progress.ToStruct.
func ProgressFromStruct(s *structpb.Struct) (Progress, error) {
	if s == nil {
		return Progress{}, fmt.Errorf("empty progress message")
	}
	f := s.GetFields()
	id := f["id"].GetStringValue()
	if id == "" {
		return Progress{}, fmt.Errorf("progress message has no id")
	}
	total, err := sizeField(f, "totalSize")
	if err != nil {
		return Progress{}, err
	}
	extracted, err := sizeField(f, "extractedSize")
	if err != nil {
		return Progress{}, err
	}
	return Progress{
		ID:              id,
		TotalSize:       total,
		ExtractedSize:   extracted,
		DestinationPath: f["destinationPath"].GetStringValue(),
		State:           f["state"].GetStringValue(),
		Error:           f["error"].GetStringValue(),
	}, nil
}

// sizeField reads a decimal size. A missing field is zero.
func sizeField(f map[string]*structpb.Value, name string) (int64, error) {
	v, ok := f[name]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(v.GetStringValue(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("progress message has invalid %s: %w", name, err)
	}
	return n, nil
}
