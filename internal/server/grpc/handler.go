package grpc

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/dmitrijs2005/dirlist/internal/common"
	pb "github.com/dmitrijs2005/dirlist/internal/proto"
	"github.com/dmitrijs2005/dirlist/internal/server/models"
	"github.com/dmitrijs2005/dirlist/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func (s *GRPCServer) Extract(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {

	p, err := s.extraction.Extract(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return progressMessage(p)
}

func (s *GRPCServer) GetExtractionProgress(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {

	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	p, err := s.extraction.Progress(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return progressMessage(p)
}

func (s *GRPCServer) GetDirectoryZipURL(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {

	dir, err := services.ParseDownloadPath(req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	url, err := s.zips.PresignedURL(ctx, dir)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return wrapperspb.String(url), nil
}

// DownloadDirectoryZip streams the zip of the requested "<dir>.zip" path in
// pb.ChunkSize pieces. The archive size is sent ahead in the header.
func (s *GRPCServer) DownloadDirectoryZip(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	ctx := stream.Context()

	dir, err := services.ParseDownloadPath(req.GetValue())
	if err != nil {
		return s.toStatus(ctx, err)
	}

	f, info, err := s.zips.DownloadZipped(ctx, dir)
	if err != nil {
		return s.toStatus(ctx, err)
	}
	defer f.Close()

	if err := stream.SendHeader(metadata.Pairs(pb.ZipSizeHeader, strconv.FormatInt(info.Size, 10))); err != nil {
		return err
	}

	buf := make([]byte, pb.ChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if serr := stream.Send(wrapperspb.Bytes(buf[:n])); serr != nil {
				return serr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return s.toStatus(ctx, err)
		}
	}
}

func progressMessage(p *models.ExtractionProgress) (*structpb.Struct, error) {
	msg, err := pb.Progress{
		ID:              p.ID,
		TotalSize:       p.TotalSize,
		ExtractedSize:   p.ExtractedSize,
		DestinationPath: p.DestinationPath,
		State:           string(p.State),
		Error:           p.Error,
	}.ToStruct()
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return msg, nil
}

// toStatus maps service errors onto gRPC status codes. Internal faults are
// logged and reported without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, common.ErrUnsupportedType),
		errors.Is(err, common.ErrSourceNotFound),
		errors.Is(err, common.ErrCorruptArchive),
		errors.Is(err, common.ErrNotDirectory):
		code = codes.InvalidArgument
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrDirectoryNotFound):
		code = codes.NotFound
	case errors.Is(err, common.ErrSizeExceeded):
		code = codes.PermissionDenied
	case errors.Is(err, common.ErrLockTimeout):
		code = codes.Unavailable
	case errors.Is(err, common.ErrMirrorDisabled):
		code = codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, common.ErrorInternal.Error())
	}
	return status.Error(code, err.Error())
}
