package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/common"
	pb "github.com/dmitrijs2005/dirlist/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.DirlistClient
}

func NewDirlistClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewDirlistClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// Extract queues extraction of the archive at path, relative to the server
// root.
func (s *GRPCClient) Extract(ctx context.Context, path string) (pb.Progress, error) {

	resp, err := s.client.Extract(ctx, wrapperspb.String(path))
	if err != nil {
		return pb.Progress{}, s.mapError(err)
	}

	return pb.ProgressFromStruct(resp)
}

func (s *GRPCClient) Progress(ctx context.Context, id string) (pb.Progress, error) {

	resp, err := s.client.GetExtractionProgress(ctx, wrapperspb.String(id))
	if err != nil {
		return pb.Progress{}, s.mapError(err)
	}

	return pb.ProgressFromStruct(resp)
}

// WaitExtraction polls the progress of job id every interval until it
// reaches a terminal state. onProgress, when set, sees every report.
func (s *GRPCClient) WaitExtraction(ctx context.Context, id string, interval time.Duration, onProgress func(pb.Progress)) (pb.Progress, error) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p, err := s.Progress(ctx, id)
		if err != nil {
			return pb.Progress{}, err
		}
		if onProgress != nil {
			onProgress(p)
		}
		if p.State != "running" {
			return p, nil
		}

		select {
		case <-ctx.Done():
			return p, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DownloadZip writes the zip of dirZip, a "<dir>.zip" path, to w. It
// returns the number of bytes written.
func (s *GRPCClient) DownloadZip(ctx context.Context, dirZip string, w io.Writer) (int64, error) {

	stream, err := s.client.DownloadDirectoryZip(ctx, wrapperspb.String(dirZip))
	if err != nil {
		return 0, s.mapError(err)
	}

	var written int64
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, s.mapError(err)
		}
		n, err := w.Write(msg.GetValue())
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	md, err := stream.Header()
	if err == nil {
		if v := md.Get(pb.ZipSizeHeader); len(v) > 0 {
			if size, perr := strconv.ParseInt(v[0], 10, 64); perr == nil && size != written {
				return written, fmt.Errorf("short download: got %d of %d bytes", written, size)
			}
		}
	}

	return written, nil
}

// ZipURL returns a presigned object storage URL for the zip of dirZip.
func (s *GRPCClient) ZipURL(ctx context.Context, dirZip string) (string, error) {

	resp, err := s.client.GetDirectoryZipURL(ctx, wrapperspb.String(dirZip))
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.GetValue(), nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unavailable:
		if strings.Contains(st.Message(), common.ErrLockTimeout.Error()) {
			return fmt.Errorf("%w: %s", ErrBusy, st.Message())
		}
		return ErrUnavailable
	case codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalid, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrTooLarge, st.Message())
	case codes.FailedPrecondition, codes.Unimplemented:
		return fmt.Errorf("%w: %s", ErrNotSupported, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
