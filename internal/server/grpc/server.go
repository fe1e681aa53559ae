package grpc

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/dmitrijs2005/dirlist/internal/logging"
	pb "github.com/dmitrijs2005/dirlist/internal/proto"
	"github.com/dmitrijs2005/dirlist/internal/server/models"
	"google.golang.org/grpc"
)

// Extractor queues archive extractions and reports on them.
type Extractor interface {
	Extract(ctx context.Context, relPath string) (*models.ExtractionProgress, error)
	Progress(ctx context.Context, id string) (*models.ExtractionProgress, error)
}

// ZipDownloader serves directories as zip archives.
type ZipDownloader interface {
	DownloadZipped(ctx context.Context, relDir string) (*os.File, *models.DirectoryZip, error)
	PresignedURL(ctx context.Context, relDir string) (string, error)
}

type GRPCServer struct {
	pb.UnimplementedDirlistServer
	address    string
	extraction Extractor
	zips       ZipDownloader
	logger     logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, es Extractor, zs ZipDownloader) *GRPCServer {
	return &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		extraction: es,
		zips:       zs,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.loggingInterceptor),
		grpc.ChainStreamInterceptor(s.streamRecoveryInterceptor, s.streamLoggingInterceptor),
	)

	pb.RegisterDirlistServer(srv, s)

	stopped := make(chan struct{})
	defer close(stopped)

	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping gRPC server...")
			srv.GracefulStop()
		case <-stopped:
		}
	}()

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}
