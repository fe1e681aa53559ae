// Package cli implements the dirlist command-line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/client/client"
	"github.com/dmitrijs2005/dirlist/internal/client/config"
	"github.com/dmitrijs2005/dirlist/internal/flagx"
	pb "github.com/dmitrijs2005/dirlist/internal/proto"
)

// API is the subset of the dirlist client used by the commands.
type API interface {
	Extract(ctx context.Context, path string) (pb.Progress, error)
	Progress(ctx context.Context, id string) (pb.Progress, error)
	WaitExtraction(ctx context.Context, id string, interval time.Duration, onProgress func(pb.Progress)) (pb.Progress, error)
	DownloadZip(ctx context.Context, dirZip string, w io.Writer) (int64, error)
	ZipURL(ctx context.Context, dirZip string) (string, error)
	Close() error
}

var ErrUsage = errors.New("usage")

// configFlags are consumed by the config package and hidden from commands.
var configFlags = []string{"-a", "-i", "-c", "-config"}

type App struct {
	config *config.Config
	api    API
	out    io.Writer
}

func NewApp(c *config.Config) (*App, error) {

	apiClient, err := client.NewDirlistClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}

	return &App{config: c, api: apiClient, out: os.Stdout}, nil
}

// Run executes the command in args, typically os.Args[1:].
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.api.Close()

	args = flagx.StripArgs(args, configFlags)
	if len(args) == 0 {
		a.usage()
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "extract":
		if len(rest) != 1 {
			return a.usageError("extract <archive path>")
		}
		return a.extract(ctx, rest[0])
	case "progress":
		if len(rest) != 1 {
			return a.usageError("progress <job id>")
		}
		return a.progress(ctx, rest[0])
	case "wait":
		if len(rest) != 1 {
			return a.usageError("wait <job id>")
		}
		return a.wait(ctx, rest[0])
	case "download":
		if len(rest) < 1 || len(rest) > 2 {
			return a.usageError("download <dir>.zip [output file]")
		}
		out := ""
		if len(rest) == 2 {
			out = rest[1]
		}
		return a.download(ctx, rest[0], out)
	case "url":
		if len(rest) != 1 {
			return a.usageError("url <dir>.zip")
		}
		return a.url(ctx, rest[0])
	case "help":
		a.usage()
		return nil
	default:
		a.usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "Available commands: extract, progress, wait, download, url, help")
}

func (a *App) usageError(s string) error {
	return fmt.Errorf("%w: %s", ErrUsage, s)
}

func (a *App) extract(ctx context.Context, archive string) error {
	p, err := a.api.Extract(ctx, archive)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "queued %s: %d bytes into %s\n", p.ID, p.TotalSize, p.DestinationPath)
	return nil
}

func (a *App) progress(ctx context.Context, id string) error {
	p, err := a.api.Progress(ctx, id)
	if err != nil {
		return err
	}
	a.printProgress(p)
	return nil
}

func (a *App) wait(ctx context.Context, id string) error {
	p, err := a.api.WaitExtraction(ctx, id, a.config.PollInterval, a.printProgress)
	if err != nil {
		return err
	}
	if p.State == "failed" {
		return fmt.Errorf("extraction %s failed: %s", p.ID, p.Error)
	}
	return nil
}

func (a *App) printProgress(p pb.Progress) {
	pct := 0.0
	if p.TotalSize > 0 {
		pct = 100 * float64(p.ExtractedSize) / float64(p.TotalSize)
	}
	fmt.Fprintf(a.out, "%s %s %d/%d (%.0f%%)\n", p.ID, p.State, p.ExtractedSize, p.TotalSize, pct)
}

func (a *App) download(ctx context.Context, dirZip, out string) error {
	if out == "" {
		out = path.Base(strings.ReplaceAll(dirZip, "\\", "/"))
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}

	n, err := a.api.DownloadZip(ctx, dirZip, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(out)
		return err
	}

	fmt.Fprintf(a.out, "saved %s (%d bytes)\n", out, n)
	return nil
}

func (a *App) url(ctx context.Context, dirZip string) error {
	u, err := a.api.ZipURL(ctx, dirZip)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, u)
	return nil
}
