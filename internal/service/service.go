package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

// uploaders builds the summary sinks from the service configuration.
// Without a dir or repository the report goes to stdout.
func uploaders(_ context.Context, cfg model.Service) ([]model.Uploader, error) {
	if cfg.Dir == nil && (cfg.Repository == nil || !cfg.Repository.Enabled) {
		return []model.Uploader{NewWriteUploader(os.Stdout)}, nil
	}
	var ups []model.Uploader
	if cfg.Dir != nil && *cfg.Dir != "" {
		u, err := NewOSRootUploader(*cfg.Dir)
		if err != nil {
			return nil, err
		}
		ups = append(ups, u)
	}

	if cfg.Repository != nil && cfg.Repository.Enabled {
		u, err := NewReportUploader(cfg.Repository.URL, cfg.Repository.Auth)
		if err != nil {
			return nil, err
		}
		ups = append(ups, u)
	}
	return ups, nil
}

type WriteUploader struct {
	w io.Writer
}

func NewWriteUploader(w io.Writer) WriteUploader {
	return WriteUploader{w: w}
}

func (u WriteUploader) Upload(_ context.Context, raw []byte) error {
	if u.w == nil {
		u.w = os.Stdout
	}
	_, err := u.w.Write(raw)
	return err
}

// OSRootUploader stores reports as timestamped JSON files inside a
// directory, never escaping it.
type OSRootUploader struct {
	root *os.Root
}

func NewOSRootUploader(path string) (*OSRootUploader, error) {
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, err
	}
	return &OSRootUploader{root: root}, nil
}

func (u *OSRootUploader) Upload(ctx context.Context, b []byte) error {
	if u.root == nil {
		return errors.New("root already closed")
	}

	path := "scanner-" + time.Now().Format("2006-01-02-15-04-05") + ".json"

	f, err := u.root.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	_, err = f.Write(b)
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("closing report: %w", err)
	}
	slog.InfoContext(ctx, "report saved", "path", path)
	return nil
}

func (u *OSRootUploader) Close() error {
	if u.root == nil {
		return errors.New("uploader already closed")
	}
	err := u.root.Close()
	u.root = nil
	return err
}
