package config

import (
	"context"
	"fmt"

	"github.com/catalogfs/commitcoord/internal/logger"
	"github.com/catalogfs/commitcoord/pkg/storage"
	"github.com/catalogfs/commitcoord/pkg/storage/fs"
	"github.com/catalogfs/commitcoord/pkg/storage/memory"
	"github.com/catalogfs/commitcoord/pkg/storage/s3"
)

// BuildDriver constructs the storage.Driver described by cfg.Backend.
func BuildDriver(ctx context.Context, cfg BackendConfig) (storage.Driver, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(), nil
	case "fs":
		if cfg.Root == "" {
			return nil, fmt.Errorf("backend fs: root is required")
		}
		logger.Debug("opening fs backend", logger.KeyPath, cfg.Root)
		return fs.New(cfg.Root)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("backend s3: bucket is required")
		}
		client, err := s3.NewClient(ctx, s3.ClientConfig{
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UsePathStyle:    cfg.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("backend s3: %w", err)
		}
		return s3.New(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("backend: unknown type %q (want fs, memory, or s3)", cfg.Type)
	}
}
