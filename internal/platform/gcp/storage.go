package gcp

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

// NewStorageClient builds a GCS client for mode. Emulator mode talks to
// emulatorHost without authentication.
func NewStorageClient(ctx context.Context, mode ObjectStorageMode, emulatorHost string) (*storage.Client, error) {
	switch mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		endpoint, err := normalizeEmulatorHost(emulatorHost)
		if err != nil {
			return nil, err
		}
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, fmt.Errorf("invalid object storage mode %q (allowed: %q, %q)", mode, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	}
}

func normalizeEmulatorHost(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("object storage mode %q requires STORAGE_EMULATOR_HOST", ObjectStorageModeGCSEmulator)
	}
	// Parse before trimming slashes so "http://" is not read as host "http:".
	probe := raw
	if !strings.Contains(probe, "://") {
		probe = "http://" + probe
	}
	u, err := url.Parse(probe)
	if err != nil || u.Hostname() == "" || strings.HasSuffix(u.Host, ":") {
		return "", fmt.Errorf("invalid STORAGE_EMULATOR_HOST=%q", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
