// Package http resolves watermark images over HTTP and keeps them in a disk
// cache keyed by URL.
package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Wyydra/looper/internal/core/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	maxAssetSize        = 4 << 20
	defaultFetchTimeout = 30 * time.Second
)

type Provider struct {
	client  *http.Client
	dir     string
	timeout time.Duration

	mu    sync.RWMutex
	paths map[string]string
	group singleflight.Group
}

// NewProvider stores assets under dir, creating it if needed. A nil client
// means http.DefaultClient.
func NewProvider(dir string, client *http.Client) (*Provider, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset cache: %w", err)
	}
	return &Provider{
		client:  client,
		dir:     dir,
		timeout: defaultFetchTimeout,
		paths:   make(map[string]string),
	}, nil
}

// Resolve returns a local path holding the image at url. Concurrent calls for
// the same url share one download, which outlives any single caller giving
// up.
func (p *Provider) Resolve(ctx context.Context, url string) (string, error) {
	p.mu.RLock()
	path, ok := p.paths[url]
	p.mu.RUnlock()
	if ok {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	ch := p.group.DoChan(url, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		return p.fetch(fetchCtx, url)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", &domain.AssetFetchError{URL: url, Err: ctx.Err()}
	}
	if res.Err != nil {
		return "", &domain.AssetFetchError{URL: url, Err: res.Err}
	}
	path = res.Val.(string)

	p.mu.Lock()
	p.paths[url] = path
	p.mu.Unlock()
	return path, nil
}

func (p *Provider) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxAssetSize {
		return "", fmt.Errorf("asset larger than %d bytes", maxAssetSize)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	} else if format != "png" {
		return "", fmt.Errorf("unsupported image format %q", format)
	}

	path := p.pathFor(url)
	tmp, err := os.CreateTemp(p.dir, ".download-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}

	log.Info().Str("module", "asset.http").Str("url", url).Str("path", path).Int("bytes", len(data)).Msg("Watermark cached")
	return path, nil
}

func (p *Provider) pathFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(p.dir, hex.EncodeToString(sum[:8])+".png")
}
