// Package modelstore downloads pretrained MobileNetV2 weights and caches
// them on disk.
//
// A weight file is cached as <root>/<name>-<error>-<sha256[:8]>.safetensors
// and is only ever moved into place after its checksum has been verified.
package modelstore

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/mobilenet/internal/checkpoint"
)

// Defaults.
const (
	DefaultBaseURL     = "https://github.com/born-ml/mobilenet/releases/download"
	DefaultConcurrency = 4

	// RootEnv overrides the default cache directory.
	RootEnv = "BORN_MODELS_ROOT"
)

// DefaultRoot returns $BORN_MODELS_ROOT, or ~/.born/models.
func DefaultRoot() string {
	if root := os.Getenv(RootEnv); root != "" {
		return root
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".born", "models")
	}
	return filepath.Join(home, ".born", "models")
}

// Store fetches weight files listed in a manifest.
type Store struct {
	root     string
	baseURL  string
	manifest *Manifest
	client   *http.Client
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithRoot sets the cache directory.
func WithRoot(root string) Option {
	return func(s *Store) { s.root = root }
}

// WithBaseURL sets the release download prefix.
func WithBaseURL(url string) Option {
	return func(s *Store) { s.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) { s.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a store over manifest.
func New(manifest *Manifest, opts ...Option) *Store {
	if manifest == nil {
		manifest = &Manifest{}
	}
	s := &Store{
		root:     DefaultRoot(),
		baseURL:  DefaultBaseURL,
		manifest: manifest,
		client:   &http.Client{Timeout: 10 * time.Minute},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the cache directory.
func (s *Store) Root() string { return s.root }

// Manifest returns the manifest the store serves.
func (s *Store) Manifest() *Manifest { return s.manifest }

// Path returns where the weights for name are cached. The file may not exist.
func (s *Store) Path(name string) (string, error) {
	e, err := s.manifest.Lookup(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, e.FileName()), nil
}

// URL returns the download location for an entry.
func (s *Store) URL(e Entry) string {
	if e.URL != "" {
		return e.URL
	}
	return s.baseURL + "/" + path.Join(e.Release, e.FileName()+".zip")
}

// Fetch returns the local path of the weights for name, downloading them
// when the cache has no file with a matching checksum.
func (s *Store) Fetch(ctx context.Context, name string) (string, error) {
	e, err := s.manifest.Lookup(name)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.root, e.FileName())
	logger := s.logger.With(zap.String("model", name), zap.String("path", dst))

	switch err := checkpoint.VerifyFile(dst, e.SHA256); {
	case err == nil:
		logger.Debug("Using cached weights")
		return dst, nil
	case errors.Is(err, checkpoint.ErrChecksumMismatch):
		logger.Warn("Cached weights are corrupted, downloading again", zap.Error(err))
	case !errors.Is(err, os.ErrNotExist):
		return "", err
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model store: %w", err)
	}

	url := s.URL(e)
	logger.Info("Downloading weights", zap.String("url", url))
	start := time.Now()

	tmp, err := s.download(ctx, url, e.FileName())
	if err != nil {
		return "", err
	}
	defer func() {
		_ = os.Remove(tmp) // No-op once renamed
	}()

	if strings.HasSuffix(strings.ToLower(url), ".zip") {
		extracted, err := extract(tmp, e.FileName())
		_ = os.Remove(tmp) // The archive is no longer needed
		if err != nil {
			return "", err
		}
		tmp = extracted
	}

	if err := checkpoint.VerifyFile(tmp, e.SHA256); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("failed to move weights into place: %w", err)
	}

	logger.Info("Weights ready", zap.Duration("elapsed", time.Since(start)))
	return dst, nil
}

// FetchAll fetches several models with at most concurrency downloads in
// flight and returns their paths by name. Duplicate names are fetched once.
func (s *Store) FetchAll(ctx context.Context, names []string, concurrency int) (map[string]string, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	unique := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			unique = append(unique, name)
		}
	}

	paths := make([]string, len(unique))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, name := range unique {
		g.Go(func() error {
			p, err := s.Fetch(ctx, name)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[string]string, len(unique))
	for i, name := range unique {
		result[name] = paths[i]
	}
	return result, nil
}

// Purge removes every cached weight file under the root.
func (s *Store) Purge() error {
	files, err := filepath.Glob(filepath.Join(s.root, "*.safetensors"))
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("failed to remove %s: %w", f, err)
		}
		s.logger.Debug("Removed cached weights", zap.String("path", f))
	}
	return nil
}

// download streams url into a temporary file under the store root.
func (s *Store) download(ctx context.Context, url, fileName string) (tmpPath string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer func() {
		_ = resp.Body.Close() // Body fully consumed or abandoned
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned %s", ErrDownload, url, resp.Status)
	}

	f, err := os.CreateTemp(s.root, fileName+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	return f.Name(), nil
}

// extract copies the weight file out of a zip archive next to it. The member
// named fileName wins; otherwise the archive must hold exactly one
// .safetensors file.
func extract(archive, fileName string) (tmpPath string, err error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchive, err)
	}
	defer func() {
		_ = r.Close() // Read-only
	}()

	var member *zip.File
	var candidates []*zip.File
	for _, f := range r.File {
		base := filepath.Base(f.Name)
		if base == fileName {
			member = f
			break
		}
		if strings.HasSuffix(base, ".safetensors") {
			candidates = append(candidates, f)
		}
	}
	if member == nil {
		if len(candidates) != 1 {
			return "", fmt.Errorf("%w: %s", ErrArchive, filepath.Base(archive))
		}
		member = candidates[0]
	}

	src, err := member.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchive, err)
	}
	defer func() {
		_ = src.Close() // Read-only
	}()

	out, err := os.CreateTemp(filepath.Dir(archive), fileName+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(out.Name())
		}
	}()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchive, err)
	}
	return out.Name(), nil
}
