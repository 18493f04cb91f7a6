// Package media turns Telegram file ids into shareable URLs. Files are
// downloaded once, optionally converted, then either re-served by the
// built-in HTTP server or pushed to an external image host.
package media

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/ircgram/internal/config"
	"github.com/flemzord/ircgram/internal/telegram"
)

// fetcher is the slice of the Telegram client the store needs. Factored out
// so downloads are testable against a local HTTP server.
type fetcher interface {
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	FileURL(filePath string) string
}

// Uploader pushes a local file to an external host and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Store downloads Telegram files into the state directory and resolves them
// to URLs. It caches by file id: Telegram file ids are stable per bot, so a
// re-posted sticker is never fetched twice.
type Store struct {
	fetch    fetcher
	http     *http.Client
	uploader Uploader

	dir      string
	location string
	cfg      config.MediaConfig
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]string // file id → basename under dir
}

// StoreOptions configures a Store.
type StoreOptions struct {
	Fetcher  fetcher
	Dir      string // directory downloaded files live in
	Location string // external base URL the directory is served under
	Config   config.MediaConfig
	Uploader Uploader // nil unless an external host is configured
	Logger   *slog.Logger
}

// NewStore creates the media store and its files directory.
func NewStore(opts StoreOptions) (*Store, error) {
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("media: create files dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		fetch:    opts.Fetcher,
		http:     &http.Client{Timeout: 60 * time.Second},
		uploader: opts.Uploader,
		dir:      opts.Dir,
		location: strings.TrimRight(opts.Location, "/"),
		cfg:      opts.Config,
		logger:   logger.With("component", "media"),
		cache:    make(map[string]string),
	}, nil
}

// NewUploader builds the external host named in the configuration, or nil
// when files are served locally.
func NewUploader(ctx context.Context, cfg config.MediaConfig) (Uploader, error) {
	switch cfg.Upload {
	case "":
		return nil, nil
	case "imgur":
		return newImgurUploader(cfg.ImgurClientID), nil
	case "s3":
		return newS3Uploader(ctx, cfg.S3, cfg.RandomLength)
	default:
		return nil, fmt.Errorf("media: unknown upload host %q", cfg.Upload)
	}
}

// ServeFile downloads the file if needed and returns the URL it is served
// under by the built-in (or external) web server.
func (s *Store) ServeFile(ctx context.Context, fileID string) (string, error) {
	name, err := s.fetchLocal(ctx, fileID)
	if err != nil {
		return "", err
	}
	return s.location + "/" + name, nil
}

// Upload downloads the file if needed and pushes it to the external host.
// Without one configured it falls back to local serving.
func (s *Store) Upload(ctx context.Context, fileID string) (string, error) {
	if s.uploader == nil {
		return s.ServeFile(ctx, fileID)
	}
	name, err := s.fetchLocal(ctx, fileID)
	if err != nil {
		return "", err
	}
	url, err := s.uploader.Upload(ctx, filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("media: upload %s: %w", fileID, err)
	}
	return url, nil
}

// fetchLocal resolves a file id to a basename under the files directory,
// downloading and converting on first sight.
func (s *Store) fetchLocal(ctx context.Context, fileID string) (string, error) {
	s.mu.Lock()
	if name, ok := s.cache[fileID]; ok {
		s.mu.Unlock()
		return name, nil
	}
	s.mu.Unlock()

	info, err := s.fetch.GetFile(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("media: resolve %s: %w", fileID, err)
	}

	name := randomName(s.cfg.RandomLength) + strings.ToLower(path.Ext(info.FilePath))
	local := filepath.Join(s.dir, name)
	if err := s.download(ctx, s.fetch.FileURL(info.FilePath), local); err != nil {
		return "", fmt.Errorf("media: download %s: %w", fileID, err)
	}

	if converted, err := s.convert(ctx, local); err != nil {
		// Serve the original rather than dropping the message.
		s.logger.Warn("conversion failed, serving original", "file", name, "error", err)
	} else if converted != "" {
		name = converted
	}

	s.mu.Lock()
	s.cache[fileID] = name
	s.mu.Unlock()
	return name, nil
}

func (s *Store) download(ctx context.Context, url, local string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	f, err := os.OpenFile(local, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(local)
		return err
	}
	return f.Close()
}

// convert rewrites the file to the configured target format and returns the
// new basename, or "" when no conversion applies. Telegram stickers arrive
// as webp, which most IRC users' viewers choke on.
func (s *Store) convert(ctx context.Context, local string) (string, error) {
	from := strings.TrimPrefix(strings.ToLower(filepath.Ext(local)), ".")
	to, ok := s.cfg.Conversions[from]
	if !ok || to == from {
		return "", nil
	}

	out := strings.TrimSuffix(local, filepath.Ext(local)) + "." + to
	var cmd *exec.Cmd
	if from == "webp" {
		cmd = exec.CommandContext(ctx, "dwebp", local, "-o", out)
	} else {
		cmd = exec.CommandContext(ctx, "convert", local, out)
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("%s: %w: %s", cmd.Args[0], err, strings.TrimSpace(string(output)))
	}
	os.Remove(local)
	return filepath.Base(out), nil
}

// randomName generates an unguessable path segment. Served filenames must
// not be enumerable since the files directory is public.
func randomName(length int) string {
	if length <= 0 {
		length = 8
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is not recoverable
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:length]
}
