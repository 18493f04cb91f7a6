package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/ircgram/pkg/message"
)

// messageSource is what the /messages endpoint reads. The id store keeps the
// recent relay log alongside the id map.
type messageSource interface {
	Messages() []*message.Message
}

// Server is the built-in HTTP server: it serves the downloaded media files,
// a JSON view of recently relayed messages, health and metrics.
type Server struct {
	addr     string
	filesDir string
	messages messageSource
	registry *prometheus.Registry
	logger   *slog.Logger

	server *http.Server
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Addr     string
	FilesDir string
	Messages messageSource
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// NewServer creates the HTTP server. It binds at Start.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     opts.Addr,
		filesDir: opts.FilesDir,
		messages: opts.Messages,
		registry: opts.Registry,
		logger:   logger.With("component", "http"),
	}
}

type messageJSON struct {
	Protocol string    `json:"protocol"`
	Channel  string    `json:"channel"`
	Type     string    `json:"type"`
	User     string    `json:"user,omitempty"`
	Text     string    `json:"text"`
	ID       string    `json:"id,omitempty"`
	Time     time.Time `json:"time"`
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Get("/messages", func(w http.ResponseWriter, _ *http.Request) {
		out := []messageJSON{}
		if s.messages != nil {
			for _, m := range s.messages.Messages() {
				entry := messageJSON{
					Protocol: string(m.Protocol),
					Type:     string(m.Type),
					User:     m.User,
					Text:     m.Text,
					ID:       m.ID,
					Time:     m.Time,
				}
				if m.Channel != nil {
					entry.Channel = m.Channel.DisplayName()
				}
				out = append(out, entry)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	// Media files at the root, matching the URLs ServeFile hands out.
	r.Handle("/*", http.FileServer(http.Dir(s.filesDir)))

	return r
}

// Start binds the listener and serves in the background. Bind failure is
// fatal; the media URLs the bridge hands out would be dead links.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http: listen on %s: %w", s.addr, err)
	}

	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http serve error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
