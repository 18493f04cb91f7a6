package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/ircgram/internal/app"
	"github.com/flemzord/ircgram/internal/config"
	"github.com/flemzord/ircgram/internal/cron"
	"github.com/flemzord/ircgram/internal/history"
	"github.com/flemzord/ircgram/internal/irc"
	"github.com/flemzord/ircgram/internal/media"
	"github.com/flemzord/ircgram/internal/metrics"
	"github.com/flemzord/ircgram/internal/relay"
	"github.com/flemzord/ircgram/internal/store"
	"github.com/flemzord/ircgram/internal/telegram"
	"github.com/flemzord/ircgram/internal/telemetry"
	"github.com/flemzord/ircgram/pkg/message"
)

// buildApp wires the whole bridge: stores, adapters, router, HTTP server and
// the flush scheduler, in start order.
func buildApp(cfg *config.Config, logger *slog.Logger) (*app.App, error) {
	ctx := context.Background()
	application := app.New(logger)

	promReg := prometheus.NewRegistry()
	counters := metrics.New(promReg)

	// Optional OTLP tracing. First in the list so spans from every later
	// service are exported, last to shut down.
	var tracer trace.Tracer
	if cfg.Telemetry.OTLPEndpoint != "" {
		provider, err := telemetry.Setup(ctx, cfg.Telemetry.OTLPEndpoint, version)
		if err != nil {
			return nil, err
		}
		tracer = provider.Tracer("ircgram")
		application.Add("telemetry", provider)
	}

	registry := relay.NewRegistry(cfg.Channels)

	chatIDs, err := store.OpenChatIDStore(cfg.Store.Dir, logger)
	if err != nil {
		return nil, err
	}
	ids := store.OpenMessageStore(filepath.Join(cfg.Store.Dir, "messageids.json"), logger)

	var archive relay.Archiver
	if cfg.History.Enabled {
		historyPath := cfg.History.Path
		if historyPath == "" {
			historyPath = filepath.Join(cfg.Store.Dir, "history.db")
		}
		arc, err := history.Open(historyPath)
		if err != nil {
			return nil, err
		}
		archive = arc
		application.Add("history", closerService{arc.Close})
	}

	// The adapters publish into the router's inbox, but the router needs
	// both adapters to dispatch. Break the cycle with a late-bound publish.
	var router *relay.Router
	publish := func(msg *message.Message) { router.Inbox()(msg) }

	// The media store downloads through its own Bot API client; the adapter
	// owns the polling client.
	var mediaHost telegram.MediaHost
	uploader, err := media.NewUploader(ctx, cfg.Media)
	if err != nil {
		return nil, err
	}
	filesDir := filepath.Join(cfg.Store.Dir, "files")
	mediaStore, err := media.NewStore(media.StoreOptions{
		Fetcher:  telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL),
		Dir:      filesDir,
		Location: cfg.HTTP.Location,
		Config:   cfg.Media,
		Uploader: uploader,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	mediaHost = mediaStore

	ircAdapter := irc.NewAdapter(irc.AdapterOptions{
		Registry: registry,
		Config:   cfg.IRC,
		Publish:  publish,
		Metrics:  counters,
		Logger:   logger,
	})

	tgAdapter := telegram.NewAdapter(telegram.AdapterOptions{
		Registry:    registry,
		ChatIDs:     chatIDs,
		IDs:         ids,
		Media:       mediaHost,
		Telegram:    cfg.Telegram,
		Format:      cfg.Format,
		MediaConfig: cfg.Media,
		Publish:     publish,
		Metrics:     counters,
		Logger:      logger,
	})

	router = relay.NewRouter(relay.RouterOptions{
		IRC:      ircAdapter,
		Telegram: tgAdapter,
		Log:      ids,
		Archive:  archive,
		Metrics:  counters,
		Tracer:   tracer,
		Logger:   logger,
		Version:  version,
	})

	// Router before adapters: the inbox must drain before events arrive.
	application.Add("router", router)
	application.Add("irc", ircAdapter)
	application.Add("telegram", tgAdapter)

	if !cfg.HTTP.External {
		application.Add("http", media.NewServer(media.ServerOptions{
			Addr:     cfg.HTTP.Listen,
			FilesDir: filesDir,
			Messages: ids,
			Registry: promReg,
			Logger:   logger,
		}))
	}

	scheduler := cron.NewScheduler(logger)
	if err := scheduler.RegisterJob(&cron.FlushJob{
		Target:       ids,
		JobName:      "messageids_flush",
		ScheduleExpr: cfg.Store.FlushSchedule,
		Logger:       logger,
	}); err != nil {
		return nil, fmt.Errorf("register flush job: %w", err)
	}
	application.Add("scheduler", scheduler)

	// Flush once more on the way down so ids survive restarts.
	application.Add("final-flush", flushOnStop{ids})

	return application, nil
}

// closerService adapts a plain Close to the app lifecycle.
type closerService struct{ close func() error }

func (c closerService) Stop(_ context.Context) error { return c.close() }

// flushOnStop flushes the id store during shutdown.
type flushOnStop struct{ ids *store.MessageStore }

func (f flushOnStop) Stop(_ context.Context) error { return f.ids.Flush() }
