package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/ramal"
	httpAdapter "github.com/aretw0/ramal/pkg/adapters/http"
	natsAdapter "github.com/aretw0/ramal/pkg/adapters/nats"
	"github.com/aretw0/ramal/pkg/domain"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and, when configured, the NATS consumer",
	Long: `Serves the chat API over HTTP. Effects and handoffs are streamed to
SSE subscribers of /events. With nats.url set, inbound messages are also
consumed from NATS and effects are published back to it.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides server.addr)")
}

// mirror delivers to the primary sink and copies to the event streams.
type mirror struct {
	primary *natsAdapter.Publisher
	streams *httpAdapter.StreamManager
}

func (m mirror) Send(ctx context.Context, chatID string, effect domain.Effect) error {
	_ = m.streams.Send(ctx, chatID, effect)
	return m.primary.Send(ctx, chatID, effect)
}

func (m mirror) AssignToQueue(ctx context.Context, chatID string, reason string) error {
	if err := m.primary.AssignToQueue(ctx, chatID, reason); err != nil {
		return err
	}
	return m.streams.AssignToQueue(ctx, chatID, reason)
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.Logger
	cfg := rt.Config
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	streams := httpAdapter.NewStreamManager(logger)
	opts := []ramal.Option{ramal.WithChannel(streams), ramal.WithLifecycle(streams)}

	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name("ramal"))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer nc.Drain()
		out := mirror{primary: natsAdapter.NewPublisher(nc, cfg.NATS.SubjectPrefix), streams: streams}
		opts = append(opts, ramal.WithChannel(out), ramal.WithLifecycle(out))
	}

	bot, err := rt.NewBot(opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpAdapter.NewHandler(bot, bot.Catalog(),
			httpAdapter.WithStreams(streams),
			httpAdapter.WithGatherer(rt.Registry),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithChatRateLimit(cfg.Server.ChatRateLimit, cfg.Server.ChatBurst),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting ramal server", "addr", srv.Addr, "flow_source", cfg.Flows.Source, "sessions", cfg.Sessions.Backend)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if nc != nil {
		queue := cfg.NATS.Queue
		if queue == "" {
			queue = natsAdapter.DefaultQueue
		}
		consumer := natsAdapter.NewConsumer(nc, bot, cfg.NATS.SubjectPrefix,
			natsAdapter.WithQueue(queue),
			natsAdapter.WithLogger(logger),
		)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Give outstanding requests a deadline for completion.
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		logger.Info("ramal server stopped gracefully")
		return nil
	})

	return g.Wait()
}
