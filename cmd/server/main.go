package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ignite/mailrelay/internal/api"
	"github.com/ignite/mailrelay/internal/config"
	"github.com/ignite/mailrelay/internal/dispatch"
	"github.com/ignite/mailrelay/internal/pkg/logger"
	"github.com/ignite/mailrelay/internal/service"
	"github.com/ignite/mailrelay/internal/smtp"
	"github.com/ignite/mailrelay/internal/store"
)

const configPath = "config/config.yaml"

func main() {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}
	if cfg.Profile == config.ProfileDevelopment {
		logger.SetLevel(logger.DEBUG)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Database.Path, "error", err.Error())
		os.Exit(1)
	}
	defer st.Close()

	queue := dispatch.NewQueue()
	sender := smtp.NewSender(st, smtp.NetTransport{}, cfg.SMTP.Timeout())
	retry := dispatch.NewRetryPolicy(st, queue, cfg.Queue.MaxRetries)
	dispatcher := dispatch.NewDispatcher(queue, sender, retry, cfg.Queue.Workers)

	if err := rehydrate(st, queue); err != nil {
		logger.Error("failed to rehydrate queue", "error", err.Error())
		os.Exit(1)
	}

	dispatcher.Start()

	svc := service.New(st, queue)
	handlers := api.NewHandlers(svc, dispatcher, cfg.Queue.Workers)
	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: api.NewRouter(handlers, cfg.Auth.APIKey),
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr(), "profile", cfg.Profile)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")

	// Stop accepting work before draining the dispatcher.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err.Error())
	}

	dispatcher.Stop()
	logger.Info("server stopped")
}

// rehydrate recovers state across restarts: messages stuck in sending go
// back to queued, then everything queued is re-admitted at its stored
// priority.
func rehydrate(st *store.Store, queue *dispatch.Queue) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reset, err := st.RequeueInFlight(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		logger.Warn("reset in-flight messages from previous run", "count", reset)
	}

	msgs, err := st.ListMessagesByStatus(ctx, store.StatusQueued, 0)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		queue.Enqueue(m.ID, m.Priority)
	}
	if len(msgs) > 0 {
		logger.Info("rehydrated queued messages", "count", len(msgs))
	}
	return nil
}
