package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"muhabet/internal/api"
	"muhabet/internal/history"
	"muhabet/internal/identity"
	"muhabet/internal/presence"
	"muhabet/internal/realtime"
	"muhabet/internal/redis"
	"muhabet/internal/store"
	"muhabet/internal/worker"
)

const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP and websocket server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, db, err := openDatabase(opts)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		return fmt.Errorf("create redis client: %w", err)
	}
	defer rdb.Close()

	messages := store.NewService(db, opts.Driver)
	if _, err := messages.FindGlobalChannelID(ctx); errors.Is(err, store.ErrChannelNotFound) {
		log.Printf("GLOBAL channel missing, messages will be dropped until `muhabet seed` runs")
	}
	channels := store.NewChannelResolver(messages)

	basic := cfg.BasicConfig
	hist := history.NewService(messages, channels, rdb, time.Duration(basic.HistoryCacheTTL)*time.Second)
	engine := realtime.NewEngine(identity.NewAllocator(), presence.NewRegistry(), messages, channels, realtime.Options{
		Workers: worker.Options{
			MinWorkers:  basic.MinWorkers,
			MaxWorkers:  basic.MaxWorkers,
			QueueSize:   basic.QueueSize,
			IdleTimeout: time.Duration(basic.WorkerIdleTimeout) * time.Minute,
		},
		SubmitTimeout:    time.Duration(basic.SubmitTimeout) * time.Second,
		SendBuffer:       basic.SendBuffer,
		NotifyRejections: basic.NotifyRejections,
		OnMessageCreated: hist.MessageCreated,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	hubDone := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(hubDone)
	}()
	go func() {
		if err := hist.Listen(ctx); err != nil {
			log.Printf("history invalidation listener stopped: %v", err)
		}
	}()

	router := gin.Default()
	api.NewHandler(engine, hist, basic.FrontendOrigin).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              basic.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening on %s (frontend origin %s)", basic.ServerAddress, basic.FrontendOrigin)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		cancel()
		<-hubDone
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	<-hubDone
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
