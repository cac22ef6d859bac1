package http

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lintang-b-s/transitx/pkg/engine"
	http_router "github.com/lintang-b-s/transitx/pkg/http/router"
	"github.com/lintang-b-s/transitx/pkg/http/router/controllers"
	http_server "github.com/lintang-b-s/transitx/pkg/http/server"
	"github.com/lintang-b-s/transitx/pkg/metrics"
	"github.com/lintang-b-s/transitx/pkg/realtime"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	Log *zap.Logger
}

func NewServer(log *zap.Logger) *Server {
	return &Server{Log: log}
}

// Use runs the api and, when REALTIME_TRIP_UPDATES_URL is set, the realtime poller until ctx is done or one
// of them fails.
func (s *Server) Use(
	ctx context.Context,
	log *zap.Logger,

	useRateLimit bool,
	plannerService controllers.PlannerService,
	eng *engine.Engine,
	collector *metrics.Collector,
) error {
	viper.SetDefault("API_PORT", 6060)
	viper.SetDefault("API_TIMEOUT", "30s")
	viper.SetDefault("REALTIME_FETCH_TIMEOUT", "15s")

	config := http_server.Config{
		Port:           viper.GetInt("API_PORT"),
		Timeout:        viper.GetDuration("API_TIMEOUT"),
		RateLimitRPS:   viper.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst: viper.GetInt("RATE_LIMIT_BURST"),
	}

	server := http_router.NewAPI(log)

	var metricsHandler http.Handler
	if collector != nil {
		metricsHandler = collector.Handler()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(
			gctx, config, log,
			useRateLimit, plannerService, metricsHandler,
		)
	})

	if url := viper.GetString("REALTIME_TRIP_UPDATES_URL"); url != "" {
		poller := realtime.NewPoller(
			realtime.NewClient(url, viper.GetDuration("REALTIME_FETCH_TIMEOUT")),
			eng, viper.GetDuration("REALTIME_POLL_INTERVAL"), log, collector)
		log.Info("polling realtime trip updates", zap.String("url", url))
		g.Go(func() error {
			return poller.Run(gctx)
		})
	}

	return g.Wait()
}

// GracefulShutdown blocks until the process receives SIGINT or SIGTERM.
func GracefulShutdown() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	return <-quit
}
