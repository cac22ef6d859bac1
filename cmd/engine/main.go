package main

import (
	"context"
	"flag"

	"github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/engine"
	"github.com/lintang-b-s/transitx/pkg/engine/routing"
	"github.com/lintang-b-s/transitx/pkg/http"
	"github.com/lintang-b-s/transitx/pkg/http/usecases"
	"github.com/lintang-b-s/transitx/pkg/logger"
	"github.com/lintang-b-s/transitx/pkg/metrics"
	"github.com/lintang-b-s/transitx/pkg/spatialindex"
	"github.com/lintang-b-s/transitx/pkg/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	timetableFile         = flag.String("timetable", "", "timetable file, defaults to TIMETABLE_FILE")
	leafBoundingBoxRadius = flag.Float64("leaf_bounding_box_radius", 0, "leaf node (r-tree) bounding box radius in km, defaults to LEAF_BOUNDING_BOX_RADIUS_KM")
	useRateLimit          = flag.Bool("rate_limit", false, "limit api requests to RATE_LIMIT_RPS")
	hardBanResetOnly      = flag.Bool("hard_ban_reset_only", false, "still allow boarding at hard banned stop points")
)

func main() {
	flag.Parse()
	if err := util.ReadConfig(); err != nil {
		panic(err)
	}
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}

	path := *timetableFile
	if path == "" {
		path = viper.GetString("TIMETABLE_FILE")
	}
	tt, err := datastructure.ReadTimetable(path)
	if err != nil {
		logger.Fatal("reading timetable", zap.String("file", path), zap.Error(err))
	}

	policy := routing.HardBanResetAndSkip
	if *hardBanResetOnly {
		policy = routing.HardBanResetOnly
	}

	collector := metrics.NewCollector()
	routingEngine, err := engine.NewEngine(tt, logger, collector, routing.WithHardBanPolicy(policy))
	if err != nil {
		logger.Fatal("creating engine", zap.Error(err))
	}

	radius := *leafBoundingBoxRadius
	if radius <= 0 {
		radius = viper.GetFloat64("LEAF_BOUNDING_BOX_RADIUS_KM")
	}
	rtree := spatialindex.NewRtree()
	rtree.Build(tt, radius, logger)

	resolver, err := usecases.NewResolver(rtree, viper.GetFloat64("SEARCH_RADIUS_KM"), viper.GetInt("RESOLVER_CACHE_SIZE"))
	if err != nil {
		logger.Fatal("creating stop resolver", zap.Error(err))
	}
	plannerService := usecases.NewPlannerService(logger, routingEngine, resolver)

	api := http.NewServer(logger)

	ctx, cleanup, err := NewContext()
	if err != nil {
		panic(err)
	}
	go func() {
		if err := api.Use(ctx, logger, *useRateLimit, plannerService, routingEngine, collector); err != nil {
			logger.Fatal("transitx server failed", zap.Error(err))
		}
	}()

	signal := http.GracefulShutdown()

	logger.Info("transitx Journey Planner Server Stopped", zap.String("signal", signal.String()))
	cleanup()
}

func NewContext() (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	cb := func() {
		cancel()
	}

	return ctx, cb, nil
}
