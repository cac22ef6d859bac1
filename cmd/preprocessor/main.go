package main

import (
	"flag"
	"time"

	"github.com/lintang-b-s/transitx/pkg/gtfs"
	"github.com/lintang-b-s/transitx/pkg/logger"
	"github.com/lintang-b-s/transitx/pkg/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	feedPath         = flag.String("gtfs", "./data/gtfs.zip", "GTFS feed, zip archive or directory")
	outFile          = flag.String("out", "", "timetable file, defaults to TIMETABLE_FILE")
	startDate        = flag.String("start", "", "first calendar day as YYYY-MM-DD, defaults to today")
	nDays            = flag.Uint("days", 28, "number of calendar days, at most 32")
	transferDistance = flag.Float64("transfer_distance", 0, "generate footpaths between stop points closer than this (meter), 0 disables")
	walkSpeed        = flag.Float64("walk_speed", 1.5, "walking speed for generated footpaths in m/s")
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

	if *nDays == 0 || *nDays > 32 {
		logger.Fatal("calendar must span 1 to 32 days", zap.Uint("days", *nDays))
	}

	start := time.Now()
	if *startDate != "" {
		start, err = time.Parse(time.DateOnly, *startDate)
		if err != nil {
			logger.Fatal("invalid start date", zap.String("start", *startDate), zap.Error(err))
		}
	}

	tt, err := gtfs.LoadFile(*feedPath, gtfs.Options{
		Start:            start,
		NDays:            uint8(*nDays),
		Timezone:         viper.GetString("TIMEZONE"),
		TransferDistance: *transferDistance,
		WalkSpeed:        *walkSpeed,
	}, logger)
	if err != nil {
		logger.Fatal("loading gtfs feed", zap.String("gtfs", *feedPath), zap.Error(err))
	}

	out := *outFile
	if out == "" {
		out = viper.GetString("TIMETABLE_FILE")
	}
	if err := tt.WriteTimetable(out); err != nil {
		logger.Fatal("writing timetable", zap.String("out", out), zap.Error(err))
	}

	logger.Sugar().Infof("Preprocessing completed successfully, timetable written to %s", out)
}
