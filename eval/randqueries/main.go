package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lintang-b-s/transitx/pkg/concurrent"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/engine"
	"github.com/lintang-b-s/transitx/pkg/engine/routing"
	log "github.com/lintang-b-s/transitx/pkg/logger"
	"github.com/lintang-b-s/transitx/pkg/metrics"
	"github.com/lintang-b-s/transitx/pkg/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

var (
	timetableFile = flag.String("timetable", "", "timetable file, defaults to TIMETABLE_FILE")
	nQueries      = flag.Int("n", 10000, "number of random queries")
	seed          = flag.Uint64("seed", 42, "random seed")
	workers       = flag.Int("workers", runtime.NumCPU(), "number of concurrent searches")
	outFile       = flag.String("out", "rand_queries_result.csv", "result file")
)

var strategies = []routing.Strategy{
	routing.STRATEGY_FIRST_DEPARTURE,
	routing.STRATEGY_NAIVE_REVERSAL,
	routing.STRATEGY_FULL_REVERSAL,
}

func main() {
	flag.Parse()
	if err := util.ReadConfig(); err != nil {
		panic(err)
	}
	logger, err := log.New()
	if err != nil {
		panic(err)
	}

	path := *timetableFile
	if path == "" {
		path = viper.GetString("TIMETABLE_FILE")
	}
	tt, err := da.ReadTimetable(path)
	if err != nil {
		panic(err)
	}
	re, err := engine.NewEngine(tt, logger, metrics.NewCollector())
	if err != nil {
		panic(err)
	}

	rng := rand.New(rand.NewSource(*seed))
	queries := make([]routing.Request, *nQueries)
	for i := range queries {
		queries[i].Randomize(tt, rng)
	}

	var done atomic.Int64
	rows := concurrent.Map(context.Background(), *workers, queries,
		func(ctx context.Context, req routing.Request) []string {
			row := queryRow(ctx, re, req, logger)
			if n := done.Add(1); n%1000 == 0 {
				logger.Sugar().Infof("done query %v", n)
			}
			return row
		})

	fout, err := os.Create(*outFile)
	if err != nil {
		panic(err)
	}
	defer fout.Close()
	w := bufio.NewWriter(fout)
	defer w.Flush()

	header := []string{"from", "to", "time", "arrive_by"}
	for _, s := range strategies {
		header = append(header, s.String()+"_itineraries", s.String()+"_best", s.String()+"_ms")
	}
	fmt.Fprintln(w, strings.Join(header, ","))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, ","))
	}
	logger.Info("random queries written", zap.String("file", *outFile), zap.Int("queries", len(rows)))
}

// queryRow runs req with every strategy. best is the earliest arrival of the plan, or its latest
// departure when arriving by.
func queryRow(ctx context.Context, re *engine.Engine, req routing.Request, logger *zap.Logger) []string {
	rec := []string{
		strconv.Itoa(int(req.From)), strconv.Itoa(int(req.To)),
		req.Time.String(), strconv.FormatBool(req.ArriveBy),
	}
	for _, s := range strategies {
		before := time.Now()
		plan, err := re.Plan(ctx, req, s)
		elapsed := time.Since(before)
		if err != nil {
			logger.Warn("random query failed", zap.String("strategy", s.String()), zap.Error(err))
			rec = append(rec, "-1", "", strconv.FormatInt(elapsed.Milliseconds(), 10))
			continue
		}
		best := da.UNREACHED
		for _, it := range plan.Itineraries {
			if req.ArriveBy {
				if dep := it.Departure(); best == da.UNREACHED || dep > best {
					best = dep
				}
			} else if arr := it.Arrival(); arr < best {
				best = arr
			}
		}
		bestStr := ""
		if best != da.UNREACHED {
			bestStr = best.String()
		}
		rec = append(rec, strconv.Itoa(len(plan.Itineraries)), bestStr, strconv.FormatInt(elapsed.Milliseconds(), 10))
	}
	return rec
}
