package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LdDl/roadusage"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "", "Filename of YAML configuration. Built-in defaults are used when empty")
	network    = flag.String("network", "", "Filename of road network (*.shp / *.geojson / *.osm / *.osm.pbf / *.csv). Overrides config")
	trips      = flag.String("trips", "", "Filename of trips 'Comma-Separated Values' (CSV) file. Overrides config")
	fromDay    = flag.String("from", "", "First day of date range, dd/mm/yyyy")
	toDay      = flag.String("to", "", "Last day of date range (inclusive), dd/mm/yyyy")
	out        = flag.String("out", "", "Filename of result network. Defaults to '<from>_<to>.shp'")
	format     = flag.String("format", "", "Format of result network. Expected values: csv / geojson / shp. Guessed from extension when empty")
	workers    = flag.Int("workers", 0, "Number of matching workers. Overrides config")
	engine     = flag.String("engine", "", "Path engine. Expected values: astar / ch. Overrides config")
	metrics    = flag.String("metrics", "", "Address to expose prometheus metrics on, e.g. ':9102'. Overrides config")
	logLevel   = flag.String("log-level", "", "Log level. Expected values: debug / info / warn / error. Overrides config")
)

func main() {
	os.Exit(realMain())
}

// realMain returns exit code, so deferred calls are done before exit
func realMain() int {
	flag.Parse()

	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg, err := prepareConfig()
	if err != nil {
		fmt.Println(err)
		return 1
	}
	logger, err := roadusage.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Println(err)
		return 1
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = run(ctx, cfg, logger)
	if err != nil {
		logger.Error("Run failed, nothing has been written", zap.Error(err))
		return 1
	}
	return 0
}

func prepareConfig() (*roadusage.Config, error) {
	cfg, err := roadusage.LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	if *network != "" {
		cfg.Network.Path = *network
	}
	if *trips != "" {
		cfg.Trips.Path = *trips
	}
	if *out != "" {
		cfg.Output.Path = *out
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if *workers > 0 {
		cfg.Matching.Workers = *workers
	}
	if *engine != "" {
		cfg.Matching.Engine = *engine
	}
	if *metrics != "" {
		cfg.Metrics.Addr = *metrics
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg *roadusage.Config, logger *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	dateRange, err := roadusage.ParseDateRange(*fromDay, *toDay, loc)
	if err != nil {
		return err
	}
	outFile := cfg.Output.Path
	if outFile == "" {
		outFile = dateRange.DefaultOutputName() + ".shp"
	}

	// Network failures are fatal: abort before touching trips
	net, err := roadusage.LoadRoadNetwork(cfg.Network.Path, append(cfg.LoaderOptions(), roadusage.WithLoaderLogger(logger))...)
	if err != nil {
		return err
	}

	var collector *roadusage.Collector
	if cfg.Metrics.Addr != "" {
		collector = roadusage.NewCollector()
		srv := collector.Serve(cfg.Metrics.Addr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	options, err := cfg.MatcherOptions()
	if err != nil {
		return err
	}
	options = append(options, roadusage.WithLogger(logger), roadusage.WithCollector(collector))
	matcher, err := roadusage.NewMatcher(net, options...)
	if err != nil {
		return err
	}
	logger.Debug(matcher.String())

	tripsFile, err := os.Open(cfg.Trips.Path)
	if err != nil {
		return errors.Wrap(err, "Can't open trips file")
	}
	defer tripsFile.Close()
	source, err := roadusage.NewTripReader(tripsFile,
		roadusage.WithTripColumns(cfg.Trips.Columns),
		roadusage.WithTimeLayout(cfg.Trips.TimeLayout),
		roadusage.WithTimeLocation(loc),
		roadusage.WithRowLimit(cfg.Trips.RowLimit),
	)
	if err != nil {
		return err
	}

	stats, err := matcher.Run(ctx, source, dateRange)
	if err != nil {
		return errors.Wrapf(err, "Matching aborted (%s)", stats)
	}

	err = net.Export(outFile, cfg.Output.Format)
	if err != nil {
		return errors.Wrap(err, "Can't export network")
	}
	logger.Info("Network exported", zap.String("file", outFile), zap.Int64("accepted", stats.Accepted))
	return nil
}
