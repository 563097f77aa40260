package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/LdDl/roadusage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	out      = flag.String("out", "merged.shp", "Filename of merged network")
	format   = flag.String("format", "", "Format of merged network. Expected values: csv / geojson / shp. Guessed from extension when empty")
	logLevel = flag.String("log-level", "info", "Log level. Expected values: debug / info / warn / error")
)

// Sums counters of several results (e.g. weekly ones) built from the same road network
func main() {
	os.Exit(realMain())
}

func realMain() int {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -out merged.shp first.shp second.shp ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, err := roadusage.NewLogger(*logLevel)
	if err != nil {
		fmt.Println(err)
		return 1
	}
	defer logger.Sync()

	if flag.NArg() < 1 {
		flag.Usage()
		return 2
	}
	err = merge(flag.Args(), logger)
	if err != nil {
		logger.Error("Merge failed, nothing has been written", zap.Error(err))
		return 1
	}
	return 0
}

func merge(files []string, logger *zap.Logger) error {
	// Results are already filtered: keep every segment as is
	loaderOptions := []func(*roadusage.NetworkLoader){
		roadusage.WithRoadKinds(nil),
		roadusage.WithLoaderLogger(logger),
	}
	result, err := roadusage.LoadRoadNetwork(files[0], loaderOptions...)
	if err != nil {
		return err
	}
	for _, fname := range files[1:] {
		net, err := roadusage.LoadRoadNetwork(fname, loaderOptions...)
		if err != nil {
			return err
		}
		err = result.Merge(net)
		if err != nil {
			return errors.Wrapf(err, "Can't merge '%s'", fname)
		}
	}
	err = result.Export(*out, *format)
	if err != nil {
		return errors.Wrap(err, "Can't export network")
	}
	logger.Info("Networks merged", zap.Int("files", len(files)), zap.String("file", *out))
	return nil
}
