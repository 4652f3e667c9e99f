package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"offsetdb/internal/config"
	"offsetdb/internal/logging"
	"offsetdb/internal/metrics"
)

var v = config.NewViper()

var rootCmd = &cobra.Command{
	Use:           "offsetctl",
	Short:         "Import and query dictionary-encoded TPC-H tables",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	d := config.Default()
	f := rootCmd.PersistentFlags()
	f.String(config.KeyDataDir, d.DataDir, "directory holding the <table>.tbl files and the cached/ directory")
	f.Bool(config.KeySimd, d.UseSimdIntersection, "use lane-block intersection instead of the scalar merge")
	f.Int(config.KeyLaneWidth, d.LaneWidth, "intersection lane width (4, 8 or 16), 0 detects it")
	f.Int(config.KeyVectorSize, d.VectorSize, "minimum rows per morsel")
	f.Bool(config.KeyClearCaches, d.ClearCaches, "drop OS page caches before every query run (needs root)")
	f.Int(config.KeyWorkers, d.Workers, "worker pool size")
	f.String(config.KeyLogLevel, d.LogLevel, "log level")
	f.Bool(config.KeyDevelopment, d.Development, "human readable logs")
	f.Bool("json", false, "print results as JSON")
	if err := v.BindPFlags(f); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(newImportCmd(), newPricingCmd(), newShippingCmd(), newStatsCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command needs once flags are parsed.
type env struct {
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	out     *printer
}

func setup(v *viper.Viper) (*env, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, metrics: metrics.New(), out: newPrinter(v.GetBool("json"))}, nil
}
