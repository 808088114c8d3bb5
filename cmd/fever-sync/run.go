package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Sternrassler/fever-order-sync/pkg/config"
	"github.com/Sternrassler/fever-order-sync/pkg/flatten"
	"github.com/Sternrassler/fever-order-sync/pkg/logging"
	"github.com/Sternrassler/fever-order-sync/pkg/metrics"
	"github.com/Sternrassler/fever-order-sync/pkg/pipeline"
	"github.com/Sternrassler/fever-order-sync/pkg/runstate"
)

// errSyncFailed makes the process exit non-zero after the empty table was written.
var errSyncFailed = errors.New("sync failed")

type runFlags struct {
	configPath string

	host       string
	username   string
	password   string
	token      string
	planIDs    string
	dateField  string
	dateFrom   string
	dateTo     string
	rateLimit  float64
	redisAddr  string
	logLevel   string
	logPretty  bool
	metricsOut string
}

func newRunCmd() *cobra.Command {
	var f runFlags

	c := &cobra.Command{
		Use:   "run",
		Short: "Run one sync and write the rows as CSV to stdout",
		Long: `Run authenticates, submits an order-items search, waits for its
partitions, fetches them and writes one CSV row per (order, item) pair.

Settings come from the config file, then FEVER_* environment variables,
then flags. On failure only the header row is written and the exit code
is 1.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			f.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runSync(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	fl := c.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fl.StringVar(&f.host, "host", "", "API host or base URL (env FEVER_HOST)")
	fl.StringVar(&f.username, "username", "", "API username (env FEVER_USERNAME)")
	fl.StringVar(&f.password, "password", "", "API password (prefer env FEVER_PASSWORD)")
	fl.StringVar(&f.token, "token", "", "pre-issued bearer token (env FEVER_TOKEN)")
	fl.StringVar(&f.planIDs, "plan-ids", "", "comma separated plan ids (env FEVER_PLAN_IDS)")
	fl.StringVar(&f.dateField, "date-field", "", "date field to filter on")
	fl.StringVar(&f.dateFrom, "date-from", "", "inclusive start date (YYYY-MM-DD)")
	fl.StringVar(&f.dateTo, "date-to", "", "inclusive end date (YYYY-MM-DD)")
	fl.Float64Var(&f.rateLimit, "rate-limit", 0, "max requests per second, 0 for unlimited")
	fl.StringVar(&f.redisAddr, "redis-addr", "", "Redis address for the run lease and run record")
	fl.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fl.BoolVar(&f.logPretty, "log-pretty", false, "human readable logs on stderr")
	fl.StringVar(&f.metricsOut, "metrics-textfile", "", "write metrics to this file after the run")

	return c
}

// apply copies explicitly set flags over cfg.
func (f *runFlags) apply(fl *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if fl.Changed(name) {
			*dst = v
		}
	}
	set("host", &cfg.API.Host, f.host)
	set("username", &cfg.Auth.Username, f.username)
	set("password", &cfg.Auth.Password, f.password)
	set("token", &cfg.Auth.Token, f.token)
	set("plan-ids", &cfg.Search.PlanIDs, f.planIDs)
	set("date-field", &cfg.Search.DateField, f.dateField)
	set("date-from", &cfg.Search.DateFrom, f.dateFrom)
	set("date-to", &cfg.Search.DateTo, f.dateTo)
	set("redis-addr", &cfg.Redis.Addr, f.redisAddr)
	set("log-level", &cfg.Logging.Level, f.logLevel)
	set("metrics-textfile", &cfg.Metrics.Textfile, f.metricsOut)

	if fl.Changed("rate-limit") {
		cfg.API.RateLimit = f.rateLimit
	}
	if fl.Changed("log-pretty") {
		cfg.Logging.Pretty = f.logPretty
	}
}

func runSync(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.Setup(logging.Config{
		Level:  level,
		Pretty: cfg.Logging.Pretty,
		Output: stderr,
	})

	pcfg := pipelineConfig(cfg)

	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			if werr := writeCSV(stdout, nil); werr != nil {
				return fmt.Errorf("write csv: %w", werr)
			}
			return fmt.Errorf("%w at %s stage: connect to redis at %s: %w", errSyncFailed, pipeline.StageLock, cfg.Redis.Addr, err)
		}

		storeCfg := runstate.DefaultConfig()
		storeCfg.LockTTL = cfg.Redis.LockTTL
		store, err := runstate.NewStore(redisClient, storeCfg, logger)
		if err != nil {
			return err
		}
		pcfg.Store = store
	}

	p, err := pipeline.New(pcfg, logger)
	if err != nil {
		return err
	}

	res := p.Run(ctx, cfg.Credentials(), cfg.Filter())

	if err := writeCSV(stdout, res.Rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	exportMetrics(cfg.Metrics.Textfile, logger)

	if !res.OK() {
		return fmt.Errorf("%w at %s stage: %w", errSyncFailed, res.Stage, res.Err)
	}
	return nil
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	pcfg := pipeline.DefaultConfig(cfg.BaseURL())
	pcfg.Client.UserAgent = cfg.API.UserAgent
	pcfg.Client.RateLimit = cfg.API.RateLimit
	pcfg.Client.Burst = cfg.API.Burst
	pcfg.Search.Poll.MaxAttempts = cfg.Search.PollAttempts
	pcfg.Search.Poll.Interval = cfg.Search.PollInterval
	return pcfg
}

// writeCSV writes the header and rows. An empty table still gets a header.
func writeCSV(w io.Writer, rows []flatten.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(flatten.Columns); err != nil {
		return err
	}
	for i := range rows {
		if err := cw.Write(rows[i].Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportMetrics(path string, logger zerolog.Logger) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to export metrics")
	}
}
