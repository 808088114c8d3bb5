package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/fever-order-sync/pkg/config"
	"github.com/Sternrassler/fever-order-sync/pkg/pipeline"
	"github.com/Sternrassler/fever-order-sync/pkg/runstate"
)

var (
	errNoRedis       = errors.New("status requires a redis address")
	errLastRunFailed = errors.New("last run failed")
	errLastRunStale  = errors.New("last run is stale")
)

func newStatusCmd() *cobra.Command {
	var (
		f      runFlags
		maxAge time.Duration
		asJSON bool
	)

	c := &cobra.Command{
		Use:   "status",
		Short: "Print the last recorded run for the configured search",
		Long: `Status reads the run record kept in Redis for the configured plan ids
and date filter. It exits 1 when no run is recorded, when the last run
failed, or when it finished longer than --max-age ago.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			f.apply(cmd.Flags(), cfg)
			if cfg.Redis.Addr == "" {
				return errNoRedis
			}
			filter := cfg.Filter()
			if err := filter.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer redisClient.Close()

			store, err := runstate.NewStore(redisClient, runstate.DefaultConfig(), zerolog.Nop())
			if err != nil {
				return err
			}
			return showStatus(cmd.Context(), store, pipeline.KeyFor(filter), cmd.OutOrStdout(), maxAge, asJSON)
		},
	}

	fl := c.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fl.StringVar(&f.planIDs, "plan-ids", "", "comma separated plan ids (env FEVER_PLAN_IDS)")
	fl.StringVar(&f.dateField, "date-field", "", "date field to filter on")
	fl.StringVar(&f.dateFrom, "date-from", "", "inclusive start date (YYYY-MM-DD)")
	fl.StringVar(&f.dateTo, "date-to", "", "inclusive end date (YYYY-MM-DD)")
	fl.StringVar(&f.redisAddr, "redis-addr", "", "Redis address holding the run record")
	fl.DurationVar(&maxAge, "max-age", 0, "fail when the last run finished longer ago, 0 to disable")
	fl.BoolVar(&asJSON, "json", false, "print the run record as JSON")

	return c
}

// stateLoader reads the last run record. *runstate.Store implements it.
type stateLoader interface {
	Load(ctx context.Context, key runstate.Key) (*runstate.State, error)
}

func showStatus(ctx context.Context, store stateLoader, key runstate.Key, w io.Writer, maxAge time.Duration, asJSON bool) error {
	state, err := store.Load(ctx, key)
	if errors.Is(err, runstate.ErrNoState) {
		fmt.Fprintf(w, "no run recorded for %s\n", key)
		return err
	}
	if err != nil {
		return fmt.Errorf("load run state: %w", err)
	}

	if asJSON {
		if err := json.NewEncoder(w).Encode(state); err != nil {
			return err
		}
	} else {
		writeState(w, key, state)
	}

	switch {
	case state.Outcome == runstate.OutcomeFailed:
		return fmt.Errorf("%w at %s stage", errLastRunFailed, state.Stage)
	case maxAge > 0 && state.IsStale(maxAge):
		return fmt.Errorf("%w: finished %s ago", errLastRunStale, time.Since(state.FinishedAt).Round(time.Second))
	}
	return nil
}

func writeState(w io.Writer, key runstate.Key, s *runstate.State) {
	fmt.Fprintf(w, "search:     %s\n", key)
	fmt.Fprintf(w, "run:        %s\n", s.RunID)
	fmt.Fprintf(w, "outcome:    %s\n", s.Outcome)
	if s.Outcome == runstate.OutcomeFailed {
		fmt.Fprintf(w, "stage:      %s\n", s.Stage)
		fmt.Fprintf(w, "error:      %s\n", s.Error)
	}
	fmt.Fprintf(w, "orders:     %d\n", s.Orders)
	fmt.Fprintf(w, "rows:       %d\n", s.Rows)
	fmt.Fprintf(w, "skipped:    %d\n", s.Skipped)
	fmt.Fprintf(w, "partitions: %v\n", s.Partitions)
	fmt.Fprintf(w, "finished:   %s\n", s.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "duration:   %s\n", s.Duration().Round(time.Millisecond))
}
