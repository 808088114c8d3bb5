// Package pipeline runs one order sync end to end: authenticate, submit
// the search, poll for partitions, fetch them and flatten the orders into
// rows.
//
// Every terminal failure short-circuits the run. The caller then gets an
// empty table together with the failing stage and a typed error, so "no
// data" and "failed" stay distinguishable.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/fever-order-sync/pkg/auth"
	"github.com/Sternrassler/fever-order-sync/pkg/client"
	"github.com/Sternrassler/fever-order-sync/pkg/flatten"
	"github.com/Sternrassler/fever-order-sync/pkg/logging"
	"github.com/Sternrassler/fever-order-sync/pkg/runstate"
	"github.com/Sternrassler/fever-order-sync/pkg/search"
)

// Prometheus metrics for sync runs.
var (
	syncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fever_sync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"outcome"},
	)

	syncRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fever_sync_rows_total",
		Help: "Total number of rows produced by sync runs",
	})
)

// Stage names a step of the run.
type Stage string

const (
	StageLock   Stage = "lock"
	StageAuth   Stage = "auth"
	StageSubmit Stage = "submit"
	StagePoll   Stage = "poll"
	StageFetch  Stage = "fetch"
	StageDone   Stage = "done"
)

// RunStore serializes runs of the same search across processes and keeps
// the last outcome. *runstate.Store implements it.
type RunStore interface {
	Lock(ctx context.Context, key runstate.Key) (unlock func(context.Context) error, err error)
	Save(ctx context.Context, key runstate.Key, state runstate.State) error
}

// Config holds the pipeline configuration.
type Config struct {
	Client client.Config
	Search search.Config

	// Store is optional; nil runs without a lease or run record.
	Store RunStore
}

// DefaultConfig returns the default configuration for the API at baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		Client: client.DefaultConfig(baseURL),
		Search: search.DefaultConfig(),
	}
}

// Pipeline runs syncs. It holds no per-run state; every Run builds its own
// HTTP client and session.
type Pipeline struct {
	config Config
	logger zerolog.Logger
}

// New validates cfg and creates a pipeline.
func New(cfg Config, logger zerolog.Logger) (*Pipeline, error) {
	if _, err := client.New(cfg.Client, zerolog.Nop()); err != nil {
		return nil, fmt.Errorf("client config: %w", err)
	}
	return &Pipeline{
		config: cfg,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Result is the outcome of one run.
type Result struct {
	RunID string

	// Rows is never nil; it is empty when the run failed.
	Rows []flatten.Row

	SearchID      string
	Orders        int
	Partitions    []int
	Skipped       int
	FlattenErrors []error

	// Stage is the failing stage, or StageDone on success.
	Stage Stage
	Err   error

	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether the run completed.
func (r Result) OK() bool {
	return r.Err == nil
}

// Empty reports whether the run completed without producing rows.
func (r Result) Empty() bool {
	return r.Err == nil && len(r.Rows) == 0
}

// Outcome classifies the run for metrics and the run record.
func (r Result) Outcome() runstate.Outcome {
	switch {
	case r.Err != nil:
		return runstate.OutcomeFailed
	case len(r.Rows) == 0:
		return runstate.OutcomeEmpty
	default:
		return runstate.OutcomeSuccess
	}
}

// KeyFor returns the run state key of the search filter submits.
func KeyFor(filter search.Filter) runstate.Key {
	return runstate.Key{
		PlanIDs:   filter.NormalizedPlanIDs(),
		DateField: strings.TrimSpace(filter.DateField),
		DateFrom:  strings.TrimSpace(filter.DateFrom),
		DateTo:    strings.TrimSpace(filter.DateTo),
	}
}

// Run executes one sync. It never panics on bad input or API failures and
// never returns a nil row slice.
func (p *Pipeline) Run(ctx context.Context, creds auth.Credentials, filter search.Filter) Result {
	res := Result{
		RunID:     uuid.NewString(),
		Rows:      []flatten.Row{},
		StartedAt: time.Now(),
	}
	logger := logging.ForRun(p.logger, res.RunID)

	key := KeyFor(filter)

	if p.config.Store != nil {
		unlock, err := p.config.Store.Lock(ctx, key)
		if err != nil {
			return p.fail(res, StageLock, err, logger)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Warn().Err(err).Msg("Failed to release run lease")
			}
		}()
	}

	res = p.run(ctx, res, creds, filter, logger)
	p.record(ctx, key, res, logger)
	return res
}

func (p *Pipeline) run(ctx context.Context, res Result, creds auth.Credentials, filter search.Filter, logger zerolog.Logger) Result {
	api, err := client.New(p.config.Client, logger)
	if err != nil {
		return p.fail(res, StageAuth, err, logger)
	}

	session := auth.NewSession(api, logger)
	if _, err := session.Authenticate(ctx, creds); err != nil {
		return p.fail(res, StageAuth, err, logger)
	}

	searches := search.New(api, p.config.Search, logger)

	job, err := searches.Submit(ctx, filter)
	if err != nil {
		return p.fail(res, StageSubmit, err, logger)
	}
	res.SearchID = job.ID

	partitions, err := searches.PollPartitions(ctx, job)
	if err != nil {
		return p.fail(res, StagePoll, err, logger)
	}
	res.Partitions = partitions

	orders, err := searches.FetchAll(ctx, job, partitions)
	if err != nil {
		return p.fail(res, StageFetch, err, logger)
	}
	res.Orders = len(orders)

	flat := flatten.Flatten(orders)
	for _, ferr := range flat.Errors {
		logger.Warn().Err(ferr).Str("search_id", job.ID).Msg("Skipped order")
	}

	res.Rows = flat.Rows
	res.Skipped = flat.Skipped
	res.FlattenErrors = flat.Errors
	res.Stage = StageDone
	res.FinishedAt = time.Now()

	syncRunsTotal.WithLabelValues(string(res.Outcome())).Inc()
	syncRowsTotal.Add(float64(len(res.Rows)))

	logger.Info().
		Str("search_id", job.ID).
		Int("orders", res.Orders).
		Int("rows", len(res.Rows)).
		Int("skipped", res.Skipped).
		Dur("duration", res.FinishedAt.Sub(res.StartedAt)).
		Msg("Sync complete")

	return res
}

// fail ends the run at stage with err and an empty table.
func (p *Pipeline) fail(res Result, stage Stage, err error, logger zerolog.Logger) Result {
	res.Rows = []flatten.Row{}
	res.Stage = stage
	res.Err = err
	res.FinishedAt = time.Now()

	syncRunsTotal.WithLabelValues(string(runstate.OutcomeFailed)).Inc()

	event := logger.Error()
	if errors.Is(err, runstate.ErrRunInProgress) {
		event = logger.Warn()
	}
	event.
		Err(err).
		Str("stage", string(stage)).
		Str("error_class", string(client.ClassOf(err))).
		Str("search_id", res.SearchID).
		Msg(failureMessage(stage))

	return res
}

func failureMessage(stage Stage) string {
	switch stage {
	case StageLock:
		return "Search is already being synced"
	case StageAuth:
		return "Authentication failed"
	case StageSubmit:
		return "Search submission failed"
	case StagePoll:
		return "Search did not become ready"
	case StageFetch:
		return "Partition fetch failed"
	default:
		return "Sync failed"
	}
}

// record saves the run outcome. Failing to save is logged, not fatal.
func (p *Pipeline) record(ctx context.Context, key runstate.Key, res Result, logger zerolog.Logger) {
	if p.config.Store == nil {
		return
	}

	state := runstate.State{
		RunID:      res.RunID,
		Outcome:    res.Outcome(),
		Orders:     res.Orders,
		Rows:       len(res.Rows),
		Skipped:    res.Skipped,
		Partitions: res.Partitions,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if res.Err != nil {
		state.Stage = string(res.Stage)
		state.Error = res.Err.Error()
	}

	if err := p.config.Store.Save(context.WithoutCancel(ctx), key, state); err != nil {
		logger.Warn().Err(err).Msg("Failed to record run state")
	}
}
