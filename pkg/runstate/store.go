package runstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrRunInProgress indicates another process holds the lease for the search.
	ErrRunInProgress = errors.New("sync run already in progress")

	// ErrNoState indicates no run has been recorded for the search.
	ErrNoState = errors.New("no recorded run")
)

var lockConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fever_run_lock_conflicts_total",
	Help: "Runs refused because the same search was already running",
})

// releaseScript deletes the lease only if it still holds our token, so an
// expired lease taken over by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config holds run-state store configuration.
type Config struct {
	// LockTTL bounds how long a crashed run can block the next one.
	LockTTL time.Duration

	// StateTTL is how long the last-run record is kept (0 keeps it forever).
	StateTTL time.Duration
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		LockTTL:  15 * time.Minute,
		StateTTL: 30 * 24 * time.Hour,
	}
}

// Store persists run leases and last-run records in Redis.
type Store struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
}

// NewStore creates a store backed by redisClient.
func NewStore(redisClient *redis.Client, cfg Config, logger zerolog.Logger) (*Store, error) {
	if redisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if cfg.LockTTL <= 0 {
		return nil, fmt.Errorf("lock_ttl must be > 0 (got %v)", cfg.LockTTL)
	}
	if cfg.StateTTL < 0 {
		return nil, fmt.Errorf("state_ttl must be >= 0 (got %v)", cfg.StateTTL)
	}
	return &Store{
		redis:  redisClient,
		config: cfg,
		logger: logger.With().Str("component", "runstate").Logger(),
	}, nil
}

// Lock takes the lease for key. It returns ErrRunInProgress if another
// holder has it. The returned unlock function releases the lease; calling
// it after the lease expired and was taken over is a no-op.
func (s *Store) Lock(ctx context.Context, key Key) (func(context.Context) error, error) {
	lockKey := key.lockKey()
	token := uuid.NewString()

	ok, err := s.redis.SetNX(ctx, lockKey, token, s.config.LockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		lockConflicts.Inc()
		s.logger.Warn().Str("key", lockKey).Msg("Search already running elsewhere")
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, lockKey)
	}

	s.logger.Debug().Str("key", lockKey).Dur("ttl", s.config.LockTTL).Msg("Run lease acquired")

	unlock := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, s.redis, []string{lockKey}, token).Err(); err != nil {
			return fmt.Errorf("release lease: %w", err)
		}
		s.logger.Debug().Str("key", lockKey).Msg("Run lease released")
		return nil
	}
	return unlock, nil
}

// Save records state as the last run for key.
func (s *Store) Save(ctx context.Context, key Key, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}
	if err := s.redis.Set(ctx, key.stateKey(), data, s.config.StateTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load returns the last recorded run for key, or ErrNoState.
func (s *Store) Load(ctx context.Context, key Key) (*State, error) {
	data, err := s.redis.Get(ctx, key.stateKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode run state: %w", err)
	}
	return &state, nil
}
