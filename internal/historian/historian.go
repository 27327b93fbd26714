// internal/historian/historian.go drains the action queue the game server
// publishes to and persists it in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sink is where drained records end up.
type Sink interface {
	Flush(ctx context.Context, records []cache.ActionRecord) error
	MarkAbandoned(ctx context.Context, gameID uuid.UUID) error
}

// Config tunes batching and abandonment.
type Config struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	// Inactivity is how long a game may go without actions before it is
	// marked abandoned.
	Inactivity    time.Duration
	SweepInterval time.Duration
	PopTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Queue == "" {
		c.Queue = cache.DefaultQueueName
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.FlushDelay <= 0 {
		c.FlushDelay = 500 * time.Millisecond
	}
	if c.Inactivity <= 0 {
		c.Inactivity = 10 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = 3 * time.Second
	}
	return c
}

// Service pops action records off a Redis list, accumulates them, and writes
// each batch through a Sink. It also closes games that stopped receiving
// actions.
type Service struct {
	rdb    *redis.Client
	sink   Sink
	logger *logrus.Logger
	cfg    Config
	now    func() time.Time

	lastActivity sync.Map // uuid.UUID -> time.Time

	batchMu sync.Mutex
	batch   []cache.ActionRecord
}

func New(rdb *redis.Client, sink Sink, logger *logrus.Logger, cfg Config) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		rdb:    rdb,
		sink:   sink,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
		batch:  make([]cache.ActionRecord, 0, cfg.BatchSize),
	}
}

// Run blocks until ctx ends, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, loop := range []func(context.Context){s.readLoop, s.flushLoop, s.inactivityLoop} {
		wg.Add(1)
		go func(loop func(context.Context)) {
			defer wg.Done()
			loop(ctx)
		}(loop)
	}

	s.logger.WithField("queue", s.cfg.Queue).Info("historian started")
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(flushCtx)
	s.logger.Info("historian stopped")
}

// readLoop pops with a bounded wait so cancellation is noticed. Batches are
// written by flushLoop, so a long wait here never holds back a flush.
func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := s.rdb.BLPop(ctx, s.cfg.PopTimeout, s.cfg.Queue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				s.logger.Errorf("BLPop: %v", err)
				s.pause(ctx)
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		var rec cache.ActionRecord
		if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
			s.logger.Warnf("invalid action record: %v", err)
			continue
		}
		s.track(rec)
		s.appendToBatch(ctx, rec)
	}
}

// flushLoop writes the pending batch every FlushDelay.
func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *Service) pause(ctx context.Context) {
	t := time.NewTimer(s.cfg.FlushDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Service) track(rec cache.ActionRecord) {
	if rec.ActionType == string(game.EventWin) {
		s.lastActivity.Delete(rec.GameID)
		return
	}
	s.lastActivity.Store(rec.GameID, s.now())
}

func (s *Service) appendToBatch(ctx context.Context, rec cache.ActionRecord) {
	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.cfg.BatchSize
	s.batchMu.Unlock()

	if full {
		s.flush(ctx)
	}
}

// flush writes the pending batch. A failed batch is kept for the next flush.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	if len(s.batch) == 0 {
		return
	}
	pending := make([]cache.ActionRecord, len(s.batch))
	copy(pending, s.batch)

	if err := s.sink.Flush(ctx, pending); err != nil {
		s.logger.WithField("records", len(pending)).Errorf("flush failed: %v", err)
		return
	}
	s.batch = s.batch[:0]
	s.logger.Debugf("flushed %d actions", len(pending))
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepInactive(ctx)
		}
	}
}

// sweepInactive marks every game idle for longer than the inactivity window
// as abandoned. It returns how many it closed.
func (s *Service) sweepInactive(ctx context.Context) int {
	now := s.now()
	closed := 0
	s.lastActivity.Range(func(key, val interface{}) bool {
		gameID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.cfg.Inactivity {
			return true
		}
		log := s.logger.WithField("game_id", gameID)
		if err := s.sink.MarkAbandoned(ctx, gameID); err != nil {
			log.Errorf("failed to mark game abandoned: %v", err)
			return true
		}
		s.lastActivity.Delete(gameID)
		closed++
		log.Info("marked game abandoned after inactivity")
		return true
	})
	return closed
}
