package sink

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/shortontech/attributionrc/internal/activity"
)

// PGConfig holds configuration for the Postgres sink
type PGConfig struct {
	DSN        string
	Table      string
	BatchSize  int
	FlushMS    int
	UseCopy    bool
	// MaxPending caps the unflushed batch while Postgres is failing. The
	// oldest activities are dropped first. Zero means ten batches.
	MaxPending int
}

// FlushObserver receives the duration of every successful batch flush and
// counts activities dropped from an overfull batch.
type FlushObserver interface {
	ObserveBatchFlushLatency(sink string, d time.Duration)
	IncrementSinkErrors(sink, errorType string)
}

// PGSink batches activities into a JSONB table using COPY or multi-row INSERT.
type PGSink struct {
	config PGConfig
	db     *sql.DB
	log    logrus.FieldLogger
	obs    FlushObserver

	mu    sync.Mutex
	batch []activity.Activity

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateTableName accepts plain Postgres identifiers only.
func validateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("invalid table name: empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("invalid table name: %d chars exceeds 63", len(name))
	}
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name: %q", name)
	}
	return nil
}

// NewPGSinkFromEnv creates a PGSink from PG_* environment variables
func NewPGSinkFromEnv() *PGSink {
	return &PGSink{
		config: PGConfig{
			DSN:        getEnvOr("PG_DSN", "postgres://localhost:5432/attributionrc?sslmode=disable"),
			Table:      getEnvOr("PG_TABLE", "activities_json"),
			BatchSize:  getIntEnv("PG_BATCH_SIZE", 500),
			FlushMS:    getIntEnv("PG_FLUSH_MS", 500),
			UseCopy:    getBoolEnv("PG_COPY", true),
			MaxPending: getIntEnv("PG_MAX_PENDING", 0),
		},
		log: logrus.StandardLogger(),
	}
}

// NewPGSink creates a PGSink with default batching for dsn
func NewPGSink(dsn string) *PGSink {
	return &PGSink{
		config: PGConfig{
			DSN:       dsn,
			Table:     "activities_json",
			BatchSize: 500,
			FlushMS:   500,
			UseCopy:   true,
		},
		log: logrus.StandardLogger(),
	}
}

func (s *PGSink) WithLogger(log logrus.FieldLogger) *PGSink {
	if log != nil {
		s.log = log
	}
	return s
}

func (s *PGSink) WithObserver(obs FlushObserver) *PGSink {
	s.obs = obs
	return s
}

func (s *PGSink) Start(ctx context.Context) error {
	if err := validateTableName(s.config.Table); err != nil {
		return err
	}
	if s.config.BatchSize <= 0 {
		s.config.BatchSize = 500
	}
	if s.config.FlushMS <= 0 {
		s.config.FlushMS = 500
	}

	db, err := sql.Open("postgres", s.config.DSN)
	if err != nil {
		return fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s.db = db
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.ensureSchema(); err != nil {
		s.cancel()
		db.Close()
		s.db = nil
		return err
	}

	s.batch = make([]activity.Activity, 0, s.config.BatchSize)
	s.done = make(chan struct{})
	go s.flushRoutine()
	return nil
}

func (s *PGSink) ensureSchema() error {
	t := s.config.Table
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	activity_id TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	kind TEXT NOT NULL,
	payload JSONB NOT NULL
)`, t)
	if _, err := s.db.ExecContext(s.ctx, create); err != nil {
		return fmt.Errorf("failed to create table %s: %w", t, err)
	}

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_ts ON %s (ts)", t, t),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_gin ON %s USING GIN (payload)", t, t),
	}
	for _, q := range indexes {
		if _, err := s.db.ExecContext(s.ctx, q); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", t, err)
		}
	}
	return nil
}

func (s *PGSink) Enqueue(a activity.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch = append(s.batch, a)
	if limit := s.maxPending(); len(s.batch) > limit {
		dropped := len(s.batch) - limit
		s.batch = append(s.batch[:0], s.batch[dropped:]...)
		if s.log != nil {
			s.log.WithField("dropped", dropped).Warn("postgres batch full, dropping oldest activities")
		}
		if s.obs != nil {
			for i := 0; i < dropped; i++ {
				s.obs.IncrementSinkErrors(s.Name(), "dropped")
			}
		}
	}
	if s.config.BatchSize > 0 && len(s.batch) >= s.config.BatchSize {
		return s.flushBatch()
	}
	return nil
}

func (s *PGSink) maxPending() int {
	if s.config.MaxPending > 0 {
		return s.config.MaxPending
	}
	if s.config.BatchSize > 0 {
		return 10 * s.config.BatchSize
	}
	return 5000
}

// flushBatch writes the pending batch. The batch is kept on error so the
// next flush retries it. Callers hold s.mu.
func (s *PGSink) flushBatch() error {
	if len(s.batch) == 0 {
		return nil
	}
	if s.db == nil {
		return fmt.Errorf("postgres sink not started")
	}

	start := time.Now()
	var err error
	if s.config.UseCopy {
		err = s.flushWithCopy()
	} else {
		err = s.flushWithInsert()
	}
	if err != nil {
		return err
	}

	if s.obs != nil {
		s.obs.ObserveBatchFlushLatency(s.Name(), time.Since(start))
	}
	s.batch = s.batch[:0]
	return nil
}

type pgRow struct {
	id      string
	ts      string
	kind    string
	payload string
}

func (s *PGSink) rows() ([]pgRow, error) {
	rows := make([]pgRow, 0, len(s.batch))
	for _, a := range s.batch {
		b, err := sonic.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize activity %s: %w", a.ActivityID, err)
		}
		ts := a.TS
		if ts == "" {
			ts = time.Now().UTC().Format(time.RFC3339Nano)
		}
		rows = append(rows, pgRow{id: a.ActivityID, ts: ts, kind: string(a.Kind), payload: string(b)})
	}
	return rows, nil
}

func (s *PGSink) flushWithInsert() error {
	if len(s.batch) == 0 {
		return nil
	}
	rows, err := s.rows()
	if err != nil {
		return err
	}

	var sb strings.Builder
	args := make([]any, 0, len(rows)*4)
	fmt.Fprintf(&sb, "INSERT INTO %s (activity_id, ts, kind, payload) VALUES ", s.config.Table)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4)
		args = append(args, r.id, r.ts, r.kind, r.payload)
	}

	if _, err := s.db.ExecContext(s.ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

func (s *PGSink) flushWithCopy() error {
	rows, err := s.rows()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(s.ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(s.ctx, pq.CopyIn(s.config.Table, "activity_id", "ts", "kind", "payload"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, r := range rows {
		if _, err := stmt.ExecContext(s.ctx, r.id, r.ts, r.kind, r.payload); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy row %s: %w", r.id, err)
		}
	}
	if _, err := stmt.ExecContext(s.ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to finish copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit copy: %w", err)
	}
	return nil
}

func (s *PGSink) flushRoutine() {
	defer close(s.done)

	ticker := time.NewTicker(time.Duration(s.config.FlushMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if err := s.flushBatch(); err != nil && s.log != nil {
				s.log.WithError(err).WithField("pending", len(s.batch)).Warn("postgres flush failed")
			}
			s.mu.Unlock()
		}
	}
}

func (s *PGSink) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	if s.db == nil {
		return nil
	}

	// the routine context is gone; give the final flush its own
	s.ctx = context.Background()

	s.mu.Lock()
	flushErr := s.flushBatch()
	s.mu.Unlock()

	closeErr := s.db.Close()
	s.db = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (s *PGSink) Name() string { return "postgres" }
