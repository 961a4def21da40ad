package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

const profileColumns = `id::text, category, rating, active, username, full_name, avatar_url, career, wins, losses, matches, version`

// PostgresStore is the durable Store backed by a pgx connection pool.
// Each outcome is one read-committed transaction of two version-checked
// updates and one insert.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects with retries and optionally applies the schema.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...PostgresOption) (*PostgresStore, error) {
	cfg := postgresConfig{
		maxConns:      10,
		connAttempts:  5,
		retryInterval: 2 * time.Second,
		migrate:       true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := logger.Named("postgres")

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.maxConns
	poolCfg.MinConns = min(2, cfg.maxConns)
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= cfg.connAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
			pool = nil
		}
		log.Warn(ctx, "database connection attempt failed",
			logger.Int("attempt", attempt), logger.Int("max_attempts", cfg.connAttempts), logger.Error(err))
		if attempt < cfg.connAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.retryInterval):
			}
		}
	}
	if pool == nil {
		return nil, fmt.Errorf("%w: connect failed after %d attempts: %w", ErrUnavailable, cfg.connAttempts, err)
	}

	s := &PostgresStore{pool: pool, log: log}
	if cfg.migrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	log.Info(ctx, "database connected", logger.Int("max_conns", int(cfg.maxConns)))
	return s, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", mapError(err))
	}
	return nil
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001" || pgErr.Code == "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case pgErr.Code == "22P02": // invalid_text_representation, e.g. a malformed uuid
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		case pgErr.Code == "23503": // foreign_key_violation
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "53" || pgErr.Code[:2] == "57"):
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		default:
			return err
		}
	}
	// Anything else is the connection or the deadline.
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func scanProfile(row pgx.Row) (model.Profile, error) {
	var p model.Profile
	var category string
	err := row.Scan(&p.ID, &category, &p.Rating, &p.Active, &p.Username, &p.FullName,
		&p.AvatarURL, &p.Career, &p.Wins, &p.Losses, &p.Matches, &p.Version)
	p.Category = model.Category(category)
	return p, err
}

// Profile implements Store.Profile.
func (s *PostgresStore) Profile(ctx context.Context, id string) (p model.Profile, err error) {
	defer func(start time.Time) { observe("profile", start, err) }(time.Now())

	p, err = scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	return p, mapError(err)
}

// SamplePair implements Store.SamplePair. ORDER BY random() gives an exactly
// uniform draw; it scans the category's active rows, which is acceptable at
// community scale.
func (s *PostgresStore) SamplePair(ctx context.Context, category model.Category) (left, right model.Profile, ok bool, err error) {
	defer func(start time.Time) { observe("sample_pair", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE category = $1 AND active ORDER BY random() LIMIT 2`,
		string(category))
	if err != nil {
		return model.Profile{}, model.Profile{}, false, mapError(err)
	}
	picked, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Profile, error) { return scanProfile(r) })
	if err != nil {
		return model.Profile{}, model.Profile{}, false, mapError(err)
	}
	if len(picked) < 2 {
		return model.Profile{}, model.Profile{}, false, nil
	}
	return picked[0], picked[1], true, nil
}

type profileUpdate struct {
	id      string
	rating  int
	win     int
	loss    int
	version int64
}

// ApplyOutcome implements Store.ApplyOutcome in one transaction.
func (s *PostgresStore) ApplyOutcome(ctx context.Context, o Outcome) (v model.Vote, err error) {
	defer func(start time.Time) { observe("apply_outcome", start, err) }(time.Now())

	if err := validateOutcome(o); err != nil {
		return model.Vote{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return model.Vote{}, mapError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updates := []profileUpdate{
		{id: o.Winner.ID, rating: o.NewWinnerRating, win: 1, version: o.Winner.Version},
		{id: o.Loser.ID, rating: o.NewLoserRating, loss: 1, version: o.Loser.Version},
	}
	// Lock rows in id order so concurrent votes on the same pair cannot deadlock.
	if updates[1].id < updates[0].id {
		updates[0], updates[1] = updates[1], updates[0]
	}
	for _, u := range updates {
		tag, err := tx.Exec(ctx, `
			UPDATE profiles
			SET rating = $2, wins = wins + $3, losses = losses + $4, matches = matches + 1, version = version + 1
			WHERE id = $1 AND version = $5`,
			u.id, u.rating, u.win, u.loss, u.version)
		if err != nil {
			return model.Vote{}, mapError(err)
		}
		if tag.RowsAffected() != 1 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, u.id).Scan(&exists); err != nil {
				return model.Vote{}, mapError(err)
			}
			if !exists {
				return model.Vote{}, ErrNotFound
			}
			return model.Vote{}, ErrConflict
		}
	}

	v = model.Vote{
		ID:           o.VoteID,
		WinnerID:     o.Winner.ID,
		LoserID:      o.Loser.ID,
		Category:     o.Winner.Category,
		WinnerBefore: o.Winner.Rating,
		WinnerAfter:  o.NewWinnerRating,
		LoserBefore:  o.Loser.Rating,
		LoserAfter:   o.NewLoserRating,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO votes (id, winner_id, loser_id, category, winner_before, winner_after, loser_before, loser_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		v.ID, v.WinnerID, v.LoserID, string(v.Category), v.WinnerBefore, v.WinnerAfter, v.LoserBefore, v.LoserAfter,
	).Scan(&v.CreatedAt)
	if err != nil {
		return model.Vote{}, mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Vote{}, mapError(err)
	}
	return v, nil
}

// TopProfiles implements Store.TopProfiles.
func (s *PostgresStore) TopProfiles(ctx context.Context, category model.Category, limit int) (out []model.Profile, err error) {
	defer func(start time.Time) { observe("top_profiles", start, err) }(time.Now())

	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE category = $1 AND active
		ORDER BY rating DESC, id ASC
		LIMIT $2`, string(category), limit)
	if err != nil {
		return nil, mapError(err)
	}
	out, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Profile, error) { return scanProfile(r) })
	return out, mapError(err)
}

// Rank implements Store.Rank.
func (s *PostgresStore) Rank(ctx context.Context, id string) (r model.Ranked, err error) {
	defer func(start time.Time) { observe("rank", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`,
			(SELECT count(*) FROM profiles q
			 WHERE q.category = p.category AND q.active
			   AND (q.rating > p.rating OR (q.rating = p.rating AND q.id < p.id))) + 1
		FROM profiles p
		WHERE p.id = $1 AND p.active`, id)

	var p model.Profile
	var category string
	err = row.Scan(&p.ID, &category, &p.Rating, &p.Active, &p.Username, &p.FullName,
		&p.AvatarURL, &p.Career, &p.Wins, &p.Losses, &p.Matches, &p.Version, &r.Position)
	if err != nil {
		return model.Ranked{}, mapError(err)
	}
	p.Category = model.Category(category)
	r.Profile = p
	return r, nil
}

// PutProfile implements Store.PutProfile. On conflict the stored rating
// and match counters are left as they are.
func (s *PostgresStore) PutProfile(ctx context.Context, p model.Profile) (out model.Profile, err error) {
	defer func(start time.Time) { observe("put_profile", start, err) }(time.Now())

	if err := validateProfile(p); err != nil {
		return model.Profile{}, err
	}
	out, err = scanProfile(s.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, category, rating, active, username, full_name, avatar_url, career, wins, losses, matches, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category, active = EXCLUDED.active,
			username = EXCLUDED.username, full_name = EXCLUDED.full_name, avatar_url = EXCLUDED.avatar_url,
			career = EXCLUDED.career,
			version = profiles.version + 1
		RETURNING `+profileColumns,
		p.ID, string(p.Category), p.Rating, p.Active, p.Username, p.FullName, p.AvatarURL, p.Career,
		p.Wins, p.Losses, p.Matches,
	))
	if err != nil {
		return model.Profile{}, mapError(err)
	}
	return out, nil
}

// Stats implements Store.Stats.
func (s *PostgresStore) Stats(ctx context.Context) (st Stats, err error) {
	defer func(start time.Time) { observe("stats", start, err) }(time.Now())

	err = s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM profiles),
			(SELECT count(*) FROM profiles WHERE active),
			(SELECT count(*) FROM votes),
			(SELECT coalesce(sum(matches), 0)::bigint FROM profiles)`,
	).Scan(&st.Profiles, &st.ActiveProfiles, &st.Votes, &st.Matches)
	return st, mapError(err)
}

// Ping implements Store.Ping.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return mapError(s.pool.Ping(ctx))
}

// Close implements Store.Close.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	s.log.Info(context.Background(), "database pool closed")
	return nil
}
