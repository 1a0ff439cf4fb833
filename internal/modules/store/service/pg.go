package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	chat_id    BIGINT PRIMARY KEY,
	api_key    TEXT NOT NULL,
	api_secret TEXT NOT NULL,
	config     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS bot_state (
	id    SMALLINT PRIMARY KEY,
	state JSONB NOT NULL
);`

// Pg keeps sessions and the system state in Postgres.
type Pg struct {
	db db.TxManager
}

func NewPg(tx db.TxManager) *Pg {
	return &Pg{db: tx}
}

// Migrate creates the tables when they are missing.
func (p *Pg) Migrate(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Migrate: %w", err)
		}
	}()
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, schema)
		return err
	})
}

func (p *Pg) LoadSessions(ctx context.Context) (out []models.SessionRecord, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.LoadSessions: %w", err)
		}
	}()
	err = p.db.RunRepeatableRead(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `SELECT chat_id, api_key, api_secret, config FROM sessions ORDER BY chat_id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r   models.SessionRecord
				raw []byte
			)
			if err := rows.Scan(&r.ChatID, &r.APIKey, &r.APISecret, &raw); err != nil {
				return err
			}
			r.Config = models.DefaultSessionConfig()
			if err := sonic.Unmarshal(raw, &r.Config); err != nil {
				return fmt.Errorf("session %d config: %w", r.ChatID, err)
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// SaveSessions upserts the given set and drops rows that are no longer in it.
func (p *Pg) SaveSessions(ctx context.Context, records []models.SessionRecord) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.SaveSessions: %w", err)
		}
	}()
	ids := make([]int64, 0, len(records))
	batch := &pgx.Batch{}
	for _, r := range records {
		cfg, err := sonic.Marshal(r.Config)
		if err != nil {
			return err
		}
		ids = append(ids, r.ChatID)
		batch.Queue(`
INSERT INTO sessions (chat_id, api_key, api_secret, config, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (chat_id) DO UPDATE
SET api_key = EXCLUDED.api_key, api_secret = EXCLUDED.api_secret,
    config = EXCLUDED.config, updated_at = now()`,
			r.ChatID, r.APIKey, r.APISecret, cfg)
	}
	batch.Queue(`DELETE FROM sessions WHERE NOT (chat_id = ANY($1))`, ids)

	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return tx.SendBatch(ctxTx, batch).Close()
	})
}

func (p *Pg) LoadState(ctx context.Context) (st models.SystemState, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.LoadState: %w", err)
		}
	}()
	st = models.DefaultSystemState()
	var raw []byte
	err = p.db.RunRepeatableRead(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctxTx, `SELECT state FROM bot_state WHERE id = 1`).Scan(&raw)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := MergeState(&st, raw); err != nil {
		return models.DefaultSystemState(), err
	}
	return st, nil
}

func (p *Pg) SaveState(ctx context.Context, st models.SystemState) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.SaveState: %w", err)
		}
	}()
	raw, err := sonic.Marshal(st)
	if err != nil {
		return err
	}
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
INSERT INTO bot_state (id, state) VALUES (1, $1)
ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state`, raw)
		return err
	})
}
