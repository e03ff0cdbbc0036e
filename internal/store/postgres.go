package store

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/pkg/errors"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// PostgresStore keeps recipients in two tables, one row per recipient and one
// per (recipient, topic) rule. Every write names its columns explicitly.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded schema files in lexical order.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	files, err := fs.Glob(schemaFS, "schema/*.sql")
	if err != nil {
		return errors.Wrap(err, "failed to list schema files")
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := schemaFS.ReadFile(file)
		if err != nil {
			return errors.Wrapf(err, "failed to read schema file %s", file)
		}
		if _, err = s.pool.Exec(ctx, string(content)); err != nil {
			return errors.Wrapf(err, "failed to apply schema file %s", file)
		}
	}
	return nil
}

const selectRecipients = `
	SELECT token, generator_enabled, generator_last_status, timeout_enabled,
	       timeout_minutes, timeout_alert_sent, created_at, updated_at
	FROM recipients`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanRecipients(rows pgx.Rows) ([]models.Recipient, error) {
	defer rows.Close()
	out := make([]models.Recipient, 0)
	for rows.Next() {
		var (
			rec        models.Recipient
			lastStatus *string
		)
		if err := rows.Scan(
			&rec.Token, &rec.Generator.Enabled, &lastStatus, &rec.CommTimeout.Enabled,
			&rec.CommTimeout.Minutes, &rec.CommTimeout.AlertSent, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan recipient")
		}
		if lastStatus != nil {
			st := models.GeneratorStatus(*lastStatus)
			rec.Generator.LastStatus = &st
		}
		rec.Topics = make(map[string]models.TopicRule)
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate recipients")
}

// loadRecipients runs a recipients query and attaches every topic rule of the matched tokens.
func loadRecipients(ctx context.Context, q querier, where string, args ...any) ([]models.Recipient, error) {
	rows, err := q.Query(ctx, selectRecipients+" "+where+" ORDER BY token", args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query recipients")
	}
	recs, err := scanRecipients(rows)
	if err != nil || len(recs) == 0 {
		return recs, err
	}

	tokens := make([]string, len(recs))
	index := make(map[string]int, len(recs))
	for i, r := range recs {
		tokens[i] = r.Token
		index[r.Token] = i
	}

	ruleRows, err := q.Query(ctx, `
		SELECT token, topic, low, high, enabled, alert_sent_low, alert_sent_high
		FROM recipient_topic_rules WHERE token = ANY($1)`, tokens)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query topic rules")
	}
	defer ruleRows.Close()
	for ruleRows.Next() {
		var (
			token, topic string
			rule         models.TopicRule
		)
		if err = ruleRows.Scan(&token, &topic, &rule.Low, &rule.High, &rule.Enabled, &rule.AlertSentLow, &rule.AlertSentHigh); err != nil {
			return nil, errors.Wrap(err, "failed to scan topic rule")
		}
		if i, ok := index[token]; ok {
			recs[i].Topics[topic] = rule
		}
	}
	return recs, errors.Wrap(ruleRows.Err(), "failed to iterate topic rules")
}

func (s *PostgresStore) FindByTopicEnabled(ctx context.Context, topic string) ([]models.Recipient, error) {
	return loadRecipients(ctx, s.pool, `
		WHERE token IN (SELECT token FROM recipient_topic_rules WHERE topic = $1 AND enabled)`, topic)
}

func (s *PostgresStore) FindByGeneratorEnabled(ctx context.Context) ([]models.Recipient, error) {
	return loadRecipients(ctx, s.pool, "WHERE generator_enabled")
}

func (s *PostgresStore) FindByTimeoutEnabled(ctx context.Context, excludingAlerted bool) ([]models.Recipient, error) {
	if excludingAlerted {
		return loadRecipients(ctx, s.pool, "WHERE timeout_enabled AND NOT timeout_alert_sent")
	}
	return loadRecipients(ctx, s.pool, "WHERE timeout_enabled")
}

func (s *PostgresStore) Get(ctx context.Context, token string) (models.Recipient, error) {
	recs, err := loadRecipients(ctx, s.pool, "WHERE token = $1", token)
	if err != nil {
		return models.Recipient{}, err
	}
	if len(recs) == 0 {
		return models.Recipient{}, ErrNotFound
	}
	return recs[0], nil
}

func (s *PostgresStore) Update(ctx context.Context, token string, update models.RecipientUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for topic, l := range update.TopicLatches {
			if _, err := tx.Exec(ctx, `
				UPDATE recipient_topic_rules SET alert_sent_low = $3, alert_sent_high = $4
				WHERE token = $1 AND topic = $2`, token, topic, l.Low, l.High); err != nil {
				return errors.Wrapf(err, "failed to update latches of topic %s", topic)
			}
		}
		if update.GeneratorLastStatus != nil {
			if _, err := tx.Exec(ctx, `
				UPDATE recipients SET generator_last_status = $2 WHERE token = $1`,
				token, string(*update.GeneratorLastStatus)); err != nil {
				return errors.Wrap(err, "failed to update generator status")
			}
		}
		if update.TimeoutAlertSent != nil {
			if _, err := tx.Exec(ctx, `
				UPDATE recipients SET timeout_alert_sent = $2 WHERE token = $1`,
				token, *update.TimeoutAlertSent); err != nil {
				return errors.Wrap(err, "failed to update timeout latch")
			}
		}
		tag, err := tx.Exec(ctx, `UPDATE recipients SET updated_at = now() WHERE token = $1`, token)
		if err != nil {
			return errors.Wrap(err, "failed to touch recipient")
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) ClearTimeoutAlerts(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE recipients SET timeout_alert_sent = FALSE, updated_at = now()
		WHERE timeout_alert_sent`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to clear timeout latches")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteByToken(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM recipients WHERE token = $1`, token)
	return errors.Wrap(err, "failed to delete recipient")
}

// UpsertOnRegister merges reg into the stored record while holding its row
// lock. Only the sections present in reg are written back.
func (s *PostgresStore) UpsertOnRegister(ctx context.Context, reg models.Registration, defaults DefaultsFunc) (models.Recipient, error) {
	var merged models.Recipient
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO recipients (token, timeout_minutes) VALUES ($1, $2)
			ON CONFLICT (token) DO NOTHING`, reg.Token, float64(constants.DefaultTimeoutMinutes)); err != nil {
			return errors.Wrap(err, "failed to insert recipient")
		}
		if _, err := tx.Exec(ctx, `SELECT 1 FROM recipients WHERE token = $1 FOR UPDATE`, reg.Token); err != nil {
			return errors.Wrap(err, "failed to lock recipient")
		}
		recs, err := loadRecipients(ctx, tx, "WHERE token = $1", reg.Token)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return ErrNotFound
		}
		merged = recs[0]
		reg.Merge(&merged, defaults)

		for topic := range reg.Topics {
			rule := merged.Topics[topic]
			if _, err = tx.Exec(ctx, `
				INSERT INTO recipient_topic_rules (token, topic, low, high, enabled, alert_sent_low, alert_sent_high)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (token, topic) DO UPDATE SET
					low = EXCLUDED.low, high = EXCLUDED.high, enabled = EXCLUDED.enabled,
					alert_sent_low = EXCLUDED.alert_sent_low, alert_sent_high = EXCLUDED.alert_sent_high`,
				reg.Token, topic, rule.Low, rule.High, rule.Enabled, rule.AlertSentLow, rule.AlertSentHigh); err != nil {
				return errors.Wrapf(err, "failed to upsert rule for topic %s", topic)
			}
		}

		if reg.GeneratorStatusAlerts != nil {
			var lastStatus *string
			if merged.Generator.LastStatus != nil {
				v := string(*merged.Generator.LastStatus)
				lastStatus = &v
			}
			if _, err = tx.Exec(ctx, `
				UPDATE recipients SET generator_enabled = $2, generator_last_status = $3 WHERE token = $1`,
				reg.Token, merged.Generator.Enabled, lastStatus); err != nil {
				return errors.Wrap(err, "failed to update generator settings")
			}
		}

		if reg.CommunicationTimeout != nil {
			if _, err = tx.Exec(ctx, `
				UPDATE recipients SET timeout_enabled = $2, timeout_minutes = $3, timeout_alert_sent = $4 WHERE token = $1`,
				reg.Token, merged.CommTimeout.Enabled, merged.CommTimeout.Minutes, merged.CommTimeout.AlertSent); err != nil {
				return errors.Wrap(err, "failed to update timeout settings")
			}
		}

		merged.UpdatedAt = time.Now()
		_, err = tx.Exec(ctx, `UPDATE recipients SET updated_at = $2 WHERE token = $1`, reg.Token, merged.UpdatedAt)
		return errors.Wrap(err, "failed to touch recipient")
	})
	if err != nil {
		return models.Recipient{}, err
	}
	return merged, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
