package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// SaveInsight inserts a saved insight and returns its assigned ID.
func (s *SQLiteStorage) SaveInsight(ctx context.Context, insight *model.Insight) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if insight == nil {
		return 0, fmt.Errorf("%w: insight", ErrNilParameter)
	}
	if err := validateString(insight.UserID, "userID"); err != nil {
		return 0, err
	}
	if err := validateString(insight.InsightText, "insightText"); err != nil {
		return 0, err
	}

	if insight.CreatedAt.IsZero() {
		insight.CreatedAt = time.Now().UTC()
	}

	tags := ""
	if len(insight.Tags) > 0 {
		data, err := json.Marshal(insight.Tags)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal tags: %w", err)
		}
		tags = string(data)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO insights (user_id, query, insight_text, tags, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, insight.UserID, insight.Query, insight.InsightText, tags, insight.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert insight: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insight id: %w", err)
	}
	insight.ID = id
	return id, nil
}

// ListInsights returns all saved insights for a user, newest first.
func (s *SQLiteStorage) ListInsights(ctx context.Context, userID string) ([]model.Insight, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, query, insight_text, tags, created_at
		FROM insights
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var insights []model.Insight
	for rows.Next() {
		var insight model.Insight
		var tags string
		if scanErr := rows.Scan(
			&insight.ID,
			&insight.UserID,
			&insight.Query,
			&insight.InsightText,
			&tags,
			&insight.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", scanErr)
		}
		if tags != "" {
			// Tags written by older builds may not be JSON; drop them silently.
			_ = json.Unmarshal([]byte(tags), &insight.Tags)
		}
		insights = append(insights, insight)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate insights: %w", err)
	}
	return insights, nil
}

// DeleteInsight removes a saved insight owned by the given user.
func (s *SQLiteStorage) DeleteInsight(ctx context.Context, userID string, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM insights WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete insight: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: insight %d", common.ErrNotFound, id)
	}
	return nil
}
