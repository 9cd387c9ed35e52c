package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// SaveExpense inserts a parsed expense record and returns its assigned ID.
func (s *SQLiteStorage) SaveExpense(ctx context.Context, expense *model.Expense) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if expense == nil {
		return 0, fmt.Errorf("%w: expense", ErrNilParameter)
	}
	if err := validateString(expense.UserID, "userID"); err != nil {
		return 0, err
	}
	if err := validateString(expense.OriginalText, "originalText"); err != nil {
		return 0, err
	}

	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	if expense.Status == "" {
		expense.Status = "success"
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (user_id, original_text, parsed_data, status, created_at, expense_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`, expense.UserID, expense.OriginalText, expense.ParsedData, expense.Status, expense.CreatedAt, expense.ExpenseDate)
	if err != nil {
		return 0, fmt.Errorf("failed to insert expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get expense id: %w", err)
	}
	expense.ID = id
	return id, nil
}

// ListExpenses returns all expenses for a user, newest first.
func (s *SQLiteStorage) ListExpenses(ctx context.Context, userID string) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, original_text, parsed_data, status, created_at, expense_date
		FROM expenses
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var expenses []model.Expense
	for rows.Next() {
		expense, scanErr := scanExpense(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

// GetExpense returns a single expense owned by the given user.
func (s *SQLiteStorage) GetExpense(ctx context.Context, userID string, id int64) (*model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, original_text, parsed_data, status, created_at, expense_date
		FROM expenses
		WHERE id = ? AND user_id = ?
	`, id, userID)

	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: expense %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

// DeleteExpense removes an expense owned by the given user.
func (s *SQLiteStorage) DeleteExpense(ctx context.Context, userID string, id int64) error {
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
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: expense %d", common.ErrNotFound, id)
	}
	return nil
}

// rowScanner lets scanExpense work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (model.Expense, error) {
	var expense model.Expense
	var expenseDate sql.NullTime
	err := row.Scan(
		&expense.ID,
		&expense.UserID,
		&expense.OriginalText,
		&expense.ParsedData,
		&expense.Status,
		&expense.CreatedAt,
		&expenseDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return expense, err
	}
	if err != nil {
		return expense, fmt.Errorf("failed to scan expense: %w", err)
	}
	if expenseDate.Valid {
		d := expenseDate.Time
		expense.ExpenseDate = &d
	}
	return expense, nil
}
