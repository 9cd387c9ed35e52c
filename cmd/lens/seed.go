package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// seedTexts are realistic expense descriptions for populating a fresh
// database during development.
var seedTexts = []string{
	"Lunch at Chipotle $15.50",
	"Grocery shopping at Whole Foods: chicken $12, vegetables $8, snacks $6",
	"Dinner $80, split with Sarah",
	"Uber ride to airport $45",
	"Movie tickets $30 for me and Jake, we split it",
	"Monthly Netflix subscription $15.99",
	"Coffee $5.50",
	"Bought lunch for the team: pizza $40, drinks $15, I'm covering it",
	"Electric bill $120",
	"Gym membership $50 per month",
	"Weekend trip gas $60, split three ways with Tom and Lisa",
	"New running shoes $89.99",
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with sample expenses",
		Long: `Parse a set of sample expense descriptions through the pipeline and
store the results for a mock user. Useful for demoing the API
against a fresh database.`,
		RunE: runSeed,
	}

	cmd.Flags().String("user", "mock_user", "user ID to attribute seeded expenses to")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	user, _ := cmd.Flags().GetString("user")

	eng, err := newEngine()
	if err != nil {
		return err
	}
	if eng == nil {
		return fmt.Errorf("%w: seeding requires a live oracle", common.ErrOracleUnavailable)
	}

	dbPath, err := databasePath()
	if err != nil {
		return err
	}
	store, err := openStorage(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	bar := progressbar.NewOptions(len(seedTexts),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Seeding expenses..."),
	)

	seeded := 0
	for _, text := range seedTexts {
		result, parseErr := eng.Parse(ctx, text)
		if parseErr != nil {
			slog.Warn("failed to parse seed text", "text", text, "error", parseErr)
			_ = bar.Add(1)
			continue
		}

		parsedData, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			return fmt.Errorf("failed to marshal parsed expense: %w", marshalErr)
		}

		expense := &model.Expense{
			UserID:       user,
			OriginalText: text,
			ParsedData:   string(parsedData),
			Status:       result.Status,
			ExpenseDate:  result.ExpenseDate,
		}
		if _, saveErr := store.SaveExpense(ctx, expense); saveErr != nil {
			return fmt.Errorf("failed to save seeded expense: %w", saveErr)
		}
		seeded++
		_ = bar.Add(1)
	}

	slog.Info("Seeding complete", "seeded", seeded, "total", len(seedTexts), "user", user)
	return nil
}
