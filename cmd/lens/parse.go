package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerlens/ledgerlens/internal/common"
)

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [text]",
		Short: "Parse a single expense description and print the result",
		Long: `Run one expense text through the parsing pipeline and print the
structured result as JSON. Requires an oracle API key in config
(oracle.api_key) or the LENS_ORACLE_API_KEY environment variable.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runParse,
	}
}

func runParse(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	if eng == nil {
		return fmt.Errorf("%w: set oracle.api_key or LENS_ORACLE_API_KEY", common.ErrOracleUnavailable)
	}

	text := strings.Join(args, " ")
	result, err := eng.Parse(cmd.Context(), text)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
