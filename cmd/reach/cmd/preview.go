package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/coursekit/reach/internal/core/db"
	"github.com/coursekit/reach/internal/rules"
	"github.com/coursekit/reach/internal/segment"
	"github.com/coursekit/reach/internal/types"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview the reach of a rule tree from a JSON file",
	RunE:  runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().String("rules", "", "path to a JSON file with the rule tree")
	previewCmd.Flags().Int("sample-size", 0, "number of sample users to show (0 = default)")
	previewCmd.Flags().Int("offset", 0, "sample window offset")
	previewCmd.MarkFlagRequired("rules")
}

func runPreview(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	rulesPath, _ := cmd.Flags().GetString("rules")
	sampleSize, _ := cmd.Flags().GetInt("sample-size")
	offset, _ := cmd.Flags().GetInt("offset")

	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	var tree types.SegmentRules
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to parse rules file: %w", err)
	}

	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}
	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	executor := segment.NewExecutor(database, segment.DefaultLimits())
	service := segment.NewService(executor, rules.DefaultGuards(), logger)

	result := service.Reach(cmd.Context(), tree, sampleSize, offset)
	if result.Err != "" {
		return fmt.Errorf("preview failed: %s", result.Err)
	}

	fmt.Printf("matching users: %d\n", result.Count)
	if len(result.SampleUsers) == 0 {
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Email", "Name"})
	for _, u := range result.SampleUsers {
		tw.AppendRow(table.Row{u.ID, u.Email, u.Name})
	}
	tw.Render()
	return nil
}
