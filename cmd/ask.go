package cmd

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

var (
	askModel string
	askTable string
	askLimit int
)

var askCmd = &cobra.Command{
	Use:   `ask "question"`,
	Short: "Answer one question and print the rows",
	Long: `The ask command runs a single question through the assistant without storing it
in a chat session. The generated SQL is printed above a table of the returned rows.

Use --table to restrict the schema shown to the model to one table, and --limit -1
to fetch every row.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx := cmd.Context()
		store, err := openBusinessStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		stack, err := newAnswerStack(cfg, store, logger)
		if err != nil {
			return err
		}

		const sessionID = "cli"
		if askTable != "" {
			exists, err := stack.projector.HasTable(ctx, askTable)
			if err != nil {
				return fmt.Errorf("failed to check table: %w", err)
			}
			if !exists {
				return fmt.Errorf("table not found: %s", askTable)
			}
			stack.scope.Set(sessionID, askTable)
		}

		answer, err := stack.pipeline.Answer(ctx, services.AnswerRequest{
			Message:   strings.Join(args, " "),
			ModelID:   askModel,
			SessionID: sessionID,
			RowLimit:  askLimit,
		})
		if err != nil {
			return err
		}
		return renderAnswer(answer)
	},
}

func init() {
	askCmd.Flags().StringVar(&askModel, "model", "", "model ID (defaults to the configured default model)")
	askCmd.Flags().StringVar(&askTable, "table", "", "restrict the question to one table")
	askCmd.Flags().IntVar(&askLimit, "limit", 0, "row limit (0 uses the configured limit, -1 fetches every row)")
	rootCmd.AddCommand(askCmd)
}

func renderAnswer(answer *services.Answer) error {
	if answer.SQL != "" {
		pterm.DefaultSection.Println("SQL")
		pterm.Println(answer.SQL)
		pterm.Println()
	}

	switch {
	case answer.Error != "":
		pterm.Error.Println(answer.Error)
	case answer.Blocked:
		pterm.Warning.Println(answer.Message)
		return nil
	default:
		pterm.Info.Println(answer.Message)
	}

	if len(answer.Rows) == 0 || len(answer.Columns) == 0 {
		return nil
	}

	data := make([][]string, 0, len(answer.Rows)+1)
	header := make([]string, len(answer.Columns))
	for i, c := range answer.Columns {
		header[i] = c.Name
	}
	data = append(data, header)
	for _, row := range jsonutil.InterchangeRows(answer.Rows) {
		cells := make([]string, len(answer.Columns))
		for i, c := range answer.Columns {
			if v := row[c.Name]; v != nil {
				cells[i] = fmt.Sprint(v)
			} else {
				cells[i] = "NULL"
			}
		}
		data = append(data, cells)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
