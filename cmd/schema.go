package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/schema"
)

var (
	schemaFormat string
	schemaTable  string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the schema shown to the model",
	Long:  `Print the projected business schema in the same JSON or TOON form embedded in SQL generation prompts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		format := cfg.Query.Format()
		if schemaFormat != "" {
			if format, err = schema.ParseFormat(schemaFormat); err != nil {
				return err
			}
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

		descriptor := schema.NewProjector(store, logger).Project(ctx, schemaTable)
		if descriptor.IsEmpty() {
			return apperrors.ErrNoSchema
		}

		text, err := descriptor.Format(format)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	},
}

func init() {
	schemaCmd.Flags().StringVar(&schemaFormat, "format", "", "output format: json or toon (defaults to the configured format)")
	schemaCmd.Flags().StringVar(&schemaTable, "table", "", "print only this table")
	rootCmd.AddCommand(schemaCmd)
}
