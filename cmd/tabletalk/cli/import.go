package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabletalk/tabletalk/internal/catalog"
	"github.com/tabletalk/tabletalk/internal/connector"
)

func newImportCmd() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Load a CSV file into the store",
		Long: `Create a table from a CSV file (the header row names the columns, types are
inferred) and regenerate the schema catalog.`,
		Example: `  tabletalk import accruals.csv
  tabletalk import ledger.csv --table ledger`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), args[0], table)
		},
	}

	cmd.Flags().StringVar(&table, "table", catalog.DefaultTable, "Name of the table to create")

	return cmd
}

func runImport(ctx context.Context, path, table string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if cfg.Store.Driver == "sqlite" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	// openApp would refuse an empty store, so the import connects directly.
	registry := newRegistry()
	defer registry.CloseAll()
	store, err := registry.Connect(storeName, connector.ConfigFromStore(cfg.Store))
	if err != nil {
		return err
	}

	schema := catalog.NewProvider(store, catalog.Options{
		SchemaFile:   cfg.Catalog.SchemaFile,
		ImportTable:  cfg.Catalog.ImportTable,
		Descriptions: cfg.Catalog.Descriptions,
	}, logger)

	n, err := schema.ImportFile(ctx, path, table)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d rows into %q\n", n, table)
	fmt.Printf("Schema written to %s\n", cfg.Catalog.SchemaFile)
	return nil
}
