// reportctl is an operator CLI that renders reports and inspects definitions
// directly against the configured database.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"reportd/internal/cache"
	"reportd/internal/config"
	"reportd/internal/database"
	"reportd/internal/defaults"
	"reportd/internal/models"
	"reportd/internal/query"
	"reportd/internal/repository"
	"reportd/internal/service"
	"reportd/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "reportctl",
		Short: "Render reports and inspect report definitions",
	}
	root.AddCommand(renderCmd(), definitionsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildServices wires the service stack the same way cmd/server does, minus
// the HTTP surface.
func buildServices() (*service.ReportService, *service.DefinitionService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewDatabase(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	executor, err := query.NewExecutor(cfg, db)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewStorageFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	renderCache := cache.NoopCache{}
	definitions := service.NewDefinitionService(repository.NewDefinitionRepository(db), renderCache, logger)
	reports := service.NewReportService(
		definitions,
		repository.NewReportRepository(db),
		executor,
		store,
		renderCache,
		logger,
	)
	return reports, definitions, nil
}

func renderCmd() *cobra.Command {
	var (
		format string
		output string
		params []string
	)

	cmd := &cobra.Command{
		Use:   "render <report-name>",
		Short: "Render a report to a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, _, err := buildServices()
			if err != nil {
				return err
			}

			renderParams := models.JSON{}
			for _, p := range params {
				key, value, found := strings.Cut(p, "=")
				if !found {
					return fmt.Errorf("invalid --param %q, expected key=value", p)
				}
				renderParams[key] = value
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			name := args[0]
			data, contentType, err := reports.Render(ctx, name, format, renderParams)
			if err != nil {
				return err
			}

			if output == "" {
				ext := "xlsx"
				if contentType == "text/csv" {
					ext = "csv"
				}
				output = fmt.Sprintf("%s.%s", name, ext)
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Printf("wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "output format (xlsx or csv); defaults to the definition's engine")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path")
	cmd.Flags().StringArrayVar(&params, "param", nil, "report parameter as key=value (repeatable)")
	return cmd
}

func definitionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "Inspect report definitions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List active overrides and built-in defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, definitions, err := buildServices()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			active, err := definitions.ListActive(ctx)
			if err != nil {
				return err
			}

			overridden := make(map[string]bool, len(active))
			for _, def := range active {
				overridden[def.Name] = true
				fmt.Printf("%-40s %-6s override (uuid %s)\n", def.Name, def.Engine, def.ID)
			}
			for _, name := range defaults.Names() {
				if overridden[name] {
					continue
				}
				def, _ := defaults.Lookup(name)
				fmt.Printf("%-40s %-6s built-in\n", name, def.Engine)
			}
			return nil
		},
	}

	cmd.AddCommand(list)
	return cmd
}
