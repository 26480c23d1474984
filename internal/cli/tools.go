package cli

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/kids-bank/internal/app"
	"github.com/dvloznov/kids-bank/internal/categorize"
	"github.com/dvloznov/kids-bank/internal/chart"
	"github.com/dvloznov/kids-bank/internal/export/bqexport"
	"github.com/dvloznov/kids-bank/internal/logger"
	"github.com/dvloznov/kids-bank/internal/notionsync"
)

// NewChartCommand creates the chart command.
func NewChartCommand(rootOpts *RootOptions) *cobra.Command {
	var days int
	var out string
	cmd := &cobra.Command{
		Use:          "chart <account>",
		Short:        "Render the balance history of an account as PNG",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 || days > 366 {
				return errors.New("days must be between 1 and 366")
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				_, acc, err := resolveAccount(a.State, args[0])
				if err != nil {
					return err
				}
				return writeOutput(cmd, out, func(w io.Writer) error {
					return chart.RenderAccount(w, acc, days, time.Now())
				})
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "number of days to plot")
	cmd.Flags().StringVarP(&out, "out", "o", "balance.png", "output file (- for stdout)")
	return cmd
}

// NewBigQueryCommand creates the bq-export command.
func NewBigQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var projectID, datasetID string
	cmd := &cobra.Command{
		Use:          "bq-export",
		Short:        "Copy new transactions and balance snapshots to BigQuery",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				repo, err := openBigQuery(ctx, a, projectID, datasetID)
				if err != nil {
					return err
				}
				defer repo.Close()

				res, err := bqexport.Export(ctx, repo, a.State.Accounts(), time.Now())
				if err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Print(res, []string{"Inserted", "Skipped", "Balances"}, [][]string{{
					strconv.Itoa(res.Inserted), strconv.Itoa(res.Skipped), strconv.Itoa(res.Balances),
				}})
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "GCP project id")
	cmd.Flags().StringVar(&datasetID, "dataset", "", "BigQuery dataset id")
	return cmd
}

// NewBigQueryMigrateCommand creates the bq-migrate command.
func NewBigQueryMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var projectID, datasetID, appliedBy string
	cmd := &cobra.Command{
		Use:          "bq-migrate",
		Short:        "Create or upgrade the BigQuery export tables",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				repo, err := openBigQuery(ctx, a, projectID, datasetID)
				if err != nil {
					return err
				}
				defer repo.Close()

				migrations, err := bqexport.Migrations(repo.ProjectID(), repo.DatasetID())
				if err != nil {
					return err
				}
				ran, err := bqexport.Migrate(ctx, repo, migrations, appliedBy)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(ran))
				for _, m := range ran {
					rows = append(rows, []string{strconv.Itoa(m.Version), m.Name})
				}
				if len(ran) == 0 && rootOpts.Format != "json" {
					return formatter(cmd, rootOpts).Message(nil, "No new migrations to apply. Dataset is up to date.")
				}
				return formatter(cmd, rootOpts).Print(ran, []string{"Version", "Name"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "GCP project id")
	cmd.Flags().StringVar(&datasetID, "dataset", "", "BigQuery dataset id")
	cmd.Flags().StringVar(&appliedBy, "applied-by", "kidsbank-cli", "name recorded with each applied migration")
	return cmd
}

// openBigQuery connects to the dataset named by the flags or the config.
func openBigQuery(ctx context.Context, a *app.App, projectID, datasetID string) (*bqexport.BigQueryRepository, error) {
	project := firstNonEmpty(projectID, a.Config.BigQuery.ProjectID)
	dataset := firstNonEmpty(datasetID, a.Config.BigQuery.DatasetID)
	if project == "" || dataset == "" {
		return nil, errors.New("BigQuery project and dataset are required (--project, --dataset or bigquery config)")
	}
	return bqexport.NewBigQueryRepository(ctx, project, dataset)
}

// NewNotionCommand creates the notion-sync command.
func NewNotionCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:          "notion-sync",
		Short:        "Mirror accounts and transactions into Notion databases",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				cfg := a.Config.Notion
				if cfg.Token == "" {
					return errors.New("notion token is required (notion.token or KIDSBANK_NOTION_TOKEN)")
				}
				if cfg.AccountsDBID == "" && cfg.TransactionsDBID == "" {
					return errors.New("no Notion database configured")
				}

				if dryRun {
					log := logger.FromContext(ctx)
					log.Info().Msg("Dry run: Notion will not be modified")
				}
				res, err := notionsync.Sync(ctx, notionsync.NewClient(cfg.Token), cfg.AccountsDBID, cfg.TransactionsDBID, a.State.Accounts(), dryRun)
				if err != nil {
					return err
				}

				rows := [][]string{
					statsRow("accounts", res.Accounts),
					statsRow("transactions", res.Transactions),
				}
				return formatter(cmd, rootOpts).Print(res, []string{"Database", "Created", "Updated", "Archived", "Skipped", "Failed"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without applying them")
	return cmd
}

func statsRow(name string, s notionsync.Stats) []string {
	return []string{
		name,
		strconv.Itoa(s.Created),
		strconv.Itoa(s.Updated),
		strconv.Itoa(s.Archived),
		strconv.Itoa(s.Skipped),
		strconv.Itoa(s.Failed),
	}
}

// NewCategorizeCommand creates the categorize command.
func NewCategorizeCommand(rootOpts *RootOptions) *cobra.Command {
	var earn bool
	cmd := &cobra.Command{
		Use:          "categorize <description>",
		Short:        "Suggest a category for a transaction description",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if cfg.Gemini.APIKey == "" {
				return errors.New("gemini api key is required (gemini.api_key or KIDSBANK_GEMINI_API_KEY)")
			}
			log, err := newLogger(cmd, rootOpts, cfg)
			if err != nil {
				return err
			}
			ctx := logger.WithContext(cmd.Context(), log)

			model, err := categorize.NewGeminiModel(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
			if err != nil {
				return err
			}
			slug, err := categorize.New(model).Suggest(ctx, strings.Join(args, " "), earn)
			if err != nil {
				return err
			}
			return formatter(cmd, rootOpts).Message(map[string]string{"category": slug}, "%s", slug)
		},
	}
	cmd.Flags().BoolVar(&earn, "earn", false, "the transaction is money in")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
