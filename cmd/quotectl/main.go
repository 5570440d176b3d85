package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/tierquote/cmd/quotectl/cli"
	"github.com/odyssey-erp/tierquote/internal/app"
	"github.com/odyssey-erp/tierquote/internal/catalog/importer"
	"github.com/odyssey-erp/tierquote/internal/platform/cache"
	"github.com/odyssey-erp/tierquote/internal/platform/db"
	"github.com/odyssey-erp/tierquote/jobs"
	"github.com/odyssey-erp/tierquote/migrations"
)

var rootCmd = &cobra.Command{
	Use:           "quotectl",
	Short:         "Operator tooling for the tierquote service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "quotectl:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(migrateCmd(), jobsCmd(), catalogCmd(), tokenCmd())
}

func loadConfig() (*app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// connect opens Postgres and Redis and builds the services. The returned
// func releases everything.
func connect(ctx context.Context, cfg *app.Config) (*app.Services, func(), error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	services := app.NewServices(app.ServiceDeps{
		Config: cfg,
		Logger: app.NewLogger(cfg),
		Pool:   pool,
		Redis:  redisClient,
		Warmer: jobClient,
	})
	return services, func() {
		_ = jobClient.Close()
		_ = redisClient.Close()
		pool.Close()
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Apply or roll back schema migrations"}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := migrations.Up(cfg.PGDSN); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := migrations.Down(cfg.PGDSN, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			v, dirty, err := migrations.Version(cfg.PGDSN)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"version": v, "dirty": dirty})
		},
	})
	return cmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Trigger and inspect background jobs"}

	var asOf string
	trigger := &cobra.Command{
		Use:       "trigger <task>",
		Short:     "Enqueue a job now",
		Long:      "Enqueue a job now. Supported tasks: " + jobs.TaskExpireSweep + ", " + jobs.TaskCatalogWarm + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskExpireSweep, jobs.TaskCatalogWarm},
		RunE: func(cmd *cobra.Command, args []string) error {
			var pinned time.Time
			if asOf != "" {
				t, err := time.Parse("2006-01-02", asOf)
				if err != nil {
					return fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
				}
				pinned = t
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			jc := cli.NewJobsCLI(cfg.RedisAddr)
			defer jc.Close()
			info, err := jc.Trigger(cmd.Context(), args[0], pinned)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue})
		},
	}
	trigger.Flags().StringVar(&asOf, "as-of", "", "sweep date (YYYY-MM-DD), defaults to the run date")
	cmd.AddCommand(trigger)

	var scheduled int
	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Show queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			jc := cli.NewJobsCLI(cfg.RedisAddr)
			defer jc.Close()
			stats, err := jc.InspectQueue()
			if err != nil {
				return err
			}
			out := map[string]any{"stats": stats}
			if scheduled > 0 {
				tasks, err := jc.ListScheduled(scheduled)
				if err != nil {
					return err
				}
				upcoming := make([]map[string]any, 0, len(tasks))
				for _, t := range tasks {
					upcoming = append(upcoming, map[string]any{"id": t.ID, "type": t.Type, "next_process_at": t.NextProcessAt})
				}
				out["scheduled"] = upcoming
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	inspect.Flags().IntVar(&scheduled, "scheduled", 0, "also list up to N scheduled tasks")
	cmd.AddCommand(inspect)
	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "catalog", Short: "Bulk catalog import and export"}
	var userID string

	importCmd := &cobra.Command{
		Use:   "import <file.xlsx|file.csv>",
		Short: "Import products from a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(userID)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			services, closeAll, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeAll()
			report, err := cli.NewCatalogCLI(services.Importer, services.Users).ImportFile(cmd.Context(), id, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	importCmd.Flags().StringVar(&userID, "as", "", "id of the user the import runs as")
	_ = importCmd.MarkFlagRequired("as")
	cmd.AddCommand(importCmd)

	var exportFormat, out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as a user sees it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(userID)
			if err != nil {
				return err
			}
			format := importer.Format(exportFormat)
			if format != importer.FormatCSV && format != importer.FormatXLSX {
				return fmt.Errorf("--format must be csv or xlsx")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			services, closeAll, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeAll()

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := cli.NewCatalogCLI(services.Importer, services.Users).Export(cmd.Context(), id, format, w)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d products to %s\n", n, out)
			}
			return nil
		},
	}
	exportCmd.Flags().StringVar(&userID, "as", "", "id of the user whose view is exported")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "csv or xlsx")
	exportCmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty")
	_ = exportCmd.MarkFlagRequired("as")
	cmd.AddCommand(exportCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "template <file.xlsx>",
		Short: "Write a blank import template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return importer.WriteTemplate(f)
		},
	})
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Manage API bearer tokens"}
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Issue a bearer token for an active user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			services, closeAll, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeAll()
			token, err := services.Users.IssueToken(cmd.Context(), id, services.Tokens, ttl)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"token": token, "expires_in": ttl.String()})
		},
	}
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.AddCommand(issue)
	return cmd
}
