package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/app"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/database"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/pkg/logger"
)

func main() {
	var configDir string

	root := &cobra.Command{
		Use:           "integrity-service",
		Short:         "Exam integrity detection service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configDir, "config", "c", "", "directory containing config.yaml")

	load := func() (*config.Config, zerolog.Logger, error) {
		var paths []string
		if configDir != "" {
			paths = append(paths, configDir)
		}
		cfg, err := config.LoadWith(viper.New(), paths...)
		if err != nil {
			return nil, logger.New(), err
		}
		return cfg, logger.NewWithConfig(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Logging.NoColor), nil
	}

	root.AddCommand(newServeCmd(load), newMigrateCmd(load), newAnalyzeCmd(load))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type loader func() (*config.Config, zerolog.Logger, error)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and broker workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := database.Open(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			log.Info().Str("driver", cfg.Database.Driver).Msg("Database connection established")

			if cfg.Database.Driver == database.DriverSQLite {
				if err := migrateUp(db); err != nil {
					_ = db.Close()
					return err
				}
			}

			application, err := app.New(ctx, cfg, log, db)
			if err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to create application: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- application.Run(ctx)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					log.Error().Err(err).Msg("Integrity service failed")
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			return application.Shutdown(shutdownCtx)
		},
	}
}

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}

			cfg, log, err := load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			db, err := database.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			migrator, err := database.NewMigrator(db)
			if err != nil {
				return err
			}

			switch direction {
			case "up":
				if err := migrator.Up(); err != nil {
					return err
				}
				log.Info().Msg("Migrations applied successfully")
			case "down":
				if err := migrator.Down(); err != nil {
					return err
				}
				log.Info().Msg("Migrations rolled back successfully")
			case "version":
				version, dirty, err := migrator.Version()
				if err != nil {
					return fmt.Errorf("failed to read migration version: %w", err)
				}
				log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Current migration version")
			}
			return nil
		},
	}
}

func newAnalyzeCmd(load loader) *cobra.Command {
	var target, corpusDir string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score a text file against a directory of source texts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			text, err := os.ReadFile(target)
			if err != nil {
				return fmt.Errorf("read target: %w", err)
			}

			corpus, err := readCorpus(corpusDir, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Comparing %s against %d source texts...\n", target, len(corpus))

			analysis := app.NewAnalyzer(cfg, log).Analyze(cmd.Context(), string(text), corpus, filepath.Base(target))

			data, err := json.MarshalIndent(analysis, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal analysis: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "text file to analyse")
	cmd.Flags().StringVarP(&corpusDir, "corpus", "d", "", "directory of source texts")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("corpus")

	return cmd
}

// readCorpus loads every regular file in dir, keyed by file name. The target
// itself is skipped when it lives in the same directory.
func readCorpus(dir, target string) ([]models.CorpusEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	targetAbs, _ := filepath.Abs(target)

	var corpus []models.CorpusEntry
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if abs, _ := filepath.Abs(path); abs == targetAbs {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		corpus = append(corpus, models.CorpusEntry{AnswerID: entry.Name(), Text: string(data)})
	}

	sort.Slice(corpus, func(i, j int) bool { return corpus[i].AnswerID < corpus[j].AnswerID })
	return corpus, nil
}

// migrateUp brings an embedded SQLite file up to date so a single binary can
// serve without a separate migrate step.
func migrateUp(db *sqlx.DB) error {
	migrator, err := database.NewMigrator(db)
	if err != nil {
		return err
	}
	return migrator.Up()
}
