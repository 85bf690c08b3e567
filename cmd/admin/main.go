// Package main - консольная утилита оператора: миграции, счётчик выпусков,
// очистка тестовых данных и просмотр статистики без Telegram.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/wordle-hub/wordle-stats-bot/config"
	"github.com/wordle-hub/wordle-stats-bot/internal/application/command"
	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/persistence"
	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "wordle-admin",
		Usage: "operate the Wordle stats bot storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a config file",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log storage activity to stderr",
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			editionCommand(),
			purgeCommand(),
			restartCommand(),
			statsCommand(),
			leaderboardCommand(),
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// withStorage loads config, opens storage for one action and closes it.
func withStorage(c *cli.Context, fn func(ctx context.Context, s *persistence.Storage) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	log := logger.Nop()
	if c.Bool("verbose") {
		opts := logger.DefaultOptions()
		opts.Format = logger.FormatText
		opts.Output = c.App.ErrWriter
		opts.Level = slog.LevelDebug
		log = logger.New(opts)
	}

	s, err := persistence.Open(c.Context, persistence.Options{
		Database: cfg.Database,
		Redis:    cfg.Redis,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(c.Context, s)
}

func adminHandler(s *persistence.Storage) *command.AdminHandler {
	return command.NewAdminHandler(s.Players, s.Editions, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func migrateCommand() *cli.Command {
	migrator := func(s *persistence.Storage) error {
		if s.Migrator == nil {
			return errors.New("migrations only apply to the postgres driver")
		}
		return nil
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations (postgres)",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply pending migrations",
				Action: func(c *cli.Context) error {
					return withStorage(c, func(ctx context.Context, s *persistence.Storage) error {
						if err := migrator(s); err != nil {
							return err
						}
						n, err := s.Migrator.Up(ctx)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "Applied %d migrations\n", n)
						return nil
					})
				},
			},
			{
				Name:  "down",
				Usage: "roll back the last migration",
				Action: func(c *cli.Context) error {
					return withStorage(c, func(ctx context.Context, s *persistence.Storage) error {
						if err := migrator(s); err != nil {
							return err
						}
						version, err := s.Migrator.Down(ctx)
						if err != nil {
							return err
						}
						if version == 0 {
							fmt.Fprintln(c.App.Writer, "No migrations to roll back")
							return nil
						}
						fmt.Fprintf(c.App.Writer, "Rolled back migration %d\n", version)
						return nil
					})
				},
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: func(c *cli.Context) error {
					return withStorage(c, func(ctx context.Context, s *persistence.Storage) error {
						if err := migrator(s); err != nil {
							return err
						}
						ms, err := s.Migrator.Status(ctx)
						if err != nil {
							return err
						}
						tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
						fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
						for _, m := range ms {
							applied := "-"
							if m.IsApplied {
								applied = m.AppliedAt.UTC().Format("2006-01-02 15:04:05")
							}
							fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.Name, applied)
						}
						return tw.Flush()
					})
				},
			},
		},
	}
}

func editionCommand() *cli.Command {
	return &cli.Command{
		Name:  "edition",
		Usage: "read or overwrite the latest Wordle edition",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "print the latest edition",
				Action: func(c *cli.Context) error {
					return withStorage(c, func(ctx context.Context, s *persistence.Storage) error {
						latest, err := adminHandler(s).Edition(ctx)
						if err != nil {
							return err
						}
						fmt.Fprintln(c.App.Writer, latest)
						return nil
					})
				},
			},
			{
				Name:      "set",
				Usage:     "overwrite the latest edition",
				ArgsUsage: "<edition>",
				Action: func(c *cli.Context) error {
					edition, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return fmt.Errorf("edition must be a number, got %q", c.Args().First())
					}
					return withStorage(c, func(ctx context.Context, s *persistence.Storage) error {
						if err := adminHandler(s).SetEdition(ctx, edition); err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "Latest edition set to %d\n", edition)
						return nil
					})
				},
			},
		},
	}
}

func purgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "delete test accounts created with /adduser",
		Action: func(c *cli.Context) error {
			return withStorage(c, func(ctx context.Context, s *persistence.Storage) error {
				n, err := adminHandler(s).PurgeSynthetic(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Deleted %d test accounts\n", n)
				return nil
			})
		},
	}
}

func restartCommand() *cli.Command {
	return &cli.Command{
		Name:  "restart",
		Usage: "delete every player and reset the edition counter",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "confirm deleting everything"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return errors.New("refusing to delete all data without --yes")
			}
			return withStorage(c, func(ctx context.Context, s *persistence.Storage) error {
				n, err := adminHandler(s).Restart(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Deleted %d players and reset the edition counter\n", n)
				return nil
			})
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "print a player's stats",
		ArgsUsage: "<user_id>",
		Action: func(c *cli.Context) error {
			id, err := strconv.ParseInt(c.Args().First(), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("user id must be a positive number, got %q", c.Args().First())
			}
			return withStorage(c, func(ctx context.Context, s *persistence.Storage) error {
				res, err := query.NewGetStatsHandler(s.Players, s.Editions).Handle(ctx, query.GetStatsQuery{
					UserID: player.UserID(id),
				})
				if err != nil {
					return err
				}
				st := res.Stats
				tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "User\t%d\n", st.UserID)
				fmt.Fprintf(tw, "Name\t%s\n", st.Username)
				fmt.Fprintf(tw, "Games\t%d\n", st.NumGames)
				fmt.Fprintf(tw, "Average\t%.3f\n", st.ScoreAvg)
				fmt.Fprintf(tw, "Streak\t%d\n", st.Streak)
				fmt.Fprintf(tw, "Last game\t%d\n", st.LastGame)
				fmt.Fprintf(tw, "Retroactive\t%t\n", st.ToggleRetroactive)
				fmt.Fprintf(tw, "Warnings\t%t\n", st.Warning)
				return tw.Flush()
			})
		},
	}
}

func leaderboardCommand() *cli.Command {
	return &cli.Command{
		Name:      "leaderboard",
		Usage:     "print a chat leaderboard",
		ArgsUsage: "[--] <chat_id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "rows to print (0 = all)"},
		},
		Action: func(c *cli.Context) error {
			chatID, err := strconv.ParseInt(c.Args().First(), 10, 64)
			if err != nil || chatID == 0 {
				return fmt.Errorf("chat id must be a non-zero number, got %q", c.Args().First())
			}
			if c.Int("limit") < 0 {
				return errors.New("limit cannot be negative")
			}
			return withStorage(c, func(ctx context.Context, s *persistence.Storage) error {
				board, err := query.NewGetLeaderboardHandler(s.Players, s.Editions).Handle(ctx, query.GetLeaderboardQuery{
					ChatID: player.ChatID(chatID),
					Limit:  c.Int("limit"),
				})
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RANK\tNAME\tAVERAGE\tGAMES\tSTREAK")
				for _, row := range board.Rows {
					fmt.Fprintf(tw, "%d\t%s\t%.3f\t%d\t%d\n", row.Rank, row.Username, row.ScoreAvg, row.NumGames, row.Streak)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if len(board.Rows) < board.Total {
					fmt.Fprintf(c.App.Writer, "(%d of %d players)\n", len(board.Rows), board.Total)
				}
				return nil
			})
		},
	}
}
