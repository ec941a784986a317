// Утилита администрирования EventDesk: миграции БД и учётные записи персонала.
// Использует только параметры PostgreSQL (ED_DB_*), сервер для неё не нужен.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/bigkaa/eventdesk/internal/config"
	"github.com/bigkaa/eventdesk/internal/database"
	"github.com/bigkaa/eventdesk/internal/repository"
	"github.com/bigkaa/eventdesk/internal/service"
)

var flagEmail = &cli.StringFlag{
	Name:     "email",
	Usage:    "Email сотрудника",
	Required: true,
}

var flagPassword = &cli.StringFlag{
	Name:     "password",
	Usage:    "Пароль (не короче 8 символов)",
	EnvVars:  []string{"ED_ADMIN_PASSWORD"},
	Required: true,
}

var flagRole = &cli.StringFlag{
	Name:  "role",
	Usage: "Роль: ADMIN, MANAGER, REGISTRAR, CHECKER, VIEWER (по умолчанию ADMIN для первого сотрудника, иначе VIEWER)",
}

var flagPermission = &cli.StringFlag{
	Name:     "permission",
	Usage:    "Право, например export_data",
	Required: true,
}

var flagSteps = &cli.IntFlag{
	Name:  "steps",
	Value: 1,
	Usage: "Сколько миграций откатить",
}

func main() {
	app := &cli.App{
		Name:  "eventdesk-admin",
		Usage: "администрирование EventDesk",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "миграции БД",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "применить все миграции",
						Action: func(cCtx *cli.Context) error {
							cfg, logger, err := setup()
							if err != nil {
								return err
							}
							return database.Migrate(cfg, logger)
						},
					},
					{
						Name:  "down",
						Usage: "откатить миграции",
						Flags: []cli.Flag{flagSteps},
						Action: func(cCtx *cli.Context) error {
							cfg, logger, err := setup()
							if err != nil {
								return err
							}
							return database.MigrateDown(cfg, cCtx.Int(flagSteps.Name), logger)
						},
					},
					{
						Name:  "version",
						Usage: "текущая версия схемы",
						Action: func(cCtx *cli.Context) error {
							cfg, _, err := setup()
							if err != nil {
								return err
							}
							version, dirty, err := database.MigrationVersion(cfg)
							if err != nil {
								return err
							}
							fmt.Printf("version=%d dirty=%t\n", version, dirty)
							return nil
						},
					},
				},
			},
			{
				Name:  "create-admin",
				Usage: "создать сотрудника",
				Flags: []cli.Flag{flagEmail, flagPassword, flagRole},
				Action: withActors(func(ctx context.Context, cCtx *cli.Context, actors *service.ActorService) error {
					a, err := actors.CreateAdmin(ctx,
						cCtx.String(flagEmail.Name),
						cCtx.String(flagPassword.Name),
						cCtx.String(flagRole.Name),
					)
					if err != nil {
						return err
					}
					fmt.Printf("создан сотрудник %s (%s), id=%s\n", a.Email, a.Role, a.ID)
					return nil
				}),
			},
			{
				Name:  "reset-password",
				Usage: "сменить пароль сотрудника",
				Flags: []cli.Flag{flagEmail, flagPassword},
				Action: withActors(func(ctx context.Context, cCtx *cli.Context, actors *service.ActorService) error {
					if err := actors.ResetPassword(ctx, cCtx.String(flagEmail.Name), cCtx.String(flagPassword.Name)); err != nil {
						return err
					}
					fmt.Println("пароль изменён")
					return nil
				}),
			},
			{
				Name:  "grant",
				Usage: "выдать право сотруднику",
				Flags: []cli.Flag{flagEmail, flagPermission},
				Action: withActors(func(ctx context.Context, cCtx *cli.Context, actors *service.ActorService) error {
					a, err := actors.GrantPermission(ctx, cCtx.String(flagEmail.Name), cCtx.String(flagPermission.Name))
					if err != nil {
						return err
					}
					fmt.Printf("права %s: %v\n", a.Email, a.EffectivePermissions())
					return nil
				}),
			},
			{
				Name:  "revoke",
				Usage: "отозвать право у сотрудника",
				Flags: []cli.Flag{flagEmail, flagPermission},
				Action: withActors(func(ctx context.Context, cCtx *cli.Context, actors *service.ActorService) error {
					a, err := actors.RevokePermission(ctx, cCtx.String(flagEmail.Name), cCtx.String(flagPermission.Name))
					if err != nil {
						return err
					}
					fmt.Printf("права %s: %v\n", a.Email, a.EffectivePermissions())
					return nil
				}),
			},
			{
				Name:  "list-admins",
				Usage: "список сотрудников",
				Action: withActors(func(ctx context.Context, cCtx *cli.Context, actors *service.ActorService) error {
					list, total, err := actors.List(ctx, 1000, 0)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "EMAIL\tROLE\tACTIVE\tPERMISSIONS\tID")
					for _, a := range list {
						fmt.Fprintf(tw, "%s\t%s\t%t\t%v\t%s\n", a.Email, a.Role, a.IsActive, a.Permissions, a.ID)
					}
					if err := tw.Flush(); err != nil {
						return err
					}
					fmt.Printf("всего: %d\n", total)
					return nil
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ошибка:", err)
		os.Exit(1)
	}
}

// setup загружает параметры PostgreSQL и создаёт логгер.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, nil, fmt.Errorf("конфигурация: %w", err)
	}
	return cfg, config.SetupLogger(cfg), nil
}

// withActors подключается к БД и передаёт команде сервис сотрудников
// без выпуска токенов и кэша.
func withActors(fn func(ctx context.Context, cCtx *cli.Context, actors *service.ActorService) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		ctx := cCtx.Context
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		repos := repository.NewRepositories(pool)
		actors := service.NewActorService(repos, nil, nil, nil, service.NewAuditRecorder(logger), logger)
		return fn(ctx, cCtx, actors)
	}
}
