// Command calsync runs calendar and reviewer operations outside the API
// server: the Google OAuth handshake, pulls and pushes against the remote
// calendar, one-shot reviewer passes and a view of stored notifications.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/capitalize-ai/calendar-assistant/internal/app"
	"github.com/capitalize-ai/calendar-assistant/internal/calendar"
	"github.com/capitalize-ai/calendar-assistant/internal/config"
	natsclient "github.com/capitalize-ai/calendar-assistant/internal/nats"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "calsync",
		Usage: "Calendar sync and reviewer tools for the scheduling assistant.",
		Commands: []*cli.Command{
			authCommand(),
			syncCommand(),
			pushCommand(),
			reviewCommand(),
			notificationsCommand(),
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "calsync: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and a logger for a command.
func setup() (*config.Config, *logger.Logger, error) {
	cfg := config.Load()
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetGlobal(log)
	return cfg, log, nil
}

// withApp builds the component graph, runs fn and releases it.
func withApp(c *cli.Context, fn func(a *app.App, log *logger.Logger) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a, err := app.New(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a, log)
}

func userFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "user", Usage: "User whose events are affected. Defaults to DEFAULT_USER_ID."}
}

func userOf(c *cli.Context, a *app.App) string {
	if u := c.String("user"); u != "" {
		return u
	}
	return a.Config.DefaultUserID
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize Google Calendar access and store the token.",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			oauthCfg, err := calendar.OAuthConfig(app.GoogleConfig(cfg))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			code, _ := reader.ReadString('\n')
			code = strings.TrimSpace(code)
			if code == "" {
				return errors.New("no authorization code entered")
			}

			token, err := oauthCfg.Exchange(c.Context, code)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}
			if err := calendar.SaveToken(cfg.GoogleTokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			log.Info("saved Google Calendar token", zap.String("file", cfg.GoogleTokenFile))
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Import upcoming remote calendar events into the local store.",
		Flags: []cli.Flag{
			userFlag(),
			&cli.IntFlag{Name: "watch", Usage: "Repeat the pull every N seconds until interrupted."},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(a *app.App, log *logger.Logger) error {
				if !a.Calendar.Configured() {
					return fmt.Errorf("calendar provider %q is not configured", a.Config.CalendarProvider)
				}
				user := userOf(c, a)

				pull := func() error {
					n, err := a.Events.PullRemote(c.Context, user)
					if err != nil {
						return err
					}
					log.Info("pulled remote events", zap.String("user_id", user), zap.Int("count", n))
					return nil
				}

				if !c.IsSet("watch") {
					return pull()
				}

				interval := time.Duration(c.Int("watch")) * time.Second
				if interval <= 0 {
					return errors.New("--watch must be a positive number of seconds")
				}
				log.Info("starting watcher", zap.Duration("interval", interval))
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					if err := pull(); err != nil {
						log.Error("sync cycle failed", zap.Error(err))
					}
					select {
					case <-c.Context.Done():
						return nil
					case <-ticker.C:
					}
				}
			})
		},
	}
}

func pushCommand() *cli.Command {
	return &cli.Command{
		Name:  "push",
		Usage: "Retry remote writes for events that are pending or stale.",
		Flags: []cli.Flag{userFlag()},
		Action: func(c *cli.Context) error {
			return withApp(c, func(a *app.App, log *logger.Logger) error {
				if !a.Calendar.Configured() {
					return fmt.Errorf("calendar provider %q is not configured", a.Config.CalendarProvider)
				}
				user := userOf(c, a)
				n, err := a.Events.PushUnsynced(c.Context, user)
				if err != nil {
					return err
				}
				log.Info("pushed unsynced events", zap.String("user_id", user), zap.Int("count", n))
				return nil
			})
		},
	}
}

func reviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Run the reviewer jobs once. Without flags both jobs run.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reminders", Usage: "Send reminders for events starting soon."},
			&cli.BoolFlag{Name: "insights", Usage: "Publish scheduling insights."},
		},
		Action: func(c *cli.Context) error {
			reminders, insights := c.Bool("reminders"), c.Bool("insights")
			if !reminders && !insights {
				reminders, insights = true, true
			}

			return withApp(c, func(a *app.App, log *logger.Logger) error {
				if reminders {
					n, err := a.Reviewer.RunReminders(c.Context)
					if err != nil {
						return fmt.Errorf("reminders: %w", err)
					}
					log.Info("reminders sent", zap.Int("count", n))
				}
				if insights {
					published, err := a.Reviewer.RunInsights(c.Context)
					if err != nil {
						return fmt.Errorf("insights: %w", err)
					}
					log.Info("insights pass finished", zap.Bool("published", published))
				}
				return nil
			})
		},
	}
}

func notificationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "notifications",
		Usage: "Print the newest notifications stored in the NATS stream as JSON lines.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Usage: "Only show reminders for this user."},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum number of notifications."},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(a *app.App, _ *logger.Logger) error {
				if a.Streams == nil {
					return errors.New("NATS_URL is not set or NATS is unreachable")
				}

				filter := ""
				if u := c.String("user"); u != "" {
					filter = natsclient.ReminderSubject(u)
				}
				items, err := a.Streams.Recent(c.Context, filter, c.Int("limit"))
				if err != nil {
					return err
				}

				enc := json.NewEncoder(os.Stdout)
				for _, n := range items {
					if err := enc.Encode(n); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
