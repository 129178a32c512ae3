package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"NewsConsensus/internal/app"
	"NewsConsensus/internal/config"
	"NewsConsensus/internal/logging"
)

func main() {
	cliApp := &cli.App{
		Name:  "newsconsensus",
		Usage: "score daily news with several evaluators and publish the consensus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{config.EnvConfigPath},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run one scoring pass for today",
				Action: runAction,
			},
			{
				Name:   "serve",
				Usage:  "run scoring passes on the configured interval and serve the status API",
				Action: serveAction,
			},
			{
				Name:   "health",
				Usage:  "ping every configured evaluator",
				Action: healthAction,
			},
			{
				Name:   "usage",
				Usage:  "print the rationale usage table",
				Action: usageAction,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withApp(c *cli.Context, fn func(ctx context.Context, a *app.Application) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()

	return fn(ctx, application)
}

func runAction(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.Application) error {
		summary, err := a.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "run %s: fetched %d, new %d, published %d, skipped %d\n",
			summary.RunID, summary.Fetched, summary.Fresh, summary.Published, summary.Skipped)
		return nil
	})
}

func serveAction(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.Application) error {
		return a.Serve(ctx)
	})
}

func healthAction(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.Application) error {
		statuses, healthy := a.Health(ctx)
		w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EVALUATOR\tWEIGHT\tSTATUS")
		for _, s := range statuses {
			status := "ok"
			if s.Err != nil {
				status = s.Err.Error()
			}
			fmt.Fprintf(w, "%s\t%g\t%s\n", s.Name, s.Weight, status)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%d/%d evaluators healthy\n", healthy, len(statuses))
		if healthy == 0 {
			return cli.Exit("no evaluator is reachable", 2)
		}
		return nil
	})
}

func usageAction(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.Application) error {
		rows, err := a.Usage(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EVALUATOR\tUSES\tENGAGEMENT")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\t%d\n", r.Evaluator, r.Uses, r.TotalEngagement)
		}
		return w.Flush()
	})
}
