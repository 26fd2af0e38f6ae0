package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-yaml"
	"github.com/prometheus/common/version"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/michaelzhou24/openflow-nat/config"
	"github.com/michaelzhou24/openflow-nat/nat"
	"github.com/michaelzhou24/openflow-nat/openflow"
)

func main() {
	app := &cli.App{
		Name:  "ofnat",
		Usage: "OpenFlow controller that turns a switch into a NAT gateway",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the controller",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "path to a YAML config file",
					},
					&cli.StringFlag{
						Name:  "listen",
						Usage: "OpenFlow listen address (overrides config)",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "log level (overrides config)",
					},
				},
				Action: run,
			},
			{
				Name:   "print-config",
				Usage:  "Print the default configuration as YAML",
				Action: printConfig,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(*cli.Context) error {
					fmt.Println(version.Print("ofnat"))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	if v := c.String("listen"); v != "" {
		cfg.Listen = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	log.SetLevel(level)

	natCfg, err := cfg.Engine()
	if err != nil {
		return fmt.Errorf("invalid NAT config: %w", err)
	}

	ctrl := openflow.NewController()
	ctrl.Handler = nat.NewEngine(natCfg, ctrl)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Infof("Gateway identities: internal %s (%s), external %s (%s)",
		natCfg.InternalIP, natCfg.InternalMAC, natCfg.ExternalIP, natCfg.ExternalMAC)
	return ctrl.ListenAndServe(ctx, cfg.Listen)
}

func printConfig(*cli.Context) error {
	out, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
