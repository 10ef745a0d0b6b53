// Command mediaflow runs the media server: RTMP/HTTP-FLV/WS-FLV ingestion
// and playback, with optional relay, transcode, and archival pipelines.
// It handles configuration loading, server startup, and graceful shutdown.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/urfave/cli"

	"mediaflow/internal/config"
	"mediaflow/internal/server"
)

func main() {
	configFlag := cli.StringFlag{
		Name:  "config, c",
		Value: "configs/mediaflow.example.yaml",
		Usage: "path to configuration file",
	}

	app := cli.NewApp()
	app.Name = "mediaflow"
	app.Usage = "RTMP/FLV media server with relay, transcode, and archival pipelines"
	app.Flags = []cli.Flag{configFlag}
	app.Action = runServe
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "start the server (default command)",
			Flags:  []cli.Flag{configFlag},
			Action: runServe,
		},
		{
			Name:  "pipeline",
			Usage: "inspect pipeline configuration without starting the server",
			Subcommands: []cli.Command{
				{
					Name:   "validate",
					Usage:  "load and validate the configured relay/transcode/record pipelines",
					Flags:  []cli.Flag{configFlag},
					Action: runPipelineValidate,
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// runServe loads configuration, starts the server, and blocks until a
// termination signal triggers graceful shutdown.
func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	srv := server.New(cfg)
	shutdownHandler := server.NewShutdownHandler(srv, context.Background())

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
	}()

	if err := shutdownHandler.Wait(); err != nil {
		log.Printf("shutdown error: %v", err)
		os.Exit(1)
	}

	log.Println("server shut down cleanly")
	return nil
}

// runPipelineValidate loads configuration and reports pipeline counts
// without binding any listeners, for CI/CD config checks.
func runPipelineValidate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	relays := len(cfg.Relays)
	profiles := 0
	if cfg.Transcode != nil {
		profiles = len(cfg.Transcode.Profiles)
	}
	streams := 0
	if cfg.Record != nil {
		streams = len(cfg.Record.Streams)
	}

	fmt.Printf("config OK: %d relay(s), %d transcode profile(s), %d record stream(s)\n", relays, profiles, streams)
	return nil
}
