// Package main provides the dev-server command.
package main

import (
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/reportdash/reportctl/internal/config"
	"github.com/reportdash/reportctl/internal/devserver"
	"github.com/reportdash/reportctl/internal/ui"
)

var (
	devServerAddr       string
	devServerFrames     int
	devServerFrameDelay time.Duration
	devServerSeed       int
)

func init() {
	devServerCmd.Flags().StringVar(&devServerAddr, "addr", net.JoinHostPort("127.0.0.1", config.DefaultBackendPort), "Listen address")
	devServerCmd.Flags().IntVar(&devServerFrames, "frames", 3, "Progress frames per generation")
	devServerCmd.Flags().DurationVar(&devServerFrameDelay, "frame-delay", 700*time.Millisecond, "Delay before each progress frame")
	devServerCmd.Flags().IntVar(&devServerSeed, "seed", 2, "Number of demo reports to create at startup")
}

// demoPrompts seed the development backend.
var demoPrompts = []string{
	"Signups per day over the last month",
	"Top events by count",
	"Purchases by country",
}

// devServerCmd runs the in-memory development backend.
var devServerCmd = &cobra.Command{
	Use:   "dev-server",
	Short: "Run a local backend for development",
	Long: `Run an in-memory backend that serves the report API and generation
stream. Point reportctl at it with --dev or base_url.

Examples:
  reportctl dev-server
  reportctl dev-server --addr 127.0.0.1:9000 --frame-delay 2s`,
	Args: cobra.NoArgs,
	RunE: runDevServer,
}

func runDevServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	if debug, _ := cmd.Flags().GetBool("debug"); !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := devserver.New(devserver.Options{
		Frames:     devServerFrames,
		FrameDelay: devServerFrameDelay,
		Logger:     log.Default(),
	})

	base := "http://" + devServerAddr
	for i := 0; i < devServerSeed; i++ {
		prompt := demoPrompts[i%len(demoPrompts)]
		id := srv.Seed(devserver.Report{Prompt: prompt})
		ui.PrintInfo("Seeded %s  %s", id, prompt)
	}
	ui.Println()
	ui.PrintKeyValue("API:", base+"/api/dynamic-queries")
	ui.PrintKeyValue("Metrics:", base+"/metrics")
	ui.Println()
	ui.PrintDim("Use it with: REPORTCTL_BASE_URL=%s reportctl watch <id>", base)

	if err := srv.Run(ctx, devServerAddr); err != nil {
		return fmt.Errorf("development backend failed: %w", err)
	}
	return nil
}
