package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "airboard",
	Short: "Draw in the air in front of your webcam",
	Long: `Airboard tracks your hand through the webcam. Pinch index fingertip and
thumb tip together to draw, spread them to hover.

Keys: c clear, d toggle drawing, 1-4 pen color, +/- thickness, q or Esc quit.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBoard,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "airboard: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	registerFlags(rootCmd)
}

func registerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("config", "", "Config file (default ~/.airboard/config.yaml if present)")
	f.Int("camera", 0, "Camera device index")
	f.Int("fps", 0, "Capture and tick rate")
	f.Int("width", 0, "Requested frame width")
	f.Int("height", 0, "Requested frame height")
	f.String("listen", "", "Serve the preview and control API on this address, e.g. 127.0.0.1:8090")
	f.Bool("headless", false, "Run without a window (needs --listen)")
	f.Bool("no-tray", false, "Do not show the system tray menu")
	f.String("db", "", "Settings database path")
	f.String("log-level", "", "Log level: debug, info, warn, error")
}
