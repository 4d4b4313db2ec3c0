// Command diagview serves motor diagnostics telemetry on display surfaces
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Version is set at build time via -ldflags "-X main.Version=vX.Y.Z"
var Version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:           "diagview",
	Short:         "Motor diagnostics telemetry on dashboard, MQTT and terminal surfaces",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "configuration file")
	rootCmd.AddCommand(serveCmd, layoutCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger writes to stdout and, when path is set, to a rotated log file.
// The standard logger is redirected to the same writer.
func newLogger(path string) (*log.Logger, func() error) {
	var out io.Writer = os.Stdout
	closer := func() error { return nil }

	if path != "" {
		rotated := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotated)
		closer = rotated.Close
	}

	log.SetOutput(out)
	return log.New(out, "", log.LstdFlags), closer
}
