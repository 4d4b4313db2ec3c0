package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"diagview/internal/board"
	"diagview/internal/catalog"
	"diagview/internal/config"
	"diagview/internal/console"
	"diagview/internal/layout"
	"diagview/internal/power"
	"diagview/internal/telemetry"
)

var (
	layoutStrategy string
	layoutRows     int
	layoutTicks    int
	layoutAttrs    string
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Lay out the configured devices and print the surfaces",
	Long: `Lay out the configured devices with a strategy, run a few telemetry
ticks against the simulated robot and print every surface to the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		out, err := renderLayout(cfg, layoutStrategy, layoutRows, layoutAttrs, layoutTicks)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	layoutCmd.Flags().StringVar(&layoutStrategy, "strategy", "", "layout strategy: grid, list or flow (default from config)")
	layoutCmd.Flags().IntVar(&layoutRows, "rows", 0, "rows per page for the flow strategy (default from config)")
	layoutCmd.Flags().StringVar(&layoutAttrs, "attributes", "", "comma separated attribute kinds (default from config)")
	layoutCmd.Flags().IntVar(&layoutTicks, "ticks", 1, "telemetry ticks to run before printing")
}

// renderLayout builds the surfaces on an in-memory board and renders them
func renderLayout(cfg *config.Config, strategyName string, rows int, attrNames string, ticks int) (string, error) {
	if strategyName == "" {
		strategyName = cfg.Layout()
	}
	if rows == 0 {
		rows = cfg.RowsPerPage()
	}
	attrs := cfg.Attributes()
	if attrNames != "" {
		parsed, err := catalog.ParseKinds(attrNames)
		if err != nil {
			return "", err
		}
		attrs = parsed
	}

	strategy, err := layout.ByName(strategyName, rows)
	if err != nil {
		return "", err
	}

	robot, err := loadRobot(cfg)
	if err != nil {
		return "", err
	}

	b := board.New(nil)
	devices := robot.Devices()
	reg, err := telemetry.Setup(devices, attrs, strategy, b)
	if err != nil {
		return "", err
	}

	engine := telemetry.NewEngine(reg, nil)
	if n := cfg.PowerChannels(); n > 0 {
		panel, err := power.Provision(b, n)
		if err != nil {
			return "", err
		}
		engine.AttachPower(panel, robot.Power)
	}

	dt := cfg.TickInterval()
	for i := 0; i < ticks; i++ {
		robot.Step(dt.Seconds())
		engine.Tick(devices, attrs)
	}

	return console.Render(b.Snapshot(), b.Active()) +
		fmt.Sprintf("\n%s layout, %d devices, %d ticks of %v", strategy.Name(), len(devices), ticks, dt.Round(time.Millisecond)), nil
}
