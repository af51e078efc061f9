package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/jtagwatch/internal/timeutil"
	"github.com/OpenTraceLab/jtagwatch/pkg/monitor"
	"github.com/OpenTraceLab/jtagwatch/pkg/scan"
)

type monitorFlags struct {
	descriptorFlags
	adapter     string
	speed       int
	interval    time.Duration
	instruction string
	irLength    int
	resets      int
}

func newMonitorCmd(g *globalOptions) *cobra.Command {
	f := &monitorFlags{}
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print boundary-scan signal changes until interrupted",
		Long: `Load the pin map and boundary register layout, identify the device, then
capture the boundary register with SAMPLE in a loop and print every input
signal that changed. The first capture reports every visible input.

Without a BSDL file (or one lacking BOUNDARY_LENGTH) each capture is printed
as a hex dump instead.

Examples:
  jtagwatch monitor --xdc top.xdc --bsdl xc7a35t_csg324.bsd --sensitivity "btn, sw"
  jtagwatch monitor --adapter cmsisdap --speed 2000000 --xdc top.xdc --bsdl part.bsd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, g, f)
		},
	}

	f.register(cmd)
	fs := cmd.Flags()
	fs.StringVarP(&f.adapter, "adapter", "a", "sim", "JTAG adapter (sim, cmsisdap)")
	fs.IntVar(&f.speed, "speed", 1_000_000, "TCK frequency in Hz")
	fs.DurationVar(&f.interval, "interval", 100*time.Millisecond, "pause between captures")
	fs.StringVar(&f.instruction, "instruction", "", "SAMPLE opcode, MSB first (overrides the BSDL file)")
	fs.IntVar(&f.irLength, "ir-length", 0, "instruction register length for --instruction")
	fs.IntVar(&f.resets, "reset-pulses", 5, "TMS-high clocks before each capture")
	return cmd
}

func runMonitor(cmd *cobra.Command, g *globalOptions, f *monitorFlags) error {
	cfg := g.cfg
	f.apply(cmd, cfg)
	fs := cmd.Flags()
	if fs.Changed("adapter") {
		cfg.Adapter = f.adapter
	}
	if fs.Changed("speed") {
		cfg.Speed = f.speed
	}
	if fs.Changed("interval") {
		cfg.Interval = f.interval
	}
	if fs.Changed("reset-pulses") {
		cfg.ResetPulses = f.resets
	}
	forced := fs.Changed("instruction")
	if forced {
		cfg.Instruction = f.instruction
		if fs.Changed("ir-length") {
			cfg.IRLength = f.irLength
		} else {
			cfg.IRLength = len(f.instruction)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := g.logger.With(zap.String("session", uuid.NewString()))

	d, err := loadDescriptors(cfg, logger)
	if err != nil {
		return err
	}
	ins, err := resolveInstructions(cfg, forced, logger)
	if err != nil {
		return err
	}

	adapter, release, err := openAdapter(cfg, d, ins, logger)
	if err != nil {
		return err
	}
	defer release()

	if err := adapter.SetSpeed(cfg.Speed); err != nil {
		return fmt.Errorf("set TCK frequency: %w", err)
	}
	if info, err := adapter.Info(); err == nil {
		logger.Info("adapter ready",
			zap.String("name", info.Name),
			zap.String("vendor", info.Vendor),
			zap.String("model", info.Model),
			zap.String("serial", info.SerialNumber),
			zap.Int("speed_hz", cfg.Speed))
	}

	port := scan.NewPort(adapter)
	if _, err := identify(port, ins, logger); err != nil {
		return err
	}

	sampler := &scan.Sampler{
		Transport:   port,
		Instruction: ins.sample,
		IRLength:    ins.irLength,
		Capacity:    cfg.Capacity,
		ResetPulses: cfg.ResetPulses,
	}
	mon := monitor.New(sampler, monitor.Options{
		Table:    d.table,
		Capacity: cfg.Capacity,
		Interval: cfg.Interval,
		Output:   cmd.OutOrStdout(),
		Clock:    timeutil.RealClock{},
		Logger:   logger,
	})

	err = mon.Run(cmd.Context())
	if ctxErr := cmd.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return nil
	}
	return err
}
