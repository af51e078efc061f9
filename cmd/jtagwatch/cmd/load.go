package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/jtagwatch/internal/config"
	"github.com/OpenTraceLab/jtagwatch/pkg/bsdl"
	"github.com/OpenTraceLab/jtagwatch/pkg/idcode/deviceinfo"
	"github.com/OpenTraceLab/jtagwatch/pkg/jtag"
	"github.com/OpenTraceLab/jtagwatch/pkg/resolve"
	"github.com/OpenTraceLab/jtagwatch/pkg/scan"
	"github.com/OpenTraceLab/jtagwatch/pkg/xdc"
)

// descriptorFlags are shared by monitor and resolve.
type descriptorFlags struct {
	xdc         string
	bsdl        string
	sensitivity string
	capacity    int
}

func (f *descriptorFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.xdc, "xdc", "x", "", "Vivado XDC constraints file")
	fs.StringVarP(&f.bsdl, "bsdl", "b", "", "BSDL file of the part")
	fs.StringVarP(&f.sensitivity, "sensitivity", "s", "",
		"only report these signals after the first capture (comma separated)")
	fs.IntVar(&f.capacity, "capacity", bsdl.DefaultCapacity, "boundary register capacity in bits")
}

// apply copies the flags the user set over cfg.
func (f *descriptorFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("xdc") {
		cfg.XDC = f.xdc
	}
	if fs.Changed("bsdl") {
		cfg.BSDL = f.bsdl
	}
	if fs.Changed("sensitivity") {
		s := f.sensitivity
		cfg.Sensitivity = &s
	}
	if fs.Changed("capacity") {
		cfg.Capacity = f.capacity
	}
}

// descriptors is the load phase output. table is nil in raw dump mode.
type descriptors struct {
	layout *bsdl.Layout
	pins   *xdc.PinMap
	table  *resolve.Table
}

// loadDescriptors parses both files and builds the resolver table. A missing
// path degrades the session; an unreadable one is an error.
func loadDescriptors(cfg *config.Config, logger *zap.Logger) (*descriptors, error) {
	d := &descriptors{pins: &xdc.PinMap{}}

	if cfg.XDC == "" {
		logger.Warn("no XDC file given, every signal resolves to " + resolve.Unknown)
	} else {
		pins, err := xdc.ParseFile(cfg.XDC)
		if err != nil {
			return nil, err
		}
		logger.Info("pin map loaded", zap.String("file", cfg.XDC), zap.Int("mappings", pins.Len()))
		d.pins = pins
	}

	if cfg.BSDL == "" {
		logger.Warn("no BSDL file given, dumping raw captures")
		return d, nil
	}
	parser := bsdl.NewLayoutParser(logger)
	parser.Capacity = cfg.Capacity
	layout, err := parser.ParseFile(cfg.BSDL)
	if err != nil {
		return nil, err
	}
	d.layout = layout
	if !layout.HasHeader {
		logger.Warn("BSDL file declares no BOUNDARY_LENGTH, dumping raw captures", zap.String("file", cfg.BSDL))
		return d, nil
	}

	d.table = resolve.Build(layout, d.pins, resolve.Options{
		Sensitivity: cfg.Sensitivity,
		Logger:      logger,
	})
	return d, nil
}

// tapInstructions are the opcodes a session shifts. set is nil when the BSDL
// file could not supply them.
type tapInstructions struct {
	irLength int
	sample   uint32
	idcode   uint32
	set      *bsdl.InstructionSet
}

// resolveInstructions reads INSTRUCTION_LENGTH and the SAMPLE opcode from the
// BSDL file, falling back to the configured instruction. forced skips the
// file.
func resolveInstructions(cfg *config.Config, forced bool, logger *zap.Logger) (tapInstructions, error) {
	configured := func() (tapInstructions, error) {
		op, err := cfg.Opcode()
		if err != nil {
			return tapInstructions{}, err
		}
		ins := tapInstructions{irLength: cfg.IRLength, sample: op}
		ins.idcode, _ = bsdl.DefaultInstructionSet().Opcode("IDCODE")
		return ins, nil
	}

	if forced || cfg.BSDL == "" {
		return configured()
	}

	set, err := bsdl.ReadInstructionSet(cfg.BSDL)
	if err == nil && set.Length > 0 {
		var sample uint32
		if sample, err = set.Opcode("SAMPLE"); err == nil {
			ins := tapInstructions{irLength: set.Length, sample: sample, set: set}
			ins.idcode, _ = set.Opcode("IDCODE")
			logger.Info("instruction register read from BSDL",
				zap.String("entity", set.Entity),
				zap.Int("ir_length", set.Length),
				zap.String("sample", fmt.Sprintf("%0*b", set.Length, sample)))
			return ins, nil
		}
	}
	if err == nil {
		err = fmt.Errorf("bsdl: %s declares no INSTRUCTION_LENGTH", cfg.BSDL)
	}
	logger.Warn("falling back to the configured SAMPLE instruction",
		zap.Error(err),
		zap.String("instruction", cfg.Instruction),
		zap.Int("ir_length", cfg.IRLength))
	return configured()
}

// openAdapter returns the configured adapter and a function releasing it.
func openAdapter(cfg *config.Config, d *descriptors, ins tapInstructions, logger *zap.Logger) (jtag.Adapter, func(), error) {
	switch cfg.Adapter {
	case config.AdapterSim:
		opts := scan.SimOptions{
			IDCode:       cfg.Sim.IDCode,
			IRLength:     ins.irLength,
			SampleOpcode: ins.sample,
			IDCodeOpcode: ins.idcode,
		}
		if d.layout != nil {
			opts.BoundaryLength = min(d.layout.BoundaryLength, d.layout.Capacity())
			opts.Inputs = scan.InputCells(d.layout)
		}
		target := scan.NewSimTarget(opts)
		logger.Info("using simulated target",
			zap.Int("boundary_length", opts.BoundaryLength),
			zap.Int("inputs", len(opts.Inputs)))
		return target.Adapter(), func() {}, nil

	case config.AdapterCMSISDAP:
		a, err := jtag.OpenCMSISDAP(cfg.USB.VendorID, cfg.USB.ProductID, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open CMSIS-DAP probe: %w", err)
		}
		return a, func() {
			if err := a.Close(); err != nil {
				logger.Warn("closing probe failed", zap.Error(err))
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown adapter %q: %w", cfg.Adapter, jtag.ErrNotImplemented)
	}
}

// identify reads and logs the IDCODE, cross-checking it against the BSDL
// file and the device database.
func identify(t scan.Transport, ins tapInstructions, logger *zap.Logger) (deviceinfo.DeviceInfo, error) {
	raw, err := scan.ReadIDCode(t)
	if err != nil {
		return deviceinfo.DeviceInfo{}, fmt.Errorf("read IDCODE: %w", err)
	}
	dev := deviceinfo.Lookup(raw)
	if !dev.IDCode.Valid {
		logger.Warn("no IDCODE register, the part may default to BYPASS", zap.String("idcode", fmt.Sprintf("0x%08X", raw)))
		return dev, nil
	}

	logger.Info("device identified",
		zap.String("idcode", fmt.Sprintf("0x%08X", raw)),
		zap.String("device", dev.Name),
		zap.String("family", dev.Family),
		zap.String("manufacturer", dev.Manufacturer.Name),
		zap.Uint16("part", dev.IDCode.PartNumber),
		zap.Uint8("version", dev.IDCode.Version))

	if match, ok := ins.set.MatchIDCode(raw); ok && !match {
		logger.Warn("IDCODE does not match the BSDL file",
			zap.String("entity", ins.set.Entity),
			zap.String("pattern", ins.set.IDCode))
	}
	if dev.Known && dev.IRLength != 0 && dev.IRLength != ins.irLength {
		logger.Warn("instruction length differs from the identified device",
			zap.Int("ir_length", ins.irLength),
			zap.Int("device_ir_length", dev.IRLength))
	}
	return dev, nil
}
