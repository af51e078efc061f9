package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/jtagwatch/internal/config"
	"github.com/OpenTraceLab/jtagwatch/internal/logging"
)

const version = "0.3.0"

// globalOptions carries the persistent flags and what PersistentPreRunE
// builds from them.
type globalOptions struct {
	configPath string
	verbose    bool
	logFormat  string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "jtagwatch",
		Short: "Watch FPGA I/O signals through the JTAG boundary-scan register",
		Long: `jtagwatch samples a device's boundary-scan register over JTAG and prints the
named signals that change between captures. Signal names come from the Vivado
XDC constraints of the design; register positions come from the part's BSDL file.

Examples:
  jtagwatch monitor --xdc top.xdc --bsdl xc7a35t_csg324.bsd          # Simulated target
  jtagwatch monitor --adapter cmsisdap --xdc top.xdc --bsdl part.bsd  # Debug probe
  jtagwatch resolve --xdc top.xdc --bsdl part.bsd --sensitivity btn   # Show bit table
  jtagwatch interfaces                                               # List probes`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.logger != nil {
				_ = g.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML configuration file")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&g.logFormat, "log-format", "", "log encoding (console, json)")

	root.AddCommand(newMonitorCmd(g), newResolveCmd(g), newInterfacesCmd())
	return root
}

// setup loads the configuration and builds the logger. Logs go to the
// command's error stream so reports on stdout stay parseable.
func (g *globalOptions) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	g.cfg = cfg

	format := cfg.LogFormat
	if cmd.Flags().Changed("log-format") {
		format = g.logFormat
	}
	logger, err := logging.New(logging.Options{
		Verbose: g.verbose,
		Format:  format,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	g.logger = logger
	return nil
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
