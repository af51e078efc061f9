package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/jtagwatch/pkg/resolve"
)

func newResolveCmd(g *globalOptions) *cobra.Command {
	f := &descriptorFlags{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the boundary register bit table",
		Long: `Resolve every boundary register position to its cell, package pin and design
signal without touching hardware. Flags show which bits the monitor reports
(show) and which it skips after the first capture (ignore).

Examples:
  jtagwatch resolve --xdc top.xdc --bsdl xc7a35t_csg324.bsd
  jtagwatch resolve --xdc top.xdc --bsdl xc7a35t_csg324.bsd --sensitivity CLK`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, g, f)
		},
	}
	f.register(cmd)
	return cmd
}

func runResolve(cmd *cobra.Command, g *globalOptions, f *descriptorFlags) error {
	cfg := g.cfg
	f.apply(cmd, cfg)
	if cfg.BSDL == "" {
		return fmt.Errorf("resolve: --bsdl is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	d, err := loadDescriptors(cfg, g.logger)
	if err != nil {
		return err
	}
	if d.table == nil {
		return fmt.Errorf("resolve: %s declares no BOUNDARY_LENGTH", cfg.BSDL)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Part: %s\n", d.layout.PartName)
	fmt.Fprintf(out, "Boundary Length: %d bits\n", d.table.Len())
	if d.table.Sensitive {
		fmt.Fprintf(out, "Sensitivity: %q\n", d.table.Sensitivity)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%6s  %-28s %-8s %-24s %s\n", "BIT", "CELL", "PIN", "SIGNAL", "FLAGS")
	for _, rb := range d.table.Bits {
		fmt.Fprintf(out, "%6d  %-28s %-8s %-24s %s\n", rb.Index, rb.Name(), rb.Pin(), rb.Signal, flags(rb))
	}
	return nil
}

func flags(rb resolve.ResolvedBit) string {
	var f []string
	if rb.Bit != nil {
		f = append(f, rb.Bit.Type)
	}
	if rb.Show {
		f = append(f, "show")
	}
	if rb.Ignore {
		f = append(f, "ignore")
	}
	return strings.Join(f, ",")
}
