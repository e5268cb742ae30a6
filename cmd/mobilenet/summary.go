package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
	"github.com/born-ml/mobilenet/internal/mobilenetv2"
)

type summaryOptions struct {
	width      float64
	inSize     int
	inChannels int
	classes    int
}

func newSummaryCmd(a *app) *cobra.Command {
	var opts summaryOptions
	cmd := &cobra.Command{
		Use:   "summary [variant]",
		Short: "Print the layers of a network",
		Long: `Prints every layer with its channels, stride, output size and parameter
count. Pass a variant name, or --width for an arbitrary width scale.

Example:
  mobilenet summary mobilenetv2_wd2 --in-size 96`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				v, err := mobilenetv2.LookupVariant(args[0])
				if err != nil {
					return err
				}
				opts.width = v.Width
			}
			return a.runSummary(cmd, opts)
		},
	}
	cmd.Flags().Float64Var(&opts.width, "width", 1.0, "width scale")
	cmd.Flags().IntVar(&opts.inSize, "in-size", 224, "input height and width")
	cmd.Flags().IntVar(&opts.inChannels, "in-channels", 3, "input channels")
	cmd.Flags().IntVar(&opts.classes, "classes", 1000, "output classes")
	return cmd
}

func (a *app) runSummary(cmd *cobra.Command, opts summaryOptions) error {
	cfg, err := mobilenetv2.NewConfig(opts.width,
		mobilenetv2.WithInSize(opts.inSize, opts.inSize),
		mobilenetv2.WithInChannels(opts.inChannels),
		mobilenetv2.WithClasses(opts.classes),
	)
	if err != nil {
		return err
	}
	model := mobilenetv2.New(cfg, cpu.New())

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LAYER\tKIND\tIN\tMID\tOUT\tSTRIDE\tSIZE\tRESIDUAL\tPARAMS")
	for _, l := range model.Layers() {
		mid, residual := "-", "-"
		if l.MidChannels > 0 {
			mid = fmt.Sprint(l.MidChannels)
		}
		if l.Residual {
			residual = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%d\t%dx%d\t%s\t%d\n",
			l.Name, l.Kind, l.InChannels, mid, l.OutChannels, l.Stride, l.OutputSize, l.OutputSize, residual, l.Parameters)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\ntrainable parameters: %d\n", model.NumParameters())
	return nil
}
