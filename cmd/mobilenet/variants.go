package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
	"github.com/born-ml/mobilenet/internal/mobilenetv2"
)

func newVariantsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the named MobileNetV2 variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runVariants(cmd)
		},
	}
}

func (a *app) runVariants(cmd *cobra.Command) error {
	variants := mobilenetv2.Variants()
	params := make([]int, len(variants))

	// Each model is built once to count its parameters.
	var g errgroup.Group
	for i, v := range variants {
		g.Go(func() error {
			cfg, err := mobilenetv2.NewConfig(v.Width)
			if err != nil {
				return fmt.Errorf("%s: %w", v.Name, err)
			}
			params[i] = mobilenetv2.New(cfg, cpu.New()).NumParameters()
			a.logger.Debug("Built variant", zap.String("variant", v.Name), zap.Int("params", params[i]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tWIDTH\tPARAMS")
	for i, v := range variants {
		fmt.Fprintf(w, "%s\t%g\t%d\n", v.Name, v.Width, params[i])
	}
	return w.Flush()
}
