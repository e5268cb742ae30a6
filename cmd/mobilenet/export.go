package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
	"github.com/born-ml/mobilenet/internal/checkpoint"
	"github.com/born-ml/mobilenet/internal/mobilenetv2"
	"github.com/born-ml/mobilenet/internal/modelstore"
)

type exportOptions struct {
	output   string
	from     string
	manifest string
	release  string
	errorTag string
}

func newExportCmd(a *app) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export <variant>",
		Short: "Write a variant's weights as canonical SafeTensors",
		Long: `Writes the weights of a variant in the canonical layout. With --from the
weights are read from a SafeTensors export in TensorFlow, PyTorch or the
canonical naming and converted; otherwise they are freshly initialized.

With --manifest the file is recorded in a model store manifest, ready to be
uploaded as a release asset.

Example:
  mobilenet export mobilenetv2_w1 --from keras.safetensors -o w1.safetensors \
    --manifest models.yaml --release v0.1.0 --error 0.2875`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExport(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default <variant>.safetensors)")
	cmd.Flags().StringVar(&opts.from, "from", "", "SafeTensors file to convert")
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "manifest to add the exported file to")
	cmd.Flags().StringVar(&opts.release, "release", "", "release tag for the manifest entry")
	cmd.Flags().StringVar(&opts.errorTag, "error", "", "top-1 error for the manifest entry")
	return cmd
}

func (a *app) runExport(cmd *cobra.Command, name string, opts exportOptions) error {
	v, err := mobilenetv2.LookupVariant(name)
	if err != nil {
		return err
	}
	if opts.output == "" {
		opts.output = v.Name + ".safetensors"
	}

	model, err := mobilenetv2.GetVariant(cmd.Context(), v.Name, cpu.New())
	if err != nil {
		return err
	}
	if opts.from != "" {
		if err := model.LoadFile(opts.from); err != nil {
			return fmt.Errorf("converting %s: %w", opts.from, err)
		}
		a.logger.Info("Converted weights", zap.String("from", opts.from))
	}
	if err := model.Save(opts.output, v.Name); err != nil {
		return err
	}

	sum, err := checkpoint.ChecksumFile(opts.output)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, opts.output)

	if opts.manifest == "" {
		return nil
	}
	return a.addManifestEntry(opts.manifest, modelstore.Entry{
		Name:    v.Name,
		Error:   opts.errorTag,
		SHA256:  sum,
		Release: opts.release,
	})
}

// addManifestEntry records e in the manifest at path, creating the file
// when it does not exist.
func (a *app) addManifestEntry(path string, e modelstore.Entry) error {
	manifest, err := modelstore.LoadManifest(path)
	if errors.Is(err, os.ErrNotExist) {
		manifest, err = &modelstore.Manifest{}, nil
	}
	if err != nil {
		return err
	}
	if err := manifest.Add(e); err != nil {
		return err
	}
	if err := manifest.Save(path); err != nil {
		return err
	}
	a.logger.Info("Updated manifest", zap.String("path", path), zap.String("model", e.Name), zap.String("file", e.FileName()))
	return nil
}
