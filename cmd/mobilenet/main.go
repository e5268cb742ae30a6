// Command mobilenet builds, inspects, exports and runs MobileNetV2 models.
//
// Usage:
//
//	mobilenet variants
//	mobilenet summary mobilenetv2_wd2 --in-size 96
//	mobilenet fetch --all
//	mobilenet predict cat.jpg --variant mobilenetv2_w1 --pretrained
//	mobilenet export mobilenetv2_w1 --from keras.safetensors -o w1.safetensors
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/mobilenet/internal/config"
	"github.com/born-ml/mobilenet/internal/logging"
	"github.com/born-ml/mobilenet/internal/modelstore"
)

// Version information.
const (
	Version   = "0.1.0"
	BuildDate = "2025-12-01"
)

// app carries state shared by the subcommands.
type app struct {
	configPath string
	verbose    bool
	workers    int

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "mobilenet",
		Short: "MobileNetV2 image classification on Born",
		Long: `mobilenet builds MobileNetV2 networks on the Born ML framework.

It lists the named width variants, prints layer summaries, fetches and
verifies pretrained weights, converts TensorFlow or PyTorch exports to the
canonical SafeTensors layout and classifies images.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().IntVar(&a.workers, "workers", 0, "CPU kernel goroutines (0 uses the config value)")

	root.AddCommand(
		newVersionCmd(),
		newVariantsCmd(a),
		newSummaryCmd(a),
		newExportCmd(a),
		newFetchCmd(a),
		newPredictCmd(a),
	)
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Runtime.Workers = a.workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger.With(zap.String("cmd", cmd.Name()))
	a.logger.Debug("Loaded config", zap.String("path", a.configPath), zap.String("device", cfg.Runtime.Device))
	return nil
}

// store opens the configured weight store.
func (a *app) store() (*modelstore.Store, error) {
	manifest, err := a.cfg.LoadManifest()
	if err != nil {
		return nil, err
	}
	timeout, err := a.cfg.ModelsTimeout()
	if err != nil {
		return nil, err
	}
	return modelstore.New(manifest,
		modelstore.WithRoot(a.cfg.Models.Root),
		modelstore.WithBaseURL(a.cfg.Models.BaseURL),
		modelstore.WithHTTPClient(&http.Client{Timeout: timeout}),
		modelstore.WithLogger(a.logger),
	), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mobilenet v%s (built %s)\n", Version, BuildDate)
		},
	}
}
