package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/born-ml/born/tensor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/mobilenet/internal/mobilenetv2"
	"github.com/born-ml/mobilenet/internal/preprocess"
)

var errDeviceUnavailable = errors.New("device unavailable")

type predictOptions struct {
	variant    string
	pretrained bool
	weights    string
	labels     string
	top        int
	inSize     int
	classes    int
	device     string
}

// classifyRequest is everything a backend needs to score a batch.
type classifyRequest struct {
	variant string
	inSize  int
	classes int
	weights string
	fetcher mobilenetv2.Fetcher // nil for random weights
	batch   []float32
	images  int
	logger  *zap.Logger
}

func newPredictCmd(a *app) *cobra.Command {
	var opts predictOptions
	cmd := &cobra.Command{
		Use:   "predict <image>...",
		Short: "Classify images",
		Long: `Classifies JPEG, PNG, BMP, TIFF or WebP images. Images are resized so the
shorter side is 256/224 of the input size, center cropped and normalized
with the ImageNet statistics.

Example:
  mobilenet predict cat.jpg dog.png --variant mobilenetv2_w1 --pretrained --labels imagenet.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPredict(cmd, args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.variant, "variant", mobilenetv2.W1.Name, "variant name")
	cmd.Flags().BoolVar(&opts.pretrained, "pretrained", false, "fetch pretrained weights from the model store")
	cmd.Flags().StringVar(&opts.weights, "weights", "", "SafeTensors weight file")
	cmd.Flags().StringVar(&opts.labels, "labels", "", "class labels, one per line")
	cmd.Flags().IntVarP(&opts.top, "top", "k", 5, "predictions per image")
	cmd.Flags().IntVar(&opts.inSize, "in-size", 224, "input height and width")
	cmd.Flags().IntVar(&opts.classes, "classes", 1000, "output classes")
	cmd.Flags().StringVar(&opts.device, "device", "", "cpu or webgpu (default from config)")
	return cmd
}

func (a *app) runPredict(cmd *cobra.Command, paths []string, opts predictOptions) error {
	if opts.pretrained && opts.weights != "" {
		return errors.New("--pretrained and --weights are mutually exclusive")
	}

	images := make([]image.Image, len(paths))
	for i, p := range paths {
		img, err := preprocess.Open(p)
		if err != nil {
			return err
		}
		images[i] = img
	}
	batch, err := preprocess.Batch(images, preprocess.DefaultOptions(opts.inSize, opts.inSize))
	if err != nil {
		return err
	}

	var labels []string
	if opts.labels != "" {
		if labels, err = preprocess.LoadLabels(opts.labels); err != nil {
			return err
		}
	}

	req := classifyRequest{
		variant: opts.variant,
		inSize:  opts.inSize,
		classes: opts.classes,
		weights: opts.weights,
		batch:   batch,
		images:  len(images),
		logger:  a.logger,
	}
	if opts.pretrained {
		store, err := a.store()
		if err != nil {
			return err
		}
		req.fetcher = store
	}
	if !opts.pretrained && opts.weights == "" {
		a.logger.Warn("No weights given, predictions come from random initialization")
	}

	runtime := a.cfg.Runtime
	if opts.device != "" {
		runtime.Device = opts.device
	}
	logits, err := classifyOn(cmd.Context(), runtime, req)
	if err != nil {
		return err
	}

	for i, p := range paths {
		printPredictions(cmd.OutOrStdout(), p, preprocess.TopK(logits[i], opts.top, labels))
	}
	return nil
}

// classify builds the model on backend and returns the logits per image.
func classify[B tensor.Backend](ctx context.Context, backend B, req classifyRequest) ([][]float32, error) {
	opts := []mobilenetv2.GetOption{
		mobilenetv2.WithOptions(
			mobilenetv2.WithInSize(req.inSize, req.inSize),
			mobilenetv2.WithClasses(req.classes),
		),
	}
	if req.fetcher != nil {
		opts = append(opts, mobilenetv2.Pretrained(req.fetcher))
	}
	model, err := mobilenetv2.GetVariant(ctx, req.variant, backend, opts...)
	if err != nil {
		return nil, err
	}
	if req.weights != "" {
		if err := model.LoadFile(req.weights); err != nil {
			return nil, err
		}
	}
	model.SetTraining(false)
	req.logger.Debug("Model ready",
		zap.String("variant", req.variant),
		zap.String("backend", backend.Name()),
		zap.String("weights", model.FilePath()),
		zap.Int("params", model.NumParameters()))

	x, err := tensor.FromSlice(req.batch, tensor.Shape{req.images, 3, req.inSize, req.inSize}, backend)
	if err != nil {
		return nil, err
	}
	data := model.Forward(x).Data()

	logits := make([][]float32, req.images)
	for i := range logits {
		logits[i] = data[i*req.classes : (i+1)*req.classes]
	}
	return logits, nil
}

func printPredictions(w io.Writer, path string, preds []preprocess.Prediction) {
	fmt.Fprintln(w, path)
	for i, p := range preds {
		label := p.Label
		if label == "" {
			label = fmt.Sprintf("class %d", p.Class)
		}
		fmt.Fprintf(w, "  %d. %-32s %6.2f%%  (%d)\n", i+1, label, p.Probability*100, p.Class)
	}
}
