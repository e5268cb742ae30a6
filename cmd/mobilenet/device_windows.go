//go:build windows

package main

import (
	"context"
	"fmt"

	"github.com/born-ml/born/backend/webgpu"
	"go.uber.org/zap"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
	"github.com/born-ml/mobilenet/internal/config"
	"github.com/born-ml/mobilenet/internal/parallel"
)

// classifyOn runs req on the configured device.
func classifyOn(ctx context.Context, rt config.RuntimeConfig, req classifyRequest) ([][]float32, error) {
	switch rt.Device {
	case config.DeviceCPU:
		return classify(ctx, cpu.NewWithConfig(parallel.WithWorkers(rt.Workers)), req)
	case config.DeviceWebGPU:
		if !webgpu.IsAvailable() {
			return nil, fmt.Errorf("%w: no WebGPU adapter (is wgpu-native installed?)", errDeviceUnavailable)
		}
		gpu, err := webgpu.New()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errDeviceUnavailable, err)
		}
		defer gpu.Release()

		req.logger.Info("Using WebGPU", zap.String("backend", gpu.Name()))
		return classify(ctx, gpu, req)
	}
	return nil, fmt.Errorf("%w: %q", errDeviceUnavailable, rt.Device)
}
