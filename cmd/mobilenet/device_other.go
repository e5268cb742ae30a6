//go:build !windows

package main

import (
	"context"
	"fmt"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
	"github.com/born-ml/mobilenet/internal/config"
	"github.com/born-ml/mobilenet/internal/parallel"
)

// classifyOn runs req on the configured device. WebGPU is only built on
// Windows.
func classifyOn(ctx context.Context, rt config.RuntimeConfig, req classifyRequest) ([][]float32, error) {
	switch rt.Device {
	case config.DeviceCPU:
		return classify(ctx, cpu.NewWithConfig(parallel.WithWorkers(rt.Workers)), req)
	case config.DeviceWebGPU:
		return nil, fmt.Errorf("%w: webgpu is only supported on windows", errDeviceUnavailable)
	}
	return nil, fmt.Errorf("%w: %q", errDeviceUnavailable, rt.Device)
}
