// Package checkpoint reads and writes MobileNetV2 weight files.
//
// Weights are stored as SafeTensors:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON, tensor names sorted, "__metadata__" first]
//	[tensor data: raw little-endian bytes in header order]
//
// Reading goes through Born's loader.OpenModel. Tensor names pass through a
// loader.WeightMapper so that files exported from TensorFlow
// ("features/stage1/unit1/conv1/conv/kernel:0") or PyTorch
// ("module.features.stage1.unit1.conv1.bn.num_batches_tracked") land on the
// canonical names used by the model ("features.stage1.unit1.conv1.conv.weight").
//
// Example usage:
//
//	err := checkpoint.WriteFile("w1.safetensors", model.StateDict(), map[string]string{
//	    checkpoint.MetadataModel: "mobilenetv2_w1",
//	})
//
//	f, err := checkpoint.ReadFile("w1.safetensors", backend, checkpoint.NewMapper())
//	err = model.LoadStateDict(f.Tensors)
package checkpoint
