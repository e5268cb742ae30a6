package nn

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// Sequential chains named modules. Each module's output becomes the next
// module's input; state dict keys are prefixed with the module name.
//
// Example:
//
//	stage := nn.NewSequential[Backend]()
//	stage.Add("unit1", unit1)
//	stage.Add("unit2", unit2)
//	stage.StateDict() // "unit1.conv1.conv.weight", ...
type Sequential[B tensor.Backend] struct {
	names   []string
	modules []Module[B]
}

// NewSequential creates an empty container.
func NewSequential[B tensor.Backend]() *Sequential[B] {
	return &Sequential[B]{}
}

// Add appends a module under name. Panics on duplicate names.
func (s *Sequential[B]) Add(name string, module Module[B]) {
	for _, n := range s.names {
		if n == name {
			panic(fmt.Sprintf("sequential: duplicate module name %q", name))
		}
	}
	s.names = append(s.names, name)
	s.modules = append(s.modules, module)
}

// Forward applies all modules in order.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns the parameters of every module in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// StateDict returns every module's state under "name.".
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, module := range s.modules {
		PrefixState(stateDict, s.names[i], module.StateDict())
	}
	return stateDict
}

// LoadStateDict loads each module from the entries under its name.
func (s *Sequential[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, module := range s.modules {
		if err := module.LoadStateDict(SubState(stateDict, s.names[i])); err != nil {
			return fmt.Errorf("%s: %w", s.names[i], err)
		}
	}
	return nil
}

// SetTraining propagates the mode to every module that supports it.
func (s *Sequential[B]) SetTraining(training bool) {
	for _, module := range s.modules {
		SetTraining(module, training)
	}
}

// Len returns the number of modules.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at index. Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("sequential: index out of bounds")
	}
	return s.modules[index]
}

// Name returns the name of the module at index.
func (s *Sequential[B]) Name(index int) string {
	return s.names[index]
}
