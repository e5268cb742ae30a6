package mobilenetv2

import (
	"errors"
	"fmt"
)

// ErrUnknownVariant is returned by LookupVariant for an unregistered name.
var ErrUnknownVariant = errors.New("unknown variant")

// Variant is a named width configuration with published weights.
type Variant struct {
	Name  string
	Width float64
}

// Named variants at 224x224.
var (
	W1   = Variant{Name: "mobilenetv2_w1", Width: 1.0}
	W3d4 = Variant{Name: "mobilenetv2_w3d4", Width: 0.75}
	Wd2  = Variant{Name: "mobilenetv2_wd2", Width: 0.5}
	Wd4  = Variant{Name: "mobilenetv2_wd4", Width: 0.25}
)

// Variants returns the named variants from widest to narrowest.
func Variants() []Variant {
	return []Variant{W1, W3d4, Wd2, Wd4}
}

// LookupVariant returns the variant registered under name.
func LookupVariant(name string) (Variant, error) {
	for _, v := range Variants() {
		if v.Name == name {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}
