package module

import (
	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/internal/tensor"
)

// ValidParam projects a parameter on an autodiff backend onto the inner backend.
// The result shares storage and ID but carries no gradient state.
func ValidParam[I tensor.Backend](p *Param[*autodiff.AutodiffBackend[I]]) *Param[I] {
	if p == nil {
		return nil
	}
	v := p.Val()
	return ParamFrom(p.ID(), tensor.New[float32](v.Raw(), v.Backend().Inner()))
}
