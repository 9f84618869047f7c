package module

import "github.com/born-ml/convkit/internal/tensor"

// Kind classifies a field during traversal.
type Kind string

// Field kinds reported to visitors and mappers.
const (
	KindParam    Kind = "param"
	KindConstant Kind = "constant"
	KindIgnored  Kind = "ignored"
	KindModule   Kind = "module"
)

// Visitor observes a module's fields in declaration order.
// Every field is bracketed by EnterModule and ExitModule;
// VisitFloat is called once per parameter tensor in between.
type Visitor[B tensor.Backend] interface {
	EnterModule(name string, kind Kind)
	VisitFloat(id ParamID, t *tensor.Tensor[float32, B])
	ExitModule(name string, kind Kind)
}

// Mapper is a Visitor that may replace parameter tensors.
type Mapper[B tensor.Backend] interface {
	EnterModule(name string, kind Kind)
	MapFloat(id ParamID, t *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	ExitModule(name string, kind Kind)
}

// Module is implemented by every layer over backend B.
// Transformations that return a new layer (Map, ToDevice, Fork, LoadRecord)
// are methods on the concrete layer types.
type Module[B tensor.Backend] interface {
	Visit(v Visitor[B])
	NumParams() int
	CollectDevices(devices Devices) Devices
}

// VisitParam visits an optional parameter field. Absent parameters are skipped.
func VisitParam[B tensor.Backend](v Visitor[B], name string, p *Param[B]) {
	if p == nil {
		return
	}
	v.EnterModule(name, KindParam)
	v.VisitFloat(p.ID(), p.Val())
	v.ExitModule(name, KindParam)
}

// VisitConstant reports a hyperparameter field that holds no tensors.
func VisitConstant[B tensor.Backend](v Visitor[B], name string) {
	v.EnterModule(name, KindConstant)
	v.ExitModule(name, KindConstant)
}

// VisitIgnored reports an Ignored field.
func VisitIgnored[B tensor.Backend](v Visitor[B], name string) {
	v.EnterModule(name, KindIgnored)
	v.ExitModule(name, KindIgnored)
}

// MapParam maps an optional parameter field. Absent parameters stay absent.
func MapParam[B tensor.Backend](m Mapper[B], name string, p *Param[B]) *Param[B] {
	if p == nil {
		return nil
	}
	m.EnterModule(name, KindParam)
	mapped := p.Map(m.MapFloat)
	m.ExitModule(name, KindParam)
	return mapped
}

// MapConstant reports a hyperparameter field to a mapper.
func MapConstant[B tensor.Backend](m Mapper[B], name string) {
	m.EnterModule(name, KindConstant)
	m.ExitModule(name, KindConstant)
}

// MapIgnored reports an Ignored field to a mapper.
func MapIgnored[B tensor.Backend](m Mapper[B], name string) {
	m.EnterModule(name, KindIgnored)
	m.ExitModule(name, KindIgnored)
}

// MapperFunc adapts a function to a Mapper that ignores field boundaries.
type MapperFunc[B tensor.Backend] func(id ParamID, t *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

// EnterModule implements Mapper.
func (MapperFunc[B]) EnterModule(string, Kind) {}

// ExitModule implements Mapper.
func (MapperFunc[B]) ExitModule(string, Kind) {}

// MapFloat implements Mapper.
func (f MapperFunc[B]) MapFloat(id ParamID, t *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return f(id, t)
}
