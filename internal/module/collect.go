package module

import (
	"slices"
	"strings"

	"github.com/born-ml/convkit/internal/tensor"
)

// Devices is an ordered set of devices.
type Devices []tensor.Device

// Add appends d unless it is already present.
func (ds Devices) Add(d tensor.Device) Devices {
	if slices.Contains(ds, d) {
		return ds
	}
	return append(ds, d)
}

// ParamCounter counts scalar parameters.
type ParamCounter[B tensor.Backend] struct {
	Count int
}

// EnterModule implements Visitor.
func (c *ParamCounter[B]) EnterModule(string, Kind) {}

// ExitModule implements Visitor.
func (c *ParamCounter[B]) ExitModule(string, Kind) {}

// VisitFloat implements Visitor.
func (c *ParamCounter[B]) VisitFloat(_ ParamID, t *tensor.Tensor[float32, B]) {
	c.Count += t.NumElements()
}

// NamedParam is a parameter addressed by its dotted field path.
type NamedParam[B tensor.Backend] struct {
	Path   string
	ID     ParamID
	Tensor *tensor.Tensor[float32, B]
}

// ParamCollector gathers parameters with their field paths, in visit order.
type ParamCollector[B tensor.Backend] struct {
	Params []NamedParam[B]
	path   []string
}

// EnterModule implements Visitor.
func (c *ParamCollector[B]) EnterModule(name string, _ Kind) {
	c.path = append(c.path, name)
}

// ExitModule implements Visitor.
func (c *ParamCollector[B]) ExitModule(string, Kind) {
	c.path = c.path[:len(c.path)-1]
}

// VisitFloat implements Visitor.
func (c *ParamCollector[B]) VisitFloat(id ParamID, t *tensor.Tensor[float32, B]) {
	c.Params = append(c.Params, NamedParam[B]{Path: strings.Join(c.path, "."), ID: id, Tensor: t})
}

// deviceCollector records parameter devices.
type deviceCollector[B tensor.Backend] struct {
	devices Devices
}

func (c *deviceCollector[B]) EnterModule(string, Kind) {}
func (c *deviceCollector[B]) ExitModule(string, Kind)  {}

func (c *deviceCollector[B]) VisitFloat(_ ParamID, t *tensor.Tensor[float32, B]) {
	c.devices = c.devices.Add(t.Device())
}

// NumParamsOf counts parameters by visiting m.
func NumParamsOf[B tensor.Backend](m interface{ Visit(Visitor[B]) }) int {
	var c ParamCounter[B]
	m.Visit(&c)
	return c.Count
}

// CollectDevicesOf adds the devices of every parameter of m to devices.
func CollectDevicesOf[B tensor.Backend](m interface{ Visit(Visitor[B]) }, devices Devices) Devices {
	c := deviceCollector[B]{devices: devices}
	m.Visit(&c)
	return c.devices
}

// ParamsOf lists the parameters of m with their field paths.
func ParamsOf[B tensor.Backend](m interface{ Visit(Visitor[B]) }) []NamedParam[B] {
	var c ParamCollector[B]
	m.Visit(&c)
	return c.Params
}
