package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/convkit/backend/cpu"
	"github.com/born-ml/convkit/record"
	"github.com/born-ml/convkit/tensor"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	if header != nil {
		table.SetHeader(header)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeaderLine(false)
	}
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// InspectHandler prints a checkpoint's envelope, layer summary and record fields.
func InspectHandler(cmd *cobra.Command, args []string) error {
	ckpt, err := loadCheckpoint(cmd, args[0])
	if err != nil {
		return err
	}
	l, err := restore(ckpt)
	if err != nil {
		return err
	}

	entries, err := record.Flatten(ckpt.Item)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	summary := [][]string{
		{"module", ckpt.ModuleType},
		{"precision", ckpt.Precision.String()},
		{"parameters", fmt.Sprint(l.NumParams())},
		{"devices", fmt.Sprint(l.CollectDevices(nil))},
	}
	for _, k := range slices.Sorted(maps.Keys(ckpt.Metadata)) {
		summary = append(summary, []string{k, ckpt.Metadata[k]})
	}

	fmt.Fprintln(w, "  Checkpoint")
	table := newTable(w, nil)
	table.AppendBulk(indent(summary))
	table.Render()
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, entryRow(e))
	}
	table = newTable(w, []string{"FIELD", "TYPE", "VALUE"})
	table.AppendBulk(rows)
	table.Render()

	fmt.Fprintf(w, "\n%s\n", l)
	return nil
}

func entryRow(e record.Entry) []string {
	switch v := e.Value.(type) {
	case record.TensorItem:
		return []string{e.Path, "tensor", fmt.Sprintf("%s %v", v.DType, v.Shape)}
	case nil:
		return []string{e.Path, "null", ""}
	case []int:
		return []string{e.Path, "ints", fmt.Sprint(v)}
	default:
		return []string{e.Path, fmt.Sprintf("%T", v), fmt.Sprint(v)}
	}
}

func indent(rows [][]string) [][]string {
	for _, r := range rows {
		r[0] = "    " + r[0]
	}
	return rows
}

// ForwardHandler runs a checkpointed layer on a synthetic input and
// reports the output shape and statistics.
func ForwardHandler(cmd *cobra.Command, args []string) error {
	ckpt, err := loadCheckpoint(cmd, args[0])
	if err != nil {
		return err
	}
	l, err := restore(ckpt)
	if err != nil {
		return err
	}

	dims, _ := cmd.Flags().GetIntSlice("shape")
	if len(dims) != l.rank+2 {
		return fmt.Errorf("%s expects a %dD input [batch, channels, ...], got shape %v", l.kind, l.rank+2, dims)
	}
	for _, d := range dims {
		if d <= 0 {
			return fmt.Errorf("input shape %v must be positive", dims)
		}
	}

	fill, _ := cmd.Flags().GetString("fill")
	step, _ := cmd.Flags().GetFloat32("step")
	b := cpu.New()
	shape := tensor.Shape(dims)
	var x *tensor.Tensor[float32, backend]
	switch strings.ToLower(fill) {
	case "arange":
		x = tensor.Arange(shape, step, b)
	case "ones":
		x = tensor.Ones[float32](shape, b)
	case "zeros":
		x = tensor.Zeros[float32](shape, b)
	default:
		return fmt.Errorf("unknown fill %q (want arange, ones or zeros)", fill)
	}

	y, err := runForward(l, x)
	if err != nil {
		return err
	}

	values := make([]float64, 0, y.NumElements())
	for _, v := range y.Data() {
		values = append(values, float64(v))
	}

	table := newTable(cmd.OutOrStdout(), []string{"LAYER", "INPUT", "OUTPUT", "MIN", "MAX", "MEAN", "STD"})
	table.Append([]string{
		l.kind,
		fmt.Sprint(x.Shape()),
		fmt.Sprint(y.Shape()),
		fmt.Sprintf("%.6g", floats.Min(values)),
		fmt.Sprintf("%.6g", floats.Max(values)),
		fmt.Sprintf("%.6g", stat.Mean(values, nil)),
		fmt.Sprintf("%.6g", stat.PopStdDev(values, nil)),
	})
	table.Render()
	return nil
}

// runForward turns the layer's shape panics into errors.
func runForward(l *loaded, x *tensor.Tensor[float32, backend]) (y *tensor.Tensor[float32, backend], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("forward: %v", r)
		}
	}()
	return l.forward(x), nil
}

// KindsHandler lists the layer kinds init and forward understand.
func KindsHandler(cmd *cobra.Command, _ []string) error {
	rows := make([][]string, 0, len(layerKinds))
	for _, name := range kindNames() {
		rank := layerKinds[name].spatialRank()
		rows = append(rows, []string{name, fmt.Sprintf("%dD", rank), fmt.Sprintf("[batch, channels%s]", strings.Repeat(", _", rank))})
	}
	table := newTable(cmd.OutOrStdout(), []string{"KIND", "RANK", "INPUT"})
	table.AppendBulk(rows)
	table.Render()
	return nil
}
