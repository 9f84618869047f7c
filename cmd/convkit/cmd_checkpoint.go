package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/convkit/backend/cpu"
	"github.com/born-ml/convkit/internal/version"
	"github.com/born-ml/convkit/record"
)

// layerFile is the YAML document read by init.
type layerFile struct {
	Kind   string    `yaml:"kind"`
	Config yaml.Node `yaml:"config"`
}

func recorderFor(path string, skipChecksum bool) record.Recorder {
	if skipChecksum && !strings.EqualFold(filepath.Ext(path), record.ExtJSON) {
		return record.FileRecorder{Options: record.ReaderOptions{SkipChecksumValidation: true}}
	}
	return record.RecorderFor(path)
}

func loadCheckpoint(cmd *cobra.Command, path string) (*record.Checkpoint, error) {
	skip, _ := cmd.Flags().GetBool("skip-checksum")
	ckpt, err := recorderFor(path, skip).Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	slog.Debug("loaded checkpoint", "path", path, "module", ckpt.ModuleType, "precision", ckpt.Precision)
	return ckpt, nil
}

// restore rebuilds the checkpoint's layer on the CPU backend.
func restore(ckpt *record.Checkpoint) (*loaded, error) {
	k, err := lookupKind(ckpt.ModuleType)
	if err != nil {
		return nil, err
	}
	return k.load(ckpt.ModuleType, ckpt.Item, cpu.New())
}

func readLayerFile(path string) (*layerFile, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var lf layerFile
	if err := yaml.NewDecoder(r).Decode(&lf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty config", path)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if lf.Kind == "" {
		return nil, fmt.Errorf("%s: missing layer kind", path)
	}
	return &lf, nil
}

// InitHandler builds a freshly initialized layer from a YAML config and saves it.
func InitHandler(cmd *cobra.Command, args []string) error {
	lf, err := readLayerFile(args[0])
	if err != nil {
		return err
	}
	k, err := lookupKind(lf.Kind)
	if err != nil {
		return err
	}

	precisionName, _ := cmd.Flags().GetString("precision")
	precision, err := record.ParsePrecision(precisionName)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		if args[0] == "-" {
			return errors.New("--output is required when reading the config from stdin")
		}
		output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + record.ExtCheckpoint
	}

	l, err := k.build(lf.Kind, &lf.Config, cpu.New())
	if err != nil {
		return err
	}

	ckpt := &record.Checkpoint{
		ModuleType: lf.Kind,
		Precision:  precision,
		Item:       l.item(precision),
		Metadata: map[string]string{
			"convkit_version": version.Version,
			"source":          filepath.Base(args[0]),
		},
	}
	if err := record.RecorderFor(output).Record(output, ckpt); err != nil {
		return err
	}

	slog.Debug("wrote checkpoint", "path", output, "params", l.NumParams())
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", l, output)
	return nil
}

// ConvertHandler re-encodes a checkpoint at another precision or in another format.
func ConvertHandler(cmd *cobra.Command, args []string) error {
	src, dst := args[0], args[1]
	ckpt, err := loadCheckpoint(cmd, src)
	if err != nil {
		return err
	}

	precision := ckpt.Precision
	if name, _ := cmd.Flags().GetString("precision"); name != "" {
		if precision, err = record.ParsePrecision(name); err != nil {
			return err
		}
	}

	// Decode the layer first so a corrupt record is not copied forward.
	if _, err := restore(ckpt); err != nil {
		return err
	}

	item, err := record.ConvertTensors(ckpt.Item, precision)
	if err != nil {
		return err
	}

	metadata := make(map[string]string, len(ckpt.Metadata)+1)
	maps.Copy(metadata, ckpt.Metadata)
	metadata["convkit_version"] = version.Version

	out := &record.Checkpoint{
		ModuleType: ckpt.ModuleType,
		Precision:  precision,
		Item:       item,
		Metadata:   metadata,
	}
	if err := record.RecorderFor(dst).Record(dst, out); err != nil {
		return err
	}

	slog.Debug("converted checkpoint", "from", ckpt.Precision, "to", precision)
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) -> %s (%s)\n", src, ckpt.Precision, dst, precision)
	return nil
}
