package serialization

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/born-ml/convkit/internal/record"
	"github.com/born-ml/convkit/internal/version"
)

// Recorder persists checkpoints.
type Recorder interface {
	Record(path string, ckpt *Checkpoint) error
	Load(path string) (*Checkpoint, error)
}

// RecorderFor picks a recorder by file extension: ".json" gets a pretty
// JSONRecorder, anything else the binary FileRecorder.
func RecorderFor(path string) Recorder {
	if strings.EqualFold(filepath.Ext(path), ExtJSON) {
		return JSONRecorder{Pretty: true}
	}
	return FileRecorder{}
}

// jsonFormat tags JSON checkpoints.
const jsonFormat = "convkit"

type jsonEnvelope struct {
	Format         string            `json:"format"`
	FormatVersion  int               `json:"format_version"`
	ConvkitVersion string            `json:"convkit_version"`
	ModuleType     string            `json:"module_type"`
	Precision      record.Precision  `json:"precision"`
	CreatedAt      time.Time         `json:"created_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Item           *record.Item      `json:"item"`
}

// JSONRecorder writes checkpoints as one ordered JSON document.
// Tensor payloads are base64 strings.
type JSONRecorder struct {
	Pretty bool
}

// Record writes ckpt to path.
func (r JSONRecorder) Record(path string, ckpt *Checkpoint) error {
	if ckpt == nil || ckpt.Item == nil {
		return ErrMissingItem
	}
	env := jsonEnvelope{
		Format:         jsonFormat,
		FormatVersion:  FormatVersion,
		ConvkitVersion: version.Version,
		ModuleType:     ckpt.ModuleType,
		Precision:      ckpt.Precision,
		CreatedAt:      time.Now().UTC(),
		Metadata:       ckpt.Metadata,
		Item:           ckpt.Item,
	}

	var (
		data []byte
		err  error
	)
	if r.Pretty {
		data, err = json.MarshalIndent(env, "", "  ")
	} else {
		data, err = json.Marshal(env)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec // checkpoints are not secrets
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	slog.Debug("checkpoint saved", "path", path, "format", "json", "module", ckpt.ModuleType, "precision", ckpt.Precision)
	return nil
}

// Load reads a JSON checkpoint from path.
func (r JSONRecorder) Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user-provided by design
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	if env.Format != jsonFormat {
		return nil, fmt.Errorf("%w: format %q", ErrInvalidMagic, env.Format)
	}
	if env.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, env.FormatVersion, FormatVersion)
	}
	if env.Item == nil {
		return nil, ErrMissingItem
	}

	slog.Debug("checkpoint loaded", "path", path, "format", "json", "module", env.ModuleType)
	return &Checkpoint{
		ModuleType: env.ModuleType,
		Precision:  env.Precision,
		Item:       env.Item,
		Metadata:   env.Metadata,
	}, nil
}

// FileRecorder writes checkpoints in the binary .ckpt format.
type FileRecorder struct {
	Options ReaderOptions
}

// Record writes ckpt to path.
func (r FileRecorder) Record(path string, ckpt *Checkpoint) (err error) {
	if ckpt == nil || ckpt.Item == nil {
		return ErrMissingItem
	}
	file, err := os.Create(path) //nolint:gosec // G304: path is user-provided by design
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	w := bufio.NewWriter(file)
	if err := WriteTo(w, ckpt); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush file: %w", err)
	}

	slog.Debug("checkpoint saved", "path", path, "format", "ckpt", "module", ckpt.ModuleType, "precision", ckpt.Precision)
	return nil
}

// Load reads a .ckpt file from path.
func (r FileRecorder) Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user-provided by design
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	ckpt, err := Parse(data, r.Options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("checkpoint loaded", "path", path, "format", "ckpt", "module", ckpt.ModuleType)
	return ckpt, nil
}
