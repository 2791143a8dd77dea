package engine

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/crimson-sun/sentiment/internal/engine/classifier"
	"github.com/crimson-sun/sentiment/internal/engine/featurizer"
)

const (
	artifactFormat  = "sentiment-model"
	artifactVersion = 1
)

// ErrCorruptArtifact is returned when a model artifact cannot be decoded.
var ErrCorruptArtifact = errors.New("engine: corrupt model artifact")

// artifact is the on-disk model: gzip-compressed JSON. Float64 values
// survive the JSON round trip exactly, so a reloaded model predicts
// bit-for-bit what the saved one did.
type artifact struct {
	Format     string                `json:"format"`
	Version    int                   `json:"version"`
	Featurizer featurizer.State      `json:"featurizer"`
	Classifier classifier.Classifier `json:"classifier"`
}

// Save writes the model artifact to w.
func (m *Model) Save(w io.Writer) error {
	zw := gzip.NewWriter(w)
	a := artifact{
		Format:     artifactFormat,
		Version:    artifactVersion,
		Featurizer: m.feat.State(),
		Classifier: *m.cls,
	}
	if err := json.NewEncoder(zw).Encode(&a); err != nil {
		zw.Close()
		return errors.Wrap(err, "engine: encode artifact")
	}
	return errors.Wrap(zw.Close(), "engine: compress artifact")
}

// SaveFile writes the artifact to path via a temp file and rename, so
// concurrent readers never observe a partial file.
func (m *Model) SaveFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "engine: create artifact dir")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "engine: create temp artifact")
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := m.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "engine: sync artifact")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "engine: close artifact")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "engine: install artifact")
}

// Load decodes a model artifact from r.
func Load(r io.Reader) (*Model, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptArtifact, "gzip: %v", err)
	}
	defer zr.Close()

	var a artifact
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		return nil, errors.Wrapf(ErrCorruptArtifact, "decode: %v", err)
	}
	if a.Format != artifactFormat || a.Version != artifactVersion {
		return nil, errors.Wrapf(ErrCorruptArtifact, "unsupported format %q version %d", a.Format, a.Version)
	}

	feat, err := featurizer.FromState(a.Featurizer)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptArtifact, "featurizer: %v", err)
	}
	if feat.Dim() != a.Classifier.Dim() {
		return nil, errors.Wrapf(ErrCorruptArtifact, "featurizer dim %d != classifier dim %d",
			feat.Dim(), a.Classifier.Dim())
	}
	cls := a.Classifier
	return &Model{feat: feat, cls: &cls}, nil
}

// LoadFile reads a model artifact from path. A missing file returns the
// underlying os error.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "engine: open artifact")
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return m, nil
}
