package direction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
)

// File is the on-disk form of a direction set.
type File struct {
	Generated        string   `json:"generated"`
	Model            string   `json:"model,omitempty"`
	GoodExamplesPath []string `json:"good_examples_path,omitempty"`
	BadExamplesPath  []string `json:"bad_examples_path,omitempty"`
	Features         []Record `json:"features"`
}

// Record is one feature entry. Older files use "id" instead of "uuid" and
// "type" instead of "polarity"; both are accepted on read.
type Record struct {
	UUID     string   `json:"uuid,omitempty"`
	ID       string   `json:"id,omitempty"`
	Label    string   `json:"label"`
	Polarity string   `json:"polarity,omitempty"`
	Type     string   `json:"type,omitempty"`
	Weight   *float64 `json:"weight,omitempty"`
}

// NewFile wraps directions for saving.
func NewFile(set *Set, model string, good, bad []string) *File {
	f := &File{
		Generated:        time.Now().UTC().Format(time.RFC3339),
		Model:            model,
		GoodExamplesPath: good,
		BadExamplesPath:  bad,
	}
	for _, d := range set.All() {
		f.Features = append(f.Features, Record{
			UUID:     d.ID,
			Label:    d.Label,
			Polarity: string(d.Polarity),
			Weight:   d.Weight,
		})
	}
	return f
}

// Directions validates records and converts them.
func (f *File) Directions() ([]Direction, error) {
	dirs := make([]Direction, 0, len(f.Features))
	for i, r := range f.Features {
		id := r.UUID
		if id == "" {
			id = r.ID
		}
		if id == "" {
			return nil, fmt.Errorf("features[%d]: missing uuid", i)
		}
		if r.Label == "" {
			return nil, fmt.Errorf("features[%d]: missing label", i)
		}
		raw := r.Polarity
		if raw == "" {
			raw = r.Type
		}
		pol, err := ParsePolarity(raw)
		if err != nil {
			return nil, fmt.Errorf("features[%d]: %v", i, err)
		}
		dirs = append(dirs, Direction{ID: id, Label: r.Label, Polarity: pol, Weight: r.Weight})
	}
	return dirs, nil
}

// Save writes the file atomically, creating parent directories.
func Save(path string, f *File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, append(data, '\n'), 0644)
}

// Load reads and validates a direction file.
func Load(path string) (*Set, *File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrVectorResolution, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrVectorResolution, path, err)
	}
	dirs, err := f.Directions()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrVectorResolution, path, err)
	}
	set, err := NewSet(dirs, SourceFile, path)
	if err != nil {
		return nil, nil, err
	}
	return set, &f, nil
}
