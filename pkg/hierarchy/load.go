package hierarchy

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data
var embedded embed.FS

// Dataset is everything loaded from a data directory.
type Dataset struct {
	Hierarchy    *Hierarchy
	Subdivisions []SubdivisionConfig
	Counties     CountyConfig
	CountySource CountySource
}

type countriesFile struct {
	Countries []*Country `yaml:"countries"`
}

type idMapFile struct {
	IDs map[string]string `yaml:"ids"`
}

type subdivisionsFile struct {
	Subdivisions []SubdivisionConfig `yaml:"subdivisions"`
	Counties     CountyConfig        `yaml:"counties"`
}

// Load reads a dataset from a directory containing countries.yaml,
// idmap.yaml, an optional subdivisions.yaml and a counties/ directory.
func Load(dir string) (*Dataset, error) {
	return LoadFS(os.DirFS(dir))
}

// Default returns the dataset compiled into the binary.
func Default() (*Dataset, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// LoadFS reads a dataset laid out as described for Load.
func LoadFS(fsys fs.FS) (*Dataset, error) {
	var cf countriesFile
	if err := readYAML(fsys, "countries.yaml", &cf); err != nil {
		return nil, err
	}
	var idf idMapFile
	if err := readYAML(fsys, "idmap.yaml", &idf); err != nil {
		return nil, err
	}

	var sf subdivisionsFile
	if err := readYAML(fsys, "subdivisions.yaml", &sf); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, c := range sf.Subdivisions {
		if err := c.Check(); err != nil {
			return nil, err
		}
	}

	return &Dataset{
		Hierarchy:    New(cf.Countries, idf.IDs),
		Subdivisions: sf.Subdivisions,
		Counties:     sf.Counties,
		CountySource: FSCountySource{FS: fsys, Dir: "counties"},
	}, nil
}

func readYAML(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}
