package datamap

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/dbasik/dbasik/internal/model"
)

// document is the YAML layout of an exported datamap.
type document struct {
	Name  string              `yaml:"name,omitempty"`
	Lines []model.DatamapLine `yaml:"lines"`
}

func readYAMLFile(path string) ([]model.DatamapLine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "datamap: read yaml")
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "datamap: parse yaml")
	}
	return checkLines(doc.Lines)
}

// readJSONFile reads a JSON array of datamap lines, the fixture format used
// by seeded deployments.
func readJSONFile(path string) ([]model.DatamapLine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "datamap: read json")
	}
	var lines []model.DatamapLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, eris.Wrap(err, "datamap: unmarshal json")
	}
	return checkLines(lines)
}

func checkLines(in []model.DatamapLine) ([]model.DatamapLine, error) {
	out := make([]model.DatamapLine, 0, len(in))
	for i, l := range in {
		line, err := toLine(i+1, row{
			Key:      l.Key,
			Sheet:    l.Sheet,
			CellRef:  l.CellRef,
			DataType: string(l.DataType),
		})
		if err != nil {
			return nil, err
		}
		line.Required = l.Required
		line.MaxLength = l.MaxLength
		out = append(out, line)
	}
	return out, nil
}

// WriteYAML writes dm in the layout ReadFile accepts for .yaml files.
func WriteYAML(w io.Writer, dm *model.Datamap) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Name: dm.Name, Lines: dm.Lines}); err != nil {
		return eris.Wrap(err, "datamap: encode yaml")
	}
	return eris.Wrap(enc.Close(), "datamap: close yaml encoder")
}
