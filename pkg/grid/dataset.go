package grid

import (
	"fmt"
	"sort"
)

// Dataset is a named collection of variables sharing one coordinate system
type Dataset struct {
	Name string
	vars map[string]Variable
}

// NewDataset builds a dataset from variables keyed by their names
func NewDataset(name string, vars ...Variable) *Dataset {
	d := &Dataset{Name: name, vars: make(map[string]Variable, len(vars))}
	for _, v := range vars {
		d.Add(v)
	}
	return d
}

// Add registers v, replacing any variable of the same name
func (d *Dataset) Add(v Variable) {
	d.vars[v.Info().Name] = v
}

// Variable looks up a variable by name
func (d *Dataset) Variable(name string) (Variable, error) {
	v, ok := d.vars[name]
	if !ok {
		return nil, fmt.Errorf("dataset %s has no variable %q: %w", d.Name, name, ErrUnknownVariable)
	}
	return v, nil
}

// Names lists the dataset's variables in sorted order
func (d *Dataset) Names() []string {
	names := make([]string, 0, len(d.vars))
	for n := range d.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
