// Package sample groups class-input files by sample name and reads each
// group into one raw record table.
package sample

import (
	"fmt"
	"sort"

	"github.com/inodb/juncclass/internal/classinput"
)

// Input pairs a declared sample name with one class-input file.
type Input struct {
	Name string
	Path string
}

// Group is every file declared for one sample, in declaration order.
type Group struct {
	Name  string
	Files []string
}

// Pair zips parallel name and path lists into Inputs.
func Pair(names, paths []string) ([]Input, error) {
	if len(names) != len(paths) {
		return nil, fmt.Errorf("got %d sample names for %d class inputs", len(names), len(paths))
	}
	inputs := make([]Input, len(names))
	for i := range names {
		inputs[i] = Input{Name: names[i], Path: paths[i]}
	}
	return inputs, nil
}

// GroupInputs groups inputs by sample name. The result does not depend on
// the order of inputs across samples: groups come back sorted by name, and
// each group lists its files in the order they were declared.
func GroupInputs(inputs []Input) []Group {
	byName := make(map[string][]string)
	for _, in := range inputs {
		byName[in.Name] = append(byName[in.Name], in.Path)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]Group, len(names))
	for i, name := range names {
		groups[i] = Group{Name: name, Files: byName[name]}
	}
	return groups
}

// ReadGroup reads every file of g and concatenates the records in file order.
func ReadGroup(g Group) ([]classinput.Record, error) {
	var all []classinput.Record
	for _, path := range g.Files {
		records, err := classinput.ReadAll(path)
		if err != nil {
			return nil, fmt.Errorf("sample %s: read %s: %w", g.Name, path, err)
		}
		all = append(all, records...)
	}
	return all, nil
}
