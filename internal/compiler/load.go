package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/typedb/typedb-sub067/internal/schema"
	"github.com/typedb/typedb-sub067/internal/store"
)

// Loaded is a compiled CUE directory.
type Loaded struct {
	Document  *Document
	Value     cue.Value
	FileCount int
}

// LoadDir loads every CUE file of dir as one instance and compiles it.
func LoadDir(dir string) (*Loaded, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}
	value := cuecontext.New().BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	doc, err := Compile(value)
	if err != nil {
		return nil, err
	}
	return &Loaded{Document: doc, Value: value, FileCount: len(files)}, nil
}

// FindCUEFiles returns the .cue files of dir. Subdirectories are not
// part of the instance and are skipped.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// Install validates a document against its own schema and writes it to
// the store: types with resolved kinds, then rules, then data.
func Install(ctx context.Context, st *store.Store, doc *Document) (*schema.Schema, error) {
	sch, err := doc.Schema()
	if err != nil {
		return nil, err
	}
	if err := st.WriteTypes(ctx, sch.Types()); err != nil {
		return nil, err
	}
	if err := st.WriteRules(ctx, doc.Rules); err != nil {
		return nil, err
	}
	if err := st.WriteData(ctx, doc.Data); err != nil {
		return nil, err
	}
	return sch, nil
}

// LoadSchema rebuilds the schema from the types and rules in a store.
func LoadSchema(ctx context.Context, st *store.Store) (*schema.Schema, error) {
	types, err := st.ReadTypes(ctx)
	if err != nil {
		return nil, err
	}
	texts, err := st.ReadRules(ctx)
	if err != nil {
		return nil, err
	}
	rules := make([]schema.Rule, 0, len(texts))
	for _, rt := range texts {
		r, err := ParseRule(rt)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return schema.New(types, rules)
}
