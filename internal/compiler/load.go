package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/metasync/internal/model"
)

// Config is a compiled configuration: the attribute catalogue and the sync
// rules that reference it by id.
type Config struct {
	Schema *model.Schema

	// Raw attribute lists in declaration order, kept for validation since
	// Schema indexes by id and would hide duplicates.
	MetaverseAttributes       []model.MetaverseAttribute
	ConnectedSystemAttributes []model.ConnectedSystemAttribute

	// Rules sorted by id.
	Rules []model.SyncRule

	// FileCount is the number of CUE files read by LoadDir.
	FileCount int
}

// Compile compiles a complete configuration value.
func Compile(v cue.Value) (*Config, error) {
	cfg, err := CompileSchema(v)
	if err != nil {
		return nil, err
	}

	err = eachField(v, "sync_rules", func(name string, rv cue.Value) error {
		rule, err := CompileSyncRule(rv, cfg.Schema)
		if err != nil {
			return fmt.Errorf("sync_rules.%s: %w", name, err)
		}
		cfg.Rules = append(cfg.Rules, *rule)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(cfg.Rules, func(i, j int) bool { return cfg.Rules[i].ID < cfg.Rules[j].ID })
	return cfg, nil
}

// CompileSource compiles configuration from CUE source text.
// filename is used for error positions only.
func CompileSource(src, filename string) (*Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v)
}

// LoadDir loads every CUE file of the package in dir and compiles it.
func LoadDir(dir string) (*Config, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("config directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config directory: not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cfg, err := Compile(value)
	if err != nil {
		return nil, err
	}
	cfg.FileCount = len(files)
	return cfg, nil
}
