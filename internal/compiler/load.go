package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/rewind/internal/ir"
)

// LoadGraph loads a graph declaration from a .cue file or from every .cue
// file of a directory, and compiles it.
//
// The result is not validated; call Check before building it.
func LoadGraph(path string) (*ir.GraphSpec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}

	cfg := &load.Config{Dir: path}
	args := []string{"."}
	if !info.IsDir() {
		cfg.Dir = filepath.Dir(path)
		args = []string{filepath.Base(path)}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("load graph %s: no CUE instances loaded", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileGraph(value)
}

// CompileString compiles CUE source text into a GraphSpec.
// filename is used in error positions only.
func CompileString(src, filename string) (*ir.GraphSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileGraph(v)
}
