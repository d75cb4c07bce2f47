package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"

	"github.com/roach88/rewind/internal/compiler"
	"github.com/roach88/rewind/internal/ir"
)

// LoadResult contains a graph loaded from a file or directory.
type LoadResult struct {
	Spec  *ir.GraphSpec
	Files []string // CUE files found
}

// LoadError represents an error that occurred during graph loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the CUE source line, or 0 when unknown.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// Error code constants - unified across all CLI commands.
// Graph validation codes (E2xx) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // Malformed graph declaration
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE evaluation failed
	ErrCodeWriteFailed = "E007" // File write error
)

// LoadGraph loads and compiles the CUE graph at path, a .cue file or a
// directory of them. The graph is not validated.
func LoadGraph(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing graph: %v", err)}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	}

	spec, err := compiler.LoadGraph(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return &LoadResult{Spec: spec, Files: files}, nil
}

// FindCUEFiles returns the .cue files directly inside dir, which is what a
// CUE package load of the directory reads.
func FindCUEFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := ErrCodeLoadFailed
		if compileErr.Field == "cue" {
			code = ErrCodeBuildFailed
		}
		return &LoadError{
			Code:    code,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// loadGraphOrExit wraps LoadGraph failures as command errors.
func loadGraphOrExit(formatter *OutputFormatter, path string) (*LoadResult, error) {
	res, err := LoadGraph(path)
	if err == nil {
		return res, nil
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
	return nil, NewExitError(ExitCommandError, loadErr.Error())
}
