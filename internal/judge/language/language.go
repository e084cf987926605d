// Package language maps a submission's language identifier to how its
// source is named, compiled, and executed. The set of supported languages
// is closed: adding one means adding a Spec here and extending the switch
// in Resolve, which keeps dispatch a compile-time concern.
package language

import (
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"clashoj/pkg/errors"
)

// Supported language identifiers.
const (
	CPP        = "cpp"
	Python     = "python"
	Java       = "java"
	JavaScript = "javascript"
)

// Spec describes one supported language: where the source is written,
// whether a compile step runs first, and the command templates for both
// steps. Templates use {src}, {bin}, {dir} and {class} placeholders,
// expanded against the job working directory then shlex-split.
type Spec struct {
	ID             string
	SourceFile     string
	BinaryFile     string
	ClassName      string
	CompileEnabled bool
	CompileCmdTpl  string
	RunCmdTpl      string
}

var specs = map[string]Spec{
	CPP: {
		ID:             CPP,
		SourceFile:     "main.cpp",
		BinaryFile:     "main",
		CompileEnabled: true,
		CompileCmdTpl:  "g++ -O2 -std=c++17 -o {bin} {src}",
		RunCmdTpl:      "{bin}",
	},
	Python: {
		ID:         Python,
		SourceFile: "main.py",
		RunCmdTpl:  "python3 {src}",
	},
	Java: {
		ID:             Java,
		SourceFile:     "Main.java",
		ClassName:      "Main",
		CompileEnabled: true,
		CompileCmdTpl:  "javac -d {dir} {src}",
		RunCmdTpl:      "java -cp {dir} {class}",
	},
	JavaScript: {
		ID:         JavaScript,
		SourceFile: "main.js",
		RunCmdTpl:  "node {src}",
	},
}

// Resolve returns the Spec for a language identifier. Unknown identifiers
// fail fast before any file I/O happens; there is no default language.
func Resolve(id string) (Spec, error) {
	switch id {
	case CPP, Python, Java, JavaScript:
		return specs[id], nil
	default:
		return Spec{}, errors.Newf(errors.LanguageNotSupported, "unsupported language: %q", id)
	}
}

// Supported lists the language identifiers Resolve accepts.
func Supported() []string {
	return []string{CPP, Python, Java, JavaScript}
}

// CompileCommand expands and splits the compile command for workDir.
// Calling it on a language without a compile step is a programming error
// and returns InvalidParams.
func (s Spec) CompileCommand(workDir string) ([]string, error) {
	if !s.CompileEnabled {
		return nil, errors.Newf(errors.InvalidParams, "language %s has no compile step", s.ID)
	}
	return s.buildCommand(s.CompileCmdTpl, workDir)
}

// RunCommand expands and splits the run command for workDir.
func (s Spec) RunCommand(workDir string) ([]string, error) {
	return s.buildCommand(s.RunCmdTpl, workDir)
}

func (s Spec) buildCommand(tpl, workDir string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, errors.New(errors.InvalidParams).WithMessage("command template is required")
	}
	expanded := tpl
	expanded = strings.ReplaceAll(expanded, "{src}", filepath.Join(workDir, s.SourceFile))
	expanded = strings.ReplaceAll(expanded, "{bin}", filepath.Join(workDir, s.BinaryFile))
	expanded = strings.ReplaceAll(expanded, "{dir}", workDir)
	expanded = strings.ReplaceAll(expanded, "{class}", s.ClassName)
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, errors.Wrapf(err, errors.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, errors.New(errors.InvalidParams).WithMessage("command is empty after expansion")
	}
	return fields, nil
}
