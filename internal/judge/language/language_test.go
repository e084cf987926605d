package language_test

import (
	"reflect"
	"testing"

	"clashoj/internal/judge/language"
	"clashoj/pkg/errors"
)

func TestResolveSupported(t *testing.T) {
	for _, id := range language.Supported() {
		spec, err := language.Resolve(id)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", id, err)
		}
		if spec.ID != id {
			t.Fatalf("Resolve(%q).ID = %q", id, spec.ID)
		}
		if spec.SourceFile == "" || spec.RunCmdTpl == "" {
			t.Fatalf("Resolve(%q) incomplete spec: %+v", id, spec)
		}
		if spec.CompileEnabled && spec.CompileCmdTpl == "" {
			t.Fatalf("Resolve(%q) compile-enabled without template", id)
		}
	}
}

func TestResolveUnknownFailsFast(t *testing.T) {
	for _, id := range []string{"", "ruby", "CPP", "c++"} {
		_, err := language.Resolve(id)
		if err == nil {
			t.Fatalf("Resolve(%q) accepted an unsupported language", id)
		}
		if errors.GetCode(err) != errors.LanguageNotSupported {
			t.Fatalf("Resolve(%q) code = %d, want LanguageNotSupported", id, errors.GetCode(err))
		}
	}
}

func TestCppCommands(t *testing.T) {
	spec, err := language.Resolve(language.CPP)
	if err != nil {
		t.Fatalf("resolve cpp: %v", err)
	}
	compile, err := spec.CompileCommand("/work/job-1")
	if err != nil {
		t.Fatalf("compile command: %v", err)
	}
	want := []string{"g++", "-O2", "-std=c++17", "-o", "/work/job-1/main", "/work/job-1/main.cpp"}
	if !reflect.DeepEqual(compile, want) {
		t.Fatalf("compile = %v, want %v", compile, want)
	}
	run, err := spec.RunCommand("/work/job-1")
	if err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !reflect.DeepEqual(run, []string{"/work/job-1/main"}) {
		t.Fatalf("run = %v", run)
	}
}

func TestJavaRunsByClassName(t *testing.T) {
	spec, err := language.Resolve(language.Java)
	if err != nil {
		t.Fatalf("resolve java: %v", err)
	}
	run, err := spec.RunCommand("/work/job-2")
	if err != nil {
		t.Fatalf("run command: %v", err)
	}
	want := []string{"java", "-cp", "/work/job-2", "Main"}
	if !reflect.DeepEqual(run, want) {
		t.Fatalf("run = %v, want %v", run, want)
	}
}

func TestInterpretedLanguagesHaveNoCompileStep(t *testing.T) {
	for _, id := range []string{language.Python, language.JavaScript} {
		spec, err := language.Resolve(id)
		if err != nil {
			t.Fatalf("resolve %s: %v", id, err)
		}
		if spec.CompileEnabled {
			t.Fatalf("%s unexpectedly compile-enabled", id)
		}
		if _, err := spec.CompileCommand("/tmp"); err == nil {
			t.Fatalf("%s CompileCommand should fail", id)
		}
	}
}
