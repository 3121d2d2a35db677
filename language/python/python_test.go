package python

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBootstrapContents(t *testing.T) {
	if len(bootstrap) == 0 {
		t.Fatal("bootstrap not embedded")
	}
	checks := []string{
		"_host_call",
		"class LogMessage",
		"PYP_READY",
		"PYP_RESULT:",
		"logmsg_set",
		"_PYP_SESSION",
	}
	for _, check := range checks {
		if !strings.Contains(bootstrap, check) {
			t.Errorf("bootstrap missing %q", check)
		}
	}
}

func TestSessionInit(t *testing.T) {
	lang := Load("unused")
	if !strings.Contains(lang.SessionInit(), "_PYP_SESSION") {
		t.Error("SessionInit missing session mode flag")
	}
}

func TestWrapCode(t *testing.T) {
	lang := Load("unused")
	code := `print("hello")`
	wrapped := lang.WrapCode(code)
	if !strings.HasSuffix(wrapped, code) {
		t.Error("WrapCode should end with original code")
	}
	if !strings.HasPrefix(wrapped, bootstrap) {
		t.Error("WrapCode should start with the bootstrap")
	}
}

func TestArgs(t *testing.T) {
	args := Load("unused").Args("test code")
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %v", args)
	}
	if args[0] != "python" || args[1] != "-c" || args[2] != "test code" {
		t.Errorf("unexpected args %v", args)
	}
}

func TestModuleReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "python.wasm")
	if err := os.WriteFile(path, []byte("\x00asm"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path).Module()
	if err != nil {
		t.Fatalf("Module failed: %v", err)
	}
	if string(got) != "\x00asm" {
		t.Errorf("unexpected module bytes %q", got)
	}
}

func TestModuleMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.wasm")).Module()
	if err == nil {
		t.Fatal("expected error for missing interpreter")
	}
}

func TestNewUsesEnv(t *testing.T) {
	t.Setenv(EnvWasmPath, "/opt/python.wasm")
	if got := New("/cache").Path(); got != "/opt/python.wasm" {
		t.Errorf("expected env path, got %q", got)
	}

	t.Setenv(EnvWasmPath, "")
	if got := New("/cache").Path(); got != filepath.Join("/cache", "python.wasm") {
		t.Errorf("expected cache path, got %q", got)
	}
}
