// Package python provides the Python language adapter for pyparser.
//
// The interpreter is a WASI build of RustPython. It is not embedded; it is
// read from the path given to [Load], from $PYPARSER_PYTHON_WASM, or from
// python.wasm in the cache directory (see internal/tools/download).
package python

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

//go:embed bootstrap.py
var bootstrap string

// EnvWasmPath names the environment variable holding the interpreter path.
const EnvWasmPath = "PYPARSER_PYTHON_WASM"

// Python implements the interp.Language interface.
type Python struct {
	path string

	once   sync.Once
	module []byte
	err    error
}

// New returns a Python adapter using the default interpreter location
// under cacheDir.
func New(cacheDir string) *Python {
	path := os.Getenv(EnvWasmPath)
	if path == "" {
		path = filepath.Join(cacheDir, "python.wasm")
	}
	return Load(path)
}

// Load returns a Python adapter reading the interpreter from path.
func Load(path string) *Python {
	return &Python{path: path}
}

// Name returns "python".
func (p *Python) Name() string {
	return "python"
}

// Path returns where the interpreter binary is read from.
func (p *Python) Path() string {
	return p.path
}

// Module returns the RustPython WASM binary, read once.
func (p *Python) Module() ([]byte, error) {
	p.once.Do(func() {
		p.module, p.err = os.ReadFile(p.path)
		if p.err != nil {
			p.err = fmt.Errorf("read interpreter: %w", p.err)
		}
	})
	return p.module, p.err
}

// WrapCode prepends the guest bootstrap to code.
func (p *Python) WrapCode(code string) string {
	return bootstrap + "\n" + code
}

// Args returns the command-line arguments for the Python interpreter.
func (p *Python) Args(wrappedCode string) []string {
	return []string{"python", "-c", wrappedCode}
}

// SessionInit sets the flag that makes the bootstrap serve requests.
func (p *Python) SessionInit() string {
	return "_PYP_SESSION = True\n"
}
