// Command download fetches the Python WASM interpreter into the cache
// directory, where python.New finds it.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/caffeineduck/pyparser/interp"
)

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintln(os.Stderr, "usage: download <url> [output]")
		os.Exit(1)
	}

	url := os.Args[1]
	output := filepath.Join(interp.DefaultCacheDir(), "python.wasm")
	if len(os.Args) == 3 {
		output = os.Args[2]
	}

	if _, err := os.Stat(output); err == nil {
		return
	}

	if err := download(url, output); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "wrote", output)
}

// download writes to a temporary file next to output and renames it into
// place, so an interrupted download never leaves a truncated interpreter.
func download(url, output string) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}

	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	f, err := os.CreateTemp(filepath.Dir(output), ".python-*.wasm")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), output)
}
