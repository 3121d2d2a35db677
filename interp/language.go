package interp

// Language describes a WASM build of a guest interpreter and how to start
// it in session mode.
type Language interface {
	// Name returns a unique identifier, used in logs and as the
	// compilation cache key.
	Name() string

	// Module returns the WASM binary for the interpreter.
	Module() ([]byte, error)

	// WrapCode prepends the guest bootstrap to code.
	WrapCode(code string) string

	// Args returns the command-line arguments to pass to the WASM module.
	// For Python: []string{"python", "-c", code}
	Args(wrappedCode string) []string

	// SessionInit returns code placed before the bootstrap that makes it
	// enter the request loop instead of returning.
	SessionInit() string
}
