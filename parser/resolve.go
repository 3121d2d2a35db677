package parser

import (
	"errors"
	"fmt"

	"github.com/caffeineduck/pyparser/interp"
	"go.uber.org/zap"
)

// Method names looked up on parser instances.
const (
	InitMethod  = "init"
	ParseMethod = "parse"
)

var errInitReturnedValue = errors.New("init must return None")

// LoadModule imports the named module with pathHint at the front of the
// module search path.
func LoadModule(g *interp.Guard, pathHint, name string) (*interp.Object, error) {
	mod, err := g.Import(pathHint, name)
	if err != nil {
		return nil, &Error{Kind: ErrModuleLoad, Name: name, Err: err}
	}
	return mod, nil
}

// LoadClass resolves name on module. Callability is not checked here.
func LoadClass(g *interp.Guard, module *interp.Object, name string) (*interp.Object, error) {
	class, err := g.GetAttr(module, name)
	if err != nil {
		return nil, &Error{Kind: ErrAttribute, Name: name, Err: err}
	}
	return class, nil
}

// Instantiate calls class with no arguments.
func Instantiate(g *interp.Guard, class *interp.Object) (*interp.Object, error) {
	inst, err := g.Call(class)
	if err != nil {
		return nil, &Error{Kind: ErrInstantiation, Err: err}
	}
	return inst, nil
}

// Initialize calls instance.init(config) when the instance has an init
// attribute. init must be callable and must return None.
func Initialize(g *interp.Guard, instance *interp.Object, config map[string]string) error {
	method, err := g.GetAttr(instance, InitMethod)
	if err != nil {
		if interp.IsException(err, "AttributeError") {
			return nil
		}
		return &Error{Kind: ErrInitialization, Name: InitMethod, Err: err}
	}
	defer g.Free(method)

	if !g.Callable(method) {
		return &Error{Kind: ErrInitialization, Name: InitMethod,
			Err: fmt.Errorf("%s attribute is a %s, not a method", InitMethod, method.Type())}
	}

	if config == nil {
		config = map[string]string{}
	}
	res, err := g.Invoke(method, interp.Dict(config))
	if err != nil {
		return &Error{Kind: ErrInitialization, Name: InitMethod, Err: err}
	}
	if !g.IsNone(res) {
		return &Error{Kind: ErrInitialization, Name: InitMethod,
			Err: fmt.Errorf("%w, got %s", errInitReturnedValue, res.Type())}
	}
	return nil
}

// LoadAndInit runs the whole resolution chain and returns an initialized
// instance. Intermediate handles are always freed; the instance is freed
// when initialization fails.
func LoadAndInit(g *interp.Guard, pathHint, module, class string, config map[string]string) (*interp.Object, error) {
	mod, err := LoadModule(g, pathHint, module)
	if err != nil {
		return nil, err
	}
	defer g.Free(mod)

	cls, err := LoadClass(g, mod, class)
	if err != nil {
		return nil, err
	}
	defer g.Free(cls)

	inst, err := Instantiate(g, cls)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) && perr.Name == "" {
			perr.Name = class
		}
		return nil, err
	}

	if err := Initialize(g, inst, config); err != nil {
		if ferr := g.Free(inst); ferr != nil {
			Logger().Warn("failed to free instance", zap.String("class", class), zap.Error(ferr))
		}
		return nil, err
	}
	return inst, nil
}
