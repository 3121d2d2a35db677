package parser

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Recognized option keys. All other keys are passed to the initializer.
const (
	OptionModule = "module"
	OptionClass  = "class"
)

type pair struct {
	key   string
	value string
}

// Options is the ordered option list handed to a Builder. Later values
// for a key replace earlier ones.
type Options struct {
	pairs []pair
}

// Add appends a key/value pair.
func (o *Options) Add(key, value string) {
	o.pairs = append(o.pairs, pair{key: key, value: value})
}

// Len returns the number of pairs added, duplicates included.
func (o *Options) Len() int {
	return len(o.pairs)
}

// Map collapses the pairs into a map, last write winning.
func (o *Options) Map() map[string]string {
	m := make(map[string]string, len(o.pairs))
	for _, p := range o.pairs {
		m[p.key] = p.value
	}
	return m
}

type buildConfig struct {
	Module string `validate:"required,pymodule"`
	Class  string `validate:"required,pyident"`
	Init   map[string]string
}

// Python 3 identifiers (PEP 3131): a letter or underscore, then letters,
// digits, combining marks or connector punctuation.
const identExpr = `[\p{L}\p{Nl}_][\p{L}\p{Nl}\p{Mn}\p{Mc}\p{Nd}\p{Pc}]*`

var (
	identPattern  = regexp.MustCompile(`^` + identExpr + `$`)
	modulePattern = regexp.MustCompile(`^` + identExpr + `(\.` + identExpr + `)*$`)
)

// validate is a package-level singleton; building a validator is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("pyident", func(fl validator.FieldLevel) bool {
		return identPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("pymodule", func(fl validator.FieldLevel) bool {
		return modulePattern.MatchString(fl.Field().String())
	})
	return v
}

// config splits the options into the module, the class and the
// initializer mapping, and validates the names.
func (o *Options) config() (buildConfig, error) {
	m := o.Map()
	cfg := buildConfig{
		Module: m[OptionModule],
		Class:  m[OptionClass],
		Init:   make(map[string]string, len(m)),
	}
	for k, v := range m {
		if k != OptionModule && k != OptionClass {
			cfg.Init[k] = v
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, &Error{Kind: ErrConfig, Name: fmt.Sprintf("%s.%s", cfg.Module, cfg.Class), Err: err}
	}
	return cfg, nil
}
