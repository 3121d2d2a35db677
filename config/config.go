// Package config loads parser definitions from HCL files.
//
//	search_path = ["parsers", "/opt/shared/parsers"]
//
//	parser "syslog" {
//	  module  = "myparsers.syslog"
//	  class   = "SyslogParser"
//	  options = {
//	    prefix = ".syslog."
//	    strict = true
//	  }
//	}
//
// Option values may be of any primitive HCL type; they reach the Python
// initializer as strings.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/caffeineduck/pyparser/parser"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// ErrNoParser is returned by Config.Parser for an unknown name.
var ErrNoParser = errors.New("parser not defined")

// Config is a loaded configuration file.
type Config struct {
	// SearchPath holds absolute directories to expose to Python, resolved
	// against the directory of the file.
	SearchPath []string
	Parsers    map[string]*Parser
}

// Parser is one parser block.
type Parser struct {
	Name    string
	Module  string
	Class   string
	Options map[string]string
}

type fileRoot struct {
	SearchPath []string     `hcl:"search_path,optional"`
	Parsers    []*parserHCL `hcl:"parser,block"`
}

type parserHCL struct {
	Name    string         `hcl:"name,label"`
	Module  string         `hcl:"module"`
	Class   string         `hcl:"class"`
	Options hcl.Expression `hcl:"options,optional"`
}

// Load parses and decodes the file at path.
func Load(path string) (*Config, error) {
	p := hclparse.NewParser()
	f, diags := p.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, diags)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return decode(f, filepath.Dir(abs))
}

// Parse decodes src as if it were a file named filename in dir.
func Parse(src []byte, filename, dir string) (*Config, error) {
	p := hclparse.NewParser()
	f, diags := p.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}
	return decode(f, dir)
}

func decode(f *hcl.File, dir string) (*Config, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(f.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config: %w", diags)
	}

	cfg := &Config{Parsers: make(map[string]*Parser, len(root.Parsers))}
	for _, sp := range root.SearchPath {
		if !filepath.IsAbs(sp) {
			sp = filepath.Join(dir, sp)
		}
		cfg.SearchPath = append(cfg.SearchPath, filepath.Clean(sp))
	}

	for _, ph := range root.Parsers {
		if _, dup := cfg.Parsers[ph.Name]; dup {
			return nil, fmt.Errorf("parser %q defined more than once", ph.Name)
		}
		opts, err := decodeOptions(ph.Options)
		if err != nil {
			return nil, fmt.Errorf("parser %q: %w", ph.Name, err)
		}
		cfg.Parsers[ph.Name] = &Parser{
			Name:    ph.Name,
			Module:  ph.Module,
			Class:   ph.Class,
			Options: opts,
		}
	}
	return cfg, nil
}

func decodeOptions(expr hcl.Expression) (map[string]string, error) {
	out := map[string]string{}
	if expr == nil {
		return out, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid options: %w", diags)
	}
	if val.IsNull() {
		return out, nil
	}

	val, err := convert.Convert(val, cty.Map(cty.String))
	if err != nil {
		return nil, fmt.Errorf("options must map names to strings, numbers or bools: %w", err)
	}
	if !val.IsWhollyKnown() {
		return nil, errors.New("options must be known values")
	}
	for k, v := range val.AsValueMap() {
		if v.IsNull() {
			continue
		}
		if k == parser.OptionModule || k == parser.OptionClass {
			return nil, fmt.Errorf("option %q must be set as an attribute", k)
		}
		out[k] = v.AsString()
	}
	return out, nil
}

// Parser returns the named parser block.
func (c *Config) Parser(name string) (*Parser, error) {
	p, ok := c.Parsers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoParser, name)
	}
	return p, nil
}

// Names returns the parser names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Parsers))
	for name := range c.Parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configure adds the parser's module, class and options to b. Options are
// added in name order.
func (p *Parser) Configure(b *parser.Builder) {
	b.Option(parser.OptionModule, p.Module)
	b.Option(parser.OptionClass, p.Class)

	keys := make([]string, 0, len(p.Options))
	for k := range p.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.Option(k, p.Options[k])
	}
}
