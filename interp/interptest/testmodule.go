package interptest

// TestModuleName is the name the fixture module is imported under.
const TestModuleName = "_test_module"

// TestModule mirrors parser/testdata/_test_module.py.
func TestModule(dir string) *Module {
	returnTrue := func(c *Call) (any, error) { return true, nil }
	returnNone := func(c *Call) (any, error) { return None, nil }

	return &Module{
		Dir: dir,
		Attrs: map[string]any{
			"ExistingParser": &Class{Name: "ExistingParser", New: func() *Instance {
				return &Instance{Methods: map[string]Func{"parse": returnTrue}}
			}},
			"CallableClass": &Class{Name: "CallableClass"},
			"NotCallableObject": &Instance{
				Class: "NotCallableObject",
			},
			"ClassWithInitMethod": &Class{Name: "ClassWithInitMethod", New: func() *Instance {
				return &Instance{Methods: map[string]Func{"init": returnNone}}
			}},
			"InitMethodReturnsNotNone": &Class{Name: "InitMethodReturnsNotNone", New: func() *Instance {
				return &Instance{Methods: map[string]Func{"init": returnTrue}}
			}},
			"InitMethodReturnsFalse": &Class{Name: "InitMethodReturnsFalse", New: func() *Instance {
				return &Instance{Methods: map[string]Func{
					"init": func(c *Call) (any, error) { return false, nil },
				}}
			}},
			"InitMethodRaises": &Class{Name: "InitMethodRaises", New: func() *Instance {
				return &Instance{Methods: map[string]Func{
					"init": func(c *Call) (any, error) {
						return nil, &Raise{Type: "ValueError", Message: "bad options"}
					},
				}}
			}},
			"InitNotCallable": &Class{Name: "InitNotCallable", New: func() *Instance {
				return &Instance{Attrs: map[string]any{"init": "not a method"}}
			}},
			"ParserWithoutInitMethod": &Class{Name: "ParserWithoutInitMethod", New: func() *Instance {
				return &Instance{Methods: map[string]Func{"parse": returnTrue}}
			}},
			"ParserForImport": &Class{Name: "ParserForImport", New: func() *Instance {
				return &Instance{Methods: map[string]Func{
					"parse": func(c *Call) (any, error) {
						if err := c.Message(0).Set("input", c.Str(1)); err != nil {
							return nil, err
						}
						return true, nil
					},
				}}
			}},
			"RaisingParser": &Class{Name: "RaisingParser", New: func() *Instance {
				return &Instance{Methods: map[string]Func{
					"parse": func(c *Call) (any, error) {
						return nil, &Raise{Type: "ValueError", Message: "cannot parse " + c.Str(1)}
					},
				}}
			}},
			"RejectingParser": &Class{Name: "RejectingParser", New: func() *Instance {
				return &Instance{Methods: map[string]Func{
					"parse": func(c *Call) (any, error) { return "", nil },
				}}
			}},
			"RaisingLenParser": &Class{Name: "RaisingLenParser", New: func() *Instance {
				inst := &Instance{Bool: func() (bool, error) {
					return false, &Raise{Type: "RuntimeError", Message: "no length"}
				}}
				inst.Methods = map[string]Func{
					"parse": func(c *Call) (any, error) { return inst, nil },
				}
				return inst
			}},
			"KeyValueParser": &Class{Name: "KeyValueParser", New: func() *Instance {
				inst := &Instance{State: map[string]string{}}
				inst.Methods = map[string]Func{
					"init": func(c *Call) (any, error) {
						for k, v := range c.Dict(0) {
							c.Self.State[k] = v
						}
						return None, nil
					},
					"parse": func(c *Call) (any, error) {
						msg := c.Message(0)
						prefix := c.Self.State["prefix"]
						if err := msg.Set(prefix+"message", c.Str(1)); err != nil {
							return nil, err
						}
						return c.Str(1) != "", nil
					},
				}
				return inst
			}},
		},
	}
}
