package interp

// Object is a reference to a guest object held in the guest's reference
// table. The facts it records were observed by the guest when the object
// was produced. Objects are only usable through a Guard of the runtime
// that produced them and must be released with Guard.Free.
type Object struct {
	rt       *Runtime
	ref      int64
	typ      string
	none     bool
	truthy   bool
	callable bool
	freed    bool
}

func newObject(rt *Runtime, resp Response) *Object {
	return &Object{
		rt:       rt,
		ref:      resp.Ref,
		typ:      resp.Type,
		none:     resp.None,
		truthy:   resp.Truthy,
		callable: resp.Callable,
	}
}

// Type returns the guest type name.
func (o *Object) Type() string {
	return o.typ
}

// Held reports whether the object occupies a guest table slot.
func (o *Object) Held() bool {
	return o.ref != 0 && !o.freed
}
