package transform

import (
	"fmt"
	"reflect"
	"strings"
)

// Resolver is a deferred, named lookup against the symbol chain. Handler
// factories accept a Resolver wherever a literal value would do, deferring
// the lookup to execution time. Dotted paths traverse nested values:
// Ref("context.target") resolves the symbol "context" and then its "target"
// member.
type Resolver struct {
	path     string
	segments []string
}

// Ref creates a resolver for a symbol name or dotted path.
func Ref(path string) Resolver {
	return Resolver{path: path, segments: strings.Split(path, ".")}
}

// Path returns the path the resolver was created with.
func (r Resolver) Path() string { return r.path }

// Resolve looks the path up against the run's symbol chain.
func (r Resolver) Resolve(run *Run) (any, error) {
	v, ok := run.Resolve(r.segments[0])
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSymbolNotFound, r.segments[0])
	}
	return dotLookup(v, r.segments[1:])
}

// ResolveValue returns v itself, or its resolution against run when v is a
// Resolver. Handler factories call this once per invocation for arguments
// that may be literal or deferred.
func ResolveValue(v any, run *Run) (any, error) {
	if ref, ok := v.(Resolver); ok {
		return ref.Resolve(run)
	}
	return v, nil
}

// dotLookup traverses the remaining path segments over maps, context
// namespaces and exported struct fields.
func dotLookup(obj any, segments []string) (any, error) {
	for _, segment := range segments {
		next, err := lookupMember(obj, segment)
		if err != nil {
			return nil, err
		}
		obj = next
	}
	return obj, nil
}

func lookupMember(obj any, name string) (any, error) {
	switch v := obj.(type) {
	case nil:
		return nil, fmt.Errorf("%w: cannot look up %q on nil", ErrUnresolvablePath, name)
	case *Context:
		member, ok := v.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: context has no value %q", ErrUnresolvablePath, name)
		}
		return member, nil
	case map[string]any:
		member, ok := v[name]
		if !ok {
			return nil, fmt.Errorf("%w: map has no key %q", ErrUnresolvablePath, name)
		}
		return member, nil
	case map[string]string:
		member, ok := v[name]
		if !ok {
			return nil, fmt.Errorf("%w: map has no key %q", ErrUnresolvablePath, name)
		}
		return member, nil
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: cannot look up %q on nil", ErrUnresolvablePath, name)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: cannot look up %q on %T", ErrUnresolvablePath, name, obj)
	}
	field := rv.FieldByNameFunc(func(f string) bool {
		return strings.EqualFold(f, name)
	})
	if !field.IsValid() || !field.CanInterface() {
		return nil, fmt.Errorf("%w: %T has no accessible field %q", ErrUnresolvablePath, obj, name)
	}
	return field.Interface(), nil
}
