package lib

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/transform"
)

// PutVariable returns a handler storing a value in the run's context under
// name. A nil value stores the preceding handler's result, so PutVariable
// chains naturally after producing handlers.
func PutVariable(name string, value any) transform.Handler {
	return transform.HandlerFunc([]string{"context", "run", "previous_result"}, func(_ context.Context, args transform.Args) (any, error) {
		v := value
		if v == nil {
			v = args.Previous()
		}
		resolved, err := transform.ResolveValue(v, args.Run())
		if err != nil {
			return nil, err
		}
		args.Context().Set(name, resolved)
		return resolved, nil
	})
}

// GetVariable returns a handler whose result is the named context value, or
// nil when unset.
func GetVariable(name string) transform.Handler {
	return transform.HandlerFunc([]string{"context"}, func(_ context.Context, args transform.Args) (any, error) {
		return args.Context().Value(name), nil
	})
}
