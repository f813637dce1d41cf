package lib

import (
	"context"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/dom"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

// DebugMessage returns a handler logging a fixed message at debug level,
// with the processed node's name when a node is being processed.
func DebugMessage(message string) transform.Handler {
	return transform.HandlerFunc([]string{"node", "run"}, func(_ context.Context, args transform.Args) (any, error) {
		fields := []zap.Field{}
		if node := args.Node(); node != nil {
			fields = append(fields, zap.String("node", dom.QualifiedName(node)))
		}
		args.Run().Logger().Debug(message, fields...)
		return nil, nil
	})
}

// DebugSymbols returns a handler logging the current values of the named
// symbols. Unresolvable names are logged as absent rather than failing.
func DebugSymbols(names ...string) transform.Handler {
	return transform.HandlerFunc([]string{"run"}, func(_ context.Context, args transform.Args) (any, error) {
		run := args.Run()
		fields := make([]zap.Field, 0, len(names))
		for _, name := range names {
			if v, ok := run.Resolve(name); ok {
				fields = append(fields, zap.Any(name, v))
			} else {
				fields = append(fields, zap.String(name, "<absent>"))
			}
		}
		run.Logger().Debug("symbols", fields...)
		return nil, nil
	})
}

// DebugDumpDocument returns a handler logging the serialized tree below the
// transformation root.
func DebugDumpDocument() transform.Handler {
	return transform.HandlerFunc([]string{"root", "run"}, func(_ context.Context, args transform.Args) (any, error) {
		args.Run().Logger().Debug("document dump", zap.String("document", dom.Marshal(args.Root())))
		return nil, nil
	})
}
