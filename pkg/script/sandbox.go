package script

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/wehubfusion/Daedalus/pkg/dom"
)

// newRuntime creates a sandboxed goja runtime. Host-environment globals
// that scripts might probe for are pinned to undefined so snippets written
// for Node.js fail fast instead of half-working.
func newRuntime() (*goja.Runtime, error) {
	vm := goja.New()
	for _, name := range []string{
		"require", "module", "exports", "process", "global",
		"__dirname", "__filename", "Buffer", "setImmediate", "clearImmediate",
	} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return nil, fmt.Errorf("sandbox %s: %w", name, err)
		}
	}
	return vm, nil
}

// nodeObject exposes a tree node to scripts: read accessors plus the
// mutation methods the handler library offers, so scripted handlers can
// edit the node they were dispatched for.
func nodeObject(vm *goja.Runtime, n *dom.Node) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("name", dom.LocalName(n))
	_ = obj.Set("namespace", dom.Namespace(n))
	_ = obj.Set("text", dom.Text(n))
	_ = obj.Set("attributes", dom.Attributes(n))

	_ = obj.Set("rename", func(call goja.FunctionCall) goja.Value {
		dom.Rename(n, call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("setText", func(call goja.FunctionCall) goja.Value {
		dom.SetText(n, call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		dom.SetAttribute(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	_ = obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(dom.RemoveAttribute(n, call.Argument(0).String()))
	})
	_ = obj.Set("remove", func(call goja.FunctionCall) goja.Value {
		dom.Remove(n, call.Argument(0).ToBoolean())
		return goja.Undefined()
	})
	return obj
}
