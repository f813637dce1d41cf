// Package script evaluates JavaScript snippets as transformation
// conditions and handlers, backed by a pool of sandboxed goja runtimes.
// Scripts see the processed node as a `node` object with read accessors
// and mutation methods, the run's context namespace as `context`, and any
// further declared symbols as globals.
package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/wehubfusion/Daedalus/pkg/dom"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

// DefaultPoolSize is the runtime pool capacity used when none is given.
const DefaultPoolSize = 8

// DefaultEvalTimeout bounds a single script evaluation. Runaway scripts are
// interrupted rather than stalling the run.
const DefaultEvalTimeout = 5 * time.Second

// Engine compiles scripts once and evaluates them on pooled runtimes, so
// script-backed steps stay safe under concurrent Execute calls.
type Engine struct {
	pool        chan *goja.Runtime
	evalTimeout time.Duration
	mu          sync.Mutex
	closed      bool
}

// NewEngine creates an engine with a bounded runtime pool. Runtimes are
// created lazily and recycled after each evaluation.
func NewEngine(poolSize int) *Engine {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &Engine{
		pool:        make(chan *goja.Runtime, poolSize),
		evalTimeout: DefaultEvalTimeout,
	}
}

// Close drains and discards the pooled runtimes. Evaluations after Close
// fail.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for {
		select {
		case <-e.pool:
		default:
			return
		}
	}
}

// handlerBindings is the default dependency list for script handlers.
var handlerBindings = []string{"node", "root", "previous_result", "context", "nsmap"}

// Condition compiles source as a boolean expression over the processed
// node. The expression's truthiness is the condition result.
func (e *Engine) Condition(source string) (transform.Condition, error) {
	program, err := goja.Compile("condition", source, true)
	if err != nil {
		return nil, fmt.Errorf("compile condition script: %w", err)
	}
	return transform.ConditionFunc(func(node *dom.Node, run *transform.Run) (bool, error) {
		vm, err := e.acquire()
		if err != nil {
			return false, err
		}
		defer e.release(vm, []string{"node", "context"})

		if err := vm.Set("node", nodeObject(vm, node)); err != nil {
			return false, err
		}
		if run != nil {
			if err := vm.Set("context", run.Context().Values()); err != nil {
				return false, err
			}
		}
		value, err := e.runBounded(vm, program)
		if err != nil {
			return false, fmt.Errorf("condition script: %w", err)
		}
		return value.ToBoolean(), nil
	}), nil
}

// runBounded evaluates a program under the engine's evaluation timeout,
// interrupting the runtime when it elapses.
func (e *Engine) runBounded(vm *goja.Runtime, program *goja.Program) (goja.Value, error) {
	timer := time.AfterFunc(e.evalTimeout, func() {
		vm.Interrupt("evaluation timeout")
	})
	defer timer.Stop()

	value, err := vm.RunProgram(program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			vm.ClearInterrupt()
			return nil, fmt.Errorf("evaluation exceeded %s", e.evalTimeout)
		}
		return nil, err
	}
	return value, nil
}

// Handler compiles source as a handler body. The script's completion value
// is the handler result; returning a flow signal is not possible from
// scripts. With no explicit needs the default bindings are declared.
func (e *Engine) Handler(source string, needs ...string) (transform.Handler, error) {
	program, err := goja.Compile("handler", source, true)
	if err != nil {
		return nil, fmt.Errorf("compile handler script: %w", err)
	}
	if len(needs) == 0 {
		needs = handlerBindings
	}
	return scriptHandler{engine: e, program: program, needs: needs}, nil
}

type scriptHandler struct {
	engine  *Engine
	program *goja.Program
	needs   []string
}

func (h scriptHandler) Needs() []string { return h.needs }

func (h scriptHandler) Apply(_ context.Context, args transform.Args) (any, error) {
	vm, err := h.engine.acquire()
	if err != nil {
		return nil, err
	}
	defer h.engine.release(vm, h.needs)

	for _, name := range h.needs {
		value, ok := args[name]
		if !ok {
			continue
		}
		if err := vm.Set(name, bindValue(vm, value)); err != nil {
			return nil, fmt.Errorf("bind %q: %w", name, err)
		}
	}
	result, err := h.engine.runBounded(vm, h.program)
	if err != nil {
		return nil, fmt.Errorf("handler script: %w", err)
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}
	return result.Export(), nil
}

// bindValue converts engine values into script-friendly shapes: nodes
// become node objects, context namespaces become plain maps.
func bindValue(vm *goja.Runtime, value any) any {
	switch v := value.(type) {
	case *dom.Node:
		return nodeObject(vm, v)
	case *transform.Context:
		return v.Values()
	default:
		return v
	}
}

func (e *Engine) acquire() (*goja.Runtime, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, fmt.Errorf("script engine is closed")
	}
	e.mu.Unlock()

	select {
	case vm := <-e.pool:
		return vm, nil
	default:
		return newRuntime()
	}
}

// release clears the bindings of the finished evaluation and returns the
// runtime to the pool, discarding it when the pool is full or closed.
// The closed check and the pool send happen under the mutex, so a Close
// racing an in-flight evaluation cannot strand a runtime in the pool.
func (e *Engine) release(vm *goja.Runtime, bound []string) {
	for _, name := range bound {
		_ = vm.GlobalObject().Delete(name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.pool <- vm:
	default:
	}
}
