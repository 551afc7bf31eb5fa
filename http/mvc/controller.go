package mvc

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/meidoworks/nekoq-mvc/component/comphttp"
)

// Context is what a controller factory gets to build a controller for one request.
type Context struct {
	Request  comphttp.Request
	Response comphttp.Response
}

// ActionFunc handles one request. It must call send exactly once, possibly from another goroutine.
// A returned error is forwarded to the error channel unless send already won.
type ActionFunc func(ctx context.Context, params Params, send Send) error

// Send completes an action with a result. onComplete hooks run after the result
// executed successfully; their failures are discarded.
type Send func(result Result, onComplete ...func() error)

// ActionSet lets a controller list its actions explicitly instead of relying on method lookup.
type ActionSet interface {
	Actions() map[string]ActionFunc
}

// UnknownActionHandler is called for actions the controller does not define.
type UnknownActionHandler interface {
	HandleUnknownAction(ctx context.Context, params Params, send Send) error
}

const unknownActionMethod = "HandleUnknownAction"

var actionType = reflect.TypeOf(ActionFunc(nil))

// resolveAction finds the action on controller: ActionSet entry first, then an exported
// method named after the action with its first letter upper-cased, then HandleUnknownAction.
// fallback reports that HandleUnknownAction was picked.
func resolveAction(controller any, name string) (fn ActionFunc, fallback bool, ok bool) {
	if set, isSet := controller.(ActionSet); isSet {
		if fn, found := set.Actions()[name]; found && fn != nil {
			return fn, false, true
		}
	}
	if fn, found := methodAction(controller, name); found {
		return fn, false, true
	}
	if h, isHandler := controller.(UnknownActionHandler); isHandler {
		return h.HandleUnknownAction, true, true
	}
	return nil, false, false
}

func methodAction(controller any, name string) (ActionFunc, bool) {
	methodName := exportedName(name)
	if methodName == "" || methodName == unknownActionMethod {
		return nil, false
	}
	m := reflect.ValueOf(controller).MethodByName(methodName)
	if !m.IsValid() || !m.Type().ConvertibleTo(actionType) {
		return nil, false
	}
	return m.Convert(actionType).Interface().(ActionFunc), true
}

func exportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || !unicode.IsLetter(r) {
		return ""
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// ControllerFactory builds the controller instance for one request.
type ControllerFactory interface {
	CreateController(ctx context.Context, name string, c *Context) (any, error)
}

type ControllerFactoryFunc func(ctx context.Context, name string, c *Context) (any, error)

func (f ControllerFactoryFunc) CreateController(ctx context.Context, name string, c *Context) (any, error) {
	return f(ctx, name, c)
}

// ControllerCallback reports the outcome of a callback style factory.
type ControllerCallback func(err error, controller any)

type callbackFactory struct {
	fn     func(name string, c *Context, done ControllerCallback)
	logger *zap.Logger
}

// CallbackFactory adapts a factory that reports through a callback, synchronously or later.
// Only the first callback is honored; later ones are logged and dropped.
func CallbackFactory(fn func(name string, c *Context, done ControllerCallback), logger *zap.Logger) ControllerFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &callbackFactory{fn: fn, logger: logger}
}

type controllerOutcome struct {
	controller any
	err        error
}

func (f *callbackFactory) CreateController(ctx context.Context, name string, c *Context) (any, error) {
	cell := newOneshot[controllerOutcome]()
	done := func(err error, controller any) {
		if !cell.settle(controllerOutcome{controller: controller, err: err}) {
			f.logger.Warn("controller factory signalled more than once",
				zap.String("controller", name), zap.Error(err))
		}
	}

	func() {
		defer func() {
			if p := recover(); p != nil {
				done(panicError(p), nil)
			}
		}()
		f.fn(name, c, done)
	}()

	out, err := cell.wait(ctx)
	if err != nil {
		return nil, err
	}
	return out.controller, out.err
}

// Registry maps controller names to constructors.
type Registry struct {
	lock  sync.RWMutex
	ctors map[string]func(c *Context) (any, error)
}

func NewRegistry() *Registry {
	return &Registry{ctors: map[string]func(c *Context) (any, error){}}
}

func (r *Registry) Register(name string, ctor func(c *Context) (any, error)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.ctors[name] = ctor
}

func (r *Registry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	return names
}

// CreateController returns (nil, nil) for unknown names.
func (r *Registry) CreateController(_ context.Context, name string, c *Context) (any, error) {
	r.lock.RLock()
	ctor, ok := r.ctors[name]
	r.lock.RUnlock()
	if !ok {
		return nil, nil
	}
	return ctor(c)
}

var _ ControllerFactory = new(Registry)

// isNil also catches typed nil pointers, maps, funcs and the like boxed in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return errors.New(fmt.Sprint("panic: ", p))
}
