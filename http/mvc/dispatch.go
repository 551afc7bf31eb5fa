package mvc

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/meidoworks/nekoq-mvc/component/comphttp"
)

const DefaultAction = "index"

type DispatcherConfig struct {
	Factory ControllerFactory
	// DefaultAction is used when neither the route nor the path names an action. Defaults to "index".
	DefaultAction string

	Logger     *zap.Logger
	Registerer prometheus.Registerer
	// HTTPClient is used by remote file results.
	HTTPClient *http.Client
}

// Dispatcher turns merged request parameters into a controller action call and executes its result.
type Dispatcher struct {
	factory       ControllerFactory
	defaultAction atomic.Pointer[string]
	client        *http.Client

	logger  *zap.Logger
	metrics *dispatchMetrics
}

// Handler is the framework-neutral form of the dispatch middleware.
type Handler func(req comphttp.Request, res comphttp.Response, next comphttp.Next)

func NewDispatcher(cfg *DispatcherConfig) (*Dispatcher, error) {
	if cfg == nil || cfg.Factory == nil {
		return nil, ErrNoControllerFactory
	}
	metrics, err := newDispatchMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		factory: cfg.Factory,
		client:  cfg.HTTPClient,
		logger:  cfg.Logger,
		metrics: metrics,
	}
	d.SetDefaultAction(cfg.DefaultAction)
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d, nil
}

func (d *Dispatcher) DefaultAction() string {
	return *d.defaultAction.Load()
}

// SetDefaultAction changes the default action for requests dispatched from now on.
// An empty name restores "index".
func (d *Dispatcher) SetDefaultAction(name string) {
	if name == "" {
		name = DefaultAction
	}
	d.defaultAction.Store(&name)
}

// Middleware binds the dispatcher to one route's static params.
func (d *Dispatcher) Middleware(static Params) Handler {
	static = static.Clone()
	return func(req comphttp.Request, res comphttp.Response, next comphttp.Next) {
		d.Dispatch(req, res, static, next)
	}
}

type actionOutcome struct {
	result Result
	hooks  []func() error
	err    error
}

// Dispatch serves one request. It returns once the result executed, the error was
// handed to next, or the request context ended. next is called at most once and
// never together with a result execution.
func (d *Dispatcher) Dispatch(req comphttp.Request, res comphttp.Response, static Params, next comphttp.Next) {
	start := time.Now()
	ctx := req.Context()
	if d.client != nil {
		ctx = WithHTTPClient(ctx, d.client)
	}

	body, bodyErr := req.Body()
	params := MergeParams(ParamSources{
		Path:  req.PathParams(),
		Query: req.Query(),
		Body:  body,
	}, static)
	controllerName := params.Controller()
	action := params.Action()
	if action == "" {
		action = d.DefaultAction()
	}
	logger := d.logger.With(zap.String("controller", controllerName), zap.String("action", action))
	controllerLabel, actionLabel := unknownLabel, unknownLabel
	observe := func(outcome string) {
		d.metrics.observe(controllerLabel, actionLabel, outcome, start)
	}
	fail := func(err error) {
		outcome := outcomeError
		var de *DispatchError
		if errors.As(err, &de) {
			outcome = de.Kind.String()
		}
		logger.Debug("dispatch failed", zap.Error(err))
		observe(outcome)
		next(err)
	}
	abandon := func(err error) {
		logger.Debug("request ended before dispatch completed", zap.Error(err))
		observe(outcomeAbandoned)
	}

	if bodyErr != nil {
		fail(bodyErr)
		return
	}

	controller, err := d.createController(ctx, controllerName, &Context{Request: req, Response: res})
	if ctx.Err() != nil {
		abandon(ctx.Err())
		return
	}
	if err != nil || isNil(controller) {
		fail(newDispatchError(KindControllerCreation, controllerName, action, err))
		return
	}
	controllerLabel = controllerName

	fn, fallback, ok := resolveAction(controller, action)
	if !ok {
		fail(newDispatchError(KindActionNotFound, controllerName, action, nil))
		return
	}
	if !fallback {
		actionLabel = action
	}

	cell := newOneshot[actionOutcome]()
	send := func(result Result, onComplete ...func() error) {
		o := actionOutcome{result: result, hooks: onComplete}
		if isNil(result) {
			o = actionOutcome{err: newDispatchError(KindResultMissing, controllerName, action, nil)}
		}
		if !cell.settle(o) {
			logger.Warn("action completed more than once, later result dropped")
		}
	}
	if err := invokeAction(ctx, fn, params, send); err != nil {
		if !cell.settle(actionOutcome{err: err}) {
			logger.Warn("action failed after it completed, error dropped", zap.Error(err))
		}
	}

	out, err := cell.wait(ctx)
	if err != nil {
		abandon(err)
		return
	}
	if out.err != nil {
		fail(out.err)
		return
	}

	logger.Debug("executing result")
	respBody, panicked, err := executeResult(ctx, out.result, res)
	if err != nil {
		if _, ok := out.result.(*ErrorResult); !ok || panicked {
			err = newDispatchError(KindResultExecution, controllerName, action, err)
		}
		fail(err)
		return
	}
	if respBody != nil {
		if err := sendBody(res, respBody); err != nil {
			logger.Error("writing result body failed", zap.Error(err))
			observe(outcomeError)
			return
		}
	}
	observe(outcomeOK)
	runHooks(logger, out.hooks)
}

func (d *Dispatcher) createController(ctx context.Context, name string, c *Context) (controller any, err error) {
	defer func() {
		if p := recover(); p != nil {
			controller, err = nil, panicError(p)
		}
	}()
	return d.factory.CreateController(ctx, name, c)
}

func invokeAction(ctx context.Context, fn ActionFunc, params Params, send Send) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError(p)
		}
	}()
	return fn(ctx, params, send)
}

func executeResult(ctx context.Context, result Result, res comphttp.Response) (body any, panicked bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			body, panicked, err = nil, true, panicError(p)
		}
	}()
	body, err = result.Execute(ctx, res)
	return body, false, err
}

func sendBody(res comphttp.Response, body any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError(p)
		}
	}()
	return res.Send(body)
}

func runHooks(logger *zap.Logger, hooks []func() error) {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		func() {
			defer func() {
				if p := recover(); p != nil {
					logger.Debug("completion hook panicked", zap.Any("panic", p))
				}
			}()
			if err := hook(); err != nil {
				logger.Debug("completion hook failed", zap.Error(err))
			}
		}()
	}
}
