package chi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/meidoworks/nekoq-mvc/component/comphttp"
	"github.com/meidoworks/nekoq-mvc/http/mvc"
)

var (
	ErrMethodInvalid = errors.New("method is invalid")
	ErrEmptyURL      = errors.New("url is empty")
)

// MethodAll registers a route for every method.
const MethodAll = "ALL"

var (
	httpMethods = map[string]struct{}{
		http.MethodGet:     {},
		http.MethodPost:    {},
		http.MethodPut:     {},
		http.MethodConnect: {},
		http.MethodDelete:  {},
		http.MethodHead:    {},
		http.MethodOptions: {},
		http.MethodPatch:   {},
		http.MethodTrace:   {},
	}
)

type Middlewares []func(http.Handler) http.Handler

// ErrorHandler presents errors forwarded by the dispatcher. status is the code the
// error or the result asked for, 500 otherwise.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, status int, err error)

type AppConfig struct {
	Factory mvc.ControllerFactory

	// Router defaults to a new chi mux.
	Router chi.Router
	// Settings defaults to NewSettings().
	Settings *viper.Viper
	// Views defaults to a TemplateEngine configured from Settings.
	Views ViewEngine
	// Fs serves file results and default views. Defaults to the OS filesystem.
	Fs afero.Fs

	ErrorHandler ErrorHandler
	Logger       *zap.Logger
	Registerer   prometheus.Registerer
	HTTPClient   *http.Client
}

// App registers chi routes whose final handler dispatches to controllers.
type App struct {
	router     chi.Router
	dispatcher *mvc.Dispatcher
	settings   *viper.Viper

	fs           afero.Fs
	views        ViewEngine
	ownViews     bool
	errorHandler ErrorHandler
	logger       *zap.Logger

	lock   sync.RWMutex
	routes []mvc.Route
}

func NewApp(cfg *AppConfig) (*App, error) {
	if cfg == nil || cfg.Factory == nil {
		return nil, mvc.ErrNoControllerFactory
	}
	app := &App{
		router:       cfg.Router,
		settings:     cfg.Settings,
		fs:           cfg.Fs,
		views:        cfg.Views,
		errorHandler: cfg.ErrorHandler,
		logger:       cfg.Logger,
	}
	if app.router == nil {
		app.router = chi.NewRouter()
	}
	if app.settings == nil {
		app.settings = NewSettings()
	}
	if app.fs == nil {
		app.fs = afero.NewOsFs()
	}
	if app.logger == nil {
		app.logger = zap.NewNop()
	}
	if app.views == nil {
		app.ownViews = true
		app.views = app.defaultViews()
	}
	if app.errorHandler == nil {
		app.errorHandler = app.defaultErrorHandler
	}

	dispatcher, err := mvc.NewDispatcher(&mvc.DispatcherConfig{
		Factory:       cfg.Factory,
		DefaultAction: app.settings.GetString(SettingDefaultAction),
		Logger:        app.logger,
		Registerer:    cfg.Registerer,
		HTTPClient:    cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	app.dispatcher = dispatcher
	return app, nil
}

func (a *App) defaultViews() ViewEngine {
	return NewTemplateEngine(TemplateEngineConfig{
		Fs:        a.fs,
		Dir:       a.settings.GetString(SettingViews),
		Extension: a.settings.GetString(SettingViewExtension),
		Cache:     a.settings.GetBool(SettingViewCache),
	})
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Router exposes the underlying chi router for everything this package does not wrap.
func (a *App) Router() chi.Router {
	return a.router
}

func (a *App) Dispatcher() *mvc.Dispatcher {
	return a.dispatcher
}

// Setting reads an application setting.
func (a *App) Setting(key string) any {
	return a.settings.Get(key)
}

// Set writes an application setting. View settings rebuild the default view engine
// and the default action setting is pushed to the dispatcher.
func (a *App) Set(key string, value any) {
	a.settings.Set(key, value)
	switch strings.ToLower(key) {
	case SettingDefaultAction:
		a.dispatcher.SetDefaultAction(a.settings.GetString(SettingDefaultAction))
	case SettingViews, SettingViewExtension, SettingViewCache:
		if a.ownViews {
			a.lock.Lock()
			a.views = a.defaultViews()
			a.lock.Unlock()
		}
	}
}

func (a *App) Settings() *viper.Viper {
	return a.settings
}

func (a *App) viewEngine() ViewEngine {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.views
}

// Middleware returns the dispatch handler bound to params, for mounting by hand.
func (a *App) Middleware(params mvc.Params) http.Handler {
	mw := a.dispatcher.Middleware(params)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := newResponse(w, r, a.fs, a.viewEngine())
		mw(newRequest(r), res, func(err error) {
			a.handleError(res, r, err)
		})
	})
}

// Handle registers pattern for method. Middlewares run before the dispatch handler.
// The verb helpers below are shorthands for it.
func (a *App) Handle(method, pattern string, params mvc.Params, middlewares ...func(http.Handler) http.Handler) error {
	method = strings.ToUpper(strings.TrimSpace(method))
	if _, ok := httpMethods[method]; !ok && method != MethodAll {
		return fmt.Errorf("%w: %s", ErrMethodInvalid, method)
	}
	if strings.TrimSpace(pattern) == "" {
		return ErrEmptyURL
	}
	a.handle(method, pattern, params, middlewares)
	return nil
}

func (a *App) handle(method, pattern string, params mvc.Params, middlewares Middlewares) {
	if params == nil {
		params = mvc.Params{}
	}
	r := a.router
	if len(middlewares) > 0 {
		r = r.With(middlewares...)
	}
	h := a.Middleware(params)
	if method == MethodAll {
		r.Handle(pattern, h)
	} else {
		r.Method(method, pattern, h)
	}

	a.lock.Lock()
	a.routes = append(a.routes, mvc.Route{Method: method, Pattern: pattern, Params: params.Clone()})
	a.lock.Unlock()
}

func (a *App) Get(pattern string, params mvc.Params, middlewares ...func(http.Handler) http.Handler) error {
	return a.Handle(http.MethodGet, pattern, params, middlewares...)
}

func (a *App) Post(pattern string, params mvc.Params, middlewares ...func(http.Handler) http.Handler) error {
	return a.Handle(http.MethodPost, pattern, params, middlewares...)
}

func (a *App) Put(pattern string, params mvc.Params, middlewares ...func(http.Handler) http.Handler) error {
	return a.Handle(http.MethodPut, pattern, params, middlewares...)
}

func (a *App) Patch(pattern string, params mvc.Params, middlewares ...func(http.Handler) http.Handler) error {
	return a.Handle(http.MethodPatch, pattern, params, middlewares...)
}

func (a *App) Delete(pattern string, params mvc.Params, middlewares ...func(http.Handler) http.Handler) error {
	return a.Handle(http.MethodDelete, pattern, params, middlewares...)
}

// Del is an alias of Delete.
func (a *App) Del(pattern string, params mvc.Params, middlewares ...func(http.Handler) http.Handler) error {
	return a.Delete(pattern, params, middlewares...)
}

func (a *App) Head(pattern string, params mvc.Params, middlewares ...func(http.Handler) http.Handler) error {
	return a.Handle(http.MethodHead, pattern, params, middlewares...)
}

func (a *App) Options(pattern string, params mvc.Params, middlewares ...func(http.Handler) http.Handler) error {
	return a.Handle(http.MethodOptions, pattern, params, middlewares...)
}

func (a *App) Connect(pattern string, params mvc.Params, middlewares ...func(http.Handler) http.Handler) error {
	return a.Handle(http.MethodConnect, pattern, params, middlewares...)
}

func (a *App) Trace(pattern string, params mvc.Params, middlewares ...func(http.Handler) http.Handler) error {
	return a.Handle(http.MethodTrace, pattern, params, middlewares...)
}

func (a *App) All(pattern string, params mvc.Params, middlewares ...func(http.Handler) http.Handler) error {
	return a.Handle(MethodAll, pattern, params, middlewares...)
}

// RegisterRoutes registers a static route table, e.g. one from LoadRoutes.
func (a *App) RegisterRoutes(routes []mvc.Route) error {
	for _, route := range routes {
		if err := a.Handle(route.Method, route.Pattern, route.Params); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Routes() []mvc.Route {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return append([]mvc.Route(nil), a.routes...)
}

func (a *App) LogRoutes() {
	for _, route := range a.Routes() {
		a.logger.Info("route registered", zap.Stringer("route", route))
	}
}

func (a *App) handleError(res *response, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var sc comphttp.StatusCoder
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	} else if res.status >= http.StatusBadRequest {
		status = res.status
	}
	if res.Written() {
		a.logger.Error("request failed after the response was committed",
			zap.String("path", r.URL.Path), zap.Error(err))
		return
	}
	a.errorHandler(res.w, r, status, err)
}

func (a *App) defaultErrorHandler(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.Int("status", status), zap.Error(err))
	} else {
		a.logger.Debug("request rejected", zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.Int("status", status), zap.Error(err))
	}
	http.Error(w, http.StatusText(status), status)
}
