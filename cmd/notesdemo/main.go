package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	mvcchi "github.com/meidoworks/nekoq-mvc/http/chi"
	"github.com/meidoworks/nekoq-mvc/http/mvc"
	"github.com/meidoworks/nekoq-mvc/http/stdserver"
)

//go:embed views
var embeddedViews embed.FS

func main() {
	if err := newCliApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCliApp() *cli.App {
	return &cli.App{
		Name:  "notesdemo",
		Usage: "sample note keeping service built on nekoq-mvc",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "config file (yaml, json or toml)", EnvVars: []string{"NOTESDEMO_CONFIG"}},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the http service",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address, overrides the config"},
					&cli.StringFlag{Name: "db", Value: "notes.db", Usage: "bbolt database file"},
					&cli.StringFlag{Name: "views", Usage: "view directory, embedded views when empty"},
					&cli.StringFlag{Name: "export-dir", Value: filepath.Join(os.TempDir(), "notesdemo"), Usage: "where exports are written"},
					&cli.StringFlag{Name: "jwt-secret", Required: true, EnvVars: []string{"NOTESDEMO_JWT_SECRET"}},
					&cli.BoolFlag{Name: "debug", Usage: "development logging"},
				},
				Action: serve,
			},
			{
				Name:  "token",
				Usage: "print a bearer token for the protected routes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "jwt-secret", Required: true, EnvVars: []string{"NOTESDEMO_JWT_SECRET"}},
					&cli.StringFlag{Name: "subject", Value: "admin"},
					&cli.DurationFlag{Name: "ttl", Value: time.Hour},
				},
				Action: func(c *cli.Context) error {
					token, err := IssueToken([]byte(c.String("jwt-secret")), c.String("subject"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, token)
					return nil
				},
			},
		},
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve(c *cli.Context) error {
	logger, err := newLogger(c.Bool("debug"))
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	settings, err := mvcchi.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		settings.Set(mvcchi.SettingAddr, c.String("addr"))
	}

	store, err := OpenNoteStore(c.String("db"))
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	app, err := newApplication(&applicationReq{
		Settings:  settings,
		Store:     store,
		Fs:        afero.NewOsFs(),
		ViewDir:   c.String("views"),
		ExportDir: c.String("export-dir"),
		JwtSecret: []byte(c.String("jwt-secret")),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	srv, err := stdserver.StartStdHttpServer(&stdserver.StdHttpServerReq{
		Addr:    settings.GetString(mvcchi.SettingAddr),
		Handler: app,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-ctx.Done():
	case <-srv.Done():
		return srv.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type applicationReq struct {
	Settings  *viper.Viper
	Store     *NoteStore
	Fs        afero.Fs
	ViewDir   string
	ExportDir string
	JwtSecret []byte
	Logger    *zap.Logger
}

func newApplication(req *applicationReq) (*mvcchi.App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	var views mvcchi.ViewEngine
	if req.ViewDir == "" {
		views = mvcchi.NewTemplateEngine(mvcchi.TemplateEngineConfig{
			Fs:    afero.FromIOFS{FS: embeddedViews},
			Dir:   "views",
			Cache: true,
		})
	}
	if req.ViewDir != "" {
		req.Settings.Set(mvcchi.SettingViews, req.ViewDir)
	}

	app, err := mvcchi.NewApp(&mvcchi.AppConfig{
		Factory: newRegistry(&notesDeps{
			Store:       req.Store,
			Fs:          req.Fs,
			ExportDir:   req.ExportDir,
			JwtSecret:   req.JwtSecret,
			MirrorHosts: req.Settings.GetStringSlice(settingMirrorHosts),
			Logger:      req.Logger,
		}),
		Settings:   req.Settings,
		Views:      views,
		Fs:         req.Fs,
		Logger:     req.Logger,
		Registerer: reg,
	})
	if err != nil {
		return nil, err
	}

	r := app.Router()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if err := errors.Join(
		app.Get("/", mvc.Params{"controller": "home"}),
		app.Get("/notes", mvc.Params{"controller": "notes"}),
		app.Post("/notes", mvc.Params{"controller": "notes", "action": "create"}),
		app.Get("/notes/export", mvc.Params{"controller": "notes", "action": "export"}),
		app.Get("/notes/mirror", mvc.Params{"controller": "notes", "action": "mirror"}),
		app.Get("/notes/{id}", mvc.Params{"controller": "notes", "action": "show"}),
		app.Delete("/notes/{id}", mvc.Params{"controller": "notes", "action": "destroy"}, RequireBearer(req.JwtSecret)),
		app.Get("/list", mvc.Params{"controller": "notes", "action": "legacy"}),
	); err != nil {
		return nil, err
	}

	routes, err := mvcchi.LoadRoutes(req.Settings)
	if err != nil {
		return nil, err
	}
	if err := app.RegisterRoutes(routes); err != nil {
		return nil, err
	}
	if err := app.All("/{controller}/{action}", nil); err != nil {
		return nil, err
	}

	app.LogRoutes()
	return app, nil
}
