package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/meidoworks/nekoq-mvc/http/mvc"
)

type homeController struct {
	store *NoteStore
}

func (h *homeController) Index(_ context.Context, _ mvc.Params, send mvc.Send) error {
	notes, err := h.store.List()
	if err != nil {
		return err
	}
	send(mvc.View("home", map[string]any{
		"Title": "Notes",
		"Notes": notes,
	}))
	return nil
}

// settingMirrorHosts lists the hosts the mirror action may fetch from. Empty disables mirroring.
const settingMirrorHosts = "mirror.hosts"

type notesDeps struct {
	Store       *NoteStore
	Fs          afero.Fs
	ExportDir   string
	JwtSecret   []byte
	MirrorHosts []string
	Logger      *zap.Logger
}

type notesController struct {
	*notesDeps
	// authErr is nil when the request carries a valid bearer token.
	authErr error
}

func (n *notesController) Index(_ context.Context, _ mvc.Params, send mvc.Send) error {
	notes, err := n.Store.List()
	if err != nil {
		return err
	}
	send(mvc.JSON(notes))
	return nil
}

func (n *notesController) Show(_ context.Context, params mvc.Params, send mvc.Send) error {
	note, err := n.lookup(params)
	if err != nil {
		send(notFoundOr(err))
		return nil
	}
	send(mvc.JSON(note))
	return nil
}

func (n *notesController) Create(_ context.Context, params mvc.Params, send mvc.Send) error {
	title := strings.TrimSpace(params.String("title"))
	if title == "" {
		send(mvc.Error(errBadRequest("title is required"), mvc.Status(http.StatusBadRequest)))
		return nil
	}
	note, err := n.Store.Create(title, params.String("body"))
	if err != nil {
		return err
	}
	send(mvc.JSON(note, mvc.Status(http.StatusCreated)), func() error {
		n.Logger.Info("note created", zap.Uint64("id", note.ID))
		return nil
	})
	return nil
}

// Destroy is reachable through more than one route, so it checks the token itself.
func (n *notesController) Destroy(_ context.Context, params mvc.Params, send mvc.Send) error {
	if n.authErr != nil {
		send(mvc.Error(errUnauthorized{n.authErr}))
		return nil
	}
	id, err := noteID(params)
	if err != nil {
		send(notFoundOr(err))
		return nil
	}
	if err := n.Store.Delete(id); err != nil {
		send(notFoundOr(err))
		return nil
	}
	send(mvc.Empty(""))
	return nil
}

// Export writes all notes to a JSON file and offers it as a download.
func (n *notesController) Export(_ context.Context, _ mvc.Params, send mvc.Send) error {
	notes, err := n.Store.List()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return err
	}
	if err := n.Fs.MkdirAll(n.ExportDir, 0o755); err != nil {
		return err
	}
	p := filepath.Join(n.ExportDir, "notes.json")
	if err := afero.WriteFile(n.Fs, p, data, 0o644); err != nil {
		return err
	}
	send(mvc.File(p, mvc.Options{FileName: "notes.json", ContentType: mvc.ContentTypeJSON}))
	return nil
}

// Mirror proxies a remote file as a download, named after its last path segment unless name is given.
func (n *notesController) Mirror(_ context.Context, params mvc.Params, send mvc.Send) error {
	u, err := url.Parse(params.String("url"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		send(mvc.Error(errBadRequest("url must be an absolute http(s) url"), mvc.Status(http.StatusBadRequest)))
		return nil
	}
	if !n.mirrorAllowed(u.Hostname()) {
		send(mvc.Error(fmt.Errorf("mirroring from %q is not allowed", u.Hostname()), mvc.Status(http.StatusForbidden)))
		return nil
	}
	name := params.String("name")
	if name == "" {
		name = path.Base(u.Path)
	}
	send(mvc.File(u.String(), mvc.Options{FileName: name}))
	return nil
}

func (n *notesController) mirrorAllowed(host string) bool {
	for _, allowed := range n.MirrorHosts {
		if strings.EqualFold(strings.TrimSpace(allowed), host) {
			return true
		}
	}
	return false
}

// Legacy keeps the old /list URL working.
func (n *notesController) Legacy(_ context.Context, _ mvc.Params, send mvc.Send) error {
	send(mvc.Redirect("/notes", mvc.Status(http.StatusMovedPermanently)))
	return nil
}

func (n *notesController) HandleUnknownAction(_ context.Context, params mvc.Params, send mvc.Send) error {
	send(mvc.Error(fmt.Errorf("notes has no action %q", params.Action()), mvc.Status(http.StatusNotFound)))
	return nil
}

func (n *notesController) lookup(params mvc.Params) (*Note, error) {
	id, err := noteID(params)
	if err != nil {
		return nil, err
	}
	return n.Store.Get(id)
}

func noteID(params mvc.Params) (uint64, error) {
	id, err := strconv.ParseUint(params.String("id"), 10, 64)
	if err != nil {
		return 0, ErrNoteNotFound
	}
	return id, nil
}

func notFoundOr(err error) mvc.Result {
	if errors.Is(err, ErrNoteNotFound) {
		return mvc.Error(err, mvc.Status(http.StatusNotFound))
	}
	return mvc.Error(err)
}

type errBadRequest string

func (e errBadRequest) Error() string {
	return string(e)
}

func (e errBadRequest) StatusCode() int {
	return http.StatusBadRequest
}

type errUnauthorized struct {
	cause error
}

func (e errUnauthorized) Error() string {
	return "unauthorized: " + e.cause.Error()
}

func (e errUnauthorized) Unwrap() error {
	return e.cause
}

func (e errUnauthorized) StatusCode() int {
	return http.StatusUnauthorized
}

func newRegistry(deps *notesDeps) *mvc.Registry {
	registry := mvc.NewRegistry()
	registry.Register("home", func(*mvc.Context) (any, error) {
		return &homeController{store: deps.Store}, nil
	})
	registry.Register("notes", func(c *mvc.Context) (any, error) {
		authErr := ErrNoBearerToken
		if c != nil && c.Request != nil && c.Request.Raw() != nil {
			_, authErr = verifyBearer(c.Request.Raw(), deps.JwtSecret)
		}
		return &notesController{notesDeps: deps, authErr: authErr}, nil
	})
	return registry
}
