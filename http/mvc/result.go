package mvc

import (
	"context"
	"errors"
	"net/http"

	"github.com/meidoworks/nekoq-mvc/component/comphttp"
)

const (
	ContentTypeText = "text/plain"
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// Result describes how an action's outcome becomes an HTTP response.
// The set of implementations is closed to this package.
type Result interface {
	// Execute writes the result to res. A non-nil body is sent by the caller,
	// a non-nil error is forwarded to the error channel.
	Execute(ctx context.Context, res comphttp.Response) (body any, err error)

	sealed()
}

// Options are accepted by every result constructor.
// Only the first Options passed is used.
type Options struct {
	Status      int
	ContentType string
	// FileName turns a file result into an attachment download.
	FileName string
}

// Status is the bare status code form of Options.
func Status(code int) Options {
	return Options{Status: code}
}

func pickOptions(opts []Options, defaultStatus int) Options {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Status == 0 {
		o.Status = defaultStatus
	}
	return o
}

func applyCommonOptions(res comphttp.Response, o Options) {
	if o.Status != 0 {
		res.Status(o.Status)
	}
	if o.ContentType != "" {
		res.Set("Content-Type", o.ContentType)
	}
}

type ActionResult struct {
	Content any
	Options Options
}

func (r *ActionResult) sealed() {}

func (r *ActionResult) Execute(_ context.Context, res comphttp.Response) (any, error) {
	applyCommonOptions(res, r.Options)
	return nil, res.Send(r.Content)
}

// Action sends raw content. A nil content sends "" and an empty contentType means text/plain.
func Action(content any, contentType string, opts ...Options) *ActionResult {
	if content == nil {
		content = ""
	}
	o := pickOptions(opts, 0)
	if contentType == "" {
		contentType = ContentTypeText
	}
	o.ContentType = contentType
	return &ActionResult{Content: content, Options: o}
}

// Empty responds 204 with no body.
func Empty(contentType string) *ActionResult {
	return Action("", contentType, Status(http.StatusNoContent))
}

// JSON sends value with an application/json content type; encoding is left to the response.
func JSON(value any, opts ...Options) *ActionResult {
	return Action(value, ContentTypeJSON, opts...)
}

// CBOR sends value with an application/cbor content type; the response encodes it.
func CBOR(value any, opts ...Options) *ActionResult {
	return Action(value, ContentTypeCBOR, opts...)
}

type RedirectResult struct {
	URL     string
	Options Options
}

func (r *RedirectResult) sealed() {}

func (r *RedirectResult) Execute(_ context.Context, res comphttp.Response) (any, error) {
	applyCommonOptions(res, r.Options)
	return nil, res.Redirect(r.Options.Status, r.URL)
}

func Redirect(url string, opts ...Options) *RedirectResult {
	return &RedirectResult{URL: url, Options: pickOptions(opts, http.StatusFound)}
}

const defaultErrorMessage = "An error occurred"

type ErrorResult struct {
	Err     error
	Options Options
}

func (r *ErrorResult) sealed() {}

// Execute applies the status and hands the wrapped error back for the error channel.
func (r *ErrorResult) Execute(_ context.Context, res comphttp.Response) (any, error) {
	applyCommonOptions(res, r.Options)
	return nil, r.Err
}

func Error(err error, opts ...Options) *ErrorResult {
	if err == nil {
		err = errors.New(defaultErrorMessage)
	}
	return &ErrorResult{Err: err, Options: pickOptions(opts, http.StatusInternalServerError)}
}
