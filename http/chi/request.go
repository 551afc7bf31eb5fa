package chi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/meidoworks/nekoq-mvc/component/comphttp"
)

const (
	MIMEJSON      = "application/json"
	MIMECBOR      = "application/cbor"
	MIMEForm      = "application/x-www-form-urlencoded"
	MIMEMultipart = "multipart/form-data"

	defaultMaxMemory = 32 << 20
)

var cborDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// BodyDecodeError is returned for request bodies that cannot be decoded.
type BodyDecodeError struct {
	ContentType string
	Err         error
}

func (e *BodyDecodeError) Error() string {
	return fmt.Sprintf("unable to decode %s request body: %s", e.ContentType, e.Err)
}

func (e *BodyDecodeError) Unwrap() error {
	return e.Err
}

func (e *BodyDecodeError) StatusCode() int {
	return http.StatusBadRequest
}

type request struct {
	r *http.Request

	bodyOnce sync.Once
	body     map[string]any
	bodyErr  error
}

func newRequest(r *http.Request) *request {
	return &request{r: r}
}

func (q *request) Context() context.Context {
	return q.r.Context()
}

func (q *request) Raw() *http.Request {
	return q.r
}

func (q *request) PathParams() map[string]string {
	return GetUrlParams(q.r)
}

func (q *request) Query() url.Values {
	return q.r.URL.Query()
}

// Body decodes the body once; JSON, CBOR, urlencoded and multipart forms are understood.
func (q *request) Body() (map[string]any, error) {
	q.bodyOnce.Do(func() {
		q.body, q.bodyErr = decodeBody(q.r)
	})
	return q.body, q.bodyErr
}

// GetUrlParams returns all chi route parameters of r.
func GetUrlParams(r *http.Request) map[string]string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return map[string]string{}
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if key == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		params[key] = rctx.URLParams.Values[i]
	}
	return params
}

func decodeBody(r *http.Request) (map[string]any, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return map[string]any{}, nil
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return map[string]any{}, nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, &BodyDecodeError{ContentType: ct, Err: err}
	}

	switch mediaType {
	case MIMEJSON:
		var v any
		if err := render.DecodeJSON(r.Body, &v); err != nil {
			if errors.Is(err, io.EOF) {
				return map[string]any{}, nil
			}
			return nil, &BodyDecodeError{ContentType: mediaType, Err: err}
		}
		return objectOrEmpty(v), nil
	case MIMECBOR:
		var v any
		if err := cborDecMode.NewDecoder(r.Body).Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return map[string]any{}, nil
			}
			return nil, &BodyDecodeError{ContentType: mediaType, Err: err}
		}
		return objectOrEmpty(v), nil
	case MIMEForm:
		if err := r.ParseForm(); err != nil {
			return nil, &BodyDecodeError{ContentType: mediaType, Err: err}
		}
		return flattenValues(r.PostForm), nil
	case MIMEMultipart:
		if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
			return nil, &BodyDecodeError{ContentType: mediaType, Err: err}
		}
		return flattenValues(r.MultipartForm.Value), nil
	default:
		return map[string]any{}, nil
	}
}

func objectOrEmpty(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func flattenValues(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for k, vals := range values {
		switch len(vals) {
		case 0:
		case 1:
			out[k] = vals[0]
		default:
			out[k] = append([]string(nil), vals...)
		}
	}
	return out
}

var _ comphttp.Request = new(request)
var _ comphttp.StatusCoder = new(BodyDecodeError)
