package chi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/render"
	"github.com/spf13/afero"

	"github.com/meidoworks/nekoq-mvc/component/comphttp"
	"github.com/meidoworks/nekoq-mvc/http/mvc"
)

var (
	ErrIsDirectory  = errors.New("is a directory")
	ErrNoViewEngine = errors.New("no view engine configured")
)

// response implements comphttp.Response on top of net/http.
// A status set with Status is held back until something is written.
type response struct {
	w http.ResponseWriter
	r *http.Request

	status  int
	written bool

	fs    afero.Fs
	views ViewEngine
}

func newResponse(w http.ResponseWriter, r *http.Request, fs afero.Fs, views ViewEngine) *response {
	return &response{w: w, r: r, fs: fs, views: views}
}

func (s *response) Status(code int) {
	s.status = code
}

// StatusCode is the pending status, or 200 when none was set.
func (s *response) StatusCode() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func (s *response) Written() bool {
	return s.written
}

func (s *response) Set(header, value string) {
	s.w.Header().Set(header, value)
}

func (s *response) writeHeader(code int) {
	s.written = true
	s.w.WriteHeader(code)
}

func (s *response) Send(body any) error {
	switch v := body.(type) {
	case nil:
		s.writeHeader(s.StatusCode())
		return nil
	case string:
		s.defaultContentType("text/html; charset=utf-8")
		return s.write([]byte(v))
	case []byte:
		s.defaultContentType("application/octet-stream")
		return s.write(v)
	}

	if s.contentType() == MIMECBOR {
		data, err := cbor.Marshal(body)
		if err != nil {
			return err
		}
		return s.write(data)
	}
	s.written = true
	render.Status(s.r, s.StatusCode())
	render.JSON(s.w, s.r, body)
	return nil
}

func (s *response) write(data []byte) error {
	s.writeHeader(s.StatusCode())
	if len(data) == 0 || s.r.Method == http.MethodHead {
		return nil
	}
	_, err := s.w.Write(data)
	return err
}

func (s *response) contentType() string {
	mediaType, _, _ := mime.ParseMediaType(s.w.Header().Get("Content-Type"))
	return mediaType
}

func (s *response) defaultContentType(ct string) {
	if s.w.Header().Get("Content-Type") == "" {
		s.w.Header().Set("Content-Type", ct)
	}
}

func (s *response) Redirect(code int, url string) error {
	s.written = true
	http.Redirect(s.w, s.r, url, code)
	return nil
}

func (s *response) Render(view string, params map[string]any) (string, error) {
	if s.views == nil {
		return "", ErrNoViewEngine
	}
	var sb strings.Builder
	if err := s.views.Render(&sb, view, params); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (s *response) SendFile(name string, opts comphttp.FileOptions) error {
	f, err := s.fs.Open(name)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s: %w", name, ErrIsDirectory)
	}
	if opts.ContentType != "" {
		s.Set("Content-Type", opts.ContentType)
	}
	s.written = true
	http.ServeContent(&statusWriter{ResponseWriter: s.w, status: s.status}, s.r, path.Base(name), fi.ModTime(), f)
	return nil
}

func (s *response) Download(name, fileName string) error {
	if fileName == "" {
		fileName = path.Base(name)
	}
	s.Set("Content-Disposition", mvc.AttachmentDisposition(fileName))
	return s.SendFile(name, comphttp.FileOptions{})
}

func (s *response) Stream(status int, body io.Reader) error {
	s.writeHeader(status)
	if s.r.Method == http.MethodHead {
		return nil
	}
	_, err := io.Copy(s.w, body)
	return err
}

// statusWriter swaps the 200 that http.ServeContent writes for the pending status.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if code == http.StatusOK && w.status != 0 {
		code = w.status
	}
	w.ResponseWriter.WriteHeader(code)
}

var _ comphttp.Response = new(response)
