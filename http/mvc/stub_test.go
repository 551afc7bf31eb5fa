package mvc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/meidoworks/nekoq-mvc/component/comphttp"
)

type stubRequest struct {
	ctx     context.Context
	path    map[string]string
	query   url.Values
	body    map[string]any
	bodyErr error
}

func (s *stubRequest) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *stubRequest) PathParams() map[string]string { return s.path }
func (s *stubRequest) Query() url.Values { return s.query }
func (s *stubRequest) Raw() *http.Request { return nil }

func (s *stubRequest) Body() (map[string]any, error) {
	return s.body, s.bodyErr
}

// stubResponse records every call in order.
type stubResponse struct {
	lock      sync.Mutex
	calls     []string
	sent      []any
	views     map[string]string
	streamed  string
	renderErr error
	sendErr   error
}

func (s *stubResponse) record(format string, args ...any) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *stubResponse) Calls() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubResponse) Status(code int) {
	s.record("status %d", code)
}

func (s *stubResponse) Set(header, value string) {
	s.record("set %s: %s", header, value)
}

func (s *stubResponse) Send(body any) error {
	s.record("send %v", body)
	s.lock.Lock()
	s.sent = append(s.sent, body)
	s.lock.Unlock()
	return s.sendErr
}

func (s *stubResponse) Redirect(code int, url string) error {
	s.record("redirect %d %s", code, url)
	return nil
}

func (s *stubResponse) Render(view string, params map[string]any) (string, error) {
	s.record("render %s %v", view, params)
	if s.renderErr != nil {
		return "", s.renderErr
	}
	return s.views[view], nil
}

func (s *stubResponse) SendFile(path string, opts comphttp.FileOptions) error {
	s.record("sendFile %s %s", path, opts.ContentType)
	return nil
}

func (s *stubResponse) Download(path, fileName string) error {
	s.record("download %s %s", path, fileName)
	return nil
}

func (s *stubResponse) Stream(status int, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.record("stream %d", status)
	s.lock.Lock()
	s.streamed = string(data)
	s.lock.Unlock()
	return nil
}

var _ comphttp.Request = new(stubRequest)
var _ comphttp.Response = new(stubResponse)
