package comphttp

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Request is the per-request view of the web framework the dispatcher reads parameters from.
type Request interface {
	Context() context.Context
	// PathParams returns parameters captured by the route pattern.
	PathParams() map[string]string
	Query() url.Values
	// Body returns the decoded request body fields.
	// Requests without a body, or with a body that is not an object, yield an empty map.
	Body() (map[string]any, error)
	Raw() *http.Request
}

// Response is the per-request response surface results are executed against.
type Response interface {
	Status(code int)
	Set(header, value string)
	Send(body any) error
	Redirect(code int, url string) error
	// Render renders a named view and returns the output without writing it.
	Render(view string, params map[string]any) (string, error)
	SendFile(path string, opts FileOptions) error
	Download(path, fileName string) error
	// Stream copies body to the client with the given status.
	Stream(status int, body io.Reader) error
}

type FileOptions struct {
	ContentType string
}

// Next forwards an error to the framework's error channel.
type Next func(err error)

// StatusCoder is implemented by errors that know which HTTP status they map to.
type StatusCoder interface {
	StatusCode() int
}
