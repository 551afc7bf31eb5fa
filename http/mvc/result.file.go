package mvc

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/meidoworks/nekoq-mvc/component/comphttp"
)

var (
	externalFilePattern = regexp.MustCompile(`^(\w+)://`)

	defaultProxyClient = cleanhttp.DefaultPooledClient()
)

type httpClientKey struct{}

// WithHTTPClient sets the client remote file results fetch with.
func WithHTTPClient(ctx context.Context, c *http.Client) context.Context {
	return context.WithValue(ctx, httpClientKey{}, c)
}

func httpClientFrom(ctx context.Context) *http.Client {
	if c, ok := ctx.Value(httpClientKey{}).(*http.Client); ok && c != nil {
		return c
	}
	return defaultProxyClient
}

type FileResult struct {
	File    string
	Options Options
}

func (r *FileResult) sealed() {}

// Remote reports whether the file reference is a URL rather than a local path.
func (r *FileResult) Remote() bool {
	return externalFilePattern.MatchString(r.File)
}

func (r *FileResult) Execute(ctx context.Context, res comphttp.Response) (any, error) {
	applyCommonOptions(res, r.Options)

	switch {
	case r.Remote():
		return nil, r.proxy(ctx, res)
	case r.Options.FileName != "":
		return nil, res.Download(r.File, r.Options.FileName)
	default:
		return nil, res.SendFile(r.File, comphttp.FileOptions{ContentType: r.Options.ContentType})
	}
}

func (r *FileResult) proxy(ctx context.Context, res comphttp.Response) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.File, nil)
	if err != nil {
		return err
	}
	remote, err := httpClientFrom(ctx).Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = remote.Body.Close()
	}()

	if r.Options.FileName != "" {
		res.Set("Content-Disposition", AttachmentDisposition(r.Options.FileName))
	}
	return res.Stream(remote.StatusCode, remote.Body)
}

func File(path string, opts ...Options) *FileResult {
	return &FileResult{File: path, Options: pickOptions(opts, 0)}
}

func AttachmentDisposition(fileName string) string {
	return fmt.Sprintf("attachment; filename=%q", fileName)
}
