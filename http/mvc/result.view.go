package mvc

import (
	"context"

	"github.com/meidoworks/nekoq-mvc/component/comphttp"
)

type ViewResult struct {
	Name    string
	Params  map[string]any
	Options Options
}

func (r *ViewResult) sealed() {}

// Execute renders the view and returns the output as the response body.
func (r *ViewResult) Execute(_ context.Context, res comphttp.Response) (any, error) {
	applyCommonOptions(res, r.Options)
	out, err := res.Render(r.Name, r.Params)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func View(name string, params map[string]any, opts ...Options) *ViewResult {
	return &ViewResult{Name: name, Params: params, Options: pickOptions(opts, 0)}
}

// ViewFunc calls produce once, when the result is built.
func ViewFunc(name string, produce func() map[string]any, opts ...Options) *ViewResult {
	var params map[string]any
	if produce != nil {
		params = produce()
	}
	return View(name, params, opts...)
}
