package mvc

import (
	"fmt"
	"net/url"
)

const (
	ParamController = "controller"
	ParamAction     = "action"
)

// Params is the merged parameter bag handed to an action.
type Params map[string]any

func (p Params) Controller() string {
	return p.String(ParamController)
}

func (p Params) Action() string {
	return p.String(ParamAction)
}

// String returns the value of key as a string.
// Missing keys yield "", multi-valued query fields yield their first value.
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) == 0 {
			return ""
		}
		return val[0]
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func (p Params) Clone() Params {
	n := make(Params, len(p))
	for k, v := range p {
		n[k] = v
	}
	return n
}

type ParamSources struct {
	Path  map[string]string
	Query url.Values
	Body  map[string]any
}

// MergeParams flattens the request sources and the route's static params.
// Precedence, highest first: static, path, body, query.
// controller and action only ever come from static or path.
func MergeParams(src ParamSources, static Params) Params {
	merged := make(Params, len(src.Query)+len(src.Body)+len(src.Path)+len(static)+2)
	for k, vals := range src.Query {
		switch len(vals) {
		case 0:
		case 1:
			merged[k] = vals[0]
		default:
			merged[k] = append([]string(nil), vals...)
		}
	}
	for k, v := range src.Body {
		merged[k] = v
	}
	for k, v := range src.Path {
		merged[k] = v
	}
	for k, v := range static {
		merged[k] = v
	}

	merged[ParamController] = routingValue(ParamController, src.Path, static)
	merged[ParamAction] = routingValue(ParamAction, src.Path, static)
	return merged
}

func routingValue(key string, path map[string]string, static Params) string {
	if v := static.String(key); v != "" {
		return v
	}
	return path[key]
}
