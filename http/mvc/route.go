package mvc

import "strings"

// Route records one registration: verb, path pattern and the static params bound to it.
type Route struct {
	Method  string
	Pattern string
	Params  Params
}

func (r Route) String() string {
	var sb strings.Builder
	sb.WriteString(r.Method)
	sb.WriteByte(' ')
	sb.WriteString(r.Pattern)
	if c := r.Params.Controller(); c != "" {
		sb.WriteString(" -> ")
		sb.WriteString(c)
		if a := r.Params.Action(); a != "" {
			sb.WriteByte('.')
			sb.WriteString(a)
		}
	}
	return sb.String()
}
