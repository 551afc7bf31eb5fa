package chi

import "github.com/meidoworks/nekoq-mvc/http/mvc"

// Result constructors, so applications built on this package need only one import for the common case.
var (
	Action   = mvc.Action
	Empty    = mvc.Empty
	JSON     = mvc.JSON
	CBOR     = mvc.CBOR
	File     = mvc.File
	View     = mvc.View
	ViewFunc = mvc.ViewFunc
	Redirect = mvc.Redirect
	Error    = mvc.Error
	Status   = mvc.Status
)
