package chi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/viper"

	"github.com/meidoworks/nekoq-mvc/http/mvc"
)

const (
	SettingViews         = "views"
	SettingViewExtension = "view_extension"
	SettingViewCache     = "view_cache"
	SettingDefaultAction = "default_action"
	SettingAddr          = "addr"
	SettingRoutes        = "routes"

	EnvPrefix = "NEKOQ_MVC"
)

// NewSettings returns a settings store populated with defaults and bound to NEKOQ_MVC_* env vars.
func NewSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(SettingViews, "views")
	v.SetDefault(SettingViewExtension, DefaultViewExtension)
	v.SetDefault(SettingViewCache, false)
	v.SetDefault(SettingDefaultAction, mvc.DefaultAction)
	v.SetDefault(SettingAddr, ":3000")
	return v
}

// LoadConfig reads a yaml/json/toml config file into a new settings store.
// An empty path returns the defaults.
func LoadConfig(path string) (*viper.Viper, error) {
	v := NewSettings()
	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return v, nil
}

type routeConfig struct {
	Method     string         `mapstructure:"method"`
	Path       string         `mapstructure:"path"`
	Controller string         `mapstructure:"controller"`
	Action     string         `mapstructure:"action"`
	Params     map[string]any `mapstructure:"params"`
}

// LoadRoutes reads the static route table under "routes".
//
//	routes:
//	  - method: get
//	    path: /notes/{id}
//	    controller: notes
//	    action: show
func LoadRoutes(v *viper.Viper) ([]mvc.Route, error) {
	var items []routeConfig
	if err := v.UnmarshalKey(SettingRoutes, &items); err != nil {
		return nil, err
	}
	routes := make([]mvc.Route, 0, len(items))
	for i, item := range items {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" {
			method = http.MethodGet
		}
		if _, ok := httpMethods[method]; !ok && method != MethodAll {
			return nil, fmt.Errorf("routes[%d]: %w: %s", i, ErrMethodInvalid, item.Method)
		}
		if strings.TrimSpace(item.Path) == "" {
			return nil, fmt.Errorf("routes[%d]: %w", i, ErrEmptyURL)
		}
		params := mvc.Params{}
		for k, val := range item.Params {
			params[k] = val
		}
		if item.Controller != "" {
			params[mvc.ParamController] = item.Controller
		}
		if item.Action != "" {
			params[mvc.ParamAction] = item.Action
		}
		routes = append(routes, mvc.Route{Method: method, Pattern: item.Path, Params: params})
	}
	return routes, nil
}
