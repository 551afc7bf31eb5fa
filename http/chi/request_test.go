package chi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUrlParams(t *testing.T) {
	r := chi.NewRouter()
	var got map[string]string
	r.Get("/a/{x}/{y}/*", func(w http.ResponseWriter, req *http.Request) {
		got = GetUrlParams(req)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/a/1/2/rest/of", nil))
	assert.Equal(t, map[string]string{"x": "1", "y": "2"}, got)

	assert.Empty(t, GetUrlParams(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestDecodeBody(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		contentType string
		want        map[string]any
	}{
		{"no content type", `{"a":1}`, "", map[string]any{}},
		{"json", `{"a":"b"}`, "application/json; charset=utf-8", map[string]any{"a": "b"}},
		{"json array", `[1,2]`, MIMEJSON, map[string]any{}},
		{"empty json", ``, MIMEJSON, map[string]any{}},
		{"text", `hello`, "text/plain", map[string]any{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(c.body))
			if c.contentType != "" {
				req.Header.Set("Content-Type", c.contentType)
			}
			body, err := newRequest(req).Body()
			require.NoError(t, err)
			assert.Equal(t, c.want, body)
		})
	}
}

func TestDecodeBodyOnce(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"b"}`))
	req.Header.Set("Content-Type", MIMEJSON)
	q := newRequest(req)
	first, err := q.Body()
	require.NoError(t, err)
	second, err := q.Body()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecodeBodyErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`x`))
	req.Header.Set("Content-Type", "application/json; =")
	_, err := newRequest(req).Body()
	var de *BodyDecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusBadRequest, de.StatusCode())

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("\xff\xff"))
	req.Header.Set("Content-Type", MIMECBOR)
	_, err = newRequest(req).Body()
	assert.ErrorAs(t, err, &de)
}
