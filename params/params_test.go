package params

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty", raw: "", want: map[string]string{}},
		{name: "two params", raw: "op1=3&op2=4", want: map[string]string{"op1": "3", "op2": "4"}},
		{name: "decimal kept raw", raw: "op1=1200.50&op2=20.30", want: map[string]string{"op1": "1200.50", "op2": "20.30"}},
		{name: "last write wins", raw: "op1=1&op1=2&op1=3", want: map[string]string{"op1": "3"}},
		{name: "percent and plus decoding", raw: "a=%2B5&b=1+2&c%20d=x", want: map[string]string{"a": "+5", "b": "1 2", "c d": "x"}},
		{name: "no equals sign", raw: "flag&op1=1", want: map[string]string{"flag": "", "op1": "1"}},
		{name: "empty pairs skipped", raw: "&&op1=1&", want: map[string]string{"op1": "1"}},
		{name: "malformed escape dropped", raw: "op1=%zz&op2=4", want: map[string]string{"op2": "4"}},
		{name: "malformed later pair does not clobber earlier", raw: "op1=1&op1=%zz", want: map[string]string{"op1": "1"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := Extract(tc.raw)
			assert.Equal(t, tc.want, p.Map())
			assert.Equal(t, len(tc.want), p.Len())
		})
	}
}

func TestRequestParamsImmutable(t *testing.T) {
	src := map[string]string{"op1": "3"}
	p := New(src)
	src["op1"] = "changed"

	v, ok := p.Get("op1")
	require.True(t, ok)
	assert.Equal(t, "3", v)

	m := p.Map()
	m["op1"] = "mutated"
	v, _ = p.Get("op1")
	assert.Equal(t, "3", v)
}

func TestZeroValue(t *testing.T) {
	var p RequestParams
	_, ok := p.Get("op1")
	assert.False(t, ok)
	assert.Equal(t, 0, p.Len())
	assert.Empty(t, p.Names())
}

func TestNames(t *testing.T) {
	p := Extract("b=2&a=1&c=3")
	assert.Equal(t, []string{"a", "b", "c"}, p.Names())
}

func TestFromRequest(t *testing.T) {
	t.Run("query only", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/add?op1=3&op2=4", nil)
		assert.Equal(t, map[string]string{"op1": "3", "op2": "4"}, FromRequest(req).Map())
	})

	t.Run("body overrides query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/add?op1=3&op2=4", strings.NewReader("op2=40&op3=5"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
		assert.Equal(t, map[string]string{"op1": "3", "op2": "40", "op3": "5"}, FromRequest(req).Map())
	})

	t.Run("non form body ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/add?op1=3", strings.NewReader(`{"op2":"4"}`))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, map[string]string{"op1": "3"}, FromRequest(req).Map())
	})

	t.Run("oversized body ignored", func(t *testing.T) {
		body := "pad=" + strings.Repeat("a", MaxBodyBytes-4) + "&op2=123456"
		req := httptest.NewRequest(http.MethodPost, "/add?op1=1", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		p := FromRequest(req)
		_, ok := p.Get("op2")
		assert.False(t, ok)
		assert.Equal(t, map[string]string{"op1": "1"}, p.Map())
	})

	t.Run("body at limit decoded", func(t *testing.T) {
		tail := "&op2=123456"
		body := "pad=" + strings.Repeat("a", MaxBodyBytes-4-len(tail)) + tail
		require.Len(t, body, MaxBodyBytes)
		req := httptest.NewRequest(http.MethodPost, "/add?op1=1", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		v, ok := FromRequest(req).Get("op2")
		require.True(t, ok)
		assert.Equal(t, "123456", v)
	})

	t.Run("get body ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/add", strings.NewReader("op1=3"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		assert.Equal(t, 0, FromRequest(req).Len())
	})
}

func FuzzExtract(f *testing.F) {
	for _, seed := range []string{"", "op1=3&op2=4", "a=%zz", "&&=", "k=v=w", "%2B=%2B"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		p := Extract(raw)
		for _, name := range p.Names() {
			if _, ok := p.Get(name); !ok {
				t.Fatalf("Extract(%q): listed name %q not found", raw, name)
			}
		}
	})
}
