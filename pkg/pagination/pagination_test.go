package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	return FromContext(c)
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor(t, "")
	if p.Page != 1 || p.Limit != DefaultLimit {
		t.Errorf("expected defaults, got %+v", p)
	}
}

func TestFromContext_Explicit(t *testing.T) {
	p := paramsFor(t, "page=3&limit=50")
	if p.Page != 3 || p.Limit != 50 {
		t.Errorf("expected page=3 limit=50, got %+v", p)
	}
}

func TestFromContext_ClampsLimit(t *testing.T) {
	p := paramsFor(t, "limit=5000")
	if p.Limit != MaxLimit {
		t.Errorf("expected limit clamped to %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativePage(t *testing.T) {
	p := paramsFor(t, "page=-2")
	if p.Page != 1 {
		t.Errorf("expected page 1, got %d", p.Page)
	}
}

func TestOffset(t *testing.T) {
	p := Params{Page: 3, Limit: 20}
	if p.Offset() != 40 {
		t.Errorf("expected offset 40, got %d", p.Offset())
	}
}

func TestPages(t *testing.T) {
	p := Params{Page: 1, Limit: 20}
	cases := []struct{ total, want int }{
		{0, 0}, {1, 1}, {20, 1}, {21, 2}, {40, 2}, {41, 3},
	}
	for _, tc := range cases {
		if got := p.Pages(tc.total); got != tc.want {
			t.Errorf("Pages(%d) = %d, want %d", tc.total, got, tc.want)
		}
	}
}

func TestNewResponse(t *testing.T) {
	p := Params{Page: 2, Limit: 10}
	resp := NewResponse([]int{1, 2, 3}, 25, p)
	if resp.Total != 25 || resp.Page != 2 || resp.Pages != 3 {
		t.Errorf("unexpected response: %+v", resp)
	}
}
