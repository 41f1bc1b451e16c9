package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/moasq/submint/releases/latest":
			w.Write([]byte(`{"tag_name":"v0.3.0","html_url":"https://github.com/moasq/submint/releases/tag/v0.3.0"}`))
		case "/repos/moasq/broken/releases/latest":
			w.Write([]byte(`{not json`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := Checker{APIBase: srv.URL, HTTPClient: srv.Client()}

	res := c.Check(context.Background(), "moasq", "submint", "v0.2.9")
	if res == nil {
		t.Fatal("Check returned nil")
	}
	if res.Latest != "0.3.0" || res.Current != "0.2.9" {
		t.Errorf("res = %+v", res)
	}
	if !res.NeedsUpdate() {
		t.Error("0.3.0 should be newer than 0.2.9")
	}

	if res := c.Check(context.Background(), "moasq", "missing", "0.1.0"); res != nil {
		t.Errorf("404 should give nil, got %+v", res)
	}
	if res := c.Check(context.Background(), "moasq", "broken", "0.1.0"); res != nil {
		t.Errorf("bad JSON should give nil, got %+v", res)
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int // sign only
	}{
		{"1.0.0", "0.9.9", 1},
		{"0.2", "0.2.0", 0},
		{"0.2.0-rc1", "0.2.0", 0},
		{"0.10.0", "0.9.0", 1},
		{"0.1.0", "0.1.1", -1},
	}
	for _, tt := range tests {
		got := compareVersions(tt.a, tt.b)
		if sign(got) != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want sign %d", tt.a, tt.b, got, tt.want)
		}
	}

	var nilResult *Result
	if nilResult.NeedsUpdate() {
		t.Error("nil result never needs an update")
	}
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
