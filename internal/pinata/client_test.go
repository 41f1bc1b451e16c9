package pinata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayURL(t *testing.T) {
	tests := []struct {
		gateway string
		want    string
	}{
		{"example.mypinata.cloud", "https://example.mypinata.cloud/ipfs/bafy"},
		{"https://example.mypinata.cloud/", "https://example.mypinata.cloud/ipfs/bafy"},
		{"http://localhost:8080", "http://localhost:8080/ipfs/bafy"},
	}
	for _, tt := range tests {
		c, err := New("jwt", tt.gateway)
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.GatewayURL("bafy"))
	}
}

func TestNew_RequiresSettings(t *testing.T) {
	_, err := New("", "gw")
	require.Error(t, err)
	_, err = New("jwt", "")
	require.Error(t, err)
}

func TestPinJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, "Bearer test-jwt", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "public", r.FormValue("network"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "metadata.json", hdr.Filename)
		assert.Equal(t, "application/json", hdr.Header.Get("Content-Type"))

		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "{\n  \"name\""), "indented JSON expected, got %s", data)

		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "1", "cid": "bafymeta", "name": "metadata.json"}})
	}))
	defer srv.Close()

	c, err := New("test-jwt", "gw.example", WithUploadBase(srv.URL))
	require.NoError(t, err)

	url, err := c.PinJSON(context.Background(), "metadata.json", map[string]string{"name": "Netflix"})
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example/ipfs/bafymeta", url)
}

func TestUploadFile_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid jwt"}`))
	}))
	defer srv.Close()

	c, err := New("bad", "gw.example", WithUploadBase(srv.URL))
	require.NoError(t, err)

	_, err = c.UploadFile(context.Background(), "a.png", "image/png", strings.NewReader("png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "jwt")
}
