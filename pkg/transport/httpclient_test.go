package transport

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{"resultSets":[{"name":"LeagueGameLog"}]}`

func compress(t *testing.T, encoding string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch encoding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "deflate":
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		require.NoError(t, err)
		w = fw
	case "br":
		w = brotli.NewWriter(&buf)
	default:
		return []byte(payload)
	}
	_, err := w.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodeBody(t *testing.T) {
	for _, enc := range []string{"gzip", "deflate", "br", "", "identity", "zstd-unknown"} {
		t.Run(enc, func(t *testing.T) {
			body := compress(t, enc)
			r, err := DecodeBody(enc, io.NopCloser(bytes.NewReader(body)))
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
		})
	}

	_, err := DecodeBody("gzip", io.NopCloser(bytes.NewReader([]byte("not gzip"))))
	assert.Error(t, err)
}

func TestGetSendsHeadersAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://www.nba.com/", r.Header.Get("Referer"))
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(compress(t, "gzip"))
	}))
	defer srv.Close()

	body, err := Get(context.Background(), NewHTTPClient(5*time.Second), srv.URL, map[string]string{"Referer": "https://www.nba.com/"})
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestGetRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := Get(context.Background(), srv.Client(), srv.URL, nil)
	assert.ErrorContains(t, err, "429")
}

func TestGetHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Get(ctx, srv.Client(), srv.URL, nil)
	assert.Error(t, err)
}

func TestSharedClientIsReused(t *testing.T) {
	assert.Same(t, GetCustomHTTPClient(), GetCustomHTTPClient())
}
