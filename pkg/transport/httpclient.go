package transport

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/richard-senior/nbaml/internal/logger"
)

// CABundleEnv names an optional PEM bundle appended to the system roots
// (corporate TLS inspection proxies and the like)
const CABundleEnv = "NBAML_CA_BUNDLE"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

var (
	httpClient     *http.Client
	httpClientOnce sync.Once
)

// extraCABundle returns the PEM bundle named by CABundleEnv, if any
func extraCABundle() ([]byte, error) {
	path := os.Getenv(CABundleEnv)
	if path == "" {
		return nil, nil
	}
	caCert, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle %s: %w", path, err)
	}
	return caCert, nil
}

// GetCustomHTTPClient returns the shared HTTP client with custom TLS configuration
func GetCustomHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		httpClient = NewHTTPClient(30 * time.Second)
	})
	return httpClient
}

// NewHTTPClient builds a client honouring proxy settings and CABundleEnv
func NewHTTPClient(timeout time.Duration) *http.Client {
	rootCAs, err := x509.SystemCertPool()
	if err != nil || rootCAs == nil {
		logger.Warn("Failed to get system cert pool", err)
		rootCAs = x509.NewCertPool()
	}

	bundle, err := extraCABundle()
	if err != nil {
		logger.Warn("Proceeding without extra CA bundle", err)
	} else if bundle != nil {
		if ok := rootCAs.AppendCertsFromPEM(bundle); !ok {
			logger.Warn("Failed to append CA bundle", os.Getenv(CABundleEnv))
		} else {
			logger.Debug("Added CA bundle to root CAs")
		}
	}

	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: rootCAs},
			Proxy:           http.ProxyFromEnvironment,
		},
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// Get performs a GET with browser-like headers, merging in any extra headers,
// and returns the decoded body. Non-200 responses are errors.
func Get(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	if client == nil {
		client = GetCustomHTTPClient()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Inform("HTTP get called for", url)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request to %s returned error status %d", url, resp.StatusCode)
	}

	reader, err := DecodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return data, nil
}

// DecodeBody wraps body in a decompressor matching the Content-Encoding header.
// Go's transport only decompresses gzip transparently when it set the header itself,
// which it does not once Accept-Encoding is set explicitly.
func DecodeBody(contentEncoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch contentEncoding {
	case "gzip":
		r, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return r, nil
	case "deflate":
		return flate.NewReader(body), nil
	case "br":
		return io.NopCloser(brotli.NewReader(body)), nil
	case "", "identity":
		return io.NopCloser(body), nil
	default:
		logger.Warn("Unknown content encoding:", contentEncoding)
		return io.NopCloser(body), nil
	}
}
