package service

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"signal_bot/internal/models"
)

// proxiedHTTPClient routes REST calls through an http, https or socks5
// proxy.
func proxiedHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: bad proxy url %q", models.ErrConfigValidation, proxyURL)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("%w: unsupported proxy scheme %q", models.ErrConfigValidation, u.Scheme)
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = http.ProxyURL(u)
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}
