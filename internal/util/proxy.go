// Package util provides helpers shared across the gateway: outbound HTTP
// client construction, proxy configuration, log level control, and API key
// masking for log output.
package util

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/mizuki-ao/geminigate/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// NewHTTPClient builds the client used for one request cycle's outbound
// calls, applying the configured request timeout and proxy. Nothing is shared
// across request cycles. A zero timeout leaves the client without one.
func NewHTTPClient(cfg *config.Config) *http.Client {
	httpClient := &http.Client{}
	if cfg.RequestTimeout > 0 {
		httpClient.Timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	return SetProxy(cfg, httpClient)
}

// SetProxy configures the provided HTTP client with proxy settings from the
// configuration. SOCKS5, HTTP, and HTTPS proxies are supported. On any proxy
// setup failure the client is returned unmodified and requests go direct.
func SetProxy(cfg *config.Config, httpClient *http.Client) *http.Client {
	if cfg.ProxyURL == "" {
		return httpClient
	}

	proxyURL, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		log.Errorf("invalid proxy url %q: %v", cfg.ProxyURL, err)
		return httpClient
	}

	switch proxyURL.Scheme {
	case "socks5":
		var proxyAuth *proxy.Auth
		if proxyURL.User != nil {
			password, _ := proxyURL.User.Password()
			proxyAuth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
		}
		dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
		if errSOCKS5 != nil {
			log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
			return httpClient
		}
		httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	case "http", "https":
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	default:
		log.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}
	return httpClient
}
