package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"
)

type HTTPClientConfig struct {
	Timeout        time.Duration // per attempt, covers the whole request including the body
	KATimeout      time.Duration
	ProxyURL       string
	ProxyUsername  string
	ProxyPassword  string
	UserAgent      string
	Headers        map[string]string
	HighThreadMode bool // advanced socket options for high concurrency
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type SegfetchHTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

func NewSegfetchHTTPClient(cfg HTTPClientConfig) *SegfetchHTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultAttemptTimeout
	}
	if cfg.KATimeout == 0 {
		cfg.KATimeout = 90 * time.Second
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		IdleConnTimeout:     cfg.KATimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		// raw bytes are needed so on-disk size matches Content-Length
		DisableCompression: true,
	}
	if cfg.HighThreadMode {
		transport.DialContext = highThreadDialer().DialContext
	}
	if cfg.ProxyURL != "" {
		if err := configureProxy(transport, cfg); err != nil {
			log.Warn().Str("op", "utils/http-client").Msgf("Ignoring proxy: %v", err)
		}
	}
	return &SegfetchHTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
	}
}

func (c *SegfetchHTTPClient) SetHeader(key, value string) {
	c.config.Headers[key] = value
}

func (c *SegfetchHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	} else {
		req.Header.Set("User-Agent", ToolUserAgent)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	return c.client.Do(req)
}

// configureProxy routes the transport through an HTTP(S) or SOCKS5 proxy.
func configureProxy(transport *http.Transport, cfg HTTPClientConfig) error {
	raw := cfg.ProxyURL
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	proxyURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}
	switch proxyURL.Scheme {
	case "http", "https":
		if cfg.ProxyUsername != "" {
			if cfg.ProxyPassword != "" {
				proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
			} else {
				proxyURL.User = url.User(cfg.ProxyUsername)
			}
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if cfg.ProxyUsername != "" {
			auth = &proxy.Auth{User: cfg.ProxyUsername, Password: cfg.ProxyPassword}
		}
		forward := proxy.Dialer(proxy.Direct)
		if cfg.HighThreadMode {
			forward = highThreadDialer()
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, forward)
		if err != nil {
			return fmt.Errorf("error creating SOCKS5 proxy: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
	}
	return nil
}

func highThreadDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				setSocketOptions(fd)
			})
		},
	}
}
