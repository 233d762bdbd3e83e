package ethrpc

import (
	"net/http"

	"github.com/goware/logger"
)

type Option func(*Provider)

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func WithHTTPClient(c httpClient) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithLogger logs every request body at debug level.
func WithLogger(log logger.Logger) Option {
	return func(p *Provider) {
		p.log = log
	}
}
