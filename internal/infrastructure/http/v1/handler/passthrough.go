package handler

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/jktrn/MemoLanes/pkg/logger"
)

// NewPassthrough returns the default network path for requests the worker
// does not intercept: a reverse proxy to origin, or a plain 404 when no
// origin is configured.
func NewPassthrough(origin string, l logger.Logger) (http.Handler, error) {
	if origin == "" {
		return http.NotFoundHandler(), nil
	}

	target, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse passthrough origin: %w", err)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			l.Warn("passthrough request failed", "path", r.URL.Path, "origin", target.Host, "error", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}, nil
}
