package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"time"

	"socialhub/middleware"

	"github.com/gin-gonic/gin"
)

type userKey struct{}

type Gateway struct {
	routes   []Route
	proxies  []*httputil.ReverseProxy
	verifier middleware.AccessVerifier
	logger   *slog.Logger
}

func New(routes []Route, verifier middleware.AccessVerifier, logger *slog.Logger) *Gateway {
	g := &Gateway{routes: routes, verifier: verifier, logger: logger}
	for _, r := range routes {
		g.proxies = append(g.proxies, g.newProxy(r))
	}
	return g
}

func (g *Gateway) newProxy(route Route) *httputil.ReverseProxy {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 30 * time.Second

	return &httputil.ReverseProxy{
		Transport: transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = route.rewrite(pr.In.URL.Path)
			pr.Out.URL.RawPath = ""
			pr.SetURL(route.target)
			pr.SetXForwarded()

			// only the gateway may assert who the caller is
			pr.Out.Header.Del(middleware.UserIDHeader)
			if uid, ok := pr.In.Context().Value(userKey{}).(string); ok {
				pr.Out.Header.Set(middleware.UserIDHeader, uid)
			}
		},
		// streamed responses (websocket, large downloads) are flushed as they arrive
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			case errors.Is(err, context.Canceled):
				g.logger.Debug("client went away", "path", r.URL.Path)
				return
			}
			g.logger.Error("upstream request failed",
				"route", route.Prefix,
				"upstream", route.Upstream,
				"path", r.URL.Path,
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		},
	}
}

// Dispatch matches the request to a route, authenticates protected routes
// and forwards it. Requests matching no route get 404.
func (g *Gateway) Dispatch(c *gin.Context) {
	path := c.Request.URL.Path
	idx := -1
	for i, r := range g.routes {
		if r.matches(path) {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
		return
	}
	route := g.routes[idx]

	req := c.Request
	if route.Protected {
		if !middleware.Identify(c, g.verifier) {
			return
		}
		req = req.WithContext(context.WithValue(req.Context(), userKey{}, c.GetString("userId")))
	}

	if route.MaxBodyBytes > 0 {
		if req.ContentLength > route.MaxBodyBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "Request body too large"})
			return
		}
		req.Body = http.MaxBytesReader(c.Writer, req.Body, route.MaxBodyBytes)
	}

	g.proxies[idx].ServeHTTP(c.Writer, req)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(gin.H{"success": false, "message": message})
}
