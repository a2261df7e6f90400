// Package gateway forwards public /v1 traffic to the backend services after
// authenticating it.
package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"socialhub/config"

	"gopkg.in/yaml.v3"
)

type Route struct {
	// Prefix is the public path prefix, e.g. /v1/posts.
	Prefix   string `yaml:"prefix"`
	Upstream string `yaml:"upstream"`
	// TargetPrefix replaces Prefix on the forwarded request. Defaults to
	// /api followed by Prefix without its /v1.
	TargetPrefix string `yaml:"targetPrefix"`
	Protected    bool   `yaml:"protected"`
	MaxBodyBytes int64  `yaml:"maxBodyBytes"`

	target *url.URL
}

type routeFile struct {
	Routes []Route `yaml:"routes"`
}

// LoadRoutes reads a YAML route table. ${VAR} references are expanded from
// the environment before parsing.
func LoadRoutes(path string) ([]Route, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}
	var file routeFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &file); err != nil {
		return nil, fmt.Errorf("parse routes %s: %w", path, err)
	}
	return prepare(file.Routes)
}

// DefaultRoutes is the route table used when no file is configured.
func DefaultRoutes(cfg *config.Config) ([]Route, error) {
	return prepare([]Route{
		{Prefix: "/v1/auth", Upstream: cfg.IdentityURL, MaxBodyBytes: 64 << 10},
		{Prefix: "/v1/posts", Upstream: cfg.PostURL, Protected: true, MaxBodyBytes: 1 << 20},
		// multipart framing on top of the file itself
		{Prefix: "/v1/media", Upstream: cfg.MediaURL, Protected: true, MaxBodyBytes: cfg.MaxUploadBytes + 1<<20},
		{Prefix: "/v1/search", Upstream: cfg.SearchURL, Protected: true, MaxBodyBytes: 64 << 10},
	})
}

func prepare(routes []Route) ([]Route, error) {
	if len(routes) == 0 {
		return nil, errors.New("route table is empty")
	}
	seen := map[string]bool{}
	out := make([]Route, 0, len(routes))
	for _, r := range routes {
		r.Prefix = strings.TrimRight(r.Prefix, "/")
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("route %q: prefix must start with /", r.Prefix)
		}
		if seen[r.Prefix] {
			return nil, fmt.Errorf("route %q: duplicate prefix", r.Prefix)
		}
		seen[r.Prefix] = true

		target, err := url.Parse(r.Upstream)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("route %q: invalid upstream %q", r.Prefix, r.Upstream)
		}
		r.target = target
		if r.TargetPrefix == "" {
			r.TargetPrefix = "/api" + strings.TrimPrefix(r.Prefix, "/v1")
		}
		r.TargetPrefix = strings.TrimRight(r.TargetPrefix, "/")
		out = append(out, r)
	}
	// longest prefix wins
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Prefix) > len(out[j].Prefix) })
	return out, nil
}

func (r Route) matches(path string) bool {
	return path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/")
}

func (r Route) rewrite(path string) string {
	return r.TargetPrefix + strings.TrimPrefix(path, r.Prefix)
}
