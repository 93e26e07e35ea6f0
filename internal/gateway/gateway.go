package gateway

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/LuminLynx/misty/pkg/logger"
)

// State is the gateway lifecycle state. A freshly constructed gateway is
// installing; precaching moves it to installed (waiting), and activation
// garbage-collects caches left behind by previous versions.
type State string

const (
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
)

const offlineBody = `{"error":"offline - cached data unavailable"}`

// Config holds the gateway settings.
type Config struct {
	Version          string   `toml:"version"`
	TrustedAPIHosts  []string `toml:"trusted_api_hosts"`
	PrecacheManifest []string `toml:"precache_manifest"`
	RequestTimeoutMs int      `toml:"request_timeout_ms"`
}

// Validate checks the gateway configuration.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("gateway version cannot be empty")
	}
	if c.RequestTimeoutMs <= 0 {
		c.RequestTimeoutMs = 10000
	}
	return nil
}

// Broadcaster notifies connected clients that a new gateway version took over.
type Broadcaster interface {
	BroadcastUpdateAvailable(version string)
}

// Gateway serves static content cache-first and proxies trusted weather
// APIs network-first, falling back to the last stored response offline.
// The two caches are versioned namespaces in durable storage.
type Gateway struct {
	config      Config
	storage     *CacheStorage
	upstream    http.Handler
	httpClient  *http.Client
	broadcaster Broadcaster
	logger      *logger.Logger

	mu    sync.RWMutex
	state State
}

// New creates a gateway in front of the upstream static handler.
func New(cfg Config, storage *CacheStorage, upstream http.Handler, broadcaster Broadcaster, log *logger.Logger) *Gateway {
	return &Gateway{
		config:   cfg,
		storage:  storage,
		upstream: upstream,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
		},
		broadcaster: broadcaster,
		logger:      log.Named("gateway"),
		state:       StateInstalling,
	}
}

func (g *Gateway) staticCacheName() string  { return "misty-static-" + g.config.Version }
func (g *Gateway) runtimeCacheName() string { return "misty-runtime-" + g.config.Version }

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Version returns the configured gateway version.
func (g *Gateway) Version() string {
	return g.config.Version
}

// CacheStats returns the entry count per cache namespace.
func (g *Gateway) CacheStats() (map[string]int, error) {
	names, err := g.storage.Names()
	if err != nil {
		return nil, err
	}
	stats := make(map[string]int, len(names))
	for _, name := range names {
		count, err := g.storage.Count(name)
		if err != nil {
			return nil, err
		}
		stats[name] = count
	}
	return stats, nil
}

func (g *Gateway) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
	g.logger.Info("Gateway state changed", logger.String("state", string(s)))
}

// Install precaches the manifest into the versioned static cache. A path
// that fails to precache is logged and skipped so one bad asset does not
// abort installation.
func (g *Gateway) Install() {
	g.setState(StateInstalling)
	for _, path := range g.config.PrecacheManifest {
		status, contentType, body := g.callUpstream(path)
		if status != http.StatusOK {
			g.logger.Warn("Precache skipped",
				logger.String("path", path),
				logger.Int("status", status))
			continue
		}
		entry := &CachedResponse{Status: status, ContentType: contentType, Body: body}
		if err := g.storage.Put(g.staticCacheName(), path, entry); err != nil {
			g.logger.Warn("Precache store failed",
				logger.String("path", path),
				logger.Error(err))
		}
	}
	g.setState(StateInstalled)
}

// Activate deletes cache namespaces belonging to other versions and
// announces the new version to connected clients.
func (g *Gateway) Activate() {
	g.setState(StateActivating)

	current := map[string]bool{
		g.staticCacheName():  true,
		g.runtimeCacheName(): true,
	}
	names, err := g.storage.Names()
	if err != nil {
		g.logger.Error("Failed to list caches during activation", logger.Error(err))
	}
	for _, name := range names {
		if current[name] {
			continue
		}
		if err := g.storage.Delete(name); err != nil {
			g.logger.Warn("Failed to delete stale cache",
				logger.String("cache", name),
				logger.Error(err))
		}
	}

	g.setState(StateActivated)
	if g.broadcaster != nil {
		g.broadcaster.BroadcastUpdateAvailable(g.config.Version)
	}
}

// SkipWaiting activates immediately when the gateway is installed and
// waiting. Called when a client sends the skip_waiting message.
func (g *Gateway) SkipWaiting() {
	if g.State() != StateInstalled {
		return
	}
	g.logger.Info("Skip waiting requested, activating")
	g.Activate()
}

// IsTrustedAPIHost reports whether host is an allowed upstream API.
// Matching is exact or by dot-separated suffix; "evil-open-meteo.com"
// must never pass for "open-meteo.com".
func (g *Gateway) IsTrustedAPIHost(host string) bool {
	for _, trusted := range g.config.TrustedAPIHosts {
		if host == trusted || strings.HasSuffix(host, "."+trusted) {
			return true
		}
	}
	return false
}

// ServeHTTP routes proxy requests network-first and everything else
// cache-first. Non-GET requests bypass the caches entirely.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.upstream.ServeHTTP(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/proxy") {
		g.networkFirst(w, r)
		return
	}
	g.cacheFirst(w, r)
}

// networkFirst proxies a trusted API request, caching successful
// responses and replaying the last cached one when the network fails.
func (g *Gateway) networkFirst(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, `{"error":"missing url parameter"}`, http.StatusBadRequest)
		return
	}
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		http.Error(w, `{"error":"invalid url"}`, http.StatusBadRequest)
		return
	}
	if !g.IsTrustedAPIHost(parsed.Hostname()) {
		g.logger.Warn("Rejected untrusted proxy host", logger.String("host", parsed.Hostname()))
		http.Error(w, `{"error":"untrusted host"}`, http.StatusForbidden)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		http.Error(w, `{"error":"invalid url"}`, http.StatusBadRequest)
		return
	}
	resp, err := g.httpClient.Do(req)
	if err == nil {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr == nil {
			if resp.StatusCode == http.StatusOK {
				entry := &CachedResponse{
					Status:      resp.StatusCode,
					ContentType: resp.Header.Get("Content-Type"),
					Body:        body,
				}
				if putErr := g.storage.Put(g.runtimeCacheName(), target, entry); putErr != nil {
					g.logger.Warn("Failed to cache proxy response", logger.Error(putErr))
				}
			}
			writeResponse(w, resp.StatusCode, resp.Header.Get("Content-Type"), body)
			return
		}
		err = readErr
	}

	g.logger.Warn("Proxy fetch failed, trying cache",
		logger.String("url", target),
		logger.Error(err))
	cached, found, matchErr := g.storage.Match(g.runtimeCacheName(), target)
	if matchErr != nil {
		g.logger.Error("Cache lookup failed", logger.Error(matchErr))
	}
	if found {
		writeResponse(w, cached.Status, cached.ContentType, cached.Body)
		return
	}
	writeResponse(w, http.StatusServiceUnavailable, "application/json", []byte(offlineBody))
}

// cacheFirst serves from the static cache, populating it from upstream
// on a miss. Upstream errors fall back to any cached copy.
func (g *Gateway) cacheFirst(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path
	cached, found, err := g.storage.Match(g.staticCacheName(), key)
	if err != nil {
		g.logger.Error("Cache lookup failed", logger.Error(err))
	}
	if found {
		writeResponse(w, cached.Status, cached.ContentType, cached.Body)
		return
	}

	status, contentType, body := g.callUpstream(key)
	if status == http.StatusOK {
		entry := &CachedResponse{Status: status, ContentType: contentType, Body: body}
		if putErr := g.storage.Put(g.staticCacheName(), key, entry); putErr != nil {
			g.logger.Warn("Failed to cache static response", logger.Error(putErr))
		}
	}
	writeResponse(w, status, contentType, body)
}

// callUpstream runs the upstream handler against an internal request.
func (g *Gateway) callUpstream(path string) (status int, contentType string, body []byte) {
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return http.StatusInternalServerError, "", nil
	}
	rec := &responseRecorder{header: make(http.Header), status: http.StatusOK}
	g.upstream.ServeHTTP(rec, req)
	return rec.status, rec.header.Get("Content-Type"), rec.body.Bytes()
}

func writeResponse(w http.ResponseWriter, status int, contentType string, body []byte) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	w.Write(body)
}

type responseRecorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) Write(b []byte) (int, error) { return r.body.Write(b) }

func (r *responseRecorder) WriteHeader(status int) { r.status = status }
