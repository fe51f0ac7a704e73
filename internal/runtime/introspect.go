package runtime

import (
	"net/http"
	"strings"

	"github.com/drblury/simflow/internal/runtime/jsoncodec"
)

const defaultIntrospectPort = 8081

// registerIntrospectionHandlers mounts the read-only JSON API exposing the
// pipeline state while the run lasts: module statistics, the message wiring,
// the geometry and the dispatch counters.
func (p *Pipeline) registerIntrospectionHandlers() {
	port := p.Conf.IntrospectPort
	if port == 0 {
		port = defaultIntrospectPort
	}

	p.RegisterHTTPHandler(port, "/api/modules", p.introspectionHandler(func() any {
		return p.Modules()
	}))
	p.RegisterHTTPHandler(port, "/api/bindings", p.introspectionHandler(func() any {
		return p.messenger.Bindings()
	}))
	p.RegisterHTTPHandler(port, "/api/producers", p.introspectionHandler(func() any {
		return p.messenger.Producers()
	}))
	p.RegisterHTTPHandler(port, "/api/geometry", p.introspectionHandler(func() any {
		return p.geometry.Detectors()
	}))
	p.RegisterHTTPHandler(port, "/api/stats", http.HandlerFunc(p.handleGetStats))
}

// introspectionHandler wraps a snapshot function in the shared header and
// CORS handling.
func (p *Pipeline) introspectionHandler(snapshot func() any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.writeIntrospectionHeaders(w, r) {
			return
		}
		if err := jsoncodec.Encode(w, snapshot()); err != nil {
			p.Logger.Error("Failed to encode introspection payload", err, nil)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}

func (p *Pipeline) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if p.writeIntrospectionHeaders(w, r) {
		return
	}
	if p.stats == nil {
		http.Error(w, "dispatch stats are not enabled", http.StatusNotFound)
		return
	}
	if err := jsoncodec.Encode(w, p.stats.GetSnapshot()); err != nil {
		p.Logger.Error("Failed to encode dispatch stats", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// writeIntrospectionHeaders sets the content type and CORS headers and
// answers preflight requests. It reports whether the request is fully
// handled.
func (p *Pipeline) writeIntrospectionHeaders(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Content-Type", "application/json")

	if len(p.Conf.IntrospectCORSAllowedOrigins) > 0 {
		if origin := p.allowedCORSOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// allowedCORSOrigin checks if the request origin is allowed and returns the
// appropriate Access-Control-Allow-Origin value.
func (p *Pipeline) allowedCORSOrigin(requestOrigin string) string {
	for _, allowed := range p.Conf.IntrospectCORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
