package mcpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPConfig configures the endpoint pipeline spec §4.7 describes in
// order: body-size check, CORS, basic auth, API-key callback, then
// JSON-RPC dispatch. Grounded on the Howard-nolan-llmrouter pack repo's
// server.routes() chi.Router setup (middleware chain style), with each
// stage implemented as its own chi middleware so the ordering in spec
// §4.7 maps directly onto router.Use() call order.
type HTTPConfig struct {
	// MaxRequestBodySize rejects requests with Content-Length above this
	// many bytes with HTTP 413. Zero means unlimited (spec §4.7).
	MaxRequestBodySize int64

	// AllowedOrigins are matched exactly or via a "*.domain" wildcard
	// suffix; "*" allows every origin (spec §4.7's CORS stage).
	AllowedOrigins []string

	// BasicAuthUser/BasicAuthPass, when either is non-empty, require HTTP
	// Basic auth on every request.
	BasicAuthUser string
	BasicAuthPass string

	// APIKeyValidator, when non-nil, receives the key extracted from
	// X-API-Key or "Authorization: Bearer " and the request context (spec
	// §4.7: "extract key from X-API-Key or Authorization: Bearer, pass to
	// callback with {method, path, headers}; false → 401").
	APIKeyValidator func(key string, r *http.Request) bool
}

// securityHeaders is the fixed set spec §4.7 requires on every response,
// success, error, or preflight.
var securityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "1; mode=block",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
	"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Permissions-Policy":        "geolocation=(), microphone=(), camera=()",
}

func writeSecurityHeaders(w http.ResponseWriter) {
	for k, v := range securityHeaders {
		w.Header().Set(k, v)
	}
}

// originAllowed matches an Origin header against AllowedOrigins, exactly
// or via a "*.domain" wildcard suffix, or "*" for every origin (spec
// §4.7/§8's CORS boundary behavior: "*.example.com against sub.example.com
// (allowed) and example.com (denied)").
func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" {
			return true
		}
		if a == origin {
			return true
		}
		if strings.HasPrefix(a, "*.") {
			suffix := a[1:] // ".example.com"
			if strings.HasSuffix(origin, suffix) && origin != suffix[1:] {
				return true
			}
		}
	}
	return false
}

func (cfg HTTPConfig) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		}
		if r.Method == http.MethodOptions {
			writeSecurityHeaders(w)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (cfg HTTPConfig) bodySizeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.MaxRequestBodySize > 0 && r.ContentLength > cfg.MaxRequestBodySize {
			writeSecurityHeaders(w)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			raw, _ := marshalResult(nil, nil, NewRPCError(InvalidRequest, "request body too large", nil))
			w.Write(raw)
			return
		}
		if cfg.MaxRequestBodySize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

func (cfg HTTPConfig) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.BasicAuthUser == "" && cfg.BasicAuthPass == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != cfg.BasicAuthUser || pass != cfg.BasicAuthPass {
			writeSecurityHeaders(w)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			raw, _ := marshalResult(nil, nil, NewRPCError(InvalidRequest, "unauthorized", nil))
			w.Write(raw)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func apiKeyFromRequest(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (cfg HTTPConfig) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.APIKeyValidator == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := apiKeyFromRequest(r)
		if !cfg.APIKeyValidator(key, r) {
			writeSecurityHeaders(w)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			raw, _ := marshalResult(nil, nil, NewRPCError(InvalidRequest, "invalid api key", nil))
			w.Write(raw)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler builds the full HTTP endpoint pipeline for s: body-size check,
// CORS, basic auth, API-key validation, then JSON-RPC dispatch — in that
// order, per spec §4.7.
func (s *Server) Handler(cfg HTTPConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(cfg.bodySizeMiddleware)
	r.Use(cfg.corsMiddleware)
	r.Use(cfg.basicAuthMiddleware)
	r.Use(cfg.apiKeyMiddleware)

	r.Post("/", s.serveJSONRPC)
	r.Options("/", func(w http.ResponseWriter, r *http.Request) {}) // handled by corsMiddleware
	return r
}

func (s *Server) serveJSONRPC(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	writeSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, nil, NewRPCError(ParseError, "failed to read request body", nil))
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, NewRPCError(ParseError, "invalid JSON", nil))
		return
	}
	if req.JSONRPC != JSONRPCVersion || req.Method == "" {
		s.writeError(w, req.ID, NewRPCError(InvalidRequest, "malformed JSON-RPC request", nil))
		return
	}

	result, rpcErr := s.HandleRequest(r.Context(), &req)
	if s.StatsEnabled {
		s.Stats.RecordResponseTime(time.Since(start))
	}

	if req.ID == nil {
		// Notification: no response body, per JSON-RPC 2.0.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if rpcErr != nil {
		s.writeError(w, req.ID, rpcErr)
		return
	}
	raw, err := marshalResult(req.ID, result, nil)
	if err != nil {
		s.writeError(w, req.ID, NewRPCError(InternalError, "failed to marshal result", nil))
		return
	}
	w.Write(raw)
}

func (s *Server) writeError(w http.ResponseWriter, id *RequestID, rpcErr *RPCError) {
	raw, err := marshalResult(id, nil, rpcErr)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Write(raw)
}
