package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware behaviour.
type CORSConfig struct {
	// AllowOrigins lists origins permitted to make cross-origin requests.
	// Empty, or the single entry "*", allows every origin.
	AllowOrigins []string

	// AllowMethods lists the HTTP methods clients may use in actual requests.
	// Defaults to "GET, POST, PUT, DELETE, OPTIONS" when empty.
	AllowMethods []string

	// AllowHeaders lists the request headers clients may send. When empty the
	// middleware echoes back Access-Control-Request-Headers from the
	// preflight, which keeps custom headers like api_key working without
	// configuration.
	AllowHeaders []string

	// ExposeHeaders lists response headers the browser may read.
	ExposeHeaders []string

	// AllowCredentials permits cookies and auth headers on cross-origin
	// requests. The wildcard origin is forbidden with credentials, so the
	// middleware echoes the specific origin instead.
	AllowCredentials bool

	// MaxAge is how long (seconds) browsers may cache preflight results.
	// Zero omits the header; negative sends "0" to disable caching.
	MaxAge int
}

// corsPolicy is CORSConfig precomputed at construction so the hot path only
// does map lookups and header writes.
type corsPolicy struct {
	allowAll         bool
	allowed          map[string]string // lowercase origin to original-case value
	allowMethods     string
	allowHeaders     string
	exposeHeaders    string
	allowCredentials bool
	maxAge           string
}

// CORS returns a middleware handling Cross-Origin Resource Sharing, in the
// style of gofiber/fiber's implementation: case-insensitive origin matching
// with original-case echo-back, Vary headers set to keep CDN caches from
// serving one origin's response to another, and preflights detected via the
// Access-Control-Request-Method header.
func CORS(cfg CORSConfig) Middleware {
	p := corsPolicy{
		allowAll:         len(cfg.AllowOrigins) == 0,
		allowed:          make(map[string]string, len(cfg.AllowOrigins)),
		allowMethods:     strings.Join(cfg.AllowMethods, ", "),
		allowHeaders:     strings.Join(cfg.AllowHeaders, ", "),
		exposeHeaders:    strings.Join(cfg.ExposeHeaders, ", "),
		allowCredentials: cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			p.allowAll = true
			break
		}
		p.allowed[strings.ToLower(o)] = o
	}
	// Credentials with a wildcard origin is forbidden by the Fetch spec;
	// fall back to echoing the specific origin.
	if p.allowCredentials && p.allowAll {
		p.allowAll = false
	}
	if p.allowMethods == "" {
		p.allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	} else if cfg.MaxAge < 0 {
		p.maxAge = "0"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Same-origin request. Still vary on Origin so caches keep this
			// response separate from cross-origin ones.
			if origin == "" {
				if !p.allowAll {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				p.preflight(w, r, origin)
				return
			}

			p.actual(w, origin)
			next.ServeHTTP(w, r)
		})
	}
}

func (p corsPolicy) preflight(w http.ResponseWriter, r *http.Request, origin string) {
	h := w.Header()
	h.Add("Vary", "Origin")
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")

	allowOrigin := p.matchOrigin(origin)
	if allowOrigin == "" {
		// Disallowed origin: 204 with no CORS headers lets the browser fail
		// the request itself.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.Set("Access-Control-Allow-Origin", allowOrigin)
	h.Set("Access-Control-Allow-Methods", p.allowMethods)

	if p.allowHeaders != "" {
		h.Set("Access-Control-Allow-Headers", p.allowHeaders)
	} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
		h.Set("Access-Control-Allow-Headers", rh)
	}

	if p.allowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if p.maxAge != "" {
		h.Set("Access-Control-Max-Age", p.maxAge)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (p corsPolicy) actual(w http.ResponseWriter, origin string) {
	h := w.Header()
	if !p.allowAll {
		h.Add("Vary", "Origin")
	}

	allowOrigin := p.matchOrigin(origin)
	if allowOrigin == "" {
		return
	}

	h.Set("Access-Control-Allow-Origin", allowOrigin)
	if p.allowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if p.exposeHeaders != "" {
		h.Set("Access-Control-Expose-Headers", p.exposeHeaders)
	}
}

func (p corsPolicy) matchOrigin(origin string) string {
	if p.allowAll {
		return "*"
	}
	if orig, ok := p.allowed[strings.ToLower(origin)]; ok {
		return orig
	}
	return ""
}
