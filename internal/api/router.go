package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/LuminLynx/misty/internal/config"
	"github.com/LuminLynx/misty/internal/gateway"
	"github.com/LuminLynx/misty/internal/websocket"
	"github.com/LuminLynx/misty/pkg/logger"
)

// Router wires the API handlers, the WebSocket endpoint and the caching
// gateway into one chi mux.
type Router struct {
	handler  *Handler
	gateway  *gateway.Gateway
	wsServer *websocket.Server
	config   *config.Config
	logger   *logger.Logger
}

// NewRouter creates a new router
func NewRouter(handler *Handler, gw *gateway.Gateway, wsServer *websocket.Server, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler:  handler,
		gateway:  gw,
		wsServer: wsServer,
		config:   cfg,
		logger:   log.Named("router"),
	}
}

// Routes returns the configured HTTP handler.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", rt.handler.GetHealth)
		r.Get("/weather", rt.handler.GetWeather)
		r.Get("/compare", rt.handler.CompareLocations)

		r.Route("/locations", func(r chi.Router) {
			r.Get("/", rt.handler.ListLocations)
			r.Post("/", rt.handler.SaveLocation)
			r.Get("/search", rt.handler.SearchLocations)
			r.Get("/reverse", rt.handler.ReverseGeocode)
			r.Put("/{id}/favorite", rt.handler.SetFavorite)
			r.Delete("/{id}", rt.handler.DeleteLocation)
		})

		r.Get("/preferences", rt.handler.GetPreferences)
		r.Put("/preferences", rt.handler.PutPreferences)

		r.Post("/cache/clear", rt.handler.ClearCache)
		r.Get("/gateway/status", rt.handler.GetGatewayStatus)
		r.Post("/refresh", rt.handler.TriggerRefresh)

		// Proxied upstream requests go through the gateway network-first
		r.Get("/proxy", rt.gateway.ServeHTTP)
	})

	r.Get("/ws", rt.wsServer.HandleConnection)

	// Everything else is the dashboard, served cache-first
	r.NotFound(rt.gateway.ServeHTTP)

	return r
}

// corsMiddleware applies the configured CORS policy.
func (rt *Router) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && rt.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rt *Router) originAllowed(origin string) bool {
	for _, allowed := range rt.config.Server.CORSAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
