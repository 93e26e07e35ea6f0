package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LuminLynx/misty/internal/airquality"
	"github.com/LuminLynx/misty/internal/config"
	"github.com/LuminLynx/misty/internal/gateway"
	"github.com/LuminLynx/misty/internal/geocoding"
	"github.com/LuminLynx/misty/internal/storage/sqlite"
	"github.com/LuminLynx/misty/internal/weather"
	"github.com/LuminLynx/misty/internal/websocket"
	"github.com/LuminLynx/misty/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// Handler contains all HTTP request handlers
type Handler struct {
	weatherService   *weather.Service
	repository       *weather.Repository
	geocodingClient  *geocoding.Client
	airQualityClient *airquality.Client
	locations        *sqlite.LocationsStore
	preferences      *sqlite.PreferencesStore
	gateway          *gateway.Gateway
	wsServer         *websocket.Server
	config           *config.Config
	logger           *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	weatherService *weather.Service,
	repository *weather.Repository,
	geocodingClient *geocoding.Client,
	airQualityClient *airquality.Client,
	locations *sqlite.LocationsStore,
	preferences *sqlite.PreferencesStore,
	gw *gateway.Gateway,
	wsServer *websocket.Server,
	cfg *config.Config,
	log *logger.Logger,
) *Handler {
	return &Handler{
		weatherService:   weatherService,
		repository:       repository,
		geocodingClient:  geocodingClient,
		airQualityClient: airQualityClient,
		locations:        locations,
		preferences:      preferences,
		gateway:          gw,
		wsServer:         wsServer,
		config:           cfg,
		logger:           log.Named("api"),
	}
}

// weatherResponse bundles forecast data with the air quality reading.
type weatherResponse struct {
	*weather.WeatherData
	AirQuality *airQualityData `json:"air_quality,omitempty"`
}

type airQualityData struct {
	USAQI int `json:"us_aqi"`
}

// GetWeather returns current weather and forecast for a coordinate pair.
// Air quality is fetched alongside and attached when available.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.locationFromQuery(w, r)
	if !ok {
		return
	}

	isMetric := r.URL.Query().Get("units") != "imperial"
	force := r.URL.Query().Get("force") == "true"

	var (
		data   *weather.WeatherData
		aqi    int
		hasAQI bool
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		data, err = h.repository.GetWeatherData(ctx, loc, isMetric, force)
		return err
	})
	g.Go(func() error {
		// Air quality is best effort; its failure never fails the request
		value, found, err := h.airQualityClient.CurrentAQI(ctx, loc.Lat, loc.Lon)
		if err != nil {
			h.logger.Warn("Air quality fetch failed", logger.Error(err))
			return nil
		}
		aqi, hasAQI = value, found
		return nil
	})

	if err := g.Wait(); err != nil {
		h.writeWeatherError(w, err)
		return
	}

	resp := &weatherResponse{WeatherData: data}
	if hasAQI {
		resp.AirQuality = &airQualityData{USAQI: aqi}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// SearchLocations looks up place names matching the query string.
func (h *Handler) SearchLocations(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		WriteError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	count := 5
	if v := r.URL.Query().Get("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			count = n
		}
	}

	results, err := h.geocodingClient.Search(r.Context(), query, count, "")
	if err != nil {
		h.logger.Error("Location search failed", logger.Error(err))
		WriteError(w, http.StatusBadGateway, "location search failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ReverseGeocode resolves coordinates to a place name.
func (h *Handler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parseCoordinates(w, r)
	if !ok {
		return
	}

	loc, err := h.geocodingClient.Reverse(r.Context(), lat, lon)
	if err != nil {
		h.logger.Error("Reverse geocoding failed", logger.Error(err))
		WriteError(w, http.StatusBadGateway, "reverse geocoding failed")
		return
	}
	WriteJSON(w, http.StatusOK, loc)
}

// ListLocations returns saved locations, most recently used first.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	favoritesOnly := r.URL.Query().Get("favorites") == "true"
	list, err := h.locations.List(favoritesOnly)
	if err != nil {
		h.logger.Error("Failed to list locations", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"locations": list, "count": len(list)})
}

// SaveLocation creates or updates a saved location.
func (h *Handler) SaveLocation(w http.ResponseWriter, r *http.Request) {
	var loc weather.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid location payload")
		return
	}
	if loc.Name == "" {
		WriteError(w, http.StatusBadRequest, "location name is required")
		return
	}
	if loc.ID == "" {
		loc.ID = loc.Key()
	}

	if err := h.locations.Upsert(loc); err != nil {
		h.logger.Error("Failed to save location", logger.Error(err))
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, loc)
}

// SetFavorite marks or unmarks a saved location as favorite.
func (h *Handler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Favorite bool `json:"favorite"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if err := h.locations.SetFavorite(id, body.Favorite); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"id": id, "favorite": body.Favorite})
}

// DeleteLocation removes a saved location.
func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.locations.Delete(id); err != nil {
		h.logger.Error("Failed to delete location", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to delete location")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// CompareLocations fetches weather for several saved locations at once.
func (h *Handler) CompareLocations(w http.ResponseWriter, r *http.Request) {
	// Repeated ids parameters: location keys contain commas, so a
	// comma-separated list cannot carry them.
	var ids []string
	for _, id := range r.URL.Query()["ids"] {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		WriteError(w, http.StatusBadRequest, "query parameter ids is required")
		return
	}
	if len(ids) > 10 {
		WriteError(w, http.StatusBadRequest, "at most 10 locations can be compared")
		return
	}

	isMetric := r.URL.Query().Get("units") != "imperial"

	// Partial results: a location that fails to resolve or fetch is
	// reported alongside the ones that succeeded.
	results := make([]*weather.WeatherData, len(ids))
	failures := make([]string, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			loc, found, err := h.locations.Get(id)
			if err != nil {
				failures[i] = id
				return nil
			}
			if !found {
				failures[i] = id
				return nil
			}
			data, err := h.repository.GetWeatherData(r.Context(), loc, isMetric, false)
			if err != nil {
				h.logger.Warn("Compare fetch failed", logger.String("id", id), logger.Error(err))
				failures[i] = id
				return nil
			}
			results[i] = data
			return nil
		})
	}
	_ = g.Wait()

	locations := make([]*weather.WeatherData, 0, len(ids))
	var failed []string
	for i := range ids {
		if results[i] != nil {
			locations = append(locations, results[i])
		} else if failures[i] != "" {
			failed = append(failed, failures[i])
		}
	}
	if len(locations) == 0 {
		WriteError(w, http.StatusBadGateway, "no locations could be fetched")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"locations": locations, "failed": failed})
}

// GetPreferences returns the stored user preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.preferences.Get()
	if err != nil {
		h.logger.Error("Failed to load preferences", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	WriteJSON(w, http.StatusOK, prefs)
}

// PutPreferences replaces the stored user preferences.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs sqlite.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid preferences payload")
		return
	}
	if err := h.preferences.Put(prefs); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, prefs)
}

// ClearCache drops cached weather data, for one location key or all.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key != "" {
		h.repository.ClearCache(key)
	} else {
		h.repository.ClearAll()
	}
	WriteJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

// GetGatewayStatus reports the caching gateway state and cache sizes.
func (h *Handler) GetGatewayStatus(w http.ResponseWriter, r *http.Request) {
	caches, err := h.gateway.CacheStats()
	if err != nil {
		h.logger.Error("Failed to read cache stats", logger.Error(err))
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"state":   h.gateway.State(),
		"version": h.gateway.Version(),
		"clients": h.wsServer.ClientCount(),
		"caches":  caches,
	})
}

// TriggerRefresh starts a background refresh of all tracked locations.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if !h.weatherService.IsStarted() {
		WriteError(w, http.StatusServiceUnavailable, "weather service not running")
		return
	}
	h.weatherService.RefreshNow()
	WriteJSON(w, http.StatusAccepted, map[string]any{"refreshing": true})
}

// GetHealth returns a basic liveness response.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// HandleMessage processes incoming WebSocket messages from clients.
func (h *Handler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeSkipWaiting:
		h.gateway.SkipWaiting()
		return nil
	case websocket.MessageTypeRefreshRequest:
		if h.weatherService.IsStarted() {
			h.weatherService.RefreshNow()
		}
		return nil
	default:
		return fmt.Errorf("unknown message type: %s", messageType)
	}
}

// locationFromQuery builds a Location from an id or lat/lon parameters.
// Saved locations are touched so they count as recently used.
func (h *Handler) locationFromQuery(w http.ResponseWriter, r *http.Request) (weather.Location, bool) {
	if id := r.URL.Query().Get("id"); id != "" {
		loc, found, err := h.locations.Get(id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load location")
			return weather.Location{}, false
		}
		if !found {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown location: %s", id))
			return weather.Location{}, false
		}
		if err := h.locations.Touch(id); err != nil {
			h.logger.Warn("Failed to touch location", logger.Error(err))
		}
		return loc, true
	}

	lat, lon, ok := parseCoordinates(w, r)
	if !ok {
		return weather.Location{}, false
	}
	return weather.Location{
		ID:   weather.LocationKey(lat, lon),
		Name: r.URL.Query().Get("name"),
		Lat:  lat,
		Lon:  lon,
	}, true
}

func parseCoordinates(w http.ResponseWriter, r *http.Request) (lat, lon float64, ok bool) {
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")
	if latStr == "" || lonStr == "" {
		WriteError(w, http.StatusBadRequest, "query parameters lat and lon are required")
		return 0, 0, false
	}

	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLat != nil || errLon != nil {
		WriteError(w, http.StatusBadRequest, "lat and lon must be numbers")
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		WriteError(w, http.StatusBadRequest, "coordinates out of range")
		return 0, 0, false
	}
	return lat, lon, true
}

// writeWeatherError maps weather pipeline errors to HTTP statuses.
func (h *Handler) writeWeatherError(w http.ResponseWriter, err error) {
	h.logger.Error("Weather request failed", logger.Error(err))

	switch {
	case errors.Is(err, weather.ErrNoData):
		WriteError(w, http.StatusBadGateway, "weather data unavailable")
	case errors.Is(err, weather.ErrParse):
		WriteError(w, http.StatusBadGateway, "upstream returned malformed data")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
