package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/cityweather/internal/domain/weather"
)

const sessionHeader = "X-Session-ID"

// Handler wires the HTTP transport to the weather domain.
type Handler struct {
	weatherSvc weather.Service
	logger     *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(weatherSvc weather.Service, logger *slog.Logger) *Handler {
	return &Handler{
		weatherSvc: weatherSvc,
		logger:     logger.With("component", "http.handler"),
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SearchCities returns the city list for the current search text.
func (h *Handler) SearchCities(c *gin.Context) {
	resp, err := h.weatherSvc.SearchCities(c.Request.Context(), weather.SearchRequest{
		SessionID: c.GetHeader(sessionHeader),
		Text:      c.Query("search"),
	})
	if err != nil {
		abortWithError(c, domainHTTPError(err, "city_search_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ResolveWeather runs the detail and weather lookups for a selected city.
func (h *Handler) ResolveWeather(c *gin.Context) {
	var req weather.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, weather.CodeInvalidInput, "request body must be JSON with fullName and detailLink", err))
		return
	}
	req.SessionID = c.GetHeader(sessionHeader)

	resp, err := h.weatherSvc.Resolve(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, domainHTTPError(err, "weather_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecentFailures lists the latest resolution failures for diagnosis.
func (h *Handler) RecentFailures(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, weather.CodeInvalidInput, "limit must be a non-negative integer", err))
			return
		}
		limit = parsed
	}
	records, err := h.weatherSvc.RecentFailures(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "journal_failed", "failure journal unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"failures": records})
}
