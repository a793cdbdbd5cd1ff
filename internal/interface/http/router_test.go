package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/cityweather/internal/domain/weather"
	"github.com/yanqian/cityweather/internal/infra/config"
	apperrors "github.com/yanqian/cityweather/pkg/errors"
)

func TestRouter_Health(t *testing.T) {
	recorder := performRequest(http.MethodGet, "/healthz", "", nil, newRouterUnderTest(t, &stubWeatherService{}))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}

func TestRouter_SearchCities(t *testing.T) {
	var got weather.SearchRequest
	svc := &stubWeatherService{
		searchFn: func(ctx context.Context, req weather.SearchRequest) (weather.SearchResponse, error) {
			got = req
			return weather.SearchResponse{
				Query:      "Berlin",
				Generation: 3,
				Cities: []weather.CityView{{
					ID:          "c1",
					FullName:    "Berlin, Berlin, Germany",
					DisplayName: "Berlin, Germany",
					DetailLink:  "https://api.teleport.org/api/cities/geonameid:2950159/",
				}},
			}, nil
		},
	}

	headers := map[string]string{sessionHeader: "tab-1"}
	recorder := performRequest(http.MethodGet, "/api/v1/cities?search=Berlin", "", headers, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "Berlin", got.Text)
	require.Equal(t, "tab-1", got.SessionID)

	var body weather.SearchResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, uint64(3), body.Generation)
	require.Len(t, body.Cities, 1)
	require.Equal(t, "Berlin, Germany", body.Cities[0].DisplayName)
}

func TestRouter_SearchCitiesErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "upstream status", err: apperrors.Wrap(weather.CodeUnexpectedStatus, "city search unavailable", nil), status: http.StatusBadGateway, code: weather.CodeUnexpectedStatus},
		{name: "malformed", err: apperrors.Wrap(weather.CodeMalformedResponse, "city search unavailable", nil), status: http.StatusBadGateway, code: weather.CodeMalformedResponse},
		{name: "stale", err: apperrors.Wrap(weather.CodeStaleResult, "a newer request superseded this one", nil), status: http.StatusConflict, code: weather.CodeStaleResult},
		{name: "unknown", err: io.ErrUnexpectedEOF, status: http.StatusInternalServerError, code: "city_search_failed"},
		{name: "cancelled", err: context.Canceled, status: statusClientClosedRequest, code: "request_cancelled"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubWeatherService{
				searchFn: func(ctx context.Context, req weather.SearchRequest) (weather.SearchResponse, error) {
					return weather.SearchResponse{}, tc.err
				},
			}
			recorder := performRequest(http.MethodGet, "/api/v1/cities?search=Berlin", "", nil, newRouterUnderTest(t, svc))
			require.Equal(t, tc.status, recorder.Code)
			errBody := decodeErrorBody(t, recorder.Body.Bytes())
			require.Equal(t, tc.code, errBody["error"]["code"])
			require.NotEmpty(t, errBody["error"]["message"])
		})
	}
}

func TestRouter_ResolveWeather(t *testing.T) {
	var got weather.ResolveRequest
	svc := &stubWeatherService{
		resolveFn: func(ctx context.Context, req weather.ResolveRequest) (weather.ResolveResponse, error) {
			got = req
			return weather.ResolveResponse{
				State: weather.StateReady,
				View: &weather.ResolvedView{
					CityFullName: req.FullName,
					CityName:     "Berlin",
					Category:     weather.CategoryClearDay,
					Symbol:       weather.CategoryClearDay.Symbol(),
					Snapshot:     weather.WeatherSnapshot{ConditionCode: 800, Temperature: 15},
				},
			}, nil
		},
	}

	headers := map[string]string{sessionHeader: "tab-1"}
	body := `{"fullName":"Berlin, Berlin, Germany","detailLink":"https://api.teleport.org/api/cities/geonameid:2950159/"}`
	recorder := performRequest(http.MethodPost, "/api/v1/weather", body, headers, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "tab-1", got.SessionID)
	require.Equal(t, "Berlin, Berlin, Germany", got.FullName)

	var resp weather.ResolveResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Equal(t, weather.StateReady, resp.State)
	require.NotNil(t, resp.View)
	require.Equal(t, weather.CategoryClearDay, resp.View.Category)
	require.Equal(t, 15.0, resp.View.Snapshot.Temperature)
}

func TestRouter_ResolveWeatherIgnoresSessionInBody(t *testing.T) {
	var got weather.ResolveRequest
	svc := &stubWeatherService{
		resolveFn: func(ctx context.Context, req weather.ResolveRequest) (weather.ResolveResponse, error) {
			got = req
			return weather.ResolveResponse{State: weather.StateReady}, nil
		},
	}
	body := `{"SessionID":"spoofed","fullName":"X","detailLink":"https://a/b"}`
	recorder := performRequest(http.MethodPost, "/api/v1/weather", body, nil, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Empty(t, got.SessionID)
}

func TestRouter_ResolveWeatherInvalidJSON(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/api/v1/weather", `{"fullName":1}`, nil, newRouterUnderTest(t, &stubWeatherService{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, weather.CodeInvalidInput, errBody["error"]["code"])
	require.NotEmpty(t, errBody["error"]["message"])
}

func TestRouter_ResolveWeatherErrorStatuses(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{name: "empty link", err: apperrors.Wrap(weather.CodeInvalidInput, "detailLink cannot be empty", nil), status: http.StatusBadRequest, code: weather.CodeInvalidInput, message: "detailLink cannot be empty"},
		{name: "bad link", err: apperrors.Wrap(weather.CodeInvalidRequest, "city link is not usable", nil), status: http.StatusBadRequest, code: weather.CodeInvalidRequest, message: "city link is not usable"},
		{name: "missing location", err: apperrors.Wrap(weather.CodeMissingLocation, "location unavailable for this city", nil), status: http.StatusUnprocessableEntity, code: weather.CodeMissingLocation, message: "location unavailable for this city"},
		{name: "upstream", err: apperrors.Wrap(weather.CodeUnexpectedStatus, "weather unavailable", io.EOF), status: http.StatusBadGateway, code: weather.CodeUnexpectedStatus, message: "weather unavailable"},
		{name: "stale", err: apperrors.Wrap(weather.CodeStaleResult, "a newer request superseded this one", nil), status: http.StatusConflict, code: weather.CodeStaleResult, message: "a newer request superseded this one"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubWeatherService{
				resolveFn: func(ctx context.Context, req weather.ResolveRequest) (weather.ResolveResponse, error) {
					return weather.ResolveResponse{}, tc.err
				},
			}
			body := `{"fullName":"Berlin","detailLink":"https://api.teleport.org/x"}`
			recorder := performRequest(http.MethodPost, "/api/v1/weather", body, nil, newRouterUnderTest(t, svc))
			require.Equal(t, tc.status, recorder.Code)
			errBody := decodeErrorBody(t, recorder.Body.Bytes())
			require.Equal(t, tc.code, errBody["error"]["code"])
			require.Equal(t, tc.message, errBody["error"]["message"])
		})
	}
}

func TestRouter_RecentFailures(t *testing.T) {
	var gotLimit int
	svc := &stubWeatherService{
		failuresFn: func(ctx context.Context, limit int) ([]weather.FailureRecord, error) {
			gotLimit = limit
			return []weather.FailureRecord{{ID: "f1", City: "Nowhere", Kind: weather.FailureMissingLocation, Stage: weather.StateFetchingDetail}}, nil
		},
	}

	recorder := performRequest(http.MethodGet, "/api/v1/lookups/failures?limit=7", "", nil, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, 7, gotLimit)

	var body struct {
		Failures []weather.FailureRecord `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Failures, 1)
	require.Equal(t, weather.FailureMissingLocation, body.Failures[0].Kind)
}

func TestRouter_RecentFailuresInvalidLimit(t *testing.T) {
	recorder := performRequest(http.MethodGet, "/api/v1/lookups/failures?limit=abc", "", nil, newRouterUnderTest(t, &stubWeatherService{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	headers := map[string]string{"Origin": "https://app.example.com"}
	recorder := performRequest(http.MethodOptions, "/api/v1/weather", "", headers, newRouterUnderTest(t, &stubWeatherService{}))
	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, recorder.Header().Get("Access-Control-Allow-Headers"), sessionHeader)
	require.Equal(t, corsMaxAge, recorder.Header().Get("Access-Control-Max-Age"))
}

func TestResolveOrigin(t *testing.T) {
	allowed := []string{"https://a.example.com", "https://b.example.com"}
	require.Equal(t, "https://b.example.com", resolveOrigin("https://B.example.com", allowed))
	require.Equal(t, "https://a.example.com", resolveOrigin("https://evil.example.com", allowed))
	require.Equal(t, "*", resolveOrigin("https://x", nil))
}

func performRequest(method, path, body string, headers map[string]string, server *http.Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newRouterUnderTest(t *testing.T, svc weather.Service) *http.Server {
	t.Helper()
	handler := NewHandler(svc, newTestLogger())
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
	return NewRouter(cfg, handler)
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type stubWeatherService struct {
	searchFn   func(ctx context.Context, req weather.SearchRequest) (weather.SearchResponse, error)
	resolveFn  func(ctx context.Context, req weather.ResolveRequest) (weather.ResolveResponse, error)
	failuresFn func(ctx context.Context, limit int) ([]weather.FailureRecord, error)
}

func (s *stubWeatherService) SearchCities(ctx context.Context, req weather.SearchRequest) (weather.SearchResponse, error) {
	if s.searchFn != nil {
		return s.searchFn(ctx, req)
	}
	return weather.SearchResponse{Cities: []weather.CityView{}}, nil
}

func (s *stubWeatherService) Resolve(ctx context.Context, req weather.ResolveRequest) (weather.ResolveResponse, error) {
	if s.resolveFn != nil {
		return s.resolveFn(ctx, req)
	}
	return weather.ResolveResponse{}, nil
}

func (s *stubWeatherService) RecentFailures(ctx context.Context, limit int) ([]weather.FailureRecord, error) {
	if s.failuresFn != nil {
		return s.failuresFn(ctx, limit)
	}
	return []weather.FailureRecord{}, nil
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
