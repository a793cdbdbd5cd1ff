package teleport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/cityweather/internal/domain/weather"
	apperrors "github.com/yanqian/cityweather/pkg/errors"
)

const searchFixture = `{
  "_embedded": {
    "city:search-results": [
      {
        "_links": {"city:item": {"href": "https://api.teleport.org/api/cities/geonameid:2950159/"}},
        "matching_alternate_names": [{"name": "Berlin"}],
        "matching_full_name": "Berlin, Berlin, Germany"
      },
      {
        "_links": {"city:item": {"href": "https://api.teleport.org/api/cities/geonameid:5083330/"}},
        "matching_full_name": "Berlin, New Hampshire, United States"
      }
    ]
  },
  "count": 2
}`

const detailFixture = `{
  "full_name": "Berlin, Berlin, Germany",
  "location": {
    "geohash": "u33dc0cppjs7bk2uf5yx",
    "latlon": {"latitude": 52.52, "longitude": 13.4}
  }
}`

func TestSearchParsesCandidates(t *testing.T) {
	var gotQuery, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchFixture))
	}))
	defer srv.Close()

	client := newClientUnderTest(t, srv.URL+"/api/cities/")
	res, err := client.Search(context.Background(), "Berlin")
	require.NoError(t, err)
	require.Equal(t, "Berlin", gotQuery)
	require.Equal(t, "/api/cities/", gotPath)
	require.Equal(t, "Berlin", res.Query)
	require.Len(t, res.Candidates, 2)
	require.Equal(t, "Berlin, Berlin, Germany", res.Candidates[0].FullName)
	require.Equal(t, "https://api.teleport.org/api/cities/geonameid:2950159/", res.Candidates[0].DetailLink)
	require.Equal(t, "Berlin, New Hampshire, United States", res.Candidates[1].FullName)
	require.Equal(t, "https://api.teleport.org/api/cities/geonameid:5083330/", res.Candidates[1].DetailLink)
	require.NotEmpty(t, res.Candidates[0].ID)
	require.NotEqual(t, res.Candidates[0].ID, res.Candidates[1].ID)
}

func TestSearchIDsAreNotStableAcrossFetches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchFixture))
	}))
	defer srv.Close()

	client := newClientUnderTest(t, srv.URL)
	first, err := client.Search(context.Background(), "Berlin")
	require.NoError(t, err)
	second, err := client.Search(context.Background(), "Berlin")
	require.NoError(t, err)
	require.NotEqual(t, first.Candidates[0].ID, second.Candidates[0].ID)
}

func TestSearchEmptyQueryIsSent(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"_embedded":{"city:search-results":[]}}`))
	}))
	defer srv.Close()

	res, err := newClientUnderTest(t, srv.URL).Search(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "search=", rawQuery)
	require.Empty(t, res.Candidates)
}

func TestSearchEscapesQuery(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("search")
		_, _ = w.Write([]byte(`{"_embedded":{"city:search-results":[]}}`))
	}))
	defer srv.Close()

	_, err := newClientUnderTest(t, srv.URL).Search(context.Background(), "São Paulo&x=1")
	require.NoError(t, err)
	require.Equal(t, "São Paulo&x=1", got)
}

func TestSearchFailureKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		code   string
	}{
		{name: "non-200", status: http.StatusServiceUnavailable, body: `oops`, code: weather.CodeUnexpectedStatus},
		{name: "no content", status: http.StatusNoContent, body: ``, code: weather.CodeUnexpectedStatus},
		{name: "invalid json", status: http.StatusOK, body: `{"_embedded":`, code: weather.CodeMalformedResponse},
		{name: "missing embedded", status: http.StatusOK, body: `{"count":0}`, code: weather.CodeMalformedResponse},
		{name: "missing results", status: http.StatusOK, body: `{"_embedded":{}}`, code: weather.CodeMalformedResponse},
		{name: "missing href", status: http.StatusOK, body: `{"_embedded":{"city:search-results":[{"matching_full_name":"X"}]}}`, code: weather.CodeMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newClientUnderTest(t, srv.URL).Search(context.Background(), "Berlin")
			require.Error(t, err)
			require.True(t, apperrors.IsCode(err, tc.code), "got %v", err)
		})
	}
}

func TestSearchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newClientUnderTest(t, url).Search(context.Background(), "Berlin")
	require.True(t, apperrors.IsCode(err, weather.CodeUnexpectedStatus))
}

func TestSearchHonoursCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newClientUnderTest(t, srv.URL).Search(ctx, "Berlin")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, apperrors.CodeOf(err))
}

func TestFetchDetail(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(detailFixture))
	}))
	defer srv.Close()

	client := newClientUnderTest(t, srv.URL+"/api/cities/")
	detail, err := client.FetchDetail(context.Background(), srv.URL+"/api/cities/geonameid:2950159/")
	require.NoError(t, err)
	require.Equal(t, "/api/cities/geonameid:2950159/", gotPath)
	require.Equal(t, "u33dc0cppjs7bk2uf5yx", detail.Geohash)
	require.NotNil(t, detail.Location)
	require.Equal(t, 52.52, detail.Location.Latitude)
	require.Equal(t, 13.4, detail.Location.Longitude)
}

func TestFetchDetailWithoutCoordinates(t *testing.T) {
	bodies := []string{
		`{"location":{"geohash":"u33"}}`,
		`{"location":{"geohash":"u33","latlon":{"latitude":52.52}}}`,
		`{"full_name":"Somewhere"}`,
	}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		detail, err := newClientUnderTest(t, srv.URL).FetchDetail(context.Background(), srv.URL+"/x")
		srv.Close()
		require.NoError(t, err, body)
		require.Nil(t, detail.Location, body)
	}
}

func TestFetchDetailRejectsLinks(t *testing.T) {
	client := newClientUnderTest(t, "https://api.teleport.org/api/cities/")
	links := []string{
		"",
		"/api/cities/geonameid:1/",
		"ftp://api.teleport.org/x",
		"http://169.254.169.254/latest/meta-data",
		"://bad",
	}
	for _, link := range links {
		_, err := client.FetchDetail(context.Background(), link)
		require.True(t, apperrors.IsCode(err, weather.CodeInvalidRequest), "link %q: %v", link, err)
	}
}

func TestFetchDetailNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newClientUnderTest(t, srv.URL).FetchDetail(context.Background(), srv.URL+"/missing")
	require.True(t, apperrors.IsCode(err, weather.CodeUnexpectedStatus))
}

func TestNewClientRejectsRelativeBase(t *testing.T) {
	_, err := NewClient("api/cities", time.Second, newTestLogger())
	require.Error(t, err)

	client, err := NewClient("", 0, newTestLogger())
	require.NoError(t, err)
	require.Equal(t, "api.teleport.org", client.baseURL.Host)
}

func newClientUnderTest(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(baseURL, 2*time.Second, newTestLogger())
	require.NoError(t, err)
	return client
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
