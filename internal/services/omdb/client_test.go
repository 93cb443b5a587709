package omdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amaumene/unmonitarr/internal/services/rest"
	"github.com/amaumene/unmonitarr/internal/utils"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var titles = map[string]titleResponse{
	"tt1": {Title: "Foo Show", Year: "2008–2013", ImdbID: "tt1", Type: "series", Response: "True"},
	"tt2": {Title: "Foo", Year: "2019", ImdbID: "tt2", Type: "series", Response: "True"},
	"tt3": {Title: "Foo Again", Year: "2019", ImdbID: "tt3", Type: "series", Response: "True"},
}

func newOMDbServer(t *testing.T, searchHits []titleResponse, detailCalls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("apikey"))

		if id := q.Get("i"); id != "" {
			atomic.AddInt32(detailCalls, 1)
			resp, ok := titles[id]
			if !ok {
				resp = titleResponse{Response: "False", Error: "Incorrect IMDb ID."}
			}
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		if len(searchHits) == 0 {
			_ = json.NewEncoder(w).Encode(searchResponse{Response: "False", Error: "Movie not found!"})
			return
		}
		_ = json.NewEncoder(w).Encode(searchResponse{Search: searchHits, Response: "True"})
	}))
}

func newTestClient(serverURL string) *Client {
	logger, _ := test.NewNullLogger()
	return NewClient("key", rest.Options{
		BaseURL: serverURL,
		Retry:   utils.RetryPolicy{Attempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	}, logger)
}

func TestFindBestMatchByIMDBID(t *testing.T) {
	var calls int32
	server := newOMDbServer(t, nil, &calls)
	defer server.Close()

	match, err := newTestClient(server.URL).FindBestMatch(context.Background(), "whatever", "series", nil, "tt1")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "tt1", match.ImdbID)
	assert.Nil(t, match.Year, "year ranges are not parsed")
}

func TestFindBestMatchPrefersExactTitle(t *testing.T) {
	var calls int32
	server := newOMDbServer(t, []titleResponse{{ImdbID: "tt1"}, {ImdbID: "tt3"}, {ImdbID: "tt2"}}, &calls)
	defer server.Close()

	year := 2019
	match, err := newTestClient(server.URL).FindBestMatch(context.Background(), "foo", "series", &year, "")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "tt2", match.ImdbID)
}

func TestFindBestMatchFallsBackToYear(t *testing.T) {
	var calls int32
	server := newOMDbServer(t, []titleResponse{{ImdbID: "tt1"}, {ImdbID: "tt3"}}, &calls)
	defer server.Close()

	year := 2019
	match, err := newTestClient(server.URL).FindBestMatch(context.Background(), "bar", "series", &year, "")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "tt3", match.ImdbID)
}

func TestFindBestMatchNoResults(t *testing.T) {
	var calls int32
	server := newOMDbServer(t, nil, &calls)
	defer server.Close()

	match, err := newTestClient(server.URL).FindBestMatch(context.Background(), "nothing", "movie", nil, "")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestSearchLimitsDetailLookups(t *testing.T) {
	var calls int32
	hits := make([]titleResponse, 8)
	for i := range hits {
		hits[i] = titleResponse{ImdbID: "tt1"}
	}
	server := newOMDbServer(t, hits, &calls)
	defer server.Close()

	matches, err := newTestClient(server.URL).Search(context.Background(), "foo", "series", nil)
	require.NoError(t, err)
	assert.Len(t, matches, searchDetailLimit)
	assert.Equal(t, int32(searchDetailLimit), atomic.LoadInt32(&calls))
}

func TestParseYear(t *testing.T) {
	assert.Equal(t, 1999, *parseYear("1999"))
	assert.Nil(t, parseYear("1999–"))
	assert.Nil(t, parseYear(""))
	assert.Nil(t, parseYear("N/A"))
}
