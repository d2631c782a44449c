package careers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

const listingHTML = `<!DOCTYPE html>
<html>
<body>
<header><nav>Open roles</nav></header>
<ul class="job-list">
  <li class="job-card" data-posting-id="4021">
    <a class="job-title" href="/jobs/4021">Backend Engineer</a>
    <span class="company">Initech</span>
    <span class="location">Remote</span>
    <span class="posted">3 days ago</span>
    <p class="summary">Build <strong>Go</strong> services.</p>
  </li>
  <li class="job-card">
    <a class="job-title" href="https://other.example/careers/5077/">Platform Engineer</a>
    <span class="company">Globex</span>
    <span class="location">Berlin</span>
  </li>
</ul>
</body>
</html>`

const emptyListingHTML = `<html><body><ul class="job-list"></ul></body></html>`

func newTestProducer(t *testing.T, baseURL string) *Producer {
	t.Helper()
	p, err := NewProducer(ProducerOptions{BaseURL: baseURL})
	require.NoError(t, err)
	return p
}

func drain(t *testing.T, it core.RecordIterator) []*model.JobRecord {
	t.Helper()
	var recs []*model.JobRecord
	for {
		rec, err := it.Next(context.Background())
		if err != nil {
			require.ErrorIs(t, err, core.ErrEndOfResults)
			return recs
		}
		recs = append(recs, rec)
	}
}

func searchCriteria() model.SearchCriteria {
	return model.SearchCriteria{Keywords: []string{"engineer"}, Location: "Berlin"}
}

func TestNewProducerValidation(t *testing.T) {
	_, err := NewProducer(ProducerOptions{})
	assert.EqualError(t, err, "BaseURL is required")

	_, err = NewProducer(ProducerOptions{BaseURL: "%zz"})
	assert.EqualError(t, err, "BaseURL is not a valid URL")

	p := newTestProducer(t, "https://jobs.example/")
	assert.Equal(t, PlatformName, p.Platform())
	assert.NoError(t, p.Login(context.Background()))
	assert.NoError(t, p.Close(context.Background()))
}

func TestProducerSearchParsesCards(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "" {
			fmt.Fprint(w, emptyListingHTML)
			return
		}
		gotQuery = map[string]string{
			"q": r.URL.Query().Get("q"),
			"l": r.URL.Query().Get("l"),
		}
		fmt.Fprint(w, listingHTML)
	}))
	defer srv.Close()

	p := newTestProducer(t, srv.URL)
	it, err := p.Search(context.Background(), searchCriteria())
	require.NoError(t, err)

	recs := drain(t, it)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "careers:4021", first.ID)
	assert.Equal(t, PlatformName, first.Platform)
	assert.Equal(t, "4021", first.PostingID)
	assert.Equal(t, "Backend Engineer", first.Title)
	assert.Equal(t, "Initech", first.Company)
	assert.Equal(t, "Remote", first.Location)
	assert.Equal(t, "3 days ago", first.PostedAgo)
	assert.Equal(t, "Build Go services.", first.Description)
	assert.Equal(t, model.ApplyMethodExternal, first.ApplyMethod)
	assert.Equal(t, srv.URL+"/jobs/4021", first.ApplyURL)
	require.NotNil(t, first.SearchMeta)
	assert.Equal(t, []string{"engineer"}, first.SearchMeta.Keywords)

	second := recs[1]
	assert.Equal(t, "careers:5077", second.ID, "posting id falls back to the link path")
	assert.Equal(t, "https://other.example/careers/5077/", second.ApplyURL)
	assert.Empty(t, second.PostedAgo)

	assert.Equal(t, "engineer", gotQuery["q"])
	assert.Equal(t, "Berlin", gotQuery["l"])
}

func TestProducerSearchRepeatingPagerStops(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, listingHTML)
	}))
	defer srv.Close()

	p := newTestProducer(t, srv.URL)
	it, err := p.Search(context.Background(), searchCriteria())
	require.NoError(t, err)

	recs := drain(t, it)
	assert.Len(t, recs, 2)
	assert.Equal(t, 2, calls, "a page with nothing new ends the stream")
}

func TestProducerSearchNotFoundEndsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, listingHTML)
	}))
	defer srv.Close()

	p := newTestProducer(t, srv.URL)
	it, err := p.Search(context.Background(), searchCriteria())
	require.NoError(t, err)

	recs := drain(t, it)
	assert.Len(t, recs, 2)
}

func TestProducerSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := newTestProducer(t, srv.URL)
	it, err := p.Search(context.Background(), searchCriteria())
	require.NoError(t, err)

	_, err = it.Next(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsSearchFailed(err))
	assert.Contains(t, err.Error(), "careers page returned 503")
}

func TestProducerSearchCursorSkips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "" {
			fmt.Fprint(w, emptyListingHTML)
			return
		}
		fmt.Fprint(w, listingHTML)
	}))
	defer srv.Close()

	p := newTestProducer(t, srv.URL)
	criteria := searchCriteria()
	criteria.Cursor = 1
	it, err := p.Search(context.Background(), criteria)
	require.NoError(t, err)

	recs := drain(t, it)
	require.Len(t, recs, 1)
	assert.Equal(t, "careers:5077", recs[0].ID)
}

func TestProducerSearchInvalidCriteria(t *testing.T) {
	p := newTestProducer(t, "https://jobs.example")
	_, err := p.Search(context.Background(), model.SearchCriteria{})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestParseJobCardsTolerant(t *testing.T) {
	t.Run("truncated markup keeps the open card", func(t *testing.T) {
		cards := parseJobCards(strings.NewReader(
			`<li class="job-card" data-posting-id="9"><a class="job-title" href="/jobs/9">Engineer`))
		require.Len(t, cards, 1)
		assert.Equal(t, "9", cards[0].postingID)
		assert.Equal(t, "Engineer", cards[0].title)
	})

	t.Run("missing nodes leave empty fields", func(t *testing.T) {
		cards := parseJobCards(strings.NewReader(
			`<li class="job-card" data-posting-id="10"><span class="company">Acme</span></li>`))
		require.Len(t, cards, 1)
		assert.Empty(t, cards[0].title)
		assert.Equal(t, "Acme", cards[0].company)
	})

	t.Run("no cards", func(t *testing.T) {
		assert.Empty(t, parseJobCards(strings.NewReader("<html><body>nothing here</body></html>")))
	})

	t.Run("extra classes still match", func(t *testing.T) {
		cards := parseJobCards(strings.NewReader(
			`<div class="card job-card featured" data-posting-id="11"><h2 class="job-title big">Staff Engineer</h2></div>`))
		require.Len(t, cards, 1)
		assert.Equal(t, "Staff Engineer", cards[0].title)
		assert.Empty(t, cards[0].href, "only links carry an href")
	})
}

func TestIteratorCloseEndsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingHTML)
	}))
	defer srv.Close()

	p := newTestProducer(t, srv.URL)
	it, err := p.Search(context.Background(), searchCriteria())
	require.NoError(t, err)

	_, err = it.Next(context.Background())
	require.NoError(t, err)
	require.NoError(t, it.Close())

	_, err = it.Next(context.Background())
	assert.ErrorIs(t, err, core.ErrEndOfResults)
}
