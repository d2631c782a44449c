// Package boardfeed implements the search producer for JSON job-board APIs
// exposing a paginated /v1/search endpoint.
package boardfeed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// PlatformName is the source tag stamped on records produced by this adapter.
const PlatformName = "boardfeed"

const (
	defaultPageSize   = 50
	maxPages          = 20 // hard cap per criteria; a run never walks more
	maxErrorBodyBytes = 4 * 1024
)

// ProducerOptions configures the boardfeed search producer.
type ProducerOptions struct {
	// BaseURL is the board API endpoint. Required.
	BaseURL string

	// ClientID, ClientSecret and TokenURL configure OAuth2 client-credentials
	// login. All three optional; a board without a token endpoint is searched
	// anonymously.
	ClientID     string
	ClientSecret string
	TokenURL     string

	// HTTPClient overrides the default client. Optional.
	HTTPClient *http.Client
	// Logger is used for adapter logging. Optional.
	Logger *slog.Logger
	// PageSize overrides the per-page result count. Optional.
	PageSize int
}

// Producer fetches postings from a boardfeed-style JSON API, one page at a
// time, and yields them through a pull iterator.
type Producer struct {
	baseURL      string
	clientID     string
	clientSecret string
	tokenURL     string
	pageSize     int
	base         *http.Client
	http         *http.Client
	logger       *slog.Logger
}

// NewProducer creates a boardfeed search producer.
func NewProducer(opts ProducerOptions) (*Producer, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("BaseURL is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Producer{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		tokenURL:     opts.TokenURL,
		pageSize:     pageSize,
		base:         hc,
		http:         hc,
		logger:       logger,
	}, nil
}

// Platform returns the source tag for this adapter.
func (p *Producer) Platform() string { return PlatformName }

// Login obtains an access token through the OAuth2 client-credentials flow
// when a token endpoint is configured. Boards without one need no session.
func (p *Producer) Login(ctx context.Context) error {
	if p.tokenURL == "" {
		p.logger.DebugContext(ctx, "no token endpoint configured, searching anonymously", "platform", PlatformName)
		return nil
	}

	cc := clientcredentials.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		TokenURL:     p.tokenURL,
	}
	// Route the token exchange and all refreshes through our base client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.base)
	ts := cc.TokenSource(ctx)
	if _, err := ts.Token(); err != nil {
		return apperr.Wrap(err, apperr.CodeSearchFailed, "obtain access token")
	}
	p.http = oauth2.NewClient(ctx, ts)
	p.logger.InfoContext(ctx, "platform session established", "platform", PlatformName)
	return nil
}

// Close drops the authenticated session.
func (p *Producer) Close(ctx context.Context) error {
	p.http = p.base
	p.logger.DebugContext(ctx, "platform session released", "platform", PlatformName)
	return nil
}

// Search starts a posting stream for the criteria. The criteria cursor is a
// record offset; a resumed search skips that many postings before yielding.
func (p *Producer) Search(_ context.Context, criteria model.SearchCriteria) (core.RecordIterator, error) {
	if err := criteria.Validate(); err != nil {
		return nil, apperr.Validationf("search criteria: %v", err)
	}
	return &resultIterator{
		p:        p,
		criteria: criteria,
		meta:     criteria.Meta(),
		page:     criteria.Cursor/p.pageSize + 1,
		skip:     criteria.Cursor % p.pageSize,
	}, nil
}

// resultIterator walks result pages lazily. A page shorter than the page
// size ends the stream.
type resultIterator struct {
	p        *Producer
	criteria model.SearchCriteria
	meta     *model.SearchMeta
	page     int
	skip     int
	buf      []*model.JobRecord
	pos      int
	done     bool
	closed   bool
}

func (it *resultIterator) Next(ctx context.Context) (*model.JobRecord, error) {
	if it.closed {
		return nil, core.ErrEndOfResults
	}
	for it.pos >= len(it.buf) {
		if it.done {
			return nil, core.ErrEndOfResults
		}
		if err := it.fetch(ctx); err != nil {
			return nil, err
		}
	}
	rec := it.buf[it.pos]
	it.pos++
	return rec, nil
}

func (it *resultIterator) Close() error {
	it.closed = true
	it.buf = nil
	return nil
}

func (it *resultIterator) fetch(ctx context.Context) error {
	if it.page > maxPages {
		it.done = true
		return nil
	}
	resp, err := it.p.fetchPage(ctx, it.criteria, it.page)
	if err != nil {
		return err
	}
	it.page++
	if len(resp.Postings) < it.p.pageSize {
		it.done = true
	}

	batch := make([]*model.JobRecord, 0, len(resp.Postings))
	for _, post := range resp.Postings {
		batch = append(batch, it.p.toRecord(post, it.meta))
	}
	if it.skip > 0 {
		if it.skip >= len(batch) {
			it.skip -= len(batch)
			batch = batch[:0]
		} else {
			batch = batch[it.skip:]
			it.skip = 0
		}
	}
	it.buf = batch
	it.pos = 0
	return nil
}

// searchResponse mirrors the top-level board search response.
type searchResponse struct {
	Postings []posting `json:"postings"`
	Total    int       `json:"total"`
}

// posting mirrors a single board listing.
type posting struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Company     displayName `json:"company"`
	Location    displayName `json:"location"`
	ApplyMethod string      `json:"apply_method"`
	ApplyURL    string      `json:"apply_url"`
	PostedAgo   string      `json:"posted_ago"`
	Applicants  string      `json:"applicants"`
	Summary     string      `json:"summary"`
}

type displayName struct {
	Name string `json:"name"`
}

func (p *Producer) fetchPage(ctx context.Context, criteria model.SearchCriteria, page int) (*searchResponse, error) {
	reqURL := p.baseURL + "/v1/search?" + searchParams(criteria, page, p.pageSize).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeSearchFailed, "build search request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.CodeSearchFailed, "search page %d", page)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.WarnContext(ctx, "close search response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, apperr.SearchFailedf("board returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out searchResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
		return nil, apperr.Wrap(decodeErr, apperr.CodeSearchFailed, "decode search response")
	}
	return &out, nil
}

func searchParams(c model.SearchCriteria, page, pageSize int) url.Values {
	params := url.Values{}
	params.Set("q", strings.Join(c.Keywords, " "))
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(pageSize))
	params.Set("sort", "date")
	if c.Location != "" {
		params.Set("where", c.Location)
	}
	if c.RemoteOnly {
		params.Set("remote", "true")
	}
	if days := postedWithinDays(c.DatePosted); days > 0 {
		params.Set("posted_within_days", strconv.Itoa(days))
	}
	if len(c.ExperienceLevels) > 0 {
		codes := make([]string, 0, len(c.ExperienceLevels))
		for _, lvl := range c.ExperienceLevels {
			codes = append(codes, strconv.Itoa(lvl.Code()))
		}
		params.Set("experience", strings.Join(codes, ","))
	}
	return params
}

func postedWithinDays(d model.DatePosted) int {
	switch d {
	case model.DatePostedDay:
		return 1
	case model.DatePostedWeek:
		return 7
	case model.DatePostedMonth:
		return 30
	default:
		return 0
	}
}

// toRecord maps a board listing onto a job record. Lifecycle fields stay
// zero; the engine owns state and timestamps.
func (p *Producer) toRecord(post posting, meta *model.SearchMeta) *model.JobRecord {
	method := model.ApplyMethodUnknown
	if m := model.ApplyMethod(post.ApplyMethod); post.ApplyMethod != "" && m.Valid() {
		method = m
	}
	return &model.JobRecord{
		ID:             model.RecordID(PlatformName, post.ID),
		Platform:       PlatformName,
		PostingID:      post.ID,
		Title:          post.Title,
		Company:        post.Company.Name,
		Location:       post.Location.Name,
		ApplyMethod:    method,
		ApplyURL:       post.ApplyURL,
		PostedAgo:      post.PostedAgo,
		ApplicantCount: post.Applicants,
		Description:    post.Summary,
		SearchMeta:     meta,
	}
}
