// Package careers implements the search producer for static careers pages.
// It walks listing HTML with the x/net tokenizer and expects job-card markup
// of the form:
//
//	<li class="job-card" data-posting-id="4021">
//	  <a class="job-title" href="/jobs/4021">Backend Engineer</a>
//	  <span class="company">Initech</span>
//	  <span class="location">Remote</span>
//	  <span class="posted">3 days ago</span>
//	  <p class="summary">...</p>
//	</li>
//
// Missing nodes produce empty record fields rather than errors; records
// without identity are dropped downstream. Experience, posting-age and
// remote filters are not supported by static pages and are applied by the
// ingest filter instead.
package careers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// PlatformName is the source tag stamped on records produced by this adapter.
const PlatformName = "careers"

const maxPages = 10

// ProducerOptions configures the careers-page search producer.
type ProducerOptions struct {
	// BaseURL is the careers site root; listings are fetched from
	// BaseURL/jobs. Required.
	BaseURL string

	// HTTPClient overrides the default client. Optional.
	HTTPClient *http.Client
	// Logger is used for adapter logging. Optional.
	Logger *slog.Logger
}

// Producer scrapes postings out of careers listing pages.
type Producer struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// NewProducer creates a careers-page search producer.
func NewProducer(opts ProducerOptions) (*Producer, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("BaseURL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, errors.New("BaseURL is not a valid URL")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Producer{baseURL: base, http: hc, logger: logger}, nil
}

// Platform returns the source tag for this adapter.
func (p *Producer) Platform() string { return PlatformName }

// Login is a no-op; careers pages need no session.
func (p *Producer) Login(ctx context.Context) error {
	p.logger.DebugContext(ctx, "careers pages need no session", "platform", PlatformName)
	return nil
}

// Close is a no-op.
func (p *Producer) Close(_ context.Context) error { return nil }

// Search starts a posting stream for the criteria. The criteria cursor is a
// record offset skipped from the front of the stream.
func (p *Producer) Search(_ context.Context, criteria model.SearchCriteria) (core.RecordIterator, error) {
	if err := criteria.Validate(); err != nil {
		return nil, apperr.Validationf("search criteria: %v", err)
	}
	return &cardIterator{
		p:        p,
		criteria: criteria,
		meta:     criteria.Meta(),
		page:     1,
		skip:     criteria.Cursor,
		seen:     make(map[string]struct{}),
	}, nil
}

// cardIterator walks listing pages until one yields nothing new. The seen
// set guards against pagers that repeat their last page forever.
type cardIterator struct {
	p        *Producer
	criteria model.SearchCriteria
	meta     *model.SearchMeta
	page     int
	skip     int
	seen     map[string]struct{}
	buf      []*model.JobRecord
	pos      int
	done     bool
	closed   bool
}

func (it *cardIterator) Next(ctx context.Context) (*model.JobRecord, error) {
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

func (it *cardIterator) Close() error {
	it.closed = true
	it.buf = nil
	return nil
}

func (it *cardIterator) fetch(ctx context.Context) error {
	if it.page > maxPages {
		it.done = true
		return nil
	}
	cards, err := it.p.fetchListing(ctx, it.criteria, it.page)
	if err != nil {
		return err
	}
	it.page++

	batch := make([]*model.JobRecord, 0, len(cards))
	for _, card := range cards {
		rec := it.p.toRecord(card, it.meta)
		if _, dup := it.seen[rec.ID]; dup {
			continue
		}
		it.seen[rec.ID] = struct{}{}
		batch = append(batch, rec)
	}
	if len(batch) == 0 {
		it.done = true
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

func (p *Producer) fetchListing(ctx context.Context, criteria model.SearchCriteria, page int) ([]jobCard, error) {
	params := url.Values{}
	params.Set("q", strings.Join(criteria.Keywords, " "))
	if criteria.Location != "" {
		params.Set("l", criteria.Location)
	}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	reqURL := p.baseURL.String() + "/jobs?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeSearchFailed, "build listing request")
	}
	req.Header.Set("Accept", "text/html")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.CodeSearchFailed, "fetch listing page %d", page)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.WarnContext(ctx, "close listing response body", "error", closeErr)
		}
	}()

	// Sites that 404 past their last page end the stream cleanly.
	if resp.StatusCode == http.StatusNotFound && page > 1 {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.SearchFailedf("careers page returned %d", resp.StatusCode)
	}
	return parseJobCards(resp.Body), nil
}

// jobCard holds the fields scraped from one listing card.
type jobCard struct {
	postingID string
	title     string
	company   string
	location  string
	posted    string
	summary   string
	href      string
}

// parseJobCards tokenizes listing HTML and collects job cards. Parse errors
// end the walk; whatever was parsed before them is kept.
func parseJobCards(r io.Reader) []jobCard {
	z := html.NewTokenizer(r)
	var cards []jobCard
	var cur *jobCard
	// field is the card field currently collecting text; fieldTag is the tag
	// that opened it, so nested markup inside a field does not cut it short.
	field, fieldTag := "", ""
	for {
		switch z.Next() {
		case html.ErrorToken:
			if cur != nil {
				cards = append(cards, *cur)
			}
			return cards

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch {
			case hasClass(tok, "job-card"):
				if cur != nil {
					cards = append(cards, *cur)
				}
				cur = &jobCard{postingID: attrVal(tok, "data-posting-id")}
				field, fieldTag = "", ""
			case cur == nil:
				// text outside a card is page chrome
			case hasClass(tok, "job-title"):
				field, fieldTag = "title", tok.Data
				if tok.Data == "a" {
					cur.href = attrVal(tok, "href")
				}
			case hasClass(tok, "company"):
				field, fieldTag = "company", tok.Data
			case hasClass(tok, "location"):
				field, fieldTag = "location", tok.Data
			case hasClass(tok, "posted"):
				field, fieldTag = "posted", tok.Data
			case hasClass(tok, "summary"):
				field, fieldTag = "summary", tok.Data
			}

		case html.TextToken:
			if cur == nil || field == "" {
				continue
			}
			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}
			cur.appendField(field, text)

		case html.EndTagToken:
			tok := z.Token()
			if tok.Data == fieldTag {
				field, fieldTag = "", ""
			}
			if tok.Data == "li" && cur != nil {
				cards = append(cards, *cur)
				cur = nil
				field, fieldTag = "", ""
			}
		}
	}
}

func (c *jobCard) appendField(field, text string) {
	var dst *string
	switch field {
	case "title":
		dst = &c.title
	case "company":
		dst = &c.company
	case "location":
		dst = &c.location
	case "posted":
		dst = &c.posted
	case "summary":
		dst = &c.summary
	default:
		return
	}
	if *dst == "" {
		*dst = text
		return
	}
	*dst += " " + text
}

func hasClass(tok html.Token, class string) bool {
	for _, a := range tok.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func attrVal(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// toRecord maps a scraped card onto a job record. A card without a
// data-posting-id falls back to the last path segment of its link.
func (p *Producer) toRecord(card jobCard, meta *model.SearchMeta) *model.JobRecord {
	postingID := card.postingID
	if postingID == "" {
		postingID = postingIDFromHref(card.href)
	}
	return &model.JobRecord{
		ID:          model.RecordID(PlatformName, postingID),
		Platform:    PlatformName,
		PostingID:   postingID,
		Title:       card.title,
		Company:     card.company,
		Location:    card.location,
		ApplyMethod: model.ApplyMethodExternal,
		ApplyURL:    p.resolveURL(card.href),
		PostedAgo:   card.posted,
		Description: card.summary,
		SearchMeta:  meta,
	}
}

func postingIDFromHref(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func (p *Producer) resolveURL(href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(ref).String()
}
