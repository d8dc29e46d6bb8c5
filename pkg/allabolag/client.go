// Package allabolag provides a client for the allabolag.se company registry.
//
// The registry is a Next.js site: JSON payloads live under
// /_next/data/{buildId}/... and the buildId rotates on every deploy. The
// client discovers the current buildId from the landing page and refreshes
// it when a data URL starts returning 404.
package allabolag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/Smooother/nivo-web-sub001/internal/resilience"
)

// Client defines the registry operations the pipeline needs.
type Client interface {
	// FetchSegment returns one page of the segmentation listing. An empty
	// slice with a nil error means the page had no companies.
	FetchSegment(ctx context.Context, filter SegmentFilter, page int) ([]Company, error)
	// Search runs a free-text search and returns candidate companies. A
	// query with no hits returns an empty slice, not an error.
	Search(ctx context.Context, query string) ([]Candidate, error)
	// FetchFinancials returns all accounting periods published for the
	// company. An empty slice means the registry has none.
	FetchFinancials(ctx context.Context, companyID string) ([]FinancialLine, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) { c.retry = p }
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	retry   resilience.Policy

	mu      sync.Mutex
	buildID string
}

// NewClient creates a registry client with sane defaults: 2 req/s, three
// attempts per call, breaker after five consecutive transient failures.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://www.allabolag.se",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		breaker: resilience.NewBreaker(5, 30*time.Second),
		retry:   resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var buildIDPattern = regexp.MustCompile(`"buildId"\s*:\s*"([^"]+)"`)

// getBuildID returns the cached buildId, discovering it from the landing
// page on first use.
func (c *httpClient) getBuildID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buildID != "" {
		return c.buildID, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", eris.Wrap(err, "allabolag: create build id request")
	}
	req.Header.Set("Accept", "text/html")

	body, status, err := c.do(ctx, req)
	if err != nil {
		return "", eris.Wrap(err, "allabolag: discover build id")
	}
	if status != http.StatusOK {
		return "", eris.Errorf("allabolag: build id discovery status %d", status)
	}

	m := buildIDPattern.FindSubmatch(body)
	if m == nil {
		return "", eris.New("allabolag: no buildId in landing page")
	}
	c.buildID = string(m[1])
	return c.buildID, nil
}

func (c *httpClient) invalidateBuildID() {
	c.mu.Lock()
	c.buildID = ""
	c.mu.Unlock()
}

// do runs one HTTP request through the limiter, breaker and retry policy.
func (c *httpClient) do(ctx context.Context, req *http.Request) ([]byte, int, error) {
	type result struct {
		body   []byte
		status int
	}

	res, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (result, error) {
		if err := c.breaker.Allow(); err != nil {
			return result{}, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return result{}, err
		}

		resp, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			c.breaker.Record(err)
			return result{}, err
		}
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			readErr = eris.Wrap(readErr, "allabolag: read response body")
			c.breaker.Record(readErr)
			return result{}, readErr
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			err := resilience.NewTransientError(
				eris.Errorf("allabolag: status %d", resp.StatusCode), resp.StatusCode)
			c.breaker.Record(err)
			return result{}, err
		}

		c.breaker.Record(nil)
		return result{body: body, status: resp.StatusCode}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return res.body, res.status, nil
}

// fetchData GETs a data-route path relative to /_next/data/{buildId}. A 404
// usually means the buildId rotated, so it rediscovers once and retries.
func (c *httpClient) fetchData(ctx context.Context, path string) ([]byte, int, error) {
	for attempt := 0; attempt < 2; attempt++ {
		buildID, err := c.getBuildID(ctx)
		if err != nil {
			return nil, 0, err
		}

		reqURL := fmt.Sprintf("%s/_next/data/%s%s", c.baseURL, buildID, path)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, 0, eris.Wrap(err, "allabolag: create data request")
		}
		req.Header.Set("Accept", "application/json")

		body, status, err := c.do(ctx, req)
		if err != nil {
			return nil, 0, err
		}
		if status == http.StatusNotFound && attempt == 0 {
			c.invalidateBuildID()
			continue
		}
		return body, status, nil
	}
	return nil, http.StatusNotFound, nil
}

func (c *httpClient) FetchSegment(ctx context.Context, filter SegmentFilter, page int) ([]Company, error) {
	if page < 1 {
		return nil, eris.Errorf("allabolag: page %d out of range", page)
	}
	companyType := filter.CompanyType
	if companyType == "" {
		companyType = "AB"
	}

	q := url.Values{}
	q.Set("revenueFrom", strconv.FormatInt(filter.RevenueFrom, 10))
	q.Set("revenueTo", strconv.FormatInt(filter.RevenueTo, 10))
	q.Set("profitFrom", strconv.FormatInt(filter.ProfitFrom, 10))
	q.Set("profitTo", strconv.FormatInt(filter.ProfitTo, 10))
	q.Set("companyType", companyType)
	q.Set("page", strconv.Itoa(page))

	body, status, err := c.fetchData(ctx, "/segmentering.json?"+q.Encode())
	if err != nil {
		return nil, eris.Wrapf(err, "allabolag: fetch segment page %d", page)
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("allabolag: segment page %d status %d", page, status)
	}

	var env segmentEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrapf(err, "allabolag: unmarshal segment page %d", page)
	}

	wire := env.companies()
	companies := make([]Company, 0, len(wire))
	for _, w := range wire {
		companies = append(companies, w.toCompany())
	}
	return companies, nil
}

func (c *httpClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	if query == "" {
		return nil, eris.New("allabolag: empty search query")
	}

	body, status, err := c.fetchData(ctx, "/what/"+url.PathEscape(query)+".json")
	if err != nil {
		return nil, eris.Wrapf(err, "allabolag: search %q", query)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("allabolag: search %q status %d", query, status)
	}

	var env searchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrapf(err, "allabolag: unmarshal search %q", query)
	}

	wire := env.companies()
	candidates := make([]Candidate, 0, len(wire))
	for _, w := range wire {
		id := w.id()
		if id == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			CompanyID: id,
			OrgNumber: NormalizeOrgNumber(w.orgNumber()),
			Name:      w.Name,
		})
	}
	return candidates, nil
}

func (c *httpClient) FetchFinancials(ctx context.Context, companyID string) ([]FinancialLine, error) {
	if companyID == "" {
		return nil, eris.New("allabolag: empty company id")
	}

	body, status, err := c.fetchData(ctx, "/foretag/"+url.PathEscape(companyID)+".json")
	if err != nil {
		return nil, eris.Wrapf(err, "allabolag: fetch financials for %s", companyID)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("allabolag: financials for %s status %d", companyID, status)
	}

	var env financialEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrapf(err, "allabolag: unmarshal financials for %s", companyID)
	}

	lines := make([]FinancialLine, 0, len(env.PageProps.Company.CompanyAccounts))
	for _, raw := range env.PageProps.Company.CompanyAccounts {
		var period wireAccountPeriod
		if err := json.Unmarshal(raw, &period); err != nil {
			return nil, eris.Wrapf(err, "allabolag: unmarshal account period for %s", companyID)
		}
		if period.Year == 0 {
			continue
		}
		lines = append(lines, period.toLine(raw))
	}
	return lines, nil
}
