// Package cipapi is the HTTP client for the case-interpretation API. It
// implements the CaseSource contract consumed by the classification pipeline:
// case-list fetch, per-case detail fetch and per-provider interpreted-genome
// fetch.
package cipapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/moka-guys/negneg/internal/domain"
)

// Config holds the client settings.
type Config struct {
	// BaseURL is the API root, e.g. "https://cipapi.example.nhs.uk/api/2".
	BaseURL string
	// Token is the JWT presented on every request.
	Token string
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
	// RateLimit caps outgoing requests per second.
	RateLimit float64
	// CacheSize is the number of interpreted-genome payloads kept in memory;
	// the same payload is fetched for the filters of every classification.
	CacheSize int
	// PageSize is the case-list page size.
	PageSize int
}

// Client is a rate-limited, circuit-broken interpretation API client.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	genomes *lru.Cache[string, *domain.InterpretedGenome]
	page    int
	log     *logrus.Logger
}

// NewClient creates an interpretation API client.
func NewClient(config Config, logger *logrus.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("interpretation API base URL is required")
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 256
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 5
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 4
	httpClient.HTTPClient.Timeout = config.Timeout
	httpClient.Logger = nil

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cip-api",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	genomes, err := lru.New[string, *domain.InterpretedGenome](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating genome cache: %w", err)
	}

	return &Client{
		baseURL: config.BaseURL,
		token:   config.Token,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker: breaker,
		genomes: genomes,
		page:    config.PageSize,
		log:     logger,
	}, nil
}

// ListCases pages through the case-list endpoint for one lifecycle status
// and sample type. The list payload is loosely typed and varies across API
// releases, so fields are extracted by path rather than decoded into a
// struct.
func (c *Client) ListCases(ctx context.Context, status, sampleType string) ([]domain.Case, error) {
	next := fmt.Sprintf("%s/interpretation-request?last_status=%s&sample_type=%s&page_size=%d",
		c.baseURL, url.QueryEscape(status), url.QueryEscape(sampleType), c.page)

	var cases []domain.Case
	for next != "" {
		body, err := c.get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("listing cases with status %q: %w", status, err)
		}

		var pageErr error
		gjson.GetBytes(body, "results").ForEach(func(_, raw gjson.Result) bool {
			parsed, err := parseCaseDescriptor(raw, status)
			if err != nil {
				pageErr = err
				return false
			}
			cases = append(cases, parsed)
			return true
		})
		if pageErr != nil {
			return nil, fmt.Errorf("listing cases with status %q: %w", status, pageErr)
		}

		next = gjson.GetBytes(body, "next").String()
	}

	c.log.WithFields(logrus.Fields{
		"status":      status,
		"sample_type": sampleType,
		"cases":       len(cases),
	}).Info("Fetched case list")

	return cases, nil
}

// CaseDetail fetches the full interpretation payload for one case.
func (c *Client) CaseDetail(ctx context.Context, requestID string, version int) (*domain.CaseDetail, error) {
	u := fmt.Sprintf("%s/interpretation-request/%s/%d/?reports_v6=true", c.baseURL, url.PathEscape(requestID), version)
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var response interpretationRequestResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decoding interpretation request %s-%d: %w", requestID, version, err)
	}

	detail := &domain.CaseDetail{Tags: response.Tags}
	for _, envelope := range response.InterpretedGenomes {
		detail.Genomes = append(detail.Genomes, envelope.toDomain())
	}
	return detail, nil
}

// InterpretedGenome fetches one provider's interpreted genome for a case.
// Payloads are cached per (request, version, provider).
func (c *Client) InterpretedGenome(ctx context.Context, requestID string, version int, provider string) (*domain.InterpretedGenome, error) {
	key := fmt.Sprintf("%s-%d-%s", requestID, version, provider)
	if cached, ok := c.genomes.Get(key); ok {
		return cached, nil
	}

	u := fmt.Sprintf("%s/interpreted-genome/%s/%d/%s/?reports_v6=true",
		c.baseURL, url.PathEscape(requestID), version, url.PathEscape(provider))
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var envelope interpretedGenomeEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decoding interpreted genome %s: %w", key, err)
	}

	genome := envelope.toDomain()
	c.genomes.Add(key, &genome)
	return &genome, nil
}

// get performs one rate-limited GET through the circuit breaker and returns
// the response body.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, "GET", u, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "JWT "+c.token)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			return nil, fmt.Errorf("interpretation API returned status %d for %s", resp.StatusCode, u)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("interpretation API unavailable (circuit breaker open)")
		}
		return nil, err
	}
	return body.([]byte), nil
}

// parseCaseDescriptor extracts one case from the loosely typed list payload.
func parseCaseDescriptor(raw gjson.Result, status string) (domain.Case, error) {
	full := raw.Get("interpretation_request_id").String()
	id, version, err := domain.ParseRequestID(full)
	if err != nil {
		return domain.Case{}, err
	}

	parsed := domain.Case{
		ParticipantID: raw.Get("proband").String(),
		RequestID:     id,
		Version:       version,
		Assembly:      raw.Get("assembly").String(),
		Status:        status,
	}
	raw.Get("sites").ForEach(func(_, site gjson.Result) bool {
		parsed.Sites = append(parsed.Sites, site.String())
		return true
	})
	raw.Get("tags").ForEach(func(_, tag gjson.Result) bool {
		parsed.Tags = append(parsed.Tags, tag.String())
		return true
	})
	return parsed, nil
}
