package similarity

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/telemetry"
)

const (
	defaultTimeout = 5 * time.Second
	maxBodySize    = 4 << 20
)

type ClientConfig struct {
	URL     string
	Timeout time.Duration
	// RPS and Burst throttle outbound calls. RPS <= 0 disables throttling.
	RPS   float64
	Burst int

	HTTPClient *http.Client
}

// Client talks to the similarity service over HTTP.
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(c ClientConfig) *Client {
	cl := &Client{
		url:     strings.TrimRight(c.URL, "/"),
		timeout: c.Timeout,
		http:    c.HTTPClient,
		limiter: rate.NewLimiter(rate.Inf, 0),
	}

	if cl.timeout <= 0 {
		cl.timeout = defaultTimeout
	}

	if cl.http == nil {
		cl.http = &http.Client{}
	}

	if c.RPS > 0 {
		cl.limiter = rate.NewLimiter(rate.Limit(c.RPS), max(c.Burst, 1))
	}

	return cl
}

type (
	nearestWordsRequest struct {
		Word string `json:"word"`
	}

	nearestWordsResponse struct {
		Word         string               `json:"word"`
		SimilarWords []domain.SimilarWord `json:"similar_words"`
	}

	compareWordsRequest struct {
		WordA string `json:"wordA"`
		WordB string `json:"wordB"`
	}

	compareWordsResponse struct {
		Similarity float64 `json:"similarity"`
		WordBLemma string  `json:"wordBLemma"`
	}
)

// NearestWords returns the word's neighbourhood, similar words sorted by descending similarity.
func (c *Client) NearestWords(ctx context.Context, word string) (*domain.WordConfig, error) {
	var resp nearestWordsResponse
	if err := c.post(ctx, "/nearest-words", nearestWordsRequest{Word: word}, &resp); err != nil {
		return nil, err
	}

	return newWordConfig(word, resp.SimilarWords)
}

// CompareWords returns the similarity of guess to secret. Only the second word is lemmatized by the service.
func (c *Client) CompareWords(ctx context.Context, secret, guess string) (*domain.Comparison, error) {
	var resp compareWordsResponse
	if err := c.post(ctx, "/compare-words", compareWordsRequest{WordA: secret, WordB: guess}, &resp); err != nil {
		return nil, err
	}

	return &domain.Comparison{
		Similarity: resp.Similarity,
		GuessLemma: resp.WordBLemma,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("similarity: %s: throttle: %w", path, err)
	}

	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("similarity: %s: marshal: %w", path, err)
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("similarity: %s: new request: %w", path, err)
	}
	r.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := c.http.Do(r)
	telemetry.SimilarityRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("similarity: %s: %w", path, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("similarity: %s: read body: %w", path, err)
	}

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("similarity: %s: unexpected status %d: %s", path, res.StatusCode, bytes.TrimSpace(body))
	}

	if err := json.Unmarshal(body, resp); err != nil {
		return fmt.Errorf("similarity: %s: unmarshal: %w", path, err)
	}

	return nil
}

func newWordConfig(word string, similar []domain.SimilarWord) (*domain.WordConfig, error) {
	words := slices.DeleteFunc(slices.Clone(similar), func(w domain.SimilarWord) bool {
		return w.Word == word
	})
	if len(words) == 0 {
		return nil, fmt.Errorf("similarity: no similar words for %q", word)
	}

	slices.SortStableFunc(words, func(a, b domain.SimilarWord) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})

	closest, furthest := words[0], words[len(words)-1]
	return &domain.WordConfig{
		Word:               word,
		ClosestWord:        closest.Word,
		ClosestSimilarity:  closest.Similarity,
		FurthestWord:       furthest.Word,
		FurthestSimilarity: furthest.Similarity,
		SimilarWords:       words,
	}, nil
}
