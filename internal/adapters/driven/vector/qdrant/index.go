// Package qdrant stores exemplar vectors in a Qdrant collection over its REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.ExemplarIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultURL        = "http://localhost:6333"
	DefaultCollection = "epc_exemplars"
	DefaultTimeout    = 10 * time.Second
)

// Payload keys.
const (
	keyExemplarID   = "exemplar_id"
	keySection      = "section"
	keyContext      = "context"
	keyContent      = "content"
	keyEpisodeID    = "episode_id"
	keyFromFeedback = "from_feedback"
	keyCreatedAt    = "created_at"
)

// Config holds Qdrant connection settings.
type Config struct {
	// URL is the REST endpoint (default: http://localhost:6333).
	URL string

	// Collection holds the exemplars (default: epc_exemplars).
	Collection string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// Dimensions is the vector size used when the collection is created.
	Dimensions int

	// Timeout is the request timeout (default: 10s).
	Timeout time.Duration
}

// Index is an ExemplarIndex backed by a Qdrant collection.
// The collection is created with cosine distance on first upsert.
type Index struct {
	client     *http.Client
	baseURL    string
	collection string
	apiKey     string
	dimensions int

	mu    sync.Mutex
	ready bool
}

// New creates a Qdrant exemplar index. No request is made until first use.
func New(cfg Config) (*Index, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("qdrant: invalid url: %w", err)
	}

	return &Index{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		collection: cfg.Collection,
		apiKey:     cfg.APIKey,
		dimensions: cfg.Dimensions,
	}, nil
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type upsertRequest struct {
	Points []point `json:"points"`
}

type condition struct {
	Key   string `json:"key"`
	Match struct {
		Value string `json:"value"`
	} `json:"match"`
}

type filter struct {
	Must    []condition `json:"must,omitempty"`
	MustNot []condition `json:"must_not,omitempty"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	Filter      *filter   `json:"filter,omitempty"`
}

type searchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float32        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

type createCollectionRequest struct {
	Vectors struct {
		Size     int    `json:"size"`
		Distance string `json:"distance"`
	} `json:"vectors"`
}

// Upsert writes the exemplar as a point. Exemplar IDs map to stable UUIDs.
func (x *Index) Upsert(ctx context.Context, exemplar domain.Exemplar, vec []float32) error {
	if exemplar.ID == "" || len(vec) == 0 {
		return domain.ErrInvalidInput
	}
	if err := x.ensureCollection(ctx, len(vec)); err != nil {
		return err
	}

	body := upsertRequest{Points: []point{{
		ID:      PointID(exemplar.ID),
		Vector:  vec,
		Payload: toPayload(exemplar),
	}}}
	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(x.collection))
	if _, err := x.do(ctx, http.MethodPut, path, body); err != nil {
		return fmt.Errorf("upsert exemplar: %w", err)
	}
	return nil
}

// Search returns the k nearest exemplars passing the filter.
func (x *Index) Search(ctx context.Context, query []float32, k int, f driven.ExemplarFilter) ([]driven.ExemplarHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	req := searchRequest{Vector: query, Limit: k, WithPayload: true, Filter: toFilter(f)}
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(x.collection))
	raw, err := x.do(ctx, http.MethodPost, path, req)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("search exemplars: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]driven.ExemplarHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, driven.ExemplarHit{
			Exemplar:   fromPayload(r.Payload),
			Similarity: r.Score,
		})
	}
	return hits, nil
}

// Close releases resources.
func (x *Index) Close() error {
	return nil
}

// PointID derives the Qdrant point ID for an exemplar ID.
func PointID(exemplarID string) string {
	if id, err := uuid.Parse(exemplarID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("epicrisis:exemplar:"+exemplarID)).String()
}

func (x *Index) ensureCollection(ctx context.Context, dims int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.ready {
		return nil
	}

	path := "/collections/" + url.PathEscape(x.collection)
	_, err := x.do(ctx, http.MethodGet, path, nil)
	switch {
	case err == nil:
		x.ready = true
		return nil
	case !isNotFound(err):
		return fmt.Errorf("check collection: %w", err)
	}

	if x.dimensions > 0 {
		dims = x.dimensions
	}
	var create createCollectionRequest
	create.Vectors.Size = dims
	create.Vectors.Distance = "Cosine"
	if _, err := x.do(ctx, http.MethodPut, path, create); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	x.ready = true
	return nil
}

// statusError is a non-2xx Qdrant response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant returned status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

func (x *Index) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVectorIndexUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

func toFilter(f driven.ExemplarFilter) *filter {
	var out filter
	if f.Section != "" {
		out.Must = append(out.Must, match(keySection, string(f.Section)))
	}
	if f.ExcludeEpisode != "" {
		out.MustNot = append(out.MustNot, match(keyEpisodeID, f.ExcludeEpisode))
	}
	if len(out.Must) == 0 && len(out.MustNot) == 0 {
		return nil
	}
	return &out
}

func match(key, value string) condition {
	c := condition{Key: key}
	c.Match.Value = value
	return c
}

func toPayload(e domain.Exemplar) map[string]any {
	p := map[string]any{
		keyExemplarID:   e.ID,
		keySection:      string(e.Section),
		keyContext:      e.Context,
		keyContent:      e.Content,
		keyEpisodeID:    e.EpisodeID,
		keyFromFeedback: e.FromFeedback,
	}
	if !e.CreatedAt.IsZero() {
		p[keyCreatedAt] = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	return p
}

func fromPayload(p map[string]any) domain.Exemplar {
	str := func(key string) string {
		s, _ := p[key].(string)
		return s
	}
	fromFeedback, _ := p[keyFromFeedback].(bool)
	e := domain.Exemplar{
		ID:           str(keyExemplarID),
		Section:      domain.SectionName(str(keySection)),
		Context:      str(keyContext),
		Content:      str(keyContent),
		EpisodeID:    str(keyEpisodeID),
		FromFeedback: fromFeedback,
	}
	if t, err := time.Parse(time.RFC3339, str(keyCreatedAt)); err == nil {
		e.CreatedAt = t
	}
	return e
}
