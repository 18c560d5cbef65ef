// Package qdrant provides a VectorIndex backed by a Qdrant server over REST.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// chunkIDField keeps the caller's id when it had to be mapped to a UUID.
const chunkIDField = "chunkId"

// Config holds connection settings.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
	Timeout    time.Duration
}

// Index is a minimal Qdrant REST client using cosine distance. Tenancy is a
// payload field matched on every search and delete.
//
// Qdrant fixes a collection's vector size at creation, so vectors are routed
// by length: the configured size lives in the base collection and any other
// size in "<collection>-<dims>", created on first upsert.
type Index struct {
	url        string
	apiKey     string
	collection string
	dimensions int
	client     *http.Client

	mu    sync.Mutex
	ready map[string]bool
}

// New creates a client. It does not contact the server.
func New(cfg Config) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = domain.DefaultCollection
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = domain.DefaultDimensions
	}
	return &Index{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		dimensions: dims,
		client:     &http.Client{Timeout: timeout},
		ready:      make(map[string]bool),
	}
}

// EnsureCollection creates the base collection if it does not exist.
func (i *Index) EnsureCollection(ctx context.Context) error {
	return i.ensure(ctx, i.dimensions)
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// ensure makes the collection for dims exist. An existing collection whose
// vector size differs from dims is reported as domain.ErrDimensionMismatch.
func (i *Index) ensure(ctx context.Context, dims int) error {
	name := i.collectionName(dims)

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ready[name] {
		return nil
	}

	var info collectionInfo
	status, err := i.do(ctx, http.MethodGet, i.collectionURL(name, ""), nil, &info)
	switch {
	case err == nil:
		if size := info.Result.Config.Params.Vectors.Size; size > 0 && size != dims {
			return fmt.Errorf("%w: qdrant collection %s holds %d-dimension vectors, got %d",
				domain.ErrDimensionMismatch, name, size, dims)
		}
	case status == http.StatusNotFound:
		logger.Info("creating qdrant collection %s (%d dimensions)", name, dims)
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dims,
				"distance": "Cosine",
			},
		}
		if _, err := i.do(ctx, http.MethodPut, i.collectionURL(name, ""), body, nil); err != nil {
			return err
		}
	default:
		return err
	}
	i.ready[name] = true
	return nil
}

// TestConnection lists collections to confirm the server answers.
func (i *Index) TestConnection(ctx context.Context) error {
	_, err := i.collections(ctx)
	return err
}

// Upsert writes one point into the collection for its vector size and waits
// for it to be applied.
func (i *Index) Upsert(
	ctx context.Context, id string, vec []float32, payload domain.VectorPayload, tenantID string,
) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("%w: empty vector for %s", domain.ErrInvalidInput, id)
	}
	if err := i.ensure(ctx, len(vec)); err != nil {
		return "", err
	}

	payload.TenantID = tenantID
	payload.Dimensions = len(vec)

	fields, err := payloadMap(payload)
	if err != nil {
		return "", err
	}
	fields[chunkIDField] = id

	body := map[string]any{
		"points": []map[string]any{{
			"id":      pointID(id),
			"vector":  vec,
			"payload": fields,
		}},
	}
	url := i.collectionURL(i.collectionName(len(vec)), "/points?wait=true")
	if _, err := i.do(ctx, http.MethodPut, url, body, nil); err != nil {
		return "", err
	}
	return id, nil
}

type searchResponse struct {
	Result []struct {
		ID      any             `json:"id"`
		Score   float64         `json:"score"`
		Payload json.RawMessage `json:"payload"`
	} `json:"result"`
}

// Search returns the topK nearest points in tenantID from the collection for
// the query's vector size. Any server or transport failure, including a
// collection that does not exist yet, yields an empty result.
func (i *Index) Search(
	ctx context.Context, vec []float32, topK int, tenantID string, filter domain.VectorFilter,
) ([]domain.VectorHit, error) {
	if topK <= 0 {
		topK = domain.DefaultQueryLimit
	}
	body := map[string]any{
		"vector":       vec,
		"limit":        topK,
		"with_payload": true,
		"filter":       buildFilter(tenantID, filter),
	}

	var resp searchResponse
	url := i.collectionURL(i.collectionName(len(vec)), "/points/search")
	if status, err := i.do(ctx, http.MethodPost, url, body, &resp); err != nil {
		if status != http.StatusNotFound {
			logger.Warn("qdrant search failed: %v", err)
		}
		return []domain.VectorHit{}, nil
	}

	hits := make([]domain.VectorHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		var payload domain.VectorPayload
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			logger.Warn("qdrant: skipping point with bad payload: %v", err)
			continue
		}
		var extra struct {
			ChunkID string `json:"chunkId"`
		}
		_ = json.Unmarshal(r.Payload, &extra)
		id := extra.ChunkID
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		hits = append(hits, domain.VectorHit{ID: id, Score: r.Score, Payload: payload})
	}
	return hits, nil
}

// Delete removes a point by id from every collection it could live in.
func (i *Index) Delete(ctx context.Context, id string) error {
	return i.deleteEverywhere(ctx, map[string]any{"points": []string{pointID(id)}})
}

// DeleteByFilter removes points in tenantID matching filter from every
// collection.
func (i *Index) DeleteByFilter(ctx context.Context, tenantID string, filter domain.VectorFilter) error {
	return i.deleteEverywhere(ctx, map[string]any{"filter": buildFilter(tenantID, filter)})
}

func (i *Index) deleteEverywhere(ctx context.Context, body map[string]any) error {
	names, err := i.collections(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		status, err := i.do(ctx, http.MethodPost, i.collectionURL(name, "/points/delete?wait=true"), body, nil)
		if err != nil && status != http.StatusNotFound {
			return err
		}
	}
	return nil
}

type collectionsResponse struct {
	Result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	} `json:"result"`
}

// collections lists the server's collections that belong to this index.
func (i *Index) collections(ctx context.Context) ([]string, error) {
	var resp collectionsResponse
	if _, err := i.do(ctx, http.MethodGet, i.url+"/collections", nil, &resp); err != nil {
		return nil, err
	}
	var names []string
	for _, c := range resp.Result.Collections {
		if i.owns(c.Name) {
			names = append(names, c.Name)
		}
	}
	return names, nil
}

// owns reports whether name is the base collection or a sized sibling.
func (i *Index) owns(name string) bool {
	if name == i.collection {
		return true
	}
	suffix, ok := strings.CutPrefix(name, i.collection+"-")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(suffix)
	return err == nil && n > 0
}

func (i *Index) collectionName(dims int) string {
	if dims == i.dimensions {
		return i.collection
	}
	return fmt.Sprintf("%s-%d", i.collection, dims)
}

func (i *Index) collectionURL(name, suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", i.url, name, suffix)
}

// do sends a JSON request and decodes the response into out. Transport
// failures and 5xx responses wrap domain.ErrIndexUnavailable.
func (i *Index) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("building qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if i.apiKey != "" {
		req.Header.Set("api-key", i.apiKey)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: qdrant %s %s: %w", domain.ErrIndexUnavailable, method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("qdrant %s %s failed: %s %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 500 {
			err = fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
		}
		return resp.StatusCode, err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func payloadMap(p domain.VectorPayload) (map[string]any, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return m, nil
}

// buildFilter turns the tenant and exact-match conditions into a Qdrant
// "must" filter. Unknown keys address metadata fields.
func buildFilter(tenantID string, filter domain.VectorFilter) map[string]any {
	must := []map[string]any{matchCondition(domain.FieldTenantID, tenantID)}
	for key, value := range filter {
		switch key {
		case domain.FieldDocumentID, domain.FieldKnowledgeBaseID, domain.FieldTenantID, domain.FieldEmbeddingModel:
		default:
			key = "metadata." + key
		}
		must = append(must, matchCondition(key, value))
	}
	return map[string]any{"must": must}
}

func matchCondition(key, value string) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

// pointID maps arbitrary ids onto the UUIDs Qdrant accepts. UUIDs pass
// through unchanged; other ids get a stable name-based UUID.
func pointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}
