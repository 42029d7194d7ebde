package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GiacomoBacchetta/OmniA/internal/config"
)

// fakeQdrant implements the slice of the Qdrant REST API the gateway uses:
// collection inspect/create/drop, point upsert/search/delete. Search scores
// by dot product.
type fakeQdrant struct {
	collections map[string]*fakeCollection
}

type fakeCollection struct {
	dim    int
	points map[string]fakePoint
}

type fakePoint struct {
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collections: map[string]*fakeCollection{}}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "collections":
		writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"collections": []any{}}})
	case len(parts) == 2:
		f.handleCollection(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "points":
		f.handlePoints(w, r, parts[1])
	case len(parts) == 4 && parts[2] == "points" && parts[3] == "search":
		f.handleSearch(w, r, parts[1])
	case len(parts) == 4 && parts[2] == "points" && parts[3] == "delete":
		f.handleDelete(w, r, parts[1])
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeQdrant) handleCollection(w http.ResponseWriter, r *http.Request, name string) {
	switch r.Method {
	case http.MethodGet:
		col, ok := f.collections[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"result": map[string]any{
				"config": map[string]any{
					"params": map[string]any{
						"vectors": map[string]any{"size": col.dim},
					},
				},
			},
		})
	case http.MethodPut:
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.collections[name] = &fakeCollection{dim: body.Vectors.Size, points: map[string]fakePoint{}}
		writeJSON(w, http.StatusOK, map[string]any{"result": true})
	case http.MethodDelete:
		if _, ok := f.collections[name]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(f.collections, name)
		writeJSON(w, http.StatusOK, map[string]any{"result": true})
	}
}

func (f *fakeQdrant) handlePoints(w http.ResponseWriter, r *http.Request, name string) {
	col, ok := f.collections[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Points []struct {
			ID      string    `json:"id"`
			Vector  []float32 `json:"vector"`
			Payload Payload   `json:"payload"`
		} `json:"points"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	for _, p := range body.Points {
		if len(p.Vector) != col.dim {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "wrong vector size"})
			return
		}
		col.points[p.ID] = fakePoint{Vector: p.Vector, Payload: p.Payload}
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": true})
}

func (f *fakeQdrant) handleSearch(w http.ResponseWriter, r *http.Request, name string) {
	col, ok := f.collections[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Vector         []float32 `json:"vector"`
		Limit          int       `json:"limit"`
		ScoreThreshold float32   `json:"score_threshold"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	var hits []ScoredPoint
	for id, p := range col.points {
		var score float32
		for i := range body.Vector {
			if i < len(p.Vector) {
				score += body.Vector[i] * p.Vector[i]
			}
		}
		if body.ScoreThreshold > 0 && score < body.ScoreThreshold {
			continue
		}
		hits = append(hits, ScoredPoint{ID: id, Score: score, Payload: p.Payload})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if body.Limit > 0 && len(hits) > body.Limit {
		hits = hits[:body.Limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": hits})
}

func (f *fakeQdrant) handleDelete(w http.ResponseWriter, r *http.Request, name string) {
	col, ok := f.collections[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Points []string `json:"points"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	for _, id := range body.Points {
		delete(col.points, id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestGateway(t *testing.T) (*Gateway, *fakeQdrant) {
	t.Helper()
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := config.VectorConfig{URL: srv.URL, Distance: "Cosine"}
	return NewGateway(cfg, nil), fake
}

func TestUpsertCreatesCollection(t *testing.T) {
	gw, fake := newTestGateway(t)
	ctx := context.Background()

	err := gw.Upsert(ctx, "learning", "x1", []float32{1, 0, 0}, Payload{Content: "gradient descent"})
	require.NoError(t, err)

	col := fake.collections["learning"]
	require.NotNil(t, col, "collection is auto-created on first upsert")
	assert.Equal(t, 3, col.dim, "dimension comes from the first vector")
	assert.Len(t, col.points, 1)
}

func TestUpsertOverwritesSameID(t *testing.T) {
	gw, fake := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, gw.Upsert(ctx, "work", "item-1", []float32{1, 0}, Payload{Content: "v1"}))
	require.NoError(t, gw.Upsert(ctx, "work", "item-1", []float32{0, 1}, Payload{Content: "v2"}))

	col := fake.collections["work"]
	require.Len(t, col.points, 1, "redelivery must overwrite, not duplicate")
	assert.Equal(t, "v2", col.points["item-1"].Payload.Content)
}

func TestUpsertDimensionMismatch(t *testing.T) {
	gw, fake := newTestGateway(t)
	ctx := context.Background()

	vec384 := make([]float32, 384)
	require.NoError(t, gw.Upsert(ctx, "notes", "a", vec384, Payload{}))

	vec768 := make([]float32, 768)
	err := gw.Upsert(ctx, "notes", "b", vec768, Payload{})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Len(t, fake.collections["notes"].points, 1, "failed upsert must not mutate the collection")
}

func TestSearchOrdersAndFilters(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, gw.Upsert(ctx, "f", "close", []float32{1, 0}, Payload{Content: "near"}))
	require.NoError(t, gw.Upsert(ctx, "f", "mid", []float32{0.5, 0}, Payload{Content: "middle"}))
	require.NoError(t, gw.Upsert(ctx, "f", "far", []float32{0.1, 0}, Payload{Content: "far"}))

	hits, err := gw.Search(ctx, "f", []float32{1, 0}, 10, 0.4)
	require.NoError(t, err)
	require.Len(t, hits, 2, "threshold filters out low scorers")
	assert.Equal(t, "close", hits[0].ID)
	assert.Equal(t, "mid", hits[1].ID)

	hits, err = gw.Search(ctx, "f", []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1, "limit caps the result set")
	assert.Equal(t, "close", hits[0].ID)
}

func TestSearchUnknownField(t *testing.T) {
	gw, _ := newTestGateway(t)

	_, err := gw.Search(context.Background(), "ghost", []float32{1}, 5, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIdempotent(t *testing.T) {
	gw, fake := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, gw.Upsert(ctx, "f", "p1", []float32{1}, Payload{}))
	require.NoError(t, gw.Delete(ctx, "f", "p1"))
	require.NoError(t, gw.Delete(ctx, "f", "p1"), "deleting an absent point is a no-op")
	assert.Empty(t, fake.collections["f"].points)
}

func TestDeleteUnknownField(t *testing.T) {
	gw, _ := newTestGateway(t)

	err := gw.Delete(context.Background(), "ghost", "p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDropCollection(t *testing.T) {
	gw, fake := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, gw.Upsert(ctx, "f", "p1", []float32{1}, Payload{}))
	require.NoError(t, gw.DropCollection(ctx, "f"))
	assert.NotContains(t, fake.collections, "f")

	// The cached dimension must be forgotten so the field can be recreated
	// with a different size.
	require.NoError(t, gw.Upsert(ctx, "f", "p2", []float32{1, 2}, Payload{}))
	assert.Equal(t, 2, fake.collections["f"].dim)
}

func TestHealthCheck(t *testing.T) {
	gw, _ := newTestGateway(t)
	assert.NoError(t, gw.HealthCheck(context.Background()))

	down := NewGateway(config.VectorConfig{URL: "http://127.0.0.1:0"}, nil)
	assert.Error(t, down.HealthCheck(context.Background()))
}
