package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/BaSui01/prism/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// HybridRetriever
// ---------------------------------------------------------------------------

func TestHybridRetriever_FusesBothSides(t *testing.T) {
	t.Parallel()

	docs := []Document{
		{Content: "go concurrency patterns"},
		{Content: "python packaging"},
	}
	bm25 := NewBM25Index(docs, 0, 0)

	index := NewMemoryIndex()
	index.Add(docs[0], []float64{1, 0})
	index.Add(docs[1], []float64{0, 1})

	embedder := mocks.NewMockEmbedder().WithVector("go concurrency", []float64{1, 0})
	r := NewHybridRetriever(DefaultHybridConfig(), bm25, index, embedder, zap.NewNop())

	out, err := r.Retrieve(context.Background(), "go concurrency")
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "go concurrency patterns", out[0].Content)
}

func TestHybridRetriever_EmptyLexicalFallsBackToSemantic(t *testing.T) {
	t.Parallel()

	index := NewMemoryIndex()
	index.Add(Document{Content: "only semantic"}, []float64{1, 0})

	embedder := mocks.NewMockEmbedder().WithVector("query", []float64{1, 0})
	r := NewHybridRetriever(DefaultHybridConfig(), nil, index, embedder, zap.NewNop())

	out, err := r.Retrieve(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "only semantic", out[0].Content)
}

func TestHybridRetriever_SemanticFailureWithLexicalDegrades(t *testing.T) {
	t.Parallel()

	docs := []Document{{Content: "lexical hit"}}
	bm25 := NewBM25Index(docs, 0, 0)

	embedder := mocks.NewMockEmbedder().WithError(errors.New("embedding down"))
	r := NewHybridRetriever(DefaultHybridConfig(), bm25, NewMemoryIndex(), embedder, zap.NewNop())

	out, err := r.Retrieve(context.Background(), "lexical")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "lexical hit", out[0].Content)
}

func TestHybridRetriever_BothSidesUnavailableErrors(t *testing.T) {
	t.Parallel()

	embedder := mocks.NewMockEmbedder().WithError(errors.New("embedding down"))
	r := NewHybridRetriever(DefaultHybridConfig(), nil, NewMemoryIndex(), embedder, zap.NewNop())

	_, err := r.Retrieve(context.Background(), "query")
	assert.Error(t, err)
}

func TestHybridRetriever_TopKLimit(t *testing.T) {
	t.Parallel()

	cfg := DefaultHybridConfig()
	cfg.TopK = 2

	index := NewMemoryIndex()
	index.Add(Document{Content: "a"}, []float64{1, 0})
	index.Add(Document{Content: "b"}, []float64{0.9, 0.1})
	index.Add(Document{Content: "c"}, []float64{0.8, 0.2})

	embedder := mocks.NewMockEmbedder().WithVector("q", []float64{1, 0})
	r := NewHybridRetriever(cfg, nil, index, embedder, zap.NewNop())

	out, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

type staticSource struct {
	docs  map[string][]Document
	err   error
	calls int
}

func (s *staticSource) ListDocuments(ctx context.Context, collection string) ([]Document, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.docs[collection], nil
}

func TestRegistry_LazyInitOncePerCollection(t *testing.T) {
	t.Parallel()

	source := &staticSource{docs: map[string][]Document{
		"funds": {{Content: "fund doc"}},
	}}
	index := NewMemoryIndex()
	reg := NewRegistry(DefaultHybridConfig(), source,
		func(string) VectorIndex { return index },
		mocks.NewMockEmbedder(), zap.NewNop())

	r1, err := reg.Get(context.Background(), "funds")
	require.NoError(t, err)
	r2, err := reg.Get(context.Background(), "funds")
	require.NoError(t, err)

	assert.Same(t, r1, r2)
	assert.Equal(t, 1, source.calls, "document source listed once per collection")
	assert.Equal(t, []string{"funds"}, reg.Collections())
}

func TestRegistry_SourceFailureStillBuildsSemanticRetriever(t *testing.T) {
	t.Parallel()

	source := &staticSource{err: errors.New("store down")}
	index := NewMemoryIndex()
	index.Add(Document{Content: "semantic doc"}, []float64{1, 0})

	reg := NewRegistry(DefaultHybridConfig(), source,
		func(string) VectorIndex { return index },
		mocks.NewMockEmbedder().WithVector("q", []float64{1, 0}), zap.NewNop())

	r, err := reg.Get(context.Background(), "funds")
	require.NoError(t, err)

	out, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRegistry_EmptyCollectionName(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(DefaultHybridConfig(), &staticSource{},
		func(string) VectorIndex { return NewMemoryIndex() },
		mocks.NewMockEmbedder(), zap.NewNop())

	_, err := reg.Get(context.Background(), "")
	assert.Error(t, err)
}
