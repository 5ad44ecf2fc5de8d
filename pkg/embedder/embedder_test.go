package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(32)
	first, err := e.Embed(context.Background(), []string{"name it to tame it"})
	require.NoError(t, err)
	again, err := e.Embed(context.Background(), []string{"name it to tame it"})
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestHashEmbedderShape(t *testing.T) {
	e := NewHashEmbedder(16)
	assert.Equal(t, 16, e.Dimensions())

	vecs, err := e.Embed(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 16)
	}
}

func TestHashEmbedderNormalized(t *testing.T) {
	e := NewHashEmbedder(32)
	vecs, err := e.Embed(context.Background(), []string{"connect and redirect with the child"})
	require.NoError(t, err)

	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestHashEmbedderSimilarTextsOverlap(t *testing.T) {
	e := NewHashEmbedder(64)
	vecs, err := e.Embed(context.Background(), []string{
		"the upstairs brain",
		"the upstairs brain again",
		"completely different words here",
	})
	require.NoError(t, err)

	dot := func(a, b []float32) float64 {
		var d float64
		for i := range a {
			d += float64(a[i]) * float64(b[i])
		}
		return d
	}
	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func TestNewOpenAIEmbedderValidation(t *testing.T) {
	_, err := NewOpenAIEmbedder(Config{})
	assert.Error(t, err)

	e, err := NewOpenAIEmbedder(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, defaultDimensions, e.Dimensions())

	// A custom base URL works without a key.
	_, err = NewOpenAIEmbedder(Config{BaseURL: "http://localhost:11434/v1"})
	assert.NoError(t, err)
}
