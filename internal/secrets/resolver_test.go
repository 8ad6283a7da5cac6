package secrets

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	values map[string]string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Resolve(_ context.Context, reference string) (string, error) {
	v, ok := s.values[reference]
	if !ok {
		return "", fmt.Errorf("no such reference: %s", reference)
	}
	return v, nil
}

func newTestResolver(strict bool) *Resolver {
	stub := &stubProvider{
		name: "test",
		values: map[string]string{
			"key/API_KEY": "sk-12345",
			"key/TOKEN":   "tok-abc",
			"key/EMPTY":   "",
		},
	}
	return NewResolver(strict, stub)
}

func TestResolveValue_NoSecretref_PassesThroughUnchanged(t *testing.T) {
	r := newTestResolver(false)
	out, err := r.ResolveValue(context.Background(), "plain-value")
	require.NoError(t, err)
	assert.Equal(t, "plain-value", out)
}

func TestResolveValue_WholeValue_ReturnsRawSecret(t *testing.T) {
	r := newTestResolver(false)
	out, err := r.ResolveValue(context.Background(), "secretref:test:key/API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-12345", out)
}

func TestResolveValue_Inline_SplicesIntoSurroundingText(t *testing.T) {
	r := newTestResolver(false)
	out, err := r.ResolveValue(context.Background(), "Bearer secretref:test:key/TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-abc", out)
}

func TestResolveValue_MultipleInline_PreservesEarlierOffsets(t *testing.T) {
	r := newTestResolver(false)
	out, err := r.ResolveValue(context.Background(), "k=secretref:test:key/API_KEY&t=secretref:test:key/TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "k=sk-12345&t=tok-abc", out)
}

func TestResolveValue_UnknownProvider_Errors(t *testing.T) {
	r := newTestResolver(false)
	_, err := r.ResolveValue(context.Background(), "secretref:nope:key/API_KEY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown secret provider")
}

func TestResolveValue_StrictMode_EmptyValueErrors(t *testing.T) {
	r := newTestResolver(true)
	_, err := r.ResolveValue(context.Background(), "secretref:test:key/EMPTY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict mode")
}

func TestResolveValue_NonStrictMode_EmptyValuePasses(t *testing.T) {
	r := newTestResolver(false)
	out, err := r.ResolveValue(context.Background(), "secretref:test:key/EMPTY")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestResolveMap_ResolvesEveryValue(t *testing.T) {
	r := newTestResolver(false)
	m := map[string]string{
		"Authorization": "Bearer secretref:test:key/TOKEN",
		"X-Plain":       "unchanged",
	}
	require.NoError(t, r.ResolveMap(context.Background(), m))
	assert.Equal(t, "Bearer tok-abc", m["Authorization"])
	assert.Equal(t, "unchanged", m["X-Plain"])
}

func TestResolveSlice_ResolvesEveryElement(t *testing.T) {
	r := newTestResolver(false)
	s := []string{"--token", "secretref:test:key/TOKEN"}
	require.NoError(t, r.ResolveSlice(context.Background(), s))
	assert.Equal(t, []string{"--token", "tok-abc"}, s)
}
