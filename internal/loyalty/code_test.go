package loyalty

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeGenerator_Defaults(t *testing.T) {
	g := NewCodeGenerator(CodeGeneratorConfig{})

	assert.Equal(t, DefaultCodeLength, g.Length())
	assert.Equal(t, DefaultCodeMaxAttempts, g.MaxAttempts())

	code, err := g.Random()
	require.NoError(t, err)
	assert.Len(t, code, DefaultCodeLength)
	for _, ch := range code {
		assert.Contains(t, DefaultAlphabet, string(ch))
	}
}

func TestCodeGenerator_SkipsExisting(t *testing.T) {
	g := NewCodeGenerator(CodeGeneratorConfig{Alphabet: "AB", Length: 1, MaxAttempts: 200})
	taken := map[string]bool{"A": true}

	for i := 0; i < 20; i++ {
		code, err := g.Generate(context.Background(), func(_ context.Context, code string) (bool, error) {
			return taken[code], nil
		})
		require.NoError(t, err)
		assert.Equal(t, "B", code)
	}
}

func TestCodeGenerator_Exhausted(t *testing.T) {
	g := NewCodeGenerator(CodeGeneratorConfig{Alphabet: "A", Length: 3, MaxAttempts: 4})
	calls := 0

	_, err := g.Generate(context.Background(), func(_ context.Context, _ string) (bool, error) {
		calls++
		return true, nil
	})

	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	assert.Equal(t, 4, calls)
}

func TestCodeGenerator_ExistsError(t *testing.T) {
	g := NewCodeGenerator(CodeGeneratorConfig{})
	dbErr := errors.New("db down")

	_, err := g.Generate(context.Background(), func(_ context.Context, _ string) (bool, error) {
		return false, dbErr
	})

	assert.ErrorIs(t, err, dbErr)
}

func TestCodeGenerator_ContextCanceled(t *testing.T) {
	g := NewCodeGenerator(CodeGeneratorConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, func(_ context.Context, _ string) (bool, error) {
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}
