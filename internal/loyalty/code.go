package loyalty

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	// DefaultAlphabet содержит заглавные латинские буквы и цифры, 36 символов.
	DefaultAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultCodeLength      = 5
	DefaultCodeMaxAttempts = 20
)

// CodeGeneratorConfig задаёт параметры генератора кодов победителей.
type CodeGeneratorConfig struct {
	Alphabet    string
	Length      int
	MaxAttempts int
	Random      io.Reader
}

// CodeGenerator выдаёт короткие коды, равномерно выбирая символы алфавита.
type CodeGenerator struct {
	alphabet    string
	length      int
	maxAttempts int
	random      io.Reader
}

// NewCodeGenerator создаёт генератор. Нулевые значения конфигурации заменяются значениями по умолчанию.
func NewCodeGenerator(cfg CodeGeneratorConfig) *CodeGenerator {
	g := &CodeGenerator{
		alphabet:    cfg.Alphabet,
		length:      cfg.Length,
		maxAttempts: cfg.MaxAttempts,
		random:      cfg.Random,
	}
	if g.alphabet == "" {
		g.alphabet = DefaultAlphabet
	}
	if g.length <= 0 {
		g.length = DefaultCodeLength
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultCodeMaxAttempts
	}
	if g.random == nil {
		g.random = rand.Reader
	}
	return g
}

// Length возвращает длину выдаваемых кодов.
func (g *CodeGenerator) Length() int {
	return g.length
}

// MaxAttempts возвращает предельное число попыток.
func (g *CodeGenerator) MaxAttempts() int {
	return g.maxAttempts
}

// Random возвращает один случайный код без проверки уникальности.
func (g *CodeGenerator) Random() (string, error) {
	max := big.NewInt(int64(len(g.alphabet)))
	buf := make([]byte, g.length)
	for i := range buf {
		n, err := rand.Int(g.random, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = g.alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Generate подбирает код, для которого exists возвращает false.
// После MaxAttempts совпадений возвращает ErrCodeSpaceExhausted.
func (g *CodeGenerator) Generate(ctx context.Context, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := g.Random()
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check winner code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: %d attempts", ErrCodeSpaceExhausted, g.maxAttempts)
}
