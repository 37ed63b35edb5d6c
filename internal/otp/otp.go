// Package otp generates the numeric one-time codes sent to phones during
// registration.
package otp

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	Digits = 6

	minCode = 100000
	maxCode = 999999
)

var span = big.NewInt(maxCode - minCode + 1)

// Generator draws codes uniformly from [100000, 999999] so every code has
// exactly six digits.
type Generator struct {
	rand io.Reader
}

func NewGenerator() *Generator {
	return &Generator{rand: rand.Reader}
}

// NewGeneratorFromReader uses r as the entropy source.
func NewGeneratorFromReader(r io.Reader) *Generator {
	return &Generator{rand: r}
}

func (g *Generator) Generate() (string, error) {
	n, err := rand.Int(g.rand, span)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()+minCode), nil
}
