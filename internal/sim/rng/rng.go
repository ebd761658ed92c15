// Package rng isolates every stochastic decision in the simulation behind a
// small source interface so tests can script the draws.
package rng

import "math/rand"

type Source interface {
	Float64() float64
	Intn(n int) int
}

func New(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}
