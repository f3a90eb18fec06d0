// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Difficulty is the fixed game difficulty enumeration.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists every valid difficulty in display order.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case Easy, Medium, Hard:
		return true
	default:
		return false
	}
}

func (d Difficulty) String() string { return string(d) }

// ParseDifficulty maps a raw value onto the enumeration. Matching is exact:
// "Easy" is rejected.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !d.Valid() {
		return "", fmt.Errorf("invalid difficulty %q; must be one of: %s", s, difficultyList())
	}
	return d, nil
}

func difficultyList() string {
	names := make([]string, len(Difficulties))
	for i, d := range Difficulties {
		names[i] = string(d)
	}
	return strings.Join(names, ", ")
}
