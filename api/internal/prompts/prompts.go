// Package prompts is the keyed store of system instructions used for completion calls.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind selects a system instruction.
type Kind string

const (
	Describe         Kind = "describe"
	Classify         Kind = "classify"
	WhatToDo         Kind = "what_to_do"
	GenerateExercise Kind = "generate_exercise"
	Adapt            Kind = "adapt"
)

// Kinds: полный набор ключей, которые обязаны присутствовать в хранилище.
var Kinds = []Kind{Describe, Classify, WhatToDo, GenerateExercise, Adapt}

//go:embed prompts.yaml
var defaultPrompts []byte

type Store struct {
	m map[Kind]string
}

// Load читает YAML из path; пустой path: встроенный prompts.yaml.
func Load(path string) (*Store, error) {
	raw := defaultPrompts
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("prompts: read %s: %w", path, err)
		}
		raw = b
	}
	return Parse(raw)
}

// Parse разбирает YAML вида `kind: instruction` и проверяет, что все виды заданы.
func Parse(raw []byte) (*Store, error) {
	var doc map[string]string
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("prompts: bad yaml: %w", err)
	}
	s := &Store{m: make(map[Kind]string, len(Kinds))}
	var missing []string
	for _, k := range Kinds {
		v := strings.TrimSpace(doc[string(k)])
		if v == "" {
			missing = append(missing, string(k))
			continue
		}
		s.m[k] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("prompts: missing prompt for %s", strings.Join(missing, ", "))
	}
	return s, nil
}

// Get возвращает инструкцию; ok=false только для неизвестного вида.
func (s *Store) Get(k Kind) (string, bool) {
	v, ok := s.m[k]
	return v, ok
}
