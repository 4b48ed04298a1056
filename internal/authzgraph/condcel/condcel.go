/*
Copyright 2026 Altaira Labs.

SPDX-License-Identifier: Apache-2.0

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package condcel implements the pluggable conditions evaluator reserved
// by §9 of the authorization graph: edges may declare a "conditions" CEL
// expression inside their metadata, evaluated against the edge's own
// metadata map and the current time. Until an edge declares one, the
// default authzgraph.AlwaysTrue evaluator applies; Evaluator is the
// opt-in predicate language.
package condcel

import (
	"context"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/ext"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/authzgraph"
)

// conditionsKey is the metadata key under which an edge carries its CEL
// condition expression.
const conditionsKey = "conditions"

// Evaluator compiles and caches CEL programs for the "conditions"
// expression carried in edge metadata, keyed by the expression text.
type Evaluator struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]cel.Program
}

// New creates an Evaluator with the CEL environment exposing "metadata"
// (map[string]string) and "now" (a unix-seconds int) to condition expressions.
func New() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("now", cel.IntType),
		ext.Strings(),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "condcel: build CEL env", err)
	}
	return &Evaluator{env: env, compiled: make(map[string]cel.Program)}, nil
}

var _ authzgraph.ConditionEvaluator = (*Evaluator)(nil)

// Satisfied evaluates e's "conditions" expression, if present. An edge
// with no conditions entry is always satisfied. An expression that fails
// to compile or does not have a bool type is surfaced as apperr.Validation;
// an evaluation error or a non-boolean result as apperr.Internal. Callers that
// want "fail closed" behavior should treat any error as not-satisfied.
func (ev *Evaluator) Satisfied(_ context.Context, e authzgraph.Edge) (bool, error) {
	expr, ok := e.Metadata[conditionsKey]
	if !ok || expr == "" {
		return true, nil
	}

	prg, err := ev.programFor(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{
		"metadata": e.Metadata,
		"now":      time.Now().Unix(),
	})
	if err != nil {
		return false, apperr.Wrap(apperr.Internal, "condcel: evaluate condition", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, apperr.New(apperr.Internal, "condcel: condition did not evaluate to bool")
	}
	return b, nil
}

func (ev *Evaluator) programFor(expr string) (cel.Program, error) {
	ev.mu.RLock()
	prg, ok := ev.compiled[expr]
	ev.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	if prg, ok := ev.compiled[expr]; ok {
		return prg, nil
	}

	ast, issues := ev.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, apperr.Wrap(apperr.Validation, "condcel: compile condition", issues.Err())
	}
	if ast.OutputType() != types.BoolType {
		return nil, apperr.New(apperr.Validation, "condcel: condition must produce a bool")
	}
	prg, err := ev.env.Program(ast)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "condcel: build program", err)
	}
	ev.compiled[expr] = prg
	return prg, nil
}
