// Package seating assigns exam students to room benches.
//
// The engine is pure and synchronous: it performs no I/O, keeps no state between calls and
// returns every expected failure inside Result.Diagnostics instead of as an error. A single
// Engine value can serve concurrent callers.
package seating

import "sort"

// Engine runs the seating pipeline: validate, shuffle, feasibility, placement, summaries.
type Engine struct {
	strategies map[Algorithm]Strategy
	fallback   Strategy
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategy registers an additional placement strategy under its own name.
func WithStrategy(strategy Strategy) Option {
	return func(e *Engine) {
		if strategy != nil {
			e.strategies[strategy.Name()] = strategy
		}
	}
}

// NewEngine builds an engine with the greedy strategy registered as the fallback.
func NewEngine(opts ...Option) *Engine {
	greedy := NewGreedy()
	e := &Engine{
		strategies: map[Algorithm]Strategy{greedy.Name(): greedy},
		fallback:   greedy,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Algorithms lists the registered strategy names.
func (e *Engine) Algorithms() []Algorithm {
	names := make([]Algorithm, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Resolve returns the strategy for a tag; empty or unknown tags fall back to greedy.
func (e *Engine) Resolve(tag string) Strategy {
	if strategy, ok := e.strategies[normalizeAlgorithm(tag)]; ok {
		return strategy
	}
	return e.fallback
}

// Schedule builds a seating plan. Inputs are cloned on entry and never modified.
func (e *Engine) Schedule(students []Student, rooms []Room, opts Options) Result {
	students = append([]Student(nil), students...)
	rooms = append([]Room(nil), rooms...)
	strategy := e.Resolve(opts.Algorithm)
	agg := newAggregator()

	if problems := Validate(students, rooms); len(problems) > 0 {
		agg.validationFailed(problems)
		return agg.result(strategy.Name(), nil, nil)
	}

	if opts.Seed != nil {
		students = Shuffle(students, *opts.Seed)
	}

	if !checkCapacity(students, rooms, agg) {
		return agg.result(strategy.Name(), nil, nil)
	}
	if !checkSubjectDistribution(students, agg) {
		return agg.result(strategy.Name(), nil, nil)
	}

	assignments, conflicts := strategy.Place(students, rooms)
	agg.add(conflicts...)
	agg.placementDone()

	return agg.result(strategy.Name(), assignments, Summarize(rooms, assignments))
}
