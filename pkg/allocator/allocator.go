package allocator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StrategyRestartConstructive names the restart-based stochastic constructive search.
const StrategyRestartConstructive = "restart-constructive"

const (
	defaultPopulationSize = 20
	minAttempts           = 200
	defaultPriorityTiers  = 2
)

// ErrAllocationFailed is returned when no attempt placed every credit.
var ErrAllocationFailed = errors.New("could not generate a valid timetable")

// Strategy produces a schedule for an input.
type Strategy interface {
	Name() string
	Allocate(ctx context.Context, in Input) (Result, error)
}

// Config tunes the search.
type Config struct {
	// PopulationSize scales the attempt budget: attempts = max(PopulationSize*10, 200).
	PopulationSize int
	// Attempts overrides the derived attempt budget when positive.
	Attempts int
	// PriorityTiers is how many top priority tiers count as high priority.
	PriorityTiers int
	// Workers bounds concurrent attempts. Values below 2 run sequentially.
	Workers int
	// Seed makes runs reproducible when non-nil.
	Seed   *int64
	Logger *zap.Logger
}

// Allocator implements Strategy with restart-based constructive search.
type Allocator struct {
	cfg    Config
	logger *zap.Logger
}

// New builds an allocator, filling defaults.
func New(cfg Config) *Allocator {
	if cfg.PopulationSize <= 0 {
		cfg.PopulationSize = defaultPopulationSize
	}
	if cfg.PriorityTiers <= 0 {
		cfg.PriorityTiers = defaultPriorityTiers
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{cfg: cfg, logger: logger}
}

// Name implements Strategy.
func (a *Allocator) Name() string {
	return StrategyRestartConstructive
}

// AttemptBudget returns the number of attempts a run performs.
func (a *Allocator) AttemptBudget() int {
	if a.cfg.Attempts > 0 {
		return a.cfg.Attempts
	}
	return max(a.cfg.PopulationSize*10, minAttempts)
}

// Allocate runs the attempt budget and returns the best complete schedule. When no attempt
// completes the result carries an empty schedule and ErrAllocationFailed.
func (a *Allocator) Allocate(ctx context.Context, in Input) (Result, error) {
	started := time.Now()
	plan := newPlan(in, a.cfg.PriorityTiers)
	budget := a.AttemptBudget()
	seed := a.baseSeed()

	outcomes := make([]attemptOutcome, budget)
	run := func(i int) {
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(i)))
		outcomes[i] = plan.attempt(rng)
	}

	if a.cfg.Workers < 2 {
		for i := 0; i < budget; i++ {
			if ctx.Err() != nil {
				break
			}
			run(i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.cfg.Workers)
		for i := 0; i < budget; i++ {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	result := Result{
		Schedule:     Schedule{},
		BestAttempt:  -1,
		HighPriority: plan.highPriorityList(),
		Strategy:     a.Name(),
	}
	for i, out := range outcomes {
		if !out.ran {
			continue
		}
		result.Attempts++
		if !out.complete {
			continue
		}
		result.Completed++
		if result.BestAttempt < 0 || out.score > result.Score {
			result.Score = out.score
			result.Schedule = out.schedule
			result.BestAttempt = i
		}
	}

	a.logger.Debug("allocation finished",
		zap.String("strategy", a.Name()),
		zap.Int("attempts", result.Attempts),
		zap.Int("completed", result.Completed),
		zap.Int("score", result.Score),
		zap.Duration("elapsed", time.Since(started)),
	)

	if !result.Complete() {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}
		return result, ErrAllocationFailed
	}
	return result, nil
}

func (a *Allocator) baseSeed() int64 {
	if a.cfg.Seed != nil {
		return *a.cfg.Seed
	}
	return rand.Int64()
}

// plan holds the per-call immutable data shared by every attempt.
type plan struct {
	input     Input
	days      []string
	timeIndex map[string]int
	grid      []Cell
	subjects  []string
	high      map[string]bool
	scorer    *Scorer
}

func newPlan(in Input, tiers int) *plan {
	days := in.days()
	timeIndex := make(map[string]int, len(in.Timeslots))
	for i, label := range in.Timeslots {
		if _, seen := timeIndex[label]; !seen {
			timeIndex[label] = i
		}
	}
	timeslots := lo.Uniq(in.Timeslots)
	grid := make([]Cell, 0, len(days)*len(timeslots))
	for _, day := range lo.Uniq(days) {
		for _, label := range timeslots {
			grid = append(grid, Cell{Day: day, Timeslot: label})
		}
	}

	subjects := lo.Keys(in.Credits)
	sort.Strings(subjects)

	high := HighPrioritySubjects(in, tiers)
	return &plan{
		input:     in,
		days:      lo.Uniq(days),
		timeIndex: timeIndex,
		grid:      grid,
		subjects:  subjects,
		high:      high,
		scorer:    newScorer(in.Timeslots, in.priority, high),
	}
}

func (p *plan) highPriorityList() []string {
	list := lo.Keys(p.high)
	sort.Strings(list)
	return list
}

// HighPrioritySubjects returns the subjects in the top tiers priority tiers, considering
// every subject named in Subjects or Credits. The threshold never drops below 1.
func HighPrioritySubjects(in Input, tiers int) map[string]bool {
	if tiers <= 0 {
		tiers = defaultPriorityTiers
	}
	names := lo.Uniq(append(append([]string{}, in.Subjects...), lo.Keys(in.Credits)...))
	high := make(map[string]bool)
	if len(names) == 0 {
		return high
	}
	maxPriority := lo.Max(lo.Map(names, func(name string, _ int) int { return in.priority(name) }))
	threshold := max(1, maxPriority-(tiers-1))
	for _, name := range names {
		if in.priority(name) >= threshold {
			high[name] = true
		}
	}
	return high
}
