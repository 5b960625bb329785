package allocator

import (
	"math/rand/v2"
	"slices"
	"sort"
)

type attemptOutcome struct {
	ran      bool
	complete bool
	score    int
	schedule Schedule
}

// cellPool is the shrinking set of free cells for one attempt.
type cellPool struct {
	cells []Cell
}

func (p *cellPool) removeAt(indices ...int) {
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	for _, idx := range indices {
		p.cells = slices.Delete(p.cells, idx, idx+1)
	}
}

// attempt runs one randomized constructive pass. A fill-phase miss abandons the attempt.
func (p *plan) attempt(rng *rand.Rand) attemptOutcome {
	pool := &cellPool{cells: slices.Clone(p.grid)}
	remaining := make(map[string]int, len(p.subjects))
	for _, subject := range p.subjects {
		remaining[subject] = max(0, p.input.Credits[subject])
	}
	schedule := make(Schedule, 0, p.input.TotalCredits())

	schedule = p.placeBlocks(rng, pool, remaining, schedule)

	demand := make([]string, 0, p.input.TotalCredits()-len(schedule))
	for _, subject := range p.subjects {
		for i := 0; i < remaining[subject]; i++ {
			demand = append(demand, subject)
		}
	}
	rng.Shuffle(len(demand), func(i, j int) { demand[i], demand[j] = demand[j], demand[i] })
	rng.Shuffle(len(pool.cells), func(i, j int) { pool.cells[i], pool.cells[j] = pool.cells[j], pool.cells[i] })

	for _, subject := range demand {
		invalid := p.input.InvalidSlots[subject]
		idx := slices.IndexFunc(pool.cells, func(c Cell) bool { return !invalid.Has(c) })
		if idx < 0 {
			return attemptOutcome{ran: true}
		}
		cell := pool.cells[idx]
		schedule = append(schedule, Placement{Day: cell.Day, Timeslot: cell.Timeslot, Subject: subject})
		pool.removeAt(idx)
	}

	return attemptOutcome{
		ran:      true,
		complete: true,
		score:    p.scorer.Score(schedule),
		schedule: schedule,
	}
}

// placeBlocks gives each high-priority subject with two or more credits left at most one
// pair of time-adjacent lectures on a single day.
func (p *plan) placeBlocks(rng *rand.Rand, pool *cellPool, remaining map[string]int, schedule Schedule) Schedule {
	subjects := p.highPriorityList()
	rng.Shuffle(len(subjects), func(i, j int) { subjects[i], subjects[j] = subjects[j], subjects[i] })

	for _, subject := range subjects {
		if remaining[subject] < 2 {
			continue
		}
		days := slices.Clone(p.days)
		rng.Shuffle(len(days), func(i, j int) { days[i], days[j] = days[j], days[i] })

		invalid := p.input.InvalidSlots[subject]
		for _, day := range days {
			type candidate struct {
				poolIdx int
				order   int
			}
			var candidates []candidate
			for idx, cell := range pool.cells {
				if cell.Day != day || invalid.Has(cell) {
					continue
				}
				candidates = append(candidates, candidate{poolIdx: idx, order: p.timeIndex[cell.Timeslot]})
			}
			sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].order < candidates[j].order })

			placed := false
			for k := 0; k+1 < len(candidates); k++ {
				first, second := candidates[k], candidates[k+1]
				if second.order != first.order+1 {
					continue
				}
				schedule = append(schedule,
					Placement{Day: day, Timeslot: p.input.Timeslots[first.order], Subject: subject},
					Placement{Day: day, Timeslot: p.input.Timeslots[second.order], Subject: subject},
				)
				pool.removeAt(first.poolIdx, second.poolIdx)
				remaining[subject] -= 2
				placed = true
				break
			}
			if placed {
				break
			}
		}
	}
	return schedule
}
