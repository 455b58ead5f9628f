// ecsbench churns a world through create, query, migrate and remove rounds
// and writes a profile of the run.
//
// Usage:
//
//	go run ./cmd/ecsbench [-rounds n] [-entities n] [-profile cpu|mem] [-out dir]
//
// Inspect with: go tool pprof -http=":8000" cpu.pprof
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"

	"github.com/stratum-ecs/stratum/internal/component"
	"github.com/stratum-ecs/stratum/internal/core/ecs"
)

func main() {
	rounds := flag.Int("rounds", 50, "number of churn rounds")
	entities := flag.Int("entities", 10000, "entities created per round")
	mode := flag.String("profile", "cpu", "profile kind: cpu or mem")
	out := flag.String("out", ".", "directory for the profile file")
	flag.Parse()

	var kind func(*profile.Profile)
	switch *mode {
	case "cpu":
		kind = profile.CPUProfile
	case "mem":
		kind = profile.MemProfileAllocs
	default:
		fmt.Fprintf(os.Stderr, "unknown profile kind %q\n", *mode)
		os.Exit(2)
	}

	p := profile.Start(kind, profile.ProfilePath(*out), profile.NoShutdownHook)
	start := time.Now()
	if err := run(*rounds, *entities); err != nil {
		p.Stop()
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	p.Stop()
	elapsed := time.Since(start)
	total := max(*rounds * *entities, 1)
	fmt.Printf("%d rounds x %d entities in %s (%s/entity)\n",
		*rounds, *entities, elapsed, elapsed/time.Duration(total))
}

func run(rounds, n int) error {
	w := ecs.NewWorld(zap.NewNop(), ecs.WithCapacity(n), ecs.WithColumnCapacity(n))
	if err := component.RegisterAll(w); err != nil {
		return err
	}
	moving := ecs.NewQuery2[component.Position, component.Velocity](w)
	ids := make([]ecs.EntityID, 0, n)

	for range rounds {
		ids = ids[:0]
		for i := range n {
			id := w.Create(ecs.NullEntity)
			ecs.Insert(w, id, component.Position{X: float64(i)})
			ecs.Insert(w, id, component.Velocity{X: 1, Y: 1})
			ids = append(ids, id)
		}

		moving.Each(func(_ ecs.EntityID, p *component.Position, v *component.Velocity) {
			p.X += v.X
			p.Y += v.Y
		})

		// every other entity moves to a new archetype and back
		for i := 0; i < len(ids); i += 2 {
			ecs.Insert(w, ids[i], component.Lifetime{Seconds: 1})
		}
		for i := 0; i < len(ids); i += 2 {
			ecs.Erase[component.Lifetime](w, ids[i])
		}

		w.Defer()
		for _, id := range ids {
			w.Remove(id)
		}
		w.DeferEnd()
	}
	if w.Len() != 0 {
		return fmt.Errorf("%d entities survived the last round", w.Len())
	}
	return nil
}
