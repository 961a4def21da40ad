package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/metrics"
)

func seed(t testing.TB, s *MemoryStore, cat model.Category, ratings map[string]int) {
	t.Helper()
	for id, r := range ratings {
		if _, err := s.PutProfile(context.Background(), model.Profile{ID: id, Category: cat, Rating: r, Active: true}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
}

func ids(ps []model.Profile) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func apply(t *testing.T, s *MemoryStore, winner, loser string, nw, nl int) (model.Vote, error) {
	t.Helper()
	ctx := context.Background()
	w, err := s.Profile(ctx, winner)
	if err != nil {
		t.Fatalf("read winner: %v", err)
	}
	l, err := s.Profile(ctx, loser)
	if err != nil {
		t.Fatalf("read loser: %v", err)
	}
	return s.ApplyOutcome(ctx, Outcome{VoteID: fmt.Sprintf("v-%s-%s-%d", winner, loser, time.Now().UnixNano()), Winner: w, Loser: l, NewWinnerRating: nw, NewLoserRating: nl})
}

func TestMemoryStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	st, err := store.Stats(ctx)
	if err != nil || st.Profiles != 0 || st.Votes != 0 {
		t.Fatalf("expected empty stats, got %+v (%v)", st, err)
	}

	p, err := store.PutProfile(ctx, model.Profile{ID: "p1", Category: "femenino", Rating: 1500, Active: true, Username: "ana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Version != 1 {
		t.Errorf("expected version 1 on insert, got %d", p.Version)
	}

	got, err := store.Profile(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Username != "ana" || got.Rating != 1500 {
		t.Errorf("unexpected profile %+v", got)
	}

	r, err := store.Rank(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Position != 1 {
		t.Errorf("expected position 1, got %d", r.Position)
	}

	if _, err := store.Profile(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.PutProfile(ctx, model.Profile{ID: "", Category: "femenino"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty id, got %v", err)
	}
	if _, err := store.PutProfile(ctx, model.Profile{ID: "x"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty category, got %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestMemoryStore_OrderingAndTieBreaking(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithSeed(1))
	seed(t, store, "femenino", map[string]int{"b": 1500, "a": 1500, "top": 1700, "low": 1300, "c": 1500})

	top, err := store.TopProfiles(ctx, "femenino", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"top", "a", "b", "c", "low"}
	if fmt.Sprint(ids(top)) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, ids(top))
	}

	top, _ = store.TopProfiles(ctx, "femenino", 2)
	if len(top) != 2 {
		t.Errorf("expected min(limit, eligible)=2, got %d", len(top))
	}

	if _, err := store.TopProfiles(ctx, "femenino", 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}

	for i, id := range want {
		r, err := store.Rank(ctx, id)
		if err != nil {
			t.Fatalf("rank %s: %v", id, err)
		}
		if r.Position != i+1 {
			t.Errorf("rank %s: expected %d, got %d", id, i+1, r.Position)
		}
	}
}

func TestMemoryStore_InactiveAndCategories(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, "femenino", map[string]int{"f1": 1500, "f2": 1600})
	seed(t, store, "masculino", map[string]int{"m1": 1550})
	if _, err := store.PutProfile(ctx, model.Profile{ID: "f3", Category: "femenino", Rating: 2000, Active: false}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	top, _ := store.TopProfiles(ctx, "femenino", 10)
	if fmt.Sprint(ids(top)) != fmt.Sprint([]string{"f2", "f1"}) {
		t.Errorf("inactive or foreign profiles leaked into leaderboard: %v", ids(top))
	}
	if _, err := store.Rank(ctx, "f3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected inactive profile to have no rank, got %v", err)
	}
	if p, err := store.Profile(ctx, "f3"); err != nil || p.Rating != 2000 {
		t.Errorf("inactive profile must keep its rating, got %+v (%v)", p, err)
	}

	if _, _, ok, err := store.SamplePair(ctx, "masculino"); ok || err != nil {
		t.Errorf("expected empty pair for a single active profile, ok=%v err=%v", ok, err)
	}
	if _, _, ok, err := store.SamplePair(ctx, "unknown"); ok || err != nil {
		t.Errorf("expected empty pair for an empty category, ok=%v err=%v", ok, err)
	}

	// Deactivating f2 removes it from the tree; reactivating f3 adds it back.
	if _, err := store.PutProfile(ctx, model.Profile{ID: "f2", Category: "femenino", Rating: 1600, Active: false}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.PutProfile(ctx, model.Profile{ID: "f3", Category: "femenino", Rating: 2000, Active: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	top, _ = store.TopProfiles(ctx, "femenino", 10)
	if fmt.Sprint(ids(top)) != fmt.Sprint([]string{"f3", "f1"}) {
		t.Errorf("unexpected leaderboard after activity changes: %v", ids(top))
	}

	st, _ := store.Stats(ctx)
	if st.Profiles != 4 || st.ActiveProfiles != 3 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestMemoryStore_SamplePairUniform(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithSeed(42))
	ratings := map[string]int{}
	for i := range 10 {
		ratings[fmt.Sprintf("p%02d", i)] = 1400 + i*25
	}
	seed(t, store, "femenino", ratings)

	const draws = 20_000
	counts := map[string]int{}
	for range draws {
		a, b, ok, err := store.SamplePair(ctx, "femenino")
		if err != nil || !ok {
			t.Fatalf("unexpected sample result ok=%v err=%v", ok, err)
		}
		if a.ID == b.ID {
			t.Fatalf("sampled the same profile twice: %s", a.ID)
		}
		if a.Category != "femenino" || b.Category != "femenino" {
			t.Fatalf("sampled across categories: %s/%s", a.Category, b.Category)
		}
		counts[a.ID]++
		counts[b.ID]++
	}

	// Each profile appears in 2/10 of draws; allow 10% deviation.
	expected := float64(2*draws) / 10
	for id, c := range counts {
		if dev := (float64(c) - expected) / expected; dev > 0.1 || dev < -0.1 {
			t.Errorf("profile %s sampled %d times, expected about %.0f", id, c, expected)
		}
	}
	if len(counts) != 10 {
		t.Errorf("expected every profile to be sampled, got %d", len(counts))
	}
}

func TestMemoryStore_ApplyOutcome(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, "femenino", map[string]int{"w": 1500, "l": 1500, "x": 1490})

	v, err := apply(t, store, "w", "l", 1516, 1484)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.WinnerBefore != 1500 || v.WinnerAfter != 1516 || v.LoserBefore != 1500 || v.LoserAfter != 1484 {
		t.Errorf("unexpected audit columns %+v", v)
	}
	if v.Category != "femenino" {
		t.Errorf("expected vote category femenino, got %s", v.Category)
	}

	w, _ := store.Profile(ctx, "w")
	l, _ := store.Profile(ctx, "l")
	if w.Rating != 1516 || w.Wins != 1 || w.Matches != 1 || w.Version != 2 {
		t.Errorf("unexpected winner %+v", w)
	}
	if l.Rating != 1484 || l.Losses != 1 || l.Matches != 1 || l.Version != 2 {
		t.Errorf("unexpected loser %+v", l)
	}
	top, _ := store.TopProfiles(ctx, "femenino", 3)
	if fmt.Sprint(ids(top)) != fmt.Sprint([]string{"w", "x", "l"}) {
		t.Errorf("treap not updated after outcome: %v", ids(top))
	}

	st, _ := store.Stats(ctx)
	if st.Votes != 1 || st.Matches != 2 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestMemoryStore_ApplyOutcomeConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, "femenino", map[string]int{"w": 1500, "l": 1500})

	staleW, _ := store.Profile(ctx, "w")
	staleL, _ := store.Profile(ctx, "l")
	if _, err := apply(t, store, "w", "l", 1516, 1484); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := store.ApplyOutcome(ctx, Outcome{VoteID: "stale", Winner: staleW, Loser: staleL, NewWinnerRating: 1516, NewLoserRating: 1484})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for stale versions, got %v", err)
	}

	// The failed write left nothing behind.
	w, _ := store.Profile(ctx, "w")
	if w.Rating != 1516 || w.Matches != 1 {
		t.Errorf("conflicting write mutated state: %+v", w)
	}
	if n := len(store.Votes()); n != 1 {
		t.Errorf("expected 1 vote, got %d", n)
	}

	_, err = store.ApplyOutcome(ctx, Outcome{VoteID: "same", Winner: w, Loser: w})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for same profile, got %v", err)
	}
	_, err = store.ApplyOutcome(ctx, Outcome{VoteID: "ghost", Winner: w, Loser: model.Profile{ID: "ghost"}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown loser, got %v", err)
	}
}

func TestMemoryStore_MonotonicCreatedAt(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	i := 0
	store := NewMemoryStore(WithClock(func() time.Time {
		now := clock[i%len(clock)]
		i++
		return now
	}))
	seed(t, store, "femenino", map[string]int{"a": 1500, "b": 1500})

	for range 3 {
		if _, err := apply(t, store, "a", "b", 1500, 1500); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	votes := store.Votes()
	for k := 1; k < len(votes); k++ {
		if votes[k].CreatedAt.Before(votes[k-1].CreatedAt) {
			t.Errorf("created_at went backwards at %d: %v < %v", k, votes[k].CreatedAt, votes[k-1].CreatedAt)
		}
	}
}

func TestMemoryStore_RankCorrectnessUnderRandomUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithSeed(7))
	rng := rand.New(rand.NewPCG(7, 7))

	n := 200
	for i := range n {
		id := fmt.Sprintf("p%03d", i)
		if _, err := store.PutProfile(ctx, model.Profile{ID: id, Category: "femenino", Rating: 1500 + rng.IntN(50), Active: true}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	for range 2000 {
		a := fmt.Sprintf("p%03d", rng.IntN(n))
		b := fmt.Sprintf("p%03d", rng.IntN(n))
		if a == b {
			continue
		}
		wa, _ := store.Profile(ctx, a)
		lb, _ := store.Profile(ctx, b)
		d := rng.IntN(32)
		if _, err := apply(t, store, a, b, wa.Rating+d, lb.Rating-d); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	all := make([]model.Profile, 0, n)
	for i := range n {
		p, _ := store.Profile(ctx, fmt.Sprintf("p%03d", i))
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return model.Less(all[i], all[j]) })

	top, _ := store.TopProfiles(ctx, "femenino", n)
	if fmt.Sprint(ids(top)) != fmt.Sprint(ids(all)) {
		t.Fatal("treap order diverged from a full sort")
	}
	for i, p := range all {
		r, err := store.Rank(ctx, p.ID)
		if err != nil {
			t.Fatalf("rank: %v", err)
		}
		if r.Position != i+1 {
			t.Errorf("rank %s: expected %d, got %d", p.ID, i+1, r.Position)
		}
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, "femenino", map[string]int{"a": 1500, "b": 1500, "c": 1500})

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for g := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pairs := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}}
			for j := range perWorker {
				p := pairs[(g+j)%len(pairs)]
				for {
					w, _ := store.Profile(ctx, p[0])
					l, _ := store.Profile(ctx, p[1])
					_, err := store.ApplyOutcome(ctx, Outcome{
						VoteID: fmt.Sprintf("%d-%d", g, j), Winner: w, Loser: l,
						NewWinnerRating: w.Rating + 1, NewLoserRating: l.Rating - 1,
					})
					if err == nil {
						break
					}
					if !errors.Is(err, ErrConflict) {
						t.Errorf("unexpected error: %v", err)
						return
					}
				}
				_, _ = store.TopProfiles(ctx, "femenino", 3)
				_, _, _, _ = store.SamplePair(ctx, "femenino")
			}
		}()
	}
	wg.Wait()

	st, _ := store.Stats(ctx)
	if st.Votes != workers*perWorker {
		t.Errorf("expected %d votes, got %d", workers*perWorker, st.Votes)
	}
	if st.Matches != 2*st.Votes {
		t.Errorf("lost update: matches %d, votes %d", st.Matches, st.Votes)
	}
	sum := 0
	for _, id := range []string{"a", "b", "c"} {
		p, _ := store.Profile(ctx, id)
		sum += p.Rating
	}
	if sum != 4500 {
		t.Errorf("zero-sum updates drifted: total %d", sum)
	}
}

func TestMemoryStore_PutProfileKeepsRatingHistory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, "femenino", map[string]int{"w": 1500, "l": 1500})
	if _, err := apply(t, store, "w", "l", 1516, 1484); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, _ := store.Stats(ctx)

	off, err := store.PutProfile(ctx, model.Profile{ID: "w", Category: "femenino", Active: false, Username: "ana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off.Rating != 1516 || off.Wins != 1 || off.Matches != 1 || off.Version != 3 {
		t.Errorf("deactivation reset the profile: %+v", off)
	}
	if _, err := store.Rank(ctx, "w"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected inactive profile to have no rank, got %v", err)
	}
	st, _ := store.Stats(ctx)
	if st.Matches != before.Matches || st.ActiveProfiles != 1 {
		t.Errorf("stats drifted on deactivation: before %+v, after %+v", before, st)
	}

	on, err := store.PutProfile(ctx, model.Profile{ID: "w", Category: "masculino", Rating: 900, Active: true, Matches: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if on.Rating != 1516 || on.Matches != 1 || on.Category != "masculino" {
		t.Errorf("reactivation took caller-supplied history: %+v", on)
	}
	if top, _ := store.TopProfiles(ctx, "femenino", 10); fmt.Sprint(ids(top)) != fmt.Sprint([]string{"l"}) {
		t.Errorf("moved profile left behind in old category: %v", ids(top))
	}
	r, err := store.Rank(ctx, "w")
	if err != nil || r.Position != 1 || r.Profile.Rating != 1516 {
		t.Errorf("unexpected rank after reactivation %+v (%v)", r, err)
	}
	if st, _ := store.Stats(ctx); st.Matches != before.Matches {
		t.Errorf("matches total changed by upsert: %d, want %d", st.Matches, before.Matches)
	}
}

func TestMemoryStore_StatsIsObserved(t *testing.T) {
	count := func() uint64 {
		families, err := metrics.GetRegistry().Gather()
		if err != nil {
			t.Fatalf("gather: %v", err)
		}
		for _, f := range families {
			if f.GetName() != "arena_rating_store_latency_milliseconds" {
				continue
			}
			for _, m := range f.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "op" && l.GetValue() == "stats" {
						return m.GetHistogram().GetSampleCount()
					}
				}
			}
		}
		return 0
	}

	before := count()
	if _, err := NewMemoryStore().Stats(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after := count(); after != before+1 {
		t.Errorf("stats latency not observed: %d samples, want %d", after, before+1)
	}
}
