package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	model "github.com/okian/arena/internal/domain/model"
)

// Treap-based, in-memory Store implementation.
//
// Each category keeps a treap of its active profiles ordered by
// rating DESC, then id ASC, so in-order traversal yields the leaderboard.
// Nodes carry subtree sizes, which gives O(log n) expected rank lookup
// and selection by rank; uniform pair sampling selects two random ranks.

// treap node
type node struct {
	id     string
	rating int
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aRating, aID) should appear before (bRating, bID)
// in the leaderboard.
func less(aRating int, aID string, bRating int, bID string) bool {
	return model.Less(model.Profile{ID: aID, Rating: aRating}, model.Profile{ID: bID, Rating: bRating})
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n, nn *node) *node {
	if n == nil {
		nn.size = 1
		return nn
	}
	if less(nn.rating, nn.id, n.rating, n.id) {
		n.left = insert(n.left, nn)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, nn)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating int) *node {
	if n == nil {
		return nil
	}
	if rating == n.rating && id == n.id {
		// Rotate the higher-priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	} else if less(rating, id, n.rating, n.id) {
		n.left = deleteNode(n.left, id, rating)
	} else {
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// selectAt returns the node at 0-based position k in leaderboard order.
func selectAt(n *node, k int) *node {
	for n != nil {
		ls := nsize(n.left)
		switch {
		case k < ls:
			n = n.left
		case k == ls:
			return n
		default:
			k -= ls + 1
			n = n.right
		}
	}
	return nil
}

// countBefore returns how many nodes sort strictly before (rating, id).
func countBefore(n *node, rating int, id string) int {
	c := 0
	for n != nil {
		if less(n.rating, n.id, rating, id) {
			c += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return c
}

// collectTopN appends up to limit ids in leaderboard order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.id)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// MemoryStore keeps profiles and the vote log in process memory.
// It is used for demo mode, local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]model.Profile
	trees    map[model.Category]*node // active profiles only
	votes    []model.Vote
	matches  int64

	now  func() time.Time
	intN func(n int) int
	prio func() uint64
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		profiles: make(map[string]model.Profile),
		trees:    make(map[model.Category]*node),
		now:      time.Now,
		intN:     rand.IntN,
		prio:     rand.Uint64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Store = (*MemoryStore)(nil)

// Profile implements Store.Profile.
func (s *MemoryStore) Profile(_ context.Context, id string) (p model.Profile, err error) {
	defer func(start time.Time) { observe("profile", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return p, nil
}

// SamplePair implements Store.SamplePair: two distinct ranks drawn uniformly.
func (s *MemoryStore) SamplePair(_ context.Context, category model.Category) (left, right model.Profile, ok bool, err error) {
	defer func(start time.Time) { observe("sample_pair", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	root := s.trees[category]
	n := nsize(root)
	if n < 2 {
		return model.Profile{}, model.Profile{}, false, nil
	}
	i := s.intN(n)
	j := s.intN(n - 1)
	if j >= i {
		j++
	}
	left = s.profiles[selectAt(root, i).id]
	right = s.profiles[selectAt(root, j).id]
	return left, right, true, nil
}

// ApplyOutcome implements Store.ApplyOutcome under the write lock.
func (s *MemoryStore) ApplyOutcome(_ context.Context, o Outcome) (v model.Vote, err error) {
	defer func(start time.Time) { observe("apply_outcome", start, err) }(time.Now())

	if err := validateOutcome(o); err != nil {
		return model.Vote{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.profiles[o.Winner.ID]
	if !ok {
		return model.Vote{}, ErrNotFound
	}
	l, ok := s.profiles[o.Loser.ID]
	if !ok {
		return model.Vote{}, ErrNotFound
	}
	if w.Version != o.Winner.Version || l.Version != o.Loser.Version {
		return model.Vote{}, ErrConflict
	}

	created := s.now().UTC()
	if n := len(s.votes); n > 0 && created.Before(s.votes[n-1].CreatedAt) {
		created = s.votes[n-1].CreatedAt
	}
	v = model.Vote{
		ID:           o.VoteID,
		WinnerID:     w.ID,
		LoserID:      l.ID,
		Category:     w.Category,
		WinnerBefore: w.Rating,
		WinnerAfter:  o.NewWinnerRating,
		LoserBefore:  l.Rating,
		LoserAfter:   o.NewLoserRating,
		CreatedAt:    created,
	}

	s.setRating(&w, o.NewWinnerRating)
	w.Wins++
	w.Matches++
	s.setRating(&l, o.NewLoserRating)
	l.Losses++
	l.Matches++

	s.profiles[w.ID] = w
	s.profiles[l.ID] = l
	s.votes = append(s.votes, v)
	s.matches += 2
	return v, nil
}

// setRating moves p within its category treap and bumps its version.
// Caller holds the write lock and stores p back.
func (s *MemoryStore) setRating(p *model.Profile, rating int) {
	if p.Active {
		root := deleteNode(s.trees[p.Category], p.ID, p.Rating)
		s.trees[p.Category] = insert(root, &node{id: p.ID, rating: rating, prio: s.prio()})
	}
	p.Rating = rating
	p.Version++
}

// TopProfiles implements Store.TopProfiles.
func (s *MemoryStore) TopProfiles(_ context.Context, category model.Category, limit int) (out []model.Profile, err error) {
	defer func(start time.Time) { observe("top_profiles", start, err) }(time.Now())

	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	root := s.trees[category]
	ids := make([]string, 0, min(limit, nsize(root)))
	collectTopN(root, limit, &ids)
	out = make([]model.Profile, len(ids))
	for i, id := range ids {
		out[i] = s.profiles[id]
	}
	return out, nil
}

// Rank implements Store.Rank in O(log n).
func (s *MemoryStore) Rank(_ context.Context, id string) (r model.Ranked, err error) {
	defer func(start time.Time) { observe("rank", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok || !p.Active {
		return model.Ranked{}, ErrNotFound
	}
	pos := countBefore(s.trees[p.Category], p.Rating, p.ID) + 1
	return model.Ranked{Position: pos, Profile: p}, nil
}

// PutProfile implements Store.PutProfile. An existing profile keeps its
// rating and match counters.
func (s *MemoryStore) PutProfile(_ context.Context, p model.Profile) (out model.Profile, err error) {
	defer func(start time.Time) { observe("put_profile", start, err) }(time.Now())

	if err := validateProfile(p); err != nil {
		return model.Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.Version = 1
	if old, ok := s.profiles[p.ID]; ok {
		if old.Active {
			s.trees[old.Category] = deleteNode(s.trees[old.Category], old.ID, old.Rating)
		}
		p.Rating, p.Wins, p.Losses, p.Matches = old.Rating, old.Wins, old.Losses, old.Matches
		p.Version = old.Version + 1
	} else {
		s.matches += int64(p.Matches)
	}
	if p.Active {
		s.trees[p.Category] = insert(s.trees[p.Category], &node{id: p.ID, rating: p.Rating, prio: s.prio()})
	}
	s.profiles[p.ID] = p
	return p, nil
}

// Votes returns a copy of the vote log in insertion order.
func (s *MemoryStore) Votes() []model.Vote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Vote(nil), s.votes...)
}

// Stats implements Store.Stats.
func (s *MemoryStore) Stats(_ context.Context) (st Stats, err error) {
	defer func(start time.Time) { observe("stats", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	st = Stats{
		Profiles: int64(len(s.profiles)),
		Votes:    int64(len(s.votes)),
		Matches:  s.matches,
	}
	for _, root := range s.trees {
		st.ActiveProfiles += int64(nsize(root))
	}
	return st, nil
}

// Ping implements Store.Ping.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store.Close.
func (s *MemoryStore) Close() error { return nil }
