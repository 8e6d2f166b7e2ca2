package game

import (
	"sort"
	"sync"
)

// Point values for every award the ledger knows about.
const (
	PointsLikeReceived   = 1
	PointsReplyReceived  = 1
	PointsSameGroupLike  = 1
	PointsSameGroupReply = 1
	PointsDominance      = 3
	PointsCentrality     = 2
	PointsMisalignment   = -1
)

// Ledger tracks signed point deltas per user per round. Cells are created
// lazily and only ever incremented or decremented; mutations are serialized
// so concurrent awards in the same round never lose updates.
type Ledger struct {
	mu     sync.Mutex
	scores map[string]map[int]int
}

func NewLedger() *Ledger {
	return &Ledger{scores: make(map[string]map[int]int)}
}

// RegisterUser is idempotent; registering an existing user changes nothing.
func (l *Ledger) RegisterUser(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registerLocked(username)
}

func (l *Ledger) registerLocked(username string) {
	if _, ok := l.scores[username]; !ok {
		l.scores[username] = make(map[int]int)
	}
}

// InitializeRound ensures every registered user has a zero cell for the
// round. Safe to call any number of times; existing cells are untouched.
func (l *Ledger) InitializeRound(round int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rounds := range l.scores {
		if _, ok := rounds[round]; !ok {
			rounds[round] = 0
		}
	}
}

func (l *Ledger) add(username string, round, delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registerLocked(username)
	l.scores[username][round] += delta
}

func (l *Ledger) LikeReceived(username string, round int)   { l.add(username, round, PointsLikeReceived) }
func (l *Ledger) ReplyReceived(username string, round int)  { l.add(username, round, PointsReplyReceived) }
func (l *Ledger) SameGroupLike(username string, round int)  { l.add(username, round, PointsSameGroupLike) }
func (l *Ledger) SameGroupReply(username string, round int) { l.add(username, round, PointsSameGroupReply) }
func (l *Ledger) DominanceBonus(username string, round int) { l.add(username, round, PointsDominance) }
func (l *Ledger) MisalignmentPenalty(username string, round int) {
	l.add(username, round, PointsMisalignment)
}

// CentralityBonus awards the top ceil(5%) of users by degree centrality over
// the given posts, never fewer than one user when anyone ranks at all. Ties
// break deterministically: higher centrality first, then username ascending.
// Mention-only names can rank; they are registered on first award.
func (l *Ledger) CentralityBonus(posts []Post, round int) {
	centrality := Centrality(posts)
	if len(centrality) == 0 {
		return
	}
	ranked := make([]string, 0, len(centrality))
	for user := range centrality {
		ranked = append(ranked, user)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if centrality[ranked[i]] != centrality[ranked[j]] {
			return centrality[ranked[i]] > centrality[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	count := (len(ranked) + 19) / 20
	if count < 1 {
		count = 1
	}
	for _, user := range ranked[:count] {
		l.add(user, round, PointsCentrality)
	}
}

// ScoresForRound returns every registered user's delta for exactly that
// round; users without a cell read as 0.
func (l *Ledger) ScoresForRound(round int) map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.scores))
	for user, rounds := range l.scores {
		out[user] = rounds[round]
	}
	return out
}

// AllScores returns a copy of the full per-user per-round ledger.
func (l *Ledger) AllScores() map[string]map[int]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]map[int]int, len(l.scores))
	for user, rounds := range l.scores {
		cp := make(map[int]int, len(rounds))
		for round, delta := range rounds {
			cp[round] = delta
		}
		out[user] = cp
	}
	return out
}

// Totals sums each user's deltas across every round.
func (l *Ledger) Totals() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.scores))
	for user, rounds := range l.scores {
		total := 0
		for _, delta := range rounds {
			total += delta
		}
		out[user] = total
	}
	return out
}
