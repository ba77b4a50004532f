package recognition

import (
	"math"
	"sync"
)

// DefaultThreshold is the similarity a match must exceed
const DefaultThreshold = 0.5

// Identity is an enrolled face
type Identity struct {
	ID        string
	Name      string
	Photo     string
	Embedding []float32
}

type Match struct {
	Identity
	Score float64
}

// CosineSimilarity returns 0 for vectors of different length or zero norm
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

// Accepts reports whether a score counts as a match. Equality is not enough.
func Accepts(score, threshold float64) bool {
	return score > threshold
}

// BestMatch returns the most similar identity if it passes the threshold
func BestMatch(vec []float32, candidates []Identity, threshold float64) (Match, bool) {
	best := Match{Score: math.Inf(-1)}
	for _, c := range candidates {
		if s := CosineSimilarity(vec, c.Embedding); s > best.Score {
			best = Match{Identity: c, Score: s}
		}
	}
	if !Accepts(best.Score, threshold) {
		return Match{}, false
	}
	return best, true
}

// Roster holds the teacher and student embeddings. It is replaced as a
// whole after each reconciliation and never edited in place.
type Roster struct {
	mu       sync.RWMutex
	teachers []Identity
	students []Identity
}

func (r *Roster) Replace(teachers, students []Identity) {
	r.mu.Lock()
	r.teachers = teachers
	r.students = students
	r.mu.Unlock()
}

func (r *Roster) MatchTeacher(vec []float32, threshold float64) (Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return BestMatch(vec, r.teachers, threshold)
}

func (r *Roster) MatchStudent(vec []float32, threshold float64) (Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return BestMatch(vec, r.students, threshold)
}

// Size returns the number of enrolled teachers and students
func (r *Roster) Size() (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.teachers), len(r.students)
}
