package interval

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/eaugeas/keyset/container/tree"
)

// ErrMalformed is returned when parsing a string that does
// not represent an interval
var ErrMalformed = errors.New("malformed interval")

// Int represents an interval with integers. An interval
// is represented by two integers a, b such that
// [a, b]. An interval is immutable.
type Int struct {
	min int
	max int
}

// NewInt returns a new interval
func NewInt(min, max int) Int {
	if min > max {
		panic("min cannot be greater than max")
	}

	return Int{min: min, max: max}
}

// Parse reads an interval written as "a:b", or "a" for the
// interval [a, a]
func Parse(s string) (Int, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		hi = lo
	}

	min, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return Int{}, errors.Wrapf(ErrMalformed, "bad lower bound in %q", s)
	}

	max, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return Int{}, errors.Wrapf(ErrMalformed, "bad upper bound in %q", s)
	}

	if min > max {
		return Int{}, errors.Wrapf(ErrMalformed, "lower bound greater than upper bound in %q", s)
	}

	return Int{min: min, max: max}, nil
}

// Min returns the a of the interval [a, b]
func (i Int) Min() int {
	return i.min
}

// Max returns the b of the interval [a, b]
func (i Int) Max() int {
	return i.max
}

// Len returns the length of the interval
func (i Int) Len() int {
	// the difference of the bounds always fits in an uint
	d := uint(i.max) - uint(i.min)
	if d >= math.MaxInt {
		return math.MaxInt
	}
	return int(d) + 1
}

// String returns the interval as "[a, b]"
func (i Int) String() string {
	return fmt.Sprintf("[%d, %d]", i.min, i.max)
}

// Contains returns true if the interval represented
// by j is contained by i
func (i Int) Contains(j Int) bool {
	return i.min <= j.min && j.max <= i.max
}

// ContainsKey returns true if a <= key <= b
func (i Int) ContainsKey(key int) bool {
	return i.min <= key && key <= i.max
}

// Disjoints returns true if the intersection between
// i and j is empty
func (i Int) Disjoints(j Int) bool {
	return i.max < j.min || j.max < i.min
}

// Intersection returns the interval of intersection
// between i and j
func (i Int) Intersection(j Int) Int {
	if i.Disjoints(j) {
		panic("intersection between two disjoint intervals")
	}

	return Int{
		min: max(i.min, j.min),
		max: min(i.max, j.max),
	}
}

// CanMerge returns true if the both intervals can be
// merged into one. That is, if i and j are not disjoints
// or they share a boundary. For example, i = [a, b] and
// j = [b + 1, c], in which case the resulting merged
// interval would be k = [a, c]
func (i Int) CanMerge(j Int) bool {
	return !i.Disjoints(j) || adjacent(j.max, i.min) || adjacent(i.max, j.min)
}

// adjacent returns true if b == a + 1
func adjacent(a, b int) bool {
	return a != math.MaxInt && a+1 == b
}

// Merge merges two intervals and returns the result
// in a new interval. Only a pair of non disjoints
// intervals can be merged. If j is disjoint with i
// Merge will panic
func (i Int) Merge(j Int) Int {
	if !i.CanMerge(j) {
		panic("cannot merge intervals")
	}

	return Int{
		min: min(i.min, j.min),
		max: max(i.max, j.max),
	}
}

// IntSet represents a set of disjoint intervals
// {[Ii.Min(), Ii.Max()], i = 0 .. Len()}. Adjacent or
// overlapping intervals are merged on insertion, so
// inserting [1, 3], [5, 5] and then [4, 4] leaves the
// single interval [1, 5].
//
// The lower bounds are kept in a red black tree and the
// upper bounds in a map indexed by the lower bound.
type IntSet struct {
	starts *tree.Tree
	ends   map[int]int
}

// NewIntSet creates a new instance of a interval set
func NewIntSet() *IntSet {
	return &IntSet{
		starts: tree.NewRedBlackTree(),
		ends:   make(map[int]int),
	}
}

// Len returns the number of disjoint intervals
func (s *IntSet) Len() int {
	return s.starts.Len()
}

// Contains returns true if the set contains
// any interval which contains the interval
func (s *IntSet) Contains(i Int) bool {
	lower, ok := s.lower(i)
	if !ok {
		return false
	}

	return lower.Contains(i)
}

// Insert inserts an interval to the set. If there already
// is an interval in the set which is not disjoint with i
// the two will be merged
func (s *IntSet) Insert(i Int) {
	if lower, ok := s.lower(i); ok && i.CanMerge(lower) {
		s.remove(lower)
		i = i.Merge(lower)
	}

	for {
		higher, ok := s.higher(i)
		if !ok || !i.CanMerge(higher) {
			break
		}

		s.remove(higher)
		i = i.Merge(higher)
	}

	if _, err := s.starts.Insert(i.min); err != nil {
		panic(err)
	}
	s.ends[i.min] = i.max
}

// Intervals returns the intervals of the set in ascending order
func (s *IntSet) Intervals() []Int {
	intervals := make([]Int, 0, s.Len())
	for min := range s.starts.InOrder() {
		intervals = append(intervals, Int{min: min, max: s.ends[min]})
	}
	return intervals
}

func (s *IntSet) remove(i Int) {
	if !s.starts.Delete(i.min) {
		panic("failed to delete interval from set")
	}
	delete(s.ends, i.min)
}

func (s *IntSet) higher(i Int) (Int, bool) {
	node := s.starts.Higher(i.min)
	if node == nil {
		return Int{}, false
	}

	return Int{min: node.Key, max: s.ends[node.Key]}, true
}

func (s *IntSet) lower(i Int) (Int, bool) {
	node := s.starts.Lower(i.min)
	if node == nil {
		return Int{}, false
	}

	return Int{min: node.Key, max: s.ends[node.Key]}, true
}
