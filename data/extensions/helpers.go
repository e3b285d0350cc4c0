package extensions

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// FilterMultiple return all elements that satisfy the predicate
func FilterMultiple[T any](elements []T, predicate func(T) bool) (results []T) {
	for _, element := range elements {
		if predicate(element) {
			results = append(results, element)
		}
	}
	return
}

// FilterSingle return the single element that satisfies the predicate.
// If zero or more than one, default T and an error is returned.
func FilterSingle[T any](elements []T, predicate func(T) bool) (T, error) {
	res := FilterMultiple(elements, predicate)

	if len(res) != 1 {
		var zero T
		return zero, fmt.Errorf("error getting single, found %d matches", len(res))
	}

	return res[0], nil
}

// Map applies f to every element
func Map[T, R any](elements []T, f func(T) R) []R {
	res := make([]R, len(elements))
	for i, element := range elements {
		res[i] = f(element)
	}
	return res
}

// SplitSymbols turns "aapl, googl,,MSFT" into [AAPL GOOGL MSFT], order kept, blanks removed
func SplitSymbols(raw string) []string {
	res := make([]string, 0)
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			res = append(res, s)
		}
	}
	return res
}

// SortedUnique returns a sorted copy with duplicates removed
func SortedUnique[T interface{ ~string | Number }](values []T) []T {
	res := slices.Clone(values)
	slices.Sort(res)
	return slices.Compact(res)
}

// FmtShort formats a time in a date only string
func FmtShort(t time.Time) string {
	return t.Format(time.DateOnly)
}

// FmtLong formats a time to a full date string
func FmtLong(t time.Time) string {
	return t.Format(time.RFC3339)
}

func Min[T Number](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Clamp[T Number](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
