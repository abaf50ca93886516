package nbaml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets, holding out
// roughly testFraction of each class. Every class needs at least two rows so both
// sides see it. Both index lists come back in ascending order.
func StratifiedSplit(labels []int, testFraction float64, seed int64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %v outside (0, 1)", testFraction)
	}

	byClass := make(map[int][]int)
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		idx := byClass[c]
		if len(idx) < 2 {
			return nil, nil, fmt.Errorf("class %d has %d rows, need at least 2 to stratify: %w", c, len(idx), ErrNoUsableData)
		}
		nTest := int(math.Round(float64(len(idx)) * testFraction))
		nTest = min(max(nTest, 1), len(idx)-1)

		shuffled := append([]int(nil), idx...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		test = append(test, shuffled[:nTest]...)
		train = append(train, shuffled[nTest:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}
