package concurrent

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBatchRunOKNoConcurrency(t *testing.T) {
	inC := make(chan Supplier[int])

	go func() {
		for i := 0; i < 10; i++ {
			value := i
			inC <- SupplierFunc[int](func() (int, error) {
				return value, nil
			})
		}
		close(inC)
	}()

	resC := BatchWithOpts[int](context.TODO(), inC, BatchOpts{
		Concurrency: 1,
	})

	counter := 0
	for res := range resC {
		assert.Equal(t, counter, res.Value())
		assert.Nil(t, res.Err())
		counter++
	}
}

func TestBatchRunErrTimeout(t *testing.T) {
	inC := make(chan Supplier[int])
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()

	resC := BatchWithOpts[int](ctx, inC, BatchOpts{
		Concurrency: 1,
	})

	counter := 0
	for range resC {
		counter++
	}

	assert.Equal(t, 0, counter)
}

func TestBatchRunErrCancel(t *testing.T) {
	inC := make(chan Supplier[int], 64)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for i := 0; i < 10; i++ {
			value := i
			inC <- SupplierFunc[int](func() (int, error) {
				return value, nil
			})

			if i == 1 {
				cancel()
			}
		}
		close(inC)
	}()

	resC := BatchWithOpts[int](ctx, inC, BatchOpts{
		Concurrency: 1,
	})

	counter := 0
	for range resC {
		counter++
	}

	assert.True(t, counter < 10)
}

func TestBatchRunOKWithConcurrency(t *testing.T) {
	inC := make(chan Supplier[int])

	go func() {
		for i := 0; i < 10; i++ {
			value := i
			inC <- SupplierFunc[int](func() (int, error) {
				return value, nil
			})
		}
		close(inC)
	}()

	resC := BatchWithOpts[int](context.TODO(), inC, BatchOpts{
		Concurrency: 8,
	})

	var results []int
	for res := range resC {
		assert.Nil(t, res.Err())
		results = append(results, res.Value())
	}

	sort.Ints(results)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, results)
}

func TestBatchSliceOK(t *testing.T) {
	in := make([]Supplier[int], 0, 10)

	for i := 0; i < 10; i++ {
		value := i
		in = append(in, SupplierFunc[int](func() (int, error) {
			time.Sleep(time.Duration(10-i) * time.Millisecond)
			return value, nil
		}))
	}

	res := BatchSliceWithOpts(context.TODO(), in, BatchOpts{Concurrency: 8})

	assert.Equal(t, len(in), len(res))
	for i := 0; i < len(res); i++ {
		assert.Equal(t, i, res[i].Value())
		assert.Nil(t, res[i].Err())
	}
}

func runBatchBenchmark(b *testing.B, s Supplier[int]) {
	inC := make(chan Supplier[int], 64)
	runner := NewBatchRunnerWithOpts[int](BatchOpts{
		Concurrency: 8,
	})
	ctx := context.TODO()
	outC := runner.Run(ctx, inC)

	go func(inC chan<- Supplier[int]) {
		for i := 0; i < b.N; i++ {
			inC <- s
		}
		close(inC)
	}(inC)

	counter := 0
	for range outC {
		counter++
	}

	assert.Equal(b, b.N, counter)
}

func BenchmarkBatchRunner(b *testing.B) {
	s := SupplierFunc[int](func() (int, error) {
		return 0, nil
	})

	runBatchBenchmark(b, s)
}

func BenchmarkBatchRunnerWithConstantWait(b *testing.B) {
	s := SupplierFunc[int](func() (int, error) {
		<-time.After(1 * time.Microsecond)
		return 0, nil
	})

	runBatchBenchmark(b, s)
}

func TestBatchSliceCanceledReportsContextErr(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := []Supplier[int]{
		SupplierFunc[int](func() (int, error) { return 1, nil }),
		SupplierFunc[int](func() (int, error) { return 2, nil }),
	}

	res := BatchSliceWithOpts(ctx, in, BatchOpts{Concurrency: 2})

	assert.Len(t, res, 2)
	for i, r := range res {
		assert.Equal(t, int64(i), r.Index())
		if r.Err() != nil {
			assert.ErrorIs(t, r.Err(), context.Canceled)
		}
	}
}

func TestBatchRunnerRunTwiceSequentially(t *testing.T) {
	runner := NewBatchRunnerWithOpts[int](BatchOpts{Concurrency: 2})

	for round := 0; round < 2; round++ {
		inC := make(chan Supplier[int], 1)
		inC <- SupplierFunc[int](func() (int, error) { return round, nil })
		close(inC)

		count := 0
		for res := range runner.Run(context.Background(), inC) {
			assert.Equal(t, round, res.Value())
			count++
		}
		assert.Equal(t, 1, count)
	}
}
