package fn

import (
	"context"
	"errors"
	"testing"
)

func TestResultBasics(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok result misreported")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("Unwrap = %v, %v", v, err)
	}

	boom := errors.New("boom")
	e := Err[int](boom)
	if e.IsOk() {
		t.Fatal("Err result misreported")
	}
	if got := e.UnwrapOr(7); got != 7 {
		t.Fatalf("UnwrapOr = %v, want 7", got)
	}
	if _, err := e.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("Unwrap err = %v", err)
	}
}

func TestThen_ShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	first := func(_ context.Context, n int) Result[int] { return Err[int](boom) }
	second := func(_ context.Context, n int) Result[string] {
		t.Fatal("second stage ran after failure")
		return Ok("")
	}
	r := Then(first, second)(context.Background(), 1)
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
}

func TestThen_Chains(t *testing.T) {
	double := MapStage(func(n int) int { return n * 2 })
	inc := MapStage(func(n int) int { return n + 1 })
	v, err := Then(double, inc)(context.Background(), 20).Unwrap()
	if err != nil || v != 41 {
		t.Fatalf("chained = %v, %v", v, err)
	}
}

func TestCollect(t *testing.T) {
	all := Collect([]Result[int]{Ok(1), Ok(2)})
	vs, err := all.Unwrap()
	if err != nil || len(vs) != 2 {
		t.Fatalf("Collect ok = %v, %v", vs, err)
	}

	boom := errors.New("boom")
	bad := Collect([]Result[int]{Ok(1), Err[int](boom)})
	if _, err := bad.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("Collect err = %v", err)
	}
}

func TestSliceHelpers(t *testing.T) {
	nums := []int{1, 2, 3, 4}
	doubled := Map(nums, func(n int) int { return n * 2 })
	if doubled[3] != 8 {
		t.Errorf("Map = %v", doubled)
	}
	evens := Filter(nums, func(n int) bool { return n%2 == 0 })
	if len(evens) != 2 {
		t.Errorf("Filter = %v", evens)
	}
	uniq := UniqueBy([]int{1, 2, 1, 3, 2}, func(n int) int { return n })
	if len(uniq) != 3 {
		t.Errorf("UniqueBy = %v", uniq)
	}
	batches := Chunk(nums, 3)
	if len(batches) != 2 || len(batches[0]) != 3 || len(batches[1]) != 1 {
		t.Errorf("Chunk = %v", batches)
	}
}

func TestParMap_PreservesOrder(t *testing.T) {
	in := make([]int, 100)
	for i := range in {
		in[i] = i
	}
	out := ParMap(in, 8, func(n int) int { return n * n })
	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d", i, v)
		}
	}
}
