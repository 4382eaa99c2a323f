package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	clk := testclock.NewClock(time.Unix(0, 0))
	var transitions []string
	b := NewBreaker("redis", BreakerConfig{
		FailureThreshold: 2,
		Cooldown:         10 * time.Second,
		Clock:            clk,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	fail := func() error { return errors.New("connection refused") }
	ok := func() error { return nil }

	_ = b.Execute(fail)
	if b.State() != StateClosed {
		t.Fatal("one failure should not open the circuit")
	}
	_ = b.Execute(fail)
	if b.State() != StateOpen {
		t.Fatal("threshold reached, circuit should be open")
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open circuit: err = %v, called = %v", err, called)
	}

	clk.Advance(10 * time.Second)
	if err := b.Execute(fail); err == nil || errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("probe should run and fail, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatal("failed probe should reopen the circuit")
	}

	clk.Advance(10 * time.Second)
	if err := b.Execute(ok); err != nil {
		t.Fatalf("probe error: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatal("successful probe should close the circuit")
	}

	want := []string{"closed->open", "open->half-open", "half-open->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker("redis", BreakerConfig{FailureThreshold: 2, Clock: testclock.NewClock(time.Unix(0, 0))})
	fail := func() error { return errors.New("timeout") }
	_ = b.Execute(fail)
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(fail)
	if b.State() != StateClosed {
		t.Error("failures were not consecutive, circuit should stay closed")
	}
}
