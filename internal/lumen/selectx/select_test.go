package selectx_test

import (
	"testing"
	"time"

	"code.hybscloud.com/lumen/internal/lumen/selectx"
	"code.hybscloud.com/lumen/internal/lumen/suspend"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

type timedAwaiter struct {
	readyAfter time.Time
	v          value.Value
}

func (a *timedAwaiter) Poll() (value.Value, bool, error) {
	if time.Now().After(a.readyAfter) {
		return a.v, true, nil
	}
	return value.Value{}, false, nil
}

func TestResolvePicksFirstReadyArm(t *testing.T) {
	slow := suspend.NewHost(&timedAwaiter{readyAfter: time.Now().Add(50 * time.Millisecond), v: value.Int(1)})
	fast := suspend.NewHost(&timedAwaiter{readyAfter: time.Now(), v: value.Int(2)})

	res, err := selectx.Resolve([]selectx.Arm{
		{Future: slow, Index: 0},
		{Future: fast, Index: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Index != 1 || res.Value.AsInt() != 2 {
		t.Fatalf("got %+v, want the fast arm (index 1, value 2) to win", res)
	}
}

func TestResolveBreaksSimultaneousTieBySourceOrder(t *testing.T) {
	now := time.Now().Add(-time.Millisecond)
	a := suspend.NewHost(&timedAwaiter{readyAfter: now, v: value.Int(10)})
	b := suspend.NewHost(&timedAwaiter{readyAfter: now, v: value.Int(20)})

	res, err := selectx.Resolve([]selectx.Arm{
		{Future: a, Index: 3},
		{Future: b, Index: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Index != 1 {
		t.Fatalf("got winning index %d, want the smaller source-order index 1", res.Index)
	}
}

func TestResolveCancelsLosers(t *testing.T) {
	fast := suspend.NewHost(&timedAwaiter{readyAfter: time.Now(), v: value.Int(1)})
	loser := suspend.NewHost(&timedAwaiter{readyAfter: time.Now().Add(time.Hour), v: value.Int(99)})

	_, err := selectx.Resolve([]selectx.Arm{
		{Future: fast, Index: 0},
		{Future: loser, Index: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := loser.Poll(); err == nil {
		t.Fatal("expected the losing arm's future to have been cancelled")
	}
}
