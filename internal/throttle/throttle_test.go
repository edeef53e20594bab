package throttle

import (
	"testing"
	"time"
)

func TestShouldCalculate_NeverCalculated(t *testing.T) {
	thr := New(DefaultConfig())
	now := time.Now()

	if !thr.ShouldCalculate(1, 65, now) {
		t.Error("a match never calculated before must be eligible")
	}
}

func TestShouldCalculate_KeyMinuteBypassesCooldown(t *testing.T) {
	thr := New(DefaultConfig())
	now := time.Now()

	thr.RecordDispatch(1, now)

	// Inside the standard cooldown, but each key minute must pass regardless.
	for _, minute := range []int{59, 60, 69, 70, 79, 80} {
		if !thr.ShouldCalculate(1, minute, now.Add(time.Second)) {
			t.Errorf("key minute %d must bypass cooldown", minute)
		}
	}
}

func TestShouldCalculate_StandardCooldown(t *testing.T) {
	thr := New(DefaultConfig())
	now := time.Now()

	thr.RecordDispatch(1, now)

	tests := []struct {
		name    string
		minute  int
		elapsed time.Duration
		want    bool
	}{
		{"within cooldown", 61, 30 * time.Second, false},
		{"cooldown just elapsed", 61, 60 * time.Second, true},
		{"well past cooldown", 65, 2 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := thr.ShouldCalculate(1, tt.minute, now.Add(tt.elapsed))
			if got != tt.want {
				t.Errorf("ShouldCalculate(minute=%d, elapsed=%v) = %v, want %v",
					tt.minute, tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestShouldCalculate_LateGameCooldown(t *testing.T) {
	thr := New(DefaultConfig())
	now := time.Now()

	thr.RecordDispatch(1, now)

	// Minute 76 is past the late-game threshold (75) and not a key minute,
	// so the short 30s cooldown applies.
	if thr.ShouldCalculate(1, 76, now.Add(15*time.Second)) {
		t.Error("late-game match within short cooldown must not be eligible")
	}
	if !thr.ShouldCalculate(1, 76, now.Add(30*time.Second)) {
		t.Error("late-game match past short cooldown must be eligible")
	}
	// The same elapsed time is not enough for a mid-game minute.
	if thr.ShouldCalculate(1, 65, now.Add(30*time.Second)) {
		t.Error("mid-game match must still be under the standard cooldown")
	}
}

func TestShouldCalculate_PerMatchIsolation(t *testing.T) {
	thr := New(DefaultConfig())
	now := time.Now()

	thr.RecordDispatch(1, now)

	// Match 2 has no record; match 1's cooldown must not affect it.
	if !thr.ShouldCalculate(2, 65, now.Add(time.Second)) {
		t.Error("cooldown for one match must not gate another")
	}
}

func TestRecordDispatch_Monotonic(t *testing.T) {
	thr := New(DefaultConfig())
	now := time.Now()

	thr.RecordDispatch(1, now)
	thr.RecordDispatch(1, now.Add(-time.Hour)) // stale write must not regress

	got, ok := thr.LastCalculation(1)
	if !ok {
		t.Fatal("expected a record for match 1")
	}
	if !got.Equal(now) {
		t.Errorf("last calculation regressed to %v, want %v", got, now)
	}
}

func TestTryAcquireRelease(t *testing.T) {
	thr := New(DefaultConfig())

	if !thr.TryAcquire(1) {
		t.Fatal("first acquire must succeed")
	}
	if thr.TryAcquire(1) {
		t.Error("second acquire for the same match must fail while in flight")
	}
	if !thr.TryAcquire(2) {
		t.Error("acquire for a different match must succeed")
	}

	thr.Release(1)
	if !thr.TryAcquire(1) {
		t.Error("acquire after release must succeed")
	}
}

func TestExpireBefore(t *testing.T) {
	thr := New(DefaultConfig())
	now := time.Now()

	thr.RecordDispatch(1, now.Add(-48*time.Hour))
	thr.RecordDispatch(2, now.Add(-time.Minute))

	removed := thr.ExpireBefore(now.Add(-24 * time.Hour))
	if removed != 1 {
		t.Errorf("expected 1 expired record, got %d", removed)
	}
	if _, ok := thr.LastCalculation(1); ok {
		t.Error("expired record must be gone")
	}
	if _, ok := thr.LastCalculation(2); !ok {
		t.Error("fresh record must survive")
	}
}

func TestRestore(t *testing.T) {
	thr := New(DefaultConfig())
	now := time.Now()

	thr.RecordDispatch(1, now)
	thr.Restore(map[int64]time.Time{
		1: now.Add(-time.Hour), // must not regress the live record
		2: now.Add(-time.Minute),
	})

	if got, _ := thr.LastCalculation(1); !got.Equal(now) {
		t.Errorf("restore regressed match 1 to %v", got)
	}
	if _, ok := thr.LastCalculation(2); !ok {
		t.Error("restore must seed missing records")
	}
}
