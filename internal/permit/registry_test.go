package permit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegistryScheduleAndCancel(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	r.Schedule("1292", 42)

	if got := r.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
	if got := r.ActiveFolios(42); len(got) != 1 || got[0] != "1292" {
		t.Fatalf("ActiveFolios(42) = %v, want [1292]", got)
	}

	if !r.Cancel("1292") {
		t.Fatal("first Cancel returned false, want true")
	}
	if r.Cancel("1292") {
		t.Fatal("second Cancel returned true, want false")
	}
	if got := r.Count(); got != 0 {
		t.Fatalf("Count() after cancel = %d, want 0", got)
	}
	if got := r.ActiveFolios(42); len(got) != 0 {
		t.Fatalf("ActiveFolios(42) after cancel = %v, want empty", got)
	}
}

func TestRegistryCancelAbsentFolio(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	if r.Cancel("9999") {
		t.Fatal("Cancel on absent folio returned true")
	}
}

func TestRegistryInsertionOrder(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	r.Schedule("1292", 42)
	r.Schedule("1293", 42)
	r.Schedule("1300", 7)

	got := r.ActiveFolios(42)
	if len(got) != 2 || got[0] != "1292" || got[1] != "1293" {
		t.Fatalf("ActiveFolios(42) = %v, want [1292 1293]", got)
	}
	if got := r.ActiveFolios(7); len(got) != 1 || got[0] != "1300" {
		t.Fatalf("ActiveFolios(7) = %v, want [1300]", got)
	}
}

func TestRegistryExpiryFires(t *testing.T) {
	var fired atomic.Int32
	var gotFolio string
	var gotUser int64
	done := make(chan struct{})

	r := NewRegistry(20*time.Millisecond, func(folio string, userID int64) {
		gotFolio = folio
		gotUser = userID
		fired.Add(1)
		close(done)
	})
	r.Schedule("1292", 42)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback never fired")
	}
	if gotFolio != "1292" || gotUser != 42 {
		t.Fatalf("expiry callback got (%s, %d), want (1292, 42)", gotFolio, gotUser)
	}
	if got := r.Count(); got != 0 {
		t.Fatalf("Count() after expiry = %d, want 0", got)
	}
	if r.Cancel("1292") {
		t.Fatal("Cancel after expiry returned true")
	}
	if n := fired.Load(); n != 1 {
		t.Fatalf("expiry fired %d times, want 1", n)
	}
}

func TestRegistryCancelBeatsDeadline(t *testing.T) {
	var fired atomic.Int32
	r := NewRegistry(30*time.Millisecond, func(string, int64) { fired.Add(1) })
	r.Schedule("1292", 42)

	if !r.Cancel("1292") {
		t.Fatal("Cancel returned false")
	}
	time.Sleep(100 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Fatalf("expiry fired %d times after cancel, want 0", n)
	}
}

func TestRegistryDoubleFireClaimsOnce(t *testing.T) {
	var fired atomic.Int32
	r := NewRegistry(time.Hour, func(string, int64) { fired.Add(1) })
	r.Schedule("1292", 42)

	gen := r.entries["1292"].gen

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.fire("1292", gen)
		}()
	}
	wg.Wait()

	if n := fired.Load(); n != 1 {
		t.Fatalf("expiry fired %d times under concurrent invocation, want 1", n)
	}
	if got := r.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0", got)
	}
}

func TestRegistryStaleGenerationIgnored(t *testing.T) {
	var fired atomic.Int32
	r := NewRegistry(time.Hour, func(string, int64) { fired.Add(1) })
	r.Schedule("1292", 42)
	stale := r.entries["1292"].gen

	r.Cancel("1292")
	r.Schedule("1292", 42)

	r.fire("1292", stale)
	if n := fired.Load(); n != 0 {
		t.Fatalf("stale fire ran the callback %d times, want 0", n)
	}
	if got := r.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1 (fresh entry must survive)", got)
	}
}

func TestRegistryStopClearsEverything(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	r.Schedule("1292", 42)
	r.Schedule("1293", 7)
	r.Stop()
	if got := r.Count(); got != 0 {
		t.Fatalf("Count() after Stop = %d, want 0", got)
	}
	if got := r.ActiveFolios(42); len(got) != 0 {
		t.Fatalf("ActiveFolios after Stop = %v, want empty", got)
	}
}
