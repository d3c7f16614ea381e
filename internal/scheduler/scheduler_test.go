package scheduler

import (
	"sync"
	"testing"
	"time"
)

func TestSchedule_FiresOnceAfterDelay(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	fired := make(chan struct{}, 1)
	s.Schedule(10*time.Millisecond, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled fire did not happen in time")
	}
}

func TestSchedule_CancelPreventsFire(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var mu sync.Mutex
	fired := false
	cancel := s.Schedule(20*time.Millisecond, func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	cancel()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Fatal("expected cancelled schedule not to fire")
	}
}

func TestCron_AcceptsStandardFiveFieldExpression(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	if err := s.Cron("*/1 * * * *", "job-1", func() {}); err != nil {
		t.Fatalf("Cron: %v", err)
	}
	if _, ok := s.jobs["job-1"]; !ok {
		t.Fatal("expected job-1 to be tracked after registration")
	}
}

func TestCron_RejectsInvalidExpression(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	if err := s.Cron("not a cron expr", "bad", func() {}); err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
}

func TestCron_ReplacingSameJobIDCancelsThePrevious(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	if err := s.Cron("0 0 1 1 *", "job-1", func() {}); err != nil {
		t.Fatalf("Cron: %v", err)
	}
	if err := s.Cron("0 0 1 1 *", "job-1", func() {}); err != nil {
		t.Fatalf("Cron (replace): %v", err)
	}
	if len(s.jobs) != 1 {
		t.Fatalf("expected exactly one tracked job after replace, got %d", len(s.jobs))
	}
}

func TestCronCancel_RemovesJob(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	if err := s.Cron("0 0 1 1 *", "job-1", func() {}); err != nil {
		t.Fatalf("Cron: %v", err)
	}
	if err := s.CronCancel("job-1"); err != nil {
		t.Fatalf("CronCancel: %v", err)
	}
	if _, ok := s.jobs["job-1"]; ok {
		t.Fatal("expected job-1 to be untracked after CronCancel")
	}
}

func TestCronCancel_UnknownJobIDIsNotAnError(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	if err := s.CronCancel("never-registered"); err != nil {
		t.Fatalf("CronCancel on unknown job: %v", err)
	}
}
