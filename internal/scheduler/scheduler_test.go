package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codr1/Shuttlers/internal/availability"
)

type fakePoller struct {
	ran chan struct{}
}

func (f *fakePoller) Run(context.Context) (availability.RunResult, error) {
	f.ran <- struct{}{}
	return availability.RunResult{Participants: 1, Created: 1}, nil
}

type fakeMarker struct {
	err error
}

func (f fakeMarker) MarkOverduePayments(context.Context) (int64, error) { return 0, f.err }

func newTestScheduler(t *testing.T) *Service {
	t.Helper()
	s, err := New(time.UTC)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func statusOf(s *Service, name string) (JobStatus, bool) {
	for _, st := range s.Status() {
		if st.Name == name {
			return st, true
		}
	}
	return JobStatus{}, false
}

func TestAddValidation(t *testing.T) {
	s := newTestScheduler(t)
	task := func(context.Context) error { return nil }

	if err := s.Add(Job{Name: " ", Cron: "* * * * *", Task: task}); !errors.Is(err, ErrEmptyJobName) {
		t.Fatalf("expected ErrEmptyJobName, got %v", err)
	}
	if err := s.Add(Job{Name: "job", Task: task}); !errors.Is(err, ErrEmptyCronExpr) {
		t.Fatalf("expected ErrEmptyCronExpr, got %v", err)
	}
	if err := s.Add(Job{Name: "job", Cron: "not a cron", Task: task}); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	if err := s.Add(Job{Name: "job", Cron: "* * * * *"}); err == nil {
		t.Fatal("expected error without a task")
	}
	if err := s.Add(Job{Name: "job", Cron: "* * * * *", Task: task}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(Job{Name: "job", Cron: "0 * * * *", Task: task}); !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}

	var nilService *Service
	if err := nilService.Add(Job{Name: "job", Cron: "* * * * *", Task: task}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestRegisterJobs(t *testing.T) {
	s := newTestScheduler(t)
	poller := &fakePoller{ran: make(chan struct{}, 1)}

	if err := RegisterAvailabilityJob(s, poller, "0 10 * * 3"); err != nil {
		t.Fatalf("register availability job: %v", err)
	}
	if err := RegisterOverdueJob(s, fakeMarker{}, "30 0 * * *"); err != nil {
		t.Fatalf("register overdue job: %v", err)
	}
	if err := RegisterAvailabilityJob(s, nil, "0 10 * * 3"); err == nil {
		t.Fatal("expected error without a poller")
	}

	statuses := s.Status()
	if len(statuses) != 2 || statuses[0].Name != AvailabilityPollJob || statuses[1].Name != OverduePaymentsJob {
		t.Fatalf("expected both jobs sorted by name, got %+v", statuses)
	}

	s.Start()
	if err := s.RunNow(AvailabilityPollJob); err != nil {
		t.Fatalf("run now: %v", err)
	}
	select {
	case <-poller.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("availability job did not run")
	}
	waitFor(t, func() bool {
		st, _ := statusOf(s, AvailabilityPollJob)
		return st.Runs == 1 && !st.Running
	})
	if st, _ := statusOf(s, AvailabilityPollJob); st.NextRun == nil || st.LastError != "" {
		t.Fatalf("unexpected status after run: %+v", st)
	}

	if err := s.RunNow("missing"); err == nil {
		t.Fatal("expected error for an unknown job")
	}
}

func TestStatusRecordsFailures(t *testing.T) {
	s := newTestScheduler(t)
	if err := RegisterOverdueJob(s, fakeMarker{err: errors.New("database is locked")}, "30 0 * * *"); err != nil {
		t.Fatalf("register overdue job: %v", err)
	}
	s.Start()
	if err := s.RunNow(OverduePaymentsJob); err != nil {
		t.Fatalf("run now: %v", err)
	}
	waitFor(t, func() bool {
		st, _ := statusOf(s, OverduePaymentsJob)
		return st.Failures == 1
	})
	st, _ := statusOf(s, OverduePaymentsJob)
	if st.Runs != 1 || st.LastError == "" {
		t.Fatalf("expected the failure recorded, got %+v", st)
	}
}
