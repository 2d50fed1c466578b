package model

import (
	"testing"
	"time"
)

func TestSummary(t *testing.T) {
	t.Parallel()

	t.Run("new summary is empty", func(t *testing.T) {
		t.Parallel()

		s := NewSummary("https://example.com", 5, true)
		if s.PagesVisited != 0 || len(s.Visited) != 0 || len(s.Saved) != 0 {
			t.Errorf("expected empty summary, got %+v", s)
		}
		if !s.DryRun {
			t.Error("expected dry run to be recorded")
		}
		if s.HasFailures() {
			t.Error("expected no failures")
		}
		if s.Duration() != 0 {
			t.Errorf("expected zero duration before finish, got %v", s.Duration())
		}
	})

	t.Run("counts failures by kind", func(t *testing.T) {
		t.Parallel()

		s := NewSummary("https://example.com", 5, false)
		s.Failures = append(s.Failures,
			Failure{URL: "a", Kind: FailureFetch},
			Failure{URL: "b", Kind: FailureFetch},
			Failure{URL: "c", Kind: FailureParse},
		)
		if got := s.FailureCount(FailureFetch); got != 2 {
			t.Errorf("expected 2 fetch failures, got %d", got)
		}
		if got := s.FailureCount(FailureParse); got != 1 {
			t.Errorf("expected 1 parse failure, got %d", got)
		}
		if got := s.FailureCount(FailurePersistence); got != 0 {
			t.Errorf("expected 0 persistence failures, got %d", got)
		}
	})

	t.Run("duration", func(t *testing.T) {
		t.Parallel()

		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		s := &Summary{StartedAt: start, FinishedAt: start.Add(3 * time.Second)}
		if s.Duration() != 3*time.Second {
			t.Errorf("expected 3s, got %v", s.Duration())
		}
	})
}
