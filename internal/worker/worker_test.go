package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/covenant/internal/analysis"
	"github.com/opensource-finance/covenant/internal/bus"
	"github.com/opensource-finance/covenant/internal/domain"
)

const riskyVendorContract = `1. Liability
The Vendor accepts unlimited liability and shall indemnify the Buyer.

2. Damages
The Vendor is liable for all damages and shall hold harmless the Buyer.

3. Remedies
The Vendor accepts unlimited liability and a penalty for delay.`

const plainServiceContract = `1. Services
The Provider delivers monthly reports.

2. Fees
The Client pays the agreed fee within thirty days.

3. Notices
Notices are sent by email.`

func newAnalyzer() *analysis.Analyzer {
	return analysis.New(domain.DefaultEngineConfig(), nil, nil)
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, newAnalyzer())

		if err := w.Start(Config{TenantIDs: []string{"tenant-001"}}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}
		if stats.Topics[0] != domain.TopicDocumentSubmitted {
			t.Errorf("expected topic %s, got %s", domain.TopicDocumentSubmitted, stats.Topics[0])
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessSubmission", func(t *testing.T) {
		w := NewWorker(eventBus, newAnalyzer())
		w.Start(Config{TenantIDs: []string{"tenant-test"}})
		defer w.Stop()

		completed := make(chan domain.CompletionEvent, 1)
		var alerted atomic.Bool

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicAnalysisCompleted, func(ctx context.Context, msg *domain.Message) error {
			var ev domain.CompletionEvent
			if err := bus.DecodeEvent(msg, &ev); err != nil {
				return err
			}
			completed <- ev
			return nil
		})
		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicRiskAlert, func(ctx context.Context, msg *domain.Message) error {
			alerted.Store(true)
			return nil
		})

		err := bus.PublishEvent(context.Background(), eventBus, "tenant-test", domain.TopicDocumentSubmitted, domain.SubmissionEvent{
			Name:         "services.txt",
			Text:         plainServiceContract,
			ContractType: domain.ContractService,
			TraceID:      "trace-001",
		})
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		select {
		case ev := <-completed:
			if ev.Level != domain.SeverityLow {
				t.Errorf("expected Low, got %s", ev.Level)
			}
			if ev.ClauseCount != 3 {
				t.Errorf("expected 3 clauses, got %d", ev.ClauseCount)
			}
			if ev.TraceID != "trace-001" {
				t.Errorf("expected traceID 'trace-001', got '%s'", ev.TraceID)
			}
			if ev.AnalysisID == "" || ev.RuleSetDigest == "" {
				t.Errorf("expected analysis id and digest, got %+v", ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for completion")
		}

		time.Sleep(50 * time.Millisecond)
		if alerted.Load() {
			t.Error("low risk document should not raise an alert")
		}
		if w.GetStats().Processed != 1 {
			t.Errorf("expected 1 processed, got %d", w.GetStats().Processed)
		}
	})

	t.Run("AlertPublished", func(t *testing.T) {
		w := NewWorker(eventBus, newAnalyzer())
		w.Start(Config{TenantIDs: []string{"tenant-alert"}})
		defer w.Stop()

		alerts := make(chan domain.AlertEvent, 1)
		eventBus.Subscribe(context.Background(), "tenant-alert", domain.TopicRiskAlert, func(ctx context.Context, msg *domain.Message) error {
			var ev domain.AlertEvent
			if err := bus.DecodeEvent(msg, &ev); err != nil {
				return err
			}
			alerts <- ev
			return nil
		})

		bus.PublishEvent(context.Background(), eventBus, "tenant-alert", domain.TopicDocumentSubmitted, domain.SubmissionEvent{
			Name:         "vendor.txt",
			Text:         riskyVendorContract,
			ContractType: domain.ContractVendor,
		})

		select {
		case ev := <-alerts:
			if ev.Level != domain.SeverityHigh {
				t.Errorf("expected High, got %s", ev.Level)
			}
			if !ev.Escalated {
				t.Error("three high risk clauses should escalate")
			}
			if len(ev.HighRiskClauses) != 3 {
				t.Errorf("expected 3 high risk clauses, got %d", len(ev.HighRiskClauses))
			}
			if len(ev.Mitigations) == 0 {
				t.Error("expected mitigations on the alert")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("expected alert to be published for high-risk document")
		}
	})

	t.Run("MalformedSubmission", func(t *testing.T) {
		w := NewWorker(eventBus, newAnalyzer())
		w.Start(Config{TenantIDs: []string{"tenant-bad"}})
		defer w.Stop()

		eventBus.Publish(context.Background(), "tenant-bad", domain.TopicDocumentSubmitted, []byte("{not json"))
		time.Sleep(100 * time.Millisecond)

		if w.GetStats().Failed != 1 {
			t.Errorf("expected 1 failed message, got %d", w.GetStats().Failed)
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, newAnalyzer())
		w.Start(Config{TenantIDs: []string{"tenant-a", "tenant-b"}})
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("GlobalWorker", func(t *testing.T) {
		w := NewWorker(eventBus, newAnalyzer())
		w.Start(Config{})
		defer w.Stop()

		completed := make(chan string, 1)
		eventBus.Subscribe(context.Background(), "tenant-any", domain.TopicAnalysisCompleted, func(ctx context.Context, msg *domain.Message) error {
			completed <- msg.TenantID
			return nil
		})

		bus.PublishEvent(context.Background(), eventBus, "tenant-any", domain.TopicDocumentSubmitted, domain.SubmissionEvent{
			Name:         "services.txt",
			Text:         plainServiceContract,
			ContractType: domain.ContractService,
		})

		select {
		case tenant := <-completed:
			if tenant != "tenant-any" {
				t.Errorf("expected result on tenant-any, got %s", tenant)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for wildcard worker")
		}
	})
}

func TestCompletionEventWithoutResult(t *testing.T) {
	ev := CompletionEvent(&domain.Analysis{ID: "a1", DocumentID: "d1"})
	if ev.Level != domain.SeverityLow || ev.Score != 0 {
		t.Errorf("expected empty analysis to summarize as Low/0, got %+v", ev)
	}

	alert := AlertEvent(&domain.Analysis{ID: "a1"})
	if alert.HighRiskClauses == nil || alert.KeyRiskAreas == nil {
		t.Error("alert slices should be empty, not nil")
	}
}
