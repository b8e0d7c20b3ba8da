package service_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/queue"
	"github.com/erkinov-wtf/rmbot-sub002/internal/rules"
	"github.com/erkinov-wtf/rmbot-sub002/internal/service"
	"github.com/erkinov-wtf/rmbot-sub002/pkg/ident"
)

var _ = Describe("AutomationService", func() {
	var (
		ctx      context.Context
		repos    *mockRepos
		snap     *rules.Snapshot
		producer *mockProducer
		svc      *service.AutomationService
		clock    time.Time
		eventLog []domain.AutomationEvent
	)

	openIncidentSince := func(startedAt time.Time) {
		repos.stockouts.getOpenFn = func(_ context.Context) (*domain.StockoutIncident, error) {
			return &domain.StockoutIncident{ID: "inc-1", StartedAt: startedAt}, nil
		}
	}

	eventsFor := func(rule domain.RuleKey) []domain.AutomationEvent {
		var out []domain.AutomationEvent
		for _, ev := range eventLog {
			if ev.Rule == rule {
				out = append(out, ev)
			}
		}
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		repos = newMockRepos()
		snap = testSnapshot()
		producer = &mockProducer{}
		clock = baseTime
		eventLog = nil

		// the event log backs both appends and latest-per-rule reads, the
		// way the append-only table does
		repos.automationEvents.createFn = func(_ context.Context, ev *domain.AutomationEvent) error {
			ev.CreatedAt = clock
			eventLog = append(eventLog, *ev)
			return nil
		}
		repos.automationEvents.latestByRuleFn = func(_ context.Context, rule domain.RuleKey) (*domain.AutomationEvent, error) {
			for i := len(eventLog) - 1; i >= 0; i-- {
				if eventLog[i].Rule == rule {
					ev := eventLog[i]
					return &ev, nil
				}
			}
			return nil, pgx.ErrNoRows
		}

		svc = service.NewAutomationService(service.AutomationDependencies{
			Repos:    repos,
			Rules:    &stubRules{snapshot: snap},
			Producer: producer,
			Logger:   zap.NewNop(),
		})
		Expect(ident.Init(1)).To(Succeed())
	})

	It("triggers when an open stockout breaches its threshold", func() {
		openIncidentSince(clock.Add(-35 * time.Minute))

		result, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Enabled).To(BeTrue())
		Expect(result.Metrics).To(HaveLen(3))

		Expect(result.Events).To(HaveLen(1))
		Expect(result.Events[0].Rule).To(Equal(domain.RuleStockoutDuration))
		Expect(result.Events[0].Kind).To(Equal(domain.EventTriggered))
		Expect(result.Events[0].Value).To(BeNumerically("~", 35, 0.01))
		Expect(result.Events[0].Threshold).To(Equal(30.0))

		Expect(producer.messages).To(HaveLen(1))
		Expect(producer.messages[0].EventID).To(Equal(result.Events[0].ID))
		Expect(producer.messages[0].Channels).To(Equal([]string{"telegram", "webhook"}))
	})

	It("stays quiet below the threshold", func() {
		openIncidentSince(clock.Add(-10 * time.Minute))

		result, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Events).To(BeEmpty())
		Expect(producer.messages).To(BeEmpty())
	})

	It("holds the alert open without re-sending inside the cooldown", func() {
		openIncidentSince(clock.Add(-35 * time.Minute))

		_, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())

		clock = clock.Add(10 * time.Minute)
		result, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Events).To(BeEmpty())
		Expect(eventsFor(domain.RuleStockoutDuration)).To(HaveLen(1))
	})

	It("reminds once the cooldown has elapsed", func() {
		openIncidentSince(clock.Add(-35 * time.Minute))

		_, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())

		clock = clock.Add(60 * time.Minute)
		result, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Events).To(HaveLen(1))
		Expect(result.Events[0].Kind).To(Equal(domain.EventReminder))
		Expect(producer.messages).To(HaveLen(2))
	})

	It("resolves exactly once when the breach clears", func() {
		openIncidentSince(clock.Add(-35 * time.Minute))
		_, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())

		// incident closed, stockout reading drops to zero
		repos.stockouts.getOpenFn = nil

		clock = clock.Add(5 * time.Minute)
		result, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Events).To(HaveLen(1))
		Expect(result.Events[0].Kind).To(Equal(domain.EventResolved))

		clock = clock.Add(5 * time.Minute)
		result, err = svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Events).To(BeEmpty())

		kinds := eventsFor(domain.RuleStockoutDuration)
		Expect(kinds).To(HaveLen(2))
		Expect(kinds[0].Kind).To(Equal(domain.EventTriggered))
		Expect(kinds[1].Kind).To(Equal(domain.EventResolved))
	})

	It("re-triggers a fresh alert after a resolve", func() {
		openIncidentSince(clock.Add(-35 * time.Minute))
		_, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())

		repos.stockouts.getOpenFn = nil
		clock = clock.Add(5 * time.Minute)
		_, err = svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())

		openIncidentSince(clock.Add(-31 * time.Minute))
		clock = clock.Add(5 * time.Minute)
		result, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Events).To(HaveLen(1))
		Expect(result.Events[0].Kind).To(Equal(domain.EventTriggered))
	})

	It("measures backlog pressure across the waiting statuses", func() {
		var counted []domain.TicketStatus
		repos.tickets.countByStatusesFn = func(_ context.Context, statuses []domain.TicketStatus) (int, error) {
			counted = statuses
			return 12, nil
		}

		result, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())
		Expect(counted).To(Equal([]domain.TicketStatus{
			domain.TicketStatusUnderReview,
			domain.TicketStatusNew,
			domain.TicketStatusAssigned,
			domain.TicketStatusRework,
		}))

		Expect(result.Events).To(HaveLen(1))
		Expect(result.Events[0].Rule).To(Equal(domain.RuleBacklogPressure))
		Expect(result.Events[0].Value).To(Equal(12.0))
		// no explicit route configured: falls back to the default channels
		Expect(producer.messages).To(HaveLen(1))
		Expect(producer.messages[0].Channels).To(Equal([]string{"telegram"}))
	})

	It("holds qc pass rate alerts below the sample floor", func() {
		repos.ticketTransitions.countActionsSinceFn = func(_ context.Context, _ time.Time) (map[domain.WorkflowAction]int, error) {
			return map[domain.WorkflowAction]int{
				domain.ActionQCPass: 1,
				domain.ActionQCFail: 2,
			}, nil
		}

		result, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Events).To(BeEmpty())
	})

	It("triggers on a low qc pass rate with enough samples", func() {
		var since time.Time
		repos.ticketTransitions.countActionsSinceFn = func(_ context.Context, s time.Time) (map[domain.WorkflowAction]int, error) {
			since = s
			return map[domain.WorkflowAction]int{
				domain.ActionQCPass: 2,
				domain.ActionQCFail: 3,
			}, nil
		}

		result, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())
		Expect(since).To(Equal(clock.Add(-24 * time.Hour)))

		Expect(result.Events).To(HaveLen(1))
		Expect(result.Events[0].Rule).To(Equal(domain.RuleQCPassRate))
		Expect(result.Events[0].Kind).To(Equal(domain.EventTriggered))
		Expect(result.Events[0].Value).To(BeNumerically("~", 0.4, 0.001))
	})

	It("treats an empty qc window as a perfect rate", func() {
		result, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())

		for _, metric := range result.Metrics {
			if metric.Rule == domain.RuleQCPassRate {
				Expect(metric.Value).To(Equal(1.0))
				Expect(metric.Breach).To(BeFalse())
			}
		}
		Expect(result.Events).To(BeEmpty())
	})

	It("computes metrics without emitting when automation is disabled", func() {
		snap.Config.SLA.Enabled = false
		openIncidentSince(clock.Add(-120 * time.Minute))

		result, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Enabled).To(BeFalse())
		Expect(result.Metrics).To(HaveLen(3))
		Expect(result.Metrics[0].Breach).To(BeTrue())
		Expect(result.Events).To(BeEmpty())
		Expect(repos.automationEvents.createCalls).To(BeZero())
		Expect(producer.messages).To(BeEmpty())
	})

	It("keeps the event when the enqueue fails", func() {
		openIncidentSince(clock.Add(-35 * time.Minute))
		producer.enqueueFn = func(_ context.Context, _ queue.DeliveryMessage) error {
			return errors.New("stream down")
		}

		result, err := svc.Evaluate(ctx, clock)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Events).To(HaveLen(1))
		Expect(eventLog).To(HaveLen(1))
	})
})
