package service_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/events"
	"github.com/erkinov-wtf/rmbot-sub002/internal/rules"
	"github.com/erkinov-wtf/rmbot-sub002/internal/service"
	"github.com/erkinov-wtf/rmbot-sub002/pkg/ident"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

func strPtr(s string) *string { return &s }

var _ = Describe("WorkflowService", func() {
	var (
		ctx         context.Context
		repos       *mockRepos
		dispatcher  events.Dispatcher
		snap        *rules.Snapshot
		svc         *service.WorkflowService
		clock       time.Time
		transitions []domain.TicketTransition
		published   []events.Event
	)

	stageTicket := func(ticket *domain.Ticket) {
		fetch := func(_ context.Context, id string) (*domain.Ticket, error) {
			if id != ticket.ID {
				return nil, pgx.ErrNoRows
			}
			cp := *ticket
			return &cp, nil
		}
		repos.tickets.getByIDFn = fetch
		repos.tickets.getByIDForUpdateFn = fetch
	}

	readyItem := func(id string) {
		repos.inventory.getByIDFn = func(_ context.Context, got string) (*domain.InventoryItem, error) {
			if got != id {
				return nil, pgx.ErrNoRows
			}
			return &domain.InventoryItem{ID: id, Label: "unit", State: domain.InventoryStateReady}, nil
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		repos = newMockRepos()
		dispatcher = events.NewInMemoryDispatcher()
		snap = testSnapshot()
		clock = baseTime
		transitions = nil
		published = nil

		repos.ticketTransitions.createFn = func(_ context.Context, tr *domain.TicketTransition) error {
			tr.CreatedAt = clock
			transitions = append(transitions, *tr)
			return nil
		}
		for _, eventType := range []events.EventType{
			events.EventTicketCreated,
			events.EventTicketApproved,
			events.EventTicketAssigned,
			events.EventTicketStarted,
			events.EventTicketWaiting,
			events.EventTicketQCPassed,
			events.EventTicketQCFailed,
		} {
			dispatcher.Subscribe(eventType, func(_ context.Context, ev events.Event) error {
				published = append(published, ev)
				return nil
			})
		}

		svc = service.NewWorkflowService(service.WorkflowDependencies{
			Tx:         &mockTxRunner{repos: repos},
			Repos:      repos,
			Rules:      &stubRules{snapshot: snap},
			Dispatcher: dispatcher,
			Logger:     zap.NewNop(),
			Now:        func() time.Time { return clock },
		})
		Expect(ident.Init(1)).To(Succeed())
	})

	Context("intake", func() {
		It("creates a ticket under review with derived metrics", func() {
			readyItem("itm-1")

			ticket, err := svc.CreateTicket(ctx, "admin-1", service.TicketCreateInput{
				InventoryItemID: "itm-1",
				Note:            "screen cracked",
				Parts: []service.TicketPartInput{
					{PartName: "display", Severity: domain.SeverityRed, EstimatedMinutes: 90},
					{PartName: "battery", Severity: domain.SeverityYellow, EstimatedMinutes: 30},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ticket.Status).To(Equal(domain.TicketStatusUnderReview))
			Expect(ticket.TotalDuration).To(Equal(120))
			Expect(ticket.FlagColor).To(Equal(domain.SeverityRed))
			Expect(ticket.XPAmount).To(Equal(40))
			Expect(ticket.IsManual).To(BeFalse())
			Expect(ticket.Parts).To(HaveLen(2))

			Expect(transitions).To(HaveLen(1))
			Expect(transitions[0].Action).To(Equal(domain.ActionCreate))
			Expect(transitions[0].ToStatus).To(Equal(domain.TicketStatusUnderReview))

			Expect(published).To(HaveLen(1))
			Expect(published[0].Type).To(Equal(events.EventTicketCreated))
			payload, ok := published[0].Payload.(events.TicketCreatedPayload)
			Expect(ok).To(BeTrue())
			Expect(payload.PartCount).To(Equal(2))
		})

		It("honors manual metric overrides", func() {
			readyItem("itm-1")

			ticket, err := svc.CreateTicket(ctx, "admin-1", service.TicketCreateInput{
				InventoryItemID: "itm-1",
				Parts: []service.TicketPartInput{
					{PartName: "fan", Severity: domain.SeverityGreen, EstimatedMinutes: 15},
				},
				Manual: &service.ManualMetrics{TotalDuration: 45, FlagColor: domain.SeverityYellow, XPAmount: 99},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ticket.IsManual).To(BeTrue())
			Expect(ticket.TotalDuration).To(Equal(45))
			Expect(ticket.FlagColor).To(Equal(domain.SeverityYellow))
			Expect(ticket.XPAmount).To(Equal(99))
		})

		It("rejects intake on a retired item", func() {
			repos.inventory.getByIDFn = func(_ context.Context, id string) (*domain.InventoryItem, error) {
				return &domain.InventoryItem{ID: id, State: domain.InventoryStateRetired}, nil
			}

			_, err := svc.CreateTicket(ctx, "admin-1", service.TicketCreateInput{
				InventoryItemID: "itm-1",
				Parts: []service.TicketPartInput{
					{PartName: "fan", Severity: domain.SeverityGreen, EstimatedMinutes: 15},
				},
			})
			Expect(apperrors.IsCode(err, apperrors.CodeValidation)).To(BeTrue())
			Expect(repos.tickets.createCalls).To(BeZero())
			Expect(published).To(BeEmpty())
		})

		It("rejects part specs without a positive estimate", func() {
			_, err := svc.CreateTicket(ctx, "admin-1", service.TicketCreateInput{
				InventoryItemID: "itm-1",
				Parts: []service.TicketPartInput{
					{PartName: "fan", Severity: domain.SeverityGreen, EstimatedMinutes: 0},
				},
			})
			Expect(apperrors.IsCode(err, apperrors.CodeValidation)).To(BeTrue())
		})

		It("requires an actor", func() {
			_, err := svc.CreateTicket(ctx, "  ", service.TicketCreateInput{InventoryItemID: "itm-1"})
			Expect(apperrors.IsCode(err, apperrors.CodeValidation)).To(BeTrue())
		})
	})

	Context("review approval", func() {
		It("approves an intake and stamps the reviewer", func() {
			stageTicket(&domain.Ticket{ID: "tic-1", InventoryItemID: "itm-1", Status: domain.TicketStatusUnderReview})

			ticket, err := svc.ApproveReview(ctx, "tic-1", "lead-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ticket.Status).To(Equal(domain.TicketStatusNew))
			Expect(*ticket.ApprovedBy).To(Equal("lead-1"))
			Expect(*ticket.ApprovedAt).To(Equal(clock))
			Expect(repos.tickets.updateCalls).To(Equal(1))
			Expect(transitions).To(HaveLen(1))
			Expect(transitions[0].Action).To(Equal(domain.ActionApproveReview))
		})

		It("rejects approval from any status but review", func() {
			stageTicket(&domain.Ticket{ID: "tic-1", Status: domain.TicketStatusDone})

			_, err := svc.ApproveReview(ctx, "tic-1", "lead-1")
			Expect(apperrors.IsCode(err, apperrors.CodeInvalidTransition)).To(BeTrue())
			Expect(repos.tickets.updateCalls).To(BeZero())
			Expect(transitions).To(BeEmpty())
			Expect(published).To(BeEmpty())
		})

		It("maps a missing ticket to not found", func() {
			_, err := svc.ApproveReview(ctx, "missing", "lead-1")
			Expect(apperrors.IsCode(err, apperrors.CodeNotFound)).To(BeTrue())
		})
	})

	Context("assignment", func() {
		It("assigns a reviewed ticket to an active technician", func() {
			stageTicket(&domain.Ticket{ID: "tic-1", Status: domain.TicketStatusNew, ApprovedBy: strPtr("lead-1")})
			repos.technicians.getByIDFn = func(_ context.Context, id string) (*domain.Technician, error) {
				return &domain.Technician{ID: id, Name: "Dana", Role: domain.RoleTechnician, Active: true}, nil
			}

			ticket, err := svc.Assign(ctx, "tic-1", "tech-1", "lead-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ticket.Status).To(Equal(domain.TicketStatusAssigned))
			Expect(*ticket.TechnicianID).To(Equal("tech-1"))
			Expect(ticket.AssignedAt).NotTo(BeNil())
			Expect(transitions).To(HaveLen(1))
			Expect(transitions[0].Metadata).To(HaveKeyWithValue("technician_id", "tech-1"))
		})

		It("refuses a ticket that never passed review", func() {
			stageTicket(&domain.Ticket{ID: "tic-1", Status: domain.TicketStatusNew})

			_, err := svc.Assign(ctx, "tic-1", "tech-1", "lead-1")
			Expect(apperrors.IsCode(err, apperrors.CodeValidation)).To(BeTrue())
			Expect(repos.tickets.updateCalls).To(BeZero())
		})

		It("refuses an inactive technician", func() {
			stageTicket(&domain.Ticket{ID: "tic-1", Status: domain.TicketStatusNew, ApprovedBy: strPtr("lead-1")})
			repos.technicians.getByIDFn = func(_ context.Context, id string) (*domain.Technician, error) {
				return &domain.Technician{ID: id, Active: false}, nil
			}

			_, err := svc.Assign(ctx, "tic-1", "tech-1", "lead-1")
			Expect(apperrors.IsCode(err, apperrors.CodeValidation)).To(BeTrue())
			Expect(transitions).To(BeEmpty())
		})
	})

	Context("starting work", func() {
		It("moves the item into service and opens a running session", func() {
			stageTicket(&domain.Ticket{
				ID:              "tic-1",
				InventoryItemID: "itm-1",
				Status:          domain.TicketStatusAssigned,
				TechnicianID:    strPtr("tech-1"),
			})
			var movedTo domain.InventoryState
			repos.inventory.updateStateFn = func(_ context.Context, id string, state domain.InventoryState) error {
				Expect(id).To(Equal("itm-1"))
				movedTo = state
				return nil
			}
			var opened *domain.WorkSession
			repos.sessions.createFn = func(_ context.Context, s *domain.WorkSession) error {
				cp := *s
				opened = &cp
				return nil
			}

			ticket, err := svc.Start(ctx, "tic-1", "tech-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ticket.Status).To(Equal(domain.TicketStatusInProgress))
			Expect(ticket.StartedAt).NotTo(BeNil())
			Expect(movedTo).To(Equal(domain.InventoryStateInService))

			Expect(opened).NotTo(BeNil())
			Expect(opened.TicketID).To(Equal("tic-1"))
			Expect(opened.TechnicianID).To(Equal("tech-1"))
			Expect(opened.Status).To(Equal(domain.SessionStatusRunning))
			Expect(repos.sessionTransitions.createCalls).To(Equal(1))

			Expect(transitions).To(HaveLen(1))
			Expect(transitions[0].Metadata).To(HaveKeyWithValue("session_id", opened.ID))
		})

		It("conflicts while the technician works another ticket", func() {
			stageTicket(&domain.Ticket{
				ID:           "tic-1",
				Status:       domain.TicketStatusAssigned,
				TechnicianID: strPtr("tech-1"),
			})
			repos.sessions.getOpenByTechnicianFn = func(_ context.Context, technicianID string) (*domain.WorkSession, error) {
				return &domain.WorkSession{ID: "ws-0", TechnicianID: technicianID, Status: domain.SessionStatusRunning}, nil
			}

			_, err := svc.Start(ctx, "tic-1", "tech-1")
			Expect(apperrors.IsCode(err, apperrors.CodeConflict)).To(BeTrue())
			Expect(repos.tickets.updateCalls).To(BeZero())
			Expect(repos.sessions.createCalls).To(BeZero())
		})

		It("restarts rework without resetting the first start time", func() {
			started := baseTime.Add(-24 * time.Hour)
			stageTicket(&domain.Ticket{
				ID:           "tic-1",
				Status:       domain.TicketStatusRework,
				TechnicianID: strPtr("tech-1"),
				StartedAt:    &started,
			})

			ticket, err := svc.Start(ctx, "tic-1", "tech-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ticket.Status).To(Equal(domain.TicketStatusInProgress))
			Expect(*ticket.StartedAt).To(Equal(started))
		})
	})

	Context("waiting for qc", func() {
		It("parks a repaired ticket for inspection", func() {
			stageTicket(&domain.Ticket{ID: "tic-1", Status: domain.TicketStatusInProgress, TechnicianID: strPtr("tech-1")})

			ticket, err := svc.MoveToWaitingQC(ctx, "tic-1", "tech-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ticket.Status).To(Equal(domain.TicketStatusWaitingQC))
		})

		It("refuses while the work session is still open", func() {
			stageTicket(&domain.Ticket{ID: "tic-1", Status: domain.TicketStatusInProgress, TechnicianID: strPtr("tech-1")})
			repos.sessions.getOpenByTicketFn = func(_ context.Context, ticketID string) (*domain.WorkSession, error) {
				return &domain.WorkSession{ID: "ws-1", TicketID: ticketID, Status: domain.SessionStatusRunning}, nil
			}

			_, err := svc.MoveToWaitingQC(ctx, "tic-1", "tech-1")
			Expect(apperrors.IsCode(err, apperrors.CodeValidation)).To(BeTrue())
			Expect(transitions).To(BeEmpty())
		})
	})

	Context("qc pass", func() {
		var entries []domain.XPEntry

		BeforeEach(func() {
			entries = nil
			repos.xp.createFn = func(_ context.Context, e *domain.XPEntry) (bool, error) {
				entries = append(entries, *e)
				return true, nil
			}
			stageTicket(&domain.Ticket{
				ID:              "tic-1",
				InventoryItemID: "itm-1",
				Status:          domain.TicketStatusWaitingQC,
				TechnicianID:    strPtr("tech-1"),
				TotalDuration:   120,
				XPAmount:        40,
			})
		})

		It("completes the ticket, restores the fleet and pays reward plus bonus", func() {
			repos.sessions.listByTicketFn = func(_ context.Context, _ string) ([]domain.WorkSession, error) {
				return []domain.WorkSession{{ID: "ws-1", Status: domain.SessionStatusStopped, ActiveSeconds: 3600}}, nil
			}
			var movedTo domain.InventoryState
			repos.inventory.updateStateFn = func(_ context.Context, _ string, state domain.InventoryState) error {
				movedTo = state
				return nil
			}

			ticket, err := svc.QCPass(ctx, "tic-1", "insp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ticket.Status).To(Equal(domain.TicketStatusDone))
			Expect(ticket.FinishedAt).NotTo(BeNil())
			Expect(movedTo).To(Equal(domain.InventoryStateReady))

			Expect(entries).To(HaveLen(3))
			Expect(entries[0].Type).To(Equal(domain.XPTicketReward))
			Expect(entries[0].Amount).To(Equal(40))
			Expect(entries[0].TechnicianID).To(Equal("tech-1"))
			Expect(entries[0].Reference).To(Equal(domain.XPReference(domain.XPTicketReward, "tic-1")))
			Expect(entries[1].Type).To(Equal(domain.XPFirstPassBonus))
			Expect(entries[1].Amount).To(Equal(15))
			Expect(entries[2].Type).To(Equal(domain.XPQCReview))
			Expect(entries[2].TechnicianID).To(Equal("insp-1"))
			Expect(entries[2].Reference).To(Equal(domain.XPReviewReference("tic-1", transitions[0].ID)))

			Expect(transitions).To(HaveLen(1))
			Expect(transitions[0].Metadata).To(HaveKeyWithValue("xp_awarded", 55))
			Expect(transitions[0].Metadata).To(HaveKeyWithValue("first_pass", true))

			Expect(published).To(HaveLen(1))
			payload, ok := published[0].Payload.(events.TicketQCPayload)
			Expect(ok).To(BeTrue())
			Expect(payload.XPAwarded).To(Equal(55))
			Expect(payload.FirstPass).To(BeTrue())
		})

		It("withholds the bonus after a failed inspection", func() {
			repos.ticketTransitions.hasActionFn = func(_ context.Context, _ string, action domain.WorkflowAction) (bool, error) {
				return action == domain.ActionQCFail, nil
			}
			repos.sessions.listByTicketFn = func(_ context.Context, _ string) ([]domain.WorkSession, error) {
				return []domain.WorkSession{{ID: "ws-1", ActiveSeconds: 3600}}, nil
			}

			_, err := svc.QCPass(ctx, "tic-1", "insp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].Type).To(Equal(domain.XPTicketReward))
			Expect(entries[1].Type).To(Equal(domain.XPQCReview))
			Expect(transitions[0].Metadata).To(HaveKeyWithValue("first_pass", false))
		})

		It("withholds the bonus when no active time was logged", func() {
			repos.sessions.listByTicketFn = func(_ context.Context, _ string) ([]domain.WorkSession, error) {
				return []domain.WorkSession{{ID: "ws-1", ActiveSeconds: 0}}, nil
			}

			_, err := svc.QCPass(ctx, "tic-1", "insp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
			Expect(transitions[0].Metadata).To(HaveKeyWithValue("first_pass", false))
		})

		It("withholds the bonus when work ran over the plan", func() {
			repos.sessions.listByTicketFn = func(_ context.Context, _ string) ([]domain.WorkSession, error) {
				return []domain.WorkSession{{ID: "ws-1", ActiveSeconds: 7201}}, nil
			}

			_, err := svc.QCPass(ctx, "tic-1", "insp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(transitions[0].Metadata).To(HaveKeyWithValue("first_pass", false))
		})

		It("grants the bonus at exactly the planned duration", func() {
			repos.sessions.listByTicketFn = func(_ context.Context, _ string) ([]domain.WorkSession, error) {
				return []domain.WorkSession{{ID: "ws-1", ActiveSeconds: 7200}}, nil
			}

			_, err := svc.QCPass(ctx, "tic-1", "insp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(transitions[0].Metadata).To(HaveKeyWithValue("first_pass", true))
		})

		It("reports zero award when the ledger already holds the postings", func() {
			repos.sessions.listByTicketFn = func(_ context.Context, _ string) ([]domain.WorkSession, error) {
				return []domain.WorkSession{{ID: "ws-1", ActiveSeconds: 3600}}, nil
			}
			repos.xp.createFn = func(_ context.Context, _ *domain.XPEntry) (bool, error) {
				return false, nil
			}

			_, err := svc.QCPass(ctx, "tic-1", "insp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(transitions[0].Metadata).To(HaveKeyWithValue("xp_awarded", 0))
		})
	})

	Context("qc fail", func() {
		It("returns the ticket to rework and credits only the inspector", func() {
			var entries []domain.XPEntry
			repos.xp.createFn = func(_ context.Context, e *domain.XPEntry) (bool, error) {
				entries = append(entries, *e)
				return true, nil
			}
			stageTicket(&domain.Ticket{
				ID:           "tic-1",
				Status:       domain.TicketStatusWaitingQC,
				TechnicianID: strPtr("tech-1"),
				XPAmount:     40,
			})

			ticket, err := svc.QCFail(ctx, "tic-1", "insp-1", "loose cable")
			Expect(err).NotTo(HaveOccurred())
			Expect(ticket.Status).To(Equal(domain.TicketStatusRework))
			Expect(ticket.Note).To(Equal("loose cable"))

			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Type).To(Equal(domain.XPQCReview))
			Expect(entries[0].TechnicianID).To(Equal("insp-1"))
			Expect(entries[0].Reference).To(Equal(domain.XPReviewReference("tic-1", transitions[0].ID)))

			Expect(published).To(HaveLen(1))
			payload, ok := published[0].Payload.(events.TicketQCPayload)
			Expect(ok).To(BeTrue())
			Expect(payload.Reason).To(Equal("loose cable"))
		})

		It("rejects a verdict on a ticket not awaiting inspection", func() {
			stageTicket(&domain.Ticket{ID: "tic-1", Status: domain.TicketStatusInProgress})

			_, err := svc.QCFail(ctx, "tic-1", "insp-1", "")
			Expect(apperrors.IsCode(err, apperrors.CodeInvalidTransition)).To(BeTrue())
		})
	})

	Context("soft delete", func() {
		It("hides the ticket and returns an in-service item to the fleet", func() {
			stageTicket(&domain.Ticket{
				ID:              "tic-1",
				InventoryItemID: "itm-1",
				Status:          domain.TicketStatusInProgress,
			})
			var movedTo domain.InventoryState
			repos.inventory.updateStateFn = func(_ context.Context, _ string, state domain.InventoryState) error {
				movedTo = state
				return nil
			}

			Expect(svc.SoftDelete(ctx, "tic-1", "admin-1")).To(Succeed())
			Expect(repos.tickets.softDeleteCalls).To(Equal(1))
			Expect(repos.ticketParts.softDeleteCalls).To(Equal(1))
			Expect(movedTo).To(Equal(domain.InventoryStateReady))
		})

		It("leaves the fleet untouched for a review-stage ticket", func() {
			stageTicket(&domain.Ticket{ID: "tic-1", Status: domain.TicketStatusUnderReview})

			Expect(svc.SoftDelete(ctx, "tic-1", "admin-1")).To(Succeed())
			Expect(repos.inventory.updateStateCalls).To(BeZero())
		})

		It("refuses while a work session is open", func() {
			stageTicket(&domain.Ticket{ID: "tic-1", Status: domain.TicketStatusInProgress})
			repos.sessions.getOpenByTicketFn = func(_ context.Context, ticketID string) (*domain.WorkSession, error) {
				return &domain.WorkSession{ID: "ws-1", TicketID: ticketID}, nil
			}

			err := svc.SoftDelete(ctx, "tic-1", "admin-1")
			Expect(apperrors.IsCode(err, apperrors.CodeConflict)).To(BeTrue())
			Expect(repos.tickets.softDeleteCalls).To(BeZero())
		})
	})

	Context("reads", func() {
		It("maps a missing ticket to not found", func() {
			_, err := svc.Get(ctx, "missing")
			Expect(apperrors.IsCode(err, apperrors.CodeNotFound)).To(BeTrue())

			_, err = svc.History(ctx, "missing")
			Expect(apperrors.IsCode(err, apperrors.CodeNotFound)).To(BeTrue())
		})
	})

	Context("full lifecycle", func() {
		It("walks a repair from intake to done with a single first-pass bonus", func() {
			var (
				ticketRow  *domain.Ticket
				sessionRow *domain.WorkSession
				sessLog    []domain.WorkSessionTransition
				xpEntries  []domain.XPEntry
			)
			item := &domain.InventoryItem{ID: "itm-9", State: domain.InventoryStateReady}

			repos.tickets.createFn = func(_ context.Context, t *domain.Ticket) error {
				t.ID = "tic-e2e"
				t.CreatedAt = clock
				cp := *t
				ticketRow = &cp
				return nil
			}
			fetchTicket := func(_ context.Context, id string) (*domain.Ticket, error) {
				if ticketRow == nil || ticketRow.ID != id {
					return nil, pgx.ErrNoRows
				}
				cp := *ticketRow
				return &cp, nil
			}
			repos.tickets.getByIDFn = fetchTicket
			repos.tickets.getByIDForUpdateFn = fetchTicket
			repos.tickets.updateFn = func(_ context.Context, t *domain.Ticket) error {
				cp := *t
				ticketRow = &cp
				return nil
			}

			repos.inventory.getByIDFn = func(_ context.Context, _ string) (*domain.InventoryItem, error) {
				cp := *item
				return &cp, nil
			}
			repos.inventory.updateStateFn = func(_ context.Context, _ string, state domain.InventoryState) error {
				item.State = state
				return nil
			}

			repos.sessions.createFn = func(_ context.Context, s *domain.WorkSession) error {
				cp := *s
				sessionRow = &cp
				return nil
			}
			repos.sessions.updateFn = func(_ context.Context, s *domain.WorkSession) error {
				cp := *s
				sessionRow = &cp
				return nil
			}
			repos.sessions.getByIDForUpdateFn = func(_ context.Context, id string) (*domain.WorkSession, error) {
				if sessionRow == nil || sessionRow.ID != id {
					return nil, pgx.ErrNoRows
				}
				cp := *sessionRow
				return &cp, nil
			}
			openSession := func(_ context.Context, _ string) (*domain.WorkSession, error) {
				if sessionRow == nil || sessionRow.Status == domain.SessionStatusStopped {
					return nil, pgx.ErrNoRows
				}
				cp := *sessionRow
				return &cp, nil
			}
			repos.sessions.getOpenByTicketFn = openSession
			repos.sessions.getOpenByTechnicianFn = openSession
			repos.sessions.listByTicketFn = func(_ context.Context, _ string) ([]domain.WorkSession, error) {
				if sessionRow == nil {
					return nil, nil
				}
				return []domain.WorkSession{*sessionRow}, nil
			}
			repos.sessions.listByTechnicianOverlapping = func(_ context.Context, _ string, _, _ time.Time) ([]domain.WorkSession, error) {
				if sessionRow == nil {
					return nil, nil
				}
				return []domain.WorkSession{*sessionRow}, nil
			}

			repos.sessionTransitions.createFn = func(_ context.Context, tr *domain.WorkSessionTransition) error {
				tr.CreatedAt = clock
				sessLog = append(sessLog, *tr)
				return nil
			}
			repos.sessionTransitions.listBySessionFn = func(_ context.Context, id string) ([]domain.WorkSessionTransition, error) {
				var out []domain.WorkSessionTransition
				for _, tr := range sessLog {
					if tr.SessionID == id {
						out = append(out, tr)
					}
				}
				return out, nil
			}

			repos.ticketTransitions.hasActionFn = func(_ context.Context, ticketID string, action domain.WorkflowAction) (bool, error) {
				for _, tr := range transitions {
					if tr.TicketID == ticketID && tr.Action == action {
						return true, nil
					}
				}
				return false, nil
			}
			repos.technicians.getByIDFn = func(_ context.Context, id string) (*domain.Technician, error) {
				return &domain.Technician{ID: id, Name: "Dana", Role: domain.RoleTechnician, Active: true}, nil
			}
			repos.xp.createFn = func(_ context.Context, e *domain.XPEntry) (bool, error) {
				for _, prev := range xpEntries {
					if prev.Reference == e.Reference {
						return false, nil
					}
				}
				xpEntries = append(xpEntries, *e)
				return true, nil
			}

			timers := service.NewSessionService(service.SessionDependencies{
				Tx:     &mockTxRunner{repos: repos},
				Repos:  repos,
				Rules:  &stubRules{snapshot: snap},
				Logger: zap.NewNop(),
				Now:    func() time.Time { return clock },
			})

			created, err := svc.CreateTicket(ctx, "admin-1", service.TicketCreateInput{
				InventoryItemID: "itm-9",
				Parts: []service.TicketPartInput{
					{PartName: "display", Severity: domain.SeverityRed, EstimatedMinutes: 60},
					{PartName: "battery", Severity: domain.SeverityGreen, EstimatedMinutes: 30},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.ApproveReview(ctx, created.ID, "lead-1")
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Assign(ctx, created.ID, "tech-1", "lead-1")
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Start(ctx, created.ID, "tech-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(item.State).To(Equal(domain.InventoryStateInService))
			Expect(sessionRow).NotTo(BeNil())

			_, err = svc.MoveToWaitingQC(ctx, created.ID, "tech-1")
			Expect(apperrors.IsCode(err, apperrors.CodeValidation)).To(BeTrue())

			clock = clock.Add(20 * time.Minute)
			_, err = timers.Pause(ctx, sessionRow.ID)
			Expect(err).NotTo(HaveOccurred())
			clock = clock.Add(10 * time.Minute)
			_, err = timers.Resume(ctx, sessionRow.ID)
			Expect(err).NotTo(HaveOccurred())
			clock = clock.Add(40 * time.Minute)
			stopped, err := timers.Stop(ctx, sessionRow.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stopped.ActiveSeconds).To(Equal(int64(3600)))

			_, err = svc.MoveToWaitingQC(ctx, created.ID, "tech-1")
			Expect(err).NotTo(HaveOccurred())

			done, err := svc.QCPass(ctx, created.ID, "insp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(done.Status).To(Equal(domain.TicketStatusDone))
			Expect(item.State).To(Equal(domain.InventoryStateReady))

			var bonuses, total int
			for _, e := range xpEntries {
				if e.Type == domain.XPFirstPassBonus {
					bonuses++
				}
				total += e.Amount
			}
			Expect(bonuses).To(Equal(1))
			Expect(total).To(Equal(60))
			Expect(published).To(HaveLen(6))
		})
	})
})
