package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	. "github.com/onsi/gomega"

	"github.com/erkinov-wtf/rmbot-sub002/internal/calendar"
	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/escalation"
	"github.com/erkinov-wtf/rmbot-sub002/internal/queue"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	"github.com/erkinov-wtf/rmbot-sub002/internal/rules"
)

// baseTime is a Monday 10:00 UTC, inside the test snapshot's business
// window. Specs advance a copy of it instead of reading the wall clock.
var baseTime = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

// testSnapshot builds an active rules snapshot the way the provider would,
// with every weekday open 09:00-18:00 UTC so window checks stay predictable.
func testSnapshot() *rules.Snapshot {
	windows := make(map[time.Weekday][]calendar.Window)
	for d := time.Sunday; d <= time.Saturday; d++ {
		windows[d] = []calendar.Window{{OpenMinute: 9 * 60, CloseMinute: 18 * 60}}
	}
	cal, err := calendar.New("UTC", windows, nil)
	Expect(err).NotTo(HaveOccurred())

	return &rules.Snapshot{
		Version: 1,
		Config: &rules.Config{
			Timezone: "UTC",
			TicketXP: rules.TicketXP{
				Green:          10,
				Yellow:         20,
				Red:            40,
				FirstPassBonus: 15,
				QCReview:       5,
			},
			WorkSession: rules.WorkSessionRules{DailyPauseLimitMinutes: 60},
			Stockout:    rules.StockoutRules{CheckIntervalSeconds: 60},
			SLA: rules.SLARules{
				Enabled: true,
				Rules: map[string]rules.SLARule{
					"stockout_duration": {Threshold: 30, CooldownMinutes: 60},
					"backlog_pressure":  {Threshold: 10, CooldownMinutes: 60},
					"qc_pass_rate":      {Threshold: 0.8, CooldownMinutes: 60, WindowMinutes: 1440, MinSamples: 5},
				},
				Routes: []rules.EscalationRoute{
					{Rule: "stockout_duration", Channels: []string{"telegram", "webhook"}},
				},
				DefaultChannels: []string{"telegram"},
			},
		},
		Calendar: cal,
	}
}

type stubRules struct {
	snapshot *rules.Snapshot
}

func (s *stubRules) Active() *rules.Snapshot {
	return s.snapshot
}

type mockTicketRepo struct {
	createFn           func(ctx context.Context, ticket *domain.Ticket) error
	updateFn           func(ctx context.Context, ticket *domain.Ticket) error
	getByIDFn          func(ctx context.Context, id string) (*domain.Ticket, error)
	getByIDForUpdateFn func(ctx context.Context, id string) (*domain.Ticket, error)
	listWithFilterFn   func(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error)
	countOpenFn        func(ctx context.Context) (int, error)
	countByStatusesFn  func(ctx context.Context, statuses []domain.TicketStatus) (int, error)
	softDeleteFn       func(ctx context.Context, id string, at time.Time) error
	createCalls        int
	updateCalls        int
	softDeleteCalls    int
}

func (m *mockTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, ticket)
	}
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	return nil
}

func (m *mockTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	m.updateCalls++
	if m.updateFn != nil {
		return m.updateFn(ctx, ticket)
	}
	return nil
}

func (m *mockTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockTicketRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	if m.getByIDForUpdateFn != nil {
		return m.getByIDForUpdateFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if m.listWithFilterFn != nil {
		return m.listWithFilterFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockTicketRepo) CountOpen(ctx context.Context) (int, error) {
	if m.countOpenFn != nil {
		return m.countOpenFn(ctx)
	}
	return 0, nil
}

func (m *mockTicketRepo) CountByStatuses(ctx context.Context, statuses []domain.TicketStatus) (int, error) {
	if m.countByStatusesFn != nil {
		return m.countByStatusesFn(ctx, statuses)
	}
	return 0, nil
}

func (m *mockTicketRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	m.softDeleteCalls++
	if m.softDeleteFn != nil {
		return m.softDeleteFn(ctx, id, at)
	}
	return nil
}

type mockTicketPartRepo struct {
	createManyFn         func(ctx context.Context, ticketID string, parts []domain.TicketPartSpec) ([]domain.TicketPartSpec, error)
	listByTicketFn       func(ctx context.Context, ticketID string) ([]domain.TicketPartSpec, error)
	softDeleteByTicketFn func(ctx context.Context, ticketID string, at time.Time) error
	softDeleteCalls      int
}

func (m *mockTicketPartRepo) CreateMany(ctx context.Context, ticketID string, parts []domain.TicketPartSpec) ([]domain.TicketPartSpec, error) {
	if m.createManyFn != nil {
		return m.createManyFn(ctx, ticketID, parts)
	}
	created := make([]domain.TicketPartSpec, len(parts))
	for i, part := range parts {
		part.ID = uuid.NewString()
		part.TicketID = ticketID
		part.Position = i
		created[i] = part
	}
	return created, nil
}

func (m *mockTicketPartRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketPartSpec, error) {
	if m.listByTicketFn != nil {
		return m.listByTicketFn(ctx, ticketID)
	}
	return nil, nil
}

func (m *mockTicketPartRepo) SoftDeleteByTicket(ctx context.Context, ticketID string, at time.Time) error {
	m.softDeleteCalls++
	if m.softDeleteByTicketFn != nil {
		return m.softDeleteByTicketFn(ctx, ticketID, at)
	}
	return nil
}

type mockTicketTransitionRepo struct {
	createFn            func(ctx context.Context, transition *domain.TicketTransition) error
	listByTicketFn      func(ctx context.Context, ticketID string) ([]domain.TicketTransition, error)
	hasActionFn         func(ctx context.Context, ticketID string, action domain.WorkflowAction) (bool, error)
	countActionsSinceFn func(ctx context.Context, since time.Time) (map[domain.WorkflowAction]int, error)
	createCalls         int
}

func (m *mockTicketTransitionRepo) Create(ctx context.Context, transition *domain.TicketTransition) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, transition)
	}
	return nil
}

func (m *mockTicketTransitionRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketTransition, error) {
	if m.listByTicketFn != nil {
		return m.listByTicketFn(ctx, ticketID)
	}
	return nil, nil
}

func (m *mockTicketTransitionRepo) HasAction(ctx context.Context, ticketID string, action domain.WorkflowAction) (bool, error) {
	if m.hasActionFn != nil {
		return m.hasActionFn(ctx, ticketID, action)
	}
	return false, nil
}

func (m *mockTicketTransitionRepo) CountActionsSince(ctx context.Context, since time.Time) (map[domain.WorkflowAction]int, error) {
	if m.countActionsSinceFn != nil {
		return m.countActionsSinceFn(ctx, since)
	}
	return map[domain.WorkflowAction]int{}, nil
}

type mockSessionRepo struct {
	createFn                    func(ctx context.Context, session *domain.WorkSession) error
	updateFn                    func(ctx context.Context, session *domain.WorkSession) error
	getByIDFn                   func(ctx context.Context, id string) (*domain.WorkSession, error)
	getByIDForUpdateFn          func(ctx context.Context, id string) (*domain.WorkSession, error)
	getOpenByTicketFn           func(ctx context.Context, ticketID string) (*domain.WorkSession, error)
	getOpenByTechnicianFn       func(ctx context.Context, technicianID string) (*domain.WorkSession, error)
	listByTicketFn              func(ctx context.Context, ticketID string) ([]domain.WorkSession, error)
	listPausedFn                func(ctx context.Context) ([]domain.WorkSession, error)
	listByTechnicianOverlapping func(ctx context.Context, technicianID string, from, to time.Time) ([]domain.WorkSession, error)
	createCalls                 int
	updateCalls                 int
}

func (m *mockSessionRepo) Create(ctx context.Context, session *domain.WorkSession) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *domain.WorkSession) error {
	m.updateCalls++
	if m.updateFn != nil {
		return m.updateFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*domain.WorkSession, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockSessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.WorkSession, error) {
	if m.getByIDForUpdateFn != nil {
		return m.getByIDForUpdateFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockSessionRepo) GetOpenByTicket(ctx context.Context, ticketID string) (*domain.WorkSession, error) {
	if m.getOpenByTicketFn != nil {
		return m.getOpenByTicketFn(ctx, ticketID)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockSessionRepo) GetOpenByTechnician(ctx context.Context, technicianID string) (*domain.WorkSession, error) {
	if m.getOpenByTechnicianFn != nil {
		return m.getOpenByTechnicianFn(ctx, technicianID)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockSessionRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkSession, error) {
	if m.listByTicketFn != nil {
		return m.listByTicketFn(ctx, ticketID)
	}
	return nil, nil
}

func (m *mockSessionRepo) ListPaused(ctx context.Context) ([]domain.WorkSession, error) {
	if m.listPausedFn != nil {
		return m.listPausedFn(ctx)
	}
	return nil, nil
}

func (m *mockSessionRepo) ListByTechnicianOverlapping(ctx context.Context, technicianID string, from, to time.Time) ([]domain.WorkSession, error) {
	if m.listByTechnicianOverlapping != nil {
		return m.listByTechnicianOverlapping(ctx, technicianID, from, to)
	}
	return nil, nil
}

type mockSessionTransitionRepo struct {
	createFn        func(ctx context.Context, transition *domain.WorkSessionTransition) error
	listBySessionFn func(ctx context.Context, sessionID string) ([]domain.WorkSessionTransition, error)
	createCalls     int
}

func (m *mockSessionTransitionRepo) Create(ctx context.Context, transition *domain.WorkSessionTransition) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, transition)
	}
	return nil
}

func (m *mockSessionTransitionRepo) ListBySession(ctx context.Context, sessionID string) ([]domain.WorkSessionTransition, error) {
	if m.listBySessionFn != nil {
		return m.listBySessionFn(ctx, sessionID)
	}
	return nil, nil
}

type mockInventoryRepo struct {
	createFn           func(ctx context.Context, item *domain.InventoryItem) error
	updateStateFn      func(ctx context.Context, id string, state domain.InventoryState) error
	getByIDFn          func(ctx context.Context, id string) (*domain.InventoryItem, error)
	getByIDForUpdateFn func(ctx context.Context, id string) (*domain.InventoryItem, error)
	listFn             func(ctx context.Context, state *domain.InventoryState, limit, offset int) ([]domain.InventoryItem, error)
	countByStateFn     func(ctx context.Context, state domain.InventoryState) (int, error)
	updateStateCalls   int
}

func (m *mockInventoryRepo) Create(ctx context.Context, item *domain.InventoryItem) error {
	if m.createFn != nil {
		return m.createFn(ctx, item)
	}
	return nil
}

func (m *mockInventoryRepo) UpdateState(ctx context.Context, id string, state domain.InventoryState) error {
	m.updateStateCalls++
	if m.updateStateFn != nil {
		return m.updateStateFn(ctx, id, state)
	}
	return nil
}

func (m *mockInventoryRepo) GetByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockInventoryRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.InventoryItem, error) {
	if m.getByIDForUpdateFn != nil {
		return m.getByIDForUpdateFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockInventoryRepo) List(ctx context.Context, state *domain.InventoryState, limit, offset int) ([]domain.InventoryItem, error) {
	if m.listFn != nil {
		return m.listFn(ctx, state, limit, offset)
	}
	return nil, nil
}

func (m *mockInventoryRepo) CountByState(ctx context.Context, state domain.InventoryState) (int, error) {
	if m.countByStateFn != nil {
		return m.countByStateFn(ctx, state)
	}
	return 0, nil
}

type mockTechnicianRepo struct {
	createFn  func(ctx context.Context, technician *domain.Technician) error
	updateFn  func(ctx context.Context, technician *domain.Technician) error
	getByIDFn func(ctx context.Context, id string) (*domain.Technician, error)
	listFn    func(ctx context.Context, filter repository.TechnicianFilter) ([]domain.Technician, error)
}

func (m *mockTechnicianRepo) Create(ctx context.Context, technician *domain.Technician) error {
	if m.createFn != nil {
		return m.createFn(ctx, technician)
	}
	return nil
}

func (m *mockTechnicianRepo) Update(ctx context.Context, technician *domain.Technician) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, technician)
	}
	return nil
}

func (m *mockTechnicianRepo) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockTechnicianRepo) List(ctx context.Context, filter repository.TechnicianFilter) ([]domain.Technician, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

type mockStockoutRepo struct {
	createFn           func(ctx context.Context, incident *domain.StockoutIncident) error
	getOpenForUpdateFn func(ctx context.Context) (*domain.StockoutIncident, error)
	getOpenFn          func(ctx context.Context) (*domain.StockoutIncident, error)
	closeFn            func(ctx context.Context, id string, endedAt time.Time, endCount int) error
	listFn             func(ctx context.Context, limit, offset int) ([]domain.StockoutIncident, error)
	createCalls        int
	closeCalls         int
}

func (m *mockStockoutRepo) Create(ctx context.Context, incident *domain.StockoutIncident) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, incident)
	}
	return nil
}

func (m *mockStockoutRepo) GetOpenForUpdate(ctx context.Context) (*domain.StockoutIncident, error) {
	if m.getOpenForUpdateFn != nil {
		return m.getOpenForUpdateFn(ctx)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockStockoutRepo) GetOpen(ctx context.Context) (*domain.StockoutIncident, error) {
	if m.getOpenFn != nil {
		return m.getOpenFn(ctx)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockStockoutRepo) Close(ctx context.Context, id string, endedAt time.Time, endCount int) error {
	m.closeCalls++
	if m.closeFn != nil {
		return m.closeFn(ctx, id, endedAt, endCount)
	}
	return nil
}

func (m *mockStockoutRepo) List(ctx context.Context, limit, offset int) ([]domain.StockoutIncident, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

type mockAutomationEventRepo struct {
	createFn       func(ctx context.Context, event *domain.AutomationEvent) error
	getByIDFn      func(ctx context.Context, id int64) (*domain.AutomationEvent, error)
	latestByRuleFn func(ctx context.Context, rule domain.RuleKey) (*domain.AutomationEvent, error)
	listFn         func(ctx context.Context, filter repository.AutomationEventFilter) ([]domain.AutomationEvent, error)
	createCalls    int
}

func (m *mockAutomationEventRepo) Create(ctx context.Context, event *domain.AutomationEvent) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockAutomationEventRepo) GetByID(ctx context.Context, id int64) (*domain.AutomationEvent, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockAutomationEventRepo) LatestByRule(ctx context.Context, rule domain.RuleKey) (*domain.AutomationEvent, error) {
	if m.latestByRuleFn != nil {
		return m.latestByRuleFn(ctx, rule)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockAutomationEventRepo) List(ctx context.Context, filter repository.AutomationEventFilter) ([]domain.AutomationEvent, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

type mockDeliveryAttemptRepo struct {
	createFn      func(ctx context.Context, attempt *domain.DeliveryAttempt) error
	listByEventFn func(ctx context.Context, eventID int64) ([]domain.DeliveryAttempt, error)
	hasSuccessFn  func(ctx context.Context, eventID int64, channel domain.ChannelKind) (bool, error)
	createCalls   int
}

func (m *mockDeliveryAttemptRepo) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, attempt)
	}
	return nil
}

func (m *mockDeliveryAttemptRepo) ListByEvent(ctx context.Context, eventID int64) ([]domain.DeliveryAttempt, error) {
	if m.listByEventFn != nil {
		return m.listByEventFn(ctx, eventID)
	}
	return nil, nil
}

func (m *mockDeliveryAttemptRepo) HasSuccess(ctx context.Context, eventID int64, channel domain.ChannelKind) (bool, error) {
	if m.hasSuccessFn != nil {
		return m.hasSuccessFn(ctx, eventID, channel)
	}
	return false, nil
}

type mockXPRepo struct {
	createFn           func(ctx context.Context, entry *domain.XPEntry) (bool, error)
	listByTechnicianFn func(ctx context.Context, technicianID string, limit, offset int) ([]domain.XPEntry, error)
	sumByTechnicianFn  func(ctx context.Context, technicianID string) (int, error)
	createCalls        int
}

func (m *mockXPRepo) Create(ctx context.Context, entry *domain.XPEntry) (bool, error) {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, entry)
	}
	return true, nil
}

func (m *mockXPRepo) ListByTechnician(ctx context.Context, technicianID string, limit, offset int) ([]domain.XPEntry, error) {
	if m.listByTechnicianFn != nil {
		return m.listByTechnicianFn(ctx, technicianID, limit, offset)
	}
	return nil, nil
}

func (m *mockXPRepo) SumByTechnician(ctx context.Context, technicianID string) (int, error) {
	if m.sumByTechnicianFn != nil {
		return m.sumByTechnicianFn(ctx, technicianID)
	}
	return 0, nil
}

// mockRepos bundles one mock per repository behind the provider interface.
// The same bundle backs direct reads and transactional work, mirroring how
// the pool-backed provider and a transaction provider share tables.
type mockRepos struct {
	tickets            *mockTicketRepo
	ticketParts        *mockTicketPartRepo
	ticketTransitions  *mockTicketTransitionRepo
	sessions           *mockSessionRepo
	sessionTransitions *mockSessionTransitionRepo
	inventory          *mockInventoryRepo
	technicians        *mockTechnicianRepo
	stockouts          *mockStockoutRepo
	automationEvents   *mockAutomationEventRepo
	deliveryAttempts   *mockDeliveryAttemptRepo
	xp                 *mockXPRepo
}

func newMockRepos() *mockRepos {
	return &mockRepos{
		tickets:            &mockTicketRepo{},
		ticketParts:        &mockTicketPartRepo{},
		ticketTransitions:  &mockTicketTransitionRepo{},
		sessions:           &mockSessionRepo{},
		sessionTransitions: &mockSessionTransitionRepo{},
		inventory:          &mockInventoryRepo{},
		technicians:        &mockTechnicianRepo{},
		stockouts:          &mockStockoutRepo{},
		automationEvents:   &mockAutomationEventRepo{},
		deliveryAttempts:   &mockDeliveryAttemptRepo{},
		xp:                 &mockXPRepo{},
	}
}

func (m *mockRepos) Tickets() repository.TicketRepository { return m.tickets }

func (m *mockRepos) TicketParts() repository.TicketPartRepository { return m.ticketParts }

func (m *mockRepos) TicketTransitions() repository.TicketTransitionRepository {
	return m.ticketTransitions
}

func (m *mockRepos) Sessions() repository.SessionRepository { return m.sessions }

func (m *mockRepos) SessionTransitions() repository.SessionTransitionRepository {
	return m.sessionTransitions
}

func (m *mockRepos) Inventory() repository.InventoryRepository { return m.inventory }

func (m *mockRepos) Technicians() repository.TechnicianRepository { return m.technicians }

func (m *mockRepos) Stockouts() repository.StockoutRepository { return m.stockouts }

func (m *mockRepos) AutomationEvents() repository.AutomationEventRepository {
	return m.automationEvents
}

func (m *mockRepos) DeliveryAttempts() repository.DeliveryAttemptRepository {
	return m.deliveryAttempts
}

func (m *mockRepos) XP() repository.XPRepository { return m.xp }

type mockTxRunner struct {
	repos    *mockRepos
	withTxFn func(ctx context.Context, fn func(repos repository.RepoProvider) error) error
	calls    int
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(repos repository.RepoProvider) error) error {
	m.calls++
	if m.withTxFn != nil {
		return m.withTxFn(ctx, fn)
	}
	return fn(m.repos)
}

type mockProducer struct {
	enqueueFn func(ctx context.Context, msg queue.DeliveryMessage) error
	messages  []queue.DeliveryMessage
}

func (m *mockProducer) Enqueue(ctx context.Context, msg queue.DeliveryMessage) error {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, msg)
	}
	m.messages = append(m.messages, msg)
	return nil
}

type mockChannel struct {
	kind      domain.ChannelKind
	deliverFn func(ctx context.Context, payload escalation.Payload) error
	calls     int
	payloads  []escalation.Payload
}

func (m *mockChannel) Kind() domain.ChannelKind { return m.kind }

func (m *mockChannel) Deliver(ctx context.Context, payload escalation.Payload) error {
	m.calls++
	m.payloads = append(m.payloads, payload)
	if m.deliverFn != nil {
		return m.deliverFn(ctx, payload)
	}
	return nil
}
