package testutil

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
)

// MockTxManager runs the closure without a real database transaction. The
// mock repositories ignore the tx handle, so a nil handle is fine.
type MockTxManager struct {
	// BeginErr, when set, fails WithTx before the closure runs.
	BeginErr error
	// Calls counts completed WithTx invocations.
	Calls int
}

// NewMockTxManager creates a new MockTxManager.
func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx implements domain.TxManager.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if m.BeginErr != nil {
		return m.BeginErr
	}
	m.Calls++
	return fn(nil)
}

// MockDealRepository is a map-backed domain.DealRepository.
type MockDealRepository struct {
	Deals map[uuid.UUID]*domain.Deal
}

// NewMockDealRepository creates a new MockDealRepository.
func NewMockDealRepository() *MockDealRepository {
	return &MockDealRepository{Deals: make(map[uuid.UUID]*domain.Deal)}
}

// AddDeal seeds a deal.
func (m *MockDealRepository) AddDeal(deal *domain.Deal) {
	if deal.ID == uuid.Nil {
		deal.ID = uuid.New()
	}
	m.Deals[deal.ID] = deal
}

// CreateTx stores a new deal under the caller's transaction.
func (m *MockDealRepository) CreateTx(ctx context.Context, tx domain.Tx, deal *domain.Deal) (*domain.Deal, error) {
	deal.ID = uuid.New()
	deal.CreatedAt = time.Now().UTC()
	deal.UpdatedAt = deal.CreatedAt
	m.Deals[deal.ID] = deal
	return deal, nil
}

// GetByID retrieves a deal.
func (m *MockDealRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	if deal, ok := m.Deals[id]; ok {
		copied := *deal
		return &copied, nil
	}
	return nil, domain.NewNotFound("Deal not found")
}

// GetForUpdateTx retrieves a deal under the caller's transaction.
func (m *MockDealRepository) GetForUpdateTx(ctx context.Context, tx domain.Tx, id uuid.UUID) (*domain.Deal, error) {
	return m.GetByID(ctx, id)
}

// UpdateTx writes a deal back.
func (m *MockDealRepository) UpdateTx(ctx context.Context, tx domain.Tx, deal *domain.Deal) error {
	if _, ok := m.Deals[deal.ID]; !ok {
		return domain.NewNotFound("Deal not found")
	}
	copied := *deal
	m.Deals[deal.ID] = &copied
	return nil
}

// List returns deals, optionally filtered by status.
func (m *MockDealRepository) List(ctx context.Context, status *domain.DealStatus) ([]*domain.Deal, error) {
	var deals []*domain.Deal
	for _, deal := range m.Deals {
		if status == nil || deal.Status == *status {
			deals = append(deals, deal)
		}
	}
	return deals, nil
}

// MockPaymentPlanRepository is a map-backed domain.PaymentPlanRepository.
type MockPaymentPlanRepository struct {
	Plans map[uuid.UUID]*domain.PaymentPlan
}

// NewMockPaymentPlanRepository creates a new MockPaymentPlanRepository.
func NewMockPaymentPlanRepository() *MockPaymentPlanRepository {
	return &MockPaymentPlanRepository{Plans: make(map[uuid.UUID]*domain.PaymentPlan)}
}

// AddPlan seeds a plan.
func (m *MockPaymentPlanRepository) AddPlan(plan *domain.PaymentPlan) {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	m.Plans[plan.ID] = plan
}

// CreateTx stores a new plan under the caller's transaction.
func (m *MockPaymentPlanRepository) CreateTx(ctx context.Context, tx domain.Tx, plan *domain.PaymentPlan) (*domain.PaymentPlan, error) {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	plan.CreatedAt = time.Now().UTC()
	plan.UpdatedAt = plan.CreatedAt
	m.Plans[plan.ID] = plan
	return plan, nil
}

// GetByID retrieves a plan.
func (m *MockPaymentPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentPlan, error) {
	if plan, ok := m.Plans[id]; ok {
		copied := *plan
		return &copied, nil
	}
	return nil, domain.NewNotFound("Payment plan not found")
}

// GetForUpdateTx retrieves a plan under the caller's transaction.
func (m *MockPaymentPlanRepository) GetForUpdateTx(ctx context.Context, tx domain.Tx, id uuid.UUID) (*domain.PaymentPlan, error) {
	return m.GetByID(ctx, id)
}

// UpdateTx writes a plan back.
func (m *MockPaymentPlanRepository) UpdateTx(ctx context.Context, tx domain.Tx, plan *domain.PaymentPlan) error {
	if _, ok := m.Plans[plan.ID]; !ok {
		return domain.NewNotFound("Payment plan not found")
	}
	copied := *plan
	m.Plans[plan.ID] = &copied
	return nil
}

// SetAcceptedTx marks one plan accepted and clears its siblings.
func (m *MockPaymentPlanRepository) SetAcceptedTx(ctx context.Context, tx domain.Tx, dealID, planID uuid.UUID) error {
	if _, ok := m.Plans[planID]; !ok {
		return domain.NewNotFound("Payment plan not found")
	}
	for _, plan := range m.Plans {
		if plan.DealID == dealID {
			plan.Accepted = plan.ID == planID
		}
	}
	return nil
}

// ListByStatus returns plans in the given status, oldest first.
func (m *MockPaymentPlanRepository) ListByStatus(ctx context.Context, status domain.PlanStatus) ([]*domain.PaymentPlan, error) {
	var plans []*domain.PaymentPlan
	for _, plan := range m.Plans {
		if plan.Status == status {
			plans = append(plans, plan)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CreatedAt.Before(plans[j].CreatedAt) })
	return plans, nil
}

// ListByDeal returns a deal's plans, newest version first.
func (m *MockPaymentPlanRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]*domain.PaymentPlan, error) {
	var plans []*domain.PaymentPlan
	for _, plan := range m.Plans {
		if plan.DealID == dealID {
			plans = append(plans, plan)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Version > plans[j].Version })
	return plans, nil
}

// NextVersion returns the next plan version for a deal.
func (m *MockPaymentPlanRepository) NextVersion(ctx context.Context, dealID uuid.UUID) (int, error) {
	max := 0
	for _, plan := range m.Plans {
		if plan.DealID == dealID && plan.Version > max {
			max = plan.Version
		}
	}
	return max + 1, nil
}

// MockUnitRepository is a map-backed domain.UnitRepository.
type MockUnitRepository struct {
	Units map[uuid.UUID]*domain.Unit
}

// NewMockUnitRepository creates a new MockUnitRepository.
func NewMockUnitRepository() *MockUnitRepository {
	return &MockUnitRepository{Units: make(map[uuid.UUID]*domain.Unit)}
}

// AddUnit seeds a unit.
func (m *MockUnitRepository) AddUnit(unit *domain.Unit) {
	if unit.ID == uuid.Nil {
		unit.ID = uuid.New()
	}
	m.Units[unit.ID] = unit
}

// GetByID retrieves a unit.
func (m *MockUnitRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Unit, error) {
	if unit, ok := m.Units[id]; ok {
		copied := *unit
		return &copied, nil
	}
	return nil, domain.NewNotFound("Unit not found")
}

// GetForUpdateTx retrieves a unit under the caller's transaction.
func (m *MockUnitRepository) GetForUpdateTx(ctx context.Context, tx domain.Tx, id uuid.UUID) (*domain.Unit, error) {
	return m.GetByID(ctx, id)
}

// SetStatusTx writes unit_status and available together.
func (m *MockUnitRepository) SetStatusTx(ctx context.Context, tx domain.Tx, id uuid.UUID, status domain.UnitStatus, available bool) error {
	unit, ok := m.Units[id]
	if !ok {
		return domain.NewNotFound("Unit not found")
	}
	unit.UnitStatus = status
	unit.Available = available
	return nil
}

// MockBlockRepository is a map-backed domain.BlockRepository.
type MockBlockRepository struct {
	Blocks map[uuid.UUID]*domain.Block
}

// NewMockBlockRepository creates a new MockBlockRepository.
func NewMockBlockRepository() *MockBlockRepository {
	return &MockBlockRepository{Blocks: make(map[uuid.UUID]*domain.Block)}
}

// AddBlock seeds a block.
func (m *MockBlockRepository) AddBlock(block *domain.Block) {
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	m.Blocks[block.ID] = block
}

// CreateTx stores a new block under the caller's transaction.
func (m *MockBlockRepository) CreateTx(ctx context.Context, tx domain.Tx, block *domain.Block) (*domain.Block, error) {
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	block.CreatedAt = time.Now().UTC()
	block.UpdatedAt = block.CreatedAt
	m.Blocks[block.ID] = block
	return block, nil
}

// GetByID retrieves a block.
func (m *MockBlockRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Block, error) {
	if block, ok := m.Blocks[id]; ok {
		copied := *block
		return &copied, nil
	}
	return nil, domain.NewNotFound("Block not found")
}

// GetForUpdateTx retrieves a block under the caller's transaction.
func (m *MockBlockRepository) GetForUpdateTx(ctx context.Context, tx domain.Tx, id uuid.UUID) (*domain.Block, error) {
	return m.GetByID(ctx, id)
}

// UpdateTx writes a block back.
func (m *MockBlockRepository) UpdateTx(ctx context.Context, tx domain.Tx, block *domain.Block) error {
	if _, ok := m.Blocks[block.ID]; !ok {
		return domain.NewNotFound("Block not found")
	}
	copied := *block
	m.Blocks[block.ID] = &copied
	return nil
}

// ActiveForUnit returns the approved, unexpired block holding the unit.
func (m *MockBlockRepository) ActiveForUnit(ctx context.Context, unitID uuid.UUID, now time.Time) (*domain.Block, error) {
	for _, block := range m.Blocks {
		if block.UnitID == unitID && block.Active(now) {
			copied := *block
			return &copied, nil
		}
	}
	return nil, domain.NewNotFound("No active block for unit")
}

// ActiveForUnitTx is ActiveForUnit under the caller's transaction.
func (m *MockBlockRepository) ActiveForUnitTx(ctx context.Context, tx domain.Tx, unitID uuid.UUID, now time.Time) (*domain.Block, error) {
	return m.ActiveForUnit(ctx, unitID, now)
}

// ListExpiredForUpdateTx returns approved blocks past blocked_until.
func (m *MockBlockRepository) ListExpiredForUpdateTx(ctx context.Context, tx domain.Tx, now time.Time, limit int) ([]*domain.Block, error) {
	var blocks []*domain.Block
	for _, block := range m.Blocks {
		if block.Status == domain.BlockApproved && !block.BlockedUntil.After(now) {
			blocks = append(blocks, block)
		}
		if len(blocks) == limit {
			break
		}
	}
	return blocks, nil
}

// ListReminderDueForUpdateTx returns active blocks past next_notify_at.
func (m *MockBlockRepository) ListReminderDueForUpdateTx(ctx context.Context, tx domain.Tx, now time.Time, limit int) ([]*domain.Block, error) {
	var blocks []*domain.Block
	for _, block := range m.Blocks {
		if block.Active(now) && block.NextNotifyAt != nil && !block.NextNotifyAt.After(now) {
			blocks = append(blocks, block)
		}
		if len(blocks) == limit {
			break
		}
	}
	return blocks, nil
}

// ListByStatus returns blocks in the given status.
func (m *MockBlockRepository) ListByStatus(ctx context.Context, status domain.BlockStatus) ([]*domain.Block, error) {
	var blocks []*domain.Block
	for _, block := range m.Blocks {
		if block.Status == status {
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

// MockReservationFormRepository is a map-backed domain.ReservationFormRepository.
type MockReservationFormRepository struct {
	Forms map[uuid.UUID]*domain.ReservationForm
}

// NewMockReservationFormRepository creates a new MockReservationFormRepository.
func NewMockReservationFormRepository() *MockReservationFormRepository {
	return &MockReservationFormRepository{Forms: make(map[uuid.UUID]*domain.ReservationForm)}
}

// AddForm seeds a form.
func (m *MockReservationFormRepository) AddForm(form *domain.ReservationForm) {
	if form.ID == uuid.Nil {
		form.ID = uuid.New()
	}
	m.Forms[form.ID] = form
}

// CreateTx stores a new form under the caller's transaction.
func (m *MockReservationFormRepository) CreateTx(ctx context.Context, tx domain.Tx, form *domain.ReservationForm) (*domain.ReservationForm, error) {
	if form.ID == uuid.Nil {
		form.ID = uuid.New()
	}
	form.CreatedAt = time.Now().UTC()
	form.UpdatedAt = form.CreatedAt
	m.Forms[form.ID] = form
	return form, nil
}

// GetByID retrieves a form.
func (m *MockReservationFormRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReservationForm, error) {
	if form, ok := m.Forms[id]; ok {
		copied := *form
		return &copied, nil
	}
	return nil, domain.NewNotFound("Reservation form not found")
}

// GetForUpdateTx retrieves a form under the caller's transaction.
func (m *MockReservationFormRepository) GetForUpdateTx(ctx context.Context, tx domain.Tx, id uuid.UUID) (*domain.ReservationForm, error) {
	return m.GetByID(ctx, id)
}

// UpdateTx writes a form back.
func (m *MockReservationFormRepository) UpdateTx(ctx context.Context, tx domain.Tx, form *domain.ReservationForm) error {
	if _, ok := m.Forms[form.ID]; !ok {
		return domain.NewNotFound("Reservation form not found")
	}
	copied := *form
	m.Forms[form.ID] = &copied
	return nil
}

// OpenExistsForPlanTx reports a pending or approved form bound to the plan.
func (m *MockReservationFormRepository) OpenExistsForPlanTx(ctx context.Context, tx domain.Tx, planID uuid.UUID) (bool, error) {
	for _, form := range m.Forms {
		if form.PaymentPlanID == planID &&
			(form.Status == domain.ReservationPendingApproval || form.Status == domain.ReservationApproved) {
			return true, nil
		}
	}
	return false, nil
}

// GetApprovedByPlan returns the approved form bound to the plan.
func (m *MockReservationFormRepository) GetApprovedByPlan(ctx context.Context, planID uuid.UUID) (*domain.ReservationForm, error) {
	for _, form := range m.Forms {
		if form.PaymentPlanID == planID && form.Status == domain.ReservationApproved {
			copied := *form
			return &copied, nil
		}
	}
	return nil, domain.NewNotFound("No approved reservation form for plan")
}

// ListByStatus returns forms in the given status.
func (m *MockReservationFormRepository) ListByStatus(ctx context.Context, status domain.ReservationStatus) ([]*domain.ReservationForm, error) {
	var forms []*domain.ReservationForm
	for _, form := range m.Forms {
		if form.Status == status {
			forms = append(forms, form)
		}
	}
	return forms, nil
}

// MockContractRepository is a map-backed domain.ContractRepository.
type MockContractRepository struct {
	Contracts map[uuid.UUID]*domain.Contract
}

// NewMockContractRepository creates a new MockContractRepository.
func NewMockContractRepository() *MockContractRepository {
	return &MockContractRepository{Contracts: make(map[uuid.UUID]*domain.Contract)}
}

// AddContract seeds a contract.
func (m *MockContractRepository) AddContract(contract *domain.Contract) {
	if contract.ID == uuid.Nil {
		contract.ID = uuid.New()
	}
	m.Contracts[contract.ID] = contract
}

// CreateTx stores a new contract under the caller's transaction.
func (m *MockContractRepository) CreateTx(ctx context.Context, tx domain.Tx, contract *domain.Contract) (*domain.Contract, error) {
	if contract.ID == uuid.Nil {
		contract.ID = uuid.New()
	}
	contract.CreatedAt = time.Now().UTC()
	contract.UpdatedAt = contract.CreatedAt
	m.Contracts[contract.ID] = contract
	return contract, nil
}

// GetByID retrieves a contract.
func (m *MockContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	if contract, ok := m.Contracts[id]; ok {
		copied := *contract
		return &copied, nil
	}
	return nil, domain.NewNotFound("Contract not found")
}

// GetForUpdateTx retrieves a contract under the caller's transaction.
func (m *MockContractRepository) GetForUpdateTx(ctx context.Context, tx domain.Tx, id uuid.UUID) (*domain.Contract, error) {
	return m.GetByID(ctx, id)
}

// UpdateTx writes a contract back.
func (m *MockContractRepository) UpdateTx(ctx context.Context, tx domain.Tx, contract *domain.Contract) error {
	if _, ok := m.Contracts[contract.ID]; !ok {
		return domain.NewNotFound("Contract not found")
	}
	copied := *contract
	m.Contracts[contract.ID] = &copied
	return nil
}

// ListByStatus returns contracts in the given status.
func (m *MockContractRepository) ListByStatus(ctx context.Context, status domain.ContractStatus) ([]*domain.Contract, error) {
	var contracts []*domain.Contract
	for _, contract := range m.Contracts {
		if contract.Status == status {
			contracts = append(contracts, contract)
		}
	}
	return contracts, nil
}

// MockPolicyRepository is a domain.PolicyRepository holding one active row.
type MockPolicyRepository struct {
	Policy *domain.PolicyConfig
}

// NewMockPolicyRepository creates a new MockPolicyRepository with no policy.
func NewMockPolicyRepository() *MockPolicyRepository {
	return &MockPolicyRepository{}
}

// GetActiveGlobal returns the configured policy or not found.
func (m *MockPolicyRepository) GetActiveGlobal(ctx context.Context) (*domain.PolicyConfig, error) {
	if m.Policy == nil {
		return nil, domain.NewNotFound("No active policy")
	}
	copied := *m.Policy
	return &copied, nil
}

// Create installs a new policy row.
func (m *MockPolicyRepository) Create(ctx context.Context, policy *domain.PolicyConfig) (*domain.PolicyConfig, error) {
	policy.ID = uuid.New()
	policy.CreatedAt = time.Now().UTC()
	m.Policy = policy
	return policy, nil
}

// MockStandardPricingRepository is a map-backed domain.StandardPricingRepository.
type MockStandardPricingRepository struct {
	ByID   map[uuid.UUID]*domain.StandardPricing
	ByUnit map[uuid.UUID]*domain.StandardPricing
}

// NewMockStandardPricingRepository creates a new MockStandardPricingRepository.
func NewMockStandardPricingRepository() *MockStandardPricingRepository {
	return &MockStandardPricingRepository{
		ByID:   make(map[uuid.UUID]*domain.StandardPricing),
		ByUnit: make(map[uuid.UUID]*domain.StandardPricing),
	}
}

// AddPricing seeds a pricing row.
func (m *MockStandardPricingRepository) AddPricing(pricing *domain.StandardPricing) {
	if pricing.ID == uuid.Nil {
		pricing.ID = uuid.New()
	}
	m.ByID[pricing.ID] = pricing
	if pricing.UnitID != nil {
		m.ByUnit[*pricing.UnitID] = pricing
	}
}

// GetByID retrieves a pricing row.
func (m *MockStandardPricingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.StandardPricing, error) {
	if pricing, ok := m.ByID[id]; ok {
		return pricing, nil
	}
	return nil, domain.NewNotFound("Standard pricing not found")
}

// GetActiveByUnit retrieves the active pricing row for a unit.
func (m *MockStandardPricingRepository) GetActiveByUnit(ctx context.Context, unitID uuid.UUID) (*domain.StandardPricing, error) {
	if pricing, ok := m.ByUnit[unitID]; ok && pricing.Active {
		return pricing, nil
	}
	return nil, domain.NewNotFound("No active standard pricing for unit")
}

// MockHistoryRepository records history entries in insertion order.
type MockHistoryRepository struct {
	Entries []*domain.HistoryEntry
}

// NewMockHistoryRepository creates a new MockHistoryRepository.
func NewMockHistoryRepository() *MockHistoryRepository {
	return &MockHistoryRepository{}
}

// InsertTx appends an entry.
func (m *MockHistoryRepository) InsertTx(ctx context.Context, tx domain.Tx, entry *domain.HistoryEntry) error {
	entry.ID = uuid.New()
	entry.At = time.Now().UTC()
	m.Entries = append(m.Entries, entry)
	return nil
}

// ListByEntity returns an entity's entries in insertion order.
func (m *MockHistoryRepository) ListByEntity(ctx context.Context, entity string, entityID uuid.UUID) ([]*domain.HistoryEntry, error) {
	var entries []*domain.HistoryEntry
	for _, entry := range m.Entries {
		if entry.Entity == entity && entry.EntityID == entityID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// ChangeTypes returns the ordered change_type sequence for an entity.
func (m *MockHistoryRepository) ChangeTypes(entity string, entityID uuid.UUID) []string {
	var types []string
	for _, entry := range m.Entries {
		if entry.Entity == entity && entry.EntityID == entityID {
			types = append(types, entry.ChangeType)
		}
	}
	return types
}

// MockNotificationRepository records staged notifications.
type MockNotificationRepository struct {
	Staged []*domain.Notification
}

// NewMockNotificationRepository creates a new MockNotificationRepository.
func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

// StageTx appends notifications, assigning ids.
func (m *MockNotificationRepository) StageTx(ctx context.Context, tx domain.Tx, notifications []*domain.Notification) error {
	for _, n := range notifications {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		m.Staged = append(m.Staged, n)
	}
	return nil
}

// MarkDelivered stamps delivered_at on the given ids.
func (m *MockNotificationRepository) MarkDelivered(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for _, n := range m.Staged {
		if set[n.ID] && n.DeliveredAt == nil {
			stamped := at
			n.DeliveredAt = &stamped
		}
	}
	return nil
}

// ListUndelivered returns staged notifications without a delivery stamp.
func (m *MockNotificationRepository) ListUndelivered(ctx context.Context, limit int) ([]*domain.Notification, error) {
	var pending []*domain.Notification
	for _, n := range m.Staged {
		if n.DeliveredAt == nil {
			pending = append(pending, n)
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// Types returns the staged notification types in order.
func (m *MockNotificationRepository) Types() []string {
	var types []string
	for _, n := range m.Staged {
		types = append(types, n.Type)
	}
	return types
}

// MockNotificationSink records delivered notifications.
type MockNotificationSink struct {
	Delivered []*domain.Notification
	// FailWith, when set, makes every Deliver call fail.
	FailWith error
}

// NewMockNotificationSink creates a new MockNotificationSink.
func NewMockNotificationSink() *MockNotificationSink {
	return &MockNotificationSink{}
}

// Deliver implements domain.NotificationSink.
func (m *MockNotificationSink) Deliver(ctx context.Context, n *domain.Notification) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Delivered = append(m.Delivered, n)
	return nil
}

// MockDocumentRepository records uploaded documents in memory.
type MockDocumentRepository struct {
	Uploads map[string][]byte
}

// NewMockDocumentRepository creates a new MockDocumentRepository.
func NewMockDocumentRepository() *MockDocumentRepository {
	return &MockDocumentRepository{Uploads: make(map[string][]byte)}
}

// Upload stores the document bytes under the object path.
func (m *MockDocumentRepository) Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.Uploads[objectPath] = content
	return objectPath, nil
}

// Delete removes a stored document.
func (m *MockDocumentRepository) Delete(ctx context.Context, objectPath string) error {
	delete(m.Uploads, objectPath)
	return nil
}

// GeneratePresignedURL returns a stable fake URL for the object path.
func (m *MockDocumentRepository) GeneratePresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error) {
	if _, ok := m.Uploads[objectPath]; !ok {
		return "", fmt.Errorf("object not found: %s", objectPath)
	}
	return "https://documents.test/" + objectPath, nil
}
