package commitment

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/KAsare1/commonthread-server/cmd/models"
)

type monthKey struct {
	userID      uint
	year, month int
}

type fakeData struct {
	users         map[uint]models.User
	businesses    map[uint]models.Business
	opportunities map[uint]models.Opportunity
	commitments   map[uint]models.Commitment
	overrides     map[monthKey]int
	nextID        uint
}

func (d *fakeData) clone() *fakeData {
	c := &fakeData{
		users:         make(map[uint]models.User, len(d.users)),
		businesses:    make(map[uint]models.Business, len(d.businesses)),
		opportunities: make(map[uint]models.Opportunity, len(d.opportunities)),
		commitments:   make(map[uint]models.Commitment, len(d.commitments)),
		overrides:     make(map[monthKey]int, len(d.overrides)),
		nextID:        d.nextID,
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.businesses {
		c.businesses[k] = v
	}
	for k, v := range d.opportunities {
		c.opportunities[k] = v
	}
	for k, v := range d.commitments {
		c.commitments[k] = v
	}
	for k, v := range d.overrides {
		c.overrides[k] = v
	}
	return c
}

// fakeStore keeps everything in memory. A transaction holds the store lock
// for its whole duration and restores a snapshot when fn fails, which is
// enough to reproduce row-lock serialization and rollback.
type fakeStore struct {
	mu   *sync.Mutex
	data **fakeData
	inTx bool

	// failCreate, when set, is returned by CreateCommitment.
	failCreate error
}

func newFakeStore() *fakeStore {
	data := &fakeData{
		users:         map[uint]models.User{},
		businesses:    map[uint]models.Business{},
		opportunities: map[uint]models.Opportunity{},
		commitments:   map[uint]models.Commitment{},
		overrides:     map[monthKey]int{},
		nextID:        100,
	}
	return &fakeStore{mu: &sync.Mutex{}, data: &data}
}

func (s *fakeStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *fakeStore) d() *fakeData { return *s.data }

func (s *fakeStore) addUser(u models.User) {
	defer s.lock()()
	s.d().users[u.ID] = u
}

func (s *fakeStore) addBusiness(b models.Business) {
	defer s.lock()()
	s.d().businesses[b.ID] = b
}

func (s *fakeStore) addOpportunity(o models.Opportunity) {
	defer s.lock()()
	if o.Status == "" {
		o.Status = models.OpportunityOpen
	}
	s.d().opportunities[o.ID] = o
}

func (s *fakeStore) addCommitment(c models.Commitment) {
	defer s.lock()()
	s.d().commitments[c.ID] = c
}

func (s *fakeStore) setOverride(userID uint, year, month, hours int) {
	defer s.lock()()
	s.d().overrides[monthKey{userID, year, month}] = hours
}

func (s *fakeStore) opportunity(id uint) models.Opportunity {
	defer s.lock()()
	return s.d().opportunities[id]
}

func (s *fakeStore) commitment(id uint) (models.Commitment, bool) {
	defer s.lock()()
	c, ok := s.d().commitments[id]
	return c, ok
}

func (s *fakeStore) user(id uint) models.User {
	defer s.lock()()
	return s.d().users[id]
}

func (s *fakeStore) commitmentCount() int {
	defer s.lock()()
	return len(s.d().commitments)
}

func (s *fakeStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	defer s.lock()()
	u, ok := s.d().users[id]
	if !ok {
		return nil, ErrVolunteerNotFound
	}
	return &u, nil
}

func (s *fakeStore) GetBusiness(ctx context.Context, id uint) (*models.Business, error) {
	defer s.lock()()
	b, ok := s.d().businesses[id]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	return &b, nil
}

func (s *fakeStore) GetOpportunity(ctx context.Context, id uint) (*models.Opportunity, error) {
	defer s.lock()()
	o, ok := s.d().opportunities[id]
	if !ok {
		return nil, ErrOpportunityNotFound
	}
	return &o, nil
}

func (s *fakeStore) GetCommitment(ctx context.Context, id uint) (*models.Commitment, error) {
	defer s.lock()()
	c, ok := s.d().commitments[id]
	if !ok {
		return nil, ErrCommitmentNotFound
	}
	return &c, nil
}

func (s *fakeStore) MonthlyOverride(ctx context.Context, userID uint, year, month int) (int, bool, error) {
	defer s.lock()()
	hours, ok := s.d().overrides[monthKey{userID, year, month}]
	return hours, ok, nil
}

func (s *fakeStore) ActiveCommitments(ctx context.Context, volunteerID uint) ([]models.Commitment, error) {
	defer s.lock()()
	var out []models.Commitment
	for _, c := range s.d().commitments {
		if c.VolunteerID == volunteerID && models.HoldsSlot(c.Status) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) ListCommitments(ctx context.Context, f ListFilter) ([]models.Commitment, error) {
	defer s.lock()()
	statuses := make(map[string]bool)
	for _, status := range f.Statuses {
		statuses[status] = true
	}

	var out []models.Commitment
	for _, c := range s.d().commitments {
		if f.VolunteerID != 0 && c.VolunteerID != f.VolunteerID {
			continue
		}
		if f.BusinessID != 0 && c.BusinessID != f.BusinessID {
			continue
		}
		if len(statuses) > 0 && !statuses[c.Status] {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *fakeStore) CreateCommitment(ctx context.Context, c *models.Commitment) error {
	defer s.lock()()
	if s.failCreate != nil {
		return s.failCreate
	}
	s.d().nextID++
	c.ID = s.d().nextID
	s.d().commitments[c.ID] = *c
	return nil
}

func (s *fakeStore) UpdatePendingDetails(ctx context.Context, c *models.Commitment) error {
	defer s.lock()()
	stored, ok := s.d().commitments[c.ID]
	if !ok || stored.Status != models.CommitmentPending {
		return ErrStatusConflict
	}
	stored.HoursCommitted, stored.StartDate, stored.Notes = c.HoursCommitted, c.StartDate, c.Notes
	s.d().commitments[c.ID] = stored
	return nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id uint, from, to string) error {
	defer s.lock()()
	c, ok := s.d().commitments[id]
	if !ok || c.Status != from {
		return ErrStatusConflict
	}
	c.Status = to
	s.d().commitments[id] = c
	return nil
}

func (s *fakeStore) DeleteCommitment(ctx context.Context, id uint, status string) error {
	defer s.lock()()
	c, ok := s.d().commitments[id]
	if !ok || c.Status != status {
		return ErrStatusConflict
	}
	delete(s.d().commitments, id)
	return nil
}

func (s *fakeStore) ReserveSlot(ctx context.Context, opportunityID uint) error {
	defer s.lock()()
	o, ok := s.d().opportunities[opportunityID]
	if !ok || (o.SlotsNeeded > 0 && o.SlotsFilled >= o.SlotsNeeded) {
		return ErrOpportunityFull
	}
	o.SlotsFilled++
	s.d().opportunities[opportunityID] = o
	return nil
}

func (s *fakeStore) ReleaseSlot(ctx context.Context, opportunityID uint) error {
	defer s.lock()()
	o, ok := s.d().opportunities[opportunityID]
	if ok && o.SlotsFilled > 0 {
		o.SlotsFilled--
		s.d().opportunities[opportunityID] = o
	}
	return nil
}

func (s *fakeStore) CreditHours(ctx context.Context, userID uint, hours int) error {
	defer s.lock()()
	u, ok := s.d().users[userID]
	if !ok {
		return errors.New("user vanished")
	}
	u.TotalHoursVolunteered += hours
	s.d().users[userID] = u
	return nil
}

func (s *fakeStore) Transaction(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d().clone()
	tx := &fakeStore{mu: s.mu, data: s.data, inTx: true, failCreate: s.failCreate}
	if err := fn(tx); err != nil {
		*s.data = snapshot
		return err
	}
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, notification *models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, *notification)
	return n.err
}

func (n *fakeNotifier) all() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification(nil), n.sent...)
}

func (n *fakeNotifier) ofType(kind string) []models.Notification {
	var out []models.Notification
	for _, notification := range n.all() {
		if notification.Type == kind {
			out = append(out, notification)
		}
	}
	return out
}

type fakeMailer struct {
	mu       sync.Mutex
	statuses []string
	approved []uint
	err      error
}

func (m *fakeMailer) SendApplicationStatus(c *models.Commitment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, c.Status)
	return m.err
}

func (m *fakeMailer) SendApplicationApproved(c *models.Commitment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approved = append(m.approved, c.ID)
	return m.err
}
