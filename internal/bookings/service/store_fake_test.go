package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/repository"
	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
	"github.com/mfeltenmark/freelance-crm/platform/apperr"

	"github.com/google/uuid"
)

type memState struct {
	contacts   map[string]repository.Contact // by email
	companies  []repository.Company
	leads      map[uuid.UUID]repository.Lead
	leadOrder  []uuid.UUID
	activities map[uuid.UUID]repository.Activity
	tasks      map[uuid.UUID]repository.Task
	taskOrder  []uuid.UUID
}

func (s memState) clone() memState {
	out := memState{
		contacts:   make(map[string]repository.Contact, len(s.contacts)),
		companies:  append([]repository.Company(nil), s.companies...),
		leads:      make(map[uuid.UUID]repository.Lead, len(s.leads)),
		leadOrder:  append([]uuid.UUID(nil), s.leadOrder...),
		activities: make(map[uuid.UUID]repository.Activity, len(s.activities)),
		tasks:      make(map[uuid.UUID]repository.Task, len(s.tasks)),
		taskOrder:  append([]uuid.UUID(nil), s.taskOrder...),
	}
	for k, v := range s.contacts {
		v.Tags = append([]string(nil), v.Tags...)
		out.contacts[k] = v
	}
	for k, v := range s.leads {
		out.leads[k] = v
	}
	for k, v := range s.activities {
		out.activities[k] = v
	}
	for k, v := range s.tasks {
		out.tasks[k] = v
	}
	return out
}

// memStore is a transactional in-memory Store. A transaction works on a copy
// that replaces the committed state only when fn succeeds.
type memStore struct {
	mu        sync.Mutex
	state     memState
	failTaskN int // fail the Nth CreateTask call of a transaction (1-based), 0 disables
	locks     []string
	txCount   int
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		contacts:   map[string]repository.Contact{},
		leads:      map[uuid.UUID]repository.Lead{},
		activities: map[uuid.UUID]repository.Activity{},
		tasks:      map[uuid.UUID]repository.Task{},
	}}
}

var errInjected = errors.New("injected task failure")

func (m *memStore) WithinTx(ctx context.Context, fn func(repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	tx := &memTx{store: m, state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

type memTx struct {
	store     *memStore
	state     memState
	taskCalls int
}

func (t *memTx) LockKey(_ context.Context, key string) error {
	t.store.locks = append(t.store.locks, key)
	return nil
}

func (t *memTx) UpsertContact(_ context.Context, p repository.UpsertContactParams) (repository.Contact, error) {
	c, ok := t.state.contacts[p.Email]
	if !ok {
		c = repository.Contact{ID: uuid.New(), Email: p.Email, Phone: p.Phone, Tags: append([]string(nil), p.Tags...), CreatedAt: p.At}
	} else {
		if p.Phone != nil {
			c.Phone = p.Phone
		}
		c.Tags = union(c.Tags, p.Tags)
	}
	c.FirstName = p.FirstName
	c.LastName = p.LastName
	c.UpdatedAt = p.At
	t.state.contacts[p.Email] = c
	return c, nil
}

func (t *memTx) FindCompanyByName(_ context.Context, name string) (*repository.Company, error) {
	for _, c := range t.state.companies {
		if c.Name == name {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memTx) CreateCompany(_ context.Context, c repository.Company) (repository.Company, error) {
	c.ID = uuid.New()
	c.UpdatedAt = c.CreatedAt
	t.state.companies = append(t.state.companies, c)
	return c, nil
}

func (t *memTx) SetContactCompany(_ context.Context, contactID, companyID uuid.UUID, at time.Time) error {
	for email, c := range t.state.contacts {
		if c.ID == contactID {
			c.CompanyID = &companyID
			c.UpdatedAt = at
			t.state.contacts[email] = c
			return nil
		}
	}
	return apperr.NotFound("contact not found")
}

func (t *memTx) FindActiveLead(_ context.Context, companyID uuid.UUID, eventType string) (*repository.Lead, error) {
	for _, id := range t.state.leadOrder {
		l := t.state.leads[id]
		if l.CompanyID != nil && *l.CompanyID == companyID && l.Status == transport.LeadStatusActive && strings.Contains(l.Title, eventType) {
			return &l, nil
		}
	}
	return nil, nil
}

func (t *memTx) TouchLead(_ context.Context, leadID uuid.UUID, at time.Time, minScore int) (repository.Lead, error) {
	l, ok := t.state.leads[leadID]
	if !ok {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	l.LastActivityDate = &at
	if l.LeadScore < minScore {
		l.LeadScore = minScore
	}
	t.state.leads[leadID] = l
	return l, nil
}

func (t *memTx) CreateLead(_ context.Context, l repository.Lead) (repository.Lead, error) {
	l.ID = uuid.New()
	l.UpdatedAt = l.CreatedAt
	t.state.leads[l.ID] = l
	t.state.leadOrder = append(t.state.leadOrder, l.ID)
	return l, nil
}

func (t *memTx) FindActivityByBookingID(_ context.Context, bookingID string) (*repository.Activity, error) {
	for _, a := range t.state.activities {
		if a.BookingID != nil && *a.BookingID == bookingID {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memTx) CreateActivity(_ context.Context, a repository.Activity) (repository.Activity, error) {
	a.ID = uuid.New()
	a.UpdatedAt = a.CreatedAt
	t.state.activities[a.ID] = a
	return a, nil
}

func (t *memTx) UpdateActivity(_ context.Context, a repository.Activity) error {
	if _, ok := t.state.activities[a.ID]; !ok {
		return apperr.NotFound("activity not found")
	}
	t.state.activities[a.ID] = a
	return nil
}

func (t *memTx) CreateTask(_ context.Context, task repository.Task) (repository.Task, error) {
	t.taskCalls++
	if t.store.failTaskN > 0 && t.taskCalls == t.store.failTaskN {
		return repository.Task{}, errInjected
	}
	task.ID = uuid.New()
	task.UpdatedAt = task.CreatedAt
	t.state.tasks[task.ID] = task
	t.state.taskOrder = append(t.state.taskOrder, task.ID)
	return task, nil
}

func (t *memTx) CancelOpenTasks(_ context.Context, leadID uuid.UUID, at time.Time) (int64, error) {
	var n int64
	for id, task := range t.state.tasks {
		if task.LeadID != nil && *task.LeadID == leadID && task.Status == transport.TaskStatusTodo {
			task.Status = transport.TaskStatusCancelled
			task.UpdatedAt = at
			t.state.tasks[id] = task
			n++
		}
	}
	return n, nil
}

// seedTask inserts a committed task directly.
func (m *memStore) seedTask(task repository.Task) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.ID = uuid.New()
	m.state.tasks[task.ID] = task
	m.state.taskOrder = append(m.state.taskOrder, task.ID)
	return task.ID
}

func (m *memStore) setLeadScore(id uuid.UUID, score int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.state.leads[id]
	l.LeadScore = score
	m.state.leads[id] = l
}

func (m *memStore) tasksForLead(id uuid.UUID) []repository.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.Task
	for _, tid := range m.state.taskOrder {
		if t := m.state.tasks[tid]; t.LeadID != nil && *t.LeadID == id {
			out = append(out, t)
		}
	}
	return out
}

func union(a, b []string) []string {
	set := map[string]struct{}{}
	for _, v := range append(append([]string(nil), a...), b...) {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

var (
	_ Store         = (*memStore)(nil)
	_ repository.Tx = (*memTx)(nil)
)
