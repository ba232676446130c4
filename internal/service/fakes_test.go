package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/reminder-scheduler/internal/errors"
	"github.com/unclebandit/reminder-scheduler/internal/logger"
	"github.com/unclebandit/reminder-scheduler/internal/model"
)

func quietLogger() *logrus.Logger {
	return logger.Discard()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// --- campaigns ---

type saveRunCall struct {
	ID        int64
	LastRunAt time.Time
	NextRunAt model.RunSlot
	ActorID   int64
}

type fakeCampaignRepo struct {
	mu         sync.Mutex
	campaigns  map[int64]*model.Campaign
	nextID     int64
	saveRuns   []saveRunCall
	saveRunErr error
}

func newFakeCampaignRepo(cs ...*model.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: map[int64]*model.Campaign{}}
	for _, c := range cs {
		r.Create(context.Background(), c)
	}
	return r
}

func (r *fakeCampaignRepo) Create(ctx context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeCampaignRepo) Update(ctx context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.campaigns[c.ID]
	if !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	cp := *c
	cp.LastRunAt = stored.LastRunAt
	if stored.Status == model.StatusActive || c.Status != model.StatusActive {
		cp.NextRunAt = stored.NextRunAt
	}
	r.campaigns[c.ID] = &cp
	c.NextRunAt = cp.NextRunAt
	return nil
}

func (r *fakeCampaignRepo) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) ListCampaigns(ctx context.Context, offset, limit int, channel, status string) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*model.Campaign
	for _, c := range r.campaigns {
		if channel != "" && string(c.Channel) != channel {
			continue
		}
		if status != "" && string(c.Status) != status {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := len(all)
	if offset >= total {
		return []*model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *fakeCampaignRepo) ListActive(ctx context.Context) ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.campaigns {
		if c.Status == model.StatusActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, si := out[i].NextRunAt.Time()
		tj, sj := out[j].NextRunAt.Time()
		if si != sj {
			return !si
		}
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeCampaignRepo) SaveRun(ctx context.Context, id int64, lastRunAt time.Time, nextRunAt model.RunSlot, actorID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveRunErr != nil {
		return r.saveRunErr
	}
	c, ok := r.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	last := lastRunAt
	c.LastRunAt = &last
	c.NextRunAt = nextRunAt
	c.UpdatedBy = &actorID
	r.saveRuns = append(r.saveRuns, saveRunCall{ID: id, LastRunAt: lastRunAt, NextRunAt: nextRunAt, ActorID: actorID})
	return nil
}

func (r *fakeCampaignRepo) get(id int64) *model.Campaign {
	c, _ := r.GetByID(context.Background(), id)
	return c
}

func (r *fakeCampaignRepo) saveRunCount(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, call := range r.saveRuns {
		if call.ID == id {
			n++
		}
	}
	return n
}

// --- customers and preferences ---

type fakeCustomerRepo struct {
	customers []model.Customer
	prefs     map[int64]*model.Preference
	services  map[int64][]string
	err       error
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{prefs: map[int64]*model.Preference{}, services: map[int64][]string{}}
}

func (r *fakeCustomerRepo) add(c model.Customer, p *model.Preference) {
	r.customers = append(r.customers, c)
	if p != nil {
		p.CustomerID = c.ID
		if p.ID == 0 {
			p.ID = c.ID * 10
		}
		r.prefs[c.ID] = p
	}
}

func (r *fakeCustomerRepo) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	for _, c := range r.customers {
		if c.ID == id && c.DeletedAt == nil {
			cp := c
			return &cp, nil
		}
	}
	return nil, appErrors.NewCustomerNotFound(id)
}

func (r *fakeCustomerRepo) ListContacts(ctx context.Context, serviceType string, withPreferenceOnly bool) ([]model.CustomerContact, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []model.CustomerContact
	for _, c := range r.customers {
		if c.DeletedAt != nil {
			continue
		}
		if serviceType != "" && !contains(r.services[c.ID], serviceType) {
			continue
		}
		var pref *model.Preference
		if p, ok := r.prefs[c.ID]; ok {
			cp := *p
			pref = &cp
		}
		if withPreferenceOnly && (pref == nil || !pref.Eligible()) {
			continue
		}
		out = append(out, model.CustomerContact{Customer: c, Preference: pref})
	}
	return out, nil
}

func (r *fakeCustomerRepo) HasServiceType(ctx context.Context, customerID int64, serviceType string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return contains(r.services[customerID], serviceType), nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type fakePreferenceRepo struct {
	prefs  map[int64]*model.Preference
	nextID int64
}

func newFakePreferenceRepo() *fakePreferenceRepo {
	return &fakePreferenceRepo{prefs: map[int64]*model.Preference{}}
}

func (r *fakePreferenceRepo) FindByCustomer(ctx context.Context, customerID int64) (*model.Preference, error) {
	p, ok := r.prefs[customerID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePreferenceRepo) Upsert(ctx context.Context, p *model.Preference) error {
	if existing, ok := r.prefs[p.CustomerID]; ok {
		p.ID = existing.ID
	} else {
		r.nextID++
		p.ID = r.nextID
	}
	cp := *p
	r.prefs[p.CustomerID] = &cp
	return nil
}

// --- delivery log ---

type fakeDeliveryLog struct {
	mu      sync.Mutex
	entries []*model.DeliveryLogEntry
	slots   map[string]bool
	// failRecord makes Record fail for the given campaign ids,
	// failCustomer for the given customer ids.
	failRecord   map[int64]error
	failCustomer map[int64]error
	// recordFailed is closed the first time Record returns an injected error.
	recordFailed chan struct{}
	// honourCtx makes every call fail once its context is done, as lib/pq does.
	honourCtx bool
	// beforeRecord runs outside the lock ahead of every Record.
	beforeRecord func(e *model.DeliveryLogEntry)
}

func newFakeDeliveryLog() *fakeDeliveryLog {
	return &fakeDeliveryLog{
		slots:        map[string]bool{},
		failRecord:   map[int64]error{},
		failCustomer: map[int64]error{},
		recordFailed: make(chan struct{}),
	}
}

func (l *fakeDeliveryLog) ctxErr(ctx context.Context) error {
	if l.honourCtx {
		return ctx.Err()
	}
	return nil
}

func (l *fakeDeliveryLog) injected(e *model.DeliveryLogEntry) error {
	err := l.failRecord[e.CampaignID]
	if err == nil {
		err = l.failCustomer[e.CustomerID]
	}
	if err != nil {
		select {
		case <-l.recordFailed:
		default:
			close(l.recordFailed)
		}
	}
	return err
}

func slotString(k model.SlotKey) string {
	return fmt.Sprintf("%d|%d|%s|%s", k.CampaignID, k.CustomerID, k.Channel, k.ScheduledFor.UTC().Format(time.RFC3339Nano))
}

func (l *fakeDeliveryLog) Record(ctx context.Context, e *model.DeliveryLogEntry) error {
	if l.beforeRecord != nil {
		l.beforeRecord(e)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ctxErr(ctx); err != nil {
		return err
	}
	if err := l.injected(e); err != nil {
		return err
	}
	if e.Status != model.DeliveryQueued && e.Status != model.DeliverySkipped {
		return fmt.Errorf("cannot record entry in status %s", e.Status)
	}
	key := slotString(e.Key())
	if l.slots[key] {
		return appErrors.ErrSlotClaimed
	}
	l.slots[key] = true
	e.ID = int64(len(l.entries) + 1)
	cp := *e
	l.entries = append(l.entries, &cp)
	return nil
}

func (l *fakeDeliveryLog) ExistsForSlot(ctx context.Context, key model.SlotKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ctxErr(ctx); err != nil {
		return false, err
	}
	return l.slots[slotString(key)], nil
}

func (l *fakeDeliveryLog) UpdateStatus(ctx context.Context, id int64, status model.DeliveryStatus, body *string, errMsg *string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ctxErr(ctx); err != nil {
		return err
	}
	if id < 1 || int(id) > len(l.entries) {
		return appErrors.NewDeliveryNotFound(id)
	}
	e := l.entries[id-1]
	if !e.Status.CanTransition(status) {
		return appErrors.ErrInvalidTransition
	}
	e.Status = status
	if body != nil {
		e.RenderedBody = *body
	}
	e.Error = errMsg
	return nil
}

func (l *fakeDeliveryLog) ForCampaign(ctx context.Context, campaignID int64, limit int) ([]model.DeliveryLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.DeliveryLogEntry
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].CampaignID == campaignID {
			out = append(out, *l.entries[i])
		}
	}
	return out, nil
}

func (l *fakeDeliveryLog) StatsForCampaign(ctx context.Context, campaignID int64) (map[string]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := map[string]int{}
	for _, e := range l.entries {
		if e.CampaignID == campaignID {
			stats[string(e.Status)]++
		}
	}
	return stats, nil
}

func (l *fakeDeliveryLog) all() []model.DeliveryLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.DeliveryLogEntry, len(l.entries))
	for i, e := range l.entries {
		out[i] = *e
	}
	return out
}

func (l *fakeDeliveryLog) forCustomer(customerID int64) []model.DeliveryLogEntry {
	var out []model.DeliveryLogEntry
	for _, e := range l.all() {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out
}

func (l *fakeDeliveryLog) countStatus(status model.DeliveryStatus) int {
	n := 0
	for _, e := range l.all() {
		if e.Status == status {
			n++
		}
	}
	return n
}

// --- transports ---

type fakeDispatcher struct {
	mu    sync.Mutex
	mails []model.MailMessage
	sms   []model.SMSMessage
	fail  map[string]error
	// beforeSend runs outside the lock ahead of every hand-off.
	beforeSend func(to string)
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{fail: map[string]error{}}
}

func (d *fakeDispatcher) SendMail(ctx context.Context, msg model.MailMessage) error {
	if d.beforeSend != nil {
		d.beforeSend(msg.To)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail[msg.To]; err != nil {
		return err
	}
	d.mails = append(d.mails, msg)
	return nil
}

func (d *fakeDispatcher) SendSMS(ctx context.Context, msg model.SMSMessage) error {
	if d.beforeSend != nil {
		d.beforeSend(msg.To)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail[msg.To]; err != nil {
		return err
	}
	d.sms = append(d.sms, msg)
	return nil
}

func (d *fakeDispatcher) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mails), len(d.sms)
}

type fakeLocker struct {
	held     bool
	unlocked int
}

func (l *fakeLocker) TryLock(ctx context.Context, key string) (func(context.Context) error, bool, error) {
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.unlocked++
		return nil
	}, true, nil
}

// --- fixtures ---

type harness struct {
	clock      *testClock
	campaigns  *fakeCampaignRepo
	customers  *fakeCustomerRepo
	deliveries *fakeDeliveryLog
	dispatcher *fakeDispatcher
	service    *CampaignService
	scheduler  *Scheduler
}

func newHarness(now time.Time, campaigns ...*model.Campaign) *harness {
	h := &harness{
		clock:      &testClock{now: now},
		campaigns:  newFakeCampaignRepo(campaigns...),
		customers:  newFakeCustomerRepo(),
		deliveries: newFakeDeliveryLog(),
		dispatcher: newFakeDispatcher(),
	}
	log := quietLogger()
	h.service = &CampaignService{
		CampaignRepo: h.campaigns,
		DeliveryRepo: h.deliveries,
		Logger:       log,
		Now:          h.clock.Now,
	}
	h.scheduler = &Scheduler{
		Campaigns:  h.service,
		Recipients: &RecipientResolver{CustomerRepo: h.customers, Logger: log},
		Deliveries: h.deliveries,
		Renderer:   PlaceholderRenderer{},
		Dispatcher: h.dispatcher,
		Logger:     log,
		Now:        h.clock.Now,
	}
	return h
}

func activeCampaign(name string, ch model.Channel, unit model.FrequencyUnit, interval int, next model.RunSlot) *model.Campaign {
	return &model.Campaign{
		Name:              name,
		Channel:           ch,
		FrequencyUnit:     unit,
		FrequencyInterval: interval,
		Status:            model.StatusActive,
		EmailSubject:      "{campaign_name}",
		EmailBody:         "Hi {customer_name}, see you {scheduled_local}",
		SmsBody:           "Hi {customer_name}",
		NextRunAt:         next,
	}
}

func mailPref() *model.Preference {
	return &model.Preference{Timezone: "UTC", PreferredChannel: model.ChannelMail, PreferredHour: 9, IsActive: true}
}

func strPtr(s string) *string { return &s }
