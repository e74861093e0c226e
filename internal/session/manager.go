package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IsmaHaa12/smp-announcement/internal/crypto"
	"github.com/IsmaHaa12/smp-announcement/internal/identity"
	"github.com/IsmaHaa12/smp-announcement/internal/kv"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

var (
	ErrInvalidCredentials      = errors.New("invalid_credentials")
	ErrStudentLoginUnavailable = errors.New("student_login_unavailable")
	ErrNotPersisted            = errors.New("session_not_persisted")
)

const (
	keyRole       = "role"
	keyGuest      = "isGuest"
	keyEmail      = "email"
	keyUserID     = "uid"
	keyLastActive = "@last_active_time"
)

type Credentials struct {
	Email    string
	Password string
}

type Options struct {
	AdminEmail        string
	AdminPassword     string
	AdminPasswordHash string
	IdleTimeout       time.Duration
	// CacheTTL bounds how long Resolve trusts its in-memory copy before
	// rereading the shared store.
	CacheTTL time.Duration
	Now      func() time.Time
}

// Manager owns the role of every client session. Mutations (login, logout,
// restore) of one session are serialized; reads are concurrent.
type Manager struct {
	opts     Options
	store    kv.Store
	identity identity.Provider
	log      logrus.FieldLogger

	locks    idLocks
	mu       sync.RWMutex
	sessions map[string]entry
	watchers map[string]map[chan model.Session]struct{}
}

type entry struct {
	session model.Session
	checked time.Time
	// dirty entries failed to persist; the store is behind them.
	dirty bool
}

// New builds a Manager. A nil provider selects local mode: the admin logs in
// with the configured secret and student login is unavailable.
func New(opts Options, store kv.Store, provider identity.Provider, log logrus.FieldLogger) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = time.Minute
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Second
	}
	return &Manager{
		opts:     opts,
		store:    store,
		identity: provider,
		log:      log.WithField("component", "session"),
		sessions: make(map[string]entry),
		watchers: make(map[string]map[chan model.Session]struct{}),
	}
}

// Applied reports whether a login/logout took effect. A persistence failure
// still applies the session in memory.
func Applied(err error) bool {
	return err == nil || errors.Is(err, ErrNotPersisted)
}

func (m *Manager) RemoteIdentity() bool {
	return m.identity != nil
}

func (m *Manager) LoginAsAdmin(ctx context.Context, id string, creds Credentials) (model.Session, error) {
	defer m.locks.lock(id)()

	ident, err := m.verifyAdmin(ctx, creds)
	if err != nil {
		loginsTotal.WithLabelValues(string(model.RoleAdmin), resultLabel(err)).Inc()
		if errors.Is(err, ErrInvalidCredentials) {
			m.log.WithField("session", id).Info("admin login rejected")
		}
		return m.Current(id), err
	}
	loginsTotal.WithLabelValues(string(model.RoleAdmin), "ok").Inc()
	return m.applyLogin(ctx, id, model.RoleAdmin, ident)
}

func (m *Manager) LoginAsStudent(ctx context.Context, id string, creds Credentials) (model.Session, error) {
	defer m.locks.lock(id)()

	if m.identity == nil {
		return m.Current(id), ErrStudentLoginUnavailable
	}
	ident, err := m.identity.Authenticate(ctx, creds.Email, creds.Password)
	if err != nil {
		err = mapIdentityError(err)
		loginsTotal.WithLabelValues(string(model.RoleStudent), resultLabel(err)).Inc()
		return m.Current(id), err
	}
	if m.isAdminAddress(ident.Email) {
		loginsTotal.WithLabelValues(string(model.RoleStudent), "rejected").Inc()
		return m.Current(id), ErrInvalidCredentials
	}
	loginsTotal.WithLabelValues(string(model.RoleStudent), "ok").Inc()
	return m.applyLogin(ctx, id, model.RoleStudent, ident)
}

// EnterAsGuest marks an anonymous session as a deliberate guest visit. It is
// a no-op for a session that is logged in.
func (m *Manager) EnterAsGuest(ctx context.Context, id string) (model.Session, error) {
	defer m.locks.lock(id)()

	current := m.Current(id)
	if current.Role != model.RoleGuest {
		return current, nil
	}
	current.Guest = true
	m.set(current)
	if err := m.store.Set(ctx, m.key(id, keyGuest), "true"); err != nil {
		return current, m.persistFailed(id, "guest", err)
	}
	return current, nil
}

// Logout resets the session to guest and clears its persisted role,
// identity and activity timestamp. Safe to call when already logged out.
func (m *Manager) Logout(ctx context.Context, id string) error {
	defer m.locks.lock(id)()
	return m.logout(ctx, id)
}

// Restore is the startup/foreground checkpoint: it reloads persisted state
// and, when an identity service is in use, expires sessions idle for longer
// than the configured timeout.
func (m *Manager) Restore(ctx context.Context, id string) (model.Session, error) {
	defer m.locks.lock(id)()

	restored, err := m.load(ctx, id)
	if err != nil {
		m.log.WithError(err).WithField("session", id).Error("session restore failed")
		return m.Current(id), err
	}
	if m.identity != nil && restored.Role != model.RoleGuest && m.expired(restored) {
		m.log.WithField("session", id).Info("session idle timeout")
		timeoutsTotal.Inc()
		if err := m.logout(ctx, id); err != nil {
			return m.Current(id), err
		}
		return m.Current(id), nil
	}
	m.set(restored)
	return restored, nil
}

// Current is the in-memory view of the session, guest when unknown here.
func (m *Manager) Current(id string) model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.sessions[id]; ok {
		return e.session
	}
	return model.GuestSession(id)
}

// Resolve is Current backed by the shared store: a session unknown to this
// process, or cached for longer than the cache TTL, is reread so logins and
// logouts made through another instance apply here too. The idle timeout is
// not evaluated; that stays with Restore.
func (m *Manager) Resolve(ctx context.Context, id string) model.Session {
	if s, ok := m.cached(id); ok {
		return s
	}
	defer m.locks.lock(id)()
	if s, ok := m.cached(id); ok {
		return s
	}

	loaded, err := m.load(ctx, id)
	if err != nil {
		m.log.WithError(err).WithField("session", id).Warn("session reload failed")
		return m.Current(id)
	}
	m.mu.Lock()
	prev, known := m.sessions[id]
	if known && sameSession(prev.session, loaded) {
		prev.checked = m.opts.Now()
		m.sessions[id] = prev
		m.mu.Unlock()
		return prev.session
	}
	m.mu.Unlock()
	m.set(loaded)
	return loaded
}

func (m *Manager) cached(id string) (model.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return model.Session{}, false
	}
	return e.session, e.dirty || m.opts.Now().Sub(e.checked) < m.opts.CacheTTL
}

func sameSession(a, b model.Session) bool {
	return a.Role == b.Role &&
		a.Guest == b.Guest &&
		a.Identity == b.Identity &&
		a.LastActive.Equal(b.LastActive)
}

// Watch delivers the session after every change to it. Only the latest
// value is kept for a slow reader. The channel closes when ctx ends.
func (m *Manager) Watch(ctx context.Context, id string) <-chan model.Session {
	ch := make(chan model.Session, 1)
	m.mu.Lock()
	if m.watchers[id] == nil {
		m.watchers[id] = make(map[chan model.Session]struct{})
	}
	m.watchers[id][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers[id], ch)
		if len(m.watchers[id]) == 0 {
			delete(m.watchers, id)
		}
		close(ch)
		m.mu.Unlock()
	}()
	return ch
}

func (m *Manager) verifyAdmin(ctx context.Context, creds Credentials) (model.Identity, error) {
	if m.identity == nil {
		var err error
		if m.opts.AdminPasswordHash != "" {
			err = crypto.CheckPassword(m.opts.AdminPasswordHash, creds.Password)
		} else {
			err = crypto.CompareSecret(m.opts.AdminPassword, creds.Password)
		}
		if err != nil {
			return model.Identity{}, ErrInvalidCredentials
		}
		return model.Identity{Email: model.NormalizeEmail(m.opts.AdminEmail)}, nil
	}

	ident, err := m.identity.Authenticate(ctx, creds.Email, creds.Password)
	if err != nil {
		return model.Identity{}, mapIdentityError(err)
	}
	if !m.isAdminAddress(ident.Email) {
		if err := m.identity.SignOut(ctx, ident); err != nil {
			m.log.WithError(err).Warn("sign out of non-admin identity failed")
		}
		return model.Identity{}, ErrInvalidCredentials
	}
	return ident, nil
}

func (m *Manager) isAdminAddress(email string) bool {
	admin := model.NormalizeEmail(m.opts.AdminEmail)
	return admin != "" && model.NormalizeEmail(email) == admin
}

func (m *Manager) applyLogin(ctx context.Context, id string, role model.Role, ident model.Identity) (model.Session, error) {
	s := model.Session{
		ID:         id,
		Role:       role,
		Identity:   ident,
		LastActive: m.opts.Now().UTC().Truncate(time.Millisecond),
	}
	m.set(s)
	m.log.WithFields(logrus.Fields{"session": id, "role": role}).Info("session logged in")

	values := map[string]string{
		keyRole:       string(role),
		keyGuest:      "false",
		keyEmail:      ident.Email,
		keyUserID:     ident.UserID,
		keyLastActive: strconv.FormatInt(s.LastActive.UnixMilli(), 10),
	}
	for key, value := range values {
		if err := m.store.Set(ctx, m.key(id, key), value); err != nil {
			return s, m.persistFailed(id, "login", err)
		}
	}
	return s, nil
}

func (m *Manager) logout(ctx context.Context, id string) error {
	current := m.Current(id)
	if m.identity != nil && !current.Identity.Empty() {
		if err := m.identity.SignOut(ctx, current.Identity); err != nil {
			m.log.WithError(err).WithField("session", id).Warn("identity sign out failed")
		}
	}
	guest := model.GuestSession(id)
	guest.Guest = current.Guest
	m.set(guest)

	err := m.store.Delete(ctx,
		m.key(id, keyRole),
		m.key(id, keyEmail),
		m.key(id, keyUserID),
		m.key(id, keyLastActive),
	)
	if err != nil {
		return m.persistFailed(id, "logout", err)
	}
	return nil
}

func (m *Manager) load(ctx context.Context, id string) (model.Session, error) {
	values := make(map[string]string, 5)
	for _, key := range []string{keyRole, keyGuest, keyEmail, keyUserID, keyLastActive} {
		value, ok, err := m.store.Get(ctx, m.key(id, key))
		if err != nil {
			return model.Session{}, err
		}
		if ok {
			values[key] = value
		}
	}

	s := model.GuestSession(id)
	s.Guest = values[keyGuest] == "true"
	role, err := model.ParseRole(values[keyRole])
	if err != nil {
		m.log.WithField("session", id).Warnf("ignoring persisted role %q", values[keyRole])
		return s, nil
	}
	s.Role = role
	if role == model.RoleGuest {
		return s, nil
	}
	s.Identity = model.Identity{UserID: values[keyUserID], Email: values[keyEmail]}
	if raw := values[keyLastActive]; raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			s.LastActive = time.UnixMilli(ms).UTC()
		}
	}
	return s, nil
}

// expired reports whether more than the idle timeout elapsed since the last
// login. A session without a recorded timestamp does not expire.
func (m *Manager) expired(s model.Session) bool {
	if s.LastActive.IsZero() {
		return false
	}
	return m.opts.Now().Sub(s.LastActive) > m.opts.IdleTimeout
}

func (m *Manager) set(s model.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = entry{session: s, checked: m.opts.Now()}
	for ch := range m.watchers[s.ID] {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

func (m *Manager) persistFailed(id, op string, err error) error {
	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		e.dirty = true
		m.sessions[id] = e
	}
	m.mu.Unlock()
	persistFailures.WithLabelValues(op).Inc()
	m.log.WithError(err).WithFields(logrus.Fields{"session": id, "op": op}).Error("session state not persisted")
	return fmt.Errorf("%w: %v", ErrNotPersisted, err)
}

func (m *Manager) key(id, key string) string {
	return "session:" + id + ":" + key
}

func mapIdentityError(err error) error {
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return ErrInvalidCredentials
	}
	return err
}

func resultLabel(err error) string {
	if errors.Is(err, ErrInvalidCredentials) {
		return "rejected"
	}
	return "error"
}
