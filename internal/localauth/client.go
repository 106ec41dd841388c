// Package localauth is a self-hosted identity provider. It keeps accounts in a document store,
// hashes passwords with bcrypt and signs ID tokens with the configured key pair.
package localauth

import (
	"context"
	"maps"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"academia-identity/backend/internal/audit"
	auditdomain "academia-identity/backend/internal/audit/domain"
	"academia-identity/backend/internal/federated"
	"academia-identity/backend/internal/identity/provider"
	"academia-identity/backend/internal/policy/engine"
	"academia-identity/backend/internal/security"
)

// Collections used for account data.
const (
	AccountsCollection = "accounts"
	EmailsCollection   = "account_emails"
	LinksCollection    = "account_links"
	ClaimsCollection   = "account_claims"
)

// MinPasswordLength is the shortest password accepted on sign-up and reset.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Store is the document store used for accounts. CreateDoc must fail with docstore.ErrExists
// when the document is already present.
type Store interface {
	provider.DocumentStore
	CreateDoc(ctx context.Context, collection, id string, data provider.Record) error
	DeleteDoc(ctx context.Context, collection, id string) error
}

// Option configures a Client.
type Option func(*Client)

// WithHasher sets the password hasher.
func WithHasher(h *security.Hasher) Option {
	return func(c *Client) {
		if h != nil {
			c.hasher = h
		}
	}
}

// WithEvaluator fills claim permissions from the policy engine.
func WithEvaluator(e engine.Evaluator) Option {
	return func(c *Client) { c.permissions = e }
}

// WithRegistry enables federated sign-in through the given providers.
func WithRegistry(r *federated.Registry) Option {
	return func(c *Client) { c.registry = r }
}

// WithNotifier sets where password reset tokens are delivered.
func WithNotifier(n ResetNotifier) Option {
	return func(c *Client) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithAuditor records account events.
func WithAuditor(a audit.AuditLogger) Option {
	return func(c *Client) {
		if a != nil {
			c.auditor = a
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSignInLimit limits sign-in attempts per email address.
func WithSignInLimit(every time.Duration, burst int) Option {
	return func(c *Client) {
		if every > 0 && burst > 0 {
			c.limit = rate.Every(every)
			c.burst = burst
		}
	}
}

// Client implements provider.AuthClient and provider.ClaimsSource. It holds one current
// session, as a client SDK would. Safe for concurrent use.
type Client struct {
	store       Store
	tokens      *security.TokenProvider
	hasher      *security.Hasher
	permissions engine.Evaluator
	registry    *federated.Registry
	notifier    ResetNotifier
	auditor     audit.AuditLogger
	logger      *zap.Logger
	limit       rate.Limit
	burst       int

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	current   provider.Record
	observers map[int]func(provider.Record)
	nextObs   int
}

var (
	_ provider.AuthClient   = (*Client)(nil)
	_ provider.ClaimsSource = (*Client)(nil)
)

// New returns a Client over store that signs tokens with tokens.
func New(store Store, tokens *security.TokenProvider, opts ...Option) *Client {
	c := &Client{
		store:     store,
		tokens:    tokens,
		hasher:    security.NewHasher(0),
		auditor:   audit.Nop{},
		logger:    zap.NewNop(),
		limit:     rate.Every(12 * time.Second),
		burst:     5,
		limiters:  make(map[string]*rate.Limiter),
		observers: make(map[int]func(provider.Record)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = NewLogNotifier(c.logger)
	}
	return c
}

// SignOut ends the current session. Observers receive nil.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	uid, _ := c.current["uid"].(string)
	c.mu.Unlock()
	c.setCurrent(nil)
	if uid != "" {
		c.audit(ctx, uid, auditdomain.ActionSignOut, nil)
	}
	return nil
}

// CurrentUser returns the signed-in identity record, or nil.
func (c *Client) CurrentUser(ctx context.Context) (provider.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, nil
	}
	return maps.Clone(c.current), nil
}

// OnAuthStateChanged registers fn and immediately delivers the current state to it.
func (c *Client) OnAuthStateChanged(fn func(provider.Record)) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	var snapshot provider.Record
	if c.current != nil {
		snapshot = maps.Clone(c.current)
	}
	c.mu.Unlock()

	fn(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// setCurrent replaces the session and notifies observers outside the lock.
func (c *Client) setCurrent(rec provider.Record) {
	c.mu.Lock()
	c.current = rec
	fns := make([]func(provider.Record), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		if rec == nil {
			fn(nil)
			continue
		}
		fn(maps.Clone(rec))
	}
}

// audit records an event for uid under the academia of its claims, if any.
func (c *Client) audit(ctx context.Context, uid, action string, metadata map[string]string) {
	var academiaID string
	if doc, err := c.store.GetDoc(ctx, ClaimsCollection, uid); err == nil && doc != nil {
		academiaID, _ = doc["academiaId"].(string)
	}
	c.auditor.LogEvent(ctx, academiaID, uid, action, metadata)
}

// limiterSweepAt is the number of tracked addresses above which idle limiters are dropped.
const limiterSweepAt = 1024

// allow reports whether another sign-in attempt for email is permitted now.
func (c *Client) allow(email string) bool {
	c.mu.Lock()
	l, ok := c.limiters[email]
	if !ok {
		if len(c.limiters) >= limiterSweepAt {
			c.sweepLimiters(time.Now())
		}
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[email] = l
	}
	c.mu.Unlock()
	return l.Allow()
}

// sweepLimiters drops limiters that have refilled completely; a fresh limiter behaves the same.
// Callers hold c.mu.
func (c *Client) sweepLimiters(now time.Time) {
	for email, l := range c.limiters {
		if l.TokensAt(now) >= float64(c.burst) {
			delete(c.limiters, email)
		}
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !emailPattern.MatchString(email) {
		return "", provider.NewError(provider.CodeInvalidEmail, "the email address is badly formatted")
	}
	return email, nil
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return provider.NewError(provider.CodeWeakPassword, "password should be at least 6 characters")
	}
	return nil
}
