// Package session keeps per-visitor state (the cart) behind the Fiber session
// middleware.
package session

import (
	"time"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
)

// Session is the subset of *fibersession.Session the cart needs.
type Session interface {
	Get(key string) interface{}
	Set(key string, val interface{})
	Delete(key string)
	Save() error
}

// Provider loads the session bound to a request.
type Provider interface {
	Load(c *fiber.Ctx) (Session, error)
}

// Store is the Fiber-backed Provider. A nil storage keeps sessions in memory.
type Store struct {
	store *fibersession.Store
}

func NewStore(storage fiber.Storage, ttl time.Duration) *Store {
	return &Store{store: fibersession.New(fibersession.Config{
		Storage:        storage,
		Expiration:     ttl,
		KeyLookup:      "cookie:session_id",
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})}
}

func (s *Store) Load(c *fiber.Ctx) (Session, error) {
	sess, err := s.store.Get(c)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// MemorySession is a map-backed Session used for tests and local scenarios.
type MemorySession struct {
	values map[string]interface{}
	Saves  int
}

func NewMemorySession() *MemorySession {
	return &MemorySession{values: map[string]interface{}{}}
}

func (m *MemorySession) Get(key string) interface{} { return m.values[key] }

func (m *MemorySession) Set(key string, val interface{}) { m.values[key] = val }

func (m *MemorySession) Delete(key string) { delete(m.values, key) }

func (m *MemorySession) Save() error {
	m.Saves++
	return nil
}

// Has reports whether key is present.
func (m *MemorySession) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}
