package telegram

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Conversation states. Each chat moves through registration once, then
// cycles browsing -> note -> payment method per order.
const (
	StateIdle            = "idle"
	StateRegisterName    = "register_name"
	StateRegisterPhone   = "register_phone"
	StateRegisterAddress = "register_address"
	StateBrowsing        = "browsing"
	StateAwaitingNote    = "awaiting_note"
	StateAwaitingPayment = "awaiting_payment_method"
)

// CartItem is one product line in a chat's in-progress order.
type CartItem struct {
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int32
}

// Session holds per-chat conversation state. Registration scratch
// fields are only meaningful during the register_* states.
type Session struct {
	State      string
	CustomerID string

	Name    string
	Phone   string
	Address string

	Cart []CartItem
	Note string

	touchedAt time.Time
}

// AddItem merges a product into the cart, bumping quantity if the same
// product is already there.
func (s *Session) AddItem(item CartItem) {
	for i := range s.Cart {
		if s.Cart[i].ProductID == item.ProductID {
			s.Cart[i].Quantity += item.Quantity
			return
		}
	}
	s.Cart = append(s.Cart, item)
}

// CartTotal sums the cart lines.
func (s *Session) CartTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Cart {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	return total
}

// ResetOrder clears order-in-progress state but keeps the customer.
func (s *Session) ResetOrder() {
	s.Cart = nil
	s.Note = ""
	s.State = StateBrowsing
}

// SessionStore keeps per-chat sessions with TTL eviction, so chats
// that go quiet don't accumulate forever.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
	done     chan struct{}
}

// NewSessionStore creates a store whose entries expire after ttl of
// inactivity. Call Close to stop the janitor goroutine.
func NewSessionStore(ttl time.Duration) *SessionStore {
	store := &SessionStore{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go store.janitor()
	return store
}

// Get returns the session for chatID, creating an idle one if absent.
// Every access refreshes the TTL.
func (st *SessionStore) Get(chatID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[chatID]
	if !ok {
		s = &Session{State: StateIdle}
		st.sessions[chatID] = s
	}
	s.touchedAt = time.Now()
	return s
}

// Delete removes the session for chatID.
func (st *SessionStore) Delete(chatID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, chatID)
}

// Len reports the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Close stops the janitor goroutine.
func (st *SessionStore) Close() {
	close(st.done)
}

func (st *SessionStore) janitor() {
	interval := st.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-st.done:
			return
		case now := <-ticker.C:
			st.mu.Lock()
			for chatID, s := range st.sessions {
				if now.Sub(s.touchedAt) > st.ttl {
					delete(st.sessions, chatID)
				}
			}
			st.mu.Unlock()
		}
	}
}
