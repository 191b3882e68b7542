package cart

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/amanice/storefront/internal/kvstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrEmptyCart = errors.New("cart is empty")

const (
	messageHeader = "Hi AMA-NICE! I'd like to order the following items:\n\n"
	messageFooter = "\nPlease let me know about availability and payment details."
)

// Line is one cart entry. Lines have no identity beyond their position.
type Line struct {
	Name       string `json:"name"`
	PriceRange string `json:"priceRange"`
}

// Order is the WhatsApp hand-off for a checked out cart
type Order struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// Cart accumulates lines and writes the whole list to its store after every change
type Cart struct {
	mu    sync.Mutex
	store kvstore.KV
	key   string
	lines []Line
	// unsaved is set while the last change could not be stored
	unsaved bool
}

// Load reads the cart saved under key. Missing or malformed data gives an empty cart.
func Load(store kvstore.KV, key string) *Cart {
	c := &Cart{store: store, key: key, lines: []Line{}}
	data, err := store.Get(key)
	if err != nil {
		zap.L().Warn("read cart failed", zap.String("namespace", "cart"), zap.Error(err))
		return c
	}
	if len(data) > 0 {
		var lines []Line
		if err := json.Unmarshal(data, &lines); err != nil {
			zap.L().Warn("cart data is malformed", zap.String("namespace", "cart"), zap.Error(err))
			return c
		}
		c.lines = lines
	}
	return c
}

func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Line{}, c.lines...)
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// AddItem appends a line; duplicates are allowed
func (c *Cart) AddItem(name, priceRange string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, Line{Name: name, PriceRange: priceRange})
	return c.save()
}

// RemoveItem drops the line at index. An out of range index changes nothing.
func (c *Cart) RemoveItem(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.lines) {
		return nil
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return c.save()
}

func (c *Cart) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = []Line{}
	return c.save()
}

// Checkout builds the order message for number. The cart is left as is.
func (c *Cart) Checkout(number string) (Order, error) {
	lines := c.Lines()
	if len(lines) == 0 {
		return Order{}, ErrEmptyCart
	}
	msg := BuildMessage(lines)
	return Order{Message: msg, URL: WhatsAppURL(number, msg)}, nil
}

func (c *Cart) save() error {
	data, err := json.Marshal(c.lines)
	if err != nil {
		return err
	}
	err = c.store.Set(c.key, data)
	if errors.Is(err, kvstore.ErrQuotaExceeded) {
		zap.L().Warn("cart storage is full, keeping cart in memory",
			zap.String("namespace", "cart"), zap.String("key", c.key))
		c.unsaved = true
		return nil
	}
	if err == nil {
		c.unsaved = false
	}
	return errors.Wrap(err, "save cart")
}

// BuildMessage renders the fixed order template
func BuildMessage(lines []Line) string {
	var sb strings.Builder
	sb.WriteString(messageHeader)
	for _, l := range lines {
		sb.WriteString(fmt.Sprintf("• %s - %s\n", l.Name, l.PriceRange))
	}
	sb.WriteString(messageFooter)
	return sb.String()
}

// WhatsAppURL is the wa.me link that opens a chat with text prefilled
func WhatsAppURL(number, text string) string {
	return "https://wa.me/" + number + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// Manager hands out carts by id and serializes changes to the same store.
// Carts the store has no room for are kept in memory until a save succeeds.
type Manager struct {
	mu      sync.Mutex
	store   kvstore.KV
	number  string
	pending map[string]*Cart
}

func NewManager(store kvstore.KV, whatsappNumber string) *Manager {
	return &Manager{store: store, number: whatsappNumber, pending: make(map[string]*Cart)}
}

func cartKey(id string) string {
	return "cart:" + id
}

func (m *Manager) cart(id string) *Cart {
	if c, ok := m.pending[id]; ok {
		return c
	}
	return Load(m.store, cartKey(id))
}

// Lines returns the lines of cart id
func (m *Manager) Lines(id string) []Line {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart(id).Lines()
}

// Update loads cart id, runs fn and returns the resulting lines
func (m *Manager) Update(id string, fn func(c *Cart) error) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cart(id)
	err := fn(c)
	c.mu.Lock()
	unsaved := c.unsaved
	c.mu.Unlock()
	if unsaved {
		m.pending[id] = c
	} else {
		delete(m.pending, id)
	}
	return c.Lines(), err
}

func (m *Manager) Checkout(id string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart(id).Checkout(m.number)
}
