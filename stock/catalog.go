package stock

import (
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mellovesfromage/warehouse-system/core"
)

// Catalog holds warehouses and products. Warehouses are seeded at startup;
// products are administered at runtime.
type Catalog struct {
	mu         sync.RWMutex
	warehouses map[string]Warehouse
	products   map[string]Product
	skus       map[string]string // normalized SKU -> product id
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		warehouses: make(map[string]Warehouse),
		products:   make(map[string]Product),
		skus:       make(map[string]string),
	}
}

// AddWarehouse registers a warehouse. Ids must be unique.
func (c *Catalog) AddWarehouse(w Warehouse) error {
	if strings.TrimSpace(w.ID) == "" {
		return core.Invalid("id", "is required")
	}
	if strings.TrimSpace(w.Name) == "" {
		return core.Invalid("name", "is required")
	}
	if w.Kind != KindCentral && w.Kind != KindSub {
		return core.Invalid("kind", "must be central or sub")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.warehouses[w.ID]; exists {
		return core.Invalid("id", "warehouse "+w.ID+" already exists")
	}
	c.warehouses[w.ID] = w
	return nil
}

// Warehouse returns a warehouse by id.
func (c *Catalog) Warehouse(id string) (Warehouse, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.warehouses[id]
	if !ok {
		return Warehouse{}, core.NotFound("warehouse", id)
	}
	return w, nil
}

// Warehouses returns all warehouses ordered by id.
func (c *Catalog) Warehouses() []Warehouse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Warehouse, 0, len(c.warehouses))
	for _, w := range c.warehouses {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

// ProductInput creates or updates a product. An empty ID creates a new one.
type ProductInput struct {
	ID        string
	Name      string
	SKU       string
	UnitPrice decimal.Decimal
}

// UpsertProduct creates or updates a product. Only administrators may
// change the catalog; SKUs are unique ignoring case.
func (c *Catalog) UpsertProduct(in ProductInput, actor core.Actor) (Product, error) {
	if !actor.Admin {
		return Product{}, &core.UnauthorizedError{ActorID: actor.Ref.ID, Action: "edit products", Need: "admin"}
	}
	name := strings.TrimSpace(in.Name)
	sku := strings.TrimSpace(in.SKU)
	if name == "" {
		return Product{}, core.Invalid("name", "is required")
	}
	if sku == "" {
		return Product{}, core.Invalid("sku", "is required")
	}
	if in.UnitPrice.IsNegative() {
		return Product{}, core.Invalid("unit_price", "must not be negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := in.ID
	if id == "" {
		id = core.NewID()
	}
	norm := strings.ToUpper(sku)
	if owner, taken := c.skus[norm]; taken && owner != id {
		return Product{}, core.Invalid("sku", "already used by product "+owner)
	}
	if prev, exists := c.products[id]; exists {
		delete(c.skus, strings.ToUpper(prev.SKU))
	}

	p := Product{ID: id, Name: name, SKU: sku, UnitPrice: in.UnitPrice}
	c.products[id] = p
	c.skus[norm] = id
	return p, nil
}

// Product returns a product by id.
func (c *Catalog) Product(id string) (Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return Product{}, core.NotFound("product", id)
	}
	return p, nil
}

// Products returns all products ordered by id.
func (c *Catalog) Products() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

// lessID orders numeric ids numerically ("2" < "10") and everything else
// lexically.
func lessID(a, b string) bool {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		return len(a) < len(b)
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
