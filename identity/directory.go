// Package identity resolves request actors to names and role flags.
//
// It is a static, in-memory directory seeded at startup. Authentication
// lives elsewhere; callers pass an already-trusted user id.
package identity

import (
	"sort"
	"strings"
	"sync"

	"github.com/mellovesfromage/warehouse-system/core"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleWarehouse Role = "warehouse"
	RoleFinance   Role = "finance"
)

// User is a directory record.
type User struct {
	ID              string   `json:"id"`
	Username        string   `json:"username"`
	Name            string   `json:"name"`
	Role            Role     `json:"role"`
	FinanceDelegate bool     `json:"finance_delegate"`
	WarehouseAccess []string `json:"warehouse_access,omitempty"`
}

// Actor converts the record to the core's actor.
func (u User) Actor() core.Actor {
	return core.Actor{
		Ref:             core.ActorRef{ID: u.ID, Name: u.Name},
		Admin:           u.Role == RoleAdmin,
		FinanceDelegate: u.FinanceDelegate,
	}
}

type Directory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewDirectory builds a directory from users. Records without an id or
// name are skipped.
func NewDirectory(users ...User) *Directory {
	d := &Directory{users: make(map[string]User, len(users))}
	for _, u := range users {
		_ = d.Add(u)
	}
	return d
}

// DefaultUsers are the accounts a fresh installation starts with.
func DefaultUsers() []User {
	return []User{
		{ID: "1", Username: "admin", Name: "Admin User", Role: RoleAdmin, FinanceDelegate: true},
		{ID: "2", Username: "wh1", Name: "Warehouse 1 Manager", Role: RoleWarehouse, WarehouseAccess: []string{"1"}},
		{ID: "3", Username: "finance", Name: "Finance Admin", Role: RoleFinance, FinanceDelegate: true},
	}
}

// Add inserts or replaces a user.
func (d *Directory) Add(u User) error {
	if strings.TrimSpace(u.ID) == "" {
		return core.Invalid("id", "is required")
	}
	if strings.TrimSpace(u.Name) == "" {
		return core.Invalid("name", "is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
	return nil
}

func (d *Directory) User(id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return User{}, core.NotFound("user", id)
	}
	return u, nil
}

// Resolve returns the actor for id, or NotFound.
func (d *Directory) Resolve(id string) (core.Actor, error) {
	u, err := d.User(id)
	if err != nil {
		return core.Actor{}, err
	}
	return u.Actor(), nil
}

// FinanceDelegates lists users who can be handed an approved expense.
func (d *Directory) FinanceDelegates() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []User
	for _, u := range d.users {
		if u.FinanceDelegate {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Users returns every user ordered by id.
func (d *Directory) Users() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
