// Package crm holds the client-facing entities of the platform: the
// agents who manage customers, the customers themselves, their paper
// accounts and the simulated orders placed on their behalf. Storage is
// behind repository interfaces so the gorm implementation stays
// swappable.
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Agent is a platform operator who manages customers.
type Agent struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Customer is an end user holding one or more paper accounts.
type Customer struct {
	ID          int64     `json:"id"`
	AgentID     int64     `json:"agent_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	RiskProfile string    `json:"risk_profile,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Account is a single-symbol paper trading account.
type Account struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Symbol     string    `json:"symbol"`
	Cash       float64   `json:"cash"`
	Shares     int64     `json:"shares"`
	AvgCost    float64   `json:"avg_cost"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PaperOrder records one simulated fill against an account.
type PaperOrder struct {
	ID       int64           `json:"id"`
	Account  int64           `json:"account_id"`
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"` // BUY or SELL
	Price    float64         `json:"price"`
	Quantity int64           `json:"quantity"`
	PnL      float64         `json:"pnl"`
	Strategy string          `json:"strategy,omitempty"`
	Meta     json.RawMessage `json:"meta,omitempty"`
	PlacedAt time.Time       `json:"placed_at"`
}

// AgentRepository persists agents.
type AgentRepository interface {
	SaveAgent(ctx context.Context, a *Agent) error
	GetAgent(ctx context.Context, id int64) (Agent, error)
	ListAgents(ctx context.Context) ([]Agent, error)
	DeleteAgent(ctx context.Context, id int64) error
}

// CustomerRepository persists customers.
type CustomerRepository interface {
	SaveCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	ListCustomers(ctx context.Context, agentID int64) ([]Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
}

// AccountRepository persists paper accounts.
type AccountRepository interface {
	SaveAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context, customerID int64) ([]Account, error)
}

// OrderRepository persists simulated fills.
type OrderRepository interface {
	InsertOrder(ctx context.Context, o *PaperOrder) error
	ListOrders(ctx context.Context, accountID int64, limit int) ([]PaperOrder, error)
}

// Store bundles all repositories behind one implementation.
type Store interface {
	AgentRepository
	CustomerRepository
	AccountRepository
	OrderRepository
	Close() error
}
