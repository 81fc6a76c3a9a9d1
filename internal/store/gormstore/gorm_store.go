// Package gormstore implements crm.Store on gorm + sqlite.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shadowtrade/internal/crm"
)

type agentModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:128;not null"`
	Email     string `gorm:"size:256;uniqueIndex;not null"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (agentModel) TableName() string { return "agents" }

type customerModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	AgentID     int64  `gorm:"index;not null"`
	Name        string `gorm:"size:128;not null"`
	Email       string `gorm:"size:256;uniqueIndex;not null"`
	RiskProfile string `gorm:"size:32"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (customerModel) TableName() string { return "customers" }

type accountModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	CustomerID int64  `gorm:"index;not null"`
	Symbol     string `gorm:"size:32;index;not null"`
	Cash       float64
	Shares     int64
	AvgCost    float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (accountModel) TableName() string { return "accounts" }

type paperOrderModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	AccountID int64  `gorm:"index;not null"`
	Symbol    string `gorm:"size:32;not null"`
	Side      string `gorm:"size:8;not null"`
	Price     float64
	Quantity  int64
	PnL       float64
	Strategy  string         `gorm:"size:64"`
	Meta      datatypes.JSON `gorm:"type:json"`
	PlacedAt  time.Time      `gorm:"index"`
}

func (paperOrderModel) TableName() string { return "paper_orders" }

// GormStore implements crm.Store on a single sqlite file.
type GormStore struct {
	db *gorm.DB
}

var _ crm.Store = (*GormStore)(nil)

func New(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&agentModel{}, &customerModel{}, &accountModel{}, &paperOrderModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// WAL allows some read parallelism for HTTP while writes stay serial.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --------------------- agents ---------------------

func (s *GormStore) SaveAgent(ctx context.Context, a *crm.Agent) error {
	if a == nil {
		return fmt.Errorf("agent required")
	}
	m := agentModel{
		ID:     a.ID,
		Name:   strings.TrimSpace(a.Name),
		Email:  strings.ToLower(strings.TrimSpace(a.Email)),
		Active: a.Active,
	}
	if m.Name == "" || m.Email == "" {
		return fmt.Errorf("agent name/email required")
	}
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return err
	}
	a.ID = m.ID
	a.CreatedAt = m.CreatedAt
	a.UpdatedAt = m.UpdatedAt
	return nil
}

func (s *GormStore) GetAgent(ctx context.Context, id int64) (crm.Agent, error) {
	var m agentModel
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return crm.Agent{}, fmt.Errorf("agent %d: %w", id, crm.ErrNotFound)
		}
		return crm.Agent{}, err
	}
	return agentFromModel(m), nil
}

func (s *GormStore) ListAgents(ctx context.Context) ([]crm.Agent, error) {
	var models []agentModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]crm.Agent, 0, len(models))
	for _, m := range models {
		out = append(out, agentFromModel(m))
	}
	return out, nil
}

func (s *GormStore) DeleteAgent(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&agentModel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("agent %d: %w", id, crm.ErrNotFound)
	}
	return nil
}

func agentFromModel(m agentModel) crm.Agent {
	return crm.Agent{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// --------------------- customers ---------------------

func (s *GormStore) SaveCustomer(ctx context.Context, c *crm.Customer) error {
	if c == nil {
		return fmt.Errorf("customer required")
	}
	m := customerModel{
		ID:          c.ID,
		AgentID:     c.AgentID,
		Name:        strings.TrimSpace(c.Name),
		Email:       strings.ToLower(strings.TrimSpace(c.Email)),
		RiskProfile: strings.TrimSpace(c.RiskProfile),
	}
	if m.Name == "" || m.Email == "" {
		return fmt.Errorf("customer name/email required")
	}
	if m.AgentID > 0 {
		if _, err := s.GetAgent(ctx, m.AgentID); err != nil {
			return err
		}
	}
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return err
	}
	c.ID = m.ID
	c.CreatedAt = m.CreatedAt
	c.UpdatedAt = m.UpdatedAt
	return nil
}

func (s *GormStore) GetCustomer(ctx context.Context, id int64) (crm.Customer, error) {
	var m customerModel
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return crm.Customer{}, fmt.Errorf("customer %d: %w", id, crm.ErrNotFound)
		}
		return crm.Customer{}, err
	}
	return customerFromModel(m), nil
}

func (s *GormStore) ListCustomers(ctx context.Context, agentID int64) ([]crm.Customer, error) {
	q := s.db.WithContext(ctx).Order("id ASC")
	if agentID > 0 {
		q = q.Where("agent_id = ?", agentID)
	}
	var models []customerModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]crm.Customer, 0, len(models))
	for _, m := range models {
		out = append(out, customerFromModel(m))
	}
	return out, nil
}

func (s *GormStore) DeleteCustomer(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&customerModel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("customer %d: %w", id, crm.ErrNotFound)
	}
	return nil
}

func customerFromModel(m customerModel) crm.Customer {
	return crm.Customer{
		ID:          m.ID,
		AgentID:     m.AgentID,
		Name:        m.Name,
		Email:       m.Email,
		RiskProfile: m.RiskProfile,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// --------------------- accounts ---------------------

func (s *GormStore) SaveAccount(ctx context.Context, a *crm.Account) error {
	if a == nil {
		return fmt.Errorf("account required")
	}
	m := accountModel{
		ID:         a.ID,
		CustomerID: a.CustomerID,
		Symbol:     strings.ToUpper(strings.TrimSpace(a.Symbol)),
		Cash:       a.Cash,
		Shares:     a.Shares,
		AvgCost:    a.AvgCost,
	}
	if m.Symbol == "" {
		return fmt.Errorf("account symbol required")
	}
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return err
	}
	a.ID = m.ID
	a.CreatedAt = m.CreatedAt
	a.UpdatedAt = m.UpdatedAt
	return nil
}

func (s *GormStore) GetAccount(ctx context.Context, id int64) (crm.Account, error) {
	var m accountModel
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return crm.Account{}, fmt.Errorf("account %d: %w", id, crm.ErrNotFound)
		}
		return crm.Account{}, err
	}
	return accountFromModel(m), nil
}

func (s *GormStore) ListAccounts(ctx context.Context, customerID int64) ([]crm.Account, error) {
	q := s.db.WithContext(ctx).Order("id ASC")
	if customerID > 0 {
		q = q.Where("customer_id = ?", customerID)
	}
	var models []accountModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]crm.Account, 0, len(models))
	for _, m := range models {
		out = append(out, accountFromModel(m))
	}
	return out, nil
}

func accountFromModel(m accountModel) crm.Account {
	return crm.Account{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Symbol:     m.Symbol,
		Cash:       m.Cash,
		Shares:     m.Shares,
		AvgCost:    m.AvgCost,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// --------------------- orders ---------------------

func (s *GormStore) InsertOrder(ctx context.Context, o *crm.PaperOrder) error {
	if o == nil {
		return fmt.Errorf("order required")
	}
	if o.Account <= 0 {
		return fmt.Errorf("order account required")
	}
	placedAt := o.PlacedAt
	if placedAt.IsZero() {
		placedAt = time.Now().UTC()
	}
	m := paperOrderModel{
		AccountID: o.Account,
		Symbol:    strings.ToUpper(strings.TrimSpace(o.Symbol)),
		Side:      strings.ToUpper(strings.TrimSpace(o.Side)),
		Price:     o.Price,
		Quantity:  o.Quantity,
		PnL:       o.PnL,
		Strategy:  o.Strategy,
		PlacedAt:  placedAt,
	}
	if len(o.Meta) > 0 {
		m.Meta = datatypes.JSON(o.Meta)
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	o.ID = m.ID
	o.PlacedAt = placedAt
	return nil
}

func (s *GormStore) ListOrders(ctx context.Context, accountID int64, limit int) ([]crm.PaperOrder, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	q := s.db.WithContext(ctx).Order("placed_at DESC, id DESC").Limit(limit)
	if accountID > 0 {
		q = q.Where("account_id = ?", accountID)
	}
	var models []paperOrderModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]crm.PaperOrder, 0, len(models))
	for _, m := range models {
		out = append(out, crm.PaperOrder{
			ID:       m.ID,
			Account:  m.AccountID,
			Symbol:   m.Symbol,
			Side:     m.Side,
			Price:    m.Price,
			Quantity: m.Quantity,
			PnL:      m.PnL,
			Strategy: m.Strategy,
			Meta:     []byte(m.Meta),
			PlacedAt: m.PlacedAt,
		})
	}
	return out, nil
}
