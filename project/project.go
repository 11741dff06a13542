// Package project is the narrow view the proxy has of the tenant registry:
// a project id either resolves to an existing tenant or it does not.
package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound means the project id does not resolve to a tenant.
var ErrNotFound = errors.New("project not found")

// Registry resolves project ids.
type Registry interface {
	Resolve(ctx context.Context, id string) error
}

type projectRow struct {
	ID          string `gorm:"primaryKey"`
	ProjectName string
	UsersEmail  string // JSON array of member emails
	CreatedAt   time.Time
}

func (projectRow) TableName() string { return "customer_projects" }

// GormRegistry implements Registry on the customer_projects table.
type GormRegistry struct {
	db *gorm.DB
}

// NewGormRegistry migrates the projects table and returns the registry.
func NewGormRegistry(db *gorm.DB) (*GormRegistry, error) {
	if err := db.AutoMigrate(&projectRow{}); err != nil {
		return nil, fmt.Errorf("fail to migrate projects table: %w", err)
	}
	return &GormRegistry{db: db}, nil
}

// Resolve implements Registry
func (r *GormRegistry) Resolve(ctx context.Context, id string) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&projectRow{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return fmt.Errorf("fail to query project %s: %w", id, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// StaticRegistry resolves a fixed id set. An empty set resolves everything,
// which is the single-tenant deployment mode.
type StaticRegistry struct {
	ids map[string]struct{}
}

// NewStaticRegistry creates a registry over the given ids.
func NewStaticRegistry(ids ...string) *StaticRegistry {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &StaticRegistry{ids: set}
}

// Resolve implements Registry
func (r *StaticRegistry) Resolve(ctx context.Context, id string) error {
	if len(r.ids) == 0 {
		return nil
	}
	if _, ok := r.ids[id]; !ok {
		return ErrNotFound
	}
	return nil
}
