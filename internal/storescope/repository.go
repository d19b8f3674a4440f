package storescope

import (
	"context"
	"fmt"

	"github.com/catsync/catsync/internal/platform/db"
)

// Repository loads the store topology from PostgreSQL.
type Repository struct {
	q db.Queryer
}

// NewRepository constructs Repository.
func NewRepository(q db.Queryer) *Repository {
	return &Repository{q: q}
}

// Load reads stores, groups and websites into a Catalog.
func (r *Repository) Load(ctx context.Context) (*Catalog, error) {
	rows, err := r.q.Query(ctx, `SELECT store_id, code, name, website_id, group_id FROM store`)
	if err != nil {
		return nil, fmt.Errorf("storescope: load stores: %w", err)
	}
	defer rows.Close()
	var stores []Store
	for rows.Next() {
		var s Store
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.WebsiteID, &s.GroupID); err != nil {
			return nil, fmt.Errorf("storescope: scan store: %w", err)
		}
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storescope: stores: %w", err)
	}

	grows, err := r.q.Query(ctx, `SELECT group_id, website_id, root_category_id FROM store_group`)
	if err != nil {
		return nil, fmt.Errorf("storescope: load groups: %w", err)
	}
	defer grows.Close()
	var groups []Group
	for grows.Next() {
		var g Group
		if err := grows.Scan(&g.ID, &g.WebsiteID, &g.RootCategoryID); err != nil {
			return nil, fmt.Errorf("storescope: scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := grows.Err(); err != nil {
		return nil, fmt.Errorf("storescope: groups: %w", err)
	}

	wrows, err := r.q.Query(ctx, `SELECT website_id, code, default_group_id FROM store_website`)
	if err != nil {
		return nil, fmt.Errorf("storescope: load websites: %w", err)
	}
	defer wrows.Close()
	var websites []Website
	for wrows.Next() {
		var w Website
		if err := wrows.Scan(&w.ID, &w.Code, &w.DefaultGroupID); err != nil {
			return nil, fmt.Errorf("storescope: scan website: %w", err)
		}
		websites = append(websites, w)
	}
	if err := wrows.Err(); err != nil {
		return nil, fmt.Errorf("storescope: websites: %w", err)
	}

	return NewCatalog(stores, groups, websites), nil
}
