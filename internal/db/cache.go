package db

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"sqledr/internal/introspect"
)

// SchemaKey identifies one reflected table set. Store should name the
// connection (driver and DSN, or any stable label); it is compared, never
// parsed.
type SchemaKey struct {
	Store      string
	SchemaName string
	Tables     string
}

// NewSchemaKey builds a key whose table component does not depend on order.
func NewSchemaKey(store, schemaName string, tables []string) SchemaKey {
	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)
	return SchemaKey{Store: store, SchemaName: schemaName, Tables: strings.Join(sorted, ",")}
}

// SchemaCache holds reflected schemas so providers sharing a store and a
// table set reflect it once. Entries live until invalidated.
type SchemaCache struct {
	mu      sync.Mutex
	entries map[SchemaKey]introspect.Schema
}

func NewSchemaCache() *SchemaCache {
	return &SchemaCache{entries: make(map[SchemaKey]introspect.Schema)}
}

// Load returns the cached schema for key or reflects and stores it.
func (c *SchemaCache) Load(ctx context.Context, key SchemaKey, dbConn *sql.DB, d Dialect, tables []string) (introspect.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.entries[key]; ok {
		return s, nil
	}
	s, err := Reflect(ctx, dbConn, d, key.SchemaName, tables)
	if err != nil {
		return s, err
	}
	c.entries[key] = s
	return s, nil
}

// Invalidate drops every entry reflected from store, e.g. after a reconnect.
func (c *SchemaCache) Invalidate(store string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.Store == store {
			delete(c.entries, k)
		}
	}
}

// Len is the number of cached schemas.
func (c *SchemaCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
