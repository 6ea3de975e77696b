package main

import (
	"cmp"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"sqledr/internal/api"
	"sqledr/internal/db"
	_ "sqledr/internal/db/dialects"
	"sqledr/internal/edr"
	"sqledr/internal/logger"
	"sqledr/pkg/config"
)

var defaultPort = 8080

// poolEntry is one opened store. Pools live for the life of the process.
type poolEntry struct {
	store   string
	db      *sql.DB
	dialect db.Dialect
}

func main() {
	// flags
	cfgPath := flag.String("config", filepath.Join(".", "configs", "example.yaml"), "path to config YAML")
	port := flag.Int("port", 0, "http port (overrides config, default"+fmt.Sprintf(" %d)", defaultPort))
	timeout := flag.Int("timeout", 10, "db connect timeout seconds")
	flag.Parse()

	logger.Info("config file %s", *cfgPath)
	appCfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		logger.Fatal("error reading config file: %v", err)
	}
	logger.SetLevel(appCfg.Logging.Level)
	logger.Debug("registered dialects: %v", db.RegisteredDialects())

	// one pool per distinct store, shared by the collections on it
	pools := map[string]poolEntry{}
	cache := db.NewSchemaCache()
	var collections []api.Collection
	for _, col := range appCfg.Collections {
		driver, dsn, err := config.BuildDriverAndDSN(appCfg.DatabaseFor(col))
		if err != nil {
			logger.Fatal("collection %s: error building DSN: %v", col.ID, err)
		}
		key := driver + "|" + dsn
		entry, ok := pools[key]
		if !ok {
			dbConn, err := db.Open(driver, dsn, *timeout)
			if err != nil {
				logger.Fatal("collection %s: %v", col.ID, err)
			}
			d, err := db.Lookup(driver)
			if err != nil {
				logger.Fatal("collection %s: %v", col.ID, err)
			}
			entry = poolEntry{store: key, db: dbConn, dialect: d}
			pools[key] = entry
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
		p, err := edr.New(ctx, entry.db, entry.dialect, col.Provider, edr.WithSchemaCache(cache, entry.store))
		cancel()
		if err != nil {
			logger.Fatal("collection %s: %v", col.ID, err)
		}
		logger.Info("collection %s: serving table %s (%s)", col.ID, col.Provider.Table, driver)
		collections = append(collections, api.Collection{
			ID:          col.ID,
			Title:       cmp.Or(col.Title, col.ID),
			Description: col.Description,
			Provider:    p,
		})
	}

	*port = cmp.Or(*port, appCfg.Server.Port, defaultPort)

	// HTTP server
	addr := fmt.Sprintf(":%d", *port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(collections),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	logger.Info("listening on %s, %d collections", addr, len(collections))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("%v", err)
	}
}
