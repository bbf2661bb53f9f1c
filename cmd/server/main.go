package main

import (
	"context"
	"log"
	"os"
	"time"

	"platforma/internal/api"
	"platforma/internal/config"
	"platforma/internal/dynquery"
	"platforma/internal/pg"
	"platforma/internal/records"
	"platforma/internal/schema"
)

func main() {
	cfg := config.LoadWithPath("config.json")
	if cfg.DBURL == "" {
		log.Fatal("Postgres URL is required (-db / PLATFORMA_DB_URL)")
	}

	db, err := pg.Open(cfg.DBURL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}

	if cfg.AutoMigrate {
		if err := pg.Migrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	dict := schema.NewDictionary(db)

	// Seed словаря из yaml-каталогов (идемпотентно)
	if cfg.CatalogDir != "" {
		if st, err := os.Stat(cfg.CatalogDir); err == nil && st.IsDir() {
			cats, err := schema.LoadCatalogDir(cfg.CatalogDir)
			if err != nil {
				log.Fatalf("catalogs: %v", err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if err := dict.Seed(ctx, cats); err != nil {
				cancel()
				log.Fatalf("seed: %v", err)
			}
			cancel()
			log.Printf("seeded %d catalog(s) from %s", len(cats), cfg.CatalogDir)
		}
	}

	deps := api.Deps{
		Engine: dynquery.NewEngine(db, dict),
		Store:  records.NewStore(db, dict),
		Dict:   dict,
	}

	log.Printf("platforma listening on :%s", cfg.Port)
	if err := api.RunServer(":"+cfg.Port, deps); err != nil {
		log.Fatalf("server: %v", err)
	}
}
