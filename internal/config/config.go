package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string `json:"port"`
	DBURL       string `json:"dbUrl"`
	AutoMigrate bool   `json:"autoMigrate"`

	// Seed-каталоги словаря (yaml). Пусто — не сидим.
	CatalogDir string `json:"catalogDir"`
}

func def() Config {
	return Config{
		Port:        "8080",
		DBURL:       "",
		AutoMigrate: false,
		CatalogDir:  "catalogs",
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

// fromFileEnv — JSON (если файл существует) + ENV overrides, без флагов.
func fromFileEnv(jsonPath string) Config {
	cfg := def()
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}
	cfg.Port = getenv("PLATFORMA_PORT", cfg.Port)
	cfg.DBURL = getenv("PLATFORMA_DB_URL", cfg.DBURL)
	cfg.AutoMigrate = getenvBool("PLATFORMA_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.CatalogDir = getenv("PLATFORMA_CATALOG_DIR", cfg.CatalogDir)
	return cfg
}

func boolish(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// load разбирает цепочку JSON → ENV → флаги. FlagSet свой, не глобальный:
// -config с другим путём перечитывает файл без повторной регистрации флагов.
func load(jsonPath string, args []string) Config {
	cfg := fromFileEnv(jsonPath)

	fs := flag.NewFlagSet("platforma", flag.ExitOnError)
	configPath := fs.String("config", jsonPath, "Path to config JSON")
	port := fs.String("port", cfg.Port, "HTTP port")
	db := fs.String("db", cfg.DBURL, "Postgres URL")
	auto := fs.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Apply DDL on start (true/false)")
	catalogs := fs.String("catalogs", cfg.CatalogDir, "Path to schema catalog directory (empty = skip seeding)")
	_ = fs.Parse(args)

	if *configPath != jsonPath {
		// другой конфиг: перечитываем файл, но явно переданные флаги
		// всё равно важнее перечитанных значений
		cfg = fromFileEnv(*configPath)
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if set["port"] {
			cfg.Port = strings.TrimSpace(*port)
		}
		if set["db"] {
			cfg.DBURL = strings.TrimSpace(*db)
		}
		if set["auto-migrate"] {
			cfg.AutoMigrate = boolish(*auto)
		}
		if set["catalogs"] {
			cfg.CatalogDir = strings.TrimSpace(*catalogs)
		}
		return cfg
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.AutoMigrate = boolish(*auto)
	cfg.CatalogDir = strings.TrimSpace(*catalogs)
	return cfg
}

// LoadWithPath читает JSON по указанному пути, потом применяет ENV и флаги.
func LoadWithPath(jsonPath string) Config {
	return load(jsonPath, os.Args[1:])
}
