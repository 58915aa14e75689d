package config

import (
	"cmp"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Dialect names a supported database engine.
type Dialect string

const (
	SQLite    Dialect = "sqlite"
	Postgres  Dialect = "postgres"
	MySQL     Dialect = "mysql"
	SQLServer Dialect = "sqlserver"
	Oracle    Dialect = "oracle"
)

const (
	DefaultTimeoutSec = 10
	DefaultWorkers    = 4
)

var defaultPorts = map[Dialect]int{
	Postgres:  5432,
	MySQL:     3306,
	SQLServer: 1433,
	Oracle:    1521,
}

// Descriptor holds the parameters needed to reach a live database.
type Descriptor struct {
	DBType            string            `yaml:"db_type" json:"db_type"`
	Host              string            `yaml:"host" json:"host"`
	Port              int               `yaml:"port" json:"port"`
	Username          string            `yaml:"username" json:"username"`
	Password          string            `yaml:"password" json:"password"`
	Database          string            `yaml:"database" json:"database"` // file path for sqlite
	ConnectionTimeout int               `yaml:"connection_timeout" json:"connection_timeout"`
	AdditionalParams  map[string]string `yaml:"additional_params" json:"additional_params,omitempty"`
}

// Dialect returns the canonical dialect for DBType.
func (d Descriptor) Dialect() Dialect {
	return ParseDialect(d.DBType)
}

// PortOrDefault returns Port, or the dialect's well-known port when unset.
func (d Descriptor) PortOrDefault() int {
	return cmp.Or(d.Port, defaultPorts[d.Dialect()])
}

// Timeout returns the connection timeout, defaulting to DefaultTimeoutSec.
func (d Descriptor) Timeout() time.Duration {
	sec := d.ConnectionTimeout
	if sec <= 0 {
		sec = DefaultTimeoutSec
	}
	return time.Duration(sec) * time.Second
}

// Param returns an additional parameter or fallback.
func (d Descriptor) Param(key, fallback string) string {
	if v, ok := d.AdditionalParams[key]; ok && v != "" {
		return v
	}
	return fallback
}

// String renders the descriptor without the password.
func (d Descriptor) String() string {
	pw := ""
	if d.Password != "" {
		pw = "****"
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s", d.Dialect(), d.Username, pw, d.Host, d.PortOrDefault(), d.Database)
}

// ExtractionConfig bounds the catalog load of a single extraction.
type ExtractionConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// InferenceConfig drives the naming-convention heuristic.
type InferenceConfig struct {
	ForeignKeySuffix string `yaml:"foreign_key_suffix" json:"foreign_key_suffix"`
	PluralSuffix     string `yaml:"plural_suffix" json:"plural_suffix"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

type AppConfig struct {
	Database   Descriptor       `yaml:"database" json:"database"`
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction"`
	Inference  InferenceConfig  `yaml:"inference" json:"inference"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

// Default returns a config with every default applied.
func Default() AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	return cfg
}

// LoadFile loads YAML config from path and fills in defaults.
func LoadFile(path string) (AppConfig, error) {
	var cfg AppConfig
	f, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, err
	}
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return AppConfig{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Extraction.Workers <= 0 {
		c.Extraction.Workers = DefaultWorkers
	}
	c.Inference.ForeignKeySuffix = cmp.Or(c.Inference.ForeignKeySuffix, "_id")
	c.Inference.PluralSuffix = cmp.Or(c.Inference.PluralSuffix, "s")
	c.Log.Level = cmp.Or(c.Log.Level, "info")
	if c.Database.ConnectionTimeout <= 0 {
		c.Database.ConnectionTimeout = DefaultTimeoutSec
	}
}

// ApplyEnv loads envFiles (missing files are ignored) and fills empty
// database fields from SCHEMAEXTRACT_DB_* variables. YAML values win.
func (c *AppConfig) ApplyEnv(envFiles ...string) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
	db := &c.Database
	db.DBType = cmp.Or(db.DBType, os.Getenv("SCHEMAEXTRACT_DB_TYPE"))
	db.Host = cmp.Or(db.Host, os.Getenv("SCHEMAEXTRACT_DB_HOST"))
	db.Username = cmp.Or(db.Username, os.Getenv("SCHEMAEXTRACT_DB_USER"))
	db.Password = cmp.Or(db.Password, os.Getenv("SCHEMAEXTRACT_DB_PASSWORD"))
	db.Database = cmp.Or(db.Database, os.Getenv("SCHEMAEXTRACT_DB_NAME"))
	if db.Port == 0 {
		if p, err := strconv.Atoi(os.Getenv("SCHEMAEXTRACT_DB_PORT")); err == nil {
			db.Port = p
		}
	}
	c.Log.Level = cmp.Or(os.Getenv("SCHEMAEXTRACT_LOG_LEVEL"), c.Log.Level)
}

// ParseDialect maps common aliases to canonical dialect names.
func ParseDialect(d string) Dialect {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "postgresql", "pg", "postgres", "pgx":
		return Postgres
	case "mysql", "mariadb":
		return MySQL
	case "sqlite", "sqlite3":
		return SQLite
	case "mssql", "sqlserver":
		return SQLServer
	case "godror", "oracle":
		return Oracle
	default:
		return Dialect(strings.ToLower(strings.TrimSpace(d)))
	}
}
