package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Type         string `yaml:"type" json:"type"`
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password" json:"password"`
	DatabaseName string `yaml:"database_name" json:"database_name"`
	DSN          string `yaml:"dsn" json:"dsn"` // optional explicit DSN
}

type ServerConfig struct {
	Port int `yaml:"port" json:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

type AppConfig struct {
	Database    DBConfig           `yaml:"database" json:"database"`
	Server      ServerConfig       `yaml:"server" json:"server"`
	Logging     LoggingConfig      `yaml:"logging" json:"logging"`
	Collections []CollectionConfig `yaml:"collections" json:"collections"`
}

// CollectionConfig publishes one EDR provider under an id.
type CollectionConfig struct {
	ID          string         `yaml:"id" json:"id"`
	Title       string         `yaml:"title" json:"title"`
	Description string         `yaml:"description" json:"description"`
	Database    *DBConfig      `yaml:"database" json:"database,omitempty"` // falls back to AppConfig.Database
	Provider    ProviderConfig `yaml:"provider" json:"provider"`
}

// ProviderConfig describes the observation table, its EDR roles and the
// external tables joined onto it.
type ProviderConfig struct {
	Table          string         `yaml:"table" json:"table"`
	Schema         string         `yaml:"schema" json:"schema"`
	IDField        string         `yaml:"id_field" json:"id_field"`
	GeomField      string         `yaml:"geom_field" json:"geom_field"`
	TimeField      string         `yaml:"time_field" json:"time_field"`
	EDRFields      EDRFields      `yaml:"edr_fields" json:"edr_fields"`
	ExternalTables ExternalTables `yaml:"external_tables" json:"external_tables"`
}

// EDRFields maps the EDR roles to qualified paths. An empty string leaves
// the role unset.
type EDRFields struct {
	LocationField string `yaml:"location_field" json:"location_field"`
	ResultField   string `yaml:"result_field" json:"result_field"`
	ParameterID   string `yaml:"parameter_id" json:"parameter_id"`
	ParameterName string `yaml:"parameter_name" json:"parameter_name"`
	ParameterUnit string `yaml:"parameter_unit" json:"parameter_unit"`
}

// ExternalTable joins Name onto the primary table with Foreign = Name.Remote.
type ExternalTable struct {
	Name    string `yaml:"-" json:"name"`
	Foreign string `yaml:"foreign" json:"foreign"`
	Remote  string `yaml:"remote" json:"remote"`
}

// ExternalTables keeps the order in which tables appear in the YAML mapping,
// which is also the SQL join order.
type ExternalTables []ExternalTable

const DefaultGeomField = "geom"

// DefaultEDRFields returns the role names used when edr_fields omits them.
func DefaultEDRFields() EDRFields {
	return EDRFields{
		LocationField: "monitoring_location_id",
		ResultField:   "value",
		ParameterID:   "parameter_id",
		ParameterName: "parameter_name",
		ParameterUnit: "parameter_unit",
	}
}

// DefaultProviderConfig returns a provider config with every default applied.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		GeomField: DefaultGeomField,
		EDRFields: DefaultEDRFields(),
	}
}

func (f *EDRFields) UnmarshalYAML(node *yaml.Node) error {
	type plain EDRFields
	out := plain(DefaultEDRFields())
	if err := node.Decode(&out); err != nil {
		return err
	}
	*f = EDRFields(out)
	return nil
}

func (p *ProviderConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain ProviderConfig
	out := plain(DefaultProviderConfig())
	if err := node.Decode(&out); err != nil {
		return err
	}
	*p = ProviderConfig(out)
	return nil
}

func (e *ExternalTables) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("external_tables: line %d: expected a mapping of table name to join config", node.Line)
	}
	tables := make(ExternalTables, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var ext ExternalTable
		if err := node.Content[i+1].Decode(&ext); err != nil {
			return fmt.Errorf("external_tables.%s: %w", node.Content[i].Value, err)
		}
		ext.Name = node.Content[i].Value
		tables = append(tables, ext)
	}
	*e = tables
	return nil
}

// Validate reports configuration that can be rejected without a store.
func (p ProviderConfig) Validate() error {
	if strings.TrimSpace(p.Table) == "" {
		return fmt.Errorf("provider: table is required")
	}
	if strings.TrimSpace(p.TimeField) == "" {
		return fmt.Errorf("provider %s: time_field is required", p.Table)
	}
	if p.EDRFields.LocationField == "" {
		return fmt.Errorf("provider %s: edr_fields.location_field is required", p.Table)
	}
	if p.EDRFields.ResultField == "" {
		return fmt.Errorf("provider %s: edr_fields.result_field is required", p.Table)
	}
	for _, ext := range p.ExternalTables {
		if ext.Foreign == "" || ext.Remote == "" {
			return fmt.Errorf("provider %s: external table %s needs both foreign and remote", p.Table, ext.Name)
		}
	}
	return nil
}

// DatabaseFor returns the collection's own database or the shared one.
func (c AppConfig) DatabaseFor(col CollectionConfig) DBConfig {
	if col.Database != nil {
		return *col.Database
	}
	return c.Database
}

// LoadFile loads YAML config from path.
func LoadFile(path string) (AppConfig, error) {
	var cfg AppConfig
	f, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return AppConfig{}, err
	}
	seen := make(map[string]bool, len(cfg.Collections))
	for _, col := range cfg.Collections {
		if col.ID == "" {
			return AppConfig{}, fmt.Errorf("collection for table %q has no id", col.Provider.Table)
		}
		if seen[col.ID] {
			return AppConfig{}, fmt.Errorf("duplicate collection id %q", col.ID)
		}
		seen[col.ID] = true
		if err := col.Provider.Validate(); err != nil {
			return AppConfig{}, fmt.Errorf("collection %s: %w", col.ID, err)
		}
	}
	return cfg, nil
}

// NormalizeDriver maps common aliases to canonical keys (keeps backwards compat).
func NormalizeDriver(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "postgresql", "pg", "postgres", "postgis":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	case "mssql", "sqlserver":
		return "sqlserver"
	case "godror", "oracle":
		return "godror"
	default:
		return strings.ToLower(d)
	}
}

// BuildDriverAndDSN produces a driver name and DSN string for supported DB types.
func BuildDriverAndDSN(db DBConfig) (driver string, dsn string, err error) {
	// If explicit DSN provided, user must also set Type to choose driver or we guess
	t := NormalizeDriver(db.Type)

	if db.DSN != "" {
		return t, db.DSN, nil
	}

	switch t {
	case "postgres":
		driver = "postgres"
		// simple URL form
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	case "mysql":
		driver = "mysql"
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	case "sqlite":
		driver = "sqlite"
		if db.DatabaseName == "" {
			return "", "", fmt.Errorf("sqlite needs a file path in database_name")
		}
		dsn = fmt.Sprintf("file:%s?mode=ro", db.DatabaseName)
	case "sqlserver":
		driver = "sqlserver"
		dsn = fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	case "godror":
		driver = "godror"
		// simple EZCONNECT style; may need adjustments per environment
		dsn = fmt.Sprintf("%s/%s@%s:%d/%s",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	default:
		err = fmt.Errorf("unsupported database type: %s", db.Type)
	}
	return
}
