package config

type AppConfig struct {
	Database  DatabaseConfig  `envPrefix:"DB_"`
	Migration MigrationConfig `envPrefix:"MIGRATION_"`
	Watch     WatchConfig     `envPrefix:"WATCH_"`
	Log       LogConfig       `envPrefix:"LOG_"`
}

type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"odoo"`
	Password string `env:"PASSWORD" envDefault:"odoo"`
	Name     string `env:"NAME" envDefault:"odoo"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`

	MaxOpenConns int `env:"MAX_OPEN_CONNS" envDefault:"4"`
	MaxIdleConns int `env:"MAX_IDLE_CONNS" envDefault:"2"`
}

type MigrationConfig struct {
	Module string `env:"MODULE" envDefault:"base"`

	// InstalledVersion is the module version currently recorded in the
	// database. Empty means a fresh install.
	InstalledVersion string `env:"INSTALLED_VERSION"`

	TargetVersion string `env:"TARGET_VERSION" envDefault:"16.0.1.3"`
}

type WatchConfig struct {
	Schedule string `env:"SCHEDULE" envDefault:"*/5 * * * *"`
	Port     string `env:"PORT" envDefault:"3000"`
}

type LogConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
	JSON  bool   `env:"JSON" envDefault:"false"`
}
