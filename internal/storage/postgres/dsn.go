package postgres

import (
	"fmt"

	"github.com/cipherstudio/ide-backend/config"
)

// DSN returns the explicit DB_DSN when set, otherwise a key/value connection
// string built from the discrete settings. Both drivers accept either form.
func DSN(cfg *config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Name, cfg.SSLMode,
	)
	if cfg.Password != "" {
		dsn += " password=" + cfg.Password
	}
	return dsn
}
