package model

import "time"

// StoreConfig holds the connection settings of the relational store the
// assistant reads from.
type StoreConfig struct {
	Driver string     `yaml:"driver" json:"driver"` // sqlite, postgres, mysql
	DSN    string     `yaml:"dsn" json:"dsn,omitempty"`
	Schema string     `yaml:"schema" json:"schema,omitempty"`
	Pool   PoolConfig `yaml:"pool" json:"pool"`
}

// PoolConfig controls the database connection pool behavior.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultPoolConfig returns sensible defaults for a database connection pool.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}
