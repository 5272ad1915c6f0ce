package config

import (
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Supported datasource drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatasourceConfig describes the symbol database connection pool.
type DatasourceConfig struct {
	Driver         string
	Username       string
	Password       string
	Host           string
	Database       string
	Schema         string
	MaxConnections uint16
	MinConnections uint16
	ConnectTimeout time.Duration
	AcquireTimeout time.Duration
	IdleTimeout    time.Duration
	MaxLifetime    time.Duration
	SQLLogging     bool
	// Symbols seeds the memory driver; ids are assigned in order from 1.
	Symbols []string
}

func defaultDatasource() DatasourceConfig {
	return DatasourceConfig{
		Driver:         DriverPostgres,
		Username:       "postgres",
		Password:       "postgres",
		Host:           "127.0.0.1:5432",
		Database:       "postgres",
		Schema:         "public",
		MaxConnections: 100,
		MinConnections: 5,
		ConnectTimeout: 30 * time.Second,
		AcquireTimeout: 30 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxLifetime:    30 * time.Second,
		SQLLogging:     true,
	}
}

func applyDatasource(r *settingsReader, ds *DatasourceConfig) {
	const prefix = "application.datasource."

	r.str(prefix+"driver", &ds.Driver)
	r.str(prefix+"username", &ds.Username)
	r.str(prefix+"password", &ds.Password)
	r.str(prefix+"host", &ds.Host)
	r.str(prefix+"database", &ds.Database)
	r.str(prefix+"schema", &ds.Schema)
	r.u16(prefix+"max_connections", &ds.MaxConnections)
	r.u16(prefix+"min_connections", &ds.MinConnections)
	r.seconds(prefix+"connect_timeout", &ds.ConnectTimeout)
	r.seconds(prefix+"acquire_timeout", &ds.AcquireTimeout)
	r.seconds(prefix+"idle_timeout", &ds.IdleTimeout)
	r.seconds(prefix+"max_lifetime", &ds.MaxLifetime)
	r.boolean(prefix+"sql_logging", &ds.SQLLogging)
	r.array(prefix+"symbols", &ds.Symbols)
}

// URL returns the postgres connection URL with escaped credentials.
func (d DatasourceConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.Username, d.Password),
		Host:   d.Host,
		Path:   "/" + d.Database,
	}
	return u.String()
}

// Validate checks the datasource settings. Connection fields are only
// required for the postgres driver.
func (d DatasourceConfig) Validate() error {
	isPostgres := d.Driver == DriverPostgres
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(DriverPostgres, DriverMemory)),
		validation.Field(&d.Host, validation.When(isPostgres, validation.Required)),
		validation.Field(&d.Database, validation.When(isPostgres, validation.Required)),
		validation.Field(&d.Username, validation.When(isPostgres, validation.Required)),
		validation.Field(&d.MaxConnections, validation.When(isPostgres, validation.Required)),
		validation.Field(&d.MinConnections,
			validation.Max(d.MaxConnections).Error("must not exceed max_connections"),
		),
		validation.Field(&d.ConnectTimeout, validation.Min(time.Duration(0))),
		validation.Field(&d.AcquireTimeout, validation.Min(time.Duration(0))),
		validation.Field(&d.IdleTimeout, validation.Min(time.Duration(0))),
		validation.Field(&d.MaxLifetime, validation.Min(time.Duration(0))),
	)
}
