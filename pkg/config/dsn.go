package config

import (
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
)

// preferredDrivers is the fallback order when no usable driver name is
// configured. go-mssqldb registers both names.
var preferredDrivers = []string{"sqlserver", "mssql"}

// DSN returns the SQL Server connection URL.
func (c *DatabaseConfig) DSN() string {
	query := url.Values{}
	query.Set("database", c.Database)
	query.Set("dial timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	query.Set("TrustServerCertificate", "true")

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Server,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// ChooseDriver selects a registered database/sql driver, preferring the
// configured name. ODBC driver names from the old deployment are accepted
// in configuration but will not match a registered driver; they fall back
// to the first available SQL Server driver, and the returned warning says
// so.
func (c *DatabaseConfig) ChooseDriver() (driver string, warning string, err error) {
	registered := make(map[string]struct{})
	for _, name := range sql.Drivers() {
		registered[name] = struct{}{}
	}

	if c.Driver != "" {
		if _, ok := registered[c.Driver]; ok {
			return c.Driver, "", nil
		}
		warning = fmt.Sprintf("configured driver %q is not registered, falling back", c.Driver)
	}

	for _, name := range preferredDrivers {
		if _, ok := registered[name]; ok {
			return name, warning, nil
		}
	}
	return "", warning, fmt.Errorf("no SQL Server driver registered (have %v)", sql.Drivers())
}
