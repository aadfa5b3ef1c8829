package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"

	"github.com/go-sql-driver/mysql"

	"rdbackup/src/config"
)

// Inspector reads the facts a manifest records from the live database.
type Inspector struct {
	DB *sql.DB
}

// SocketPaths are the server socket locations tried, in order, when the
// configured host is localhost. The mysql clients do the same.
var SocketPaths = []string{
	"/run/mysqld/mysqld.sock",
	"/var/run/mysqld/mysqld.sock",
	"/var/lib/mysql/mysql.sock",
	"/tmp/mysql.sock",
}

// DSN builds the driver connection string for cfg. localhost goes through
// the server socket when one is found, anything else over TCP.
func DSN(cfg config.MySQL) string {
	c := mysql.NewConfig()
	c.User = cfg.Loginname
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = cfg.Hostname
	if _, _, err := net.SplitHostPort(cfg.Hostname); err != nil {
		c.Addr = net.JoinHostPort(cfg.Hostname, "3306")
	}
	if cfg.Hostname == "localhost" {
		if sock := findSocket(); sock != "" {
			c.Net = "unix"
			c.Addr = sock
		}
	}
	c.DBName = cfg.Database
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

func findSocket() string {
	for _, p := range SocketPaths {
		if fi, err := os.Stat(p); err == nil && fi.Mode()&os.ModeSocket != 0 {
			return p
		}
	}
	return ""
}

// Open connects to the control database. The connection is checked lazily
// by the first query.
func Open(cfg config.MySQL) (*Inspector, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Inspector{DB: db}, nil
}

// RealmName returns SYSTEM.REALM_NAME.
func (i *Inspector) RealmName(ctx context.Context) (string, error) {
	var name sql.NullString
	if err := i.DB.QueryRowContext(ctx, "SELECT `REALM_NAME` FROM `SYSTEM`").Scan(&name); err != nil {
		return "", fmt.Errorf("query realm name: %w", err)
	}
	return name.String, nil
}

// SchemaVersion returns VERSION.DB.
func (i *Inspector) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := i.DB.QueryRowContext(ctx, "SELECT `DB` FROM `VERSION`").Scan(&v); err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	return v, nil
}

func (i *Inspector) Close() error {
	return i.DB.Close()
}
