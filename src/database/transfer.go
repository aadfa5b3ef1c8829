// Package database moves the Rivendell control database in and out of
// compressed dump files and queries the facts recorded in manifests.
package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"rdbackup/src/config"
	"rdbackup/src/runner"
	"rdbackup/src/util/progress"
)

// TransferError reports a failed dump or load step.
type TransferError struct {
	Op  string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Transfer drives mysqldump and mysql.
type Transfer struct {
	Runner runner.Runner
	MySQL  config.MySQL
	Log    logrus.FieldLogger
}

func (t *Transfer) clientArgs() []string {
	return []string{"-h", t.MySQL.Hostname, "-u", t.MySQL.Loginname}
}

func (t *Transfer) env() []string {
	return []string{"MYSQL_PWD=" + t.MySQL.Password}
}

// Dump exports the database into a gzip file at dest. The dump is written
// to dest.partial and renamed only once mysqldump succeeded.
func (t *Transfer) Dump(ctx context.Context, dest string) error {
	partial := dest + ".partial"
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return &TransferError{Op: "dump", Err: err}
	}
	fail := func(err error) error {
		f.Close()
		os.Remove(partial)
		return &TransferError{Op: "dump", Err: err}
	}

	zw := gzip.NewWriter(f)
	counter := progress.NewCounter(t.Log, "dump")
	args := append(t.clientArgs(), t.MySQL.Database)
	if _, err := t.Runner.Run(ctx, runner.Command{
		Name:   "mysqldump",
		Args:   args,
		Env:    t.env(),
		Stdout: counter.Writer(zw),
	}); err != nil {
		return fail(err)
	}
	if err := zw.Close(); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(partial)
		return &TransferError{Op: "dump", Err: err}
	}
	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return &TransferError{Op: "dump", Err: err}
	}
	if t.Log != nil {
		t.Log.Infof("database %s dumped to %s (%s uncompressed)", t.MySQL.Database, dest, counter.Human())
	}
	return nil
}

// Load replaces the live database with the dump at src: the database is
// dropped, recreated empty and the dump is imported with the sandbox marker
// line removed.
func (t *Transfer) Load(ctx context.Context, src string) error {
	// Make sure the dump is readable before anything is dropped.
	f, err := os.Open(src)
	if err != nil {
		return &TransferError{Op: "load", Err: err}
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return &TransferError{Op: "load", Err: fmt.Errorf("%s: %w", src, err)}
	}
	defer zr.Close()

	ident := quoteIdent(t.MySQL.Database)
	for _, stmt := range []string{
		"DROP DATABASE IF EXISTS " + ident,
		"CREATE DATABASE " + ident,
	} {
		args := append(t.clientArgs(), "-e", stmt)
		if _, err := t.Runner.Run(ctx, runner.Command{Name: "mysql", Args: args, Env: t.env()}); err != nil {
			return &TransferError{Op: "load", Err: err}
		}
	}

	counter := progress.NewCounter(t.Log, "load")
	args := append(t.clientArgs(), t.MySQL.Database)
	if _, err := t.Runner.Run(ctx, runner.Command{
		Name:  "mysql",
		Args:  args,
		Env:   t.env(),
		Stdin: StripSandbox(counter.Reader(zr)),
	}); err != nil {
		return &TransferError{Op: "load", Err: err}
	}
	if t.Log != nil {
		t.Log.Infof("database %s loaded from %s (%s)", t.MySQL.Database, src, counter.Human())
	}
	return nil
}

// quoteIdent quotes a MySQL identifier with backticks.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// CheckDump verifies that path is a readable gzip stream.
func CheckDump(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer zr.Close()
	buf := make([]byte, 1)
	if _, err := zr.Read(buf); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
