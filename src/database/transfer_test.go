package database_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"rdbackup/src/config"
	"rdbackup/src/database"
	"rdbackup/src/logging"
	"rdbackup/src/runner"
	"rdbackup/src/runner/runnertest"
)

var testMySQL = config.MySQL{Hostname: "db.example", Loginname: "rduser", Password: "s3cr;t", Database: "Rivendell"}

func gunzipFile(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDump_WritesCompressedOutput(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "db.sql.gz")
	f := runnertest.New().On("mysqldump", runnertest.Response{Stdout: "CREATE TABLE `SYSTEM` (...);\n"})
	tr := &database.Transfer{Runner: f, MySQL: testMySQL, Log: logging.Discard()}

	if err := tr.Dump(context.Background(), dest); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if got := gunzipFile(t, dest); got != "CREATE TABLE `SYSTEM` (...);\n" {
		t.Fatalf("dump content = %q", got)
	}
	if len(f.Calls) != 1 {
		t.Fatalf("calls = %v", f.Lines())
	}
	c := f.Calls[0]
	if c.Line() != "mysqldump -h db.example -u rduser Rivendell" {
		t.Fatalf("command = %q", c.Line())
	}
	if strings.Contains(c.Line(), "s3cr;t") {
		t.Fatal("password leaked into argv")
	}
	if len(c.Env) != 1 || c.Env[0] != "MYSQL_PWD=s3cr;t" {
		t.Fatalf("env = %v", c.Env)
	}
	if _, err := os.Stat(dest + ".partial"); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("partial file left behind")
	}
}

func TestDump_FailureIsReported(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "db.sql.gz")
	if err := os.WriteFile(dest, []byte("previous"), 0o600); err != nil {
		t.Fatal(err)
	}
	f := runnertest.New().On("mysqldump", runnertest.Response{ExitCode: 2, Stderr: "Access denied"})
	tr := &database.Transfer{Runner: f, MySQL: testMySQL, Log: logging.Discard()}

	err := tr.Dump(context.Background(), dest)
	var te *database.TransferError
	if !errors.As(err, &te) || te.Op != "dump" {
		t.Fatalf("expected dump TransferError, got %v", err)
	}
	if code, ok := runner.ExitCode(err); !ok || code != 2 {
		t.Fatalf("exit code not carried: %v", err)
	}
	if _, err := os.Stat(dest + ".partial"); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("partial file left behind")
	}
	if b, _ := os.ReadFile(dest); string(b) != "previous" {
		t.Fatal("existing dump must not be replaced by a failed one")
	}
}

func TestLoad_DropCreateImport(t *testing.T) {
	src := filepath.Join(t.TempDir(), "db.sql.gz")
	writeGzip(t, src, "/*M!999999\\- enable the sandbox mode */ \n-- MariaDB dump\nINSERT INTO `SYSTEM` VALUES (1);\n")
	f := runnertest.New()
	tr := &database.Transfer{Runner: f, MySQL: testMySQL, Log: logging.Discard()}

	if err := tr.Load(context.Background(), src); err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{
		"mysql -h db.example -u rduser -e DROP DATABASE IF EXISTS `Rivendell`",
		"mysql -h db.example -u rduser -e CREATE DATABASE `Rivendell`",
		"mysql -h db.example -u rduser Rivendell",
	}
	got := f.Lines()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("calls:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if stdin := f.Calls[2].Stdin; stdin != "-- MariaDB dump\nINSERT INTO `SYSTEM` VALUES (1);\n" {
		t.Fatalf("import stdin = %q", stdin)
	}
}

func TestLoad_MissingDumpTouchesNothing(t *testing.T) {
	f := runnertest.New()
	tr := &database.Transfer{Runner: f, MySQL: testMySQL, Log: logging.Discard()}
	err := tr.Load(context.Background(), filepath.Join(t.TempDir(), "db.sql.gz"))
	var te *database.TransferError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransferError, got %v", err)
	}
	if len(f.Calls) != 0 {
		t.Fatalf("no database command may run: %v", f.Lines())
	}
}

func TestLoad_CorruptDumpTouchesNothing(t *testing.T) {
	src := filepath.Join(t.TempDir(), "db.sql.gz")
	if err := os.WriteFile(src, []byte("not gzip"), 0o600); err != nil {
		t.Fatal(err)
	}
	f := runnertest.New()
	tr := &database.Transfer{Runner: f, MySQL: testMySQL, Log: logging.Discard()}
	if err := tr.Load(context.Background(), src); err == nil {
		t.Fatal("expected error")
	}
	if len(f.Calls) != 0 {
		t.Fatalf("no database command may run: %v", f.Lines())
	}
}

func TestLoad_DropFailureStops(t *testing.T) {
	src := filepath.Join(t.TempDir(), "db.sql.gz")
	writeGzip(t, src, "SELECT 1;\n")
	f := runnertest.New().On("mysql -h db.example -u rduser -e DROP", runnertest.Response{ExitCode: 1})
	tr := &database.Transfer{Runner: f, MySQL: testMySQL, Log: logging.Discard()}
	if err := tr.Load(context.Background(), src); err == nil {
		t.Fatal("expected error")
	}
	if len(f.Calls) != 1 {
		t.Fatalf("load must stop after failed drop: %v", f.Lines())
	}
}

func TestCheckDump(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.sql.gz")
	writeGzip(t, good, "SELECT 1;\n")
	if err := database.CheckDump(good); err != nil {
		t.Fatalf("good dump: %v", err)
	}
	bad := filepath.Join(dir, "bad.sql.gz")
	if err := os.WriteFile(bad, []byte("plain"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := database.CheckDump(bad); err == nil {
		t.Fatal("expected error for non-gzip file")
	}
	if err := database.CheckDump(filepath.Join(dir, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}
