package surrealdb

import (
	"context"
	"testing"

	surreal "github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/folio/internal/common"
	tcommon "github.com/bobmcallan/folio/tests/common"
)

// testDB returns a connection to an isolated database with the folio schema
// defined.
func testDB(t *testing.T) *surreal.DB {
	t.Helper()

	db := tcommon.StartSurrealDB(t).Connect(t)
	if err := defineSchema(context.Background(), db); err != nil {
		t.Fatalf("define schema: %v", err)
	}
	return db
}

// testLogger returns a silent logger for tests.
func testLogger() *common.Logger {
	return common.NewSilentLogger()
}
