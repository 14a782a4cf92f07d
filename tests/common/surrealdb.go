// Package common holds fixtures shared by folio's integration tests.
package common

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	surreal "github.com/surrealdb/surrealdb.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultSurrealImage = "surrealdb/surrealdb:v3.0.0"
	surrealUser         = "root"
	surrealPass         = "root"

	// TestNamespace is the namespace every test database lives in.
	TestNamespace = "folio_test"
)

var (
	surrealOnce      sync.Once
	surrealContainer *SurrealDBContainer
	surrealError     error
	dbSeq            atomic.Int64
)

// SurrealDBContainer wraps a testcontainers SurrealDB instance.
type SurrealDBContainer struct {
	container testcontainers.Container
	address   string
}

// StartSurrealDB starts one SurrealDB container per test process.
// FOLIO_TEST_SURREALDB_ADDRESS points tests at an existing server instead,
// and FOLIO_TEST_SURREALDB_IMAGE overrides the container image.
func StartSurrealDB(t *testing.T) *SurrealDBContainer {
	t.Helper()

	surrealOnce.Do(func() {
		if addr := os.Getenv("FOLIO_TEST_SURREALDB_ADDRESS"); addr != "" {
			surrealContainer = &SurrealDBContainer{address: addr}
			return
		}

		image := os.Getenv("FOLIO_TEST_SURREALDB_IMAGE")
		if image == "" {
			image = defaultSurrealImage
		}

		ctx := context.Background()
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        image,
				ExposedPorts: []string{"8000/tcp"},
				Cmd:          []string{"start", "--user", surrealUser, "--pass", surrealPass},
				WaitingFor: wait.ForAll(
					wait.ForListeningPort("8000/tcp"),
					wait.ForLog("Started web server"),
				).WithDeadline(60 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			surrealError = fmt.Errorf("start SurrealDB container: %w", err)
			return
		}

		endpoint, err := container.PortEndpoint(ctx, "8000/tcp", "ws")
		if err != nil {
			container.Terminate(ctx)
			surrealError = fmt.Errorf("resolve SurrealDB endpoint: %w", err)
			return
		}

		surrealContainer = &SurrealDBContainer{
			container: container,
			address:   endpoint + "/rpc",
		}
	})

	if surrealError != nil {
		t.Fatalf("SurrealDB container failed: %v", surrealError)
	}

	return surrealContainer
}

// Address returns the WebSocket RPC address for SurrealDB.
func (c *SurrealDBContainer) Address() string {
	return c.address
}

// Connect signs in and selects a fresh database named after the test, so
// tests sharing the container never see each other's records. The
// connection is closed when the test ends.
func (c *SurrealDBContainer) Connect(t *testing.T) *surreal.DB {
	t.Helper()
	ctx := context.Background()

	db, err := surreal.New(c.address)
	if err != nil {
		t.Fatalf("connect to SurrealDB: %v", err)
	}
	t.Cleanup(func() { db.Close(context.Background()) })

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": surrealUser,
		"pass": surrealPass,
	}); err != nil {
		t.Fatalf("sign in to SurrealDB: %v", err)
	}

	// SurrealDB rejects "/" in database names, which subtests produce.
	name := strings.NewReplacer("/", "_", " ", "_", "-", "_").Replace(t.Name())
	dbName := fmt.Sprintf("t_%s_%d", name, dbSeq.Add(1))
	if err := db.Use(ctx, TestNamespace, dbName); err != nil {
		t.Fatalf("select namespace/database: %v", err)
	}
	return db
}

// Cleanup terminates the container. Call from TestMain if needed.
func (c *SurrealDBContainer) Cleanup() {
	if c != nil && c.container != nil {
		c.container.Terminate(context.Background())
	}
}
