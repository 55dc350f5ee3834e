package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nva0070/flicks-backend/internal/database"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default data directory path
	defaultDataDir = "/data"
)

var allowedTypes = map[string]bool{
	"product":      true,
	"shop":         true,
	"manufacturer": true,
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	dbPath := filepath.Join(dataDir, "flicks.db")

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATA_DIR is set correctly (current: %s)\n", dataDir)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	switch command {
	case "add":
		if !addEntity(ctx, db, os.Args[2:]) {
			os.Exit(1)
		}
	case "check":
		if !checkEntity(ctx, db, os.Args[2:]) {
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for
// display, replacing anything outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Flicks Backend Catalog Seeding")
	fmt.Println("")
	fmt.Println("Usage: seedcatalog <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  add <type> <name>   - Register a catalog entity (product, shop, manufacturer)")
	fmt.Println("  check <type> <id>   - Check whether an entity exists")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATA_DIR - Path to the data directory (default: %s)\n", defaultDataDir)
}

func addEntity(ctx context.Context, db *database.Database, args []string) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Error: add requires <type> and <name>")
		return false
	}

	entityType := strings.ToLower(args[0])
	name := strings.TrimSpace(strings.Join(args[1:], " "))

	if !allowedTypes[entityType] {
		fmt.Fprintf(os.Stderr, "Error: unknown entity type %q (product, shop, manufacturer)\n", sanitizeCommand(entityType))
		return false
	}
	if name == "" {
		fmt.Fprintln(os.Stderr, "Error: entity name must not be empty")
		return false
	}

	id, err := db.CreateEntity(ctx, entityType, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create entity: %v\n", err)
		return false
	}

	fmt.Printf("Created %s %q with id %d\n", entityType, name, id)
	return true
}

func checkEntity(ctx context.Context, db *database.Database, args []string) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Error: check requires <type> and <id>")
		return false
	}

	entityType := strings.ToLower(args[0])
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintln(os.Stderr, "Error: id must be a positive integer")
		return false
	}

	exists, err := db.EntityExists(ctx, entityType, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: lookup failed: %v\n", err)
		return false
	}

	if exists {
		fmt.Printf("%s %d exists\n", entityType, id)
	} else {
		fmt.Printf("%s %d does not exist\n", entityType, id)
	}
	return exists
}
