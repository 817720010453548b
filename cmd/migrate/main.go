package main

import (
	"errors"
	"log"
	"os"

	"github.com/JustSympa/agariki/internal/database"
	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
)

// Usage: migrate [up|down|version]. Migrations are embedded in the binary.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dbUrl := os.Getenv("DB_URL")
	if dbUrl == "" {
		log.Fatal("DB_URL environment variable is required")
	}

	m, err := database.NewMigrator(dbUrl)
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal(err)
		}
		log.Println("Migration down successful")
	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal(err)
		}
		log.Printf("Schema version %d (dirty=%v)", version, dirty)
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal(err)
		}
		log.Println("Migration up successful")
	default:
		log.Fatalf("Unknown command %q, expected up, down or version", cmd)
	}
}
