package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/pflag"

	"fleetops.io/internal/migrate"
)

func main() {
	log.SetFlags(0)
	var (
		dsn     = pflag.String("dsn", os.Getenv("FLEETOPS_POSTGRES_DSN"), "PostgreSQL DSN")
		table   = pflag.String("table", "schema_migrations", "bookkeeping table")
		timeout = pflag.Duration("timeout", 30*time.Second, "overall timeout")
	)
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [flags] up|down|status|pending")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via --dsn or FLEETOPS_POSTGRES_DSN")
	}
	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, migrate.WithMigrationsTable(*table))

	switch cmd := pflag.Arg(0); cmd {
	case "up":
		applied, err := mgr.Up(ctx)
		if err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		if len(applied) == 0 {
			fmt.Println("up to date")
		}
		for _, name := range applied {
			fmt.Println("applied", name)
		}
	case "down":
		name, err := mgr.Down(ctx)
		if errors.Is(err, migrate.ErrNothingToRollback) {
			fmt.Println("nothing to roll back")
			return
		}
		if err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		fmt.Println("rolled back", name)
	case "status", "pending":
		list := mgr.Status
		if cmd == "pending" {
			list = mgr.Pending
		}
		names, err := list(ctx)
		if err != nil {
			log.Fatalf("migrate %s: %v", cmd, err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
	default:
		log.Fatalf("unknown command %q", cmd)
	}
}
