// Package main provides a CLI tool for granting or revoking the admin and
// banned flags of an account.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/cory-johannsen/subjugate/internal/config"
	"github.com/cory-johannsen/subjugate/internal/storage"
	"github.com/cory-johannsen/subjugate/internal/storage/postgres"
	"github.com/cory-johannsen/subjugate/internal/storage/sqlite"
)

type accounts interface {
	GetByUsername(ctx context.Context, username string) (storage.Account, error)
	SetFlags(ctx context.Context, accountID int64, admin, banned bool) error
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	username := flag.String("username", "", "target account username (required)")
	admin := flag.String("admin", "", "set the admin flag: true or false (empty = unchanged)")
	banned := flag.String("banned", "", "set the banned flag: true or false (empty = unchanged)")
	flag.Parse()

	if *username == "" || (*admin == "" && *banned == "") {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repo accounts
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			log.Fatalf("opening database: %v", err)
		}
		defer db.Close()
		repo = sqlite.NewAccountRepository(db)
	default:
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("connecting to database: %v", err)
		}
		defer pool.Close()
		repo = postgres.NewAccountRepository(pool.DB())
	}

	acct, err := repo.GetByUsername(ctx, *username)
	if err != nil {
		log.Fatalf("looking up account %q: %v", *username, err)
	}

	newAdmin, err := flagValue(*admin, acct.Admin)
	if err != nil {
		log.Fatalf("-admin: %v", err)
	}
	newBanned, err := flagValue(*banned, acct.Banned)
	if err != nil {
		log.Fatalf("-banned: %v", err)
	}

	if err := repo.SetFlags(ctx, acct.ID, newAdmin, newBanned); err != nil {
		log.Fatalf("setting flags: %v", err)
	}

	fmt.Fprintf(os.Stdout, "updated %s (#%d): admin %v -> %v, banned %v -> %v [%s]\n",
		acct.Username, acct.ID, acct.Admin, newAdmin, acct.Banned, newBanned, time.Since(start))
}

// flagValue parses s as a bool, keeping current when s is empty.
func flagValue(s string, current bool) (bool, error) {
	if s == "" {
		return current, nil
	}
	return strconv.ParseBool(s)
}
