package main

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/repositories"
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	JWTSecret      string `envconfig:"JWT_SECRET" required:"true"`
	BadgerFilepath string `envconfig:"BADGER_FILEPATH"`
}

// token issues a bearer token for a user, and optionally records the display name
// used as sender name on outbound messages.
func main() {
	sub := flag.String("sub", "", "User identity carried by the token")
	name := flag.String("name", "", "Display name to store for the user")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	roles := flag.String("roles", "", "Comma separated roles")
	flag.Parse()

	if *sub == "" {
		log.Fatal("Missing -sub")
	}

	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	userID := domain.UserID(*sub)
	token, err := auth.GenerateToken([]byte(cfg.JWTSecret), userID, splitRoles(*roles), *ttl)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	if *name != "" {
		if cfg.BadgerFilepath == "" {
			log.Fatal("BADGER_FILEPATH is required to store a display name")
		}
		if err := saveDisplayName(cfg.BadgerFilepath, userID, *name); err != nil {
			log.Fatalf("Failed to store display name: %v", err)
		}
	}

	fmt.Println(token)
}

func saveDisplayName(path string, userID domain.UserID, name string) error {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return err
	}
	defer db.Close()
	return repositories.NewUserRepository(db).SaveDisplayName(context.Background(), userID, name)
}

func splitRoles(roles string) []string {
	if roles == "" {
		return nil
	}
	return strings.Split(roles, ",")
}
