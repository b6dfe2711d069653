// Command devtoken mints a bearer token for local use against the API.
//
//	JWT_SECRET=... devtoken [-user <uuid>]
//
// Without -user a fresh random identity is generated. The token is printed on
// stdout; the user ID goes to stderr so the output can be captured directly.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-ledger/internal/auth"
	"github.com/pkordes/rideshare-ledger/internal/config"
)

func main() {
	userFlag := flag.String("user", "", "user UUID to put in the token subject (default: random)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	userID := uuid.New()
	if *userFlag != "" {
		userID, err = uuid.Parse(*userFlag)
		if err != nil {
			slog.Error("invalid -user", "error", err)
			os.Exit(2)
		}
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		slog.Error("failed to build verifier", "error", err)
		os.Exit(1)
	}
	token, err := verifier.Issue(userID)
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr, "user:", userID)
	fmt.Println(token)
}
