// Package main generates caller tokens for local use of the ledger API.
// Tokens are signed with the development key unless -key is given.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "memoledger/internal/jwt_token"
)

const (
	// matches config.go when JWT_SIGNING_KEY is not set
	devSigningKey   = "dev-secret-key-change-in-production"
	defaultIssuer   = "memoledger"
	defaultAudience = "memoledger"
	defaultTokenTTL = time.Hour
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	Subject   string            `json:"subject"`
	ExpiresIn string            `json:"expires_in"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("tokengen", flag.ContinueOnError)
	id := fs.String("id", "", "Caller external identifier (required)")
	key := fs.String("key", envOr("JWT_SIGNING_KEY", devSigningKey), "HS256 signing key")
	issuer := fs.String("issuer", envOr("JWT_ISSUER", defaultIssuer), "Token issuer")
	audience := fs.String("audience", envOr("JWT_AUDIENCE", defaultAudience), "Token audience")
	env := fs.String("env", "development", "Environment claim")
	ttl := fs.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	asJSON := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		fs.Usage()
		return fmt.Errorf("-id is required")
	}

	svc := jwttoken.NewJWTService(*key, *issuer, *audience, *ttl)
	svc.SetEnv(*env)
	token, err := svc.GenerateCallerToken(context.Background(), *id)
	if err != nil {
		return err
	}

	if !*asJSON {
		fmt.Println(token)
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenOutput{
		Token:     token,
		Type:      "Bearer",
		Subject:   *id,
		ExpiresIn: ttl.String(),
		Usage: map[string]string{
			"header": "Authorization: Bearer " + token,
			"curl":   fmt.Sprintf("curl -H 'Authorization: Bearer %s' http://localhost:8080/v1/accounts/me", token),
		},
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
