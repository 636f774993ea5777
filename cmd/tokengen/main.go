// Package main mints operator tokens for local use of the privata API.
// Tokens are signed with PRIVATA_TOKEN_SIGNING_KEY, falling back to the
// development key.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	jwttoken "privata/internal/jwt_token"
)

const (
	devSigningKey = "dev-secret-key-change-in-production"
	issuer        = "privata"
)

type tokenOutput struct {
	Token     string   `json:"token"`
	Actor     string   `json:"actor"`
	Roles     []string `json:"roles,omitempty"`
	ExpiresIn string   `json:"expires_in"`
}

func main() {
	actor := flag.String("actor", "local-operator", "Actor recorded as the audit user id")
	roles := flag.String("roles", "operator", "Comma-separated roles")
	ttl := flag.Duration("ttl", time.Hour, "Token time-to-live")
	asJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	_ = godotenv.Load()
	key := os.Getenv("PRIVATA_TOKEN_SIGNING_KEY")
	if key == "" {
		key = devSigningKey
	}

	roleList := splitRoles(*roles)
	token, err := jwttoken.New(key, issuer).GenerateOperatorToken(*actor, roleList, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(tokenOutput{Token: token, Actor: *actor, Roles: roleList, ExpiresIn: ttl.String()})
		return
	}
	fmt.Printf("Actor:      %s\n", *actor)
	fmt.Printf("Expires In: %s\n\n", *ttl)
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println(`  curl -H "Authorization: Bearer <token>" http://localhost:8080/consents/<subject>`)
}

func splitRoles(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
