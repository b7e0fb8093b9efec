// Command admin-token mints an admin JWT for the admin API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"salon-billing/internal/config"
	"salon-billing/internal/infra/api"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	subject := flag.String("subject", "admin", "token subject, recorded in admin request logs")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to admin.token_ttl")
	flag.Parse()

	// dev skips validation of unrelated sections; only the jwt secret matters here
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admin-token: config: %v\n", err)
		os.Exit(1)
	}
	if *ttl > 0 {
		cfg.Admin.TokenTTL = *ttl
	}

	tok, exp, err := api.NewAuthManager(cfg.Admin).Mint(*subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admin-token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.UTC().Format(time.RFC3339))
}
