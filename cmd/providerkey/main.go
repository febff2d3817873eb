package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"actionfigure/internal/infra"
	"actionfigure/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
		deleteFlag   bool
		listFlag     bool
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the selected provider (falls back to the environment)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderOpenAI, "Provider to configure ("+strings.Join(credentials.Providers, " or ")+")")
	flag.BoolVar(&deleteFlag, "delete", false, "Remove the stored key for the provider")
	flag.BoolVar(&listFlag, "list", false, "List providers with a stored key")
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	if provider == "" {
		provider = credentials.ProviderOpenAI
	}
	if !credentials.IsProvider(provider) {
		fail("unsupported provider %q", providerFlag)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		fail("failed to open database: %v", err)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	switch {
	case listFlag:
		providers, err := store.Configured(ctx)
		if err != nil {
			fail("%v", err)
		}
		if len(providers) == 0 {
			fmt.Println("no provider keys stored")
			return
		}
		for _, p := range providers {
			fmt.Println(p)
		}
	case deleteFlag:
		existed, err := store.Delete(ctx, provider)
		if err != nil {
			fail("%v", err)
		}
		if !existed {
			fmt.Printf("no %s API key stored\n", strings.ToUpper(provider))
			return
		}
		fmt.Printf("%s API key removed\n", strings.ToUpper(provider))
	default:
		key := strings.TrimSpace(keyFlag)
		if key == "" {
			key = strings.TrimSpace(os.Getenv(envKey(provider)))
		}
		if key == "" {
			fail("%s API key is required via -key or %s", strings.ToUpper(provider), envKey(provider))
		}
		if err := store.Set(ctx, provider, key); err != nil {
			fail("failed to persist %s api key: %v", provider, err)
		}
		fmt.Printf("%s API key stored successfully\n", strings.ToUpper(provider))
	}
}

func envKey(provider string) string {
	if provider == credentials.ProviderLetzAI {
		return "LETZAI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
