package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"actionfigure/internal/infra"
	"actionfigure/internal/sqlinline"
)

const (
	ProviderOpenAI = "openai"
	ProviderLetzAI = "letzai"
)

// Providers lists the provider names the store accepts.
var Providers = []string{ProviderOpenAI, ProviderLetzAI}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) OpenAIAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderOpenAI)
}

func (s *Store) LetzAIAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderLetzAI)
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: load %s token: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetOpenAIAPIKey(ctx context.Context, key string) error {
	return s.Set(ctx, ProviderOpenAI, key)
}

func (s *Store) SetLetzAIAPIKey(ctx context.Context, key string) error {
	return s.Set(ctx, ProviderLetzAI, key)
}

// Set stores key for provider, replacing any previous value.
func (s *Store) Set(ctx context.Context, provider, key string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !IsProvider(provider) {
		return fmt.Errorf("credentials: unsupported provider %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New(provider + " api key is required")
	}
	return s.upsert(ctx, provider, key, nil)
}

// Delete removes the stored key for provider. It reports whether a key existed.
func (s *Store) Delete(ctx context.Context, provider string) (bool, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !IsProvider(provider) {
		return false, fmt.Errorf("credentials: unsupported provider %q", provider)
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, provider)
	if err != nil {
		return false, fmt.Errorf("credentials: delete %s token: %w", provider, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Configured lists the providers with a stored, non-empty key.
func (s *Store) Configured(ctx context.Context) ([]string, error) {
	var providers []string
	if err := s.sql.QueryRow(ctx, sqlinline.QListIntegrationProviders).Scan(&providers); err != nil {
		return nil, fmt.Errorf("credentials: list providers: %w", err)
	}
	return providers, nil
}

func IsProvider(name string) bool {
	for _, p := range Providers {
		if p == name {
			return true
		}
	}
	return false
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
