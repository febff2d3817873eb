package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"actionfigure/internal/sqlinline"
)

type stubExecutor struct {
	token     string
	providers []string
	affected  string
	err       error
	query struct {
		args []any
	}
	exec struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.NewCommandTag(s.affected), s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.query.args = args
	return stubRow{token: s.token, providers: s.providers, err: s.err}
}

type stubRow struct {
	token     string
	providers []string
	err       error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	switch ptr := dest[0].(type) {
	case *string:
		*ptr = r.token
	case *[]string:
		*ptr = r.providers
	default:
		return errors.New("invalid dest")
	}
	return nil
}

func TestOpenAIAPIKey(t *testing.T) {
	exec := &stubExecutor{token: " sk-test "}
	store := NewStore(exec)
	key, err := store.OpenAIAPIKey(context.Background())
	if err != nil {
		t.Fatalf("OpenAIAPIKey error: %v", err)
	}
	if key != "sk-test" {
		t.Fatalf("expected sk-test, got %q", key)
	}
	if len(exec.query.args) != 1 || exec.query.args[0] != ProviderOpenAI {
		t.Fatalf("expected provider argument %q, got %v", ProviderOpenAI, exec.query.args)
	}
}

func TestLetzAIAPIKey_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.LetzAIAPIKey(context.Background())
	if err != nil {
		t.Fatalf("LetzAIAPIKey error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestTokenPropagatesErrors(t *testing.T) {
	boom := errors.New("connection reset")
	store := NewStore(&stubExecutor{err: boom})
	if _, err := store.LetzAIAPIKey(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSetLetzAIAPIKey(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetLetzAIAPIKey(context.Background(), "secret"); err != nil {
		t.Fatalf("SetLetzAIAPIKey error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[0].(string); !ok || v != ProviderLetzAI {
		t.Fatalf("expected provider argument, got %T %v", exec.exec.args[0], exec.exec.args[0])
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
}

func TestSetOpenAIAPIKeyEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetOpenAIAPIKey(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestSetRejectsUnknownProvider(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.Set(context.Background(), "gemini", "secret"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if exec.exec.query != "" {
		t.Fatal("unknown provider should not reach the database")
	}
}

func TestDelete(t *testing.T) {
	exec := &stubExecutor{affected: "DELETE 1"}
	store := NewStore(exec)
	existed, err := store.Delete(context.Background(), " LetzAI ")
	if err != nil || !existed {
		t.Fatalf("Delete = %v, %v", existed, err)
	}
	if exec.exec.query != sqlinline.QDeleteIntegrationToken || exec.exec.args[0] != ProviderLetzAI {
		t.Fatalf("unexpected exec %q %v", exec.exec.query, exec.exec.args)
	}

	exec.affected = "DELETE 0"
	if existed, _ := store.Delete(context.Background(), ProviderOpenAI); existed {
		t.Fatal("expected no existing key")
	}
	if _, err := store.Delete(context.Background(), "gemini"); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}

func TestConfigured(t *testing.T) {
	store := NewStore(&stubExecutor{providers: []string{"letzai", "openai"}})
	got, err := store.Configured(context.Background())
	if err != nil || len(got) != 2 || got[0] != "letzai" {
		t.Fatalf("Configured = %v, %v", got, err)
	}

	store = NewStore(&stubExecutor{err: errors.New("db down")})
	if _, err := store.Configured(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
