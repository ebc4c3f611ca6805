package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rewind/pkg/adapters/memory"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "^ssn"})
	require.NoError(t, err)
	store := mw(underlying)

	ctx := context.Background()
	record := domain.NewSessionRecord("pii", "login")
	record.State = &domain.DebuggerState{GlobalEnv: map[string]string{
		"username":      "jdoe",
		"user_password": "secret123",
		"ssn_number":    "999-99-9999",
		"has_ssn":       "true",
	}}
	require.NoError(t, store.Save(ctx, "pii", record))

	assert.Equal(t, "secret123", record.State.GlobalEnv["user_password"], "live state must not be modified")

	stored, err := underlying.Load(ctx, "pii")
	require.NoError(t, err)
	env := stored.State.GlobalEnv
	assert.Equal(t, "jdoe", env["username"])
	assert.Equal(t, middleware.Mask, env["user_password"])
	assert.Equal(t, middleware.Mask, env["ssn_number"])
	assert.Equal(t, "true", env["has_ssn"])
}

func TestPIIMiddleware_NoState(t *testing.T) {
	mw, err := middleware.NewPIIMiddleware([]string{"password"})
	require.NoError(t, err)
	store := mw(memory.NewStore())

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "empty", domain.NewSessionRecord("empty", "p")))
	loaded, err := store.Load(ctx, "empty")
	require.NoError(t, err)
	assert.Nil(t, loaded.State)
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_MaskThenSeal(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"token"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	store := middleware.Chain(underlying, pii, enc)

	ctx := context.Background()
	record := domain.NewSessionRecord("chain", "p")
	record.State = &domain.DebuggerState{GlobalEnv: map[string]string{"token": "abc", "n": "1"}}
	require.NoError(t, store.Save(ctx, "chain", record))

	raw, err := underlying.Load(ctx, "chain")
	require.NoError(t, err)
	assert.Nil(t, raw.State)
	assert.NotEmpty(t, raw.Sealed)

	loaded, err := store.Load(ctx, "chain")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.State.GlobalEnv["token"])
	assert.Equal(t, "1", loaded.State.GlobalEnv["n"])
}
