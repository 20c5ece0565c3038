package guardian

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/persistence/kv"
)

func newService() *PINService {
	return NewPINService(kv.NewMemoryStore(), nil)
}

func TestSetAndVerifyPIN(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	assert.NoError(t, svc.SetPIN(ctx, "guardian-1", "4815"))
	assert.NoError(t, svc.VerifyPIN(ctx, "guardian-1", "4815"))
	assert.ErrorIs(t, svc.VerifyPIN(ctx, "guardian-1", "0000"), shared.ErrPINMismatch)
}

func TestSetPINRejectsWeakPINs(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	for _, pin := range []string{"", "12", "123", "123456789", "12a4", "один"} {
		assert.ErrorIs(t, svc.SetPIN(ctx, "guardian-1", pin), shared.ErrWeakPIN, "pin %q", pin)
	}
}

func TestSetPINTwiceFails(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	assert.NoError(t, svc.SetPIN(ctx, "guardian-1", "4815"))
	assert.ErrorIs(t, svc.SetPIN(ctx, "guardian-1", "1623"), shared.ErrPINAlreadySet)
}

func TestVerifyWithoutPIN(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	assert.ErrorIs(t, svc.VerifyPIN(ctx, "guardian-1", "4815"), shared.ErrPINNotSet)
}

func TestChangePIN(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	assert.NoError(t, svc.SetPIN(ctx, "guardian-1", "4815"))

	// Wrong current PIN keeps the old one.
	assert.ErrorIs(t, svc.ChangePIN(ctx, "guardian-1", "9999", "1623"), shared.ErrPINMismatch)
	assert.NoError(t, svc.VerifyPIN(ctx, "guardian-1", "4815"))

	assert.NoError(t, svc.ChangePIN(ctx, "guardian-1", "4815", "1623"))
	assert.NoError(t, svc.VerifyPIN(ctx, "guardian-1", "1623"))
	assert.ErrorIs(t, svc.VerifyPIN(ctx, "guardian-1", "4815"), shared.ErrPINMismatch)
}

func TestHasPIN(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	has, err := svc.HasPIN(ctx, "guardian-1")
	assert.NoError(t, err)
	assert.False(t, has)

	assert.NoError(t, svc.SetPIN(ctx, "guardian-1", "4815"))

	has, err = svc.HasPIN(ctx, "guardian-1")
	assert.NoError(t, err)
	assert.True(t, has)
}

func TestPlaintextNeverStored(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	svc := NewPINService(store, nil)

	assert.NoError(t, svc.SetPIN(ctx, "guardian-1", "4815"))

	var stored string
	assert.NoError(t, store.LoadJSON(ctx, kv.GuardianPINKey("guardian-1"), &stored))
	assert.NotEqual(t, "4815", stored)
	assert.Contains(t, stored, "$2a$")
}
