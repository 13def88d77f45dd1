package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	uu "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authd/internal/domain/models"
	"authd/internal/storage"
	"authd/internal/storage/memory"
)

func TestConsumeAuthCode_ExactlyOnceUnderRace(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	code := &models.AuthorizationCode{
		CodeHash:  "hash-1",
		ClientID:  "spa",
		Subject:   "u1",
		ExpiresAt: time.Now().Add(time.Minute),
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.SaveAuthCode(ctx, code))

	const workers = 32
	var wins, consumed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.ConsumeAuthCode(ctx, "hash-1")
			switch {
			case err == nil:
				wins.Add(1)
			case err == storage.ErrCodeConsumed:
				consumed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load())
	assert.Equal(t, int64(workers-1), consumed.Load())
}

func TestMarkRotated_ExactlyOnceUnderRace(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	token := &models.RefreshToken{
		JTI:       uu.New(),
		TokenHash: "hash-rt",
		FamilyID:  uu.New(),
		Subject:   "u1",
		ClientID:  "spa",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.SaveRefreshToken(ctx, token))

	const workers = 32
	var wins, revoked atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.MarkRotated(ctx, "hash-rt")
			switch {
			case err == nil:
				wins.Add(1)
			case err == storage.ErrTokenRevoked:
				revoked.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load())
	assert.Equal(t, int64(workers-1), revoked.Load())
}

func TestDenylist_EntryExpiresWithToken(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.RevokeJTI(ctx, models.RevokedJti{
		JTI:       "jti-1",
		ExpiresAt: now.Add(time.Hour),
		RevokedAt: now,
	}))

	revoked, err := store.IsJTIRevoked(ctx, "jti-1", now)
	require.NoError(t, err)
	assert.True(t, revoked)

	// past the token's own expiry the entry no longer matters
	revoked, err = store.IsJTIRevoked(ctx, "jti-1", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeFamily_MarksEveryMember(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	familyID := uu.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveRefreshToken(ctx, &models.RefreshToken{
			JTI:       uu.New(),
			TokenHash: uu.NewString(),
			FamilyID:  familyID,
			Subject:   "u1",
			ClientID:  "spa",
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		}))
	}

	revoked, err := store.RevokeFamily(ctx, familyID)
	require.NoError(t, err)
	assert.Len(t, revoked, 3)
	for _, member := range revoked {
		assert.True(t, member.Revoked)
	}
}
