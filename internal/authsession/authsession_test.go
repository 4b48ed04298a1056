/*
Copyright 2026 Altaira Labs.

SPDX-License-Identifier: Apache-2.0
*/

package authsession

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLConfig_Resolve(t *testing.T) {
	cfg := TTLConfig{AdminUI: time.Hour, ClientUI: 2 * time.Hour, API: 30 * time.Minute}
	assert.Equal(t, time.Hour, cfg.Resolve(AppTypeAdminUI))
	assert.Equal(t, 2*time.Hour, cfg.Resolve(AppTypeClientUI))
	assert.Equal(t, 30*time.Minute, cfg.Resolve(AppTypeAPI))
	assert.Equal(t, 30*time.Minute, cfg.Resolve(AppType("unknown")), "unrecognized app_type defaults to api")
}

func TestNormalizeAppType_DefaultsUnknownToAPI(t *testing.T) {
	assert.Equal(t, AppTypeAdminUI, NormalizeAppType("admin-ui"))
	assert.Equal(t, AppTypeClientUI, NormalizeAppType("client-ui"))
	assert.Equal(t, AppTypeAPI, NormalizeAppType("anything-else"))
}

func TestMemoryStore_CreateOrGet_IsIdempotentWithinTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sess1, err := s.CreateOrGet(ctx, "tok-1", "1.2.3.4", "ua", AppTypeAPI, "device-1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, StateGhost, sess1.State)

	sess2, err := s.CreateOrGet(ctx, "tok-1", "1.2.3.4", "ua", AppTypeAPI, "device-1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, sess1.ID, sess2.ID)
}

func TestMemoryStore_AuthenticateSession_GhostToAuthenticated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created, err := s.CreateOrGet(ctx, "tok-1", "1.2.3.4", "ua", AppTypeAPI, "device-1", time.Hour)
	require.NoError(t, err)

	userID, orgID := uuid.New(), uuid.New()
	sess, err := s.AuthenticateSession(ctx, "tok-1", created.Version, userID, orgID)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, sess.State)
	require.NotNil(t, sess.UserID)
	assert.Equal(t, userID, *sess.UserID)
}

func TestMemoryStore_AuthenticateSession_StaleVersionLeavesRowUntouched(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created, err := s.CreateOrGet(ctx, "tok-1", "1.2.3.4", "ua", AppTypeAPI, "device-1", time.Hour)
	require.NoError(t, err)

	sess, err := s.AuthenticateSession(ctx, "tok-1", created.Version+1, uuid.New(), uuid.New())
	require.NoError(t, err, "a lost compare-and-swap is best-effort, not an error")
	assert.Equal(t, StateGhost, sess.State, "the row is returned unmodified")
	assert.Equal(t, created.Version, sess.Version)
}

func TestMemoryStore_UpdateActivity_MissingSessionIsNotAnError(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.UpdateActivity(context.Background(), "never-created", 1, time.Now())
	require.NoError(t, err)
}

func TestMemoryStore_EndSession_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.CreateOrGet(ctx, "tok-1", "1.2.3.4", "ua", AppTypeAPI, "device-1", time.Hour)
	require.NoError(t, err)

	require.NoError(t, s.EndSession(ctx, "tok-1"))
	require.NoError(t, s.EndSession(ctx, "tok-1"))
	require.NoError(t, s.EndSession(ctx, "never-existed"))
}

func TestMemoryStore_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.CreateOrGet(ctx, "tok-1", "1.2.3.4", "ua", AppTypeAPI, "device-1", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	count, err := s.CleanupExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.CleanupExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, count, "cleanup is idempotent")
}
