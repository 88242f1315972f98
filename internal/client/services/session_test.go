package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/client/scope"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIDFromToken(t *testing.T) {
	subjectOnly, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "7"}).SignedString([]byte("k"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{name: "user id claim", token: tokenFor(t, "42"), want: "42"},
		{name: "subject fallback", token: subjectOnly, want: "7"},
		{name: "surrounding space", token: "  " + tokenFor(t, "42") + "\n", want: "42"},
		{name: "anonymous id", token: tokenFor(t, scope.AnonUserID), wantErr: true},
		{name: "garbage", token: "not-a-jwt", wantErr: true},
		{name: "empty", token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UserIDFromToken(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignIn_MigratesAnonymousEntriesForRecordedOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.journal.Edit(ctx, day, Draft{Mood: ptr(models.MoodCalm)})
	require.NoError(t, err)
	require.Equal(t, scope.AnonUserID, h.session.Current().UserID)
	require.NoError(t, h.store.Set(ctx, scope.LegacyOwnerKey, []byte("42")))

	sc, migrated, err := h.session.SignIn(ctx, tokenFor(t, "42"))
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.Equal(t, "42", sc.UserID)
	assert.Equal(t, models.MoodCalm, h.journal.Entry(day).Mood)
	assert.Equal(t, models.MoodCalm, h.repo.Load(ctx, scope.For("42").EntriesNamespace)[day].Mood)
	assert.Equal(t, []string{day}, h.journal.Pending())

	sc, migrated, err = h.session.SignIn(ctx, tokenFor(t, "43"))
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Equal(t, "43", sc.UserID)
	assert.Empty(t, h.journal.Entry(day).Mood)
	assert.Empty(t, h.repo.Load(ctx, scope.For("43").EntriesNamespace))

	// the anonymous source is never deleted
	assert.Equal(t, models.MoodCalm, h.repo.Load(ctx, scope.For("").EntriesNamespace)[day].Mood)
}

func TestSignIn_NoMigrationWithoutOwnerMarker(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.journal.Edit(ctx, day, Draft{Mood: ptr(models.MoodCalm)})
	require.NoError(t, err)

	_, migrated, err := h.session.SignIn(ctx, tokenFor(t, "42"))
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Empty(t, h.journal.Entry(day).Mood)

	owner, err := h.store.Get(ctx, scope.LegacyOwnerKey)
	require.NoError(t, err)
	assert.Nil(t, owner, "anonymous entries are not attributed to the signer")

	_, migrated, err = h.session.SignIn(ctx, tokenFor(t, "42"))
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Empty(t, h.journal.Entry(day).Mood)
}

func TestSignIn_OtherUserNeverClaimsLegacyData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	legacy := models.EntryMap{day: {DateKey: day, Notes: "A private", ClientUpdatedAt: 1}}
	require.True(t, h.repo.Commit(ctx, scope.LegacyEntriesNamespace, legacy))
	require.NoError(t, h.store.Set(ctx, scope.LegacyOwnerKey, []byte("A")))

	_, migrated, err := h.session.SignIn(ctx, tokenFor(t, "B"))
	require.NoError(t, err)
	assert.False(t, migrated)

	require.NoError(t, h.session.SignOut(ctx))

	_, migrated, err = h.session.SignIn(ctx, tokenFor(t, "B"))
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Empty(t, h.journal.Entry(day).Notes)
	assert.Empty(t, h.repo.Load(ctx, scope.For("B").EntriesNamespace))

	owner, err := h.store.Get(ctx, scope.LegacyOwnerKey)
	require.NoError(t, err)
	assert.Equal(t, "A", string(owner))
}

func TestSignOut_AnonymousEntriesAreNotClaimedByPreviousUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.signIn(t, "A")
	owner, err := h.store.Get(ctx, scope.LegacyOwnerKey)
	require.NoError(t, err)
	require.Equal(t, "A", string(owner))

	require.NoError(t, h.session.SignOut(ctx))
	_, err = h.journal.Edit(ctx, day, Draft{Notes: ptr("written by someone else")})
	require.NoError(t, err)

	_, migrated, err := h.session.SignIn(ctx, tokenFor(t, "A"))
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Empty(t, h.journal.Entry(day).Notes)
	assert.Empty(t, h.repo.Load(ctx, scope.For("A").EntriesNamespace))
}

func TestSignIn_InvalidTokenKeepsScope(t *testing.T) {
	h := newHarness(t)

	sc, _, err := h.session.SignIn(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.True(t, sc.Anonymous())
	assert.Empty(t, h.srv.token)
}

func TestSignOutAndRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.signIn(t, "42")
	_, err := h.journal.Edit(ctx, day, Draft{Notes: ptr("mine")})
	require.NoError(t, err)

	require.NoError(t, h.session.SignOut(ctx))
	assert.True(t, h.session.Current().Anonymous())
	assert.Empty(t, h.srv.token)
	assert.Equal(t, 1, h.srv.upsertCount(), "sign out pushes armed edits")

	sc, err := h.session.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, sc.Anonymous(), "token was forgotten")

	h.signIn(t, "42")
	fresh := NewSessionService(h.srv, h.store, h.migrator, h.journal, h.assess, nil)
	require.NoError(t, h.session.SignOut(ctx))
	require.NoError(t, h.store.Set(ctx, tokenKey, []byte(tokenFor(t, "42"))))

	sc, err = fresh.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", sc.UserID)
	assert.Equal(t, "mine", h.journal.Entry(day).Notes)
}

func TestTermsArePerIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.signIn(t, "42")
	ok, err := h.session.TermsAccepted(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.session.AcceptTerms(ctx))
	ok, err = h.session.TermsAccepted(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	h.signIn(t, "43")
	ok, err = h.session.TermsAccepted(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
