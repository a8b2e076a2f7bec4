package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialRepo_GetOrCreateToken_CreatesOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	first, err := repo.GetOrCreateToken(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := repo.GetOrCreateToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCredentialRepo_GetOrCreateToken_SurvivesNewRepo(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	token, err := NewCredentialRepo(db).GetOrCreateToken(ctx)
	require.NoError(t, err)

	again, err := NewCredentialRepo(db).GetOrCreateToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, again, "token must not rotate across repo instances")
}

func TestCredentialRepo_GetOrCreateToken_Concurrent(t *testing.T) {
	db := setupFileDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	var generated int
	var genMu sync.Mutex
	base := repo.newToken
	repo.newToken = func() string {
		genMu.Lock()
		generated++
		genMu.Unlock()
		return base()
	}

	const callers = 16
	tokens := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = repo.GetOrCreateToken(ctx)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, tokens[0], tokens[i])
	}
	assert.Equal(t, 1, generated)

	var rows int
	require.NoError(t, db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestCredentialRepo_FindByToken(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	token, err := repo.GetOrCreateToken(ctx)
	require.NoError(t, err)

	cred, err := repo.FindByToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, token, cred.Token)
}

func TestCredentialRepo_FindByToken_NoMatch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	_, err := repo.GetOrCreateToken(ctx)
	require.NoError(t, err)

	for _, candidate := range []string{"", "wrong", "%"} {
		cred, err := repo.FindByToken(ctx, candidate)
		require.NoError(t, err)
		assert.Nil(t, cred, "candidate %q must not match", candidate)
	}
}

func TestCredentialRepo_FindByToken_EmptyStore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	cred, err := repo.FindByToken(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, cred)
}
