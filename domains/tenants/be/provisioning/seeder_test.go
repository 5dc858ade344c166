package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingInserter struct {
	batches [][]json.RawMessage
	failAt  int // 1-based call index that fails; 0 never fails
	calls   int
}

func (r *recordingInserter) BulkInsert(ctx context.Context, name string, docs []json.RawMessage) error {
	r.calls++
	if r.failAt != 0 && r.calls == r.failAt {
		return errors.New("store unavailable")
	}
	r.batches = append(r.batches, docs)
	return nil
}

func TestSeedWritesThreeBatches(t *testing.T) {
	t.Parallel()

	store := &recordingInserter{}
	seeder := NewSeeder(store)

	require.NoError(t, seeder.Seed(context.Background(), "acme_corp"))
	require.Len(t, store.batches, 3)

	permissions := store.batches[0]
	require.Len(t, permissions, 20)
	var first permissionDoc
	require.NoError(t, json.Unmarshal(permissions[0], &first))
	require.Equal(t, "Location", first.Name)
	require.Equal(t, 1, first.PermissionID)
	require.Equal(t, "permission", first.Type)
	require.False(t, first.IsActive)

	settings := store.batches[1]
	require.Len(t, settings, 3)
	var setting settingDoc
	require.NoError(t, json.Unmarshal(settings[0], &setting))
	require.Equal(t, "Waiter", setting.Name)
	require.False(t, setting.Value)

	accounts := store.batches[2]
	require.Len(t, accounts, 1)
	var account accountDoc
	require.NoError(t, json.Unmarshal(accounts[0], &account))
	require.Equal(t, "Super User", account.Name)
	require.True(t, account.Admin)
	require.True(t, account.IsActive)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PinCode), []byte(DefaultBootstrapPIN)))
	require.NotContains(t, account.PinCode, DefaultBootstrapPIN)
}

func TestSeedHashesAreSalted(t *testing.T) {
	t.Parallel()

	store := &recordingInserter{}
	seeder := NewSeeder(store)

	require.NoError(t, seeder.Seed(context.Background(), "a"))
	require.NoError(t, seeder.Seed(context.Background(), "b"))

	var first, second accountDoc
	require.NoError(t, json.Unmarshal(store.batches[2][0], &first))
	require.NoError(t, json.Unmarshal(store.batches[5][0], &second))
	require.NotEqual(t, first.PinCode, second.PinCode)
}

func TestSeedStageErrors(t *testing.T) {
	t.Parallel()

	stages := map[int]SeedStage{
		1: StagePermissions,
		2: StageSettings,
		3: StageAccount,
	}

	for failAt, stage := range stages {
		store := &recordingInserter{failAt: failAt}
		seeder := NewSeeder(store)

		err := seeder.Seed(context.Background(), "acme_corp")
		var seedErr *SeedError
		require.ErrorAs(t, err, &seedErr)
		require.Equal(t, stage, seedErr.Stage)
	}
}
