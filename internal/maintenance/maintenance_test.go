package maintenance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"voiceboard/pkg/capacity"
	"voiceboard/pkg/models"
	"voiceboard/pkg/repo"
	"voiceboard/pkg/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir() + "/db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStartDisabledWithEmptySchedule(t *testing.T) {
	st := testStore(t)
	cancel, err := Start(context.Background(), st, capacity.NewAccountant(st), "")
	require.NoError(t, err)
	require.NotNil(t, cancel)
	cancel()
}

func TestStartRejectsInvalidCron(t *testing.T) {
	st := testStore(t)
	_, err := Start(context.Background(), st, capacity.NewAccountant(st), "not a cron")
	require.Error(t, err)
}

func TestStartValidCron(t *testing.T) {
	st := testStore(t)
	cancel, err := Start(context.Background(), st, capacity.NewAccountant(st), "* * * * *")
	require.NoError(t, err)
	cancel()
}

func TestRunOnce(t *testing.T) {
	st := testStore(t)
	r := repo.New(st)
	_, err := r.CreateThread("topic", models.Blob{MediaType: "audio/webm", Data: make([]byte, 64)})
	require.NoError(t, err)

	acct := capacity.NewAccountant(st)
	RunOnce(st, acct) // must not panic and must leave the store usable

	total, err := acct.ComputeUsage()
	require.NoError(t, err)
	require.EqualValues(t, 64, total)
}

func TestRunOnceClosedStoreSkips(t *testing.T) {
	st, err := store.Open(t.TempDir() + "/db")
	require.NoError(t, err)
	require.NoError(t, st.Close())
	RunOnce(st, capacity.NewAccountant(st))
}
