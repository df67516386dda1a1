package roster_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbook/classbook/internal/domain/roster"
	"github.com/classbook/classbook/internal/domain/shared"
	"github.com/classbook/classbook/internal/infrastructure/storage"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newRepo(t *testing.T, store shared.Store, opts roster.Options) *roster.Repository {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	if opts.Clock == nil {
		opts.Clock = fixedClock
	}
	return roster.NewRepository(store, opts)
}

func validInput() roster.NewStudent {
	return roster.NewStudent{
		Name:       "Ayesha Malik",
		FatherName: "Tariq Malik",
		Phone:      "03001234567",
		ClassName:  "5",
	}
}

// brokenStore rejects every write.
type brokenStore struct {
	*storage.MemoryStore
}

var errQuota = errors.New("quota exceeded")

func (brokenStore) Set(context.Context, string, []byte) error { return errQuota }

type recordingCleaner struct {
	ids []string
}

func (c *recordingCleaner) CascadeDelete(_ context.Context, id string) error {
	c.ids = append(c.ids, id)
	return nil
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"03001234567", "0300-1234567"},
		{"0300-1234567", "0300-1234567"},
		{"(0300) 123 4567", "0300-1234567"},
		{"030012345", "0300-12345"},
		{"030", "030"},
		{"", ""},
		{"0300123456789", "0300-1234567"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roster.NormalizePhone(tt.raw), tt.raw)
	}

	assert.True(t, roster.IsCanonicalPhone("0300-1234567"))
	assert.False(t, roster.IsCanonicalPhone(roster.NormalizePhone("030012345")))
	assert.False(t, roster.IsCanonicalPhone("0300-123456"))
}

func TestRepository_AddThenFind(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := newRepo(t, store, roster.Options{})

	created, err := repo.Add(ctx, validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Ayesha Malik", created.Name)
	assert.Equal(t, "Tariq Malik", created.FatherName)
	assert.Equal(t, "0300-1234567", created.Phone)
	assert.Equal(t, "5", created.ClassName)
	assert.False(t, created.FeesPaid)
	assert.Equal(t, fixedNow.UnixMilli(), created.CreatedAt)

	found, ok := repo.Find(created.ID)
	require.True(t, ok)
	assert.Equal(t, created, found)

	raw, ok, err := store.Get(ctx, shared.KeyStudents)
	require.NoError(t, err)
	require.True(t, ok)
	var stored []map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, created.ID, stored[0]["id"])
	assert.Equal(t, "Tariq Malik", stored[0]["fatherName"])
	assert.Equal(t, "5", stored[0]["className"])
	assert.Equal(t, false, stored[0]["feesPaid"])
}

func TestRepository_ConsecutiveAddsGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, nil, roster.Options{})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := repo.Add(ctx, validInput())
		require.NoError(t, err)
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
	}
	assert.Equal(t, 50, repo.Len())
}

func TestRepository_CollidingGeneratorStillUnique(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, nil, roster.Options{NewID: func() string { return "same" }})

	a, err := repo.Add(ctx, validInput())
	require.NoError(t, err)
	b, err := repo.Add(ctx, validInput())
	require.NoError(t, err)

	assert.Equal(t, "same", a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestRepository_AddAggregatesValidationErrors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := newRepo(t, store, roster.Options{})

	_, err := repo.Add(ctx, roster.NewStudent{Name: "  ", Phone: "030012345"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)

	ve, ok := shared.AsValidation(err)
	require.True(t, ok)
	for _, field := range []string{"name", "fatherName", "phone", "className"} {
		_, has := ve.Field(field)
		assert.True(t, has, field)
	}

	assert.Zero(t, repo.Len())
	_, stored, _ := store.Get(ctx, shared.KeyStudents)
	assert.False(t, stored, "nothing persisted on validation failure")
}

func TestRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, nil, roster.Options{})
	s, err := repo.Add(ctx, validInput())
	require.NoError(t, err)

	name := " Ayesha K. Malik "
	phone := "0301 765 4321"
	paid := true
	updated, err := repo.Update(ctx, s.ID, roster.UpdateStudent{Name: &name, Phone: &phone, FeesPaid: &paid})
	require.NoError(t, err)

	assert.Equal(t, s.ID, updated.ID)
	assert.Equal(t, s.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Ayesha K. Malik", updated.Name)
	assert.Equal(t, "0301-7654321", updated.Phone)
	assert.Equal(t, s.FatherName, updated.FatherName)
	assert.True(t, updated.FeesPaid)

	found, _ := repo.Find(s.ID)
	assert.Equal(t, updated, found)
}

func TestRepository_UpdateErrors(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, nil, roster.Options{})
	s, err := repo.Add(ctx, validInput())
	require.NoError(t, err)

	_, err = repo.Update(ctx, "missing", roster.UpdateStudent{})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	bad := "123"
	_, err = repo.Update(ctx, s.ID, roster.UpdateStudent{Phone: &bad})
	assert.ErrorIs(t, err, shared.ErrValidation)

	found, _ := repo.Find(s.ID)
	assert.Equal(t, "0300-1234567", found.Phone, "rejected patch leaves record untouched")
}

func TestRepository_RemoveCascadesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cleaner := &recordingCleaner{}
	repo := newRepo(t, nil, roster.Options{Cleaner: cleaner})

	a, _ := repo.Add(ctx, validInput())
	b, _ := repo.Add(ctx, validInput())

	require.NoError(t, repo.Remove(ctx, a.ID))
	_, ok := repo.Find(a.ID)
	assert.False(t, ok)
	assert.Equal(t, []roster.Student{b}, repo.List())
	assert.Equal(t, []string{a.ID}, cleaner.ids)

	require.NoError(t, repo.Remove(ctx, a.ID))
	assert.Equal(t, []string{a.ID}, cleaner.ids, "absent id does not cascade again")
}

func TestRepository_ToggleFees(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, nil, roster.Options{})
	s, _ := repo.Add(ctx, validInput())

	toggled, err := repo.ToggleFees(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, toggled.FeesPaid)

	toggled, err = repo.ToggleFees(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, toggled.FeesPaid)

	_, err = repo.ToggleFees(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRepository_SearchAndClasses(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, nil, roster.Options{})

	inputs := []roster.NewStudent{
		{Name: "Bilal Ahmed", FatherName: "Naveed Ahmed", Phone: "03001111111", ClassName: "10"},
		{Name: "Sara Khan", FatherName: "Imran Khan", Phone: "03002222222", ClassName: "2"},
		{Name: "Hamza Ali", FatherName: "Ahmed Ali", Phone: "03003333333", ClassName: "2"},
	}
	for _, in := range inputs {
		_, err := repo.Add(ctx, in)
		require.NoError(t, err)
	}

	names := func(list []roster.Student) []string {
		out := make([]string, 0, len(list))
		for _, s := range list {
			out = append(out, s.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Bilal Ahmed", "Hamza Ali"}, names(repo.Search("AHMED")))
	assert.Equal(t, []string{"Bilal Ahmed"}, names(repo.Search("10")))
	assert.Equal(t, []string{"Bilal Ahmed", "Sara Khan", "Hamza Ali"}, names(repo.Search("")))
	assert.Empty(t, repo.Search("zzz"))

	assert.Equal(t, []string{"2", "10"}, repo.Classes())
}

func TestRepository_WriteFailureKeepsInMemoryChange(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, brokenStore{storage.NewMemoryStore()}, roster.Options{})

	s, err := repo.Add(ctx, validInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrPersistence)
	assert.ErrorIs(t, err, errQuota)

	found, ok := repo.Find(s.ID)
	assert.True(t, ok)
	assert.Equal(t, s, found)
}

func TestRepository_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("absent record is empty", func(t *testing.T) {
		repo := newRepo(t, nil, roster.Options{})
		require.NoError(t, repo.Load(ctx))
		assert.Empty(t, repo.List())
	})

	t.Run("malformed record degrades to empty", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.Set(ctx, shared.KeyStudents, []byte("{not json")))
		repo := newRepo(t, store, roster.Options{})

		err := repo.Load(ctx)
		assert.ErrorIs(t, err, shared.ErrPersistence)
		assert.Empty(t, repo.List())
	})

	t.Run("round trip preserves order", func(t *testing.T) {
		store := storage.NewMemoryStore()
		first := newRepo(t, store, roster.Options{})
		a, _ := first.Add(ctx, validInput())
		b, _ := first.Add(ctx, validInput())

		second := newRepo(t, store, roster.Options{})
		require.NoError(t, second.Load(ctx))
		assert.Equal(t, []roster.Student{a, b}, second.List())
	})

	t.Run("duplicate ids are skipped", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.Set(ctx, shared.KeyStudents,
			[]byte(`[{"id":"x","name":"A"},{"id":"x","name":"B"},{"name":"C"}]`)))
		repo := newRepo(t, store, roster.Options{})

		err := repo.Load(ctx)
		assert.ErrorIs(t, err, shared.ErrPersistence)
		require.Len(t, repo.List(), 1)
		assert.Equal(t, "A", repo.List()[0].Name)
	})
}
