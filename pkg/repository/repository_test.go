package repository

import (
	"context"
	"testing"

	"github.com/smallbiznis/rentledger/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID    int64 `gorm:"primaryKey"`
	Group string
	Name  string
}

func TestStoreFindWithOptions(t *testing.T) {
	db := dbtest.Open(t, &widget{})
	ctx := context.Background()
	store := ProvideStore[widget](db)

	for i, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Create(ctx, &widget{ID: int64(i + 1), Group: "g1", Name: name}))
	}
	require.NoError(t, store.Create(ctx, &widget{ID: 10, Group: "g2", Name: "z"}))

	items, err := store.Find(ctx, &widget{Group: "g1"}, AfterID(1), OrderBy("id asc"), Limit(2))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].Name)
	assert.Equal(t, "c", items[1].Name)

	count, err := store.Count(ctx, &widget{Group: "g1"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	missing, err := store.FindOne(ctx, &widget{Group: "g3"})
	require.NoError(t, err)
	assert.Nil(t, missing)

	tx := db.Begin()
	require.NoError(t, store.WithTrx(tx).Create(ctx, &widget{ID: 20, Group: "g3"}))
	require.NoError(t, tx.Rollback().Error)
	missing, err = store.FindOne(ctx, &widget{Group: "g3"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}
