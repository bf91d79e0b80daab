package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voucher-storefront/internal/model"
)

const snapshotJSON = `{"data":[
	{"buyer_sku_code":"TEL10","category":"Pulsa","brand":"TELKOMSEL","product_name":"Telkomsel 10000","price":"10500","buyer_product_status":true},
	{"buyer_sku_code":"PLN20","category":"PLN","brand":"PLN","product_name":"PLN 20000","price":20300,"buyer_product_status":true},
	{"buyer_sku_code":"OFF","category":"Data","brand":"XL","product_name":"XL 1GB","price":"9000","buyer_product_status":false},
	{"buyer_sku_code":"BAD","category":"Data","brand":"XL","product_name":"XL 2GB","price":"n/a","buyer_product_status":true},
	{"buyer_sku_code":"TEL10","category":"Pulsa","brand":"TELKOMSEL","product_name":"Telkomsel 10000","price":"10500","buyer_product_status":true}
]}`

func writeSnapshot(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSeedIfEmpty_InsertsUsableItems(t *testing.T) {
	store := newMemProductStore()
	svc := newTestSync(store, staticCatalog(), SyncOptions{})

	n, err := svc.SeedIfEmpty(t.Context(), writeSnapshot(t, snapshotJSON))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p, ok := store.get("PLN20")
	require.True(t, ok)
	assert.EqualValues(t, 20300, p.SellingPrice)
	assert.Equal(t, model.ProductElectricity, p.Type)
	_, ok = store.get("OFF")
	assert.False(t, ok)
}

func TestSeedIfEmpty_BareArray(t *testing.T) {
	store := newMemProductStore()
	svc := newTestSync(store, staticCatalog(), SyncOptions{})

	body := `[{"buyer_sku_code":"D1","category":"Data","brand":"XL","product_name":"XL 1GB","price":"9000","buyer_product_status":true}]`
	n, err := svc.SeedIfEmpty(t.Context(), writeSnapshot(t, body))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSeedIfEmpty_SkipsNonEmptyStore(t *testing.T) {
	store := newMemProductStore(model.Product{ID: "EXISTING", Type: model.ProductDataPackage, Active: true})
	svc := newTestSync(store, staticCatalog(), SyncOptions{})

	n, err := svc.SeedIfEmpty(t.Context(), "/does/not/matter.json")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, store.writeCount())
}

func TestSeedIfEmpty_BadSnapshot(t *testing.T) {
	svc := newTestSync(newMemProductStore(), staticCatalog(), SyncOptions{})

	_, err := svc.SeedIfEmpty(t.Context(), filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.SeedIfEmpty(t.Context(), writeSnapshot(t, `{"data":{"rc":"41","message":"bad sign"}}`))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.SeedIfEmpty(t.Context(), writeSnapshot(t, `not json`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSeedIfEmpty_StoreFailure(t *testing.T) {
	store := newMemProductStore()
	store.insertAll = func([]model.Product) error { return errors.New("disk full") }
	svc := newTestSync(store, staticCatalog(), SyncOptions{})

	_, err := svc.SeedIfEmpty(t.Context(), writeSnapshot(t, snapshotJSON))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Zero(t, store.writeCount())
}

func TestSeedThenSyncUsesDiff(t *testing.T) {
	store := newMemProductStore()
	path := writeSnapshot(t, snapshotJSON)
	items, err := readSnapshot(path)
	require.NoError(t, err)

	svc := newTestSync(store, staticCatalog(items...), SyncOptions{})
	_, err = svc.SeedIfEmpty(t.Context(), path)
	require.NoError(t, err)

	stats, err := svc.Sync(t.Context())
	require.NoError(t, err)
	assert.Zero(t, stats.Added)
	assert.Equal(t, 2, stats.Unchanged)
	assert.Equal(t, 1, stats.Errors)
}
