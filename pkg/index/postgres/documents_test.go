package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dataset-lookup/pkg/dataset"
	"github.com/txn2/dataset-lookup/pkg/plugin"
)

func newTestDocuments(t *testing.T) (*Documents, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDocuments(db), mock
}

func TestDocumentsFactory(t *testing.T) {
	_, err := NewRetrieve(context.Background(), nil, plugin.Env{})
	assert.ErrorIs(t, err, ErrNoDatabase)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r, err := NewRetrieve(context.Background(), nil, plugin.Env{DB: db})
	require.NoError(t, err)
	assert.Equal(t, Kind, r.Kind())
	assert.Equal(t, Version, r.Version())
	assert.Empty(t, r.Config())
}

func TestDocumentsRegister(t *testing.T) {
	d, mock := newTestDocuments(t)

	mock.ExpectExec(`INSERT INTO dataset_documents \(uri,uuid,readme,manifest,annotations\) VALUES \(\$1,\$2,\$3,\$4,\$5\) ON CONFLICT \(uri\) DO UPDATE SET`).
		WithArgs(testURI, testUUID, "description: apples",
			[]byte(`{"hash_function":"md5sum_hexdigest","items":{"abc":{"relpath":"apple.txt","size_in_bytes":5,"hash":"d41d8","utc_timestamp":1}}}`),
			[]byte(`{"color":"red"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := d.RegisterDataset(context.Background(), dataset.Info{
		UUID:   testUUID,
		URI:    testURI,
		Readme: "description: apples",
		Manifest: &dataset.Manifest{
			HashFunction: "md5sum_hexdigest",
			Items: map[string]dataset.ManifestItem{
				"abc": {RelPath: "apple.txt", SizeInBytes: 5, Hash: "d41d8", UTCTimestamp: 1},
			},
		},
		Annotations: map[string]any{"color": "red"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentsRegisterDefaults(t *testing.T) {
	d, mock := newTestDocuments(t)

	mock.ExpectExec("INSERT INTO dataset_documents").
		WithArgs(testURI, testUUID, "", []byte(`{"items":{}}`), []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, d.RegisterDataset(context.Background(), dataset.Info{UUID: testUUID, URI: testURI}))

	mock.ExpectExec("INSERT INTO dataset_documents").WillReturnError(errors.New(testDBError))
	assert.Error(t, d.RegisterDataset(context.Background(), dataset.Info{UUID: testUUID, URI: testURI}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentsRead(t *testing.T) {
	d, mock := newTestDocuments(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT readme FROM dataset_documents WHERE uri = \$1`).
		WithArgs(testURI).
		WillReturnRows(sqlmock.NewRows([]string{"readme"}).AddRow("description: apples"))
	readme, err := d.Readme(ctx, testURI)
	require.NoError(t, err)
	assert.Equal(t, "description: apples", readme)

	mock.ExpectQuery(`SELECT manifest FROM dataset_documents WHERE uri = \$1`).
		WithArgs(testURI).
		WillReturnRows(sqlmock.NewRows([]string{"manifest"}).AddRow([]byte(`{"hash_function":"md5sum_hexdigest"}`)))
	manifest, err := d.Manifest(ctx, testURI)
	require.NoError(t, err)
	assert.Equal(t, "md5sum_hexdigest", manifest.HashFunction)
	assert.NotNil(t, manifest.Items)

	mock.ExpectQuery(`SELECT annotations FROM dataset_documents WHERE uri = \$1`).
		WithArgs(testURI).
		WillReturnRows(sqlmock.NewRows([]string{"annotations"}).AddRow([]byte(`{"stars":3}`)))
	ann, err := d.Annotations(ctx, testURI)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"stars": float64(3)}, ann)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentsErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown uri", func(t *testing.T) {
		d, mock := newTestDocuments(t)
		mock.ExpectQuery("SELECT readme").WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT manifest").WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT annotations").WillReturnError(sql.ErrNoRows)

		_, err := d.Readme(ctx, testURI)
		assert.ErrorIs(t, err, dataset.ErrUnknownURI)
		_, err = d.Manifest(ctx, testURI)
		assert.ErrorIs(t, err, dataset.ErrUnknownURI)
		_, err = d.Annotations(ctx, testURI)
		assert.ErrorIs(t, err, dataset.ErrUnknownURI)
	})

	t.Run("corrupt json", func(t *testing.T) {
		d, mock := newTestDocuments(t)
		mock.ExpectQuery("SELECT manifest").
			WillReturnRows(sqlmock.NewRows([]string{"manifest"}).AddRow([]byte(`{`)))
		mock.ExpectQuery("SELECT annotations").
			WillReturnRows(sqlmock.NewRows([]string{"annotations"}).AddRow([]byte(`[`)))

		_, err := d.Manifest(ctx, testURI)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding manifest")
		_, err = d.Annotations(ctx, testURI)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding annotations")
	})

	t.Run("db error", func(t *testing.T) {
		d, mock := newTestDocuments(t)
		mock.ExpectQuery("SELECT readme").WillReturnError(errors.New(testDBError))
		_, err := d.Readme(ctx, testURI)
		require.Error(t, err)
		assert.NotErrorIs(t, err, dataset.ErrUnknownURI)
	})
}
