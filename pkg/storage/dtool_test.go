package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dataset-lookup/pkg/dataset"
)

const (
	dtoolTestUUID    = "af6727bf-29c7-43dd-b42f-a5d7ede28337"
	dtoolTestBadUUID = "1e47c076-2eb0-43b2-b219-fc7d419f1f16"
	dtoolTestNoAdmin = "0fa1d2b6-a1ab-4e34-bd4e-2b6e9d4c9d1d"
	dtoolTestBase    = "s3://snow-white/datasets"
)

func seedDtool(p *MemoryProvider, prefix, uuid, readme string) {
	p.Put(storageTestBucket, prefix+uuid+"/dtool", []byte(`{
		"uuid": "`+uuid+`",
		"type": "dataset",
		"name": "bad-apples",
		"creator_username": "queen",
		"frozen_at": 1536238185.881941,
		"created_at": 1536236399.19497,
		"dtoolcore_version": "3.7.0"
	}`))
	p.Put(storageTestBucket, prefix+uuid+"/README.yml", []byte(readme))
	p.Put(storageTestBucket, prefix+uuid+"/manifest.json", []byte(`{
		"hash_function": "md5sum_hexdigest",
		"items": {
			"e4cc3a7dc281c3d89ed4553293c4b4b110dc9bf3": {"relpath": "greed.txt", "size_in_bytes": 21, "hash": "d8f", "utc_timestamp": 1536238185.8}
		}
	}`))
	p.Put(storageTestBucket, prefix+uuid+"/tags/evil", nil)
	p.Put(storageTestBucket, prefix+uuid+"/tags/fruit", nil)
	p.Put(storageTestBucket, prefix+uuid+"/annotations/color.json", []byte(`"red"`))
	p.Put(storageTestBucket, prefix+uuid+"/annotations/ignored.txt", []byte(`x`))
}

func TestReaderInfo(t *testing.T) {
	p := NewMemoryProvider()
	seedDtool(p, "datasets/", dtoolTestUUID, "description: apples\n")
	r := NewReader(p, nil)
	uri := dtoolTestBase + "/" + dtoolTestUUID

	info, err := r.Info(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, dtoolTestUUID, info.UUID)
	assert.Equal(t, uri, info.URI)
	assert.Equal(t, dtoolTestBase, info.BaseURI)
	assert.Equal(t, dataset.TypeDataset, info.Type)
	assert.Equal(t, "queen", info.CreatorUsername)
	assert.Equal(t, []string{"evil", "fruit"}, info.Tags)
	assert.Equal(t, 1, info.NumberOfItems)
	assert.Equal(t, int64(21), info.SizeInBytes)
	assert.Equal(t, "3.7.0", info.Manifest.DtoolcoreVersion)
	assert.Equal(t, map[string]any{"color": "red"}, info.Annotations)
	assert.Equal(t, "description: apples\n", info.Readme)
	assert.NoError(t, info.Validate())
}

func TestReaderDocuments(t *testing.T) {
	p := NewMemoryProvider()
	seedDtool(p, "", dtoolTestUUID, "name: apples\n")
	r := NewReader(p, DefaultLayout())
	ctx := context.Background()
	uri := "s3://snow-white/" + dtoolTestUUID

	readme, err := r.Readme(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, "name: apples\n", readme)

	manifest, err := r.Manifest(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, "greed.txt", manifest.Items["e4cc3a7dc281c3d89ed4553293c4b4b110dc9bf3"].RelPath)

	_, err = r.Readme(ctx, "s3://snow-white/"+dtoolTestBadUUID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Readme(ctx, "s3://snow-white")
	assert.Error(t, err)

	assert.Same(t, p, r.Provider())
}

func TestReaderScan(t *testing.T) {
	p := NewMemoryProvider()
	seedDtool(p, "datasets/", dtoolTestUUID, "description: apples\n")
	seedDtool(p, "datasets/", dtoolTestBadUUID, "description: [unclosed\n")
	p.Put(storageTestBucket, "datasets/"+dtoolTestNoAdmin+"/README.yml", []byte("x: 1\n"))
	p.Put(storageTestBucket, "datasets/not-a-dataset/README.yml", []byte("x: 1\n"))
	p.Put(storageTestBucket, "datasets/loose-file", []byte("x"))

	infos, skipped, err := NewReader(p, nil).Scan(context.Background(), dtoolTestBase)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, dtoolTestUUID, infos[0].UUID)

	require.Len(t, skipped, 2)
	uris := []string{skipped[0].URI, skipped[1].URI}
	assert.Contains(t, uris, dtoolTestBase+"/"+dtoolTestBadUUID)
	assert.Contains(t, uris, dtoolTestBase+"/"+dtoolTestNoAdmin)
}

func TestReaderScanInvalidBase(t *testing.T) {
	_, _, err := NewReader(NewMemoryProvider(), nil).Scan(context.Background(), "not a uri")
	assert.Error(t, err)
}

type failingProvider struct {
	*MemoryProvider
}

func (failingProvider) ListObjects(context.Context, string, string, string) ([]ObjectInfo, []string, error) {
	return nil, nil, errors.New("access denied")
}

func TestReaderScanStorageFailure(t *testing.T) {
	_, _, err := NewReader(failingProvider{NewMemoryProvider()}, nil).Scan(context.Background(), dtoolTestBase)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestCustomLayout(t *testing.T) {
	l, err := NewLayout(LayoutConfig{AdminKey: "{+prefix}dtool-{uuid}"})
	require.NoError(t, err)

	p := NewMemoryProvider()
	seedDtool(p, "", dtoolTestUUID, "")
	body, _ := p.GetObject(context.Background(), storageTestBucket, dtoolTestUUID+"/dtool")
	p.Put(storageTestBucket, "dtool-"+dtoolTestUUID, body)

	info, err := NewReader(p, l).Info(context.Background(), "s3://snow-white/"+dtoolTestUUID)
	require.NoError(t, err)
	assert.Equal(t, "bad-apples", info.Name)

	_, err = NewLayout(LayoutConfig{ReadmeKey: "{uuid"})
	assert.Error(t, err)
}
