package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famlysync/internal/testutil"
	"famlysync/pkg/catalog"
	"famlysync/pkg/checkpoint"
	"famlysync/pkg/config"
	"famlysync/pkg/famly"
	"famlysync/pkg/logger"
)

const token = "secret"

type env struct {
	fake    *testutil.FakeFamly
	cfg     *config.Config
	store   *checkpoint.Store
	catalog *catalog.Catalog
	out     *bytes.Buffer
	logger  *logger.TestLogger
}

func newEnv(t *testing.T) *env {
	t.Helper()

	fake := testutil.NewFakeFamly(token)
	t.Cleanup(fake.Close)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.APIBaseURL = fake.URL()
	cfg.AccessToken = token
	cfg.ItemsPerRequest = 2
	cfg.OutputDir = filepath.Join(dir, "images")
	cfg.MetadataPath = filepath.Join(dir, "metadata.json")

	cat, err := catalog.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	return &env{
		fake:    fake,
		cfg:     cfg,
		store:   checkpoint.NewStore(cfg.MetadataPath, logger.NewNopLogger()),
		catalog: cat,
		out:     &bytes.Buffer{},
		logger:  logger.NewTestLogger(),
	}
}

func (e *env) syncer(withCatalog bool) *Syncer {
	client := famly.NewClient(e.cfg, token, logger.NewNopLogger())
	var rec Recorder
	if withCatalog {
		rec = e.catalog
	}
	s := New(e.cfg, client, e.store, rec, e.logger)
	s.SetOutput(e.out)
	return s
}

func (e *env) checkpointFile(t *testing.T) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(e.cfg.MetadataPath)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

func TestRunDownloadsAllPagesAndAdvancesCheckpoint(t *testing.T) {
	e := newEnv(t)
	e.fake.AddChild("c-1", "Ada",
		testutil.FakeImage{ID: "i1", CreatedAt: "2024-03-01T10:00:00Z"},
		testutil.FakeImage{ID: "i2", CreatedAt: "2024-03-02T10:00:00Z"},
		testutil.FakeImage{ID: "i3", CreatedAt: "2024-04-05T10:00:00Z"},
	)

	report, err := e.syncer(true).Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, report.Children, 1)

	cr := report.Children[0]
	assert.Equal(t, 3, cr.Found)
	assert.Equal(t, 3, cr.Downloaded)
	assert.Equal(t, 0, cr.Failed)
	require.NotNil(t, cr.NewCutoff)
	assert.True(t, cr.NewCutoff.Equal(time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC)))

	for _, p := range []string{"Ada/2024/3/i1.jpg", "Ada/2024/3/i2.jpg", "Ada/2024/4/i3.jpg"} {
		assert.FileExists(t, filepath.Join(e.cfg.OutputDir, p))
	}

	children := e.checkpointFile(t)["children"].(map[string]interface{})
	assert.Equal(t, "2024-04-05T10:00:00Z", children["c-1"])
	assert.Equal(t, 3, e.fake.Downloads())
}

func TestRunIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.fake.AddChild("c-1", "Ada",
		testutil.FakeImage{ID: "i1", CreatedAt: "2024-03-01T10:00:00Z"},
		testutil.FakeImage{ID: "i2", CreatedAt: "2024-03-02T10:00:00Z"},
	)

	_, err := e.syncer(false).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, e.fake.Downloads())

	report, err := e.syncer(false).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Downloaded())
	assert.Equal(t, 2, e.fake.Downloads())
	assert.Contains(t, e.out.String(), "No new images")
}

func TestRunOnlyFetchesNewerThanCheckpoint(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.cfg.MetadataPath,
		[]byte(`{"children":{"c-1":"2024-03-02T10:00:00Z"}}`), 0644))

	e.fake.AddChild("c-1", "Ada",
		testutil.FakeImage{ID: "old", CreatedAt: "2024-03-01T10:00:00Z"},
		testutil.FakeImage{ID: "edge", CreatedAt: "2024-03-02T10:00:00Z"},
		testutil.FakeImage{ID: "new", CreatedAt: "2024-03-03T10:00:00Z"},
	)

	report, err := e.syncer(false).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Children[0].Downloaded)
	assert.FileExists(t, filepath.Join(e.cfg.OutputDir, "Ada", "2024", "3", "new.jpg"))
	assert.NoFileExists(t, filepath.Join(e.cfg.OutputDir, "Ada", "2024", "3", "edge.jpg"))
}

func TestRunKeepsChildrenIndependent(t *testing.T) {
	e := newEnv(t)
	e.fake.AddChild("c-1", "Ada", testutil.FakeImage{ID: "a1", CreatedAt: "2024-03-01T10:00:00Z"})
	e.fake.AddChild("c-2", "Grace")

	report, err := e.syncer(false).Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, report.Children, 2)

	assert.Equal(t, 1, report.Children[0].Downloaded)
	assert.Nil(t, report.Children[1].NewCutoff)

	children := e.checkpointFile(t)["children"].(map[string]interface{})
	assert.Contains(t, children, "c-1")
	assert.NotContains(t, children, "c-2")
}

func TestRunCreatesEmptyCheckpoint(t *testing.T) {
	e := newEnv(t)

	report, err := e.syncer(false).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Children)

	data, err := os.ReadFile(e.cfg.MetadataPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestRunRejectsCorruptCheckpoint(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.cfg.MetadataPath, []byte(`{not json`), 0644))
	e.fake.AddChild("c-1", "Ada", testutil.FakeImage{ID: "a1", CreatedAt: "2024-03-01T10:00:00Z"})

	_, err := e.syncer(false).Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Equal(t, 0, e.fake.Downloads())
	assert.Empty(t, e.fake.TaggedRequests())
}

func TestRunFailedDownloadStillAdvancesCheckpoint(t *testing.T) {
	e := newEnv(t)
	e.fake.AddChild("c-1", "Ada",
		testutil.FakeImage{ID: "ok", CreatedAt: "2024-03-01T10:00:00Z"},
		testutil.FakeImage{ID: "broken", CreatedAt: "2024-03-02T10:00:00Z"},
	)
	e.fake.FailImage("broken", http.StatusForbidden)

	report, err := e.syncer(false).Run(context.Background(), Options{})
	require.NoError(t, err)

	cr := report.Children[0]
	assert.Equal(t, 1, cr.Downloaded)
	assert.Equal(t, 1, cr.Failed)
	assert.Contains(t, e.out.String(), "(2/2)")

	children := e.checkpointFile(t)["children"].(map[string]interface{})
	assert.Equal(t, "2024-03-02T10:00:00Z", children["c-1"])
}

func TestRunDryRunWritesNothing(t *testing.T) {
	e := newEnv(t)
	e.fake.AddChild("c-1", "Ada", testutil.FakeImage{ID: "a1", CreatedAt: "2024-03-01T10:00:00Z"})

	report, err := e.syncer(true).Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	cr := report.Children[0]
	assert.Equal(t, []string{filepath.Join(e.cfg.OutputDir, "Ada", "2024", "3", "a1.jpg")}, cr.Planned)
	assert.Equal(t, 0, e.fake.Downloads())
	assert.NoDirExists(t, e.cfg.OutputDir)

	assert.JSONEq(t, `{}`, mustRead(t, e.cfg.MetadataPath))

	last, err := e.catalog.LastRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestRunChildFilter(t *testing.T) {
	e := newEnv(t)
	e.fake.AddChild("c-1", "Ada", testutil.FakeImage{ID: "a1", CreatedAt: "2024-03-01T10:00:00Z"})
	e.fake.AddChild("c-2", "Grace", testutil.FakeImage{ID: "g1", CreatedAt: "2024-03-01T10:00:00Z"})

	report, err := e.syncer(false).Run(context.Background(), Options{Children: []string{"grace"}})
	require.NoError(t, err)
	require.Len(t, report.Children, 1)
	assert.Equal(t, "c-2", report.Children[0].ID)

	report, err = e.syncer(false).Run(context.Background(), Options{Children: []string{"c-1"}})
	require.NoError(t, err)
	require.Len(t, report.Children, 1)
	assert.Equal(t, "Ada", report.Children[0].Name)
}

func TestRunChildrenListFailure(t *testing.T) {
	e := newEnv(t)
	e.fake.FailChildren(http.StatusUnauthorized)

	report, err := e.syncer(false).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Children)
	assert.True(t, e.logger.HasMessage("ERROR", "Failed to list children"))
	assert.Empty(t, e.fake.TaggedRequests())
}

func TestRunPageFailureKeepsEarlierPages(t *testing.T) {
	e := newEnv(t)
	e.fake.AddChild("c-1", "Ada",
		testutil.FakeImage{ID: "i1", CreatedAt: "2024-03-01T10:00:00Z"},
		testutil.FakeImage{ID: "i2", CreatedAt: "2024-03-02T10:00:00Z"},
		testutil.FakeImage{ID: "i3", CreatedAt: "2024-03-03T10:00:00Z"},
	)
	e.fake.FailPage("c-1", "2024-03-02T10:00:00Z", http.StatusInternalServerError)

	report, err := e.syncer(false).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Children[0].Downloaded)
}

func TestRunRecordsCatalog(t *testing.T) {
	e := newEnv(t)
	e.fake.AddChild("c-1", "Ada",
		testutil.FakeImage{ID: "i1", CreatedAt: "2024-03-01T10:00:00Z"},
		testutil.FakeImage{ID: "i2", CreatedAt: "2024-03-02T10:00:00Z"},
	)
	ctx := context.Background()

	report, err := e.syncer(true).Run(ctx, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)

	has, err := e.catalog.Has(ctx, "i2")
	require.NoError(t, err)
	assert.True(t, has)

	last, err := e.catalog.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, report.RunID, last.ID)
	assert.Equal(t, 2, last.Downloaded)
	assert.NotNil(t, last.FinishedAt)
}

func TestRunNotesReplacedImages(t *testing.T) {
	e := newEnv(t)
	e.fake.AddChild("c-1", "Ada", testutil.FakeImage{ID: "i1", CreatedAt: "2024-03-01T10:00:00Z"})

	_, err := e.syncer(true).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.False(t, e.logger.HasMessage("INFO", "already on disk"))

	require.NoError(t, e.store.Reset(""))
	_, err = e.syncer(true).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, e.fake.Downloads())
	found := false
	for _, m := range e.logger.GetMessagesByLevel("INFO") {
		if m.Message == "Image already on disk, replacing" {
			found = true
			assert.Equal(t, "i1", m.Fields["image_id"])
			assert.Equal(t, true, m.Fields["cataloged"])
		}
	}
	assert.True(t, found)
}

func TestRunTagsExifImages(t *testing.T) {
	e := newEnv(t)
	e.fake.SetImageBody(testutil.ExifJPEG("2001:01:01 00:00:00"))
	e.fake.AddChild("c-1", "Ada", testutil.FakeImage{ID: "i1", CreatedAt: "2024-03-01T10:15:30Z"})

	report, err := e.syncer(false).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Children[0].TagWarnings)

	got, _, err := testutil.ExifDates(filepath.Join(e.cfg.OutputDir, "Ada", "2024", "3", "i1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "2024:03:01 10:15:30", got)
}

func TestRunCancelledLeavesCheckpoint(t *testing.T) {
	e := newEnv(t)
	e.fake.AddChild("c-1", "Ada", testutil.FakeImage{ID: "i1", CreatedAt: "2024-03-01T10:00:00Z"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.syncer(false).Run(ctx, Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, e.fake.Downloads())
	assert.JSONEq(t, `{}`, mustRead(t, e.cfg.MetadataPath))
}

func TestSelectChildren(t *testing.T) {
	children := []famly.Child{{ID: "c-1", Name: "Ada"}, {ID: "c-2", Name: "Grace"}}

	assert.Equal(t, children, selectChildren(children, nil))
	assert.Equal(t, children[1:], selectChildren(children, []string{"GRACE"}))
	assert.Empty(t, selectChildren(children, []string{"nobody"}))
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
