package patterns

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"crm_automation/domain/entities"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func loadFixture(t *testing.T) *Store {
	t.Helper()
	store := NewStore(quietLogger())
	require.NoError(t, store.Load(filepath.Join("testdata", "patterns.yaml")))
	return store
}

func TestLoadPopulatesTables(t *testing.T) {
	store := loadFixture(t)

	p, tmpl, st := store.Stats()
	assert.Equal(t, 6, p)
	assert.Equal(t, 2, tmpl)
	assert.Equal(t, 1, st)

	pattern, err := store.GetPattern("basic.inputByName")
	require.NoError(t, err)
	assert.Equal(t, "//input[@name='{name}']", pattern)

	username, err := store.GetTemplate("loginPage.usernameField")
	require.NoError(t, err)
	assert.Equal(t, "basic.inputByName", username.Primary)
	assert.Equal(t, entities.Params{"name": "username"}, username.Params)
	require.True(t, username.HasFallback())
	assert.Equal(t, "basic.inputById", username.Fallback.Primary)
	assert.Equal(t, entities.Params{"id": "username"}, username.Fallback.Params)

	logo, err := store.GetStatic("loginPage.logo")
	require.NoError(t, err)
	assert.Equal(t, "//img[@id='logo']", logo)
}

func TestLoadIsIdempotent(t *testing.T) {
	store := loadFixture(t)
	before := store.TemplatePaths()
	p1, t1, s1 := store.Stats()

	require.NoError(t, store.Load(filepath.Join("testdata", "patterns.yaml")))

	p2, t2, s2 := store.Stats()
	assert.Equal(t, before, store.TemplatePaths())
	assert.Equal(t, []int{p1, t1, s1}, []int{p2, t2, s2})
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(quietLogger())

	err := store.Load(filepath.Join(t.TempDir(), "absent.yaml"))

	var loadErr *entities.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadRejectsMalformedDocuments(t *testing.T) {
	cases := map[string]string{
		"empty":           "   \n",
		"not yaml":        "patterns: [unclosed",
		"missing primary": "patterns: {}\ntemplates:\n  page:\n    el:\n      params: {a: b}\n",
		"unknown section": "patterns: {}\nwidgets: {}\n",
		"no patterns":     "templates: {}\n",
		"bad fallback":    "patterns: {}\ntemplates:\n  page:\n    el:\n      primary: a.b\n      fallback: {params: {x: y}}\n",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			store := NewStore(quietLogger())
			err := store.LoadBytes(name, []byte(doc))

			var loadErr *entities.LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, name, loadErr.Source)
		})
	}
}

func TestLoadAcceptsJSONAndPageElementsAlias(t *testing.T) {
	doc := `{
		"patterns": {"basic": {"inputById": "//input[@id='{id}']"}},
		"pageElements": {"quotePage": {"total": {"primary": "basic.inputById", "params": {"id": "total", "index": 2}}}}
	}`
	store := NewStore(quietLogger())
	require.NoError(t, store.LoadBytes("inline.json", []byte(doc)))

	tmpl, err := store.GetTemplate("quotePage.total")
	require.NoError(t, err)
	assert.Equal(t, entities.Params{"id": "total", "index": "2"}, tmpl.Params)
	assert.False(t, tmpl.HasFallback())
}

func TestGetPatternNotFoundListsSiblings(t *testing.T) {
	store := loadFixture(t)

	_, err := store.GetPattern("basic.selectByName")

	var nf *entities.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.Equal(t, "basic.selectByName", nf.Path)
	assert.Equal(t, "basic", nf.Parent)
	assert.Equal(t, []string{"buttonByText", "inputById", "inputByName"}, nf.Available)
	assert.Contains(t, err.Error(), "basic.selectByName")
}

func TestGetTemplateNotFoundAtRoot(t *testing.T) {
	store := loadFixture(t)

	_, err := store.GetTemplate("nonexistent.path")

	var nf *entities.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "", nf.Parent)
	assert.Equal(t, []string{"loginPage"}, nf.Available)
	assert.Contains(t, err.Error(), "nonexistent.path")
}

func TestGetTemplateReturnsCopy(t *testing.T) {
	store := loadFixture(t)

	tmpl, err := store.GetTemplate("loginPage.usernameField")
	require.NoError(t, err)
	tmpl.Params["name"] = "mutated"
	tmpl.Fallback.Params["id"] = "mutated"

	again, err := store.GetTemplate("loginPage.usernameField")
	require.NoError(t, err)
	assert.Equal(t, "username", again.Params["name"])
	assert.Equal(t, "username", again.Fallback.Params["id"])
}

func TestValidate(t *testing.T) {
	t.Run("fixture is consistent", func(t *testing.T) {
		assert.NoError(t, loadFixture(t).Validate())
	})

	t.Run("reports every dangling reference", func(t *testing.T) {
		doc := `
patterns:
  basic:
    a: "//a[{@basic.missing}]"
    loop1: "{@basic.loop2}"
    loop2: "{@basic.loop1}"
templates:
  page:
    one: {primary: basic.nope}
    two: {primary: basic.a, fallback: {primary: basic.gone}}
`
		store := NewStore(quietLogger())
		require.NoError(t, store.LoadBytes("broken", []byte(doc)))

		err := store.Validate()
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "basic.nope")
		assert.Contains(t, msg, "basic.gone")
		assert.Contains(t, msg, "basic.missing")
		assert.ErrorIs(t, err, entities.ErrPatternCycle)
	})
}

func TestRemove(t *testing.T) {
	store := loadFixture(t)
	store.Remove("basic.inputByName")

	_, err := store.GetPattern("basic.inputByName")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}
