package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"crm_automation/domain/entities"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleData = `
environments:
  uat:
    url: https://uat.example.my.salesforce.com
users:
  uat:
    admin:
      username: admin@example.com.uat
      password: ${CRM_TEST_ADMIN_PASSWORD}
addresses:
  US:
    street: 1 Market St
    city: San Francisco
    state: CA
    postalCode: "94105"
    country: United States
defaults:
  lead:
    status: Open - Not Contacted
`

func newTestData(t *testing.T) *TestData {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	d := NewTestData(logger)
	require.NoError(t, d.LoadBytes("sample", []byte(sampleData)))
	return d
}

func TestEnvironmentLookup(t *testing.T) {
	d := newTestData(t)

	env, err := d.Environment("uat")
	require.NoError(t, err)
	assert.Equal(t, "uat", env.Name)
	assert.Equal(t, "https://uat.example.my.salesforce.com", env.URL)

	_, err = d.Environment("prod")
	var nf *entities.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"uat"}, nf.Available)
}

func TestUserPasswordExpandedFromEnvironment(t *testing.T) {
	t.Setenv("CRM_TEST_ADMIN_PASSWORD", "s3cret")
	d := newTestData(t)

	creds, err := d.User("uat", "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com.uat", creds.Username)
	assert.Equal(t, "s3cret", creds.Password)

	_, err = d.User("uat", "sales")
	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.Contains(t, err.Error(), "uat.sales")
}

func TestAddressIsCaseInsensitive(t *testing.T) {
	d := newTestData(t)

	addr, err := d.Address("us")
	require.NoError(t, err)
	zip, ok := addr.Field("zip")
	assert.True(t, ok)
	assert.Equal(t, "94105", zip)
}

func TestDefaults(t *testing.T) {
	d := newTestData(t)

	v, err := d.Default("lead", "status")
	require.NoError(t, err)
	assert.Equal(t, "Open - Not Contacted", v)

	_, err = d.Default("lead", "rating")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestLoadRejectsUnknownSections(t *testing.T) {
	d := NewTestData(logrus.New())

	err := d.LoadBytes("bad", []byte("accounts:\n  acme: {}\n"))

	var loadErr *entities.LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestLoadMissingFile(t *testing.T) {
	d := NewTestData(logrus.New())

	err := d.Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStringDoesNotLeakPasswords(t *testing.T) {
	t.Setenv("CRM_TEST_ADMIN_PASSWORD", "s3cret")
	d := newTestData(t)

	assert.NotContains(t, d.String(), "s3cret")
}

func TestArtifactsLayout(t *testing.T) {
	root := t.TempDir()

	a, err := NewArtifacts(root)
	require.NoError(t, err)

	_, err = uuid.Parse(a.RunID)
	require.NoError(t, err)
	for _, dir := range []string{a.ScreenshotDir(), a.VideoDir(), a.TraceDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.True(t, strings.HasPrefix(dir, filepath.Join(root, a.RunID)))
	}

	session := a.Session("Convert lead: happy path!")
	assert.Equal(t, filepath.Join(a.VideoDir(), "convert_lead_happy_path"), session.VideoDir)
	assert.Equal(t, filepath.Join(a.TraceDir(), "convert_lead_happy_path.zip"), session.TracePath)

	shot := a.Screenshot("Login")
	assert.True(t, strings.HasPrefix(filepath.Base(shot), "login_"))
	assert.Equal(t, ".png", filepath.Ext(shot))
}

func TestReportRoundTrip(t *testing.T) {
	a, err := NewArtifacts(t.TempDir())
	require.NoError(t, err)

	in := map[string]int{"passed": 3, "failed": 1}
	require.NoError(t, a.SaveReport(in))

	var out map[string]int
	require.NoError(t, a.LoadReport(&out))
	assert.Equal(t, in, out)
}
