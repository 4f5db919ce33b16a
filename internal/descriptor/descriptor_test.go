package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func people() Descriptor {
	return Descriptor{
		Table:          "people",
		EntityIDSource: "id",
		Families: []Family{
			{Name: "info", Columns: []ColumnMapping{
				{Name: "n", Source: "name"},
				{Name: "a", Source: "age"},
			}},
			{Name: "meta", Columns: []ColumnMapping{
				{Name: "id", Source: "id"},
			}},
		},
	}
}

func TestFieldSpecs_Order(t *testing.T) {
	t.Parallel()

	got := people().FieldSpecs()
	want := []FieldSpec{
		{Column: Column{"info", "n"}, Source: "name"},
		{Column: Column{"info", "a"}, Source: "age"},
		{Column: Column{"meta", "id"}, Source: "id"},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, "info:n", got[0].Column.String())
}

func TestSources_Distinct(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"id", "name", "age"}, people().Sources())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, people().Validate())

	bad := Descriptor{
		Families: []Family{
			{Name: "info", Columns: []ColumnMapping{
				{Name: "n", Source: "name"},
				{Name: "n", Source: ""},
			}},
			{Name: "", Columns: nil},
		},
	}
	err := bad.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)

	msg := err.Error()
	assert.Contains(t, msg, "entity_id_source must not be empty")
	assert.Contains(t, msg, "column info:n has no source")
	assert.Contains(t, msg, "column info:n declared more than once")
	assert.Contains(t, msg, "families[1].name must not be empty")
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "people.json")
	js := `{
	  "table": "people",
	  "entity_id_source": "id",
	  "families": [
	    { "name": "info", "columns": [ { "name": "n", "source": "name" } ] }
	  ]
	}`
	require.NoError(t, os.WriteFile(path, []byte(js), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "id", d.EntityIDSource)
	assert.Equal(t, []FieldSpec{{Column: Column{"info", "n"}, Source: "name"}}, d.FieldSpecs())

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"families": []}`), 0o644))
	_, err = Load(invalid)
	assert.ErrorIs(t, err, ErrInvalid)
}
