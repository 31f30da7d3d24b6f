package psadiag

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefenderScriptQuoting(t *testing.T) {
	script := defenderScript([]string{`C:\AWRoot`, `C:\O'Brien`})
	assert.Contains(t, script, `'C:\AWRoot'`)
	assert.Contains(t, script, `'C:\O''Brien'`)
	assert.Contains(t, script, "Add-MpPreference")
}

func TestFlexibleStringList(t *testing.T) {
	var list flexibleStringList
	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &list))
	assert.Equal(t, flexibleStringList{"a", "b"}, list)

	// ConvertTo-Json collapses single-element arrays to a bare string.
	require.NoError(t, json.Unmarshal([]byte(`"only"`), &list))
	assert.Equal(t, flexibleStringList{"only"}, list)

	assert.Error(t, json.Unmarshal([]byte(`42`), &list))
}
