package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	t.Run("eight principles with six indicators each", func(t *testing.T) {
		principles := c.Principles()
		require.Len(t, principles, 8)
		for _, p := range principles {
			assert.Len(t, p.Indicators, 6, p.ID)
		}
		assert.Equal(t, 48, c.Size())
	})

	t.Run("lookup by code", func(t *testing.T) {
		ind, ok := c.Lookup("FIN-004")
		require.True(t, ok)
		assert.Equal(t, "Daily Reconciliation", ind.Title)
		assert.Equal(t, "finance", ind.Principle)

		_, ok = c.Lookup("NOPE-999")
		assert.False(t, ok)
	})

	t.Run("mandatory-at-intake covers finance and aml", func(t *testing.T) {
		mandatory := c.MandatoryIndicators()
		require.Len(t, mandatory, 12)
		principles := map[string]bool{}
		for _, ind := range mandatory {
			principles[ind.Principle] = true
		}
		assert.Equal(t, map[string]bool{"finance": true, "aml": true}, principles)
	})

	t.Run("indicators preserve catalog order", func(t *testing.T) {
		all := c.Indicators()
		assert.Equal(t, "FIN-001", all[0].ID)
		assert.Equal(t, "DP-006", all[len(all)-1].ID)
	})
}

func TestLoadFromFile(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		content := `
principles:
  - id: pilot
    title: Pilot
    description: minimal catalog
    mandatory_at_intake: true
    indicators:
      - id: PIL-001
        title: One
        description: first
      - id: PIL-002
        title: Two
        description: second
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 2, c.Size())
		assert.Len(t, c.MandatoryIndicators(), 2)
	})

	t.Run("duplicate indicator ids rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		content := `
principles:
  - id: pilot
    title: Pilot
    indicators:
      - id: PIL-001
        title: One
      - id: PIL-001
        title: Dup
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate indicator id")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}
