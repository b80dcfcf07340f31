package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cupid-chocolate/giftlab/internal/config"
	"github.com/cupid-chocolate/giftlab/internal/storage/storagetest"
)

// writeWorkspace writes the fixture CSVs under the default dataset paths and
// a config pointing at them and at a fresh SQLite file.
func writeWorkspace(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "DATA_DIR", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	for table, rel := range config.DefaultDatasets() {
		data, ok := storagetest.Fixtures[table]
		require.True(t, ok, table)
		path := filepath.Join(dir, "data", rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	}

	cfgPath := filepath.Join(dir, "giftlab.yaml")
	cfg := fmt.Sprintf(`database:
  driver: sqlite
  sqlite:
    path: %s
loader:
  data_dir: data
observability:
  log_level: error
`, filepath.Join(dir, "giftlab.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func runJSON(t *testing.T, dest interface{}, args ...string) {
	t.Helper()
	out, err := run(t, append(args, "--json")...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), dest), out)
}

func loadedWorkspace(t *testing.T) string {
	t.Helper()
	cfgPath := writeWorkspace(t)
	_, err := run(t, "load", "-c", cfgPath)
	require.NoError(t, err)
	return cfgPath
}

func TestVersion(t *testing.T) {
	var v map[string]string
	runJSON(t, &v, "version")
	assert.Equal(t, Version, v["version"])

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "giftlab-cli v"+Version+"\n", out)
}

func TestMigrate(t *testing.T) {
	cfgPath := writeWorkspace(t)

	var res struct {
		Driver string `json:"driver"`
		Tables int    `json:"tables"`
	}
	runJSON(t, &res, "migrate", "-c", cfgPath)
	assert.Equal(t, "sqlite", res.Driver)
	assert.Equal(t, 8, res.Tables)
}

func TestLoad(t *testing.T) {
	cfgPath := writeWorkspace(t)

	type loadResult struct {
		Tables []struct {
			Table   string `json:"table"`
			Rows    int    `json:"rows"`
			Skipped bool   `json:"skipped"`
		} `json:"tables"`
	}

	var first loadResult
	runJSON(t, &first, "load", "-c", cfgPath)
	require.Len(t, first.Tables, 8)
	rows := map[string]int{}
	for _, tbl := range first.Tables {
		assert.False(t, tbl.Skipped, tbl.Table)
		rows[tbl.Table] = tbl.Rows
	}
	assert.Equal(t, 5, rows["dim_customer"])
	assert.Equal(t, 6, rows["gift_recommender"])

	var second loadResult
	runJSON(t, &second, "load", "-c", cfgPath)
	for _, tbl := range second.Tables {
		assert.True(t, tbl.Skipped, tbl.Table)
	}

	var forced loadResult
	runJSON(t, &forced, "load", "-c", cfgPath, "--force")
	for _, tbl := range forced.Tables {
		assert.False(t, tbl.Skipped, tbl.Table)
	}
}

func TestSearch(t *testing.T) {
	cfgPath := loadedWorkspace(t)

	var res struct {
		Query   string `json:"query"`
		Results []struct {
			Record struct {
				ProductID string `json:"productId"`
			} `json:"record"`
		} `json:"results"`
	}
	runJSON(t, &res, "search", "raspberry", "truffle", "-c", cfgPath)
	assert.Equal(t, "raspberry truffle", res.Query)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "P001", res.Results[0].Record.ProductID)

	out, err := run(t, "search", "raspberry", "-c", cfgPath, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "Dark Truffle")

	_, err = run(t, "search", "-c", cfgPath)
	assert.Error(t, err)
}

func TestRecommend(t *testing.T) {
	cfgPath := loadedWorkspace(t)

	var single struct {
		CustomerID      string `json:"customerId"`
		Tier            string `json:"tier"`
		Recommendations []struct {
			ProductName string `json:"productName"`
			Why         string `json:"why"`
		} `json:"recommendations"`
	}
	runJSON(t, &single, "recommend", "C001", "-c", cfgPath)
	assert.Equal(t, "personal", single.Tier)
	require.Len(t, single.Recommendations, 2)
	assert.Equal(t, "Dark Truffle", single.Recommendations[0].ProductName)
	assert.NotEmpty(t, single.Recommendations[0].Why)

	_, err := run(t, "recommend", "-c", cfgPath)
	assert.Error(t, err)
	_, err = run(t, "recommend", "C001", "--all", "-c", cfgPath)
	assert.Error(t, err)
}

func TestRecommendAll(t *testing.T) {
	cfgPath := loadedWorkspace(t)

	var batch struct {
		RunID     string         `json:"runId"`
		Customers int            `json:"customers"`
		Tiers     map[string]int `json:"tiers"`
		Results   []struct {
			CustomerID string `json:"customerId"`
		} `json:"results"`
	}
	runJSON(t, &batch, "recommend", "--all", "-c", cfgPath)
	assert.Len(t, batch.RunID, 36)
	assert.Equal(t, 5, batch.Customers)
	assert.Len(t, batch.Results, 5)
	assert.Equal(t, map[string]int{"personal": 2, "cohort": 1, "persona": 1, "global": 1}, batch.Tiers)
}

func TestLetterAndChat(t *testing.T) {
	cfgPath := loadedWorkspace(t)

	var letter struct {
		Events []interface{} `json:"events"`
		Letter struct {
			Text   string `json:"text"`
			Source string `json:"source"`
		} `json:"letter"`
	}
	runJSON(t, &letter, "letter", "C001", "--tone", "playful", "-c", cfgPath)
	assert.Len(t, letter.Events, 3)
	assert.Equal(t, "heuristic", letter.Letter.Source)
	assert.Contains(t, letter.Letter.Text, "Ava")

	var chat struct {
		Question string `json:"question"`
		Answer   struct {
			Text string `json:"text"`
		} `json:"answer"`
	}
	runJSON(t, &chat, "chat", "how", "did", "retail", "do?", "--channel", "retail", "-c", cfgPath)
	assert.Equal(t, "how did retail do?", chat.Question)
	assert.NotEmpty(t, chat.Answer.Text)
}

func TestPlanner(t *testing.T) {
	cfgPath := loadedWorkspace(t)

	var quote struct {
		Quantity int     `json:"quantity"`
		Total    float64 `json:"total"`
	}
	runJSON(t, &quote, "quote", "P001", "--quantity", "6", "--tier", "Gold", "-c", cfgPath)
	assert.Equal(t, 6, quote.Quantity)
	assert.InDelta(t, 67.5, quote.Total, 1e-9)

	_, err := run(t, "quote", "P404", "-c", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	var alerts struct {
		Alerts []struct {
			ProductName string  `json:"productName"`
			Risk        float64 `json:"risk"`
		} `json:"alerts"`
	}
	runJSON(t, &alerts, "alerts", "--limit", "2", "-c", cfgPath)
	require.Len(t, alerts.Alerts, 2)
	assert.Equal(t, "Dark Truffle", alerts.Alerts[0].ProductName)
	assert.Equal(t, "White Bouquet", alerts.Alerts[1].ProductName)

	var plan struct {
		TopGift string        `json:"topGift"`
		Steps   []interface{} `json:"steps"`
	}
	runJSON(t, &plan, "plan", "--budget", "30", "--region", "us-east", "-c", cfgPath)
	assert.NotEmpty(t, plan.TopGift)
	assert.Len(t, plan.Steps, 4)

	_, err = run(t, "concierge", "-c", cfgPath)
	assert.Error(t, err)
	_, err = run(t, "concierge", "--budget=-5", "-c", cfgPath)
	assert.Error(t, err)

	out, err := run(t, "concierge", "--budget", "10", "--no-color", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Milk Hearts")
	assert.NotContains(t, out, "White Bouquet")
}

func TestMatchAndAnalytics(t *testing.T) {
	cfgPath := loadedWorkspace(t)

	var res struct {
		Score   float64  `json:"score"`
		Overlap []string `json:"overlap"`
	}
	runJSON(t, &res, "match", "U001", "U002", "-c", cfgPath)
	assert.InDelta(t, 86.0, res.Score, 1e-9)
	assert.Equal(t, []string{"chocolate", "jazz"}, res.Overlap)

	out, err := run(t, "match", "U001", "U004", "--no-color", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "46.0%")
	assert.Contains(t, out, "No shared interests")

	_, err = run(t, "match", "U001", "U404", "-c", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	var overview struct {
		Tables []struct {
			Table string `json:"table"`
			Rows  int    `json:"rows"`
		} `json:"tables"`
	}
	runJSON(t, &overview, "analytics", "-c", cfgPath)
	require.Len(t, overview.Tables, 8)

	out, err = run(t, "analytics", "--no-color", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "matchmaking")
	assert.Contains(t, out, "Average rating: 4.2")
}
