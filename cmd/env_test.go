package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pipeline"
)

// useTestConfig loads the defaults from an empty temp dir, keeps the
// enrichment offline and restores the previous config afterwards.
func useTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))

	oldCfg := cfg
	t.Cleanup(func() {
		cfg = oldCfg
		os.Chdir(origDir)
	})

	c, err := config.Load()
	require.NoError(t, err)
	c.Store.DatabaseURL = filepath.Join(dir, "test.db")
	c.Enrich.Sources = nil
	cfg = c
	return dir
}

func TestAppEnv_Close_Nil(t *testing.T) {
	// Close with all nil fields should not panic.
	env := &appEnv{}
	assert.NotPanics(t, func() {
		env.Close()
	})
}

func TestInitStore_BadDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}

	st, err := initStore(context.Background())
	assert.Nil(t, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitEnv_RunsPipeline(t *testing.T) {
	useTestConfig(t)
	ctx := context.Background()

	env, err := initEnv(ctx, config.ModeRun)
	require.NoError(t, err)
	defer env.Close()

	icp := model.ICP{Niche: "logiciel de devis pour artisans", Sectors: []string{"plomberie"}}
	res, err := env.Orchestrator.Run(ctx, "org1", model.Contact{Email: "a@durand.fr", CompanyName: "Plomberie Durand"}, icp, pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeScheduled, res.Outcome)
	assert.Equal(t, model.SequenceFromFallback, res.Sequence.Source, "no Anthropic key configured")
}

func TestInitEnv_DispatchNeedsRedis(t *testing.T) {
	useTestConfig(t)

	env, err := initEnv(context.Background(), config.ModeDispatch)
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.url is required")
}

func TestInitEnv_WithRedisQuota(t *testing.T) {
	useTestConfig(t)
	mr := miniredis.RunT(t)
	cfg.Redis.URL = "redis://" + mr.Addr()
	ctx := context.Background()

	env, err := initEnv(ctx, config.ModeDispatch)
	require.NoError(t, err)
	defer env.Close()
	require.NotNil(t, env.redis)

	icp := model.ICP{Niche: "logiciel de devis pour artisans"}
	res, err := env.Orchestrator.Run(ctx, "org1", model.Contact{Email: "a@durand.fr", CompanyName: "Durand"}, icp,
		pipeline.RunOptions{AccountID: "acct1"})
	require.NoError(t, err)
	require.NotNil(t, res.Quota)
	assert.Equal(t, 20, res.Quota.Limit, "first warm-up phase")
}

func TestInitEnv_BadRedis(t *testing.T) {
	useTestConfig(t)
	cfg.Redis.URL = "not-a-url"

	_, err := initEnv(context.Background(), config.ModeRun)
	assert.Error(t, err)
}

func TestInitCompleter_NoKey(t *testing.T) {
	useTestConfig(t)
	assert.Nil(t, initCompleter("reply", ""))

	cfg.Anthropic.Key = "sk-ant-test"
	assert.NotNil(t, initCompleter("reply", ""))
}

func TestLoadICP(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
niche: logiciel de devis pour artisans
sectors: [plomberie, electricite]
cities: [Lyon]
sender_name: Claire
`), 0o644))

	icp, err := loadICP(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"plomberie", "electricite"}, icp.Sectors)
	assert.Equal(t, "Claire", icp.SenderName)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("cities: [Lyon]\n"), 0o644))
	_, err = loadICP(empty)
	assert.True(t, eris.Is(err, model.ErrInvalidICP))

	_, err = loadICP(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestContactFlags(t *testing.T) {
	var f contactFlags
	f.email = " Contact@Durand.FR "
	f.company = "Plomberie Durand"
	f.phones = []string{"06 12 34 56 78"}

	c := f.contact()
	assert.Equal(t, "contact@durand.fr", c.Email)
	assert.Equal(t, "Plomberie Durand", c.CompanyName)
	assert.NoError(t, c.Validate())
}
