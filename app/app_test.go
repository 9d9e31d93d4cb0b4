package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zen-records/config"
	"zen-records/domain"
	"zen-records/storage"
)

func TestOpenWithFileBackend(t *testing.T) {
	logger, _ := test.NewNullLogger()
	dir := t.TempDir()
	cfg := config.Config{
		AgendaBackend: config.BackendFile,
		AgendaKey:     "agenda_zen",
		DataDir:       dir,
		ClinicDB:      filepath.Join(dir, "clinic.db"),
	}
	ctx := context.Background()

	rt, err := Open(ctx, cfg, logger)
	require.NoError(t, err)
	_, err = rt.Agenda.AddTask(ctx, "Persist me", domain.PriorityNormal)
	require.NoError(t, err)
	_, err = rt.Clinic.CreatePatient(ctx, domain.Patient{Name: "Ana", NationalID: "123"})
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	rt, err = Open(ctx, cfg, logger)
	require.NoError(t, err)
	defer rt.Close()

	texts := make([]string, 0)
	for _, task := range rt.Agenda.Snapshot().Tasks {
		texts = append(texts, task.Text)
	}
	assert.Contains(t, texts, "Persist me")
	patients, err := rt.Clinic.Patients(ctx)
	require.NoError(t, err)
	assert.Len(t, patients, 1)
}

func TestAgendaKVUsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	logger, _ := test.NewNullLogger()
	cfg := config.Config{
		AgendaBackend:         config.BackendMemory,
		RedisConnectionString: mr.Addr(),
		CacheTTL:              time.Minute,
	}
	ctx := context.Background()

	kv, rc, err := AgendaKV(ctx, cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, rc)
	defer rc.Close()
	_, ok := kv.(*storage.Cache)
	require.True(t, ok, "expected cache wrapper, got %T", kv)

	require.NoError(t, kv.Set(ctx, "slot", []byte("v1")))
	got, err := kv.Get(ctx, "slot")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
	assert.NotEmpty(t, mr.Keys(), "read must populate the cache")
}

func TestAgendaKVRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	logger, _ := test.NewNullLogger()
	cfg := config.Config{AgendaBackend: config.BackendRedis, RedisConnectionString: mr.Addr(), CacheTTL: time.Minute}

	kv, rc, err := AgendaKV(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer rc.Close()
	_, ok := kv.(*storage.RedisStore)
	assert.True(t, ok, "redis backend must not be cached twice, got %T", kv)
}
