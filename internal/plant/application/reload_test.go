package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solar-dashboard/internal/audit"
	plant "solar-dashboard/internal/plant/domain"
	"solar-dashboard/internal/plant/infrastructure/files"
	"solar-dashboard/internal/plant/infrastructure/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type stubLoader struct {
	data       *plant.Data
	records    []plant.PerformanceRecord
	tickets    []plant.Ticket
	plantErr   error
	historyErr error
	ticketsErr error
}

func (l *stubLoader) LoadPlant(string) (*plant.Data, error) {
	return l.data, l.plantErr
}

func (l *stubLoader) LoadHistory(string) ([]plant.PerformanceRecord, error) {
	return l.records, l.historyErr
}

func (l *stubLoader) LoadTickets(string) ([]plant.Ticket, error) {
	return l.tickets, l.ticketsErr
}

type recordingAudit struct {
	entries []audit.Entry
}

func (a *recordingAudit) Log(_ context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func sampleLoader() *stubLoader {
	return &stubLoader{
		data: &plant.Data{
			Plant:      plant.Plant{ID: "PV-001", Name: "Norte"},
			Equipment:  []plant.Equipment{{ID: "INV-01"}, {ID: "INV-02"}},
			Thresholds: []plant.Threshold{{KPI: "PR", Yellow: 0.78, Red: 0.75}},
		},
		records: []plant.PerformanceRecord{{PlantID: "PV-001"}, {PlantID: "PV-001"}},
		tickets: []plant.Ticket{{ID: "T1", Status: plant.StatusPending}},
	}
}

func newReloadService(t *testing.T, loader SourceLoader, opts ...ReloadOption) (*ReloadService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	opts = append([]ReloadOption{WithReloadLogger(zaptest.NewLogger(t))}, opts...)
	svc, err := NewReloadService(store, loader, opts...)
	require.NoError(t, err)
	return svc, store
}

func TestNewReloadServiceRejectsNilDeps(t *testing.T) {
	_, err := NewReloadService(nil, sampleLoader())
	require.Error(t, err)
	_, err = NewReloadService(memory.NewStore(), nil)
	require.Error(t, err)
}

func TestReloadWithoutFolder(t *testing.T) {
	svc, _ := newReloadService(t, sampleLoader())
	_, err := svc.Reload(context.Background())
	assert.True(t, errors.Is(err, plant.ErrDataFolderNotConfigured))
}

func TestSetDataFolderMustExist(t *testing.T) {
	svc, _ := newReloadService(t, sampleLoader())

	err := svc.SetDataFolder(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	require.Error(t, svc.SetDataFolder(file))

	require.NoError(t, svc.SetDataFolder(t.TempDir()))
	assert.NotEmpty(t, svc.DataFolder())
}

func TestReloadLoadsAllFiles(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recorder := &recordingAudit{}
	svc, store := newReloadService(t, sampleLoader(), WithReloadClock(fixedClock{t: now}), WithReloadAudit(recorder))
	require.NoError(t, svc.SetDataFolder(t.TempDir()))

	result, err := svc.Reload(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Equal(t, map[string]string{ResultPlant: "OK", ResultHistory: "OK", ResultTickets: "OK"}, result.Results)
	assert.Equal(t, 4, result.FilesLoaded[files.PlantWorkbookFile])
	assert.Equal(t, 2, result.FilesLoaded[files.HistoryFile])
	assert.Equal(t, 1, result.FilesLoaded[files.TicketsFile])
	assert.Equal(t, now, result.LastReload)
	assert.Equal(t, now, svc.LastReload())

	snap := store.Snapshot()
	p, ok := snap.Plant()
	require.True(t, ok)
	assert.Equal(t, "PV-001", p.ID)
	assert.Len(t, snap.Records, 2)
	assert.Len(t, snap.Tickets, 1)

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.ActionDataReload, recorder.entries[0].Action)
}

func TestReloadIsolatesFailingFile(t *testing.T) {
	loader := sampleLoader()
	svc, store := newReloadService(t, loader)
	require.NoError(t, svc.SetDataFolder(t.TempDir()))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	loader.historyErr = errors.New("bad csv")
	loader.tickets = []plant.Ticket{{ID: "T1", Status: plant.StatusPending}, {ID: "T2", Status: plant.StatusClosed}}

	result, err := svc.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "ERROR: bad csv", result.Results[ResultHistory])
	assert.Equal(t, "OK", result.Results[ResultTickets])
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], files.HistoryFile)

	snap := store.Snapshot()
	assert.Len(t, snap.Records, 2, "previous history must survive a failed load")
	assert.Len(t, snap.Tickets, 2)
	assert.Equal(t, 2, result.FilesLoaded[files.HistoryFile])
}

func TestReloadFromRealFolder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, files.TicketsFile), []byte(
		"ticket_id,planta_id,fecha_creacion,estado,tipo,criticidad,descripcion,costo_estimado_usd,impacto_estimado_kwh,sla_objetivo_horas,responsable\n"+
			"T1,PV-001,2026-01-03,Pendiente,Correctivo,Alta,Falla,100,10,24,Ana\n"), 0o644))

	svc, store := newReloadService(t, files.NewLoader(time.UTC))
	require.NoError(t, svc.SetDataFolder(dir))

	result, err := svc.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Results[ResultPlant], "ERROR:")
	assert.Contains(t, result.Results[ResultHistory], "ERROR:")
	assert.Equal(t, "OK", result.Results[ResultTickets])

	snap := store.Snapshot()
	assert.Nil(t, snap.Data)
	assert.Len(t, snap.Tickets, 1)
}
