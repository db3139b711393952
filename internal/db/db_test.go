package db

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/serialmux"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_AppliesMigrations(t *testing.T) {
	db := newTestDB(t)

	migrations, err := getMigrationsFS()
	require.NoError(t, err)
	version, dirty, err := db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	for _, table := range []string{"controller_port", "display_snapshot", "display_snapshot_led", "sensor_reading"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db := newTestDB(t)
	migrations, err := getMigrationsFS()
	require.NoError(t, err)

	require.NoError(t, db.MigrateDown(migrations))
	version, _, err := db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, db.MigrateUp(migrations))
	version, _, err = db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.db")
	require.NoError(t, RunMigrateCommand([]string{"up"}, path))
	require.NoError(t, RunMigrateCommand([]string{"status"}, path))
	assert.Error(t, RunMigrateCommand(nil, path))
	assert.Error(t, RunMigrateCommand([]string{"sideways"}, path))
	assert.Error(t, RunMigrateCommand([]string{"force", "x"}, path))
}

func TestControllerPorts(t *testing.T) {
	db := newTestDB(t)

	p, err := db.ControllerPortFor("Teensy1")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, db.SaveControllerPort(&ControllerPort{Identity: "Teensy1", PortPath: "/dev/ttyACM0", Enabled: true}))
	require.NoError(t, db.SaveControllerPort(&ControllerPort{Identity: "Teensy2", PortPath: "/dev/ttyACM1", BaudRate: 115200}))

	p, err = db.ControllerPortFor("Teensy1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "/dev/ttyACM0", p.PortPath)
	assert.True(t, p.Enabled)
	assert.Equal(t, serialmux.PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}, p.Options())

	// Saving the same identity updates in place.
	require.NoError(t, db.SaveControllerPort(&ControllerPort{Identity: "Teensy1", PortPath: "/dev/ttyACM2"}))
	ports, err := db.ControllerPorts()
	require.NoError(t, err)
	require.Len(t, ports, 2)
	assert.Equal(t, "/dev/ttyACM2", ports[0].PortPath)
	assert.False(t, ports[0].Enabled)
	assert.Equal(t, 115200, ports[1].BaudRate)

	assert.Error(t, db.SaveControllerPort(&ControllerPort{Identity: "Teensy3", PortPath: "x", Parity: "Q"}))

	require.NoError(t, db.DeleteControllerPort("Teensy2"))
	assert.Error(t, db.DeleteControllerPort("Teensy2"))
}

func TestSnapshots(t *testing.T) {
	db := newTestDB(t)

	latest, err := db.LatestSnapshot()
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = db.SaveSnapshot("short", make([]led.Color, 3))
	assert.ErrorIs(t, err, led.ErrWrongLength)

	colors := led.Fill(led.Count, led.Black)
	colors[0] = led.Color{R: 1, G: 2, B: 3}
	colors[led.Count-1] = led.Color{R: 255}
	first, err := db.SaveSnapshot("first", colors)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	second, err := db.SaveSnapshot("second", led.Fill(led.Count, led.Color{G: 9}))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	latest, err = db.LatestSnapshot()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second, latest.ID)
	assert.Equal(t, led.Color{G: 9}, latest.Colors[100])

	s, err := db.Snapshot(first)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "first", s.Label)
	assert.Equal(t, colors, s.Colors)

	missing, err := db.Snapshot("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := db.Snapshots(10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Label)
	assert.Nil(t, list[0].Colors)
}

func TestReadings(t *testing.T) {
	db := newTestDB(t)

	base := time.Unix(1_700_000_000, 0)
	require.NoError(t, db.RecordReading(Reading{TakenAt: base, Identity: "Teensy1", Raw: 10, Smoothed: 10, Level: 1}))
	require.NoError(t, db.RecordReading(Reading{TakenAt: base.Add(time.Second), Identity: "Teensy1", Raw: 900, Smoothed: 99, Level: 4}))

	got, err := db.Readings(5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint16(900), got[0].Raw)
	assert.InDelta(t, 99.0, got[0].Smoothed, 1e-9)
	assert.Equal(t, 4, got[0].Level)
	assert.WithinDuration(t, base.Add(time.Second), got[0].TakenAt, time.Millisecond)

	got, err = db.Readings(1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "schema version")
}
