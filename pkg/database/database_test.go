package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

type probeModel struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(&Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestNew_SQLiteAndMigrate(t *testing.T) {
	req := require.New(t)

	db, err := New(&Config{
		Driver:       "sqlite",
		FilePath:     fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	req.NoError(err)
	req.NoError(AutoMigrate(db, &probeModel{}))

	row := probeModel{ID: "a"}
	req.NoError(db.Create(&row).Error)
	req.Equal(time.UTC, row.CreatedAt.Location())

	req.NoError(Close(db))
	req.Error(db.Exec("SELECT 1").Error)
}

func TestDialector_DriverNamesAreCaseInsensitive(t *testing.T) {
	d, err := dialector(&Config{Driver: "SQLite"})
	require.NoError(t, err)
	require.Equal(t, "sqlite", d.Name())
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, logger.Silent, parseLogLevel("silent"))
	require.Equal(t, logger.Error, parseLogLevel("ERROR"))
	require.Equal(t, logger.Info, parseLogLevel("info"))
	require.Equal(t, logger.Warn, parseLogLevel(""))
}
