package db

import (
	"fmt"
	"time"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewPSQLStorage opens the Postgres connection pool.
func NewPSQLStorage(connString string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connString), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Table pairs a model with the name used on the command line.
type Table struct {
	Name  string
	Model interface{}
}

// Tables lists every model in dependency order: parents before children.
func Tables() []Table {
	return []Table{
		{"User", &models.User{}},
		{"MonthlyAvailability", &models.MonthlyAvailability{}},
		{"Business", &models.Business{}},
		{"Opportunity", &models.Opportunity{}},
		{"Commitment", &models.Commitment{}},
		{"Notification", &models.Notification{}},
		{"Device", &models.Device{}},
		{"Review", &models.Review{}},
		{"Favorite", &models.Favorite{}},
	}
}

// Migrate runs AutoMigrate for every table.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	for _, table := range Tables() {
		logger.Info("Migrating table", zap.String("table", table.Name))
		if err := db.AutoMigrate(table.Model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", table.Name, err)
		}
	}
	return nil
}

// Drop removes the given tables, children first. An empty list drops everything.
func Drop(db *gorm.DB, logger *zap.Logger, tables []Table) error {
	if len(tables) == 0 {
		tables = Tables()
	}
	for i := len(tables) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(tables[i].Model); err != nil {
			logger.Warn("Failed to drop table", zap.String("table", tables[i].Name), zap.Error(err))
			continue
		}
		logger.Info("Table dropped", zap.String("table", tables[i].Name))
	}
	return nil
}

// LookupTables resolves command line table names. Unknown names are returned separately.
func LookupTables(names []string) ([]Table, []string) {
	byName := make(map[string]Table)
	for _, t := range Tables() {
		byName[t.Name] = t
	}

	var found []Table
	var unknown []string
	for _, name := range names {
		if t, ok := byName[name]; ok {
			found = append(found, t)
		} else {
			unknown = append(unknown, name)
		}
	}
	return found, unknown
}
