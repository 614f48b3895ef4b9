// Package sqlite implements the ledger store on a single SQLite file using
// gorm. It serves local and single-operator deployments.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the SQLite database described by dsn and migrates the
// ledger schema. A plain file path or a "file:" DSN are both accepted.
func Open(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.Use(otelgorm.NewPlugin(otelgorm.WithDBName("ledger"))); err != nil {
		return nil, fmt.Errorf("registering tracing plugin: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sqlite handle: %w", err)
	}
	// SQLite allows a single writer; one connection avoids busy errors.
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the ledger tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	err := db.WithContext(ctx).AutoMigrate(
		&partnerModel{},
		&productModel{},
		&employeeModel{},
		&orderModel{},
		&saleModel{},
		&ratingChangeModel{},
	)
	if err != nil {
		return fmt.Errorf("migrating sqlite schema: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type partnerModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement:false"`
	PartnerType  string `gorm:"not null"`
	CompanyName  string `gorm:"not null"`
	LegalAddress string `gorm:"not null;default:''"`
	INN          string `gorm:"column:inn;not null;uniqueIndex"`
	DirectorName string `gorm:"not null;default:''"`
	Email        string `gorm:"not null;default:''"`
	Phone        string `gorm:"not null;default:''"`
	Rating       int    `gorm:"not null"`
}

func (partnerModel) TableName() string { return "partners" }

type productModel struct {
	ID              int64           `gorm:"primaryKey;autoIncrement:false"`
	ProductType     string          `gorm:"not null"`
	Name            string          `gorm:"not null"`
	Article         string          `gorm:"not null;uniqueIndex"`
	MinPartnerPrice decimal.Decimal `gorm:"type:text;not null"`
}

func (productModel) TableName() string { return "products" }

type employeeModel struct {
	ID       int64  `gorm:"primaryKey;autoIncrement:false"`
	FullName string `gorm:"not null"`
	Position string `gorm:"not null;default:'Manager'"`
}

func (employeeModel) TableName() string { return "employees" }

type orderModel struct {
	ID                  string `gorm:"primaryKey"`
	PartnerID           int64  `gorm:"not null;index"`
	ManagerID           *int64
	CreatedAt           time.Time       `gorm:"not null;autoCreateTime:false;index:idx_orders_status_created_at,priority:2"`
	Items               string          `gorm:"type:text;not null"`
	Status              string          `gorm:"not null;index:idx_orders_status_created_at,priority:1"`
	Subtotal            decimal.Decimal `gorm:"type:text;not null"`
	DiscountRate        decimal.Decimal `gorm:"type:text;not null"`
	DiscountAmount      decimal.Decimal `gorm:"type:text;not null"`
	Total               decimal.Decimal `gorm:"type:text;not null"`
	PrepaymentReceived  bool            `gorm:"not null;default:false"`
	PrepaymentDate      *time.Time
	FullPaymentReceived bool `gorm:"not null;default:false"`
	FullPaymentDate     *time.Time
	DeliveryMethod      string `gorm:"not null;default:''"`
	ProductionDate      *time.Time
	CompletionDate      *time.Time
	Notes               string `gorm:"not null;default:''"`
	Version             int64  `gorm:"not null;default:1"`
}

func (orderModel) TableName() string { return "orders" }

type saleModel struct {
	ID          int64           `gorm:"primaryKey;autoIncrement:false"`
	PartnerID   int64           `gorm:"not null;index"`
	ProductID   int64           `gorm:"not null;index"`
	Quantity    int             `gorm:"not null"`
	SaleDate    time.Time       `gorm:"not null"`
	TotalAmount decimal.Decimal `gorm:"type:text;not null"`
}

func (saleModel) TableName() string { return "sales_history" }

type ratingChangeModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	PartnerID  int64     `gorm:"not null;index"`
	OldRating  int       `gorm:"not null"`
	NewRating  int       `gorm:"not null"`
	ChangeDate time.Time `gorm:"not null"`
	ChangedBy  *int64
	Reason     string `gorm:"not null;default:''"`
}

func (ratingChangeModel) TableName() string { return "partner_rating_history" }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
