package helpers

import "gorm.io/gorm"

func WrapTxAndCommit[T any](fn func(*gorm.DB) (T, error), db *gorm.DB, tx *gorm.DB) (T, error) {
	exists := tx != nil

	if !exists {
		tx = db.Begin()
	}

	res, err := fn(tx)

	if err != nil && !exists {
		tx.Rollback()
	}
	if err == nil && !exists {
		if cErr := tx.Commit().Error; cErr != nil {
			return res, cErr
		}
	}
	return res, err
}

func IsPostgres(grm *gorm.DB) bool {
	return grm.Dialector.Name() == "postgres"
}

// ColumnTypes are the dialect specific column definitions shared by migrations.
// Decimals are kept as text on sqlite so they never pass through float affinity.
type ColumnTypes struct {
	PrimaryKey string
	ForeignKey string
	BigInt     string
	Decimal    string
	Timestamp  string
	Boolean    string
}

func GetColumnTypes(grm *gorm.DB) ColumnTypes {
	if IsPostgres(grm) {
		return ColumnTypes{
			PrimaryKey: "bigserial primary key",
			ForeignKey: "bigint",
			BigInt:     "bigint",
			Decimal:    "numeric(38,18)",
			Timestamp:  "timestamp with time zone",
			Boolean:    "boolean",
		}
	}
	return ColumnTypes{
		PrimaryKey: "integer primary key autoincrement",
		ForeignKey: "integer",
		BigInt:     "integer",
		Decimal:    "text",
		Timestamp:  "datetime",
		Boolean:    "boolean",
	}
}
