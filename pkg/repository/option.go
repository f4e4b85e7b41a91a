package repository

import (
	"time"

	"gorm.io/gorm"
)

// QueryOption narrows a query built from a filter model.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type optionFunc func(db *gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// WithOrder sorts by a trusted column expression, e.g. "timestamp asc".
func WithOrder(order string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Order(order) })
}

func WithLimit(limit int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// WithTimeRange keeps rows whose column lies in [from, to]. Zero bounds are open.
func WithTimeRange(column string, from, to time.Time) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if !from.IsZero() {
			db = db.Where(column+" >= ?", from)
		}
		if !to.IsZero() {
			db = db.Where(column+" <= ?", to)
		}
		return db
	})
}

// WithNot excludes rows where column equals value.
func WithNot(column string, value any) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" <> ?", value)
	})
}
