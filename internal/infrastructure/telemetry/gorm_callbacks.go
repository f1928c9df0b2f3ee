package telemetry

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

type startTimeKey struct{ plugin string }

// statementHook runs after one gorm processor with the operation it served
type statementHook func(db *gorm.DB, operation string, elapsed time.Duration)

// registerTimed registers a start-time callback before, and hook after, the
// create, query, update, delete, row and raw processors of db
func registerTimed(db *gorm.DB, plugin string, hook statementHook) error {
	key := startTimeKey{plugin: plugin}
	before := func(tx *gorm.DB) {
		ctx := tx.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tx.Statement.Context = context.WithValue(ctx, key, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			var elapsed time.Duration
			if tx.Statement.Context != nil {
				if start, ok := tx.Statement.Context.Value(key).(time.Time); ok {
					elapsed = time.Since(start)
				}
			}
			op := operation
			if op == "" {
				op = sqlOperation(tx.Statement.SQL.String())
			}
			hook(tx, op, elapsed)
		}
	}

	cb := db.Callback()
	name := func(step, processor string) string { return plugin + ":" + step + "_" + processor }
	regs := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register(name("before", "create"), before) },
		func() error { return cb.Create().After("gorm:create").Register(name("after", "create"), after("INSERT")) },
		func() error { return cb.Query().Before("gorm:query").Register(name("before", "query"), before) },
		func() error { return cb.Query().After("gorm:query").Register(name("after", "query"), after("SELECT")) },
		func() error { return cb.Update().Before("gorm:update").Register(name("before", "update"), before) },
		func() error { return cb.Update().After("gorm:update").Register(name("after", "update"), after("UPDATE")) },
		func() error { return cb.Delete().Before("gorm:delete").Register(name("before", "delete"), before) },
		func() error { return cb.Delete().After("gorm:delete").Register(name("after", "delete"), after("DELETE")) },
		func() error { return cb.Row().Before("gorm:row").Register(name("before", "row"), before) },
		func() error { return cb.Row().After("gorm:row").Register(name("after", "row"), after("")) },
		func() error { return cb.Raw().Before("gorm:raw").Register(name("before", "raw"), before) },
		func() error { return cb.Raw().After("gorm:raw").Register(name("after", "raw"), after("")) },
	}
	for _, reg := range regs {
		if err := reg(); err != nil {
			return err
		}
	}
	return nil
}

// sqlOperation detects the statement kind of raw SQL
func sqlOperation(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "OTHER"
}
