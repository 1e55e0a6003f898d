package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
)

// paginate 追加 LIMIT/OFFSET，pageSize 非正时不分页
func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	return query.Limit(pageSize).Offset(pageOffset(page, pageSize))
}

func pageOffset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

// dialectOf 归一化方言名称，未知时按 sqlite 处理
func dialectOf(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return dialectSQLite
	}
	switch strings.ToLower(strings.TrimSpace(db.Dialector.Name())) {
	case "postgres", "postgresql", "pgx":
		return dialectPostgres
	default:
		return dialectSQLite
	}
}

// dayBucket 按报表时区的自然日分组（YYYY-MM-DD），offsetSeconds 为相对 UTC 的偏移
func dayBucket(dialect, column string, offsetSeconds int) string {
	return timeBucket(dialect, column, offsetSeconds, "YYYY-MM-DD", "%Y-%m-%d")
}

// monthBucket 按报表时区的自然月分组（YYYY-MM）
func monthBucket(dialect, column string, offsetSeconds int) string {
	return timeBucket(dialect, column, offsetSeconds, "YYYY-MM", "%Y-%m")
}

// timeBucket 列值先归一到 UTC 再平移偏移量，SQLite 的 strftime 会按文本中的时区换算
func timeBucket(dialect, column string, offsetSeconds int, pgLayout, sqliteLayout string) string {
	if dialect == dialectPostgres {
		return fmt.Sprintf("to_char((%s AT TIME ZONE 'UTC') + interval '%d seconds', '%s')", column, offsetSeconds, pgLayout)
	}
	return fmt.Sprintf("strftime('%s', %s, '%+d seconds')", sqliteLayout, column, offsetSeconds)
}
