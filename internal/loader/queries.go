package loader

import (
	"fmt"
	"strings"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

const (
	copyIntoQuery     = "COPY INTO %s.%s FROM @%s/%s%s file_format = (type = 'csv' compression = auto);"
	createSchemaQuery = "CREATE DATABASE IF NOT EXISTS %s;"
	createTableQuery  = "CREATE TABLE IF NOT EXISTS %s.%s (" +
		bendsink.ColumnID + " String, " +
		bendsink.ColumnData + " JSON, " +
		bendsink.ColumnEmittedAt + " Timestamp DEFAULT now()" +
		") CLUSTER BY(" + bendsink.ColumnID + ");"
	truncateTableQuery = "TRUNCATE TABLE %s.%s;"
	dropTableQuery     = "DROP TABLE IF EXISTS %s.%s;"
	copyTableQuery     = "INSERT INTO %s.%s SELECT * FROM %s.%s;"
	insertRowsQuery    = "INSERT INTO %s.%s (" + bendsink.ColumnID + ", " + bendsink.ColumnData + ", " + bendsink.ColumnEmittedAt + ") VALUES %s;"
)

// FilesClause renders the explicit file list of a COPY INTO statement.
// It is empty for no files or for LoadFileListLimit files and more, in which
// case the statement loads everything under the staging path.
func FilesClause(files []string) string {
	if len(files) == 0 || len(files) >= bendsink.LoadFileListLimit {
		return ""
	}
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "'" + f[strings.LastIndex(f, "/")+1:] + "'"
	}
	return "files = (" + strings.Join(quoted, ",") + ")"
}

// CopyQuery builds the COPY INTO statement loading staged files into schema.table.
func CopyQuery(stageName, stagingPath string, files []string, schemaName, tableName string) string {
	clause := FilesClause(files)
	if clause != "" {
		clause = " " + clause
	}
	return fmt.Sprintf(copyIntoQuery, schemaName, tableName, stageName, stagingPath, clause)
}

// CreateSchemaQuery returns the statement creating a database.
func CreateSchemaQuery(schemaName string) string {
	return fmt.Sprintf(createSchemaQuery, schemaName)
}

// CreateTableQuery returns the statement creating a raw table.
func CreateTableQuery(schemaName, tableName string) string {
	return fmt.Sprintf(createTableQuery, schemaName, tableName)
}

// TruncateTableQuery returns the statement emptying a table.
func TruncateTableQuery(schemaName, tableName string) string {
	return fmt.Sprintf(truncateTableQuery, schemaName, tableName)
}

// DropTableQuery returns the statement dropping a table.
func DropTableQuery(schemaName, tableName string) string {
	return fmt.Sprintf(dropTableQuery, schemaName, tableName)
}

// CopyTableQuery returns the statement appending every row of src to dst.
func CopyTableQuery(schemaName, srcTable, dstTable string) string {
	return fmt.Sprintf(copyTableQuery, schemaName, dstTable, schemaName, srcTable)
}

// InsertRowsQuery returns a multi-row INSERT for raw table rows. Each row is
// (id, data, emitted_at).
func InsertRowsQuery(schemaName, tableName string, rows [][3]string) string {
	values := make([]string, len(rows))
	for i, r := range rows {
		values[i] = "(" + literal(r[0]) + ", " + literal(r[1]) + ", " + literal(r[2]) + ")"
	}
	return fmt.Sprintf(insertRowsQuery, schemaName, tableName, strings.Join(values, ", "))
}

// literal quotes s as a single-quoted string literal.
func literal(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return "'" + s + "'"
}
