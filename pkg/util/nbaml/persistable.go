package nbaml

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	"github.com/richard-senior/nbaml/internal/logger"
	_ "modernc.org/sqlite"
)

// Persistable is implemented by every row type stored in SQLite.
// Columns come from struct tags: column, dbtype, primary, index.
// Fields without a dbtype are not stored; embedded structs are flattened.
type Persistable interface {
	GetTableName() string
	GetPrimaryKey() map[string]any
	BeforeSave() error
}

// execQuerier is satisfied by both *sql.DB and *sql.Tx
type execQuerier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// dialect is the database/sql driver name, which also selects the SQL flavour
type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "postgres"
)

// dialectFor picks Postgres for postgres:// URLs and SQLite for everything else
func dialectFor(dsn string) dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return dialectPostgres
	}
	return dialectSQLite
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// columnType translates SQLite column types for Postgres
func (d dialect) columnType(dbType string) string {
	if d != dialectPostgres {
		return dbType
	}
	return strings.NewReplacer("DATETIME", "TIMESTAMPTZ", "REAL", "DOUBLE PRECISION").Replace(dbType)
}

// Store is a SQL database holding derived tables, SQLite by default
type Store struct {
	path    string
	dialect dialect
	db      *sql.DB
	once    sync.Once
	err     error
}

// NewStore returns a store for the database at path. The connection is opened on first use.
// Use ":memory:" for a throwaway database, or a postgres:// URL for Postgres.
func NewStore(path string) *Store {
	return &Store{path: path, dialect: dialectFor(path)}
}

// tx binds a connection or transaction to the store's dialect
type tx struct {
	execQuerier
	dialect dialect
}

// DB returns the open connection, opening and pinging it on first call
func (s *Store) DB() (*sql.DB, error) {
	s.once.Do(func() {
		db, err := sql.Open(string(s.dialect), s.path)
		if err != nil {
			s.err = fmt.Errorf("failed to open database: %w", err)
			return
		}
		if s.path == ":memory:" {
			// every new connection would get its own empty database
			db.SetMaxOpenConns(1)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			s.err = fmt.Errorf("failed to ping database: %w", err)
			return
		}
		s.db = db
		logger.Info("Database initialized successfully", s.path)
	})
	return s.db, s.err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateTables creates every table the pipeline writes
func (s *Store) CreateTables() error {
	for _, obj := range []Persistable{&TeamSeasonRow{}, &ChampionLabel{}, &ChampionOdds{}, &ModelRun{}} {
		if err := s.CreateTable(obj); err != nil {
			return err
		}
	}
	return nil
}

// CreateTable creates a table for the given persistable object using struct tags
func (s *Store) CreateTable(obj Persistable) error {
	d, err := s.DB()
	if err != nil {
		return err
	}

	tableName := obj.GetTableName()
	createSQL := generateCreateTableSQL(obj, tableName, s.dialect)
	logger.Debug("Creating table with SQL", createSQL)
	if _, err := d.Exec(createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	for _, query := range generateIndexSQL(obj, tableName) {
		logger.Debug("Creating index with SQL", query)
		if _, err := d.Exec(query); err != nil {
			logger.Warn("Failed to create index", err)
		}
	}
	return nil
}

// dbField is one stored column, with its value located inside the object
type dbField struct {
	column  string
	dbtype  string
	primary bool
	index   bool
	value   reflect.Value
}

// persistedFields walks v, descending into embedded structs that carry no dbtype
func persistedFields(v reflect.Value) []dbField {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	var fields []dbField
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		dbType := field.Tag.Get("dbtype")
		if dbType == "" {
			if field.Anonymous && field.Type.Kind() == reflect.Struct {
				fields = append(fields, persistedFields(v.Field(i))...)
			}
			continue
		}
		columnName := field.Tag.Get("column")
		if columnName == "" {
			columnName = strings.ToLower(field.Name)
		}
		fields = append(fields, dbField{
			column:  columnName,
			dbtype:  dbType,
			primary: field.Tag.Get("primary") == "true",
			index:   field.Tag.Get("index") == "true",
			value:   v.Field(i),
		})
	}
	return fields
}

// generateCreateTableSQL generates CREATE TABLE SQL from struct tags
func generateCreateTableSQL(obj any, tableName string, d dialect) string {
	var columns, primaryKeys []string
	for _, f := range persistedFields(reflect.ValueOf(obj)) {
		dbType := d.columnType(f.dbtype)
		if f.primary {
			primaryKeys = append(primaryKeys, f.column)
			dbType = strings.TrimSpace(strings.ReplaceAll(dbType, "PRIMARY KEY", ""))
		}
		columns = append(columns, fmt.Sprintf("%s %s", f.column, dbType))
	}
	// compound keys are declared once at table level
	if len(primaryKeys) > 0 {
		columns = append(columns, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(primaryKeys, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableName, strings.Join(columns, ", "))
}

// generateIndexSQL generates index creation SQL from struct tags
func generateIndexSQL(obj any, tableName string) []string {
	var indexSQL []string
	for _, f := range persistedFields(reflect.ValueOf(obj)) {
		if !f.index {
			continue
		}
		indexName := fmt.Sprintf("idx_%s_%s", tableName, f.column)
		indexSQL = append(indexSQL, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", indexName, tableName, f.column))
	}
	return indexSQL
}

// Save persists the object (INSERT or UPDATE)
func (s *Store) Save(obj Persistable) error {
	d, err := s.DB()
	if err != nil {
		return err
	}
	return save(tx{d, s.dialect}, obj)
}

// BulkSave saves multiple objects in one transaction
func (s *Store) BulkSave(objects []Persistable) error {
	d, err := s.DB()
	if err != nil {
		return err
	}
	t, err := d.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer t.Rollback()

	for _, obj := range objects {
		if err := save(tx{t, s.dialect}, obj); err != nil {
			return fmt.Errorf("failed to save object: %w", err)
		}
	}
	if err = t.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func save(d tx, obj Persistable) error {
	if err := obj.BeforeSave(); err != nil {
		return fmt.Errorf("before save hook failed: %w", err)
	}
	found, err := exists(d, obj)
	if err != nil {
		return fmt.Errorf("failed to check existence: %w", err)
	}
	if found {
		return update(d, obj)
	}
	return insert(d, obj)
}

// insert adds a new record to the database
func insert(d tx, obj Persistable) error {
	tableName := obj.GetTableName()
	var columns, placeholders []string
	var values []any
	for _, f := range persistedFields(reflect.ValueOf(obj)) {
		columns = append(columns, f.column)
		placeholders = append(placeholders, "?")
		values = append(values, columnValue(f.value))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	logger.Debug("Insert SQL", query)
	if _, err := d.Exec(d.dialect.rebind(query), values...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", tableName, err)
	}
	return nil
}

// update modifies an existing record in the database
func update(d tx, obj Persistable) error {
	tableName := obj.GetTableName()
	var setPairs []string
	var values []any
	for _, f := range persistedFields(reflect.ValueOf(obj)) {
		if f.primary {
			continue
		}
		setPairs = append(setPairs, fmt.Sprintf("%s = ?", f.column))
		values = append(values, columnValue(f.value))
	}
	if len(setPairs) == 0 {
		return nil
	}

	whereClause, whereValues := buildWhereClause(obj.GetPrimaryKey())
	values = append(values, whereValues...)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", tableName, strings.Join(setPairs, ", "), whereClause)
	logger.Debug("Update SQL", query)
	if _, err := d.Exec(d.dialect.rebind(query), values...); err != nil {
		return fmt.Errorf("failed to update %s: %w", tableName, err)
	}
	return nil
}

func exists(d tx, obj Persistable) (bool, error) {
	tableName := obj.GetTableName()
	whereClause, values := buildWhereClause(obj.GetPrimaryKey())
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", tableName, whereClause)

	var count int
	if err := d.QueryRow(d.dialect.rebind(query), values...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence in %s: %w", tableName, err)
	}
	return count > 0, nil
}

// Exists checks if the object exists in the database
func (s *Store) Exists(obj Persistable) (bool, error) {
	d, err := s.DB()
	if err != nil {
		return false, err
	}
	return exists(tx{d, s.dialect}, obj)
}

// FindByPrimaryKey loads the row matching obj's primary key into obj
func (s *Store) FindByPrimaryKey(obj Persistable) error {
	d, err := s.DB()
	if err != nil {
		return err
	}

	tableName := obj.GetTableName()
	columns, destinations := selectData(obj)
	whereClause, values := buildWhereClause(obj.GetPrimaryKey())
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(columns, ", "), tableName, whereClause)
	logger.Debug("FindByPrimaryKey SQL", query)

	if err := d.QueryRow(s.dialect.rebind(query), values...).Scan(destinations...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{What: "record", Path: tableName}
		}
		return fmt.Errorf("failed to scan row from %s: %w", tableName, err)
	}
	return nil
}

// FindWhere returns new objects of obj's type for each row matching whereClause.
// The clause may carry an ORDER BY.
func (s *Store) FindWhere(obj Persistable, whereClause string, args ...any) ([]any, error) {
	d, err := s.DB()
	if err != nil {
		return nil, err
	}

	tableName := obj.GetTableName()
	columns, _ := selectData(obj)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(columns, ", "), tableName, whereClause)
	logger.Debug("FindWhere SQL", query)

	rows, err := d.Query(s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", tableName, err)
	}
	defer rows.Close()

	objType := reflect.TypeOf(obj)
	if objType.Kind() == reflect.Ptr {
		objType = objType.Elem()
	}

	var results []any
	for rows.Next() {
		newObj := reflect.New(objType).Interface()
		_, destinations := selectData(newObj)
		if err := rows.Scan(destinations...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", tableName, err)
		}
		results = append(results, newObj)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows from %s: %w", tableName, err)
	}
	return results, nil
}

// columnValue dereferences pointer fields so a nil pointer is stored as NULL
func columnValue(v reflect.Value) any {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		return v.Elem().Interface()
	}
	return v.Interface()
}

// selectData extracts column names and scan destinations for SELECT
func selectData(obj any) ([]string, []any) {
	var columns []string
	var destinations []any
	for _, f := range persistedFields(reflect.ValueOf(obj)) {
		columns = append(columns, f.column)
		destinations = append(destinations, f.value.Addr().Interface())
	}
	return columns, destinations
}

// buildWhereClause builds a WHERE clause from a primary key map.
// Columns are sorted so the generated SQL is stable.
func buildWhereClause(primaryKey map[string]any) (string, []any) {
	keys := make([]string, 0, len(primaryKey))
	for column := range primaryKey {
		keys = append(keys, column)
	}
	sort.Strings(keys)

	conditions := make([]string, len(keys))
	values := make([]any, len(keys))
	for i, column := range keys {
		conditions[i] = fmt.Sprintf("%s = ?", column)
		values[i] = primaryKey[column]
	}
	return strings.Join(conditions, " AND "), values
}
