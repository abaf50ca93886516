package nbaml

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoUsableData means no season or row survived filtering, so there is nothing to train on
var ErrNoUsableData = errors.New("no usable data")

// ErrFetchFailed wraps network failures and empty results from a GameLogSource
var ErrFetchFailed = errors.New("fetch failed")

// NotFoundError reports a missing input table, label file, or model artifact
type NotFoundError struct {
	What string
	Path string
}

func (e *NotFoundError) Error() string {
	if e.What == "" {
		return fmt.Sprintf("not found: %s", e.Path)
	}
	return fmt.Sprintf("%s not found: %s", e.What, e.Path)
}

// SchemaError reports a table that lacks required columns or violates a structural rule
type SchemaError struct {
	Table   string
	Missing []string
	Detail  string
}

func (e *SchemaError) Error() string {
	var sb strings.Builder
	sb.WriteString("schema error in ")
	sb.WriteString(e.Table)
	if len(e.Missing) > 0 {
		sb.WriteString(": missing ")
		sb.WriteString(strings.Join(e.Missing, ", "))
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

// IsSkippable reports whether err should skip a single season rather than abort the run
func IsSkippable(err error) bool {
	var nf *NotFoundError
	var se *SchemaError
	return errors.As(err, &nf) || errors.As(err, &se) || errors.Is(err, ErrFetchFailed)
}
