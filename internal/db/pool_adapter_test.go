package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

type stubRow struct{ err error }

func (r stubRow) Scan(...any) error { return r.err }

func TestRowAdapter_TranslatesNoRows(t *testing.T) {
	err := (&rowAdapter{row: stubRow{err: pgx.ErrNoRows}}).Scan()
	assert.ErrorIs(t, err, bendsink.ErrNoRows)
	assert.False(t, errors.Is(err, pgx.ErrNoRows), "pgx types must not leak")
}

func TestRowAdapter_PassesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	assert.ErrorIs(t, (&rowAdapter{row: stubRow{err: boom}}).Scan(), boom)
	assert.NoError(t, (&rowAdapter{row: stubRow{}}).Scan())
}
