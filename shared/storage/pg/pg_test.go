package pg

import (
	"fmt"
	"testing"

	"github.com/itchan-dev/legorachat/shared/config"
	"github.com/itchan-dev/legorachat/shared/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pq.Error{Code: UniqueViolation})
	fk := &pq.Error{Code: ForeignKeyViolation}
	other := fmt.Errorf("boom")

	assert.True(t, errors.IsConflict(MapError(unique, "taken", "missing")))
	assert.True(t, errors.IsNotFound(MapError(fk, "taken", "missing")))
	assert.Equal(t, "missing", MapError(fk, "taken", "missing").Error())
	assert.Same(t, other, MapError(other, "taken", "missing"))
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.Pg{Host: "h", Port: 1, User: "u", Password: "p", Dbname: "d"})
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", dsn)
}
