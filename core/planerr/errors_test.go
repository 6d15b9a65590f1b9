package planerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := DataLoad("store.load", "crew.csv", errors.New("bad time"))
	assert.Equal(t, "store.load: data_load (crew.csv): bad time", err.Error())
}

func TestIsAndIsKind(t *testing.T) {
	wrapped := fmt.Errorf("recompute: %w", Infeasible("extract", nil))
	assert.True(t, errors.Is(wrapped, ErrInfeasibleModel))
	assert.False(t, errors.Is(wrapped, ErrSolverTimeout))
	assert.True(t, IsKind(wrapped, KindInfeasibleModel))
	assert.False(t, IsKind(errors.New("plain"), KindInfeasibleModel))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := New("store.persist", KindDataLoad, "", cause)
	assert.ErrorIs(t, err, cause)
	var nilErr *Error
	assert.Nil(t, nilErr.Unwrap())
	assert.Equal(t, "<nil>", nilErr.Error())
}
