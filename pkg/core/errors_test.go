package core_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/sociomind-go/pkg/core"
)

func TestSimError(t *testing.T) {
	err := core.NewSimError("AddEvent", core.ErrPlotNotFound)

	assert.Equal(t, "sociomind: AddEvent: plot not found", err.Error())
	assert.ErrorIs(t, err, core.ErrPlotNotFound)

	var target *core.SimError
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, "AddEvent", target.Op)
	assert.Equal(t, core.ErrPlotNotFound, errors.Unwrap(err))
}

func TestNewSimError_Nil(t *testing.T) {
	assert.NoError(t, core.NewSimError("noop", nil))
}
