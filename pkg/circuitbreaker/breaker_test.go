package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("remote down")

func TestExecute_PassesResult(t *testing.T) {
	b := New(DefaultSettings("test"), nil)

	v, err := Execute(b, func() (string, error) { return "ok", nil })

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestExecute_TripsAfterThreshold(t *testing.T) {
	s := DefaultSettings("test")
	s.FailureThreshold = 2
	s.Timeout = time.Hour
	b := New(s, nil)

	for i := 0; i < 2; i++ {
		_, err := Execute(b, func() (int, error) { return 0, errRemote })
		assert.ErrorIs(t, err, errRemote)
	}

	called := false
	_, err := Execute(b, func() (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrOpenState)
	assert.False(t, called)
	assert.Equal(t, "open", b.State())
}

func TestExecute_ExpectedErrorsDoNotTrip(t *testing.T) {
	errNotFound := errors.New("not found")
	s := DefaultSettings("test")
	s.FailureThreshold = 1
	s.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, errNotFound)
	}
	b := New(s, nil)

	for i := 0; i < 3; i++ {
		err := Run(b, func() error { return errNotFound })
		assert.ErrorIs(t, err, errNotFound)
	}
	assert.Equal(t, "closed", b.State())
}

func TestExecute_NilInterfaceResult(t *testing.T) {
	b := New(DefaultSettings("test"), nil)

	v, err := Execute(b, func() (error, error) { return nil, nil })

	require.NoError(t, err)
	assert.Nil(t, v)
}
