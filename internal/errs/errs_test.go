package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err     error
		kind    string
		context string
	}{
		{nil, "", ""},
		{fmt.Errorf("event 3: %w", Deserialization("U512", errors.New("short"))), "deserialization", "U512"},
		{&NotFoundError{What: "schema for event Mint"}, "not_found", "schema for event Mint"},
		{&ConnectionError{Op: "state_get_dictionary_item"}, "connection", "state_get_dictionary_item"},
		{&SerializationError{Context: "event_name"}, "serialization", "event_name"},
		{Unexpected("bad %s", "shape"), "unexpected", "bad shape"},
		{errors.New("plain"), "other", ""},
	}
	for _, tc := range cases {
		kind, context := Kind(tc.err)
		assert.Equal(t, tc.kind, kind, "%v", tc.err)
		assert.Equal(t, tc.context, context, "%v", tc.err)
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("read event 1: %w", &ConnectionError{Op: "call", Err: errors.New("refused")})
	assert.True(t, IsConnection(err))
	assert.False(t, IsNotFound(err))

	err = fmt.Errorf("named keys: %w", &NotFoundError{What: "named key __events"})
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConnection(err))
}
