package exerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapKeepsKind(t *testing.T) {
	err := Wrap(NotExists, "exhorto abc")
	if !errors.Is(err, NotExists) {
		t.Fatalf("errors.Is failed for %v", err)
	}
	if err.Error() != "not exists: exhorto abc" {
		t.Fatalf("got %q", err.Error())
	}

	err = Wrapf(Connection, "timeout tras %d intentos", 3)
	if !errors.Is(err, Connection) {
		t.Fatalf("errors.Is failed for %v", err)
	}
}

func TestRetriable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{Wrap(Connection, "dial tcp"), true},
		{Wrap(NotValidAnswer, "envelope sin errors"), true},
		{fmt.Errorf("outer: %w", Wrap(Connection, "dial")), true},
		{Wrap(NotExists, "peer"), false},
		{Wrap(NotValidParam, "uuid"), false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := Retriable(tc.err); got != tc.want {
			t.Fatalf("Retriable(%v) = %v; want %v", tc.err, got, tc.want)
		}
	}
}
