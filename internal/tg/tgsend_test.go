package tg

import (
	"errors"
	"testing"
)

func TestIsSystemErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Too Many Requests: retry after 5"), true},
		{errors.New("Post https://api.telegram.org: 502 Bad Gateway"), true},
		{errors.New("context deadline exceeded (Client.Timeout exceeded): timeout"), true},
		{errors.New("Bad Request: chat not found"), false},
		{errors.New("Forbidden: bot was blocked by the user"), false},
		{errors.New("something else"), false},
	}
	for _, c := range cases {
		if got := isSystemErr(c.err); got != c.want {
			t.Errorf("isSystemErr(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
