package types_test

import (
	"testing"

	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

func TestErrorKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "auth tag",
			err:  goerr.New("login rejected", goerr.T(types.ErrTagAuth)),
			want: "auth",
		},
		{
			name: "build tag",
			err:  goerr.New("compile error", goerr.T(types.ErrTagBuild)),
			want: "build",
		},
		{
			name: "push tag",
			err:  goerr.New("denied", goerr.T(types.ErrTagPush)),
			want: "push",
		},
		{
			name: "wrapped error keeps tag",
			err:  goerr.Wrap(goerr.New("expired token", goerr.T(types.ErrTagAuth)), "stage failed"),
			want: "auth",
		},
		{
			name: "untagged error",
			err:  goerr.New("something broke"),
			want: "internal",
		},
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := types.ErrorKind(tc.err); got != tc.want {
				t.Errorf("ErrorKind() = %q, want %q", got, tc.want)
			}
		})
	}
}
