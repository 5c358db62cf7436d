package boarderr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{Validation("title empty"), KindValidation},
		{NotFound("thread %s", "t1"), KindNotFound},
		{Device("open mic", errors.New("denied")), KindDevice},
		{ErrPlaybackRejected, KindPlaybackRejected},
		{Transaction("commit", errors.New("io")), KindTransaction},
		{errors.New("plain"), KindUnknown},
		{nil, KindUnknown},
	}
	for _, c := range cases {
		require.Equal(t, c.want, KindOf(c.err), "err=%v", c.err)
	}
}

func TestWrappingPreservesSentinel(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("message %s", "m1"))
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "m1")
}
