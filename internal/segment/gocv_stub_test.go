//go:build !gocv
// +build !gocv

package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_GoCVRequiresBuildTag(t *testing.T) {
	_, err := New(BackendGoCV)
	require.Error(t, err)
}
