package beacherr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrappedKindSurvivesErrorsIs(t *testing.T) {
	err := fmt.Errorf("loading session %q: %w", "abc123", KindSessionNotFound)
	require.True(t, errors.Is(err, KindSessionNotFound))
	require.False(t, errors.Is(err, KindPTYSpawnFailed))
}

func TestDistinctKindsAreNotEqual(t *testing.T) {
	require.NotEqual(t, KindSessionNotFound, KindPTYSpawnFailed)
}
