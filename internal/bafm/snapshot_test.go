package bafm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pbhandar2/blocksample/internal/bafm"
)

func TestLoad_RejectsWrongColumnCount(t *testing.T) {
	// GIVEN a snapshot file with a truncated header
	r := strings.NewReader("addr,r_misalign\n0,1\n")

	// WHEN loaded
	_, err := bafm.Load(r)

	// THEN it fails rather than silently misaligning columns
	require.Error(t, err)
}

func TestLoad_EmptySnapshotProducesEmptyMap(t *testing.T) {
	// GIVEN a snapshot with only a header row
	header := "addr," + strings.Join(bafm.SnapshotHeader, ",") + "\n"

	// WHEN loaded
	m, err := bafm.Load(strings.NewReader(header))
	require.NoError(t, err)

	// THEN it's a valid, empty map
	require.Equal(t, 0, m.Len())
}
