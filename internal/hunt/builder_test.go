// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package hunt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fr4nsys/zerohunt/internal/models"
	"github.com/fr4nsys/zerohunt/internal/testutil"
)

func TestBuild_StableFilterOrder(t *testing.T) {
	filters := NewQueryBuilder(nil).Build(testutil.TestSignature(t), testutil.TestWindow())

	require.Len(t, filters, 4)
	assert.Equal(t, models.FilterFieldDomain, filters[0].Field)
	assert.Equal(t, models.FilterFieldSrcProcess, filters[1].Field)
	assert.Equal(t, models.FilterFieldDstProcess, filters[2].Field)
	assert.Equal(t, models.FilterFieldDstPort, filters[3].Field)
}

func TestBuild_Deterministic(t *testing.T) {
	b := NewQueryBuilder(nil)
	sig := testutil.TestSignature(t)

	assert.Equal(t, b.Build(sig, testutil.TestWindow()), b.Build(sig, testutil.TestWindow()),
		"same signature and window must yield identical filters")
}

func TestBuild_SharedWindow(t *testing.T) {
	w := testutil.TestWindow()
	for _, f := range NewQueryBuilder(nil).Build(testutil.TestSignature(t), w) {
		assert.Equal(t, w, f.Window, "every filter carries the hunt window")
	}
}

func TestBuild_PortsGroupedSortedAndNoiseFloorApplied(t *testing.T) {
	sig, err := models.NewSignature("x", "", nil, models.Executables{}, []int{5938, 443, 80})
	require.NoError(t, err)

	filters := NewQueryBuilder(nil).Build(sig, testutil.TestWindow())
	require.Len(t, filters, 1)
	require.Equal(t, models.FilterFieldDstPort, filters[0].Field)
	// 80 and 443 excluded; one grouped filter for what is left.
	assert.Equal(t, []string{"5938"}, filters[0].IncludeValues)
}

func TestBuild_CustomNoiseFloor(t *testing.T) {
	sig, err := models.NewSignature("x", "", nil, models.Executables{}, []int{443, 8080, 22})
	require.NoError(t, err)

	filters := NewQueryBuilder([]int{8080}).Build(sig, testutil.TestWindow())
	require.Len(t, filters, 1)
	assert.Equal(t, []string{"22", "443"}, filters[0].IncludeValues)
}

func TestBuild_ProcessesExpandToBothSides(t *testing.T) {
	sig, err := models.NewSignature("x", "",
		nil, models.Executables{Windows: []string{"anydesk.exe"}}, nil)
	require.NoError(t, err)

	filters := NewQueryBuilder(nil).Build(sig, testutil.TestWindow())
	require.Len(t, filters, 2)
	assert.Equal(t, models.FilterFieldSrcProcess, filters[0].Field)
	assert.Equal(t, models.FilterFieldDstProcess, filters[1].Field)
	assert.Equal(t, filters[0].IncludeValues, filters[1].IncludeValues)
}

func TestBuild_EmptyIndicatorSetsProduceNoFilter(t *testing.T) {
	sig, err := models.NewSignature("x", "", []string{"d.com"}, models.Executables{}, nil)
	require.NoError(t, err)

	filters := NewQueryBuilder(nil).Build(sig, testutil.TestWindow())
	require.Len(t, filters, 1)
	assert.Equal(t, models.FilterFieldDomain, filters[0].Field)
}

func TestBuild_AllPortsExcludedDropsPortFilter(t *testing.T) {
	sig, err := models.NewSignature("x", "", nil, models.Executables{}, []int{80, 443})
	require.NoError(t, err)

	filters := NewQueryBuilder(nil).Build(sig, testutil.TestWindow())
	assert.Empty(t, filters, "signature whose only ports sit on the noise floor has nothing to hunt")
}
