// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"서울특별시 영등포구 여의대로 128 (여의도동)", "서울특별시 영등포구 여의대로 128"},
		{"서울특별시 강남구 테헤란로 152 3층", "서울특별시 강남구 테헤란로 152"},
		{"부산광역시 해운대구 센텀로 45 지하 1층", "부산광역시 해운대구 센텀로 45"},
		{"대전광역시 유성구 대학로 99 2층 201호", "대전광역시 유성구 대학로 99"},
		{"경기도 성남시 분당구 판교로 255 (삼평동) 5층 502호", "경기도 성남시 분당구 판교로 255"},
		{"서울특별시   종로구  세종대로 175", "서울특별시 종로구 세종대로 175"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, CleanAddress(tc.input))
		})
	}
}

func TestCleanAddressIdempotent(t *testing.T) {
	inputs := []string{
		"서울특별시 영등포구 여의대로 128 (여의도동) 3층",
		"부산광역시 해운대구 센텀로 45",
		"대전광역시 유성구 대학로 99 201호",
	}

	for _, input := range inputs {
		once := CleanAddress(input)
		assert.Equal(t, once, CleanAddress(once))
	}
}
