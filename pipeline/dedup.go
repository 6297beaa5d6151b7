// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "strings"

// DedupRegionNames removes redundant parent prefixes from region names: the
// province from the district, and the province and district from the
// sub-district. "전라남도 나주시" next to province "전라남도" becomes
// "나주시". Already-clean names pass through unchanged.
func DedupRegionNames(province, district, subDistrict string) (string, string, string) {
	province = strings.TrimSpace(province)
	district = strings.TrimSpace(district)
	subDistrict = strings.TrimSpace(subDistrict)

	if province != "" && strings.HasPrefix(district, province) {
		district = strings.TrimSpace(strings.TrimPrefix(district, province))
	}

	if subDistrict != "" {
		if province != "" && strings.HasPrefix(subDistrict, province) {
			subDistrict = strings.TrimSpace(strings.TrimPrefix(subDistrict, province))
		}

		full := strings.TrimSpace(province + " " + district)
		switch {
		case full != "" && strings.HasPrefix(subDistrict, full):
			subDistrict = strings.TrimSpace(strings.TrimPrefix(subDistrict, full))
		case district != "" && strings.HasPrefix(subDistrict, district):
			subDistrict = strings.TrimSpace(strings.TrimPrefix(subDistrict, district))
		}
	}

	return province, district, subDistrict
}
