// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

// Package industry builds the 5-depth industry classification hierarchy from
// the flat code list and answers ancestor-chain lookups.
package industry

import (
	"strings"
)

// Section (depth 1) names, keyed by the A-U section letter.
var sectionNames = map[string]string{
	"A": "농업, 임업 및 어업",
	"B": "광업",
	"C": "제조업",
	"D": "전기, 가스, 증기 및 공기조절 공급업",
	"E": "수도, 하수 및 폐기물 처리, 원료 재생업",
	"F": "건설업",
	"G": "도매 및 소매업",
	"H": "운수 및 창고업",
	"I": "숙박 및 음식점업",
	"J": "정보통신업",
	"K": "금융 및 보험업",
	"L": "부동산업",
	"M": "전문, 과학 및 기술 서비스업",
	"N": "사업시설 관리, 사업 지원 및 임대 서비스업",
	"O": "공공행정, 국방 및 사회보장 행정",
	"P": "교육 서비스업",
	"Q": "보건업 및 사회복지 서비스업",
	"R": "예술, 스포츠 및 여가관련 서비스업",
	"S": "협회 및 단체, 수리 및 기타 개인 서비스업",
	"T": "가구 내 고용활동 및 달리 분류되지 않은 자가소비 생산활동",
	"U": "국제 및 외국기관",
}

// RawCode is one row of the provider's flat code list.
type RawCode struct {
	Code         string // numeric classification code, 2-5 digits
	OriginalCode string // section-prefixed code, first letter is the section
	Name         string
}

// Chain is the 5-level ancestor chain of one classification code. Levels the
// code list does not resolve stay empty.
type Chain struct {
	Depth1Code, Depth1Name string
	Depth2Code, Depth2Name string
	Depth3Code, Depth3Name string
	Depth4Code, Depth4Name string
	Depth5Code, Depth5Name string
}

func (c Chain) isZero() bool {
	return c == Chain{}
}

// Hierarchy answers code to ancestor-chain lookups.
type Hierarchy struct {
	byCode map[string]Chain
	chains []Chain
}

// NormalizeCode strips float formatting artifacts that creep in through
// spreadsheet round-trips ("42209.0" becomes "42209") and surrounding space.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)

	if i := strings.IndexByte(code, '.'); i >= 0 {
		frac := code[i+1:]
		if frac == strings.Repeat("0", len(frac)) {
			code = code[:i]
		}
	}

	return code
}

// Build constructs the hierarchy from the flat code list. Name tables for
// depths 2-5 are keyed by code length; each row's chain is then assembled by
// prefix, and duplicate chains collapse to one.
func Build(rows []RawCode) *Hierarchy {
	names := map[int]map[string]string{
		2: {}, 3: {}, 4: {}, 5: {},
	}

	for i := range rows {
		code := NormalizeCode(rows[i].Code)
		if m, ok := names[len(code)]; ok {
			m[code] = strings.TrimSpace(rows[i].Name)
		}
	}

	h := &Hierarchy{byCode: make(map[string]Chain)}
	seen := make(map[Chain]bool)

	for i := range rows {
		code := NormalizeCode(rows[i].Code)
		chain := assemble(code, rows[i].OriginalCode, names)

		if chain.isZero() {
			continue
		}

		if !seen[chain] {
			seen[chain] = true
			h.chains = append(h.chains, chain)
		}

		for _, c := range []string{
			chain.Depth2Code, chain.Depth3Code, chain.Depth4Code, chain.Depth5Code,
		} {
			if c != "" {
				if _, dup := h.byCode[c]; !dup {
					h.byCode[c] = chain
				}
			}
		}
	}

	return h
}

func assemble(code, originalCode string, names map[int]map[string]string) Chain {
	var chain Chain

	if originalCode != "" {
		section := strings.ToUpper(originalCode[:1])
		if name, ok := sectionNames[section]; ok {
			chain.Depth1Code = section
			chain.Depth1Name = name
		}
	}

	if len(code) >= 2 {
		if name, ok := names[2][code[:2]]; ok {
			chain.Depth2Code = code[:2]
			chain.Depth2Name = name
		}
	}

	if len(code) >= 3 {
		if name, ok := names[3][code[:3]]; ok {
			chain.Depth3Code = code[:3]
			chain.Depth3Name = name
		}
	}

	if len(code) >= 4 {
		if name, ok := names[4][code[:4]]; ok {
			chain.Depth4Code = code[:4]
			chain.Depth4Name = name
		}
	}

	if len(code) == 5 {
		if name, ok := names[5][code]; ok {
			chain.Depth5Code = code
			chain.Depth5Name = name
		}
	}

	return chain
}

// Lookup returns the ancestor chain for a classification code. The code is
// normalized first, so values read back from CSVs resolve too.
func (h *Hierarchy) Lookup(code string) (Chain, bool) {
	chain, ok := h.byCode[NormalizeCode(code)]

	return chain, ok
}

// Chains returns the deduplicated chain table in first-seen order, the shape
// the final snapshot persists.
func (h *Hierarchy) Chains() []Chain {
	return h.chains
}

// ChainHeader is the final snapshot's column set.
var ChainHeader = []string{
	"depth1_cd", "depth1_nm",
	"depth2_cd", "depth2_nm",
	"depth3_cd", "depth3_nm",
	"depth4_cd", "depth4_nm",
	"depth5_cd", "depth5_nm",
}

// Row flattens a chain in ChainHeader order.
func (c Chain) Row() []string {
	return []string{
		c.Depth1Code, c.Depth1Name,
		c.Depth2Code, c.Depth2Name,
		c.Depth3Code, c.Depth3Name,
		c.Depth4Code, c.Depth4Name,
		c.Depth5Code, c.Depth5Name,
	}
}

// ChainFromRow parses a chain from a ChainHeader-ordered row.
func ChainFromRow(row []string) Chain {
	get := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}

		return ""
	}

	return Chain{
		Depth1Code: get(0), Depth1Name: get(1),
		Depth2Code: NormalizeCode(get(2)), Depth2Name: get(3),
		Depth3Code: NormalizeCode(get(4)), Depth3Name: get(5),
		Depth4Code: NormalizeCode(get(6)), Depth4Name: get(7),
		Depth5Code: NormalizeCode(get(8)), Depth5Name: get(9),
	}
}

// FromChains rebuilds a Hierarchy from a persisted chain table.
func FromChains(chains []Chain) *Hierarchy {
	h := &Hierarchy{byCode: make(map[string]Chain)}
	seen := make(map[Chain]bool)

	for _, chain := range chains {
		if chain.isZero() || seen[chain] {
			continue
		}

		seen[chain] = true
		h.chains = append(h.chains, chain)

		for _, c := range []string{
			chain.Depth2Code, chain.Depth3Code, chain.Depth4Code, chain.Depth5Code,
		} {
			if c != "" {
				if _, dup := h.byCode[c]; !dup {
					h.byCode[c] = chain
				}
			}
		}
	}

	return h
}
