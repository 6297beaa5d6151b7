// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package collect

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/httputil"
)

func corpCodeArchive(t *testing.T, xmlDoc string) []byte {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	f, err := zw.Create(corpCodeArchiveEntry)
	require.NoError(t, err)

	_, err = f.Write([]byte(xmlDoc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

const corpCodeXML = `<?xml version="1.0" encoding="UTF-8"?>
<result>
	<list>
		<corp_code>00126380</corp_code>
		<corp_name>삼성전자</corp_name>
		<stock_code>005930</stock_code>
		<modify_date>20240102</modify_date>
	</list>
	<list>
		<corp_code>00164742</corp_code>
		<corp_name>현대자동차</corp_name>
		<stock_code>005380</stock_code>
		<modify_date>20240102</modify_date>
	</list>
	<list>
		<corp_code>99999999</corp_code>
		<corp_name>비상장회사</corp_name>
		<stock_code> </stock_code>
		<modify_date>20240102</modify_date>
	</list>
</result>`

func newCompanyCollector(t *testing.T, handler http.Handler) *CompanyCollector {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	collector, err := NewCompanyCollector(CompanyOptions{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Workers: 2,
		Retry:   httputil.RetryPolicy{MaxAttempts: 1},
	})
	require.NoError(t, err)

	return collector
}

func TestCompanyCollect(t *testing.T) {
	archive := corpCodeArchive(t, corpCodeXML)

	collector := newCompanyCollector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/corpCode.xml":
			assert.Equal(t, "test-key", r.URL.Query().Get("crtfc_key"))
			_, _ = w.Write(archive)
		case "/company.json":
			switch r.URL.Query().Get("corp_code") {
			case "00126380":
				_, _ = w.Write([]byte(`{
					"status":"000","message":"정상",
					"corp_name":"삼성전자","corp_name_eng":"SAMSUNG ELECTRONICS CO,.LTD",
					"stock_code":"005930","ceo_nm":"한종희","corp_cls":"Y",
					"jurir_no":"1301110006246","bizr_no":"1248100998",
					"adres":"경기도 수원시 영통구 삼성로 129 (매탄동)",
					"hm_url":"www.samsung.com/sec","ir_url":"","phn_no":"031-200-1114","fax_no":"031-200-7538",
					"induty_code":"264","est_dt":"19690113","acc_mt":"12"}`))
			default:
				_, _ = w.Write([]byte(`{"status":"013","message":"조회된 데이타가 없습니다."}`))
			}
		default:
			http.NotFound(w, r)
		}
	}))

	frame, metrics, err := collector.Collect(context.Background())
	require.NoError(t, err)

	// The unlisted company is dropped before detail lookups.
	require.Len(t, frame.Rows, 2)
	assert.Equal(t, 2, metrics.Records)
	assert.Equal(t, 1, metrics.DetailSuccess)
	assert.Equal(t, 1, metrics.DetailFailed)

	// Row order follows the archive regardless of pool completion order.
	require.Equal(t, "00126380", frame.Rows[0][0])
	assert.Equal(t, "삼성전자", frame.Rows[0][1])
	assert.Equal(t, "경기도 수원시 영통구 삼성로 129 (매탄동)", frame.Rows[0][8])
	assert.Equal(t, "264", frame.Rows[0][13])

	// The failed lookup keeps identity columns and empty detail fields.
	require.Equal(t, "00164742", frame.Rows[1][0])
	assert.Equal(t, "현대자동차", frame.Rows[1][1])
	assert.Equal(t, "005380", frame.Rows[1][3])
	assert.Empty(t, frame.Rows[1][8])
}

func TestCompanyCollectNotAnArchive(t *testing.T) {
	collector := newCompanyCollector(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<result><status>010</status><message>등록되지 않은 키입니다.</message></result>`))
	}))

	_, _, err := collector.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not return an archive")
}

func TestCompanyCollectArchiveMissingEntry(t *testing.T) {
	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	f, err := zw.Create("OTHER.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<result/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	collector := newCompanyCollector(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(buf.Bytes())
	}))

	_, _, err = collector.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("archive has no %s entry", corpCodeArchiveEntry))
}
