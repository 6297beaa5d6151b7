// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/jojaeyoung777-spec/2025-kt-nasmedia-DMP-occupation-segment/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
