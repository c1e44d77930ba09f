/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"fmt"
)

var (
	// These variables are set using -ldflags
	pgupgradeVersion string
	gitBranch        string
	lastCommitSHA    string
	lastCommitTime   string
)

// BuildDetails returns a string containing details about the pgupgrade binary.
func BuildDetails() string {
	return fmt.Sprintf(`
pgupgrade version : %v
Commit SHA-1      : %v
Commit timestamp  : %v
Branch            : %v

Licensed under the Apache Public License 2.0.
© Hypermode Inc.

`,
		Version(), lastCommitSHA, lastCommitTime, gitBranch)
}

// Version returns a string containing the pgupgrade version.
func Version() string {
	if pgupgradeVersion == "" {
		return "dev"
	}
	return pgupgradeVersion
}
