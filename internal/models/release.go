/*******************************************************************************
*
* Copyright 2024 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package models

import (
	"time"

	"github.com/opencontainers/go-digest"
)

// StoredFile contains a record from the `stored_files` table.
//
// The filename and digest of a stored file are immutable. The file contents
// live in the StorageDriver, keyed by digest. Many release records may refer
// to the same stored file.
//
// IsRestricted may only ever transition from true to false. It must be false
// for every file that is referenced by a publication in a public archive.
type StoredFile struct {
	ID           int64         `db:"id"`
	Filename     string        `db:"filename"`
	Digest       digest.Digest `db:"digest"`
	SizeBytes    uint64        `db:"size_bytes"`
	IsRestricted bool          `db:"is_restricted"`
	CreatedAt    time.Time     `db:"created_at"`
	// ExpiresAt is set when the file contents have been (or are about to be)
	// removed from storage. Files with an expiry cannot be copied anymore.
	ExpiresAt *time.Time `db:"expires_at"`
}

// IsExpired returns whether the file contents are no longer servable.
func (f StoredFile) IsExpired() bool {
	return f.ExpiresAt != nil
}

// SourceRelease contains a record from the `source_releases` table.
type SourceRelease struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Version   string `db:"version"`
	Format    string `db:"format"`
	Component string `db:"component"`
	Section   string `db:"section"`
	// ArchitectureHint is the whitespace-separated Architecture field of the
	// source package, e.g. "any", "all" or "i386 amd64".
	ArchitectureHint string    `db:"architecture_hint"`
	Maintainer       string    `db:"maintainer"`
	CreatedAt        time.Time `db:"created_at"`

	ChangelogFileID *int64 `db:"changelog_file_id"`
	// ChangesFileID refers to the .changes file of the upload that produced
	// this release.
	ChangesFileID *int64 `db:"changes_file_id"`
}

// SourceReleaseFile contains a record from the `source_release_files` table.
type SourceReleaseFile struct {
	SourceReleaseID int64 `db:"source_release_id"`
	FileID          int64 `db:"file_id"`
}

// PackageDiff contains a record from the `package_diffs` table.
type PackageDiff struct {
	ID            int64  `db:"id"`
	FromReleaseID int64  `db:"from_release_id"`
	ToReleaseID   int64  `db:"to_release_id"`
	FileID        *int64 `db:"file_id"`
}

// BinaryFormat is an enum for the package formats of a BinaryRelease.
type BinaryFormat string

const (
	DebFormat  BinaryFormat = "DEB"
	UdebFormat BinaryFormat = "UDEB"
	// DdebFormat contains debug symbols for a DEB.
	DdebFormat BinaryFormat = "DDEB"
)

// BinaryRelease contains a record from the `binary_releases` table.
type BinaryRelease struct {
	ID             int64        `db:"id"`
	BuildID        int64        `db:"build_id"`
	Name           string       `db:"name"`
	Version        string       `db:"version"`
	Format         BinaryFormat `db:"format"`
	IsArchSpecific bool         `db:"is_arch_specific"`
	Component      string       `db:"component"`
	Section        string       `db:"section"`
	Priority       string       `db:"priority"`
	// DebugReleaseID refers to the DDEB built alongside this release, if any.
	DebugReleaseID *int64 `db:"debug_release_id"`
}

// BinaryReleaseFile contains a record from the `binary_release_files` table.
type BinaryReleaseFile struct {
	BinaryReleaseID int64 `db:"binary_release_id"`
	FileID          int64 `db:"file_id"`
}
