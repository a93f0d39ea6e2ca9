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

package processor

import (
	"context"
	"fmt"

	"github.com/go-gorp/gorp/v3"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
)

// UpdateFilesPrivacy makes all files of the given publication public if the
// publication lives in a public archive. Files are never made restricted: once
// public, contents cannot be taken back. Returns the files that were changed.
func (p *Processor) UpdateFilesPrivacy(ctx context.Context, pub models.Publication) (changed []models.StoredFile, err error) {
	err = p.insideTransaction(ctx, func(tx *gorp.Transaction) error {
		changed, err = updateFilesPrivacy(newLedger(tx), pub)
		return err
	})
	return changed, err
}

func updateFilesPrivacy(l *ledger, pub models.Publication) ([]models.StoredFile, error) {
	var (
		archiveID int64
		files     []models.StoredFile
		err       error
	)
	switch pub := pub.(type) {
	case *models.SourcePublication:
		archiveID = pub.ArchiveID
		files, err = l.sourcePublicationFiles(*pub)
	case *models.BinaryPublication:
		archiveID = pub.ArchiveID
		files, err = l.binaryPublicationFiles(*pub)
	default:
		return nil, fmt.Errorf("unexpected publication type: %T", pub)
	}
	if err != nil {
		return nil, err
	}

	archive, err := l.Archive(archiveID)
	if err != nil {
		return nil, err
	}
	if archive.IsPrivate || !archive.IsEnabled {
		return nil, nil
	}

	var changed []models.StoredFile
	isSeen := make(map[int64]bool, len(files))
	for _, f := range files {
		if isSeen[f.ID] || !f.IsRestricted {
			continue
		}
		isSeen[f.ID] = true
		_, err := l.db.Exec(`UPDATE stored_files SET is_restricted = FALSE WHERE id = $1`, f.ID)
		if err != nil {
			return nil, fmt.Errorf("cannot unrestrict %s: %w", f.Filename, err)
		}
		f.IsRestricted = false
		changed = append(changed, f)
	}
	return changed, nil
}

// Collects the package files, package diffs, changelog and upload changes
// file of a source publication.
func (l *ledger) sourcePublicationFiles(pub models.SourcePublication) ([]models.StoredFile, error) {
	release, err := archivist.GetSourceRelease(l.db, pub.SourceReleaseID)
	if err != nil {
		return nil, err
	}
	files, err := l.SourceFiles(release.ID)
	if err != nil {
		return nil, err
	}
	diffFiles, err := l.PackageDiffFiles(release.ID)
	if err != nil {
		return nil, err
	}
	files = append(files, diffFiles...)
	return l.appendStoredFiles(files, release.ChangesFileID, release.ChangelogFileID)
}

// Collects the package files of a binary publication, plus the upload changes
// file and log of the build that produced it.
func (l *ledger) binaryPublicationFiles(pub models.BinaryPublication) ([]models.StoredFile, error) {
	release, err := l.BinaryRelease(pub.BinaryReleaseID)
	if err != nil {
		return nil, err
	}
	files, err := l.BinaryFiles(release.ID)
	if err != nil {
		return nil, err
	}
	build, err := l.Build(release.BuildID)
	if err != nil {
		return nil, err
	}
	return l.appendStoredFiles(files, build.ChangesFileID, build.LogFileID)
}

func (l *ledger) appendStoredFiles(files []models.StoredFile, ids ...*int64) ([]models.StoredFile, error) {
	for _, id := range ids {
		if id == nil {
			continue
		}
		f, err := l.StoredFile(*id)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
