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

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
)

// sideEffects collects everything that DoCopy does outside the database. These
// are only executed once the copy has been committed.
type sideEffects struct {
	BugClosings       []bugClosing
	Notifications     []archivist.Notification
	UnrestrictedFiles int
}

// bugClosing describes the bugs that a new source publication fixes.
type bugClosing struct {
	Fix           archivist.BugFix
	SinceVersion  string
	ChangelogFile *models.StoredFile
	ChangesFile   *models.StoredFile
}

// Bugs are only closed by publications that users will install.
func closesBugsIn(pocket models.Pocket) bool {
	switch pocket {
	case models.ReleasePocket, models.SecurityPocket, models.UpdatesPocket:
		return true
	default:
		return false
	}
}

func prepareBugClosing(l *ledger, pub models.SourcePublication, sinceVersion string) (bugClosing, error) {
	release, err := archivist.GetSourceRelease(l.db, pub.SourceReleaseID)
	if err != nil {
		return bugClosing{}, err
	}
	series, err := l.Series(pub.SeriesID)
	if err != nil {
		return bugClosing{}, err
	}
	dist, err := l.Distribution(series.DistributionID)
	if err != nil {
		return bugClosing{}, err
	}

	bc := bugClosing{
		Fix: archivist.BugFix{
			Distribution: dist.Name,
			Suite:        series.SuiteName(pub.Pocket),
			PackageName:  pub.PackageName,
			Version:      pub.Version,
		},
		SinceVersion: sinceVersion,
	}
	if release.ChangelogFileID != nil {
		f, err := l.StoredFile(*release.ChangelogFileID)
		if err != nil {
			return bugClosing{}, err
		}
		bc.ChangelogFile = &f
	}
	if release.ChangesFileID != nil {
		f, err := l.StoredFile(*release.ChangesFileID)
		if err != nil {
			return bugClosing{}, err
		}
		bc.ChangesFile = &f
	}
	return bc, nil
}

// findFixedBugs prefers the changelog if the previous version in the
// destination is known, since the changes file only covers one upload.
func (p *Processor) findFixedBugs(ctx context.Context, bc bugClosing) ([]int64, error) {
	switch {
	case bc.SinceVersion != "" && bc.ChangelogFile != nil:
		return p.bugs.FromChangelog(ctx, *bc.ChangelogFile, bc.SinceVersion)
	case bc.ChangesFile != nil:
		return p.bugs.FromChangesFile(ctx, *bc.ChangesFile)
	default:
		return nil, nil
	}
}

func (p *Processor) runSideEffects(ctx context.Context, fx sideEffects) {
	UnrestrictedFilesCounter.Add(float64(fx.UnrestrictedFiles))

	for _, bc := range fx.BugClosings {
		bugIDs, err := p.findFixedBugs(ctx, bc)
		if err != nil {
			logg.Error("cannot find bugs fixed by %s %s in %s/%s: %s",
				bc.Fix.PackageName, bc.Fix.Version, bc.Fix.Distribution, bc.Fix.Suite, err.Error())
			FailedSideEffectsCounter.WithLabelValues("bug_closing").Inc()
			continue
		}
		for _, bugID := range bugIDs {
			err := p.bd.CloseBug(ctx, bugID, bc.Fix)
			if err != nil {
				logg.Error("cannot close bug %d for %s %s in %s/%s: %s",
					bugID, bc.Fix.PackageName, bc.Fix.Version, bc.Fix.Distribution, bc.Fix.Suite, err.Error())
				FailedSideEffectsCounter.WithLabelValues("bug_closing").Inc()
			}
		}
	}

	for _, n := range fx.Notifications {
		p.notify(ctx, n)
	}
}

func (p *Processor) notify(ctx context.Context, n archivist.Notification) {
	err := p.nd.Notify(ctx, n)
	if err != nil {
		logg.Error("cannot send %s notification %q: %s", n.Action, n.Subject, err.Error())
		FailedSideEffectsCounter.WithLabelValues("notification").Inc()
	}
}
