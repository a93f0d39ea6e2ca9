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
	"slices"
	"strings"

	"github.com/go-gorp/gorp/v3"
	. "github.com/majewsky/gg/option"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
)

// CopyTarget identifies the destination of a copy.
type CopyTarget struct {
	Archive models.Archive
	// If Series is None, each source is copied into the series it is published in.
	Series Option[models.DistroSeries]
	Pocket models.Pocket
}

// CopyRequest contains the parameters for Processor.CheckCopy and Processor.DoCopy.
type CopyRequest struct {
	Sources         []models.SourcePublication
	Target          CopyTarget
	IncludeBinaries bool
	// Requester is the name of the person asking for the copy.
	Requester        string
	CheckPermissions bool
	SendEmail        bool
	// Sponsored is the name of the person on whose behalf the copy is made.
	// If set, this person becomes the creator of the new publications and the
	// Requester is recorded as sponsor.
	Sponsored Option[string]
	// Overrides is either empty, or has one entry (possibly nil) per source.
	Overrides              []*Override
	PhasedUpdatePercentage Option[uint8]
	// Unembargo allows restricted files to be copied into public archives.
	// They are made public as part of the copy.
	Unembargo bool
}

func (r CopyRequest) targetSeriesFor(l *ledger, source models.SourcePublication) (models.DistroSeries, error) {
	if series, ok := r.Target.Series.Unpack(); ok {
		return series, nil
	}
	return l.Series(source.SeriesID)
}

// CheckCopy checks whether all sources in the request could be copied, without
// executing the copy. If not, a *archivist.CannotCopy error is returned that
// lists the reasons for each refused source.
func (p *Processor) CheckCopy(ctx context.Context, req CopyRequest) error {
	err := req.validate()
	if err != nil {
		return err
	}
	db := p.db.WithContext(ctx)
	checker := p.newCopyChecker(db, req.Target.Archive, req.IncludeBinaries, req.Unembargo)
	return p.checkBatch(ctx, newLedger(db), checker, req)
}

func (r CopyRequest) validate() error {
	if len(r.Overrides) != 0 && len(r.Overrides) != len(r.Sources) {
		return fmt.Errorf("expected %d overrides, but got %d", len(r.Sources), len(r.Overrides))
	}
	if !r.Target.Pocket.IsValid() {
		return fmt.Errorf("invalid pocket: %q", r.Target.Pocket)
	}
	return nil
}

// Runs all sources of the request through the checker. The individual reasons
// for refusal are collected into one CannotCopy error. If there is only one,
// its kind is retained. Otherwise the kind is ErrBatchRejected.
func (p *Processor) checkBatch(ctx context.Context, l *ledger, checker *CopyChecker, req CopyRequest) error {
	var (
		lines []string
		kinds []archivist.CopyErrorKind
	)
	for _, source := range req.Sources {
		series, err := req.targetSeriesFor(l, source)
		if err != nil {
			return err
		}
		err = checker.CheckCopy(ctx, source, series, req.Target.Pocket, req.Requester, req.CheckPermissions)
		if err == nil {
			continue
		}
		cc, ok := archivist.AsCannotCopy(err)
		if !ok {
			return err
		}
		sourceSeries, err := l.Series(source.SeriesID)
		if err != nil {
			return err
		}
		logg.Debug("refusing to copy %s into %s: %s", source.DisplayName(sourceSeries), req.Target.Archive.Reference(), cc.Message)
		RejectedCopiesCounter.WithLabelValues(string(req.Target.Archive.Purpose), string(cc.Kind)).Inc()
		lines = append(lines, fmt.Sprintf("%s (%s)", source.DisplayName(sourceSeries), cc.Message))
		kinds = append(kinds, cc.Kind)
	}

	switch len(lines) {
	case 0:
		return nil
	case 1:
		return kinds[0].With(lines[0])
	default:
		return archivist.ErrBatchRejected.With(strings.Join(lines, "\n"))
	}
}

// DoCopy checks and executes a batch of copies. Either all sources are copied
// or none: If any source is refused, no changes are made and a
// *archivist.CannotCopy error describing all refusals is returned.
//
// Concurrent copies of the same package versions into the same archive are
// serialized. Bugs are closed and notifications are sent after the copy has
// been committed. Failures in those steps are logged, but not returned.
func (p *Processor) DoCopy(ctx context.Context, req CopyRequest) ([]models.Publication, error) {
	err := req.validate()
	if err != nil {
		return nil, err
	}
	overrides := make(map[int64]*Override, len(req.Overrides))
	for idx, o := range req.Overrides {
		overrides[req.Sources[idx].ID] = o
	}

	var (
		result    []models.Publication
		fx        sideEffects
		rejection *archivist.Notification
	)
	err = p.insideTransaction(ctx, func(tx *gorp.Transaction) error {
		err := lockCopyKeys(tx, req)
		if err != nil {
			return err
		}
		l := newLedger(tx)
		checker := p.newCopyChecker(tx, req.Target.Archive, req.IncludeBinaries, req.Unembargo)
		err = p.checkBatch(ctx, l, checker, req)
		if err != nil {
			if cc, ok := archivist.AsCannotCopy(err); ok && req.SendEmail && len(req.Sources) > 0 {
				n, nerr := buildNotification(l, archivist.RejectedAction, req, req.Sources[0], "")
				if nerr != nil {
					return nerr
				}
				n.Summary = cc.Message
				rejection = &n
			}
			return err
		}

		for _, cc := range checker.CheckedCopies() {
			pubs, err := p.executeCheckedCopy(l, cc, req, overrides[cc.Source.ID], &fx)
			if err != nil {
				return err
			}
			result = append(result, pubs...)
		}
		return nil
	})
	if err != nil {
		if rejection != nil {
			p.notify(ctx, *rejection)
		}
		return nil, err
	}

	for _, pub := range result {
		switch pub.(type) {
		case *models.SourcePublication:
			CopiedPublicationsCounter.WithLabelValues(string(req.Target.Archive.Purpose), "source").Inc()
		case *models.BinaryPublication:
			CopiedPublicationsCounter.WithLabelValues(string(req.Target.Archive.Purpose), "binary").Inc()
		}
	}
	p.runSideEffects(ctx, fx)
	return result, nil
}

// Takes a transaction-scoped advisory lock for each (archive, name, version)
// in the batch. Keys are locked in sorted order to avoid deadlocks between
// overlapping batches.
func lockCopyKeys(tx gorp.SqlExecutor, req CopyRequest) error {
	keys := make([]string, 0, len(req.Sources))
	for _, source := range req.Sources {
		keys = append(keys, fmt.Sprintf("%d/%s/%s", req.Target.Archive.ID, source.PackageName, source.Version))
	}
	slices.Sort(keys)
	for _, key := range slices.Compact(keys) {
		_, err := tx.Exec(`SELECT pg_advisory_xact_lock(hashtext($1))`, key)
		if err != nil {
			return fmt.Errorf("cannot lock %s: %w", key, err)
		}
	}
	return nil
}

func (p *Processor) executeCheckedCopy(l *ledger, cc CheckedCopy, req CopyRequest, override *Override, fx *sideEffects) ([]models.Publication, error) {
	archive := req.Target.Archive

	// the previous version is looked up in the series that the caller asked
	// for, which is any series if the caller did not specify one
	var (
		oldPub *models.SourcePublication
		err    error
	)
	if series, ok := req.Target.Series.Unpack(); ok {
		oldPub, err = l.FindActiveSource(archive.ID, series.ID, req.Target.Pocket, cc.Source.PackageName)
	} else {
		oldPub, err = l.FindActiveSourceInAnySeries(archive.ID, req.Target.Pocket, cc.Source.PackageName)
	}
	if err != nil {
		return nil, err
	}
	oldVersion := ""
	if oldPub != nil {
		oldVersion = oldPub.Version
	}

	creator, sponsor := req.Requester, ""
	if sponsored, ok := req.Sponsored.Unpack(); ok {
		creator, sponsor = sponsored, req.Requester
	}

	pubs, newSource, err := p.directCopy(l, cc, req, override, creator, sponsor)
	if err != nil {
		return nil, err
	}

	if newSource != nil && archive.Purpose.IsMain() && closesBugsIn(req.Target.Pocket) {
		bc, err := prepareBugClosing(l, *newSource, oldVersion)
		if err != nil {
			return nil, err
		}
		fx.BugClosings = append(fx.BugClosings, bc)
	}

	if req.SendEmail {
		n, err := buildNotification(l, archivist.AcceptedAction, req, cc.Source, oldVersion)
		if err != nil {
			return nil, err
		}
		n.Series = cc.Series
		n.Subject = archivist.BuildSubject(n.Action, n.Distribution, n.Archive, n.Series, n.Pocket, n.PackageName, n.Version)
		n.Summary = fmt.Sprintf("%d publication(s) created", len(pubs))
		fx.Notifications = append(fx.Notifications, n)
	}

	if !archive.IsPrivate {
		for _, pub := range pubs {
			changed, err := updateFilesPrivacy(l, pub)
			if err != nil {
				return nil, err
			}
			if len(changed) == 0 {
				continue
			}
			filenames := make([]string, len(changed))
			for idx, f := range changed {
				filenames[idx] = f.Filename
			}
			logg.Info("Made %s public", strings.Join(filenames, ", "))
			fx.UnrestrictedFiles += len(changed)
		}
	}

	return pubs, nil
}

// directCopy publishes the source (and, if requested, its binaries) in the
// destination suite. A source that is already active there is reused. Builds
// are created for all architectures that are not covered by existing builds.
//
// Returns all new publications, and separately the new source publication
// (or nil if the source was reused).
func (p *Processor) directCopy(l *ledger, cc CheckedCopy, req CopyRequest, override *Override, creator, sponsor string) ([]models.Publication, *models.SourcePublication, error) {
	archive := req.Target.Archive
	pocket := req.Target.Pocket
	source := cc.Source

	var (
		result    []models.Publication
		newSource *models.SourcePublication
	)
	target, err := l.FindActiveSourceVersion(archive.ID, cc.Series.ID, pocket, source.PackageName, source.Version)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		o, err := resolveSourceOverride(l, archive, cc.Series, source, override)
		if err != nil {
			return nil, nil, err
		}
		ancestorID := source.ID
		newSource = &models.SourcePublication{
			ArchiveID:       archive.ID,
			SeriesID:        cc.Series.ID,
			Pocket:          pocket,
			SourceReleaseID: source.SourceReleaseID,
			PackageName:     source.PackageName,
			Version:         source.Version,
			Component:       o.Component,
			Section:         o.Section,
			Status:          models.PendingPublication,
			CreatedAt:       p.timeNow(),
			CreatorName:     creator,
			SponsorName:     sponsor,
			AncestorID:      &ancestorID,
		}
		err = l.db.Insert(newSource)
		if err != nil {
			return nil, nil, err
		}
		result = append(result, newSource)
		target = newSource
	}

	if cc.IncludeBinaries {
		bpubs, err := p.copyBinaries(l, source, binaryCopy{
			Archive:                archive,
			Series:                 cc.Series,
			Pocket:                 pocket,
			Override:               override,
			PhasedUpdatePercentage: req.PhasedUpdatePercentage,
			CreatorName:            creator,
		})
		if err != nil {
			return nil, nil, err
		}
		result = append(result, bpubs...)
	}

	_, err = p.createMissingBuilds(l, *target)
	if err != nil {
		return nil, nil, err
	}
	return result, newSource, nil
}

func buildNotification(l *ledger, action archivist.NotificationAction, req CopyRequest, source models.SourcePublication, oldVersion string) (archivist.Notification, error) {
	series, err := req.targetSeriesFor(l, source)
	if err != nil {
		return archivist.Notification{}, err
	}
	dist, err := l.Distribution(req.Target.Archive.DistributionID)
	if err != nil {
		return archivist.Notification{}, err
	}
	announceFrom := req.Sponsored.UnwrapOr(req.Requester)
	return archivist.Notification{
		Action:          action,
		Subject:         archivist.BuildSubject(action, dist, req.Target.Archive, series, req.Target.Pocket, source.PackageName, source.Version),
		Requester:       req.Requester,
		AnnounceFrom:    announceFrom,
		Archive:         req.Target.Archive,
		Distribution:    dist,
		Series:          series,
		Pocket:          req.Target.Pocket,
		PackageName:     source.PackageName,
		Version:         source.Version,
		PreviousVersion: oldVersion,
	}, nil
}
