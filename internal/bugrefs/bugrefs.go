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

// Package bugrefs finds the bug numbers that a source upload claims to fix.
// They are read from the Launchpad-Bugs-Fixed field of the upload's .changes
// file, or from "LP: #NNN" references in the source's changelog.
package bugrefs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/opencontainers/go-digest"
	"pault.ag/go/debian/changelog"
	"pault.ag/go/debian/control"
	"pault.ag/go/debian/version"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
)

const bugsFixedField = "Launchpad-Bugs-Fixed"

var changelogBugRx = regexp.MustCompile(`(?i)LP:\s*#(\d+)(?:\s*,\s*#(\d+))*`)
var bugNumberRx = regexp.MustCompile(`#(\d+)`)

// ParseBugsFixedField parses the value of a Launchpad-Bugs-Fixed field, which
// is a whitespace-separated list of bug numbers. Malformed entries are ignored.
func ParseBugsFixedField(value string) []int64 {
	var result []int64
	for _, field := range strings.Fields(value) {
		id, err := strconv.ParseInt(field, 10, 64)
		if err == nil && id > 0 {
			result = append(result, id)
		}
	}
	return normalize(result)
}

// ParseChangesFile reads the bug numbers from the Launchpad-Bugs-Fixed field of
// a .changes file. The field name is matched case-insensitively.
func ParseChangesFile(r io.Reader) ([]int64, error) {
	para, err := control.ParseParagraph(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("cannot parse changes file: %w", err)
	}
	if para == nil {
		return nil, nil
	}
	for key, value := range para.Values {
		if strings.EqualFold(key, bugsFixedField) {
			return ParseBugsFixedField(value), nil
		}
	}
	return nil, nil
}

// ParseChangelog collects all "LP: #NNN" references from the changelog
// entries that are newer than sinceVersion. If sinceVersion is empty, only the
// topmost entry is considered.
func ParseChangelog(r io.Reader, sinceVersion string) ([]int64, error) {
	entries, err := changelog.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("cannot parse changelog: %w", err)
	}

	var since *version.Version
	if sinceVersion != "" {
		v, err := version.Parse(sinceVersion)
		if err != nil {
			return nil, fmt.Errorf("cannot parse version %q: %w", sinceVersion, err)
		}
		since = &v
	}

	var result []int64
	for _, entry := range entries {
		if since != nil && version.Compare(entry.Version, *since) <= 0 {
			break
		}
		result = append(result, findChangelogReferences(entry.Changelog)...)
		if since == nil {
			break
		}
	}
	return normalize(result), nil
}

func findChangelogReferences(text string) []int64 {
	var result []int64
	for _, match := range changelogBugRx.FindAllString(text, -1) {
		for _, m := range bugNumberRx.FindAllStringSubmatch(match, -1) {
			id, err := strconv.ParseInt(m[1], 10, 64)
			if err == nil {
				result = append(result, id)
			}
		}
	}
	return result
}

func normalize(ids []int64) []int64 {
	slices.Sort(ids)
	return slices.Compact(ids)
}

////////////////////////////////////////////////////////////////////////////////
// type Extractor

type cacheKey struct {
	Digest       digest.Digest
	SinceVersion string
}

// Extractor reads changes files and changelogs from the content store and
// extracts bug references from them. Results are cached by file digest, since
// stored files are immutable.
type Extractor struct {
	sd    archivist.StorageDriver
	cache *lru.Cache[cacheKey, []int64]
}

// NewExtractor creates a new Extractor.
func NewExtractor(sd archivist.StorageDriver) *Extractor {
	// lru.New() only fails if a non-positive size is given
	cache, _ := lru.New[cacheKey, []int64](256)
	return &Extractor{sd, cache}
}

// FromChangesFile returns the bugs listed in the given .changes file.
func (e *Extractor) FromChangesFile(ctx context.Context, file models.StoredFile) ([]int64, error) {
	return e.extract(ctx, file, cacheKey{file.Digest, ""}, func(r io.Reader) ([]int64, error) {
		return ParseChangesFile(r)
	})
}

// FromChangelog returns the bugs referenced by changelog entries newer than
// sinceVersion in the given changelog file.
func (e *Extractor) FromChangelog(ctx context.Context, file models.StoredFile, sinceVersion string) ([]int64, error) {
	return e.extract(ctx, file, cacheKey{file.Digest, sinceVersion}, func(r io.Reader) ([]int64, error) {
		return ParseChangelog(r, sinceVersion)
	})
}

func (e *Extractor) extract(ctx context.Context, file models.StoredFile, key cacheKey, parse func(io.Reader) ([]int64, error)) ([]int64, error) {
	if ids, ok := e.cache.Get(key); ok {
		return ids, nil
	}
	contents, err := e.sd.ReadFile(ctx, file.Digest)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", file.Filename, err)
	}
	ids, err := parse(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("in %s: %w", file.Filename, err)
	}
	e.cache.Add(key, ids)
	return ids, nil
}
