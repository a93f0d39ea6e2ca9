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

package archivist

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sapcc/go-bits/errext"
)

// CopyErrorKind is the closed set of reasons for which a copy can be refused.
type CopyErrorKind string

// Possible values for CopyErrorKind.
const (
	ErrPermission          CopyErrorKind = "PermissionError"
	ErrNoSuchDistroSeries  CopyErrorKind = "NoSuchDistroSeriesError"
	ErrUnsupportedFormat   CopyErrorKind = "UnsupportedFormatError"
	ErrEmbargo             CopyErrorKind = "EmbargoError"
	ErrDdebToPrimary       CopyErrorKind = "DdebToPrimaryError"
	ErrDifferentOrigin     CopyErrorKind = "DifferentOriginConflictError"
	ErrAlreadyBuilding     CopyErrorKind = "AlreadyBuildingError"
	ErrUnpublishedBinaries CopyErrorKind = "UnpublishedBinariesError"
	ErrAlreadyPublished    CopyErrorKind = "AlreadyPublishedConflictError"
	ErrFileConflict        CopyErrorKind = "FileConflictError"
	ErrVersionConflict     CopyErrorKind = "VersionConflictError"
	ErrExpiredSource       CopyErrorKind = "ExpiredSourceError"
	ErrExpiredBinaries     CopyErrorKind = "ExpiredBinariesError"
	ErrMissingBinaries     CopyErrorKind = "MissingBinariesError"
	// ErrSourceNotFound is reported for copy jobs whose source package does
	// not exist (anymore) in the source archive.
	ErrSourceNotFound CopyErrorKind = "SourceNotFoundError"
	// ErrBatchRejected is reported by Processor.DoCopy when one or more sources
	// in a batch were refused. The message lists the individual reasons.
	ErrBatchRejected CopyErrorKind = "BatchRejected"
)

// CopyErrorClass groups CopyErrorKinds by how the caller should react to them.
type CopyErrorClass string

const (
	// PolicyErrorClass errors are static rejections that will not go away by
	// themselves.
	PolicyErrorClass CopyErrorClass = "PolicyError"
	// ConflictErrorClass errors depend on the state of the destination archive.
	// A later retry may succeed.
	ConflictErrorClass CopyErrorClass = "ConflictError"
	// DataErrorClass errors indicate that the source data is not servable
	// anymore.
	DataErrorClass CopyErrorClass = "DataError"
)

var copyErrorClasses = map[CopyErrorKind]CopyErrorClass{
	ErrPermission:          PolicyErrorClass,
	ErrNoSuchDistroSeries:  PolicyErrorClass,
	ErrUnsupportedFormat:   PolicyErrorClass,
	ErrEmbargo:             PolicyErrorClass,
	ErrDdebToPrimary:       PolicyErrorClass,
	ErrDifferentOrigin:     ConflictErrorClass,
	ErrAlreadyBuilding:     ConflictErrorClass,
	ErrUnpublishedBinaries: ConflictErrorClass,
	ErrAlreadyPublished:    ConflictErrorClass,
	ErrFileConflict:        ConflictErrorClass,
	ErrVersionConflict:     ConflictErrorClass,
	ErrExpiredSource:       DataErrorClass,
	ErrExpiredBinaries:     DataErrorClass,
	ErrMissingBinaries:     DataErrorClass,
	ErrSourceNotFound:      DataErrorClass,
	ErrBatchRejected:       ConflictErrorClass,
}

var copyErrorStatusCodes = map[CopyErrorClass]int{
	PolicyErrorClass:   http.StatusForbidden,
	ConflictErrorClass: http.StatusConflict,
	DataErrorClass:     http.StatusUnprocessableEntity,
}

// Class returns the CopyErrorClass of this kind.
func (k CopyErrorKind) Class() CopyErrorClass {
	return copyErrorClasses[k]
}

// With is a convenience function for constructing type CannotCopy.
func (k CopyErrorKind) With(msg string, args ...any) *CannotCopy {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &CannotCopy{Kind: k, Message: msg}
}

// CannotCopy is returned when a copy is refused. The message is intended to be
// shown verbatim to the person who requested the copy.
type CannotCopy struct {
	Kind    CopyErrorKind
	Message string
}

// Error implements the builtin/error interface.
func (e *CannotCopy) Error() string {
	return e.Message
}

// MarshalJSON implements the json.Marshaler interface.
func (e *CannotCopy) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    CopyErrorKind  `json:"kind"`
		Class   CopyErrorClass `json:"class"`
		Message string         `json:"message"`
	}{e.Kind, e.Kind.Class(), e.Message})
}

// WriteAsJSONTo reports this error as a JSON document with a status code
// matching its class.
func (e *CannotCopy) WriteAsJSONTo(w http.ResponseWriter) {
	buf, _ := json.Marshal(struct {
		Error *CannotCopy `json:"error"`
	}{e})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(copyErrorStatusCodes[e.Kind.Class()])
	w.Write(append(buf, '\n')) //nolint:errcheck
}

// AsCannotCopy unwraps the given error into a CannotCopy, if possible.
func AsCannotCopy(err error) (*CannotCopy, bool) {
	return errext.As[*CannotCopy](err)
}
