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

import "regexp"

// NamePattern matches names of distributions, archives, archive owners and
// series. It is used in API routes.
const NamePattern = `[a-z0-9][a-z0-9.+-]*`

// NameRx is NamePattern as a full-string regex.
var NameRx = regexp.MustCompile(`^` + NamePattern + `$`)

// PackageNameRx matches source and binary package names.
// Examples:
// - foo
// - libfoo2.0-dev
// - g++-12
var PackageNameRx = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]+$`)

// VersionRx matches package versions. Each version has an optional epoch, an
// upstream version and an optional Debian revision.
// Examples:
// - 666
// - 1.0-1
// - 1:2.3~rc1-0ubuntu1
var VersionRx = regexp.MustCompile(`^(?:[0-9]+:)?[0-9][A-Za-z0-9.+~:-]*$`)

// IsPackageName returns whether the given string is a well-formed package name.
// This does not check whether the package actually exists in the DB.
func IsPackageName(input string) bool {
	return PackageNameRx.MatchString(input)
}

// IsVersion returns whether the given string is a well-formed package version.
func IsVersion(input string) bool {
	return VersionRx.MatchString(input)
}
