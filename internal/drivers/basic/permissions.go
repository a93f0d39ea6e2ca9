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

package basic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/sapcc/go-bits/regexpext"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
)

// PermissionDriver is the permission driver "basic". It grants upload rights
// according to a static list of rules in a JSON config file.
type PermissionDriver struct {
	// configuration
	ConfigPath string `json:"config_path"`

	// state
	config PermissionConfig
	lock   sync.RWMutex
}

// PermissionConfig is the contents of the config file for PermissionDriver.
type PermissionConfig struct {
	Rules []UploadRule `json:"rules"`
}

// UploadRule grants upload rights to all persons whose name matches the
// PersonPattern. The other patterns restrict the rule to certain archives
// and packages. Empty patterns match everything.
type UploadRule struct {
	PersonPattern regexpext.BoundedRegexp `json:"match_person"`
	// ArchivePattern is matched against "<owner>/<archive>".
	ArchivePattern regexpext.BoundedRegexp `json:"match_archive,omitempty"`
	PackagePattern regexpext.BoundedRegexp `json:"match_package,omitempty"`
	// Components restricts the rule to packages in the given components. If
	// empty, the rule applies to all components.
	Components   []string        `json:"components,omitempty"`
	Pockets      []models.Pocket `json:"pockets,omitempty"`
	IsQueueAdmin bool            `json:"queue_admin,omitempty"`
}

func init() {
	archivist.PermissionDriverRegistry.Add(func() archivist.PermissionDriver {
		return &PermissionDriver{}
	})
}

// PluginTypeID implements the archivist.PermissionDriver interface.
func (d *PermissionDriver) PluginTypeID() string { return "basic" }

// Init implements the archivist.PermissionDriver interface.
func (d *PermissionDriver) Init(cfg archivist.Configuration) error {
	if d.ConfigPath == "" {
		return errors.New("missing required field: params.config_path")
	}
	return d.LoadConfig()
}

// HasUploadRights implements the archivist.PermissionDriver interface.
func (d *PermissionDriver) HasUploadRights(ctx context.Context, person string, target archivist.UploadTarget) (bool, error) {
	return d.anyRuleMatches(person, target, func(rule UploadRule) bool {
		if !target.StrictComponent || len(rule.Components) == 0 {
			return true
		}
		return slices.Contains(rule.Components, target.Component)
	}), nil
}

// IsQueueAdmin implements the archivist.PermissionDriver interface.
func (d *PermissionDriver) IsQueueAdmin(ctx context.Context, person string, target archivist.UploadTarget) (bool, error) {
	return d.anyRuleMatches(person, target, func(rule UploadRule) bool {
		return rule.IsQueueAdmin
	}), nil
}

func (d *PermissionDriver) anyRuleMatches(person string, target archivist.UploadTarget, predicate func(UploadRule) bool) bool {
	d.lock.RLock()
	defer d.lock.RUnlock()

	archivePath := fmt.Sprintf("%s/%s", target.Archive.OwnerName, target.Archive.Name)
	for _, rule := range d.config.Rules {
		if !rule.PersonPattern.MatchString(person) {
			continue
		}
		if rule.ArchivePattern != "" && !rule.ArchivePattern.MatchString(archivePath) {
			continue
		}
		if rule.PackagePattern != "" && !rule.PackagePattern.MatchString(target.PackageName) {
			continue
		}
		if len(rule.Pockets) > 0 && !slices.Contains(rule.Pockets, target.Pocket) {
			continue
		}
		if predicate(rule) {
			return true
		}
	}
	return false
}

// LoadConfig reads the config file again, replacing the previously loaded rules.
func (d *PermissionDriver) LoadConfig() error {
	reader, err := os.Open(d.ConfigPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	var config PermissionConfig
	err = decoder.Decode(&config)
	if err != nil {
		return err
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	d.config = config
	return nil
}
