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
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"
	"github.com/sapcc/go-bits/pluggable"
)

// Configuration contains all configuration values that are not specific to a
// certain driver.
type Configuration struct {
	// APIPublicURL is where users can reach the archivist API. It is
	// referenced in notifications.
	APIPublicURL url.URL
}

// GetDatabaseURLFromEnvironment reads the ARCHIVIST_DB_* environment variables.
func GetDatabaseURLFromEnvironment() (dbURL url.URL, dbName string) {
	dbName = osext.GetenvOrDefault("ARCHIVIST_DB_NAME", "archivist")
	return must.Return(easypg.URLFrom(easypg.URLParts{
		HostName:          osext.GetenvOrDefault("ARCHIVIST_DB_HOSTNAME", "localhost"),
		Port:              osext.GetenvOrDefault("ARCHIVIST_DB_PORT", "5432"),
		UserName:          osext.GetenvOrDefault("ARCHIVIST_DB_USERNAME", "postgres"),
		Password:          os.Getenv("ARCHIVIST_DB_PASSWORD"),
		ConnectionOptions: os.Getenv("ARCHIVIST_DB_CONNECTION_OPTIONS"),
		DatabaseName:      dbName,
	})), dbName
}

// ParseConfiguration obtains a archivist.Configuration instance from the
// corresponding environment variables. Aborts on error.
func ParseConfiguration() Configuration {
	logg.Debug("parsing configuration...")

	publicURLStr := osext.GetenvOrDefault("ARCHIVIST_API_PUBLIC_URL", "http://localhost:8080")
	publicURL, err := url.Parse(publicURLStr)
	if err != nil {
		logg.Fatal("malformed ARCHIVIST_API_PUBLIC_URL: %s", err.Error())
	}
	return Configuration{
		APIPublicURL: *publicURL,
	}
}

// newDriver parses a config JSON as found in a ARCHIVIST_DRIVER_* variable,
// initializes the respective driver, and unmarshals config parameters into it.
//
// This is the reusable part of the implementations for NewStorageDriver, NewPermissionDriver etc.
func newDriver[P pluggable.Plugin](driverType string, registry pluggable.Registry[P], configJSON string, init func(P) error) (P, error) {
	var zero P // for error returns

	var cfg struct {
		PluginTypeID string          `json:"type"`
		Params       json.RawMessage `json:"params"`
	}
	err := UnmarshalJSONStrict([]byte(configJSON), &cfg)
	if err != nil {
		return zero, fmt.Errorf("cannot unmarshal %s config %q: %w", driverType, configJSON, err)
	}
	if len(cfg.Params) == 0 {
		// configJSON was just a type, e.g. `{"type":"noop"}`
		cfg.Params = json.RawMessage("{}")
	}
	logg.Debug("initializing %s %q", driverType, configJSON)

	driver, ok := registry.TryInstantiate(cfg.PluginTypeID).Unpack()
	if !ok {
		return zero, fmt.Errorf("no such %s: %q", driverType, cfg.PluginTypeID)
	}
	err = UnmarshalJSONStrict([]byte(cfg.Params), driver)
	if err != nil {
		return zero, fmt.Errorf("cannot unmarshal params for %s %q: %w", driverType, cfg.PluginTypeID, err)
	}
	err = init(driver)
	if err != nil {
		return zero, fmt.Errorf("could not initialize %s %q: %w", driverType, cfg.PluginTypeID, err)
	}
	return driver, nil
}

// UnmarshalJSONStrict is like yaml.UnmarshalStrict(), but for JSON.
func UnmarshalJSONStrict(buf []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
