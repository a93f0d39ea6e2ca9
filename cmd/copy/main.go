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

package copycmd

import (
	"os"

	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"
	"github.com/spf13/cobra"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/bugrefs"
	"github.com/sapcc/archivist/internal/models"
	"github.com/sapcc/archivist/internal/processor"
)

var (
	requestPath string
	dryRun      bool
)

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "copy --request <file>",
		Short: "Copy a batch of source packages between archives.",
		Long:  "Copy a batch of source packages between archives. The request is read from a YAML file as described in README.md. Configuration is read from environment variables as described in README.md.",
		Args:  cobra.NoArgs,
		Run:   run,
	}
	cmd.PersistentFlags().StringVarP(&requestPath, "request", "r", "", "Path to the YAML file containing the copy request")
	cmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Only check whether the copy is possible")
	must.Succeed(cmd.MarkPersistentFlagRequired("request"))
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, args []string) {
	archivist.SetTaskName("copy")

	buf := must.Return(os.ReadFile(requestPath))
	req, err := parseBatchRequest(buf)
	if err != nil {
		logg.Fatal("invalid request in %s: %s", requestPath, err.Error())
	}

	cfg := archivist.ParseConfiguration()
	dbURL, _ := archivist.GetDatabaseURLFromEnvironment()
	dbConn := must.Return(easypg.Connect(dbURL, archivist.DBConfiguration()))
	db := archivist.InitORM(dbConn)

	sd := must.Return(archivist.NewStorageDriver(osext.MustGetenv("ARCHIVIST_DRIVER_STORAGE"), cfg))
	pd := must.Return(archivist.NewPermissionDriver(osext.MustGetenv("ARCHIVIST_DRIVER_PERMISSION"), cfg))
	nd := must.Return(archivist.NewNotificationDriver(osext.MustGetenv("ARCHIVIST_DRIVER_NOTIFICATION"), cfg))
	bd := must.Return(archivist.NewBugTrackerDriver(osext.MustGetenv("ARCHIVIST_DRIVER_BUGTRACKER"), cfg))
	p := processor.New(cfg, db, sd, pd, nd, bd, bugrefs.NewExtractor(sd))

	creq, err := req.resolve(db)
	if err == nil {
		if dryRun {
			err = p.CheckCopy(cmd.Context(), creq)
			if err == nil {
				logg.Info("copy of %d source(s) into %s is possible", len(creq.Sources), req.Target.archiveRef)
			}
		} else {
			var pubs []models.Publication
			pubs, err = p.DoCopy(cmd.Context(), creq)
			if err == nil {
				renderPublications(os.Stdout, pubs)
			}
		}
	}
	if cc, ok := archivist.AsCannotCopy(err); ok {
		logg.Fatal("cannot copy (%s): %s", cc.Kind, cc.Message)
	}
	must.Succeed(err)
}
