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

package workercmd

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dlmiddlecote/sqlstats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/jobloop"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"
	"github.com/spf13/cobra"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/tasks"
)

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the archivist-worker server component.",
		Long:  "Run the archivist-worker server component, which executes package copy jobs. Configuration is read from environment variables as described in README.md.",
		Args:  cobra.NoArgs,
		Run:   run,
	}
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, args []string) {
	archivist.SetTaskName("worker")

	cfg := archivist.ParseConfiguration()
	ctx := httpext.ContextWithSIGINT(cmd.Context(), 10*time.Second)

	dbURL, dbName := archivist.GetDatabaseURLFromEnvironment()
	dbConn := must.Return(easypg.Connect(dbURL, archivist.DBConfiguration()))
	prometheus.MustRegister(sqlstats.NewStatsCollector(dbName, dbConn))
	db := archivist.InitORM(dbConn)

	sd := must.Return(archivist.NewStorageDriver(osext.MustGetenv("ARCHIVIST_DRIVER_STORAGE"), cfg))
	pd := must.Return(archivist.NewPermissionDriver(osext.MustGetenv("ARCHIVIST_DRIVER_PERMISSION"), cfg))
	nd := must.Return(archivist.NewNotificationDriver(osext.MustGetenv("ARCHIVIST_DRIVER_NOTIFICATION"), cfg))
	bd := must.Return(archivist.NewBugTrackerDriver(osext.MustGetenv("ARCHIVIST_DRIVER_BUGTRACKER"), cfg))

	// start task loops
	worker := tasks.NewWorker(cfg, db, sd, pd, nd, bd)
	numGoroutines := must.Return(strconv.ParseUint(osext.GetenvOrDefault("ARCHIVIST_WORKER_CONCURRENCY", "2"), 10, 32))
	go worker.CopyJobRunner(prometheus.DefaultRegisterer).Run(ctx, jobloop.NumGoroutines(uint32(numGoroutines)))
	go worker.StaleCopyJobResetJob(prometheus.DefaultRegisterer).Run(ctx)

	// start HTTP server for Prometheus metrics and health check
	handler := httpapi.Compose(
		httpapi.HealthCheckAPI{
			SkipRequestLog: true,
			Check: func() error {
				return db.Db.PingContext(ctx)
			},
		},
	)
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())
	listenAddress := osext.GetenvOrDefault("ARCHIVIST_WORKER_LISTEN_ADDRESS", ":8080")
	must.Succeed(httpext.ListenAndServeContext(ctx, listenAddress, mux))
}
