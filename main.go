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

package main

import (
	"context"

	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"
	"github.com/spf13/cobra"

	apicmd "github.com/sapcc/archivist/cmd/api"
	copycmd "github.com/sapcc/archivist/cmd/copy"
	workercmd "github.com/sapcc/archivist/cmd/worker"
	"github.com/sapcc/archivist/internal/archivist"

	// include all known driver implementations
	_ "github.com/sapcc/archivist/internal/drivers/basic"
	_ "github.com/sapcc/archivist/internal/drivers/filesystem"
	_ "github.com/sapcc/archivist/internal/drivers/mail"
	_ "github.com/sapcc/archivist/internal/drivers/trivial"
	_ "github.com/sapcc/archivist/internal/drivers/webhook"
)

func main() {
	logg.ShowDebug = osext.GetenvBool("ARCHIVIST_DEBUG")
	archivist.SetupHTTPClient()

	rootCmd := &cobra.Command{
		Use:     "archivist",
		Short:   "Package archive copy engine",
		Long:    "Archivist copies source and binary packages between package archives. This binary contains the server components and the command-line client.",
		Version: bininfo.VersionOr("rolling"),
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help() //nolint:errcheck
		},
	}
	copycmd.AddCommandTo(rootCmd)

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Server commands.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help() //nolint:errcheck
		},
	}
	apicmd.AddCommandTo(serverCmd)
	workercmd.AddCommandTo(serverCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logg.Fatal(err.Error())
	}
}
