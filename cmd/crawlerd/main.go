package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"fcrank-backend/lib/configuration"
	configsqldb "fcrank-backend/lib/configuration/sqldb"
	"fcrank-backend/lib/httppool"
	"fcrank-backend/lib/osutil"
	"fcrank-backend/lib/telemetry"
	"fcrank-backend/services/crawler"
	"fcrank-backend/services/crawler/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func fatalerr(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

type Config struct {
	Database configsqldb.Struct  `json:"database"`
	Crawler  crawler.Config      `json:"crawler"`
	Log      telemetry.LogConfig `json:"log"`
}

func setup(ctx context.Context) (*crawler.Service, Config) {
	config, err := configuration.ReadConfig[Config]("config.json5")
	if err != nil {
		fatalerr("failed to read config", err)
	}
	telemetry.InitSlog(config.Log)

	_, err = telemetry.SetupFromEnv(ctx, "cmd/crawlerd")
	if err != nil && !os.IsNotExist(err) {
		fatalerr("failed to setup telemetry", err)
	}

	slog.Info("opening database...")
	sqlite, err := config.Database.OpenDB()
	if err != nil {
		fatalerr("failed to open database", err)
	}
	_, err = sqlite.Exec(db.Schema)
	if err != nil {
		fatalerr("failed to apply schema", err)
	}

	pool := httppool.Default(httppool.Options{
		ApiKey:             config.Crawler.ApiKey,
		BypassBrowserCheck: true,
		TracerName:         "crawler/http",
	})
	return crawler.NewService(sqlite, pool, config.Crawler), config
}

func main() {
	root := &cobra.Command{
		Use:   "crawlerd",
		Short: "Leaderboard crawl-and-refresh daemon",
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the refresh scheduler until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := osutil.SignalContext()
			service, _ := setup(ctx)
			service.Start(ctx)
			<-ctx.Done()
			service.Drain(30 * time.Second)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "crawl",
		Short: "Run exactly one refresh cycle and exit",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := osutil.SignalContext()
			service, _ := setup(ctx)
			err := service.RunCycle(ctx)
			if err != nil {
				fatalerr("refresh cycle failed", err)
			}
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current crawl status record",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			service, _ := setup(ctx)

			status, err := service.Store().Status(ctx)
			if err != nil {
				fatalerr("failed to read status", err)
			}

			rowCount := "-"
			if status.RowCount != nil {
				rowCount = fmt.Sprint(*status.RowCount)
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"progress", "reference time", "rows"})
			t.AppendRow(table.Row{
				fmt.Sprintf("%d%%", status.ProgressPercent),
				status.ReferenceTime,
				rowCount,
			})
			t.Render()
		},
	})

	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
