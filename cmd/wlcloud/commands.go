package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/chrissnell/wlcloud/internal/app"
	"github.com/chrissnell/wlcloud/internal/entity"
	"github.com/chrissnell/wlcloud/internal/log"
	"github.com/chrissnell/wlcloud/internal/managers"
	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/internal/weatherlink"
	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/chrissnell/wlcloud/pkg/config"
	"github.com/chrissnell/wlcloud/pkg/responseformat"
)

func runAction(ctx context.Context, cmd *cli.Command) error {
	provider, err := openProvider(cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	log.Infof("wlcloud %s starting", version)
	if err := app.New(provider, log.GetSugaredLogger()).Run(ctx); err != nil {
		return exitFor(err)
	}
	return nil
}

// exitFor maps WeatherLink errors onto the documented exit codes.
func exitFor(err error) error {
	switch {
	case errors.Is(err, weatherlink.ErrInvalidAuth), errors.Is(err, weatherlink.ErrStationNotFound):
		return cli.Exit(err.Error(), exitInvalidAuth)
	case errors.Is(err, weatherlink.ErrCannotConnect):
		return cli.Exit(err.Error(), exitCannotConnect)
	}
	return err
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "check the configured credentials against WeatherLink",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "overall time limit"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			entry, err := loadEntry(cmd)
			if err != nil {
				return err
			}
			if err := entry.Validate(); err != nil {
				return cli.Exit(err.Error(), exitError)
			}
			client, version, err := managers.NewClient(*entry, log.Named("weatherlink"))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()

			if err := validate(ctx, os.Stdout, client, version, entry.StationID); err != nil {
				return exitFor(err)
			}
			return nil
		},
	}
}

// validate proves the credentials work. v1 has no metadata endpoint, so a
// NoaaExt fetch stands in for it.
func validate(ctx context.Context, w io.Writer, client *weatherlink.Client, version observation.APIVersion, stationID int) error {
	switch version {
	case observation.APIv1:
		raw, err := client.FetchNoaaExt(ctx)
		if err != nil {
			return err
		}
		obs, err := observation.NewNormalizer(nil).Normalize(raw, observation.APIv1, observation.DefaultPrimaryTxID)
		if err != nil {
			return err
		}
		name, _ := obs.Get(observation.DefaultPrimaryTxID, observation.StationName)
		did, _ := obs.Get(observation.DefaultPrimaryTxID, observation.DID)
		fmt.Fprintf(w, "OK: station %q (DID %s)\n", name.String(), did.String())

	case observation.APIv2:
		station, err := client.Station(ctx, stationID)
		if err != nil {
			return err
		}
		sensors, err := client.Sensors(ctx)
		if err != nil {
			return err
		}
		sensors = observation.FilterStation(sensors, station.StationID)
		fmt.Fprintf(w, "OK: station %q (%s), %d sensors, primary transmitter %d\n",
			station.StationName, station.StationIDUUID, len(sensors), observation.SelectPrimaryTransmitter(sensors, nil))

	default:
		return fmt.Errorf("%w: %q", observation.ErrUnsupportedAPIVersion, version)
	}
	return nil
}

func stationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stations",
		Usage: "list the stations visible to the configured v2 API key",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			entry, err := loadEntry(cmd)
			if err != nil {
				return err
			}
			client, version, err := managers.NewClient(*entry, log.Named("weatherlink"))
			if err != nil {
				return err
			}
			if version != observation.APIv2 {
				return cli.Exit("listing stations requires api_version v2", exitError)
			}
			stations, err := client.Stations(ctx)
			if err != nil {
				return exitFor(err)
			}
			printStations(os.Stdout, stations)
			return nil
		},
	}
}

func printStations(w io.Writer, stations []weatherlink.Station) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATION ID\tUUID\tNAME\tPRODUCT\tGATEWAY")
	for _, s := range stations {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.StationID, s.StationIDUUID, s.StationName,
			entity.GatewayType(s.ProductNumber), s.GatewayIDHex)
	}
	tw.Flush()
}

func normalizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "normalize",
		Usage:     "normalize a saved WeatherLink payload and print the result",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "payload file, or - for stdin"},
			&cli.StringFlag{Name: "api-version", Value: "v2", Usage: "payload API version: v1 or v2"},
			&cli.IntFlag{Name: "primary", Value: observation.DefaultPrimaryTxID, Usage: "primary transmitter id"},
			&cli.StringFlag{Name: "catalog", Usage: "sensor catalog YAML overriding the built-in one"},
			&cli.StringFlag{Name: "format", Value: "json", Usage: "output format: json or msgpack"},
			&cli.BoolFlag{Name: "entities", Usage: "print the entities and their rendered states instead"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			raw, err := readInput(cmd.String("file"))
			if err != nil {
				return err
			}
			version, err := observation.ParseAPIVersion(cmd.String("api-version"))
			if err != nil {
				return err
			}
			catalog, err := managers.LoadCatalog(config.EntryData{CatalogFile: cmd.String("catalog")})
			if err != nil {
				return err
			}

			primary := int(cmd.Int("primary"))
			obs, err := observation.NewNormalizer(catalog, observation.WithLogger(log.Named("normalizer"))).
				Normalize(raw, version, primary)
			if err != nil {
				return err
			}
			if !cmd.Bool("entities") {
				return writeOutput(os.Stdout, obs, cmd.String("format"))
			}
			snap := snapshotFor(obs, version, primary)
			builder := entity.NewBuilder(catalog, log.Named("entity"))
			return writeOutput(os.Stdout, renderEntities(builder.Build(snap), obs, snap.FetchedAt), cmd.String("format"))
		},
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

type renderedEntity struct {
	UniqueID string       `json:"unique_id"`
	Key      string       `json:"key"`
	Kind     entity.Kind  `json:"kind"`
	TxID     int          `json:"tx_id"`
	Device   string       `json:"device"`
	State    entity.State `json:"state"`
}

func renderEntities(entities []entity.Entity, obs *observation.Observation, now time.Time) []renderedEntity {
	out := make([]renderedEntity, 0, len(entities))
	for _, e := range entities {
		out = append(out, renderedEntity{
			UniqueID: e.UniqueID,
			Key:      e.Description.Key,
			Kind:     e.Description.Kind,
			TxID:     e.TxID,
			Device:   e.Device.Name,
			State:    e.Render(obs, true, now),
		})
	}
	return out
}

func writeOutput(w io.Writer, data any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "msgpack":
		body, err := responseformat.Encode(responseformat.MsgPack, data)
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "upgrade a SQLite configuration entry to the current schema version",
		Action: func(_ context.Context, cmd *cli.Command) error {
			provider, err := openProvider(cmd)
			if err != nil {
				return err
			}
			defer provider.Close()

			sqlite, ok := provider.(*config.SQLiteProvider)
			if !ok {
				fmt.Println("YAML entries are migrated in memory on every load; nothing to do")
				return nil
			}
			changed, err := sqlite.MigrateStoredEntry()
			if err != nil {
				return err
			}
			if changed {
				fmt.Printf("entry upgraded to version %d\n", config.EntryVersionCurrent)
			} else {
				fmt.Printf("entry already at version %d\n", config.EntryVersionCurrent)
			}
			return nil
		},
	}
}

// snapshotFor wraps a one-off observation so entity rendering works offline.
// The observation's own timestamp stands in for the fetch time so saved
// payloads still render as connected.
func snapshotFor(obs *observation.Observation, version observation.APIVersion, primary int) *weatherstations.Snapshot {
	fetched := time.Now()
	if v, ok := obs.Get(primary, observation.Timestamp); ok {
		if ts, ok := v.Int64(); ok {
			fetched = time.Unix(ts, 0)
		}
	}
	return &weatherstations.Snapshot{
		Observation: obs,
		APIVersion:  version,
		PrimaryTxID: primary,
		FetchedAt:   fetched,
	}
}
