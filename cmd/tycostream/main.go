// Command tycostream runs the streaming gateway: it connects to the
// configured upstream views, maintains their caches, and serves the
// diagnostics HTTP surface (/metrics and /healthz); it does not serve a
// subscription transport. A full multi-source YAML
// configuration loader is out of scope for the core (see spec §1,
// §6); this entrypoint accepts a single source directly via flags, in
// the shape a thin operator script or a future loader would produce.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/tycoworks/tycostream/internal/app"
	"github.com/tycoworks/tycostream/internal/config"
	"github.com/tycoworks/tycostream/internal/ident"
	"github.com/tycoworks/tycostream/internal/schema"
	"github.com/tycoworks/tycostream/internal/types"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("tycostream exited with an error")
	}
}

func run() error {
	cfg := &config.Config{}
	cfg.Bind(pflag.CommandLine)

	var sourceName, sourceDSN, sourceQuery, primaryKey, columnsSpec string
	pflag.StringVar(&sourceName, "sourceName", "", "the name subscribers use to reference this source")
	pflag.StringVar(&sourceDSN, "sourceDSN", "", "the upstream connection string")
	pflag.StringVar(&sourceQuery, "sourceQuery", "", "the relation to SUBSCRIBE to, e.g. 'SELECT * FROM my_view'")
	pflag.StringVar(&primaryKey, "sourcePrimaryKey", "", "the primary-key column name")
	pflag.StringVar(&columnsSpec, "sourceColumns", "", "comma-separated name:type pairs, e.g. 'id:integer,name:string'")
	pflag.Parse()

	if err := cfg.Preflight(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	columns, err := parseColumns(columnsSpec)
	if err != nil {
		return errors.Wrap(err, "invalid sourceColumns")
	}

	builder := schema.NewBuilder(nil)
	builder.AddSource(&schema.Source{
		Name:       sourceName,
		PrimaryKey: ident.New(primaryKey),
		Columns:    columns,
	})
	registry, err := builder.Load()
	if err != nil {
		return errors.Wrap(err, "loading schema registry")
	}

	a, cleanup, err := app.New(*cfg, []config.SourceConfig{{
		Name:  sourceName,
		DSN:   sourceDSN,
		Query: sourceQuery,
	}}, registry)
	if err != nil {
		return errors.Wrap(err, "composing application")
	}
	defer cleanup()

	a.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{Addr: cfg.MetricsAddr, Handler: diagnosticsMux(a)}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("diagnostics server stopped unexpectedly")
		}
	}()

	log.WithField("source", sourceName).Info("tycostream started")
	<-ctx.Done()
	log.Info("shutdown signal received")

	_ = server.Shutdown(context.Background())
	return nil
}

func diagnosticsMux(a *app.App) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.Diag.Snapshot())
	})
	return mux
}

func parseColumns(spec string) ([]schema.Column, error) {
	var out []schema.Column
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			return nil, errors.Errorf("malformed column spec %q, want name:type", part)
		}
		dt, err := parseDataType(fields[1])
		if err != nil {
			return nil, err
		}
		out = append(out, schema.Column{Name: ident.New(fields[0]), Type: dt})
	}
	return out, nil
}

func parseDataType(name string) (types.DataType, error) {
	switch strings.ToLower(name) {
	case "integer", "int":
		return types.DataTypeInteger, nil
	case "bigint":
		return types.DataTypeBigInt, nil
	case "float", "double":
		return types.DataTypeFloat, nil
	case "string", "text":
		return types.DataTypeString, nil
	case "uuid":
		return types.DataTypeUUID, nil
	case "timestamp":
		return types.DataTypeTimestamp, nil
	case "date":
		return types.DataTypeDate, nil
	case "time":
		return types.DataTypeTime, nil
	case "boolean", "bool":
		return types.DataTypeBoolean, nil
	case "json":
		return types.DataTypeJSON, nil
	case "array":
		return types.DataTypeArray, nil
	default:
		return types.DataTypeUnknown, errors.Errorf("unrecognized column type %q", name)
	}
}
