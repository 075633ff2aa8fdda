package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hanpama/relgraph/internal/config"
	"github.com/hanpama/relgraph/internal/eventbus"
	"github.com/hanpama/relgraph/internal/otel"
	"github.com/hanpama/relgraph/qc"
	"github.com/hanpama/relgraph/qcsql"
	"github.com/hanpama/relgraph/schema"
	"github.com/hanpama/relgraph/server"
)

const rootUsage = `relgraph - GraphQL over a relational database

USAGE:
  relgraph <command> [flags]

COMMANDS:
  serve       Run the HTTP GraphQL server over a SQLite database
  print-sdl   Print the GraphQL SDL derived from the database schema
  help        Show help for any command
`

const serveUsage = `serve FLAGS:
  -config <file>              YAML configuration file
  -db <path>                  SQLite database file (overrides config)
  -server.addr <addr>         HTTP listen address (default: :8080)
  -server.pretty              Pretty-print JSON responses
  -server.timeout <duration>  Per-request timeout, e.g. 10s (default: 10s)
  -graphql.entity <name>      Expose only the named entity. Repeatable;
                              default is every entity in the catalog.
  -otel.endpoint <addr>       OTLP collector endpoint
  -otel.service <name>        OpenTelemetry service name (default: relgraph)
`

const printSDLUsage = `print-sdl FLAGS:
  -config <file>        YAML configuration file
  -db <path>            SQLite database file (overrides config)
  -graphql.entity <name>  Expose only the named entity. Repeatable.
  -out <file>           Write SDL to file (default: stdout)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}
	switch args[0] {
	case "serve":
		return cmdServe(args[1:])
	case "print-sdl":
		return cmdPrintSDL(args[1:])
	case "help":
		return cmdHelp(args[1:])
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	case "print-sdl":
		fmt.Print(printSDLUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdServe(args []string) error {
	var (
		configFile string
		dbPath     string
		addr       string
		pretty     bool
		timeout    time.Duration
		entities   stringListFlag
		otelEP     string
		otelSvc    string
	)
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&configFile, "config", "", "YAML configuration file")
	fs.StringVar(&dbPath, "db", "", "SQLite database file")
	fs.StringVar(&addr, "server.addr", "", "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", false, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", 0, "Per-request timeout")
	fs.Var(&entities, "graphql.entity", "Expose only the named entity")
	fs.StringVar(&otelEP, "otel.endpoint", "", "OTLP collector endpoint")
	fs.StringVar(&otelSvc, "otel.service", "", "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	cfg, err := loadConfig(configFile, dbPath, entities)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if pretty {
		cfg.Server.Pretty = true
	}
	if timeout > 0 {
		cfg.Server.Timeout = config.Duration(timeout)
	}
	if otelEP != "" {
		cfg.Otel.Endpoint = otelEP
	}
	if otelSvc != "" {
		cfg.Otel.Service = otelSvc
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ctx := context.Background()
	engine, sch, err := buildSchema(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	sopts := []server.Option{server.WithGraphiQL(cfg.Server.GraphiQL == nil || *cfg.Server.GraphiQL)}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if d := time.Duration(cfg.Server.Timeout); d > 0 {
		sopts = append(sopts, server.WithTimeout(d))
	}
	if cfg.Server.MaxBodyBytes > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))
	}
	if len(cfg.Server.CORS) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORS...))
	}
	h := server.New(sch, sopts...)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Handle("/graphql", h)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	log.Printf("GraphQL server listening on %s", cfg.Server.Addr)
	return http.ListenAndServe(cfg.Server.Addr, r)
}

func cmdPrintSDL(args []string) error {
	var (
		configFile string
		dbPath     string
		entities   stringListFlag
		outFile    string
	)
	fs := flag.NewFlagSet("print-sdl", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&configFile, "config", "", "YAML configuration file")
	fs.StringVar(&dbPath, "db", "", "SQLite database file")
	fs.Var(&entities, "graphql.entity", "Expose only the named entity")
	fs.StringVar(&outFile, "out", "", "Write SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, printSDLUsage)
		return err
	}

	cfg, err := loadConfig(configFile, dbPath, entities)
	if err != nil {
		return err
	}
	engine, sch, err := buildSchema(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	sdl := schema.Render(sch)
	if outFile == "" {
		fmt.Print(sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}

func loadConfig(configFile, dbPath string, entities []string) (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return cfg, err
		}
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}
	if len(entities) > 0 {
		cfg.GraphQL.Entities = entities
	}
	if cfg.Database == "" {
		return cfg, fmt.Errorf("no database configured; pass -db or set 'database' in the config file")
	}
	return cfg, nil
}

func buildSchema(ctx context.Context, cfg config.Config) (*qcsql.Engine, *schema.Schema, error) {
	engine, err := qcsql.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	cat, err := engine.Catalog(ctx)
	if err != nil {
		engine.Close()
		return nil, nil, fmt.Errorf("reading catalog: %w", err)
	}

	names := cfg.GraphQL.Entities
	if len(names) == 0 {
		for name := range cat.Entities {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	for _, name := range names {
		if cat.Entity(name) == nil {
			engine.Close()
			return nil, nil, fmt.Errorf("unknown entity %q", name)
		}
	}

	sch, err := schema.Build(ctx, engine, catalogFields(cat, names))
	if err != nil {
		engine.Close()
		return nil, nil, fmt.Errorf("building schema: %w", err)
	}
	return engine, sch, nil
}

// catalogFields derives a schema from the catalog itself: every exposed
// entity becomes a root connection, attributes become leaf fields and
// links become nested queries or connections.
func catalogFields(cat *qc.Catalog, names []string) func() schema.Fields {
	specs := map[string]*schema.TypeSpec{}

	var entitySpec func(name string) *schema.TypeSpec
	entitySpec = func(name string) *schema.TypeSpec {
		if s, ok := specs[name]; ok {
			return s
		}
		def := cat.Entity(name)
		s := schema.Entity(name, func() schema.Fields {
			fields := schema.Fields{}
			for attr := range def.Attributes {
				fields[attr] = schema.QueryField(qc.Path(attr))
			}
			for linkName, link := range def.Links {
				if link.Many {
					fields[linkName] = schema.Connect(entitySpec(link.Target))
				} else {
					fields[linkName] = schema.QueryField(qc.Path(linkName),
						schema.WithType(entitySpec(link.Target)))
				}
			}
			return fields
		})
		specs[name] = s
		return s
	}

	return func() schema.Fields {
		fields := schema.Fields{}
		for _, name := range names {
			fields[name] = schema.Connect(entitySpec(name))
		}
		return fields
	}
}
