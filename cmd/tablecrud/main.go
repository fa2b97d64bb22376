package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/atomicdeploy/tablecrud/pkg/config"
	"github.com/atomicdeploy/tablecrud/pkg/export"
	"github.com/atomicdeploy/tablecrud/pkg/render"
	"github.com/atomicdeploy/tablecrud/pkg/schema"
	"github.com/atomicdeploy/tablecrud/pkg/server"
	"github.com/atomicdeploy/tablecrud/pkg/store"
)

var (
	// Version information
	Version   = "1.0.0"
	BuildDate = "unknown"

	// Global flags
	configFile string
	verbose    bool

	// Color definitions
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tablecrud",
		Short: "🗂️  Web editor for the kontraktorzy, pracownicy, stanowiska and zespoly tables",
		Long: `
╔═══════════════════════════════════════════════════════════╗
║              🗂️  TableCRUD - Table Editor                ║
║    List, view, create, edit and delete relational rows    ║
╚═══════════════════════════════════════════════════════════╝

Serves HTML pages for four compiled-in tables backed by MySQL,
PostgreSQL or SQLite. Configure with a YAML file (see "init")
or with the DB_USER, DB_PASS, DB_HOST and DB_NAME variables.
`,
		Version: fmt.Sprintf("%s (built %s)", Version, BuildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file (default $TABLECRUD_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "🌐 Start the web server",
		Args:  cobra.NoArgs,
		Run:   runServe,
	}
	serveCmd.Flags().StringP("addr", "a", "", "Server address (e.g., :8080)")
	serveCmd.Flags().StringP("templates", "t", "", "Load templates from this directory instead of the embedded set")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload templates when they change on disk")
	serveCmd.Flags().StringP("debounce", "d", "", "Debounce duration for template watching (e.g., 0s, 200ms, 1s)")

	// Tables command
	tablesCmd := &cobra.Command{
		Use:   "tables",
		Short: "ℹ️  Show the editable tables and their fields",
		Args:  cobra.NoArgs,
		Run:   runTables,
	}

	// Export command
	exportCmd := &cobra.Command{
		Use:   "export [table]",
		Short: "🔄 Export every row of a table to JSON or CSV",
		Args:  cobra.ExactArgs(1),
		Run:   runExport,
	}
	exportCmd.Flags().StringP("format", "f", "json", "Output format (json or csv)")
	exportCmd.Flags().StringP("output", "o", ".", "Output directory, or - for stdout")

	// Init command
	initCmd := &cobra.Command{
		Use:   "init [config-file]",
		Short: "📝 Interactively create a config file",
		Args:  cobra.MaximumNArgs(1),
		Run:   runInit,
	}

	rootCmd.AddCommand(serveCmd, tablesCmd, exportCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configFile, os.Getenv)
	if err != nil {
		errorColor.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger builds the zerolog logger used by the server and store
func newLogger(cfg config.ServerConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var out io.Writer = os.Stdout
	if cfg.LogFormat != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// parseDebounceDuration parses and validates a debounce duration string
func parseDebounceDuration(durationStr string) time.Duration {
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		errorColor.Printf("❌ Invalid debounce duration '%s': %v\n", durationStr, err)
		errorColor.Println("💡 Valid examples: 0s, 200ms, 1s, 5s")
		os.Exit(1)
	}
	return duration
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if dir, _ := cmd.Flags().GetString("templates"); dir != "" {
		cfg.Templates.Dir = dir
	}
	if cmd.Flags().Changed("watch") {
		cfg.Templates.Watch, _ = cmd.Flags().GetBool("watch")
	}
	if debounceStr, _ := cmd.Flags().GetString("debounce"); debounceStr != "" {
		cfg.Templates.Debounce = parseDebounceDuration(debounceStr)
	}

	logger := newLogger(cfg.Server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infoColor.Printf("🔍 Connecting to %s database %s\n", cfg.Database.Driver, cfg.Database.Name)
	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		errorColor.Printf("❌ Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	renderer, err := render.New(render.Options{
		Dir:    cfg.Templates.Dir,
		Title:  cfg.UI.Title,
		Notice: cfg.UI.Notice,
	})
	if err != nil {
		errorColor.Printf("❌ Failed to load templates: %v\n", err)
		os.Exit(1)
	}
	if cfg.Templates.Dir != "" {
		infoColor.Printf("📂 Using templates from %s\n", cfg.Templates.Dir)
	}

	srv := server.NewServer(st, renderer, server.Options{
		Compression: cfg.Server.Compression,
		Logger:      logger,
	})
	defer srv.Close()

	if cfg.Templates.Watch {
		if cfg.Templates.Dir == "" {
			warningColor.Println("⚠️  --watch needs a templates directory; embedded templates cannot change")
		} else if err := srv.StartWatching(cfg.Templates.Dir, cfg.Templates.Debounce); err != nil {
			errorColor.Printf("❌ Failed to start template watching: %v\n", err)
			os.Exit(1)
		}
	}

	addr := cfg.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	successColor.Printf("🌐 Server running at http://%s\n", addr)
	infoColor.Println("📝 Press Ctrl+C to stop the server")

	if err := srv.Start(ctx, cfg.Server.Addr); err != nil {
		errorColor.Printf("❌ Server error: %v\n", err)
		os.Exit(1)
	}
	successColor.Println("👋 Server stopped")
}

func runTables(cmd *cobra.Command, args []string) {
	fmt.Println()
	successColor.Println("🗂️  Editable Tables")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	for _, t := range schema.Tables() {
		d := t.Descriptor()
		fmt.Println()
		infoColor.Printf("📋 %s", d.Name)
		fmt.Printf("  (primary key: %s, %d fields)\n", d.PrimaryKey, len(d.Fields))

		for i, f := range d.Fields {
			required := ""
			if f.Required {
				required = " *"
			}
			fmt.Printf("  %2d. %-18s %-10s %s%s\n", i+1, f.Name, f.Type, f.Header, required)
		}
	}
	fmt.Println()
}

func runExport(cmd *cobra.Command, args []string) {
	t, ok := schema.Lookup(args[0])
	if !ok {
		errorColor.Printf("❌ Unknown table: %s\n", args[0])
		infoColor.Println("💡 Run 'tablecrud tables' to list the editable tables")
		os.Exit(1)
	}

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := export.ParseFormat(formatStr)
	if err != nil {
		errorColor.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	outputDir, _ := cmd.Flags().GetString("output")

	cfg := loadConfig()
	ctx := context.Background()

	st, err := store.Open(ctx, cfg.Database, newLogger(cfg.Server))
	if err != nil {
		errorColor.Printf("❌ Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	rows, err := st.ListRows(ctx, t)
	if err != nil {
		errorColor.Printf("❌ Failed to read %s: %v\n", t, err)
		os.Exit(1)
	}

	exp := export.NewExporter(t)
	if outputDir == "-" {
		if err := exp.Write(os.Stdout, format, rows); err != nil {
			errorColor.Fprintf(os.Stderr, "❌ Export failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		errorColor.Printf("❌ Failed to create output directory: %v\n", err)
		os.Exit(1)
	}
	path, err := exp.ExportToFile(outputDir, format, rows)
	if err != nil {
		errorColor.Printf("❌ Export failed: %v\n", err)
		os.Exit(1)
	}
	successColor.Printf("✅ Exported %d rows to %s\n", len(rows), path)
}
