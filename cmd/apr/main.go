package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Mdraugelis/ai-programs-registry/internal/chat"
	"github.com/Mdraugelis/ai-programs-registry/internal/config"
	"github.com/Mdraugelis/ai-programs-registry/internal/db"
	"github.com/Mdraugelis/ai-programs-registry/internal/engine"
	"github.com/Mdraugelis/ai-programs-registry/internal/listview"
	"github.com/Mdraugelis/ai-programs-registry/internal/migrate"
	"github.com/Mdraugelis/ai-programs-registry/internal/repo"
	"github.com/Mdraugelis/ai-programs-registry/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "apr",
	Short: "AI Programs Registry CLI",
	Long: `apr manages a registry of AI initiatives: their lifecycle stage, their
document library, and who is accountable for them.

- Workspace: the directory holding registry.yml and the .registry database.
- Initiatives: registered AI programs moving idea -> proposal -> pilot ->
  production -> retired; deletion is soft so the audit trail survives.
- Documents: a three-tier library (admin templates and policies, per-initiative
  core documents, ancillary material). Mandatory core documents per stage come
  from the requirement catalog in registry.yml.
- Compliance: 'apr compliance <id>' checks an initiative's core library
  against that catalog.
- Event log: every change is recorded; view with 'apr log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("APR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier for the audit log")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(initiativeCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(docCmd())
	rootCmd.AddCommand(complianceCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
}

func initCmd() *cobra.Command {
	var registryID, adminUser, adminPassword string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a registry workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("%s already exists", cfgPath)
			}
			if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault(registryID)), 0o644); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			if adminUser != "" {
				cfg, err := config.Load(workspace)
				if err != nil {
					return err
				}
				e := engine.New(conn, cfg, workspace)
				if _, err := e.CreateUser(cmd.Context(), adminUser, "", adminPassword, "admin", "init"); err != nil {
					return err
				}
				log.Info().Str("username", adminUser).Msg("admin user created")
			}
			fmt.Printf("Initialized registry workspace in %s\n", workspace)
			return nil
		},
	}
	cmd.Flags().StringVar(&registryID, "id", "registry", "registry identifier")
	cmd.Flags().StringVar(&adminUser, "admin-user", "", "create an initial admin user")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "password for the initial admin user")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg, workspace)
			secret := os.Getenv("APR_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("APR_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				Chat:     chat.New(e.Repo, cfg, secret),
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, Logger: log.Logger},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info().Str("addr", addr).Str("base_path", basePath).Msg("serving registry API")
			fmt.Printf("Serving registry API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path")
	return cmd
}

func initiativeCmd() *cobra.Command {
	in := &cobra.Command{Use: "initiative", Short: "Manage initiatives"}
	in.AddCommand(initiativeCreateCmd())
	in.AddCommand(initiativeListCmd())
	in.AddCommand(initiativeShowCmd())
	in.AddCommand(initiativeUpdateCmd())
	in.AddCommand(initiativeDeleteCmd())
	return in
}

func initiativeCreateCmd() *cobra.Command {
	var opts engine.InitiativeCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an initiative",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = viper.GetString("actor-id")
				in, err := e.CreateInitiative(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(in)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "initiative title (required)")
	cmd.Flags().StringVar(&opts.ProgramOwner, "owner", "", "program owner")
	cmd.Flags().StringVar(&opts.Department, "department", "", "department")
	cmd.Flags().StringVar(&opts.Background, "background", "", "background")
	cmd.Flags().StringVar(&opts.Goal, "goal", "", "goal")
	cmd.Flags().StringVar(&opts.Stage, "stage", "idea", "lifecycle stage")
	cmd.Flags().StringVar(&opts.Risks, "risks", "", "risk notes")
	cmd.Flags().StringVar(&opts.VendorInfo, "vendor", "", "vendor info")
	cmd.Flags().StringVar(&opts.AIComponents, "ai-components", "", "AI components")
	cmd.Flags().StringVar(&opts.EquityConsiderations, "equity", "", "equity considerations")
	return cmd
}

// initiativeListCmd renders the registry through the same filter, sort, and
// pagination pipeline a client UI drives.
func initiativeListCmd() *cobra.Command {
	var search, stage, department, risk, sortField, sortDir string
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List initiatives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				records, err := e.Repo.ListInitiatives(ctx, repo.InitiativeFilters{})
				if err != nil {
					return err
				}
				st := listview.NewState()
				st.SetFilters(listview.FilterPatch{
					Search:     listview.String(search),
					Stage:      listview.String(stage),
					Department: listview.String(department),
					Risk:       listview.String(risk),
				})
				if sortField != "" {
					st.SetSort(listview.SortPatch{Field: listview.String(sortField), Direction: listview.String(sortDir)})
				}
				st.SetPagination(listview.PaginationPatch{PageSize: listview.Int(pageSize)})
				pres := listview.Presenter{State: st}
				res := listview.Apply(records, st)
				pres.GoToPage(page)
				res = listview.Apply(records, st)

				if viper.GetBool("json") {
					return printJSON(res.Page)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Owner", "Department", "Stage", "Status", "Updated"})
				for _, in := range res.Page {
					tw.AppendRow(table.Row{in.ID, in.Title, in.ProgramOwner, in.Department, in.Stage, in.Status, in.UpdatedAt})
				}
				tw.Render()
				sum := pres.Summary()
				if sum.Total == 0 {
					fmt.Println("No initiatives match.")
				} else {
					fmt.Printf("Showing %d-%d of %d (page %d/%d)\n", sum.StartItem, sum.EndItem, sum.Total, sum.Page, sum.TotalPages)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "free-text search")
	cmd.Flags().StringVar(&stage, "stage", "", "filter by lifecycle stage")
	cmd.Flags().StringVar(&department, "department", "", "filter by department")
	cmd.Flags().StringVar(&risk, "risk", "", "filter by risk substring")
	cmd.Flags().StringVar(&sortField, "sort", "", "sort field (default updated_at)")
	cmd.Flags().StringVar(&sortDir, "order", "asc", "sort direction: asc or desc")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "items per page")
	return cmd
}

func initiativeShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one initiative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				in, err := r.GetInitiative(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(in)
			})
		},
	}
	return cmd
}

func initiativeUpdateCmd() *cobra.Command {
	var title, owner, department, background, goal, stage, risks, vendor, aiComponents, equity, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update initiative fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u := repo.InitiativeUpdate{}
				setIfChanged := func(f *string, flag string, dst **string) {
					if cmd.Flags().Changed(flag) {
						*dst = f
					}
				}
				setIfChanged(&title, "title", &u.Title)
				setIfChanged(&owner, "owner", &u.ProgramOwner)
				setIfChanged(&department, "department", &u.Department)
				setIfChanged(&background, "background", &u.Background)
				setIfChanged(&goal, "goal", &u.Goal)
				setIfChanged(&stage, "stage", &u.Stage)
				setIfChanged(&risks, "risks", &u.Risks)
				setIfChanged(&vendor, "vendor", &u.VendorInfo)
				setIfChanged(&aiComponents, "ai-components", &u.AIComponents)
				setIfChanged(&equity, "equity", &u.EquityConsiderations)
				setIfChanged(&status, "status", &u.Status)
				in, err := e.UpdateInitiative(ctx, args[0], u, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(in)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&owner, "owner", "", "program owner")
	cmd.Flags().StringVar(&department, "department", "", "department")
	cmd.Flags().StringVar(&background, "background", "", "background")
	cmd.Flags().StringVar(&goal, "goal", "", "goal")
	cmd.Flags().StringVar(&stage, "stage", "", "lifecycle stage")
	cmd.Flags().StringVar(&risks, "risks", "", "risk notes")
	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor info")
	cmd.Flags().StringVar(&aiComponents, "ai-components", "", "AI components")
	cmd.Flags().StringVar(&equity, "equity", "", "equity considerations")
	cmd.Flags().StringVar(&status, "status", "", "status: active, paused, completed")
	return cmd
}

func initiativeDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete an initiative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteInitiative(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
	return cmd
}

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "Manage users"}
	u.AddCommand(userCreateCmd())
	u.AddCommand(userListCmd())
	return u
}

func userCreateCmd() *cobra.Command {
	var username, email, password, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, username, email, password, role, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username (required)")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&password, "password", "", "password (required)")
	cmd.Flags().StringVar(&role, "role", "contributor", "role: admin, reviewer, contributor")
	return cmd
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Username", "Role", "Email", "Last login"})
				for _, u := range items {
					last := ""
					if u.LastLogin != nil {
						last = *u.LastLogin
					}
					tw.AppendRow(table.Row{u.ID, u.Username, u.Role, u.Email, last})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func docCmd() *cobra.Command {
	d := &cobra.Command{Use: "doc", Short: "Manage the document library"}
	d.AddCommand(docUploadCmd())
	d.AddCommand(docListCmd())
	d.AddCommand(docTemplatesCmd())
	d.AddCommand(docInstantiateCmd())
	return d
}

func docUploadCmd() *cobra.Command {
	var initiativeID, libraryType, category, docType, description, tags string
	var isTemplate, isRequired bool
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.UploadDocument(ctx, engine.DocumentUploadOptions{
					InitiativeID: initiativeID,
					LibraryType:  libraryType,
					Category:     category,
					Filename:     args[0],
					Content:      content,
					DocumentType: docType,
					Description:  description,
					Tags:         tags,
					IsTemplate:   isTemplate,
					IsRequired:   isRequired,
					ActorID:      viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&initiativeID, "initiative", "", "initiative id (core/ancillary)")
	cmd.Flags().StringVar(&libraryType, "library", "core", "library type: admin, core, ancillary")
	cmd.Flags().StringVar(&category, "category", "", "document category")
	cmd.Flags().StringVar(&docType, "type", "", "document type")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")
	cmd.Flags().BoolVar(&isTemplate, "template", false, "mark as template")
	cmd.Flags().BoolVar(&isRequired, "required", false, "mark as required core document")
	return cmd
}

func docListCmd() *cobra.Command {
	var initiativeID, libraryType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListDocuments(ctx, repo.DocumentFilters{
					InitiativeID: initiativeID,
					LibraryType:  libraryType,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Filename", "Library", "Category", "Version", "Required", "Uploaded"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.Filename, d.LibraryType, d.Category, d.Version, d.IsRequired, d.UploadedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&initiativeID, "initiative", "", "filter by initiative")
	cmd.Flags().StringVar(&libraryType, "library", "", "filter by library type")
	return cmd
}

func docTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the admin template library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListDocuments(ctx, repo.DocumentFilters{LibraryType: "admin", Templates: true})
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func docInstantiateCmd() *cobra.Command {
	var templateID, initiativeID string
	cmd := &cobra.Command{
		Use:   "instantiate",
		Short: "Copy a template into an initiative's core library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.InstantiateTemplate(ctx, templateID, initiativeID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "template document id (required)")
	cmd.Flags().StringVar(&initiativeID, "initiative", "", "initiative id (required)")
	return cmd
}

func complianceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compliance <id>",
		Short: "Check an initiative against the document requirement catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Compliance(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c)
				}
				fmt.Printf("%s: %s (%.1f%%, %d/%d)\n", c.InitiativeID, c.Status, c.CompliancePercentage, c.Completed, c.TotalRequired)
				for _, name := range c.Missing {
					fmt.Println("  missing:", name)
				}
				return nil
			})
		},
	}
	return cmd
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export initiatives as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				data, err := e.ExportCSV(ctx)
				if err != nil {
					return err
				}
				if out == "" {
					_, err = os.Stdout.Write(data)
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Audit log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				for i := len(events) - 1; i >= 0; i-- {
					evt := events[i]
					fmt.Printf("%s  %-22s %s/%s  actor=%s  %s\n", evt.TS, evt.Type, evt.EntityKind, evt.EntityID, evt.ActorID, evt.Payload)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "lines", "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "filter by event type")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "filter by entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "filter by entity id")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Registry configuration"}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print registry.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(config.Path(viper.GetString("workspace")))
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate registry.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg, workspace))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
