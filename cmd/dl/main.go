package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docketline/internal/app"
	"docketline/internal/config"
	"docketline/internal/db"
	"docketline/internal/domain"
	"docketline/internal/engine"
	"docketline/internal/migrate"
	"docketline/internal/repo"
	"docketline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "dl",
	Short: "Docketline CLI",
	Long: `Docketline schedules the day-to-day work of a legal practice.
- Appointments: lawyer/client meetings; a lawyer holds at most one SCHEDULED appointment per start time.
- Mediations: PENDING -> SCHEDULED -> IN_PROGRESS -> COMPLETED, or FAILED; scheduling a session arms a reminder.
- Tasks: case work items; open tasks past their due date are reported as overdue.
- Reminders: kept in memory by the serving process and fired by a periodic tick.
- Events: every state change is logged and can be forwarded to webhooks or a Redis stream.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load(filepath.Join(viper.GetString("workspace"), ".env"))
	viper.SetEnvPrefix("DOCKETLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("role", "ADMIN", "actor role (ADMIN, LAWYER, CLIENT, MEDIATOR)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(appointmentCmd())
	rootCmd.AddCommand(mediationCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(tokenCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			if s := viper.GetString("jwt-secret"); s != "" {
				cfg.Server.JWTSecret = s
			}
			if cfg.Server.JWTSecret == "" && !cfg.Server.AllowHeaderActor {
				return fmt.Errorf("DOCKETLINE_JWT_SECRET is required unless server.allow_header_actor is set")
			}
			logger := app.NewLogger(cfg, os.Stderr)
			a, err := app.New(cmd.Context(), cfg, app.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			fmt.Printf("Serving Docketline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			version, err := migrate.Migrate(cmd.Context(), conn)
			if err != nil {
				return err
			}
			applied, err := migrate.List(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"schema_version": version, "applied": applied})
			}
			tw := newTable("Version", "Name", "Applied")
			for _, a := range applied {
				tw.AppendRow(table.Row{a.Version, a.Name, a.AppliedAt.Format(time.RFC3339)})
			}
			tw.Render()
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage docketline.yml",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default docketline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate docketline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func appointmentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "appointment", Aliases: []string{"appt"}, Short: "Manage appointments"}
	cmd.AddCommand(appointmentListCmd())
	cmd.AddCommand(appointmentCreateCmd())
	cmd.AddCommand(appointmentConflictCmd())
	cmd.AddCommand(appointmentTransitionCmd("confirm", domain.AppointmentConfirmed))
	cmd.AddCommand(appointmentTransitionCmd("cancel", domain.AppointmentCancelled))
	cmd.AddCommand(appointmentTransitionCmd("complete", domain.AppointmentCompleted))
	return cmd
}

func appointmentListCmd() *cobra.Command {
	var f repo.AppointmentFilter
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = splitStatuses[domain.AppointmentStatus](status)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAppointments(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Scheduled", "Lawyer", "Client", "Type", "Minutes", "Status")
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.ScheduledAt.Format(time.RFC3339), a.LawyerID, a.ClientID, a.Type, a.DurationMinutes, a.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.LawyerID, "lawyer-id", "", "lawyer filter")
	cmd.Flags().StringVar(&f.ClientID, "client-id", "", "client filter")
	cmd.Flags().StringVar(&f.CaseID, "case-id", "", "case filter")
	cmd.Flags().StringVar(&status, "status", "", "comma separated statuses")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func appointmentCreateCmd() *cobra.Command {
	var opts engine.AppointmentCreateOptions
	var at, apptType string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Book an appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduled, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("--at must be RFC3339: %w", err)
			}
			opts.ScheduledAt = scheduled
			opts.Type = domain.AppointmentType(strings.ToUpper(apptType))
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateAppointment(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.LawyerID, "lawyer-id", "", "lawyer id")
	cmd.Flags().StringVar(&opts.ClientID, "client-id", "", "client id")
	cmd.Flags().StringVar(&opts.CaseID, "case-id", "", "case id")
	cmd.Flags().StringVar(&at, "at", "", "start time (RFC3339)")
	cmd.Flags().StringVar(&apptType, "type", "", "CONSULTATION, FOLLOW_UP, COURT_PREP, MEDIATION or OTHER")
	cmd.Flags().IntVar(&opts.DurationMinutes, "minutes", 0, "duration in minutes")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("lawyer-id")
	_ = cmd.MarkFlagRequired("client-id")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func appointmentConflictCmd() *cobra.Command {
	var lawyerID, at string
	cmd := &cobra.Command{
		Use:   "conflict",
		Short: "Check whether a lawyer's slot is taken",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("--at must be RFC3339: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				held, err := e.HasConflict(ctx, lawyerID, t)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"lawyer_id": lawyerID, "scheduled_at": t.UTC(), "conflict": held})
				}
				if held {
					fmt.Println("slot taken")
				} else {
					fmt.Println("slot free")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&lawyerID, "lawyer-id", "", "lawyer id")
	cmd.Flags().StringVar(&at, "at", "", "start time (RFC3339)")
	_ = cmd.MarkFlagRequired("lawyer-id")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func appointmentTransitionCmd(use string, to domain.AppointmentStatus) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   use + " <appointment-id>",
		Short: fmt.Sprintf("Move an appointment to %s", to),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.TransitionAppointment(ctx, args[0], to, reason, currentActor())
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	if to == domain.AppointmentCancelled {
		cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
		_ = cmd.MarkFlagRequired("reason")
	}
	return cmd
}

func mediationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "mediation", Short: "Inspect mediations"}
	cmd.AddCommand(mediationListCmd())
	return cmd
}

func mediationListCmd() *cobra.Command {
	var f repo.MediationFilter
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mediations",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = splitStatuses[domain.MediationStatus](status)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListMediations(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Case", "Initiator", "Mediator", "Status", "Session")
				for _, m := range items {
					session := ""
					if m.ScheduledDate != nil {
						session = m.ScheduledDate.Format(time.RFC3339)
					}
					tw.AppendRow(table.Row{m.ID, m.CaseID, m.InitiatorID, m.MediatorID, m.Status, session})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.CaseID, "case-id", "", "case filter")
	cmd.Flags().StringVar(&f.MediatorID, "mediator-id", "", "mediator filter")
	cmd.Flags().StringVar(&status, "status", "", "comma separated statuses")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskOverdueCmd())
	cmd.AddCommand(taskStatusCmd())
	cmd.AddCommand(taskCountsCmd())
	return cmd
}

func renderTasks(e engine.Engine, items []domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable("ID", "Title", "Case", "Assignee", "Priority", "Due", "Status", "Overdue")
	for _, t := range items {
		overdue := ""
		if e.IsOverdue(t) {
			overdue = "yes"
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.CaseID, t.AssignedTo, t.Priority, t.DueDate.Format(time.RFC3339), t.Status, overdue})
	}
	tw.Render()
	return nil
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilter
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = splitStatuses[domain.TaskStatus](status)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				return renderTasks(e, items)
			})
		},
	}
	cmd.Flags().StringVar(&f.CaseID, "case-id", "", "case filter")
	cmd.Flags().StringVar(&f.AssignedTo, "assigned-to", "", "assignee filter")
	cmd.Flags().StringVar(&status, "status", "", "comma separated statuses")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func taskOverdueCmd() *cobra.Command {
	var caseID string
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List open tasks past their due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListOverdueTasks(ctx, caseID)
				if err != nil {
					return err
				}
				return renderTasks(e, items)
			})
		},
	}
	cmd.Flags().StringVar(&caseID, "case-id", "", "case filter")
	return cmd
}

func taskStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Move a task to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := domain.TaskStatus(strings.ToUpper(args[1]))
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTaskStatus(ctx, args[0], status, currentActor())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskCountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts <case-id>",
		Short: "Count a case's tasks by status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				counts, err := r.CountTasksByStatus(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				tw := newTable("Status", "Count")
				for _, s := range []domain.TaskStatus{domain.TaskPending, domain.TaskInProgress, domain.TaskOverdue, domain.TaskCompleted, domain.TaskCancelled} {
					tw.AppendRow(table.Row{s, counts[string(s)]})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Time", "Type", "Entity", "Actor")
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.TS.Format(time.RFC3339), evt.Type, evt.EntityKind + "/" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("DOCKETLINE_JWT_SECRET is required")
			}
			actor := currentActor()
			token, err := server.SignToken(secret, actor.ID, actor.Role, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	return app.ResolveConfig(viper.GetString("workspace"))
}

func currentActor() domain.Actor {
	return domain.Actor{
		ID:   viper.GetString("actor-id"),
		Role: domain.Role(strings.ToUpper(viper.GetString("role"))),
	}
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Driver == "memory" {
		return fmt.Errorf("the memory store only lives inside dl serve; use the HTTP API")
	}
	cfg.Events.Webhooks = nil
	cfg.Events.Redis.URL = ""
	a, err := app.New(ctx, cfg, app.Options{Logger: app.NewLogger(cfg, os.Stderr)})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a.Engine)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func newTable(headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(headers))
	return tw
}

func splitStatuses[S ~string](raw string) []S {
	var out []S
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, S(p))
		}
	}
	return out
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
