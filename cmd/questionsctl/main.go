package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/questions/internal/config"
	"github.com/dropDatabas3/questions/internal/domain/repository"
	"github.com/dropDatabas3/questions/internal/store"
	_ "github.com/dropDatabas3/questions/internal/store/adapters/dal"
)

type client struct {
	BaseURL   string
	Token     string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) get(path string) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

// defaultBaseURL apunta al listener que cmd/service abre sin configuración.
var defaultBaseURL = "http://localhost" + config.DefaultServerAddr

func main() {
	var (
		baseURL = envOr("QUESTIONS_URL", defaultBaseURL)
		token   = envOr("QUESTIONS_TOKEN", "")
		out     = envOr("QUESTIONS_OUT", "text")
		driver  = envOr("STORAGE_DRIVER", "postgres")
		dsn     = envOr("DATABASE_URL", os.Getenv("STORAGE_DSN"))
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:           "questionsctl",
		Short:         "CLI para la API de questions y su base de usuarios",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{HTTP: &http.Client{Timeout: timeout}}

	// grupo api
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Llamadas a la API con un bearer credential",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("falta token (flag --token o env QUESTIONS_TOKEN)")
			}
			cl.BaseURL, cl.Token, cl.OutFormat = baseURL, token, out
			return nil
		},
	}
	apiCmd.PersistentFlags().StringVar(&baseURL, "base-url", baseURL, "URL base del servicio (env QUESTIONS_URL)")
	apiCmd.PersistentFlags().StringVar(&token, "token", token, "Bearer credential (env QUESTIONS_TOKEN)")

	apiGet := func(use, short, path string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				status, body, err := cl.get(path)
				if err != nil {
					return err
				}
				if status/100 != 2 {
					return fmt.Errorf("%s fallo: status=%d body=%s", use, status, string(body))
				}
				cl.print(status, body)
				return nil
			},
		}
	}
	apiCmd.AddCommand(apiGet("me", "Identidad GitHub del credential (GET /api/me)", "/api/me"))
	apiCmd.AddCommand(apiGet("questions", "Lista de preguntas (GET /api/questions)", "/api/questions"))

	// grupo db
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Operaciones directas sobre el User Directory",
	}
	dbCmd.PersistentFlags().StringVar(&driver, "driver", driver, "Adapter de storage: postgres|memory (env STORAGE_DRIVER)")
	dbCmd.PersistentFlags().StringVar(&dsn, "dsn", dsn, "Connection string (env DATABASE_URL)")

	open := func(ctx context.Context) (store.AdapterConnection, error) {
		if driver != "memory" && dsn == "" {
			return nil, fmt.Errorf("--dsn es requerido para %s", driver)
		}
		return store.Open(ctx, store.AdapterConfig{Name: driver, DSN: dsn})
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica migraciones pendientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			mc, ok := conn.(store.MigratableConnection)
			if !ok {
				fmt.Printf("%s: sin migraciones\n", conn.Name())
				return nil
			}
			res, err := mc.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("applied=%v skipped=%v took=%s\n", res.Applied, res.Skipped, res.Duration)
			return nil
		},
	}

	var limit, offset int
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Lista usuarios (sin credentials)",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			repo := conn.Users()
			total, err := repo.Count(cmd.Context())
			if err != nil {
				return err
			}
			users, err := repo.List(cmd.Context(), repository.ListUsersFilter{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			return printUsers(out, total, users)
		},
	}
	usersCmd.Flags().IntVar(&limit, "limit", 50, "Máximo de filas (max 200)")
	usersCmd.Flags().IntVar(&offset, "offset", 0, "Offset")

	dbCmd.AddCommand(migrateCmd)
	dbCmd.AddCommand(usersCmd)

	root.AddCommand(apiCmd)
	root.AddCommand(dbCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

type userRow struct {
	ID        string    `json:"id"`
	GitHubID  string    `json:"githubId"`
	CreatedAt time.Time `json:"createdAt"`
}

func printUsers(format string, total int, users []repository.User) error {
	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{ID: u.ID, GitHubID: u.GitHubID, CreatedAt: u.CreatedAt})
	}
	if format == "json" {
		p, err := json.MarshalIndent(map[string]any{"total": total, "users": rows}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(p))
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGITHUB_ID\tCREATED_AT")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.GitHubID, r.CreatedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "total=%d\n", total)
	return tw.Flush()
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
