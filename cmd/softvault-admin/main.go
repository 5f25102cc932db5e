// Command softvault-admin manages users, products and schema state of a
// softvault database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fjmerc/softvault/internal/config"
	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
	"github.com/fjmerc/softvault/internal/repository/backend"
	"github.com/fjmerc/softvault/internal/utils"
)

const toolName = "softvault-admin"

var errUsage = errors.New("usage")

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdout)
	if errors.Is(err, errUsage) {
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%s

USAGE:
    %s <command> [options]

COMMANDS:
    create-admin     Create or update an administrator account
    create-product   Create a product record
    set-status       Change a product's publication status
    list-products    List product records
    migrations       Show schema migration status

Database settings are read from the environment (DB_TYPE, DB_PATH, POSTGRES_*).
`, toolName, toolName)
}

// run dispatches one subcommand. It returns errUsage for a missing or
// unknown command.
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "-h", "--help", "help":
		printUsage(out)
		return nil
	case "create-admin":
		return runCreateAdmin(ctx, rest, out)
	case "create-product":
		return runCreateProduct(ctx, rest, out)
	case "set-status":
		return runSetStatus(ctx, rest, out)
	case "list-products":
		return runListProducts(ctx, rest, out)
	case "migrations":
		return runMigrations(ctx, rest, out)
	default:
		fmt.Fprintf(out, "Unknown command: %s\n\n", cmd)
		return errUsage
	}
}

// openRepos loads configuration quietly so command output stays readable.
func openRepos(ctx context.Context) (*repository.Repositories, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	repos, err := backend.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return repos, cfg, nil
}

func runCreateAdmin(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(out)
	email := fs.String("email", os.Getenv("ADMIN_EMAIL"), "administrator email (default $ADMIN_EMAIL)")
	password := fs.String("password", os.Getenv("ADMIN_PASSWORD"), "administrator password (default $ADMIN_PASSWORD)")
	name := fs.String("name", "Administrator", "display name")
	role := fs.String("role", string(models.RoleAdmin), "role: ADMIN or EDITOR")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*email) == "" {
		return fmt.Errorf("--email is required")
	}
	if len(*password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	r := models.Role(strings.ToUpper(*role))
	if !r.CanManageSoftware() {
		return fmt.Errorf("role must be ADMIN or EDITOR, got %q", *role)
	}

	hash, err := utils.HashPassword(*password)
	if err != nil {
		return err
	}

	repos, _, err := openRepos(ctx)
	if err != nil {
		return err
	}
	defer repos.Close()

	user, err := repos.Users.Upsert(ctx, &models.User{
		Email:        *email,
		Name:         *name,
		PasswordHash: hash,
		Role:         r,
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	fmt.Fprintf(out, "User %s (%s) saved with role %s\n", user.Email, user.ID, user.Role)
	return nil
}

func runCreateProduct(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-product", flag.ContinueOnError)
	fs.SetOutput(out)
	id := fs.String("id", "", "product id (generated when empty)")
	title := fs.String("title", "", "product title (required)")
	status := fs.String("status", string(models.ProductStatusDraft), "DRAFT, PUBLISHED or ARCHIVED")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*title) == "" {
		return fmt.Errorf("--title is required")
	}
	st, err := parseStatus(*status)
	if err != nil {
		return err
	}

	repos, _, err := openRepos(ctx)
	if err != nil {
		return err
	}
	defer repos.Close()

	product := &models.Product{ID: *id, Title: *title, Status: st}
	if err := repos.Products.Create(ctx, product); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	fmt.Fprintf(out, "Product %s created with status %s\n", product.ID, product.Status)
	return nil
}

func runSetStatus(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("set-status", flag.ContinueOnError)
	fs.SetOutput(out)
	id := fs.String("id", "", "product id (required)")
	status := fs.String("status", "", "DRAFT, PUBLISHED or ARCHIVED (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *id == "" {
		return fmt.Errorf("--id is required")
	}
	st, err := parseStatus(*status)
	if err != nil {
		return err
	}

	repos, _, err := openRepos(ctx)
	if err != nil {
		return err
	}
	defer repos.Close()

	if err := repos.Products.UpdateStatus(ctx, *id, st); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("product %s not found", *id)
		}
		return fmt.Errorf("failed to update status: %w", err)
	}

	fmt.Fprintf(out, "Product %s is now %s\n", *id, st)
	return nil
}

func runListProducts(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list-products", flag.ContinueOnError)
	fs.SetOutput(out)
	limit := fs.Int("limit", 20, "maximum number of products (1-100)")
	offset := fs.Int("offset", 0, "number of products to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}

	repos, _, err := openRepos(ctx)
	if err != nil {
		return err
	}
	defer repos.Close()

	products, err := repos.Products.List(ctx, repository.PaginationOptions{Limit: *limit, Offset: *offset})
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tFILE\tSIZE")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Status, p.Title, dash(p.Filename), dash(p.FileSize))
	}
	return tw.Flush()
}

func runMigrations(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrations", flag.ContinueOnError)
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	status, err := backend.MigrationStatus(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Database: %s\n", cfg.DatabaseType)
	for _, m := range status {
		mark := "pending"
		if m.Applied {
			mark = "applied"
		}
		fmt.Fprintf(out, "  [%s] %s\n", mark, m.Name)
	}
	return nil
}

func parseStatus(s string) (models.ProductStatus, error) {
	st := models.ProductStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q: want DRAFT, PUBLISHED or ARCHIVED", s)
	}
	return st, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
