// Command urbisadm tarefas de operação direto no banco: migrações, primeiro
// servidor, papéis e permissões.
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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/digiurbis/portal/internal/auth"
	"github.com/digiurbis/portal/internal/db"
	"github.com/digiurbis/portal/internal/identity"
	"github.com/digiurbis/portal/internal/repo"
	"github.com/digiurbis/portal/internal/util"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("urbisadm")
	}
}

type admin struct {
	v    *viper.Viper
	out  io.Writer
	pool *pgxpool.Pool
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &admin{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:           "urbisadm",
		Short:         "Administração do banco do portal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.pool != nil {
				a.pool.Close()
			}
		},
	}
	root.PersistentFlags().String("dsn", "", "DSN do Postgres (padrão: DB_DSN ou DATABASE_URL)")
	_ = a.v.BindPFlag("dsn", root.PersistentFlags().Lookup("dsn"))
	_ = a.v.BindEnv("dsn", "DB_DSN", "DATABASE_URL")

	root.AddCommand(
		a.migrateCmd(),
		a.createAdminCmd(),
		a.grantCmd(),
		a.setRoleCmd(),
		hashpassCmd(out),
	)
	return root
}

func (a *admin) connect(ctx context.Context) (*repo.Queries, error) {
	_ = godotenv.Load()
	dsn := strings.TrimSpace(a.v.GetString("dsn"))
	if dsn == "" {
		return nil, fmt.Errorf("defina --dsn, DB_DSN ou DATABASE_URL")
	}
	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("não foi possível conectar ao banco: %w", err)
	}
	a.pool = pool
	return repo.New(pool), nil
}

func (a *admin) migrateCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica as migrações pendentes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				migrations, err := db.Migrations()
				if err != nil {
					return err
				}
				for _, m := range migrations {
					fmt.Fprintln(a.out, m.Version)
				}
				return nil
			}
			if _, err := a.connect(cmd.Context()); err != nil {
				return err
			}
			applied, err := db.Migrate(cmd.Context(), a.pool)
			if err != nil {
				return err
			}
			log.Info().Int("aplicadas", applied).Msg("migrações concluídas")
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "apenas lista as migrações embutidas")
	return cmd
}

func (a *admin) createAdminCmd() *cobra.Command {
	var (
		params repo.InsertUsuarioParams
		senha  string
		perms  []string
	)
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Cria servidor com senha e permissões",
		Example: `  urbisadm create-admin --nome "Prefeito" --email gabinete@cidade.gov.br --senha segredo123 --role super_admin
  urbisadm create-admin --nome "Ana" --email ana@cidade.gov.br --senha segredo123 --permissao compras:crud`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parsePermissions(perms)
			if err != nil {
				return err
			}
			params.Email = normalizeEmail(params.Email)
			if err := util.ValidateEmail(params.Email); err != nil {
				return err
			}
			if err := util.ValidatePassword(senha); err != nil {
				return err
			}
			hash, err := auth.Hash(senha)
			if err != nil {
				return err
			}
			params.ID = util.NewID()
			params.SenhaHash = hash

			q, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			user, err := q.InsertUsuario(cmd.Context(), params)
			if err != nil {
				return err
			}
			for _, p := range parsed {
				if err := q.UpsertPermissao(cmd.Context(), toPermissao(user.ID, p)); err != nil {
					return err
				}
			}
			log.Info().Str("id", user.ID.String()).Str("email", user.Email).Str("role", user.Role).Msg("servidor criado")
			fmt.Fprintln(a.out, user.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&params.Nome, "nome", "", "nome completo")
	f.StringVar(&params.Email, "email", "", "e-mail")
	f.StringVar(&senha, "senha", "", "senha inicial")
	f.StringVar(&params.Role, "role", "servidor", "papel")
	f.StringVar(&params.Departamento, "departamento", "", "departamento")
	f.StringVar(&params.Cargo, "cargo", "", "cargo")
	f.StringArrayVar(&perms, "permissao", nil, "modulo:letras (c=create r=read u=update d=delete)")
	_ = cmd.MarkFlagRequired("nome")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("senha")
	return cmd
}

func (a *admin) grantCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "grant modulo:letras...",
		Short: "Concede (substitui) permissões de um servidor",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parsePermissions(args)
			if err != nil {
				return err
			}
			q, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			user, err := q.GetUsuarioByEmail(cmd.Context(), normalizeEmail(email))
			if err != nil {
				return err
			}
			for _, p := range parsed {
				if err := q.UpsertPermissao(cmd.Context(), toPermissao(user.ID, p)); err != nil {
					return err
				}
				log.Info().Str("email", user.Email).Str("modulo", p.ModuleID).Msg("permissão gravada")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "e-mail do servidor")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *admin) setRoleCmd() *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "set-role",
		Short: "Troca o papel de um servidor",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			user, err := q.GetUsuarioByEmail(cmd.Context(), normalizeEmail(email))
			if err != nil {
				return err
			}
			return q.UpdateUsuarioRole(cmd.Context(), user.ID, strings.TrimSpace(role))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "e-mail do servidor")
	cmd.Flags().StringVar(&role, "role", "", "novo papel")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func hashpassCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "hashpass <senha>",
		Short: "Gera hash argon2id para gravação manual",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.Hash(args[0])
			if err != nil {
				return fmt.Errorf("hash: %w", err)
			}
			fmt.Fprintln(out, hash)
			return nil
		},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parsePermissions(raw []string) ([]identity.Permission, error) {
	out := make([]identity.Permission, 0, len(raw))
	for _, r := range raw {
		p, err := identity.ParsePermission(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func toPermissao(usuarioID uuid.UUID, p identity.Permission) repo.Permissao {
	return repo.Permissao{
		UsuarioID:   usuarioID,
		Modulo:      p.ModuleID,
		PodeCriar:   p.Create,
		PodeLer:     p.Read,
		PodeEditar:  p.Update,
		PodeExcluir: p.Delete,
	}
}
