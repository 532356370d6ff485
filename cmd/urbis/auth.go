package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/identity"
	"github.com/digiurbis/portal/internal/session"
)

func (a *app) loginCmd() *cobra.Command {
	var email, tipo string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Entra como servidor (--tipo servidor) ou cidadão",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := identity.ParseKind(tipo)
			if !ok {
				return apperr.Invalid("tipo inválido: %s", tipo)
			}
			senha, err := a.secret(cmd, "senha")
			if err != nil {
				return err
			}
			if err := a.manager.Login(cmd.Context(), email, senha, kind); err != nil {
				return err
			}
			u := a.manager.User()
			fmt.Fprintf(a.out, "Bem-vindo(a), %s (%s)\n", u.Nome(), u.Kind)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "e-mail")
	cmd.Flags().String("senha", "", "senha (ou URBIS_SENHA)")
	cmd.Flags().StringVar(&tipo, "tipo", "cidadao", "servidor | cidadao")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Encerra a sessão local e revoga o refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			// sessão já inválida também deve ser limpa
			_ = a.manager.Start(cmd.Context())
			if a.manager.Session() == nil {
				fmt.Fprintln(a.out, "Nenhuma sessão ativa")
				return nil
			}
			if err := a.manager.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Sessão encerrada")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		Aliases: []string{"me"},
		Short:   "Mostra o perfil da sessão atual",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			return a.printJSON(a.manager.User())
		},
	}
}

func (a *app) registerCmd() *cobra.Command {
	var data session.RegisterData
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Cadastro de cidadão",
		RunE: func(cmd *cobra.Command, args []string) error {
			senha, err := a.secret(cmd, "senha")
			if err != nil {
				return err
			}
			data.Senha = senha
			if err := a.manager.Register(cmd.Context(), data, identity.KindCitizen); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Cadastro concluído: %s\n", a.manager.User().Nome())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&data.Nome, "nome", "", "nome completo")
	f.StringVar(&data.Email, "email", "", "e-mail")
	f.String("senha", "", "senha (ou URBIS_SENHA)")
	f.StringVar(&data.CPF, "cpf", "", "CPF")
	f.StringVar(&data.Telefone, "telefone", "", "telefone")
	f.StringVar(&data.Endereco.Logradouro, "logradouro", "", "logradouro")
	_ = cmd.MarkFlagRequired("nome")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) registerServidorCmd() *cobra.Command {
	var (
		data  session.RegisterData
		perms []string
	)
	cmd := &cobra.Command{
		Use:   "register-servidor",
		Short: "Cadastra servidor (exige permissão de criação em usuários)",
		Example: `  urbis register-servidor --nome "Ana" --email ana@urbis.gov.br --senha segredo123 \
    --role gestor --permissao compras:cr --permissao rh:crud`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			senha, err := a.secret(cmd, "senha")
			if err != nil {
				return err
			}
			data.Senha = senha
			for _, raw := range perms {
				p, err := identity.ParsePermission(raw)
				if err != nil {
					return err
				}
				data.Permissions = append(data.Permissions, p)
			}
			u, err := a.client.RegisterAdmin(cmd.Context(), data)
			if err != nil {
				return err
			}
			return a.printJSON(u)
		},
	}
	f := cmd.Flags()
	f.StringVar(&data.Nome, "nome", "", "nome completo")
	f.StringVar(&data.Email, "email", "", "e-mail")
	f.String("senha", "", "senha inicial (ou URBIS_SENHA)")
	f.StringVar(&data.Role, "role", "servidor", "papel")
	f.StringVar(&data.Departamento, "departamento", "", "departamento")
	f.StringVar(&data.Cargo, "cargo", "", "cargo")
	f.StringArrayVar(&perms, "permissao", nil, "modulo:letras (c=create r=read u=update d=delete)")
	_ = cmd.MarkFlagRequired("nome")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) resetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Solicita e-mail de redefinição de senha",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.manager.ResetPassword(cmd.Context(), email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "e-mail da conta")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) confirmResetCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "confirm-reset",
		Short: "Define nova senha com o token recebido por e-mail",
		RunE: func(cmd *cobra.Command, args []string) error {
			senha, err := a.secret(cmd, "senha")
			if err != nil {
				return err
			}
			if err := a.client.ConfirmPasswordReset(cmd.Context(), token, senha); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Senha redefinida")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token de redefinição")
	cmd.Flags().String("senha", "", "nova senha (ou URBIS_SENHA)")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func (a *app) updatePasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-password",
		Short: "Troca a senha da sessão atual",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			senha, err := a.secret(cmd, "senha")
			if err != nil {
				return err
			}
			return a.manager.UpdatePassword(cmd.Context(), senha)
		},
	}
	cmd.Flags().String("senha", "", "nova senha (ou URBIS_SENHA)")
	return cmd
}

func (a *app) canCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "can <modulo> <create|read|update|delete>",
		Short: "Consulta a permissão da sessão atual em um módulo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			action := identity.Action(strings.ToLower(args[1]))
			fmt.Fprintln(a.out, a.manager.HasPermission(args[0], action))
			return nil
		},
	}
}
