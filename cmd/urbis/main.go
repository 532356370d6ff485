// Command urbis acessa o portal pela linha de comando: login de servidor ou
// cidadão, sessão persistida entre execuções e chamadas diretas aos módulos.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/digiurbis/portal/internal/client"
	"github.com/digiurbis/portal/internal/notify"
	"github.com/digiurbis/portal/internal/request"
	"github.com/digiurbis/portal/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "erro:", err)
		os.Exit(1)
	}
}

type app struct {
	v       *viper.Viper
	out     io.Writer
	logger  zerolog.Logger
	client  *client.Client
	manager *session.Manager
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:           "urbis",
		Short:         "Cliente de linha de comando do portal digiUrbis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(errOut)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.manager != nil {
				a.manager.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("api-url", "http://localhost:8080", "endereço da API")
	flags.String("session-file", "", "arquivo da sessão local (padrão: diretório de configuração do usuário)")
	flags.Int("retries", 3, "novas tentativas em falhas de rede (0 desliga)")
	flags.Bool("verbose", false, "log detalhado")
	_ = a.v.BindPFlags(flags)

	a.v.SetEnvPrefix("URBIS")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.registerCmd(),
		a.registerServidorCmd(),
		a.resetPasswordCmd(),
		a.confirmResetCmd(),
		a.updatePasswordCmd(),
		a.canCmd(),
		a.apiCmd(),
	)
	return root
}

// setup lê ~/.config/digiurbis/urbis.yaml (opcional), depois ambiente URBIS_* e flags.
func (a *app) setup(errOut io.Writer) error {
	if dir, err := os.UserConfigDir(); err == nil {
		a.v.AddConfigPath(filepath.Join(dir, "digiurbis"))
	}
	a.v.SetConfigName("urbis")
	a.v.SetConfigType("yaml")
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	level := zerolog.InfoLevel
	if a.v.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: errOut, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
	toast := notify.NewLogNotifier(a.logger)

	a.client = client.New(a.v.GetString("api-url"), client.Options{
		Policy: request.Policy{
			Retries:    a.v.GetInt("retries"),
			RetryDelay: 500 * time.Millisecond,
			Backoff:    2,
			Notifier:   toast,
		},
	})

	path := a.v.GetString("session-file")
	if path == "" {
		var err error
		if path, err = session.DefaultPath(); err != nil {
			return err
		}
	}
	a.manager = session.NewManager(a.client, session.NewFileStore(path), session.Options{
		Toast:  toast,
		Logger: &a.logger,
		Redirect: func(string) {
			a.logger.Warn().Msg("entre novamente com: urbis login")
		},
	})
	return nil
}

// restore recupera a sessão salva; comandos autenticados falham sem perfil.
func (a *app) restore(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return err
	}
	if a.manager.User() == nil {
		return session.ErrNoSession
	}
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// secret flag vazia cai na variável URBIS_<NOME>.
func (a *app) secret(cmd *cobra.Command, name string) (string, error) {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		value = a.v.GetString(name)
	}
	if value == "" {
		return "", fmt.Errorf("informe --%s ou URBIS_%s", name, strings.ToUpper(name))
	}
	return value, nil
}
