package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/digiurbis/portal/internal/apperr"
)

// apiCmd chamadas autenticadas diretas: urbis api get /compras/pedidos.
func (a *app) apiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Chamadas autenticadas aos módulos",
	}
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete} {
		cmd.AddCommand(a.apiMethodCmd(method))
	}
	return cmd
}

func (a *app) apiMethodCmd(method string) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " <caminho>",
		Short: method + " autenticado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			body, err := readBody(data)
			if err != nil {
				return err
			}

			path := "/" + strings.TrimLeft(args[0], "/")
			var out json.RawMessage
			switch method {
			case http.MethodGet:
				err = a.client.Get(cmd.Context(), path, &out)
			case http.MethodPost:
				err = a.client.Post(cmd.Context(), path, body, &out)
			case http.MethodPatch:
				err = a.client.Patch(cmd.Context(), path, body, &out)
			case http.MethodDelete:
				err = a.client.Delete(cmd.Context(), path)
			}
			if err != nil {
				return err
			}
			if len(out) == 0 {
				return nil
			}
			return a.printJSON(out)
		},
	}
	if method == http.MethodPost || method == http.MethodPatch {
		cmd.Flags().StringVarP(&data, "data", "d", "", "corpo JSON ou @arquivo.json")
	}
	return cmd
}

// readBody devolve nil (sem corpo) quando data é vazio.
func readBody(data string) (any, error) {
	if data == "" {
		return nil, nil
	}
	raw := []byte(data)
	if strings.HasPrefix(data, "@") {
		var err error
		if raw, err = os.ReadFile(strings.TrimPrefix(data, "@")); err != nil {
			return nil, err
		}
	}
	if !json.Valid(raw) {
		return nil, apperr.Invalid("corpo não é JSON válido")
	}
	return json.RawMessage(raw), nil
}
