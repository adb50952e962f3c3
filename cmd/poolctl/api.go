package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	Token     string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body any) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, strings.TrimRight(c.BaseURL, "/")+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(w io.Writer, status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Fprintln(w, string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Fprintln(w, strings.TrimSpace(string(body)))
	} else {
		fmt.Fprintf(w, "status=%d\n", status)
	}
}

func (c *client) call(cmd *cobra.Command, name, method, path string, body any) error {
	status, resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return fmt.Errorf("%s fallo: status=%d body=%s", name, status, strings.TrimSpace(string(resp)))
	}
	c.print(cmd.OutOrStdout(), status, resp)
	return nil
}

func newAPICmd() *cobra.Command {
	cl := &client{HTTP: &http.Client{Timeout: 30 * time.Second}}

	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Llamadas a la API con un token de servicio",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cl.Token == "" {
				return fmt.Errorf("falta token (flag --token o env CIPHERPOOL_TOKEN)")
			}
			return nil
		},
	}
	apiCmd.PersistentFlags().StringVar(&cl.BaseURL, "url", envOr("CIPHERPOOL_URL", "http://localhost:8080"), "URL base (env CIPHERPOOL_URL)")
	apiCmd.PersistentFlags().StringVar(&cl.Token, "token", envOr("CIPHERPOOL_TOKEN", ""), "Token de servicio (env CIPHERPOOL_TOKEN)")
	apiCmd.PersistentFlags().StringVar(&cl.OutFormat, "out", envOr("CIPHERPOOL_OUT", "text"), "Formato de salida: json|text")

	// keys issue
	var keyIdentity string
	var rotate bool
	issueCmd := &cobra.Command{
		Use:   "issue-keys",
		Short: "Emite (o rota con --rotate) el par de una identidad",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if keyIdentity == "" {
				return fmt.Errorf("--identity es requerido")
			}
			return cl.call(cmd, "issue-keys", http.MethodPost, "/v1/keys",
				map[string]any{"identity": keyIdentity, "rotate": rotate})
		},
	}
	issueCmd.Flags().StringVar(&keyIdentity, "identity", "", "Identidad (user id)")
	issueCmd.Flags().BoolVar(&rotate, "rotate", false, "Reemplaza el par existente")

	// markets resolve
	var marketID string
	var outcome string
	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resuelve un mercado (requiere rol admin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if marketID == "" {
				return fmt.Errorf("--market es requerido")
			}
			var o bool
			switch strings.ToLower(outcome) {
			case "yes", "true", "si":
				o = true
			case "no", "false":
			default:
				return fmt.Errorf("--outcome debe ser yes|no")
			}
			return cl.call(cmd, "resolve", http.MethodPost, "/v1/admin/markets/"+marketID+"/resolve",
				map[string]any{"outcome": o})
		},
	}
	resolveCmd.Flags().StringVar(&marketID, "market", "", "Id del mercado")
	resolveCmd.Flags().StringVar(&outcome, "outcome", "", "yes|no")

	// bot command passthrough
	var botIdentity, botGroup string
	botCmd := &cobra.Command{
		Use:   "bot <texto>",
		Short: "Envía un comando de chat como si viniera del bot (ej. \"/predict ¿llueve?\")",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.call(cmd, "bot", http.MethodPost, "/v1/bot/commands", map[string]any{
				"identity": botIdentity,
				"group_id": botGroup,
				"text":     strings.Join(args, " "),
			})
		},
	}
	botCmd.Flags().StringVar(&botIdentity, "identity", "", "Identidad del autor del mensaje")
	botCmd.Flags().StringVar(&botGroup, "group", "", "Id del grupo")

	apiCmd.AddCommand(issueCmd, resolveCmd, botCmd)
	return apiCmd
}
