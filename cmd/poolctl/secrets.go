package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/cipherpool/internal/config"
	"github.com/dropDatabas3/cipherpool/internal/jwt"
	"github.com/dropDatabas3/cipherpool/internal/security/channel"
	"github.com/dropDatabas3/cipherpool/internal/security/curve"
	"github.com/dropDatabas3/cipherpool/internal/security/envelope"
	"github.com/dropDatabas3/cipherpool/internal/security/secretbox"
	"github.com/dropDatabas3/cipherpool/internal/store"
	"github.com/dropDatabas3/cipherpool/internal/store/pg"
	"github.com/dropDatabas3/cipherpool/internal/vault"
	migrations "github.com/dropDatabas3/cipherpool/migrations/postgres"
)

func newGenMasterKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-master-key",
		Short: "Genera un VAULT_MASTER_KEY (base64, 32 bytes)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := secretbox.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), k)
			return nil
		},
	}
}

func newServiceTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		role    string
		ttl     string
	)
	cmd := &cobra.Command{
		Use:   "service-token",
		Short: "Emite un token de servicio (HS256) para el bot o un admin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			iss, err := jwt.NewServiceIssuer(secret, durationOr(ttl, 720*time.Hour))
			if err != nil {
				return err
			}
			tok, exp, err := iss.Issue(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expira: %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", envOr("SERVICE_TOKEN_SECRET", ""), "Secreto HS256 (env SERVICE_TOKEN_SECRET)")
	cmd.Flags().StringVar(&subject, "subject", "group-bot", "Subject del token")
	cmd.Flags().StringVar(&role, "role", jwt.RoleBot, "Rol: bot|admin")
	cmd.Flags().StringVar(&ttl, "ttl", "720h", "Vigencia")
	return cmd
}

func newSignEnvelopeCmd() *cobra.Command {
	var (
		secret string
		userID string
		user   string
	)
	cmd := &cobra.Command{
		Use:   "sign-envelope",
		Short: "Firma un initData de prueba como lo haría la plataforma",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := envelope.NewVerifier(secret)
			if err != nil {
				return err
			}
			if user == "" {
				if userID == "" {
					return errors.New("--user-id o --user es requerido")
				}
				b, _ := json.Marshal(map[string]string{"id": userID})
				user = string(b)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Sign(map[string]string{
				"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
				"user":      user,
			}))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", envOr("PLATFORM_SECRET", ""), "Token de la plataforma (env PLATFORM_SECRET)")
	cmd.Flags().StringVar(&userID, "user-id", "", "Id de usuario")
	cmd.Flags().StringVar(&user, "user", "", "JSON completo del claim user (pisa --user-id)")
	return cmd
}

func newKeypairCmd() *cobra.Command {
	var curveName string
	cmd := &cobra.Command{
		Use:   "keypair",
		Short: "Genera un par EC local (hex) en la curva indicada",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := curve.ByName(curveName)
			if err != nil {
				return err
			}
			pub, priv, err := c.GenerateKeyPair()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"curve":      c.Name(),
				"publicKey":  hex.EncodeToString(pub),
				"privateKey": hex.EncodeToString(priv),
			})
		},
	}
	cmd.Flags().StringVar(&curveName, "curve", envOr("CRYPTO_CURVE", "p256"), "p256|secp256k1")
	return cmd
}

type channelFlags struct {
	curve   string
	priv    string
	peerPub string
	context string

	// modo custodia: claves del vault configurado
	as         string
	peer       string
	configPath string
}

func (f *channelFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.curve, "curve", envOr("CRYPTO_CURVE", "p256"), "p256|secp256k1")
	cmd.Flags().StringVar(&f.priv, "private-key", "", "Privada propia (hex)")
	cmd.Flags().StringVar(&f.peerPub, "peer-public-key", "", "Pública de la contraparte (hex)")
	cmd.Flags().StringVar(&f.context, "context", channel.DefaultContext, "Associated data")
	cmd.Flags().StringVar(&f.as, "as", "", "Identidad propia custodiada en el vault (requiere --peer)")
	cmd.Flags().StringVar(&f.peer, "peer", "", "Identidad de la contraparte, resuelta en el vault (requiere --as)")
	cmd.Flags().StringVar(&f.configPath, "config", os.Getenv("CONFIG_PATH"), "Path al config YAML (modo custodia)")
}

func (f *channelFlags) secret(ctx context.Context) (channel.SharedSecret, error) {
	if f.as != "" || f.peer != "" {
		return f.custodySecret(ctx)
	}
	c, err := curve.ByName(f.curve)
	if err != nil {
		return channel.SharedSecret{}, err
	}
	priv, err := hex.DecodeString(f.priv)
	if err != nil {
		return channel.SharedSecret{}, fmt.Errorf("--private-key: %w", err)
	}
	pub, err := hex.DecodeString(f.peerPub)
	if err != nil {
		return channel.SharedSecret{}, fmt.Errorf("--peer-public-key: %w", err)
	}
	return channel.New(c, nil).DeriveSecret(priv, pub)
}

// custodySecret abre el storage configurado y deriva con las claves del vault.
func (f *channelFlags) custodySecret(ctx context.Context) (channel.SharedSecret, error) {
	if f.as == "" || f.peer == "" {
		return channel.SharedSecret{}, errors.New("--as y --peer van juntos")
	}
	_ = godotenv.Load()
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return channel.SharedSecret{}, err
	}
	if cfg.Storage.Driver != "postgres" {
		return channel.SharedSecret{}, fmt.Errorf("storage.driver=%q: el modo custodia necesita postgres", cfg.Storage.Driver)
	}
	c, err := curve.ByName(cfg.Crypto.Curve)
	if err != nil {
		return channel.SharedSecret{}, err
	}
	box, err := secretbox.New(cfg.Crypto.VaultMasterKey)
	if err != nil {
		return channel.SharedSecret{}, fmt.Errorf("vault master key: %w", err)
	}
	st, err := store.Open(ctx, store.Config{
		Driver:   cfg.Storage.Driver,
		DSN:      cfg.Storage.DSN,
		Postgres: pg.PoolConfig{MaxOpenConns: 2},
	})
	if err != nil {
		return channel.SharedSecret{}, err
	}
	defer st.Close()
	return vaultSecret(ctx, c, vault.New(st, c, box, 0), f.as, f.peer)
}

// vaultSecret usa la privada custodiada de as y resuelve la pública de peer
// con el mismo vault.
func vaultSecret(ctx context.Context, c curve.Curve, v *vault.Vault, as, peer string) (channel.SharedSecret, error) {
	priv, err := v.PrivateKey(ctx, as)
	if err != nil {
		return channel.SharedSecret{}, fmt.Errorf("--as %s: %w", as, err)
	}
	return channel.New(c, v).SecretFor(ctx, priv, peer)
}

func newSealCmd() *cobra.Command {
	var f channelFlags
	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Sella stdin para la contraparte; imprime {iv, encrypted, authTag}",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := f.secret(cmd.Context())
			if err != nil {
				return err
			}
			pt, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			msg, err := channel.Seal(pt, s, f.context)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), msg)
		},
	}
	f.bind(cmd)
	return cmd
}

func newOpenCmd() *cobra.Command {
	var f channelFlags
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Abre un {iv, encrypted, authTag} leído de stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := f.secret(cmd.Context())
			if err != nil {
				return err
			}
			var msg channel.SecureMessage
			if err := json.NewDecoder(cmd.InOrStdin()).Decode(&msg); err != nil {
				return fmt.Errorf("stdin: %w", err)
			}
			pt, err := channel.Open(&msg, s, f.context)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(pt)
			return err
		},
	}
	f.bind(cmd)
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones embebidas de postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("storage.driver=%q: migrate sólo aplica a postgres", cfg.Storage.Driver)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			st, err := pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{MaxOpenConns: 2})
			if err != nil {
				return err
			}
			defer st.Close()
			res, err := st.Migrate(ctx, migrations.PostgresFS, migrations.PostgresDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "aplicadas=%v omitidas=%v (%s)\n", res.Applied, res.Skipped, res.Duration)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path al config YAML")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
