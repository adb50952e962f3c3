package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/http/dto"
	"github.com/dropDatabas3/cipherpool/internal/http/services/keys"
	"github.com/dropDatabas3/cipherpool/internal/http/services/markets"
	"github.com/dropDatabas3/cipherpool/internal/jwt"
	"github.com/dropDatabas3/cipherpool/internal/rate"
	"github.com/dropDatabas3/cipherpool/internal/security/curve"
	"github.com/dropDatabas3/cipherpool/internal/security/secretbox"
	"github.com/dropDatabas3/cipherpool/internal/store/memory"
	"github.com/dropDatabas3/cipherpool/internal/vault"
)

func newBot(t *testing.T) BotService {
	t.Helper()
	st := memory.New()
	k, err := secretbox.GenerateKey()
	require.NoError(t, err)
	box, err := secretbox.New(k)
	require.NoError(t, err)
	return NewBotService(Deps{
		Keys:       keys.NewKeysService(keys.Deps{Vault: vault.New(st, curve.P256{}, box, 0), Curve: "p256"}),
		Markets:    markets.NewMarketsService(markets.Deps{Markets: st, Predictions: st, MiniAppURL: "https://t.me/pool_bot/app"}),
		BotName:    "pool_bot",
		MiniAppURL: "https://t.me/pool_bot/app",
	})
}

func TestHandle_PredictThenResolveByCreator(t *testing.T) {
	svc := newBot(t)
	ctx := context.Background()

	out, err := svc.Handle(ctx, jwt.RoleBot, dto.BotCommandRequest{Identity: "7", GroupID: "-100", Text: "/predict@pool_bot ¿BTC > 100k?"})
	require.NoError(t, err)
	assert.Equal(t, "predict", out.Command)
	mk, ok := out.Data.(*dto.CreateMarketResponse)
	require.True(t, ok)
	assert.Contains(t, out.Reply, mk.ShareableURL)

	_, err = svc.Handle(ctx, jwt.RoleBot, dto.BotCommandRequest{Identity: "8", Text: "/resolve " + mk.ID + " yes"})
	require.ErrorIs(t, err, ErrNotCreator)

	out, err = svc.Handle(ctx, jwt.RoleBot, dto.BotCommandRequest{Identity: "7", Text: "/resolve " + mk.ID + " yes"})
	require.NoError(t, err)
	assert.Equal(t, "resolve", out.Command)
}

func TestHandle_AdminResolvesAnyMarket(t *testing.T) {
	svc := newBot(t)
	ctx := context.Background()
	out, err := svc.Handle(ctx, jwt.RoleBot, dto.BotCommandRequest{Identity: "7", Text: "/predict lluvia"})
	require.NoError(t, err)
	id := out.Data.(*dto.CreateMarketResponse).ID

	_, err = svc.Handle(ctx, jwt.RoleAdmin, dto.BotCommandRequest{Identity: "admin", Text: "/resolve " + id + " no"})
	require.NoError(t, err)
}

func TestHandle_KeysAndStart(t *testing.T) {
	svc := newBot(t)
	out, err := svc.Handle(context.Background(), jwt.RoleBot, dto.BotCommandRequest{Identity: "9", Text: "/keys"})
	require.NoError(t, err)
	kp := out.Data.(*dto.KeyPairResponse)
	assert.True(t, kp.Created)
	assert.NotEmpty(t, kp.PrivateKey)

	out, err = svc.Handle(context.Background(), jwt.RoleBot, dto.BotCommandRequest{Text: "/start"})
	require.NoError(t, err)
	assert.Contains(t, out.Reply, "https://t.me/pool_bot/app")
}

func TestHandle_ParseErrors(t *testing.T) {
	svc := newBot(t)
	for text, want := range map[string]error{
		"hola":               ErrNotACommand,
		"/keys@other_bot":    ErrNotACommand,
		"/dance":             ErrUnknown,
		"/predict":           ErrBadArgs,
		"/resolve abc maybe": ErrBadArgs,
	} {
		_, err := svc.Handle(context.Background(), jwt.RoleBot, dto.BotCommandRequest{Identity: "1", Text: text})
		require.ErrorIs(t, err, want, text)
		assert.True(t, errs.IsKind(err, errs.KindInvalid))
	}
}

func newLimitedBot(t *testing.T, keygenLimit int) BotService {
	t.Helper()
	st := memory.New()
	k, err := secretbox.GenerateKey()
	require.NoError(t, err)
	box, err := secretbox.New(k)
	require.NoError(t, err)
	fixed := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	lim := rate.NewMemoryLimiter(time.Minute, func() time.Time { return fixed })
	t.Cleanup(func() { _ = lim.Close() })

	svc := NewBotService(Deps{
		Keys:        keys.NewKeysService(keys.Deps{Vault: vault.New(st, curve.P256{}, box, 0), Curve: "p256"}),
		Markets:     markets.NewMarketsService(markets.Deps{Markets: st, Predictions: st}),
		Limiter:     lim,
		KeygenLimit: keygenLimit,
	})
	return svc
}

func TestHandle_SharesKeygenLimit(t *testing.T) {
	svc := newLimitedBot(t, 2)
	req := dto.BotCommandRequest{Identity: "5", Text: "/keys"}
	for i := 0; i < 2; i++ {
		_, err := svc.Handle(context.Background(), jwt.RoleBot, req)
		require.NoError(t, err)
	}
	_, err := svc.Handle(context.Background(), jwt.RoleBot, req)
	assert.True(t, errs.IsKind(err, errs.KindRateLimited))
}

func TestHandle_JoinIssuesKeysUnderKeygenLimit(t *testing.T) {
	svc := newLimitedBot(t, 2)
	ctx := context.Background()

	out, err := svc.Handle(ctx, jwt.RoleBot, dto.BotCommandRequest{Identity: "55", Text: "/join"})
	require.NoError(t, err)
	assert.Equal(t, "join", out.Command)
	joined, ok := out.Data.(*dto.KeyPairResponse)
	require.True(t, ok)
	assert.True(t, joined.Created)
	assert.NotEmpty(t, joined.PublicKey)
	assert.NotEmpty(t, joined.PrivateKey)

	// /keys devuelve el mismo par y consume el mismo contador
	out, err = svc.Handle(ctx, jwt.RoleBot, dto.BotCommandRequest{Identity: " 55 ", Text: "/keys"})
	require.NoError(t, err)
	again := out.Data.(*dto.KeyPairResponse)
	assert.False(t, again.Created)
	assert.Equal(t, joined.PublicKey, again.PublicKey)

	_, err = svc.Handle(ctx, jwt.RoleBot, dto.BotCommandRequest{Identity: "55", Text: "/join"})
	assert.True(t, errs.IsKind(err, errs.KindRateLimited))
}
