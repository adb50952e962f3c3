// Package dto define los cuerpos JSON de la API HTTP.
package dto

import (
	"encoding/json"
	"time"
)

// ─── keys ───

type IssueKeysRequest struct {
	Identity string `json:"identity"`
	Rotate   bool   `json:"rotate"`
}

type KeyPairResponse struct {
	Identity   string `json:"identity"`
	Curve      string `json:"curve"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
	Created    bool   `json:"created"`
}

type PublicKeyResponse struct {
	Identity  string `json:"identity"`
	Curve     string `json:"curve"`
	PublicKey string `json:"publicKey"`
}

// ─── markets ───

type CreateMarketRequest struct {
	Identity string          `json:"identity"`
	GroupID  string          `json:"group_id"`
	Payload  json.RawMessage `json:"payload"`
}

type CreateMarketResponse struct {
	ID           string    `json:"id"`
	ShareableURL string    `json:"shareable_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type MarketResponse struct {
	ID        string          `json:"id"`
	CreatorID string          `json:"creator_id"`
	GroupID   string          `json:"group_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Status    string          `json:"status"`
	Outcome   *bool           `json:"outcome,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type ResolveMarketRequest struct {
	Outcome *bool `json:"outcome"`
}

type ResolveMarketResponse struct {
	MarketID  string `json:"market_id"`
	Outcome   bool   `json:"outcome"`
	Delivered int    `json:"delivered"`
}

// ─── predictions ───

type SubmitPredictionRequest struct {
	MarketID      string          `json:"market_id"`
	SealedPayload json.RawMessage `json:"sealed_payload"`
}

type SubmitPredictionResponse struct {
	MarketID string `json:"market_id"`
	Receipt  string `json:"receipt"`
}

type Position struct {
	MarketID      string          `json:"market_id"`
	SealedPayload json.RawMessage `json:"sealed_payload"`
	Receipt       string          `json:"receipt"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type PositionsResponse struct {
	Identity  string     `json:"identity"`
	Positions []Position `json:"positions"`
}

// ─── bot ───

type BotCommandRequest struct {
	Identity string `json:"identity"`
	GroupID  string `json:"group_id"`
	Text     string `json:"text"`
}

type BotCommandResponse struct {
	Command string `json:"command"`
	Reply   string `json:"reply"`
	Data    any    `json:"data,omitempty"`
}

// ─── realtime ───

// RealtimeHello es el primer frame opcional del cliente si no mandó ?auth=.
type RealtimeHello struct {
	Auth string `json:"auth"`
}
