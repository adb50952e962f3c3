// Package command interpreta los comandos de chat del bot en un conjunto
// cerrado de Kinds. El texto se resuelve una sola vez acá; el resto del código
// hace switch sobre Kind y nunca vuelve a mirar strings.
package command

import (
	"errors"
	"strings"
)

type Kind int

const (
	Unknown Kind = iota
	Start
	Join
	Predict
	Resolve
	Keys
)

var names = map[string]Kind{
	"start":   Start,
	"join":    Join,
	"predict": Predict,
	"resolve": Resolve,
	"keys":    Keys,
}

func (k Kind) String() string {
	for n, v := range names {
		if v == k {
			return n
		}
	}
	return "unknown"
}

var (
	ErrNotACommand  = errors.New("command: no empieza con /")
	ErrUnknown      = errors.New("command: comando desconocido")
	ErrMissingArgs  = errors.New("command: faltan argumentos")
	ErrBadOutcome   = errors.New("command: outcome debe ser yes|no")
	ErrOtherBotName = errors.New("command: dirigido a otro bot")
)

// Command es un comando ya interpretado.
type Command struct {
	Kind     Kind
	Question string // Predict
	MarketID string // Resolve
	Outcome  bool   // Resolve
}

// Parse interpreta text. botName (sin @) filtra comandos "/cmd@otrobot"; vacío
// acepta cualquiera.
func Parse(text, botName string) (Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, ErrNotACommand
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	rest = strings.TrimSpace(rest)

	name, target, hasTarget := strings.Cut(head, "@")
	if hasTarget && botName != "" && !strings.EqualFold(target, botName) {
		return Command{}, ErrOtherBotName
	}
	kind, ok := names[strings.ToLower(name)]
	if !ok {
		return Command{}, ErrUnknown
	}

	cmd := Command{Kind: kind}
	switch kind {
	case Predict:
		if rest == "" {
			return Command{}, ErrMissingArgs
		}
		cmd.Question = rest
	case Resolve:
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return Command{}, ErrMissingArgs
		}
		cmd.MarketID = fields[0]
		switch strings.ToLower(fields[1]) {
		case "yes", "y", "si", "sí":
			cmd.Outcome = true
		case "no", "n":
			cmd.Outcome = false
		default:
			return Command{}, ErrBadOutcome
		}
	}
	return cmd, nil
}
