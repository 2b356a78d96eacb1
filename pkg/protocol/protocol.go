// Package protocol links the assistant to a websocket message bus as a
// named shard. Frames are single JSON envelopes.
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"regexp"
	"time"
)

const Broadcast = "ALL"

// Envelope kinds used on the bus.
const (
	KindQuery = "query"
	KindReply = "reply"
	KindState = "state"
	KindAlert = "alert"
	KindError = "error"
)

type Envelope struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Lang    string `json:"lang,omitempty"`
}

type PtclConfig struct {
	Shard   string
	Url     string
	Reconn  time.Duration
	EmitOut func(*Envelope)
}

type Protocol struct {
	ws      *WebSocket
	shard   string
	emitOut func(*Envelope)
}

func NewProtocol(ctx context.Context, cfg PtclConfig) (*Protocol, error) {
	if !isToken(cfg.Shard) {
		return nil, fmt.Errorf("invalid shard name %q", cfg.Shard)
	}
	if cfg.Reconn <= 0 {
		cfg.Reconn = time.Second
	}
	ws, err := NewWebSocket(ctx, cfg.Url, cfg.Reconn)
	if err != nil {
		log.Error("Failed to init ws connection")
		return nil, err
	}
	return &Protocol{shard: cfg.Shard, ws: ws, emitOut: cfg.EmitOut}, nil
}

func (ptcl *Protocol) Shard() string { return ptcl.shard }

// Transmit stamps the envelope with this shard's name and sends it.
func (ptcl *Protocol) Transmit(e Envelope) error {
	e.From = ptcl.shard
	if e.To == "" {
		e.To = Broadcast
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := ptcl.ws.Write(data); err != nil {
		log.Error("Failed to transmit", "kind", e.Kind, "err", err)
		return err
	}
	return nil
}

// Reply answers in to its sender.
func (ptcl *Protocol) Reply(in *Envelope, kind, content string) error {
	return ptcl.Transmit(Envelope{To: in.From, Kind: kind, Content: content, Lang: in.Lang})
}

// Run reads until ctx is done, reconnecting whenever the bus drops us.
// Envelopes for this shard, or broadcast ones from others, go to EmitOut.
func (ptcl *Protocol) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ptcl.ws.Close()
	}()

	for {
		in := ptcl.ws.Read()
		if ctx.Err() != nil {
			return nil
		}
		switch in.kind {
		case CONN_CLOSE:
			log.Warn("Trying to reconnect on", "url", ptcl.ws.url)
			if err := ptcl.ws.TryReconn(ctx); err != nil {
				return nil
			}
			log.Info("Succefully reconnected")

		case READ_OK:
			msg, err := Parse(in.msg)
			if err != nil {
				log.Warn("Failed to parse", "msg", string(in.msg), "err", err)
				continue
			}
			if !ptcl.checkRecipient(msg) {
				continue
			}
			if ptcl.emitOut != nil {
				ptcl.emitOut(msg)
			}
		}
	}
}

func (ptcl *Protocol) checkRecipient(msg *Envelope) bool {
	if msg.From == ptcl.shard {
		return false
	}
	return msg.To == ptcl.shard || msg.To == Broadcast
}

func Parse(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Kind == "" {
		return nil, errors.New("missing kind")
	}
	if !isToken(e.From) {
		return nil, fmt.Errorf("invalid FROM token: %q", e.From)
	}
	if !isToken(e.To) && e.To != Broadcast {
		return nil, fmt.Errorf("invalid TO token: %q", e.To)
	}
	return &e, nil
}

var tokenRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func isToken(s string) bool {
	return tokenRe.MatchString(s)
}
