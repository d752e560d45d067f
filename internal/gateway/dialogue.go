package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrWong99/ekivoice/internal/availability"
	"github.com/MrWong99/ekivoice/internal/bilingual"
	"github.com/MrWong99/ekivoice/internal/observe"
)

const (
	defaultReplyTimeout = 10 * time.Second

	// DefaultPlayerID identifies the local player towards the dialogue
	// service.
	DefaultPlayerID = "player1"
)

// DefaultServiceIDs maps NPC display names to the dialogue service's
// NPC identifiers. Names without an entry are passed through as-is.
var DefaultServiceIDs = map[string]string{
	"Hachiko":                      "companion_dog",
	"Information":                  "information_booth_attendant",
	"Ticket":                       "ticket_booth_attendant",
	"Station Platform Attendant 1": "station_attendant_kyoto",
	"Station Platform Attendant 2": "station_attendant_odawara",
	"Station Platform Attendant 3": "station_attendant_osaka",
}

// Dialogue is the client for the NPC dialogue service. It keeps one
// [Session] per NPC so the service can carry conversation context
// across turns.
type Dialogue struct {
	monitor    *availability.Monitor
	client     *http.Client
	timeout    time.Duration
	metrics    *observe.Metrics
	playerID   string
	serviceIDs map[string]string
	sessions   *sessionStore
}

// DialogueOption configures a [Dialogue] client.
type DialogueOption func(*Dialogue)

// WithReplyTimeout overrides the per-request timeout (default 10s).
func WithReplyTimeout(d time.Duration) DialogueOption {
	return func(c *Dialogue) {
		c.timeout = d
	}
}

// WithDialogueHTTPClient overrides the HTTP client.
func WithDialogueHTTPClient(hc *http.Client) DialogueOption {
	return func(c *Dialogue) {
		c.client = hc
	}
}

// WithDialogueMetrics overrides the metrics sink.
func WithDialogueMetrics(m *observe.Metrics) DialogueOption {
	return func(c *Dialogue) {
		c.metrics = m
	}
}

// WithPlayerID overrides the player identifier sent with every turn.
func WithPlayerID(id string) DialogueOption {
	return func(c *Dialogue) {
		c.playerID = id
	}
}

// WithServiceIDs merges extra display-name to service-id mappings over
// [DefaultServiceIDs].
func WithServiceIDs(ids map[string]string) DialogueOption {
	return func(c *Dialogue) {
		for name, id := range ids {
			c.serviceIDs[name] = id
		}
	}
}

// NewDialogue returns a dialogue client routed through monitor.
func NewDialogue(monitor *availability.Monitor, opts ...DialogueOption) *Dialogue {
	c := &Dialogue{
		monitor:    monitor,
		client:     &http.Client{},
		timeout:    defaultReplyTimeout,
		playerID:   DefaultPlayerID,
		serviceIDs: make(map[string]string, len(DefaultServiceIDs)),
		sessions:   newSessionStore(),
	}
	for name, id := range DefaultServiceIDs {
		c.serviceIDs[name] = id
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// serviceID resolves an NPC display name to the id the service expects.
func (c *Dialogue) serviceID(npcName string) string {
	if id, ok := c.serviceIDs[npcName]; ok {
		return id
	}
	return npcName
}

// Session returns the conversation session for the named NPC, creating
// it on first use.
func (c *Dialogue) Session(npcName string) *Session {
	return c.sessions.get(npcName, c.serviceID(npcName))
}

type chatRequest struct {
	NPCID     string `json:"npc_id"`
	PlayerID  string `json:"player_id"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// Reply sends the player's message to the dialogue service on the
// NPC's session and returns the reply text. A reply containing
// Japanese script is wrapped in the bilingual marker so downstream
// display and synthesis can treat the original language specially.
// When the service is marked down it returns [ErrUnavailable] without
// any network traffic; any failure marks the service down.
func (c *Dialogue) Reply(ctx context.Context, npcName, message string) (string, error) {
	if !c.monitor.IsAvailable(availability.KindDialogue) {
		return "", ErrUnavailable
	}

	sess := c.Session(npcName)
	sess.append(RolePlayer, message)

	start := time.Now()
	reply, err := c.reply(ctx, sess, message)
	c.metrics.DialogueDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordServiceError(ctx, availability.KindDialogue.String())
		c.monitor.MarkDown(availability.KindDialogue)
		observe.Logger(ctx).Warn("dialogue request failed", "npc", npcName, "error", err)
		return "", err
	}

	if bilingual.ContainsJapanese(reply) {
		reply = bilingual.Wrap(reply)
	}
	sess.append(RoleNPC, reply)
	c.metrics.RecordServiceRequest(ctx, availability.KindDialogue.String(), "ok")
	return reply, nil
}

func (c *Dialogue) reply(ctx context.Context, sess *Session, message string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		NPCID:     sess.ServiceID,
		PlayerID:  c.playerID,
		Message:   message,
		SessionID: sess.ID,
	})
	if err != nil {
		return "", fmt.Errorf("gateway: encode chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.monitor.BaseURL(availability.KindDialogue) + "/api/v1/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gateway: build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway: chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway: chat returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gateway: read chat response: %w", err)
	}
	return extractReply(body)
}
