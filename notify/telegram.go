package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Telegram renders events as bot messages. Sends run on a buffered worker so
// a slow Telegram API never stalls a trading cycle; overflow drops events.
type Telegram struct {
	token  string
	chatID string
	client *http.Client
	queue  chan Event
}

func NewTelegram(token, chatID string) *Telegram {
	t := &Telegram{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
		queue:  make(chan Event, 64),
	}
	go t.loop()
	return t
}

func (t *Telegram) Emit(e Event) {
	select {
	case t.queue <- e:
	default:
		log.Printf("telegram queue full, dropping %s event", e.Type)
	}
}

func (t *Telegram) loop() {
	for e := range t.queue {
		t.send(render(e))
	}
}

func (t *Telegram) send(text string) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	payload, _ := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Printf("telegram send failed: %v", err)
		return
	}
	resp.Body.Close()
}

func render(e Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type, e.Symbol)
	if e.Ticket != 0 {
		fmt.Fprintf(&b, " #%d", e.Ticket)
	}
	if e.Side != "" {
		fmt.Fprintf(&b, " %s", e.Side)
	}
	if e.Volume != 0 {
		fmt.Fprintf(&b, " %.2f lots", e.Volume)
	}
	if e.Price != 0 {
		fmt.Fprintf(&b, " @ %.5f", e.Price)
	}
	if e.StopLoss != 0 {
		fmt.Fprintf(&b, " SL %.5f", e.StopLoss)
	}
	if e.TakeProfit != 0 {
		fmt.Fprintf(&b, " TP %.5f", e.TakeProfit)
	}
	if e.Confidence != 0 {
		fmt.Fprintf(&b, " conf %d%%", e.Confidence)
	}
	if e.Profit != 0 {
		fmt.Fprintf(&b, " P/L $%.2f", e.Profit)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, "\n%s", e.Reason)
	}
	if len(e.Metrics) > 0 {
		keys := make([]string, 0, len(e.Metrics))
		for k := range e.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %.2f", k, e.Metrics[k])
		}
	}
	return b.String()
}

// LogSink prints every event through the standard logger.
type LogSink struct{}

func (LogSink) Emit(e Event) {
	log.Printf("event %s: %s", e.Type, render(e))
}
