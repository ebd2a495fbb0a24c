package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
)

func main() {
	var (
		baseURL = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "reservation service base url")
		evtType = flag.String("type", getenv("STRIPE_EVENT_TYPE", "checkout.session.completed"), "stripe event type")
		target  = flag.String("target-id", getenv("TARGET_ID", ""), "target_id metadata (reservation id)")
		kind    = flag.String("target-type", getenv("TARGET_TYPE", "reservation"), "type metadata (reservation, payment_link)")
		session = flag.String("session-id", getenv("SESSION_ID", "cs_test_123"), "checkout session id")
		amount  = flag.Int64("amount", 5000, "amount_total in minor units")
		email   = flag.String("email", getenv("PAYER_EMAIL", "payer@example.com"), "customer email")
		secret  = flag.String("secret", getenv("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}
	if strings.TrimSpace(*target) == "" {
		fatal("TARGET_ID is required")
	}

	now := time.Now().UTC()
	eventID := fmt.Sprintf("evt_test_%d", now.UnixNano())

	payload, err := buildEventJSON(eventID, *evtType, now, *session, *target, *kind, *amount, *email)
	if err != nil {
		fatal(err.Error())
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    *secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+"/api/v1/public/stripe/webhook", bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	fmt.Printf("status=%d\n", resp.StatusCode)
}

func buildEventJSON(eventID, eventType string, t time.Time, sessionID, targetID, targetType string, amount int64, email string) ([]byte, error) {
	created := t.Unix()
	switch eventType {
	case "checkout.session.completed", "checkout.session.expired":
		return json.Marshal(map[string]any{
			"id":          eventID,
			"object":      "event",
			"created":     created,
			"type":        eventType,
			"api_version": "2020-08-27",
			"data": map[string]any{
				"object": map[string]any{
					"id":             sessionID,
					"object":         "checkout.session",
					"amount_total":   amount,
					"currency":       "usd",
					"payment_intent": "pi_test_123",
					"customer_details": map[string]any{
						"email": email,
					},
					"metadata": map[string]any{
						"type":      targetType,
						"target_id": targetID,
					},
				},
			},
		})
	default:
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
