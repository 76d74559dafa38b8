// Command webhook_replay signs sandbox payment notifications and posts them to
// a running API, for exercising settlement without a provider round trip.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/seanior/course-booking-api/internal/adapters/mercadopago"
	"github.com/seanior/course-booking-api/internal/adapters/midtrans"
)

type replay struct {
	Provider string
	Body     []byte
	Headers  map[string]string
	Query    string
}

func main() {
	var (
		base       string
		provider   string
		bookingID  string
		requestID  string
		status     string
		amount     int64
		secret     string
		paymentID  string
		repeat     int
		timeout    time.Duration
		expectCode int
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&provider, "provider", midtrans.ProviderName, "midtrans or mercadopago")
	flag.StringVar(&bookingID, "booking", "", "Booking ID (midtrans order_id)")
	flag.StringVar(&requestID, "request", "", "Course request ID")
	flag.StringVar(&status, "status", "settlement", "Provider transaction status")
	flag.Int64Var(&amount, "amount", 0, "Gross amount (midtrans)")
	flag.StringVar(&secret, "secret", os.Getenv("WEBHOOK_REPLAY_SECRET"), "Midtrans server key or Mercado Pago webhook secret")
	flag.StringVar(&paymentID, "payment", "", "Mercado Pago payment ID")
	flag.IntVar(&repeat, "repeat", 1, "Deliveries to send; >1 checks idempotency")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.IntVar(&expectCode, "expect", http.StatusOK, "Expected HTTP status")
	flag.Parse()

	r, err := build(provider, bookingID, requestID, status, amount, secret, paymentID)
	if err != nil {
		log.Fatalf("build notification: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	failures := 0
	for i := 1; i <= repeat; i++ {
		code, body, dur, err := send(client, base, r)
		if err != nil {
			log.Printf("delivery %d failed: %v", i, err)
			failures++
			continue
		}
		mark := "OK"
		if code != expectCode {
			mark = "UNEXPECTED"
			failures++
		}
		fmt.Printf("[%s] delivery %d status=%d %s %s\n", mark, i, code, dur.Truncate(time.Millisecond), strings.TrimSpace(body))
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func build(provider, bookingID, requestID, status string, amount int64, secret, paymentID string) (replay, error) {
	switch provider {
	case midtrans.ProviderName:
		if bookingID == "" {
			return replay{}, fmt.Errorf("-booking is required")
		}
		gross := strconv.FormatInt(amount, 10) + ".00"
		body, err := json.Marshal(map[string]string{
			"order_id":           bookingID,
			"status_code":        "200",
			"gross_amount":       gross,
			"signature_key":      midtrans.SignatureKey(bookingID, "200", gross, secret),
			"transaction_id":     "replay-" + bookingID,
			"transaction_status": status,
			"fraud_status":       "accept",
			"custom_field1":      requestID,
		})
		if err != nil {
			return replay{}, err
		}
		return replay{Provider: provider, Body: body}, nil
	case mercadopago.ProviderName:
		if paymentID == "" {
			return replay{}, fmt.Errorf("-payment is required")
		}
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		reqID := fmt.Sprintf("replay-%s-%s", paymentID, ts)
		body, err := json.Marshal(map[string]interface{}{
			"type":   "payment",
			"action": "payment.updated",
			"data":   map[string]string{"id": paymentID},
		})
		if err != nil {
			return replay{}, err
		}
		return replay{
			Provider: provider,
			Body:     body,
			Query:    "?type=payment&data.id=" + paymentID,
			Headers: map[string]string{
				"X-Signature":  mercadopago.SignatureHeader(paymentID, reqID, ts, secret),
				"X-Request-Id": reqID,
			},
		}, nil
	default:
		return replay{}, fmt.Errorf("unknown provider %q", provider)
	}
}

func send(client *http.Client, base string, r replay) (int, string, time.Duration, error) {
	url := strings.TrimRight(base, "/") + "/payments/webhook" + r.Query
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(r.Body))
	if err != nil {
		return 0, "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", 0, err
	}
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return resp.StatusCode, "", time.Since(start), err
	}
	return resp.StatusCode, string(body), time.Since(start), nil
}
